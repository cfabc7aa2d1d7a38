// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// SerialService reads an NMEA 0183 receiver attached to a serial port.
type SerialService struct {
	PortName string
	BaudRate int
	UERE     float64 // meters per unit of HDOP

	// open is replaced in tests.
	open func() (io.ReadWriteCloser, error)
}

// NewSerialService returns a service for the receiver on portName.
func NewSerialService(portName string, baudRate int, uere float64) *SerialService {
	s := &SerialService{PortName: portName, BaudRate: baudRate, UERE: uere}
	s.open = s.openPort
	return s
}

func (s *SerialService) openPort() (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              uint(s.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", s.PortName, err)
	}
	return port, nil
}

// Supported reports ErrUnsupported when the port device does not exist.
func (s *SerialService) Supported() error {
	if s.PortName == "" {
		return fmt.Errorf("%w: no GPS serial port configured", ErrUnsupported)
	}
	if _, err := os.Stat(s.PortName); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s not present", ErrUnsupported, s.PortName)
		}
		return fmt.Errorf("stat %s: %w", s.PortName, err)
	}
	return nil
}

// RequestPermission checks that the process may open the port.
func (s *SerialService) RequestPermission(ctx context.Context) (Permission, error) {
	f, err := os.OpenFile(s.PortName, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return Denied, nil
		}
		return Denied, fmt.Errorf("open %s: %w", s.PortName, err)
	}
	f.Close()
	return Granted, nil
}

// CurrentPosition opens the port and waits for the first positional sentence.
func (s *SerialService) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	port, err := s.open()
	if err != nil {
		return gps.Fix{}, err
	}
	defer port.Close()

	// Closing the port is the only way to unblock a pending read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()

	fix, err := firstFix(ctx, port)
	if err != nil {
		return gps.Fix{}, fmt.Errorf("waiting for GPS fix on %s: %w", s.PortName, err)
	}
	return fix, nil
}

// Watch opens the port and streams samples to fn until the subscription
// is cancelled.
func (s *SerialService) Watch(ctx context.Context, opts WatchOptions, fn func(gps.Sample)) (Subscription, error) {
	port, err := s.open()
	if err != nil {
		return nil, err
	}
	log.Printf("position: GPS serial port opened on %s at %d baud", s.PortName, s.BaudRate)

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := newGoroutineSub(cancel, port)

	go func() {
		defer close(sub.done)
		err := ReadNMEA(ctx, port, opts, s.UERE, fn)
		if err != nil && ctx.Err() == nil {
			log.Printf("position: GPS read error on %s: %v", s.PortName, err)
		}
	}()

	return sub, nil
}
