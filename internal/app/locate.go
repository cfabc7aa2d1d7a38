// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/position"
)

// Messages shown while locating.
const (
	MsgLocating         = "Locating..."
	MsgUnsupported      = "Location is not available here. Run the logger on a device with a GPS receiver."
	MsgPermissionDenied = "Permission to access location was not granted."
	MsgLocateFailed     = "Could not determine the current position."
	MsgReady            = "Position acquired."
)

// LocateStatus is what the map page shows before and after the first fix.
type LocateStatus struct {
	Message  string  `json:"message"`
	Ready    bool    `json:"ready"`
	Position gps.Fix `json:"position"`
}

// Locator runs the startup sequence: check the environment, ask for
// permission, then wait for the current position.
type Locator struct {
	svc position.Service

	mu     sync.RWMutex
	status LocateStatus
}

func NewLocator(svc position.Service) *Locator {
	return &Locator{svc: svc, status: LocateStatus{Message: MsgLocating}}
}

// Run blocks until the position is known or locating failed, and returns
// the final status. Failures end up in the status message, not as errors.
func (l *Locator) Run(ctx context.Context) LocateStatus {
	if err := l.svc.Supported(); err != nil {
		log.Printf("locate: %v", err)
		if errors.Is(err, position.ErrUnsupported) {
			return l.set(LocateStatus{Message: MsgUnsupported})
		}
		return l.set(LocateStatus{Message: MsgLocateFailed})
	}

	perm, err := l.svc.RequestPermission(ctx)
	if err != nil {
		log.Printf("locate: permission request: %v", err)
		return l.set(LocateStatus{Message: MsgLocateFailed})
	}
	if perm != position.Granted {
		log.Printf("locate: %v", position.ErrPermissionDenied)
		return l.set(LocateStatus{Message: MsgPermissionDenied})
	}

	fix, err := l.svc.CurrentPosition(ctx)
	if err != nil {
		log.Printf("locate: current position: %v", err)
		return l.set(LocateStatus{Message: MsgLocateFailed})
	}

	log.Printf("locate: current position %.6f,%.6f", fix.Latitude, fix.Longitude)
	return l.set(LocateStatus{Message: MsgReady, Ready: true, Position: fix})
}

func (l *Locator) set(s LocateStatus) LocateStatus {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
	return s
}

// Status returns the latest status.
func (l *Locator) Status() LocateStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}
