// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// SimulatedService walks in a circle around Center at a steady pace.
// It is meant for demos and for running the logger on a desk without a
// receiver. A disabled simulator behaves like a device without location
// capability.
type SimulatedService struct {
	Enabled  bool
	Center   gps.Fix
	Radius   float64       // meters
	Speed    float64       // meters per second
	Interval time.Duration // time between samples
	Accuracy float64       // meters, reported on every sample

	start time.Time
}

// NewSimulatedService creates an enabled simulator with walking-pace defaults.
func NewSimulatedService(center gps.Fix, interval time.Duration) *SimulatedService {
	return &SimulatedService{
		Enabled:  true,
		Center:   center,
		Radius:   50,
		Speed:    1.4,
		Interval: interval,
		Accuracy: 3,
		start:    time.Now(),
	}
}

func (s *SimulatedService) Supported() error {
	if !s.Enabled {
		return fmt.Errorf("%w: simulated device has no location capability", ErrUnsupported)
	}
	return nil
}

func (s *SimulatedService) RequestPermission(ctx context.Context) (Permission, error) {
	return Granted, nil
}

func (s *SimulatedService) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	if err := s.Supported(); err != nil {
		return gps.Fix{}, err
	}
	return s.sampleAt(time.Now()).Fix(), nil
}

// Watch emits one sample per Interval until cancelled.
func (s *SimulatedService) Watch(ctx context.Context, opts WatchOptions, fn func(gps.Sample)) (Subscription, error) {
	if err := s.Supported(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := newGoroutineSub(cancel, nil)
	filter := DistanceFilter{MinDistance: opts.MinDistance}

	go func() {
		defer close(sub.done)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				sample := s.sampleAt(t)
				if filter.Allow(sample) {
					fn(sample)
				}
			}
		}
	}()

	return sub, nil
}

// sampleAt returns the walker's position at time t.
func (s *SimulatedService) sampleAt(t time.Time) gps.Sample {
	elapsed := t.Sub(s.start).Seconds()

	theta := 0.0
	if s.Radius > 0 {
		theta = elapsed * s.Speed / s.Radius
	}

	latRad := degreesToRadians(s.Center.Latitude)
	dLat := s.Radius * math.Cos(theta) / EarthRadius
	dLon := s.Radius * math.Sin(theta) / (EarthRadius * math.Cos(latRad))

	return gps.Sample{
		Latitude:  s.Center.Latitude + dLat*180.0/math.Pi,
		Longitude: s.Center.Longitude + dLon*180.0/math.Pi,
		Accuracy:  s.Accuracy,
		Time:      t.UTC(),
	}
}
