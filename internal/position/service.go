// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package position provides the sources of raw position samples: an NMEA
// receiver on a serial port, an MQTT feed and a simulated walker.
package position

import (
	"context"
	"errors"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// DefaultMinDistance is the movement, in meters, required between two
// samples delivered by Watch.
const DefaultMinDistance = 5.0

var (
	// ErrUnsupported is returned when the environment has no location capability.
	ErrUnsupported = errors.New("location not supported in this environment")
	// ErrPermissionDenied is returned when location access was refused.
	ErrPermissionDenied = errors.New("location permission denied")
)

// Permission is the answer to a permission request.
type Permission int

const (
	Denied Permission = iota
	Granted
)

func (p Permission) String() string {
	if p == Granted {
		return "granted"
	}
	return "denied"
}

// WatchOptions configures a position subscription.
type WatchOptions struct {
	MinDistance  float64 // meters between delivered samples
	HighAccuracy bool    // only deliver samples from a real fix with an error estimate
}

// Subscription is the handle of an active Watch. Cancel stops delivery;
// calling it more than once is a no-op.
type Subscription interface {
	Cancel() error
}

// Service is anything that can locate the device.
type Service interface {
	// Supported returns ErrUnsupported if the service cannot produce positions at all.
	Supported() error
	RequestPermission(ctx context.Context) (Permission, error)
	// CurrentPosition blocks until one position is available.
	CurrentPosition(ctx context.Context) (gps.Fix, error)
	// Watch calls fn asynchronously for every sample until the subscription is cancelled.
	Watch(ctx context.Context, opts WatchOptions, fn func(gps.Sample)) (Subscription, error)
}
