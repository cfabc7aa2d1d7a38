// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// EarthRadius is the WGS84 semi-major axis in meters, the radius the
// distance functions use.
const EarthRadius = orb.EarthRadius

// HaversineDistance returns the great-circle distance in meters between two fixes.
func HaversineDistance(p1, p2 gps.Fix) float64 {
	return geo.DistanceHaversine(point(p1), point(p2))
}

// point converts a fix to orb's [lon, lat] order.
func point(f gps.Fix) orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// degreesToRadians converts an angle in degrees to radians.
func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// DistanceFilter passes a sample only once the device has moved at least
// MinDistance meters from the last sample it passed. Not safe for
// concurrent use; each subscription owns one.
type DistanceFilter struct {
	MinDistance float64

	last gps.Fix
	have bool
}

// Allow reports whether s should be delivered, and remembers it if so.
func (f *DistanceFilter) Allow(s gps.Sample) bool {
	fix := s.Fix()
	if f.have && f.MinDistance > 0 && HaversineDistance(f.last, fix) < f.MinDistance {
		return false
	}
	f.last = fix
	f.have = true
	return true
}
