// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"math"
	"time"
)

// Fix is a single recorded point of a track.
type Fix struct {
	Latitude  float64 `json:"lat"` // decimal degrees
	Longitude float64 `json:"lon"` // decimal degrees
}

// Sample is a raw position reading as delivered by a position service,
// before the session decides whether to keep it.
type Sample struct {
	Latitude  float64   `json:"lat"`      // decimal degrees
	Longitude float64   `json:"lon"`      // decimal degrees
	Accuracy  float64   `json:"accuracy"` // horizontal error estimate in meters, 0 = unknown
	Time      time.Time `json:"time"`
}

// HasAccuracy reports whether the sample carries an accuracy figure.
// A zero accuracy is treated as "no data", same as a missing one.
func (s Sample) HasAccuracy() bool {
	return s.Accuracy != 0 && !math.IsNaN(s.Accuracy)
}

// Fix strips the sample down to its coordinates.
func (s Sample) Fix() Fix {
	return Fix{Latitude: s.Latitude, Longitude: s.Longitude}
}
