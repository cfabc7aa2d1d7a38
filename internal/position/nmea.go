// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// DefaultUERE is the user equivalent range error in meters used to turn
// HDOP into a horizontal accuracy estimate.
const DefaultUERE = 5.0

// decodeSentence turns one NMEA line into a sample.
//
// GGA carries HDOP, so its samples get accuracy = HDOP * uere. RMC has no
// error estimate; it is only used when highAccuracy is off and its samples
// have no accuracy.
func decodeSentence(line string, highAccuracy bool, uere float64, now time.Time) (gps.Sample, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return gps.Sample{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy receiver or partial sentence
		return gps.Sample{}, false
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
			return gps.Sample{}, false
		}
		return gps.Sample{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Accuracy:  m.HDOP * uere,
			Time:      now,
		}, true

	case nmea.TypeRMC:
		if highAccuracy {
			return gps.Sample{}, false
		}
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return gps.Sample{}, false
		}
		return gps.Sample{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Time:      now,
		}, true

	default:
		// GSA, GSV, VTG... carry no position
		return gps.Sample{}, false
	}
}

// ReadNMEA reads NMEA sentences from r and calls fn for every sample that
// passes the options. It returns when ctx is done or r fails.
func ReadNMEA(ctx context.Context, r io.Reader, opts WatchOptions, uere float64, fn func(gps.Sample)) error {
	reader := bufio.NewReader(r)
	filter := DistanceFilter{MinDistance: opts.MinDistance}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			if s, ok := decodeSentence(line, opts.HighAccuracy, uere, time.Now().UTC()); ok && filter.Allow(s) {
				fn(s)
			}
		}
		if err != nil {
			return err
		}
	}
}

// firstFix reads from r until one positional sentence has been decoded.
func firstFix(ctx context.Context, r io.Reader) (gps.Fix, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fix   gps.Fix
		found bool
	)
	err := ReadNMEA(ctx, r, WatchOptions{}, DefaultUERE, func(s gps.Sample) {
		if !found {
			fix = s.Fix()
			found = true
			cancel()
		}
	})
	if found {
		return fix, nil
	}
	return gps.Fix{}, err
}
