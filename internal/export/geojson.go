// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// Encode renders the log as a GeoJSON Feature with a LineString geometry.
// Coordinates are [longitude, latitude] pairs in log order.
func Encode(l gps.Log, props geojson.Properties) ([]byte, error) {
	line := make(orb.LineString, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		f := l.At(i)
		line = append(line, orb.Point{f.Longitude, f.Latitude})
	}

	feature := geojson.NewFeature(line)
	for k, v := range props {
		feature.Properties[k] = v
	}

	data, err := feature.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	return data, nil
}

// Decode parses a GeoJSON Feature produced by Encode back into a log.
func Decode(data []byte) (gps.Log, error) {
	feature, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return gps.Log{}, fmt.Errorf("unmarshal geojson: %w", err)
	}
	if feature.Geometry == nil {
		return gps.Log{}, fmt.Errorf("geojson feature has no geometry")
	}

	line, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return gps.Log{}, fmt.Errorf("expected LineString geometry, got %s", feature.Geometry.GeoJSONType())
	}

	fixes := make([]gps.Fix, len(line))
	for i, p := range line {
		fixes[i] = gps.Fix{Latitude: p.Lat(), Longitude: p.Lon()}
	}
	return gps.NewLog(fixes...), nil
}
