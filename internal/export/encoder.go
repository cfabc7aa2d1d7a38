// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package export turns a recorded log into a GeoJSON file and hands it to
// a mail composer.
package export

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// FileName is the name of the export file in the cache directory.
// Each export overwrites it.
const FileName = "gpslog.geojson"

// MinFixes is the smallest log worth exporting.
const MinFixes = 2

// Encoder exports logs.
type Encoder struct {
	Storage  Storage
	Composer Composer
}

// NewEncoder returns an encoder writing FileName into storage.
func NewEncoder(storage Storage, composer Composer) *Encoder {
	return &Encoder{Storage: storage, Composer: composer}
}

// Ready reports whether Export would do anything for this log and status.
func Ready(l gps.Log, status gps.Status) bool {
	return status == gps.Stopped && l.Len() >= MinFixes
}

// Export writes the log as GeoJSON and opens a message with the file
// attached. While logging, or with fewer than MinFixes fixes, it does
// nothing and returns OutcomeNone.
func (e *Encoder) Export(ctx context.Context, l gps.Log, status gps.Status) (Outcome, error) {
	return e.ExportWithProperties(ctx, l, status, nil)
}

// ExportWithProperties is Export with extra GeoJSON feature properties.
func (e *Encoder) ExportWithProperties(ctx context.Context, l gps.Log, status gps.Status, props geojson.Properties) (Outcome, error) {
	if !Ready(l, status) {
		return OutcomeNone, nil
	}

	data, err := Encode(l, props)
	if err != nil {
		return OutcomeNone, fmt.Errorf("export: %w", err)
	}

	path := filepath.Join(e.Storage.CacheDir(), FileName)
	if err := e.Storage.WriteText(path, string(data)); err != nil {
		return OutcomeNone, fmt.Errorf("export: write %s: %w", path, err)
	}

	outcome, err := e.Composer.ComposeWithAttachment(ctx, path)
	if err != nil {
		return OutcomeNone, fmt.Errorf("export: compose message: %w", err)
	}
	if outcome == OutcomeSent {
		log.Printf("export: sent %s with %d fixes", path, l.Len())
	}
	return outcome, nil
}
