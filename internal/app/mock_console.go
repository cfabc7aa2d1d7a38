// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/track_logger/internal/config"
	"github.com/relabs-tech/track_logger/internal/export"
	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/position"
	"github.com/relabs-tech/track_logger/internal/session"
)

// RunMockConsole drives a session from the terminal with the simulated
// walker as position source. No receiver or broker is needed.
func RunMockConsole() error {
	cfg := config.Get()

	sim := position.NewSimulatedService(
		gps.Fix{Latitude: cfg.SimCenterLat, Longitude: cfg.SimCenterLon},
		time.Duration(cfg.SimIntervalMS)*time.Millisecond,
	)
	ctrl := session.NewController(sim, position.WatchOptions{MinDistance: cfg.WatchMinDistance})
	defer ctrl.Stop()

	encoder, err := buildEncoder(cfg)
	if err != nil {
		return err
	}

	return runConsole(context.Background(), os.Stdin, os.Stdout, ctrl, encoder)
}

// runConsole reads one command per line until quit or EOF.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, ctrl *session.Controller, enc *export.Encoder) error {
	var outMu sync.Mutex
	printf := func(format string, args ...interface{}) {
		outMu.Lock()
		fmt.Fprintf(out, format, args...)
		outMu.Unlock()
	}

	seen := 0
	cancel := ctrl.Observe(func(snap session.Snapshot) {
		if snap.Log.Len() < seen {
			seen = 0
		}
		for ; seen < snap.Log.Len(); seen++ {
			f := snap.Log.At(seen)
			printf("[FIX %3d] lat=%.6f lon=%.6f\n", seen+1, f.Latitude, f.Longitude)
		}
	})
	defer cancel()

	printf("commands: start, stop, status, export, quit\n")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch cmd := strings.ToLower(strings.TrimSpace(scanner.Text())); cmd {
		case "":
		case "start":
			if err := ctrl.Start(ctx); err != nil {
				printf("start failed: %v\n", err)
				continue
			}
			printf("logging (session %s)\n", ctrl.Snapshot().SessionID)
		case "stop":
			if err := ctrl.Stop(); err != nil {
				printf("stop failed: %v\n", err)
				continue
			}
			printf("stopped with %d fixes\n", ctrl.Log().Len())
		case "status":
			snap := ctrl.Snapshot()
			printf("status=%s fixes=%d export_ready=%v\n",
				snap.Status, snap.Log.Len(), export.Ready(snap.Log, snap.Status))
		case "export":
			snap := ctrl.Snapshot()
			outcome, err := enc.ExportWithProperties(ctx, snap.Log, snap.Status, trackProperties(snap))
			if err != nil {
				printf("export failed: %v\n", err)
				continue
			}
			printf("export: %s\n", outcome)
		case "quit", "exit":
			return nil
		default:
			printf("unknown command %q\n", cmd)
		}
	}
	return scanner.Err()
}
