// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/track_logger/internal/app"
	"github.com/relabs-tech/track_logger/internal/config"
)

func main() {
	log.Println("starting track-logger GPS producer (NMEA → MQTT)")

	if err := config.InitGlobal("tracklog_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunGPSProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
