// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/track_logger/internal/config"
	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/position"
)

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes every sample as JSON to the sample topic. The logger picks
// them up with POSITION_SOURCE=mqtt.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("GPS producer connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Stream samples from the receiver ----
	svc := position.NewSerialService(cfg.GPSSerialPort, cfg.GPSBaudRate, cfg.GPSUERE)
	if err := svc.Supported(); err != nil {
		return err
	}

	// Every sample goes out; filtering is up to the logger.
	sub, err := svc.Watch(context.Background(), position.WatchOptions{}, func(s gps.Sample) {
		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("GPS JSON marshal error: %v", err)
			return
		}

		token := client.Publish(cfg.TopicGPSSample, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("GPS publish error: %v", token.Error())
			return
		}
		log.Printf("published GPS sample: %+v", s)
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("GPS producer shutting down")
	return nil
}
