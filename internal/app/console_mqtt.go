// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tidwall/gjson"

	"github.com/relabs-tech/track_logger/internal/config"
)

// RunConsoleMQTT prints raw GPS samples and track updates as they are
// published on the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to track snapshots
	trackToken := client.Subscribe(cfg.TopicTrack, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, ok := formatTrack(msg.Payload())
		if !ok {
			log.Printf("console: malformed track payload")
			return
		}
		fmt.Println(line)
	})
	trackToken.Wait()
	if trackToken.Error() != nil {
		return trackToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTrack)

	// Subscribe to raw samples
	sampleToken := client.Subscribe(cfg.TopicGPSSample, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, ok := formatSample(msg.Payload())
		if !ok {
			log.Printf("console: malformed sample payload")
			return
		}
		fmt.Println(line)
	})
	sampleToken.Wait()
	if sampleToken.Error() != nil {
		return sampleToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPSSample)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatTrack(payload []byte) (string, bool) {
	if !gjson.ValidBytes(payload) {
		return "", false
	}
	res := gjson.ParseBytes(payload)
	status := res.Get("status").String()
	fixes := res.Get("fixes").Array()

	line := fmt.Sprintf("[TRACK] session=%s status=%-7s fixes=%d",
		res.Get("session_id").String(), status, len(fixes))
	if n := len(fixes); n > 0 {
		last := fixes[n-1]
		line += fmt.Sprintf(" last=%.6f,%.6f", last.Get("lat").Float(), last.Get("lon").Float())
	}
	return line, true
}

func formatSample(payload []byte) (string, bool) {
	if !gjson.ValidBytes(payload) {
		return "", false
	}
	res := gjson.ParseBytes(payload)
	return fmt.Sprintf("[GPS ]  time=%s lat=%.6f lon=%.6f accuracy=%.1fm",
		res.Get("time").String(), res.Get("lat").Float(), res.Get("lon").Float(), res.Get("accuracy").Float()), true
}
