// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/track_logger/internal/session"
)

// TrackPublisher publishes every session snapshot as a retained JSON
// message, so late subscribers get the current track immediately.
type TrackPublisher struct {
	client mqtt.Client
	topic  string
}

func NewTrackPublisher(client mqtt.Client, topic string) *TrackPublisher {
	return &TrackPublisher{client: client, topic: topic}
}

// Publish is a session observer. It does not wait for the broker.
func (p *TrackPublisher) Publish(snap session.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("publisher: track JSON marshal error: %v", err)
		return
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Printf("publisher: track publish error: %v", token.Error())
		}
	}()
}
