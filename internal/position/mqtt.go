// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/track_logger/internal/gps"
)

// subackFailure is the MQTT 3.1.1 SUBACK return code for a refused subscription.
const subackFailure = 0x80

// MQTTService receives samples published as JSON on an MQTT topic,
// typically by cmd/gps_producer.
type MQTTService struct {
	client mqtt.Client
	topic  string
}

// NewMQTTService uses an already connected client.
func NewMQTTService(client mqtt.Client, topic string) *MQTTService {
	return &MQTTService{client: client, topic: topic}
}

func (s *MQTTService) Supported() error {
	if !s.client.IsConnected() {
		return fmt.Errorf("%w: MQTT client not connected", ErrUnsupported)
	}
	return nil
}

// RequestPermission subscribes once to check the broker lets us read the topic.
func (s *MQTTService) RequestPermission(ctx context.Context) (Permission, error) {
	token := s.client.Subscribe(s.topic, 0, func(mqtt.Client, mqtt.Message) {})
	if err := waitToken(ctx, token); err != nil {
		return Denied, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	defer s.client.Unsubscribe(s.topic)

	if refused(token, s.topic) {
		return Denied, nil
	}
	return Granted, nil
}

// CurrentPosition waits for the next (or the retained) sample on the topic.
func (s *MQTTService) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	ch := make(chan gps.Sample, 1)
	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		sample, err := decodeSample(msg.Payload())
		if err != nil {
			log.Printf("position: MQTT payload unmarshal error: %v", err)
			return
		}
		select {
		case ch <- sample:
		default:
		}
	})
	if err := waitToken(ctx, token); err != nil {
		return gps.Fix{}, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	defer s.client.Unsubscribe(s.topic)

	select {
	case sample := <-ch:
		return sample.Fix(), nil
	case <-ctx.Done():
		return gps.Fix{}, ctx.Err()
	}
}

// Watch subscribes to the topic and forwards samples to fn.
func (s *MQTTService) Watch(ctx context.Context, opts WatchOptions, fn func(gps.Sample)) (Subscription, error) {
	sub := &mqttSub{client: s.client, topic: s.topic}
	handler := newSampleHandler(opts, func(sample gps.Sample) {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if sub.cancelled {
			return
		}
		fn(sample)
	})

	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler.handle(msg.Payload())
	})
	if err := waitToken(ctx, token); err != nil {
		s.abandon(sub)
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	if refused(token, s.topic) {
		s.abandon(sub)
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, ErrPermissionDenied)
	}
	log.Printf("position: subscribed to MQTT topic %s", s.topic)
	return sub, nil
}

// abandon silences a subscription that never reached the caller. The
// subscribe may still complete at the broker, so it is undone there too.
func (s *MQTTService) abandon(sub *mqttSub) {
	sub.mu.Lock()
	sub.cancelled = true
	sub.mu.Unlock()
	s.client.Unsubscribe(s.topic)
}

type mqttSub struct {
	client mqtt.Client
	topic  string

	mu        sync.Mutex
	cancelled bool
}

// Cancel unsubscribes. Once it returns, fn is not called again.
func (s *mqttSub) Cancel() error {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return nil
	}
	s.cancelled = true
	s.mu.Unlock()

	token := s.client.Unsubscribe(s.topic)
	token.Wait()
	return token.Error()
}

// sampleHandler applies the watch options to incoming payloads.
type sampleHandler struct {
	mu           sync.Mutex
	highAccuracy bool
	filter       DistanceFilter
	fn           func(gps.Sample)
}

func newSampleHandler(opts WatchOptions, fn func(gps.Sample)) *sampleHandler {
	return &sampleHandler{
		highAccuracy: opts.HighAccuracy,
		filter:       DistanceFilter{MinDistance: opts.MinDistance},
		fn:           fn,
	}
}

func (h *sampleHandler) handle(payload []byte) {
	sample, err := decodeSample(payload)
	if err != nil {
		log.Printf("position: MQTT payload unmarshal error: %v", err)
		return
	}
	if h.highAccuracy && !sample.HasAccuracy() {
		return
	}

	h.mu.Lock()
	allowed := h.filter.Allow(sample)
	h.mu.Unlock()
	if allowed {
		h.fn(sample)
	}
}

func decodeSample(payload []byte) (gps.Sample, error) {
	var sample gps.Sample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return gps.Sample{}, err
	}
	return sample, nil
}

// subackResult is implemented by *mqtt.SubscribeToken.
type subackResult interface {
	Result() map[string]byte
}

// refused reports whether the broker rejected the subscription to topic.
func refused(token mqtt.Token, topic string) bool {
	st, ok := token.(subackResult)
	if !ok {
		return false
	}
	code, found := st.Result()[topic]
	return found && code == subackFailure
}

// waitToken waits for an MQTT token without outliving ctx.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
