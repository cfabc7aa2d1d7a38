// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/track_logger/internal/config"
	"github.com/relabs-tech/track_logger/internal/export"
	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/position"
	"github.com/relabs-tech/track_logger/internal/session"
)

// RunLogger wires the position source, session controller, exporter and
// web server together and serves until SIGINT or SIGTERM.
func RunLogger() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- 1) MQTT (optional) ----
	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDLogger)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connect to MQTT broker %s: %w", cfg.MQTTBroker, token.Error())
		}
		defer client.Disconnect(250)
		log.Printf("logger: connected to MQTT broker at %s", cfg.MQTTBroker)
	}

	// ---- 2) Position source ----
	svc, err := buildService(cfg, client)
	if err != nil {
		return err
	}
	log.Printf("logger: position source %s", cfg.PositionSource)

	locator := NewLocator(svc)
	go locator.Run(ctx)

	// ---- 3) Session ----
	ctrl := session.NewController(svc, position.WatchOptions{MinDistance: cfg.WatchMinDistance})
	defer ctrl.Stop()

	if client != nil {
		ctrl.Observe(NewTrackPublisher(client, cfg.TopicTrack).Publish)
	}

	// ---- 4) Export ----
	encoder, err := buildEncoder(cfg)
	if err != nil {
		return err
	}

	// ---- 5) Web server ----
	srv := NewServer(ctrl, locator, encoder, MapSettings{
		LatitudeDelta:  cfg.MapLatitudeDelta,
		LongitudeDelta: cfg.MapLongitudeDelta,
		Width:          cfg.MapWidth,
		Height:         cfg.MapHeight,
	}, cfg.WebStaticDir)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("logger: web server listening on %s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	log.Println("logger: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildService picks the position source named in the config. client is
// only used by the mqtt source and may be nil otherwise.
func buildService(cfg *config.Config, client mqtt.Client) (position.Service, error) {
	switch cfg.PositionSource {
	case config.SourceSerial:
		return position.NewSerialService(cfg.GPSSerialPort, cfg.GPSBaudRate, cfg.GPSUERE), nil
	case config.SourceMQTT:
		if client == nil {
			return nil, errors.New("position source mqtt needs MQTT_BROKER")
		}
		return position.NewMQTTService(client, cfg.TopicGPSSample), nil
	case config.SourceSimulated:
		sim := position.NewSimulatedService(
			gps.Fix{Latitude: cfg.SimCenterLat, Longitude: cfg.SimCenterLon},
			time.Duration(cfg.SimIntervalMS)*time.Millisecond,
		)
		sim.Enabled = cfg.SimEnabled
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown position source %q", cfg.PositionSource)
	}
}

func buildEncoder(cfg *config.Config) (*export.Encoder, error) {
	storage, err := export.NewCacheStorage(cfg.ExportDir)
	if err != nil {
		return nil, err
	}

	msg := export.Message{
		From:    cfg.MailFrom,
		To:      cfg.MailTo,
		Subject: cfg.MailSubject,
		Body:    cfg.MailBody,
	}

	var composer export.Composer
	switch cfg.MailMode {
	case config.MailSMTP:
		composer = export.NewSMTPComposer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, msg)
	case config.MailOutbox:
		composer = &export.OutboxComposer{Dir: cfg.OutboxDir, Message: msg}
	default:
		return nil, fmt.Errorf("unknown mail mode %q", cfg.MailMode)
	}

	return export.NewEncoder(storage, composer), nil
}
