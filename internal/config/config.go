// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Position sources.
const (
	SourceSerial    = "serial"
	SourceMQTT      = "mqtt"
	SourceSimulated = "simulated"
)

// Mail modes.
const (
	MailSMTP   = "smtp"
	MailOutbox = "outbox"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDLogger  string
	MQTTClientIDGPS     string
	MQTTClientIDConsole string

	// Topics
	TopicGPSSample string // raw samples from the GPS producer
	TopicTrack     string // session snapshots from the logger

	// Position source: "serial", "mqtt" or "simulated"
	PositionSource string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int
	GPSUERE       float64 // meters per unit of HDOP

	// Simulated walker
	SimEnabled    bool
	SimCenterLat  float64
	SimCenterLon  float64
	SimIntervalMS int

	// Session
	WatchMinDistance float64 // meters

	// Export
	ExportDir string // cache directory; empty = user cache dir

	// Mail: "smtp" or "outbox"
	MailMode     string
	MailFrom     string
	MailTo       []string
	MailSubject  string
	MailBody     string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	OutboxDir    string

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Map
	MapLatitudeDelta  float64
	MapLongitudeDelta float64
	MapWidth          int
	MapHeight         int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDLogger:  "track-logger",
		MQTTClientIDGPS:     "track-logger-gps-producer",
		MQTTClientIDConsole: "track-logger-console",
		TopicGPSSample:      "tracklog/gps/sample",
		TopicTrack:          "tracklog/track",
		PositionSource:      SourceSerial,
		GPSBaudRate:         9600,
		GPSUERE:             5.0,
		SimEnabled:          true,
		SimIntervalMS:       1000,
		WatchMinDistance:    5,
		MailMode:            MailOutbox,
		MailSubject:         "GPS log",
		MailBody:            "GPS track attached as GeoJSON.",
		SMTPPort:            587,
		OutboxDir:           "outbox",
		WebServerPort:       8080,
		WebStaticDir:        "web",
		MapLatitudeDelta:    0.00922,
		MapLongitudeDelta:   0.00521,
		MapWidth:            640,
		MapHeight:           480,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_LOGGER":
		c.MQTTClientIDLogger = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_GPS_SAMPLE":
		c.TopicGPSSample = value
	case "TOPIC_TRACK":
		c.TopicTrack = value

	case "POSITION_SOURCE":
		switch value {
		case SourceSerial, SourceMQTT, SourceSimulated:
			c.PositionSource = value
		default:
			return fmt.Errorf("POSITION_SOURCE must be %q, %q or %q, got %q", SourceSerial, SourceMQTT, SourceSimulated, value)
		}

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parsePositiveInt(key, value)
	case "GPS_UERE":
		c.GPSUERE, err = parsePositiveFloat(key, value)

	// Simulated walker
	case "SIM_ENABLED":
		c.SimEnabled, err = parseBool(key, value)
	case "SIM_CENTER_LAT":
		c.SimCenterLat, err = parseFloatRange(key, value, -90, 90)
	case "SIM_CENTER_LON":
		c.SimCenterLon, err = parseFloatRange(key, value, -180, 180)
	case "SIM_INTERVAL":
		c.SimIntervalMS, err = parsePositiveInt(key, value)

	// Session
	case "WATCH_MIN_DISTANCE":
		c.WatchMinDistance, err = parsePositiveFloat(key, value)

	// Export
	case "EXPORT_DIR":
		c.ExportDir = value

	// Mail
	case "MAIL_MODE":
		if value != MailSMTP && value != MailOutbox {
			return fmt.Errorf("MAIL_MODE must be %q or %q, got %q", MailSMTP, MailOutbox, value)
		}
		c.MailMode = value
	case "MAIL_FROM":
		c.MailFrom = value
	case "MAIL_TO":
		c.MailTo = nil
		for _, addr := range strings.Split(value, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				c.MailTo = append(c.MailTo, addr)
			}
		}
	case "MAIL_SUBJECT":
		c.MailSubject = value
	case "MAIL_BODY":
		c.MailBody = value
	case "SMTP_HOST":
		c.SMTPHost = value
	case "SMTP_PORT":
		c.SMTPPort, err = parsePositiveInt(key, value)
	case "SMTP_USERNAME":
		c.SMTPUsername = value
	case "SMTP_PASSWORD":
		c.SMTPPassword = value
	case "OUTBOX_DIR":
		c.OutboxDir = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parsePositiveInt(key, value)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Map
	case "MAP_LATITUDE_DELTA":
		c.MapLatitudeDelta, err = parsePositiveFloat(key, value)
	case "MAP_LONGITUDE_DELTA":
		c.MapLongitudeDelta, err = parsePositiveFloat(key, value)
	case "MAP_WIDTH":
		c.MapWidth, err = parsePositiveInt(key, value)
	case "MAP_HEIGHT":
		c.MapHeight, err = parsePositiveInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parsePositiveInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

func parsePositiveFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %g", key, v)
	}
	return v, nil
}

func parseFloatRange(key, value string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %g..%g, got %g", key, lo, hi, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	switch c.PositionSource {
	case SourceSerial:
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required for POSITION_SOURCE=%s", SourceSerial)
		}
	case SourceMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for POSITION_SOURCE=%s", SourceMQTT)
		}
	}

	if len(c.MailTo) == 0 {
		return fmt.Errorf("MAIL_TO is required")
	}
	if c.MailFrom == "" {
		return fmt.Errorf("MAIL_FROM is required")
	}
	if c.MailMode == MailSMTP && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required for MAIL_MODE=%s", MailSMTP)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
