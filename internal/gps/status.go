// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "fmt"

// Status is the state of a logging session.
type Status int

const (
	Stopped Status = iota
	Logging
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Logging:
		return "logging"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*s = Stopped
	case "logging":
		*s = Logging
	default:
		return fmt.Errorf("unknown session status %q", text)
	}
	return nil
}
