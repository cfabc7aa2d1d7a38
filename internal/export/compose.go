// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"context"
	"fmt"
)

// Outcome is how a compose action ended.
type Outcome int

const (
	OutcomeNone Outcome = iota // nothing was composed
	OutcomeSent
	OutcomeSaved
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSent:
		return "sent"
	case OutcomeSaved:
		return "saved"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Composer prepares a message with one attachment and dispatches it.
// It blocks until the message is sent, saved or abandoned.
type Composer interface {
	ComposeWithAttachment(ctx context.Context, path string) (Outcome, error)
}
