// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "encoding/json"

// Log is an ordered, immutable sequence of fixes.
//
// The zero value is an empty log. Append never touches the receiver's
// backing array, so a Log handed to another goroutine stays valid while
// the session keeps growing its own copy.
type Log struct {
	fixes []Fix
}

// NewLog builds a log from the given fixes. The slice is copied.
func NewLog(fixes ...Fix) Log {
	if len(fixes) == 0 {
		return Log{}
	}
	return Log{fixes: append([]Fix(nil), fixes...)}
}

// Append returns a new log with f added at the end.
func (l Log) Append(f Fix) Log {
	next := make([]Fix, len(l.fixes), len(l.fixes)+1)
	copy(next, l.fixes)
	return Log{fixes: append(next, f)}
}

// Len returns the number of fixes.
func (l Log) Len() int { return len(l.fixes) }

// At returns the i-th fix in insertion order.
func (l Log) At(i int) Fix { return l.fixes[i] }

// Last returns the most recent fix, or false if the log is empty.
func (l Log) Last() (Fix, bool) {
	if len(l.fixes) == 0 {
		return Fix{}, false
	}
	return l.fixes[len(l.fixes)-1], true
}

// Fixes returns a copy of the fixes in insertion order.
func (l Log) Fixes() []Fix {
	return append([]Fix(nil), l.fixes...)
}

// MarshalJSON encodes the log as a JSON array of fixes.
func (l Log) MarshalJSON() ([]byte, error) {
	if l.fixes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.fixes)
}

// UnmarshalJSON decodes a JSON array of fixes.
func (l *Log) UnmarshalJSON(data []byte) error {
	var fixes []Fix
	if err := json.Unmarshal(data, &fixes); err != nil {
		return err
	}
	*l = NewLog(fixes...)
	return nil
}
