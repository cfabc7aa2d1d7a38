// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"context"
	"io"
	"sync"
)

// goroutineSub is a Subscription backed by one reader goroutine.
// Cancel stops the context, closes the underlying resource to unblock
// pending reads, and waits for the goroutine to return, so no callback
// runs after Cancel returns. Cancel must not be called from inside the
// watch callback.
type goroutineSub struct {
	cancel context.CancelFunc
	closer io.Closer
	done   chan struct{}

	once sync.Once
	err  error
}

func newGoroutineSub(cancel context.CancelFunc, closer io.Closer) *goroutineSub {
	return &goroutineSub{
		cancel: cancel,
		closer: closer,
		done:   make(chan struct{}),
	}
}

func (s *goroutineSub) Cancel() error {
	s.once.Do(func() {
		s.cancel()
		if s.closer != nil {
			s.err = s.closer.Close()
		}
		<-s.done
	})
	return s.err
}
