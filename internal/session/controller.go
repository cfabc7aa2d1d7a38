// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session records GPS fixes between Start and Stop.
package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/position"
)

// Watcher opens position subscriptions. position.Service satisfies it.
type Watcher interface {
	Watch(ctx context.Context, opts position.WatchOptions, fn func(gps.Sample)) (position.Subscription, error)
}

// Snapshot is an immutable view of the session at one point in time.
type Snapshot struct {
	SessionID string     `json:"session_id,omitempty"`
	Status    gps.Status `json:"status"`
	Log       gps.Log    `json:"fixes"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt time.Time  `json:"stopped_at"`
}

// Controller owns the logging state machine:
//
//	Stopped --Start--> Logging --Stop--> Stopped
//
// The position subscription exists exactly while the status is Logging.
// Start clears the log; Stop keeps it for export.
type Controller struct {
	watcher Watcher
	opts    position.WatchOptions

	mu        sync.Mutex
	status    gps.Status
	log       gps.Log
	sub       position.Subscription
	gen       uint64 // bumped on every transition; callbacks of older subscriptions are dropped
	sessionID string
	startedAt time.Time
	stoppedAt time.Time

	// Snapshots are queued under mu and delivered in order by whichever
	// goroutine finds the queue idle.
	pending   []Snapshot
	draining  bool
	observers map[int]func(Snapshot)
	nextObsID int

	now func() time.Time
}

// NewController returns a stopped controller that subscribes through w.
// A zero MinDistance in opts is replaced by position.DefaultMinDistance.
// Sessions always watch with HighAccuracy.
func NewController(w Watcher, opts position.WatchOptions) *Controller {
	if opts.MinDistance == 0 {
		opts.MinDistance = position.DefaultMinDistance
	}
	opts.HighAccuracy = true
	return &Controller{
		watcher:   w,
		opts:      opts,
		observers: make(map[int]func(Snapshot)),
		now:       time.Now,
	}
}

// Start begins a new logging session. It is a no-op while a session is
// already running. The previous log is discarded.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status == gps.Logging {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.status = gps.Logging
	c.log = gps.Log{}
	c.sessionID = uuid.NewString()
	c.startedAt = c.now()
	c.stoppedAt = time.Time{}
	c.publishLocked()

	sub, err := c.watcher.Watch(ctx, c.opts, func(s gps.Sample) { c.onFix(gen, s) })

	c.mu.Lock()
	if err != nil {
		if c.gen == gen {
			c.gen++
			c.status = gps.Stopped
			c.stoppedAt = c.now()
			c.publishLocked()
		} else {
			c.mu.Unlock()
		}
		return fmt.Errorf("session: watch position: %w", err)
	}
	if c.gen != gen {
		// Stop ran while we were subscribing.
		c.mu.Unlock()
		if err := sub.Cancel(); err != nil {
			log.Printf("session: cancel stale subscription: %v", err)
		}
		return nil
	}
	c.sub = sub
	id := c.sessionID
	c.mu.Unlock()

	log.Printf("session: logging started (session %s, min distance %.1f m)", id, c.opts.MinDistance)
	return nil
}

// onFix is the subscription callback for generation gen.
func (c *Controller) onFix(gen uint64, s gps.Sample) {
	c.mu.Lock()
	if gen != c.gen || c.status != gps.Logging {
		c.mu.Unlock()
		return
	}
	if !s.HasAccuracy() {
		c.mu.Unlock()
		return
	}
	c.log = c.log.Append(s.Fix())
	c.publishLocked()
}

// Stop ends the running session and releases the subscription. The log
// is kept. Calling Stop while stopped does nothing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.status == gps.Stopped {
		c.mu.Unlock()
		return nil
	}
	sub := c.sub
	c.sub = nil
	c.gen++
	c.status = gps.Stopped
	c.stoppedAt = c.now()
	n := c.log.Len()
	c.publishLocked()

	// sub is nil when Stop overtakes an in-flight Start; Start cancels it then.
	if sub != nil {
		if err := sub.Cancel(); err != nil {
			return fmt.Errorf("session: cancel subscription: %w", err)
		}
	}
	log.Printf("session: logging stopped with %d fixes", n)
	return nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Status returns the current session status.
func (c *Controller) Status() gps.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Log returns the current log. The value is immutable.
func (c *Controller) Log() gps.Log {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log
}

// Observe registers fn to receive a snapshot after every accepted fix and
// every status change, in the order the changes happened. fn must not
// block for long: it runs on whichever goroutine is delivering. The
// returned func unregisters fn.
func (c *Controller) Observe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: c.sessionID,
		Status:    c.status,
		Log:       c.log,
		StartedAt: c.startedAt,
		StoppedAt: c.stoppedAt,
	}
}

// publishLocked must be called with mu held; it queues the current
// snapshot, releases mu and, unless another goroutine is already
// delivering, notifies observers until the queue is empty.
func (c *Controller) publishLocked() {
	c.pending = append(c.pending, c.snapshotLocked())
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true

	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		observers := c.observerList()
		c.mu.Unlock()

		for _, snap := range batch {
			for _, fn := range observers {
				fn(snap)
			}
		}

		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func (c *Controller) observerList() []func(Snapshot) {
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fns := make([]func(Snapshot), len(ids))
	for i, id := range ids {
		fns[i] = c.observers[id]
	}
	return fns
}
