// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package debounce turns a bursty stream of resize signals into a sparse
// stream of re-layout calls. A re-layout runs once the signals have been
// quiet for a fixed interval.
package debounce

import (
	"sync"
	"time"
)

// DefaultQuiescence is the silence required after the last signal before
// the re-layout runs.
const DefaultQuiescence = 300 * time.Millisecond

// A Clock schedules callbacks. It is the host's schedule primitive;
// Timer.Stop is the matching cancel.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// A Timer is a handle to a callback scheduled on a Clock.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was already stopped.
	Stop() bool
}

// wallClock schedules callbacks with time.AfterFunc.
type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer delays a re-layout until Signal has not been called for the
// quiescence interval. At most one re-layout is scheduled at any time.
type Debouncer struct {
	quiescence time.Duration
	clock      Clock
	relayout   func()

	mu      sync.Mutex
	pending Timer  // nil when idle
	gen     uint64 // identifies the pending timer

	run sync.Mutex // serializes re-layouts
}

// New returns an idle Debouncer that calls relayout after quiescence of
// silence. A nil clock selects the wall clock. relayout is usually a
// method value, which carries its receiver.
func New(quiescence time.Duration, clock Clock, relayout func()) *Debouncer {
	if clock == nil {
		clock = wallClock{}
	}
	return &Debouncer{
		quiescence: quiescence,
		clock:      clock,
		relayout:   relayout,
	}
}

// Signal records one resize signal. Any re-layout that has been scheduled
// but has not fired is cancelled and a new one is scheduled quiescence
// from now.
func (d *Debouncer) Signal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.clock.AfterFunc(d.quiescence, func() { d.fire(gen) })
}

// Pending reports whether a re-layout is scheduled and has not fired.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Stop cancels the scheduled re-layout, if any, and reports whether one
// was cancelled. The Debouncer stays usable: a later Signal arms it again.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return false
	}
	d.pending.Stop()
	d.pending = nil
	d.gen++
	return true
}

// fire runs the re-layout for the timer identified by gen, unless that
// timer was cancelled or replaced after the clock dispatched it.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.run.Lock()
	defer d.run.Unlock()
	d.relayout()
}
