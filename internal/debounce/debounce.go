// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debounce folds bursts of calls into a single trailing call.
package debounce

import (
	"fmt"
	"sync"
	"time"
)

// DefaultRate is the delay used when RateLimit is given zero.
const DefaultRate = 100 * time.Millisecond

// A Limiter calls a function at most once per window. The first Call in a
// window starts a timer; later calls in the same window are absorbed by it.
// The timer is cleared only when it fires, so a steady stream of calls
// still produces one call of f per window.
type Limiter struct {
	f    func()
	rate time.Duration

	mu      sync.Mutex
	pending *time.Timer
}

// RateLimit returns a Limiter for f. A zero rate means DefaultRate.
// RateLimit panics if rate is negative.
func RateLimit(f func(), rate time.Duration) *Limiter {
	if rate == 0 {
		rate = DefaultRate
	}
	if rate < 0 {
		panic(fmt.Sprintf("debounce: negative rate %v", rate))
	}
	return &Limiter{f: f, rate: rate}
}

// Call schedules f to run once the current window closes.
func (l *Limiter) Call() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		return
	}
	l.pending = time.AfterFunc(l.rate, l.fire)
}

func (l *Limiter) fire() {
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
	l.f()
}

// Stop cancels a pending call. It reports whether a call was pending.
func (l *Limiter) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return false
	}
	stopped := l.pending.Stop()
	l.pending = nil
	return stopped
}

// Pending reports whether a call is scheduled.
func (l *Limiter) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil
}
