// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalesce(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 10)
	l := RateLimit(func() {
		calls.Add(1)
		done <- struct{}{}
	}, 50*time.Millisecond)

	for i := 0; i < 5; i++ {
		l.Call()
	}
	if !l.Pending() {
		t.Fatal("no call pending")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("f was not called")
	}
	// Give a stray second timer a chance to show up.
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("got %d calls, want 1", got)
	}
	if l.Pending() {
		t.Error("still pending after firing")
	}

	// A call after firing starts a new window.
	l.Call()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("f was not called in the second window")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("got %d calls, want 2", got)
	}
}

func TestStop(t *testing.T) {
	var calls atomic.Int32
	l := RateLimit(func() { calls.Add(1) }, 30*time.Millisecond)
	if l.Stop() {
		t.Error("Stop with nothing pending reported true")
	}
	l.Call()
	if !l.Stop() {
		t.Error("Stop did not cancel the pending call")
	}
	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("got %d calls after Stop, want 0", got)
	}
}

func TestRate(t *testing.T) {
	if got := RateLimit(func() {}, 0).rate; got != DefaultRate {
		t.Errorf("zero rate became %v, want %v", got, DefaultRate)
	}
	defer func() {
		if recover() == nil {
			t.Error("negative rate did not panic")
		}
	}()
	RateLimit(func() {}, -time.Second)
}
