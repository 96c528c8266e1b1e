// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package poller keeps a value fresh by fetching it on a timer.
package poller

import (
	"context"
	"sync"
	"time"
)

// A Getter fetches the latest value.
type Getter[T any] func(context.Context) (T, error)

// A Poller holds the last value its Getter returned.
type Poller[T comparable] struct {
	getter   Getter[T]
	onError  func(error)
	onChange func(T)
	done     chan struct{}

	mu      sync.Mutex
	current T
}

// New returns a Poller whose value starts as initial. Getter errors are
// passed to onError, which may be nil.
func New[T comparable](initial T, getter Getter[T], onError func(error)) *Poller[T] {
	return &Poller[T]{
		getter:  getter,
		onError: onError,
		current: initial,
		done:    make(chan struct{}),
	}
}

// OnChange arranges for f to be called with each new value that differs
// from the previous one. It must be called before Start.
func (p *Poller[T]) OnChange(f func(T)) { p.onChange = f }

// Start polls every period in a new goroutine until ctx is done. Each poll
// gets at most one period to finish. Start must be called at most once.
func (p *Poller[T]) Start(ctx context.Context, period time.Duration) {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			pctx, cancel := context.WithTimeout(ctx, period)
			p.Poll(pctx)
			cancel()
		}
	}()
}

// Done is closed when the goroutine started by Start returns. It is never
// closed if Start is not called.
func (p *Poller[T]) Done() <-chan struct{} { return p.done }

// Poll calls the getter now, and reports whether the value changed. A
// failed poll leaves the value as it was.
func (p *Poller[T]) Poll(ctx context.Context) bool {
	next, err := p.getter(ctx)
	if err != nil {
		if p.onError != nil {
			p.onError(err)
		}
		return false
	}
	p.mu.Lock()
	changed := next != p.current
	p.current = next
	p.mu.Unlock()
	if changed && p.onChange != nil {
		p.onChange(next)
	}
	return changed
}

// Current returns the most recent value.
func (p *Poller[T]) Current() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
