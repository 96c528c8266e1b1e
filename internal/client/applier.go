// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"sync"

	"github.com/safehtml-demo/wall/internal/wall"
)

// An Applier applies updates in version order. Updates that are not newer
// than the last one applied are dropped, so the same snapshot arriving from
// both a poll and a post is applied once.
type Applier struct {
	apply func(wall.Update) error

	mu      sync.Mutex
	version int32
}

// NewApplier returns an Applier that has already seen version and calls
// apply for each newer update.
func NewApplier(version int32, apply func(wall.Update) error) *Applier {
	return &Applier{apply: apply, version: version}
}

// Apply calls the apply function with u if u is newer than every update
// applied so far, and reports whether it did. The version only advances
// when the apply function succeeds.
func (a *Applier) Apply(u wall.Update) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u.Version <= a.version {
		return false, nil
	}
	if err := a.apply(u); err != nil {
		return false, err
	}
	a.version = u.Version
	return true, nil
}

// Version returns the version of the last update applied.
func (a *Applier) Version() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// Reset sets the version without applying anything. It is used after the
// whole page has been loaded from the server.
func (a *Applier) Reset(version int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.version = version
}
