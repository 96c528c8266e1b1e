// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store keeps walls between requests.
//
// Walls are identified by an unguessable nonce and are forgotten once they
// have not been accessed for a while.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/wall"
)

const (
	// DefaultMaxWalls is the number of walls an in-memory store holds.
	DefaultMaxWalls = 1000
	// DefaultIdleTTL is how long a wall survives without being accessed.
	DefaultIdleTTL = 10 * time.Minute
)

// A Store holds walls.
type Store interface {
	// Create makes a new, empty wall and returns its nonce.
	Create(ctx context.Context) (nonce string, err error)
	// Get returns a snapshot of the wall. It returns an error wrapping
	// derrors.NotFound if there is no such wall.
	Get(ctx context.Context, nonce string) (wall.Update, error)
	// Add appends item to the wall and returns the new snapshot.
	Add(ctx context.Context, nonce string, item wall.WallItem) (wall.Update, error)
	// Close releases any resources held by the store.
	Close() error
}

func notFound(nonce string) error {
	return fmt.Errorf("wall %.8s…: %w", nonce, derrors.NotFound)
}
