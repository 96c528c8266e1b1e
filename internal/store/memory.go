// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"time"

	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/lru"
	"github.com/safehtml-demo/wall/internal/wall"
)

// Memory is a Store that keeps walls in process memory. When full, the least
// recently used wall is dropped.
type Memory struct {
	walls *lru.Cache[string, *wall.Wall]
}

// NewMemory returns a Memory store holding at most maxWalls walls, each
// dropped after idle without access.
func NewMemory(maxWalls int, idle time.Duration) *Memory {
	return &Memory{walls: lru.NewExpiring[string, *wall.Wall](maxWalls, idle)}
}

func (m *Memory) Create(ctx context.Context) (string, error) {
	nonce := wall.NewNonce()
	m.walls.Put(nonce, wall.NewWall())
	return nonce, nil
}

func (m *Memory) Get(ctx context.Context, nonce string) (wall.Update, error) {
	w, ok := m.walls.Get(nonce)
	if !ok {
		return wall.Update{}, notFound(nonce)
	}
	return w.Snapshot(), nil
}

func (m *Memory) Add(ctx context.Context, nonce string, item wall.WallItem) (_ wall.Update, err error) {
	defer derrors.Wrap(&err, "Memory.Add")
	w, ok := m.walls.Get(nonce)
	if !ok {
		return wall.Update{}, notFound(nonce)
	}
	return w.Add(item)
}

func (m *Memory) Close() error { return nil }
