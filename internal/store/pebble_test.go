// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/wall"
)

func newTestPebble(t *testing.T, fs vfs.FS) *Pebble {
	t.Helper()
	p, err := OpenPebble("walls", &pebble.Options{FS: fs}, DefaultIdleTTL)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPebble(t *testing.T) {
	p := newTestPebble(t, vfs.NewMem())
	defer p.Close()
	testStore(t, p)
}

func TestPebbleSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()
	p := newTestPebble(t, fs)
	nonce, err := p.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Add(ctx, nonce, wall.WallItem{HTMLUntrusted: "kept"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	p = newTestPebble(t, fs)
	defer p.Close()
	u, err := p.Get(ctx, nonce)
	if err != nil {
		t.Fatal(err)
	}
	if u.Version != 1 || len(u.Items.Items) != 1 || u.Items.Items[0].HTMLUntrusted != "kept" {
		t.Errorf("after reopen got %+v", u)
	}
}

func TestPebbleSweep(t *testing.T) {
	ctx := context.Background()
	p := newTestPebble(t, vfs.NewMem())
	defer p.Close()
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	idle, err := p.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	busy, err := p.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(6 * time.Minute)
	if _, err := p.Get(ctx, busy); err != nil {
		t.Fatal(err)
	}
	now = now.Add(6 * time.Minute)

	// Expired walls are invisible even before a sweep.
	if _, err := p.Get(ctx, idle); !errors.Is(err, derrors.NotFound) {
		t.Errorf("idle wall: got %v, want NotFound", err)
	}
	n, err := p.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d walls, want 1", n)
	}
	if _, _, err := p.db.Get(wallKey(idle)); !errors.Is(err, pebble.ErrNotFound) {
		t.Errorf("idle wall data still present: %v", err)
	}
	if _, err := p.Get(ctx, busy); err != nil {
		t.Errorf("busy wall: %v", err)
	}
}

func TestPrefixEnd(t *testing.T) {
	for _, test := range []struct {
		in   string
		want string
	}{
		{"atime/", "atime0"},
		{"a\xff", "b"},
	} {
		if got := string(prefixEnd(test.in)); got != test.want {
			t.Errorf("prefixEnd(%q) = %q, want %q", test.in, got, test.want)
		}
	}
	if got := prefixEnd("\xff\xff"); got != nil {
		t.Errorf("prefixEnd(ff ff) = %q, want nil", got)
	}
}
