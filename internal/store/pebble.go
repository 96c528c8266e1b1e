// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/wall"
)

// Pebble is a Store backed by a Pebble database, so walls survive restarts.
// Each wall has two keys: "wall/<nonce>" holds the binary Update and
// "atime/<nonce>" holds the time of last access. Sweep removes walls whose
// access time is older than the idle TTL.
type Pebble struct {
	db  *pebble.DB
	ttl time.Duration
	now func() time.Time

	// mu serializes read-modify-write cycles. Pebble has no transactions.
	mu sync.Mutex
}

const (
	wallPrefix  = "wall/"
	atimePrefix = "atime/"
)

// OpenPebble opens the database at dir. Options may be nil.
func OpenPebble(dir string, opts *pebble.Options, idle time.Duration) (_ *Pebble, err error) {
	defer derrors.Wrap(&err, "OpenPebble(%q)", dir)
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db, ttl: idle, now: time.Now}, nil
}

func (p *Pebble) Create(ctx context.Context) (_ string, err error) {
	defer derrors.Wrap(&err, "Pebble.Create")
	p.mu.Lock()
	defer p.mu.Unlock()
	nonce := wall.NewNonce()
	return nonce, p.write(nonce, wall.Update{})
}

func (p *Pebble) Get(ctx context.Context, nonce string) (_ wall.Update, err error) {
	defer derrors.Wrap(&err, "Pebble.Get")
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.read(nonce)
	if err != nil {
		return wall.Update{}, err
	}
	if err := p.db.Set(atimeKey(nonce), p.timestamp(), pebble.NoSync); err != nil {
		return wall.Update{}, err
	}
	return u, nil
}

func (p *Pebble) Add(ctx context.Context, nonce string, item wall.WallItem) (_ wall.Update, err error) {
	defer derrors.Wrap(&err, "Pebble.Add")
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, err := p.read(nonce)
	if err != nil {
		return wall.Update{}, err
	}
	next, err := cur.With(item)
	if err != nil {
		return wall.Update{}, err
	}
	if err := p.write(nonce, next); err != nil {
		return wall.Update{}, err
	}
	return next, nil
}

// read returns the wall for nonce, treating an expired wall that has not
// yet been swept as missing.
func (p *Pebble) read(nonce string) (wall.Update, error) {
	at, closer, err := p.db.Get(atimeKey(nonce))
	if errors.Is(err, pebble.ErrNotFound) {
		return wall.Update{}, notFound(nonce)
	}
	if err != nil {
		return wall.Update{}, err
	}
	expired := p.expired(at)
	closer.Close()
	if expired {
		return wall.Update{}, notFound(nonce)
	}

	v, closer, err := p.db.Get(wallKey(nonce))
	if errors.Is(err, pebble.ErrNotFound) {
		return wall.Update{}, notFound(nonce)
	}
	if err != nil {
		return wall.Update{}, err
	}
	defer closer.Close()
	// UnmarshalUpdate copies everything it keeps out of v.
	return wall.UnmarshalUpdate(v)
}

func (p *Pebble) write(nonce string, u wall.Update) error {
	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Set(wallKey(nonce), wall.MarshalUpdate(u), nil); err != nil {
		return err
	}
	if err := b.Set(atimeKey(nonce), p.timestamp(), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// Sweep deletes walls that have not been accessed within the idle TTL and
// returns how many it removed.
func (p *Pebble) Sweep(ctx context.Context) (n int, err error) {
	defer derrors.Wrap(&err, "Pebble.Sweep")
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(atimePrefix),
		UpperBound: prefixEnd(atimePrefix),
	})
	if err != nil {
		return 0, err
	}
	b := p.db.NewBatch()
	defer b.Close()
	for ok := it.First(); ok; ok = it.Next() {
		if !p.expired(it.Value()) {
			continue
		}
		nonce := string(it.Key()[len(atimePrefix):])
		if err := b.Delete(wallKey(nonce), nil); err != nil {
			it.Close()
			return 0, err
		}
		if err := b.Delete(atimeKey(nonce), nil); err != nil {
			it.Close()
			return 0, err
		}
		n++
	}
	if err := it.Close(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, b.Commit(pebble.Sync)
}

// RunSweeper calls Sweep every period until ctx is done.
func (p *Pebble) RunSweeper(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Sweep(ctx)
			if err != nil {
				log.Errorf(ctx, "sweeping walls: %v", err)
				continue
			}
			if n > 0 {
				log.Infof(ctx, "swept %d idle walls", n)
			}
		}
	}
}

func (p *Pebble) Close() error { return p.db.Close() }

func (p *Pebble) timestamp() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(p.now().UnixNano()))
}

func (p *Pebble) expired(stamp []byte) bool {
	if len(stamp) != 8 {
		return true
	}
	last := time.Unix(0, int64(binary.BigEndian.Uint64(stamp)))
	return p.ttl > 0 && p.now().Sub(last) >= p.ttl
}

func wallKey(nonce string) []byte  { return []byte(wallPrefix + nonce) }
func atimeKey(nonce string) []byte { return []byte(atimePrefix + nonce) }

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
