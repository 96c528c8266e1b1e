// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache stores rendered wall fragments in redis.
//
// A fragment is the server rendering of a wall's items at one version, in
// one variant. Its key names all three, so a fragment never goes stale; it
// only stops being requested once the wall moves on.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/safehtml-demo/wall/internal/derrors"
)

// A Cache reads and writes fragments through a redis client.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// FragmentKey returns the key of the rendered items of a wall at a version,
// for one rendering variant.
func FragmentKey(nonce, variant string, version int32) string {
	return fmt.Sprintf("%s%s@%d", wallPrefix(nonce), variant, version)
}

func wallPrefix(nonce string) string {
	return "frag:" + nonce + "/"
}

// Get returns the value stored under key. A missing or expired key is not
// an error: Get returns nil, nil.
func (c *Cache) Get(ctx context.Context, key string) (_ []byte, err error) {
	defer derrors.Wrap(&err, "cache.Get(%q)", key)
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// Put stores data under key for ttl. A zero ttl keeps it until DropWall.
func (c *Cache) Put(ctx context.Context, key string, data []byte, ttl time.Duration) (err error) {
	defer derrors.Wrap(&err, "cache.Put(%q, %d bytes, %s)", key, len(data), ttl)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// DropWall removes every fragment of the wall. Keys are found with SCAN
// and unlinked in batches of at most batchSize.
func (c *Cache) DropWall(ctx context.Context, nonce string) (err error) {
	defer derrors.Wrap(&err, "cache.DropWall(%q)", nonce)
	iter := c.client.Scan(ctx, 0, wallPrefix(nonce)+"*", int64(batchSize)).Iterator()
	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.client.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

// batchSize is the SCAN count hint and the most keys passed to one UNLINK.
// It is a variable so tests can make batches small.
var batchSize = 100
