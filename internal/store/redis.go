// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/wall"
)

// Redis is a Store that keeps each wall as a binary Update under its own key.
// Keys expire after the idle TTL, which is refreshed on every access.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// maxAddAttempts bounds the optimistic-locking retries in Add.
const maxAddAttempts = 10

// NewRedis returns a Redis store using client.
func NewRedis(client *redis.Client, idle time.Duration) *Redis {
	return &Redis{client: client, ttl: idle}
}

func redisKey(nonce string) string { return "wall:" + nonce }

func (r *Redis) Create(ctx context.Context) (_ string, err error) {
	defer derrors.Wrap(&err, "Redis.Create")
	for {
		nonce := wall.NewNonce()
		ok, err := r.client.SetNX(ctx, redisKey(nonce), wall.MarshalUpdate(wall.Update{}), r.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return nonce, nil
		}
	}
}

func (r *Redis) Get(ctx context.Context, nonce string) (_ wall.Update, err error) {
	defer derrors.Wrap(&err, "Redis.Get")
	key := redisKey(nonce)
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return wall.Update{}, notFound(nonce)
	}
	if err != nil {
		return wall.Update{}, err
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return wall.Update{}, err
	}
	return wall.UnmarshalUpdate(b)
}

// Add appends item under WATCH so that concurrent adds from other server
// instances are never lost.
func (r *Redis) Add(ctx context.Context, nonce string, item wall.WallItem) (_ wall.Update, err error) {
	defer derrors.Wrap(&err, "Redis.Add")
	key := redisKey(nonce)
	var next wall.Update
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return notFound(nonce)
		}
		if err != nil {
			return err
		}
		cur, err := wall.UnmarshalUpdate(b)
		if err != nil {
			return err
		}
		next, err = cur.With(item)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, wall.MarshalUpdate(next), r.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxAddAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return wall.Update{}, err
		}
		return next, nil
	}
	return wall.Update{}, fmt.Errorf("gave up after %d attempts: %w", maxAddAttempts, derrors.Conflict)
}

// Close does nothing; the client belongs to the caller.
func (r *Redis) Close() error { return nil }
