// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats replaces a response with a JSON report about it. The wall
// server mounts it under /stats/ when configured to, so that the cost of
// rendering a wall can be measured without a browser.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"hash"
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

// Report describes one response.
type Report struct {
	Path        string
	Status      int
	ContentType string
	Bytes       int
	Digest      string // FNV-1a of the body, in hex

	FirstByteMillis int64
	LastByteMillis  int64

	// Timings holds the total milliseconds spent under each Timer name.
	Timings map[string]int64 `json:",omitempty"`
	// Values holds what handlers passed to Record, by key. Recording a
	// key twice keeps the later value.
	Values map[string]any `json:",omitempty"`
}

type recorderKey struct{}

// Stats returns a middleware that runs the handler against a recorder and
// writes the recorder's Report instead of the handler's response.
func Stats() func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newRecorder(r.URL.Path)
			h.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), recorderKey{}, rec)))
			data, err := json.Marshal(rec.report())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store")
			w.Write(data)
		})
	}
}

// Record stores value under key in the report of the current request. It
// does nothing outside of Stats.
func Record(ctx context.Context, key string, value any) {
	if rec, ok := ctx.Value(recorderKey{}).(*recorder); ok {
		rec.mu.Lock()
		rec.values[key] = value
		rec.mu.Unlock()
	}
}

// Timer starts timing name and returns the function that stops it:
//
//	defer stats.Timer(ctx, "render")()
//
// Time under the same name accumulates.
func Timer(ctx context.Context, name string) func() {
	rec, ok := ctx.Value(recorderKey{}).(*recorder)
	if !ok {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start).Milliseconds()
		rec.mu.Lock()
		rec.timings[name] += d
		rec.mu.Unlock()
	}
}

// recorder is the http.ResponseWriter the handler under Stats writes to.
// It keeps only what the Report needs.
type recorder struct {
	header http.Header
	start  time.Time
	sum    hash.Hash64
	path   string

	status    int
	n         int
	firstByte time.Duration

	mu      sync.Mutex
	timings map[string]int64
	values  map[string]any
}

func newRecorder(path string) *recorder {
	return &recorder{
		header:  http.Header{},
		start:   time.Now(),
		sum:     fnv.New64a(),
		path:    path,
		timings: map[string]int64{},
		values:  map[string]any{},
	}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	if r.n == 0 && len(b) > 0 {
		r.firstByte = time.Since(r.start)
	}
	r.n += len(b)
	r.sum.Write(b)
	return len(b), nil
}

func (r *recorder) report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return Report{
		Path:            r.path,
		Status:          status,
		ContentType:     r.header.Get("Content-Type"),
		Bytes:           r.n,
		Digest:          fmt.Sprintf("%016x", r.sum.Sum64()),
		FirstByteMillis: r.firstByte.Milliseconds(),
		LastByteMillis:  time.Since(r.start).Milliseconds(),
		Timings:         r.timings,
		Values:          r.values,
	}
}
