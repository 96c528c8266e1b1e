// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wall defines the wall data model: items posted by users, the
// versioned wall that holds them, and its JSON and binary encodings.
package wall

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/google/safehtml"
	"github.com/safehtml-demo/wall/internal/derrors"
)

// SafeHTMLKey is the JSON key under which a SafeHTMLProto carries its value.
const SafeHTMLKey = "privateDoNotAccessOrElseSafeHtmlWrappedValue"

// Point is a position expressed as percentages of a container's width and
// height. Values outside 0..100 are carried as is.
type Point struct {
	XPercent int32 `json:"xPercent,omitempty"`
	YPercent int32 `json:"yPercent,omitempty"`
}

// SafeHTMLProto carries HTML that has already passed a contract check.
type SafeHTMLProto struct {
	html safehtml.HTML
}

// NewSafeHTMLProto wraps h.
func NewSafeHTMLProto(h safehtml.HTML) *SafeHTMLProto {
	return &SafeHTMLProto{html: h}
}

// HTML returns the wrapped value.
func (p *SafeHTMLProto) HTML() safehtml.HTML {
	if p == nil {
		return safehtml.HTML{}
	}
	return p.html
}

// Equal reports whether p and q wrap the same HTML.
func (p *SafeHTMLProto) Equal(q *SafeHTMLProto) bool {
	if p == nil || q == nil {
		return p == q
	}
	return p.html.String() == q.html.String()
}

func (p *SafeHTMLProto) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{SafeHTMLKey: p.HTML().String()})
}

// A WallItem is a single piece of user content on a wall.
// HTML is nil until the item has been sanitized.
type WallItem struct {
	HTML          *SafeHTMLProto `json:"html,omitempty"`
	HTMLUntrusted string         `json:"htmlUntrusted,omitempty"`
	Centroid      Point          `json:"centroid,omitzero"`
}

// WallItems is an ordered list of items.
type WallItems struct {
	Items []WallItem `json:"item,omitempty"`
}

// Clone returns a deep copy of w.
func (w WallItems) Clone() WallItems {
	if w.Items == nil {
		return WallItems{}
	}
	items := make([]WallItem, len(w.Items))
	for i, it := range w.Items {
		if it.HTML != nil {
			it.HTML = NewSafeHTMLProto(it.HTML.html)
		}
		items[i] = it
	}
	return WallItems{Items: items}
}

// An Update is a full snapshot of a wall together with its version.
type Update struct {
	Items   WallItems `json:"items,omitzero"`
	Version int32     `json:"version,omitempty"`
}

// Clone returns a deep copy of u.
func (u Update) Clone() Update {
	return Update{Items: u.Items.Clone(), Version: u.Version}
}

// ErrVersionOverflow is returned when a wall's version counter cannot be
// incremented.
var ErrVersionOverflow = fmt.Errorf("wall version overflow: %w", derrors.Conflict)

// With returns a copy of u with item appended and the version bumped.
// u is not modified.
func (u Update) With(item WallItem) (Update, error) {
	if u.Version >= math.MaxInt32 {
		return Update{}, ErrVersionOverflow
	}
	next := u.Clone()
	next.Items.Items = append(next.Items.Items, WallItems{Items: []WallItem{item}}.Clone().Items...)
	next.Version++
	return next, nil
}

// Wall is a versioned list of items that is safe for concurrent use.
type Wall struct {
	mu      sync.Mutex
	current Update
}

// NewWall returns an empty wall at version 0.
func NewWall() *Wall {
	return &Wall{}
}

// Restore returns a wall whose state is u.
func Restore(u Update) *Wall {
	return &Wall{current: u.Clone()}
}

// Snapshot returns an atomic copy of the wall.
func (w *Wall) Snapshot() Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.Clone()
}

// Version returns the current version. It only increases, so it can be
// compared with a version sent by a client to decide whether anything
// changed.
func (w *Wall) Version() int32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.Version
}

// Add atomically appends item and bumps the version, returning the new
// snapshot.
func (w *Wall) Add(item WallItem) (Update, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := w.current.With(item)
	if err != nil {
		return Update{}, err
	}
	w.current = next
	return next.Clone(), nil
}
