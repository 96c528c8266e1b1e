// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/safehtml-demo/wall/internal/log"
)

// Timeouts are the request deadlines set by Timeout.
type Timeouts struct {
	// Read bounds requests that only look at a wall: page loads, polls and
	// fragments.
	Read time.Duration
	// Write bounds requests that add items. If zero, Read is used.
	Write time.Duration
}

// For returns the deadline of a request with the given method.
func (t Timeouts) For(method string) time.Duration {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return t.Read
	}
	if t.Write == 0 {
		return t.Read
	}
	return t.Write
}

// Timeout returns a Middleware that gives each request the deadline its
// method calls for. Handlers see the deadline on the request context.
// Requests still running when it passes are logged.
func Timeout(t Timeouts) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := t.For(r.Method)
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			h.ServeHTTP(w, r.WithContext(ctx))
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Warningf(ctx, "%s %s ran past its %s deadline", r.Method, r.URL.Path, d)
			}
		})
	}
}
