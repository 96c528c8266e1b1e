// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/safehtml-demo/wall/internal/log"
)

// Panic returns a middleware that executes panicHandler on any panic
// originating from the delegate handler. A nil panicHandler serves a plain
// 500.
func Panic(panicHandler http.Handler) Middleware {
	if panicHandler == nil {
		panicHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
	}
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if e := recover(); e != nil {
					if e == http.ErrAbortHandler {
						panic(e)
					}
					log.Errorf(r.Context(), "middleware.Panic: %v\n%s", e, debug.Stack())
					panicHandler.ServeHTTP(w, r)
				}
			}()
			h.ServeHTTP(w, r)
		})
	}
}
