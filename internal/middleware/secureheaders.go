// Copyright 2019-2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/safehtml-demo/wall/internal/log"
)

// policy is a Content-Security-Policy under construction.
type policy struct {
	directives []string
}

func (p *policy) add(directive string, values ...string) {
	p.directives = append(p.directives, strings.Join(append([]string{directive}, values...), " "))
}

func (p *policy) serialize() string {
	return strings.Join(p.directives, "; ")
}

// SecureHeaders adds a content-security-policy and other security-related
// headers to all responses. Each request gets a fresh nonce, available to
// handlers through GetNonce; only scripts carrying it may run.
func SecureHeaders(enableCSP bool) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce, err := generateNonce()
			if err != nil {
				log.Errorf(r.Context(), "SecureHeaders: %v", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if enableCSP {
				var p policy
				// Disallow plugin content: the wall does not use it.
				p.add("object-src", "'none'")
				// Disallow <base> URIs, which prevents attackers from changing the
				// locations of scripts loaded from relative URLs.
				p.add("base-uri", "'none'")
				// 'unsafe-inline' and the schemes only apply to browsers that
				// predate nonces and 'strict-dynamic'.
				p.add("script-src", fmt.Sprintf("'nonce-%s'", nonce), "'strict-dynamic'", "'unsafe-inline'", "https:", "http:")
				w.Header().Set("Content-Security-Policy", p.serialize())
			}
			// The nonce must not leak through the referrer.
			w.Header().Set("Referrer-Policy", "origin")
			// Don't allow frame embedding.
			w.Header().Set("X-Frame-Options", "deny")
			// Prevent MIME sniffing.
			w.Header().Set("X-Content-Type-Options", "nosniff")

			h.ServeHTTP(w, r.WithContext(setNonce(r.Context(), nonce)))
		})
	}
}
