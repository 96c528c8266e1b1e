// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wall

import (
	"crypto/rand"
	"encoding/base64"
)

// nonceBytes is the number of random bytes in a wall nonce. 33 bytes
// encode to 44 characters with no padding.
const nonceBytes = 33

// minNonceLen is the shortest string ValidNonce accepts.
const minNonceLen = 16

// NewNonce returns a new unguessable wall identifier.
func NewNonce() string {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// ValidNonce reports whether s could have been produced by NewNonce.
func ValidNonce(s string) bool {
	if len(s) < minNonceLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '-', c == '_', c == '=':
		default:
			return false
		}
	}
	return true
}
