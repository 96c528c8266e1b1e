// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// nonceLen is the number of random bytes in a CSP nonce, before encoding.
const nonceLen = 20

type nonceKey struct{}

// GetNonce returns the CSP nonce that SecureHeaders chose for the request
// ctx belongs to. Page templates put it on every script element.
func GetNonce(ctx context.Context) (string, bool) {
	n, ok := ctx.Value(nonceKey{}).(string)
	return n, ok
}

func setNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

// generateNonce returns nonceLen random bytes in standard base64, one of
// the encodings CSP allows in a nonce-source.
func generateNonce() (string, error) {
	b := make([]byte, nonceLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
