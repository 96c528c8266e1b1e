// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trust is the single place where strings are promoted to safehtml
// types without going through escaping or sanitization.
//
// Every promotion names a Justification. A Justification can only be built
// from a string constant, so each call site carries a human-readable reason
// that shows up in code review and cannot be computed from request data.
package trust

import (
	"github.com/google/safehtml"
	"github.com/google/safehtml/uncheckedconversions"
)

// stringConstant is unexported so that only untyped string constants can be
// converted to it by callers outside this package.
type stringConstant string

// A Justification explains why a promotion is safe.
type Justification struct {
	reason string
}

// Justify returns a Justification with the given reason, which must be a
// string constant.
func Justify(reason stringConstant) Justification {
	if reason == "" {
		panic("trust: empty justification")
	}
	return Justification{reason: string(reason)}
}

// String returns the reason.
func (j Justification) String() string { return j.reason }

// CheckedOnServer is used for HTML that arrives from the wall server, which
// sanitizes every item before storing it.
var CheckedOnServer = Justify("contract was checked on the server")

// HTMLKnownToSatisfyContract promotes s to safehtml.HTML. It panics if j is
// the zero Justification.
func HTMLKnownToSatisfyContract(j Justification, s string) safehtml.HTML {
	mustJustify(j)
	return uncheckedconversions.HTMLFromStringKnownToSatisfyTypeContract(s)
}

// StyleKnownToSatisfyContract promotes s to safehtml.Style. It panics if j is
// the zero Justification.
func StyleKnownToSatisfyContract(j Justification, s string) safehtml.Style {
	mustJustify(j)
	return uncheckedconversions.StyleFromStringKnownToSatisfyTypeContract(s)
}

func mustJustify(j Justification) {
	if j.reason == "" {
		panic("trust: missing justification")
	}
}
