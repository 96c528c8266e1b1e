// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sanitizer removes tags and attributes that could potentially
// cause security issues from user-supplied wall items.
package sanitizer

import (
	"regexp"

	"github.com/google/safehtml"
	"github.com/microcosm-cc/bluemonday"
	"github.com/safehtml-demo/wall/internal/trust"
)

// policy keeps inline formatting only. Anything that can load a resource
// or run script, such as img, iframe, or event handler attributes, is removed.
var policy = newPolicy()

// langTag matches BCP 47 style language tags such as "en" or "pt-BR".
var langTag = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{1,8})*$`)

var sanitized = trust.Justify("output of the wall item sanitizer policy")

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"b", "i", "u", "s", "em", "strong", "small", "mark",
		"sub", "sup", "code", "kbd", "q", "span", "br",
	)
	p.AllowAttrs("title").Globally()
	p.AllowAttrs("dir").Matching(bluemonday.Direction).Globally()
	p.AllowAttrs("lang").Matching(langTag).Globally()
	p.AllowStyles("color", "background-color").Globally()

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	return p
}

// Sanitize returns the sanitized form of untrusted as safe HTML.
func Sanitize(untrusted string) safehtml.HTML {
	return trust.HTMLKnownToSatisfyContract(sanitized, policy.Sanitize(untrusted))
}

// SanitizeBytes returns a sanitized version of the input.
// It throws out any tags and attributes that are not explicitly allowed.
// The contents of script and style elements are dropped along with them.
func SanitizeBytes(b []byte) []byte {
	return policy.SanitizeBytes(b)
}
