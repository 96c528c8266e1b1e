// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package page defines common fields shared by pages when rendering templates.
package page

import (
	"github.com/google/safehtml/template"
)

// BasePage contains fields shared by all pages when rendering templates.
type BasePage struct {
	// HTMLTitle is the value to use in the page’s <title> tag.
	HTMLTitle string

	// Nonce is the CSP nonce of the request. Scripts must carry it.
	Nonce string

	// WallVersion is the version of the wall rendered into the page, or 0
	// for pages that do not show a wall.
	WallVersion int32
}

func (p *BasePage) SetBasePage(bp BasePage) {
	*p = bp
}

// ErrorPage contains fields for rendering a HTTP error page.
type ErrorPage struct {
	BasePage
	TemplateName    string
	MessageTemplate template.TrustedTemplate
	MessageData     any
}
