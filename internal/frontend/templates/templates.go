// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package templates parses the HTML templates of the wall site.
package templates

import (
	"fmt"
	"path"

	"github.com/google/safehtml/template"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Pages names the page templates. Page p lives in frontend/p/ and is
// executed through the layout in frontend/frontend.tmpl, which calls the
// page's "main" and "scripts" templates.
var Pages = []string{"error", "wall"}

var funcs = template.FuncMap{
	// title turns a variant name like "overescaping" into "Overescaping".
	"title": cases.Title(language.English).String,
}

// ParsePageTemplates parses the layout once, then each page on top of a
// clone of it. The result is keyed by page name.
func ParsePageTemplates(fsys template.TrustedFS) (map[string]*template.Template, error) {
	layout, err := template.New("frontend.tmpl").Funcs(funcs).ParseFS(fsys, "frontend/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	ts := make(map[string]*template.Template, len(Pages))
	for _, p := range Pages {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, path.Join("frontend", p, "*.tmpl")); err != nil {
			return nil, fmt.Errorf("parsing page %q: %w", p, err)
		}
		if t.Lookup("main") == nil {
			return nil, fmt.Errorf("page %q defines no main template", p)
		}
		ts[p] = t
	}
	return ts, nil
}
