// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package templates

import (
	"testing"

	"github.com/google/safehtml/template"
	"github.com/jba/templatecheck"
	"github.com/safehtml-demo/wall/internal/frontend"
	"github.com/safehtml-demo/wall/internal/frontend/templates"
	"github.com/safehtml-demo/wall/static"
)

func TestCheckFrontendTemplates(t *testing.T) {
	ts, err := templates.ParsePageTemplates(template.TrustedFSFromEmbed(static.FS))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range templates.Pages {
		if ts[p] == nil {
			t.Errorf("page %q was not parsed", p)
		}
	}
	// The error page is skipped: its "message" template is only added
	// when an error is rendered.
	t.Run("wall", func(t *testing.T) {
		if err := templatecheck.CheckSafe(ts["wall"], frontend.WallPage{}); err != nil {
			t.Fatal(err)
		}
	})
}

func TestPagesAreIndependent(t *testing.T) {
	ts, err := templates.ParsePageTemplates(template.TrustedFSFromEmbed(static.FS))
	if err != nil {
		t.Fatal(err)
	}
	// Each page defines its own "main"; parsing one must not replace
	// another's.
	if ts["wall"].Lookup("main") == ts["error"].Lookup("main") {
		t.Error("wall and error pages share a main template")
	}
}
