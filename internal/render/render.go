// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render turns wall items into HTML. Each Variant is a Renderer;
// callers pick one at construction time and pass it to whatever needs to
// draw items.
package render

import (
	"fmt"

	"github.com/google/safehtml"
	"github.com/google/safehtml/template"
	"github.com/safehtml-demo/wall/internal/sanitizer"
	"github.com/safehtml-demo/wall/internal/trust"
	"github.com/safehtml-demo/wall/internal/wall"
)

// A Renderer draws wall items.
type Renderer interface {
	// Variant reports which strategy this is.
	Variant() Variant
	// ItemHTML renders a single chip.
	ItemHTML(wall.WallItem) (safehtml.HTML, error)
	// ItemsHTML renders the chips for a whole wall, in order.
	ItemsHTML([]wall.WallItem) (safehtml.HTML, error)
	// PreviewHTML renders the content of the editor chip.
	PreviewHTML(untrusted string) safehtml.HTML
	// MakeItem builds an item from raw user input and a position.
	MakeItem(untrusted string, at wall.Point) wall.WallItem
}

// New returns the Renderer for v.
func New(v Variant) (Renderer, error) {
	switch v {
	case Fixed:
		return &renderer{variant: v, content: fixedContent, preview: sanitizer.Sanitize}, nil
	case Insecure:
		return &renderer{variant: v, content: insecureContent, preview: insecureHTML}, nil
	case OverEscaping:
		return &renderer{variant: v, content: overEscapingContent, preview: safehtml.HTMLEscaped}, nil
	}
	return nil, fmt.Errorf("render.New: unknown variant %v", v)
}

// MustNew is like New but panics on error.
func MustNew(v Variant) Renderer {
	r, err := New(v)
	if err != nil {
		panic(err)
	}
	return r
}

const itemTemplate = `<li class="wall-item" style="{{.Style}}">{{.Content}}</li>`

var itemTmpl = template.Must(template.New("item").Parse(itemTemplate))

var position = trust.Justify("integer percentages formatted by the renderer")

// leaksXSS is the justification used by the Insecure variant. It is wrong on
// purpose.
var leaksXSS = trust.Justify("INSECURE: user input is assumed to be harmless")

type renderer struct {
	variant Variant
	// content returns the chip body: a safehtml.HTML is inserted as is,
	// a string is escaped by the template.
	content func(wall.WallItem) any
	preview func(string) safehtml.HTML
}

func (r *renderer) Variant() Variant { return r.variant }

func (r *renderer) ItemHTML(it wall.WallItem) (safehtml.HTML, error) {
	h, err := itemTmpl.ExecuteToHTML(struct {
		Style   safehtml.Style
		Content any
	}{
		Style:   chipStyle(it.Centroid),
		Content: r.content(it),
	})
	if err != nil {
		return safehtml.HTML{}, fmt.Errorf("render %s item: %v", r.variant, err)
	}
	return h, nil
}

func (r *renderer) ItemsHTML(items []wall.WallItem) (safehtml.HTML, error) {
	hs := make([]safehtml.HTML, 0, len(items))
	for _, it := range items {
		h, err := r.ItemHTML(it)
		if err != nil {
			return safehtml.HTML{}, err
		}
		hs = append(hs, h)
	}
	return safehtml.HTMLConcat(hs...), nil
}

func (r *renderer) PreviewHTML(untrusted string) safehtml.HTML {
	return r.preview(untrusted)
}

func (r *renderer) MakeItem(untrusted string, at wall.Point) wall.WallItem {
	return wall.WallItem{HTMLUntrusted: untrusted, Centroid: at}
}

// fixedContent prefers HTML sanitized by the server and falls back to
// sanitizing locally, which is what the server will do anyway.
func fixedContent(it wall.WallItem) any {
	if it.HTML != nil {
		return it.HTML.HTML()
	}
	return sanitizer.Sanitize(it.HTMLUntrusted)
}

func insecureContent(it wall.WallItem) any {
	return insecureHTML(it.HTMLUntrusted)
}

func insecureHTML(s string) safehtml.HTML {
	return trust.HTMLKnownToSatisfyContract(leaksXSS, s)
}

// overEscapingContent hands the untrusted text to the template, which
// escapes it.
func overEscapingContent(it wall.WallItem) any {
	return it.HTMLUntrusted
}

func chipStyle(p wall.Point) safehtml.Style {
	return trust.StyleKnownToSatisfyContract(position,
		fmt.Sprintf("left: %d%%; top: %d%%", clampPercent(p.XPercent), clampPercent(p.YPercent)))
}

func clampPercent(v int32) int32 {
	return max(0, min(100, v))
}
