// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"strings"
	"testing"

	"github.com/google/safehtml"
	"github.com/safehtml-demo/wall/internal/trust"
	"golang.org/x/net/html"
)

func mustHTML(s string) safehtml.HTML {
	return trust.HTMLKnownToSatisfyContract(trust.Justify("test fixture"), s)
}

// wallList returns a parsed <ul> holding only the editor chip.
func wallList(t *testing.T) (ul, chip *html.Node) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(`<ul id="wall"><li id="chip"></li></ul>`))
	if err != nil {
		t.Fatal(err)
	}
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch attr(n, "id") {
			case "wall":
				ul = n
			case "chip":
				chip = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if ul == nil || chip == nil {
		t.Fatal("missing wall or chip")
	}
	return ul, chip
}

func mustRender(t *testing.T, n *html.Node) string {
	t.Helper()
	s, err := Render(n)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDOMEdits(t *testing.T) {
	ul, chip := wallList(t)

	if err := InsertBefore(chip, mustHTML(`<li>a</li>`)); err != nil {
		t.Fatal(err)
	}
	if err := InsertBefore(chip, mustHTML(`<li>b</li>`)); err != nil {
		t.Fatal(err)
	}
	if got, want := mustRender(t, ul), `<li>a</li><li>b</li><li id="chip"></li>`; got != want {
		t.Errorf("after InsertBefore: got %q, want %q", got, want)
	}

	RemoveBefore(ul, chip)
	if got, want := mustRender(t, ul), `<li id="chip"></li>`; got != want {
		t.Errorf("after RemoveBefore: got %q, want %q", got, want)
	}

	if err := PrependTo(ul, mustHTML(`<li>x</li><li>y</li>`)); err != nil {
		t.Fatal(err)
	}
	if got, want := mustRender(t, ul), `<li>x</li><li>y</li><li id="chip"></li>`; got != want {
		t.Errorf("after PrependTo: got %q, want %q", got, want)
	}

	RemoveBefore(ul, nil)
	if err := PrependTo(ul, mustHTML(`<li>z</li>`)); err != nil {
		t.Fatal(err)
	}
	if got, want := mustRender(t, ul), `<li>z</li>`; got != want {
		t.Errorf("PrependTo on empty list: got %q, want %q", got, want)
	}
}

func TestInsertBeforeDetached(t *testing.T) {
	if err := InsertBefore(&html.Node{Type: html.ElementNode, Data: "li"}, mustHTML("x")); err == nil {
		t.Error("InsertBefore on a detached node succeeded")
	}
}
