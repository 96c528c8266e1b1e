// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package htmlcheck checks properties of parsed HTML documents. Tests of
// the wall page and its items fragment use it to assert on structure
// rather than on exact markup.
package htmlcheck

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// A Checker reports what is wrong with a node, or nil.
type Checker func(*html.Node) error

// Run parses the HTML read from r and applies checker to the document.
func Run(r io.Reader, checker Checker) error {
	doc, err := html.Parse(r)
	if err != nil {
		return err
	}
	return checker(doc)
}

// In returns a Checker that finds the first node matching selector and
// applies checkers to it. It fails if nothing matches, so In(selector) alone
// checks for presence. The empty selector matches the node itself. Nil
// checkers are skipped.
//
// In panics if selector is not valid; see parse for the syntax.
func In(selector string, checkers ...Checker) Checker {
	sel := mustParse(selector)
	return func(n *html.Node) error {
		m := query(n, sel)
		if m == nil {
			return fmt.Errorf("nothing matches %q", selector)
		}
		err := checkAll(m, checkers)
		if err != nil && selector != "" {
			err = fmt.Errorf("%s: %v", selector, err)
		}
		return err
	}
}

// NotIn returns a Checker that fails if any node matches selector.
func NotIn(selector string) Checker {
	sel := mustParse(selector)
	return func(n *html.Node) error {
		if m := query(n, sel); m != nil {
			return fmt.Errorf("%q matches <%s>", selector, m.Data)
		}
		return nil
	}
}

func checkAll(n *html.Node, checkers []Checker) error {
	for _, c := range checkers {
		if c == nil {
			continue
		}
		if err := c(n); err != nil {
			return err
		}
	}
	return nil
}

func mustParse(selector string) *selector {
	s, err := parse(selector)
	if err != nil {
		panic(fmt.Sprintf("htmlcheck: bad selector %q: %v", selector, err))
	}
	return s
}

// HasText returns a Checker that matches wantRegexp against the text of the
// node, which is all the text in its subtree, concatenated.
func HasText(wantRegexp string) Checker {
	re := regexp.MustCompile(wantRegexp)
	return func(n *html.Node) error {
		var b strings.Builder
		nodeText(n, &b)
		if text := b.String(); !re.MatchString(text) {
			return fmt.Errorf("text %q does not match `%s`", abbrev(text), wantRegexp)
		}
		return nil
	}
}

func nodeText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodeText(c, b)
	}
}

func abbrev(s string) string {
	if len(s) > 100 {
		return s[:97] + "..."
	}
	return s
}

// HasAttr returns a Checker that matches wantRegexp against the value of
// the named attribute. It fails if there is no such attribute.
func HasAttr(name, wantRegexp string) Checker {
	re := regexp.MustCompile(wantRegexp)
	return func(n *html.Node) error {
		v, ok := attr(n, name)
		if !ok {
			return fmt.Errorf("no attribute %q", name)
		}
		if !re.MatchString(v) {
			return fmt.Errorf("%s=%q does not match `%s`", name, v, wantRegexp)
		}
		return nil
	}
}

// HasHref checks that the node links to exactly href.
func HasHref(href string) Checker {
	return HasAttr("href", "^"+regexp.QuoteMeta(href)+"$")
}

// HasNoAttr returns a Checker that fails if the node has the named
// attribute.
func HasNoAttr(name string) Checker {
	return func(n *html.Node) error {
		if v, ok := attr(n, name); ok {
			return fmt.Errorf("unexpected %s=%q", name, v)
		}
		return nil
	}
}

// HasStyle returns a Checker that matches wantRegexp against one property
// of the node's inline style. Wall items are positioned this way.
func HasStyle(property, wantRegexp string) Checker {
	re := regexp.MustCompile(wantRegexp)
	return func(n *html.Node) error {
		style, _ := attr(n, "style")
		for _, decl := range strings.Split(style, ";") {
			k, v, ok := strings.Cut(decl, ":")
			if !ok || strings.TrimSpace(k) != property {
				continue
			}
			if v = strings.TrimSpace(v); !re.MatchString(v) {
				return fmt.Errorf("style %s: %q does not match `%s`", property, v, wantRegexp)
			}
			return nil
		}
		return fmt.Errorf("no %s in style %q", property, style)
	}
}

// NumChildren checks the number of element children of the node. Text and
// comments are not counted.
func NumChildren(want int) Checker {
	return func(n *html.Node) error {
		if got := len(elementChildren(n)); got != want {
			return fmt.Errorf("<%s> has %d element children, want %d", n.Data, got, want)
		}
		return nil
	}
}

// LastChild applies checkers to the last element child of the node. The
// server appends new items to the end of the wall, so this is the newest.
func LastChild(checkers ...Checker) Checker {
	return func(n *html.Node) error {
		cs := elementChildren(n)
		if len(cs) == 0 {
			return fmt.Errorf("<%s> has no element children", n.Data)
		}
		if err := checkAll(cs[len(cs)-1], checkers); err != nil {
			return fmt.Errorf("last child: %v", err)
		}
		return nil
	}
}

func elementChildren(n *html.Node) []*html.Node {
	var cs []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			cs = append(cs, c)
		}
	}
	return cs
}
