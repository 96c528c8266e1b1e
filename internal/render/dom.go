// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"errors"
	"strings"

	"github.com/google/safehtml"
	"golang.org/x/net/html"
)

// Fragment parses h in the context of the element parent.
func Fragment(h safehtml.HTML, parent *html.Node) ([]*html.Node, error) {
	if parent == nil || parent.Type != html.ElementNode {
		return nil, errors.New("render.Fragment: context must be an element")
	}
	return html.ParseFragment(strings.NewReader(h.String()), parent)
}

// InsertBefore inserts h as siblings immediately before follower.
func InsertBefore(follower *html.Node, h safehtml.HTML) error {
	if follower.Parent == nil {
		return errors.New("render.InsertBefore: follower has no parent")
	}
	nodes, err := Fragment(h, follower.Parent)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		follower.Parent.InsertBefore(n, follower)
	}
	return nil
}

// PrependTo inserts h at the start of container.
func PrependTo(container *html.Node, h safehtml.HTML) error {
	if first := container.FirstChild; first != nil {
		return InsertBefore(first, h)
	}
	nodes, err := Fragment(h, container)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return nil
}

// RemoveBefore removes the children of container that precede stop. If stop
// is nil or not a child of container, every child is removed.
func RemoveBefore(container, stop *html.Node) {
	for c := container.FirstChild; c != nil && c != stop; c = container.FirstChild {
		container.RemoveChild(c)
	}
}

// Render returns the HTML serialization of n's children.
func Render(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
