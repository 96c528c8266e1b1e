// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htmlcheck

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// A selector is a small subset of CSS: compound selectors made of
// element names, #id, .class, [attr], [attr="value"], :nth-child(n) and
// :nth-of-type(n), joined by the descendant combinator (a space).
//
// A node matches a selector when it matches the first compound and, if
// there are more, one of its descendants matches the rest. The empty
// selector matches any node.
type selector struct {
	src      string
	compound []matcher
	rest     *selector
}

func (s *selector) String() string { return s.src }

type matcher func(*html.Node) bool

func (s *selector) matches(n *html.Node) bool {
	for _, m := range s.compound {
		if !m(n) {
			return false
		}
	}
	return true
}

// query returns the first node, in document order, of n's subtree that
// matches s, or nil.
func query(n *html.Node, s *selector) *html.Node {
	if s.matches(n) {
		if s.rest == nil {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if m := query(c, s.rest); m != nil {
				return m
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := query(c, s); m != nil {
			return m
		}
	}
	return nil
}

// parse parses a selector. Only ASCII input is accepted.
func parse(src string) (*selector, error) {
	for i := 0; i < len(src); i++ {
		if src[i] > 127 {
			return nil, errors.New("non-ASCII byte in selector")
		}
	}
	var head, tail *selector
	s := strings.TrimLeft(src, " ")
	for {
		compound, rest, err := parseCompound(s)
		if err != nil {
			return nil, fmt.Errorf("at %q: %v", s, err)
		}
		sel := &selector{src: s, compound: compound}
		if head == nil {
			head = sel
		} else {
			tail.rest = sel
		}
		tail = sel
		s = strings.TrimLeft(rest, " ")
		if s == "" {
			break
		}
	}
	head.src = src
	return head, nil
}

// parseCompound parses the matchers up to the next space.
func parseCompound(s string) ([]matcher, string, error) {
	var ms []matcher
	for s != "" && s[0] != ' ' {
		var (
			m   matcher
			err error
		)
		switch c := s[0]; {
		case isIdentStart(c):
			var name string
			name, s = ident(s)
			m = element(name)
		case c == '#' || c == '.':
			var name string
			name, s = ident(s[1:])
			if name == "" {
				return nil, "", fmt.Errorf("missing name after %q", c)
			}
			if c == '#' {
				m = attrEquals("id", name)
			} else {
				m = hasClass(name)
			}
		case c == '[':
			m, s, err = parseAttr(s[1:])
		case c == ':':
			m, s, err = parsePseudo(s[1:])
		default:
			return nil, "", fmt.Errorf("unexpected %q", c)
		}
		if err != nil {
			return nil, "", err
		}
		ms = append(ms, m)
	}
	return ms, s, nil
}

// parseAttr parses the rest of [name] or [name="value"].
func parseAttr(s string) (matcher, string, error) {
	name, s := ident(s)
	if name == "" {
		return nil, "", errors.New("missing attribute name")
	}
	if strings.HasPrefix(s, "]") {
		return attrPresent(name), s[1:], nil
	}
	if !strings.HasPrefix(s, `="`) {
		return nil, "", errors.New(`want ] or =" after attribute name`)
	}
	val, rest, ok := strings.Cut(s[2:], `"`)
	if !ok {
		return nil, "", errors.New("unterminated attribute value")
	}
	if !strings.HasPrefix(rest, "]") {
		return nil, "", errors.New("missing ] after attribute value")
	}
	return attrEquals(name, val), rest[1:], nil
}

// parsePseudo parses the rest of :nth-child(n) or :nth-of-type(n). Only
// positive integer arguments are supported.
func parsePseudo(s string) (matcher, string, error) {
	name, s := ident(s)
	if name != "nth-child" && name != "nth-of-type" {
		return nil, "", fmt.Errorf("unsupported pseudo-class %q", name)
	}
	arg, rest, ok := strings.Cut(strings.TrimPrefix(s, "("), ")")
	if !ok || !strings.HasPrefix(s, "(") {
		return nil, "", fmt.Errorf("want (n) after :%s", name)
	}
	k, err := strconv.Atoi(arg)
	if err != nil || k < 1 {
		return nil, "", fmt.Errorf(":%s argument %q is not a positive integer", name, arg)
	}
	return nth(k, name == "nth-of-type"), rest, nil
}

func isIdentStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '-' || c == '_'
}

// ident splits s after its leading identifier.
func ident(s string) (string, string) {
	i := 0
	for i < len(s) && (isIdentStart(s[i]) || i > 0 && '0' <= s[i] && s[i] <= '9') {
		i++
	}
	return s[:i], s[i:]
}

func element(name string) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func attr(n *html.Node, key string) (string, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrPresent(key string) matcher {
	return func(n *html.Node) bool {
		_, ok := attr(n, key)
		return ok
	}
}

func attrEquals(key, val string) matcher {
	return func(n *html.Node) bool {
		v, ok := attr(n, key)
		return ok && v == val
	}
}

func hasClass(class string) matcher {
	return func(n *html.Node) bool {
		v, _ := attr(n, "class")
		for _, f := range strings.Fields(v) {
			if f == class {
				return true
			}
		}
		return false
	}
}

// nth matches the k'th element child of its parent, counting only
// elements of the same name if sameType is set.
func nth(k int, sameType bool) matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Parent == nil {
			return false
		}
		i := 0
		for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || sameType && c.Data != n.Data {
				continue
			}
			i++
			if c == n {
				return i == k
			}
		}
		return false
	}
}
