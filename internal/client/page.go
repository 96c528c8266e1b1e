// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/safehtml-demo/wall/internal/debounce"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/render"
	"github.com/safehtml-demo/wall/internal/wall"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// emptyPage is the document used when the page is not loaded from a server.
const emptyPage = `<!DOCTYPE html><html><body data-wall-version="0">` +
	`<ul class="Wall" id="wall"><li class="wall-item Wall-chip" id="chip"></li></ul>` +
	`</body></html>`

// A Page is a client's view of a wall: a <ul> of chips whose last child is
// the editor chip. It is safe for concurrent use.
type Page struct {
	renderer render.Renderer
	preview  *debounce.Limiter

	mu    sync.Mutex
	doc   *html.Node
	body  *html.Node
	wall  *html.Node
	chip  *html.Node
	draft string
	// drawn is the draft the editor chip currently shows.
	drawn string
}

// NewPage returns an empty page that draws with r.
func NewPage(r render.Renderer) *Page {
	p, err := ParsePage(strings.NewReader(emptyPage), r)
	if err != nil {
		panic(fmt.Sprintf("client.NewPage: %v", err))
	}
	return p
}

// ParsePage reads a wall page served by the wall server.
func ParsePage(rd io.Reader, r render.Renderer) (_ *Page, err error) {
	defer derrors.Wrap(&err, "ParsePage")
	doc, err := html.Parse(rd)
	if err != nil {
		return nil, err
	}
	p := &Page{renderer: r, doc: doc}
	p.body = find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	p.wall = find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Ul && attr(n, "id") == "wall" })
	if p.body == nil || p.wall == nil {
		return nil, fmt.Errorf("no wall: %w", derrors.InvalidArgument)
	}
	// The wall holds only chips, as it does after Replace.
	for c := p.wall.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.ElementNode {
			p.wall.RemoveChild(c)
		}
		c = next
	}
	if c := p.wall.LastChild; c != nil && attr(c, "id") == "chip" {
		p.chip = c
	}
	if p.chip == nil {
		return nil, fmt.Errorf("wall does not end with the editor chip: %w", derrors.InvalidArgument)
	}
	p.preview = debounce.RateLimit(p.renderPreview, debounce.DefaultRate)
	return p, nil
}

// Version returns the wall version recorded on the page.
func (p *Page) Version() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, _ := strconv.ParseInt(attr(p.body, "data-wall-version"), 10, 32)
	return int32(v)
}

// Replace redraws every chip from u, dropping optimistic chips.
func (p *Page) Replace(u wall.Update) error {
	h, err := p.renderer.ItemsHTML(u.Items.Items)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	render.RemoveBefore(p.wall, p.chip)
	if err := render.InsertBefore(p.chip, h); err != nil {
		return err
	}
	setAttr(p.body, "data-wall-version", strconv.Itoa(int(u.Version)))
	return nil
}

// AddOptimistic shows item right away, before the server has accepted it.
// The next Replace removes it.
func (p *Page) AddOptimistic(item wall.WallItem) error {
	h, err := p.renderer.ItemHTML(item)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return render.InsertBefore(p.chip, h)
}

// SetDraft records the text being edited. The editor chip is redrawn at
// most once per debounce period.
func (p *Page) SetDraft(untrusted string) {
	p.mu.Lock()
	p.draft = untrusted
	p.mu.Unlock()
	p.preview.Call()
}

// Draft returns the text being edited.
func (p *Page) Draft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

func (p *Page) renderPreview() {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.renderer.PreviewHTML(p.draft)
	p.drawn = p.draft
	for c := p.chip.FirstChild; c != nil; c = p.chip.FirstChild {
		p.chip.RemoveChild(c)
	}
	if err := render.PrependTo(p.chip, h); err != nil {
		log.Errorf(context.Background(), "drawing preview: %v", err)
	}
}

// WaitPreview blocks until the editor chip shows the current draft or
// timeout elapses, and reports whether it does.
func (p *Page) WaitPreview(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		done := p.drawn == p.draft
		p.mu.Unlock()
		if done {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Close cancels a pending preview.
func (p *Page) Close() {
	p.preview.Stop()
}

// ItemsHTML returns the markup of the chips, not including the editor chip.
func (p *Page) ItemsHTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	for c := p.wall.FirstChild; c != nil && c != p.chip; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// PreviewHTML returns the markup inside the editor chip.
func (p *Page) PreviewHTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return render.Render(p.chip)
}

// Items returns the text of each chip, not including the editor chip.
func (p *Page) Items() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var items []string
	for c := p.wall.FirstChild; c != nil && c != p.chip; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		var b strings.Builder
		text(c, &b)
		items = append(items, b.String())
	}
	return items
}

// HTML returns the whole document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	if err := html.Render(&b, p.doc); err != nil {
		return "", err
	}
	return b.String(), nil
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := find(c, match); m != nil {
			return m
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func text(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			text(c, b)
		}
	}
}
