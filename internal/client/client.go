// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client is a headless wall client. It keeps a Page in sync with a
// wall server the way the browser script does: it polls for updates with
// the last version it has seen, posts new items, and draws them with a
// render.Renderer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/poller"
	"github.com/safehtml-demo/wall/internal/render"
	"github.com/safehtml-demo/wall/internal/unpack"
	"github.com/safehtml-demo/wall/internal/wall"
	"golang.org/x/time/rate"
)

// ErrOrphaned is returned when the wall no longer exists on the server.
var ErrOrphaned = fmt.Errorf("wall is gone: %w", derrors.Orphaned)

const (
	// DefaultPollPeriod is how often Watch polls.
	DefaultPollPeriod = 5 * time.Second
	// DefaultPostQPS bounds how fast Post sends items.
	DefaultPostQPS = 2
)

// Config configures a Client.
type Config struct {
	// BaseURL is the scheme and host of the wall server, as in
	// "http://localhost:8080".
	BaseURL string
	// Nonce names the wall.
	Nonce string
	// Renderer draws items on the client's page. If nil, the Fixed
	// renderer is used.
	Renderer render.Renderer
	// HTTPClient is used for all requests. If nil, http.DefaultClient is
	// used.
	HTTPClient *http.Client
	// PostQPS bounds the rate of Post. If zero, DefaultPostQPS is used.
	PostQPS float64
}

// A Client follows one wall.
type Client struct {
	baseURL    string
	nonce      string
	renderer   render.Renderer
	httpClient *http.Client
	limiter    *rate.Limiter

	// mu guards page and applier, which Load replaces.
	mu      sync.Mutex
	page    *Page
	applier *Applier
}

// New returns a Client with an empty page at version 0.
func New(cfg Config) (_ *Client, err error) {
	defer derrors.Wrap(&err, "client.New(%q, %.8s)", cfg.BaseURL, cfg.Nonce)
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, err
	}
	if !wall.ValidNonce(cfg.Nonce) {
		return nil, fmt.Errorf("malformed wall nonce: %w", derrors.InvalidArgument)
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		nonce:      cfg.Nonce,
		renderer:   cfg.Renderer,
		httpClient: cfg.HTTPClient,
	}
	if c.renderer == nil {
		c.renderer = render.MustNew(render.Fixed)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	qps := cfg.PostQPS
	if qps == 0 {
		qps = DefaultPostQPS
	}
	c.limiter = rate.NewLimiter(rate.Limit(qps), 1)
	c.setPage(NewPage(c.renderer), 0)
	return c, nil
}

func (c *Client) setPage(p *Page, version int32) {
	c.mu.Lock()
	old := c.page
	c.page = p
	c.applier = NewApplier(version, p.Replace)
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (c *Client) current() (*Page, *Applier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page, c.applier
}

// Nonce returns the wall's nonce.
func (c *Client) Nonce() string { return c.nonce }

// Page returns the client's page.
func (c *Client) Page() *Page {
	p, _ := c.current()
	return p
}

// Version returns the version of the last update applied to the page.
func (c *Client) Version() int32 {
	_, a := c.current()
	return a.Version()
}

// Close releases the page.
func (c *Client) Close() { c.Page().Close() }

func (c *Client) wallURL(file string) string {
	return c.baseURL + "/" + c.nonce + "/" + file
}

// NewWall asks the server at baseURL for a new wall and returns its nonce.
func NewWall(ctx context.Context, httpClient *http.Client, baseURL string) (_ string, err error) {
	defer derrors.Wrap(&err, "NewWall(%q)", baseURL)
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	noFollow := *httpClient
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := noFollow.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusSeeOther {
		if err := derrors.FromHTTPStatus(resp.StatusCode, "status %d", resp.StatusCode); err != nil {
			return "", err
		}
		return "", fmt.Errorf("status %d, want a redirect", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return "", err
	}
	nonce, file, ok := strings.Cut(strings.TrimPrefix(loc.Path, "/"), "/")
	if !ok || file != "wall" || !wall.ValidNonce(nonce) {
		return "", fmt.Errorf("unexpected redirect to %q", loc)
	}
	return nonce, nil
}

// Load replaces the page with the wall page served by the server, asking
// for the client's variant.
func (c *Client) Load(ctx context.Context) (err error) {
	defer derrors.Wrap(&err, "Load")
	u := c.wallURL("wall") + "?variant=" + url.QueryEscape(c.renderer.Variant().String())
	resp, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if !strings.HasSuffix(resp.Request.URL.Path, "/"+c.nonce+"/wall") {
		// Sent to a new wall.
		return ErrOrphaned
	}
	p, err := ParsePage(resp.Body, c.renderer)
	if err != nil {
		return err
	}
	c.setPage(p, p.Version())
	return nil
}

// Poll fetches the wall if it has changed since the last version applied
// and applies it. It reports whether the page changed.
func (c *Client) Poll(ctx context.Context) (_ bool, err error) {
	defer derrors.Wrap(&err, "Poll")
	u := c.wallURL("wall.json") + "?have=" + strconv.Itoa(int(c.Version()))
	resp, err := c.get(ctx, u)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		log.Debugf(ctx, "wall %.8s unchanged at version %d", c.nonce, c.Version())
		return false, nil
	}
	return c.handleUpdate(resp)
}

// Post adds an item with the given content and position to the wall. The
// item is drawn on the page right away and replaced by the server's
// rendering when the response arrives. Post waits if it is called more often
// than the configured rate.
func (c *Client) Post(ctx context.Context, untrusted string, at wall.Point) (_ bool, err error) {
	defer derrors.Wrap(&err, "Post")
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}
	item := c.renderer.MakeItem(untrusted, at)
	if err := c.Page().AddOptimistic(item); err != nil {
		return false, err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.wallURL("wall.json"), bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return c.handleUpdate(resp)
}

// handleUpdate unpacks an Update response and applies it.
func (c *Client) handleUpdate(resp *http.Response) (bool, error) {
	if err := checkStatus(resp); err != nil {
		return false, err
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return false, ErrOrphaned
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	u, err := unpack.Update(b)
	if err != nil {
		return false, err
	}
	_, a := c.current()
	return a.Apply(u)
}

// Watch polls the wall every period until ctx is done. onChange, if not
// nil, is called with each new version; errors go to onError. Polling stops
// after ErrOrphaned, and the returned poller's Done channel is then closed.
func (c *Client) Watch(ctx context.Context, period time.Duration, onChange func(int32), onError func(error)) *poller.Poller[int32] {
	ctx, cancel := context.WithCancel(ctx)
	p := poller.New(c.Version(), func(ctx context.Context) (int32, error) {
		if _, err := c.Poll(ctx); err != nil {
			return 0, err
		}
		return c.Version(), nil
	}, func(err error) {
		if errors.Is(err, ErrOrphaned) {
			cancel()
		}
		if onError != nil {
			onError(err)
		}
	})
	if onChange != nil {
		p.OnChange(onChange)
	}
	p.Start(ctx, period)
	return p
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return derrors.FromHTTPStatus(resp.StatusCode, "%s %s: %s", resp.Request.Method, resp.Request.URL.Path,
		strings.TrimSpace(string(msg)))
}
