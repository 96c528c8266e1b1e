// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/safehtml"
	"github.com/safehtml-demo/wall/internal/cache"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/frontend/page"
	"github.com/safehtml-demo/wall/internal/frontend/serrors"
	"github.com/safehtml-demo/wall/internal/log"
	"github.com/safehtml-demo/wall/internal/middleware/stats"
	"github.com/safehtml-demo/wall/internal/render"
	"github.com/safehtml-demo/wall/internal/sanitizer"
	"github.com/safehtml-demo/wall/internal/unpack"
	"github.com/safehtml-demo/wall/internal/wall"
)

// WallPage holds the data for the wall page.
type WallPage struct {
	page.BasePage
	Variant           render.Variant
	Variants          []render.Variant
	AllowVariantParam bool
	// Items is the server rendering of the wall's items.
	Items safehtml.HTML
	// ItemScript is the variant script that renders items in the browser.
	ItemScript safehtml.TrustedResourceURL
}

const jsonContentType = "application/json; charset=utf-8"

// serveNewWall creates a wall and sends the browser to it.
func (s *Server) serveNewWall(w http.ResponseWriter, r *http.Request) error {
	return s.redirectToNewWall(w, r)
}

func (s *Server) redirectToNewWall(w http.ResponseWriter, r *http.Request) error {
	nonce, err := s.store.Create(r.Context())
	if err != nil {
		return err
	}
	target := "/" + nonce + "/wall"
	if v := r.URL.Query().Get("variant"); v != "" && s.allowVariantParam {
		target += "?variant=" + url.QueryEscape(v)
	}
	http.Redirect(w, r, target+"#", http.StatusFound)
	return nil
}

// snapshot returns the wall named by the request path. ok is false if the
// nonce is malformed or the wall does not exist.
func (s *Server) snapshot(r *http.Request) (_ string, _ wall.Update, ok bool, err error) {
	nonce := r.PathValue("nonce")
	if !wall.ValidNonce(nonce) {
		return "", wall.Update{}, false, nil
	}
	u, err := s.store.Get(r.Context(), nonce)
	if errors.Is(err, derrors.NotFound) {
		return nonce, wall.Update{}, false, nil
	}
	if err != nil {
		return "", wall.Update{}, false, err
	}
	return nonce, u, true, nil
}

// renderer returns the Renderer for the request: the configured one, or the
// one named by ?variant= when that is allowed.
func (s *Server) renderer(r *http.Request) (render.Renderer, error) {
	v := s.variant
	if q := r.URL.Query().Get("variant"); q != "" && s.allowVariantParam {
		p, err := render.ParseVariant(q)
		if err != nil {
			return nil, serrors.BadRequest(err)
		}
		v = p
	}
	return s.renderers[v], nil
}

func (s *Server) serveWallPage(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	_, u, ok, err := s.snapshot(r)
	if err != nil {
		return err
	}
	if !ok {
		return s.redirectToNewWall(w, r)
	}
	rd, err := s.renderer(r)
	if err != nil {
		return err
	}
	items, err := rd.ItemsHTML(u.Items.Items)
	if err != nil {
		return err
	}
	script, err := itemScript(rd.Variant())
	if err != nil {
		return err
	}
	stats.Record(ctx, "items", len(u.Items.Items))
	stats.Record(ctx, "version", u.Version)
	stats.Record(ctx, "variant", rd.Variant().String())
	p := &WallPage{
		BasePage:          s.newBasePage(r, "Wall"),
		Variant:           rd.Variant(),
		Variants:          render.Variants,
		AllowVariantParam: s.allowVariantParam,
		Items:             items,
		ItemScript:        script,
	}
	p.WallVersion = u.Version
	w.Header().Set("Cache-Control", "no-store")
	s.servePage(ctx, w, "wall", p)
	return nil
}

func itemScript(v render.Variant) (safehtml.TrustedResourceURL, error) {
	return safehtml.TrustedResourceURLFormatFromConstant(
		`/static/frontend/wall/wall-item-%{variant}.js`,
		map[string]string{"variant": v.String()})
}

// notModified reports whether the client already has version v, according
// to the have query parameter. A missing or malformed have is ignored.
func notModified(r *http.Request, v int32) bool {
	have, err := strconv.ParseInt(r.URL.Query().Get("have"), 10, 32)
	if err != nil {
		return false
	}
	return int32(have) >= v
}

// serveWall serves the wall in the encoding given by contentType and
// marshal. Polls for a wall that no longer exists are sent to a new wall
// page, which clients recognize by its content type.
func (s *Server) serveWall(w http.ResponseWriter, r *http.Request, contentType string, marshal func(wall.Update) ([]byte, error)) error {
	_, u, ok, err := s.snapshot(r)
	if err != nil {
		return err
	}
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil
	}
	w.Header().Set("Cache-Control", "no-store")
	if notModified(r, u.Version) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}
	b, err := marshal(u)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	_, err = w.Write(b)
	return err
}

func (s *Server) serveWallJSON(w http.ResponseWriter, r *http.Request) error {
	return s.serveWall(w, r, jsonContentType, marshalJSON)
}

func (s *Server) serveWallProto(w http.ResponseWriter, r *http.Request) error {
	return s.serveWall(w, r, wall.ContentType, marshalProto)
}

func marshalJSON(u wall.Update) ([]byte, error) { return json.Marshal(u) }

func marshalProto(u wall.Update) ([]byte, error) { return wall.MarshalUpdate(u), nil }

func (s *Server) serveAddJSON(w http.ResponseWriter, r *http.Request) error {
	return s.serveAdd(w, r, unpack.WallItem, jsonContentType, marshalJSON)
}

func (s *Server) serveAddProto(w http.ResponseWriter, r *http.Request) error {
	return s.serveAdd(w, r, wall.UnmarshalWallItem, wall.ContentType, marshalProto)
}

// serveAdd decodes a posted item, sanitizes it, adds it to the wall and
// responds with the new state of the wall. Any html the client sent is
// discarded.
func (s *Server) serveAdd(w http.ResponseWriter, r *http.Request,
	decode func([]byte) (wall.WallItem, error), contentType string, marshal func(wall.Update) ([]byte, error)) error {
	ctx := r.Context()
	nonce := r.PathValue("nonce")
	if !wall.ValidNonce(nonce) {
		return fmt.Errorf("malformed wall id: %w", derrors.NotFound)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("body over %d bytes: %w", mbe.Limit, derrors.TooLarge)
		}
		return err
	}
	in, err := decode(body)
	if err != nil {
		return serrors.BadRequest(err)
	}
	if s.maxHTMLBytes > 0 && len(in.HTMLUntrusted) > s.maxHTMLBytes {
		return fmt.Errorf("item html is %d bytes, limit %d: %w", len(in.HTMLUntrusted), s.maxHTMLBytes, derrors.TooLarge)
	}
	item := wall.WallItem{
		HTML:          wall.NewSafeHTMLProto(sanitizer.Sanitize(in.HTMLUntrusted)),
		HTMLUntrusted: in.HTMLUntrusted,
		Centroid:      in.Centroid,
	}
	u, err := s.store.Add(ctx, nonce, item)
	if err != nil {
		return err
	}
	s.dropFragments(ctx, nonce)
	b, err := marshal(u)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	_, err = w.Write(b)
	return err
}

// dropFragments removes cached fragments of older versions of a wall.
// They can no longer be requested without a redirect, so this only frees
// space.
func (s *Server) dropFragments(ctx context.Context, nonce string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.cache.DropWall(ctx, nonce); err != nil {
		log.Warningf(ctx, "dropping fragments: %v", err)
	}
}

// serveItems serves the server rendering of a wall's items. Requests must
// name the current version with ?v=, and are redirected otherwise, so a
// response for a given URL never changes.
func (s *Server) serveItems(w http.ResponseWriter, r *http.Request) error {
	_, u, ok, err := s.snapshot(r)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no such wall: %w", derrors.NotFound)
	}
	rd, err := s.renderer(r)
	if err != nil {
		return err
	}
	q := r.URL.Query()
	if v, err := strconv.ParseInt(q.Get("v"), 10, 32); err != nil || int32(v) != u.Version {
		q.Set("v", strconv.Itoa(int(u.Version)))
		http.Redirect(w, r, r.URL.Path+"?"+q.Encode(), http.StatusFound)
		return nil
	}
	h, err := rd.ItemsHTML(u.Items.Items)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = io.WriteString(w, h.String())
	return err
}

// fragmentKey is the cache key for an items.html request, or "" if the
// request should not be cached.
func (s *Server) fragmentKey(r *http.Request) string {
	nonce := r.PathValue("nonce")
	if !wall.ValidNonce(nonce) {
		return ""
	}
	q := r.URL.Query()
	v, err := strconv.ParseInt(q.Get("v"), 10, 32)
	if err != nil {
		return ""
	}
	variant := s.variant
	if p := q.Get("variant"); p != "" && s.allowVariantParam {
		if variant, err = render.ParseVariant(p); err != nil {
			return ""
		}
	}
	return cache.FragmentKey(nonce, variant.String(), int32(v))
}
