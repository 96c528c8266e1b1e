// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frontend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/safehtml-demo/wall/internal/cache"
	"github.com/safehtml-demo/wall/internal/middleware"
	"github.com/safehtml-demo/wall/internal/sanitizer"
	"github.com/safehtml-demo/wall/internal/testing/htmlcheck"
	"github.com/safehtml-demo/wall/internal/testing/testhelper"
	"github.com/safehtml-demo/wall/internal/unpack"
	"github.com/safehtml-demo/wall/internal/wall"
)

func TestWallJSON(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	nonce := e.newWall()
	path := "/" + nonce + "/wall.json"

	resp, body := e.get(path)
	wantStatus(t, resp, http.StatusOK)
	if got := string(body); got != "{}" {
		t.Errorf("empty wall = %s, want {}", got)
	}
	resp, _ = e.get(path + "?have=0")
	wantStatus(t, resp, http.StatusNotModified)

	e.add(nonce, "a", wall.Point{XPercent: 1, YPercent: 2})
	for _, have := range []string{"", "?have=0", "?have=junk"} {
		resp, body = e.get(path + have)
		wantStatus(t, resp, http.StatusOK)
		if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
			t.Errorf("Content-Type = %q", got)
		}
		u, err := unpack.Update(body)
		if err != nil {
			t.Fatal(err)
		}
		want := wall.Update{Version: 1, Items: wall.WallItems{Items: []wall.WallItem{
			{HTMLUntrusted: "a", Centroid: wall.Point{XPercent: 1, YPercent: 2}},
		}}}
		if diff := cmp.Diff(want, u); diff != "" {
			t.Errorf("have%s: mismatch (-want +got):\n%s", have, diff)
		}
	}
	for _, have := range []string{"1", "5"} {
		resp, _ = e.get(path + "?have=" + have)
		wantStatus(t, resp, http.StatusNotModified)
	}
}

func TestWallJSONOrphaned(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	for _, path := range []string{
		"/" + wall.NewNonce() + "/wall.json?have=3",
		"/" + wall.NewNonce() + "/wall.pb",
	} {
		resp, _ := e.get(path)
		wantStatus(t, resp, http.StatusFound)
		if got := resp.Header.Get("Location"); got != "/" {
			t.Errorf("%s: Location = %q, want /", path, got)
		}
	}
}

func TestAddJSON(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	nonce := e.newWall()
	const untrusted = `<b>x</b><img src=a onerror=alert(1)>`
	body := fmt.Sprintf(`{"htmlUntrusted": %q, "centroid": {"xPercent": 10.7, "yPercent": 20},
		"html": {"%s": "<script>alert(2)</script>"}}`, untrusted, wall.SafeHTMLKey)

	resp, got := e.do(http.MethodPost, "/"+nonce+"/wall.json", "application/json", []byte(body))
	wantStatus(t, resp, http.StatusOK)
	u, err := unpack.Update(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Version != 1 || len(u.Items.Items) != 1 {
		t.Fatalf("got version %d with %d items, want 1 and 1", u.Version, len(u.Items.Items))
	}
	it := u.Items.Items[0]
	if got, want := it.HTML.HTML().String(), sanitizer.Sanitize(untrusted).String(); got != want {
		t.Errorf("html = %q, want %q", got, want)
	}
	if s := it.HTML.HTML().String(); strings.Contains(s, "script") || strings.Contains(s, "onerror") {
		t.Errorf("html was not sanitized: %q", s)
	}
	if it.HTMLUntrusted != untrusted {
		t.Errorf("htmlUntrusted = %q, want %q", it.HTMLUntrusted, untrusted)
	}
	if want := (wall.Point{XPercent: 10, YPercent: 20}); it.Centroid != want {
		t.Errorf("centroid = %+v, want %+v", it.Centroid, want)
	}

	stored, err := e.store.Get(context.Background(), nonce)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(u, stored); diff != "" {
		t.Errorf("stored wall mismatch (-want +got):\n%s", diff)
	}
}

func TestAddErrors(t *testing.T) {
	e := newTestEnv(t, ServerConfig{MaxHTMLBytes: 8})
	nonce := e.newWall()
	for _, test := range []struct {
		name, nonce, body string
		want              int
	}{
		{"unknown field", nonce, `{"htmlUntrusted": "a", "bogus": 1}`, http.StatusBadRequest},
		{"not json", nonce, `<b>`, http.StatusBadRequest},
		{"unknown wall", wall.NewNonce(), `{"htmlUntrusted": "a"}`, http.StatusNotFound},
		{"malformed wall", "short", `{"htmlUntrusted": "a"}`, http.StatusNotFound},
		{"html too long", nonce, `{"htmlUntrusted": "123456789"}`, http.StatusRequestEntityTooLarge},
		{"body too long", nonce, `{"htmlUntrusted": "` + strings.Repeat(" ", testBodyLimit) + `"}`, http.StatusRequestEntityTooLarge},
	} {
		t.Run(test.name, func(t *testing.T) {
			resp, body := e.do(http.MethodPost, "/"+test.nonce+"/wall.json", "application/json", []byte(test.body))
			wantStatus(t, resp, test.want)
			if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
				t.Errorf("Content-Type = %q, want text/plain; body %s", got, body)
			}
		})
	}
	u, err := e.store.Get(context.Background(), nonce)
	if err != nil {
		t.Fatal(err)
	}
	if u.Version != 0 {
		t.Errorf("failed posts changed the wall to version %d", u.Version)
	}
}

func TestWallProto(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	nonce := e.newWall()
	path := "/" + nonce + "/wall.pb"

	item := wall.WallItem{HTMLUntrusted: "<u>p</u>", Centroid: wall.Point{XPercent: 50, YPercent: 60}}
	resp, body := e.do(http.MethodPost, path, wall.ContentType, wall.MarshalWallItem(item))
	wantStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != wall.ContentType {
		t.Errorf("Content-Type = %q, want %q", got, wall.ContentType)
	}
	posted, err := wall.UnmarshalUpdate(body)
	if err != nil {
		t.Fatal(err)
	}
	item.HTML = wall.NewSafeHTMLProto(sanitizer.Sanitize(item.HTMLUntrusted))
	want := wall.Update{Version: 1, Items: wall.WallItems{Items: []wall.WallItem{item}}}
	if diff := cmp.Diff(want, posted); diff != "" {
		t.Errorf("POST mismatch (-want +got):\n%s", diff)
	}

	resp, body = e.get(path)
	wantStatus(t, resp, http.StatusOK)
	got, err := wall.UnmarshalUpdate(body)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GET mismatch (-want +got):\n%s", diff)
	}
	resp, _ = e.get(path + "?have=1")
	wantStatus(t, resp, http.StatusNotModified)

	resp, _ = e.do(http.MethodPost, path, wall.ContentType, []byte{0x0a, 0x05})
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestItems(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	nonce := e.newWall()
	path := "/" + nonce + "/items.html"

	resp, _ := e.get(path)
	wantStatus(t, resp, http.StatusFound)
	if got, want := resp.Header.Get("Location"), path+"?v=0"; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	resp, body := e.get(path + "?v=0")
	wantStatus(t, resp, http.StatusOK)
	if len(body) != 0 {
		t.Errorf("empty wall rendered as %q", body)
	}

	e.add(nonce, "<em>e</em>", wall.Point{XPercent: 5, YPercent: 5})
	resp, _ = e.get(path + "?v=0")
	wantStatus(t, resp, http.StatusFound)
	if got, want := resp.Header.Get("Location"), path+"?v=1"; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	resp, body = e.get(path + "?v=1")
	wantStatus(t, resp, http.StatusOK)
	checker := in("body",
		htmlcheck.NumChildren(1),
		in("li.wall-item", hasStyle("left", "^5%$"), hasStyle("top", "^5%$"), in("em", hasText("^e$"))))
	if err := htmlcheck.Run(bytes.NewReader(body), checker); err != nil {
		t.Error(err)
	}
}

func TestItemsCache(t *testing.T) {
	defer func(old bool) { middleware.TestMode = old }(middleware.TestMode)
	middleware.TestMode = true

	mr, rc := testhelper.StartRedis(t)
	c := cache.New(rc)
	e := newTestEnv(t, ServerConfig{Cache: c, FragmentTTL: time.Hour, AllowVariantParam: true})
	nonce := e.newWall()
	e.add(nonce, "one", wall.Point{})

	base := "/" + nonce + "/items.html?v=1"
	resp, first := e.get(base + "&variant=overescaping")
	wantStatus(t, resp, http.StatusOK)
	key := cache.FragmentKey(nonce, "overescaping", 1)
	if !mr.Exists(key) {
		t.Fatalf("%s was not cached; keys %v", key, mr.Keys())
	}
	// A hit is served from the cache even though the store has moved on.
	e.add(nonce, "two", wall.Point{})
	resp, second := e.get(base + "&variant=overescaping")
	wantStatus(t, resp, http.StatusOK)
	if string(first) != string(second) {
		t.Errorf("cached fragment changed: %q then %q", first, second)
	}

	// Posting drops all fragments of the wall.
	resp, _ = e.do(http.MethodPost, "/"+nonce+"/wall.json", "application/json", []byte(`{"htmlUntrusted": "three"}`))
	wantStatus(t, resp, http.StatusOK)
	if mr.Exists(key) {
		t.Errorf("%s survived a post", key)
	}
	// Redirects are not cached.
	e.get(base)
	if k := cache.FragmentKey(nonce, "fixed", 1); mr.Exists(k) {
		t.Errorf("redirect was cached under %s", k)
	}
}
