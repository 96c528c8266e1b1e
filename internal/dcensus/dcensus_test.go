// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dcensus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/stats/view"
)

func TestRouter(t *testing.T) {
	if err := view.Register(ServerResponseCount); err != nil {
		t.Fatal(err)
	}
	defer view.Unregister(ServerResponseCount)

	// Tag by method and the last path element, so that nonces never reach
	// the metrics.
	tagger := func(route string, r *http.Request) string {
		method, pattern, _ := strings.Cut(route, " ")
		return strings.ToLower(method) + "-" + path.Base(pattern)
	}
	router := NewRouter(tagger)
	ok := func(w http.ResponseWriter, r *http.Request) {}
	router.HandleFunc("GET /{nonce}/wall", ok)
	router.HandleFunc("GET /{nonce}/wall.json", ok)
	router.HandleFunc("POST /{nonce}/wall.json", ok)

	for _, req := range []struct{ method, target string }{
		{"GET", "/n0nce/wall"},
		{"GET", "/n1nce/wall"},
		{"GET", "/n0nce/wall.json"},
		{"POST", "/n0nce/wall.json"},
		{"POST", "/n1nce/wall.json"},
		{"POST", "/n2nce/wall.json"},
	} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(req.method, req.target, nil))
	}

	rows, err := view.RetrieveData(ServerResponseCount.Name)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, row := range rows {
		for _, tg := range row.Tags {
			if tg.Key == ochttp.KeyServerRoute {
				got[tg.Value] += row.Data.(*view.CountData).Value
			}
		}
	}
	want := map[string]int64{"get-wall": 2, "get-wall.json": 1, "post-wall.json": 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("route tag counts (-want +got):\n%s", diff)
	}
}

func TestNewServer(t *testing.T) {
	mux, err := NewServer()
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(mux)
	defer ts.Close()
	for _, path := range []string{"/", "/metrics", "/tracez"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d, body %s", path, resp.StatusCode, body)
		}
	}
}
