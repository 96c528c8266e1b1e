// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAcceptRequests(t *testing.T) {
	h := AcceptRequests(http.MethodGet, http.MethodPost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "wall")
	}))
	// A path whose URL is exactly maxURILength long.
	long := "/" + strings.Repeat("n", maxURILength-1)
	for _, test := range []struct {
		method, target string
		wantCode       int
	}{
		{"GET", "/n0nce/wall", http.StatusOK},
		{"POST", "/n0nce/wall.json", http.StatusOK},
		{"PUT", "/n0nce/wall.json", http.StatusMethodNotAllowed},
		{"DELETE", "/n0nce/wall", http.StatusMethodNotAllowed},
		{"GET", long[:len(long)-1], http.StatusOK},
		{"GET", long, http.StatusRequestURITooLong},
		// Length is checked before the method.
		{"PUT", long, http.StatusRequestURITooLong},
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(test.method, test.target, nil))
		if w.Code != test.wantCode {
			t.Errorf("%s %.20s...: got %d, want %d", test.method, test.target, w.Code, test.wantCode)
		}
		if w.Code == http.StatusOK && w.Body.String() != "wall" {
			t.Errorf("%s %.20s...: handler not reached", test.method, test.target)
		}
	}
}

func TestLimitBody(t *testing.T) {
	const limit = 8
	ts := httptest.NewServer(LimitBody(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		fmt.Fprint(w, "ok")
	})))
	defer ts.Close()

	for _, test := range []struct {
		name     string
		body     io.Reader
		wantCode int
	}{
		{"at limit", strings.NewReader(`{"a":1}`), http.StatusOK},
		{"declared too long", strings.NewReader(`{"a":100}`), http.StatusRequestEntityTooLarge},
		// io.MultiReader hides the length, so the request is chunked.
		{"chunked too long", io.MultiReader(strings.NewReader(`{"a":100}`)), http.StatusRequestEntityTooLarge},
	} {
		t.Run(test.name, func(t *testing.T) {
			res, err := ts.Client().Post(ts.URL, "application/json", test.body)
			if err != nil {
				t.Fatal(err)
			}
			res.Body.Close()
			if res.StatusCode != test.wantCode {
				t.Errorf("got %d, want %d", res.StatusCode, test.wantCode)
			}
		})
	}
}
