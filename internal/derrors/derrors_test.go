// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package derrors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range statuses {
		got := FromHTTPStatus(ToHTTPStatus(fmt.Errorf("wall x: %w", s.err)), "")
		if got != s.err {
			t.Errorf("%v: round trip gave %v", s.err, got)
		}
	}
}

func TestFromHTTPStatus(t *testing.T) {
	for _, test := range []struct {
		status   int
		want     error
		wantText string
	}{
		{http.StatusOK, nil, ""},
		{http.StatusNoContent, nil, ""},
		{http.StatusBadRequest, InvalidArgument, "POST /x/wall.json: bad item: invalid argument"},
		{http.StatusBadGateway, Unknown, "POST /x/wall.json: bad item: unknown"},
	} {
		err := FromHTTPStatus(test.status, "POST %s: %s", "/x/wall.json", "bad item")
		if !errors.Is(err, test.want) || (err == nil) != (test.want == nil) {
			t.Errorf("FromHTTPStatus(%d) = %v, want %v", test.status, err, test.want)
			continue
		}
		if err != nil && err.Error() != test.wantText {
			t.Errorf("FromHTTPStatus(%d) text = %q, want %q", test.status, err, test.wantText)
		}
	}
}

func TestToHTTPStatus(t *testing.T) {
	for _, test := range []struct {
		in   error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("unpack: %w", InvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("wall %q: %w", "x", NotFound), http.StatusNotFound},
		{fmt.Errorf("item: %w", TooLarge), http.StatusRequestEntityTooLarge},
		{io.EOF, http.StatusInternalServerError},
	} {
		if got := ToHTTPStatus(test.in); got != test.want {
			t.Errorf("ToHTTPStatus(%v) = %d, want %d", test.in, got, test.want)
		}
	}
}

func TestWrapAndAdd(t *testing.T) {
	wrapped := func() (err error) {
		defer Wrap(&err, "store.Get(%q)", "n0nce")
		return NotFound
	}()
	if !errors.Is(wrapped, NotFound) || wrapped.Error() != `store.Get("n0nce"): not found` {
		t.Errorf("Wrap: got %v", wrapped)
	}

	added := func() (err error) {
		defer Add(&err, "config")
		return NotFound
	}()
	if errors.Is(added, NotFound) || added.Error() != "config: not found" {
		t.Errorf("Add: got %v", added)
	}

	var ok error
	Wrap(&ok, "unused")
	if ok != nil {
		t.Errorf("Wrap of nil = %v", ok)
	}
}
