// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unpack

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/trust"
	"github.com/safehtml-demo/wall/internal/wall"
)

func TestUpdate(t *testing.T) {
	for _, test := range []struct {
		name string
		in   string
		want wall.Update
	}{
		{
			name: "empty",
			in:   `{}`,
			want: wall.Update{},
		},
		{
			name: "one untrusted item",
			in:   `{"version": 3, "items": {"item": [{"htmlUntrusted": "<b>hi</b>", "centroid": {"xPercent": 10, "yPercent": 90}}]}}`,
			want: wall.Update{Version: 3, Items: wall.WallItems{Items: []wall.WallItem{
				{HTMLUntrusted: "<b>hi</b>", Centroid: wall.Point{XPercent: 10, YPercent: 90}},
			}}},
		},
		{
			name: "sanitized html",
			in:   `{"items": {"item": [{"html": {"privateDoNotAccessOrElseSafeHtmlWrappedValue": "<b>hi</b>"}, "htmlUntrusted": "<b>hi</b><img>"}]}, "version": 1}`,
			want: wall.Update{Version: 1, Items: wall.WallItems{Items: []wall.WallItem{
				{
					HTML:          wall.NewSafeHTMLProto(trust.HTMLKnownToSatisfyContract(trust.CheckedOnServer, "<b>hi</b>")),
					HTMLUntrusted: "<b>hi</b><img>",
				},
			}}},
		},
		{
			name: "order preserved",
			in:   `{"items": {"item": [{"htmlUntrusted": "a"}, {"htmlUntrusted": "b"}, {"htmlUntrusted": "c"}]}}`,
			want: wall.Update{Items: wall.WallItems{Items: []wall.WallItem{
				{HTMLUntrusted: "a"}, {HTMLUntrusted: "b"}, {HTMLUntrusted: "c"},
			}}},
		},
		{
			name: "null is absent",
			in:   `{"version": null, "items": {"item": [{"html": null, "htmlUntrusted": "x", "centroid": null}]}}`,
			want: wall.Update{Items: wall.WallItems{Items: []wall.WallItem{{HTMLUntrusted: "x"}}}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := Update([]byte(test.in))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnrecognizedField(t *testing.T) {
	for _, test := range []struct {
		name    string
		unpack  func([]byte) error
		in      string
		message string
		key     string
	}{
		{
			name:    "update",
			unpack:  func(b []byte) error { _, err := Update(b); return err },
			in:      `{"version": 1, "bogus": true}`,
			message: "Update",
			key:     "bogus",
		},
		{
			name:    "first unknown key wins",
			unpack:  func(b []byte) error { _, err := Update(b); return err },
			in:      `{"zzz": 1, "aaa": 2, "version": 1}`,
			message: "Update",
			key:     "zzz",
		},
		{
			name:    "wall items",
			unpack:  func(b []byte) error { _, err := WallItems(b); return err },
			in:      `{"item": [], "items": []}`,
			message: "WallItems",
			key:     "items",
		},
		{
			name:    "wall item with known keys",
			unpack:  func(b []byte) error { _, err := WallItem(b); return err },
			in:      `{"htmlUntrusted": "x", "centroid": {"xPercent": 1}, "color": "red"}`,
			message: "WallItem",
			key:     "color",
		},
		{
			name:    "nested wall item",
			unpack:  func(b []byte) error { _, err := Update(b); return err },
			in:      `{"items": {"item": [{"htmlUntrusted": "x"}, {"onclick": "y"}]}}`,
			message: "WallItem",
			key:     "onclick",
		},
		{
			name:    "safe html",
			unpack:  func(b []byte) error { _, err := SafeHTML(b); return err },
			in:      `{"privateDoNotAccessOrElseSafeHtmlWrappedValue": "x", "raw": "<script>"}`,
			message: "SafeHtmlProto",
			key:     "raw",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.unpack([]byte(test.in))
			var ufe *UnrecognizedFieldError
			if !errors.As(err, &ufe) {
				t.Fatalf("got %v, want *UnrecognizedFieldError", err)
			}
			if ufe.Key != test.key || ufe.Message != test.message {
				t.Errorf("got %s.%s, want %s.%s", ufe.Message, ufe.Key, test.message, test.key)
			}
			if !errors.Is(err, derrors.InvalidArgument) {
				t.Errorf("%v does not match derrors.InvalidArgument", err)
			}
		})
	}
}

func TestLenient(t *testing.T) {
	in := `{"bogus": 1, "version": 2, "items": {"extra": {}, "item": [{"htmlUntrusted": "x", "color": "red"}]}}`
	got, err := Unpacker{Mode: Lenient}.Update([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	want := wall.Update{Version: 2, Items: wall.WallItems{Items: []wall.WallItem{{HTMLUntrusted: "x"}}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := Update([]byte(in)); err == nil {
		t.Error("strict unpack succeeded")
	}
}

func TestPointIgnoresUnknownFields(t *testing.T) {
	got, err := WallItems([]byte(`{"item":[{"centroid":{"xPercent":5,"yPercent":5,"z":1}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := wall.WallItems{Items: []wall.WallItem{{Centroid: wall.Point{XPercent: 5, YPercent: 5}}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPoint(t *testing.T) {
	for _, test := range []struct {
		in   string
		want wall.Point
	}{
		{`{}`, wall.Point{}},
		{`{"xPercent": 150, "yPercent": -20}`, wall.Point{XPercent: 150, YPercent: -20}},
		{`{"xPercent": 12.9, "yPercent": -12.9}`, wall.Point{XPercent: 12, YPercent: -12}},
		{`{"xPercent": "50", "yPercent": true}`, wall.Point{}},
		{`{"xPercent": 1e12}`, wall.Point{XPercent: 2147483647}},
		{`{"w": [1, 2], "yPercent": 7}`, wall.Point{YPercent: 7}},
	} {
		got, err := Point([]byte(test.in))
		if err != nil {
			t.Errorf("%s: %v", test.in, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s: got %+v, want %+v", test.in, got, test.want)
		}
	}
}

func TestMalformed(t *testing.T) {
	for _, in := range []string{
		``,
		`[]`,
		`"x"`,
		`null`,
		`{"version": "3"}`,
		`{"version": 1.5}`,
		`{"version": 1} {}`,
		`{"items": []}`,
		`{"items": {"item": {}}}`,
		`{"items": {"item": [{"htmlUntrusted": 5}]}}`,
		`{"items": {"item": [{"html": "<b>"}]}}`,
		`{"version": 1`,
	} {
		_, err := Update([]byte(in))
		if !errors.Is(err, derrors.InvalidArgument) {
			t.Errorf("Update(%q) = %v, want InvalidArgument", in, err)
		}
		var ufe *UnrecognizedFieldError
		if errors.As(err, &ufe) {
			t.Errorf("Update(%q) reported unrecognized field %q", in, ufe.Key)
		}
	}
}

func TestResultsAreIndependent(t *testing.T) {
	in := []byte(`{"version": 4, "items": {"item": [{"htmlUntrusted": "a", "centroid": {"xPercent": 1}}]}}`)
	a, err := Update(in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Update(in)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("unpacking twice differs (-first +second):\n%s", diff)
	}
	a.Items.Items[0].HTMLUntrusted = "changed"
	a.Items.Items[0].Centroid.XPercent = 99
	if b.Items.Items[0].HTMLUntrusted != "a" || b.Items.Items[0].Centroid.XPercent != 1 {
		t.Errorf("results share state: %+v", b)
	}
}
