// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPanic(t *testing.T) {
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "the wall fell over")
	})
	for _, test := range []struct {
		name     string
		handler  http.HandlerFunc
		recover  http.Handler
		wantCode int
		wantBody string
	}{
		{"no panic", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "ok") }, page, 200, "ok"},
		{"panic", func(http.ResponseWriter, *http.Request) { panic("render failed") }, page, 500, "the wall fell over"},
		{"error value", func(http.ResponseWriter, *http.Request) { panic(errors.New("e")) }, page, 500, "the wall fell over"},
		{"default page", func(http.ResponseWriter, *http.Request) { panic("x") }, nil, 500, "Internal Server Error\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Panic(test.recover)(test.handler).ServeHTTP(w, httptest.NewRequest("GET", "/n0nce/wall", nil))
			if w.Code != test.wantCode || w.Body.String() != test.wantBody {
				t.Errorf("got %d %q, want %d %q", w.Code, w.Body, test.wantCode, test.wantBody)
			}
		})
	}
}

func TestPanicAbortHandler(t *testing.T) {
	defer func() {
		if e := recover(); e != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", e)
		}
	}()
	h := Panic(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	t.Error("ErrAbortHandler was swallowed")
}
