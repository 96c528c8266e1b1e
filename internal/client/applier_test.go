// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/safehtml-demo/wall/internal/wall"
)

func TestApplier(t *testing.T) {
	var applied []int32
	fail := false
	a := NewApplier(0, func(u wall.Update) error {
		if fail {
			return errors.New("boom")
		}
		applied = append(applied, u.Version)
		return nil
	})
	for _, test := range []struct {
		version     int32
		fail        bool
		wantApplied bool
		wantErr     bool
		wantVersion int32
	}{
		{0, false, false, false, 0},
		{1, false, true, false, 1},
		{1, false, false, false, 1},
		{3, true, false, true, 1},
		{3, false, true, false, 3},
		{2, false, false, false, 3},
	} {
		fail = test.fail
		got, err := a.Apply(wall.Update{Version: test.version})
		if got != test.wantApplied || (err != nil) != test.wantErr {
			t.Errorf("Apply(version %d) = %t, %v; want %t, error %t", test.version, got, err, test.wantApplied, test.wantErr)
		}
		if v := a.Version(); v != test.wantVersion {
			t.Errorf("after Apply(version %d): Version() = %d, want %d", test.version, v, test.wantVersion)
		}
	}
	if diff := cmp.Diff([]int32{1, 3}, applied); diff != "" {
		t.Errorf("applied versions mismatch (-want +got):\n%s", diff)
	}

	a.Reset(10)
	if ok, _ := a.Apply(wall.Update{Version: 10}); ok {
		t.Error("applied an update at the reset version")
	}
}
