// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import "testing"

func TestHTMLKnownToSatisfyContract(t *testing.T) {
	got := HTMLKnownToSatisfyContract(CheckedOnServer, "<b>x</b>").String()
	if got != "<b>x</b>" {
		t.Errorf("got %q", got)
	}
	if got, want := CheckedOnServer.String(), "contract was checked on the server"; got != want {
		t.Errorf("CheckedOnServer = %q, want %q", got, want)
	}
}

func TestMissingJustificationPanics(t *testing.T) {
	for _, test := range []struct {
		name string
		f    func()
	}{
		{"zero HTML", func() { HTMLKnownToSatisfyContract(Justification{}, "x") }},
		{"zero Style", func() { StyleKnownToSatisfyContract(Justification{}, "color:red") }},
		{"empty reason", func() { Justify("") }},
	} {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("did not panic")
				}
			}()
			test.f()
		})
	}
}
