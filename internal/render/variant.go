// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"fmt"
	"strings"
)

// A Variant selects how user-supplied HTML is turned into page content.
type Variant int

const (
	// Fixed sanitizes untrusted HTML before display.
	Fixed Variant = iota
	// Insecure inserts untrusted HTML as is, allowing XSS.
	Insecure
	// OverEscaping escapes untrusted HTML, so harmless markup shows up as
	// source text.
	OverEscaping
)

// Variants lists every Variant.
var Variants = []Variant{Fixed, Insecure, OverEscaping}

func (v Variant) String() string {
	switch v {
	case Fixed:
		return "fixed"
	case Insecure:
		return "insecure"
	case OverEscaping:
		return "overescaping"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant returns the Variant named by s, ignoring case. The empty
// string means Fixed.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed":
		return Fixed, nil
	case "insecure":
		return Insecure, nil
	case "overescaping", "over_escaping", "over-escaping":
		return OverEscaping, nil
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

// Set implements flag.Value and pflag.Value.
func (v *Variant) Set(s string) error {
	p, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// Type implements pflag.Value.
func (*Variant) Type() string { return "variant" }

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	return v.Set(string(b))
}
