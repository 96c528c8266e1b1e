// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package unpack converts the JSON form of wall messages into wall values.
//
// Each message type is read field by field. Fields are visited in document
// order, and in Strict mode the first field that the message type does not
// define is reported as an *UnrecognizedFieldError. Point is the exception:
// it ignores fields it does not know in every mode.
//
// A field whose value is JSON null is treated as absent.
package unpack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/trust"
	"github.com/safehtml-demo/wall/internal/wall"
)

// Mode controls how unknown fields are handled.
type Mode int

const (
	// Strict rejects unknown fields.
	Strict Mode = iota
	// Lenient skips unknown fields.
	Lenient
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// UnrecognizedFieldError is returned in Strict mode for a field that the
// message type does not define.
type UnrecognizedFieldError struct {
	// Message is the name of the message type being unpacked.
	Message string
	// Key is the offending field name.
	Key string
}

func (e *UnrecognizedFieldError) Error() string {
	return fmt.Sprintf("unrecognized field %q in %s", e.Key, e.Message)
}

// Unwrap makes an UnrecognizedFieldError match derrors.InvalidArgument.
func (e *UnrecognizedFieldError) Unwrap() error {
	return derrors.InvalidArgument
}

// An Unpacker converts JSON to wall values. The zero Unpacker is strict.
type Unpacker struct {
	Mode Mode
}

var strict Unpacker

// Update unpacks an Update in Strict mode.
func Update(data []byte) (wall.Update, error) { return strict.Update(data) }

// WallItems unpacks a WallItems in Strict mode.
func WallItems(data []byte) (wall.WallItems, error) { return strict.WallItems(data) }

// WallItem unpacks a WallItem in Strict mode.
func WallItem(data []byte) (wall.WallItem, error) { return strict.WallItem(data) }

// SafeHTML unpacks a SafeHTMLProto in Strict mode.
func SafeHTML(data []byte) (*wall.SafeHTMLProto, error) { return strict.SafeHTML(data) }

// Point unpacks a Point.
func Point(data []byte) (wall.Point, error) { return strict.Point(data) }

// Update unpacks {"items": WallItems, "version": integer}.
func (u Unpacker) Update(data []byte) (_ wall.Update, err error) {
	defer derrors.Wrap(&err, "unpack.Update")
	var up wall.Update
	err = u.fields(data, "Update", func(key string, raw json.RawMessage) (bool, error) {
		switch key {
		case "items":
			items, err := u.WallItems(raw)
			if err != nil {
				return true, err
			}
			up.Items = items
		case "version":
			if err := unmarshalScalar(raw, &up.Version, key); err != nil {
				return true, err
			}
		default:
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return wall.Update{}, err
	}
	return up, nil
}

// WallItems unpacks {"item": [WallItem, ...]}. Order is preserved. A missing
// item field yields no items.
func (u Unpacker) WallItems(data []byte) (_ wall.WallItems, err error) {
	var items wall.WallItems
	err = u.fields(data, "WallItems", func(key string, raw json.RawMessage) (bool, error) {
		if key != "item" {
			return false, nil
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return true, invalid("field %q: %v", key, err)
		}
		items.Items = make([]wall.WallItem, 0, len(elems))
		for i, e := range elems {
			it, err := u.WallItem(e)
			if err != nil {
				return true, fmt.Errorf("item[%d]: %w", i, err)
			}
			items.Items = append(items.Items, it)
		}
		return true, nil
	})
	if err != nil {
		return wall.WallItems{}, err
	}
	return items, nil
}

// WallItem unpacks {"html": SafeHTML, "htmlUntrusted": string, "centroid": Point}.
func (u Unpacker) WallItem(data []byte) (_ wall.WallItem, err error) {
	var it wall.WallItem
	err = u.fields(data, "WallItem", func(key string, raw json.RawMessage) (bool, error) {
		switch key {
		case "html":
			h, err := u.SafeHTML(raw)
			if err != nil {
				return true, err
			}
			it.HTML = h
		case "htmlUntrusted":
			if err := unmarshalScalar(raw, &it.HTMLUntrusted, key); err != nil {
				return true, err
			}
		case "centroid":
			p, err := u.Point(raw)
			if err != nil {
				return true, err
			}
			it.Centroid = p
		default:
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return wall.WallItem{}, err
	}
	return it, nil
}

// SafeHTML unpacks the wrapper object of a sanitized HTML value. The value
// is trusted because it can only have come from the wall server, which
// sanitizes every item it stores.
func (u Unpacker) SafeHTML(data []byte) (_ *wall.SafeHTMLProto, err error) {
	var s string
	err = u.fields(data, "SafeHtmlProto", func(key string, raw json.RawMessage) (bool, error) {
		if key != wall.SafeHTMLKey {
			return false, nil
		}
		return true, unmarshalScalar(raw, &s, key)
	})
	if err != nil {
		return nil, err
	}
	return wall.NewSafeHTMLProto(trust.HTMLKnownToSatisfyContract(trust.CheckedOnServer, s)), nil
}

// Point unpacks {"xPercent": number, "yPercent": number}. Unknown fields are
// ignored whatever the mode. Numbers are truncated toward zero and clamped to
// the int32 range; values that are not numbers are ignored. No range check is
// made against 0..100.
func (u Unpacker) Point(data []byte) (_ wall.Point, err error) {
	var p wall.Point
	err = Unpacker{Mode: Lenient}.fields(data, "Point", func(key string, raw json.RawMessage) (bool, error) {
		var dst *int32
		switch key {
		case "xPercent":
			dst = &p.XPercent
		case "yPercent":
			dst = &p.YPercent
		default:
			return false, nil
		}
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			*dst = truncate(f)
		}
		return true, nil
	})
	if err != nil {
		return wall.Point{}, err
	}
	return p, nil
}

func truncate(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// fields reads data as a JSON object and calls f for each non-null member in
// document order. f reports whether it recognized the key. Unrecognized keys
// fail in Strict mode and are skipped otherwise.
func (u Unpacker) fields(data []byte, message string, f func(key string, raw json.RawMessage) (bool, error)) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return invalid("%s: %v", message, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return invalid("%s: want JSON object, got %s", message, describe(tok))
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return invalid("%s: %v", message, err)
		}
		key := tok.(string) // object keys are always strings
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return invalid("%s: field %q: %v", message, key, err)
		}
		if string(raw) == "null" {
			continue
		}
		ok, err := f(key, raw)
		if err != nil {
			return err
		}
		if !ok && u.Mode == Strict {
			return &UnrecognizedFieldError{Message: message, Key: key}
		}
	}
	if _, err := dec.Token(); err != nil {
		return invalid("%s: %v", message, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return invalid("%s: unexpected data after object", message)
	}
	return nil
}

func unmarshalScalar(raw json.RawMessage, dst any, key string) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid("field %q: %v", key, err)
	}
	return nil
}

func describe(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		return string(v)
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", tok)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, derrors.InvalidArgument)...)
}
