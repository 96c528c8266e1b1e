// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wall

import (
	"fmt"
	"math"

	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/trust"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the binary encoding. See wall.proto.
const (
	pointXPercent = 1
	pointYPercent = 2

	itemHTML          = 1
	itemHTMLUntrusted = 2
	itemCentroid      = 3

	itemsItem = 1

	updateItems   = 1
	updateVersion = 2

	safeHTMLValue = 2
)

// ContentType is the media type of the binary encoding.
const ContentType = "application/x-protobuf"

// MarshalUpdate returns the binary encoding of u.
func MarshalUpdate(u Update) []byte {
	var b []byte
	if items := appendWallItems(nil, u.Items); len(items) > 0 {
		b = protowire.AppendTag(b, updateItems, protowire.BytesType)
		b = protowire.AppendBytes(b, items)
	}
	if u.Version != 0 {
		b = protowire.AppendTag(b, updateVersion, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(u.Version)))
	}
	return b
}

// MarshalWallItem returns the binary encoding of item.
func MarshalWallItem(item WallItem) []byte {
	return appendWallItem(nil, item)
}

func appendWallItems(b []byte, w WallItems) []byte {
	for _, it := range w.Items {
		b = protowire.AppendTag(b, itemsItem, protowire.BytesType)
		b = protowire.AppendBytes(b, appendWallItem(nil, it))
	}
	return b
}

func appendWallItem(b []byte, it WallItem) []byte {
	if it.HTML != nil {
		var h []byte
		if s := it.HTML.HTML().String(); s != "" {
			h = protowire.AppendTag(h, safeHTMLValue, protowire.BytesType)
			h = protowire.AppendString(h, s)
		}
		b = protowire.AppendTag(b, itemHTML, protowire.BytesType)
		b = protowire.AppendBytes(b, h)
	}
	if it.HTMLUntrusted != "" {
		b = protowire.AppendTag(b, itemHTMLUntrusted, protowire.BytesType)
		b = protowire.AppendString(b, it.HTMLUntrusted)
	}
	if it.Centroid != (Point{}) {
		b = protowire.AppendTag(b, itemCentroid, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPoint(nil, it.Centroid))
	}
	return b
}

func appendPoint(b []byte, p Point) []byte {
	if p.XPercent != 0 {
		b = protowire.AppendTag(b, pointXPercent, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(p.XPercent)))
	}
	if p.YPercent != 0 {
		b = protowire.AppendTag(b, pointYPercent, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(p.YPercent)))
	}
	return b
}

// UnmarshalUpdate decodes the binary encoding of an Update.
// Unknown fields are skipped.
func UnmarshalUpdate(b []byte) (_ Update, err error) {
	defer derrors.Wrap(&err, "UnmarshalUpdate")
	var u Update
	err = consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == updateItems && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			items, err := unmarshalWallItems(v)
			if err != nil {
				return 0, err
			}
			// Repeated occurrences of a message field merge.
			u.Items.Items = append(u.Items.Items, items.Items...)
			return n, nil
		case num == updateVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			u.Version = int32(v)
			return n, nil
		}
		return skipField, nil
	})
	if err != nil {
		return Update{}, err
	}
	return u, nil
}

// UnmarshalWallItem decodes the binary encoding of a WallItem.
func UnmarshalWallItem(b []byte) (_ WallItem, err error) {
	defer derrors.Wrap(&err, "UnmarshalWallItem")
	return unmarshalWallItem(b)
}

func unmarshalWallItems(b []byte) (WallItems, error) {
	var w WallItems
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != itemsItem || typ != protowire.BytesType {
			return skipField, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		it, err := unmarshalWallItem(v)
		if err != nil {
			return 0, err
		}
		w.Items = append(w.Items, it)
		return n, nil
	})
	return w, err
}

func unmarshalWallItem(b []byte) (WallItem, error) {
	var it WallItem
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return skipField, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case itemHTML:
			s, err := unmarshalSafeHTML(v)
			if err != nil {
				return 0, err
			}
			it.HTML = s
		case itemHTMLUntrusted:
			it.HTMLUntrusted = string(v)
		case itemCentroid:
			p, err := unmarshalPoint(v)
			if err != nil {
				return 0, err
			}
			it.Centroid = p
		default:
			return skipField, nil
		}
		return n, nil
	})
	return it, err
}

func unmarshalSafeHTML(b []byte) (*SafeHTMLProto, error) {
	var s string
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != safeHTMLValue || typ != protowire.BytesType {
			return skipField, nil
		}
		v, n := protowire.ConsumeBytes(b)
		s = string(v)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return NewSafeHTMLProto(trust.HTMLKnownToSatisfyContract(trust.CheckedOnServer, s)), nil
}

func unmarshalPoint(b []byte) (Point, error) {
	var p Point
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return skipField, nil
		}
		v, n := protowire.ConsumeVarint(b)
		switch num {
		case pointXPercent:
			p.XPercent = int32(v)
		case pointYPercent:
			p.YPercent = int32(v)
		default:
			return skipField, nil
		}
		return n, nil
	})
	return p, err
}

// skipField is returned by a field callback to have consumeFields skip the
// field. It is distinct from the negative protowire error codes.
const skipField = math.MinInt32

// consumeFields walks the fields of a message. For each field, f is called
// with the bytes following the tag and returns the number of bytes it
// consumed, skipField, or a negative protowire error code.
func consumeFields(b []byte, f func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]
		m, err := f(num, typ, b)
		if err != nil {
			return err
		}
		if m == skipField {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return malformed(m)
		}
		b = b[m:]
	}
	return nil
}

func malformed(n int) error {
	return fmt.Errorf("%v: %w", protowire.ParseError(n), derrors.InvalidArgument)
}
