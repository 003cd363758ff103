// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"bytes"
	"errors"
	"io"

	gojson "github.com/goccy/go-json"
)

// Deserialize parses a data body and stores it into the cursor's slots. It
// returns the number of slots consumed, or -1 and an error.
func Deserialize(t Datatype, src []byte, allowRealloc bool, c *Cursor) (int, error) {
	before := c.Remaining()
	nargs, err := t.NargsExp()
	if err != nil {
		return -1, err
	}
	if nargs > before {
		return -1, errorf("Deserialize", ErrArgCount,
			"%d arguments expected, but only %d provided.", nargs, before)
	}
	doc, err := ParseJSON(src)
	if err != nil {
		return -1, err
	}
	if err := t.DecodeData(doc, allowRealloc, c); err != nil {
		return -1, err
	}
	if c.Remaining() != 0 {
		return -1, errorf("Deserialize", ErrArgsUnused, "%d arguments were not used.", c.Remaining())
	}
	return before - c.Remaining(), nil
}

// ParseJSON parses exactly one JSON document. Numbers are kept as
// gojson.Number so integer and floating literals stay distinguishable.
// A single trailing zero byte is ignored.
func ParseJSON(b []byte) (any, error) {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	dec := gojson.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, wrapf("ParseJSON", ErrMalformedJSON, err, "could not parse %d bytes.", len(b))
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errorf("ParseJSON", ErrMalformedJSON, "trailing data after JSON value.")
	}
	return doc, nil
}
