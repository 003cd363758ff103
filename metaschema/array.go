// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"fmt"
	"io"
	"strings"
)

// ArrayType is a fixed-length JSON array whose elements each have their
// own type. It consumes the arguments of every item in order.
type ArrayType struct {
	Type
	items []Datatype
}

var _ Datatype = (*ArrayType)(nil)

// NewArrayType returns an array of the given item types.
func NewArrayType(items ...Datatype) *ArrayType {
	return &ArrayType{Type: Type{name: "array", code: Array}, items: items}
}

func newArrayFromHeader(header map[string]any) (Datatype, error) {
	raw, ok := header["items"]
	if !ok {
		return NewArrayType(), nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errorf("NewFromHeader", ErrMalformedHeader, "Items in parsed header are not an array.")
	}
	items := make([]Datatype, 0, len(list))
	for _, doc := range list {
		item, err := NewFromHeader(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return NewArrayType(items...), nil
}

// Items returns the item types.
func (a *ArrayType) Items() []Datatype { return a.items }

// UpdateType only accepts "array".
func (a *ArrayType) UpdateType(name string) error {
	code, err := Resolve(name)
	if err != nil {
		return err
	}
	if code != Array {
		return errorf("UpdateType", ErrUnsupported, "Cannot change array type to '%s'.", name)
	}
	a.name, a.code = name, code
	return nil
}

// Copy returns a deep copy.
func (a *ArrayType) Copy() Datatype {
	items := make([]Datatype, len(a.items))
	for i, item := range a.items {
		items[i] = item.Copy()
	}
	return &ArrayType{Type: a.Type, items: items}
}

// Display writes the array and each of its items, indented.
func (a *ArrayType) Display(w io.Writer) {
	a.Type.Display(w)
	fmt.Fprintf(w, "%-15s = %d\n", "items", len(a.items))
	for i, item := range a.items {
		var sb strings.Builder
		item.Display(&sb)
		for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
			fmt.Fprintf(w, "  [%d] %s\n", i, line)
		}
	}
}

// NargsExp returns the sum of the items' counts.
func (a *ArrayType) NargsExp() (int, error) {
	total := 0
	for _, item := range a.items {
		n, err := item.NargsExp()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// EncodeTypeProp writes type and the item headers.
func (a *ArrayType) EncodeTypeProp(w *Writer) error {
	if err := a.Type.EncodeTypeProp(w); err != nil {
		return err
	}
	if !w.Key("items") || !w.StartArray() {
		return wrapf("EncodeTypeProp", ErrWrite, w.Err(), "could not write array items.")
	}
	for _, item := range a.items {
		if err := EncodeType(item, w); err != nil {
			return err
		}
	}
	if !w.EndArray() {
		return wrapf("EncodeTypeProp", ErrWrite, w.Err(), "could not write array items.")
	}
	return nil
}

// EncodeData writes one JSON array element per item.
func (a *ArrayType) EncodeData(w *Writer, c *Cursor) error {
	nargs, err := a.NargsExp()
	if err != nil {
		return err
	}
	if nargs > c.Remaining() {
		return errorf("EncodeData", ErrArgCount,
			"%d arguments expected, but only %d provided.", nargs, c.Remaining())
	}
	if !w.StartArray() {
		return wrapf("EncodeData", ErrWrite, w.Err(), "could not start array.")
	}
	for _, item := range a.items {
		if err := item.EncodeData(w, c); err != nil {
			return err
		}
	}
	if !w.EndArray() {
		return wrapf("EncodeData", ErrWrite, w.Err(), "could not end array.")
	}
	return nil
}

// dataChecker is implemented by types that can validate decoded JSON
// before any slot is written.
type dataChecker interface {
	checkData(data any) error
}

// DecodeData decodes a JSON array, handing each item exactly its own
// slots. Every element is checked before the first slot is written.
func (a *ArrayType) DecodeData(data any, allowRealloc bool, c *Cursor) error {
	nargs, err := a.NargsExp()
	if err != nil {
		return err
	}
	if c.Remaining() != nargs {
		return errorf("DecodeData", ErrArgCount,
			"%d arguments expected, but %d provided.", nargs, c.Remaining())
	}
	if err := a.checkData(data); err != nil {
		return err
	}
	elems := data.([]any)
	for i, item := range a.items {
		n, _ := item.NargsExp()
		sub, err := c.Sub(n)
		if err != nil {
			return err
		}
		if err := item.DecodeData(elems[i], allowRealloc, sub); err != nil {
			return err
		}
	}
	return nil
}

func (a *ArrayType) checkData(data any) error {
	elems, ok := data.([]any)
	if !ok {
		return errorf("DecodeData", ErrKindMismatch, "Data is not an array.")
	}
	if len(elems) != len(a.items) {
		return errorf("DecodeData", ErrKindMismatch,
			"Array has %d elements, expected %d.", len(elems), len(a.items))
	}
	for i, item := range a.items {
		if dc, ok := item.(dataChecker); ok {
			if err := dc.checkData(elems[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
