// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// Type is the base variant. It carries a type name and the code the
// registry resolves it to; it encodes and decodes the JSON primitives
// (boolean, integer, null, number, string) itself.
type Type struct {
	name string
	code TypeCode
}

var _ Datatype = (*Type)(nil)

// NewType returns a base variant for name.
func NewType(name string) (*Type, error) {
	t := &Type{code: -1}
	if err := t.UpdateType(name); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// Code returns the type code.
func (t *Type) Code() TypeCode { return t.code }

// UpdateType resolves name and, on success, replaces both name and code.
func (t *Type) UpdateType(name string) error {
	code, err := Resolve(name)
	if err != nil {
		return err
	}
	t.name, t.code = name, code
	return nil
}

// Copy returns a new Type with the same name.
func (t *Type) Copy() Datatype {
	return &Type{name: t.name, code: t.code}
}

// Display writes the name and code.
func (t *Type) Display(w io.Writer) {
	fmt.Fprintf(w, "%-15s = %s\n", "type", t.name)
	fmt.Fprintf(w, "%-15s = %d\n", "type_code", int(t.code))
}

// NargsExp returns 1 for boolean, integer, null and number and 2 for
// string (payload plus explicit length).
func (t *Type) NargsExp() (int, error) {
	switch t.code {
	case Boolean, Integer, Null, Number:
		return 1, nil
	case String:
		return 2, nil
	}
	return 0, errorf("NargsExp", ErrUnsupported,
		"Cannot get number of expected arguments for type '%s'.", t.name)
}

// EncodeTypeProp writes the "type" member.
func (t *Type) EncodeTypeProp(w *Writer) error {
	if !w.Key("type") || !w.String(t.name) {
		return wrapf("EncodeTypeProp", ErrWrite, w.Err(), "could not write type '%s'.", t.name)
	}
	return nil
}

// EncodeData writes the next value(s) from c as a JSON value.
func (t *Type) EncodeData(w *Writer, c *Cursor) error {
	nargs, err := t.NargsExp()
	if err != nil {
		return errorf("EncodeData", ErrUnsupported, "Cannot encode data of type '%s'.", t.name)
	}
	if nargs > c.Remaining() {
		return errorf("EncodeData", ErrArgCount,
			"%d arguments expected, but only %d provided.", nargs, c.Remaining())
	}
	arg, _ := c.Next()
	var ok bool
	switch t.code {
	case Boolean:
		b, err := argBool(arg)
		if err != nil {
			return err
		}
		ok = w.Bool(b)
	case Integer:
		v, err := argInt64(arg)
		if err != nil {
			return err
		}
		ok = w.Int(v)
	case Null:
		ok = w.Null()
	case Number:
		v, err := argFloat64(arg)
		if err != nil {
			return err
		}
		ok = w.Double(v)
	case String:
		size, _ := c.Next()
		payload, err := argPayload(arg, size)
		if err != nil {
			return err
		}
		// JSON strings cannot carry arbitrary bytes; use a bytes scalar.
		if !utf8.Valid(payload) {
			return errorf("EncodeData", ErrArgType, "String data is not valid UTF-8.")
		}
		ok = w.String(string(payload))
	}
	if !ok {
		return wrapf("EncodeData", ErrWrite, w.Err(), "could not write data of type '%s'.", t.name)
	}
	return nil
}

// DecodeData checks that data has the JSON kind the type requires and
// stores it into c's slots. Slots are untouched when the kind is wrong.
func (t *Type) DecodeData(data any, allowRealloc bool, c *Cursor) error {
	nargs, err := t.NargsExp()
	if err != nil {
		return errorf("DecodeData", ErrUnsupported, "Cannot decode data of type '%s'.", t.name)
	}
	if c.Remaining() != nargs {
		return errorf("DecodeData", ErrArgCount,
			"%d arguments expected, but %d provided.", nargs, c.Remaining())
	}
	if err := t.checkData(data); err != nil {
		return err
	}
	slot, _ := c.Next()
	switch t.code {
	case Boolean:
		return storeValue(slot, allowRealloc, data.(bool))
	case Integer:
		v, _ := jsonInt(data)
		return storeInt(slot, allowRealloc, v)
	case Null:
		return storeNull(slot)
	case Number:
		v, _ := jsonFloat(data)
		return storeFloat(slot, allowRealloc, v)
	}
	sizeSlot, _ := c.Next()
	return storePayload(slot, sizeSlot, []byte(data.(string)), allowRealloc)
}

// checkData reports a kind mismatch between data and the type without
// touching any slot.
func (t *Type) checkData(data any) error {
	var ok bool
	var want string
	switch t.code {
	case Boolean:
		_, ok = data.(bool)
		want = "a bool"
	case Integer:
		_, ok = jsonInt(data)
		want = "an int"
	case Null:
		ok = data == nil
		want = "null"
	case Number:
		_, ok = jsonFloat(data)
		want = "a double"
	case String:
		_, ok = data.(string)
		want = "a string"
	default:
		// types embedding Type validate in their own DecodeData
		return nil
	}
	if !ok {
		return errorf("DecodeData", ErrKindMismatch, "Data is not %s.", want)
	}
	return nil
}
