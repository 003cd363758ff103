// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import "io"

// Datatype is implemented by every type variant. The pipeline functions in
// this file (EncodeType, Serialize, Deserialize) drive a Datatype without
// knowing which variant it is.
type Datatype interface {
	// Name returns the registry name of the type.
	Name() string
	// Code returns the registry resolution of Name.
	Code() TypeCode
	// UpdateType re-resolves the type from a new name.
	UpdateType(name string) error
	// NargsExp returns how many cursor items one value of the type uses.
	NargsExp() (int, error)
	// EncodeTypeProp writes the members of the type header object.
	EncodeTypeProp(w *Writer) error
	// EncodeData writes one JSON value built from the next NargsExp()
	// cursor items. The cursor may hold more items than that.
	EncodeData(w *Writer, c *Cursor) error
	// DecodeData stores a parsed JSON value into the cursor's slots. The
	// cursor must hold exactly NargsExp() slots.
	DecodeData(data any, allowRealloc bool, c *Cursor) error
	// Copy returns an independent copy including variant state.
	Copy() Datatype
	// Display writes a human-readable dump of the type.
	Display(w io.Writer)
}

// NewDatatype builds the variant registered for name with default
// properties. Codes without a variant constructor produce a base *Type.
func NewDatatype(name string) (Datatype, error) {
	return NewFromHeader(map[string]any{"type": name})
}

// NewFromHeader builds a Datatype from a parsed type header. The header
// must be a JSON object with a string "type" member.
func NewFromHeader(doc any) (Datatype, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errorf("NewFromHeader", ErrMalformedHeader, "Parsed document is not an object.")
	}
	raw, ok := obj["type"]
	if !ok {
		return nil, errorf("NewFromHeader", ErrMalformedHeader, "Parsed header doesn't contain a type.")
	}
	name, ok := raw.(string)
	if !ok {
		return nil, errorf("NewFromHeader", ErrMalformedHeader, "Type in parsed header is not a string.")
	}
	code, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	if ctor, ok := lookupConstructor(code); ok {
		return ctor(obj)
	}
	return &Type{name: name, code: code}, nil
}

// ParseHeader parses a serialized type header.
func ParseHeader(b []byte) (Datatype, error) {
	doc, err := ParseJSON(b)
	if err != nil {
		return nil, err
	}
	return NewFromHeader(doc)
}
