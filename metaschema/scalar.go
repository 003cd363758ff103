// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Scalar subtypes.
const (
	SubtypeInt     = "int"
	SubtypeUint    = "uint"
	SubtypeFloat   = "float"
	SubtypeComplex = "complex"
	SubtypeBytes   = "bytes"
	SubtypeUnicode = "unicode"
)

// ScalarType is a fixed-precision scalar. Its data body is a JSON string
// holding the base64 encoding of the value's little-endian bytes, so
// every precision round-trips exactly.
//
// Numeric subtypes consume one Go value of the matching kind
// (int8..int64, uint8..uint64, float32/float64, complex64/complex128).
// The bytes and unicode subtypes consume a (payload, length) pair like the
// string type and decode into a *Buffer and an *int. For them precision
// is optional and, when set, caps the payload at precision/8 bytes.
type ScalarType struct {
	Type
	subtype   string
	precision int
	units     string
}

var _ Datatype = (*ScalarType)(nil)

// NewScalarType returns a scalar of the given subtype named after it.
// A zero precision selects the subtype default.
func NewScalarType(subtype string, precision int, units string) (*ScalarType, error) {
	return newScalar(subtype, subtype, precision, units)
}

func newScalar(name, subtype string, precision int, units string) (*ScalarType, error) {
	s := &ScalarType{}
	code, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	s.name, s.code = name, code
	if precision == 0 {
		precision = defaultPrecision(subtype)
	}
	if err := checkPrecision(subtype, precision); err != nil {
		return nil, err
	}
	s.subtype, s.precision, s.units = subtype, precision, units
	return s, nil
}

func newScalarFromHeader(header map[string]any) (Datatype, error) {
	name, _ := header["type"].(string)
	subtype := name
	if raw, ok := header["subtype"]; ok {
		st, ok := raw.(string)
		if !ok {
			return nil, errorf("NewFromHeader", ErrMalformedHeader, "Subtype in parsed header is not a string.")
		}
		if name != "scalar" && st != name {
			return nil, errorf("NewFromHeader", ErrMalformedHeader,
				"Subtype '%s' conflicts with type '%s'.", st, name)
		}
		subtype = st
	} else if name == "scalar" {
		subtype = SubtypeFloat
	}
	precision, err := headerInt(header, "precision")
	if err != nil {
		return nil, err
	}
	var units string
	if raw, ok := header["units"]; ok {
		if units, ok = raw.(string); !ok {
			return nil, errorf("NewFromHeader", ErrMalformedHeader, "Units in parsed header are not a string.")
		}
	}
	return newScalar(name, subtype, precision, units)
}

// headerInt reads an optional non-negative integer member of a header.
func headerInt(header map[string]any, key string) (int, error) {
	raw, ok := header[key]
	if !ok {
		return 0, nil
	}
	v, ok := jsonInt(raw)
	if !ok || v < 0 || v > math.MaxInt32 {
		return 0, errorf("NewFromHeader", ErrMalformedHeader,
			"Property '%s' in parsed header is not a non-negative integer.", key)
	}
	return int(v), nil
}

func defaultPrecision(subtype string) int {
	switch subtype {
	case SubtypeInt, SubtypeUint, SubtypeFloat:
		return 64
	case SubtypeComplex:
		return 128
	}
	return 0
}

func checkPrecision(subtype string, precision int) error {
	var ok bool
	switch subtype {
	case SubtypeInt, SubtypeUint:
		ok = precision == 8 || precision == 16 || precision == 32 || precision == 64
	case SubtypeFloat:
		ok = precision == 32 || precision == 64
	case SubtypeComplex:
		ok = precision == 64 || precision == 128
	case SubtypeBytes, SubtypeUnicode:
		ok = precision%8 == 0
	default:
		return errorf("NewScalarType", ErrUnsupported, "Unsupported scalar subtype '%s'.", subtype)
	}
	if !ok {
		return errorf("NewScalarType", ErrUnsupported,
			"Unsupported precision %d for scalar subtype '%s'.", precision, subtype)
	}
	return nil
}

// Subtype returns the scalar subtype.
func (s *ScalarType) Subtype() string { return s.subtype }

// Precision returns the precision in bits. Zero means unbounded for bytes
// and unicode.
func (s *ScalarType) Precision() int { return s.precision }

// Units returns the units annotation, if any.
func (s *ScalarType) Units() string { return s.units }

func (s *ScalarType) variable() bool {
	return s.subtype == SubtypeBytes || s.subtype == SubtypeUnicode
}

// UpdateType renames the scalar. Renaming to a scalar family name other
// than "scalar" also switches the subtype and resets its precision.
func (s *ScalarType) UpdateType(name string) error {
	code, err := Resolve(name)
	if err != nil {
		return err
	}
	switch code {
	case Scalar:
		s.name, s.code = name, code
		return nil
	case Int, Uint, Float, Complex, Bytes, Unicode:
	default:
		return errorf("UpdateType", ErrUnsupported, "Cannot change scalar type to '%s'.", name)
	}
	s.name, s.code = name, code
	if s.subtype != name {
		s.subtype, s.precision = name, defaultPrecision(name)
	}
	return nil
}

// Copy returns an independent copy.
func (s *ScalarType) Copy() Datatype {
	out := *s
	return &out
}

// Display writes the scalar properties.
func (s *ScalarType) Display(w io.Writer) {
	s.Type.Display(w)
	fmt.Fprintf(w, "%-15s = %s\n", "subtype", s.subtype)
	fmt.Fprintf(w, "%-15s = %d\n", "precision", s.precision)
	if s.units != "" {
		fmt.Fprintf(w, "%-15s = %s\n", "units", s.units)
	}
}

// NargsExp returns 2 for bytes and unicode and 1 otherwise.
func (s *ScalarType) NargsExp() (int, error) {
	if s.variable() {
		return 2, nil
	}
	return 1, nil
}

// EncodeTypeProp writes type, subtype, precision and units.
func (s *ScalarType) EncodeTypeProp(w *Writer) error {
	if err := s.Type.EncodeTypeProp(w); err != nil {
		return err
	}
	ok := w.Key("subtype") && w.String(s.subtype) &&
		w.Key("precision") && w.Int(int64(s.precision))
	if ok && s.units != "" {
		ok = w.Key("units") && w.String(s.units)
	}
	if !ok {
		return wrapf("EncodeTypeProp", ErrWrite, w.Err(), "could not write scalar properties.")
	}
	return nil
}

// EncodeData writes the next value as base64 of its raw bytes.
func (s *ScalarType) EncodeData(w *Writer, c *Cursor) error {
	nargs, _ := s.NargsExp()
	if nargs > c.Remaining() {
		return errorf("EncodeData", ErrArgCount,
			"%d arguments expected, but only %d provided.", nargs, c.Remaining())
	}
	arg, _ := c.Next()
	var raw []byte
	var err error
	if s.variable() {
		size, _ := c.Next()
		raw, err = argPayload(arg, size)
		if err == nil && s.precision > 0 && len(raw) > s.precision/8 {
			err = errorf("EncodeData", ErrArgType,
				"payload of %d bytes exceeds precision of %d bits.", len(raw), s.precision)
		}
		if err == nil && s.subtype == SubtypeUnicode && !utf8.Valid(raw) {
			err = errorf("EncodeData", ErrArgType, "Unicode data is not valid UTF-8.")
		}
	} else {
		raw, err = s.encodeNumeric(arg)
	}
	if err != nil {
		return err
	}
	if !w.String(base64.StdEncoding.EncodeToString(raw)) {
		return wrapf("EncodeData", ErrWrite, w.Err(), "could not write scalar data.")
	}
	return nil
}

func (s *ScalarType) encodeNumeric(arg any) ([]byte, error) {
	var v any
	switch s.subtype {
	case SubtypeInt:
		i, err := argInt64(arg)
		if err != nil {
			return nil, err
		}
		if s.precision < 64 {
			lim := int64(1) << (s.precision - 1)
			if i < -lim || i >= lim {
				return nil, errorf("EncodeData", ErrArgType, "%d overflows int%d.", i, s.precision)
			}
		}
		switch s.precision {
		case 8:
			v = int8(i)
		case 16:
			v = int16(i)
		case 32:
			v = int32(i)
		default:
			v = i
		}
	case SubtypeUint:
		u, err := argUint64(arg)
		if err != nil {
			return nil, err
		}
		if s.precision < 64 && u >= uint64(1)<<s.precision {
			return nil, errorf("EncodeData", ErrArgType, "%d overflows uint%d.", u, s.precision)
		}
		switch s.precision {
		case 8:
			v = uint8(u)
		case 16:
			v = uint16(u)
		case 32:
			v = uint32(u)
		default:
			v = u
		}
	case SubtypeFloat:
		f, err := argFloat64(arg)
		if err != nil {
			return nil, err
		}
		if s.precision == 32 {
			v = float32(f)
		} else {
			v = f
		}
	case SubtypeComplex:
		z, err := argComplex128(arg)
		if err != nil {
			return nil, err
		}
		if s.precision == 64 {
			v = complex64(z)
		} else {
			v = z
		}
	}
	raw, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		return nil, wrapf("EncodeData", ErrArgType, err, "cannot encode %T.", v)
	}
	return raw, nil
}

// DecodeData decodes a base64 JSON string into the cursor's slots.
func (s *ScalarType) DecodeData(data any, allowRealloc bool, c *Cursor) error {
	nargs, _ := s.NargsExp()
	if c.Remaining() != nargs {
		return errorf("DecodeData", ErrArgCount,
			"%d arguments expected, but %d provided.", nargs, c.Remaining())
	}
	raw, err := s.decodeRaw(data)
	if err != nil {
		return err
	}
	if s.variable() {
		bufSlot, _ := c.Next()
		sizeSlot, _ := c.Next()
		return storePayload(bufSlot, sizeSlot, raw, allowRealloc)
	}
	slot, _ := c.Next()
	switch s.subtype {
	case SubtypeInt:
		switch s.precision {
		case 8:
			return decodeLE[int8](raw, slot, allowRealloc)
		case 16:
			return decodeLE[int16](raw, slot, allowRealloc)
		case 32:
			return decodeLE[int32](raw, slot, allowRealloc)
		}
		return decodeLE[int64](raw, slot, allowRealloc)
	case SubtypeUint:
		switch s.precision {
		case 8:
			return decodeLE[uint8](raw, slot, allowRealloc)
		case 16:
			return decodeLE[uint16](raw, slot, allowRealloc)
		case 32:
			return decodeLE[uint32](raw, slot, allowRealloc)
		}
		return decodeLE[uint64](raw, slot, allowRealloc)
	case SubtypeFloat:
		if s.precision == 32 {
			return decodeLE[float32](raw, slot, allowRealloc)
		}
		return decodeLE[float64](raw, slot, allowRealloc)
	case SubtypeComplex:
		if s.precision == 64 {
			return decodeLE[complex64](raw, slot, allowRealloc)
		}
		return decodeLE[complex128](raw, slot, allowRealloc)
	}
	return errorf("DecodeData", ErrUnsupported, "Cannot decode scalar subtype '%s'.", s.subtype)
}

// decodeRaw unpacks the base64 payload and checks its length against the
// subtype and precision.
func (s *ScalarType) decodeRaw(data any) ([]byte, error) {
	text, ok := data.(string)
	if !ok {
		return nil, errorf("DecodeData", ErrKindMismatch, "Scalar data is not a string.")
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, wrapf("DecodeData", ErrKindMismatch, err, "Scalar data is not base64.")
	}
	if s.variable() {
		if s.precision > 0 && len(raw) > s.precision/8 {
			return nil, errorf("DecodeData", ErrKindMismatch,
				"payload of %d bytes exceeds precision of %d bits.", len(raw), s.precision)
		}
		if s.subtype == SubtypeUnicode && !utf8.Valid(raw) {
			return nil, errorf("DecodeData", ErrKindMismatch, "Unicode data is not valid UTF-8.")
		}
		return raw, nil
	}
	if len(raw) != s.precision/8 {
		return nil, errorf("DecodeData", ErrKindMismatch,
			"Scalar data has %d bytes, expected %d.", len(raw), s.precision/8)
	}
	return raw, nil
}

func (s *ScalarType) checkData(data any) error {
	_, err := s.decodeRaw(data)
	return err
}

func decodeLE[T any](raw []byte, slot any, allowRealloc bool) error {
	var v T
	if _, err := binary.Decode(raw, binary.LittleEndian, &v); err != nil {
		return wrapf("DecodeData", ErrKindMismatch, err, "cannot decode %T.", v)
	}
	return storeValue(slot, allowRealloc, v)
}
