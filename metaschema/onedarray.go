// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// OneDArrayType is a fixed-width numeric vector carried as an Arrow
// primitive array. The data body is a JSON string holding the base64
// encoding of the array's little-endian value buffer.
//
// It consumes one arrow.Array when encoding and decodes into an
// *arrow.Array slot. Without realloc the slot must already hold an array
// of the same type and length, whose values are overwritten in place.
// With realloc a new array is built and any previous one is released.
type OneDArrayType struct {
	Type
	subtype   string
	precision int
	length    int
	units     string
	dtype     arrow.FixedWidthDataType
	mem       memory.Allocator
}

var _ Datatype = (*OneDArrayType)(nil)

// NewOneDArrayType returns a 1darray of subtype int, uint or float. A zero
// precision selects 64 bits. A zero length accepts any length.
func NewOneDArrayType(subtype string, precision, length int, units string) (*OneDArrayType, error) {
	code, err := Resolve("1darray")
	if err != nil {
		return nil, err
	}
	if precision == 0 {
		precision = 64
	}
	dt, err := arrowType(subtype, precision)
	if err != nil {
		return nil, err
	}
	return &OneDArrayType{
		Type:      Type{name: "1darray", code: code},
		subtype:   subtype,
		precision: precision,
		length:    length,
		units:     units,
		dtype:     dt,
		mem:       memory.NewGoAllocator(),
	}, nil
}

func newOneDArrayFromHeader(header map[string]any) (Datatype, error) {
	subtype := SubtypeFloat
	if raw, ok := header["subtype"]; ok {
		st, ok := raw.(string)
		if !ok {
			return nil, errorf("NewFromHeader", ErrMalformedHeader, "Subtype in parsed header is not a string.")
		}
		subtype = st
	}
	precision, err := headerInt(header, "precision")
	if err != nil {
		return nil, err
	}
	length, err := headerInt(header, "length")
	if err != nil {
		return nil, err
	}
	var units string
	if raw, ok := header["units"]; ok {
		if units, ok = raw.(string); !ok {
			return nil, errorf("NewFromHeader", ErrMalformedHeader, "Units in parsed header are not a string.")
		}
	}
	return NewOneDArrayType(subtype, precision, length, units)
}

func arrowType(subtype string, precision int) (arrow.FixedWidthDataType, error) {
	var dt arrow.DataType
	switch subtype {
	case SubtypeInt:
		switch precision {
		case 8:
			dt = arrow.PrimitiveTypes.Int8
		case 16:
			dt = arrow.PrimitiveTypes.Int16
		case 32:
			dt = arrow.PrimitiveTypes.Int32
		case 64:
			dt = arrow.PrimitiveTypes.Int64
		}
	case SubtypeUint:
		switch precision {
		case 8:
			dt = arrow.PrimitiveTypes.Uint8
		case 16:
			dt = arrow.PrimitiveTypes.Uint16
		case 32:
			dt = arrow.PrimitiveTypes.Uint32
		case 64:
			dt = arrow.PrimitiveTypes.Uint64
		}
	case SubtypeFloat:
		switch precision {
		case 32:
			dt = arrow.PrimitiveTypes.Float32
		case 64:
			dt = arrow.PrimitiveTypes.Float64
		}
	default:
		return nil, errorf("NewOneDArrayType", ErrUnsupported, "Unsupported 1darray subtype '%s'.", subtype)
	}
	if dt == nil {
		return nil, errorf("NewOneDArrayType", ErrUnsupported,
			"Unsupported precision %d for 1darray subtype '%s'.", precision, subtype)
	}
	return dt.(arrow.FixedWidthDataType), nil
}

// Subtype returns the element subtype.
func (a *OneDArrayType) Subtype() string { return a.subtype }

// Precision returns the element precision in bits.
func (a *OneDArrayType) Precision() int { return a.precision }

// Length returns the declared length, or 0 when any length is accepted.
func (a *OneDArrayType) Length() int { return a.length }

// Units returns the units annotation, if any.
func (a *OneDArrayType) Units() string { return a.units }

// DataType returns the Arrow element type.
func (a *OneDArrayType) DataType() arrow.DataType { return a.dtype }

// SetAllocator changes the allocator used for arrays built while decoding.
func (a *OneDArrayType) SetAllocator(mem memory.Allocator) { a.mem = mem }

// UpdateType only accepts "1darray".
func (a *OneDArrayType) UpdateType(name string) error {
	code, err := Resolve(name)
	if err != nil {
		return err
	}
	if code != OneDArray {
		return errorf("UpdateType", ErrUnsupported, "Cannot change 1darray type to '%s'.", name)
	}
	a.name, a.code = name, code
	return nil
}

// Copy returns an independent copy sharing the allocator.
func (a *OneDArrayType) Copy() Datatype {
	out := *a
	return &out
}

// Display writes the array properties.
func (a *OneDArrayType) Display(w io.Writer) {
	a.Type.Display(w)
	fmt.Fprintf(w, "%-15s = %s\n", "subtype", a.subtype)
	fmt.Fprintf(w, "%-15s = %d\n", "precision", a.precision)
	fmt.Fprintf(w, "%-15s = %d\n", "length", a.length)
	if a.units != "" {
		fmt.Fprintf(w, "%-15s = %s\n", "units", a.units)
	}
}

// NargsExp is always 1.
func (a *OneDArrayType) NargsExp() (int, error) { return 1, nil }

// EncodeTypeProp writes type, subtype, precision, length and units.
func (a *OneDArrayType) EncodeTypeProp(w *Writer) error {
	if err := a.Type.EncodeTypeProp(w); err != nil {
		return err
	}
	ok := w.Key("subtype") && w.String(a.subtype) &&
		w.Key("precision") && w.Int(int64(a.precision))
	if ok && a.length > 0 {
		ok = w.Key("length") && w.Int(int64(a.length))
	}
	if ok && a.units != "" {
		ok = w.Key("units") && w.String(a.units)
	}
	if !ok {
		return wrapf("EncodeTypeProp", ErrWrite, w.Err(), "could not write 1darray properties.")
	}
	return nil
}

func (a *OneDArrayType) width() int { return a.dtype.BitWidth() / 8 }

// values returns the bytes backing arr's visible elements.
func (a *OneDArrayType) values(arr arrow.Array) []byte {
	n := arr.Len()
	if n == 0 {
		return nil
	}
	buf := arr.Data().Buffers()[1]
	off := arr.Data().Offset() * a.width()
	return buf.Bytes()[off : off+n*a.width()]
}

// EncodeData writes the next arrow.Array.
func (a *OneDArrayType) EncodeData(w *Writer, c *Cursor) error {
	arg, err := c.Next()
	if err != nil {
		return err
	}
	arr, ok := arg.(arrow.Array)
	if !ok || arr == nil {
		return errorf("EncodeData", ErrArgType, "cannot use %T as 1darray.", arg)
	}
	if !arrow.TypeEqual(arr.DataType(), a.dtype) {
		return errorf("EncodeData", ErrArgType, "array of %s given for 1darray of %s.", arr.DataType(), a.dtype)
	}
	if a.length > 0 && arr.Len() != a.length {
		return errorf("EncodeData", ErrArgType, "array of length %d given for 1darray of length %d.", arr.Len(), a.length)
	}
	if arr.NullN() > 0 {
		return errorf("EncodeData", ErrArgType, "1darray values cannot be null.")
	}
	if !w.String(base64.StdEncoding.EncodeToString(a.values(arr))) {
		return wrapf("EncodeData", ErrWrite, w.Err(), "could not write 1darray data.")
	}
	return nil
}

// DecodeData decodes a base64 JSON string into an *arrow.Array slot.
func (a *OneDArrayType) DecodeData(data any, allowRealloc bool, c *Cursor) error {
	if c.Remaining() != 1 {
		return errorf("DecodeData", ErrArgCount, "1 arguments expected, but %d provided.", c.Remaining())
	}
	raw, n, err := a.decodeRaw(data)
	if err != nil {
		return err
	}
	arg, _ := c.Next()
	slot, ok := arg.(*arrow.Array)
	if !ok || slot == nil {
		return errorf("DecodeData", ErrArgType, "1darray slot must be a non-nil *arrow.Array, got %T.", arg)
	}
	old := *slot
	if !allowRealloc {
		if old == nil || !arrow.TypeEqual(old.DataType(), a.dtype) || old.Len() != n || old.NullN() > 0 {
			return errorf("DecodeData", ErrBufferTooSmall,
				"1darray slot does not hold a %s array of length %d.", a.dtype, n)
		}
		copy(a.values(old), raw)
		return nil
	}
	buf := memory.NewResizableBuffer(a.mem)
	buf.Resize(len(raw))
	copy(buf.Bytes(), raw)
	d := array.NewData(a.dtype, n, []*memory.Buffer{nil, buf}, nil, 0, 0)
	*slot = array.MakeFromData(d)
	d.Release()
	buf.Release()
	if old != nil {
		old.Release()
	}
	diag().Debug("metaschema: allocated 1darray", "type", a.dtype.String(), "len", n)
	return nil
}

// decodeRaw unpacks the base64 payload and returns it with its element
// count.
func (a *OneDArrayType) decodeRaw(data any) ([]byte, int, error) {
	text, ok := data.(string)
	if !ok {
		return nil, 0, errorf("DecodeData", ErrKindMismatch, "1darray data is not a string.")
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, 0, wrapf("DecodeData", ErrKindMismatch, err, "1darray data is not base64.")
	}
	if len(raw)%a.width() != 0 {
		return nil, 0, errorf("DecodeData", ErrKindMismatch,
			"1darray data of %d bytes is not a multiple of %d.", len(raw), a.width())
	}
	n := len(raw) / a.width()
	if a.length > 0 && n != a.length {
		return nil, 0, errorf("DecodeData", ErrKindMismatch, "1darray data has %d elements, expected %d.", n, a.length)
	}
	return raw, n, nil
}

func (a *OneDArrayType) checkData(data any) error {
	_, _, err := a.decodeRaw(data)
	return err
}
