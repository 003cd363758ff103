// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"fmt"
	"math"

	gojson "github.com/goccy/go-json"
)

// Encode-side argument conversion.

func argBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if i, err := argInt64(v); err == nil {
		return i != 0, nil
	}
	return false, errorf("EncodeData", ErrArgType, "cannot use %T as boolean.", v)
}

func argInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		if uint64(val) <= math.MaxInt64 {
			return int64(val), nil
		}
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val), nil
		}
	}
	return 0, errorf("EncodeData", ErrArgType, "cannot use %T(%v) as integer.", v, v)
}

func argUint64(v any) (uint64, error) {
	switch val := v.(type) {
	case uint64:
		return val, nil
	case uint:
		return uint64(val), nil
	case uint32:
		return uint64(val), nil
	case uint16:
		return uint64(val), nil
	case uint8:
		return uint64(val), nil
	}
	i, err := argInt64(v)
	if err != nil || i < 0 {
		return 0, errorf("EncodeData", ErrArgType, "cannot use %T(%v) as unsigned integer.", v, v)
	}
	return uint64(i), nil
}

func argFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	}
	if i, err := argInt64(v); err == nil {
		return float64(i), nil
	}
	return 0, errorf("EncodeData", ErrArgType, "cannot use %T as number.", v)
}

func argComplex128(v any) (complex128, error) {
	switch val := v.(type) {
	case complex128:
		return val, nil
	case complex64:
		return complex128(val), nil
	}
	if f, err := argFloat64(v); err == nil {
		return complex(f, 0), nil
	}
	return 0, errorf("EncodeData", ErrArgType, "cannot use %T as complex.", v)
}

// argPayload resolves a (payload, length) argument pair. The length must
// not exceed the payload; only the first length bytes are used.
func argPayload(payload, size any) ([]byte, error) {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	case *Buffer:
		if p == nil {
			return nil, errorf("EncodeData", ErrArgType, "payload buffer is nil.")
		}
		b = p.Bytes()
	default:
		return nil, errorf("EncodeData", ErrArgType, "cannot use %T as string payload.", payload)
	}
	n, err := argInt64(size)
	if err != nil {
		return nil, errorf("EncodeData", ErrArgType, "cannot use %T as string length.", size)
	}
	if n < 0 || n > int64(len(b)) {
		return nil, errorf("EncodeData", ErrArgType,
			"string length %d is outside payload of %d bytes.", n, len(b))
	}
	return b[:n], nil
}

// Decode-side JSON kind checks. Parsed trees carry gojson.Number; trees
// built in Go may carry native numbers.

func jsonInt(data any) (int64, bool) {
	switch v := data.(type) {
	case gojson.Number:
		i, err := v.Int64()
		return i, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func jsonFloat(data any) (float64, bool) {
	switch v := data.(type) {
	case gojson.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Slot storage. Without realloc a slot is *T. With realloc it is **T and
// storage for one value is allocated when *slot is nil.

func storeValue[T any](slot any, allowRealloc bool, v T) error {
	if allowRealloc {
		p, ok := slot.(**T)
		if !ok || p == nil {
			return errorf("DecodeData", ErrArgType, "reallocatable slot must be a non-nil %T, got %T.", p, slot)
		}
		if *p == nil {
			*p = new(T)
			diag().Debug("metaschema: allocated output slot", "type", fmt.Sprintf("%T", v))
		}
		**p = v
		return nil
	}
	p, ok := slot.(*T)
	if !ok || p == nil {
		return errorf("DecodeData", ErrArgType, "slot must be a non-nil %T, got %T.", p, slot)
	}
	*p = v
	return nil
}

// storeInt writes v to an int, int64 or int32 slot. A value that does not
// fit the slot is a kind mismatch and leaves the slot untouched.
func storeInt(slot any, allowRealloc bool, v int64) error {
	switch slot.(type) {
	case *int64, **int64:
		return storeValue(slot, allowRealloc, v)
	case *int, **int:
		if int64(int(v)) != v {
			return errorf("DecodeData", ErrKindMismatch, "Data %d overflows int.", v)
		}
		return storeValue(slot, allowRealloc, int(v))
	case *int32, **int32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return errorf("DecodeData", ErrKindMismatch, "Data %d overflows int32.", v)
		}
		return storeValue(slot, allowRealloc, int32(v))
	}
	return errorf("DecodeData", ErrArgType, "cannot store integer in %T.", slot)
}

func storeFloat(slot any, allowRealloc bool, v float64) error {
	switch slot.(type) {
	case *float64, **float64:
		return storeValue(slot, allowRealloc, v)
	case *float32, **float32:
		return storeValue(slot, allowRealloc, float32(v))
	}
	return errorf("DecodeData", ErrArgType, "cannot store number in %T.", slot)
}

func storeNull(slot any) error {
	switch p := slot.(type) {
	case nil:
		return nil
	case *any:
		if p != nil {
			*p = nil
		}
		return nil
	}
	return errorf("DecodeData", ErrArgType, "cannot store null in %T.", slot)
}

// storePayload copies payload into a *Buffer slot with a terminator and
// writes its length to an *int slot.
func storePayload(bufSlot, sizeSlot any, payload []byte, allowRealloc bool) error {
	buf, ok := bufSlot.(*Buffer)
	if !ok || buf == nil {
		return errorf("DecodeData", ErrArgType, "string slot must be a non-nil *Buffer, got %T.", bufSlot)
	}
	size, ok := sizeSlot.(*int)
	if !ok || size == nil {
		return errorf("DecodeData", ErrArgType, "length slot must be a non-nil *int, got %T.", sizeSlot)
	}
	n, err := CopyToBuffer(payload, buf, allowRealloc, true)
	if err != nil {
		return err
	}
	*size = n
	return nil
}
