// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intStringArray(t *testing.T) *ArrayType {
	return NewArrayType(mustType(t, "integer"), mustType(t, "string"))
}

func TestArrayRoundTrip(t *testing.T) {
	a := intStringArray(t)
	n, err := a.NargsExp()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	body, err := Encode(a, 7, "hi there", 2)
	require.NoError(t, err)
	assert.Equal(t, `[7,"hi"]`, string(body))

	var i int
	buf := NewBuffer(0)
	var size int
	consumed, err := Deserialize(a, body, true, NewCursor(&i, buf, &size))
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
	assert.Equal(t, 7, i)
	assert.Equal(t, "hi", buf.String())
	assert.Equal(t, 2, size)
}

func TestArrayNested(t *testing.T) {
	inner := NewArrayType(mustType(t, "number"), mustType(t, "boolean"))
	outer := NewArrayType(mustType(t, "integer"), inner, mustScalar(t, "int", 16))
	body, err := Encode(outer, 1, 2.5, true, int16(-2))
	require.NoError(t, err)
	assert.Equal(t, `[1,[2.5,true],"/v8="]`, string(body))

	var (
		i int64
		f float64
		b bool
		s int16
	)
	_, err = Deserialize(outer, body, false, NewCursor(&i, &f, &b, &s))
	require.NoError(t, err)
	assert.Equal(t, int64(1), i)
	assert.Equal(t, 2.5, f)
	assert.True(t, b)
	assert.Equal(t, int16(-2), s)
}

func TestArrayHeader(t *testing.T) {
	hdr, err := EncodeHeader(intStringArray(t))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"array","items":[{"type":"integer"},{"type":"string"}]}`, string(hdr))

	dt, err := ParseHeader(hdr)
	require.NoError(t, err)
	a, ok := dt.(*ArrayType)
	require.True(t, ok)
	require.Len(t, a.Items(), 2)
	assert.Equal(t, String, a.Items()[1].Code())

	empty, err := NewDatatype("array")
	require.NoError(t, err)
	body, err := Encode(empty)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(body))

	_, err = ParseHeader([]byte(`{"type":"array","items":{"type":"integer"}}`))
	assert.ErrorIs(t, err, ErrMalformedHeader)
	_, err = ParseHeader([]byte(`{"type":"array","items":[{"type":"nope"}]}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestArrayDecodeMismatch(t *testing.T) {
	a := intStringArray(t)
	i := 5
	buf := NewBuffer(8)
	size := 0
	for _, body := range []string{`{"a":1}`, `[1]`, `[1,"a",2]`, `["a",1]`} {
		_, err := Deserialize(a, []byte(body), false, NewCursor(&i, buf, &size))
		assert.ErrorIs(t, err, ErrKindMismatch, body)
		assert.Equal(t, 5, i, body)
	}
	_, err := Deserialize(a, []byte(`[1,"a"]`), false, NewCursor(&i, buf))
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestArrayDecodeMismatchLeavesEarlierSlots(t *testing.T) {
	ints := NewArrayType(mustType(t, "integer"), mustType(t, "integer"))
	x, y := -1, -1
	_, err := Deserialize(ints, []byte(`[7,"s"]`), false, NewCursor(&x, &y))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, -1, x)
	assert.Equal(t, -1, y)

	// nested items and scalar payload lengths are checked up front too
	i32, err := NewScalarType("int", 32, "")
	require.NoError(t, err)
	nested := NewArrayType(mustType(t, "integer"), NewArrayType(mustType(t, "boolean"), i32))
	var b bool
	var v int32
	_, err = Deserialize(nested, []byte(`[7,[true,"AAA="]]`), false, NewCursor(&x, &b, &v))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, -1, x)
	assert.False(t, b)

	_, err = Deserialize(nested, []byte(`[7,[true,"AQAAAA=="]]`), false, NewCursor(&x, &b, &v))
	require.NoError(t, err)
	assert.Equal(t, 7, x)
	assert.True(t, b)
	assert.Equal(t, int32(1), v)
}

func TestArrayEncodeShortCursor(t *testing.T) {
	w := NewWriter()
	err := intStringArray(t).EncodeData(w, NewCursor(1, "a"))
	assert.ErrorIs(t, err, ErrArgCount)

	// slack is allowed below the top level
	w = NewWriter()
	c := NewCursor(1, "a", 1, "extra")
	require.NoError(t, intStringArray(t).EncodeData(w, c))
	assert.Equal(t, 1, c.Remaining())
	_, err = Encode(intStringArray(t), 1, "a", 1, "extra")
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestArrayUnsupportedItem(t *testing.T) {
	a := NewArrayType(mustType(t, "integer"), mustType(t, "object"))
	_, err := a.NargsExp()
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestArrayCopyIsDeep(t *testing.T) {
	a := intStringArray(t)
	cp := a.Copy().(*ArrayType)
	require.NoError(t, cp.Items()[0].UpdateType("number"))
	assert.Equal(t, Integer, a.Items()[0].Code())
	assert.Equal(t, Number, cp.Items()[0].Code())
	assert.ErrorIs(t, cp.UpdateType("integer"), ErrUnsupported)

	var out bytes.Buffer
	a.Display(&out)
	assert.Contains(t, out.String(), "items           = 2\n")
	assert.Contains(t, out.String(), "  [1] type            = string\n")
}
