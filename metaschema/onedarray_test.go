// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Array(mem memory.Allocator, vals ...float64) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewFloat64Array()
}

func TestOneDArrayRealloc(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a, err := NewOneDArrayType("float", 64, 3, "s")
	require.NoError(t, err)
	a.SetAllocator(mem)

	in := float64Array(mem, 1, 2.5, -3)
	defer in.Release()
	body, err := Encode(a, in)
	require.NoError(t, err)

	var out arrow.Array
	n, err := Deserialize(a, body, true, NewCursor(&out))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NotNil(t, out)
	assert.Equal(t, []float64{1, 2.5, -3}, out.(*array.Float64).Float64Values())

	// a second decode replaces and releases the previous array
	_, err = Deserialize(a, body, true, NewCursor(&out))
	require.NoError(t, err)
	out.Release()
}

func TestOneDArrayInPlace(t *testing.T) {
	a, err := NewOneDArrayType("int", 32, 0, "")
	require.NoError(t, err)
	mem := memory.NewGoAllocator()

	b := array.NewInt32Builder(mem)
	b.AppendValues([]int32{7, -8, 9, 10}, nil)
	src := b.NewInt32Array()
	b.AppendValues([]int32{0, 0, 0, 0}, nil)
	dst := b.NewInt32Array()
	b.Release()
	defer src.Release()
	defer dst.Release()

	body, err := Encode(a, arrow.Array(src))
	require.NoError(t, err)

	slot := arrow.Array(dst)
	_, err = Deserialize(a, body, false, NewCursor(&slot))
	require.NoError(t, err)
	assert.Same(t, dst, slot.(*array.Int32))
	assert.Equal(t, []int32{7, -8, 9, 10}, dst.Int32Values())
}

func TestOneDArraySlice(t *testing.T) {
	a, err := NewOneDArrayType("float", 64, 0, "")
	require.NoError(t, err)
	mem := memory.NewGoAllocator()
	full := float64Array(mem, 1, 2, 3, 4)
	defer full.Release()
	part := array.NewSlice(full, 1, 3)
	defer part.Release()

	body, err := Encode(a, part)
	require.NoError(t, err)
	var out arrow.Array
	_, err = Deserialize(a, body, true, NewCursor(&out))
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []float64{2, 3}, out.(*array.Float64).Float64Values())
}

func TestOneDArrayErrors(t *testing.T) {
	mem := memory.NewGoAllocator()
	a, err := NewOneDArrayType("float", 64, 2, "")
	require.NoError(t, err)

	three := float64Array(mem, 1, 2, 3)
	defer three.Release()
	_, err = Encode(a, three)
	assert.ErrorIs(t, err, ErrArgType)

	_, err = Encode(a, []float64{1, 2})
	assert.ErrorIs(t, err, ErrArgType)

	ib := array.NewInt64Builder(mem)
	ib.AppendValues([]int64{1, 2}, nil)
	ints := ib.NewArray()
	ib.Release()
	defer ints.Release()
	_, err = Encode(a, ints)
	assert.ErrorIs(t, err, ErrArgType)

	fb := array.NewFloat64Builder(mem)
	fb.AppendValues([]float64{1, 2}, []bool{true, false})
	withNull := fb.NewArray()
	fb.Release()
	defer withNull.Release()
	_, err = Encode(a, withNull)
	assert.ErrorIs(t, err, ErrArgType)

	// wrong element count on decode
	var out arrow.Array
	_, err = Deserialize(a, []byte(`"AAAAAAAA8D8="`), true, NewCursor(&out))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Nil(t, out)

	// no realloc and no destination array
	two := float64Array(mem, 1, 2)
	defer two.Release()
	body, err := Encode(a, two)
	require.NoError(t, err)
	_, err = Deserialize(a, body, false, NewCursor(&out))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Nil(t, out)
}

func TestOneDArrayHeader(t *testing.T) {
	dt, err := ParseHeader([]byte(`{"type":"1darray","subtype":"uint","precision":8,"length":4,"units":"px"}`))
	require.NoError(t, err)
	a, ok := dt.(*OneDArrayType)
	require.True(t, ok)
	assert.Equal(t, "uint", a.Subtype())
	assert.Equal(t, 8, a.Precision())
	assert.Equal(t, 4, a.Length())
	assert.Equal(t, "px", a.Units())
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Uint8, a.DataType()))

	hdr, err := EncodeHeader(a)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"1darray","subtype":"uint","precision":8,"length":4,"units":"px"}`, string(hdr))

	_, err = ParseHeader([]byte(`{"type":"1darray","subtype":"complex"}`))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = ParseHeader([]byte(`{"type":"1darray","subtype":"int","precision":12}`))
	assert.ErrorIs(t, err, ErrUnsupported)

	cp := a.Copy().(*OneDArrayType)
	assert.ErrorIs(t, cp.UpdateType("array"), ErrUnsupported)
	assert.Equal(t, 4, cp.Length())
}
