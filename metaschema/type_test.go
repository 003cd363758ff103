// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustType(t testing.TB, name string) *Type {
	t.Helper()
	typ, err := NewType(name)
	require.NoError(t, err)
	return typ
}

func TestNewType(t *testing.T) {
	typ := mustType(t, "integer")
	assert.Equal(t, "integer", typ.Name())
	assert.Equal(t, Integer, typ.Code())

	_, err := NewType("nope")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestUpdateType(t *testing.T) {
	typ := mustType(t, "integer")
	require.NoError(t, typ.UpdateType("string"))
	assert.Equal(t, "string", typ.Name())
	assert.Equal(t, String, typ.Code())

	err := typ.UpdateType("bogus")
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, "string", typ.Name())
	assert.Equal(t, String, typ.Code())
}

func TestNewFromHeader(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		kind *ErrorKind
		msg  string
	}{
		{"not an object", []any{"type"}, ErrMalformedHeader, "Parsed document is not an object."},
		{"missing type", map[string]any{"kind": "integer"}, ErrMalformedHeader, "Parsed header doesn't contain a type."},
		{"type not string", map[string]any{"type": 3}, ErrMalformedHeader, "Type in parsed header is not a string."},
		{"unknown type", map[string]any{"type": "widget"}, ErrUnknownType, "Unsupported type 'widget'."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromHeader(tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.True(t, IsFatal(err))
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	hdr, err := EncodeHeader(mustType(t, "number"))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"number"}`, string(hdr))

	dt, err := ParseHeader(hdr)
	require.NoError(t, err)
	assert.Equal(t, Number, dt.Code())
	assert.IsType(t, &Type{}, dt)
}

func TestNargsExp(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"boolean", 1},
		{"integer", 1},
		{"null", 1},
		{"number", 1},
		{"string", 2},
	}
	for _, tt := range tests {
		n, err := mustType(t, tt.name).NargsExp()
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, tt.name)
	}

	_, err := mustType(t, "object").NargsExp()
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, IsFatal(err))
}

func TestEncodeInteger(t *testing.T) {
	buf := NewBuffer(0)
	n, err := Serialize(mustType(t, "integer"), buf, true, NewCursor(5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "5", buf.String())
	assert.Equal(t, []byte("5\x00"), buf.Raw())

	var out int
	consumed, err := Deserialize(mustType(t, "integer"), buf.Raw(), false, NewCursor(&out))
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 5, out)
}

func TestStringWithEmbeddedZero(t *testing.T) {
	str := mustType(t, "string")
	body, err := Encode(str, []byte("ab\x00cdef"), 4)
	require.NoError(t, err)
	assert.Equal(t, `"ab\u0000c"`, string(body))

	out := NewBuffer(0)
	var size int
	consumed, err := Deserialize(str, body, true, NewCursor(out, &size))
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, 4, size)
	assert.Equal(t, []byte("ab\x00c"), out.Bytes())
	assert.Equal(t, 5, out.Cap())
}

func TestStringRejectsInvalidUTF8(t *testing.T) {
	str := mustType(t, "string")
	_, err := Encode(str, []byte("a\xffb\x00c"), 5)
	assert.ErrorIs(t, err, ErrArgType)

	// valid multi-byte text keeps its exact byte length
	payload := []byte("é\x00ü")
	body, err := Encode(str, payload, len(payload))
	require.NoError(t, err)
	out := NewBuffer(0)
	var size int
	_, err = Deserialize(str, body, true, NewCursor(out, &size))
	require.NoError(t, err)
	assert.Equal(t, len(payload), size)
	assert.Equal(t, payload, out.Bytes())
}

func TestRoundTrip(t *testing.T) {
	t.Run("boolean", func(t *testing.T) {
		for _, v := range []bool{true, false} {
			body, err := Encode(mustType(t, "boolean"), v)
			require.NoError(t, err)
			var out bool
			_, err = Deserialize(mustType(t, "boolean"), body, false, NewCursor(&out))
			require.NoError(t, err)
			assert.Equal(t, v, out)
		}
	})
	t.Run("integer", func(t *testing.T) {
		for _, v := range []int64{0, -1, math.MaxInt64, math.MinInt64} {
			body, err := Encode(mustType(t, "integer"), v)
			require.NoError(t, err)
			var out int64
			_, err = Deserialize(mustType(t, "integer"), body, false, NewCursor(&out))
			require.NoError(t, err)
			assert.Equal(t, v, out)
		}
	})
	t.Run("number", func(t *testing.T) {
		for _, v := range []float64{0, 1.5, -3.25e-7, math.MaxFloat64, 3} {
			body, err := Encode(mustType(t, "number"), v)
			require.NoError(t, err)
			var out float64
			_, err = Deserialize(mustType(t, "number"), body, false, NewCursor(&out))
			require.NoError(t, err)
			assert.Equal(t, v, out)
		}
	})
	t.Run("null", func(t *testing.T) {
		body, err := Encode(mustType(t, "null"), nil)
		require.NoError(t, err)
		assert.Equal(t, "null", string(body))
		var out any = "stale"
		_, err = Deserialize(mustType(t, "null"), body, false, NewCursor(&out))
		require.NoError(t, err)
		assert.Nil(t, out)
	})
	t.Run("string", func(t *testing.T) {
		for _, v := range []string{"", "hello", "\x00\x00", "naïve"} {
			body, err := Encode(mustType(t, "string"), v, len(v))
			require.NoError(t, err)
			out := NewBuffer(0)
			var size int
			_, err = Deserialize(mustType(t, "string"), body, true, NewCursor(out, &size))
			require.NoError(t, err)
			assert.Equal(t, v, out.String())
			assert.Equal(t, len(v), size)
		}
	})
}

func TestReallocSlots(t *testing.T) {
	var p *int64
	_, err := Deserialize(mustType(t, "integer"), []byte("42"), true, NewCursor(&p))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(42), *p)

	existing := p
	_, err = Deserialize(mustType(t, "integer"), []byte("43"), true, NewCursor(&p))
	require.NoError(t, err)
	assert.Same(t, existing, p)
	assert.Equal(t, int64(43), *p)

	var f *float32
	_, err = Deserialize(mustType(t, "number"), []byte("0.5"), true, NewCursor(&f))
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), *f)

	// realloc requires a handle, not a plain pointer
	var plain int64
	_, err = Deserialize(mustType(t, "integer"), []byte("1"), true, NewCursor(&plain))
	assert.ErrorIs(t, err, ErrArgType)
}

func TestSerializeStrictCount(t *testing.T) {
	buf := NewBuffer(16)
	n, err := Serialize(mustType(t, "integer"), buf, false, NewCursor(1, 2))
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, ErrArgCount)
	assert.True(t, IsFatal(err))

	n, err = Serialize(mustType(t, "string"), buf, false, NewCursor("abc"))
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, ErrArgCount)

	n, err = Serialize(mustType(t, "integer"), buf, false, NewCursor())
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, ErrArgCount)
	assert.Equal(t, 0, buf.Len())
}

func TestDeserializeStrictCount(t *testing.T) {
	var a, b int
	n, err := Deserialize(mustType(t, "integer"), []byte("1"), false, NewCursor(&a, &b))
	assert.Equal(t, -1, n)
	require.Error(t, err)
	assert.Equal(t, 0, a)

	n, err = Deserialize(mustType(t, "string"), []byte(`"x"`), false, NewCursor(NewBuffer(4)))
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestKindMismatchLeavesSlot(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		body string
	}{
		{"string into integer", "integer", `"x"`},
		{"float into integer", "integer", `1.5`},
		{"exponent into integer", "integer", `1e3`},
		{"number into boolean", "boolean", `1`},
		{"bool into number", "number", `true`},
		{"number into string", "string", `12`},
		{"value into null", "null", `0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := mustType(t, tt.typ)
			nargs, _ := typ.NargsExp()
			slots := make([]any, 0, nargs)
			var i int64 = 77
			var b = true
			var f = 7.7
			var null any = "keep"
			buf := WrapBuffer([]byte("keep"))
			var size = 9
			switch typ.Code() {
			case Integer:
				slots = append(slots, &i)
			case Boolean:
				slots = append(slots, &b)
			case Number:
				slots = append(slots, &f)
			case Null:
				slots = append(slots, &null)
			case String:
				slots = append(slots, buf, &size)
			}
			n, err := Deserialize(typ, []byte(tt.body), true, NewCursor(slots...))
			assert.Equal(t, -1, n)
			assert.ErrorIs(t, err, ErrKindMismatch)
			assert.True(t, IsFatal(err))
			assert.Equal(t, int64(77), i)
			assert.True(t, b)
			assert.Equal(t, 7.7, f)
			assert.Equal(t, "keep", null)
			assert.Equal(t, []byte("keep"), buf.Raw())
			assert.Equal(t, 9, size)
		})
	}
}

func TestIntegerSlotRange(t *testing.T) {
	var small int32 = 3
	_, err := Deserialize(mustType(t, "integer"), []byte("4294967296"), false, NewCursor(&small))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, int32(3), small)

	_, err = Deserialize(mustType(t, "integer"), []byte("-2147483648"), false, NewCursor(&small))
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), small)
}

func TestMalformedJSONIsRecoverable(t *testing.T) {
	var out int
	for _, body := range []string{"", "{", "5 6", "[1,"} {
		n, err := Deserialize(mustType(t, "integer"), []byte(body), false, NewCursor(&out))
		assert.Equal(t, -1, n, body)
		assert.ErrorIs(t, err, ErrMalformedJSON, body)
		assert.False(t, IsFatal(err), body)
	}
}

func TestEncodeArgType(t *testing.T) {
	_, err := Encode(mustType(t, "integer"), "five")
	assert.ErrorIs(t, err, ErrArgType)
	_, err = Encode(mustType(t, "number"), "five")
	assert.ErrorIs(t, err, ErrArgType)
	_, err = Encode(mustType(t, "string"), 5, 1)
	assert.ErrorIs(t, err, ErrArgType)
	_, err = Encode(mustType(t, "string"), "abc", 4)
	assert.ErrorIs(t, err, ErrArgType)
}

func TestEncodeNonFiniteNumber(t *testing.T) {
	_, err := Encode(mustType(t, "number"), math.Inf(1))
	assert.ErrorIs(t, err, ErrWrite)
	assert.False(t, IsFatal(err))
}

func TestSerializeNoGrow(t *testing.T) {
	buf := WrapBuffer([]byte{9, 9, 9})
	n, err := Serialize(mustType(t, "integer"), buf, false, NewCursor(12345))
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, []byte{9, 9, 9}, buf.Raw())
}

func TestCopyAndDisplay(t *testing.T) {
	typ := mustType(t, "string")
	cp := typ.Copy()
	require.NoError(t, cp.UpdateType("integer"))
	assert.Equal(t, String, typ.Code())
	assert.Equal(t, Integer, cp.Code())

	var out bytes.Buffer
	typ.Display(&out)
	assert.Equal(t, "type            = string\ntype_code       = 4\n", out.String())
}

func BenchmarkSerializeInteger(b *testing.B) {
	typ := mustType(b, "integer")
	buf := NewBuffer(32)
	for i := 0; i < b.N; i++ {
		if _, err := Serialize(typ, buf, false, NewCursor(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDeserializeString(b *testing.B) {
	typ := mustType(b, "string")
	body := []byte(`"the quick brown fox jumps over the lazy dog"`)
	buf := NewBuffer(64)
	var size int
	for i := 0; i < b.N; i++ {
		if _, err := Deserialize(typ, body, false, NewCursor(buf, &size)); err != nil {
			b.Fatal(err)
		}
	}
}
