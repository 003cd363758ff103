// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"
)

// Writer streams JSON tokens into an in-memory buffer. It tracks nesting so
// callers emit keys and values without managing separators. The first
// failure sticks: later calls are no-ops and Err reports it.
type Writer struct {
	buf    []byte
	stack  []writerFrame
	rooted bool
	err    error
}

type writerFrame struct {
	object bool
	count  int
	keyed  bool // object frame: a key awaits its value
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the JSON written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Err returns the first write failure, if any.
func (w *Writer) Err() error { return w.err }

// Complete reports whether exactly one root value has been fully written.
func (w *Writer) Complete() bool { return w.err == nil && w.rooted && len(w.stack) == 0 }

// Reset discards all output and state.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.stack = w.stack[:0]
	w.rooted = false
	w.err = nil
}

func (w *Writer) fail(format string, args ...any) bool {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
	return false
}

// prefix emits the separator owed before a value and updates the frame.
func (w *Writer) prefix() bool {
	if w.err != nil {
		return false
	}
	if len(w.stack) == 0 {
		if w.rooted {
			return w.fail("json writer: multiple root values")
		}
		w.rooted = true
		return true
	}
	top := &w.stack[len(w.stack)-1]
	if top.object {
		if !top.keyed {
			return w.fail("json writer: object value without key")
		}
		top.keyed = false
		top.count++
		return true
	}
	if top.count > 0 {
		w.buf = append(w.buf, ',')
	}
	top.count++
	return true
}

// StartObject opens a JSON object.
func (w *Writer) StartObject() bool {
	if !w.prefix() {
		return false
	}
	w.buf = append(w.buf, '{')
	w.stack = append(w.stack, writerFrame{object: true})
	return true
}

// EndObject closes the innermost object.
func (w *Writer) EndObject() bool {
	if w.err != nil {
		return false
	}
	if len(w.stack) == 0 || !w.stack[len(w.stack)-1].object || w.stack[len(w.stack)-1].keyed {
		return w.fail("json writer: unbalanced EndObject")
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.buf = append(w.buf, '}')
	return true
}

// StartArray opens a JSON array.
func (w *Writer) StartArray() bool {
	if !w.prefix() {
		return false
	}
	w.buf = append(w.buf, '[')
	w.stack = append(w.stack, writerFrame{})
	return true
}

// EndArray closes the innermost array.
func (w *Writer) EndArray() bool {
	if w.err != nil {
		return false
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].object {
		return w.fail("json writer: unbalanced EndArray")
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.buf = append(w.buf, ']')
	return true
}

// Key writes an object member name.
func (w *Writer) Key(name string) bool {
	if w.err != nil {
		return false
	}
	if len(w.stack) == 0 || !w.stack[len(w.stack)-1].object {
		return w.fail("json writer: key %q outside object", name)
	}
	top := &w.stack[len(w.stack)-1]
	if top.keyed {
		return w.fail("json writer: key %q follows key", name)
	}
	if top.count > 0 {
		w.buf = append(w.buf, ',')
	}
	enc, err := gojson.MarshalNoEscape(name)
	if err != nil {
		return w.fail("json writer: key %q: %w", name, err)
	}
	w.buf = append(w.buf, enc...)
	w.buf = append(w.buf, ':')
	top.keyed = true
	return true
}

// String writes s as a JSON string. Every byte of s is kept, zero bytes
// included. s must be valid UTF-8.
func (w *Writer) String(s string) bool {
	if w.err != nil {
		return false
	}
	if !utf8.ValidString(s) {
		return w.fail("json writer: string is not valid UTF-8")
	}
	if !w.prefix() {
		return false
	}
	enc, err := gojson.MarshalNoEscape(s)
	if err != nil {
		return w.fail("json writer: string: %w", err)
	}
	w.buf = append(w.buf, enc...)
	return true
}

// Int writes a signed integer.
func (w *Writer) Int(v int64) bool {
	if !w.prefix() {
		return false
	}
	w.buf = strconv.AppendInt(w.buf, v, 10)
	return true
}

// Uint writes an unsigned integer.
func (w *Writer) Uint(v uint64) bool {
	if !w.prefix() {
		return false
	}
	w.buf = strconv.AppendUint(w.buf, v, 10)
	return true
}

// Double writes a finite floating point number.
func (w *Writer) Double(v float64) bool {
	if w.err != nil {
		return false
	}
	enc, err := gojson.Marshal(v)
	if err != nil {
		return w.fail("json writer: number %v: %w", v, err)
	}
	if !w.prefix() {
		return false
	}
	w.buf = append(w.buf, enc...)
	return true
}

// Bool writes true or false.
func (w *Writer) Bool(v bool) bool {
	if !w.prefix() {
		return false
	}
	w.buf = strconv.AppendBool(w.buf, v)
	return true
}

// Null writes null.
func (w *Writer) Null() bool {
	if !w.prefix() {
		return false
	}
	w.buf = append(w.buf, "null"...)
	return true
}
