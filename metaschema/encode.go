// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

// EncodeType writes the type header object for t.
func EncodeType(t Datatype, w *Writer) error {
	if !w.StartObject() {
		return wrapf("EncodeType", ErrWrite, w.Err(), "could not start header object.")
	}
	if err := t.EncodeTypeProp(w); err != nil {
		return err
	}
	if !w.EndObject() {
		return wrapf("EncodeType", ErrWrite, w.Err(), "could not end header object.")
	}
	return nil
}

// EncodeHeader returns the serialized type header for t.
func EncodeHeader(t Datatype) ([]byte, error) {
	w := NewWriter()
	if err := EncodeType(t, w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Serialize encodes the cursor's values as a data body and copies it into
// dst followed by a zero terminator. The cursor must hold exactly the
// number of values t expects. It returns the body length, or -1 and an
// error. A cursor is not reusable after a failed call.
func Serialize(t Datatype, dst *Buffer, allowGrow bool, c *Cursor) (int, error) {
	nargs, err := t.NargsExp()
	if err != nil {
		return -1, err
	}
	if c.Remaining() != nargs {
		return -1, errorf("Serialize", ErrArgCount,
			"%d arguments expected, but %d provided.", nargs, c.Remaining())
	}
	w := NewWriter()
	if err := t.EncodeData(w, c); err != nil {
		return -1, err
	}
	if c.Remaining() != 0 {
		return -1, errorf("Serialize", ErrArgsUnused, "%d arguments were not used.", c.Remaining())
	}
	return CopyToBuffer(w.Bytes(), dst, allowGrow, true)
}

// Encode is Serialize into a freshly grown buffer.
func Encode(t Datatype, args ...any) ([]byte, error) {
	buf := NewBuffer(0)
	if _, err := Serialize(t, buf, true, NewCursor(args...)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
