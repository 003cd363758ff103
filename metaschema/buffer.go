// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

// DefaultMaxBufferSize bounds how far CopyToBuffer may grow a Buffer.
const DefaultMaxBufferSize = 1 << 30

// Buffer is a caller-owned byte region. Its capacity is the length of the
// backing slice; the payload is the prefix written by the last copy.
//
// Growth replaces the backing slice. Slices obtained from Raw or Bytes
// before a growing call must not be used afterwards.
type Buffer struct {
	buf   []byte
	n     int
	limit int
}

// NewBuffer allocates a zeroed buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, capacity), limit: DefaultMaxBufferSize}
}

// WrapBuffer uses b as the buffer's storage. The whole of b is capacity.
func WrapBuffer(b []byte) *Buffer {
	return &Buffer{buf: b, limit: DefaultMaxBufferSize}
}

// Cap returns the number of bytes the buffer can hold without growing.
func (b *Buffer) Cap() int { return len(b.buf) }

// Len returns the payload length written by the last copy, excluding any
// terminator.
func (b *Buffer) Len() int { return b.n }

// Bytes returns the payload.
func (b *Buffer) Bytes() []byte { return b.buf[:b.n] }

// Raw returns the entire backing region, terminator included.
func (b *Buffer) Raw() []byte { return b.buf }

// String returns the payload as a string.
func (b *Buffer) String() string { return string(b.buf[:b.n]) }

// Limit returns the maximum size the buffer may grow to.
func (b *Buffer) Limit() int { return b.limit }

// SetLimit changes the growth limit. Values <= 0 restore the default.
func (b *Buffer) SetLimit(n int) {
	if n <= 0 {
		n = DefaultMaxBufferSize
	}
	b.limit = n
}

// CopyToBuffer copies src into dst, appending a zero terminator when
// terminate is set. If dst is too small it is grown to exactly the required
// size when allowGrow is set; otherwise nothing is written. It returns the
// number of payload bytes copied.
func CopyToBuffer(src []byte, dst *Buffer, allowGrow, terminate bool) (int, error) {
	if dst == nil {
		return -1, errorf("CopyToBuffer", ErrArgType, "destination buffer is nil.")
	}
	required := len(src)
	if terminate {
		required++
	}
	if required > len(dst.buf) {
		if !allowGrow {
			if terminate {
				return -1, errorf("CopyToBuffer", ErrBufferTooSmall,
					"Source with termination character (%d + 1) exceeds size of destination buffer (%d).",
					len(src), len(dst.buf))
			}
			return -1, errorf("CopyToBuffer", ErrBufferTooSmall,
				"Source (%d) exceeds size of destination buffer (%d).", len(src), len(dst.buf))
		}
		limit := dst.limit
		if limit <= 0 {
			limit = DefaultMaxBufferSize
		}
		if required > limit {
			return -1, errorf("CopyToBuffer", ErrAllocation,
				"Failed to realloc destination buffer to %d bytes (limit %d).", required, limit)
		}
		dst.buf = make([]byte, required)
		diag().Debug("metaschema: reallocated destination buffer", "size", required)
	}
	copy(dst.buf, src)
	if terminate {
		dst.buf[len(src)] = 0
	}
	dst.n = len(src)
	return len(src), nil
}
