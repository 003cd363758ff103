// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

// Cursor is an ordered, consumable list of positional arguments. On the
// encode path the items are values; on the decode path they are output
// slots. Every codec operation consumes exactly the number of items its
// type expects.
type Cursor struct {
	items []any
	pos   int
}

// NewCursor returns a cursor over items.
func NewCursor(items ...any) *Cursor {
	return &Cursor{items: items}
}

// Remaining returns the number of unconsumed items.
func (c *Cursor) Remaining() int {
	return len(c.items) - c.pos
}

// Next consumes and returns the next item.
func (c *Cursor) Next() (any, error) {
	if c.pos >= len(c.items) {
		return nil, errorf("Cursor.Next", ErrArgCount, "no arguments remaining.")
	}
	v := c.items[c.pos]
	c.pos++
	return v, nil
}

// Sub consumes the next n items and returns them as a separate cursor.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	if n < 0 || n > c.Remaining() {
		return nil, errorf("Cursor.Sub", ErrArgCount,
			"%d arguments requested, but only %d remaining.", n, c.Remaining())
	}
	sub := &Cursor{items: c.items[c.pos : c.pos+n]}
	c.pos += n
	return sub, nil
}
