// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import "strings"

// ParseFormat derives a Datatype from a C printf-style format string such
// as "%d", "%s" or "%d %5.2f\n". Literal text is ignored. A single
// conversion yields its own type; several yield an ArrayType of them.
//
//	d i u x X o   integer (with hh h l ll j z t modifiers)
//	f F e E g G   number
//	s             string
//	%%            literal percent
func ParseFormat(format string) (Datatype, error) {
	var fields []Datatype
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			continue
		}
		// flags, width, precision
		for i < len(format) && strings.IndexByte("-+ #0123456789.*", format[i]) >= 0 {
			i++
		}
		// length modifiers
		for i < len(format) && strings.IndexByte("hljztL", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return nil, errorf("ParseFormat", ErrUnsupported, "Format '%s' ends inside a conversion.", format)
		}
		var name string
		switch format[i] {
		case 'd', 'i', 'u', 'x', 'X', 'o':
			name = "integer"
		case 'f', 'F', 'e', 'E', 'g', 'G':
			name = "number"
		case 's':
			name = "string"
		default:
			return nil, errorf("ParseFormat", ErrUnsupported,
				"Unsupported conversion '%%%c' in format '%s'.", format[i], format)
		}
		t, err := NewType(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, t)
	}
	switch len(fields) {
	case 0:
		return nil, errorf("ParseFormat", ErrUnsupported, "Format '%s' has no conversions.", format)
	case 1:
		return fields[0], nil
	}
	return NewArrayType(fields...), nil
}
