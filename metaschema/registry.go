// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package metaschema

import (
	"sort"
	"sync"
)

// TypeCode identifies one of the closed set of supported data kinds.
type TypeCode int

const (
	Boolean TypeCode = iota
	Integer
	Null
	Number
	String
	Array
	Object
	Direct
	OneDArray
	NDArray
	Scalar
	Float
	Uint
	Int
	Complex
	Bytes
	Unicode
	Ply
	Obj
	ASCIITable
)

// typeNames is indexed by TypeCode.
var typeNames = [...]string{
	Boolean:    "boolean",
	Integer:    "integer",
	Null:       "null",
	Number:     "number",
	String:     "string",
	Array:      "array",
	Object:     "object",
	Direct:     "direct",
	OneDArray:  "1darray",
	NDArray:    "ndarray",
	Scalar:     "scalar",
	Float:      "float",
	Uint:       "uint",
	Int:        "int",
	Complex:    "complex",
	Bytes:      "bytes",
	Unicode:    "unicode",
	Ply:        "ply",
	Obj:        "obj",
	ASCIITable: "ascii_table",
}

// String returns the registry name for the code.
func (c TypeCode) String() string {
	if c < 0 || int(c) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[c]
}

// Constructor builds a variant from a parsed type header. The header always
// carries a string "type" entry; other entries are variant specific.
type Constructor func(header map[string]any) (Datatype, error)

var (
	registryOnce sync.Once
	typeMap      map[string]TypeCode

	ctorMu sync.RWMutex
	ctors  map[TypeCode]Constructor
)

// initRegistry builds the name table and installs the built-in
// constructors. Neither table has entries removed or replaced afterwards.
func initRegistry() {
	registryOnce.Do(func() {
		m := make(map[string]TypeCode, len(typeNames))
		for code, name := range typeNames {
			m[name] = TypeCode(code)
		}
		typeMap = m

		ctorMu.Lock()
		ctors = map[TypeCode]Constructor{
			Array:     newArrayFromHeader,
			OneDArray: newOneDArrayFromHeader,
			Scalar:    newScalarFromHeader,
			Float:     newScalarFromHeader,
			Uint:      newScalarFromHeader,
			Int:       newScalarFromHeader,
			Complex:   newScalarFromHeader,
			Bytes:     newScalarFromHeader,
			Unicode:   newScalarFromHeader,
		}
		ctorMu.Unlock()
	})
}

// Resolve maps a type name to its code. Matching is exact and
// case-sensitive; an unknown name is a fatal error.
func Resolve(name string) (TypeCode, error) {
	initRegistry()
	code, ok := typeMap[name]
	if !ok {
		return -1, errorf("Resolve", ErrUnknownType, "Unsupported type '%s'.", name)
	}
	return code, nil
}

// TypeNames returns every registered type name in sorted order.
func TypeNames() []string {
	initRegistry()
	names := make([]string, 0, len(typeMap))
	for name := range typeMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterConstructor installs the variant constructor for a code that does
// not have one yet. Existing registrations are never replaced.
func RegisterConstructor(code TypeCode, ctor Constructor) error {
	initRegistry()
	if code < 0 || int(code) >= len(typeNames) {
		return errorf("RegisterConstructor", ErrUnknownType, "Unsupported type code %d.", int(code))
	}
	if ctor == nil {
		return errorf("RegisterConstructor", ErrUnsupported, "nil constructor for type '%s'.", code)
	}
	ctorMu.Lock()
	defer ctorMu.Unlock()
	if _, exists := ctors[code]; exists {
		return errorf("RegisterConstructor", ErrUnsupported, "type '%s' already has a constructor.", code)
	}
	ctors[code] = ctor
	return nil
}

func lookupConstructor(code TypeCode) (Constructor, bool) {
	initRegistry()
	ctorMu.RLock()
	defer ctorMu.RUnlock()
	ctor, ok := ctors[code]
	return ctor, ok
}
