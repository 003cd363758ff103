// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"fmt"

	"github.com/Query-farm/metaschema-rpc/metaschema"
)

// Fixture types. Each is built once and copied per registration so
// handlers never share a Datatype with the server's method table.
var (
	BooleanType = mustType("boolean")
	IntegerType = mustType("integer")
	NullType    = mustType("null")
	NumberType  = mustType("number")
	StringType  = mustType("string")

	Int32Type   = mustScalar(metaschema.SubtypeInt, 32, "")
	Uint8Type   = mustScalar(metaschema.SubtypeUint, 8, "")
	Float32Type = mustScalar(metaschema.SubtypeFloat, 32, "")
	ComplexType = mustScalar(metaschema.SubtypeComplex, 128, "")
	BytesType   = mustScalar(metaschema.SubtypeBytes, 0, "")
	UnicodeType = mustScalar(metaschema.SubtypeUnicode, 0, "")

	// VectorType is a float64 vector of any length, in metres.
	VectorType = mustOneD(metaschema.SubtypeFloat, 64, 0, "m")

	// PairType is [integer, string].
	PairType = metaschema.NewArrayType(IntegerType.Copy(), StringType.Copy())

	// ScaleType is [number, 1darray]: a factor and the vector it scales.
	ScaleType = metaschema.NewArrayType(NumberType.Copy(), VectorType.Copy())
)

func mustType(name string) metaschema.Datatype {
	t, err := metaschema.NewType(name)
	if err != nil {
		panic(fmt.Sprintf("conformance: %v", err))
	}
	return t
}

func mustScalar(subtype string, precision int, units string) metaschema.Datatype {
	t, err := metaschema.NewScalarType(subtype, precision, units)
	if err != nil {
		panic(fmt.Sprintf("conformance: %v", err))
	}
	return t
}

func mustOneD(subtype string, precision, length int, units string) metaschema.Datatype {
	t, err := metaschema.NewOneDArrayType(subtype, precision, length, units)
	if err != nil {
		panic(fmt.Sprintf("conformance: %v", err))
	}
	return t
}
