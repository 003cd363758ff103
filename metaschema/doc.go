// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package metaschema implements a runtime type-tag engine for typed
// message passing between processes. A Datatype resolves a type name to a
// [TypeCode], encodes positional values into a JSON data body, and decodes
// a data body back into caller-supplied output slots.
//
// # Wire format
//
// Messages use a two-part discipline. The type header is a JSON object
// sent once per channel:
//
//	{"type":"integer"}
//	{"type":"scalar","subtype":"float","precision":32,"units":"m"}
//	{"type":"array","items":[{"type":"integer"},{"type":"string"}]}
//
// The data body is a JSON value holding exactly one message's values:
//
//	5
//	"ab\u0000c"
//	[1,"hello"]
//
// # Arguments and slots
//
// Values are passed through a [Cursor]. Each type consumes a fixed number
// of cursor items ([Datatype.NargsExp]): one for boolean, integer, null
// and number, two for string (the payload and its byte length, so
// payloads may contain zero bytes). [Serialize] and [Deserialize] require
// the cursor to hold exactly that many items.
//
// On the decode path items are output slots. A slot is a pointer to
// caller storage (*int64, *float64, *bool). When realloc is allowed a
// slot is a pointer to a pointer and storage is allocated when it is nil.
// String payloads are copied into a [*Buffer] with a zero terminator; the
// buffer grows only when the caller allows it.
//
// # Errors
//
// Every failure is an [*Error] whose Kind is one of the ErrXxx sentinels.
// Fatal kinds (unknown type, malformed header, argument count, kind
// mismatch) mean the two ends disagree on the schema; recoverable kinds
// (malformed JSON, buffer too small) concern one message. Diagnostics are
// also logged through log/slog; see [SetLogger].
//
// # Variants
//
// Base primitives are handled by [Type]. [ScalarType], [OneDArrayType]
// and [ArrayType] add fixed-precision scalars, Arrow-backed numeric
// vectors and heterogeneous arrays. Further variants plug in with
// [RegisterConstructor]. [ParseFormat] derives a type from a C printf
// format string.
package metaschema
