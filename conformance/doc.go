// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides fixture RPC methods for testing metaschema
// transports end to end. It registers an echo method for every supported
// type code, composite methods built from format strings, methods that fail
// in each of the ways a call can fail, and methods that emit
// client-directed logs.
//
// The only entry point intended for external use is [RegisterMethods],
// which registers all conformance methods on a [yggrpc.Server]. The fixture
// types ([IntegerType], [VectorType], [ScaleType], ...) are exported so
// clients can be built against the same types.
package conformance
