// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark provides the method set used to measure transport
// and type engine overhead.
package benchmark

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/metaschema-rpc/metaschema"
	"github.com/Query-farm/metaschema-rpc/yggrpc"
)

// Method types

var (
	NullType   = mustType(metaschema.NewType("null"))
	VectorType = mustType(metaschema.NewOneDArrayType(metaschema.SubtypeFloat, 64, 0, ""))
)

func mustType[T metaschema.Datatype](t T, err error) metaschema.Datatype {
	if err != nil {
		panic(fmt.Sprintf("benchmark: %v", err))
	}
	return t
}

// RegisterMethods registers the benchmark fixture methods on the server.
func RegisterMethods(server *yggrpc.Server) {
	server.Unary("noop", NullType.Copy(), NullType.Copy(), noop)
	server.UnaryFormat("add", "%f %f", "%f", add)
	server.UnaryFormat("greet", "%s", "%s", greet)
	server.Unary("vector_roundtrip", VectorType.Copy(), VectorType.Copy(), vectorRoundtrip)
}

// Handler implementations

func noop(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	if _, err := msg.Decode(false, nil); err != nil {
		return nil, err
	}
	return []any{nil}, nil
}

func add(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var a, b float64
	if _, err := msg.Decode(false, &a, &b); err != nil {
		return nil, err
	}
	return []any{a + b}, nil
}

func greet(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	name := metaschema.NewBuffer(len(msg.Body()))
	var n int
	if _, err := msg.Decode(false, name, &n); err != nil {
		return nil, err
	}
	greeting := "Hello, " + name.String() + "!"
	return []any{greeting, len(greeting)}, nil
}

func vectorRoundtrip(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var arr arrow.Array
	if _, err := msg.Decode(true, &arr); err != nil {
		return nil, err
	}
	return []any{arr}, nil
}
