// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Query-farm/metaschema-rpc/metaschema"
	"github.com/Query-farm/metaschema-rpc/yggrpc"
)

// RegisterMethods registers all conformance methods on the server.
func RegisterMethods(server *yggrpc.Server) {
	// Base types
	server.Unary("echo_boolean", BooleanType.Copy(), BooleanType.Copy(), echoBoolean)
	server.Unary("echo_integer", IntegerType.Copy(), IntegerType.Copy(), echoInteger)
	server.Unary("echo_null", NullType.Copy(), NullType.Copy(), echoNull)
	server.Unary("echo_number", NumberType.Copy(), NumberType.Copy(), echoNumber)
	server.Unary("echo_string", StringType.Copy(), StringType.Copy(), echoString)

	// Scalars
	server.Unary("echo_int32", Int32Type.Copy(), Int32Type.Copy(), echoInt32)
	server.Unary("echo_uint8", Uint8Type.Copy(), Uint8Type.Copy(), echoUint8)
	server.Unary("echo_float32", Float32Type.Copy(), Float32Type.Copy(), echoFloat32)
	server.Unary("echo_complex", ComplexType.Copy(), ComplexType.Copy(), echoComplex)
	server.Unary("echo_bytes", BytesType.Copy(), BytesType.Copy(), echoPayload)
	server.Unary("echo_unicode", UnicodeType.Copy(), UnicodeType.Copy(), echoPayload)

	// Vectors
	server.Unary("echo_vector", VectorType.Copy(), VectorType.Copy(), echoVector)
	server.Unary("sum_vector", VectorType.Copy(), NumberType.Copy(), sumVector)
	server.Unary("scale_vector", ScaleType.Copy(), VectorType.Copy(), scaleVector)

	// Composites from format strings
	server.Unary("echo_pair", PairType.Copy(), PairType.Copy(), echoPair)
	server.UnaryFormat("fib", "%d", "%d %d", fib)
	server.UnaryFormat("add_floats", "%f %f", "%f", addFloats)
	server.UnaryFormat("repeat", "%s %d", "%s", repeat)

	// Error propagation
	server.UnaryFormat("raise_value_error", "%s", "%s", raiseValueError)
	server.UnaryFormat("raise_runtime_error", "%s", "%s", raiseRuntimeError)
	server.UnaryFormat("raise_type_error", "%s", "%s", raiseTypeError)
	server.UnaryFormat("decode_small_buffer", "%s", "%s", decodeSmallBuffer)
	server.UnaryFormat("return_wrong_arity", "%d", "%d %d", returnWrongArity)

	// Client-directed logging
	server.UnaryFormat("echo_with_info_log", "%s", "%s", echoWithInfoLog)
	server.UnaryFormat("echo_with_multi_logs", "%s", "%s", echoWithMultiLogs)
	server.UnaryFormat("echo_with_log_extras", "%s", "%s", echoWithLogExtras)
}

// smallBufferSize is the fixed capacity decode_small_buffer decodes into,
// terminator included.
const smallBufferSize = 8

// --- Base types ---

func echoBoolean(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v bool
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoInteger(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v int64
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoNull(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	if _, err := msg.Decode(false, nil); err != nil {
		return nil, err
	}
	return []any{nil}, nil
}

func echoNumber(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v float64
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoString(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	return decodePayload(msg)
}

// --- Scalars ---

func echoInt32(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v int32
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoUint8(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v uint8
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoFloat32(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v float32
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoComplex(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var v complex128
	if _, err := msg.Decode(false, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func echoPayload(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	return decodePayload(msg)
}

// decodePayload decodes a string-like body into a growable buffer and
// returns it as (payload, length).
func decodePayload(msg *yggrpc.Message) ([]any, error) {
	buf := metaschema.NewBuffer(0)
	var n int
	if _, err := msg.Decode(true, buf, &n); err != nil {
		return nil, err
	}
	return []any{buf, n}, nil
}

// --- Vectors ---

func echoVector(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var arr arrow.Array
	if _, err := msg.Decode(true, &arr); err != nil {
		return nil, err
	}
	return []any{arr}, nil
}

func sumVector(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var arr arrow.Array
	if _, err := msg.Decode(true, &arr); err != nil {
		return nil, err
	}
	defer arr.Release()
	var sum float64
	for _, v := range arr.(*array.Float64).Float64Values() {
		sum += v
	}
	return []any{sum}, nil
}

func scaleVector(_ context.Context, call *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var factor *float64
	var arr arrow.Array
	if _, err := msg.Decode(true, &factor, &arr); err != nil {
		return nil, err
	}
	defer arr.Release()

	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	values := arr.(*array.Float64).Float64Values()
	b.Reserve(len(values))
	for _, v := range values {
		b.UnsafeAppend(v * *factor)
	}
	call.ClientLog(yggrpc.LogDebug, "scaled vector",
		yggrpc.KV{Key: "factor", Value: strconv.FormatFloat(*factor, 'g', -1, 64)},
		yggrpc.KV{Key: "len", Value: strconv.Itoa(len(values))},
	)
	return []any{b.NewArray()}, nil
}

// --- Composites ---

func echoPair(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	// The decoded string is never longer than its JSON encoding, so a buffer
	// the size of the body fits it without growing.
	buf := metaschema.NewBuffer(len(msg.Body()))
	var i int64
	var n int
	if _, err := msg.Decode(false, &i, buf, &n); err != nil {
		return nil, err
	}
	return []any{i, buf, n}, nil
}

func fib(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var n int64
	if _, err := msg.Decode(false, &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &yggrpc.RpcError{Type: "ValueError", Message: fmt.Sprintf("fib index must not be negative, got %d", n)}
	}
	a, b := int64(0), int64(1)
	for i := int64(0); i < n; i++ {
		a, b = b, a+b
	}
	return []any{n, a}, nil
}

func addFloats(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var a, b float64
	if _, err := msg.Decode(false, &a, &b); err != nil {
		return nil, err
	}
	return []any{a + b}, nil
}

func repeat(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	buf := metaschema.NewBuffer(len(msg.Body()))
	var n int
	var count int64
	if _, err := msg.Decode(false, buf, &n, &count); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, &yggrpc.RpcError{Type: "ValueError", Message: fmt.Sprintf("repeat count must not be negative, got %d", count)}
	}
	out := bytes.Repeat(buf.Bytes(), int(count))
	return []any{out, len(out)}, nil
}

// --- Error propagation ---

func raiseValueError(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	return raise(msg, "ValueError")
}

func raiseRuntimeError(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	return raise(msg, "RuntimeError")
}

func raiseTypeError(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	return raise(msg, "TypeError")
}

func raise(msg *yggrpc.Message, typ string) ([]any, error) {
	args, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}
	return nil, &yggrpc.RpcError{Type: typ, Message: args[0].(*metaschema.Buffer).String()}
}

func decodeSmallBuffer(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	buf := metaschema.NewBuffer(smallBufferSize)
	var n int
	if _, err := msg.Decode(false, buf, &n); err != nil {
		return nil, err
	}
	return []any{buf, n}, nil
}

func returnWrongArity(_ context.Context, _ *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	var n int64
	if _, err := msg.Decode(false, &n); err != nil {
		return nil, err
	}
	return []any{n}, nil
}

// --- Client-directed logging ---

func echoWithInfoLog(_ context.Context, call *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	args, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}
	call.ClientLog(yggrpc.LogInfo, "info: "+args[0].(*metaschema.Buffer).String())
	return args, nil
}

func echoWithMultiLogs(_ context.Context, call *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	args, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}
	value := args[0].(*metaschema.Buffer).String()
	call.ClientLog(yggrpc.LogDebug, "debug: "+value)
	call.ClientLog(yggrpc.LogInfo, "info: "+value)
	call.ClientLog(yggrpc.LogWarn, "warn: "+value)
	return args, nil
}

func echoWithLogExtras(_ context.Context, call *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
	args, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}
	call.ClientLog(yggrpc.LogInfo, "echo_with_extras",
		yggrpc.KV{Key: "source", Value: "conformance"},
		yggrpc.KV{Key: "detail", Value: args[0].(*metaschema.Buffer).String()},
	)
	return args, nil
}
