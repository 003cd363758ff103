// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package yggrpc carries metaschema-typed messages between a client and a
// server over Apache Arrow IPC.
//
// Every message on the wire is one complete Arrow IPC stream with a single
// binary column named "body". The stream's schema metadata carries the
// routing keys (ygg_rpc.method, ygg_rpc.request_id, ygg_rpc.log_level, ...)
// and, for data messages, the type header under metaschema.type. A data
// message has exactly one row holding the serialized data body. Log and
// error messages have no rows.
//
// # Methods
//
// A method pairs an input type with an output type. Register with
// [Server.Unary], or [Server.UnaryFormat] to describe both types with
// printf-style format strings:
//
//	server := yggrpc.NewServer()
//	server.UnaryFormat("fib", "%d", "%d %d", func(ctx context.Context, call *yggrpc.CallContext, msg *yggrpc.Message) ([]any, error) {
//		var n int64
//		if _, err := msg.Decode(false, &n); err != nil {
//			return nil, err
//		}
//		return []any{n, fib(n)}, nil
//	})
//
// A request whose type header does not match the registered input type is
// rejected with a TypeError before the handler runs.
//
// # Ordering
//
// The stream transport answers requests strictly in arrival order. A
// [Client] may send several requests before receiving; each call to
// [Client.Recv] returns the reply to the oldest outstanding request.
//
// # Errors
//
// Handler errors reach the client as *[RpcError]. Fatal metaschema errors
// are reported as TypeError and recoverable ones as ValueError. With
// [Server.SetDebugErrors] enabled the error also carries a stack trace.
//
// # HTTP transport
//
// [HttpServer] exposes a [Server] at
//
//	POST /ygg/{method}
//
// with Content-Type application/vnd.apache.arrow.stream. Requests may be
// zstd-compressed (Content-Encoding: zstd); responses are compressed for
// clients that accept zstd once [HttpServer.SetCompressionLevel] is set.
//
// # Introspection
//
// The reserved method __describe__ returns one row per registered method
// with its name and serialized input and output type headers.
package yggrpc
