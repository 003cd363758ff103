// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Query-farm/metaschema-rpc/metaschema"
	gojson "github.com/goccy/go-json"
)

// ErrRpc is a sentinel for use with errors.Is to check whether any error in a
// chain is an *RpcError.
var ErrRpc = &RpcError{}

// RpcError is an error carried over the wire in an EXCEPTION batch.
type RpcError struct {
	Type      string // e.g. "ValueError", "TypeError"
	Message   string
	Traceback string
	RequestID string
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is supports errors.Is by matching any *RpcError target.
func (e *RpcError) Is(target error) bool {
	_, ok := target.(*RpcError)
	return ok
}

// toRpcError classifies err for the wire. Fatal engine errors become
// TypeError (schema disagreement); recoverable ones become ValueError.
func toRpcError(err error) *RpcError {
	var rpcErr *RpcError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var engineErr *metaschema.Error
	if errors.As(err, &engineErr) {
		typ := "ValueError"
		if engineErr.Fatal() {
			typ = "TypeError"
		}
		return &RpcError{Type: typ, Message: err.Error()}
	}
	return &RpcError{Type: fmt.Sprintf("%T", err), Message: err.Error()}
}

type stackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// errorExtra is the JSON written to ygg_rpc.log_extra for EXCEPTION batches.
type errorExtra struct {
	ExceptionType    string       `json:"exception_type"`
	ExceptionMessage string       `json:"exception_message"`
	Traceback        string       `json:"traceback,omitempty"`
	Frames           []stackFrame `json:"frames,omitempty"`
}

// buildErrorExtra encodes err for ygg_rpc.log_extra. Stack details are only
// included when debug is set.
func buildErrorExtra(err error, debug bool) string {
	rpcErr := toRpcError(err)
	extra := errorExtra{
		ExceptionType:    rpcErr.Type,
		ExceptionMessage: rpcErr.Message,
	}
	if debug {
		extra.Traceback = rpcErr.Traceback
		if extra.Traceback == "" {
			buf := make([]byte, 4096)
			extra.Traceback = string(buf[:runtime.Stack(buf, false)])
		}
		pcs := make([]uintptr, 10)
		if n := runtime.Callers(3, pcs); n > 0 {
			frames := runtime.CallersFrames(pcs[:n])
			for len(extra.Frames) < 5 {
				frame, more := frames.Next()
				extra.Frames = append(extra.Frames, stackFrame{
					File:     frame.File,
					Line:     frame.Line,
					Function: frame.Function,
				})
				if !more {
					break
				}
			}
		}
	}
	data, _ := gojson.Marshal(extra)
	return string(data)
}

// parseErrorExtra rebuilds an RpcError from an EXCEPTION batch.
func parseErrorExtra(message, extra, requestID string) *RpcError {
	e := &RpcError{Type: "RuntimeError", Message: message, RequestID: requestID}
	var parsed errorExtra
	if extra != "" && gojson.Unmarshal([]byte(extra), &parsed) == nil {
		if parsed.ExceptionType != "" {
			e.Type = parsed.ExceptionType
		}
		if parsed.ExceptionMessage != "" {
			e.Message = parsed.ExceptionMessage
		}
		e.Traceback = parsed.Traceback
	}
	return e
}
