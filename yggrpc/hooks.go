// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"context"
	"log/slog"
)

// Transport names for DispatchInfo.Transport.
const (
	TransportStream = "stream"
	TransportHTTP   = "http"
)

// DispatchHook provides observability callpoints around RPC dispatch.
// Implementations must be safe for concurrent use (HTTP transport is concurrent).
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries method metadata passed to hooks.
type DispatchInfo struct {
	Method            string            // RPC method name
	Transport         string            // TransportStream or TransportHTTP
	ServerID          string            // Server identifier
	RequestID         string            // Client-supplied request identifier
	InputType         string            // request type name
	OutputType        string            // reply type name
	TransportMetadata map[string]string // IPC custom metadata or HTTP headers
}

// CallStatistics holds per-call I/O counters.
type CallStatistics struct {
	InputMessages  int64
	OutputMessages int64
	InputBytes     int64
	OutputBytes    int64
}

// RecordInput records one decoded request body.
func (s *CallStatistics) RecordInput(bodyBytes int64) {
	s.InputMessages++
	s.InputBytes += bodyBytes
}

// RecordOutput records one encoded reply body.
func (s *CallStatistics) RecordOutput(bodyBytes int64) {
	s.OutputMessages++
	s.OutputBytes += bodyBytes
}

// hookStart calls OnDispatchStart, recovering from hook panics.
func (s *Server) hookStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken, bool) {
	if s.dispatchHook == nil {
		return ctx, nil, false
	}
	var token HookToken
	active := false
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				slog.Error("dispatch hook start panic", "err", rv)
			}
		}()
		var hookCtx context.Context
		hookCtx, token = s.dispatchHook.OnDispatchStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		active = true
	}()
	return ctx, token, active
}

// hookEnd calls OnDispatchEnd, recovering from hook panics.
func (s *Server) hookEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("dispatch hook end panic", "err", rv)
		}
	}()
	s.dispatchHook.OnDispatchEnd(ctx, token, info, stats, err)
}
