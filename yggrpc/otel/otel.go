// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package yggotel provides OpenTelemetry instrumentation for yggrpc servers.
// It implements the [yggrpc.DispatchHook] interface to add distributed tracing
// and metrics to RPC dispatch.
//
// Usage:
//
//	server := yggrpc.NewServer()
//	// ... register methods ...
//	yggotel.InstrumentServer(server, yggotel.DefaultConfig())
package yggotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Query-farm/metaschema-rpc/yggrpc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "ygg_rpc"
	systemName          = "ygg_rpc"
)

// OtelConfig configures OpenTelemetry instrumentation for a yggrpc server.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator extracts trace context from transport metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed dispatches.
	// Default true.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value.
	// Defaults to Server.ServiceName() or "MetaschemaServer".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with tracing, metrics and exception
// recording enabled. Providers are resolved from the global OTel SDK at
// instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentServer attaches OpenTelemetry instrumentation to a server via
// [yggrpc.Server.SetDispatchHook].
func InstrumentServer(server *yggrpc.Server, cfg OtelConfig) {
	server.SetDispatchHook(NewHook(server.ServiceName(), cfg))
}

// NewHook builds the dispatch hook without installing it. serviceName is
// used when cfg.ServiceName is empty.
func NewHook(serviceName string, cfg OtelConfig) yggrpc.DispatchHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "MetaschemaServer"
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.requestCounter, _ = meter.Int64Counter("rpc.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of RPC requests"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("rpc.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of RPC requests"),
		)
		hook.bodyBytes, _ = meter.Int64Counter("rpc.server.body_bytes",
			metric.WithUnit("By"),
			metric.WithDescription("Serialized request and reply body bytes"),
		)
	}

	return hook
}

// otelHook implements yggrpc.DispatchHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               OtelConfig
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
	bodyBytes         metric.Int64Counter
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnDispatchStart extracts parent trace context and starts a server span.
func (h *otelHook) OnDispatchStart(ctx context.Context, info yggrpc.DispatchInfo) (context.Context, yggrpc.HookToken) {
	// traceparent/tracestate arrive in transport metadata
	if h.cfg.Propagator != nil && info.TransportMetadata != nil {
		carrier := propagation.MapCarrier(info.TransportMetadata)
		ctx = h.cfg.Propagator.Extract(ctx, carrier)
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", systemName),
		attribute.String("rpc.service", h.cfg.ServiceName),
		attribute.String("rpc.method", info.Method),
		attribute.String("rpc.ygg_rpc.transport", info.Transport),
		attribute.String("rpc.ygg_rpc.server_id", info.ServerID),
		attribute.String("rpc.ygg_rpc.input_type", info.InputType),
		attribute.String("rpc.ygg_rpc.output_type", info.OutputType),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	// HTTP only
	if v, ok := info.TransportMetadata["remote_addr"]; ok && v != "" {
		attrs = append(attrs, attribute.String("net.peer.ip", v))
	}
	if v, ok := info.TransportMetadata["user_agent"]; ok && v != "" {
		attrs = append(attrs, attribute.String("user_agent.original", v))
	}

	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("%s/%s", systemName, info.Method),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token yggrpc.HookToken, info yggrpc.DispatchInfo, stats *yggrpc.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("rpc.system", systemName),
			attribute.String("rpc.service", h.cfg.ServiceName),
			attribute.String("rpc.method", info.Method),
			attribute.String("rpc.ygg_rpc.transport", info.Transport),
			attribute.String("status", status),
		)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
		if h.bodyBytes != nil && stats != nil {
			h.bodyBytes.Add(ctx, stats.InputBytes+stats.OutputBytes, metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("rpc.ygg_rpc.input_messages", stats.InputMessages),
				attribute.Int64("rpc.ygg_rpc.output_messages", stats.OutputMessages),
				attribute.Int64("rpc.ygg_rpc.input_bytes", stats.InputBytes),
				attribute.Int64("rpc.ygg_rpc.output_bytes", stats.OutputBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			errType := fmt.Sprintf("%T", err)
			var rpcErr *yggrpc.RpcError
			if errors.As(err, &rpcErr) {
				errType = rpcErr.Type
			}
			st.span.SetAttributes(attribute.String("rpc.ygg_rpc.error_type", errType))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}
	}
	if st.span != nil {
		st.span.End()
	}
}
