// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
)

// Every wire message is one complete Arrow IPC stream. The schema has a
// single binary column "body" and its metadata carries the routing keys
// (MetaMethod, MetaRequestID, ...) and the type header (MetaType). A data
// message has exactly one row; log and error messages have none.

// BatchKind classifies a received message based on its metadata.
type BatchKind int

const (
	BatchData  BatchKind = iota // regular data message
	BatchLog                    // client-directed log message
	BatchError                  // EXCEPTION message
)

// Request represents a parsed RPC request from the wire.
type Request struct {
	Method    string
	Version   string
	RequestID string
	LogLevel  string
	// Header is the serialized type header of Body.
	Header []byte
	// Body is one serialized data body, without terminator.
	Body     []byte
	Metadata map[string]string
}

// Reply is one parsed response: the data message plus any log messages
// that preceded it.
type Reply struct {
	Header    []byte
	Body      []byte
	Logs      []LogMessage
	RequestID string
	ServerID  string
}

// wireMessage is one decoded IPC stream.
type wireMessage struct {
	meta map[string]string
	body []byte
	rows int
}

func (m *wireMessage) kind() BatchKind {
	level, ok := m.meta[MetaLogLevel]
	switch {
	case !ok || m.rows > 0:
		return BatchData
	case LogLevel(level) == LogException:
		return BatchError
	default:
		return BatchLog
	}
}

func bodySchema(meta map[string]string) *arrow.Schema {
	md := arrow.MetadataFrom(meta)
	return arrow.NewSchema([]arrow.Field{
		{Name: "body", Type: arrow.BinaryTypes.Binary},
	}, &md)
}

// writeMessage writes one IPC stream. A nil body writes a zero-row message.
func writeMessage(w io.Writer, meta map[string]string, body []byte) error {
	schema := bodySchema(meta)
	writer := ipc.NewWriter(w, ipc.WithSchema(schema))

	if body != nil {
		mem := memory.NewGoAllocator()
		builder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		builder.Append(body)
		col := builder.NewArray()
		builder.Release()

		batch := array.NewRecordBatch(schema, []arrow.Array{col}, 1)
		col.Release()
		err := writer.Write(batch)
		batch.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("writing batch: %w", err)
		}
	}
	return writer.Close()
}

// readMessage reads one IPC stream through end-of-stream. It returns io.EOF
// when r is exhausted before a schema arrives.
func readMessage(r io.Reader) (*wireMessage, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		if isTransportClosed(err) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading IPC stream: %w", err)
	}
	defer reader.Release()

	msg := &wireMessage{meta: make(map[string]string)}
	md := reader.Schema().Metadata()
	for i, k := range md.Keys() {
		msg.meta[k] = md.Values()[i]
	}

	for reader.Next() {
		batch := reader.RecordBatch()
		rows := int(batch.NumRows())
		if rows == 0 {
			continue
		}
		msg.rows += rows
		if msg.body != nil || batch.NumCols() == 0 {
			continue
		}
		col, ok := batch.Column(0).(*array.Binary)
		if !ok {
			return nil, &RpcError{
				Type:    "ProtocolError",
				Message: fmt.Sprintf("body column has type %s, expected binary", batch.Column(0).DataType()),
			}
		}
		msg.body = bytes.Clone(col.Value(0))
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	return msg, nil
}

// ReadRequest reads one complete IPC stream from the reader and extracts
// the method name, version, type header and data body.
func ReadRequest(r io.Reader) (*Request, error) {
	msg, err := readMessage(r)
	if err != nil {
		return nil, err
	}
	meta := msg.meta

	method, ok := meta[MetaMethod]
	if !ok {
		return nil, &RpcError{
			Type:    "ProtocolError",
			Message: "Missing '" + MetaMethod + "' in request metadata",
		}
	}

	version, ok := meta[MetaRequestVersion]
	if !ok {
		return nil, &RpcError{
			Type:    "VersionError",
			Message: "Missing '" + MetaRequestVersion + "' in request metadata",
		}
	}
	if version != ProtocolVersion {
		return nil, &RpcError{
			Type:    "VersionError",
			Message: fmt.Sprintf("Unsupported request version %q, expected %q", version, ProtocolVersion),
		}
	}

	req := &Request{
		Method:    method,
		Version:   version,
		RequestID: meta[MetaRequestID],
		LogLevel:  meta[MetaLogLevel],
		Header:    []byte(meta[MetaType]),
		Body:      msg.body,
		Metadata:  meta,
	}

	// __describe__ carries no body.
	if method != describeMethod && msg.rows != 1 {
		return req, &RpcError{
			Type:      "ProtocolError",
			Message:   fmt.Sprintf("Expected 1 row in request, got %d", msg.rows),
			RequestID: req.RequestID,
		}
	}
	return req, nil
}

// WriteRequest writes req as one IPC stream. Version defaults to
// ProtocolVersion.
func WriteRequest(w io.Writer, req *Request) error {
	meta := map[string]string{
		MetaMethod:         req.Method,
		MetaRequestVersion: req.Version,
	}
	if req.Version == "" {
		meta[MetaRequestVersion] = ProtocolVersion
	}
	if req.RequestID != "" {
		meta[MetaRequestID] = req.RequestID
	}
	if req.LogLevel != "" {
		meta[MetaLogLevel] = req.LogLevel
	}
	if len(req.Header) > 0 {
		meta[MetaType] = string(req.Header)
	}
	body := req.Body
	if body == nil && req.Method != describeMethod {
		body = []byte{}
	}
	return writeMessage(w, meta, body)
}

func responseMeta(serverID, requestID string) map[string]string {
	meta := make(map[string]string, 5)
	if serverID != "" {
		meta[MetaServerID] = serverID
	}
	if requestID != "" {
		meta[MetaRequestID] = requestID
	}
	return meta
}

// writeLogBatch writes a zero-row message with log metadata.
func writeLogBatch(w io.Writer, msg LogMessage, serverID, requestID string) error {
	meta := responseMeta(serverID, requestID)
	meta[MetaLogLevel] = string(msg.Level)
	meta[MetaLogMessage] = msg.Message

	if len(msg.Extras) > 0 {
		extraJSON, err := gojson.Marshal(msg.Extras)
		if err != nil {
			extraJSON = []byte(`{}`)
		}
		meta[MetaLogExtra] = string(extraJSON)
	}
	return writeMessage(w, meta, nil)
}

// writeErrorBatch writes a zero-row message with EXCEPTION-level metadata.
func writeErrorBatch(w io.Writer, err error, serverID, requestID string, debug bool) error {
	meta := responseMeta(serverID, requestID)
	meta[MetaLogLevel] = string(LogException)
	meta[MetaLogMessage] = toRpcError(err).Message
	meta[MetaLogExtra] = buildErrorExtra(err, debug)
	return writeMessage(w, meta, nil)
}

// WriteReply writes the log messages followed by one data message whose
// schema metadata carries header.
func WriteReply(w io.Writer, logs []LogMessage, header, body []byte, serverID, requestID string) error {
	for _, logMsg := range logs {
		if err := writeLogBatch(w, logMsg, serverID, requestID); err != nil {
			return fmt.Errorf("writing log batch: %w", err)
		}
	}
	meta := responseMeta(serverID, requestID)
	meta[MetaType] = string(header)
	if body == nil {
		body = []byte{}
	}
	return writeMessage(w, meta, body)
}

// WriteErrorResponse writes the log messages followed by an EXCEPTION
// message describing err.
func WriteErrorResponse(w io.Writer, logs []LogMessage, err error, serverID, requestID string, debug bool) error {
	for _, logMsg := range logs {
		if werr := writeLogBatch(w, logMsg, serverID, requestID); werr != nil {
			return fmt.Errorf("writing log batch: %w", werr)
		}
	}
	return writeErrorBatch(w, err, serverID, requestID, debug)
}

// ReadReply reads log messages until a data or EXCEPTION message arrives.
// An EXCEPTION is returned as an *RpcError.
func ReadReply(r io.Reader) (*Reply, error) {
	reply := &Reply{}
	for {
		msg, err := readMessage(r)
		if err != nil {
			return nil, err
		}
		switch msg.kind() {
		case BatchLog:
			logMsg := LogMessage{
				Level:   LogLevel(msg.meta[MetaLogLevel]),
				Message: msg.meta[MetaLogMessage],
			}
			if extra := msg.meta[MetaLogExtra]; extra != "" {
				_ = gojson.Unmarshal([]byte(extra), &logMsg.Extras)
			}
			reply.Logs = append(reply.Logs, logMsg)
		case BatchError:
			rpcErr := parseErrorExtra(msg.meta[MetaLogMessage], msg.meta[MetaLogExtra], msg.meta[MetaRequestID])
			return reply, rpcErr
		default:
			reply.Header = []byte(msg.meta[MetaType])
			reply.Body = msg.body
			reply.RequestID = msg.meta[MetaRequestID]
			reply.ServerID = msg.meta[MetaServerID]
			return reply, nil
		}
	}
}
