// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const describeMethod = "__describe__"

// Describe metadata keys.
const (
	MetaProtocolName    = "ygg_rpc.protocol_name"
	MetaDescribeVersion = "ygg_rpc.describe_version"
	DescribeVersion     = "1"
)

var describeFields = []arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "input_type", Type: arrow.BinaryTypes.String},
	{Name: "output_type", Type: arrow.BinaryTypes.String},
}

// MethodDescription is one row of a __describe__ response. The type
// fields hold serialized type headers.
type MethodDescription struct {
	Name       string
	InputType  string
	OutputType string
}

// Description is a parsed __describe__ response.
type Description struct {
	ProtocolName string
	ServerID     string
	Methods      []MethodDescription
}

// buildDescribeBatch builds the __describe__ response batch and its schema.
func (s *Server) buildDescribeBatch(requestID string) arrow.RecordBatch {
	mem := memory.NewGoAllocator()

	keys := []string{MetaProtocolName, MetaDescribeVersion}
	vals := []string{s.serviceName, DescribeVersion}
	if s.serverID != "" {
		keys = append(keys, MetaServerID)
		vals = append(vals, s.serverID)
	}
	if requestID != "" {
		keys = append(keys, MetaRequestID)
		vals = append(vals, requestID)
	}
	meta := arrow.NewMetadata(keys, vals)
	schema := arrow.NewSchema(describeFields, &meta)

	nameBuilder := array.NewStringBuilder(mem)
	defer nameBuilder.Release()
	inBuilder := array.NewStringBuilder(mem)
	defer inBuilder.Release()
	outBuilder := array.NewStringBuilder(mem)
	defer outBuilder.Release()

	names := s.availableMethods()
	for _, name := range names {
		info := s.methods[name]
		nameBuilder.Append(name)
		inBuilder.Append(string(info.InHeader))
		outBuilder.Append(string(info.OutHeader))
	}

	cols := []arrow.Array{nameBuilder.NewArray(), inBuilder.NewArray(), outBuilder.NewArray()}
	batch := array.NewRecordBatch(schema, cols, int64(len(names)))
	for _, c := range cols {
		c.Release()
	}
	return batch
}

// serveDescribe writes the __describe__ response.
func (s *Server) serveDescribe(w io.Writer, req *Request) error {
	batch := s.buildDescribeBatch(req.RequestID)
	defer batch.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(batch.Schema()))
	if err := writer.Write(batch); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// ReadDescription parses a __describe__ response stream.
func ReadDescription(r io.Reader) (*Description, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading describe stream: %w", err)
	}
	defer reader.Release()

	md := reader.Schema().Metadata()
	get := func(key string) string {
		if i := md.FindKey(key); i >= 0 {
			return md.Values()[i]
		}
		return ""
	}

	if level := get(MetaLogLevel); LogLevel(level) == LogException {
		for reader.Next() {
		}
		return nil, parseErrorExtra(get(MetaLogMessage), get(MetaLogExtra), get(MetaRequestID))
	}
	if v := get(MetaDescribeVersion); v != DescribeVersion {
		return nil, &RpcError{
			Type:    "VersionError",
			Message: "Unsupported describe version " + strconv.Quote(v),
		}
	}

	desc := &Description{
		ProtocolName: get(MetaProtocolName),
		ServerID:     get(MetaServerID),
	}
	for reader.Next() {
		batch := reader.RecordBatch()
		if batch.NumCols() != len(describeFields) {
			return nil, &RpcError{
				Type:    "ProtocolError",
				Message: fmt.Sprintf("describe batch has %d columns, expected %d", batch.NumCols(), len(describeFields)),
			}
		}
		names, ok1 := batch.Column(0).(*array.String)
		ins, ok2 := batch.Column(1).(*array.String)
		outs, ok3 := batch.Column(2).(*array.String)
		if !ok1 || !ok2 || !ok3 {
			return nil, &RpcError{Type: "ProtocolError", Message: "describe columns must be utf8"}
		}
		for i := 0; i < int(batch.NumRows()); i++ {
			desc.Methods = append(desc.Methods, MethodDescription{
				Name:       names.Value(i),
				InputType:  ins.Value(i),
				OutputType: outs.Value(i),
			})
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return desc, nil
}
