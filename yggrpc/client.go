// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Query-farm/metaschema-rpc/metaschema"
	"github.com/google/uuid"
)

// Client calls one method of a server over a reader/writer pair. Requests
// are answered in the order they were sent, so Recv always pairs with the
// oldest outstanding Send.
//
// Send and Recv may be called from different goroutines. The context is
// checked before each exchange; a blocked read is not interrupted.
type Client struct {
	r io.Reader
	w io.Writer
	methodTypes

	logLevel LogLevel
	onLog    func(LogMessage)

	sendMu  sync.Mutex
	recvMu  sync.Mutex
	mu      sync.Mutex
	pending []string
}

// NewClient creates a client for method. Requests are serialized as outType
// and replies are expected to be inType.
func NewClient(r io.Reader, w io.Writer, method string, outType, inType metaschema.Datatype) (*Client, error) {
	types, err := newMethodTypes(method, outType, inType)
	if err != nil {
		return nil, err
	}
	return &Client{r: r, w: w, methodTypes: types}, nil
}

// NewFormatClient creates a client whose types are given as printf-style
// format strings.
func NewFormatClient(r io.Reader, w io.Writer, method, outFormat, inFormat string) (*Client, error) {
	outType, inType, err := parseFormats(method, outFormat, inFormat)
	if err != nil {
		return nil, err
	}
	return NewClient(r, w, method, outType, inType)
}

// SetLogLevel sets the minimum severity of server log messages to receive.
func (c *Client) SetLogLevel(level LogLevel) {
	c.logLevel = level
}

// SetLogHandler sets a callback for server log messages. By default they are
// written to the process logger.
func (c *Client) SetLogHandler(fn func(LogMessage)) {
	c.onLog = fn
}

// Pending returns the number of requests sent but not yet received.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Send serializes args as one request and writes it. The request is
// assigned a fresh ID and queued for Recv.
func (c *Client) Send(ctx context.Context, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := c.request(c.logLevel, args)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := WriteRequest(c.w, req); err != nil {
		return fmt.Errorf("yggrpc: sending %q: %w", c.method, err)
	}
	c.mu.Lock()
	c.pending = append(c.pending, req.RequestID)
	c.mu.Unlock()
	return nil
}

// Recv reads the reply to the oldest outstanding request and stores it into
// slots. It returns the number of slots filled. A server-side failure is
// returned as an *RpcError.
func (c *Client) Recv(ctx context.Context, allowRealloc bool, slots ...any) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return -1, fmt.Errorf("yggrpc: %q: no request outstanding", c.method)
	}
	expected := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()

	reply, err := ReadReply(c.r)
	if reply != nil {
		c.deliverLogs(reply.Logs)
	}
	if err != nil {
		return -1, err
	}
	if reply.RequestID != expected {
		return -1, &RpcError{
			Type:      "ProtocolError",
			Message:   fmt.Sprintf("reply for request %s arrived while waiting for %s", reply.RequestID, expected),
			RequestID: reply.RequestID,
		}
	}
	return c.decode(reply, allowRealloc, slots)
}

// Call is Send followed by Recv.
func (c *Client) Call(ctx context.Context, args []any, allowRealloc bool, slots ...any) (int, error) {
	if err := c.Send(ctx, args...); err != nil {
		return -1, err
	}
	return c.Recv(ctx, allowRealloc, slots...)
}

// Describe asks the server for its method table. It must not be
// interleaved with outstanding requests.
func (c *Client) Describe(ctx context.Context) (*Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Pending() > 0 {
		return nil, fmt.Errorf("yggrpc: describe with %d requests outstanding", c.Pending())
	}
	c.sendMu.Lock()
	err := WriteRequest(c.w, &Request{Method: describeMethod, RequestID: uuid.NewString()})
	c.sendMu.Unlock()
	if err != nil {
		return nil, err
	}
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	return ReadDescription(c.r)
}

func (c *Client) deliverLogs(logs []LogMessage) {
	deliverLogs(c.method, c.onLog, logs)
}

// methodTypes is the client-side view of one method: how to encode its
// requests and what its replies must look like.
type methodTypes struct {
	method    string
	outType   metaschema.Datatype
	inType    metaschema.Datatype
	outHeader []byte
	inHeader  []byte
}

func newMethodTypes(method string, outType, inType metaschema.Datatype) (methodTypes, error) {
	outHeader, err := metaschema.EncodeHeader(outType)
	if err != nil {
		return methodTypes{}, fmt.Errorf("yggrpc: client %q: output type: %w", method, err)
	}
	inHeader, err := metaschema.EncodeHeader(inType)
	if err != nil {
		return methodTypes{}, fmt.Errorf("yggrpc: client %q: input type: %w", method, err)
	}
	return methodTypes{
		method:    method,
		outType:   outType,
		inType:    inType,
		outHeader: outHeader,
		inHeader:  inHeader,
	}, nil
}

func parseFormats(method, outFormat, inFormat string) (metaschema.Datatype, metaschema.Datatype, error) {
	outType, err := metaschema.ParseFormat(outFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("yggrpc: client %q: output format %q: %w", method, outFormat, err)
	}
	inType, err := metaschema.ParseFormat(inFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("yggrpc: client %q: input format %q: %w", method, inFormat, err)
	}
	return outType, inType, nil
}

// request serializes args into a new request with a fresh ID.
func (m methodTypes) request(level LogLevel, args []any) (*Request, error) {
	body, err := metaschema.Encode(m.outType, args...)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:    m.method,
		RequestID: uuid.NewString(),
		LogLevel:  string(level),
		Header:    m.outHeader,
		Body:      body,
	}, nil
}

// decode checks the reply's type header and stores its body into slots.
func (m methodTypes) decode(reply *Reply, allowRealloc bool, slots []any) (int, error) {
	canonical, err := canonicalHeader(reply.Header)
	if err != nil {
		return -1, err
	}
	if !bytes.Equal(canonical, m.inHeader) {
		return -1, &RpcError{
			Type:      "TypeError",
			Message:   fmt.Sprintf("method '%s' replied with %s, expected %s", m.method, canonical, m.inHeader),
			RequestID: reply.RequestID,
		}
	}
	return metaschema.Deserialize(m.inType, reply.Body, allowRealloc, metaschema.NewCursor(slots...))
}

// deliverLogs hands server log messages to fn, or to the process logger
// when fn is nil.
func deliverLogs(method string, fn func(LogMessage), logs []LogMessage) {
	for _, msg := range logs {
		if fn != nil {
			fn(msg)
			continue
		}
		attrs := []any{"method", method}
		for k, v := range msg.Extras {
			attrs = append(attrs, k, v)
		}
		slog.Log(context.Background(), msg.Level.SlogLevel(), msg.Message, attrs...)
	}
}
