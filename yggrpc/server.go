// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/Query-farm/metaschema-rpc/metaschema"
)

// Handler serves one request. It decodes msg, does its work, and returns the
// reply values in the order the method's output type expects them.
type Handler func(ctx context.Context, call *CallContext, msg *Message) ([]any, error)

// methodInfo stores the registration details for one RPC method.
type methodInfo struct {
	Name      string
	InType    metaschema.Datatype
	OutType   metaschema.Datatype
	InHeader  []byte // canonical serialized input type
	OutHeader []byte // canonical serialized output type
	Handler   Handler
}

// Server is the RPC server that dispatches incoming requests to registered methods.
type Server struct {
	methods        map[string]*methodInfo
	serverID       string
	serviceName    string
	dispatchHook   DispatchHook
	debugErrors    bool
	maxMessageSize int
}

// NewServer creates a new RPC server.
func NewServer() *Server {
	return &Server{
		methods: make(map[string]*methodInfo),
	}
}

// SetServerID sets a server identifier included in response metadata.
func (s *Server) SetServerID(id string) {
	s.serverID = id
}

// SetServiceName sets a logical service name used by observability hooks
// and reported by __describe__.
func (s *Server) SetServiceName(name string) {
	s.serviceName = name
}

// ServiceName returns the logical service name, or empty string if not set.
func (s *Server) ServiceName() string {
	return s.serviceName
}

// SetDispatchHook registers a hook that is called around each RPC dispatch.
func (s *Server) SetDispatchHook(hook DispatchHook) {
	s.dispatchHook = hook
}

// SetDebugErrors controls whether error responses include stack traces.
// Leave it off for public-facing deployments.
func (s *Server) SetDebugErrors(enabled bool) {
	s.debugErrors = enabled
}

// SetMaxMessageSize bounds the size of request and reply bodies. Zero or
// less disables the check.
func (s *Server) SetMaxMessageSize(n int) {
	s.maxMessageSize = n
}

// Unary registers a request/reply method. Requests must carry the header of
// in; replies are serialized as out. Registration panics if either type
// cannot be encoded.
func (s *Server) Unary(name string, in, out metaschema.Datatype, handler Handler) {
	if handler == nil {
		panic(fmt.Sprintf("yggrpc: registering %q: handler must not be nil", name))
	}
	if name == describeMethod {
		panic(fmt.Sprintf("yggrpc: registering %q: name is reserved", name))
	}
	inHeader, err := metaschema.EncodeHeader(in)
	if err != nil {
		panic(fmt.Sprintf("yggrpc: registering %q: invalid input type: %v", name, err))
	}
	outHeader, err := metaschema.EncodeHeader(out)
	if err != nil {
		panic(fmt.Sprintf("yggrpc: registering %q: invalid output type: %v", name, err))
	}
	s.methods[name] = &methodInfo{
		Name:      name,
		InType:    in,
		OutType:   out,
		InHeader:  inHeader,
		OutHeader: outHeader,
		Handler:   handler,
	}
}

// UnaryFormat registers a method whose types are given as printf-style
// format strings.
func (s *Server) UnaryFormat(name, inFormat, outFormat string, handler Handler) {
	in, err := metaschema.ParseFormat(inFormat)
	if err != nil {
		panic(fmt.Sprintf("yggrpc: registering %q: invalid input format %q: %v", name, inFormat, err))
	}
	out, err := metaschema.ParseFormat(outFormat)
	if err != nil {
		panic(fmt.Sprintf("yggrpc: registering %q: invalid output format %q: %v", name, outFormat, err))
	}
	s.Unary(name, in, out, handler)
}

// RunStdio runs the server loop reading from stdin and writing to stdout.
// If stdin or stdout is connected to a terminal, a warning is printed to
// stderr.
func (s *Server) RunStdio() {
	// Writes to a closed pipe must return errors instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	if isTerminal(os.Stdin) || isTerminal(os.Stdout) {
		fmt.Fprintln(os.Stderr,
			"WARNING: This process communicates via Arrow IPC on stdin/stdout "+
				"and is not intended to be run interactively.\n"+
				"It should be launched as a subprocess by an RPC client.")
	}
	s.Serve(os.Stdin, os.Stdout)
}

// isTerminal reports whether f is connected to a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Serve runs the server loop on the given reader/writer pair.
func (s *Server) Serve(r io.Reader, w io.Writer) {
	s.ServeWithContext(context.Background(), r, w)
}

// ServeWithContext runs the server loop on the given reader/writer pair
// until r is exhausted, a transport error occurs, or ctx is cancelled.
// Requests are answered strictly in arrival order.
func (s *Server) ServeWithContext(ctx context.Context, r io.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.serveOne(ctx, r, w)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if !isTransportClosed(err) {
				slog.Error("serve loop error", "err", err)
			}
			return
		}
	}
}

// serveOne handles one complete request-reply cycle.
func (s *Server) serveOne(ctx context.Context, r io.Reader, w io.Writer) error {
	req, err := ReadRequest(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		var rpcErr *RpcError
		if errors.As(err, &rpcErr) {
			requestID := ""
			if req != nil {
				requestID = req.RequestID
			}
			return WriteErrorResponse(w, nil, rpcErr, s.serverID, requestID, s.debugErrors)
		}
		return err
	}

	if req.Method == describeMethod {
		return s.serveDescribe(w, req)
	}

	res := s.dispatch(ctx, TransportStream, req)
	if res.err != nil {
		return WriteErrorResponse(w, res.logs, res.err, s.serverID, req.RequestID, s.debugErrors)
	}
	return WriteReply(w, res.logs, res.header, res.body, s.serverID, req.RequestID)
}

// dispatchResult is what a dispatch sends back to the client: either a
// reply body or an error, preceded by any client-directed logs.
type dispatchResult struct {
	logs   []LogMessage
	header []byte
	body   []byte
	err    error
}

// dispatch runs one request through method lookup, type checking, the
// handler and reply serialization. It is shared by all transports.
func (s *Server) dispatch(ctx context.Context, transport string, req *Request) *dispatchResult {
	info, ok := s.methods[req.Method]
	if !ok {
		return &dispatchResult{err: &RpcError{
			Type:    "AttributeError",
			Message: fmt.Sprintf("Unknown method: '%s'. Available methods: %v", req.Method, s.availableMethods()),
		}}
	}

	dispatchInfo := DispatchInfo{
		Method:            req.Method,
		Transport:         transport,
		ServerID:          s.serverID,
		RequestID:         req.RequestID,
		InputType:         info.InType.Name(),
		OutputType:        info.OutType.Name(),
		TransportMetadata: req.Metadata,
	}
	stats := &CallStatistics{}
	ctx, token, hookActive := s.hookStart(ctx, dispatchInfo)

	res := s.invoke(ctx, req, info, stats)

	if hookActive {
		s.hookEnd(ctx, token, dispatchInfo, stats, res.err)
	}
	return res
}

func (s *Server) invoke(ctx context.Context, req *Request, info *methodInfo, stats *CallStatistics) *dispatchResult {
	if err := s.checkHeader(req.Header, info); err != nil {
		return &dispatchResult{err: err}
	}
	if err := s.checkSize("request", len(req.Body)); err != nil {
		return &dispatchResult{err: err}
	}
	stats.RecordInput(int64(len(req.Body)))

	callCtx := newCallContext(ctx, s, req)
	msg := NewMessage(info.InType.Copy(), req.Body)

	args, callErr := info.Handler(ctx, callCtx, msg)
	logs := callCtx.drainLogs()
	if callErr != nil {
		return &dispatchResult{logs: logs, err: callErr}
	}

	body, err := metaschema.Encode(info.OutType, args...)
	if err != nil {
		return &dispatchResult{logs: logs, err: &RpcError{
			Type:    "SerializationError",
			Message: fmt.Sprintf("result serialization: %v", err),
		}}
	}
	if err := s.checkSize("reply", len(body)); err != nil {
		return &dispatchResult{logs: logs, err: err}
	}
	stats.RecordOutput(int64(len(body)))

	return &dispatchResult{logs: logs, header: info.OutHeader, body: body}
}

// checkHeader verifies that a request's type header describes the same type
// the method was registered with. Headers are compared after re-encoding so
// member order and whitespace do not matter.
func (s *Server) checkHeader(header []byte, info *methodInfo) error {
	canonical, err := canonicalHeader(header)
	if err != nil {
		return err
	}
	if !bytes.Equal(canonical, info.InHeader) {
		return &RpcError{
			Type:    "TypeError",
			Message: fmt.Sprintf("method '%s' expects %s, got %s", info.Name, info.InHeader, canonical),
		}
	}
	return nil
}

func (s *Server) checkSize(what string, n int) error {
	if s.maxMessageSize > 0 && n > s.maxMessageSize {
		return &RpcError{
			Type:    "ValueError",
			Message: fmt.Sprintf("%s body of %d bytes exceeds the %d byte limit", what, n, s.maxMessageSize),
		}
	}
	return nil
}

// isTransportClosed reports whether err is a normal transport closure
// (EOF, broken pipe, connection reset) rather than an unexpected error.
func isTransportClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

func (s *Server) availableMethods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
