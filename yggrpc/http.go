// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Query-farm/metaschema-rpc/metaschema"
	"github.com/klauspost/compress/zstd"
)

const (
	arrowContentType = "application/vnd.apache.arrow.stream"
	zstdEncoding     = "zstd"
	httpPrefix       = "/ygg"

	// ipcFramingSlack is the room a request stream needs beyond its body
	// for schema and batch framing.
	ipcFramingSlack = 64 << 10
)

// HttpServer serves RPC requests over HTTP. Each request is one POST to
// /ygg/{method} whose body is a request stream; the response body holds the
// log messages and reply (or error) for it.
type HttpServer struct {
	server  *Server
	prefix  string
	mux     *http.ServeMux
	encoder *zstd.Encoder

	decoderMu    sync.Mutex
	decoder      *zstd.Decoder
	decoderLimit int
}

// NewHttpServer creates a new HTTP server wrapping an RPC server.
func NewHttpServer(server *Server) *HttpServer {
	h := &HttpServer{
		server: server,
		prefix: httpPrefix,
	}
	h.mux = http.NewServeMux()
	h.mux.HandleFunc(fmt.Sprintf("POST %s/{method}", h.prefix), h.handleUnary)
	h.mux.HandleFunc(fmt.Sprintf("GET %s", h.prefix), h.handleLandingPage)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/{$}", h.prefix), h.handleLandingPage)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/%s", h.prefix, describeMethod), h.handleDescribePage)
	h.mux.HandleFunc("GET /", h.handleNotFound)
	return h
}

// SetCompressionLevel enables zstd response compression for clients that
// send Accept-Encoding: zstd. Levels follow zstd (1-22); zero or less
// disables compression. Compressed requests are accepted regardless.
func (h *HttpServer) SetCompressionLevel(level int) error {
	if level <= 0 {
		h.encoder = nil
		return nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return fmt.Errorf("yggrpc: zstd level %d: %w", level, err)
	}
	h.encoder = enc
	return nil
}

// ServeHTTP implements http.Handler.
func (h *HttpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleUnary dispatches one request.
func (h *HttpServer) handleUnary(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")

	if ct := r.Header.Get("Content-Type"); ct != arrowContentType {
		h.writeHttpError(w, r, http.StatusUnsupportedMediaType,
			fmt.Errorf("unsupported content type: %s", ct), "")
		return
	}

	body, err := h.readBody(r)
	if err != nil {
		h.writeHttpError(w, r, http.StatusBadRequest, err, "")
		return
	}

	req, err := ReadRequest(bytes.NewReader(body))
	if err != nil {
		h.writeHttpError(w, r, http.StatusBadRequest, err, "")
		return
	}
	if req.Method != method {
		h.writeHttpError(w, r, http.StatusBadRequest, &RpcError{
			Type:    "ProtocolError",
			Message: fmt.Sprintf("request names method '%s' but was posted to '%s'", req.Method, method),
		}, req.RequestID)
		return
	}

	var buf bytes.Buffer
	if method == describeMethod {
		if err := h.server.serveDescribe(&buf, req); err != nil {
			h.writeHttpError(w, r, http.StatusInternalServerError, err, req.RequestID)
			return
		}
		h.writeArrow(w, r, http.StatusOK, buf.Bytes())
		return
	}

	req.Metadata = transportMetadata(req.Metadata, r)
	res := h.server.dispatch(r.Context(), TransportHTTP, req)
	if res.err != nil {
		_ = WriteErrorResponse(&buf, res.logs, res.err, h.server.serverID, req.RequestID, h.server.debugErrors)
		h.writeArrow(w, r, httpStatus(res.err), buf.Bytes())
		return
	}
	if err := WriteReply(&buf, res.logs, res.header, res.body, h.server.serverID, req.RequestID); err != nil {
		h.writeHttpError(w, r, http.StatusInternalServerError, err, req.RequestID)
		return
	}
	h.writeArrow(w, r, http.StatusOK, buf.Bytes())
}

// httpStatus maps an error to a response status: client mistakes are 4xx,
// everything else is 500.
func httpStatus(err error) int {
	switch toRpcError(err).Type {
	case "TypeError", "ValueError", "ProtocolError", "VersionError":
		return http.StatusBadRequest
	case "AttributeError":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// transportMetadata adds the peer address, user agent and HTTP headers to
// the request metadata seen by hooks.
func transportMetadata(meta map[string]string, r *http.Request) map[string]string {
	out := make(map[string]string, len(meta)+len(r.Header)+2)
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range r.Header {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	out["remote_addr"] = r.RemoteAddr
	out["user_agent"] = r.UserAgent()
	return out
}

func (h *HttpServer) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(r.Header.Get("Content-Encoding"), zstdEncoding) {
		return body, nil
	}
	dec, err := h.zstdDecoder()
	if err != nil {
		return nil, &RpcError{Type: "ProtocolError", Message: fmt.Sprintf("zstd request bodies are not supported: %v", err)}
	}
	out, err := dec.DecodeAll(body, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		return nil, &RpcError{
			Type:    "ValueError",
			Message: fmt.Sprintf("decompressed request exceeds the %d byte limit", h.server.maxMessageSize),
		}
	}
	if err != nil {
		return nil, &RpcError{Type: "ProtocolError", Message: fmt.Sprintf("zstd request body: %v", err)}
	}
	return out, nil
}

// zstdDecoder returns a decoder whose output is capped by the server's
// max message size. It is rebuilt when the limit changes.
func (h *HttpServer) zstdDecoder() (*zstd.Decoder, error) {
	limit := h.server.maxMessageSize
	h.decoderMu.Lock()
	defer h.decoderMu.Unlock()
	if h.decoder != nil && h.decoderLimit == limit {
		return h.decoder, nil
	}
	var opts []zstd.DOption
	if limit > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(limit)+ipcFramingSlack))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	h.decoder, h.decoderLimit = dec, limit
	return dec, nil
}

func (h *HttpServer) writeHttpError(w http.ResponseWriter, r *http.Request, statusCode int, err error, requestID string) {
	var buf bytes.Buffer
	_ = WriteErrorResponse(&buf, nil, err, h.server.serverID, requestID, h.server.debugErrors)
	h.writeArrow(w, r, statusCode, buf.Bytes())
}

func (h *HttpServer) writeArrow(w http.ResponseWriter, r *http.Request, statusCode int, data []byte) {
	w.Header().Set("Content-Type", arrowContentType)
	if h.encoder != nil && acceptsZstd(r.Header.Get("Accept-Encoding")) {
		data = h.encoder.EncodeAll(data, nil)
		w.Header().Set("Content-Encoding", zstdEncoding)
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(data)
}

func acceptsZstd(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, zstdEncoding) {
			return true
		}
	}
	return false
}

// HttpClient calls one method of an HttpServer.
type HttpClient struct {
	methodTypes
	url      string
	client   *http.Client
	compress bool
	logLevel LogLevel
	onLog    func(LogMessage)
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewHttpClient creates a client for method on the server at baseURL.
func NewHttpClient(baseURL, method string, outType, inType metaschema.Datatype) (*HttpClient, error) {
	types, err := newMethodTypes(method, outType, inType)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &HttpClient{
		methodTypes: types,
		url:         strings.TrimRight(baseURL, "/") + httpPrefix + "/" + method,
		client:      http.DefaultClient,
		decoder:     dec,
	}, nil
}

// NewHttpFormatClient is NewHttpClient with printf-style format strings.
func NewHttpFormatClient(baseURL, method, outFormat, inFormat string) (*HttpClient, error) {
	outType, inType, err := parseFormats(method, outFormat, inFormat)
	if err != nil {
		return nil, err
	}
	return NewHttpClient(baseURL, method, outType, inType)
}

// SetHTTPClient replaces the underlying http.Client.
func (c *HttpClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

// SetCompression enables zstd request bodies and asks for zstd responses.
func (c *HttpClient) SetCompression(enabled bool) error {
	c.compress = enabled
	if !enabled || c.encoder != nil {
		return nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	c.encoder = enc
	return nil
}

// SetLogLevel sets the minimum severity of server log messages to receive.
func (c *HttpClient) SetLogLevel(level LogLevel) {
	c.logLevel = level
}

// SetLogHandler sets a callback for server log messages.
func (c *HttpClient) SetLogHandler(fn func(LogMessage)) {
	c.onLog = fn
}

// Call sends one request built from args and stores the reply into slots.
func (c *HttpClient) Call(ctx context.Context, args []any, allowRealloc bool, slots ...any) (int, error) {
	req, err := c.request(c.logLevel, args)
	if err != nil {
		return -1, err
	}
	var buf bytes.Buffer
	if err := WriteRequest(&buf, req); err != nil {
		return -1, err
	}
	payload := buf.Bytes()
	if c.compress {
		payload = c.encoder.EncodeAll(payload, nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return -1, err
	}
	httpReq.Header.Set("Content-Type", arrowContentType)
	if c.compress {
		httpReq.Header.Set("Content-Encoding", zstdEncoding)
		httpReq.Header.Set("Accept-Encoding", zstdEncoding)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return -1, fmt.Errorf("yggrpc: posting %q: %w", c.method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, fmt.Errorf("yggrpc: reading %q response: %w", c.method, err)
	}
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), zstdEncoding) {
		if body, err = c.decoder.DecodeAll(body, nil); err != nil {
			return -1, fmt.Errorf("yggrpc: zstd response: %w", err)
		}
	}
	if resp.Header.Get("Content-Type") != arrowContentType {
		return -1, fmt.Errorf("yggrpc: %q: unexpected response %s (%s)", c.method, resp.Status, resp.Header.Get("Content-Type"))
	}

	reply, err := ReadReply(bytes.NewReader(body))
	if reply != nil {
		deliverLogs(c.method, c.onLog, reply.Logs)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return -1, fmt.Errorf("yggrpc: %q: empty response (%s)", c.method, resp.Status)
		}
		return -1, err
	}
	if reply.RequestID != req.RequestID {
		return -1, &RpcError{
			Type:      "ProtocolError",
			Message:   fmt.Sprintf("reply for request %s, expected %s", reply.RequestID, req.RequestID),
			RequestID: reply.RequestID,
		}
	}
	return c.decode(reply, allowRealloc, slots)
}
