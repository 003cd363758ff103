// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/metaschema-rpc/metaschema"
)

func newTestHttpServer(t *testing.T, level int) (*httptest.Server, *recordingHook) {
	t.Helper()
	s := newTestServer()
	hook := &recordingHook{}
	s.SetDispatchHook(hook)
	h := NewHttpServer(s)
	require.NoError(t, h.SetCompressionLevel(level))
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, hook
}

func TestHttpCall(t *testing.T) {
	for _, compress := range []bool{false, true} {
		ts, hook := newTestHttpServer(t, 3)
		c, err := NewHttpFormatClient(ts.URL, "fib", "%d", "%d %d")
		require.NoError(t, err)
		require.NoError(t, c.SetCompression(compress))

		var n, fib int64
		got, err := c.Call(context.Background(), []any{int64(9)}, false, &n, &fib)
		require.NoError(t, err, "compress=%v", compress)
		assert.Equal(t, 2, got)
		assert.Equal(t, int64(34), fib)

		starts := hook.started()
		require.Len(t, starts, 1)
		assert.Equal(t, TransportHTTP, starts[0].Transport)
		assert.NotEmpty(t, starts[0].TransportMetadata["remote_addr"])
	}
}

func TestHttpLogsAndErrors(t *testing.T) {
	ts, _ := newTestHttpServer(t, 0)

	c, err := NewHttpFormatClient(ts.URL, "shout", "%s", "%s")
	require.NoError(t, err)
	var logs []LogMessage
	c.SetLogHandler(func(m LogMessage) { logs = append(logs, m) })

	out := metaschema.NewBuffer(0)
	var n int
	_, err = c.Call(context.Background(), []any{"hi", 2}, true, out, &n)
	require.NoError(t, err)
	assert.Equal(t, "HI", out.String())
	assert.Len(t, logs, 2)

	fib, err := NewHttpFormatClient(ts.URL, "fib", "%d", "%d %d")
	require.NoError(t, err)
	var a, b int64
	_, err = fib.Call(context.Background(), []any{int64(-2)}, false, &a, &b)
	var rpcErr *RpcError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "ValueError", rpcErr.Type)
}

func TestHttpStatusCodes(t *testing.T) {
	ts, _ := newTestHttpServer(t, 0)

	post := func(path, contentType string, body []byte) int {
		resp, err := http.Post(ts.URL+path, contentType, bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnsupportedMediaType, post("/ygg/fib", "text/plain", nil))
	assert.Equal(t, http.StatusBadRequest, post("/ygg/fib", arrowContentType, []byte("junk")))

	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, &Request{Method: "nope", Header: []byte(`{"type":"integer"}`), Body: []byte("1")}))
	assert.Equal(t, http.StatusNotFound, post("/ygg/nope", arrowContentType, buf.Bytes()))

	buf.Reset()
	require.NoError(t, WriteRequest(&buf, &Request{Method: "fib", Header: []byte(`{"type":"integer"}`), Body: []byte("1")}))
	assert.Equal(t, http.StatusBadRequest, post("/ygg/other", arrowContentType, buf.Bytes()))
	assert.Equal(t, http.StatusOK, post("/ygg/fib", arrowContentType, buf.Bytes()))

	buf.Reset()
	require.NoError(t, WriteRequest(&buf, &Request{Method: "fib", Header: []byte(`{"type":"string"}`), Body: []byte(`"x"`)}))
	assert.Equal(t, http.StatusBadRequest, post("/ygg/fib", arrowContentType, buf.Bytes()))
}

func TestHttpDescribe(t *testing.T) {
	ts, _ := newTestHttpServer(t, 0)

	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, &Request{Method: describeMethod}))
	resp, err := http.Post(ts.URL+"/ygg/"+describeMethod, arrowContentType, &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	desc, err := ReadDescription(resp.Body)
	require.NoError(t, err)
	require.Len(t, desc.Methods, 2)
	assert.Equal(t, `{"type":"string"}`, desc.Methods[1].InputType)
}

func TestHttpZstdBodyLimit(t *testing.T) {
	s := newTestServer()
	s.SetMaxMessageSize(1024)
	ts := httptest.NewServer(NewHttpServer(s))
	t.Cleanup(ts.Close)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	post := func(data []byte) (*http.Response, error) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/ygg/fib", bytes.NewReader(enc.EncodeAll(data, nil)))
		require.NoError(t, err)
		req.Header.Set("Content-Type", arrowContentType)
		req.Header.Set("Content-Encoding", zstdEncoding)
		return http.DefaultClient.Do(req)
	}

	resp, err := post(make([]byte, 8<<20))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, err = ReadReply(resp.Body)
	var rpcErr *RpcError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "ValueError", rpcErr.Type)
	assert.Contains(t, rpcErr.Message, "1024 byte limit")

	// a small compressed request still goes through
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, &Request{Method: "fib", Header: []byte(`{"type":"integer"}`), Body: []byte("5")}))
	ok, err := post(buf.Bytes())
	require.NoError(t, err)
	ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestAcceptsZstd(t *testing.T) {
	assert.True(t, acceptsZstd("gzip, zstd"))
	assert.True(t, acceptsZstd("ZSTD;q=0.5"))
	assert.False(t, acceptsZstd("gzip"))
	assert.False(t, acceptsZstd(""))
}

func TestHttpPages(t *testing.T) {
	ts, _ := newTestHttpServer(t, 0)

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, buf.String()
	}

	status, page := get("/ygg")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "<h1>test</h1>")
	assert.Contains(t, page, "2 methods")

	status, page = get("/ygg/" + describeMethod)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, `<span class="method-name">fib</span>`)
	assert.Contains(t, page, "{&#34;type&#34;:&#34;integer&#34;}")

	status, page = get("/elsewhere")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, page, "POST /ygg/&lt;method&gt;")
}
