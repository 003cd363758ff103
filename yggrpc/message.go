// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

import (
	"fmt"

	"github.com/Query-farm/metaschema-rpc/metaschema"
)

// Message is a received data body together with the type that describes it.
type Message struct {
	typ  metaschema.Datatype
	body []byte
}

// NewMessage wraps body, serialized as typ.
func NewMessage(typ metaschema.Datatype, body []byte) *Message {
	return &Message{typ: typ, body: body}
}

// Type returns the message's type.
func (m *Message) Type() metaschema.Datatype { return m.typ }

// Body returns the serialized data body.
func (m *Message) Body() []byte { return m.body }

// Decode stores the body into slots. See metaschema.Deserialize.
func (m *Message) Decode(allowRealloc bool, slots ...any) (int, error) {
	return metaschema.Deserialize(m.typ, m.body, allowRealloc, metaschema.NewCursor(slots...))
}

// canonicalHeader re-encodes a type header so that headers describing the
// same type compare equal regardless of member order or whitespace.
func canonicalHeader(header []byte) ([]byte, error) {
	t, err := metaschema.ParseHeader(header)
	if err != nil {
		return nil, &RpcError{Type: "TypeError", Message: fmt.Sprintf("type header: %v", err)}
	}
	canonical, err := metaschema.EncodeHeader(t)
	if err != nil {
		return nil, &RpcError{Type: "TypeError", Message: fmt.Sprintf("type header: %v", err)}
	}
	return canonical, nil
}
