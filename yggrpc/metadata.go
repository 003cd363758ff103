// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package yggrpc

// Metadata keys used on the wire. MetaType is schema-level metadata; the
// rest appear as custom metadata on Arrow IPC record batches.
const (
	MetaType = "metaschema.type"

	MetaMethod         = "ygg_rpc.method"
	MetaRequestVersion = "ygg_rpc.request_version"
	MetaRequestID      = "ygg_rpc.request_id"
	MetaLogLevel       = "ygg_rpc.log_level"
	MetaLogMessage     = "ygg_rpc.log_message"
	MetaLogExtra       = "ygg_rpc.log_extra"
	MetaServerID       = "ygg_rpc.server_id"

	ProtocolVersion = "1"
)
