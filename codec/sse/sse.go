// Package sse implements the Server-Sent Events chunk formats and endpoint
// path construction the SSE transport uses (§4.3). Grounded on
// transport/server/http/sse/handler.go's initSessionHandshake (the endpoint
// bootstrap event) and transport/server/http/streamable/framer.go's
// frameSSE (named vs. unnamed chunk shape), adapted to the fixed
// "<path_prefix>/rpc/<session_id>" path §4.3 specifies rather than the
// teacher's query-string session location.
package sse

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FrameUnnamed formats an unnamed SSE message chunk: "data: <payload>\n\n".
// Used for every JSON-RPC response, error, and notification after the
// initial endpoint event, other than the one named InitializeResult event.
func FrameUnnamed(payload []byte) []byte {
	return []byte(fmt.Sprintf("data: %s\n\n", payload))
}

// FrameNamed formats a named SSE event chunk: "event: <name>\ndata:
// <payload>\n\n". Used for the bootstrap endpoint event and for
// InitializeResult.
func FrameNamed(event string, payload []byte) []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
}

// BuildRPCPath constructs the relative URL a client must POST subsequent
// JSON-RPC requests to for sessionID: "<pathPrefix>/rpc/<sessionID>".
func BuildRPCPath(pathPrefix, sessionID string) string {
	return pathPrefix + "/rpc/" + sessionID
}

// RPCSessionID extracts the session id suffix from a request path matching
// "<pathPrefix>/rpc/<sessionID>", or "" if path does not have that shape
// under pathPrefix.
func RPCSessionID(pathPrefix, path string) string {
	prefix := pathPrefix + "/rpc/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimPrefix(path, prefix)
}

// Writer emits SSE chunks to an underlying io.Writer (normally an
// http.Flusher-backed response writer), flushing after every write so
// partial frames never linger in a buffer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEndpoint emits the mandatory bootstrap "event: endpoint" chunk
// carrying rpcPath (§4.3, §6.1, Testable Property 7).
func (w *Writer) WriteEndpoint(rpcPath string) error {
	return w.write(FrameNamed("endpoint", []byte(rpcPath)))
}

// WriteInitializeResult emits the named InitializeResult event carrying the
// JSON-serialized initialize result.
func (w *Writer) WriteInitializeResult(payload []byte) error {
	return w.write(FrameNamed("InitializeResult", payload))
}

// WriteMessage emits an unnamed data: chunk.
func (w *Writer) WriteMessage(payload []byte) error {
	return w.write(FrameUnnamed(payload))
}

// Send implements engine.Sender: event == "" writes an unnamed chunk, any
// other value writes a named event chunk with that name. ctx is unused - an
// SSE chunk write never blocks on anything cancellation would interrupt.
func (w *Writer) Send(ctx context.Context, event string, payload []byte) error {
	if event == "" {
		return w.WriteMessage(payload)
	}
	return w.write(FrameNamed(event, payload))
}

func (w *Writer) write(chunk []byte) error {
	_, err := w.w.Write(chunk)
	if err == nil {
		if f, ok := w.w.(interface{ Flush() }); ok {
			f.Flush()
		}
	}
	return err
}
