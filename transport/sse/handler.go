// Package sse implements the SSE + HTTP POST transport adapter (C7, §4.7).
// Grounded on transport/server/http/sse/handler.go's ServeHTTP/handleSSE/
// handleMessage split and transport/server/http/common/writer.go's
// FlushWriter, adapted to the fixed "<prefix>/sse" and
// "<prefix>/rpc/<session_id>" route shape §4.7 specifies (the teacher
// instead locates the session id in a query string or header) and to
// enqueue onto the session's engine.Manager rather than calling the
// dispatcher inline in the same goroutine.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viant/mcpsession"
	sseCodec "github.com/viant/mcpsession/codec/sse"
	"github.com/viant/mcpsession/dispatch"
	"github.com/viant/mcpsession/engine"
	"github.com/viant/mcpsession/handler"
	"github.com/viant/mcpsession/internal/origin"
	"github.com/viant/mcpsession/session"
)

// flushWriter wraps an http.ResponseWriter so every Write flushes
// immediately, matching transport/server/http/common/writer.go's
// FlushWriter.
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	flusher, _ := w.(http.Flusher)
	return &flushWriter{w: w, flusher: flusher}
}

func (f *flushWriter) Write(p []byte) (int, error) {
	if f.flusher == nil {
		return 0, fmt.Errorf("streaming not supported: %T does not support flushing", f.w)
	}
	n, err := f.w.Write(p)
	if err == nil {
		f.flusher.Flush()
	}
	return n, err
}

func (f *flushWriter) Flush() {
	if f.flusher != nil {
		f.flusher.Flush()
	}
}

// Handler serves GET {PathPrefix}/sse and POST {PathPrefix}/rpc/{id}.
type Handler struct {
	PathPrefix     string
	AllowedOrigins []string
	IdleTimeout    time.Duration

	// ReplayBufferSize enables the outbound replay ring (SPEC_FULL.md
	// supplemented feature) for every session this Handler mints. Zero
	// (the default) disables it, matching the teacher's own default.
	ReplayBufferSize int

	Handler    handler.Handler
	Registry   *session.Registry
	Dispatcher *dispatch.Dispatcher
	Logger     jsonrpc.Logger

	mu       sync.RWMutex
	managers map[string]*engine.Manager
}

// New constructs a Handler. logger defaults to jsonrpc.DefaultLogger.
func New(h handler.Handler, registry *session.Registry, dispatcher *dispatch.Dispatcher, pathPrefix string, logger jsonrpc.Logger) *Handler {
	if logger == nil {
		logger = jsonrpc.DefaultLogger
	}
	return &Handler{
		PathPrefix: pathPrefix,
		Handler:    h,
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
		managers:   make(map[string]*engine.Manager),
	}
}

// ServeHTTP routes GET {prefix}/sse and POST {prefix}/rpc/{id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ssePath := h.PathPrefix + "/sse"
	switch {
	case r.URL.Path == ssePath && r.Method == http.MethodGet:
		h.handleSSE(w, r)
	case strings.HasPrefix(r.URL.Path, h.PathPrefix+"/rpc/") && r.Method == http.MethodPost:
		h.handleRPC(w, r)
	case r.URL.Path == ssePath:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// handleSSE implements the GET /sse route of §4.7.
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	if host := origin.Host(r); host != "" || len(h.AllowedOrigins) > 0 {
		if !origin.Allowed(h.AllowedOrigins, host) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fw := newFlushWriter(w)
	sender := sseCodec.NewWriter(fw)

	ctx := r.Context()

	// Replay keeps the session record alive for a grace window after this
	// connection drops, so a reconnecting client can pick it back up; a
	// plain request-context owner would have the registry unregister the
	// instant this handler returns. Without replay, ctx is the owner
	// directly, exactly as before.
	var owner session.Owner = ctx
	if h.ReplayBufferSize > 0 {
		owner = newGraceOwner(ctx, h.IdleTimeout)
	}

	// A reconnecting client presents its prior session id; if the registry
	// still holds that session's record (its old owner having since
	// disconnected), reattach to it instead of minting a fresh one.
	sessionID := r.URL.Query().Get("session_id")
	reattached := sessionID != "" && h.Registry.Reattach(sessionID, owner)
	if !reattached {
		sessionID = session.NewID()
		rec := session.NewRecord(sessionID, session.TransportSSE, owner)
		if err := h.Registry.Register(rec); err != nil {
			http.Error(w, fmt.Sprintf("failed to register session: %v", err), http.StatusInternalServerError)
			return
		}
		if h.ReplayBufferSize > 0 {
			h.Registry.EnableReplay(sessionID, h.ReplayBufferSize)
		}
	}

	mgr := engine.NewManager(sessionID, session.TransportSSE, h.Handler, h.Registry, h.Dispatcher, sender, h.Logger)
	h.putManager(sessionID, mgr)
	defer h.dropManager(sessionID)
	if h.ReplayBufferSize <= 0 {
		// No reconnect window: this connection's end is the session's end,
		// so shut the manager down (and unregister) immediately.
		defer mgr.Shutdown(context.Background())
	}

	rpcPath := sseCodec.BuildRPCPath(h.PathPrefix, sessionID)
	if err := sender.WriteEndpoint(rpcPath); err != nil {
		return
	}

	if reattached {
		if seq, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
			if missed, ok := h.Registry.EventsAfter(sessionID, seq); ok {
				for _, ev := range missed {
					if err := sender.WriteMessage(ev.Payload); err != nil {
						return
					}
				}
			}
		}
	}

	mgr.Ready()

	var idleTimer <-chan time.Time
	if h.IdleTimeout > 0 {
		t := time.NewTimer(h.IdleTimeout)
		defer t.Stop()
		idleTimer = t.C
	}

	select {
	case <-ctx.Done():
	case <-idleTimer:
	}
}

// handleRPC implements the POST /rpc/{id} route of §4.7.
func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	sessionID := sseCodec.RPCSessionID(h.PathPrefix, r.URL.Path)
	if sessionID == "" {
		http.NotFound(w, r)
		return
	}

	var data []byte
	var err error
	if r.Body != nil {
		data, err = io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.ParseError, fmt.Sprintf("failed to read request body: %v", err))
			return
		}
	}

	if !json.Valid(data) {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.ParseError, "invalid JSON body")
		return
	}

	mgr, ok := h.getManager(sessionID)
	if !ok {
		writeJSONRPCError(w, http.StatusNotFound, jsonrpc.UnknownOrExpiredSession, "Unknown or expired session ID")
		return
	}

	status, body := mgr.HandleInbound(r.Context(), data)
	w.WriteHeader(status)
	if len(body) > 0 {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

func writeJSONRPCError(w http.ResponseWriter, status int, code int, message string) {
	envelope := jsonrpc.NewError(nil, jsonrpc.NewInnerError(code, message, nil))
	data, _ := json.Marshal(envelope)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (h *Handler) putManager(id string, mgr *engine.Manager) {
	h.mu.Lock()
	h.managers[id] = mgr
	h.mu.Unlock()
}

func (h *Handler) dropManager(id string) {
	h.mu.Lock()
	delete(h.managers, id)
	h.mu.Unlock()
}

func (h *Handler) getManager(id string) (*engine.Manager, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	mgr, ok := h.managers[id]
	return mgr, ok
}
