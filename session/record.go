// Package session implements the session record and the registry that
// together form the state core of the MCP server runtime: the mapping from
// session id to session record, with owner-liveness monitoring. The
// per-session actor that owns a single session's dispatch lives in the
// engine package.
package session

import (
	"sync"
	"time"

	"github.com/viant/mcpsession/mcp"
)

// Transport names the wire model a session is bound to. Immutable after
// creation.
type Transport string

const (
	TransportSSE   Transport = "sse"
	TransportStdio Transport = "stdio"
)

// Owner is the liveness handle for a session's outbound-delivery endpoint
// (the SSE stream writer or the stdio writer). The registry watches Done
// to detect when the owner has gone away and must have the session removed.
type Owner interface {
	// Done returns a channel that is closed when the owner terminates.
	Done() <-chan struct{}
}

// Record is the state the registry holds for one session. The fields set by
// initialize (ProtocolVersion, ClientInfo, ServerInfo,
// NegotiatedCapabilities) are written by the dispatcher's first successful
// initialize only; apply itself does not refuse a later Patch that sets them.
// Session state is changed through the registry's Update operation.
type Record struct {
	mu sync.RWMutex

	SessionID string
	Transport Transport
	Owner     Owner

	Initialized            bool
	ProtocolVersion        string
	ClientInfo             mcp.Implementation
	ServerInfo             mcp.Implementation
	NegotiatedCapabilities mcp.Capabilities
	CustomTools            map[string]mcp.Tool

	CreatedAt time.Time

	replayCap  int
	replayNext uint64
	replayRing []ReplayEvent
}

// NewRecord creates a fresh, not-yet-initialized record for a newly accepted
// session.
func NewRecord(sessionID string, transport Transport, owner Owner) *Record {
	return &Record{
		SessionID: sessionID,
		Transport: transport,
		Owner:     owner,
		CreatedAt: time.Now(),
	}
}

// Snapshot is a point-in-time copy of a Record's fields, safe to read
// without holding any lock. The dispatcher and handlers only ever see
// Snapshots; the live *Record never escapes the registry/manager.
type Snapshot struct {
	SessionID              string
	Transport               Transport
	Initialized            bool
	ProtocolVersion         string
	ClientInfo              mcp.Implementation
	ServerInfo              mcp.Implementation
	NegotiatedCapabilities  mcp.Capabilities
	CustomTools             map[string]mcp.Tool
	CreatedAt               time.Time
}

// Snapshot copies out the record's current field values under its lock.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make(map[string]mcp.Tool, len(r.CustomTools))
	for k, v := range r.CustomTools {
		tools[k] = v
	}
	return Snapshot{
		SessionID:              r.SessionID,
		Transport:              r.Transport,
		Initialized:            r.Initialized,
		ProtocolVersion:        r.ProtocolVersion,
		ClientInfo:             r.ClientInfo,
		ServerInfo:             r.ServerInfo,
		NegotiatedCapabilities: r.NegotiatedCapabilities,
		CustomTools:            tools,
		CreatedAt:              r.CreatedAt,
	}
}

// setOwner replaces the record's owner, used by Registry.Reattach when a
// reconnecting client takes over a session whose previous owner disconnected.
func (r *Record) setOwner(owner Owner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Owner = owner
}

// ReplayEvent is one outbound frame retained in a session's replay ring, so
// a reconnecting SSE client can be handed anything it missed (SPEC_FULL.md's
// replay-buffer supplement).
type ReplayEvent struct {
	Seq     uint64
	Payload []byte
}

// EnableReplay turns on this record's outbound replay ring with the given
// capacity. Capacity <= 0 disables it and drops any buffered events - the
// default, matching the teacher's own off-by-default behavior.
func (r *Record) EnableReplay(capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replayCap = capacity
	if capacity <= 0 {
		r.replayRing = nil
	}
}

// recordEvent appends payload to the replay ring, trimming to replayCap, and
// reports the event's sequence number. A disabled ring (replayCap <= 0) is a
// no-op that reports ok=false.
func (r *Record) recordEvent(payload []byte) (seq uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replayCap <= 0 {
		return 0, false
	}
	r.replayNext++
	cp := append([]byte(nil), payload...)
	r.replayRing = append(r.replayRing, ReplayEvent{Seq: r.replayNext, Payload: cp})
	if len(r.replayRing) > r.replayCap {
		r.replayRing = r.replayRing[len(r.replayRing)-r.replayCap:]
	}
	return r.replayNext, true
}

// eventsAfter returns a copy of every buffered event with Seq greater than
// after, in order.
func (r *Record) eventsAfter(after uint64) []ReplayEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ReplayEvent
	for _, e := range r.replayRing {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// Patch carries a last-writer-wins set of field updates applied atomically
// by Registry.Update. Nil/zero fields are left untouched except where noted.
type Patch struct {
	// SetInitialized, when non-nil, sets Initialized. Per the invariant the
	// registry enforces, a true→false transition here is rejected.
	SetInitialized *bool

	ProtocolVersion        string
	ClientInfo              *mcp.Implementation
	ServerInfo              *mcp.Implementation
	NegotiatedCapabilities  mcp.Capabilities

	// RegisterTool, when non-nil, merges a tool into CustomTools under its
	// own name.
	RegisterTool *mcp.Tool
}

// apply merges patch fields into the record under the record's own lock.
// Initialized only ever moves false→true; a SetInitialized of false is
// ignored.
func (r *Record) apply(p Patch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.SetInitialized != nil && *p.SetInitialized && !r.Initialized {
		r.Initialized = true
	}
	if p.ProtocolVersion != "" {
		r.ProtocolVersion = p.ProtocolVersion
	}
	if p.ClientInfo != nil {
		r.ClientInfo = *p.ClientInfo
	}
	if p.ServerInfo != nil {
		r.ServerInfo = *p.ServerInfo
	}
	if p.NegotiatedCapabilities != nil {
		r.NegotiatedCapabilities = p.NegotiatedCapabilities
	}
	if p.RegisterTool != nil {
		if r.CustomTools == nil {
			r.CustomTools = make(map[string]mcp.Tool)
		}
		r.CustomTools[p.RegisterTool.Name] = *p.RegisterTool
	}
}
