// Package engine implements the Session Manager (§4.6): the one actor per
// session that serializes inbound dispatch and outbound delivery on the
// session's owner stream. It sits between the transport adapters
// (transport/stdio, transport/sse) and the Dispatcher, so that both
// transports drive the same state machine instead of duplicating it.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viant/mcpsession"
	"github.com/viant/mcpsession/dispatch"
	"github.com/viant/mcpsession/handler"
	"github.com/viant/mcpsession/internal/obfuscate"
	"github.com/viant/mcpsession/session"
)

// Sender delivers one already-serialized JSON-RPC payload to a session's
// owner stream. event is "" for an unnamed chunk (stdio's only mode, and
// sse's default); a non-empty event names an SSE named event
// ("InitializeResult" is the only one this runtime emits). Implementations
// live in codec/frame and codec/sse.
type Sender interface {
	Send(ctx context.Context, event string, payload []byte) error
}

// State is the Session Manager's lifecycle state (§4.6).
type State int

const (
	StateOpening State = iota
	StateReady
	StateTerminating
)

// Manager is the per-session actor. All inbound dispatch and outbound send
// calls for one session serialize through its mutex, matching the ordering
// guarantee of §5: requests arrive and responses leave in the same order.
type Manager struct {
	mu sync.Mutex

	sessionID  string
	transport  session.Transport
	handler    handler.Handler
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	sender     Sender
	logger     jsonrpc.Logger

	state     State
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewManager constructs a Manager for a freshly minted session. Callers
// register the session's Record with registry before or immediately after
// constructing the Manager; NewManager does not register anything itself.
func NewManager(sessionID string, transport session.Transport, h handler.Handler, registry *session.Registry, dispatcher *dispatch.Dispatcher, sender Sender, logger jsonrpc.Logger) *Manager {
	if logger == nil {
		logger = jsonrpc.DefaultLogger
	}
	return &Manager{
		sessionID:  sessionID,
		transport:  transport,
		handler:    h,
		registry:   registry,
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		state:      StateOpening,
		doneCh:     make(chan struct{}),
	}
}

// Ready transitions Opening -> Ready once the transport adapter has
// finished any bootstrap it owns (e.g. the sse endpoint event).
func (m *Manager) Ready() {
	m.mu.Lock()
	if m.state == StateOpening {
		m.state = StateReady
	}
	m.mu.Unlock()
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done returns a channel closed once Shutdown completes.
func (m *Manager) Done() <-chan struct{} { return m.doneCh }

// HandleInbound processes one client-originated message. For a request it
// always pushes the response (or error) through Sender and returns an ack
// the sse POST route may use (204 on a pushed response, 500 with the error
// body as a fallback when Sender.Send itself fails - i.e. no live owner).
// For a notification it returns (204, nil) unconditionally; notifications
// never produce a client-visible response regardless of outcome.
func (m *Manager) HandleInbound(ctx context.Context, raw []byte) (ackStatus int, ackBody []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if json.Valid(raw) && dispatch.MessageType(raw) == jsonrpc.MessageTypeNotification {
		var n jsonrpc.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			m.logger.Errorf("session %s: malformed notification: %v", obfuscate.SessionID(m.sessionID), err)
			return 204, nil
		}
		m.dispatcher.HandleNotification(ctx, m.handler, m.sessionID, &n)
		return 204, nil
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		errEnvelope := jsonrpc.NewError(nil, jsonrpc.NewInnerError(jsonrpc.ParseError, fmt.Sprintf("failed to parse: %v", err), nil))
		payload, _ := json.Marshal(errEnvelope)
		if sendErr := m.sender.Send(ctx, "", payload); sendErr != nil {
			m.logger.Errorf("session %s: send failed: %v", obfuscate.SessionID(m.sessionID), sendErr)
		}
		return 400, payload
	}

	resp := m.dispatcher.HandleRequest(ctx, m.handler, m.sessionID, &req)
	payload, err := json.Marshal(resp)
	if err != nil {
		m.logger.Errorf("session %s: failed to encode response: %v", obfuscate.SessionID(m.sessionID), err)
		return 500, nil
	}

	event := dispatch.EventName(m.transport, req.Method, resp.Error != nil)
	if sendErr := m.sender.Send(ctx, event, payload); sendErr != nil {
		m.logger.Errorf("session %s: send failed, no live owner: %v", obfuscate.SessionID(m.sessionID), sendErr)
		return 500, payload
	}
	m.registry.RecordEvent(m.sessionID, payload)
	return 204, nil
}

// SendMessage pushes a server-originated notification (or any other
// out-of-band JSON-RPC message) to the session's outbound stream. It takes
// the same mutex as HandleInbound so a server-pushed event can never
// interleave mid-frame with a concurrently dispatched response.
func (m *Manager) SendMessage(ctx context.Context, notification *jsonrpc.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, "", data); err != nil {
		return err
	}
	m.registry.RecordEvent(m.sessionID, data)
	return nil
}

// Shutdown transitions the manager to Terminating, unregisters the session,
// and closes Done. It is safe to call more than once or concurrently; only
// the first call has effect.
func (m *Manager) Shutdown(context.Context) {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.state = StateTerminating
		m.mu.Unlock()
		m.registry.Unregister(m.sessionID)
		close(m.doneCh)
	})
}
