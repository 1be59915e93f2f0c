// Package handler declares the polymorphic contract a concrete MCP server
// implementation satisfies. A Handler is pure with respect to session state:
// it reads and writes nothing in the session registry directly. The
// dispatcher interprets each method's return value and performs whatever
// state update is implied (see the dispatch package).
package handler

import (
	"context"
	"encoding/json"

	"github.com/viant/mcpsession/mcp"
)

// SessionInfo is the read-only view of a session record a Handler receives
// when asked to process a notification. It is a copy, not a lease on the
// live record - a Handler may not mutate session state.
type SessionInfo struct {
	SessionID              string
	Initialized             bool
	ProtocolVersion         string
	ClientInfo              mcp.Implementation
	ServerInfo              mcp.Implementation
	NegotiatedCapabilities  mcp.Capabilities
}

// Error is a handler-originated JSON-RPC error. The dispatcher unwraps it
// with errors.As and uses Code/Message/Data verbatim; any other error value
// returned by a Handler method is reported to the client as InternalError.
type Error struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *Error) Error() string { return e.Message }

// NewError constructs a handler Error. Concrete handlers return this instead
// of a plain error when they want to control the JSON-RPC error code - for
// example ToolNotFound for an unregistered tools/call name.
func NewError(code int, message string, data interface{}) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Handler is the capability set a concrete MCP server implementation
// satisfies. Every method returns either a JSON-serializable result or an
// error; a Base embedded by the concrete type supplies defaults for anything
// not overridden ("method not found" for most capabilities, see Base).
type Handler interface {
	// Initialize handles the initialize request. The dispatcher calls this
	// only after validating protocolVersion against the configured supported
	// set, and only on a session's first (non-idempotent-replay) initialize.
	Initialize(ctx context.Context, sessionID string, params mcp.InitializeParams) (mcp.InitializeResult, error)

	// Ping handles the ping request. Its return value carries no content the
	// dispatcher cares about; the client always sees result:{}.
	Ping(ctx context.Context, sessionID string) error

	ListTools(ctx context.Context, sessionID string, params json.RawMessage) (mcp.ListToolsResult, error)

	// CallTool returns the handler's raw result. When it is not already
	// content-shaped ({"content":[...]}), the dispatcher wraps it as a
	// single text content item.
	CallTool(ctx context.Context, sessionID string, name string, arguments map[string]interface{}) (interface{}, error)

	ListResources(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error)
	ReadResource(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error)
	ListPrompts(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error)
	GetPrompt(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error)
	Complete(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error)

	// Generic handles wire methods that have no dedicated capability above
	// (resources/templates/list, resources/subscribe, resources/unsubscribe,
	// logging/setLevel, sampling/createMessage, roots/list). A Base returns
	// MethodNotFound for all of them; a concrete handler overrides Generic,
	// or composes a table of its own, to claim any it supports.
	Generic(ctx context.Context, sessionID string, method string, params json.RawMessage) (interface{}, error)

	// Notification handles a client notification. Its error is logged, never
	// reported to the client - notifications never produce a response.
	Notification(ctx context.Context, sessionID string, method string, params json.RawMessage, info SessionInfo) error
}

// Base implements Handler with "method not found" for every capability
// except Ping (succeeds), ListTools (returns an empty tool list) and
// Notification (returns nil). Concrete handlers embed Base and override only
// what they support.
type Base struct{}

func notFound(method string) error {
	return NewError(-32601, "Method not found: "+method, nil)
}

func (Base) Initialize(ctx context.Context, sessionID string, params mcp.InitializeParams) (mcp.InitializeResult, error) {
	return mcp.InitializeResult{}, notFound("initialize")
}

func (Base) Ping(ctx context.Context, sessionID string) error { return nil }

func (Base) ListTools(ctx context.Context, sessionID string, params json.RawMessage) (mcp.ListToolsResult, error) {
	return mcp.ListToolsResult{Tools: []mcp.Tool{}}, nil
}

func (Base) CallTool(ctx context.Context, sessionID string, name string, arguments map[string]interface{}) (interface{}, error) {
	return nil, notFound("tools/call")
}

func (Base) ListResources(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error) {
	return nil, notFound("resources/list")
}

func (Base) ReadResource(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error) {
	return nil, notFound("resources/read")
}

func (Base) ListPrompts(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error) {
	return nil, notFound("prompts/list")
}

func (Base) GetPrompt(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error) {
	return nil, notFound("prompts/get")
}

func (Base) Complete(ctx context.Context, sessionID string, params json.RawMessage) (interface{}, error) {
	return nil, notFound("completion/complete")
}

func (Base) Generic(ctx context.Context, sessionID string, method string, params json.RawMessage) (interface{}, error) {
	return nil, notFound(method)
}

func (Base) Notification(ctx context.Context, sessionID string, method string, params json.RawMessage, info SessionInfo) error {
	return nil
}
