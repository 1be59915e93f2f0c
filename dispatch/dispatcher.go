// Package dispatch implements the protocol core (§4.5): it validates
// protocol state, routes a JSON-RPC method to the Handler, and formats the
// resulting JSON-RPC response or error. It never touches a transport
// directly - the engine package decides, per session.Transport, how the
// Response this package returns actually reaches the client.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/mcpsession"
	"github.com/viant/mcpsession/handler"
	"github.com/viant/mcpsession/internal/pointer"
	"github.com/viant/mcpsession/mcp"
	"github.com/viant/mcpsession/session"
)

// Config carries the parts of §6.4 the dispatcher itself consults.
type Config struct {
	// SupportedVersions is the ordered list of protocolVersion strings
	// initialize will accept. Defaults to {jsonrpc.ProtocolVersion} when nil.
	SupportedVersions []string

	// AllowToolRegistration gates tools/register (§9 Open Question 2,
	// resolved as a capability-gated extension). Default false.
	AllowToolRegistration bool
}

// Dispatcher is the stateless protocol core. A single Dispatcher is shared
// by every session's Manager; all the per-session state it touches lives in
// Registry, which already serializes concurrent access.
type Dispatcher struct {
	Registry *session.Registry
	Config   Config
	Logger   jsonrpc.Logger
}

// New creates a Dispatcher bound to registry.
func New(registry *session.Registry, cfg Config, logger jsonrpc.Logger) *Dispatcher {
	if logger == nil {
		logger = jsonrpc.DefaultLogger
	}
	return &Dispatcher{Registry: registry, Config: cfg, Logger: logger}
}

// HandleRequest implements the request flow of §4.5, steps 1-4. It always
// returns a complete JSON-RPC response or error envelope for req.Id; it
// never panics - a recovered handler panic becomes an InternalError.
func (d *Dispatcher) HandleRequest(ctx context.Context, h handler.Handler, sessionID string, req *jsonrpc.Request) (resp *jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.InternalError, fmt.Sprintf("Internal error: %v", r), nil))
		}
	}()

	snap, ok := d.Registry.Lookup(sessionID)
	if !ok {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.InternalError, "Session not found", nil))
	}

	requiresInit := req.Method != "initialize" && req.Method != "notifications/initialized"
	if requiresInit && !snap.Initialized {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewNotInitializedInner())
	}

	switch req.Method {
	case "initialize":
		return d.handleInitialize(ctx, h, sessionID, snap, req)
	case "ping":
		if err := h.Ping(ctx, sessionID); err != nil {
			return d.errorResponse(req.Id, err)
		}
		return jsonrpc.NewResponse(req.Id, mustMarshal(map[string]interface{}{}))
	case "tools/list":
		result, err := h.ListTools(ctx, sessionID, req.Params)
		if err != nil {
			return d.errorResponse(req.Id, err)
		}
		return jsonrpc.NewResponse(req.Id, mustMarshal(result))
	case "tools/call":
		return d.handleCallTool(ctx, h, sessionID, req)
	case "tools/register":
		return d.handleRegisterTool(sessionID, req)
	case "resources/list":
		return d.passthrough(req.Id, h.ListResources(ctx, sessionID, req.Params))
	case "resources/read":
		return d.passthrough(req.Id, h.ReadResource(ctx, sessionID, req.Params))
	case "prompts/list":
		return d.passthrough(req.Id, h.ListPrompts(ctx, sessionID, req.Params))
	case "prompts/get":
		return d.passthrough(req.Id, h.GetPrompt(ctx, sessionID, req.Params))
	case "completion/complete", "complete":
		return d.passthrough(req.Id, h.Complete(ctx, sessionID, req.Params))
	case "resources/templates/list", "resources/subscribe", "resources/unsubscribe",
		"logging/setLevel", "sampling/createMessage", "roots/list":
		return d.passthrough(req.Id, h.Generic(ctx, sessionID, req.Method, req.Params))
	default:
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.MethodNotFound, "Method not found: "+req.Method, nil))
	}
}

// HandleNotification implements §4.5's notification flow: it never returns
// a value the caller could mistake for a response, and it spawns the actual
// handler call asynchronously so a slow or misbehaving Notification
// implementation cannot stall the session's inbound processing.
func (d *Dispatcher) HandleNotification(ctx context.Context, h handler.Handler, sessionID string, n *jsonrpc.Notification) {
	snap, ok := d.Registry.Lookup(sessionID)
	if !ok {
		return
	}
	info := handler.SessionInfo{
		SessionID:              sessionID,
		Initialized:            snap.Initialized,
		ProtocolVersion:        snap.ProtocolVersion,
		ClientInfo:             snap.ClientInfo,
		ServerInfo:             snap.ServerInfo,
		NegotiatedCapabilities: snap.NegotiatedCapabilities,
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.Logger.Errorf("notification handler panic: method=%s: %v", n.Method, r)
			}
		}()
		if err := h.Notification(ctx, sessionID, n.Method, n.Params, info); err != nil {
			d.Logger.Errorf("notification handler error: method=%s: %v", n.Method, err)
		}
	}()
}

func (d *Dispatcher) passthrough(id jsonrpc.RequestId, result interface{}, err error) *jsonrpc.Response {
	if err != nil {
		return d.errorResponse(id, err)
	}
	return jsonrpc.NewResponse(id, mustMarshal(result))
}

func (d *Dispatcher) errorResponse(id jsonrpc.RequestId, err error) *jsonrpc.Response {
	var herr *handler.Error
	if errors.As(err, &herr) {
		return jsonrpc.NewErrorResponse(id, jsonrpc.NewInnerError(herr.Code, herr.Message, herr.Data))
	}
	return jsonrpc.NewErrorResponse(id, jsonrpc.NewInnerError(jsonrpc.InternalError, "Internal error: "+err.Error(), nil))
}

func (d *Dispatcher) supportedVersions() []string {
	if len(d.Config.SupportedVersions) == 0 {
		return []string{jsonrpc.ProtocolVersion}
	}
	return d.Config.SupportedVersions
}

func (d *Dispatcher) supports(version string) bool {
	for _, v := range d.supportedVersions() {
		if v == version {
			return true
		}
	}
	return false
}

// handleInitialize implements the initialize row of §4.5's method table
// plus the idempotent-replay resolution of Open Question 1 (SPEC_FULL.md).
func (d *Dispatcher) handleInitialize(ctx context.Context, h handler.Handler, sessionID string, snap session.Snapshot, req *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.InitializeParams
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewProtocolVersionMismatchInner("Missing protocolVersion parameter"))
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.InvalidParams, "Invalid initialize params: "+err.Error(), nil))
	}
	if params.ProtocolVersion == "" {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewProtocolVersionMismatchInner("Missing protocolVersion parameter"))
	}
	if !d.supports(params.ProtocolVersion) {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewProtocolVersionMismatchInner("Unsupported protocol version: "+params.ProtocolVersion))
	}

	if snap.Initialized {
		if snap.ProtocolVersion != params.ProtocolVersion {
			return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewProtocolVersionMismatchInner("Unsupported protocol version: "+params.ProtocolVersion))
		}
		result := mcp.InitializeResult{
			ProtocolVersion: snap.ProtocolVersion,
			Capabilities:    snap.NegotiatedCapabilities,
			ServerInfo:      snap.ServerInfo,
		}
		return jsonrpc.NewResponse(req.Id, mustMarshal(result))
	}

	result, err := h.Initialize(ctx, sessionID, params)
	if err != nil {
		return d.errorResponse(req.Id, err)
	}

	_ = d.Registry.Update(sessionID, session.Patch{
		SetInitialized:         pointer.Ref(true),
		ProtocolVersion:        params.ProtocolVersion,
		ClientInfo:             pointer.Ref(params.ClientInfo),
		ServerInfo:             pointer.Ref(result.ServerInfo),
		NegotiatedCapabilities: result.Capabilities,
	})
	return jsonrpc.NewResponse(req.Id, mustMarshal(result))
}

// handleCallTool implements the tools/call row, including the
// non-content-shaped-result wrapping rule.
func (d *Dispatcher) handleCallTool(ctx context.Context, h handler.Handler, sessionID string, req *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.InvalidParams, "Invalid tools/call params: "+err.Error(), nil))
	}
	raw, err := h.CallTool(ctx, sessionID, params.Name, params.Arguments)
	if err != nil {
		return d.errorResponse(req.Id, err)
	}
	return jsonrpc.NewResponse(req.Id, mustMarshal(normalizeToolResult(raw)))
}

func normalizeToolResult(raw interface{}) mcp.CallToolResult {
	if result, ok := raw.(mcp.CallToolResult); ok {
		return result
	}
	if result, ok := raw.(*mcp.CallToolResult); ok && result != nil {
		return *result
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.CallToolResult{Content: []mcp.ContentItem{mcp.NewTextContent(fmt.Sprintf("%v", raw))}}
	}
	var probe struct {
		Content []mcp.ContentItem `json:"content"`
	}
	if json.Unmarshal(data, &probe) == nil && probe.Content != nil {
		return mcp.CallToolResult{Content: probe.Content}
	}
	return mcp.CallToolResult{Content: []mcp.ContentItem{mcp.NewTextContent(string(data))}}
}

// handleRegisterTool implements tools/register, a capability-gated local
// extension (SPEC_FULL.md, Open Question 2).
func (d *Dispatcher) handleRegisterTool(sessionID string, req *jsonrpc.Request) *jsonrpc.Response {
	if !d.Config.AllowToolRegistration {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.MethodNotFound, "Method not found: tools/register", nil))
	}
	var tool mcp.Tool
	if err := json.Unmarshal(req.Params, &tool); err != nil || tool.Name == "" {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.InvalidParams, "tools/register requires a tool with a non-empty name", nil))
	}
	if err := d.Registry.Update(sessionID, session.Patch{RegisterTool: &tool}); err != nil {
		return jsonrpc.NewErrorResponse(req.Id, jsonrpc.NewInnerError(jsonrpc.InternalError, "Session not found", nil))
	}
	return jsonrpc.NewResponse(req.Id, mustMarshal(map[string]interface{}{}))
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal result: %v", err))
	}
	return data
}

// EventName decides the SSE event name the engine's Sender should use for
// the response to method on a session bound to transport (§4.5's delivery
// matrix, "Implement this as a small tagged variant"). It returns "" for the
// unnamed data: chunk stdio framing always uses unconditionally; sse only
// ever needs the named variant for a successful initialize.
func EventName(transport session.Transport, method string, isError bool) string {
	if transport == session.TransportSSE && method == "initialize" && !isError {
		return "InitializeResult"
	}
	return ""
}
