// Package mcp defines the JSON payload shapes carried inside JSON-RPC
// request/response params and results for the Model Context Protocol,
// version 2024-11-05.
package mcp

// Implementation describes the name and version of an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities is an opaque, forward-compatible capability map. Both client
// and server capability sets are specified as open objects; the dispatcher
// never inspects individual keys, only stores and mirrors them.
type Capabilities map[string]interface{}

// InitializeParams is the params payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the result payload of a successful initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// ToolAnnotations carries non-binding hints about tool behavior; clients
// must not make tool-use decisions based on them alone.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// ToolInputSchema is a JSON Schema fragment describing a tool's arguments.
type ToolInputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// Tool is a single entry in the tools/list result and the unit stored under
// a session's custom_tools map once registered via tools/register.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema ToolInputSchema  `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ListToolsResult wraps the handler's tool slice for tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the params payload of tools/call.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ContentItem is one element of a CallToolResult's content array. Only the
// Type-tagged fields relevant to that type are populated.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// NewTextContent builds a ContentItem carrying plain text, the shape the
// dispatcher falls back to when a handler returns a non-content-shaped
// tools/call result.
func NewTextContent(text string) ContentItem {
	return ContentItem{Type: "text", Text: text}
}

// CallToolResult is the result payload of tools/call.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError *bool         `json:"isError,omitempty"`
}
