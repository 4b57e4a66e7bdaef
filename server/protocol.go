// Package server implements the gateway's protocol router: it parses
// JSON-RPC envelopes from HTTP POST bodies, authenticates the caller,
// enforces rate limits, dispatches to method handlers, and assembles the
// outbound envelope. Protocol faults are JSON-RPC errors over transport
// status 200; domain-level tool failures are successful envelopes whose
// tool result carries isError.
package server

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// method is the closed set of supported JSON-RPC methods. Dispatch is an
// exhaustive switch; anything else falls to a single method-not-found path.
type method string

const (
	methodInitialize  method = "initialize"
	methodInitialized method = "initialized"
	methodToolsList   method = "tools/list"
	methodToolsCall   method = "tools/call"
	methodPing        method = "ping"
)

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies this server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the initialize request payload.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// Tool is one declared tool descriptor.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the tools/list response payload.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the tools/call request payload.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Content is one block of tool result content.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is a completed tool invocation. IsError marks a
// domain-level failure the caller should display inline; the envelope
// around it is still a success.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// textResult builds a single-text-block tool result.
func textResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// errorResult builds a domain-level failure result.
func errorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

// reflectInputSchema derives a tool's input schema from its typed argument
// struct.
func reflectInputSchema[A any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
	s := r.Reflect(new(A))
	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}
