// Package jsonrpc implements the JSON-RPC 2.0 envelope layer for the
// gateway's tool-call endpoint: request decoding and validation, request IDs
// that may be strings, numbers, or null, and response construction.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/graphgate/graphgate/internal/fault"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParse          = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Request represents a JSON-RPC request (with an ID) or notification
// (without one).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no ID and therefore
// must not receive an application-level response body.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Validate enforces JSON-RPC 2.0 structure: the version literal, a
// non-empty method, and an ID that is a string, a number, or absent. It
// returns a protocol fault suitable for direct conversion to a wire error.
func (r *Request) Validate() error {
	if r.JSONRPCVersion != ProtocolVersion {
		return fault.Newf(fault.KindProtocol, "invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, r.JSONRPCVersion)
	}
	if r.Method == "" {
		return fault.New(fault.KindProtocol, "missing method")
	}
	if r.ID != nil && !r.ID.isValid() {
		return fault.New(fault.KindProtocol, "request id must be a string or number")
	}
	return nil
}

// Decode parses a raw body into a Request. A JSON syntax failure is a parse
// fault; structural violations are protocol faults.
func Decode(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fault.Wrap(fault.KindParse, "invalid JSON", err)
	}
	// "id": null is treated the same as an absent id.
	if req.ID != nil && req.ID.Value() == nil {
		req.ID = nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code int, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// NewFaultResponse converts a classified pipeline error into its wire form.
// The fault's structured data rides along; its wrapped cause does not.
func NewFaultResponse(id *RequestID, err error) *Response {
	f := fault.As(err)
	return NewErrorResponse(id, f.Kind.WireCode(), f.Message, f.Data)
}
