// Package fault defines the single tagged error type used across the
// request pipeline. Every failure the gateway can surface is a Fault with a
// Kind drawn from a closed taxonomy; conversion to a JSON-RPC wire code is a
// pure mapping so transports never need to inspect error strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a Fault.
type Kind int

const (
	// KindParse indicates a malformed JSON-RPC envelope.
	KindParse Kind = iota
	// KindProtocol indicates a structurally valid envelope with a bad
	// method or params.
	KindProtocol
	// KindAuth indicates a missing, invalid, or expired session.
	KindAuth
	// KindRateLimit indicates the caller exceeded its request quota.
	KindRateLimit
	// KindValidation indicates a query was blocked or malformed.
	KindValidation
	// KindConnection indicates the remote graph database could not be
	// reached or authenticated to.
	KindConnection
	// KindQuery indicates the remote graph database reported an
	// execution error.
	KindQuery
	// KindInternal indicates an unexpected failure.
	KindInternal
)

// String returns the taxonomy name for the kind.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindValidation:
		return "validation"
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	default:
		return "internal"
	}
}

// WireCode maps a Kind to its JSON-RPC error code. Standard codes cover
// parse/protocol/internal; custom codes in -32001..-32005 denote connection,
// query, auth, rate-limit, and validation faults respectively.
func (k Kind) WireCode() int {
	switch k {
	case KindParse:
		return -32700
	case KindProtocol:
		return -32600
	case KindConnection:
		return -32001
	case KindQuery:
		return -32002
	case KindAuth:
		return -32003
	case KindRateLimit:
		return -32004
	case KindValidation:
		return -32005
	default:
		return -32603
	}
}

// Fault is a classified pipeline error. Data carries structured diagnostics
// (retry-after seconds, vendor error codes) that the transport may attach to
// the wire error object.
type Fault struct {
	Kind    Kind
	Message string
	Data    any
	cause   error
}

// New builds a Fault with the given kind and message.
func New(kind Kind, msg string) *Fault {
	return &Fault{Kind: kind, Message: msg}
}

// Newf builds a Fault with a formatted message.
func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Fault that records err as its cause. The cause is reachable
// through errors.Unwrap but is never serialized to the wire.
func Wrap(kind Kind, msg string, err error) *Fault {
	return &Fault{Kind: kind, Message: msg, cause: err}
}

// WithData returns the fault with structured diagnostic data attached.
func (f *Fault) WithData(data any) *Fault {
	f.Data = data
	return f
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.cause }

// KindOf extracts the Kind from err if it is (or wraps) a Fault. Unclassified
// errors report KindInternal.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// As returns err as a *Fault, classifying unknown errors as internal faults
// with a generic message so internal details never leak to the wire.
func As(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Kind: KindInternal, Message: "internal error", cause: err}
}
