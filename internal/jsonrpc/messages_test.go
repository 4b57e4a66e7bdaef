package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/graphgate/graphgate/internal/fault"
)

func TestDecodeValidRequest(t *testing.T) {
	req, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"cursor":""}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if req.Method != "tools/list" {
		t.Fatalf("expected method tools/list, got %q", req.Method)
	}
	if req.IsNotification() {
		t.Fatal("request with an id must not be a notification")
	}
	if got := req.ID.Value(); got != int64(1) {
		t.Fatalf("expected id 1, got %v (%T)", got, got)
	}
}

func TestDecodeStringID(t *testing.T) {
	req, err := Decode([]byte(`{"jsonrpc":"2.0","id":"abc-123","method":"ping"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := req.ID.Value(); got != "abc-123" {
		t.Fatalf("expected string id, got %v", got)
	}
}

func TestDecodeNotification(t *testing.T) {
	req, err := Decode([]byte(`{"jsonrpc":"2.0","method":"initialized"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !req.IsNotification() {
		t.Fatal("request without an id must be a notification")
	}
}

func TestDecodeNullIDIsNotification(t *testing.T) {
	req, err := Decode([]byte(`{"jsonrpc":"2.0","id":null,"method":"initialized"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !req.IsNotification() {
		t.Fatal("id null must behave as an absent id")
	}
}

func TestDecodeParseFault(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := fault.KindOf(err); kind != fault.KindParse {
		t.Fatalf("expected parse fault, got %v", kind)
	}
}

func TestDecodeProtocolFaults(t *testing.T) {
	cases := []string{
		`{"jsonrpc":"1.0","id":1,"method":"ping"}`,
		`{"id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":1}`,
		`{"jsonrpc":"2.0","id":true,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":{},"method":"ping"}`,
		`{"jsonrpc":"2.0","id":[1],"method":"ping"}`,
	}
	for _, body := range cases {
		_, err := Decode([]byte(body))
		if err == nil {
			t.Fatalf("expected error for %s", body)
		}
		if kind := fault.KindOf(err); kind != fault.KindProtocol {
			t.Fatalf("expected protocol fault for %s, got %v", body, kind)
		}
	}
}

func TestDecodeBooleanIDIsInvalidRequest(t *testing.T) {
	// A well-formed body with a non-string, non-number id is a structural
	// violation, not a parse failure.
	_, err := Decode([]byte(`{"jsonrpc":"2.0","id":true,"method":"ping"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := fault.KindOf(err); kind != fault.KindProtocol {
		t.Fatalf("expected protocol fault, got %v", kind)
	}
	resp := NewFaultResponse(nil, err)
	if resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected code %d, got %d", CodeInvalidRequest, resp.Error.Code)
	}
}

func TestResponseMarshalling(t *testing.T) {
	resp, err := NewResultResponse(NewRequestID(7), map[string]string{"ok": "yes"})
	if err != nil {
		t.Fatalf("NewResultResponse failed: %v", err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded struct {
		JSONRPC string         `json:"jsonrpc"`
		Result  map[string]any `json:"result"`
		ID      any            `json:"id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.JSONRPC != "2.0" {
		t.Fatalf("expected version 2.0, got %q", decoded.JSONRPC)
	}
	if decoded.Result["ok"] != "yes" {
		t.Fatalf("unexpected result: %v", decoded.Result)
	}
	if decoded.ID != float64(7) {
		t.Fatalf("expected id 7, got %v", decoded.ID)
	}
}

func TestFaultResponseCodes(t *testing.T) {
	cases := []struct {
		kind fault.Kind
		code int
	}{
		{fault.KindParse, -32700},
		{fault.KindProtocol, -32600},
		{fault.KindInternal, -32603},
		{fault.KindConnection, -32001},
		{fault.KindQuery, -32002},
		{fault.KindAuth, -32003},
		{fault.KindRateLimit, -32004},
		{fault.KindValidation, -32005},
	}
	for _, tc := range cases {
		resp := NewFaultResponse(nil, fault.New(tc.kind, "boom"))
		if resp.Error == nil {
			t.Fatalf("kind %v: expected error object", tc.kind)
		}
		if resp.Error.Code != tc.code {
			t.Fatalf("kind %v: expected code %d, got %d", tc.kind, tc.code, resp.Error.Code)
		}
	}
}

func TestFaultResponseHidesUnclassifiedErrors(t *testing.T) {
	resp := NewFaultResponse(nil, json.Unmarshal([]byte("{"), &struct{}{}))
	if resp.Error.Code != -32603 {
		t.Fatalf("expected internal code, got %d", resp.Error.Code)
	}
	if resp.Error.Message != "internal error" {
		t.Fatalf("raw error text must not leak, got %q", resp.Error.Message)
	}
}

func TestNullIDMarshalsAsNull(t *testing.T) {
	resp := NewErrorResponse(nil, CodeParse, "invalid JSON", nil)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if id, present := decoded["id"]; !present || id != nil {
		t.Fatalf("expected explicit id null, got %v (present=%v)", id, present)
	}
}
