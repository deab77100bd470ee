package model

import (
	"encoding/json"
	"testing"
)

func TestSnapshot_Response_JSONShape(t *testing.T) {
	resp := Response{
		JSONRPC: Version,
		ID:      json.RawMessage(`7`),
		Result:  json.RawMessage(`"0x8a1c3f"`),
	}

	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"jsonrpc\": \"2.0\",\n" +
		"  \"id\": 7,\n" +
		"  \"result\": \"0x8a1c3f\"\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestSnapshot_ErrorResponse_JSONShape(t *testing.T) {
	resp := Response{
		JSONRPC: Version,
		ID:      json.RawMessage(`"abc"`),
		Error:   NewError(ErrSigning, "no signer configured"),
	}

	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"jsonrpc\": \"2.0\",\n" +
		"  \"id\": \"abc\",\n" +
		"  \"error\": {\n" +
		"    \"code\": -32003,\n" +
		"    \"message\": \"no signer configured\"\n" +
		"  }\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}
