package model

import "encoding/json"

const Version = "2.0"

// Request is one JSON-RPC request object. ID is kept raw so it is echoed back
// byte for byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *CodedError     `json:"error,omitempty"`
}

// Call is the shape the client executes.
type Call struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}
