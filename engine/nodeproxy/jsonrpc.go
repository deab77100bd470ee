package nodeproxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Call is the user-facing request shape.
type Call struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func parseCall(b []byte) (Call, error) {
	var c struct {
		Method *string          `json:"method"`
		Params *json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Call{}, fmt.Errorf("invalid request: %w", err)
	}
	if c.Method == nil || *c.Method == "" {
		return Call{}, errors.New("invalid request: missing method")
	}
	out := Call{Method: *c.Method, Params: []json.RawMessage{}}
	if c.Params != nil && !bytes.Equal(bytes.TrimSpace(*c.Params), []byte("null")) {
		if err := json.Unmarshal(*c.Params, &out.Params); err != nil {
			return Call{}, errors.New("invalid request: params must be an array")
		}
	}
	return out, nil
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func (r rpcRequest) encode() []byte {
	if r.Params == nil {
		r.Params = []json.RawMessage{}
	}
	b, _ := json.Marshal(r)
	return b
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// in3Meta is the in3 section nodes attach to responses.
type in3Meta struct {
	LastNodeList    uint64 `json:"lastNodeList"`
	LastValidatorCh uint64 `json:"lastValidatorChange"`
	CurrentBlock    uint64 `json:"currentBlock"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	In3     *in3Meta        `json:"in3"`
}

var errMalformedResponse = errors.New("malformed response")

// parseResponse decodes body and checks it answers request id.
func parseResponse(body string, id uint64) (rpcResponse, error) {
	var r rpcResponse
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return rpcResponse{}, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	var got uint64
	if err := json.Unmarshal(r.ID, &got); err != nil || got != id {
		return rpcResponse{}, fmt.Errorf("%w: id %s does not match request %d", errMalformedResponse, string(r.ID), id)
	}
	if r.Error == nil && len(r.Result) == 0 {
		return rpcResponse{}, fmt.Errorf("%w: neither result nor error", errMalformedResponse)
	}
	return r, nil
}
