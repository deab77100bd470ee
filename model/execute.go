package model

import (
	"bytes"
	"context"
	"encoding/json"
)

// Executor runs one call. *client.Client implements it.
type Executor interface {
	Execute(ctx context.Context, call string) (string, error)
}

var null = json.RawMessage("null")

// Handle executes req and builds its response.
func Handle(ctx context.Context, exec Executor, req Request) Response {
	resp := Response{JSONRPC: Version, ID: req.ID}
	if len(resp.ID) == 0 {
		resp.ID = null
	}
	if req.JSONRPC != "" && req.JSONRPC != Version {
		resp.Error = NewError(ErrInvalidRequest, "unsupported jsonrpc version "+req.JSONRPC)
		return resp
	}
	if req.Method == "" {
		resp.Error = NewError(ErrInvalidRequest, "missing method")
		return resp
	}

	params := bytes.TrimSpace(req.Params)
	if len(params) == 0 || bytes.Equal(params, null) {
		params = []byte("[]")
	}
	if params[0] != '[' {
		resp.Error = NewError(ErrInvalidParams, "params must be an array")
		return resp
	}
	call, err := json.Marshal(Call{Method: req.Method, Params: params})
	if err != nil {
		resp.Error = NewError(ErrInvalidParams, err.Error())
		return resp
	}

	out, err := exec.Execute(ctx, string(call))
	if err != nil {
		resp.Error = mapErr(err)
		return resp
	}
	if out == "" {
		resp.Result = null
	} else {
		resp.Result = json.RawMessage(out)
	}
	return resp
}

// HandleBody decodes a request or a batch of requests, executes them in order
// and returns the encoded reply.
func HandleBody(ctx context.Context, exec Executor, body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return encode(errorResponse(ErrParse, "parse error: "+err.Error()))
		}
		if len(raw) == 0 {
			return encode(errorResponse(ErrInvalidRequest, "empty batch"))
		}
		out := make([]Response, 0, len(raw))
		for _, r := range raw {
			var req Request
			if err := json.Unmarshal(r, &req); err != nil {
				out = append(out, errorResponse(ErrInvalidRequest, "invalid request: "+err.Error()))
				continue
			}
			out = append(out, Handle(ctx, exec, req))
		}
		return encode(out)
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return encode(errorResponse(ErrParse, "parse error: "+err.Error()))
	}
	return encode(Handle(ctx, exec, req))
}

// ErrorBody encodes a single error response with a null id.
func ErrorBody(code ErrorCode, message string) []byte {
	return encode(errorResponse(code, message))
}

func errorResponse(code ErrorCode, message string) Response {
	return Response{JSONRPC: Version, ID: null, Error: NewError(code, message)}
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(errorResponse(ErrInternal, err.Error()))
	}
	return b
}
