package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"xdao.co/in3/rpcerr"
)

type recorder struct {
	calls []string
	reply func(call string) (string, error)
}

func (r *recorder) Execute(_ context.Context, call string) (string, error) {
	r.calls = append(r.calls, call)
	return r.reply(call)
}

func ok(result string) func(string) (string, error) {
	return func(string) (string, error) { return result, nil }
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{rpcerr.New(rpcerr.KindTransport, "x"), ErrTransport},
		{rpcerr.New(rpcerr.KindVerification, "x"), ErrVerification},
		{rpcerr.New(rpcerr.KindSigning, "x"), ErrSigning},
		{rpcerr.New(rpcerr.KindConfiguration, "x"), ErrConfiguration},
		{rpcerr.New(rpcerr.KindExhausted, "x"), ErrExhausted},
		{rpcerr.New(rpcerr.KindInternal, "x"), ErrInternal},
		{errors.New("plain"), ErrInternal},
		{NewError(ErrRateLimited, "slow down"), ErrRateLimited},
	}
	for _, c := range cases {
		if got := CodeFor(c.err); got != c.want {
			t.Fatalf("%v: got %d want %d", c.err, got, c.want)
		}
	}
}

func TestHandle_BuildsCall(t *testing.T) {
	r := &recorder{reply: ok(`"0x1"`)}
	resp := Handle(context.Background(), r, Request{
		JSONRPC: Version,
		ID:      json.RawMessage(`1`),
		Method:  "eth_getBalance",
		Params:  json.RawMessage(` ["0xabc", "latest"] `),
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	want := []string{`{"method":"eth_getBalance","params":["0xabc","latest"]}`}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if string(resp.ID) != `1` || string(resp.Result) != `"0x1"` {
		t.Fatalf("response: %+v", resp)
	}
}

func TestHandle_Validation(t *testing.T) {
	r := &recorder{reply: ok(`1`)}
	cases := []struct {
		req  Request
		want ErrorCode
	}{
		{Request{Method: ""}, ErrInvalidRequest},
		{Request{JSONRPC: "1.0", Method: "m"}, ErrInvalidRequest},
		{Request{Method: "m", Params: json.RawMessage(`{"a":1}`)}, ErrInvalidParams},
	}
	for _, c := range cases {
		resp := Handle(context.Background(), r, c.req)
		if resp.Error == nil || resp.Error.Code != c.want {
			t.Fatalf("%+v: got %+v", c.req, resp.Error)
		}
		if string(resp.ID) != "null" {
			t.Fatalf("missing id must be echoed as null, got %s", resp.ID)
		}
	}
	if len(r.calls) != 0 {
		t.Fatalf("invalid requests must not execute: %v", r.calls)
	}
}

func TestHandle_MapsKindToCode(t *testing.T) {
	r := &recorder{reply: func(string) (string, error) {
		return "", rpcerr.New(rpcerr.KindTransport, "all nodes down")
	}}
	resp := Handle(context.Background(), r, Request{ID: json.RawMessage(`"x"`), Method: "eth_blockNumber"})
	want := &CodedError{Code: ErrTransport, Message: "all nodes down"}
	if diff := cmp.Diff(want, resp.Error); diff != "" {
		t.Fatalf("error (-want +got):\n%s", diff)
	}
	if resp.Result != nil {
		t.Fatalf("error response carries a result: %s", resp.Result)
	}
}

func TestHandleBody_BatchInOrder(t *testing.T) {
	r := &recorder{reply: func(call string) (string, error) {
		var c Call
		_ = json.Unmarshal([]byte(call), &c)
		return `"` + c.Method + `"`, nil
	}}
	body := `[{"id":1,"method":"a"},{"id":2,"method":"b"},42]`
	got := HandleBody(context.Background(), r, []byte(body))

	var resps []Response
	if err := json.Unmarshal(got, &resps); err != nil {
		t.Fatalf("reply is not a batch: %s", got)
	}
	if len(resps) != 3 {
		t.Fatalf("got %d responses", len(resps))
	}
	if string(resps[0].Result) != `"a"` || string(resps[1].Result) != `"b"` {
		t.Fatalf("order: %s", got)
	}
	if resps[2].Error == nil || resps[2].Error.Code != ErrInvalidRequest {
		t.Fatalf("bad element: %+v", resps[2])
	}
}

func TestHandleBody_Errors(t *testing.T) {
	r := &recorder{reply: ok(`1`)}
	for body, want := range map[string]ErrorCode{
		`{`:  ErrParse,
		`[`:  ErrParse,
		`[]`: ErrInvalidRequest,
	} {
		var resp Response
		if err := json.Unmarshal(HandleBody(context.Background(), r, []byte(body)), &resp); err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		if resp.Error == nil || resp.Error.Code != want {
			t.Fatalf("%s: got %+v", body, resp.Error)
		}
	}
}
