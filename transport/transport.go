// Package transport defines the network capability the driver fans RPC
// requests out through.
package transport

import "context"

// Response is the outcome for one target.
//
// Exactly one of Body or Err is meaningful: Err non-empty marks a failure and
// carries the message that will surface to the caller unchanged.
type Response struct {
	Body string
	Err  string
}

// OK returns a successful Response.
func OK(body string) Response { return Response{Body: body} }

// Fail returns a failed Response.
func Fail(msg string) Response {
	if msg == "" {
		msg = "transport: unknown error"
	}
	return Response{Err: msg}
}

// Failed reports whether r is a failure.
func (r Response) Failed() bool { return r.Err != "" }

// Transport sends one payload to every target.
//
// Contract:
//   - the returned slice has len(targets) entries, index-aligned with targets
//   - Fetch returns only once every target has produced an outcome
//   - per-target failures are reported in the slot, not as a Go error
type Transport interface {
	Fetch(ctx context.Context, payload []byte, targets []string) []Response
}

// Func adapts an ordinary function to Transport.
type Func func(ctx context.Context, payload []byte, targets []string) []Response

func (f Func) Fetch(ctx context.Context, payload []byte, targets []string) []Response {
	return f(ctx, payload, targets)
}
