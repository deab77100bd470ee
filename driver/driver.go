// Package driver runs the context-tree execution loop for one call.
//
// The driver repeatedly advances the engine, finds the single frontier request
// the tree is waiting on, satisfies it through the Transport or Signer
// capability and writes the outcome back into the tree. Stale data detected by
// the engine discards the whole tree and restarts from the original call.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"xdao.co/in3/ctxtree"
	"xdao.co/in3/engine"
	"xdao.co/in3/rpcerr"
	"xdao.co/in3/signer"
	"xdao.co/in3/storage"
	"xdao.co/in3/transport"
)

// Capabilities is the set of external services one call runs against.
type Capabilities struct {
	Transport transport.Transport
	// Signer takes precedence over RawKey.
	Signer  signer.Signer
	RawKey  *signer.PrivateKey
	Storage storage.Storage
}

func (c Capabilities) signer() signer.Signer {
	if c.Signer != nil {
		return c.Signer
	}
	if c.RawKey != nil {
		return c.RawKey
	}
	return nil
}

type Driver struct {
	engine      engine.Engine
	maxAttempts int
	log         *zap.Logger
	metrics     *Metrics
}

type Option func(*Driver)

// WithMaxAttempts bounds the number of trees built for one call. Zero means
// unbounded.
func WithMaxAttempts(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.maxAttempts = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

func New(e engine.Engine, opts ...Option) *Driver {
	d := &Driver{engine: e, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs call to completion and returns the raw JSON result.
//
// Returned errors are *rpcerr.Error values; KindTryAgain never escapes.
func (d *Driver) Execute(ctx context.Context, call []byte, caps Capabilities) (result string, err error) {
	start := time.Now()
	log := d.log.With(zap.String("call_id", uuid.NewString()), zap.String("method", methodOf(call)))
	host := engine.NewHost(caps.Storage, log)
	defer func() {
		d.metrics.done(start, err)
		if err != nil {
			log.Debug("call failed", zap.String("kind", string(rpcerr.KindOf(err))), zap.Error(err))
		}
	}()

	if d.engine == nil {
		return "", rpcerr.New(rpcerr.KindInternal, "driver: no verification engine")
	}

	for attempt := 1; ; attempt++ {
		if d.maxAttempts > 0 && attempt > d.maxAttempts {
			return "", rpcerr.Newf(rpcerr.KindExhausted, "giving up after %d attempts", d.maxAttempts)
		}
		if cerr := ctx.Err(); cerr != nil {
			return "", rpcerr.Wrap(rpcerr.KindTransport, "", cerr)
		}

		d.metrics.attempt()
		result, err = d.attempt(ctx, call, caps, host, log.With(zap.Int("attempt", attempt)))
		if rpcerr.IsKind(err, rpcerr.KindTryAgain) {
			d.metrics.retry()
			log.Info("stale data detected, restarting call", zap.Int("attempt", attempt), zap.String("reason", err.Error()))
			continue
		}
		return result, err
	}
}

// attempt drives one fresh tree until it resolves, fails, or must be retried.
func (d *Driver) attempt(ctx context.Context, call []byte, caps Capabilities, host *engine.Host, log *zap.Logger) (string, error) {
	tree, err := d.engine.NewTree(call, host)
	if err != nil {
		return "", asKind(rpcerr.KindVerification, err)
	}
	if tree == nil {
		return "", rpcerr.New(rpcerr.KindInternal, "driver: engine returned no tree")
	}

	for {
		out := d.engine.Advance(tree, host)
		switch out.Status {
		case engine.StatusResolved:
			return tree.Node(tree.Root()).Response, nil

		case engine.StatusFailed:
			return "", rpcerr.New(rpcerr.KindVerification, out.Err)

		case engine.StatusIgnorable:
			return "", d.invalidate(tree, out)

		case engine.StatusWaiting:
			id, ok := tree.FindFrontier()
			if !ok {
				return "", rpcerr.New(rpcerr.KindInternal, "driver: engine is waiting but no request is pending")
			}
			req, err := tree.Request(id)
			if err != nil {
				return "", rpcerr.Wrap(rpcerr.KindInternal, "", err)
			}
			log.Debug("dispatch",
				zap.Int("node", int(req.Node)),
				zap.Stringer("kind", req.Kind),
				zap.String("label", req.Label),
				zap.Strings("targets", req.Targets))
			d.metrics.dispatch(req.Kind)

			switch req.Kind {
			case ctxtree.KindSign:
				err = d.sign(ctx, tree, req, caps)
			case ctxtree.KindRPC:
				err = d.fetch(ctx, tree, req, caps, log)
			default:
				err = rpcerr.Newf(rpcerr.KindInternal, "driver: unknown request kind %s", req.Kind)
			}
			if err != nil {
				return "", err
			}

		default:
			return "", rpcerr.Newf(rpcerr.KindInternal, "driver: unknown engine status %s", out.Status)
		}
	}
}

// invalidate fails the deepest node whose required child turned out stale and
// reports the condition that discards the tree.
func (d *Driver) invalidate(tree *ctxtree.Tree, out engine.Outcome) error {
	parent, ok := tree.FindIgnorableParent()
	if !ok {
		return rpcerr.New(rpcerr.KindInternal, "driver: ignorable state without an ignorable request")
	}
	msg := out.Err
	if child := tree.Node(tree.Node(parent).Required); child != nil && child.Error != "" {
		msg = child.Error
	}
	if msg == "" {
		msg = "stale response"
	}
	if err := tree.Fail(parent, msg); err != nil {
		return rpcerr.Wrap(rpcerr.KindInternal, "", err)
	}
	return rpcerr.New(rpcerr.KindTryAgain, msg)
}

func (d *Driver) sign(ctx context.Context, tree *ctxtree.Tree, req ctxtree.Request, caps Capabilities) error {
	s := caps.signer()
	if s == nil {
		return rpcerr.New(rpcerr.KindSigning, "no signer set and no private key configured")
	}
	msg, err := signMessage(req.Payload)
	if err != nil {
		return asKind(rpcerr.KindSigning, err)
	}
	sig, err := s.Sign(ctx, msg)
	if err != nil {
		return asKind(rpcerr.KindSigning, err)
	}
	if len(sig) == 0 {
		return rpcerr.New(rpcerr.KindSigning, "signer returned an empty signature")
	}
	if err := tree.RecordResults(req.Node, []ctxtree.Result{ctxtree.Success(hexutil.Encode(sig))}); err != nil {
		return rpcerr.Wrap(rpcerr.KindInternal, "", err)
	}
	return nil
}

func (d *Driver) fetch(ctx context.Context, tree *ctxtree.Tree, req ctxtree.Request, caps Capabilities, log *zap.Logger) error {
	if caps.Transport == nil {
		return rpcerr.New(rpcerr.KindTransport, "no transport set")
	}
	responses := caps.Transport.Fetch(ctx, req.Payload, req.Targets)
	if len(responses) != len(req.Targets) {
		return rpcerr.Newf(rpcerr.KindTransport, "transport returned %d responses for %d targets", len(responses), len(req.Targets))
	}

	results := make([]ctxtree.Result, len(responses))
	failed := 0
	for i, r := range responses {
		if r.Failed() {
			results[i] = ctxtree.Failure(r.Err)
			failed++
			log.Debug("target failed", zap.String("target", req.Targets[i]), zap.String("error", r.Err))
			continue
		}
		results[i] = ctxtree.Success(r.Body)
	}
	d.metrics.targetFailures(failed)

	if err := tree.RecordResults(req.Node, results); err != nil {
		return rpcerr.Wrap(rpcerr.KindInternal, "", err)
	}
	if n := tree.Node(req.Node); n.AllFailed() {
		msg, _ := n.FirstFailure()
		return rpcerr.New(rpcerr.KindTransport, msg)
	}
	return nil
}

// asKind reports err as kind whatever kind err itself carries. Only invalidate
// produces KindTryAgain.
func asKind(kind rpcerr.Kind, err error) error {
	return &rpcerr.Error{Kind: kind, Message: err.Error(), Cause: err}
}

// signMessage extracts the 0x-hex message from params[0] of a sign request.
func signMessage(payload []byte) ([]byte, error) {
	var req struct {
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	if len(req.Params) == 0 {
		return nil, fmt.Errorf("sign request: missing message parameter")
	}
	var s string
	if err := json.Unmarshal(req.Params[0], &s); err != nil {
		return nil, fmt.Errorf("sign request: message must be a hex string")
	}
	msg, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	return msg, nil
}

func methodOf(call []byte) string {
	var c struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(call, &c)
	return c.Method
}
