// Package nodeproxy is a non-verifying engine: it forwards calls to nodes of
// the configured chain and returns the first well-formed answer.
//
// It keeps per-chain node lists (refreshed from boot nodes and persisted
// through the host), blacklists nodes that misbehave and reports stale node
// lists so the driver restarts the call. It makes no trust claims about the
// data it returns.
package nodeproxy

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"xdao.co/in3/config"
	"xdao.co/in3/ctxtree"
	"xdao.co/in3/engine"
)

const (
	methodNodeList   = "in3_nodeList"
	methodCacheClear = "in3_cacheClear"
	// labelNodeList marks the node-list refresh child; user calls are
	// labelled with their method.
	labelNodeList = "nodelist-update"

	DefaultBlacklistTTL = time.Hour
)

type Engine struct {
	blacklistTTL time.Duration
	now          func() time.Time
	ids          atomic.Uint64

	mu       sync.Mutex
	settings config.Settings
	chains   map[uint64]*chainState
}

var _ engine.Engine = (*Engine)(nil)

type Option func(*Engine)

func WithBlacklistTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.blacklistTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(settings config.Settings, opts ...Option) *Engine {
	e := &Engine{
		blacklistTTL: DefaultBlacklistTTL,
		now:          time.Now,
		settings:     settings.Clone(),
		chains:       map[uint64]*chainState{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetSettings replaces the configuration. Runtime node-list state is dropped
// and rebuilt (and re-restored from storage) on next use.
func (e *Engine) SetSettings(s config.Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s.Clone()
	e.chains = map[uint64]*chainState{}
}

// StorageChanged makes every chain re-read its persisted node list on next
// use. A stored list replaces the runtime one only if it is at least as recent.
func (e *Engine) StorageChanged() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.chains {
		st.restored = false
	}
}

// Settings returns a copy of the active configuration.
func (e *Engine) Settings() config.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Clone()
}

// Nodes returns the current node urls of chain.
func (e *Engine) Nodes(chainID uint64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.chains[chainID]
	if !ok {
		c, ok := e.settings.Chains[chainID]
		if !ok {
			return nil
		}
		st = newChainState(c)
	}
	out := make([]string, 0, len(st.nodes))
	for _, n := range st.nodes {
		out = append(out, n.URL)
	}
	return out
}

func (e *Engine) NewTree(call []byte, host *engine.Host) (*ctxtree.Tree, error) {
	c, err := parseCall(call)
	if err != nil {
		return nil, err
	}
	tree := ctxtree.New(call)
	tree.Node(tree.Root()).Label = c.Method
	return tree, nil
}

func (e *Engine) Advance(tree *ctxtree.Tree, host *engine.Host) engine.Outcome {
	root := tree.Node(tree.Root())
	switch root.State {
	case ctxtree.StateResolved:
		return engine.Resolved()
	case ctxtree.StateFailed:
		return engine.Failed(root.Error)
	}

	call, err := parseCall(root.Payload)
	if err != nil {
		return e.fail(tree, err.Error())
	}

	switch call.Method {
	case "eth_sign", "in3_sign":
		return e.advanceSign(tree, call)
	case methodCacheClear:
		return e.clearCache(tree, host)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.chainLocked(host)
	if err != nil {
		return e.fail(tree, err.Error())
	}
	child := tree.Node(root.Required)

	if child != nil && child.Label == labelNodeList && !child.State.Terminal() {
		if !child.Recorded {
			return engine.Waiting()
		}
		if out, done := e.finishNodeList(tree, child, st, host); done {
			return out
		}
		child = tree.Node(root.Required)
	}

	if child == nil || child.Label == labelNodeList {
		if e.settings.AutoUpdateList && st.needsUpdate && len(st.nodes) > 0 {
			if child == nil || child.State != ctxtree.StateResolved {
				return e.requireNodeList(tree, st)
			}
		}
		return e.requireCall(tree, call, st)
	}

	if !child.Recorded {
		return engine.Waiting()
	}
	return e.finishCall(tree, child, st, host)
}

// chainLocked returns the state of the active chain, creating and restoring it
// on first use.
func (e *Engine) chainLocked(host *engine.Host) (*chainState, error) {
	id := e.settings.ChainID
	if st, ok := e.chains[id]; ok {
		st.restore(host)
		return st, nil
	}
	c, ok := e.settings.Chains[id]
	if !ok {
		return nil, fmt.Errorf("chain %s is not configured", config.ChainKey(id))
	}
	st := newChainState(c)
	st.restore(host)
	e.chains[id] = st
	return st, nil
}

// clearCache empties the storage and drops runtime node lists, so the next
// call starts again from the configured nodes.
func (e *Engine) clearCache(tree *ctxtree.Tree, host *engine.Host) engine.Outcome {
	e.mu.Lock()
	e.chains = map[uint64]*chainState{}
	e.mu.Unlock()
	host.CacheClear()
	if err := tree.Resolve(tree.Root(), "true"); err != nil {
		return e.fail(tree, err.Error())
	}
	return engine.Resolved()
}

func (e *Engine) fail(tree *ctxtree.Tree, msg string) engine.Outcome {
	_ = tree.Fail(tree.Root(), msg)
	return engine.Failed(msg)
}

func (e *Engine) nextID() uint64 { return e.ids.Add(1) }

func (e *Engine) requireNodeList(tree *ctxtree.Tree, st *chainState) engine.Outcome {
	targets := st.pick(e.settings.RequestCount, e.now())
	if len(targets) == 0 {
		return e.fail(tree, "no nodes available to update the node list")
	}
	limit, _ := json.Marshal(e.settings.NodeLimit)
	payload := rpcRequest{JSONRPC: "2.0", ID: e.nextID(), Method: methodNodeList, Params: []json.RawMessage{limit}}.encode()
	return e.await(tree, labelNodeList, payload, targets)
}

func (e *Engine) requireCall(tree *ctxtree.Tree, call Call, st *chainState) engine.Outcome {
	targets := st.pick(e.settings.RequestCount, e.now())
	if len(targets) == 0 {
		return e.fail(tree, fmt.Sprintf("no nodes available for chain %s", config.ChainKey(st.id)))
	}
	payload := rpcRequest{JSONRPC: "2.0", ID: e.nextID(), Method: call.Method, Params: call.Params}.encode()
	return e.await(tree, call.Method, payload, targets)
}

func (e *Engine) await(tree *ctxtree.Tree, label string, payload []byte, targets []string) engine.Outcome {
	id, err := tree.Require(tree.Root(), ctxtree.KindRPC, label, payload, targets)
	if err != nil {
		return e.fail(tree, err.Error())
	}
	if err := tree.Await(id, payload, targets); err != nil {
		return e.fail(tree, err.Error())
	}
	return engine.Waiting()
}

func requestID(n *ctxtree.Node) uint64 {
	var r rpcRequest
	_ = json.Unmarshal(n.Payload, &r)
	return r.ID
}

// finishNodeList consumes an in3_nodeList response. done reports whether the
// outcome is final for this Advance; otherwise the call proceeds.
func (e *Engine) finishNodeList(tree *ctxtree.Tree, child *ctxtree.Node, st *chainState, host *engine.Host) (engine.Outcome, bool) {
	log := host.Logger()
	id := requestID(child)
	now := e.now()

	var problems []string
	for i, r := range child.Results {
		target := child.Targets[i]
		if r.Failed {
			problems = append(problems, r.Err)
			continue
		}
		resp, err := parseResponse(r.Value, id)
		if err != nil || resp.Error != nil {
			st.block(target, now.Add(e.blacklistTTL))
			problems = append(problems, fmt.Sprintf("%s: invalid node list response", target))
			continue
		}
		var list nodeListResult
		if err := json.Unmarshal(resp.Result, &list); err != nil || len(list.Nodes) == 0 {
			st.block(target, now.Add(e.blacklistTTL))
			problems = append(problems, fmt.Sprintf("%s: empty or unreadable node list", target))
			continue
		}

		if list.LastBlockNumber < st.lastBlock {
			for _, t := range child.Targets {
				st.block(t, now.Add(e.blacklistTTL))
			}
			msg := fmt.Sprintf("node list from %s is stale: lastBlockNumber %d is older than %d", target, list.LastBlockNumber, st.lastBlock)
			log.Info("stale node list", zap.String("target", target), zap.Uint64("got", list.LastBlockNumber), zap.Uint64("known", st.lastBlock))
			_ = tree.MarkIgnorable(child.ID, msg)
			return engine.Ignorable(msg), true
		}

		nodes := make([]config.Node, 0, len(list.Nodes))
		for _, n := range list.Nodes {
			if strings.TrimSpace(n.URL) != "" {
				nodes = append(nodes, n.node())
			}
		}
		st.nodes = nodes
		st.lastBlock = list.LastBlockNumber
		st.needsUpdate = false
		st.persist(host)
		log.Debug("node list updated", zap.Int("nodes", len(nodes)), zap.Uint64("last_block", st.lastBlock))
		_ = tree.Resolve(child.ID, r.Value)
		return engine.Outcome{}, false
	}

	msg := "failed to update the node list"
	if len(problems) > 0 {
		msg += ": " + problems[0]
	}
	_ = tree.Fail(child.ID, msg)
	return e.fail(tree, msg), true
}

func (e *Engine) finishCall(tree *ctxtree.Tree, child *ctxtree.Node, st *chainState, host *engine.Host) engine.Outcome {
	id := requestID(child)
	now := e.now()

	var problems []string
	for i, r := range child.Results {
		target := child.Targets[i]
		if r.Failed {
			problems = append(problems, r.Err)
			continue
		}
		resp, err := parseResponse(r.Value, id)
		if err != nil {
			st.block(target, now.Add(e.blacklistTTL))
			problems = append(problems, fmt.Sprintf("%s: %v", target, err))
			host.Logger().Debug("blacklisting node", zap.String("target", target), zap.Error(err))
			continue
		}
		if resp.In3 != nil && resp.In3.LastNodeList > st.lastBlock && !st.needsUpdate {
			st.needsUpdate = true
			st.persist(host)
		}
		if resp.Error != nil {
			msg := resp.Error.Message
			if msg == "" {
				msg = fmt.Sprintf("rpc error %d", resp.Error.Code)
			}
			_ = tree.Fail(child.ID, msg)
			return e.fail(tree, msg)
		}
		_ = tree.Resolve(child.ID, string(resp.Result))
		_ = tree.Resolve(tree.Root(), string(resp.Result))
		return engine.Resolved()
	}

	msg := "no valid response from any node"
	if len(problems) > 0 {
		msg += ": " + problems[0]
	}
	_ = tree.Fail(child.ID, msg)
	return e.fail(tree, msg)
}
