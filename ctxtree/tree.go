// Package ctxtree implements the context tree: the dependency chain a
// verification engine builds for one call and the driver walks to find the
// next request to satisfy.
//
// Nodes live in an arena owned by the Tree and are addressed by NodeID. Each
// node has at most one Required child, so the structure is a chain rooted at
// the node created for the user call. Payloads and targets are copied on the
// way in; two trees never share memory.
package ctxtree

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrUnknownNode        = errors.New("ctxtree: unknown node")
	ErrResultCount        = errors.New("ctxtree: result count does not match result slots")
	ErrConflictingResults = errors.New("ctxtree: node already holds different results")
	ErrAlreadyRequired    = errors.New("ctxtree: node already requires an unresolved child")
)

type Kind int

const (
	KindRPC Kind = iota
	KindSign
)

func (k Kind) String() string {
	switch k {
	case KindRPC:
		return "rpc"
	case KindSign:
		return "sign"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type State int

const (
	StateNew State = iota
	StateIgnorable
	StateWaiting
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateIgnorable:
		return "Ignorable"
	case StateWaiting:
		return "WaitingForResponse"
	case StateResolved:
		return "Resolved"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further work will be done for a node in s.
func (s State) Terminal() bool { return s == StateResolved || s == StateFailed }

// NodeID addresses a node inside one Tree.
type NodeID int

// NoNode marks an absent Required link.
const NoNode NodeID = -1

// Result is the outcome recorded for one target of a node.
type Result struct {
	Value  string
	Err    string
	Failed bool
}

// Success returns a successful Result carrying value.
func Success(value string) Result { return Result{Value: value} }

// Failure returns a failed Result carrying msg.
func Failure(msg string) Result { return Result{Err: msg, Failed: true} }

// Node is one request awaiting resolution.
type Node struct {
	ID       NodeID
	Kind     Kind
	State    State
	Required NodeID

	// Label names what the node asks for (typically the RPC method).
	Label   string
	Payload []byte
	Targets []string

	// Recorded is set once results have been written; it stands for the
	// presence of a raw response.
	Recorded bool
	Results  []Result

	// Response is the final payload the engine settled on.
	Response string
	// Error is the failure message for StateFailed nodes.
	Error string
}

// Request is the leaf request the driver dispatches for a frontier node.
type Request struct {
	Node    NodeID
	Kind    Kind
	Label   string
	Payload []byte
	Targets []string
}

// Tree is the arena holding every node created for one call.
type Tree struct {
	nodes []Node
}

// New creates a tree whose root is an RPC node carrying call as its payload.
func New(call []byte) *Tree {
	t := &Tree{}
	t.add(KindRPC, "", call, nil)
	return t
}

func (t *Tree) add(kind Kind, label string, payload []byte, targets []string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:       id,
		Kind:     kind,
		State:    StateNew,
		Required: NoNode,
		Label:    label,
		Payload:  bytes.Clone(payload),
		Targets:  append([]string(nil), targets...),
		Results:  make([]Result, slotCount(kind, len(targets))),
	})
	return id
}

func slotCount(kind Kind, targets int) int {
	if kind == KindSign {
		return 1
	}
	return targets
}

// Root returns the root node id.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes ever created in t.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node for id, or nil if id is unknown.
func (t *Tree) Node(id NodeID) *Node {
	if t == nil || id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

func (t *Tree) mustNode(id NodeID) (*Node, error) {
	n := t.Node(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n, nil
}

// Require creates a child of parent and links it as parent's Required node.
//
// A parent may replace a child that already reached a terminal state; an
// active child cannot be replaced.
func (t *Tree) Require(parent NodeID, kind Kind, label string, payload []byte, targets []string) (NodeID, error) {
	p, err := t.mustNode(parent)
	if err != nil {
		return NoNode, err
	}
	if cur := t.Node(p.Required); cur != nil && !cur.State.Terminal() {
		return NoNode, fmt.Errorf("%w: node %d requires %d", ErrAlreadyRequired, parent, cur.ID)
	}
	id := t.add(kind, label, payload, targets)
	// add may have grown the arena; re-read the parent.
	t.nodes[parent].Required = id
	return id, nil
}

// Await sets a node's outgoing request and moves it to StateWaiting with
// fresh, unrecorded result slots.
func (t *Tree) Await(id NodeID, payload []byte, targets []string) error {
	n, err := t.mustNode(id)
	if err != nil {
		return err
	}
	n.Payload = bytes.Clone(payload)
	n.Targets = append([]string(nil), targets...)
	n.Results = make([]Result, slotCount(n.Kind, len(targets)))
	n.Recorded = false
	n.State = StateWaiting
	return nil
}

// Resolve marks a node resolved with its final response.
func (t *Tree) Resolve(id NodeID, response string) error {
	n, err := t.mustNode(id)
	if err != nil {
		return err
	}
	n.Response = response
	n.State = StateResolved
	return nil
}

// Fail marks a node failed.
func (t *Tree) Fail(id NodeID, msg string) error {
	n, err := t.mustNode(id)
	if err != nil {
		return err
	}
	n.Error = msg
	n.State = StateFailed
	return nil
}

// MarkIgnorable flags a node whose data turned out to be stale.
func (t *Tree) MarkIgnorable(id NodeID, msg string) error {
	n, err := t.mustNode(id)
	if err != nil {
		return err
	}
	n.Error = msg
	n.State = StateIgnorable
	return nil
}

// Chain returns node ids from the root along Required links.
func (t *Tree) Chain() []NodeID {
	if t == nil || len(t.nodes) == 0 {
		return nil
	}
	var out []NodeID
	seen := make(map[NodeID]bool, len(t.nodes))
	for cur := t.Root(); cur != NoNode; cur = t.nodes[cur].Required {
		if seen[cur] || t.Node(cur) == nil {
			break
		}
		seen[cur] = true
		out = append(out, cur)
	}
	return out
}

// FindDeepest walks the Required chain from the root and returns the deepest
// node matching pred.
func (t *Tree) FindDeepest(pred func(*Node) bool) (NodeID, bool) {
	found := NoNode
	for _, id := range t.Chain() {
		if pred(&t.nodes[id]) {
			found = id
		}
	}
	return found, found != NoNode
}

// FindFrontier returns the deepest node waiting for a response that has none
// recorded yet.
func (t *Tree) FindFrontier() (NodeID, bool) {
	return t.FindDeepest(func(n *Node) bool {
		return n.State == StateWaiting && !n.Recorded
	})
}

// FindIgnorableParent returns the deepest node whose immediate Required child
// is Ignorable.
func (t *Tree) FindIgnorableParent() (NodeID, bool) {
	return t.FindDeepest(func(n *Node) bool {
		child := t.Node(n.Required)
		return child != nil && child.State == StateIgnorable
	})
}

// Request returns the leaf request for id. The returned slices are copies.
func (t *Tree) Request(id NodeID) (Request, error) {
	n, err := t.mustNode(id)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Node:    n.ID,
		Kind:    n.Kind,
		Label:   n.Label,
		Payload: bytes.Clone(n.Payload),
		Targets: append([]string(nil), n.Targets...),
	}, nil
}

// RecordResults writes outcomes into a node's result slots by index.
//
// Recording the same outcomes twice leaves the node unchanged. Recording a
// different set onto an already recorded node is rejected.
func (t *Tree) RecordResults(id NodeID, results []Result) error {
	n, err := t.mustNode(id)
	if err != nil {
		return err
	}
	if len(results) != len(n.Results) {
		return fmt.Errorf("%w: node %d has %d slots, got %d", ErrResultCount, id, len(n.Results), len(results))
	}
	if n.Recorded {
		for i := range results {
			if results[i] != n.Results[i] {
				return fmt.Errorf("%w: node %d slot %d", ErrConflictingResults, id, i)
			}
		}
		return nil
	}
	copy(n.Results, results)
	n.Recorded = true
	return nil
}

// AllFailed reports whether every result slot of a recorded node failed.
func (n *Node) AllFailed() bool {
	if !n.Recorded || len(n.Results) == 0 {
		return false
	}
	for _, r := range n.Results {
		if !r.Failed {
			return false
		}
	}
	return true
}

// FirstFailure returns the first failed result's message.
func (n *Node) FirstFailure() (string, bool) {
	for _, r := range n.Results {
		if r.Failed {
			return r.Err, true
		}
	}
	return "", false
}
