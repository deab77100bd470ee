// Package engine defines the contract between the execution driver and a
// verification engine.
//
// An engine owns the semantics of a call: it builds the context tree for it,
// decides after every step what the tree still needs, and certifies the final
// answer. The driver only walks the tree, dispatches leaf requests to
// capabilities and writes their results back.
package engine

import (
	"fmt"

	"xdao.co/in3/ctxtree"
)

type Status int

const (
	// StatusWaiting means some node is waiting for a response.
	StatusWaiting Status = iota
	// StatusResolved means the root carries the final response.
	StatusResolved
	// StatusFailed means the call cannot succeed; Outcome.Err says why.
	StatusFailed
	// StatusIgnorable means stale data was detected and the attempt must be
	// restarted from a fresh tree.
	StatusIgnorable
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	case StatusIgnorable:
		return "ignorable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one Advance step.
type Outcome struct {
	Status Status
	Err    string
}

func Waiting() Outcome             { return Outcome{Status: StatusWaiting} }
func Resolved() Outcome            { return Outcome{Status: StatusResolved} }
func Failed(msg string) Outcome    { return Outcome{Status: StatusFailed, Err: msg} }
func Ignorable(msg string) Outcome { return Outcome{Status: StatusIgnorable, Err: msg} }

// Engine is the verification core consumed by the driver.
//
// NewTree must return a tree rooted at call that shares no memory with any
// other tree. Advance is called repeatedly on the same tree until it reports
// a terminal status; between calls the driver only writes results into the
// frontier node. Engines are used from concurrent calls and must guard any
// state shared across trees.
type Engine interface {
	NewTree(call []byte, host *Host) (*ctxtree.Tree, error)
	Advance(tree *ctxtree.Tree, host *Host) Outcome
}
