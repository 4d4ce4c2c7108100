// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cost meters the execution of transactions against block limits and
// collects per-call cost reports.
package cost

import (
	"fmt"
)

// ExecutionCost is the five-dimensional cost of a transaction.
type ExecutionCost struct {
	WriteLength uint64 `json:"write_length"`
	WriteCount  uint64 `json:"write_count"`
	ReadLength  uint64 `json:"read_length"`
	ReadCount   uint64 `json:"read_count"`
	Runtime     uint64 `json:"runtime"`
}

// DefaultLimits are the Stacks block limits.
var DefaultLimits = ExecutionCost{
	WriteLength: 15_000_000,
	WriteCount:  15_000,
	ReadLength:  100_000_000,
	ReadCount:   15_000,
	Runtime:     5_000_000_000,
}

// Add returns c + o.
func (c ExecutionCost) Add(o ExecutionCost) ExecutionCost {
	return ExecutionCost{
		WriteLength: c.WriteLength + o.WriteLength,
		WriteCount:  c.WriteCount + o.WriteCount,
		ReadLength:  c.ReadLength + o.ReadLength,
		ReadCount:   c.ReadCount + o.ReadCount,
		Runtime:     c.Runtime + o.Runtime,
	}
}

// exceeded names the first dimension of c above limit.
func (c ExecutionCost) exceeded(limit ExecutionCost) (string, uint64, uint64) {
	switch {
	case c.WriteLength > limit.WriteLength:
		return "write_length", c.WriteLength, limit.WriteLength
	case c.WriteCount > limit.WriteCount:
		return "write_count", c.WriteCount, limit.WriteCount
	case c.ReadLength > limit.ReadLength:
		return "read_length", c.ReadLength, limit.ReadLength
	case c.ReadCount > limit.ReadCount:
		return "read_count", c.ReadCount, limit.ReadCount
	case c.Runtime > limit.Runtime:
		return "runtime", c.Runtime, limit.Runtime
	}
	return "", 0, 0
}

// LimitError reports a transaction that ran out of budget.
type LimitError struct {
	Dimension string
	Used      uint64
	Limit     uint64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("cost limit exceeded: %s used %d of %d", e.Dimension, e.Used, e.Limit)
}

// Tracker accumulates the cost of the running transaction. It implements the
// ledger meter so storage accesses are charged as they happen.
type Tracker struct {
	limits ExecutionCost
	table  map[string]Linear
	total  ExecutionCost
}

// NewTracker returns a tracker with the given limits and the default runtime
// cost table.
func NewTracker(limits ExecutionCost) *Tracker {
	return &Tracker{limits: limits, table: defaultTable}
}

// Limits returns the configured limits.
func (t *Tracker) Limits() ExecutionCost { return t.limits }

// Total is the cost accumulated since the last Reset.
func (t *Tracker) Total() ExecutionCost { return t.total }

// Reset starts a new transaction.
func (t *Tracker) Reset() { t.total = ExecutionCost{} }

func (t *Tracker) check() error {
	if dim, used, limit := t.total.exceeded(t.limits); dim != "" {
		return &LimitError{Dimension: dim, Used: used, Limit: limit}
	}
	return nil
}

// Charge adds the runtime cost of running the builtin name on an input of
// size n.
func (t *Tracker) Charge(name string, n uint64) error {
	fn, ok := t.table[name]
	if !ok {
		fn = defaultCost
	}
	t.total.Runtime += fn.Eval(n)
	return t.check()
}

func (t *Tracker) OnRead(length int) error {
	t.total.ReadCount++
	t.total.ReadLength += uint64(length)
	return t.check()
}

func (t *Tracker) OnWrite(length int) error {
	t.total.WriteCount++
	t.total.WriteLength += uint64(length)
	return t.check()
}
