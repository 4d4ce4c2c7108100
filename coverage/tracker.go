// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coverage counts line, function and branch hits of executed contract
// code and exports them as LCOV.
package coverage

import (
	"sort"
)

// DefaultTestName groups hits recorded before any test name is set.
const DefaultTestName = "simnet"

// Function is a function definition found in a contract.
type Function struct {
	Name string
	Line uint32
}

// Branch is a branching expression with Arms possible outcomes.
type Branch struct {
	ID   uint32
	Line uint32
	Arms uint32
}

type contractInfo struct {
	id        string
	path      string
	boot      bool
	functions []Function
	lines     []uint32
	branches  []Branch
}

type branchKey struct {
	id  uint32
	arm uint32
}

type counters struct {
	lines     map[uint32]uint64
	functions map[string]uint64
	branches  map[branchKey]uint64
}

func newCounters() *counters {
	return &counters{
		lines:     make(map[uint32]uint64),
		functions: make(map[string]uint64),
		branches:  make(map[branchKey]uint64),
	}
}

// Tracker records hits per test name. A disabled tracker ignores every call.
type Tracker struct {
	enabled   bool
	testName  string
	contracts map[string]*contractInfo
	tests     map[string]map[string]*counters
	order     []string
}

func NewTracker(enabled bool) *Tracker {
	return &Tracker{
		enabled:   enabled,
		testName:  DefaultTestName,
		contracts: make(map[string]*contractInfo),
		tests:     make(map[string]map[string]*counters),
	}
}

func (t *Tracker) Enabled() bool { return t.enabled }

// SetTestName attributes subsequent hits to name.
func (t *Tracker) SetTestName(name string) {
	if name == "" {
		name = DefaultTestName
	}
	t.testName = name
}

func (t *Tracker) TestName() string { return t.testName }

// RegisterContract declares the executable lines, functions and branches of a
// deployed contract. path is the file name reported in the SF record.
func (t *Tracker) RegisterContract(id, path string, boot bool, functions []Function, lines []uint32, branches []Branch) {
	if !t.enabled {
		return
	}
	ls := append([]uint32(nil), lines...)
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
	t.contracts[id] = &contractInfo{
		id:        id,
		path:      path,
		boot:      boot,
		functions: append([]Function(nil), functions...),
		lines:     dedup(ls),
		branches:  append([]Branch(nil), branches...),
	}
}

func dedup(ls []uint32) []uint32 {
	out := ls[:0]
	for i, l := range ls {
		if i > 0 && l == ls[i-1] {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (t *Tracker) counters(contract string) *counters {
	byContract, ok := t.tests[t.testName]
	if !ok {
		byContract = make(map[string]*counters)
		t.tests[t.testName] = byContract
		t.order = append(t.order, t.testName)
	}
	c, ok := byContract[contract]
	if !ok {
		c = newCounters()
		byContract[contract] = c
	}
	return c
}

func (t *Tracker) HitLine(contract string, line uint32) {
	if !t.enabled {
		return
	}
	t.counters(contract).lines[line]++
}

func (t *Tracker) HitFunction(contract, name string) {
	if !t.enabled {
		return
	}
	t.counters(contract).functions[name]++
}

func (t *Tracker) HitBranch(contract string, id, arm uint32) {
	if !t.enabled {
		return
	}
	t.counters(contract).branches[branchKey{id: id, arm: arm}]++
}

// FunctionHits sums the hits of a function over all test names.
func (t *Tracker) FunctionHits(contract, name string) uint64 {
	var n uint64
	for _, byContract := range t.tests {
		if c, ok := byContract[contract]; ok {
			n += c.functions[name]
		}
	}
	return n
}

// LineHits sums the hits of a line over all test names.
func (t *Tracker) LineHits(contract string, line uint32) uint64 {
	var n uint64
	for _, byContract := range t.tests {
		if c, ok := byContract[contract]; ok {
			n += c.lines[line]
		}
	}
	return n
}

// Reset drops all recorded hits but keeps registered contracts.
func (t *Tracker) Reset() {
	t.tests = make(map[string]map[string]*counters)
	t.order = nil
}
