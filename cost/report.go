// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cost

import (
	"encoding/json"
)

// Result pairs the cost of a call with the limits it ran under.
type Result struct {
	Total ExecutionCost `json:"total"`
	Limit ExecutionCost `json:"limit"`
}

// Entry is the cost of one contract call.
type Entry struct {
	ContractID string   `json:"contract_id"`
	Method     string   `json:"method"`
	Args       []string `json:"args"`
	CostResult Result   `json:"cost_result"`
}

// Report collects call costs. A disabled report ignores every entry.
type Report struct {
	enabled bool
	entries []Entry
}

func NewReport(enabled bool) *Report {
	return &Report{enabled: enabled}
}

func (r *Report) Enabled() bool { return r.enabled }

func (r *Report) Add(e Entry) {
	if !r.enabled {
		return
	}
	r.entries = append(r.entries, e)
}

// Entries returns the collected entries in call order.
func (r *Report) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset drops the collected entries.
func (r *Report) Reset() { r.entries = nil }

// JSON renders the entries as a JSON array.
func (r *Report) JSON() (string, error) {
	entries := r.entries
	if entries == nil {
		entries = []Entry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
