// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerCharges(t *testing.T) {
	require := require.New(t)
	tr := NewTracker(DefaultLimits)

	require.NoError(tr.Charge("+", 2))
	require.Equal(uint64(11*2+125), tr.Total().Runtime)

	require.NoError(tr.Charge("no-such-builtin", 9))
	require.Equal(uint64(11*2+125+100), tr.Total().Runtime)

	require.NoError(tr.OnRead(40))
	require.NoError(tr.OnWrite(8))
	require.NoError(tr.OnWrite(8))
	total := tr.Total()
	require.Equal(uint64(1), total.ReadCount)
	require.Equal(uint64(40), total.ReadLength)
	require.Equal(uint64(2), total.WriteCount)
	require.Equal(uint64(16), total.WriteLength)

	tr.Reset()
	require.Equal(ExecutionCost{}, tr.Total())
}

func TestTrackerLimits(t *testing.T) {
	require := require.New(t)
	limits := DefaultLimits
	limits.WriteCount = 1
	tr := NewTracker(limits)

	require.NoError(tr.OnWrite(1))
	err := tr.OnWrite(1)
	var lerr *LimitError
	require.True(errors.As(err, &lerr))
	require.Equal("write_count", lerr.Dimension)
	require.Equal(uint64(2), lerr.Used)
	require.Equal(uint64(1), lerr.Limit)
}

func TestReport(t *testing.T) {
	require := require.New(t)

	off := NewReport(false)
	off.Add(Entry{ContractID: "x", Method: "f"})
	require.Empty(off.Entries())
	s, err := off.JSON()
	require.NoError(err)
	require.Equal("[]", s)

	on := NewReport(true)
	on.Add(Entry{
		ContractID: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.counter",
		Method:     "increment",
		Args:       []string{"u1"},
		CostResult: Result{Total: ExecutionCost{Runtime: 10}, Limit: DefaultLimits},
	})
	require.Len(on.Entries(), 1)
	s, err = on.JSON()
	require.NoError(err)
	require.Contains(s, `"contract_id":"ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.counter"`)
	require.Contains(s, `"cost_result":{"total":{"write_length":0,"write_count":0,"read_length":0,"read_count":0,"runtime":10}`)

	on.Reset()
	require.Empty(on.Entries())
}
