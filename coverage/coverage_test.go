// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coverage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const counterID = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.counter"

func register(t *Tracker) {
	t.RegisterContract(counterID, "contracts/counter.clar", false,
		[]Function{{Name: "increment", Line: 3}, {Name: "helper", Line: 8}},
		[]uint32{4, 9, 4, 5},
		[]Branch{{ID: 1, Line: 5, Arms: 2}},
	)
	t.RegisterContract("ST000000000000000000002AMW42H.pox-4", "pox-4.clar", true,
		[]Function{{Name: "stack-stx", Line: 10}}, []uint32{11}, nil)
}

func TestDisabledTracker(t *testing.T) {
	require := require.New(t)
	tr := NewTracker(false)
	register(tr)
	tr.HitFunction(counterID, "increment")
	tr.HitLine(counterID, 4)
	require.Zero(tr.FunctionHits(counterID, "increment"))
	require.Empty(tr.LCOV(true, ""))
}

func TestFunctionHits(t *testing.T) {
	require := require.New(t)
	tr := NewTracker(true)
	register(tr)

	// increment calls helper twice, helper is also called once directly
	for i := 0; i < 2; i++ {
		tr.HitFunction(counterID, "increment")
		tr.HitLine(counterID, 4)
		tr.HitFunction(counterID, "helper")
	}
	tr.HitFunction(counterID, "helper")
	tr.HitLine(counterID, 9)
	tr.HitLine(counterID, 5)
	tr.HitBranch(counterID, 1, 0)

	require.Equal(uint64(2), tr.FunctionHits(counterID, "increment"))
	require.Equal(uint64(3), tr.FunctionHits(counterID, "helper"))
	require.Equal(uint64(2), tr.LineHits(counterID, 4))

	out := tr.LCOV(false, "")
	require.True(strings.HasPrefix(out, "TN:simnet\nSF:contracts/counter.clar\n"))
	require.Contains(out, "FN:3,increment\n")
	require.Contains(out, "FNDA:2,increment\n")
	require.Contains(out, "FNDA:3,helper\n")
	require.Contains(out, "FNF:2\nFNH:2\n")
	require.Contains(out, "BRDA:5,1,0,1\nBRDA:5,1,1,0\nBRF:2\nBRH:1\n")
	require.Contains(out, "DA:4,2\nDA:5,1\nDA:9,1\nLF:3\nLH:3\n")
	require.True(strings.HasSuffix(out, "end_of_record\n"))
	require.NotContains(out, "pox-4")

	withBoot := tr.LCOV(true, "/boot")
	require.Contains(withBoot, "SF:/boot/pox-4.clar\n")
	require.Contains(withBoot, "FNDA:0,stack-stx\n")
}

func TestTestNames(t *testing.T) {
	require := require.New(t)
	tr := NewTracker(true)
	register(tr)

	tr.SetTestName("first")
	tr.HitFunction(counterID, "increment")
	tr.SetTestName("second")
	tr.HitFunction(counterID, "increment")
	tr.HitFunction(counterID, "increment")

	out := tr.LCOV(false, "")
	first := strings.Index(out, "TN:first\n")
	second := strings.Index(out, "TN:second\n")
	require.GreaterOrEqual(first, 0)
	require.Greater(second, first)
	require.Contains(out[first:second], "FNDA:1,increment")
	require.Contains(out[second:], "FNDA:2,increment")
	require.Equal(uint64(3), tr.FunctionHits(counterID, "increment"))

	tr.Reset()
	require.Zero(tr.FunctionHits(counterID, "increment"))
	require.Empty(tr.LCOV(false, ""))
}

func TestRegisteredContractsWithoutHits(t *testing.T) {
	require := require.New(t)
	tr := NewTracker(true)
	register(tr)

	out := tr.LCOV(false, "")
	require.True(strings.HasPrefix(out, "TN:simnet\nSF:contracts/counter.clar\n"))
	require.Contains(out, "FNDA:0,increment\n")
	require.Contains(out, "FNH:0\n")
	require.Contains(out, "LF:3\nLH:0\n")

	tr.HitFunction(counterID, "increment")
	tr.Reset()
	require.Contains(tr.LCOV(false, ""), "FNDA:0,increment\n")
}
