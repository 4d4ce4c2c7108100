// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecuteCommand(t *testing.T) {
	s := newTestSession(t, "2.5")
	w1 := wallet(t, s, "wallet_1")

	tests := []struct {
		input string
		want  string
	}{
		{"::get_block_height", "Current block height: 1"},
		{"::get_epoch", "Current epoch: 2.5"},
		{"::mint_stx wallet_1 42", "→ " + w1.ID() + ": 42 µSTX"},
		{"::advance_chain_tip 3", "3 blocks simulated, new height: 4"},
		{"::set_epoch 3.0", "Epoch updated to: 3.0"},
		{"::advance_stacks_chain_tip 2", "2 blocks simulated, new height: 6"},
		{"::set_epoch 7.7", "Epoch updated to: 3.3"},
		{"(+ 1 2)", "3"},
		{"(stx-get-balance '" + w1.ID() + ")", "u100000000000042"},
		{"::get_contracts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := s.ExecuteCommand(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
		})
	}
}

func TestExecuteCommandErrors(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")

	_, err := s.ExecuteCommand("::advance_stacks_chain_tip 1")
	require.ErrorIs(err, ErrStacksBlockPre30)

	_, err = s.ExecuteCommand("::mint_stx wallet_1")
	require.ErrorIs(err, errCommandUsage)

	_, err = s.ExecuteCommand("::mint_stx nobody 1")
	require.ErrorIs(err, ErrUnknownAccount)

	_, err = s.ExecuteCommand("::frobnicate")
	require.Error(err)

	_, err = s.ExecuteCommand("(unwrap-panic none)")
	require.Error(err)
}

func TestAssetsMapCommand(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")

	out, err := s.ExecuteCommand("::get_assets_maps")
	require.NoError(err)
	require.Contains(out, "STX\n")
	require.Contains(out, "wallet_1 ("+wallet(t, s, "wallet_1").ID()+"): 100000000000000")

	help, err := s.ExecuteCommand("::help")
	require.NoError(err)
	require.Contains(help, "::advance_burn_chain_tip")
}
