// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"

	"github.com/ava-labs/simnet/clarity"
)

// RemoteSource supplies contracts and their storage from a live network.
// Heights are network heights; 0 asks for the state at the fork height.
type RemoteSource interface {
	// ForkHeight is the network height the local chain starts from, or 0
	// when it follows the network tip.
	ForkHeight() uint32
	FetchContract(ctx context.Context, id clarity.Principal) (*ContractRecord, error)
	FetchDataVar(ctx context.Context, id clarity.Principal, name string, height uint32) (clarity.Value, error)
	FetchMapEntry(ctx context.Context, id clarity.Principal, name string, key clarity.Value, height uint32) (clarity.Optional, error)
}

// remoteHeight maps the local read height onto the network. The local block
// the remote was installed at is the fork block: it and every later block
// read the fork state, earlier blocks step back from it.
func (s *Store) remoteHeight() uint32 {
	fork := s.remote.ForkHeight()
	if s.readHeight == Latest || s.readHeight >= s.remoteBase || fork == 0 {
		return 0
	}
	back := s.remoteBase - s.readHeight
	if back >= fork {
		return 1
	}
	return fork - back
}
