// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity"
)

var (
	alice    = clarity.Principal{Version: clarity.VersionTestnetSingleSig, Hash: [20]byte{1}}
	bob      = clarity.Principal{Version: clarity.VersionTestnetSingleSig, Hash: [20]byte{2}}
	counter  = alice.Contract("counter")
	errLimit = errors.New("limit")
)

func TestVersionedReads(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)

	s.SetWriteHeight(1)
	require.NoError(s.SetDataVar(counter, "n", clarity.NewUInt(1)))
	s.SetWriteHeight(3)
	require.NoError(s.SetDataVar(counter, "n", clarity.NewUInt(3)))

	v, err := s.DataVar(counter, "n")
	require.NoError(err)
	require.Equal("u3", v.String())

	for h, want := range map[uint32]string{1: "u1", 2: "u1", 3: "u3", 10: "u3"} {
		restore := s.AtHeight(h)
		v, err := s.DataVar(counter, "n")
		restore()
		require.NoError(err)
		require.Equal(want, v.String(), "height %d", h)
	}

	restore := s.AtHeight(0)
	_, err = s.DataVar(counter, "n")
	restore()
	require.ErrorIs(err, ErrNotFound)
	require.Equal(uint32(Latest), s.ReadHeight())
}

func TestKeysAreDistinct(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)

	require.NotEqual(versionedKey([]byte("a"), 5), versionedKey([]byte("a"), 6))
	require.NotEqual(versionedKey([]byte("a"), 5), versionedKey([]byte("b"), 5))
	require.Len(versionedKey([]byte("a"), 5), 9)
	require.Equal(keyPrefix([]byte("a")), versionedKey([]byte("a"), 5)[:5])

	require.NoError(s.SetDataVar(counter, "a", clarity.NewUInt(1)))
	require.NoError(s.SetDataVar(counter, "b", clarity.NewUInt(2)))
	v, err := s.DataVar(counter, "a")
	require.NoError(err)
	require.Equal("u1", v.String())

	require.NoError(s.SetSTXBalance(alice, clarity.NewUInt(100)))
	bal, err := s.STXBalance(bob)
	require.NoError(err)
	require.Equal("u0", bal.String())

	_, err = s.IncrementNonce(alice)
	require.NoError(err)
	n, err := s.Nonce(bob)
	require.NoError(err)
	require.Zero(n)
	n, err = s.Nonce(alice)
	require.NoError(err)
	require.Equal(uint64(1), n)
}

func TestLayers(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)

	s.Begin()
	require.NoError(s.SetSTXBalance(alice, clarity.NewUInt(100)))

	s.Begin()
	require.NoError(s.SetSTXBalance(alice, clarity.NewUInt(50)))
	bal, err := s.STXBalance(alice)
	require.NoError(err)
	require.Equal("u50", bal.String())
	s.Abort()

	bal, err = s.STXBalance(alice)
	require.NoError(err)
	require.Equal("u100", bal.String())

	s.Begin()
	require.NoError(s.SetSTXBalance(bob, clarity.NewUInt(7)))
	require.NoError(s.Commit())
	require.Equal(1, s.Depth())
	require.NoError(s.Commit())
	require.Equal(0, s.Depth())
	require.ErrorIs(s.Commit(), ErrNoOpenLayer)

	bal, err = s.STXBalance(bob)
	require.NoError(err)
	require.Equal("u7", bal.String())

	bal, err = s.STXBalance(clarity.Principal{Version: clarity.VersionTestnetSingleSig, Hash: [20]byte{9}})
	require.NoError(err)
	require.Equal("u0", bal.String())
}

func TestMapEntriesAndTombstones(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)
	key := clarity.MustTuple(clarity.TupleField{Name: "id", Value: clarity.NewUInt(1)})

	got, err := s.MapEntry(counter, "m", key)
	require.NoError(err)
	require.True(got.IsNone())

	s.SetWriteHeight(1)
	require.NoError(s.SetMapEntry(counter, "m", key, clarity.True))
	s.SetWriteHeight(2)
	require.NoError(s.SetMapEntry(counter, "m", key, nil))

	got, err = s.MapEntry(counter, "m", key)
	require.NoError(err)
	require.True(got.IsNone())

	restore := s.AtHeight(1)
	got, err = s.MapEntry(counter, "m", key)
	restore()
	require.NoError(err)
	require.Equal("(some true)", got.String())
}

func TestBlocks(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)

	blk := &BlockInfo{Height: 4, BurnHeight: 3, TenureHeight: 3, Timestamp: 1700000000, Miner: alice.ID(), Epoch: uint8(clarity.Epoch25)}
	blk.ComputeHashes()
	require.NotEqual(blk.ID, blk.HeaderHash)
	require.NoError(s.PutBlock(blk))

	s.blocks.ClearCache()
	got, err := s.Block(4)
	require.NoError(err)
	require.Equal(blk, got)

	got, err = s.BlockByID(blk.ID)
	require.NoError(err)
	require.Equal(uint32(4), got.Height)

	_, err = s.Block(5)
	require.ErrorIs(err, ErrNotFound)

	next := &BlockInfo{Height: 5, BurnHeight: 3, TenureHeight: 3, ParentID: blk.ID}
	next.ComputeHashes()
	require.NoError(s.PutBlock(next))
	got, err = s.BlockByBurnHeight(3)
	require.NoError(err)
	require.Equal(uint32(4), got.Height)
	require.Equal(blk.BurnHash, next.BurnHash)
	require.NotEqual(blk.ID, next.ID)
	got, err = s.Block(5)
	require.NoError(err)
	require.Equal(next.ID, got.ID)

	h, ok, err := s.Meta().LastHeight()
	require.NoError(err)
	require.True(ok)
	require.Equal(uint32(5), h)
}

func TestContractsAndAssets(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)

	s.SetWriteHeight(2)
	require.NoError(s.PutContract(&ContractRecord{ID: counter.ID(), Source: []byte("(define-data-var n uint u0)"), Epoch: clarity.Epoch25, Version: clarity.Clarity2, Height: 2}))
	s.SetWriteHeight(1)
	token := bob.Contract("token")
	require.NoError(s.PutContract(&ContractRecord{ID: token.ID(), Epoch: clarity.Epoch21, Version: clarity.Clarity2, Height: 1}))

	recs, err := s.Contracts()
	require.NoError(err)
	require.Len(recs, 2)
	require.Equal(token.ID(), recs[0].ID)
	require.Equal(counter.ID(), recs[1].ID)
	require.Equal(clarity.Clarity2, recs[1].Version)

	ok, err := s.HasContract(counter)
	require.NoError(err)
	require.True(ok)

	require.NoError(s.SetSTXBalance(alice, clarity.NewUInt(10)))
	require.NoError(s.SetFTBalance(token, "gold", bob, clarity.NewUInt(5)))
	require.NoError(s.SetNFTOwner(token, "badge", clarity.NewUInt(1), &alice))
	require.NoError(s.SetNFTOwner(token, "badge", clarity.NewUInt(2), &alice))
	require.NoError(s.SetNFTOwner(token, "badge", clarity.NewUInt(3), &bob))
	require.NoError(s.SetNFTOwner(token, "badge", clarity.NewUInt(3), nil))

	assets, err := s.AssetsMap()
	require.NoError(err)
	require.Equal(uint64(10), assets[STXAsset][alice.ID()].Uint64())
	require.Equal(uint64(5), assets[AssetID(token, "gold")][bob.ID()].Uint64())
	require.Equal(uint64(2), assets[AssetID(token, "badge")][alice.ID()].Uint64())
	require.NotContains(assets[AssetID(token, "badge")], bob.ID())

	_, err = s.NFTOwner(token, "badge", clarity.NewUInt(3))
	require.ErrorIs(err, ErrNotFound)
}

type countingMeter struct {
	reads, writes int
	failWrites    bool
}

func (m *countingMeter) OnRead(n int) error {
	m.reads += n
	return nil
}

func (m *countingMeter) OnWrite(n int) error {
	if m.failWrites {
		return errLimit
	}
	m.writes += n
	return nil
}

func TestMeter(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)
	m := &countingMeter{}
	s.SetMeter(m)

	require.NoError(s.SetDataVar(counter, "n", clarity.NewUInt(1)))
	require.Greater(m.writes, 0)
	_, err := s.DataVar(counter, "n")
	require.NoError(err)
	require.Greater(m.reads, 0)

	m.failWrites = true
	require.ErrorIs(s.SetDataVar(counter, "n", clarity.NewUInt(2)), errLimit)
}

type fakeRemote struct {
	fetches int
	fail    error
}

func (*fakeRemote) ForkHeight() uint32 { return 100 }

func (f *fakeRemote) FetchContract(_ context.Context, id clarity.Principal) (*ContractRecord, error) {
	f.fetches++
	if f.fail != nil {
		return nil, f.fail
	}
	if id.Name != "remote" {
		return nil, ErrNotFound
	}
	return &ContractRecord{ID: id.ID(), Source: []byte("(define-data-var x int 1)"), Epoch: clarity.Epoch24, Version: clarity.Clarity2}, nil
}

func (f *fakeRemote) FetchDataVar(_ context.Context, _ clarity.Principal, name string, height uint32) (clarity.Value, error) {
	return clarity.NewInt(int64(height)), nil
}

func (f *fakeRemote) FetchMapEntry(context.Context, clarity.Principal, string, clarity.Value, uint32) (clarity.Optional, error) {
	return clarity.Some(clarity.True), nil
}

func TestRemoteFallback(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)
	remote := &fakeRemote{}
	s.SetWriteHeight(5)
	s.SetRemote(remote)

	id := bob.Contract("remote")
	s.Begin()
	rec, err := s.Contract(id)
	require.NoError(err)
	require.True(rec.Remote)
	s.Abort()

	// cached below the aborted layer
	rec, err = s.Contract(id)
	require.NoError(err)
	require.True(rec.Remote)
	require.Equal(1, remote.fetches)

	v, err := s.DataVar(id, "x")
	require.NoError(err)
	require.Equal("0", v.String())

	for h, want := range map[uint32]string{5: "0", 7: "0", 3: "98", 0: "95"} {
		restore := s.AtHeight(h)
		v, err = s.DataVar(id, "x")
		restore()
		require.NoError(err)
		require.Equal(want, v.String(), "height %d", h)
	}

	entry, err := s.MapEntry(id, "m", clarity.NewUInt(1))
	require.NoError(err)
	require.Equal("(some true)", entry.String())

	_, err = s.Contract(bob.Contract("missing"))
	require.ErrorIs(err, ErrNotFound)

	// local contracts never consult the remote for storage
	require.NoError(s.PutContract(&ContractRecord{ID: counter.ID()}))
	_, err = s.DataVar(counter, "x")
	require.ErrorIs(err, ErrNotFound)
}

func TestRemoteErrorsSurface(t *testing.T) {
	require := require.New(t)
	s := NewStore(nil)
	s.SetRemote(&fakeRemote{fail: errLimit})

	id := bob.Contract("remote")
	_, err := s.MapEntry(id, "m", clarity.NewUInt(1))
	require.ErrorIs(err, errLimit)
	_, err = s.DataVar(id, "x")
	require.ErrorIs(err, errLimit)
}
