// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/vm"
)

func newTestSession(t *testing.T, epoch string) *Session {
	cfg := DefaultConfig()
	cfg.Epoch = epoch
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func wallet(t *testing.T, s *Session, name string) clarity.Principal {
	p, err := s.Account(name)
	require.NoError(t, err)
	return p
}

const counterSource = `
(define-data-var count uint u0)

(define-private (helper (n uint))
  (+ n u1))

(define-read-only (get-count)
  (var-get count))

(define-public (increment)
  (begin
    (var-set count (helper (var-get count)))
    (ok (var-get count))))

(define-public (fail)
  (begin
    (var-set count u1000)
    (err u7)))
`

func deployCounter(t *testing.T, s *Session) clarity.Principal {
	r, err := s.DeployContract(s.Deployer(), "counter", counterSource, 0)
	require.NoError(t, err)
	require.NoError(t, r.Err)
	return s.Deployer().Contract("counter")
}

func TestGenesis(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")

	require.Equal(Initialized, s.State())
	require.Equal(uint32(1), s.BlockHeight())
	require.Equal(uint32(1), s.BurnBlockHeight())
	require.Equal(clarity.Epoch25, s.Epoch())

	accounts, err := s.Accounts()
	require.NoError(err)
	require.Len(accounts, len(defaultAccounts))
	require.Equal(clarity.NewUInt(DefaultBalance), accounts[0].Balance)

	receipts := s.GenesisReceipts()
	require.Len(receipts, len(defaultAccounts)+len(BootContracts))
	require.Equal("stx_mint_event", receipts[0].Events[0].Name())

	ifaces, err := s.ContractsInterfaces()
	require.NoError(err)
	pox, ok := ifaces[s.VM().BootAddress().Contract(vm.PoxContract).ID()]
	require.True(ok)
	require.NotEmpty(pox.Functions)
	require.Equal(Running, s.State())

	blk, err := s.Store().Block(0)
	require.NoError(err)
	require.Equal(uint32(len(receipts)), blk.TxCount)
}

func TestMineBlock(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")
	deployer := s.Deployer()
	w1 := wallet(t, s, "wallet_1")
	w2 := wallet(t, s, "wallet_2")

	before := s.BlockHeight()
	receipts, err := s.MineBlock(
		TransferSTXTx(deployer, w1, 100),
		TransferSTXTx(w1, w2, 50),
		TransferSTXTx(w2, w2, 1),
	)
	require.NoError(err)
	require.Len(receipts, 3)
	require.Equal(before+1, s.BlockHeight())
	require.Equal("(ok true)", receipts[0].Result.String())
	require.Equal("(err u2)", receipts[2].Result.String())
	require.True(receipts[2].Failed())

	nonce, err := s.Nonce(w2)
	require.NoError(err)
	require.Equal(uint64(1), nonce)

	receipts, err = s.MineBlock()
	require.NoError(err)
	require.Empty(receipts)
	require.Equal(before+2, s.BlockHeight())

	prev, err := s.Store().Block(before)
	require.NoError(err)
	last, err := s.Store().Block(before + 1)
	require.NoError(err)
	require.Equal(prev.ID, last.ParentID)
}

func TestMineEmptyBlocks(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")

	h, err := s.MineEmptyBlocks(5)
	require.NoError(err)
	require.Equal(uint32(6), h)
	require.Equal(uint32(6), s.BurnBlockHeight())

	_, err = s.MineEmptyStacksBlocks(1)
	require.ErrorIs(err, ErrStacksBlockPre30)
	_, err = s.MineEmptyBlocks(0)
	require.Error(err)

	_, err = s.SetEpoch("3.0")
	require.NoError(err)
	h, err = s.MineEmptyStacksBlocks(3)
	require.NoError(err)
	require.Equal(uint32(9), h)
	require.Equal(uint32(6), s.BurnBlockHeight())
	require.Equal(uint32(6), s.TenureHeight())

	h, err = s.MineEmptyBurnBlocks(2)
	require.NoError(err)
	require.Equal(uint32(11), h)
	require.Equal(uint32(8), s.BurnBlockHeight())
	require.Equal(uint32(8), s.TenureHeight())

	blk, err := s.Store().Block(10)
	require.NoError(err)
	require.Equal(uint32(8), blk.BurnHeight)
	require.Greater(blk.Timestamp, uint64(GenesisTime.Unix()))
}

func TestBlockHeightKeywords(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "3.0")

	r, err := s.DeployContract(s.Deployer(), "legacy", `(define-read-only (h) block-height)`, clarity.Clarity2)
	require.NoError(err)
	require.NoError(r.Err)

	r, err = s.DeployContract(s.Deployer(), "modern", `(define-read-only (h) block-height)`, 0)
	require.NoError(err)
	var aerr *vm.AnalysisError
	require.ErrorAs(r.Err, &aerr)
	require.Contains(aerr.Message, "use of unresolved variable 'block-height'")

	_, err = s.MineEmptyStacksBlocks(4)
	require.NoError(err)
	r, err = s.CallReadOnlyFn(s.Deployer(), s.Deployer().Contract("legacy"), "h")
	require.NoError(err)
	require.Equal("u1", r.Result.String())

	r, err = s.ExecuteSnippet(s.Deployer(), "stacks-block-height")
	require.NoError(err)
	require.Equal("u7", r.Result.String())
}

func TestSetEpoch(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.1")
	require.Equal(clarity.Epoch21, s.Epoch())

	e, err := s.SetEpoch("2.4")
	require.NoError(err)
	require.Equal(clarity.Epoch24, e)

	e, err = s.SetEpoch("9.9")
	require.NoError(err)
	require.Equal(clarity.LatestEpoch, e)

	require.Equal(clarity.LatestEpoch, newTestSession(t, "nope").Epoch())
}

func TestReadOnlyLeavesStateUntouched(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")
	counter := deployCounter(t, s)
	_, err := s.CallPublicFn(s.Deployer(), counter, "increment")
	require.NoError(err)

	assets, err := s.GetAssetsMap()
	require.NoError(err)
	height := s.BlockHeight()

	r, err := s.CallReadOnlyFn(s.Deployer(), counter, "get-count")
	require.NoError(err)
	require.Equal("u1", r.Result.String())

	after, err := s.GetAssetsMap()
	require.NoError(err)
	require.Equal(assets, after)
	require.Equal(height, s.BlockHeight())
	v, err := s.GetDataVar(counter, "count")
	require.NoError(err)
	require.Equal("u1", v.String())
}

func TestErrResponseRollsBack(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")
	counter := deployCounter(t, s)

	r, err := s.CallPublicFn(s.Deployer(), counter, "fail")
	require.NoError(err)
	require.NoError(r.Err)
	require.Equal("(err u7)", r.Result.String())
	require.Empty(r.Events)

	v, err := s.GetDataVar(counter, "count")
	require.NoError(err)
	require.Equal("u0", v.String())
}

func TestVisibilityErrors(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")
	counter := deployCounter(t, s)

	r, err := s.CallPrivateFn(s.Deployer(), counter, "increment")
	require.NoError(err)
	require.ErrorIs(r.Err, vm.ErrNotPrivate)
	require.Contains(r.Err.Error(), "not a private function")

	r, err = s.CallPublicFn(s.Deployer(), counter, "helper", clarity.NewUInt(1))
	require.NoError(err)
	require.ErrorIs(r.Err, vm.ErrNotPublic)
	require.Contains(r.Err.Error(), "not a public function")

	nonce, err := s.Nonce(s.Deployer())
	require.NoError(err)
	require.Equal(uint64(3), nonce)
}

func TestCoverageAndCosts(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")
	counter := deployCounter(t, s)
	s.SetTestName("counter")

	first, err := s.CallPublicFn(s.Deployer(), counter, "increment")
	require.NoError(err)
	second, err := s.CallPublicFn(s.Deployer(), counter, "increment")
	require.NoError(err)
	_, err = s.CallPrivateFn(s.Deployer(), counter, "helper", clarity.NewUInt(1))
	require.NoError(err)

	cov := s.VM().Coverage()
	require.Equal(uint64(2), cov.FunctionHits(counter.ID(), "increment"))
	require.Equal(uint64(3), cov.FunctionHits(counter.ID(), "helper"))
	require.Equal(first.Cost, second.Cost)

	report, err := s.CollectReport(false, "")
	require.NoError(err)
	require.Contains(report.Coverage, "TN:counter\n")
	require.Contains(report.Coverage, "SF:contracts/counter.clar\n")
	require.NotContains(report.Coverage, "SF:\n")
	require.Contains(report.Coverage, "FNDA:3,helper\n")
	require.Contains(report.Coverage, "end_of_record")
	require.NotContains(report.Coverage, vm.PoxContract)
	require.Contains(report.Costs, `"method":"increment"`)
}

func TestCoverageDisabled(t *testing.T) {
	require := require.New(t)
	cfg := DefaultConfig()
	cfg.Coverage = false
	s, err := New(cfg)
	require.NoError(err)
	deployCounter(t, s)

	report, err := s.CollectReport(true, "")
	require.NoError(err)
	require.Empty(report.Coverage)
}

func TestStackingLocksUntilUnlockHeight(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "2.5")
	w1 := wallet(t, s, "wallet_1")
	pox := s.VM().BootAddress().Contract(vm.PoxContract)

	amount := uint64(125_000_000_000)
	poxAddr := clarity.MustTuple(
		clarity.TupleField{Name: "version", Value: clarity.Buffer{Data: []byte{0}}},
		clarity.TupleField{Name: "hashbytes", Value: clarity.Buffer{Data: make([]byte, 32)}},
	)
	r, err := s.CallPublicFn(w1, pox, "stack-stx",
		clarity.NewUInt(amount),
		poxAddr,
		clarity.NewUInt(uint64(s.BurnBlockHeight())),
		clarity.NewUInt(1),
		clarity.None,
		clarity.Buffer{Data: make([]byte, 33)},
		clarity.NewUInt(amount),
		clarity.NewUInt(1),
	)
	require.NoError(err)
	require.NoError(r.Err)
	require.Equal("u2100", mustGet(t, r.Result, "unlock-burn-height"))
	require.Equal("stx_lock_event", r.Events[len(r.Events)-1].Name())

	assets, err := s.GetAssetsMap()
	require.NoError(err)
	require.Equal(DefaultBalance-amount, assets["STX"][w1.ID()].Uint64())

	r, err = s.CallPublicFn(w1, pox, "stack-stx",
		clarity.NewUInt(amount), poxAddr, clarity.NewUInt(uint64(s.BurnBlockHeight())), clarity.NewUInt(1),
		clarity.None, clarity.Buffer{Data: make([]byte, 33)}, clarity.NewUInt(amount), clarity.NewUInt(2))
	require.NoError(err)
	require.Equal("(err 3)", r.Result.String())

	_, err = s.MineEmptyBurnBlocks(2100 - int(s.BurnBlockHeight()))
	require.NoError(err)
	assets, err = s.GetAssetsMap()
	require.NoError(err)
	require.Equal(DefaultBalance, assets["STX"][w1.ID()].Uint64())
}

func mustGet(t *testing.T, v clarity.Value, field string) string {
	r, ok := v.(clarity.Response)
	require.True(t, ok)
	require.True(t, r.Ok, v.String())
	tuple, ok := r.Value.(clarity.Tuple)
	require.True(t, ok)
	f, ok := tuple.Get(field)
	require.True(t, ok)
	return f.String()
}

func TestTerminate(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, "")
	s.Terminate()
	require.Equal(Terminated, s.State())

	_, err := s.MineEmptyBlocks(1)
	require.ErrorIs(err, ErrTerminated)
	_, err = s.CallReadOnlyFn(s.Deployer(), s.Deployer().Contract("x"), "f")
	require.ErrorIs(err, ErrTerminated)
}

func TestSessionsAreIsolated(t *testing.T) {
	require := require.New(t)
	a := newTestSession(t, "2.5")
	b := newTestSession(t, "2.5")
	require.NotEqual(a.ID(), b.ID())

	deployCounter(t, a)
	_, err := b.Contract(b.Deployer().Contract("counter"))
	require.ErrorIs(err, vm.ErrUnknownContract)
}
