// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/ledger"
)

// BlockReward is the coinbase reported by get-block-info? block-reward.
const BlockReward = 1_000_000_000

// heights returns the stacks, burn and tenure heights seen by the current
// frame: the open block, or the block selected by at-block.
func (c *evalCtx) heights() (stacks, burn, tenure uint32) {
	if blk := c.frame.atBlock; blk != nil {
		return blk.Height, blk.BurnHeight, blk.TenureHeight
	}
	ch := c.vm.chain
	return ch.StacksBlockHeight(), ch.BurnBlockHeight(), ch.TenureHeight()
}

func keywordTxSender(c *evalCtx) (clarity.Value, error)       { return c.frame.sender, nil }
func keywordContractCaller(c *evalCtx) (clarity.Value, error) { return c.frame.caller, nil }

func keywordTxSponsor(c *evalCtx) (clarity.Value, error) {
	if c.frame.sponsor == nil {
		return clarity.None, nil
	}
	return clarity.Some(*c.frame.sponsor), nil
}

// keywordBlockHeight is the tenure height once stacks blocks are decoupled
// from burn blocks.
func keywordBlockHeight(c *evalCtx) (clarity.Value, error) {
	stacks, _, tenure := c.heights()
	if c.vm.chain.Epoch().DecoupledBlocks() {
		return clarity.NewUInt(uint64(tenure)), nil
	}
	return clarity.NewUInt(uint64(stacks)), nil
}

func keywordStacksBlockHeight(c *evalCtx) (clarity.Value, error) {
	stacks, _, _ := c.heights()
	return clarity.NewUInt(uint64(stacks)), nil
}

func keywordTenureHeight(c *evalCtx) (clarity.Value, error) {
	_, _, tenure := c.heights()
	return clarity.NewUInt(uint64(tenure)), nil
}

func keywordBurnBlockHeight(c *evalCtx) (clarity.Value, error) {
	_, burn, _ := c.heights()
	return clarity.NewUInt(uint64(burn)), nil
}

func keywordStacksBlockTime(c *evalCtx) (clarity.Value, error) {
	if blk := c.frame.atBlock; blk != nil {
		return clarity.NewUInt(blk.Timestamp), nil
	}
	return clarity.NewUInt(c.vm.chain.BlockTime()), nil
}

func keywordChainID(c *evalCtx) (clarity.Value, error) {
	return clarity.NewUInt(uint64(c.vm.chainID)), nil
}

func keywordIsInMainnet(c *evalCtx) (clarity.Value, error) { return clarity.Bool(c.vm.mainnet), nil }
func keywordIsInRegtest(*evalCtx) (clarity.Value, error)   { return clarity.False, nil }

func hashValue(id ids.ID) clarity.Value {
	b := make([]byte, len(id))
	copy(b, id[:])
	return clarity.Buffer{Data: b}
}

// closedBlock returns the block at height h if it is closed and visible from
// the current frame.
func (c *evalCtx) closedBlock(v clarity.Value) (*ledger.BlockInfo, error) {
	u, err := asUInt(v)
	if err != nil {
		return nil, err
	}
	h, ok := u.Uint64()
	stacks, _, _ := c.heights()
	if !ok || h >= uint64(stacks) {
		return nil, nil
	}
	blk, err := c.vm.store.Block(uint32(h))
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	return blk, err
}

func blockProperty(blk *ledger.BlockInfo, prop string) (clarity.Value, error) {
	switch prop {
	case "burnchain-header-hash":
		return hashValue(blk.BurnHash), nil
	case "id-header-hash":
		return hashValue(blk.ID), nil
	case "header-hash":
		return hashValue(blk.HeaderHash), nil
	case "vrf-seed":
		return hashValue(blk.VRFSeed), nil
	case "time":
		return clarity.NewUInt(blk.Timestamp), nil
	case "miner-address":
		if blk.Miner == "" {
			return clarity.BootAddress, nil
		}
		return clarity.ParsePrincipal(blk.Miner)
	case "block-reward":
		return clarity.NewUInt(BlockReward), nil
	case "miner-spend-total", "miner-spend-winner":
		return clarity.NewUInt(0), nil
	}
	return nil, fmt.Errorf("%w: unknown block property '%s'", ErrBadArgument, prop)
}

func blockInfo(lookup func(c *evalCtx, v clarity.Value) (*ledger.BlockInfo, error), burnTime bool) evalFunc {
	return func(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
		args := e.Args()
		v, err := c.eval(args[1], sc)
		if err != nil {
			return nil, err
		}
		blk, err := lookup(c, v)
		if err != nil || blk == nil {
			return clarity.None, err
		}
		prop := args[0].Text
		if prop == "time" && burnTime && blk.BurnTime != 0 {
			return clarity.Some(clarity.NewUInt(blk.BurnTime)), nil
		}
		out, err := blockProperty(blk, prop)
		if err != nil {
			return nil, err
		}
		return clarity.Some(out), nil
	}
}

var (
	specialGetBlockInfo       = blockInfo((*evalCtx).closedBlock, true)
	specialGetStacksBlockInfo = blockInfo((*evalCtx).closedBlock, false)
	specialGetTenureInfo      = blockInfo((*evalCtx).tenureBlock, true)
)

// tenureBlock returns the first block of tenure h.
func (c *evalCtx) tenureBlock(v clarity.Value) (*ledger.BlockInfo, error) {
	u, err := asUInt(v)
	if err != nil {
		return nil, err
	}
	h, ok := u.Uint64()
	stacks, _, tenure := c.heights()
	if !ok || h >= uint64(tenure) {
		return nil, nil
	}
	for height := uint32(h); height < stacks; height++ {
		blk, err := c.vm.store.Block(height)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if uint64(blk.TenureHeight) == h {
			return blk, nil
		}
		if uint64(blk.TenureHeight) > h {
			break
		}
	}
	return nil, nil
}

func specialGetBurnBlockInfo(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	u, err := asUInt(v)
	if err != nil {
		return nil, err
	}
	h, ok := u.Uint64()
	_, burn, _ := c.heights()
	if !ok || h >= uint64(burn) {
		return clarity.None, nil
	}
	blk, err := c.vm.store.BlockByBurnHeight(uint32(h))
	if errors.Is(err, ledger.ErrNotFound) {
		return clarity.None, nil
	}
	if err != nil {
		return nil, err
	}
	switch args[0].Text {
	case "header-hash":
		return clarity.Some(hashValue(blk.BurnHash)), nil
	case "pox-addrs":
		empty, _ := clarity.NewList(nil)
		t, err := clarity.NewTuple(
			clarity.TupleField{Name: "addrs", Value: empty},
			clarity.TupleField{Name: "payout", Value: clarity.NewUInt(0)},
		)
		if err != nil {
			return nil, err
		}
		return clarity.Some(t), nil
	}
	return nil, fmt.Errorf("%w: unknown burn block property '%s'", ErrBadArgument, args[0].Text)
}

// specialAtBlock evaluates its body read-only against the state as of the
// end of the named block.
func specialAtBlock(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[0], sc)
	if err != nil {
		return nil, err
	}
	b, ok := buffer(v, 32)
	if !ok {
		return nil, fmt.Errorf("%w: at-block expects (buff 32)", ErrBadArgument)
	}
	id, err := ids.ToID(b)
	if err != nil {
		return nil, err
	}
	blk, err := c.vm.store.BlockByID(id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchBlock, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	restore := c.vm.store.AtHeight(blk.Height)
	defer restore()
	f := *c.frame
	f.readOnly = true
	f.atBlock = blk
	return c.with(&f).eval(args[1], sc)
}

func nativeIsStandard(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	p, err := asPrincipal(args[0])
	if err != nil {
		return nil, err
	}
	if c.vm.mainnet {
		return clarity.Bool(p.IsMainnet()), nil
	}
	return clarity.Bool(p.IsTestnet()), nil
}

func (vm *VM) networkVersion(version byte) bool {
	if vm.mainnet {
		return version == clarity.VersionMainnetSingleSig || version == clarity.VersionMainnetMultiSig
	}
	return version == clarity.VersionTestnetSingleSig || version == clarity.VersionTestnetMultiSig
}

func principalError(code uint64, p *clarity.Principal) (clarity.Value, error) {
	value := clarity.Value(clarity.None)
	if p != nil {
		value = clarity.Some(*p)
	}
	t, err := clarity.NewTuple(
		clarity.TupleField{Name: "error_code", Value: clarity.NewUInt(code)},
		clarity.TupleField{Name: "value", Value: value},
	)
	if err != nil {
		return nil, err
	}
	return clarity.Err(t), nil
}

// nativePrincipalConstruct builds a principal from a version byte, a hash
// and an optional contract name. A principal of the other network is
// returned inside (err {error_code: u0, ...}).
func nativePrincipalConstruct(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	version, ok := buffer(args[0], 0, 1)
	if !ok {
		return nil, fmt.Errorf("%w: version must be (buff 1)", ErrBadArgument)
	}
	if len(version) == 0 || version[0] >= 32 {
		return principalError(1, nil)
	}
	hash, ok := buffer(args[1], 20)
	if !ok {
		return principalError(1, nil)
	}
	p := clarity.Principal{Version: version[0]}
	copy(p.Hash[:], hash)
	if len(args) == 3 {
		name, ok := args[2].(clarity.StringASCII)
		if !ok {
			return nil, fmt.Errorf("%w: contract name must be string-ascii", ErrBadArgument)
		}
		if err := clarity.ValidateContractName(string(name.Data)); err != nil {
			return principalError(2, nil)
		}
		p.Name = string(name.Data)
	}
	if !c.vm.networkVersion(p.Version) {
		return principalError(0, &p)
	}
	return clarity.Ok(p), nil
}

func nativePrincipalDestruct(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	p, err := asPrincipal(args[0])
	if err != nil {
		return nil, err
	}
	name := clarity.Value(clarity.None)
	if p.IsContract() {
		name = clarity.Some(clarity.StringASCII{Data: []byte(p.Name)})
	}
	hash := make([]byte, 20)
	copy(hash, p.Hash[:])
	t, err := clarity.NewTuple(
		clarity.TupleField{Name: "hash-bytes", Value: clarity.Buffer{Data: hash}},
		clarity.TupleField{Name: "name", Value: name},
		clarity.TupleField{Name: "version", Value: clarity.Buffer{Data: []byte{p.Version}}},
	)
	if err != nil {
		return nil, err
	}
	if !c.vm.networkVersion(p.Version) {
		return clarity.Err(t), nil
	}
	return clarity.Ok(t), nil
}

func nativeContractOf(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	cc, ok := args[0].(clarity.CallableContract)
	if !ok {
		return nil, fmt.Errorf("%w: contract-of expects a trait reference", ErrBadArgument)
	}
	return cc.Contract, nil
}

// nativeContractHash returns the sha512/256 of a deployed contract's source.
func nativeContractHash(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	p, err := asPrincipal(args[0])
	if err != nil {
		return nil, err
	}
	if !p.IsContract() {
		return errCode(1), nil
	}
	rec, err := c.vm.store.Contract(p)
	if errors.Is(err, ledger.ErrNotFound) {
		return errCode(2), nil
	}
	if err != nil {
		return nil, err
	}
	return clarity.Ok(clarity.Buffer{Data: hashSHA512t256(rec.Source)}), nil
}

// specialAsContract runs its body with the contract as tx-sender and
// contract-caller.
func specialAsContract(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	f := *c.frame
	id := c.frame.contract.ID
	f.sender, f.caller, f.self = id, id, id
	return c.with(&f).eval(e.Args()[0], sc)
}

func specialContractCall(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[0], sc)
	if err != nil {
		return nil, err
	}
	target, err := asPrincipal(v)
	if err != nil {
		return nil, err
	}
	vals, err := c.evalArgs(args[2:], sc)
	if err != nil {
		return nil, err
	}
	return c.contractCall(e, target, args[1].Text, vals)
}
