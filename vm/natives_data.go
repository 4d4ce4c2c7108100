// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/ledger"
)

// errCode is the (err uN) returned by failed asset operations.
func errCode(n uint64) clarity.Value {
	return clarity.Err(clarity.NewUInt(n))
}

var okTrue = clarity.Ok(clarity.True)

func (c *evalCtx) checkType(what string, t clarity.TypeSignature, v clarity.Value) error {
	if !t.Admits(v) {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrBadArgument, what, t, v.Type())
	}
	return nil
}

func specialVarGet(c *evalCtx, e *ast.Expr, _ *scope) (clarity.Value, error) {
	name := e.Args()[0].Text
	if _, ok := c.frame.contract.Vars[name]; !ok {
		return nil, fmt.Errorf("use of unresolved persisted variable '%s'", name)
	}
	return c.vm.store.DataVar(c.frame.contract.ID, name)
}

func specialVarSet(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	dv, ok := c.frame.contract.Vars[args[0].Text]
	if !ok {
		return nil, fmt.Errorf("use of unresolved persisted variable '%s'", args[0].Text)
	}
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	v, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	if err := c.checkType("var-set", dv.Type, v); err != nil {
		return nil, err
	}
	if err := c.vm.store.SetDataVar(c.frame.contract.ID, dv.Name, v); err != nil {
		return nil, err
	}
	c.emit(&DataVarSetEvent{Contract: c.frame.contract.ID, Var: dv.Name, Value: v})
	return clarity.True, nil
}

// mapArgs evaluates the map name and the remaining arguments of a map
// builtin.
func (c *evalCtx) mapArgs(e *ast.Expr, sc *scope) (*Map, []clarity.Value, error) {
	args := e.Args()
	m, ok := c.frame.contract.Maps[args[0].Text]
	if !ok {
		return nil, nil, fmt.Errorf("use of unresolved map '%s'", args[0].Text)
	}
	vals, err := c.evalArgs(args[1:], sc)
	if err != nil {
		return nil, nil, err
	}
	if err := c.checkType(e.Head()+" key", m.Key, vals[0]); err != nil {
		return nil, nil, err
	}
	if len(vals) > 1 {
		if err := c.checkType(e.Head()+" value", m.Value, vals[1]); err != nil {
			return nil, nil, err
		}
	}
	return m, vals, nil
}

func specialMapGet(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	m, vals, err := c.mapArgs(e, sc)
	if err != nil {
		return nil, err
	}
	return c.vm.store.MapEntry(c.frame.contract.ID, m.Name, vals[0])
}

func (c *evalCtx) setMapEntry(e *ast.Expr, sc *scope, overwrite bool) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	m, vals, err := c.mapArgs(e, sc)
	if err != nil {
		return nil, err
	}
	id := c.frame.contract.ID
	existing, err := c.vm.store.MapEntry(id, m.Name, vals[0])
	if err != nil {
		return nil, err
	}
	if !existing.IsNone() && !overwrite {
		return clarity.False, nil
	}
	if err := c.vm.store.SetMapEntry(id, m.Name, vals[0], vals[1]); err != nil {
		return nil, err
	}
	if existing.IsNone() {
		c.emit(&MapInsertEvent{Contract: id, Map: m.Name, Key: vals[0], Value: vals[1]})
	} else {
		c.emit(&MapUpdateEvent{Contract: id, Map: m.Name, Key: vals[0], Value: vals[1]})
	}
	return clarity.True, nil
}

func specialMapSet(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	return c.setMapEntry(e, sc, true)
}

func specialMapInsert(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	return c.setMapEntry(e, sc, false)
}

func specialMapDelete(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	m, vals, err := c.mapArgs(e, sc)
	if err != nil {
		return nil, err
	}
	id := c.frame.contract.ID
	existing, err := c.vm.store.MapEntry(id, m.Name, vals[0])
	if err != nil {
		return nil, err
	}
	if existing.IsNone() {
		return clarity.False, nil
	}
	if err := c.vm.store.SetMapEntry(id, m.Name, vals[0], nil); err != nil {
		return nil, err
	}
	c.emit(&MapDeleteEvent{Contract: id, Map: m.Name, Key: vals[0]})
	return clarity.True, nil
}

func addUInt(a, b clarity.UInt) (clarity.UInt, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a.Big(), b.Big())
	if overflow {
		return clarity.UInt{}, clarity.ErrArithmeticOverflow
	}
	return clarity.UIntFromBig(sum)
}

func subUInt(a, b clarity.UInt) clarity.UInt {
	u, _ := clarity.UIntFromBig(new(uint256.Int).Sub(a.Big(), b.Big()))
	return u
}

func less(a, b clarity.UInt) bool { return a.Big().Lt(b.Big()) }

func isZero(a clarity.UInt) bool { return a.Big().IsZero() }

func nativeSTXGetBalance(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	p, err := asPrincipal(args[0])
	if err != nil {
		return nil, err
	}
	bal, _, err := c.vm.stxAccount(p)
	return bal, err
}

// stxAccount returns the spendable STX of p and its lock, if still live.
// Locks that expired before the session released them count as unlocked.
func (vm *VM) stxAccount(p clarity.Principal) (clarity.UInt, *ledger.Lock, error) {
	bal, err := vm.store.STXBalance(p)
	if err != nil {
		return clarity.UInt{}, nil, err
	}
	lock, err := vm.store.STXLock(p)
	if err != nil || lock == nil {
		return bal, nil, err
	}
	if lock.UnlockHeight > vm.chain.BurnBlockHeight() {
		return bal, lock, nil
	}
	bal, err = addUInt(bal, lock.Amount)
	return bal, nil, err
}

func nativeSTXAccount(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	p, err := asPrincipal(args[0])
	if err != nil {
		return nil, err
	}
	bal, lock, err := c.vm.stxAccount(p)
	if err != nil {
		return nil, err
	}
	locked, unlock := clarity.NewUInt(0), clarity.NewUInt(0)
	if lock != nil {
		locked, unlock = lock.Amount, clarity.NewUInt(uint64(lock.UnlockHeight))
	}
	return clarity.NewTuple(
		clarity.TupleField{Name: "locked", Value: locked},
		clarity.TupleField{Name: "unlock-height", Value: unlock},
		clarity.TupleField{Name: "unlocked", Value: bal},
	)
}

// transferSTX moves amount between accounts and returns the (err uN) code of
// a failed check, or 0.
func (vm *VM) transferSTX(sender, recipient clarity.Principal, amount clarity.UInt) (uint64, error) {
	if isZero(amount) {
		return 3, nil
	}
	if sender == recipient {
		return 2, nil
	}
	if err := vm.unlockExpired(sender); err != nil {
		return 0, err
	}
	bal, err := vm.store.STXBalance(sender)
	if err != nil {
		return 0, err
	}
	if less(bal, amount) {
		return 1, nil
	}
	to, err := vm.store.STXBalance(recipient)
	if err != nil {
		return 0, err
	}
	sum, err := addUInt(to, amount)
	if err != nil {
		return 0, err
	}
	if err := vm.store.SetSTXBalance(sender, subUInt(bal, amount)); err != nil {
		return 0, err
	}
	return 0, vm.store.SetSTXBalance(recipient, sum)
}

// nativeSTXTransfer serves both stx-transfer? and stx-transfer-memo?.
func nativeSTXTransfer(c *evalCtx, e *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	amount, err := asUInt(args[0])
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(args[1])
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(args[2])
	if err != nil {
		return nil, err
	}
	var memo []byte
	if len(args) == 4 {
		b, ok := args[3].(clarity.Buffer)
		if !ok || len(b.Data) > 34 {
			return nil, fmt.Errorf("%w: memo must be (buff 34)", ErrBadArgument)
		}
		memo = b.Data
	}
	if !isZero(amount) && sender != recipient && sender != c.frame.sender {
		return errCode(4), nil
	}
	code, err := c.vm.transferSTX(sender, recipient, amount)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return errCode(code), nil
	}
	c.emit(&STXTransferEvent{Sender: sender, Recipient: recipient, Amount: amount, Memo: memo})
	return okTrue, nil
}

func nativeSTXBurn(c *evalCtx, e *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	amount, err := asUInt(args[0])
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(args[1])
	if err != nil {
		return nil, err
	}
	if isZero(amount) {
		return errCode(3), nil
	}
	if sender != c.frame.sender {
		return errCode(4), nil
	}
	if err := c.vm.unlockExpired(sender); err != nil {
		return nil, err
	}
	bal, err := c.vm.store.STXBalance(sender)
	if err != nil {
		return nil, err
	}
	if less(bal, amount) {
		return errCode(1), nil
	}
	if err := c.vm.store.SetSTXBalance(sender, subUInt(bal, amount)); err != nil {
		return nil, err
	}
	c.emit(&STXBurnEvent{Sender: sender, Amount: amount})
	return okTrue, nil
}

// tokenArgs resolves the token named by the first argument and evaluates the
// rest.
func (c *evalCtx) tokenArgs(e *ast.Expr, sc *scope) (string, []clarity.Value, error) {
	args := e.Args()
	name := args[0].Text
	contract := c.frame.contract
	_, ft := contract.FTs[name]
	_, nft := contract.NFTs[name]
	if !ft && !nft {
		return "", nil, fmt.Errorf("use of unresolved token '%s'", name)
	}
	vals, err := c.evalArgs(args[1:], sc)
	return name, vals, err
}

func specialFTGetBalance(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	owner, err := asPrincipal(vals[0])
	if err != nil {
		return nil, err
	}
	return c.vm.store.FTBalance(c.frame.contract.ID, token, owner)
}

func specialFTGetSupply(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	token, _, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	return c.vm.store.FTSupply(c.frame.contract.ID, token)
}

// ftAmountOwner reads the (amount, principal) prefix shared by ft-mint? and
// ft-burn?.
func ftAmountOwner(vals []clarity.Value) (clarity.UInt, clarity.Principal, error) {
	amount, err := asUInt(vals[0])
	if err != nil {
		return clarity.UInt{}, clarity.Principal{}, err
	}
	p, err := asPrincipal(vals[1])
	return amount, p, err
}

func specialFTMint(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	amount, recipient, err := ftAmountOwner(vals)
	if err != nil {
		return nil, err
	}
	if isZero(amount) {
		return errCode(1), nil
	}
	id := c.frame.contract.ID
	supply, err := c.vm.store.FTSupply(id, token)
	if err != nil {
		return nil, err
	}
	newSupply, err := addUInt(supply, amount)
	if err != nil {
		return nil, err
	}
	if ft := c.frame.contract.FTs[token]; ft.Supply != nil {
		limit, err := c.eval(ft.Supply, nil)
		if err != nil {
			return nil, err
		}
		max, err := asUInt(limit)
		if err != nil {
			return nil, err
		}
		if less(max, newSupply) {
			return nil, fmt.Errorf("%w: %s", ErrSupplyExceeded, ledger.AssetID(id, token))
		}
	}
	bal, err := c.vm.store.FTBalance(id, token, recipient)
	if err != nil {
		return nil, err
	}
	newBal, err := addUInt(bal, amount)
	if err != nil {
		return nil, err
	}
	if err := c.vm.store.SetFTSupply(id, token, newSupply); err != nil {
		return nil, err
	}
	if err := c.vm.store.SetFTBalance(id, token, recipient, newBal); err != nil {
		return nil, err
	}
	c.emit(&FTMintEvent{Asset: ledger.AssetID(id, token), Recipient: recipient, Amount: amount})
	return okTrue, nil
}

func specialFTBurn(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	amount, sender, err := ftAmountOwner(vals)
	if err != nil {
		return nil, err
	}
	id := c.frame.contract.ID
	bal, err := c.vm.store.FTBalance(id, token, sender)
	if err != nil {
		return nil, err
	}
	if isZero(amount) || less(bal, amount) {
		return errCode(1), nil
	}
	supply, err := c.vm.store.FTSupply(id, token)
	if err != nil {
		return nil, err
	}
	if err := c.vm.store.SetFTBalance(id, token, sender, subUInt(bal, amount)); err != nil {
		return nil, err
	}
	if err := c.vm.store.SetFTSupply(id, token, subUInt(supply, amount)); err != nil {
		return nil, err
	}
	c.emit(&FTBurnEvent{Asset: ledger.AssetID(id, token), Sender: sender, Amount: amount})
	return okTrue, nil
}

func specialFTTransfer(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	amount, sender, err := ftAmountOwner(vals)
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(vals[2])
	if err != nil {
		return nil, err
	}
	if isZero(amount) {
		return errCode(3), nil
	}
	if sender == recipient {
		return errCode(2), nil
	}
	id := c.frame.contract.ID
	from, err := c.vm.store.FTBalance(id, token, sender)
	if err != nil {
		return nil, err
	}
	if less(from, amount) {
		return errCode(1), nil
	}
	to, err := c.vm.store.FTBalance(id, token, recipient)
	if err != nil {
		return nil, err
	}
	sum, err := addUInt(to, amount)
	if err != nil {
		return nil, err
	}
	if err := c.vm.store.SetFTBalance(id, token, sender, subUInt(from, amount)); err != nil {
		return nil, err
	}
	if err := c.vm.store.SetFTBalance(id, token, recipient, sum); err != nil {
		return nil, err
	}
	c.emit(&FTTransferEvent{Asset: ledger.AssetID(id, token), Sender: sender, Recipient: recipient, Amount: amount})
	return okTrue, nil
}

// nftOwner returns the owner of an NFT, or nil when it does not exist.
func (c *evalCtx) nftOwner(token string, id clarity.Value) (*clarity.Principal, error) {
	nft := c.frame.contract.NFTs[token]
	if nft == nil {
		return nil, fmt.Errorf("use of unresolved non-fungible token '%s'", token)
	}
	if err := c.checkType(token+" identifier", nft.Type, id); err != nil {
		return nil, err
	}
	owner, err := c.vm.store.NFTOwner(c.frame.contract.ID, token, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

func specialNFTGetOwner(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	owner, err := c.nftOwner(token, vals[0])
	if err != nil || owner == nil {
		return clarity.None, err
	}
	return clarity.Some(*owner), nil
}

func specialNFTMint(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(vals[1])
	if err != nil {
		return nil, err
	}
	owner, err := c.nftOwner(token, vals[0])
	if err != nil {
		return nil, err
	}
	if owner != nil {
		return errCode(1), nil
	}
	id := c.frame.contract.ID
	if err := c.vm.store.SetNFTOwner(id, token, vals[0], &recipient); err != nil {
		return nil, err
	}
	c.emit(&NFTMintEvent{Asset: ledger.AssetID(id, token), Recipient: recipient, Value: vals[0]})
	return okTrue, nil
}

func specialNFTBurn(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(vals[1])
	if err != nil {
		return nil, err
	}
	owner, err := c.nftOwner(token, vals[0])
	if err != nil {
		return nil, err
	}
	switch {
	case owner == nil:
		return errCode(3), nil
	case *owner != sender:
		return errCode(1), nil
	}
	id := c.frame.contract.ID
	if err := c.vm.store.SetNFTOwner(id, token, vals[0], nil); err != nil {
		return nil, err
	}
	c.emit(&NFTBurnEvent{Asset: ledger.AssetID(id, token), Sender: sender, Value: vals[0]})
	return okTrue, nil
}

func specialNFTTransfer(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	if err := c.checkWrite(e); err != nil {
		return nil, err
	}
	token, vals, err := c.tokenArgs(e, sc)
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(vals[1])
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(vals[2])
	if err != nil {
		return nil, err
	}
	owner, err := c.nftOwner(token, vals[0])
	if err != nil {
		return nil, err
	}
	switch {
	case owner == nil:
		return errCode(3), nil
	case sender == recipient:
		return errCode(2), nil
	case *owner != sender:
		return errCode(1), nil
	}
	id := c.frame.contract.ID
	if err := c.vm.store.SetNFTOwner(id, token, vals[0], &recipient); err != nil {
		return nil, err
	}
	c.emit(&NFTTransferEvent{Asset: ledger.AssetID(id, token), Sender: sender, Recipient: recipient, Value: vals[0]})
	return okTrue, nil
}
