// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/ledger"
)

// PoxContract is the boot contract whose stacking calls lock STX.
const PoxContract = "pox-4"

var stackingFunctions = map[string]bool{
	"stack-stx":          true,
	"stack-extend":       true,
	"stack-increase":     true,
	"delegate-stack-stx": true,
}

// BootAddress is the issuer of the boot contracts on the VM's network.
func (vm *VM) BootAddress() clarity.Principal {
	if vm.mainnet {
		return clarity.Principal{Version: clarity.VersionMainnetSingleSig}
	}
	return clarity.BootAddress
}

func tupleUInt(t clarity.Tuple, name string) (clarity.UInt, bool) {
	v, ok := t.Get(name)
	if !ok {
		return clarity.UInt{}, false
	}
	u, ok := v.(clarity.UInt)
	return u, ok
}

// onPublicSuccess applies the side effects the node performs after a
// successful public call: stacking calls on the pox contract lock the
// stacker's STX until the returned burn height.
func (vm *VM) onPublicSuccess(c *evalCtx, callee *Contract, name string, result clarity.Value) error {
	if callee.ID != vm.BootAddress().Contract(PoxContract) || !stackingFunctions[name] {
		return nil
	}
	r, ok := result.(clarity.Response)
	if !ok || !r.Ok {
		return nil
	}
	t, ok := r.Value.(clarity.Tuple)
	if !ok {
		return nil
	}
	sv, ok := t.Get("stacker")
	if !ok {
		return nil
	}
	stacker, err := asPrincipal(sv)
	if err != nil {
		return err
	}

	if err := vm.unlockExpired(stacker); err != nil {
		return err
	}
	lock, err := vm.store.STXLock(stacker)
	if err != nil {
		return err
	}
	next := ledger.Lock{Amount: clarity.NewUInt(0)}
	if lock != nil {
		next = *lock
	}
	if amount, ok := tupleUInt(t, "lock-amount"); ok {
		next.Amount = amount
	}
	if amount, ok := tupleUInt(t, "total-locked"); ok {
		next.Amount = amount
	}
	if h, ok := tupleUInt(t, "unlock-burn-height"); ok {
		n, _ := h.Uint64()
		next.UnlockHeight = uint32(n)
	}

	locked := clarity.NewUInt(0)
	if lock != nil {
		locked = lock.Amount
	}
	if less(locked, next.Amount) {
		extra := subUInt(next.Amount, locked)
		bal, err := vm.store.STXBalance(stacker)
		if err != nil {
			return err
		}
		if less(bal, extra) {
			return fmt.Errorf("%s cannot lock %s: unlocked balance is %s", stacker.ID(), extra, bal)
		}
		if err := vm.store.SetSTXBalance(stacker, subUInt(bal, extra)); err != nil {
			return err
		}
	}
	if err := vm.store.SetSTXLock(stacker, &next); err != nil {
		return err
	}
	c.emit(&STXLockEvent{Locked: next.Amount, UnlockHeight: next.UnlockHeight, Locker: stacker})
	return nil
}

// unlockExpired folds an expired lock of p back into its balance.
func (vm *VM) unlockExpired(p clarity.Principal) error {
	lock, err := vm.store.STXLock(p)
	if err != nil || lock == nil || lock.UnlockHeight > vm.chain.BurnBlockHeight() {
		return err
	}
	bal, err := vm.store.STXBalance(p)
	if err != nil {
		return err
	}
	sum, err := addUInt(bal, lock.Amount)
	if err != nil {
		return err
	}
	if err := vm.store.SetSTXBalance(p, sum); err != nil {
		return err
	}
	return vm.store.SetSTXLock(p, nil)
}

// ReleaseLocks unlocks every lock whose unlock height has been reached. It
// runs when the burn chain advances.
func (vm *VM) ReleaseLocks() (int, error) {
	var released int
	err := vm.Unmetered(func() error {
		locks, err := vm.store.Locks()
		if err != nil {
			return err
		}
		for id, lock := range locks {
			if lock.UnlockHeight > vm.chain.BurnBlockHeight() {
				continue
			}
			p, err := clarity.ParsePrincipal(id)
			if err != nil {
				return err
			}
			if err := vm.unlockExpired(p); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if released > 0 {
		vm.log.Debug("released stx locks", "count", released, "burnHeight", vm.chain.BurnBlockHeight())
	}
	return released, err
}
