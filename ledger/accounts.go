// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"

	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/simnet/clarity"
)

const (
	balanceKind byte = 'b'
	lockKind    byte = 'l'
	nonceKind   byte = 'n'
)

// Lock is a stacking lock on part of an account's STX.
type Lock struct {
	Amount       clarity.UInt `json:"amount"`
	UnlockHeight uint32       `json:"unlockHeight"`
}

func accountKey(kind byte, p clarity.Principal) []byte {
	return append([]byte{kind}, p.ID()...)
}

// STXBalance returns the unlocked STX of p. Unknown accounts hold zero.
func (s *Store) STXBalance(p clarity.Principal) (clarity.UInt, error) {
	b, err := s.get(stxPrefix, accountKey(balanceKind, p))
	if errors.Is(err, ErrNotFound) {
		return clarity.NewUInt(0), nil
	}
	if err != nil {
		return clarity.UInt{}, err
	}
	return clarity.UIntFromBytes(b), nil
}

func (s *Store) SetSTXBalance(p clarity.Principal, amount clarity.UInt) error {
	b := amount.Bytes16()
	return s.put(stxPrefix, accountKey(balanceKind, p), b[:])
}

// STXLock returns the lock on p, or nil.
func (s *Store) STXLock(p clarity.Principal) (*Lock, error) {
	b, err := s.get(stxPrefix, accountKey(lockKind, p))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pk := wrappers.Packer{Bytes: b}
	amount := pk.UnpackFixedBytes(16)
	h := pk.UnpackInt()
	if pk.Errored() {
		return nil, pk.Err
	}
	return &Lock{Amount: clarity.UIntFromBytes(amount), UnlockHeight: h}, nil
}

func (s *Store) SetSTXLock(p clarity.Principal, lock *Lock) error {
	if lock == nil {
		return s.delete(stxPrefix, accountKey(lockKind, p))
	}
	amount := lock.Amount.Bytes16()
	pk := newPacker(16 + wrappers.IntLen)
	pk.PackFixedBytes(amount[:])
	pk.PackInt(lock.UnlockHeight)
	if pk.Errored() {
		return pk.Err
	}
	return s.put(stxPrefix, accountKey(lockKind, p), pk.Bytes)
}

// Locks lists every live lock keyed by principal id.
func (s *Store) Locks() (map[string]*Lock, error) {
	locks := make(map[string]*Lock)
	err := s.scan(stxPrefix, []byte{lockKind}, func(key, val []byte) error {
		pk := wrappers.Packer{Bytes: val}
		amount := pk.UnpackFixedBytes(16)
		h := pk.UnpackInt()
		if pk.Errored() {
			return pk.Err
		}
		locks[string(key[1:])] = &Lock{Amount: clarity.UIntFromBytes(amount), UnlockHeight: h}
		return nil
	})
	return locks, err
}

// Nonce is the number of transactions p has sent.
func (s *Store) Nonce(p clarity.Principal) (uint64, error) {
	b, err := s.get(stxPrefix, accountKey(nonceKind, p))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pk := wrappers.Packer{Bytes: b}
	n := pk.UnpackLong()
	return n, pk.Err
}

// IncrementNonce bumps the nonce of p and returns the previous value.
func (s *Store) IncrementNonce(p clarity.Principal) (uint64, error) {
	n, err := s.Nonce(p)
	if err != nil {
		return 0, err
	}
	pk := newPacker(wrappers.LongLen)
	pk.PackLong(n + 1)
	if pk.Errored() {
		return 0, pk.Err
	}
	return n, s.put(stxPrefix, accountKey(nonceKind, p), pk.Bytes)
}
