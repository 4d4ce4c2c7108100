// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"crypto/sha512"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
)

func hashSHA256(b []byte) []byte { return hashing.ComputeHash256(b) }

func hashSHA512(b []byte) []byte {
	h := sha512.Sum512(b)
	return h[:]
}

func hashSHA512t256(b []byte) []byte {
	h := sha512.Sum512_256(b)
	return h[:]
}

func hashKeccak256(b []byte) []byte { return crypto.Keccak256(b) }

func hashHash160(b []byte) []byte {
	return hashing.ComputeHash160(hashing.ComputeHash256(b))
}

// hashInput is the preimage of a hash builtin: integers hash as their 16-byte
// little-endian encoding.
func hashInput(v clarity.Value) ([]byte, error) {
	var be [16]byte
	switch x := v.(type) {
	case clarity.Buffer:
		return x.Data, nil
	case clarity.Int:
		be = x.Bytes16()
	case clarity.UInt:
		be = x.Bytes16()
	default:
		return nil, fmt.Errorf("%w: cannot hash %s", ErrBadArgument, clarity.KindName(v))
	}
	le := make([]byte, 16)
	for i := range be {
		le[i] = be[15-i]
	}
	return le, nil
}

func hashFunc(fn func([]byte) []byte) nativeFunc {
	return func(c *evalCtx, e *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		b, err := hashInput(args[0])
		if err != nil {
			return nil, err
		}
		if err := c.vm.costs.Charge(e.Head(), uint64(len(b))); err != nil {
			return nil, err
		}
		return clarity.Buffer{Data: fn(b)}, nil
	}
}

func buffer(v clarity.Value, sizes ...int) ([]byte, bool) {
	b, ok := v.(clarity.Buffer)
	if !ok {
		return nil, false
	}
	for _, n := range sizes {
		if len(b.Data) == n {
			return b.Data, true
		}
	}
	return nil, false
}

func nativeSecp256k1Recover(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	hash, ok := buffer(args[0], 32)
	if !ok {
		return nil, fmt.Errorf("%w: message hash must be (buff 32)", ErrBadArgument)
	}
	sig, ok := buffer(args[1], 65)
	if !ok {
		return errCode(2), nil
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return errCode(1), nil
	}
	return clarity.Ok(clarity.Buffer{Data: crypto.CompressPubkey(pub)}), nil
}

func nativeSecp256k1Verify(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	hash, ok := buffer(args[0], 32)
	if !ok {
		return nil, fmt.Errorf("%w: message hash must be (buff 32)", ErrBadArgument)
	}
	sig, ok := buffer(args[1], 64, 65)
	if !ok {
		return clarity.False, nil
	}
	pub, ok := buffer(args[2], 33)
	if !ok {
		return clarity.False, nil
	}
	return clarity.Bool(crypto.VerifySignature(pub, hash, sig[:64])), nil
}

// nativePrincipalOf derives the standard principal of a compressed public key
// for the network the session runs on.
func nativePrincipalOf(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	pub, ok := buffer(args[0], 33)
	if !ok {
		return nil, fmt.Errorf("%w: principal-of? expects (buff 33)", ErrBadArgument)
	}
	if _, err := crypto.DecompressPubkey(pub); err != nil {
		return errCode(1), nil
	}
	version := clarity.VersionTestnetSingleSig
	if c.vm.mainnet && c.frame.contract.Version >= clarity.Clarity2 {
		version = clarity.VersionMainnetSingleSig
	}
	return clarity.Ok(clarity.StandardPrincipal(version, pub)), nil
}
