// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
)

func fold2(op func(a, b clarity.Value) (clarity.Value, error)) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		acc := args[0]
		for _, v := range args[1:] {
			var err error
			if acc, err = op(acc, v); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

var (
	nativeAdd = fold2(clarity.Add)
	nativeMul = fold2(clarity.Mul)
	nativeDiv = fold2(clarity.Div)
)

// nativeSub negates a single int argument.
func nativeSub(c *evalCtx, e *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	if len(args) == 1 {
		if _, ok := args[0].(clarity.Int); !ok {
			return nil, fmt.Errorf("%w: cannot negate %s", ErrBadArgument, clarity.KindName(args[0]))
		}
		return clarity.Sub(clarity.NewInt(0), args[0])
	}
	return fold2(clarity.Sub)(c, e, args)
}

func nativeMod(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Mod(args[0], args[1])
}

func nativePow(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Pow(args[0], args[1])
}

func nativeSqrti(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Sqrti(args[0])
}

func nativeLog2(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Log2(args[0])
}

func comparison(pred func(int) bool) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		c, err := clarity.Compare(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return clarity.Bool(pred(c)), nil
	}
}

func bitwise(op string) nativeFunc {
	return fold2(func(a, b clarity.Value) (clarity.Value, error) {
		return clarity.Bitwise(op, a, b)
	})
}

func nativeBitNot(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.BitNot(args[0])
}

func shift(left bool) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		amount, ok := args[1].(clarity.UInt)
		if !ok {
			return nil, fmt.Errorf("%w: shift amount must be uint", ErrBadArgument)
		}
		return clarity.Shift(left, args[0], amount)
	}
}

func nativeToInt(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	u, ok := args[0].(clarity.UInt)
	if !ok {
		return nil, fmt.Errorf("%w: to-int expects uint", ErrBadArgument)
	}
	return clarity.ToInt(u)
}

func nativeToUInt(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	i, ok := args[0].(clarity.Int)
	if !ok {
		return nil, fmt.Errorf("%w: to-uint expects int", ErrBadArgument)
	}
	return clarity.ToUInt(i)
}

func nativeNot(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	b, ok := args[0].(clarity.Bool)
	if !ok {
		return nil, fmt.Errorf("%w: not expects bool", ErrBadArgument)
	}
	return !b, nil
}

func nativeIsEq(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	for _, v := range args[1:] {
		if !clarity.Equal(args[0], v) {
			return clarity.False, nil
		}
	}
	return clarity.True, nil
}

func asBool(v clarity.Value) (bool, error) {
	b, ok := v.(clarity.Bool)
	if !ok {
		return false, fmt.Errorf("%w: expected bool, got %s", ErrBadArgument, clarity.KindName(v))
	}
	return bool(b), nil
}

func asUInt(v clarity.Value) (clarity.UInt, error) {
	u, ok := v.(clarity.UInt)
	if !ok {
		return clarity.UInt{}, fmt.Errorf("%w: expected uint, got %s", ErrBadArgument, clarity.KindName(v))
	}
	return u, nil
}

func asPrincipal(v clarity.Value) (clarity.Principal, error) {
	switch p := v.(type) {
	case clarity.Principal:
		return p, nil
	case clarity.CallableContract:
		return p.Contract, nil
	}
	return clarity.Principal{}, fmt.Errorf("%w: expected principal, got %s", ErrBadArgument, clarity.KindName(v))
}

// shortCircuit evaluates the arguments of and/or until one equals stop.
func shortCircuit(stop bool) evalFunc {
	return func(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
		for _, arg := range e.Args() {
			v, err := c.eval(arg, sc)
			if err != nil {
				return nil, err
			}
			b, err := asBool(v)
			if err != nil {
				return nil, err
			}
			if b == stop {
				c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 0)
				return clarity.Bool(stop), nil
			}
		}
		c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 1)
		return clarity.Bool(!stop), nil
	}
}

var (
	specialAnd = shortCircuit(false)
	specialOr  = shortCircuit(true)
)
