// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
)

func specialIf(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[0], sc)
	if err != nil {
		return nil, err
	}
	cond, err := asBool(v)
	if err != nil {
		return nil, err
	}
	if cond {
		c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 0)
		return c.eval(args[1], sc)
	}
	c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 1)
	return c.eval(args[2], sc)
}

func specialLet(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	for _, b := range args[0].Children {
		v, err := c.eval(b.Children[1], sc)
		if err != nil {
			return nil, err
		}
		sc = sc.bind(b.Children[0].Text, v)
	}
	return c.evalBody(args[1:], sc)
}

func specialBegin(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	return c.evalBody(e.Args(), sc)
}

func specialMatch(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[0], sc)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case clarity.Optional:
		if len(args) != 4 {
			return nil, fmt.Errorf("%w: match on an optional takes a some and a none branch", ErrArgumentCount)
		}
		if x.IsNone() {
			c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 1)
			return c.eval(args[3], sc)
		}
		c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 0)
		return c.eval(args[2], sc.bind(args[1].Text, x.Some))
	case clarity.Response:
		if len(args) != 5 {
			return nil, fmt.Errorf("%w: match on a response takes an ok and an err branch", ErrArgumentCount)
		}
		if x.Ok {
			c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 0)
			return c.eval(args[2], sc.bind(args[1].Text, x.Value))
		}
		c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 1)
		return c.eval(args[4], sc.bind(args[3].Text, x.Value))
	}
	return nil, fmt.Errorf("%w: match expects an optional or a response, got %s", ErrBadArgument, clarity.KindName(v))
}

func specialAsserts(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[0], sc)
	if err != nil {
		return nil, err
	}
	ok, err := asBool(v)
	if err != nil {
		return nil, err
	}
	if ok {
		c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 0)
		return clarity.True, nil
	}
	c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 1)
	thrown, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	return nil, &earlyReturn{value: thrown}
}

// unwrapped returns the inner value of v and whether it was some or ok.
// When wantErr is set, the err value of a response is unwrapped instead.
func unwrapped(v clarity.Value, wantErr bool) (clarity.Value, bool, error) {
	switch x := v.(type) {
	case clarity.Optional:
		if wantErr {
			break
		}
		return x.Some, !x.IsNone(), nil
	case clarity.Response:
		if wantErr {
			return x.Value, !x.Ok, nil
		}
		return x.Value, x.Ok, nil
	}
	if wantErr {
		return nil, false, fmt.Errorf("%w: expected a response, got %s", ErrBadArgument, clarity.KindName(v))
	}
	return nil, false, fmt.Errorf("%w: expected an optional or a response, got %s", ErrBadArgument, clarity.KindName(v))
}

func unwrapOr(wantErr bool) evalFunc {
	return func(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
		args := e.Args()
		v, err := c.eval(args[0], sc)
		if err != nil {
			return nil, err
		}
		inner, ok, err := unwrapped(v, wantErr)
		if err != nil {
			return nil, err
		}
		if ok {
			c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 0)
			return inner, nil
		}
		c.vm.coverage.HitBranch(c.contractID(), uint32(e.ID), 1)
		thrown, err := c.eval(args[1], sc)
		if err != nil {
			return nil, err
		}
		return nil, &earlyReturn{value: thrown}
	}
}

var (
	specialUnwrap    = unwrapOr(false)
	specialUnwrapErr = unwrapOr(true)
)

// nativeTry returns early with none or the err response itself.
func nativeTry(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	inner, ok, err := unwrapped(args[0], false)
	if err != nil {
		return nil, err
	}
	if ok {
		return inner, nil
	}
	return nil, &earlyReturn{value: args[0]}
}

func nativeUnwrapPanic(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	inner, ok, err := unwrapped(args[0], false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnwrapFailed, args[0])
	}
	return inner, nil
}

func nativeUnwrapErrPanic(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	inner, ok, err := unwrapped(args[0], true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnwrapFailed, args[0])
	}
	return inner, nil
}

func nativeDefaultTo(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	o, ok := args[1].(clarity.Optional)
	if !ok {
		return nil, fmt.Errorf("%w: default-to expects an optional", ErrBadArgument)
	}
	if o.IsNone() {
		return args[0], nil
	}
	return o.Some, nil
}

func nativeSome(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Some(args[0]), nil
}

func nativeOk(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Ok(args[0]), nil
}

func nativeErr(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.Err(args[0]), nil
}

func nativeList(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	return clarity.NewList(args)
}

func specialTuple(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	fields := make([]clarity.TupleField, 0, len(e.Args()))
	for _, f := range e.Args() {
		v, err := c.eval(f.Children[1], sc)
		if err != nil {
			return nil, err
		}
		fields = append(fields, clarity.TupleField{Name: f.Children[0].Text, Value: v})
	}
	return clarity.NewTuple(fields...)
}

func isVariant(pred func(clarity.Value) (bool, bool)) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		b, ok := pred(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: unexpected %s", ErrBadArgument, clarity.KindName(args[0]))
		}
		return clarity.Bool(b), nil
	}
}

var (
	nativeIsSome = isVariant(func(v clarity.Value) (bool, bool) {
		o, ok := v.(clarity.Optional)
		return ok && !o.IsNone(), ok
	})
	nativeIsNone = isVariant(func(v clarity.Value) (bool, bool) {
		o, ok := v.(clarity.Optional)
		return ok && o.IsNone(), ok
	})
	nativeIsOk = isVariant(func(v clarity.Value) (bool, bool) {
		r, ok := v.(clarity.Response)
		return ok && r.Ok, ok
	})
	nativeIsErr = isVariant(func(v clarity.Value) (bool, bool) {
		r, ok := v.(clarity.Response)
		return ok && !r.Ok, ok
	})
)

// specialGet reads a tuple field; on an optional tuple it maps over the
// option.
func specialGet(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	v, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	name := args[0].Text
	switch x := v.(type) {
	case clarity.Tuple:
		f, ok := x.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: tuple has no field '%s'", ErrBadArgument, name)
		}
		return f, nil
	case clarity.Optional:
		if x.IsNone() {
			return clarity.None, nil
		}
		t, ok := x.Some.(clarity.Tuple)
		if !ok {
			break
		}
		f, ok := t.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: tuple has no field '%s'", ErrBadArgument, name)
		}
		return clarity.Some(f), nil
	}
	return nil, fmt.Errorf("%w: get expects a tuple, got %s", ErrBadArgument, clarity.KindName(v))
}

func nativeMerge(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	a, ok1 := args[0].(clarity.Tuple)
	b, ok2 := args[1].(clarity.Tuple)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: merge expects two tuples", ErrBadArgument)
	}
	return a.Merge(b), nil
}

func nativePrint(c *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	c.emit(&PrintEvent{Contract: c.frame.contract.ID, Value: args[0]})
	return args[0], nil
}
