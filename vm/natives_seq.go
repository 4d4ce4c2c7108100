// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"
	"unicode/utf8"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
)

// elements splits a sequence into its items. Buffers and strings yield
// one-element sequences of the same kind.
func elements(v clarity.Value) ([]clarity.Value, error) {
	switch x := v.(type) {
	case clarity.List:
		return x.Items, nil
	case clarity.Buffer:
		out := make([]clarity.Value, len(x.Data))
		for i, b := range x.Data {
			out[i] = clarity.Buffer{Data: []byte{b}}
		}
		return out, nil
	case clarity.StringASCII:
		out := make([]clarity.Value, len(x.Data))
		for i, b := range x.Data {
			out[i] = clarity.StringASCII{Data: []byte{b}}
		}
		return out, nil
	case clarity.StringUTF8:
		out := make([]clarity.Value, 0, utf8.RuneCountInString(x.Data))
		for _, r := range x.Data {
			out = append(out, clarity.StringUTF8{Data: string(r)})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected a sequence, got %s", ErrBadArgument, clarity.KindName(v))
}

// rebuild joins items into a sequence of the same kind as like.
func rebuild(like clarity.Value, items []clarity.Value) (clarity.Value, error) {
	switch like.(type) {
	case clarity.List:
		return clarity.NewList(items)
	case clarity.Buffer:
		var out []byte
		for _, item := range items {
			b, ok := item.(clarity.Buffer)
			if !ok {
				return nil, fmt.Errorf("%w: expected buff, got %s", ErrBadArgument, clarity.KindName(item))
			}
			out = append(out, b.Data...)
		}
		return clarity.Buffer{Data: out}, nil
	case clarity.StringASCII:
		var out []byte
		for _, item := range items {
			s, ok := item.(clarity.StringASCII)
			if !ok {
				return nil, fmt.Errorf("%w: expected string-ascii, got %s", ErrBadArgument, clarity.KindName(item))
			}
			out = append(out, s.Data...)
		}
		return clarity.StringASCII{Data: out}, nil
	case clarity.StringUTF8:
		var out string
		for _, item := range items {
			s, ok := item.(clarity.StringUTF8)
			if !ok {
				return nil, fmt.Errorf("%w: expected string-utf8, got %s", ErrBadArgument, clarity.KindName(item))
			}
			out += s.Data
		}
		return clarity.StringUTF8{Data: out}, nil
	}
	return nil, fmt.Errorf("%w: expected a sequence, got %s", ErrBadArgument, clarity.KindName(like))
}

// callable resolves the function argument of map, filter and fold.
func (c *evalCtx) callable(e *ast.Expr) (func(args []clarity.Value) (clarity.Value, error), error) {
	contract := c.frame.contract
	name := e.Text
	if fn, ok := contract.Functions[name]; ok {
		return func(args []clarity.Value) (clarity.Value, error) {
			return c.callFunction(fn, args, e)
		}, nil
	}
	b, ok := lookupBuiltin(name, contract.Version, contract.Epoch)
	if !ok || b.fn == nil {
		return nil, runtimeError(e, "use of unresolved function '%s'", name)
	}
	return func(args []clarity.Value) (clarity.Value, error) {
		if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
			return nil, fmt.Errorf("%w: %s got %d", ErrArgumentCount, name, len(args))
		}
		if err := c.vm.costs.Charge(name, uint64(len(args))); err != nil {
			return nil, err
		}
		return b.fn(c, e, args)
	}, nil
}

func nativeLen(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	items, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	return clarity.NewUInt(uint64(len(items))), nil
}

// specialMap applies a function across one or more sequences, stopping at the
// shortest, and always returns a list.
func specialMap(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	fn, err := c.callable(args[0])
	if err != nil {
		return nil, err
	}
	seqs := make([][]clarity.Value, len(args)-1)
	n := -1
	for i, arg := range args[1:] {
		v, err := c.eval(arg, sc)
		if err != nil {
			return nil, err
		}
		if seqs[i], err = elements(v); err != nil {
			return nil, err
		}
		if n < 0 || len(seqs[i]) < n {
			n = len(seqs[i])
		}
	}
	out := make([]clarity.Value, n)
	for j := 0; j < n; j++ {
		call := make([]clarity.Value, len(seqs))
		for i := range seqs {
			call[i] = seqs[i][j]
		}
		if out[j], err = fn(call); err != nil {
			return nil, err
		}
	}
	return clarity.NewList(out)
}

func specialFilter(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	fn, err := c.callable(args[0])
	if err != nil {
		return nil, err
	}
	seq, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	items, err := elements(seq)
	if err != nil {
		return nil, err
	}
	var kept []clarity.Value
	for _, item := range items {
		v, err := fn([]clarity.Value{item})
		if err != nil {
			return nil, err
		}
		keep, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if keep {
			kept = append(kept, item)
		}
	}
	return rebuild(seq, kept)
}

func specialFold(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	fn, err := c.callable(args[0])
	if err != nil {
		return nil, err
	}
	seq, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	items, err := elements(seq)
	if err != nil {
		return nil, err
	}
	acc, err := c.eval(args[2], sc)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if acc, err = fn([]clarity.Value{item, acc}); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func nativeAppend(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	l, ok := args[0].(clarity.List)
	if !ok {
		return nil, fmt.Errorf("%w: append expects a list", ErrBadArgument)
	}
	items := make([]clarity.Value, len(l.Items), len(l.Items)+1)
	copy(items, l.Items)
	return clarity.NewList(append(items, args[1]))
}

func nativeConcat(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	if clarity.KindName(args[0]) != clarity.KindName(args[1]) {
		return nil, fmt.Errorf("%w: cannot concat %s and %s", ErrBadArgument, clarity.KindName(args[0]), clarity.KindName(args[1]))
	}
	a, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	b, err := elements(args[1])
	if err != nil {
		return nil, err
	}
	return rebuild(args[0], append(append([]clarity.Value{}, a...), b...))
}

func nativeAsMaxLen(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	items, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	n, err := asUInt(args[1])
	if err != nil {
		return nil, err
	}
	if max, ok := n.Uint64(); ok && uint64(len(items)) > max {
		return clarity.None, nil
	}
	return clarity.Some(args[0]), nil
}

// index converts v to a position below n.
func index(v clarity.Value, n int) (int, bool, error) {
	u, err := asUInt(v)
	if err != nil {
		return 0, false, err
	}
	i, ok := u.Uint64()
	if !ok || i >= uint64(n) {
		return 0, false, nil
	}
	return int(i), true, nil
}

func nativeElementAt(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	items, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	i, ok, err := index(args[1], len(items))
	if err != nil || !ok {
		return clarity.None, err
	}
	return clarity.Some(items[i]), nil
}

func nativeIndexOf(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	items, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if clarity.Equal(item, args[1]) {
			return clarity.Some(clarity.NewUInt(uint64(i))), nil
		}
	}
	return clarity.None, nil
}

func nativeSlice(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	items, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	left, ok, err := index(args[1], len(items)+1)
	if err != nil || !ok {
		return clarity.None, err
	}
	right, ok, err := index(args[2], len(items)+1)
	if err != nil || !ok || right < left {
		return clarity.None, err
	}
	v, err := rebuild(args[0], items[left:right])
	if err != nil {
		return nil, err
	}
	return clarity.Some(v), nil
}

func nativeReplaceAt(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	items, err := elements(args[0])
	if err != nil {
		return nil, err
	}
	i, ok, err := index(args[1], len(items))
	if err != nil || !ok {
		return clarity.None, err
	}
	if _, isList := args[0].(clarity.List); !isList {
		elem, err := elements(args[2])
		if err != nil {
			return nil, err
		}
		if len(elem) != 1 {
			return nil, fmt.Errorf("%w: replace-at? expects a single element", ErrBadArgument)
		}
	}
	out := make([]clarity.Value, len(items))
	copy(out, items)
	out[i] = args[2]
	v, err := rebuild(args[0], out)
	if err != nil {
		return nil, err
	}
	return clarity.Some(v), nil
}

func intToString(utf bool) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		var s string
		switch x := args[0].(type) {
		case clarity.Int:
			s = x.String()
		case clarity.UInt:
			s = x.String()[1:]
		default:
			return nil, fmt.Errorf("%w: expected an integer, got %s", ErrBadArgument, clarity.KindName(args[0]))
		}
		if utf {
			return clarity.StringUTF8{Data: s}, nil
		}
		return clarity.StringASCII{Data: []byte(s)}, nil
	}
}

func stringToNumber(signed bool) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		var s string
		switch x := args[0].(type) {
		case clarity.StringASCII:
			s = string(x.Data)
		case clarity.StringUTF8:
			s = x.Data
		default:
			return nil, fmt.Errorf("%w: expected a string, got %s", ErrBadArgument, clarity.KindName(args[0]))
		}
		if signed {
			i, err := clarity.ParseInt(s)
			if err != nil {
				return clarity.None, nil
			}
			return clarity.Some(i), nil
		}
		u, err := clarity.ParseUInt(s)
		if err != nil {
			return clarity.None, nil
		}
		return clarity.Some(u), nil
	}
}

func buffToNumber(signed, bigEndian bool) nativeFunc {
	return func(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
		b, ok := args[0].(clarity.Buffer)
		if !ok || len(b.Data) > 16 {
			return nil, fmt.Errorf("%w: expected (buff 16)", ErrBadArgument)
		}
		data := make([]byte, len(b.Data))
		copy(data, b.Data)
		if !bigEndian {
			for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
				data[i], data[j] = data[j], data[i]
			}
		}
		if signed {
			return clarity.IntFromBytes(data), nil
		}
		return clarity.UIntFromBytes(data), nil
	}
}

func nativeToConsensusBuff(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	b, err := clarity.Serialize(args[0])
	if err != nil {
		return clarity.None, nil
	}
	return clarity.Some(clarity.Buffer{Data: b}), nil
}

func specialFromConsensusBuff(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
	args := e.Args()
	t, err := clarity.ParseType(args[0])
	if err != nil {
		return nil, err
	}
	v, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	b, ok := v.(clarity.Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: from-consensus-buff? expects a buffer", ErrBadArgument)
	}
	out, err := clarity.Deserialize(b.Data)
	if err != nil || !t.Admits(out) {
		return clarity.None, nil
	}
	return clarity.Some(out), nil
}

// nativeToASCII renders simple values as ASCII text. Values whose rendering
// would not be ASCII give an err.
func nativeToASCII(_ *evalCtx, _ *ast.Expr, args []clarity.Value) (clarity.Value, error) {
	var s string
	switch x := args[0].(type) {
	case clarity.Int, clarity.UInt, clarity.Bool, clarity.Principal, clarity.Buffer:
		s = x.String()
	case clarity.StringUTF8:
		for _, r := range x.Data {
			if r > 0x7f {
				return clarity.Err(clarity.NewUInt(1)), nil
			}
		}
		s = x.Data
	default:
		return nil, fmt.Errorf("%w: to-ascii? cannot convert %s", ErrBadArgument, clarity.KindName(args[0]))
	}
	if p, ok := args[0].(clarity.Principal); ok {
		s = p.ID()
	}
	return clarity.Ok(clarity.StringASCII{Data: []byte(s)}), nil
}
