// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
)

// typeEnv binds local names to their inferred types.
type typeEnv struct {
	name   string
	t      clarity.TypeSignature
	parent *typeEnv
}

func (env *typeEnv) bind(name string, t clarity.TypeSignature) *typeEnv {
	return &typeEnv{name: name, t: t, parent: env}
}

func (env *typeEnv) lookup(name string) (clarity.TypeSignature, bool) {
	for ; env != nil; env = env.parent {
		if env.name == name {
			return env.t, true
		}
	}
	return clarity.NoType, false
}

// inferOutputs fills in the output type of every function. Inference is
// best effort: an expression whose type cannot be determined statically is
// NoType and is checked at run time instead.
func (a *analyzer) inferOutputs() {
	a.inferring = make(map[string]bool)
	for _, name := range a.contract.order {
		if fn, ok := a.contract.Functions[name]; ok {
			a.output(fn)
		}
	}
}

func (a *analyzer) output(fn *Function) clarity.TypeSignature {
	if fn.Output.Kind != clarity.NoTypeKind || a.inferring[fn.Name] {
		return fn.Output
	}
	a.inferring[fn.Name] = true
	defer delete(a.inferring, fn.Name)

	var env *typeEnv
	for _, p := range fn.Params {
		env = env.bind(p.Name, p.Type)
	}
	fn.Output = a.inferBody(fn.Body, env)
	return fn.Output
}

func (a *analyzer) inferBody(body []*ast.Expr, env *typeEnv) clarity.TypeSignature {
	if len(body) == 0 {
		return clarity.NoType
	}
	return a.infer(body[len(body)-1], env)
}

func supertype(types ...clarity.TypeSignature) clarity.TypeSignature {
	out := clarity.NoType
	for _, t := range types {
		st, err := clarity.LeastSupertype(out, t)
		if err != nil {
			return clarity.NoType
		}
		out = st
	}
	return out
}

func (a *analyzer) infer(e *ast.Expr, env *typeEnv) clarity.TypeSignature {
	c := a.contract
	switch e.Kind {
	case ast.Atom:
		if t, ok := env.lookup(e.Text); ok {
			return t
		}
		switch e.Text {
		case "true", "false":
			return clarity.BoolType
		case "none":
			return clarity.OptionalOf(clarity.NoType)
		}
		if k, ok := c.Constants[e.Text]; ok {
			return a.infer(k.Expr, nil)
		}
		return keywordType(e.Text)
	case ast.Tuple:
		fields := make([]clarity.FieldType, 0, len(e.Children)/2)
		for i := 0; i+1 < len(e.Children); i += 2 {
			t := a.infer(e.Children[i+1], env)
			if t.Kind == clarity.NoTypeKind {
				return clarity.NoType
			}
			fields = append(fields, clarity.FieldType{Name: e.Children[i].Text, Type: t})
		}
		return clarity.TupleOf(fields...)
	case ast.List:
	default:
		issuer := c.ID.Standard()
		v, err := clarity.FromLiteral(e, &issuer)
		if err != nil {
			return clarity.NoType
		}
		return v.Type()
	}

	head := e.Head()
	args := e.Args()
	if fn, ok := c.Functions[head]; ok {
		return a.output(fn)
	}
	arg := func(i int) clarity.TypeSignature {
		if i >= len(args) {
			return clarity.NoType
		}
		return a.infer(args[i], env)
	}
	switch head {
	case "ok":
		return clarity.ResponseOf(arg(0), clarity.NoType)
	case "err":
		return clarity.ResponseOf(clarity.NoType, arg(0))
	case "some":
		return clarity.OptionalOf(arg(0))
	case "+", "-", "*", "/", "mod", "pow", "sqrti", "log2", "xor",
		"bit-and", "bit-or", "bit-xor", "bit-not", "bit-shift-left", "bit-shift-right":
		return arg(0)
	case "<", ">", "<=", ">=", "not", "and", "or", "is-eq", "is-some", "is-none", "is-ok", "is-err",
		"is-standard", "secp256k1-verify", "asserts!", "map-set", "map-insert", "map-delete", "var-set":
		return clarity.BoolType
	case "to-int", "buff-to-int-be", "buff-to-int-le":
		return clarity.IntType
	case "to-uint", "buff-to-uint-be", "buff-to-uint-le", "len", "stx-get-balance", "ft-get-balance", "ft-get-supply":
		return clarity.UIntType
	case "sha256", "sha512/256", "keccak256":
		return clarity.BufferOf(32)
	case "sha512":
		return clarity.BufferOf(64)
	case "hash160":
		return clarity.BufferOf(20)
	case "stx-transfer?", "stx-transfer-memo?", "stx-burn?", "ft-transfer?", "ft-mint?", "ft-burn?",
		"nft-transfer?", "nft-mint?", "nft-burn?":
		return clarity.ResponseOf(clarity.BoolType, clarity.UIntType)
	case "if":
		return supertype(arg(1), arg(2))
	case "begin", "as-contract", "print":
		return a.inferBody(args, env)
	case "at-block":
		return arg(1)
	case "let":
		if len(args) == 0 || args[0].Kind != ast.List {
			return clarity.NoType
		}
		inner := env
		for _, b := range args[0].Children {
			if len(b.Children) == 2 {
				inner = inner.bind(b.Children[0].Text, a.infer(b.Children[1], inner))
			}
		}
		return a.inferBody(args[1:], inner)
	case "match":
		input := arg(0)
		inner := func(t *clarity.TypeSignature) clarity.TypeSignature {
			if t == nil {
				return clarity.NoType
			}
			return *t
		}
		if len(args) == 4 {
			return supertype(a.infer(args[2], env.bind(args[1].Text, inner(input.Elem))), a.infer(args[3], env))
		}
		if len(args) == 5 {
			return supertype(
				a.infer(args[2], env.bind(args[1].Text, inner(input.Elem))),
				a.infer(args[4], env.bind(args[3].Text, inner(input.ErrType))),
			)
		}
	case "unwrap!", "unwrap-panic", "try!":
		if t := arg(0); t.Elem != nil && (t.Kind == clarity.OptionalKind || t.Kind == clarity.ResponseKind) {
			return *t.Elem
		}
	case "unwrap-err!", "unwrap-err-panic":
		if t := arg(0); t.Kind == clarity.ResponseKind {
			return *t.ErrType
		}
	case "default-to":
		return arg(0)
	case "var-get":
		if v, ok := c.Vars[args[0].Text]; ok {
			return v.Type
		}
	case "map-get?":
		if m, ok := c.Maps[args[0].Text]; ok {
			return clarity.OptionalOf(m.Value)
		}
	case "nft-get-owner?":
		return clarity.OptionalOf(clarity.PrincipalType)
	case "get":
		t := arg(1)
		if t.Kind == clarity.OptionalKind && t.Elem != nil {
			t = *t.Elem
		}
		for _, f := range t.Fields {
			if f.Name == args[0].Text {
				if arg(1).Kind == clarity.OptionalKind {
					return clarity.OptionalOf(f.Type)
				}
				return f.Type
			}
		}
	case "contract-call?":
		if args[0].Kind == ast.ContractRefLit || args[0].Kind == ast.PrincipalLit {
			issuer := c.ID.Standard()
			v, err := clarity.FromLiteral(args[0], &issuer)
			if err != nil {
				return clarity.NoType
			}
			callee, err := a.vm.Contract(v.(clarity.Principal))
			if err != nil {
				return clarity.NoType
			}
			if fn, ok := callee.Functions[args[1].Text]; ok {
				return fn.Output
			}
		}
	}
	return clarity.NoType
}

func keywordType(name string) clarity.TypeSignature {
	switch name {
	case "tx-sender", "contract-caller":
		return clarity.PrincipalType
	case "tx-sponsor?":
		return clarity.OptionalOf(clarity.PrincipalType)
	case "block-height", "stacks-block-height", "tenure-height", "burn-block-height", "stacks-block-time", "chain-id":
		return clarity.UIntType
	case "is-in-mainnet", "is-in-regtest":
		return clarity.BoolType
	}
	return clarity.NoType
}
