// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"bytes"
	"fmt"

	"github.com/ava-labs/simnet/clarity/ast"
)

// Equal reports structural equality. Values of different kinds are unequal.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		return ok && x.v.Eq(&y.v)
	case UInt:
		y, ok := b.(UInt)
		return ok && x.v.Eq(&y.v)
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Buffer:
		y, ok := b.(Buffer)
		return ok && bytes.Equal(x.Data, y.Data)
	case StringASCII:
		y, ok := b.(StringASCII)
		return ok && bytes.Equal(x.Data, y.Data)
	case StringUTF8:
		y, ok := b.(StringUTF8)
		return ok && x.Data == y.Data
	case Principal:
		switch y := b.(type) {
		case Principal:
			return x == y
		case CallableContract:
			return x == y.Contract
		}
		return false
	case CallableContract:
		return Equal(x.Contract, b)
	case Optional:
		y, ok := b.(Optional)
		if !ok || (x.Some == nil) != (y.Some == nil) {
			return false
		}
		return x.Some == nil || Equal(x.Some, y.Some)
	case Response:
		y, ok := b.(Response)
		return ok && x.Ok == y.Ok && Equal(x.Value, y.Value)
	case List:
		y, ok := b.(List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := range x.names {
			if x.names[i] != y.names[i] || !Equal(x.values[i], y.values[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ParseValue reads a value from its literal text form, the inverse of
// Value.String.
func ParseValue(src string) (Value, error) {
	e, err := ast.ParseOne(src)
	if err != nil {
		return nil, err
	}
	return FromLiteral(e, nil)
}

// FromLiteral converts a constant expression to a value. Relative contract
// references (.name) resolve against issuer, which may be nil when none are
// expected.
func FromLiteral(e *ast.Expr, issuer *Principal) (Value, error) {
	return fromLiteral(e, issuer, 0)
}

func literalError(e *ast.Expr, format string, args ...interface{}) error {
	return fmt.Errorf("%w at %s: %s", ErrInvalidLiteral, e.Span, fmt.Sprintf(format, args...))
}

func fromLiteral(e *ast.Expr, issuer *Principal, depth int) (Value, error) {
	if depth > ast.MaxDepth {
		return nil, literalError(e, "nesting too deep")
	}
	switch e.Kind {
	case ast.IntLit:
		return ParseInt(e.Text)
	case ast.UIntLit:
		return ParseUInt(e.Text)
	case ast.BufferLit:
		return Buffer{Data: e.Bytes}, nil
	case ast.ASCIILit:
		return StringASCII{Data: []byte(e.Text)}, nil
	case ast.UTF8Lit:
		return StringUTF8{Data: e.Text}, nil
	case ast.PrincipalLit:
		p, err := ParsePrincipal(e.Text)
		if err != nil {
			return nil, err
		}
		if e.Name != "" {
			if err := ValidateContractName(e.Name); err != nil {
				return nil, err
			}
			p.Name = e.Name
		}
		return p, nil
	case ast.ContractRefLit:
		if issuer == nil {
			return nil, literalError(e, "relative contract reference without issuer")
		}
		if err := ValidateContractName(e.Name); err != nil {
			return nil, err
		}
		return issuer.Standard().Contract(e.Name), nil
	case ast.Atom:
		switch e.Text {
		case "true":
			return True, nil
		case "false":
			return False, nil
		case "none":
			return None, nil
		}
		return nil, literalError(e, "%q is not a constant", e.Text)
	case ast.Tuple:
		fields := make([]TupleField, 0, len(e.Children)/2)
		for i := 0; i+1 < len(e.Children); i += 2 {
			v, err := fromLiteral(e.Children[i+1], issuer, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, TupleField{Name: e.Children[i].Text, Value: v})
		}
		return NewTuple(fields...)
	case ast.List:
	default:
		return nil, literalError(e, "unexpected %s", e.Kind)
	}

	args := e.Args()
	switch head := e.Head(); head {
	case "some", "ok", "err":
		if len(args) != 1 {
			return nil, literalError(e, "%s expects one argument", head)
		}
		inner, err := fromLiteral(args[0], issuer, depth+1)
		if err != nil {
			return nil, err
		}
		switch head {
		case "some":
			return Some(inner), nil
		case "ok":
			return Ok(inner), nil
		}
		return Err(inner), nil
	case "list":
		items := make([]Value, len(args))
		for i, arg := range args {
			v, err := fromLiteral(arg, issuer, depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return NewList(items)
	case "tuple":
		fields := make([]TupleField, 0, len(args))
		for _, arg := range args {
			if arg.Kind != ast.List || len(arg.Children) != 2 || arg.Children[0].Kind != ast.Atom {
				return nil, literalError(arg, "tuple fields are (name value) pairs")
			}
			v, err := fromLiteral(arg.Children[1], issuer, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, TupleField{Name: arg.Children[0].Text, Value: v})
		}
		return NewTuple(fields...)
	}
	return nil, literalError(e, "not a literal")
}
