// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"errors"
	"fmt"
)

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrArithmeticInvalid   = errors.New("invalid arithmetic argument")

	ErrDeserialization  = errors.New("deserialization error")
	ErrEmptyTuple       = errors.New("tuples must have at least one named field")
	ErrInvalidPrincipal = errors.New("invalid principal")
	ErrBadChecksum      = errors.New("c32 checksum mismatch")
	ErrValueTooLarge    = errors.New("value exceeds maximum size")
	ErrInvalidLiteral   = errors.New("expression is not a literal value")
)

// TypeError reports an operation applied to operands of incompatible kinds.
type TypeError struct {
	Op    string
	Left  string
	Right string
}

func (e *TypeError) Error() string {
	if e.Right == "" {
		return fmt.Sprintf("%s: unexpected operand of type %s", e.Op, e.Left)
	}
	return fmt.Sprintf("%s: type mismatch between %s and %s", e.Op, e.Left, e.Right)
}

func typeError(op string, left, right Value) *TypeError {
	e := &TypeError{Op: op, Left: KindName(left)}
	if right != nil {
		e.Right = KindName(right)
	}
	return e
}

// DuplicateFieldError reports a tuple constructed with a repeated name.
type DuplicateFieldError struct {
	Name string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate tuple field %q", e.Name)
}

// KindName is the short name of the value's kind, as used in error messages.
func KindName(v Value) string {
	switch v.(type) {
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Bool:
		return "bool"
	case Buffer:
		return "buff"
	case StringASCII:
		return "string-ascii"
	case StringUTF8:
		return "string-utf8"
	case Optional:
		return "optional"
	case Response:
		return "response"
	case List:
		return "list"
	case Tuple:
		return "tuple"
	case Principal, CallableContract:
		return "principal"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}
