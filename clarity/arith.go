// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"github.com/holiman/uint256"
)

var (
	one        = uint256.NewInt(1)
	maxInt128  = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 127), one)
	minInt128  = new(uint256.Int).Neg(new(uint256.Int).Lsh(one, 127))
	maxUInt128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 128), one)
	mask128    = maxUInt128
)

func checkInt(x *uint256.Int) (Int, error) {
	if x.Sgt(maxInt128) {
		return Int{}, ErrArithmeticOverflow
	}
	if x.Slt(minInt128) {
		return Int{}, ErrArithmeticUnderflow
	}
	return Int{v: *x}, nil
}

func checkUInt(x *uint256.Int) (UInt, error) {
	if x.Gt(maxUInt128) {
		return UInt{}, ErrArithmeticOverflow
	}
	return UInt{v: *x}, nil
}

// signExtend128 interprets the low 128 bits of x as two's complement.
func signExtend128(x *uint256.Int) *uint256.Int {
	x.And(x, mask128)
	if x.Gt(maxInt128) {
		x.Or(x, new(uint256.Int).Not(mask128))
	}
	return x
}

// Add returns a+b for two ints or two uints.
func Add(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return nil, typeError("+", a, b)
		}
		return checkInt(new(uint256.Int).Add(&x.v, &y.v))
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return nil, typeError("+", a, b)
		}
		return checkUInt(new(uint256.Int).Add(&x.v, &y.v))
	}
	return nil, typeError("+", a, b)
}

func Sub(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return nil, typeError("-", a, b)
		}
		return checkInt(new(uint256.Int).Sub(&x.v, &y.v))
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return nil, typeError("-", a, b)
		}
		if x.v.Lt(&y.v) {
			return nil, ErrArithmeticUnderflow
		}
		return UInt{v: *new(uint256.Int).Sub(&x.v, &y.v)}, nil
	}
	return nil, typeError("-", a, b)
}

func Mul(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return nil, typeError("*", a, b)
		}
		return checkInt(new(uint256.Int).Mul(&x.v, &y.v))
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return nil, typeError("*", a, b)
		}
		return checkUInt(new(uint256.Int).Mul(&x.v, &y.v))
	}
	return nil, typeError("*", a, b)
}

// Div truncates toward zero.
func Div(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return nil, typeError("/", a, b)
		}
		if y.v.IsZero() {
			return nil, ErrDivisionByZero
		}
		return checkInt(new(uint256.Int).SDiv(&x.v, &y.v))
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return nil, typeError("/", a, b)
		}
		if y.v.IsZero() {
			return nil, ErrDivisionByZero
		}
		return UInt{v: *new(uint256.Int).Div(&x.v, &y.v)}, nil
	}
	return nil, typeError("/", a, b)
}

// Mod takes the sign of the dividend.
func Mod(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return nil, typeError("mod", a, b)
		}
		if y.v.IsZero() {
			return nil, ErrDivisionByZero
		}
		return Int{v: *new(uint256.Int).SMod(&x.v, &y.v)}, nil
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return nil, typeError("mod", a, b)
		}
		if y.v.IsZero() {
			return nil, ErrDivisionByZero
		}
		return UInt{v: *new(uint256.Int).Mod(&x.v, &y.v)}, nil
	}
	return nil, typeError("mod", a, b)
}

// Pow raises a to the power b. The exponent must fit in a u32 and be
// non-negative.
func Pow(a, b Value) (Value, error) {
	var exp *uint256.Int
	switch y := b.(type) {
	case Int:
		if y.v.Sign() < 0 {
			return nil, ErrArithmeticInvalid
		}
		exp = y.v.Clone()
	case UInt:
		exp = y.v.Clone()
	default:
		return nil, typeError("pow", a, b)
	}
	if KindName(a) != KindName(b) {
		return nil, typeError("pow", a, b)
	}
	if exp.BitLen() > 32 {
		return nil, ErrArithmeticInvalid
	}
	e := exp.Uint64()

	var check func(*uint256.Int) error
	var base uint256.Int
	switch x := a.(type) {
	case Int:
		base = x.v
		check = func(v *uint256.Int) error { _, err := checkInt(v); return err }
	case UInt:
		base = x.v
		check = func(v *uint256.Int) error { _, err := checkUInt(v); return err }
	}

	result := uint256.NewInt(1)
	for e > 0 {
		if e&1 == 1 {
			result.Mul(result, &base)
			if err := check(result); err != nil {
				return nil, err
			}
		}
		e >>= 1
		if e > 0 {
			base.Mul(&base, &base)
			if err := check(&base); err != nil {
				return nil, err
			}
		}
	}
	if _, ok := a.(Int); ok {
		return Int{v: *result}, nil
	}
	return UInt{v: *result}, nil
}

// Sqrti is the integer square root.
func Sqrti(a Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		if x.v.Sign() < 0 {
			return nil, ErrArithmeticInvalid
		}
		return Int{v: *isqrt(&x.v)}, nil
	case UInt:
		return UInt{v: *isqrt(&x.v)}, nil
	}
	return nil, typeError("sqrti", a, nil)
}

// isqrt runs Newton's method; x is at most 128 bits wide.
func isqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return new(uint256.Int)
	}
	z := new(uint256.Int).Lsh(one, uint((x.BitLen()+1)/2))
	for {
		// y = (z + x/z) / 2
		y := new(uint256.Int).Div(x, z)
		y.Add(y, z)
		y.Rsh(y, 1)
		if !y.Lt(z) {
			return z
		}
		z = y
	}
}

// Log2 is floor(log2(a)); a must be positive.
func Log2(a Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		if x.v.Sign() <= 0 {
			return nil, ErrArithmeticInvalid
		}
		return NewInt(int64(x.v.BitLen() - 1)), nil
	case UInt:
		if x.v.IsZero() {
			return nil, ErrArithmeticInvalid
		}
		return NewUInt(uint64(x.v.BitLen() - 1)), nil
	}
	return nil, typeError("log2", a, nil)
}

// Compare orders two ints, two uints, or two sequences of the same kind
// (lexicographically by byte).
func Compare(a, b Value) (int, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return 0, typeError("compare", a, b)
		}
		switch {
		case x.v.Slt(&y.v):
			return -1, nil
		case x.v.Sgt(&y.v):
			return 1, nil
		}
		return 0, nil
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return 0, typeError("compare", a, b)
		}
		return x.v.Cmp(&y.v), nil
	case StringASCII:
		y, ok := b.(StringASCII)
		if !ok {
			return 0, typeError("compare", a, b)
		}
		return compareBytes(x.Data, y.Data), nil
	case StringUTF8:
		y, ok := b.(StringUTF8)
		if !ok {
			return 0, typeError("compare", a, b)
		}
		return compareBytes([]byte(x.Data), []byte(y.Data)), nil
	case Buffer:
		y, ok := b.(Buffer)
		if !ok {
			return 0, typeError("compare", a, b)
		}
		return compareBytes(x.Data, y.Data), nil
	}
	return 0, typeError("compare", a, b)
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Bitwise applies op ("and", "or", "xor") to two ints or two uints.
func Bitwise(op string, a, b Value) (Value, error) {
	apply := func(x, y *uint256.Int) *uint256.Int {
		z := new(uint256.Int)
		switch op {
		case "and":
			return z.And(x, y)
		case "or":
			return z.Or(x, y)
		default:
			return z.Xor(x, y)
		}
	}
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			return Int{v: *apply(&x.v, &y.v)}, nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			return UInt{v: *apply(&x.v, &y.v)}, nil
		}
	}
	return nil, typeError("bit-"+op, a, b)
}

func BitNot(a Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		return Int{v: *new(uint256.Int).Not(&x.v)}, nil
	case UInt:
		z := new(uint256.Int).Not(&x.v)
		return UInt{v: *z.And(z, mask128)}, nil
	}
	return nil, typeError("bit-not", a, nil)
}

// Shift shifts a by amount mod 128 bits; bits shifted out are discarded and
// right shifts of ints are arithmetic.
func Shift(left bool, a Value, amount UInt) (Value, error) {
	n := uint(amount.v.Uint64() % 128)
	switch x := a.(type) {
	case Int:
		z := x.v.Clone()
		if left {
			z.Lsh(z, n)
			return Int{v: *signExtend128(z)}, nil
		}
		return Int{v: *z.SRsh(z, n)}, nil
	case UInt:
		z := x.v.Clone()
		if left {
			z.Lsh(z, n)
			return UInt{v: *z.And(z, mask128)}, nil
		}
		return UInt{v: *z.Rsh(z, n)}, nil
	}
	return nil, typeError("bit-shift", a, nil)
}

// ToInt converts a uint to an int.
func ToInt(u UInt) (Int, error) {
	if u.v.Gt(maxInt128) {
		return Int{}, ErrArithmeticOverflow
	}
	return Int{v: u.v}, nil
}

// ToUInt converts a non-negative int to a uint.
func ToUInt(i Int) (UInt, error) {
	if i.v.Sign() < 0 {
		return UInt{}, ErrArithmeticUnderflow
	}
	return UInt{v: i.v}, nil
}

// IntFromBytes reads a 16-byte big-endian two's complement integer.
func IntFromBytes(b []byte) Int {
	z := new(uint256.Int).SetBytes(b)
	return Int{v: *signExtend128(z)}
}

// UIntFromBytes reads a big-endian unsigned integer of at most 16 bytes.
func UIntFromBytes(b []byte) UInt {
	return UInt{v: *new(uint256.Int).SetBytes(b)}
}

// Bytes16 returns the 16-byte big-endian two's complement encoding.
func (i Int) Bytes16() [16]byte {
	var out [16]byte
	b := i.v.Bytes32()
	copy(out[:], b[16:])
	return out
}

func (u UInt) Bytes16() [16]byte {
	var out [16]byte
	b := u.v.Bytes32()
	copy(out[:], b[16:])
	return out
}

// ParseInt reads a decimal int with optional sign.
func ParseInt(s string) (Int, error) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if !isDecimal(s) {
		return Int{}, ErrInvalidLiteral
	}
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return Int{}, ErrArithmeticOverflow
	}
	if x.BitLen() > 128 {
		return Int{}, ErrArithmeticOverflow
	}
	if neg {
		x.Neg(x)
	}
	return checkInt(x)
}

// ParseUInt reads a decimal uint without the u prefix.
func ParseUInt(s string) (UInt, error) {
	if !isDecimal(s) {
		return UInt{}, ErrInvalidLiteral
	}
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return UInt{}, ErrArithmeticOverflow
	}
	return checkUInt(x)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
