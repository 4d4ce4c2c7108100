// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clarity holds the value and type system of the Clarity language:
// value kinds, type signatures, principals, epochs and language versions, and
// the text and consensus encodings of values.
package clarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/holiman/uint256"

	"github.com/ava-labs/simnet/clarity/ast"
)

var (
	_ Value = Int{}
	_ Value = UInt{}
	_ Value = Bool(false)
	_ Value = Buffer{}
	_ Value = StringASCII{}
	_ Value = StringUTF8{}
	_ Value = Optional{}
	_ Value = Response{}
	_ Value = List{}
	_ Value = Tuple{}
	_ Value = Principal{}
	_ Value = CallableContract{}
)

// Value is a Clarity value. The set of implementations is closed.
type Value interface {
	// Type returns the narrowest type signature admitting the value.
	Type() TypeSignature
	// String renders the value in its literal text form.
	String() string

	isValue()
}

// Int is a signed 128-bit integer. The backing 256-bit word holds the two's
// complement sign extension, so signed uint256 operations apply directly.
type Int struct{ v uint256.Int }

// UInt is an unsigned 128-bit integer.
type UInt struct{ v uint256.Int }

type Bool bool

type Buffer struct{ Data []byte }

type StringASCII struct{ Data []byte }

type StringUTF8 struct{ Data string }

// Optional is none when Some is nil.
type Optional struct{ Some Value }

type Response struct {
	Ok    bool
	Value Value
}

type List struct{ Items []Value }

// Tuple keeps its fields sorted by name; construct it with NewTuple.
type Tuple struct {
	names  []string
	values []Value
}

// CallableContract is a contract principal passed where a trait is expected.
type CallableContract struct {
	Contract Principal
	Trait    *TraitIdentifier
}

// TraitIdentifier names a trait defined by a contract.
type TraitIdentifier struct {
	Contract Principal
	Name     string
}

func (t TraitIdentifier) String() string {
	return t.Contract.ID() + "." + t.Name
}

func (Int) isValue()              {}
func (UInt) isValue()             {}
func (Bool) isValue()             {}
func (Buffer) isValue()           {}
func (StringASCII) isValue()      {}
func (StringUTF8) isValue()       {}
func (Optional) isValue()         {}
func (Response) isValue()         {}
func (List) isValue()             {}
func (Tuple) isValue()            {}
func (Principal) isValue()        {}
func (CallableContract) isValue() {}

var (
	True  = Bool(true)
	False = Bool(false)
	None  = Optional{}
)

// NewInt returns the int value n.
func NewInt(n int64) Int {
	var i Int
	if n < 0 {
		i.v.SetUint64(uint64(-n))
		i.v.Neg(&i.v)
	} else {
		i.v.SetUint64(uint64(n))
	}
	return i
}

// NewUInt returns the uint value n.
func NewUInt(n uint64) UInt {
	var u UInt
	u.v.SetUint64(n)
	return u
}

// IntFromBig returns the int held in x, which must already be in range.
func IntFromBig(x *uint256.Int) (Int, error) {
	if x.Sgt(maxInt128) || x.Slt(minInt128) {
		return Int{}, ErrArithmeticOverflow
	}
	return Int{v: *x}, nil
}

// UIntFromBig returns the uint held in x.
func UIntFromBig(x *uint256.Int) (UInt, error) {
	if x.Gt(maxUInt128) {
		return UInt{}, ErrArithmeticOverflow
	}
	return UInt{v: *x}, nil
}

// Big returns a copy of the backing word.
func (i Int) Big() *uint256.Int  { return i.v.Clone() }
func (u UInt) Big() *uint256.Int { return u.v.Clone() }

func (i Int) Sign() int { return i.v.Sign() }

func (i Int) Type() TypeSignature { return IntType }
func (i Int) String() string {
	if i.v.Sign() < 0 {
		abs := new(uint256.Int).Neg(&i.v)
		return "-" + abs.Dec()
	}
	return i.v.Dec()
}

func (u UInt) Type() TypeSignature { return UIntType }
func (u UInt) String() string      { return "u" + u.v.Dec() }

// Uint64 returns the value truncated to 64 bits and whether it fit.
func (u UInt) Uint64() (uint64, bool) {
	return u.v.Uint64(), u.v.IsUint64()
}

func (b Bool) Type() TypeSignature { return BoolType }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Buffer) Type() TypeSignature { return BufferOf(uint32(len(b.Data))) }
func (b Buffer) String() string {
	s, _ := formatting.Encode(formatting.HexNC, b.Data)
	return s
}

func (s StringASCII) Type() TypeSignature { return ASCIIOf(uint32(len(s.Data))) }
func (s StringASCII) String() string      { return ast.QuoteASCII(string(s.Data)) }

func (s StringUTF8) Type() TypeSignature {
	return UTF8Of(uint32(utf8.RuneCountInString(s.Data)))
}
func (s StringUTF8) String() string { return "u" + ast.QuoteUTF8(s.Data) }

// Some wraps v in an optional.
func Some(v Value) Optional { return Optional{Some: v} }

func (o Optional) IsNone() bool { return o.Some == nil }

func (o Optional) Type() TypeSignature {
	if o.Some == nil {
		return OptionalOf(NoType)
	}
	return OptionalOf(o.Some.Type())
}

func (o Optional) String() string {
	if o.Some == nil {
		return "none"
	}
	return "(some " + o.Some.String() + ")"
}

func Ok(v Value) Response  { return Response{Ok: true, Value: v} }
func Err(v Value) Response { return Response{Ok: false, Value: v} }

func (r Response) Type() TypeSignature {
	if r.Ok {
		return ResponseOf(r.Value.Type(), NoType)
	}
	return ResponseOf(NoType, r.Value.Type())
}

func (r Response) String() string {
	if r.Ok {
		return "(ok " + r.Value.String() + ")"
	}
	return "(err " + r.Value.String() + ")"
}

// NewList builds a list, checking that all items share a common type.
func NewList(items []Value) (List, error) {
	if _, err := listElemType(items); err != nil {
		return List{}, err
	}
	return List{Items: items}, nil
}

func listElemType(items []Value) (TypeSignature, error) {
	elem := NoType
	for _, item := range items {
		next, err := LeastSupertype(elem, item.Type())
		if err != nil {
			return TypeSignature{}, err
		}
		elem = next
	}
	return elem, nil
}

func (l List) Type() TypeSignature {
	elem, err := listElemType(l.Items)
	if err != nil {
		elem = NoType
	}
	return ListOf(elem, uint32(len(l.Items)))
}

func (l List) String() string {
	var b strings.Builder
	b.WriteString("(list")
	for _, item := range l.Items {
		b.WriteString(" ")
		b.WriteString(item.String())
	}
	b.WriteString(")")
	return b.String()
}

// TupleField is one named member of a tuple.
type TupleField struct {
	Name  string
	Value Value
}

// NewTuple sorts fields by name. Duplicate or empty names are rejected.
func NewTuple(fields ...TupleField) (Tuple, error) {
	if len(fields) == 0 {
		return Tuple{}, ErrEmptyTuple
	}
	sorted := make([]TupleField, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	t := Tuple{
		names:  make([]string, len(sorted)),
		values: make([]Value, len(sorted)),
	}
	for i, f := range sorted {
		if f.Name == "" {
			return Tuple{}, ErrEmptyTuple
		}
		if i > 0 && sorted[i-1].Name == f.Name {
			return Tuple{}, &DuplicateFieldError{Name: f.Name}
		}
		t.names[i] = f.Name
		t.values[i] = f.Value
	}
	return t, nil
}

// MustTuple is NewTuple for statically known fields.
func MustTuple(fields ...TupleField) Tuple {
	t, err := NewTuple(fields...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tuple) Len() int { return len(t.names) }

// Names returns the field names in sorted order.
func (t Tuple) Names() []string { return t.names }

// Fields returns the fields in sorted order.
func (t Tuple) Fields() []TupleField {
	fields := make([]TupleField, len(t.names))
	for i := range t.names {
		fields[i] = TupleField{Name: t.names[i], Value: t.values[i]}
	}
	return fields
}

// Get returns the field called name.
func (t Tuple) Get(name string) (Value, bool) {
	i := sort.SearchStrings(t.names, name)
	if i < len(t.names) && t.names[i] == name {
		return t.values[i], true
	}
	return nil, false
}

// Merge returns t with the fields of other added or replaced.
func (t Tuple) Merge(other Tuple) Tuple {
	fields := make(map[string]Value, len(t.names)+len(other.names))
	for i, n := range t.names {
		fields[n] = t.values[i]
	}
	for i, n := range other.names {
		fields[n] = other.values[i]
	}
	merged := make([]TupleField, 0, len(fields))
	for n, v := range fields {
		merged = append(merged, TupleField{Name: n, Value: v})
	}
	return MustTuple(merged...)
}

func (t Tuple) Type() TypeSignature {
	fields := make([]FieldType, len(t.names))
	for i := range t.names {
		fields[i] = FieldType{Name: t.names[i], Type: t.values[i].Type()}
	}
	return TupleOf(fields...)
}

func (t Tuple) String() string {
	var b strings.Builder
	b.WriteString("{ ")
	for i := range t.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.names[i])
		b.WriteString(": ")
		b.WriteString(t.values[i].String())
	}
	b.WriteString(" }")
	return b.String()
}

func (c CallableContract) Type() TypeSignature {
	if c.Trait == nil {
		return PrincipalType
	}
	return TraitOf(*c.Trait)
}

func (c CallableContract) String() string { return c.Contract.String() }
