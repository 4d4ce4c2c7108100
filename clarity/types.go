// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ava-labs/simnet/clarity/ast"
)

// MaxValueSize bounds the serialized size of any value.
const MaxValueSize = 1024 * 1024

var errBadTypeJSON = errors.New("malformed type signature")

type TypeKind uint8

const (
	NoTypeKind TypeKind = iota
	IntKind
	UIntKind
	BoolKind
	BufferKind
	ASCIIKind
	UTF8Kind
	PrincipalKind
	OptionalKind
	ResponseKind
	ListKind
	TupleKind
	TraitKind
)

// TypeSignature is a static Clarity type. Len is the maximum length of
// sequences; Elem is the inner type of optionals and lists and the ok type of
// responses; ErrType is the err type of responses.
type TypeSignature struct {
	Kind    TypeKind
	Len     uint32
	Elem    *TypeSignature
	ErrType *TypeSignature
	Fields  []FieldType
	Trait   *TraitIdentifier
}

type FieldType struct {
	Name string
	Type TypeSignature
}

var (
	NoType        = TypeSignature{Kind: NoTypeKind}
	IntType       = TypeSignature{Kind: IntKind}
	UIntType      = TypeSignature{Kind: UIntKind}
	BoolType      = TypeSignature{Kind: BoolKind}
	PrincipalType = TypeSignature{Kind: PrincipalKind}
)

func BufferOf(n uint32) TypeSignature { return TypeSignature{Kind: BufferKind, Len: n} }
func ASCIIOf(n uint32) TypeSignature  { return TypeSignature{Kind: ASCIIKind, Len: n} }
func UTF8Of(n uint32) TypeSignature   { return TypeSignature{Kind: UTF8Kind, Len: n} }

func OptionalOf(t TypeSignature) TypeSignature {
	return TypeSignature{Kind: OptionalKind, Elem: &t}
}

func ResponseOf(ok, err TypeSignature) TypeSignature {
	return TypeSignature{Kind: ResponseKind, Elem: &ok, ErrType: &err}
}

func ListOf(elem TypeSignature, n uint32) TypeSignature {
	return TypeSignature{Kind: ListKind, Elem: &elem, Len: n}
}

// TupleOf sorts fields by name.
func TupleOf(fields ...FieldType) TypeSignature {
	sorted := make([]FieldType, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return TypeSignature{Kind: TupleKind, Fields: sorted}
}

func TraitOf(id TraitIdentifier) TypeSignature {
	return TypeSignature{Kind: TraitKind, Trait: &id}
}

func (t TypeSignature) String() string {
	switch t.Kind {
	case NoTypeKind:
		return "UnknownType"
	case IntKind:
		return "int"
	case UIntKind:
		return "uint"
	case BoolKind:
		return "bool"
	case PrincipalKind:
		return "principal"
	case BufferKind:
		return fmt.Sprintf("(buff %d)", t.Len)
	case ASCIIKind:
		return fmt.Sprintf("(string-ascii %d)", t.Len)
	case UTF8Kind:
		return fmt.Sprintf("(string-utf8 %d)", t.Len)
	case OptionalKind:
		return "(optional " + t.Elem.String() + ")"
	case ResponseKind:
		return "(response " + t.Elem.String() + " " + t.ErrType.String() + ")"
	case ListKind:
		return fmt.Sprintf("(list %d %s)", t.Len, t.Elem.String())
	case TupleKind:
		var b strings.Builder
		b.WriteString("(tuple")
		for _, f := range t.Fields {
			b.WriteString(" (")
			b.WriteString(f.Name)
			b.WriteString(" ")
			b.WriteString(f.Type.String())
			b.WriteString(")")
		}
		b.WriteString(")")
		return b.String()
	case TraitKind:
		return "<" + t.Trait.Name + ">"
	}
	return "?"
}

// Equal reports structural type equality.
func (t TypeSignature) Equal(o TypeSignature) bool {
	if t.Kind != o.Kind || t.Len != o.Len || len(t.Fields) != len(o.Fields) {
		return false
	}
	if (t.Elem == nil) != (o.Elem == nil) || (t.Elem != nil && !t.Elem.Equal(*o.Elem)) {
		return false
	}
	if (t.ErrType == nil) != (o.ErrType == nil) || (t.ErrType != nil && !t.ErrType.Equal(*o.ErrType)) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	if (t.Trait == nil) != (o.Trait == nil) || (t.Trait != nil && *t.Trait != *o.Trait) {
		return false
	}
	return true
}

// Admits reports whether v is a member of t. Trait conformance of callable
// contracts is checked by the evaluator.
func (t TypeSignature) Admits(v Value) bool {
	switch t.Kind {
	case NoTypeKind:
		return false
	case IntKind:
		_, ok := v.(Int)
		return ok
	case UIntKind:
		_, ok := v.(UInt)
		return ok
	case BoolKind:
		_, ok := v.(Bool)
		return ok
	case BufferKind:
		b, ok := v.(Buffer)
		return ok && uint32(len(b.Data)) <= t.Len
	case ASCIIKind:
		s, ok := v.(StringASCII)
		return ok && uint32(len(s.Data)) <= t.Len
	case UTF8Kind:
		s, ok := v.(StringUTF8)
		return ok && uint32(utf8.RuneCountInString(s.Data)) <= t.Len
	case PrincipalKind:
		switch v.(type) {
		case Principal, CallableContract:
			return true
		}
		return false
	case TraitKind:
		switch p := v.(type) {
		case CallableContract:
			return true
		case Principal:
			return p.IsContract()
		}
		return false
	case OptionalKind:
		o, ok := v.(Optional)
		if !ok {
			return false
		}
		return o.Some == nil || t.Elem.Admits(o.Some)
	case ResponseKind:
		r, ok := v.(Response)
		if !ok {
			return false
		}
		if r.Ok {
			return t.Elem.Admits(r.Value)
		}
		return t.ErrType.Admits(r.Value)
	case ListKind:
		l, ok := v.(List)
		if !ok || uint32(len(l.Items)) > t.Len {
			return false
		}
		for _, item := range l.Items {
			if !t.Elem.Admits(item) {
				return false
			}
		}
		return true
	case TupleKind:
		tu, ok := v.(Tuple)
		if !ok || tu.Len() != len(t.Fields) {
			return false
		}
		for i, f := range t.Fields {
			if tu.names[i] != f.Name || !f.Type.Admits(tu.values[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// LeastSupertype returns the smallest type admitting members of both a and b.
func LeastSupertype(a, b TypeSignature) (TypeSignature, error) {
	if a.Kind == NoTypeKind {
		return b, nil
	}
	if b.Kind == NoTypeKind {
		return a, nil
	}
	if a.Kind == TraitKind && b.Kind == PrincipalKind || a.Kind == PrincipalKind && b.Kind == TraitKind {
		return PrincipalType, nil
	}
	if a.Kind != b.Kind {
		return TypeSignature{}, &TypeError{Op: "list", Left: a.String(), Right: b.String()}
	}
	switch a.Kind {
	case BufferKind, ASCIIKind, UTF8Kind:
		if b.Len > a.Len {
			return b, nil
		}
		return a, nil
	case OptionalKind:
		elem, err := LeastSupertype(*a.Elem, *b.Elem)
		if err != nil {
			return TypeSignature{}, err
		}
		return OptionalOf(elem), nil
	case ResponseKind:
		ok, err := LeastSupertype(*a.Elem, *b.Elem)
		if err != nil {
			return TypeSignature{}, err
		}
		errT, err := LeastSupertype(*a.ErrType, *b.ErrType)
		if err != nil {
			return TypeSignature{}, err
		}
		return ResponseOf(ok, errT), nil
	case ListKind:
		elem, err := LeastSupertype(*a.Elem, *b.Elem)
		if err != nil {
			return TypeSignature{}, err
		}
		n := a.Len
		if b.Len > n {
			n = b.Len
		}
		return ListOf(elem, n), nil
	case TupleKind:
		if len(a.Fields) != len(b.Fields) {
			return TypeSignature{}, &TypeError{Op: "tuple", Left: a.String(), Right: b.String()}
		}
		fields := make([]FieldType, len(a.Fields))
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name {
				return TypeSignature{}, &TypeError{Op: "tuple", Left: a.String(), Right: b.String()}
			}
			ft, err := LeastSupertype(a.Fields[i].Type, b.Fields[i].Type)
			if err != nil {
				return TypeSignature{}, err
			}
			fields[i] = FieldType{Name: a.Fields[i].Name, Type: ft}
		}
		return TypeSignature{Kind: TupleKind, Fields: fields}, nil
	case TraitKind:
		if *a.Trait != *b.Trait {
			return PrincipalType, nil
		}
	}
	return a, nil
}

// TypeSyntaxError is returned by ParseType with the offending position.
type TypeSyntaxError struct {
	Message string
	Span    ast.Span
}

func (e *TypeSyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

func typeSyntaxError(e *ast.Expr, format string, args ...interface{}) error {
	return &TypeSyntaxError{Message: fmt.Sprintf(format, args...), Span: e.Span}
}

// ParseType reads a type expression such as (list 10 (buff 32)) or
// { a: uint }. Trait references keep only their local alias in Trait.Name.
func ParseType(e *ast.Expr) (TypeSignature, error) {
	switch e.Kind {
	case ast.Atom:
		switch e.Text {
		case "int":
			return IntType, nil
		case "uint":
			return UIntType, nil
		case "bool":
			return BoolType, nil
		case "principal":
			return PrincipalType, nil
		}
		return TypeSignature{}, typeSyntaxError(e, "unknown type name %q", e.Text)
	case ast.TraitRef:
		return TraitOf(TraitIdentifier{Name: e.Text}), nil
	case ast.Tuple:
		return parseTupleType(e, e.Children)
	case ast.List:
	default:
		return TypeSignature{}, typeSyntaxError(e, "invalid type expression")
	}

	args := e.Args()
	switch e.Head() {
	case "buff", "string-ascii", "string-utf8":
		if len(args) != 1 {
			return TypeSignature{}, typeSyntaxError(e, "%s expects a length", e.Head())
		}
		n, err := typeLength(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		switch e.Head() {
		case "buff":
			return BufferOf(n), nil
		case "string-ascii":
			return ASCIIOf(n), nil
		default:
			return UTF8Of(n), nil
		}
	case "optional":
		if len(args) != 1 {
			return TypeSignature{}, typeSyntaxError(e, "optional expects one type")
		}
		inner, err := ParseType(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		return OptionalOf(inner), nil
	case "response":
		if len(args) != 2 {
			return TypeSignature{}, typeSyntaxError(e, "response expects two types")
		}
		ok, err := ParseType(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		errT, err := ParseType(args[1])
		if err != nil {
			return TypeSignature{}, err
		}
		return ResponseOf(ok, errT), nil
	case "list":
		if len(args) != 2 {
			return TypeSignature{}, typeSyntaxError(e, "list expects a length and a type")
		}
		n, err := typeLength(args[0])
		if err != nil {
			return TypeSignature{}, err
		}
		elem, err := ParseType(args[1])
		if err != nil {
			return TypeSignature{}, err
		}
		return ListOf(elem, n), nil
	case "tuple":
		children := make([]*ast.Expr, 0, 2*len(args))
		for _, arg := range args {
			if arg.Kind != ast.List || len(arg.Children) != 2 || arg.Children[0].Kind != ast.Atom {
				return TypeSignature{}, typeSyntaxError(arg, "tuple type fields are (name type) pairs")
			}
			children = append(children, arg.Children...)
		}
		return parseTupleType(e, children)
	}
	return TypeSignature{}, typeSyntaxError(e, "unknown type constructor %q", e.Head())
}

func parseTupleType(e *ast.Expr, children []*ast.Expr) (TypeSignature, error) {
	if len(children) == 0 {
		return TypeSignature{}, typeSyntaxError(e, ErrEmptyTuple.Error())
	}
	seen := make(map[string]struct{}, len(children)/2)
	fields := make([]FieldType, 0, len(children)/2)
	for i := 0; i+1 < len(children); i += 2 {
		name := children[i].Text
		if _, dup := seen[name]; dup {
			return TypeSignature{}, typeSyntaxError(children[i], "duplicate tuple field %q", name)
		}
		seen[name] = struct{}{}
		ft, err := ParseType(children[i+1])
		if err != nil {
			return TypeSignature{}, err
		}
		fields = append(fields, FieldType{Name: name, Type: ft})
	}
	return TupleOf(fields...), nil
}

func typeLength(e *ast.Expr) (uint32, error) {
	if e.Kind != ast.IntLit {
		return 0, typeSyntaxError(e, "expected a length literal")
	}
	n, err := strconv.ParseUint(e.Text, 10, 32)
	if err != nil || n > MaxValueSize {
		return 0, typeSyntaxError(e, "invalid length %s", e.Text)
	}
	return uint32(n), nil
}

// MarshalJSON renders the signature in the contract interface format.
func (t TypeSignature) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.interfaceForm())
}

func (t TypeSignature) interfaceForm() interface{} {
	type length struct {
		Length uint32 `json:"length"`
	}
	switch t.Kind {
	case IntKind:
		return "int128"
	case UIntKind:
		return "uint128"
	case BoolKind:
		return "bool"
	case PrincipalKind:
		return "principal"
	case TraitKind:
		return "trait_reference"
	case BufferKind:
		return map[string]interface{}{"buffer": length{t.Len}}
	case ASCIIKind:
		return map[string]interface{}{"string-ascii": length{t.Len}}
	case UTF8Kind:
		return map[string]interface{}{"string-utf8": length{t.Len}}
	case OptionalKind:
		return map[string]interface{}{"optional": t.Elem.interfaceForm()}
	case ResponseKind:
		return map[string]interface{}{"response": map[string]interface{}{
			"ok":    t.Elem.interfaceForm(),
			"error": t.ErrType.interfaceForm(),
		}}
	case ListKind:
		return map[string]interface{}{"list": map[string]interface{}{
			"type":   t.Elem.interfaceForm(),
			"length": t.Len,
		}}
	case TupleKind:
		fields := make([]map[string]interface{}, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = map[string]interface{}{"name": f.Name, "type": f.Type.interfaceForm()}
		}
		return map[string]interface{}{"tuple": fields}
	}
	return "none"
}

func (t *TypeSignature) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		switch name {
		case "int128":
			*t = IntType
		case "uint128":
			*t = UIntType
		case "bool":
			*t = BoolType
		case "principal":
			*t = PrincipalType
		case "trait_reference":
			*t = TraitOf(TraitIdentifier{})
		case "none":
			*t = NoType
		default:
			return fmt.Errorf("%w: %q", errBadTypeJSON, name)
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil || len(obj) != 1 {
		return fmt.Errorf("%w: %s", errBadTypeJSON, b)
	}
	type length struct {
		Length uint32 `json:"length"`
	}
	for key, raw := range obj {
		switch key {
		case "buffer", "string-ascii", "string-utf8":
			var l length
			if err := json.Unmarshal(raw, &l); err != nil {
				return err
			}
			switch key {
			case "buffer":
				*t = BufferOf(l.Length)
			case "string-ascii":
				*t = ASCIIOf(l.Length)
			default:
				*t = UTF8Of(l.Length)
			}
		case "optional":
			var inner TypeSignature
			if err := json.Unmarshal(raw, &inner); err != nil {
				return err
			}
			*t = OptionalOf(inner)
		case "response":
			var r struct {
				Ok  TypeSignature `json:"ok"`
				Err TypeSignature `json:"error"`
			}
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			*t = ResponseOf(r.Ok, r.Err)
		case "list":
			var l struct {
				Type   TypeSignature `json:"type"`
				Length uint32        `json:"length"`
			}
			if err := json.Unmarshal(raw, &l); err != nil {
				return err
			}
			*t = ListOf(l.Type, l.Length)
		case "tuple":
			var fs []struct {
				Name string        `json:"name"`
				Type TypeSignature `json:"type"`
			}
			if err := json.Unmarshal(raw, &fs); err != nil {
				return err
			}
			fields := make([]FieldType, len(fs))
			for i, f := range fs {
				fields[i] = FieldType{Name: f.Name, Type: f.Type}
			}
			*t = TupleOf(fields...)
		default:
			return fmt.Errorf("%w: unknown key %q", errBadTypeJSON, key)
		}
	}
	return nil
}
