// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/coverage"
)

// locals is the set of names bound by function parameters, let and match.
type locals struct {
	names  map[string]struct{}
	parent *locals
}

func (l *locals) has(name string) bool {
	for ; l != nil; l = l.parent {
		if _, ok := l.names[name]; ok {
			return true
		}
	}
	return false
}

func (l *locals) child(names ...string) *locals {
	n := &locals{names: make(map[string]struct{}, len(names)), parent: l}
	for _, name := range names {
		n.names[name] = struct{}{}
	}
	return n
}

type analyzer struct {
	vm        *VM
	contract  *Contract
	snippet   bool
	inferring map[string]bool
}

var blockProperties = map[string][]string{
	"get-block-info?":        {"burnchain-header-hash", "id-header-hash", "header-hash", "miner-address", "time", "vrf-seed", "block-reward", "miner-spend-total", "miner-spend-winner"},
	"get-burn-block-info?":   {"header-hash", "pox-addrs"},
	"get-stacks-block-info?": {"id-header-hash", "header-hash", "time"},
	"get-tenure-info?":       {"burnchain-header-hash", "miner-address", "time", "vrf-seed", "block-reward", "miner-spend-total", "miner-spend-winner"},
}

func (vm *VM) analyze(id clarity.Principal, source string, epoch clarity.Epoch, version clarity.Version) (*Contract, error) {
	exprs, err := ast.Parse(source)
	if err != nil {
		return nil, err
	}
	c := newContract(id, source, epoch, version)
	c.Exprs = exprs
	a := &analyzer{vm: vm, contract: c}
	if err := a.run(); err != nil {
		return nil, err
	}
	return c, nil
}

func (vm *VM) analyzeSnippet(self clarity.Principal, source string, epoch clarity.Epoch, version clarity.Version) (*Contract, error) {
	exprs, err := ast.Parse(source)
	if err != nil {
		return nil, err
	}
	c := newContract(self, source, epoch, version)
	c.Exprs = exprs
	a := &analyzer{vm: vm, contract: c, snippet: true}
	if err := a.run(); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *analyzer) run() error {
	if err := a.collectTraits(); err != nil {
		return err
	}
	if err := a.collect(); err != nil {
		return err
	}
	if err := a.checkTraits(); err != nil {
		return err
	}
	if err := a.check(); err != nil {
		return err
	}
	a.inferOutputs()
	for _, name := range a.contract.order {
		fn, ok := a.contract.Functions[name]
		if !ok || fn.Access != Public {
			continue
		}
		if fn.Output.Kind != clarity.NoTypeKind && fn.Output.Kind != clarity.ResponseKind {
			return &AnalysisError{Message: "public functions must return an expression of type 'response', found " + fn.Output.String(), Span: fn.Span}
		}
	}
	a.collectCoverage()
	return nil
}

func isDefinition(head string) bool {
	return strings.HasPrefix(head, "define-") || head == "use-trait" || head == "impl-trait"
}

func (a *analyzer) declare(e *ast.Expr, name string) error {
	if e.Kind != ast.Atom {
		return analysisError(e, "expected a name")
	}
	if isReserved(name) {
		return analysisError(e, "name '%s' is reserved", name)
	}
	if a.contract.defined(name) {
		return analysisError(e, "'%s' is already defined", name)
	}
	a.contract.order = append(a.contract.order, name)
	return nil
}

func (a *analyzer) traitRef(e *ast.Expr) (clarity.TraitIdentifier, error) {
	if e.Kind != ast.FieldLit {
		return clarity.TraitIdentifier{}, analysisError(e, "expected a trait reference")
	}
	issuer := a.contract.ID.Standard()
	if e.Text != "" {
		p, err := clarity.ParsePrincipal(e.Text)
		if err != nil {
			return clarity.TraitIdentifier{}, analysisError(e, "%v", err)
		}
		issuer = p
	}
	return clarity.TraitIdentifier{Contract: issuer.Contract(e.Name), Name: e.Field}, nil
}

// collectTraits registers trait aliases and names first so that types
// anywhere in the contract can refer to them.
func (a *analyzer) collectTraits() error {
	c := a.contract
	for _, e := range c.Exprs {
		args := e.Args()
		switch e.Head() {
		case "use-trait":
			if len(args) != 2 || args[0].Kind != ast.Atom {
				return analysisError(e, "use-trait expects an alias and a trait reference")
			}
			id, err := a.traitRef(args[1])
			if err != nil {
				return err
			}
			c.UsedTraits[args[0].Text] = id
		case "define-trait":
			if len(args) != 2 {
				return analysisError(e, "define-trait expects a name and a list of signatures")
			}
			if err := a.declare(args[0], args[0].Text); err != nil {
				return err
			}
			c.Traits[args[0].Text] = &Trait{Name: args[0].Text}
		}
	}
	return nil
}

// typeOf parses a type expression and binds its trait aliases.
func (a *analyzer) typeOf(e *ast.Expr) (clarity.TypeSignature, error) {
	t, err := clarity.ParseType(e)
	if err != nil {
		var serr *clarity.TypeSyntaxError
		if errors.As(err, &serr) {
			return t, &AnalysisError{Message: serr.Message, Span: serr.Span}
		}
		return t, analysisError(e, "%v", err)
	}
	return a.bindTraits(e, t)
}

func (a *analyzer) bindTraits(e *ast.Expr, t clarity.TypeSignature) (clarity.TypeSignature, error) {
	switch t.Kind {
	case clarity.TraitKind:
		alias := t.Trait.Name
		if id, ok := a.contract.UsedTraits[alias]; ok {
			return clarity.TraitOf(id), nil
		}
		if _, ok := a.contract.Traits[alias]; ok {
			return clarity.TraitOf(clarity.TraitIdentifier{Contract: a.contract.ID, Name: alias}), nil
		}
		return t, analysisError(e, "use of undeclared trait <%s>", alias)
	case clarity.OptionalKind, clarity.ListKind:
		elem, err := a.bindTraits(e, *t.Elem)
		if err != nil {
			return t, err
		}
		t.Elem = &elem
	case clarity.ResponseKind:
		ok, err := a.bindTraits(e, *t.Elem)
		if err != nil {
			return t, err
		}
		errT, err := a.bindTraits(e, *t.ErrType)
		if err != nil {
			return t, err
		}
		t.Elem, t.ErrType = &ok, &errT
	case clarity.TupleKind:
		fields := make([]clarity.FieldType, len(t.Fields))
		for i, f := range t.Fields {
			ft, err := a.bindTraits(e, f.Type)
			if err != nil {
				return t, err
			}
			fields[i] = clarity.FieldType{Name: f.Name, Type: ft}
		}
		t.Fields = fields
	}
	return t, nil
}

// mapType accepts both a type expression and the Clarity 1 field list form
// ((name type) ...).
func (a *analyzer) mapType(e *ast.Expr) (clarity.TypeSignature, error) {
	if e.Kind == ast.List && len(e.Children) > 0 && e.Children[0].Kind == ast.List {
		tuple := &ast.Expr{Kind: ast.List, Span: e.Span, Children: append([]*ast.Expr{{Kind: ast.Atom, Text: "tuple", Span: e.Span}}, e.Children...)}
		return a.typeOf(tuple)
	}
	return a.typeOf(e)
}

func (a *analyzer) collect() error {
	c := a.contract
	for _, e := range c.Exprs {
		head := e.Head()
		if !isDefinition(head) {
			continue
		}
		if a.snippet {
			return analysisError(e, "%s is not allowed outside of a contract", head)
		}
		args := e.Args()
		switch head {
		case "define-constant":
			if len(args) != 2 {
				return analysisError(e, "define-constant expects a name and a value")
			}
			if err := a.declare(args[0], args[0].Text); err != nil {
				return err
			}
			c.Constants[args[0].Text] = &Constant{Name: args[0].Text, Expr: args[1]}
		case "define-data-var":
			if len(args) != 3 {
				return analysisError(e, "define-data-var expects a name, a type and an initial value")
			}
			t, err := a.typeOf(args[1])
			if err != nil {
				return err
			}
			if err := a.declare(args[0], args[0].Text); err != nil {
				return err
			}
			c.Vars[args[0].Text] = &DataVar{Name: args[0].Text, Type: t, Init: args[2]}
		case "define-map":
			if len(args) != 3 {
				return analysisError(e, "define-map expects a name, a key type and a value type")
			}
			key, err := a.mapType(args[1])
			if err != nil {
				return err
			}
			val, err := a.mapType(args[2])
			if err != nil {
				return err
			}
			if err := a.declare(args[0], args[0].Text); err != nil {
				return err
			}
			c.Maps[args[0].Text] = &Map{Name: args[0].Text, Key: key, Value: val}
		case "define-fungible-token":
			if len(args) < 1 || len(args) > 2 {
				return analysisError(e, "define-fungible-token expects a name and an optional supply")
			}
			if err := a.declare(args[0], args[0].Text); err != nil {
				return err
			}
			ft := &FungibleToken{Name: args[0].Text}
			if len(args) == 2 {
				ft.Supply = args[1]
			}
			c.FTs[ft.Name] = ft
		case "define-non-fungible-token":
			if len(args) != 2 {
				return analysisError(e, "define-non-fungible-token expects a name and an identifier type")
			}
			t, err := a.typeOf(args[1])
			if err != nil {
				return err
			}
			if err := a.declare(args[0], args[0].Text); err != nil {
				return err
			}
			c.NFTs[args[0].Text] = &NonFungibleToken{Name: args[0].Text, Type: t}
		case "define-public", "define-private", "define-read-only":
			fn, err := a.function(e, head)
			if err != nil {
				return err
			}
			if err := a.declare(e.Children[1].Children[0], fn.Name); err != nil {
				return err
			}
			c.Functions[fn.Name] = fn
		case "define-trait":
			if err := a.traitSignatures(c.Traits[args[0].Text], args[1]); err != nil {
				return err
			}
		case "impl-trait":
			if len(args) != 1 {
				return analysisError(e, "impl-trait expects a trait reference")
			}
			id, err := a.traitRef(args[0])
			if err != nil {
				return err
			}
			c.ImplTraits = append(c.ImplTraits, id)
		case "use-trait":
		default:
			return analysisError(e, "unknown definition %s", head)
		}
	}
	return nil
}

func (a *analyzer) function(e *ast.Expr, head string) (*Function, error) {
	args := e.Args()
	if len(args) != 2 {
		return nil, analysisError(e, "%s expects a signature and a body", head)
	}
	sig := args[0]
	if sig.Kind != ast.List || len(sig.Children) == 0 || sig.Children[0].Kind != ast.Atom {
		return nil, analysisError(sig, "invalid function signature")
	}
	fn := &Function{Name: sig.Children[0].Text, Body: args[1:], Span: e.Span}
	switch head {
	case "define-public":
		fn.Access = Public
	case "define-read-only":
		fn.Access = ReadOnly
	}
	seen := make(map[string]struct{})
	for _, p := range sig.Children[1:] {
		if p.Kind != ast.List || len(p.Children) != 2 || p.Children[0].Kind != ast.Atom {
			return nil, analysisError(p, "function parameters are (name type) pairs")
		}
		name := p.Children[0].Text
		if isReserved(name) {
			return nil, analysisError(p, "name '%s' is reserved", name)
		}
		if _, dup := seen[name]; dup {
			return nil, analysisError(p, "duplicate parameter '%s'", name)
		}
		seen[name] = struct{}{}
		t, err := a.typeOf(p.Children[1])
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, Param{Name: name, Type: t})
	}
	return fn, nil
}

func (a *analyzer) traitSignatures(t *Trait, e *ast.Expr) error {
	if e.Kind != ast.List {
		return analysisError(e, "trait signatures must be a list")
	}
	for _, sig := range e.Children {
		if sig.Kind != ast.List || len(sig.Children) != 3 || sig.Children[0].Kind != ast.Atom || sig.Children[1].Kind != ast.List {
			return analysisError(sig, "trait functions are (name (arg-types...) response-type)")
		}
		fn := TraitFunction{Name: sig.Children[0].Text}
		for _, pt := range sig.Children[1].Children {
			ptype, err := a.typeOf(pt)
			if err != nil {
				return err
			}
			fn.Params = append(fn.Params, ptype)
		}
		out, err := a.typeOf(sig.Children[2])
		if err != nil {
			return err
		}
		if out.Kind != clarity.ResponseKind {
			return analysisError(sig.Children[2], "trait function '%s' must return a response", fn.Name)
		}
		fn.Output = out
		t.Functions = append(t.Functions, fn)
	}
	return nil
}

// checkTraits verifies use-trait targets and impl-trait conformance.
func (a *analyzer) checkTraits() error {
	c := a.contract
	for _, e := range c.Exprs {
		switch e.Head() {
		case "use-trait":
			id := c.UsedTraits[e.Args()[0].Text]
			if _, err := a.vm.trait(id); err != nil {
				return analysisError(e.Args()[1], "use of unresolved trait %s: %v", id, err)
			}
		case "impl-trait":
			id, _ := a.traitRef(e.Args()[0])
			var (
				t   *Trait
				err error
			)
			if id.Contract == c.ID {
				t = c.Traits[id.Name]
				if t == nil {
					err = errors.New("not defined")
				}
			} else {
				t, err = a.vm.trait(id)
			}
			if err != nil {
				return analysisError(e, "use of unresolved trait %s: %v", id, err)
			}
			if err := conforms(c, id, t); err != nil {
				return analysisError(e, "%v", err)
			}
		}
	}
	return nil
}

// check resolves every symbol in the contract.
func (a *analyzer) check() error {
	c := a.contract
	for _, e := range c.Exprs {
		args := e.Args()
		switch e.Head() {
		case "define-constant":
			if err := a.expr(args[1], nil); err != nil {
				return err
			}
		case "define-data-var":
			if err := a.expr(args[2], nil); err != nil {
				return err
			}
		case "define-fungible-token":
			if len(args) == 2 {
				if err := a.expr(args[1], nil); err != nil {
					return err
				}
			}
		case "define-public", "define-private", "define-read-only":
			fn := c.Functions[args[0].Children[0].Text]
			names := make([]string, len(fn.Params))
			for i, p := range fn.Params {
				names[i] = p.Name
			}
			l := (*locals)(nil).child(names...)
			for _, body := range fn.Body {
				if err := a.expr(body, l); err != nil {
					return err
				}
			}
		case "define-map", "define-non-fungible-token", "define-trait", "use-trait", "impl-trait":
		default:
			if err := a.expr(e, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *analyzer) expr(e *ast.Expr, l *locals) error {
	switch e.Kind {
	case ast.Atom:
		return a.variable(e, l)
	case ast.List:
		return a.application(e, l)
	case ast.Tuple:
		if len(e.Children) == 0 {
			return analysisError(e, "%v", clarity.ErrEmptyTuple)
		}
		for i := 1; i < len(e.Children); i += 2 {
			if err := a.expr(e.Children[i], l); err != nil {
				return err
			}
		}
		return nil
	case ast.TraitRef, ast.FieldLit:
		return analysisError(e, "unexpected %s", e.Kind)
	}
	issuer := a.contract.ID.Standard()
	if _, err := clarity.FromLiteral(e, &issuer); err != nil {
		return analysisError(e, "%v", err)
	}
	return nil
}

func (a *analyzer) variable(e *ast.Expr, l *locals) error {
	name := e.Text
	if l.has(name) {
		return nil
	}
	switch name {
	case "true", "false", "none":
		return nil
	}
	if _, ok := a.contract.Constants[name]; ok {
		return nil
	}
	if b, ok := lookupBuiltin(name, a.contract.Version, a.contract.Epoch); ok && b.keyword {
		return nil
	}
	return analysisError(e, "use of unresolved variable '%s'", name)
}

func (a *analyzer) application(e *ast.Expr, l *locals) error {
	if len(e.Children) == 0 {
		return analysisError(e, "empty expression")
	}
	head := e.Children[0]
	if head.Kind != ast.Atom {
		return analysisError(e, "expected a function name")
	}
	name := head.Text
	if isDefinition(name) {
		return analysisError(e, "%s is only allowed at the top level", name)
	}
	args := e.Args()
	if fn, ok := a.contract.Functions[name]; ok {
		if len(args) != len(fn.Params) {
			return analysisError(e, "'%s' expects %d arguments, got %d", name, len(fn.Params), len(args))
		}
		for _, arg := range args {
			if err := a.expr(arg, l); err != nil {
				return err
			}
		}
		return nil
	}
	b, ok := lookupBuiltin(name, a.contract.Version, a.contract.Epoch)
	if !ok || b.keyword {
		return analysisError(head, "use of unresolved function '%s'", name)
	}
	if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
		return analysisError(e, "%s expects %s arguments, got %d", name, arity(b), len(args))
	}
	if b.analyze != nil {
		return b.analyze(a, e, l)
	}
	return a.args(b, args, l)
}

func arity(b *builtin) string {
	switch {
	case b.maxArgs < 0:
		return "at least " + strconv.Itoa(b.minArgs)
	case b.minArgs == b.maxArgs:
		return strconv.Itoa(b.minArgs)
	default:
		return strconv.Itoa(b.minArgs) + " to " + strconv.Itoa(b.maxArgs)
	}
}

func (a *analyzer) args(b *builtin, args []*ast.Expr, l *locals) error {
	for i, arg := range args {
		switch b.argKind(i) {
		case nameArg:
			if err := a.definitionName(b.name, arg); err != nil {
				return err
			}
		case typeArg:
			if _, err := a.typeOf(arg); err != nil {
				return err
			}
		case funcArg:
			if arg.Kind != ast.Atom {
				return analysisError(arg, "%s expects a function name", b.name)
			}
			if _, ok := a.contract.Functions[arg.Text]; ok {
				continue
			}
			if fb, ok := lookupBuiltin(arg.Text, a.contract.Version, a.contract.Epoch); !ok || fb.fn == nil {
				return analysisError(arg, "use of unresolved function '%s'", arg.Text)
			}
		default:
			if err := a.expr(arg, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *analyzer) definitionName(builtin string, e *ast.Expr) error {
	if e.Kind != ast.Atom {
		return analysisError(e, "%s expects a name", builtin)
	}
	name := e.Text
	c := a.contract
	switch {
	case strings.HasPrefix(builtin, "var-"):
		if _, ok := c.Vars[name]; !ok {
			return analysisError(e, "use of unresolved persisted variable '%s'", name)
		}
	case strings.HasPrefix(builtin, "map-"):
		if _, ok := c.Maps[name]; !ok {
			return analysisError(e, "use of unresolved map '%s'", name)
		}
	case strings.HasPrefix(builtin, "ft-"):
		if _, ok := c.FTs[name]; !ok {
			return analysisError(e, "use of unresolved fungible token '%s'", name)
		}
	case strings.HasPrefix(builtin, "nft-"):
		if _, ok := c.NFTs[name]; !ok {
			return analysisError(e, "use of unresolved non-fungible token '%s'", name)
		}
	default:
		if props, ok := blockProperties[builtin]; ok {
			for _, p := range props {
				if p == name {
					return nil
				}
			}
			return analysisError(e, "%s has no property '%s'", builtin, name)
		}
	}
	return nil
}

func analyzeLet(a *analyzer, e *ast.Expr, l *locals) error {
	args := e.Args()
	bindings := args[0]
	if bindings.Kind != ast.List {
		return analysisError(bindings, "let expects a list of bindings")
	}
	for _, b := range bindings.Children {
		if b.Kind != ast.List || len(b.Children) != 2 || b.Children[0].Kind != ast.Atom {
			return analysisError(b, "let bindings are (name value) pairs")
		}
		name := b.Children[0].Text
		if isReserved(name) {
			return analysisError(b.Children[0], "name '%s' is reserved", name)
		}
		if err := a.expr(b.Children[1], l); err != nil {
			return err
		}
		l = l.child(name)
	}
	for _, body := range args[1:] {
		if err := a.expr(body, l); err != nil {
			return err
		}
	}
	return nil
}

func analyzeMatch(a *analyzer, e *ast.Expr, l *locals) error {
	args := e.Args()
	if err := a.expr(args[0], l); err != nil {
		return err
	}
	bind := func(name *ast.Expr, branch *ast.Expr) error {
		if name.Kind != ast.Atom {
			return analysisError(name, "match expects a binding name")
		}
		if isReserved(name.Text) {
			return analysisError(name, "name '%s' is reserved", name.Text)
		}
		return a.expr(branch, l.child(name.Text))
	}
	if len(args) == 4 {
		if err := bind(args[1], args[2]); err != nil {
			return err
		}
		return a.expr(args[3], l)
	}
	if err := bind(args[1], args[2]); err != nil {
		return err
	}
	return bind(args[3], args[4])
}

func analyzeTuple(a *analyzer, e *ast.Expr, l *locals) error {
	for _, f := range e.Args() {
		if f.Kind != ast.List || len(f.Children) != 2 || f.Children[0].Kind != ast.Atom {
			return analysisError(f, "tuple fields are (name value) pairs")
		}
		if err := a.expr(f.Children[1], l); err != nil {
			return err
		}
	}
	return nil
}

func analyzeContractCall(a *analyzer, e *ast.Expr, l *locals) error {
	args := e.Args()
	target, fn := args[0], args[1]
	if fn.Kind != ast.Atom {
		return analysisError(fn, "contract-call? expects a function name")
	}
	switch target.Kind {
	case ast.Atom:
		if err := a.variable(target, l); err != nil {
			return err
		}
	case ast.ContractRefLit, ast.PrincipalLit:
		issuer := a.contract.ID.Standard()
		v, err := clarity.FromLiteral(target, &issuer)
		if err != nil {
			return analysisError(target, "%v", err)
		}
		p := v.(clarity.Principal)
		if !p.IsContract() {
			return analysisError(target, "contract-call? expects a contract principal")
		}
		if p == a.contract.ID {
			return analysisError(target, "contract cannot call itself with contract-call?")
		}
		callee, err := a.vm.Contract(p)
		if err != nil {
			return analysisError(target, "use of unresolved contract '%s'", p.ID())
		}
		f, ok := callee.Functions[fn.Text]
		if !ok || f.Access == Private {
			return analysisError(fn, "contract '%s' has no public function '%s'", p.ID(), fn.Text)
		}
		if len(args)-2 != len(f.Params) {
			return analysisError(e, "'%s' expects %d arguments, got %d", fn.Text, len(f.Params), len(args)-2)
		}
	default:
		return analysisError(target, "contract-call? expects a contract")
	}
	for _, arg := range args[2:] {
		if err := a.expr(arg, l); err != nil {
			return err
		}
	}
	return nil
}

var branching = map[string]struct{}{
	"if": {}, "match": {}, "asserts!": {}, "unwrap!": {}, "unwrap-err!": {}, "and": {}, "or": {},
}

// collectCoverage records the executable lines, branches and functions.
func (a *analyzer) collectCoverage() {
	c := a.contract
	lines := make(map[uint32]struct{})
	walk := func(root *ast.Expr) {
		root.Walk(func(e *ast.Expr) bool {
			if e.Kind != ast.List {
				return true
			}
			if head := e.Head(); head != "" {
				lines[e.Span.StartLine] = struct{}{}
				if _, ok := branching[head]; ok {
					c.branches = append(c.branches, coverage.Branch{ID: uint32(e.ID), Line: e.Span.StartLine, Arms: 2})
				}
			}
			return true
		})
	}
	for _, e := range c.Exprs {
		switch head := e.Head(); head {
		case "define-public", "define-private", "define-read-only":
			fn := c.Functions[e.Args()[0].Children[0].Text]
			c.fnSpans = append(c.fnSpans, coverage.Function{Name: fn.Name, Line: e.Span.StartLine})
			for _, body := range fn.Body {
				walk(body)
			}
		default:
			if !isDefinition(head) {
				walk(e)
			}
		}
	}
	for line := range lines {
		c.lines = append(c.lines, line)
	}
}
