// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/ledger"
)

// scope is a persistent list of local bindings.
type scope struct {
	name   string
	value  clarity.Value
	parent *scope
}

func (s *scope) bind(name string, v clarity.Value) *scope {
	return &scope{name: name, value: v, parent: s}
}

func (s *scope) lookup(name string) (clarity.Value, bool) {
	for ; s != nil; s = s.parent {
		if s.name == name {
			return s.value, true
		}
	}
	return nil, false
}

// frame is the context a contract function runs in.
type frame struct {
	contract *Contract
	self     clarity.Principal // caller seen by contracts this frame calls
	sender   clarity.Principal
	caller   clarity.Principal
	sponsor  *clarity.Principal
	readOnly bool
	atBlock  *ledger.BlockInfo
}

// txState is shared by every frame of one transaction.
type txState struct {
	events []Event
	depth  int
	lines  map[string]map[uint32]struct{}
}

type evalCtx struct {
	vm    *VM
	tx    *txState
	frame *frame
}

func (c *evalCtx) with(f *frame) *evalCtx {
	return &evalCtx{vm: c.vm, tx: c.tx, frame: f}
}

func (c *evalCtx) contractID() string {
	if c.frame.contract == nil {
		return ""
	}
	return c.frame.contract.ID.ID()
}

func (c *evalCtx) emit(ev Event) {
	c.tx.events = append(c.tx.events, ev)
}

func (c *evalCtx) checkWrite(e *ast.Expr) error {
	if c.frame.readOnly {
		return wrap(e, ErrWriteInReadOnly)
	}
	return nil
}

func (c *evalCtx) eval(e *ast.Expr, sc *scope) (clarity.Value, error) {
	switch e.Kind {
	case ast.Atom:
		return c.lookup(e, sc)
	case ast.List:
		return c.apply(e, sc)
	case ast.Tuple:
		fields := make([]clarity.TupleField, 0, len(e.Children)/2)
		for i := 0; i+1 < len(e.Children); i += 2 {
			v, err := c.eval(e.Children[i+1], sc)
			if err != nil {
				return nil, err
			}
			fields = append(fields, clarity.TupleField{Name: e.Children[i].Text, Value: v})
		}
		t, err := clarity.NewTuple(fields...)
		return t, wrap(e, err)
	case ast.ContractRefLit:
		issuer := c.frame.contract.ID
		v, err := clarity.FromLiteral(e, &issuer)
		return v, wrap(e, err)
	case ast.TraitRef, ast.FieldLit:
		return nil, runtimeError(e, "%s cannot be evaluated", e.Kind)
	}
	v, err := clarity.FromLiteral(e, nil)
	return v, wrap(e, err)
}

func (c *evalCtx) lookup(e *ast.Expr, sc *scope) (clarity.Value, error) {
	name := e.Text
	if v, ok := sc.lookup(name); ok {
		return v, nil
	}
	switch name {
	case "true":
		return clarity.True, nil
	case "false":
		return clarity.False, nil
	case "none":
		return clarity.None, nil
	}
	contract := c.frame.contract
	if v, ok := contract.constValues[name]; ok {
		return v, nil
	}
	if b, ok := lookupBuiltin(name, contract.Version, contract.Epoch); ok && b.keyword {
		v, err := b.value(c)
		return v, wrap(e, err)
	}
	return nil, runtimeError(e, "use of unresolved variable '%s'", name)
}

func (c *evalCtx) apply(e *ast.Expr, sc *scope) (clarity.Value, error) {
	head := e.Head()
	if head == "" {
		return nil, runtimeError(e, "expected a function application")
	}
	contract := c.frame.contract
	c.vm.coverage.HitLine(c.contractID(), e.Span.StartLine)
	c.tx.hit(c.contractID(), e.Span.StartLine)

	if fn, ok := contract.Functions[head]; ok {
		args, err := c.evalArgs(e.Args(), sc)
		if err != nil {
			return nil, err
		}
		return c.callFunction(fn, args, e)
	}

	b, ok := lookupBuiltin(head, contract.Version, contract.Epoch)
	if !ok || b.keyword {
		return nil, runtimeError(e, "use of unresolved function '%s'", head)
	}
	n := len(e.Args())
	if n < b.minArgs || (b.maxArgs >= 0 && n > b.maxArgs) {
		return nil, wrap(e, fmt.Errorf("%w: %s got %d", ErrArgumentCount, head, n))
	}
	if err := c.vm.costs.Charge(head, uint64(n)); err != nil {
		return nil, err
	}
	v, err := b.eval(c, e, sc)
	return v, wrap(e, err)
}

func (c *evalCtx) evalArgs(args []*ast.Expr, sc *scope) ([]clarity.Value, error) {
	vals := make([]clarity.Value, len(args))
	for i, arg := range args {
		v, err := c.eval(arg, sc)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (c *evalCtx) evalBody(body []*ast.Expr, sc *scope) (clarity.Value, error) {
	var (
		v   clarity.Value
		err error
	)
	for _, e := range body {
		if v, err = c.eval(e, sc); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func eager(fn nativeFunc) evalFunc {
	return func(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error) {
		args, err := c.evalArgs(e.Args(), sc)
		if err != nil {
			return nil, err
		}
		return fn(c, e, args)
	}
}

// callFunction runs fn of the current frame's contract. Early returns stop
// at the function boundary.
func (c *evalCtx) callFunction(fn *Function, args []clarity.Value, e *ast.Expr) (clarity.Value, error) {
	if len(args) != len(fn.Params) {
		return nil, wrap(e, fmt.Errorf("%w: %s expects %d, got %d", ErrArgumentCount, fn.Name, len(fn.Params), len(args)))
	}
	if c.tx.depth >= MaxStackDepth {
		return nil, wrap(e, ErrMaxStackDepth)
	}
	c.tx.depth++
	defer func() { c.tx.depth-- }()

	var sc *scope
	for i, p := range fn.Params {
		v, err := c.coerce(p.Type, args[i])
		if err != nil {
			return nil, wrap(e, fmt.Errorf("%s: argument '%s': %w", fn.Name, p.Name, err))
		}
		sc = sc.bind(p.Name, v)
	}
	if err := c.vm.costs.Charge("user-function", uint64(len(args))); err != nil {
		return nil, err
	}
	c.vm.coverage.HitFunction(c.contractID(), fn.Name)

	inner := c
	if fn.Access == ReadOnly && !c.frame.readOnly {
		f := *c.frame
		f.readOnly = true
		inner = c.with(&f)
	}
	v, err := inner.evalBody(fn.Body, sc)
	var early *earlyReturn
	if errors.As(err, &early) {
		return early.value, nil
	}
	return v, err
}

// coerce checks v against a declared type. Contract principals passed where a
// trait is expected become callable contracts once their conformance holds.
func (c *evalCtx) coerce(t clarity.TypeSignature, v clarity.Value) (clarity.Value, error) {
	if t.Kind == clarity.TraitKind {
		var p clarity.Principal
		switch x := v.(type) {
		case clarity.Principal:
			p = x
		case clarity.CallableContract:
			p = x.Contract
		default:
			return nil, fmt.Errorf("%w: expected %s, got %s", ErrBadArgument, t, clarity.KindName(v))
		}
		if !p.IsContract() {
			return nil, fmt.Errorf("%w: expected a contract implementing %s", ErrBadArgument, t.Trait)
		}
		if err := c.vm.checkConformance(p, *t.Trait); err != nil {
			return nil, err
		}
		trait := *t.Trait
		return clarity.CallableContract{Contract: p, Trait: &trait}, nil
	}
	if !t.Admits(v) {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrBadArgument, t, v.Type())
	}
	return v, nil
}

// contractCall invokes a public or read-only function of another contract.
// A callee returning an err response has its writes and events discarded.
func (c *evalCtx) contractCall(e *ast.Expr, target clarity.Principal, name string, args []clarity.Value) (clarity.Value, error) {
	if !target.IsContract() {
		return nil, runtimeError(e, "%s is not a contract", target.ID())
	}
	callee, err := c.vm.Contract(target)
	if err != nil {
		return nil, wrap(e, err)
	}
	fn, ok := callee.Functions[name]
	if !ok || fn.Access == Private {
		return nil, wrap(e, fmt.Errorf("%w: contract %s has no public function '%s'", ErrUnknownFunction, target.ID(), name))
	}
	readOnly := c.frame.readOnly || fn.Access == ReadOnly
	f := &frame{
		contract: callee,
		self:     callee.ID,
		sender:   c.frame.sender,
		caller:   c.frame.self,
		sponsor:  c.frame.sponsor,
		readOnly: readOnly,
		atBlock:  c.frame.atBlock,
	}

	c.emit(&ContractCallEvent{Caller: c.frame.self, Contract: target, Function: name, Args: args})
	mark := len(c.tx.events)
	c.vm.store.Begin()
	v, err := c.with(f).callFunction(fn, args, e)
	if err != nil {
		c.vm.store.Abort()
		return nil, err
	}
	if r, ok := v.(clarity.Response); ok && !r.Ok {
		c.vm.store.Abort()
		c.tx.events = c.tx.events[:mark]
		return v, nil
	}
	if !readOnly {
		if err := c.vm.onPublicSuccess(c.with(f), callee, name, v); err != nil {
			c.vm.store.Abort()
			return nil, err
		}
	}
	if err := c.vm.store.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}
