// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/cost"
	"github.com/ava-labs/simnet/ledger"
)

// Result is the outcome of one transaction or evaluation.
type Result struct {
	Value  clarity.Value
	Events []Event
	Cost   cost.ExecutionCost
	// Lines holds the source lines executed, per contract id.
	Lines map[string][]uint32
}

// DeployOptions controls a contract deployment. A zero Version selects the
// default of the current epoch; Path is reported in coverage and defaults to
// contracts/<name>.clar.
type DeployOptions struct {
	Version clarity.Version
	Path    string
	Sponsor *clarity.Principal
}

func (t *txState) hit(contract string, line uint32) {
	if t.lines == nil {
		t.lines = make(map[string]map[uint32]struct{})
	}
	set, ok := t.lines[contract]
	if !ok {
		set = make(map[uint32]struct{})
		t.lines[contract] = set
	}
	set[line] = struct{}{}
}

func (t *txState) lineSet() map[string][]uint32 {
	out := make(map[string][]uint32, len(t.lines))
	for contract, set := range t.lines {
		ls := make([]uint32, 0, len(set))
		for l := range set {
			ls = append(ls, l)
		}
		sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
		out[contract] = ls
	}
	return out
}

func (vm *VM) begin(c *Contract, self, sender clarity.Principal, sponsor *clarity.Principal, readOnly bool) *evalCtx {
	vm.costs.Reset()
	return &evalCtx{vm: vm, tx: &txState{}, frame: &frame{
		contract: c,
		self:     self,
		sender:   sender,
		caller:   sender,
		sponsor:  sponsor,
		readOnly: readOnly,
	}}
}

// Deploy analyzes source and publishes it as sender.name. Top-level
// expressions run in order; any failure leaves no state behind.
func (vm *VM) Deploy(sender clarity.Principal, name, source string, opts DeployOptions) (*Result, *Contract, error) {
	epoch := vm.chain.Epoch()
	version := opts.Version
	if version == 0 {
		version = epoch.DefaultVersion()
	}
	if !epoch.SupportsVersion(version) {
		return nil, nil, fmt.Errorf("%w: %s in epoch %s", ErrVersionUnsupported, version, epoch)
	}
	if err := clarity.ValidateContractName(name); err != nil {
		return nil, nil, err
	}
	id := sender.Contract(name)
	exists, err := vm.store.HasContract(id)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrContractExists, id.ID())
	}

	c, err := vm.analyze(id, source, epoch, version)
	if err != nil {
		return nil, nil, err
	}
	c.Height = vm.chain.StacksBlockHeight()

	ctx := vm.begin(c, id, sender, opts.Sponsor, false)
	vm.store.Begin()
	rec, err := ctx.initialize()
	if err == nil {
		err = vm.store.PutContract(rec)
	}
	if err != nil {
		vm.store.Abort()
		return nil, nil, err
	}
	if err := vm.store.Commit(); err != nil {
		return nil, nil, err
	}
	vm.cache[id.ID()] = c
	path := opts.Path
	if path == "" {
		path = filepath.Join("contracts", name+".clar")
	}
	vm.coverage.RegisterContract(id.ID(), path, sender.Standard() == vm.BootAddress(), c.fnSpans, c.lines, c.branches)
	vm.log.Debug("deployed contract", "contract", id.ID(), "version", version, "epoch", epoch)
	return &Result{Value: clarity.True, Events: ctx.tx.events, Cost: vm.costs.Total(), Lines: ctx.tx.lineSet()}, c, nil
}

// initialize evaluates the definitions and top-level expressions of a new
// contract and returns its ledger record.
func (c *evalCtx) initialize() (*ledger.ContractRecord, error) {
	contract := c.frame.contract
	rec := &ledger.ContractRecord{
		ID:      contract.ID.ID(),
		Source:  []byte(contract.Source),
		Epoch:   contract.Epoch,
		Version: contract.Version,
		Height:  contract.Height,
	}
	for _, e := range contract.Exprs {
		args := e.Args()
		switch e.Head() {
		case "define-constant":
			v, err := c.eval(args[1], nil)
			if err != nil {
				return nil, err
			}
			contract.constValues[args[0].Text] = v
			b, err := clarity.Serialize(v)
			if err != nil {
				return nil, wrap(e, err)
			}
			rec.Constants = append(rec.Constants, ledger.ConstantValue{Name: args[0].Text, Value: b})
		case "define-data-var":
			dv := contract.Vars[args[0].Text]
			v, err := c.eval(dv.Init, nil)
			if err != nil {
				return nil, err
			}
			if err := c.checkType("define-data-var", dv.Type, v); err != nil {
				return nil, wrap(e, err)
			}
			if err := c.vm.store.SetDataVar(contract.ID, dv.Name, v); err != nil {
				return nil, err
			}
		case "define-fungible-token":
			if len(args) == 2 {
				v, err := c.eval(args[1], nil)
				if err != nil {
					return nil, err
				}
				if _, err := asUInt(v); err != nil {
					return nil, wrap(e, err)
				}
			}
		case "define-public", "define-private", "define-read-only", "define-map",
			"define-non-fungible-token", "define-trait", "use-trait", "impl-trait":
		default:
			if _, err := c.eval(e, nil); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

func (vm *VM) record(contract clarity.Principal, method string, args []clarity.Value) {
	if !vm.report.Enabled() {
		return
	}
	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = a.String()
	}
	vm.report.Add(cost.Entry{
		ContractID: contract.ID(),
		Method:     method,
		Args:       strs,
		CostResult: cost.Result{Total: vm.costs.Total(), Limit: vm.costs.Limits()},
	})
}

func (vm *VM) function(id clarity.Principal, name string) (*Contract, *Function, error) {
	c, err := vm.Contract(id)
	if err != nil {
		return nil, nil, err
	}
	fn, ok := c.Functions[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s::%s", ErrUnknownFunction, id.ID(), name)
	}
	return c, fn, nil
}

// CallPublic runs a public function as a transaction from sender. A (err ...)
// result discards every write and event of the call.
func (vm *VM) CallPublic(sender, contract clarity.Principal, name string, args []clarity.Value, sponsor *clarity.Principal) (*Result, error) {
	c, fn, err := vm.function(contract, name)
	if err != nil {
		return nil, err
	}
	if fn.Access != Public {
		return nil, fmt.Errorf("%w: %s::%s is %s", ErrNotPublic, contract.ID(), name, fn.Access)
	}
	ctx := vm.begin(c, contract, sender, sponsor, false)
	vm.store.Begin()
	v, err := ctx.callFunction(fn, args, nil)
	if err != nil {
		vm.store.Abort()
		return nil, err
	}
	r, ok := v.(clarity.Response)
	if !ok {
		vm.store.Abort()
		return nil, fmt.Errorf("public function %s::%s returned %s, not a response", contract.ID(), name, clarity.KindName(v))
	}
	if !r.Ok {
		vm.store.Abort()
		ctx.tx.events = nil
	} else {
		if err := vm.onPublicSuccess(ctx, c, name, v); err != nil {
			vm.store.Abort()
			return nil, err
		}
		if err := vm.store.Commit(); err != nil {
			return nil, err
		}
	}
	vm.record(contract, name, args)
	return &Result{Value: v, Events: ctx.tx.events, Cost: vm.costs.Total(), Lines: ctx.tx.lineSet()}, nil
}

// CallReadOnly evaluates a read-only function. Nothing it does is kept.
func (vm *VM) CallReadOnly(sender, contract clarity.Principal, name string, args []clarity.Value) (*Result, error) {
	c, fn, err := vm.function(contract, name)
	if err != nil {
		return nil, err
	}
	if fn.Access != ReadOnly {
		return nil, fmt.Errorf("%w: %s::%s is %s", ErrNotReadOnly, contract.ID(), name, fn.Access)
	}
	ctx := vm.begin(c, contract, sender, nil, true)
	vm.store.Begin()
	defer vm.store.Abort()
	v, err := ctx.callFunction(fn, args, nil)
	if err != nil {
		return nil, err
	}
	vm.record(contract, name, args)
	return &Result{Value: v, Events: ctx.tx.events, Cost: vm.costs.Total(), Lines: ctx.tx.lineSet()}, nil
}

// CallPrivate runs a private function as if it were public, for tests.
// Its writes are kept unless it returns an err response.
func (vm *VM) CallPrivate(sender, contract clarity.Principal, name string, args []clarity.Value) (*Result, error) {
	c, fn, err := vm.function(contract, name)
	if err != nil {
		return nil, err
	}
	if fn.Access != Private {
		return nil, fmt.Errorf("%w: %s::%s is %s", ErrNotPrivate, contract.ID(), name, fn.Access)
	}
	ctx := vm.begin(c, contract, sender, nil, false)
	vm.store.Begin()
	v, err := ctx.callFunction(fn, args, nil)
	if err != nil {
		vm.store.Abort()
		return nil, err
	}
	if r, ok := v.(clarity.Response); ok && !r.Ok {
		vm.store.Abort()
		ctx.tx.events = nil
	} else if err := vm.store.Commit(); err != nil {
		return nil, err
	}
	vm.record(contract, name, args)
	return &Result{Value: v, Events: ctx.tx.events, Cost: vm.costs.Total(), Lines: ctx.tx.lineSet()}, nil
}

// ExecuteSnippet evaluates free-standing expressions as sender, with the
// latest Clarity version of the current epoch. Definitions are rejected.
// Writes are kept unless the last value is an err response.
func (vm *VM) ExecuteSnippet(sender clarity.Principal, source string) (*Result, error) {
	epoch := vm.chain.Epoch()
	c, err := vm.analyzeSnippet(sender, source, epoch, epoch.MaxVersion())
	if err != nil {
		return nil, err
	}
	if len(c.Exprs) == 0 {
		return nil, errors.New("empty snippet")
	}
	ctx := vm.begin(c, sender, sender, nil, false)
	vm.store.Begin()
	v, err := ctx.evalBody(c.Exprs, nil)
	if err != nil {
		vm.store.Abort()
		return nil, err
	}
	if r, ok := v.(clarity.Response); ok && !r.Ok {
		vm.store.Abort()
		ctx.tx.events = nil
	} else if err := vm.store.Commit(); err != nil {
		return nil, err
	}
	return &Result{Value: v, Events: ctx.tx.events, Cost: vm.costs.Total(), Lines: ctx.tx.lineSet()}, nil
}

// TransferSTX is a native token transfer transaction.
func (vm *VM) TransferSTX(sender, recipient clarity.Principal, amount clarity.UInt, memo []byte) (*Result, error) {
	vm.costs.Reset()
	vm.store.Begin()
	code, err := vm.transferSTX(sender, recipient, amount)
	if err != nil {
		vm.store.Abort()
		return nil, err
	}
	if code != 0 {
		vm.store.Abort()
		return &Result{Value: errCode(code), Cost: vm.costs.Total()}, nil
	}
	if err := vm.store.Commit(); err != nil {
		return nil, err
	}
	ev := &STXTransferEvent{Sender: sender, Recipient: recipient, Amount: amount, Memo: memo}
	return &Result{Value: okTrue, Events: []Event{ev}, Cost: vm.costs.Total()}, nil
}

// MintSTX credits recipient with newly created STX.
func (vm *VM) MintSTX(recipient clarity.Principal, amount clarity.UInt) (*Result, error) {
	bal, err := vm.store.STXBalance(recipient)
	if err != nil {
		return nil, err
	}
	sum, err := addUInt(bal, amount)
	if err != nil {
		return nil, err
	}
	if err := vm.Unmetered(func() error { return vm.store.SetSTXBalance(recipient, sum) }); err != nil {
		return nil, err
	}
	ev := &STXMintEvent{Recipient: recipient, Amount: amount}
	return &Result{Value: okTrue, Events: []Event{ev}}, nil
}
