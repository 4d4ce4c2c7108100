// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm analyzes and evaluates Clarity contracts against a ledger store.
//
// Contracts are checked once when deployed: definitions are collected, every
// symbol is resolved against the builtins available to the contract's Clarity
// version, arities and traits are verified. Evaluation then walks the syntax
// tree directly.
package vm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/cost"
	"github.com/ava-labs/simnet/coverage"
	"github.com/ava-labs/simnet/ledger"

	log "github.com/inconshreveable/log15"
)

// Chain exposes the heights and time of the block being assembled.
type Chain interface {
	Epoch() clarity.Epoch
	StacksBlockHeight() uint32
	BurnBlockHeight() uint32
	TenureHeight() uint32
	BlockTime() uint64
}

// Config holds the optional collaborators of a VM. Nil trackers are replaced
// by disabled ones.
type Config struct {
	Mainnet  bool
	ChainID  uint32
	Costs    *cost.Tracker
	Report   *cost.Report
	Coverage *coverage.Tracker
	Log      log.Logger
}

const (
	ChainIDMainnet uint32 = 0x00000001
	ChainIDTestnet uint32 = 0x80000000
)

type VM struct {
	store    *ledger.Store
	chain    Chain
	mainnet  bool
	chainID  uint32
	costs    *cost.Tracker
	report   *cost.Report
	coverage *coverage.Tracker
	cache    map[string]*Contract
	log      log.Logger
}

func New(store *ledger.Store, chain Chain, cfg Config) *VM {
	vm := &VM{
		store:    store,
		chain:    chain,
		mainnet:  cfg.Mainnet,
		chainID:  cfg.ChainID,
		costs:    cfg.Costs,
		report:   cfg.Report,
		coverage: cfg.Coverage,
		cache:    make(map[string]*Contract),
		log:      cfg.Log,
	}
	if vm.chainID == 0 {
		vm.chainID = ChainIDTestnet
		if vm.mainnet {
			vm.chainID = ChainIDMainnet
		}
	}
	if vm.costs == nil {
		vm.costs = cost.NewTracker(cost.DefaultLimits)
	}
	if vm.report == nil {
		vm.report = cost.NewReport(false)
	}
	if vm.coverage == nil {
		vm.coverage = coverage.NewTracker(false)
	}
	if vm.log == nil {
		vm.log = log.New()
		vm.log.SetHandler(log.DiscardHandler())
	}
	store.SetMeter(vm.costs)
	return vm
}

func (vm *VM) Costs() *cost.Tracker       { return vm.costs }
func (vm *VM) Report() *cost.Report       { return vm.report }
func (vm *VM) Coverage() *coverage.Tracker { return vm.coverage }

// Unmetered runs fn without charging storage accesses to the running
// transaction.
func (vm *VM) Unmetered(fn func() error) error {
	vm.store.SetMeter(nil)
	defer vm.store.SetMeter(vm.costs)
	return fn()
}

// Contract loads and analyzes the contract id. Analyzed contracts are cached
// for as long as their stored source is unchanged.
func (vm *VM) Contract(id clarity.Principal) (*Contract, error) {
	rec, err := vm.store.Contract(id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, id.ID())
	}
	if err != nil {
		return nil, err
	}
	if c, ok := vm.cache[id.ID()]; ok && c.Source == string(rec.Source) && c.Version == rec.Version {
		return c, nil
	}

	c, err := vm.analyze(id, string(rec.Source), rec.Epoch, rec.Version)
	if err != nil {
		return nil, fmt.Errorf("stored contract %s does not analyze: %w", id.ID(), err)
	}
	c.Height = rec.Height
	c.Remote = rec.Remote
	for _, k := range rec.Constants {
		v, err := clarity.Deserialize(k.Value)
		if err != nil {
			return nil, fmt.Errorf("constant %s of %s: %w", k.Name, id.ID(), err)
		}
		c.constValues[k.Name] = v
	}
	if len(rec.Constants) == 0 && len(c.Constants) > 0 {
		if err := vm.evalConstants(c); err != nil {
			return nil, err
		}
	}
	vm.cache[id.ID()] = c
	return c, nil
}

// evalConstants computes the constants of a contract whose record does not
// carry them, such as one fetched from a remote node.
func (vm *VM) evalConstants(c *Contract) error {
	ctx := &evalCtx{vm: vm, tx: &txState{}, frame: &frame{
		contract: c,
		self:     c.ID,
		sender:   c.ID,
		caller:   c.ID,
		readOnly: true,
	}}
	for _, e := range c.Exprs {
		if e.Head() != "define-constant" {
			continue
		}
		args := e.Args()
		v, err := ctx.eval(args[1], nil)
		if err != nil {
			return err
		}
		c.constValues[args[0].Text] = v
	}
	return nil
}

func (vm *VM) trait(id clarity.TraitIdentifier) (*Trait, error) {
	c, err := vm.Contract(id.Contract)
	if err != nil {
		return nil, err
	}
	t, ok := c.Traits[id.Name]
	if !ok {
		return nil, fmt.Errorf("trait %s is not defined", id)
	}
	return t, nil
}

// checkConformance verifies that contract p provides every function of the
// trait with a matching signature.
func (vm *VM) checkConformance(p clarity.Principal, id clarity.TraitIdentifier) error {
	t, err := vm.trait(id)
	if err != nil {
		return err
	}
	c, err := vm.Contract(p)
	if err != nil {
		return err
	}
	return conforms(c, id, t)
}

func conforms(c *Contract, id clarity.TraitIdentifier, t *Trait) error {
	for _, want := range t.Functions {
		fn, ok := c.Functions[want.Name]
		if !ok || fn.Access == Private {
			return fmt.Errorf("%s does not implement %s: missing function '%s'", c.ID.ID(), id, want.Name)
		}
		if len(fn.Params) != len(want.Params) {
			return fmt.Errorf("%s does not implement %s: '%s' takes %d arguments, expected %d", c.ID.ID(), id, want.Name, len(fn.Params), len(want.Params))
		}
		for i, p := range fn.Params {
			if !sameShape(p.Type, want.Params[i]) {
				return fmt.Errorf("%s does not implement %s: argument %d of '%s' is %s, expected %s", c.ID.ID(), id, i+1, want.Name, p.Type, want.Params[i])
			}
		}
	}
	return nil
}

// sameShape compares types ignoring trait identity, which differs between the
// defining and the implementing contract's aliases.
func sameShape(a, b clarity.TypeSignature) bool {
	if a.Kind == clarity.TraitKind && b.Kind == clarity.TraitKind {
		return a.Trait.Name == b.Trait.Name || a.Trait.Contract == b.Trait.Contract
	}
	if a.Kind == clarity.TraitKind || b.Kind == clarity.TraitKind {
		return (a.Kind == clarity.PrincipalKind) || (b.Kind == clarity.PrincipalKind)
	}
	return a.Equal(b)
}
