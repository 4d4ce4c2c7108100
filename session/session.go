// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session drives one simulated chain: it funds accounts, deploys the
// boot contracts, mines blocks of transactions and answers read queries
// against the ledger.
package session

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/cost"
	"github.com/ava-labs/simnet/coverage"
	"github.com/ava-labs/simnet/ledger"
	"github.com/ava-labs/simnet/vm"
)

var (
	ErrTerminated         = errors.New("session is terminated")
	ErrStacksBlockPre30   = errors.New("use mineEmptyBurnBlock in epoch lower than 3.0")
	ErrUnknownAccount     = errors.New("unknown account")
	errNotInitialized     = errors.New("session is not initialized")
	errInvalidBlockNumber = errors.New("block count must be positive")

	_ vm.Chain = (*Session)(nil)

	sessionCounter uint64
)

// GenesisTime is the timestamp of block 0.
var GenesisTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	burnBlockInterval   = 600 * time.Second
	stacksBlockInterval = 5 * time.Second
)

// State is the lifecycle stage of a session.
type State uint8

const (
	Uninitialized State = iota
	Initialized
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// Account is a funded principal of the session.
type Account struct {
	Name    string
	Address clarity.Principal
	Balance clarity.UInt
}

// Session is one isolated simulated chain. It is not safe for concurrent use.
type Session struct {
	id    string
	cfg   *Config
	state State

	store   *ledger.Store
	vm      *vm.VM
	clock   mockable.Clock
	mempool *mempool
	log     log.Logger

	epoch clarity.Epoch
	// coordinates of the open block
	stacks   uint32
	burn     uint32
	tenure   uint32
	burnTime time.Time
	parent   ids.ID

	accounts []Account
	deployer clarity.Principal
	// receipts of block 0
	genesisReceipts []*Receipt
}

type options struct {
	logger log.Logger
	remote ledger.RemoteSource
	limits cost.ExecutionCost
}

// Option customizes a session at creation.
type Option func(*options)

// WithLogger sets the parent logger of the session.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRemote makes contract misses fall back to src.
func WithRemote(src ledger.RemoteSource) Option {
	return func(o *options) { o.remote = src }
}

// WithCostLimits replaces the default per-transaction cost limits.
func WithCostLimits(limits cost.ExecutionCost) Option {
	return func(o *options) { o.limits = limits }
}

// New creates a session from cfg, funds its accounts and deploys the boot
// contracts. The returned session is initialized.
func New(cfg *Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{limits: cost.DefaultLimits}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.New()
		o.logger.SetHandler(log.DiscardHandler())
	}

	n := atomic.AddUint64(&sessionCounter, 1)
	p := wrappers.Packer{MaxSize: math.MaxUint16 + 2*wrappers.LongLen + wrappers.ShortLen, Bytes: make([]byte, 0, 64)}
	p.PackStr(cfg.Name)
	p.PackLong(n)
	p.PackLong(uint64(time.Now().UnixNano()))
	if p.Errored() {
		return nil, fmt.Errorf("couldn't derive session id: %w", p.Err)
	}
	id := ids.ID(hashing.ComputeHash256Array(p.Bytes))

	s := &Session{
		id:      id.String(),
		cfg:     cfg,
		mempool: newMempool(),
		log:     o.logger.New("session", id.String()),
	}
	s.clock.Set(GenesisTime)
	s.burnTime = GenesisTime
	s.epoch = s.parseEpoch(cfg.Epoch)
	s.store = ledger.NewStore(s.log.New("module", "ledger"))
	if o.remote != nil {
		s.store.SetRemote(o.remote)
	}
	s.vm = vm.New(s.store, s, vm.Config{
		Mainnet:  cfg.Mainnet,
		Costs:    cost.NewTracker(o.limits),
		Report:   cost.NewReport(cfg.Costs),
		Coverage: coverage.NewTracker(cfg.Coverage),
		Log:      s.log.New("module", "vm"),
	})

	if err := s.genesis(); err != nil {
		return nil, fmt.Errorf("genesis failed: %w", err)
	}
	s.state = Initialized
	s.log.Info("session initialized", "epoch", s.epoch, "accounts", len(s.accounts), "height", s.stacks)
	return s, nil
}

// parseEpoch resolves an epoch name, falling back to the latest epoch when
// the name is empty or unknown.
func (s *Session) parseEpoch(name string) clarity.Epoch {
	if name == "" {
		return clarity.LatestEpoch
	}
	e, err := clarity.ParseEpoch(name)
	if err != nil {
		s.log.Warn("invalid epoch, falling back to latest", "epoch", name, "latest", clarity.LatestEpoch, "err", err)
		return clarity.LatestEpoch
	}
	return e
}

// use rejects calls on a terminated session and marks a fresh one running.
func (s *Session) use() error {
	switch s.state {
	case Terminated:
		return ErrTerminated
	case Uninitialized:
		return errNotInitialized
	case Initialized:
		s.state = Running
	}
	return nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) State() State         { return s.state }
func (s *Session) Config() *Config      { return s.cfg }
func (s *Session) VM() *vm.VM           { return s.vm }
func (s *Session) Store() *ledger.Store { return s.store }

// Terminate releases the session. Every later call fails with ErrTerminated.
func (s *Session) Terminate() {
	if s.state == Terminated {
		return
	}
	s.state = Terminated
	s.mempool.Clear()
	s.log.Info("session terminated", "height", s.stacks)
}

// Epoch, StacksBlockHeight, BurnBlockHeight, TenureHeight and BlockTime
// describe the open block to the evaluator.
func (s *Session) Epoch() clarity.Epoch      { return s.epoch }
func (s *Session) StacksBlockHeight() uint32 { return s.stacks }
func (s *Session) BurnBlockHeight() uint32   { return s.burn }
func (s *Session) TenureHeight() uint32      { return s.tenure }
func (s *Session) BlockTime() uint64         { return uint64(s.clock.Unix()) }

// BlockHeight is the height of the block the next transactions land in.
func (s *Session) BlockHeight() uint32 { return s.stacks }

// SetEpoch switches the epoch of the blocks mined from now on. An unknown
// name is logged and replaced by the latest epoch.
func (s *Session) SetEpoch(name string) (clarity.Epoch, error) {
	if err := s.use(); err != nil {
		return 0, err
	}
	s.epoch = s.parseEpoch(name)
	s.log.Info("epoch updated", "epoch", s.epoch, "height", s.stacks)
	return s.epoch, nil
}

// GenesisReceipts are the account fundings and boot deployments of block 0.
func (s *Session) GenesisReceipts() []*Receipt { return s.genesisReceipts }

// Deployer is the principal contracts are published from by default.
func (s *Session) Deployer() clarity.Principal { return s.deployer }

// Accounts returns the configured accounts with their current balances.
func (s *Session) Accounts() ([]Account, error) {
	accounts := make([]Account, len(s.accounts))
	err := s.vm.Unmetered(func() error {
		for i, a := range s.accounts {
			bal, err := s.store.STXBalance(a.Address)
			if err != nil {
				return err
			}
			accounts[i] = Account{Name: a.Name, Address: a.Address, Balance: bal}
		}
		return nil
	})
	return accounts, err
}

// Account resolves an account name or a principal literal.
func (s *Session) Account(name string) (clarity.Principal, error) {
	for _, a := range s.accounts {
		if a.Name == name {
			return a.Address, nil
		}
	}
	p, err := clarity.ParsePrincipal(name)
	if err != nil {
		return clarity.Principal{}, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}
	return p, nil
}

// Nonce is the number of transactions p has sent.
func (s *Session) Nonce(p clarity.Principal) (uint64, error) {
	var n uint64
	err := s.vm.Unmetered(func() (err error) {
		n, err = s.store.Nonce(p)
		return err
	})
	return n, err
}

// CallReadOnlyFn evaluates a read-only function without mining.
func (s *Session) CallReadOnlyFn(sender, contract clarity.Principal, name string, args ...clarity.Value) (*Receipt, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	res, err := s.vm.CallReadOnly(sender, contract, name, args)
	if err != nil {
		return nil, err
	}
	return &Receipt{Result: res.Value, Events: res.Events, Cost: res.Cost, Lines: res.Lines}, nil
}

// CallPublicFn mines a block holding one public call.
func (s *Session) CallPublicFn(sender, contract clarity.Principal, name string, args ...clarity.Value) (*Receipt, error) {
	return s.mineOne(CallPublicTx(sender, contract, name, args...))
}

// CallPrivateFn mines a block holding one private call.
func (s *Session) CallPrivateFn(sender, contract clarity.Principal, name string, args ...clarity.Value) (*Receipt, error) {
	return s.mineOne(CallPrivateTx(sender, contract, name, args...))
}

// DeployContract mines a block publishing source as sender.name.
func (s *Session) DeployContract(sender clarity.Principal, name, source string, version clarity.Version) (*Receipt, error) {
	return s.mineOne(DeployTx(sender, name, source, version))
}

// TransferSTX mines a block holding one STX transfer.
func (s *Session) TransferSTX(sender, recipient clarity.Principal, amount uint64) (*Receipt, error) {
	return s.mineOne(TransferSTXTx(sender, recipient, amount))
}

func (s *Session) mineOne(tx *Tx) (*Receipt, error) {
	receipts, err := s.MineBlock(tx)
	if err != nil {
		return nil, err
	}
	return receipts[0], nil
}

// ExecuteSnippet evaluates source in the open block without mining. Writes
// persist unless the result is an err response.
func (s *Session) ExecuteSnippet(sender clarity.Principal, source string) (*Receipt, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	res, err := s.vm.ExecuteSnippet(sender, source)
	if err != nil {
		return nil, err
	}
	return &Receipt{Result: res.Value, Events: res.Events, Cost: res.Cost, Lines: res.Lines}, nil
}

// MintSTX credits recipient outside of any transaction.
func (s *Session) MintSTX(recipient clarity.Principal, amount uint64) (*Receipt, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	res, err := s.vm.MintSTX(recipient, clarity.NewUInt(amount))
	if err != nil {
		return nil, err
	}
	return &Receipt{Result: res.Value, Events: res.Events}, nil
}

// GetDataVar reads a data-var at the open block.
func (s *Session) GetDataVar(contract clarity.Principal, name string) (clarity.Value, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	var v clarity.Value
	err := s.vm.Unmetered(func() (err error) {
		v, err = s.store.DataVar(contract, name)
		return err
	})
	return v, err
}

// GetMapEntry reads a map entry at the open block; a missing key is none.
func (s *Session) GetMapEntry(contract clarity.Principal, name string, key clarity.Value) (clarity.Optional, error) {
	if err := s.use(); err != nil {
		return clarity.None, err
	}
	var v clarity.Optional
	err := s.vm.Unmetered(func() (err error) {
		v, err = s.store.MapEntry(contract, name, key)
		return err
	})
	return v, err
}

// GetAssetsMap enumerates every STX, FT and NFT holding.
func (s *Session) GetAssetsMap() (ledger.AssetsMap, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	var assets ledger.AssetsMap
	err := s.vm.Unmetered(func() (err error) {
		assets, err = s.store.AssetsMap()
		return err
	})
	return assets, err
}

// Contracts lists the deployed contracts in deployment order.
func (s *Session) Contracts() ([]*vm.Contract, error) {
	var recs []*ledger.ContractRecord
	if err := s.vm.Unmetered(func() (err error) {
		recs, err = s.store.Contracts()
		return err
	}); err != nil {
		return nil, err
	}
	contracts := make([]*vm.Contract, 0, len(recs))
	for _, rec := range recs {
		id, err := rec.Principal()
		if err != nil {
			return nil, err
		}
		c, err := s.Contract(id)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// Contract returns the analyzed contract id.
func (s *Session) Contract(id clarity.Principal) (*vm.Contract, error) {
	var c *vm.Contract
	err := s.vm.Unmetered(func() (err error) {
		c, err = s.vm.Contract(id)
		return err
	})
	return c, err
}

// ContractsInterfaces maps every contract id to its interface.
func (s *Session) ContractsInterfaces() (map[string]*vm.ContractInterface, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	contracts, err := s.Contracts()
	if err != nil {
		return nil, err
	}
	ifaces := make(map[string]*vm.ContractInterface, len(contracts))
	for _, c := range contracts {
		ifaces[c.ID.ID()] = c.Interface()
	}
	return ifaces, nil
}

func (s *Session) ContractSource(id clarity.Principal) (string, error) {
	c, err := s.Contract(id)
	if err != nil {
		return "", err
	}
	return c.Source, nil
}

func (s *Session) ContractAST(id clarity.Principal) ([]*ast.Expr, error) {
	c, err := s.Contract(id)
	if err != nil {
		return nil, err
	}
	return c.Exprs, nil
}

// SetTestName groups the coverage collected from now on.
func (s *Session) SetTestName(name string) {
	s.vm.Coverage().SetTestName(name)
}

// Report is the coverage and cost output of a session.
type Report struct {
	Coverage string `json:"coverage"`
	Costs    string `json:"costs"`
}

// CollectReport renders the LCOV coverage and the cost entries collected so
// far. Boot contracts are included only when asked for.
func (s *Session) CollectReport(includeBoot bool, bootPath string) (*Report, error) {
	if s.state == Terminated {
		return nil, ErrTerminated
	}
	costs, err := s.vm.Report().JSON()
	if err != nil {
		return nil, err
	}
	return &Report{
		Coverage: s.vm.Coverage().LCOV(includeBoot, bootPath),
		Costs:    costs,
	}, nil
}
