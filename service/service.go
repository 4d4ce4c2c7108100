// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/api"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/cost"
	"github.com/ava-labs/simnet/deployment"
	"github.com/ava-labs/simnet/session"
	"github.com/ava-labs/simnet/vm"
)

// Name is the JSON-RPC service name.
const Name = "simnet"

var errNoSender = errors.New("sender is required")

// Service is the JSON-RPC API of a simnet server. Values travel as Clarity
// literals.
type Service struct {
	mgr *Manager
}

func New(mgr *Manager) *Service { return &Service{mgr: mgr} }

// NewHandler serves s over JSON-RPC.
func NewHandler(s *Service) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(s, Name)
}

type SessionArgs struct {
	SessionID string `json:"sessionID"`
}

type AccountReply struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type NewSessionArgs struct {
	// ProjectDir holds a Clarinet.toml. Without one, a default session
	// with the standard accounts is created.
	ProjectDir string `json:"projectDir"`
	Epoch      string `json:"epoch"`
	Coverage   *bool  `json:"coverage"`
	Costs      *bool  `json:"costs"`
}

type NewSessionReply struct {
	SessionID string         `json:"sessionID"`
	Accounts  []AccountReply `json:"accounts"`
	Contracts []string       `json:"contracts"`
}

// NewSession creates a session, deploying the project when one is given.
func (s *Service) NewSession(r *http.Request, args *NewSessionArgs, reply *NewSessionReply) error {
	cfg := session.DefaultConfig()
	if args.ProjectDir != "" {
		var err error
		if cfg, err = session.LoadConfig(args.ProjectDir); err != nil {
			return err
		}
	}
	if args.Epoch != "" {
		cfg.Epoch = args.Epoch
	}
	if args.Coverage != nil {
		cfg.Coverage = *args.Coverage
	}
	if args.Costs != nil {
		cfg.Costs = *args.Costs
	}

	sess, _, err := s.mgr.Create(r.Context(), cfg)
	if err != nil {
		return err
	}
	reply.SessionID = sess.ID()
	return s.mgr.With(sess.ID(), func(sess *session.Session) error {
		accounts, err := sess.Accounts()
		if err != nil {
			return err
		}
		for _, a := range accounts {
			reply.Accounts = append(reply.Accounts, AccountReply{Name: a.Name, Address: a.Address.ID(), Balance: a.Balance.Big().Dec()})
		}
		contracts, err := sess.Contracts()
		if err != nil {
			return err
		}
		for _, c := range contracts {
			if !sess.IsBootContract(c.ID) {
				reply.Contracts = append(reply.Contracts, c.ID.ID())
			}
		}
		return nil
	})
}

func (s *Service) TerminateSession(_ *http.Request, args *SessionArgs, _ *api.EmptyReply) error {
	return s.mgr.Terminate(args.SessionID)
}

type LoadDeploymentArgs struct {
	SessionID string `json:"sessionID"`
	Path      string `json:"path"`
}

type BatchReply struct {
	ID       int            `json:"id"`
	Height   uint32         `json:"height"`
	Receipts []ReceiptReply `json:"receipts"`
}

type LoadDeploymentReply struct {
	Batches []BatchReply `json:"batches"`
}

// LoadDeployment replays a plan file on an existing session.
func (s *Service) LoadDeployment(_ *http.Request, args *LoadDeploymentArgs, reply *LoadDeploymentReply) error {
	plan, err := deployment.Load(args.Path)
	if err != nil {
		return err
	}
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		dir := sess.Config().Dir
		if dir == "" {
			dir = projectDir(args.Path)
		}
		results, err := deployment.Apply(sess, plan, dir)
		if err != nil {
			return err
		}
		for _, b := range results {
			br := BatchReply{ID: b.ID, Height: b.Height}
			for _, r := range b.Receipts {
				br.Receipts = append(br.Receipts, newReceipt(r))
			}
			reply.Batches = append(reply.Batches, br)
		}
		return nil
	})
}

// projectDir is the project root of a plan stored in its deployments dir.
func projectDir(planPath string) string {
	abs, err := filepath.Abs(planPath)
	if err != nil {
		return filepath.Dir(planPath)
	}
	return filepath.Dir(filepath.Dir(abs))
}

// ReceiptReply is a receipt with its value as a Clarity literal. Error is
// set when the transaction was rejected.
type ReceiptReply struct {
	Result string              `json:"result"`
	Events []json.RawMessage   `json:"events"`
	Cost   cost.ExecutionCost  `json:"cost"`
	Lines  map[string][]uint32 `json:"lines,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func newReceipt(r *session.Receipt) ReceiptReply {
	reply := ReceiptReply{Cost: r.Cost, Lines: r.Lines, Events: []json.RawMessage{}}
	if r.Result != nil {
		reply.Result = r.Result.String()
	}
	if r.Err != nil {
		reply.Error = r.Err.Error()
	}
	for _, e := range r.Events {
		b, err := e.MarshalJSON()
		if err != nil {
			continue
		}
		reply.Events = append(reply.Events, b)
	}
	return reply
}

// TxArgs is one transaction of MineBlock. Kind is one of call_public_fn,
// call_private_fn, deploy_contract, transfer_stx or execute_snippet.
type TxArgs struct {
	Kind           string       `json:"kind"`
	Sender         string       `json:"sender"`
	Contract       string       `json:"contract,omitempty"`
	Function       string       `json:"function,omitempty"`
	Args           []string     `json:"args,omitempty"`
	Name           string       `json:"name,omitempty"`
	Source         string       `json:"source,omitempty"`
	ClarityVersion int          `json:"clarityVersion,omitempty"`
	Recipient      string       `json:"recipient,omitempty"`
	Amount         cjson.Uint64 `json:"amount,omitempty"`
}

type MineBlockArgs struct {
	SessionID    string   `json:"sessionID"`
	Transactions []TxArgs `json:"transactions"`
}

type MineBlockReply struct {
	Receipts []ReceiptReply `json:"receipts"`
	Height   uint32         `json:"height"`
}

// MineBlock mines every transaction into one block.
func (s *Service) MineBlock(_ *http.Request, args *MineBlockArgs, reply *MineBlockReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		txs := make([]*session.Tx, len(args.Transactions))
		for i := range args.Transactions {
			tx, err := buildTx(sess, &args.Transactions[i])
			if err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			txs[i] = tx
		}
		receipts, err := sess.MineBlock(txs...)
		if err != nil {
			return err
		}
		for _, r := range receipts {
			reply.Receipts = append(reply.Receipts, newReceipt(r))
		}
		reply.Height = sess.BlockHeight()
		return nil
	})
}

func buildTx(sess *session.Session, a *TxArgs) (*session.Tx, error) {
	if a.Sender == "" {
		return nil, errNoSender
	}
	sender, err := sess.Account(a.Sender)
	if err != nil {
		return nil, err
	}
	switch session.TxKind(a.Kind) {
	case session.CallPublic, session.CallPrivate:
		contract, err := clarity.ParsePrincipal(a.Contract)
		if err != nil {
			return nil, err
		}
		vals, err := parseArgs(a.Args)
		if err != nil {
			return nil, err
		}
		if session.TxKind(a.Kind) == session.CallPrivate {
			return session.CallPrivateTx(sender, contract, a.Function, vals...), nil
		}
		return session.CallPublicTx(sender, contract, a.Function, vals...), nil
	case session.Deploy:
		return session.DeployTx(sender, a.Name, a.Source, clarity.Version(a.ClarityVersion)), nil
	case session.TransferSTX:
		recipient, err := sess.Account(a.Recipient)
		if err != nil {
			return nil, err
		}
		return session.TransferSTXTx(sender, recipient, uint64(a.Amount)), nil
	case session.Snippet:
		return session.SnippetTx(sender, a.Source), nil
	}
	return nil, fmt.Errorf("unknown transaction kind %q", a.Kind)
}

func parseArgs(args []string) ([]clarity.Value, error) {
	vals := make([]clarity.Value, len(args))
	for i, a := range args {
		v, err := clarity.ParseValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

type MineEmptyBlocksArgs struct {
	SessionID string       `json:"sessionID"`
	Count     cjson.Uint32 `json:"count"`
}

type HeightReply struct {
	Height uint32 `json:"height"`
}

func (s *Service) MineEmptyBlocks(_ *http.Request, args *MineEmptyBlocksArgs, reply *HeightReply) error {
	return s.mineEmpty(args, reply, (*session.Session).MineEmptyBlocks)
}

func (s *Service) MineEmptyBurnBlocks(_ *http.Request, args *MineEmptyBlocksArgs, reply *HeightReply) error {
	return s.mineEmpty(args, reply, (*session.Session).MineEmptyBurnBlocks)
}

func (s *Service) MineEmptyStacksBlocks(_ *http.Request, args *MineEmptyBlocksArgs, reply *HeightReply) error {
	return s.mineEmpty(args, reply, (*session.Session).MineEmptyStacksBlocks)
}

func (s *Service) mineEmpty(args *MineEmptyBlocksArgs, reply *HeightReply, mine func(*session.Session, int) (uint32, error)) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		h, err := mine(sess, int(args.Count))
		reply.Height = h
		return err
	})
}

type CallFnArgs struct {
	SessionID string   `json:"sessionID"`
	Sender    string   `json:"sender"`
	Contract  string   `json:"contract"`
	Function  string   `json:"function"`
	Args      []string `json:"args"`
}

type callFn func(*session.Session, clarity.Principal, clarity.Principal, string, ...clarity.Value) (*session.Receipt, error)

func (s *Service) CallReadOnlyFn(_ *http.Request, args *CallFnArgs, reply *ReceiptReply) error {
	return s.call(args, reply, (*session.Session).CallReadOnlyFn)
}

func (s *Service) CallPublicFn(_ *http.Request, args *CallFnArgs, reply *ReceiptReply) error {
	return s.call(args, reply, (*session.Session).CallPublicFn)
}

func (s *Service) CallPrivateFn(_ *http.Request, args *CallFnArgs, reply *ReceiptReply) error {
	return s.call(args, reply, (*session.Session).CallPrivateFn)
}

// call runs fn and fails the request when the transaction was rejected.
func (s *Service) call(args *CallFnArgs, reply *ReceiptReply, fn callFn) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		sender, err := sess.Account(args.Sender)
		if err != nil {
			return err
		}
		contract, err := clarity.ParsePrincipal(args.Contract)
		if err != nil {
			return err
		}
		vals, err := parseArgs(args.Args)
		if err != nil {
			return err
		}
		r, err := fn(sess, sender, contract, args.Function, vals...)
		if err != nil {
			return err
		}
		*reply = newReceipt(r)
		return r.Err
	})
}

type ExecuteSnippetArgs struct {
	SessionID string `json:"sessionID"`
	Sender    string `json:"sender"`
	Snippet   string `json:"snippet"`
}

// ExecuteSnippet evaluates a snippet as sender, or the deployer when empty.
func (s *Service) ExecuteSnippet(_ *http.Request, args *ExecuteSnippetArgs, reply *ReceiptReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		sender := sess.Deployer()
		if args.Sender != "" {
			var err error
			if sender, err = sess.Account(args.Sender); err != nil {
				return err
			}
		}
		r, err := sess.ExecuteSnippet(sender, args.Snippet)
		if err != nil {
			return err
		}
		*reply = newReceipt(r)
		return nil
	})
}

type ExecuteCommandArgs struct {
	SessionID string `json:"sessionID"`
	Command   string `json:"command"`
}

type ExecuteCommandReply struct {
	Output string `json:"output"`
}

func (s *Service) ExecuteCommand(_ *http.Request, args *ExecuteCommandArgs, reply *ExecuteCommandReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) (err error) {
		reply.Output, err = sess.ExecuteCommand(args.Command)
		return err
	})
}

type DeployContractArgs struct {
	SessionID      string `json:"sessionID"`
	Sender         string `json:"sender"`
	Name           string `json:"name"`
	Source         string `json:"source"`
	ClarityVersion int    `json:"clarityVersion"`
}

func (s *Service) DeployContract(_ *http.Request, args *DeployContractArgs, reply *ReceiptReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		sender, err := sess.Account(args.Sender)
		if err != nil {
			return err
		}
		r, err := sess.DeployContract(sender, args.Name, args.Source, clarity.Version(args.ClarityVersion))
		if err != nil {
			return err
		}
		*reply = newReceipt(r)
		return r.Err
	})
}

type TransferSTXArgs struct {
	SessionID string       `json:"sessionID"`
	Sender    string       `json:"sender"`
	Recipient string       `json:"recipient"`
	Amount    cjson.Uint64 `json:"amount"`
}

func (s *Service) TransferSTX(_ *http.Request, args *TransferSTXArgs, reply *ReceiptReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		sender, err := sess.Account(args.Sender)
		if err != nil {
			return err
		}
		recipient, err := sess.Account(args.Recipient)
		if err != nil {
			return err
		}
		r, err := sess.TransferSTX(sender, recipient, uint64(args.Amount))
		if err != nil {
			return err
		}
		*reply = newReceipt(r)
		return r.Err
	})
}

type EpochArgs struct {
	SessionID string `json:"sessionID"`
	Epoch     string `json:"epoch"`
}

type EpochReply struct {
	Epoch string `json:"epoch"`
}

// SetEpoch switches the epoch; an unknown name selects the latest one.
func (s *Service) SetEpoch(_ *http.Request, args *EpochArgs, reply *EpochReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		e, err := sess.SetEpoch(args.Epoch)
		reply.Epoch = e.String()
		return err
	})
}

func (s *Service) GetEpoch(_ *http.Request, args *SessionArgs, reply *EpochReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		reply.Epoch = sess.Epoch().String()
		return nil
	})
}

type DataArgs struct {
	SessionID string `json:"sessionID"`
	Contract  string `json:"contract"`
	Name      string `json:"name"`
	// Key is the map key literal, for GetMapEntry.
	Key string `json:"key,omitempty"`
}

type ValueReply struct {
	Value string `json:"value"`
}

func (s *Service) GetDataVar(_ *http.Request, args *DataArgs, reply *ValueReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		contract, err := clarity.ParsePrincipal(args.Contract)
		if err != nil {
			return err
		}
		v, err := sess.GetDataVar(contract, args.Name)
		if err != nil {
			return err
		}
		reply.Value = v.String()
		return nil
	})
}

// GetMapEntry returns the entry as an optional; a missing key is none.
func (s *Service) GetMapEntry(_ *http.Request, args *DataArgs, reply *ValueReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		contract, err := clarity.ParsePrincipal(args.Contract)
		if err != nil {
			return err
		}
		key, err := clarity.ParseValue(args.Key)
		if err != nil {
			return err
		}
		v, err := sess.GetMapEntry(contract, args.Name, key)
		if err != nil {
			return err
		}
		reply.Value = v.String()
		return nil
	})
}

type AssetsReply struct {
	Assets map[string]map[string]string `json:"assets"`
}

func (s *Service) GetAssetsMaps(_ *http.Request, args *SessionArgs, reply *AssetsReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		assets, err := sess.GetAssetsMap()
		if err != nil {
			return err
		}
		reply.Assets = make(map[string]map[string]string, len(assets))
		for asset, holders := range assets {
			m := make(map[string]string, len(holders))
			for h, amount := range holders {
				m[h] = amount.Dec()
			}
			reply.Assets[asset] = m
		}
		return nil
	})
}

type InterfacesReply struct {
	Interfaces map[string]*vm.ContractInterface `json:"interfaces"`
}

func (s *Service) GetContractsInterfaces(_ *http.Request, args *SessionArgs, reply *InterfacesReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) (err error) {
		reply.Interfaces, err = sess.ContractsInterfaces()
		return err
	})
}

type ContractArgs struct {
	SessionID string `json:"sessionID"`
	Contract  string `json:"contract"`
}

type SourceReply struct {
	Source string `json:"source"`
}

func (s *Service) GetContractSource(_ *http.Request, args *ContractArgs, reply *SourceReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		id, err := clarity.ParsePrincipal(args.Contract)
		if err != nil {
			return err
		}
		reply.Source, err = sess.ContractSource(id)
		return err
	})
}

type ASTReply struct {
	Expressions []*ast.Expr `json:"expressions"`
}

func (s *Service) GetContractAST(_ *http.Request, args *ContractArgs, reply *ASTReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		id, err := clarity.ParsePrincipal(args.Contract)
		if err != nil {
			return err
		}
		reply.Expressions, err = sess.ContractAST(id)
		return err
	})
}

type CollectReportArgs struct {
	SessionID            string `json:"sessionID"`
	IncludeBootContracts bool   `json:"includeBootContracts"`
	BootContractsPath    string `json:"bootContractsPath"`
}

func (s *Service) CollectReport(_ *http.Request, args *CollectReportArgs, reply *session.Report) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		report, err := sess.CollectReport(args.IncludeBootContracts, args.BootContractsPath)
		if err != nil {
			return err
		}
		*reply = *report
		return nil
	})
}

type TestNameArgs struct {
	SessionID string `json:"sessionID"`
	Name      string `json:"name"`
}

// SetTestName groups the coverage collected from now on under name.
func (s *Service) SetTestName(_ *http.Request, args *TestNameArgs, _ *api.EmptyReply) error {
	return s.mgr.With(args.SessionID, func(sess *session.Session) error {
		sess.SetTestName(args.Name)
		return nil
	})
}
