// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"errors"
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/cost"
	"github.com/ava-labs/simnet/vm"
)

var errUnknownTxKind = errors.New("unknown transaction kind")

type TxKind string

const (
	CallPublic  TxKind = "call_public_fn"
	CallPrivate TxKind = "call_private_fn"
	Deploy      TxKind = "deploy_contract"
	TransferSTX TxKind = "transfer_stx"
	Snippet     TxKind = "execute_snippet"
)

// Tx is one transaction of a mined block. Which fields apply depends on Kind.
type Tx struct {
	Kind   TxKind
	Sender clarity.Principal

	// calls
	Contract clarity.Principal
	Function string
	Args     []clarity.Value
	Sponsor  *clarity.Principal

	// deployments
	Name    string
	Source  string
	Version clarity.Version
	Path    string

	// transfers
	Recipient clarity.Principal
	Amount    uint64
	Memo      []byte
}

func CallPublicTx(sender, contract clarity.Principal, function string, args ...clarity.Value) *Tx {
	return &Tx{Kind: CallPublic, Sender: sender, Contract: contract, Function: function, Args: args}
}

func CallPrivateTx(sender, contract clarity.Principal, function string, args ...clarity.Value) *Tx {
	return &Tx{Kind: CallPrivate, Sender: sender, Contract: contract, Function: function, Args: args}
}

// DeployTx publishes source as sender.name. A zero version selects the
// default of the epoch the block is mined in.
func DeployTx(sender clarity.Principal, name, source string, version clarity.Version) *Tx {
	return &Tx{Kind: Deploy, Sender: sender, Name: name, Source: source, Version: version}
}

func TransferSTXTx(sender, recipient clarity.Principal, amount uint64) *Tx {
	return &Tx{Kind: TransferSTX, Sender: sender, Recipient: recipient, Amount: amount}
}

func SnippetTx(sender clarity.Principal, source string) *Tx {
	return &Tx{Kind: Snippet, Sender: sender, Source: source}
}

// Receipt is the outcome of one mined transaction. Err is set when the
// transaction was rejected or aborted; an err response is a successful
// evaluation and lands in Result.
type Receipt struct {
	Result clarity.Value
	Events []vm.Event
	Cost   cost.ExecutionCost
	Err    error
	// Lines are the source lines executed, per contract id.
	Lines map[string][]uint32

	// Contract is set for deployments.
	Contract *vm.Contract
}

// Failed reports whether the transaction aborted or returned an err response.
func (r *Receipt) Failed() bool {
	if r.Err != nil {
		return true
	}
	resp, ok := r.Result.(clarity.Response)
	return ok && !resp.Ok
}

// execute runs tx against the open block and bumps the sender nonce, whether
// the transaction succeeds or not.
func (s *Session) execute(tx *Tx) *Receipt {
	var (
		res      *vm.Result
		contract *vm.Contract
		err      error
	)
	switch tx.Kind {
	case CallPublic:
		res, err = s.vm.CallPublic(tx.Sender, tx.Contract, tx.Function, tx.Args, tx.Sponsor)
	case CallPrivate:
		res, err = s.vm.CallPrivate(tx.Sender, tx.Contract, tx.Function, tx.Args)
	case Deploy:
		res, contract, err = s.vm.Deploy(tx.Sender, tx.Name, tx.Source, vm.DeployOptions{
			Version: tx.Version,
			Path:    tx.Path,
			Sponsor: tx.Sponsor,
		})
	case TransferSTX:
		res, err = s.vm.TransferSTX(tx.Sender, tx.Recipient, clarity.NewUInt(tx.Amount), tx.Memo)
	case Snippet:
		res, err = s.vm.ExecuteSnippet(tx.Sender, tx.Source)
	default:
		err = fmt.Errorf("%w: %q", errUnknownTxKind, tx.Kind)
	}

	receipt := &Receipt{Err: err, Contract: contract}
	if res != nil {
		receipt.Result = res.Value
		receipt.Events = res.Events
		receipt.Cost = res.Cost
		receipt.Lines = res.Lines
	} else {
		receipt.Cost = s.vm.Costs().Total()
	}
	if err != nil {
		s.log.Debug("transaction failed", "kind", tx.Kind, "sender", tx.Sender.ID(), "err", err)
	}

	if nerr := s.vm.Unmetered(func() error {
		_, err := s.store.IncrementNonce(tx.Sender)
		return err
	}); nerr != nil && receipt.Err == nil {
		receipt.Err = nerr
	}
	return receipt
}
