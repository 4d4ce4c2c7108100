// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deployment

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ava-labs/avalanchego/utils/formatting"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/session"
)

var ErrPublishFailed = errors.New("contract publish failed")

// BatchResult is the block a batch was mined in and its receipts.
type BatchResult struct {
	ID       int
	Height   uint32
	Receipts []*session.Receipt
}

// Apply mines each batch of p as one block of s. Paths are relative to dir.
// A publish that fails stops the replay and is returned as an error.
func Apply(s *session.Session, p *Plan, dir string) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(p.Plan.Batches))
	for _, b := range p.Plan.Batches {
		if b.Epoch != "" {
			if _, err := s.SetEpoch(b.Epoch); err != nil {
				return nil, err
			}
		}
		txs := make([]*session.Tx, len(b.Transactions))
		for i, t := range b.Transactions {
			tx, err := build(s, t, dir)
			if err != nil {
				return nil, fmt.Errorf("batch %d transaction %d: %w", b.ID, i, err)
			}
			txs[i] = tx
		}
		height := s.BlockHeight()
		receipts, err := s.MineBlock(txs...)
		if err != nil {
			return nil, err
		}
		for i, r := range receipts {
			t := b.Transactions[i]
			if t.IsPublish() && r.Err != nil {
				return nil, fmt.Errorf("%w: %s in batch %d: %v", ErrPublishFailed, t.PublishedID(), b.ID, r.Err)
			}
		}
		results = append(results, BatchResult{ID: b.ID, Height: height, Receipts: receipts})
	}
	return results, nil
}

// NewSession creates a session and replays p on it. On failure the session
// is terminated and never returned.
func NewSession(cfg *session.Config, p *Plan, opts ...session.Option) (*session.Session, []BatchResult, error) {
	s, err := session.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	results, err := Apply(s, p, cfg.Dir)
	if err != nil {
		s.Terminate()
		return nil, nil, err
	}
	return s, results, nil
}

func build(s *session.Session, t *Transaction, dir string) (*session.Tx, error) {
	switch {
	case t.EmulatedContractPublish != nil:
		op := t.EmulatedContractPublish
		return publishTx(s, op.EmulatedSender, op.ContractName, op.Path, op.ClarityVersion, dir, nil)
	case t.ContractPublish != nil:
		op := t.ContractPublish
		return publishTx(s, op.ExpectedSender, op.ContractName, op.Path, op.ClarityVersion, dir, nil)
	case t.RequirementPublish != nil:
		op := t.RequirementPublish
		id, err := clarity.ParsePrincipal(op.ContractID)
		if err != nil {
			return nil, err
		}
		remap := make(map[string]string, len(op.RemapPrincipals)+1)
		for from, to := range op.RemapPrincipals {
			remap[from] = to
		}
		if op.RemapSender != "" && op.RemapSender != id.Address() {
			remap[id.Address()] = op.RemapSender
		}
		sender := op.RemapSender
		if sender == "" {
			sender = id.Address()
		}
		return publishTx(s, sender, id.Name, op.Path, op.ClarityVersion, dir, remap)
	case t.EmulatedContractCall != nil:
		op := t.EmulatedContractCall
		return callTx(s, op.EmulatedSender, op.ContractID, op.Method, op.Parameters)
	case t.ContractCall != nil:
		op := t.ContractCall
		return callTx(s, op.ExpectedSender, op.ContractID, op.Method, op.Parameters)
	case t.STXTransfer != nil:
		op := t.STXTransfer
		sender, err := s.Account(op.ExpectedSender)
		if err != nil {
			return nil, err
		}
		recipient, err := s.Account(op.Recipient)
		if err != nil {
			return nil, err
		}
		tx := session.TransferSTXTx(sender, recipient, op.MicroSTX)
		if op.Memo != "" {
			memo := op.Memo
			if !strings.HasPrefix(memo, "0x") {
				memo = "0x" + memo
			}
			if tx.Memo, err = formatting.Decode(formatting.HexNC, memo); err != nil {
				return nil, fmt.Errorf("invalid memo: %w", err)
			}
		}
		return tx, nil
	}
	_, err := t.Kind()
	return nil, err
}

func publishTx(s *session.Session, senderName, name, path string, version int, dir string, remap map[string]string) (*session.Tx, error) {
	sender, err := s.Account(senderName)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(resolve(dir, path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	tx := session.DeployTx(sender, name, Remap(string(src), remap), clarity.Version(version))
	tx.Path = path
	return tx, nil
}

func callTx(s *session.Session, senderName, contractID, method string, params []string) (*session.Tx, error) {
	sender, err := s.Account(senderName)
	if err != nil {
		return nil, err
	}
	contract, err := clarity.ParsePrincipal(contractID)
	if err != nil {
		return nil, err
	}
	args := make([]clarity.Value, len(params))
	for i, p := range params {
		if args[i], err = clarity.ParseValue(p); err != nil {
			return nil, fmt.Errorf("parameter %d of %s: %w", i, method, err)
		}
	}
	return session.CallPublicTx(sender, contract, method, args...), nil
}

// Remap rewrites every occurrence of the keys of principals in src. Longer
// keys are replaced first so that a contract id wins over its address.
func Remap(src string, principals map[string]string) string {
	if len(principals) == 0 {
		return src
	}
	keys := make([]string, 0, len(principals))
	for k := range principals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, principals[k])
	}
	return strings.NewReplacer(pairs...).Replace(src)
}
