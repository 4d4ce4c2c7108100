// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deployment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	// DefaultPath is where a project's simnet plan lives, relative to its root.
	DefaultPath = "deployments/default.simnet-plan.yaml"

	planName    = "Simulated deployment, used as a default for tests and the console"
	planNetwork = "simnet"
	maxBatch    = 25
)

var (
	errEmptyTransaction = errors.New("transaction has no kind")
	errManyKinds        = errors.New("transaction has more than one kind")
)

// Plan is an ordered list of batches replayed against a fresh session.
type Plan struct {
	ID      uint32  `yaml:"id"`
	Name    string  `yaml:"name"`
	Network string  `yaml:"network"`
	Genesis Genesis `yaml:"genesis,omitempty"`
	Plan    Batches `yaml:"plan"`
}

type Genesis struct {
	Wallets   []Wallet `yaml:"wallets,omitempty"`
	Contracts []string `yaml:"contracts,omitempty"`
}

type Wallet struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Balance string `yaml:"balance"`
}

type Batches struct {
	Batches []*Batch `yaml:"batches"`
}

// Batch is mined as one block, in Epoch when set.
type Batch struct {
	ID           int            `yaml:"id"`
	Transactions []*Transaction `yaml:"transactions"`
	Epoch        string         `yaml:"epoch,omitempty"`
}

// Transaction holds exactly one operation, keyed by its kind.
type Transaction struct {
	ContractPublish         *ContractPublish         `yaml:"contract-publish,omitempty"`
	EmulatedContractPublish *EmulatedContractPublish `yaml:"emulated-contract-publish,omitempty"`
	RequirementPublish      *RequirementPublish      `yaml:"requirement-publish,omitempty"`
	ContractCall            *ContractCall            `yaml:"contract-call,omitempty"`
	EmulatedContractCall    *EmulatedContractCall    `yaml:"emulated-contract-call,omitempty"`
	STXTransfer             *STXTransfer             `yaml:"stx-transfer,omitempty"`
}

type ContractPublish struct {
	ContractName   string `yaml:"contract-name"`
	ExpectedSender string `yaml:"expected-sender"`
	Cost           uint64 `yaml:"cost"`
	Path           string `yaml:"path"`
	ClarityVersion int    `yaml:"clarity-version,omitempty"`
}

type EmulatedContractPublish struct {
	ContractName   string `yaml:"contract-name"`
	EmulatedSender string `yaml:"emulated-sender"`
	Path           string `yaml:"path"`
	ClarityVersion int    `yaml:"clarity-version,omitempty"`
}

// RequirementPublish republishes an external contract. Occurrences of its
// original address, and of every key of RemapPrincipals, are rewritten in
// the source.
type RequirementPublish struct {
	ContractID      string            `yaml:"contract-id"`
	RemapSender     string            `yaml:"remap-sender"`
	RemapPrincipals map[string]string `yaml:"remap-principals,omitempty"`
	Cost            uint64            `yaml:"cost"`
	Path            string            `yaml:"path"`
	ClarityVersion  int               `yaml:"clarity-version,omitempty"`
}

type ContractCall struct {
	ContractID     string   `yaml:"contract-id"`
	ExpectedSender string   `yaml:"expected-sender"`
	Method         string   `yaml:"method"`
	Parameters     []string `yaml:"parameters"`
	Cost           uint64   `yaml:"cost"`
}

type EmulatedContractCall struct {
	ContractID     string   `yaml:"contract-id"`
	EmulatedSender string   `yaml:"emulated-sender"`
	Method         string   `yaml:"method"`
	Parameters     []string `yaml:"parameters"`
}

type STXTransfer struct {
	ExpectedSender string `yaml:"expected-sender"`
	Recipient      string `yaml:"recipient"`
	MicroSTX       uint64 `yaml:"mstx-amount"`
	Memo           string `yaml:"memo,omitempty"`
	Cost           uint64 `yaml:"cost"`
}

// Kind names the operation held by t.
func (t *Transaction) Kind() (string, error) {
	kinds := make([]string, 0, 1)
	if t.ContractPublish != nil {
		kinds = append(kinds, "contract-publish")
	}
	if t.EmulatedContractPublish != nil {
		kinds = append(kinds, "emulated-contract-publish")
	}
	if t.RequirementPublish != nil {
		kinds = append(kinds, "requirement-publish")
	}
	if t.ContractCall != nil {
		kinds = append(kinds, "contract-call")
	}
	if t.EmulatedContractCall != nil {
		kinds = append(kinds, "emulated-contract-call")
	}
	if t.STXTransfer != nil {
		kinds = append(kinds, "stx-transfer")
	}
	switch len(kinds) {
	case 0:
		return "", errEmptyTransaction
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("%w: %v", errManyKinds, kinds)
	}
}

// IsPublish reports whether t deploys a contract. Publishes are derived
// from the project; every other operation was added by hand.
func (t *Transaction) IsPublish() bool {
	return t.ContractPublish != nil || t.EmulatedContractPublish != nil || t.RequirementPublish != nil
}

// PublishedID is the contract a publish deploys, or "" for other kinds.
func (t *Transaction) PublishedID() string {
	switch {
	case t.EmulatedContractPublish != nil:
		return t.EmulatedContractPublish.EmulatedSender + "." + t.EmulatedContractPublish.ContractName
	case t.ContractPublish != nil:
		return t.ContractPublish.ExpectedSender + "." + t.ContractPublish.ContractName
	case t.RequirementPublish != nil:
		return t.RequirementPublish.ContractID
	}
	return ""
}

// Transactions returns every operation of the plan in execution order.
func (p *Plan) Transactions() []*Transaction {
	var txs []*Transaction
	for _, b := range p.Plan.Batches {
		txs = append(txs, b.Transactions...)
	}
	return txs
}

// Validate checks that every transaction carries exactly one operation.
func (p *Plan) Validate() error {
	for _, b := range p.Plan.Batches {
		for i, tx := range b.Transactions {
			if _, err := tx.Kind(); err != nil {
				return fmt.Errorf("batch %d transaction %d: %w", b.ID, i, err)
			}
		}
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Load reads a plan from path.
func Load(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &Plan{}
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("invalid deployment plan %s: %w", path, err)
	}
	return p, p.Validate()
}

// Save writes p to path, creating its directory.
func (p *Plan) Save(path string) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte("---\n"), b...), 0o644)
}
