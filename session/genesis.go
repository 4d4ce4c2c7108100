// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"embed"
	"fmt"
	"strings"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/vm"
)

//go:embed boot/*.clar
var bootFS embed.FS

// BootContracts are deployed from the boot address in block 0, in order.
var BootContracts = []string{"costs", vm.PoxContract}

// BootSource returns the embedded source of a boot contract.
func BootSource(name string) (string, error) {
	b, err := bootFS.ReadFile("boot/" + name + ".clar")
	if err != nil {
		return "", fmt.Errorf("unknown boot contract %q: %w", name, err)
	}
	return string(b), nil
}

// IsBootContract reports whether id is one of the boot contracts.
func (s *Session) IsBootContract(id clarity.Principal) bool {
	return id.Standard() == s.vm.BootAddress() && id.IsContract()
}

// genesis builds block 0: accounts are minted their balances and the boot
// contracts are published. The first open block is height 1.
func (s *Session) genesis() error {
	s.openBlock()

	receipts := make([]*Receipt, 0, len(s.cfg.Accounts)+len(BootContracts))
	for _, a := range s.cfg.Accounts {
		p, err := clarity.ParsePrincipal(a.Address)
		if err != nil {
			return err
		}
		s.accounts = append(s.accounts, Account{Name: a.Name, Address: p, Balance: clarity.NewUInt(a.Balance)})
		if a.Name == DeployerName {
			s.deployer = p
		}
		if a.Balance == 0 {
			continue
		}
		res, err := s.vm.MintSTX(p, clarity.NewUInt(a.Balance))
		if err != nil {
			return fmt.Errorf("failed to fund %s: %w", a.Name, err)
		}
		receipts = append(receipts, &Receipt{Result: res.Value, Events: res.Events})
	}

	boot := s.vm.BootAddress()
	for _, name := range BootContracts {
		src, err := BootSource(name)
		if err != nil {
			return err
		}
		tx := DeployTx(boot, name, src, 0)
		tx.Path = "boot/" + name + ".clar"
		r := s.execute(tx)
		if r.Err != nil {
			return fmt.Errorf("failed to deploy boot contract %s: %w", name, r.Err)
		}
		receipts = append(receipts, r)
	}

	if err := s.closeBlock(len(receipts)); err != nil {
		return err
	}
	if s.epoch.DecoupledBlocks() {
		if err := s.newTenure(); err != nil {
			return err
		}
	}
	s.genesisReceipts = receipts
	if err := s.store.Meta().SetInitialized(); err != nil {
		return err
	}
	s.log.Debug("genesis block built", "txs", len(receipts), "boot", strings.Join(BootContracts, ","))
	return nil
}
