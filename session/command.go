// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var errCommandUsage = errors.New("invalid command usage")

const helpText = `::help                                  Display help
::set_epoch <epoch>                     Set the epoch of the next blocks
::get_epoch                             Get the current epoch
::mint_stx <principal> <amount>         Mint STX balance for a given principal
::get_assets_maps                       Get assets maps for active accounts
::get_block_height                      Get the current block height
::get_contracts                         List the deployed contracts
::advance_chain_tip <count>             Simulate mining of <count> blocks
::advance_burn_chain_tip <count>        Simulate mining of <count> burn blocks
::advance_stacks_chain_tip <count>      Simulate mining of <count> stacks blocks`

// ExecuteCommand runs one REPL directive. Input that is not a directive is
// evaluated as a snippet sent by the deployer.
func (s *Session) ExecuteCommand(input string) (string, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "::") {
		r, err := s.ExecuteSnippet(s.deployer, input)
		if err != nil {
			return "", err
		}
		return r.Result.String(), nil
	}

	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "::help":
		return helpText, nil
	case "::set_epoch":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: ::set_epoch <epoch>", errCommandUsage)
		}
		e, err := s.SetEpoch(args[0])
		if err != nil {
			return "", err
		}
		return "Epoch updated to: " + e.String(), nil
	case "::get_epoch":
		return "Current epoch: " + s.epoch.String(), nil
	case "::mint_stx":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: ::mint_stx <principal> <amount>", errCommandUsage)
		}
		p, err := s.Account(args[0])
		if err != nil {
			return "", err
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: invalid amount %q", errCommandUsage, args[1])
		}
		if _, err := s.MintSTX(p, amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("→ %s: %d µSTX", p.ID(), amount), nil
	case "::get_assets_maps":
		return s.formatAssets()
	case "::get_block_height":
		return fmt.Sprintf("Current block height: %d", s.stacks), nil
	case "::get_contracts":
		contracts, err := s.Contracts()
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, c := range contracts {
			if s.IsBootContract(c.ID) {
				continue
			}
			fmt.Fprintf(&b, "%s (clarity %d, epoch %s)\n", c.ID.ID(), c.Version, c.Epoch)
		}
		return strings.TrimSuffix(b.String(), "\n"), nil
	case "::advance_chain_tip", "::advance_burn_chain_tip", "::advance_stacks_chain_tip":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: %s <count>", errCommandUsage, cmd)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: invalid count %q", errCommandUsage, args[0])
		}
		mine := s.MineEmptyBlocks
		switch cmd {
		case "::advance_burn_chain_tip":
			mine = s.MineEmptyBurnBlocks
		case "::advance_stacks_chain_tip":
			mine = s.MineEmptyStacksBlocks
		}
		h, err := mine(n)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d blocks simulated, new height: %d", n, h), nil
	}
	return "", fmt.Errorf("unknown command %s, try ::help", cmd)
}

func (s *Session) formatAssets() (string, error) {
	assets, err := s.GetAssetsMap()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(assets))
	for asset := range assets {
		names = append(names, asset)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, asset := range names {
		b.WriteString(asset)
		b.WriteString("\n")
		holders := make([]string, 0, len(assets[asset]))
		for h := range assets[asset] {
			holders = append(holders, h)
		}
		sort.Strings(holders)
		for _, h := range holders {
			fmt.Fprintf(&b, "  %s: %s\n", s.label(h), assets[asset][h].Dec())
		}
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// label prefixes a holder with its account name when it has one.
func (s *Session) label(id string) string {
	for _, a := range s.accounts {
		if a.Address.ID() == id {
			return a.Name + " (" + id + ")"
		}
	}
	return id
}
