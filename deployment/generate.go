// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deployment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/ledger"
	"github.com/ava-labs/simnet/session"
)

const requirementsDir = "requirements"

var (
	ErrCycle      = errors.New("circular contract dependency")
	errNoFetcher  = errors.New("requirements need remote data access")
	errNoDeployer = errors.New("unknown deployer account")
)

// Fetcher supplies the source of contracts listed as requirements.
type Fetcher interface {
	FetchContract(ctx context.Context, id clarity.Principal) (*ledger.ContractRecord, error)
}

// node is one publish with the contracts it references.
type node struct {
	id    string
	tx    *Transaction
	epoch clarity.Epoch
	deps  []string
}

// Generate builds the plan of a project: its requirements, then its
// contracts in dependency order, batched by epoch.
func Generate(ctx context.Context, cfg *session.Config, fetcher Fetcher) (*Plan, error) {
	nodes := make(map[string]*node)
	var roots []string

	reqs, err := requirementNodes(ctx, cfg, fetcher, nodes)
	if err != nil {
		return nil, err
	}
	roots = append(roots, reqs...)

	defaultEpoch := parseEpoch(cfg.Epoch)
	for _, c := range cfg.Contracts {
		deployerName := c.Deployer
		if deployerName == "" {
			deployerName = session.DeployerName
		}
		acct, ok := cfg.Account(deployerName)
		if !ok {
			return nil, fmt.Errorf("%w %q for contract %s", errNoDeployer, deployerName, c.Name)
		}
		src, err := os.ReadFile(resolve(cfg.Dir, c.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to read contract %s: %w", c.Name, err)
		}
		epoch := defaultEpoch
		if c.Epoch != "" {
			epoch = parseEpoch(c.Epoch)
		}
		n := &node{
			id:    acct.Address + "." + c.Name,
			epoch: epoch,
			deps:  references(string(src), acct.Address),
			tx: &Transaction{EmulatedContractPublish: &EmulatedContractPublish{
				ContractName:   c.Name,
				EmulatedSender: acct.Address,
				Path:           c.Path,
				ClarityVersion: int(c.ClarityVersion),
			}},
		}
		nodes[n.id] = n
		roots = append(roots, n.id)
	}

	ordered, err := order(roots, nodes)
	if err != nil {
		return nil, err
	}

	p := &Plan{Name: planName, Network: planNetwork}
	for _, a := range cfg.Accounts {
		p.Genesis.Wallets = append(p.Genesis.Wallets, Wallet{
			Name:    a.Name,
			Address: a.Address,
			Balance: strconv.FormatUint(a.Balance, 10),
		})
	}
	p.Genesis.Contracts = append(p.Genesis.Contracts, session.BootContracts...)
	p.Plan.Batches = batch(ordered, 0)
	return p, nil
}

// requirementNodes fetches every requirement and, transitively, the remote
// contracts they reference. Sources are cached under the project cache dir.
func requirementNodes(ctx context.Context, cfg *session.Config, fetcher Fetcher, nodes map[string]*node) ([]string, error) {
	var roots []string
	queue := append([]string(nil), cfg.Requirements...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := nodes[id]; ok {
			continue
		}
		p, err := clarity.ParsePrincipal(id)
		if err != nil || !p.IsContract() {
			return nil, fmt.Errorf("invalid requirement %q", id)
		}
		if p.Hash == clarity.BootAddress.Hash {
			continue
		}
		if fetcher == nil {
			return nil, fmt.Errorf("%w: %s", errNoFetcher, id)
		}
		rec, err := fetcher.FetchContract(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch requirement %s: %w", id, err)
		}
		rel := filepath.Join(cfg.CacheDir, requirementsDir, id+".clar")
		if err := os.MkdirAll(filepath.Dir(rel), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(rel, rec.Source, 0o644); err != nil {
			return nil, err
		}
		if r, err := filepath.Rel(cfg.Dir, rel); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}

		n := &node{
			id:    id,
			epoch: rec.Epoch,
			deps:  references(string(rec.Source), p.Address()),
			tx: &Transaction{RequirementPublish: &RequirementPublish{
				ContractID:     id,
				RemapSender:    p.Address(),
				Path:           rel,
				ClarityVersion: int(rec.Version),
			}},
		}
		nodes[id] = n
		roots = append(roots, id)
		queue = append(queue, n.deps...)
	}
	return roots, nil
}

// references lists the contracts a source mentions. Relative references
// resolve against deployer.
func references(src, deployer string) []string {
	exprs, err := ast.Parse(src)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var deps []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}
	for _, e := range exprs {
		e.Walk(func(x *ast.Expr) bool {
			switch x.Kind {
			case ast.ContractRefLit:
				add(deployer + "." + x.Name)
			case ast.PrincipalLit, ast.FieldLit:
				switch {
				case x.Name == "":
				case x.Text == "":
					add(deployer + "." + x.Name)
				default:
					add(x.Text + "." + x.Name)
				}
			}
			return true
		})
	}
	return deps
}

// order sorts the publishes so that every contract follows the contracts it
// references. References to contracts outside the plan are ignored.
func order(roots []string, nodes map[string]*node) ([]*node, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(nodes))
	ordered := make([]*node, 0, len(nodes))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		n, ok := nodes[id]
		if !ok {
			return nil
		}
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s -> %s", ErrCycle, strings.Join(path, " -> "), id)
		}
		state[id] = visiting
		path = append(path, id)
		for _, dep := range n.deps {
			if dep == id {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		ordered = append(ordered, n)
		return nil
	}
	for _, id := range roots {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// batch groups ordered publishes into blocks. A new batch starts when the
// epoch rises or the batch is full; epochs never go backwards.
func batch(ordered []*node, firstID int) []*Batch {
	var (
		batches []*Batch
		cur     *Batch
		epoch   clarity.Epoch
	)
	for _, n := range ordered {
		e := n.epoch
		if e < epoch {
			e = epoch
		}
		if cur == nil || e != epoch || len(cur.Transactions) == maxBatch {
			cur = &Batch{ID: firstID + len(batches), Epoch: e.String()}
			batches = append(batches, cur)
			epoch = e
		}
		cur.Transactions = append(cur.Transactions, n.tx)
	}
	return batches
}

func parseEpoch(name string) clarity.Epoch {
	if e, err := clarity.ParseEpoch(name); err == nil {
		return e
	}
	return clarity.LatestEpoch
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
