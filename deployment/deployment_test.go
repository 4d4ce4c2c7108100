// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deployment

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/ledger"
	"github.com/ava-labs/simnet/session"
)

const (
	deployerAddr = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	registryID   = "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.registry"
)

const tokenSource = `
(define-data-var supply uint u100)
(define-read-only (get-supply) (var-get supply))
(define-public (mint (n uint))
  (begin
    (var-set supply (+ (var-get supply) n))
    (ok (var-get supply))))
`

const marketSource = `
(define-public (mint-ten) (contract-call? .token mint u10))
(define-read-only (supply) (contract-call? .token get-supply))
`

const registrySource = `
(define-constant owner 'SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9)
(define-read-only (get-owner) owner)
`

type fakeFetcher struct {
	fetches int
}

func (f *fakeFetcher) FetchContract(_ context.Context, id clarity.Principal) (*ledger.ContractRecord, error) {
	f.fetches++
	if id.ID() != registryID {
		return nil, ledger.ErrNotFound
	}
	return &ledger.ContractRecord{
		ID:      id.ID(),
		Source:  []byte(registrySource),
		Epoch:   clarity.Epoch21,
		Version: clarity.Clarity2,
		Height:  10,
		Remote:  true,
	}, nil
}

// newProject writes the given contracts to a temporary project directory.
func newProject(t *testing.T, contracts map[string]string) *session.Config {
	dir := t.TempDir()
	cfg := session.DefaultConfig()
	cfg.Dir = dir
	cfg.Epoch = "2.5"
	cfg.CacheDir = filepath.Join(dir, ".cache")
	cfg.DeploymentPlan = filepath.Join(dir, DefaultPath)
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addContract(t, cfg, name, contracts[name])
	}
	return cfg
}

func addContract(t *testing.T, cfg *session.Config, name, src string) {
	path := filepath.Join("contracts", name+".clar")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Dir, "contracts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir, path), []byte(src), 0o600))
	cfg.Contracts = append(cfg.Contracts, session.ContractConfig{Name: name, Path: path})
}

func publishedIDs(p *Plan) []string {
	var ids []string
	for _, tx := range p.Transactions() {
		if tx.IsPublish() {
			ids = append(ids, tx.PublishedID())
		}
	}
	return ids
}

func TestGenerateOrdersByDependency(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, nil)
	addContract(t, cfg, "a-market", marketSource)
	addContract(t, cfg, "token", tokenSource)

	p, err := Generate(context.Background(), cfg, nil)
	require.NoError(err)
	require.Equal("simnet", p.Network)
	require.Len(p.Genesis.Wallets, len(cfg.Accounts))
	require.Equal(session.BootContracts, p.Genesis.Contracts)

	require.Len(p.Plan.Batches, 1)
	require.Equal("2.5", p.Plan.Batches[0].Epoch)
	require.Equal([]string{deployerAddr + ".token", deployerAddr + ".a-market"}, publishedIDs(p))
}

func TestGenerateCycle(t *testing.T) {
	cfg := newProject(t, map[string]string{
		"a": "(define-read-only (f) (contract-call? .b g))",
		"b": "(define-read-only (g) (contract-call? .a f))",
	})
	_, err := Generate(context.Background(), cfg, nil)
	require.ErrorIs(t, err, ErrCycle)
}

func TestGenerateRequirements(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, map[string]string{"token": tokenSource})
	cfg.Requirements = []string{registryID}

	_, err := Generate(context.Background(), cfg, nil)
	require.ErrorIs(err, errNoFetcher)

	fetcher := &fakeFetcher{}
	p, err := Generate(context.Background(), cfg, fetcher)
	require.NoError(err)
	require.Equal(1, fetcher.fetches)
	require.Len(p.Plan.Batches, 2)

	req := p.Plan.Batches[0]
	require.Equal("2.1", req.Epoch)
	require.NotNil(req.Transactions[0].RequirementPublish)
	op := req.Transactions[0].RequirementPublish
	require.Equal(registryID, op.ContractID)
	require.Equal(2, op.ClarityVersion)

	cached, err := os.ReadFile(filepath.Join(cfg.Dir, op.Path))
	require.NoError(err)
	require.Equal(registrySource, string(cached))
	require.Equal("2.5", p.Plan.Batches[1].Epoch)
}

func TestApply(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, map[string]string{"market": marketSource, "token": tokenSource})
	p, err := Generate(context.Background(), cfg, nil)
	require.NoError(err)
	p.Plan.Batches[0].Transactions = append(p.Plan.Batches[0].Transactions, &Transaction{
		EmulatedContractCall: &EmulatedContractCall{
			ContractID:     deployerAddr + ".market",
			EmulatedSender: "wallet_1",
			Method:         "mint-ten",
		},
	})

	s, results, err := NewSession(cfg, p)
	require.NoError(err)
	require.Len(results, 1)
	require.Equal(uint32(1), results[0].Height)
	require.Len(results[0].Receipts, 3)
	require.Equal("(ok u110)", results[0].Receipts[2].Result.String())
	require.Equal(uint32(2), s.BlockHeight())

	market := clarity.MustPrincipal(deployerAddr + ".market")
	r, err := s.CallReadOnlyFn(s.Deployer(), market, "supply")
	require.NoError(err)
	require.Equal("u110", r.Result.String())
}

func TestApplyRequirementRemap(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, nil)
	cfg.Requirements = []string{registryID}
	p, err := Generate(context.Background(), cfg, &fakeFetcher{})
	require.NoError(err)

	s, _, err := NewSession(cfg, p)
	require.NoError(err)
	r, err := s.CallReadOnlyFn(s.Deployer(), clarity.MustPrincipal(registryID), "get-owner")
	require.NoError(err)
	require.Equal("'SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9", r.Result.String())

	// republished under the deployer, the original address follows
	p.Plan.Batches[0].Transactions[0].RequirementPublish.RemapSender = deployerAddr
	s, _, err = NewSession(cfg, p)
	require.NoError(err)
	r, err = s.CallReadOnlyFn(s.Deployer(), clarity.MustPrincipal(deployerAddr+".registry"), "get-owner")
	require.NoError(err)
	require.Equal("'"+deployerAddr, r.Result.String())
}

func TestApplyFailsOnBadContract(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, map[string]string{
		"token":  tokenSource,
		"broken": "(define-read-only (f) (no-such-function u1))",
	})
	p, err := Generate(context.Background(), cfg, nil)
	require.NoError(err)

	s, _, err := NewSession(cfg, p)
	require.ErrorIs(err, ErrPublishFailed)
	require.Nil(s)
}

func TestMergeKeepsCustomOperations(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, map[string]string{"market": marketSource, "token": tokenSource})
	ctx := context.Background()

	generated, err := Generate(ctx, cfg, nil)
	require.NoError(err)
	custom := &Transaction{STXTransfer: &STXTransfer{
		ExpectedSender: deployerAddr,
		Recipient:      "ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5",
		MicroSTX:       1000,
		Memo:           "0x68656c6c6f",
	}}
	generated.Plan.Batches[0].Transactions = append(generated.Plan.Batches[0].Transactions, custom)
	_, err = Sync(cfg.DeploymentPlan, generated)
	require.NoError(err)

	// unchanged project
	regenerated, err := Generate(ctx, cfg, nil)
	require.NoError(err)
	merged, err := Sync(cfg.DeploymentPlan, regenerated)
	require.NoError(err)
	require.Len(merged.Plan.Batches, 1)
	require.Len(merged.Plan.Batches[0].Transactions, 3)
	require.Equal(custom, merged.Plan.Batches[0].Transactions[2])

	// added contract lands in a new batch
	addContract(t, cfg, "extra", "(define-read-only (hello) u1)")
	regenerated, err = Generate(ctx, cfg, nil)
	require.NoError(err)
	merged, err = Sync(cfg.DeploymentPlan, regenerated)
	require.NoError(err)
	require.Len(merged.Plan.Batches, 2)
	require.Equal(1, merged.Plan.Batches[1].ID)
	require.Equal([]string{deployerAddr + ".extra"}, publishedIDs(&Plan{Plan: Batches{Batches: merged.Plan.Batches[1:]}}))
	require.NotNil(merged.Plan.Batches[0].Transactions[2].STXTransfer)

	// removed contract is dropped, custom operation kept
	cfg.Contracts = cfg.Contracts[1:]
	regenerated, err = Generate(ctx, cfg, nil)
	require.NoError(err)
	merged = Merge(merged, regenerated)
	require.Equal([]string{deployerAddr + ".token", deployerAddr + ".extra"}, publishedIDs(merged))
	require.NotNil(merged.Plan.Batches[0].Transactions[1].STXTransfer)
}

func TestCachedPlanReplaysIdentically(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, map[string]string{"market": marketSource, "token": tokenSource})
	ctx := context.Background()

	generated, err := Generate(ctx, cfg, nil)
	require.NoError(err)
	first, err := Sync(cfg.DeploymentPlan, generated)
	require.NoError(err)
	generated, err = Generate(ctx, cfg, nil)
	require.NoError(err)
	second, err := Sync(cfg.DeploymentPlan, generated)
	require.NoError(err)

	_, a, err := NewSession(cfg, first)
	require.NoError(err)
	_, b, err := NewSession(cfg, second)
	require.NoError(err)
	require.Len(b, len(a))
	for i := range a {
		require.Equal(a[i].Height, b[i].Height)
		require.Len(b[i].Receipts, len(a[i].Receipts))
		for j := range a[i].Receipts {
			require.Equal(a[i].Receipts[j].Result, b[i].Receipts[j].Result)
			require.Equal(a[i].Receipts[j].Cost, b[i].Receipts[j].Cost)
		}
	}
}

const handWrittenPlan = `---
id: 0
name: custom
network: simnet
plan:
  batches:
    - id: 0
      epoch: "2.5"
      transactions:
        - emulated-contract-publish:
            contract-name: token
            emulated-sender: ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM
            path: contracts/token.clar
            clarity-version: 2
        - contract-call:
            contract-id: ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.token
            expected-sender: wallet_2
            method: mint
            parameters:
              - u5
            cost: 1000
        - stx-transfer:
            expected-sender: wallet_1
            recipient: wallet_2
            mstx-amount: 42
            cost: 1000
`

func TestLoadHandWrittenPlan(t *testing.T) {
	require := require.New(t)
	cfg := newProject(t, map[string]string{"token": tokenSource})
	path := filepath.Join(cfg.Dir, DefaultPath)
	require.NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(os.WriteFile(path, []byte(handWrittenPlan), 0o600))

	p, err := Load(path)
	require.NoError(err)
	kinds := []string{}
	for _, tx := range p.Transactions() {
		k, err := tx.Kind()
		require.NoError(err)
		kinds = append(kinds, k)
	}
	require.Equal([]string{"emulated-contract-publish", "contract-call", "stx-transfer"}, kinds)

	_, results, err := NewSession(cfg, p)
	require.NoError(err)
	require.Equal("(ok u105)", results[0].Receipts[1].Result.String())
	require.Equal("(ok true)", results[0].Receipts[2].Result.String())

	require.NoError(os.WriteFile(path, []byte("plan:\n  batches:\n    - id: 0\n      transactions:\n        - {}\n"), 0o600))
	_, err = Load(path)
	require.ErrorIs(err, errEmptyTransaction)
}

func TestRemap(t *testing.T) {
	src := "(contract-call? 'SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.registry get-owner) 'SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9"
	out := Remap(src, map[string]string{
		"SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9":          deployerAddr,
		"SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.registry": deployerAddr + ".local-registry",
	})
	require.Equal(t, "(contract-call? '"+deployerAddr+".local-registry get-owner) '"+deployerAddr, out)
	require.Equal(t, src, Remap(src, nil))
}
