// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/api"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/simnet/session"
)

const (
	deployer = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	wallet1  = "ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5"
)

const counterSource = `
(define-data-var count uint u0)
(define-map seen principal bool)
(define-public (increment)
  (begin
    (map-set seen tx-sender true)
    (var-set count (+ (var-get count) u1))
    (ok (var-get count))))
(define-read-only (get-count) (var-get count))
`

func newTestService(t *testing.T) (*Service, string) {
	svc := New(NewManager(nil))
	reply := &NewSessionReply{}
	require.NoError(t, svc.NewSession(httptest.NewRequest(http.MethodPost, "/", nil), &NewSessionArgs{Epoch: "2.5"}, reply))
	return svc, reply.SessionID
}

func TestSessionLifecycle(t *testing.T) {
	require := require.New(t)
	svc, id := newTestService(t)
	require.Equal(1, svc.mgr.Len())

	epoch := &EpochReply{}
	require.NoError(svc.GetEpoch(nil, &SessionArgs{SessionID: id}, epoch))
	require.Equal("2.5", epoch.Epoch)

	require.NoError(svc.SetEpoch(nil, &EpochArgs{SessionID: id, Epoch: "nonsense"}, epoch))
	require.Equal("3.3", epoch.Epoch)

	require.NoError(svc.TerminateSession(nil, &SessionArgs{SessionID: id}, &api.EmptyReply{}))
	require.Equal(0, svc.mgr.Len())
	err := svc.GetEpoch(nil, &SessionArgs{SessionID: id}, epoch)
	require.ErrorIs(err, ErrUnknownSession)
}

func TestDeployAndCall(t *testing.T) {
	require := require.New(t)
	svc, id := newTestService(t)
	contract := deployer + ".counter"

	receipt := &ReceiptReply{}
	require.NoError(svc.DeployContract(nil, &DeployContractArgs{SessionID: id, Sender: "deployer", Name: "counter", Source: counterSource}, receipt))
	require.Equal("true", receipt.Result)

	require.NoError(svc.CallPublicFn(nil, &CallFnArgs{SessionID: id, Sender: "wallet_1", Contract: contract, Function: "increment"}, receipt))
	require.Equal("(ok u1)", receipt.Result)
	require.NotEmpty(receipt.Events)

	require.NoError(svc.CallReadOnlyFn(nil, &CallFnArgs{SessionID: id, Sender: deployer, Contract: contract, Function: "get-count"}, receipt))
	require.Equal("u1", receipt.Result)

	err := svc.CallPrivateFn(nil, &CallFnArgs{SessionID: id, Sender: deployer, Contract: contract, Function: "increment"}, receipt)
	require.ErrorContains(err, "not a private function")

	value := &ValueReply{}
	require.NoError(svc.GetDataVar(nil, &DataArgs{SessionID: id, Contract: contract, Name: "count"}, value))
	require.Equal("u1", value.Value)
	require.NoError(svc.GetMapEntry(nil, &DataArgs{SessionID: id, Contract: contract, Name: "seen", Key: "'" + wallet1}, value))
	require.Equal("(some true)", value.Value)
	require.NoError(svc.GetMapEntry(nil, &DataArgs{SessionID: id, Contract: contract, Name: "seen", Key: "'" + deployer}, value))
	require.Equal("none", value.Value)

	source := &SourceReply{}
	require.NoError(svc.GetContractSource(nil, &ContractArgs{SessionID: id, Contract: contract}, source))
	require.Equal(counterSource, source.Source)

	ast := &ASTReply{}
	require.NoError(svc.GetContractAST(nil, &ContractArgs{SessionID: id, Contract: contract}, ast))
	require.Len(ast.Expressions, 4)

	ifaces := &InterfacesReply{}
	require.NoError(svc.GetContractsInterfaces(nil, &SessionArgs{SessionID: id}, ifaces))
	require.Contains(ifaces.Interfaces, contract)
	require.Len(ifaces.Interfaces[contract].Functions, 2)
}

func TestMineBlock(t *testing.T) {
	require := require.New(t)
	svc, id := newTestService(t)

	reply := &MineBlockReply{}
	require.NoError(svc.MineBlock(nil, &MineBlockArgs{SessionID: id, Transactions: []TxArgs{
		{Kind: "deploy_contract", Sender: "deployer", Name: "counter", Source: counterSource},
		{Kind: "call_public_fn", Sender: "wallet_1", Contract: deployer + ".counter", Function: "increment"},
		{Kind: "transfer_stx", Sender: "wallet_1", Recipient: deployer, Amount: cjson.Uint64(500)},
		{Kind: "call_public_fn", Sender: "wallet_1", Contract: deployer + ".missing", Function: "f"},
	}}, reply))
	require.Len(reply.Receipts, 4)
	require.Equal(uint32(2), reply.Height)
	require.Equal("(ok u1)", reply.Receipts[1].Result)
	require.Equal("(ok true)", reply.Receipts[2].Result)
	require.Contains(reply.Receipts[3].Error, "contract not found")

	height := &HeightReply{}
	require.NoError(svc.MineEmptyBlocks(nil, &MineEmptyBlocksArgs{SessionID: id, Count: 3}, height))
	require.Equal(uint32(5), height.Height)
	err := svc.MineEmptyStacksBlocks(nil, &MineEmptyBlocksArgs{SessionID: id, Count: 1}, height)
	require.ErrorContains(err, "use mineEmptyBurnBlock in epoch lower than 3.0")

	assets := &AssetsReply{}
	require.NoError(svc.GetAssetsMaps(nil, &SessionArgs{SessionID: id}, assets))
	require.Equal("100000000000500", assets.Assets["STX"][deployer])

	err = svc.MineBlock(nil, &MineBlockArgs{SessionID: id, Transactions: []TxArgs{{Kind: "bogus", Sender: "deployer"}}}, reply)
	require.Error(err)
}

func TestSnippetsCommandsAndReport(t *testing.T) {
	require := require.New(t)
	svc, id := newTestService(t)

	receipt := &ReceiptReply{}
	require.NoError(svc.ExecuteSnippet(nil, &ExecuteSnippetArgs{SessionID: id, Snippet: "(+ 1 2)"}, receipt))
	require.Equal("3", receipt.Result)

	out := &ExecuteCommandReply{}
	require.NoError(svc.ExecuteCommand(nil, &ExecuteCommandArgs{SessionID: id, Command: "::get_block_height"}, out))
	require.Equal("Current block height: 1", out.Output)

	require.NoError(svc.DeployContract(nil, &DeployContractArgs{SessionID: id, Sender: "deployer", Name: "counter", Source: counterSource}, receipt))
	require.NoError(svc.SetTestName(nil, &TestNameArgs{SessionID: id, Name: "counter-test"}, &api.EmptyReply{}))
	require.NoError(svc.CallPublicFn(nil, &CallFnArgs{SessionID: id, Sender: "wallet_1", Contract: deployer + ".counter", Function: "increment"}, receipt))

	report := &session.Report{}
	require.NoError(svc.CollectReport(nil, &CollectReportArgs{SessionID: id}, report))
	require.Contains(report.Coverage, "TN:counter-test")
	require.Contains(report.Coverage, "FNDA:1,increment")
	require.Contains(report.Costs, `"method":"increment"`)
}

func TestNewSessionFromProject(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	require.NoError(os.MkdirAll(filepath.Join(dir, "contracts"), 0o755))
	require.NoError(os.WriteFile(filepath.Join(dir, "contracts", "counter.clar"), []byte(counterSource), 0o600))
	require.NoError(os.WriteFile(filepath.Join(dir, "Clarinet.toml"), []byte(`
[project]
name = "counter"

[repl]
epoch = "2.5"

[contracts.counter]
path = "contracts/counter.clar"
clarity_version = 2
`), 0o600))

	svc := New(NewManager(nil))
	reply := &NewSessionReply{}
	require.NoError(svc.NewSession(httptest.NewRequest(http.MethodPost, "/", nil), &NewSessionArgs{ProjectDir: dir}, reply))
	require.Equal([]string{deployer + ".counter"}, reply.Contracts)
	require.Len(reply.Accounts, 10)
	require.FileExists(filepath.Join(dir, "deployments", "default.simnet-plan.yaml"))

	// the synced plan replays on a fresh session
	other := &NewSessionReply{}
	require.NoError(svc.NewSession(httptest.NewRequest(http.MethodPost, "/", nil), &NewSessionArgs{Epoch: "2.5"}, other))
	batches := &LoadDeploymentReply{}
	require.NoError(svc.LoadDeployment(nil, &LoadDeploymentArgs{
		SessionID: other.SessionID,
		Path:      filepath.Join(dir, "deployments", "default.simnet-plan.yaml"),
	}, batches))
	require.Len(batches.Batches, 1)
	require.Empty(batches.Batches[0].Receipts[0].Error)
	require.Equal("true", batches.Batches[0].Receipts[0].Result)

	// replaying on the project session publishes twice
	err := svc.LoadDeployment(nil, &LoadDeploymentArgs{
		SessionID: reply.SessionID,
		Path:      filepath.Join(dir, "deployments", "default.simnet-plan.yaml"),
	}, batches)
	require.ErrorContains(err, "contract already exists")
}
