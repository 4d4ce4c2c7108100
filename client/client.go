// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/utils/rpc"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/simnet/service"
	"github.com/ava-labs/simnet/session"
)

// Client defines simnet client operations. Values are Clarity literals.
type Client interface {
	// NewSession starts a session, deploying the project in dir if set.
	NewSession(ctx context.Context, dir, epoch string) (*service.NewSessionReply, error)
	TerminateSession(ctx context.Context, sessionID string) error
	LoadDeployment(ctx context.Context, sessionID, path string) ([]service.BatchReply, error)

	MineBlock(ctx context.Context, sessionID string, txs ...service.TxArgs) (*service.MineBlockReply, error)
	MineEmptyBlocks(ctx context.Context, sessionID string, count uint32) (uint32, error)
	MineEmptyBurnBlocks(ctx context.Context, sessionID string, count uint32) (uint32, error)

	CallReadOnlyFn(ctx context.Context, sessionID, sender, contract, function string, args ...string) (*service.ReceiptReply, error)
	CallPublicFn(ctx context.Context, sessionID, sender, contract, function string, args ...string) (*service.ReceiptReply, error)
	CallPrivateFn(ctx context.Context, sessionID, sender, contract, function string, args ...string) (*service.ReceiptReply, error)
	ExecuteSnippet(ctx context.Context, sessionID, sender, snippet string) (*service.ReceiptReply, error)
	ExecuteCommand(ctx context.Context, sessionID, command string) (string, error)
	DeployContract(ctx context.Context, sessionID, sender, name, source string, version int) (*service.ReceiptReply, error)
	TransferSTX(ctx context.Context, sessionID, sender, recipient string, amount uint64) (*service.ReceiptReply, error)

	SetEpoch(ctx context.Context, sessionID, epoch string) (string, error)
	GetEpoch(ctx context.Context, sessionID string) (string, error)
	GetDataVar(ctx context.Context, sessionID, contract, name string) (string, error)
	GetMapEntry(ctx context.Context, sessionID, contract, name, key string) (string, error)
	GetAssetsMaps(ctx context.Context, sessionID string) (map[string]map[string]string, error)
	GetContractSource(ctx context.Context, sessionID, contract string) (string, error)
	CollectReport(ctx context.Context, sessionID string, includeBoot bool, bootPath string) (*session.Report, error)
}

// New creates a new client object.
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) NewSession(ctx context.Context, dir, epoch string) (*service.NewSessionReply, error) {
	resp := new(service.NewSessionReply)
	err := cli.req.SendRequest(ctx,
		"simnet.newSession",
		&service.NewSessionArgs{ProjectDir: dir, Epoch: epoch},
		resp,
	)
	return resp, err
}

func (cli *client) TerminateSession(ctx context.Context, sessionID string) error {
	return cli.req.SendRequest(ctx,
		"simnet.terminateSession",
		&service.SessionArgs{SessionID: sessionID},
		&api.EmptyReply{},
	)
}

func (cli *client) LoadDeployment(ctx context.Context, sessionID, path string) ([]service.BatchReply, error) {
	resp := new(service.LoadDeploymentReply)
	err := cli.req.SendRequest(ctx,
		"simnet.loadDeployment",
		&service.LoadDeploymentArgs{SessionID: sessionID, Path: path},
		resp,
	)
	return resp.Batches, err
}

func (cli *client) MineBlock(ctx context.Context, sessionID string, txs ...service.TxArgs) (*service.MineBlockReply, error) {
	resp := new(service.MineBlockReply)
	err := cli.req.SendRequest(ctx,
		"simnet.mineBlock",
		&service.MineBlockArgs{SessionID: sessionID, Transactions: txs},
		resp,
	)
	return resp, err
}

func (cli *client) MineEmptyBlocks(ctx context.Context, sessionID string, count uint32) (uint32, error) {
	return cli.mineEmpty(ctx, "simnet.mineEmptyBlocks", sessionID, count)
}

func (cli *client) MineEmptyBurnBlocks(ctx context.Context, sessionID string, count uint32) (uint32, error) {
	return cli.mineEmpty(ctx, "simnet.mineEmptyBurnBlocks", sessionID, count)
}

func (cli *client) mineEmpty(ctx context.Context, method, sessionID string, count uint32) (uint32, error) {
	resp := new(service.HeightReply)
	err := cli.req.SendRequest(ctx,
		method,
		&service.MineEmptyBlocksArgs{SessionID: sessionID, Count: cjson.Uint32(count)},
		resp,
	)
	return resp.Height, err
}

func (cli *client) CallReadOnlyFn(ctx context.Context, sessionID, sender, contract, function string, args ...string) (*service.ReceiptReply, error) {
	return cli.call(ctx, "simnet.callReadOnlyFn", sessionID, sender, contract, function, args)
}

func (cli *client) CallPublicFn(ctx context.Context, sessionID, sender, contract, function string, args ...string) (*service.ReceiptReply, error) {
	return cli.call(ctx, "simnet.callPublicFn", sessionID, sender, contract, function, args)
}

func (cli *client) CallPrivateFn(ctx context.Context, sessionID, sender, contract, function string, args ...string) (*service.ReceiptReply, error) {
	return cli.call(ctx, "simnet.callPrivateFn", sessionID, sender, contract, function, args)
}

func (cli *client) call(ctx context.Context, method, sessionID, sender, contract, function string, args []string) (*service.ReceiptReply, error) {
	resp := new(service.ReceiptReply)
	err := cli.req.SendRequest(ctx,
		method,
		&service.CallFnArgs{SessionID: sessionID, Sender: sender, Contract: contract, Function: function, Args: args},
		resp,
	)
	return resp, err
}

func (cli *client) ExecuteSnippet(ctx context.Context, sessionID, sender, snippet string) (*service.ReceiptReply, error) {
	resp := new(service.ReceiptReply)
	err := cli.req.SendRequest(ctx,
		"simnet.executeSnippet",
		&service.ExecuteSnippetArgs{SessionID: sessionID, Sender: sender, Snippet: snippet},
		resp,
	)
	return resp, err
}

func (cli *client) ExecuteCommand(ctx context.Context, sessionID, command string) (string, error) {
	resp := new(service.ExecuteCommandReply)
	err := cli.req.SendRequest(ctx,
		"simnet.executeCommand",
		&service.ExecuteCommandArgs{SessionID: sessionID, Command: command},
		resp,
	)
	return resp.Output, err
}

func (cli *client) DeployContract(ctx context.Context, sessionID, sender, name, source string, version int) (*service.ReceiptReply, error) {
	resp := new(service.ReceiptReply)
	err := cli.req.SendRequest(ctx,
		"simnet.deployContract",
		&service.DeployContractArgs{SessionID: sessionID, Sender: sender, Name: name, Source: source, ClarityVersion: version},
		resp,
	)
	return resp, err
}

func (cli *client) TransferSTX(ctx context.Context, sessionID, sender, recipient string, amount uint64) (*service.ReceiptReply, error) {
	resp := new(service.ReceiptReply)
	err := cli.req.SendRequest(ctx,
		"simnet.transferSTX",
		&service.TransferSTXArgs{SessionID: sessionID, Sender: sender, Recipient: recipient, Amount: cjson.Uint64(amount)},
		resp,
	)
	return resp, err
}

func (cli *client) SetEpoch(ctx context.Context, sessionID, epoch string) (string, error) {
	resp := new(service.EpochReply)
	err := cli.req.SendRequest(ctx,
		"simnet.setEpoch",
		&service.EpochArgs{SessionID: sessionID, Epoch: epoch},
		resp,
	)
	return resp.Epoch, err
}

func (cli *client) GetEpoch(ctx context.Context, sessionID string) (string, error) {
	resp := new(service.EpochReply)
	err := cli.req.SendRequest(ctx,
		"simnet.getEpoch",
		&service.SessionArgs{SessionID: sessionID},
		resp,
	)
	return resp.Epoch, err
}

func (cli *client) GetDataVar(ctx context.Context, sessionID, contract, name string) (string, error) {
	resp := new(service.ValueReply)
	err := cli.req.SendRequest(ctx,
		"simnet.getDataVar",
		&service.DataArgs{SessionID: sessionID, Contract: contract, Name: name},
		resp,
	)
	return resp.Value, err
}

func (cli *client) GetMapEntry(ctx context.Context, sessionID, contract, name, key string) (string, error) {
	resp := new(service.ValueReply)
	err := cli.req.SendRequest(ctx,
		"simnet.getMapEntry",
		&service.DataArgs{SessionID: sessionID, Contract: contract, Name: name, Key: key},
		resp,
	)
	return resp.Value, err
}

func (cli *client) GetAssetsMaps(ctx context.Context, sessionID string) (map[string]map[string]string, error) {
	resp := new(service.AssetsReply)
	err := cli.req.SendRequest(ctx,
		"simnet.getAssetsMaps",
		&service.SessionArgs{SessionID: sessionID},
		resp,
	)
	return resp.Assets, err
}

func (cli *client) GetContractSource(ctx context.Context, sessionID, contract string) (string, error) {
	resp := new(service.SourceReply)
	err := cli.req.SendRequest(ctx,
		"simnet.getContractSource",
		&service.ContractArgs{SessionID: sessionID, Contract: contract},
		resp,
	)
	return resp.Source, err
}

func (cli *client) CollectReport(ctx context.Context, sessionID string, includeBoot bool, bootPath string) (*session.Report, error) {
	resp := new(session.Report)
	err := cli.req.SendRequest(ctx,
		"simnet.collectReport",
		&service.CollectReportArgs{SessionID: sessionID, IncludeBootContracts: includeBoot, BootContractsPath: bootPath},
		resp,
	)
	return resp, err
}
