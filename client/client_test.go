// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/utils/formatting"

	"github.com/ava-labs/simnet/service"
)

const deployer = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"

func newTestClient(t *testing.T) Client {
	handler, err := service.NewHandler(service.New(service.NewManager(nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	require := require.New(t)
	cli := newTestClient(t)
	ctx := context.Background()

	sess, err := cli.NewSession(ctx, "", "3.0")
	require.NoError(err)
	require.NotEmpty(sess.SessionID)
	require.Len(sess.Accounts, 10)
	id := sess.SessionID

	epoch, err := cli.GetEpoch(ctx, id)
	require.NoError(err)
	require.Equal("3.0", epoch)

	r, err := cli.DeployContract(ctx, id, "deployer", "greeter", `
(define-data-var greeting (string-ascii 16) "hello")
(define-public (set-greeting (g (string-ascii 16)))
  (begin (var-set greeting g) (ok true)))
(define-read-only (get-greeting) (var-get greeting))
`, 0)
	require.NoError(err)
	require.Equal("true", r.Result)

	r, err = cli.CallPublicFn(ctx, id, "wallet_1", deployer+".greeter", "set-greeting", `"bonjour"`)
	require.NoError(err)
	require.Equal("(ok true)", r.Result)

	v, err := cli.GetDataVar(ctx, id, deployer+".greeter", "greeting")
	require.NoError(err)
	require.Equal(`"bonjour"`, v)

	h, err := cli.MineEmptyBlocks(ctx, id, 4)
	require.NoError(err)
	require.Equal(uint32(7), h)
	h, err = cli.MineEmptyBurnBlocks(ctx, id, 1)
	require.NoError(err)
	require.Equal(uint32(8), h)

	r, err = cli.TransferSTX(ctx, id, "wallet_1", "wallet_2", 10)
	require.NoError(err)
	require.Equal("(ok true)", r.Result)

	out, err := cli.ExecuteCommand(ctx, id, "::get_epoch")
	require.NoError(err)
	require.Equal("Current epoch: 3.0", out)

	_, err = cli.CallReadOnlyFn(ctx, id, "deployer", deployer+".greeter", "set-greeting", `"x"`)
	require.Error(err)

	report, err := cli.CollectReport(ctx, id, false, "")
	require.NoError(err)
	require.Contains(report.Coverage, "set-greeting")

	require.NoError(cli.TerminateSession(ctx, id))
	_, err = cli.GetEpoch(ctx, id)
	require.Error(err)
}

func TestStaticClient(t *testing.T) {
	require := require.New(t)
	handler, err := service.NewStaticHandler()
	require.NoError(err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cli := NewStatic(srv.URL)

	bytes, err := cli.Encode(context.Background(), "(ok u7)", formatting.HexNC)
	require.NoError(err)
	reply, err := cli.Decode(context.Background(), bytes, formatting.HexNC)
	require.NoError(err)
	require.Equal("(ok u7)", reply.Value)
}
