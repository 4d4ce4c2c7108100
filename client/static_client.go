// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/simnet/service"
)

// StaticClient converts Clarity values without a session.
type StaticClient interface {
	Encode(ctx context.Context, value string, encoding formatting.Encoding) (string, error)
	Decode(ctx context.Context, bytes string, encoding formatting.Encoding) (*service.DecoderReply, error)
}

// NewStatic creates a client for the static endpoint at uri.
func NewStatic(uri string) StaticClient {
	return &staticClient{req: rpc.NewEndpointRequester(uri)}
}

type staticClient struct {
	req rpc.EndpointRequester
}

func (cli *staticClient) Encode(ctx context.Context, value string, encoding formatting.Encoding) (string, error) {
	resp := new(service.EncoderReply)
	err := cli.req.SendRequest(ctx,
		"simnetstatic.encode",
		&service.EncoderArgs{Value: value, Encoding: encoding},
		resp,
	)
	return resp.Bytes, err
}

func (cli *staticClient) Decode(ctx context.Context, bytes string, encoding formatting.Encoding) (*service.DecoderReply, error) {
	resp := new(service.DecoderReply)
	err := cli.req.SendRequest(ctx,
		"simnetstatic.decode",
		&service.DecoderArgs{Bytes: bytes, Encoding: encoding},
		resp,
	)
	return resp, err
}
