// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/simnet/clarity"
)

// StaticName is the JSON-RPC name of the session-less service.
const StaticName = "simnetstatic"

// StaticService converts Clarity values to and from their consensus
// serialization. It needs no session.
type StaticService struct{}

// NewStaticHandler serves a StaticService over JSON-RPC.
func NewStaticHandler() (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(&StaticService{}, StaticName)
}

// EncoderArgs are arguments for Encode
type EncoderArgs struct {
	Value    string              `json:"value"`
	Encoding formatting.Encoding `json:"encoding"`
}

// EncoderReply is the reply from Encode
type EncoderReply struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// Encode parses a Clarity literal and returns its serialization.
func (*StaticService) Encode(_ *http.Request, args *EncoderArgs, reply *EncoderReply) error {
	v, err := clarity.ParseValue(args.Value)
	if err != nil {
		return err
	}
	b, err := clarity.Serialize(v)
	if err != nil {
		return err
	}
	bytes, err := formatting.Encode(args.Encoding, b)
	if err != nil {
		return fmt.Errorf("couldn't encode value: %w", err)
	}
	reply.Bytes = bytes
	reply.Encoding = args.Encoding
	return nil
}

// DecoderArgs are arguments for Decode
type DecoderArgs struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// DecoderReply is the reply from Decode
type DecoderReply struct {
	Value    string              `json:"value"`
	Type     string              `json:"type"`
	Encoding formatting.Encoding `json:"encoding"`
}

// Decode returns the Clarity literal of serialized bytes.
func (*StaticService) Decode(_ *http.Request, args *DecoderArgs, reply *DecoderReply) error {
	b, err := formatting.Decode(args.Encoding, args.Bytes)
	if err != nil {
		return fmt.Errorf("couldn't decode bytes: %w", err)
	}
	v, err := clarity.Deserialize(b)
	if err != nil {
		return err
	}
	reply.Value = v.String()
	reply.Type = v.Type().String()
	reply.Encoding = args.Encoding
	return nil
}
