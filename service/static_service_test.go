// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/utils/formatting"
)

func TestStaticEncodeDecode(t *testing.T) {
	require := require.New(t)
	ss := &StaticService{}

	enc := &EncoderReply{}
	require.NoError(ss.Encode(nil, &EncoderArgs{Value: "u1", Encoding: formatting.HexNC}, enc))
	require.Equal("0x0100000000000000000000000000000001", enc.Bytes)

	dec := &DecoderReply{}
	require.NoError(ss.Decode(nil, &DecoderArgs{Bytes: enc.Bytes, Encoding: formatting.HexNC}, dec))
	require.Equal("u1", dec.Value)
	require.Equal("uint", dec.Type)

	require.NoError(ss.Encode(nil, &EncoderArgs{Value: `(some { a: 1, b: "x" })`, Encoding: formatting.Hex}, enc))
	require.NoError(ss.Decode(nil, &DecoderArgs{Bytes: enc.Bytes, Encoding: formatting.Hex}, dec))
	require.Equal(`(some { a: 1, b: "x" })`, dec.Value)

	require.Error(ss.Encode(nil, &EncoderArgs{Value: "(+ 1", Encoding: formatting.HexNC}, enc))
	require.Error(ss.Decode(nil, &DecoderArgs{Bytes: "ff", Encoding: formatting.HexNC}, dec))
}
