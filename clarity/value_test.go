// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity/ast"
)

const deployer = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"

func TestTextRoundTrip(t *testing.T) {
	literals := []string{
		"u1",
		"-3",
		"170141183460469231731687303715884105727",
		"-170141183460469231731687303715884105728",
		"u340282366920938463463374607431768211455",
		"true",
		"false",
		"0x0a0b",
		"0x",
		`"abc"`,
		`"a\"b\n"`,
		`u"h\u{e9}llo"`,
		"none",
		"(some u1)",
		"(ok (list u1 u2))",
		"(err none)",
		"(list)",
		"(list (some 1) none)",
		"{ a: u1, b: (list 0x01) }",
		"'" + deployer,
		"'" + deployer + ".counter",
	}
	for _, lit := range literals {
		t.Run(lit, func(t *testing.T) {
			require := require.New(t)
			v, err := ParseValue(lit)
			require.NoError(err)
			require.Equal(lit, v.String())

			again, err := ParseValue(v.String())
			require.NoError(err)
			require.True(Equal(v, again))

			b, err := Serialize(v)
			require.NoError(err)
			decoded, err := Deserialize(b)
			require.NoError(err)
			require.True(Equal(v, decoded), "decoded %s", decoded)
		})
	}
}

func TestTupleOrdering(t *testing.T) {
	require := require.New(t)

	bac := MustTuple(
		TupleField{Name: "b", Value: NewUInt(1)},
		TupleField{Name: "a", Value: NewUInt(2)},
		TupleField{Name: "c", Value: NewUInt(3)},
	)
	abc := MustTuple(
		TupleField{Name: "a", Value: NewUInt(2)},
		TupleField{Name: "b", Value: NewUInt(1)},
		TupleField{Name: "c", Value: NewUInt(3)},
	)
	require.True(Equal(bac, abc))
	require.Equal("{ a: u2, b: u1, c: u3 }", bac.String())
	require.Equal(abc.String(), bac.String())
	require.Equal([]string{"a", "b", "c"}, bac.Names())

	b1, err := Serialize(bac)
	require.NoError(err)
	b2, err := Serialize(abc)
	require.NoError(err)
	require.Equal(b1, b2)

	_, err = NewTuple(TupleField{Name: "a", Value: True}, TupleField{Name: "a", Value: False})
	var dup *DuplicateFieldError
	require.True(errors.As(err, &dup))

	merged := abc.Merge(MustTuple(TupleField{Name: "d", Value: True}, TupleField{Name: "a", Value: None}))
	require.Equal("{ a: none, b: u1, c: u3, d: true }", merged.String())
}

func TestSerializationVectors(t *testing.T) {
	tests := []struct {
		value Value
		hex   string
	}{
		{NewUInt(1), "0x0100000000000000000000000000000001"},
		{NewInt(-1), "0x00ffffffffffffffffffffffffffffffff"},
		{True, "0x03"},
		{None, "0x09"},
		{Ok(NewInt(1)), "0x070000000000000000000000000000000001"},
		{Buffer{Data: []byte{0xde, 0xad}}, "0x0200000002dead"},
		{StringASCII{Data: []byte("hi")}, "0x0d000000026869"},
	}
	for _, test := range tests {
		require := require.New(t)
		got, err := SerializeHex(test.value)
		require.NoError(err)
		require.Equal(test.hex, got)

		back, err := DeserializeHex(test.hex[2:])
		require.NoError(err)
		require.True(Equal(test.value, back))
	}
}

func TestDeserializeMalformed(t *testing.T) {
	for _, payload := range [][]byte{
		{},
		{0x01, 0x00},
		{0x0f},
		{0x0b, 0xff, 0xff, 0xff, 0xff},
		{0x03, 0x03},
		{0x0d, 0x00, 0x00, 0x00, 0x01, 0xff},
		{0x0c, 0x00, 0x00, 0x00, 0x00},
	} {
		_, err := Deserialize(payload)
		require.ErrorIs(t, err, ErrDeserialization, "payload %x", payload)
	}
}

func TestArithmetic(t *testing.T) {
	require := require.New(t)

	maxInt, err := ParseInt("170141183460469231731687303715884105727")
	require.NoError(err)
	minInt, err := ParseInt("-170141183460469231731687303715884105728")
	require.NoError(err)

	_, err = Add(maxInt, NewInt(1))
	require.ErrorIs(err, ErrArithmeticOverflow)
	_, err = Sub(minInt, NewInt(1))
	require.ErrorIs(err, ErrArithmeticUnderflow)
	_, err = Sub(NewUInt(0), NewUInt(1))
	require.ErrorIs(err, ErrArithmeticUnderflow)
	_, err = Div(NewUInt(1), NewUInt(0))
	require.ErrorIs(err, ErrDivisionByZero)
	_, err = Div(minInt, NewInt(-1))
	require.ErrorIs(err, ErrArithmeticOverflow)

	v, err := Div(NewInt(-7), NewInt(2))
	require.NoError(err)
	require.Equal("-3", v.String())
	v, err = Mod(NewInt(-7), NewInt(2))
	require.NoError(err)
	require.Equal("-1", v.String())

	v, err = Pow(NewInt(-2), NewInt(127))
	require.NoError(err)
	require.True(Equal(minInt, v))
	_, err = Pow(NewInt(2), NewInt(127))
	require.ErrorIs(err, ErrArithmeticOverflow)
	_, err = Pow(NewInt(2), NewInt(-1))
	require.ErrorIs(err, ErrArithmeticInvalid)
	v, err = Pow(NewUInt(10), NewUInt(0))
	require.NoError(err)
	require.Equal("u1", v.String())

	v, err = Sqrti(NewUInt(17))
	require.NoError(err)
	require.Equal("u4", v.String())
	_, err = Sqrti(NewInt(-1))
	require.ErrorIs(err, ErrArithmeticInvalid)
	v, err = Log2(NewUInt(8))
	require.NoError(err)
	require.Equal("u3", v.String())
	_, err = Log2(NewInt(0))
	require.ErrorIs(err, ErrArithmeticInvalid)

	v, err = Shift(true, NewInt(1), NewUInt(127))
	require.NoError(err)
	require.True(Equal(minInt, v))
	v, err = Shift(false, NewInt(-8), NewUInt(1))
	require.NoError(err)
	require.Equal("-4", v.String())
	v, err = BitNot(NewInt(0))
	require.NoError(err)
	require.Equal("-1", v.String())
	v, err = BitNot(NewUInt(0))
	require.NoError(err)
	require.Equal("u340282366920938463463374607431768211455", v.String())

	_, err = ToUInt(NewInt(-1))
	require.ErrorIs(err, ErrArithmeticUnderflow)
	maxUInt, err := ParseUInt("340282366920938463463374607431768211455")
	require.NoError(err)
	_, err = ToInt(maxUInt)
	require.ErrorIs(err, ErrArithmeticOverflow)
	_, err = ParseUInt("340282366920938463463374607431768211456")
	require.ErrorIs(err, ErrArithmeticOverflow)
}

func TestCompareTypeError(t *testing.T) {
	require := require.New(t)

	c, err := Compare(StringASCII{Data: []byte("abc")}, StringASCII{Data: []byte("abd")})
	require.NoError(err)
	require.Equal(-1, c)
	c, err = Compare(NewInt(-5), NewInt(3))
	require.NoError(err)
	require.Equal(-1, c)

	_, err = Compare(NewInt(1), NewUInt(1))
	var typeErr *TypeError
	require.True(errors.As(err, &typeErr))
	require.Equal("int", typeErr.Left)
	require.Equal("uint", typeErr.Right)

	_, err = Add(NewInt(1), NewUInt(1))
	require.True(errors.As(err, &typeErr))
	require.Contains(err.Error(), "int and uint")
}

func TestPrincipals(t *testing.T) {
	require := require.New(t)

	require.Equal("ST000000000000000000002AMW42H", BootAddress.Address())

	p, err := ParsePrincipal(deployer)
	require.NoError(err)
	require.Equal(VersionTestnetSingleSig, p.Version)
	require.Equal(deployer, p.Address())
	require.True(p.IsTestnet())

	var hash [20]byte
	for i := range hash {
		hash[i] = byte(i * 7)
	}
	for _, version := range []byte{VersionMainnetSingleSig, VersionMainnetMultiSig, VersionTestnetSingleSig, VersionTestnetMultiSig} {
		p := Principal{Version: version, Hash: hash, Name: "token"}
		parsed, err := ParsePrincipal(p.ID())
		require.NoError(err)
		require.Equal(p, parsed)
	}

	_, err = ParsePrincipal(deployer[:len(deployer)-1] + "N")
	require.ErrorIs(err, ErrBadChecksum)
	_, err = ParsePrincipal(deployer + ".1bad")
	require.ErrorIs(err, ErrInvalidPrincipal)
}

func TestTypeSignatures(t *testing.T) {
	require := require.New(t)

	e, err := ast.ParseOne("(list 10 { b: (optional principal), a: (buff 32) })")
	require.NoError(err)
	ts, err := ParseType(e)
	require.NoError(err)
	require.Equal("(list 10 (tuple (a (buff 32)) (b (optional principal))))", ts.String())

	v, err := ParseValue("(list { a: 0x01, b: none } { a: 0x, b: (some '" + deployer + ") })")
	require.NoError(err)
	require.True(ts.Admits(v))

	v, err = ParseValue("(list { a: 0x01, b: (some u1) })")
	require.NoError(err)
	require.False(ts.Admits(v))

	require.False(ASCIIOf(2).Admits(StringASCII{Data: []byte("abc")}))
	require.True(UTF8Of(1).Admits(StringUTF8{Data: "é"}))

	e, err = ast.ParseOne("(response bool uint)")
	require.NoError(err)
	resp, err := ParseType(e)
	require.NoError(err)
	b, err := json.Marshal(resp)
	require.NoError(err)
	require.JSONEq(`{"response":{"ok":"bool","error":"uint128"}}`, string(b))

	var back TypeSignature
	require.NoError(json.Unmarshal(b, &back))
	require.True(resp.Equal(back))

	b, err = json.Marshal(ts)
	require.NoError(err)
	require.NoError(json.Unmarshal(b, &back))
	require.True(ts.Equal(back))

	_, err = NewList([]Value{NewInt(1), NewUInt(1)})
	require.Error(err)
}

func TestEpochs(t *testing.T) {
	require := require.New(t)

	for _, s := range []string{"2.4", "epoch-2.4", "Epoch24", "epoch_2_4"} {
		e, err := ParseEpoch(s)
		require.NoError(err, s)
		require.Equal(Epoch24, e)
	}
	_, err := ParseEpoch("9.9")
	require.ErrorIs(err, ErrUnknownEpoch)

	require.Equal(Clarity1, Epoch205.DefaultVersion())
	require.Equal(Clarity2, Epoch25.DefaultVersion())
	require.Equal(Clarity3, Epoch30.DefaultVersion())
	require.Equal(Clarity4, Epoch33.DefaultVersion())
	require.False(Epoch24.SupportsVersion(Clarity3))
	require.True(Epoch31.SupportsVersion(Clarity1))
	require.True(Epoch30.DecoupledBlocks())
	require.False(Epoch25.DecoupledBlocks())
	require.Len(Epochs(), 11)

	b, err := json.Marshal(Epoch205)
	require.NoError(err)
	require.Equal(`"2.05"`, string(b))

	var v Version
	require.NoError(json.Unmarshal([]byte(`"clarity2"`), &v))
	require.Equal(Clarity2, v)
	require.NoError(json.Unmarshal([]byte(`3`), &v))
	require.Equal(Clarity3, v)
}
