// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"sort"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
)

type (
	// evalFunc receives its arguments unevaluated.
	evalFunc func(c *evalCtx, e *ast.Expr, sc *scope) (clarity.Value, error)
	// nativeFunc receives its arguments evaluated left to right.
	nativeFunc  func(c *evalCtx, e *ast.Expr, args []clarity.Value) (clarity.Value, error)
	keywordFunc func(c *evalCtx) (clarity.Value, error)
)

type argKind uint8

const (
	exprArg argKind = iota
	nameArg         // names a definition, tuple field or block property
	typeArg         // a type expression
	funcArg         // names a function
)

// builtin is one row of the gating table: a function or keyword, the Clarity
// version that introduced it, the version that retired it (0 if none) and the
// first epoch it can be deployed in.
type builtin struct {
	name       string
	introduced clarity.Version
	retired    clarity.Version
	minEpoch   clarity.Epoch
	keyword    bool
	minArgs    int
	maxArgs    int // -1 is unbounded
	args       map[int]argKind
	analyze    func(a *analyzer, e *ast.Expr, l *locals) error
	eval       evalFunc
	fn         nativeFunc // set for natives, which map, filter and fold can apply
	value      keywordFunc
}

var builtins = make(map[string]*builtin)

func register(b *builtin) *builtin {
	if b.introduced == 0 {
		b.introduced = clarity.Clarity1
	}
	builtins[b.name] = b
	return b
}

func native(name string, minArgs, maxArgs int, fn nativeFunc) *builtin {
	return register(&builtin{name: name, minArgs: minArgs, maxArgs: maxArgs, eval: eager(fn), fn: fn})
}

func special(name string, minArgs, maxArgs int, fn evalFunc) *builtin {
	return register(&builtin{name: name, minArgs: minArgs, maxArgs: maxArgs, eval: fn})
}

func keyword(name string, fn keywordFunc) *builtin {
	return register(&builtin{name: name, keyword: true, value: fn})
}

func (b *builtin) since(v clarity.Version) *builtin {
	b.introduced = v
	return b
}

func (b *builtin) until(v clarity.Version) *builtin {
	b.retired = v
	return b
}

func (b *builtin) with(kind argKind, positions ...int) *builtin {
	if b.args == nil {
		b.args = make(map[int]argKind)
	}
	for _, p := range positions {
		b.args[p] = kind
	}
	return b
}

func (b *builtin) withAnalysis(fn func(a *analyzer, e *ast.Expr, l *locals) error) *builtin {
	b.analyze = fn
	return b
}

func (b *builtin) argKind(i int) argKind {
	if b.args == nil {
		return exprArg
	}
	return b.args[i]
}

func (b *builtin) availableIn(v clarity.Version, epoch clarity.Epoch) bool {
	if v < b.introduced {
		return false
	}
	if b.retired != 0 && v >= b.retired {
		return false
	}
	return epoch >= b.minEpoch
}

func lookupBuiltin(name string, v clarity.Version, epoch clarity.Epoch) (*builtin, bool) {
	b, ok := builtins[name]
	if !ok || !b.availableIn(v, epoch) {
		return nil, false
	}
	return b, true
}

// Available reports whether name resolves as a builtin function or keyword in
// a contract of version v deployed in epoch.
func Available(name string, v clarity.Version, epoch clarity.Epoch) bool {
	_, ok := lookupBuiltin(name, v, epoch)
	return ok
}

// Builtins lists the names of every builtin and keyword, available or not.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isReserved(name string) bool {
	_, ok := builtins[name]
	return ok || name == "true" || name == "false" || name == "none"
}

func init() {
	// arithmetic and comparison
	native("+", 1, -1, nativeAdd)
	native("-", 1, -1, nativeSub)
	native("*", 1, -1, nativeMul)
	native("/", 1, -1, nativeDiv)
	native("mod", 2, 2, nativeMod)
	native("pow", 2, 2, nativePow)
	native("sqrti", 1, 1, nativeSqrti)
	native("log2", 1, 1, nativeLog2)
	native("<", 2, 2, comparison(func(c int) bool { return c < 0 }))
	native(">", 2, 2, comparison(func(c int) bool { return c > 0 }))
	native("<=", 2, 2, comparison(func(c int) bool { return c <= 0 }))
	native(">=", 2, 2, comparison(func(c int) bool { return c >= 0 }))
	native("xor", 2, 2, bitwise("xor"))
	native("bit-and", 1, -1, bitwise("and")).since(clarity.Clarity2)
	native("bit-or", 1, -1, bitwise("or")).since(clarity.Clarity2)
	native("bit-xor", 1, -1, bitwise("xor")).since(clarity.Clarity2)
	native("bit-not", 1, 1, nativeBitNot).since(clarity.Clarity2)
	native("bit-shift-left", 2, 2, shift(true)).since(clarity.Clarity2)
	native("bit-shift-right", 2, 2, shift(false)).since(clarity.Clarity2)

	// logic
	native("not", 1, 1, nativeNot)
	native("is-eq", 1, -1, nativeIsEq)
	special("and", 1, -1, specialAnd)
	special("or", 1, -1, specialOr)

	// control flow
	special("if", 3, 3, specialIf)
	special("let", 2, -1, specialLet).withAnalysis(analyzeLet)
	special("begin", 1, -1, specialBegin)
	special("match", 4, 5, specialMatch).withAnalysis(analyzeMatch)
	special("asserts!", 2, 2, specialAsserts)
	special("unwrap!", 2, 2, specialUnwrap)
	special("unwrap-err!", 2, 2, specialUnwrapErr)
	native("try!", 1, 1, nativeTry)
	native("unwrap-panic", 1, 1, nativeUnwrapPanic)
	native("unwrap-err-panic", 1, 1, nativeUnwrapErrPanic)
	native("default-to", 2, 2, nativeDefaultTo)

	// constructors and predicates
	native("some", 1, 1, nativeSome)
	native("ok", 1, 1, nativeOk)
	native("err", 1, 1, nativeErr)
	native("list", 0, -1, nativeList)
	special("tuple", 1, -1, specialTuple).withAnalysis(analyzeTuple)
	native("is-some", 1, 1, nativeIsSome)
	native("is-none", 1, 1, nativeIsNone)
	native("is-ok", 1, 1, nativeIsOk)
	native("is-err", 1, 1, nativeIsErr)
	special("get", 2, 2, specialGet).with(nameArg, 0)
	native("merge", 2, 2, nativeMerge)

	// sequences
	native("len", 1, 1, nativeLen)
	special("map", 2, -1, specialMap).with(funcArg, 0)
	special("filter", 2, 2, specialFilter).with(funcArg, 0)
	special("fold", 3, 3, specialFold).with(funcArg, 0)
	native("append", 2, 2, nativeAppend)
	native("concat", 2, 2, nativeConcat)
	native("as-max-len?", 2, 2, nativeAsMaxLen)
	native("element-at", 2, 2, nativeElementAt)
	native("element-at?", 2, 2, nativeElementAt).since(clarity.Clarity2)
	native("index-of", 2, 2, nativeIndexOf)
	native("index-of?", 2, 2, nativeIndexOf).since(clarity.Clarity2)
	native("slice?", 3, 3, nativeSlice).since(clarity.Clarity2)
	native("replace-at?", 3, 3, nativeReplaceAt).since(clarity.Clarity2)

	// conversions
	native("to-int", 1, 1, nativeToInt)
	native("to-uint", 1, 1, nativeToUInt)
	native("int-to-ascii", 1, 1, intToString(false)).since(clarity.Clarity2)
	native("int-to-utf8", 1, 1, intToString(true)).since(clarity.Clarity2)
	native("string-to-int?", 1, 1, stringToNumber(true)).since(clarity.Clarity2)
	native("string-to-uint?", 1, 1, stringToNumber(false)).since(clarity.Clarity2)
	native("buff-to-int-be", 1, 1, buffToNumber(true, true)).since(clarity.Clarity2)
	native("buff-to-int-le", 1, 1, buffToNumber(true, false)).since(clarity.Clarity2)
	native("buff-to-uint-be", 1, 1, buffToNumber(false, true)).since(clarity.Clarity2)
	native("buff-to-uint-le", 1, 1, buffToNumber(false, false)).since(clarity.Clarity2)
	native("to-consensus-buff?", 1, 1, nativeToConsensusBuff).since(clarity.Clarity2)
	special("from-consensus-buff?", 2, 2, specialFromConsensusBuff).since(clarity.Clarity2).with(typeArg, 0)
	native("to-ascii?", 1, 1, nativeToASCII).since(clarity.Clarity4)

	// hashing and signatures
	native("sha256", 1, 1, hashFunc(hashSHA256))
	native("sha512", 1, 1, hashFunc(hashSHA512))
	native("sha512/256", 1, 1, hashFunc(hashSHA512t256))
	native("keccak256", 1, 1, hashFunc(hashKeccak256))
	native("hash160", 1, 1, hashFunc(hashHash160))
	native("secp256k1-recover?", 2, 2, nativeSecp256k1Recover)
	native("secp256k1-verify", 3, 3, nativeSecp256k1Verify)

	// contract storage
	special("var-get", 1, 1, specialVarGet).with(nameArg, 0)
	special("var-set", 2, 2, specialVarSet).with(nameArg, 0)
	special("map-get?", 2, 2, specialMapGet).with(nameArg, 0)
	special("map-set", 3, 3, specialMapSet).with(nameArg, 0)
	special("map-insert", 3, 3, specialMapInsert).with(nameArg, 0)
	special("map-delete", 2, 2, specialMapDelete).with(nameArg, 0)

	// assets
	native("stx-get-balance", 1, 1, nativeSTXGetBalance)
	native("stx-account", 1, 1, nativeSTXAccount).since(clarity.Clarity2)
	native("stx-transfer?", 3, 3, nativeSTXTransfer)
	native("stx-transfer-memo?", 4, 4, nativeSTXTransfer).since(clarity.Clarity2)
	native("stx-burn?", 2, 2, nativeSTXBurn)
	special("ft-get-balance", 2, 2, specialFTGetBalance).with(nameArg, 0)
	special("ft-get-supply", 1, 1, specialFTGetSupply).with(nameArg, 0)
	special("ft-mint?", 3, 3, specialFTMint).with(nameArg, 0)
	special("ft-burn?", 3, 3, specialFTBurn).with(nameArg, 0)
	special("ft-transfer?", 4, 4, specialFTTransfer).with(nameArg, 0)
	special("nft-get-owner?", 2, 2, specialNFTGetOwner).with(nameArg, 0)
	special("nft-mint?", 3, 3, specialNFTMint).with(nameArg, 0)
	special("nft-burn?", 3, 3, specialNFTBurn).with(nameArg, 0)
	special("nft-transfer?", 4, 4, specialNFTTransfer).with(nameArg, 0)

	// chain state
	special("get-block-info?", 2, 2, specialGetBlockInfo).with(nameArg, 0).until(clarity.Clarity3)
	special("get-burn-block-info?", 2, 2, specialGetBurnBlockInfo).with(nameArg, 0).since(clarity.Clarity2)
	special("get-stacks-block-info?", 2, 2, specialGetStacksBlockInfo).with(nameArg, 0).since(clarity.Clarity3)
	special("get-tenure-info?", 2, 2, specialGetTenureInfo).with(nameArg, 0).since(clarity.Clarity3)
	special("at-block", 2, 2, specialAtBlock)

	// principals
	native("is-standard", 1, 1, nativeIsStandard).since(clarity.Clarity2)
	native("principal-construct?", 2, 3, nativePrincipalConstruct).since(clarity.Clarity2)
	native("principal-destruct?", 1, 1, nativePrincipalDestruct).since(clarity.Clarity2)
	native("principal-of?", 1, 1, nativePrincipalOf)
	native("contract-of", 1, 1, nativeContractOf)
	native("contract-hash?", 1, 1, nativeContractHash).since(clarity.Clarity4)

	// execution context
	special("as-contract", 1, 1, specialAsContract)
	special("contract-call?", 2, -1, specialContractCall).with(nameArg, 1).withAnalysis(analyzeContractCall)
	native("print", 1, 1, nativePrint)

	// keywords
	keyword("tx-sender", keywordTxSender)
	keyword("contract-caller", keywordContractCaller)
	keyword("tx-sponsor?", keywordTxSponsor).since(clarity.Clarity2)
	keyword("block-height", keywordBlockHeight).until(clarity.Clarity3)
	keyword("stacks-block-height", keywordStacksBlockHeight).since(clarity.Clarity3)
	keyword("tenure-height", keywordTenureHeight).since(clarity.Clarity3)
	keyword("burn-block-height", keywordBurnBlockHeight)
	keyword("stacks-block-time", keywordStacksBlockTime).since(clarity.Clarity4)
	keyword("chain-id", keywordChainID).since(clarity.Clarity2)
	keyword("is-in-mainnet", keywordIsInMainnet).since(clarity.Clarity2)
	keyword("is-in-regtest", keywordIsInRegtest)
}
