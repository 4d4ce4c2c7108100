// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/cost"
	"github.com/ava-labs/simnet/coverage"
	"github.com/ava-labs/simnet/ledger"
)

var (
	alice = clarity.Principal{Version: clarity.VersionTestnetSingleSig, Hash: [20]byte{1}}
	bob   = clarity.Principal{Version: clarity.VersionTestnetSingleSig, Hash: [20]byte{2}}
)

type testChain struct {
	epoch                clarity.Epoch
	stacks, burn, tenure uint32
	time                 uint64
}

func (c *testChain) Epoch() clarity.Epoch      { return c.epoch }
func (c *testChain) StacksBlockHeight() uint32 { return c.stacks }
func (c *testChain) BurnBlockHeight() uint32   { return c.burn }
func (c *testChain) TenureHeight() uint32      { return c.tenure }
func (c *testChain) BlockTime() uint64         { return c.time }

func newTestVM(t *testing.T, epoch clarity.Epoch) (*VM, *testChain) {
	chain := &testChain{epoch: epoch, stacks: 3, burn: 2, tenure: 2, time: 1700000000}
	vm := New(ledger.NewStore(nil), chain, Config{
		Report:   cost.NewReport(true),
		Coverage: coverage.NewTracker(true),
	})
	return vm, chain
}

func deploy(t *testing.T, vm *VM, sender clarity.Principal, name, src string, version clarity.Version) *Contract {
	_, c, err := vm.Deploy(sender, name, src, DeployOptions{Version: version})
	require.NoError(t, err)
	return c
}

const counterSource = `
(define-constant ERR_TOO_LOW (err u100))
(define-data-var count uint u0)

(define-read-only (get-count)
  (var-get count))

(define-public (increment)
  (begin
    (var-set count (+ (var-get count) u1))
    (print { event: "incremented", count: (var-get count) })
    (ok (var-get count))))

(define-public (decrement)
  (begin
    (asserts! (> (var-get count) u0) ERR_TOO_LOW)
    (var-set count (- (var-get count) u1))
    (ok (var-get count))))

(define-public (bump-then-fail)
  (begin
    (var-set count u99)
    (err u1)))
`

func TestDeployAndCall(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	c := deploy(t, vm, alice, "counter", counterSource, clarity.Clarity2)
	id := alice.Contract("counter")

	v, ok := c.ConstantValue("ERR_TOO_LOW")
	require.True(ok)
	require.Equal("(err u100)", v.String())

	res, err := vm.CallPublic(bob, id, "increment", nil, nil)
	require.NoError(err)
	require.Equal("(ok u1)", res.Value.String())
	require.Len(res.Events, 2)
	require.Equal("data_var_set_event", res.Events[0].Name())
	require.Equal("print_event", res.Events[1].Name())
	require.NotZero(res.Cost.Runtime)
	require.Contains(res.Lines[id.ID()], uint32(11))
	require.Contains(res.Lines[id.ID()], uint32(12))
	require.NotContains(res.Lines[id.ID()], uint32(17))

	res, err = vm.CallReadOnly(bob, id, "get-count", nil)
	require.NoError(err)
	require.Equal("u1", res.Value.String())

	iface := c.Interface()
	require.Len(iface.Functions, 4)
	require.Equal("read_only", iface.Functions[0].Access)
	require.Equal(clarity.UIntKind, iface.Functions[0].Outputs.Type.Kind)
	require.Len(iface.Variables, 2)

	require.Len(vm.Report().Entries(), 2)
	require.Equal(uint64(1), vm.Coverage().FunctionHits(id.ID(), "increment"))
}

func TestErrResponseDiscardsWrites(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	deploy(t, vm, alice, "counter", counterSource, clarity.Clarity2)
	id := alice.Contract("counter")

	res, err := vm.CallPublic(bob, id, "bump-then-fail", nil, nil)
	require.NoError(err)
	require.Equal("(err u1)", res.Value.String())
	require.Empty(res.Events)

	res, err = vm.CallPublic(bob, id, "decrement", nil, nil)
	require.NoError(err)
	require.Equal("(err u100)", res.Value.String())

	res, err = vm.CallReadOnly(bob, id, "get-count", nil)
	require.NoError(err)
	require.Equal("u0", res.Value.String())
}

func TestVisibility(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	deploy(t, vm, alice, "vis", `
(define-private (double (n uint)) (* n u2))
(define-read-only (peek) (double u2))
(define-public (poke) (ok (double u3)))
`, clarity.Clarity2)
	id := alice.Contract("vis")

	_, err := vm.CallPublic(bob, id, "peek", nil, nil)
	require.ErrorIs(err, ErrNotPublic)
	_, err = vm.CallReadOnly(bob, id, "poke", nil)
	require.ErrorIs(err, ErrNotReadOnly)
	_, err = vm.CallReadOnly(bob, id, "missing", nil)
	require.ErrorIs(err, ErrUnknownFunction)

	res, err := vm.CallPrivate(bob, id, "double", []clarity.Value{clarity.NewUInt(21)})
	require.NoError(err)
	require.Equal("u42", res.Value.String())

	_, err = vm.CallPrivate(bob, id, "double", []clarity.Value{clarity.NewInt(21)})
	require.ErrorIs(err, ErrBadArgument)
}

func TestReadOnlyCannotWrite(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	deploy(t, vm, alice, "sneaky", `
(define-data-var x int 0)
(define-read-only (sneak) (var-set x 1))
`, clarity.Clarity2)

	_, err := vm.CallReadOnly(bob, alice.Contract("sneaky"), "sneak", nil)
	require.ErrorIs(err, ErrWriteInReadOnly)
}

func TestBlockHeightGating(t *testing.T) {
	require := require.New(t)
	vm, chain := newTestVM(t, clarity.Epoch30)
	chain.stacks, chain.tenure = 10, 4

	deploy(t, vm, alice, "legacy", `(define-read-only (h) block-height)`, clarity.Clarity2)
	res, err := vm.CallReadOnly(bob, alice.Contract("legacy"), "h", nil)
	require.NoError(err)
	require.Equal("u4", res.Value.String())

	_, _, err = vm.Deploy(alice, "modern", `(define-read-only (h) block-height)`, DeployOptions{Version: clarity.Clarity3})
	var aerr *AnalysisError
	require.ErrorAs(err, &aerr)
	require.Contains(aerr.Message, "use of unresolved variable 'block-height'")

	deploy(t, vm, alice, "modern", `(define-read-only (h) (list stacks-block-height tenure-height))`, clarity.Clarity3)
	res, err = vm.CallReadOnly(bob, alice.Contract("modern"), "h", nil)
	require.NoError(err)
	require.Equal("(list u10 u4)", res.Value.String())

	_, _, err = vm.Deploy(alice, "early", `(define-read-only (h) tenure-height)`, DeployOptions{Version: clarity.Clarity2})
	require.ErrorAs(err, &aerr)

	_, _, err = vm.Deploy(alice, "future", `(define-read-only (h) u1)`, DeployOptions{Version: clarity.Clarity4 + 1})
	require.ErrorIs(err, ErrVersionUnsupported)
}

func TestAnalysisErrors(t *testing.T) {
	vm, _ := newTestVM(t, clarity.Epoch25)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unresolved function", `(define-public (f) (ok (foo u1)))`, "use of unresolved function 'foo'"},
		{"redefinition", "(define-constant a u1)\n(define-constant a u2)", "'a' is already defined"},
		{"reserved", `(define-constant map u1)`, "name 'map' is reserved"},
		{"public output", `(define-public (f) u1)`, "public functions must return an expression of type 'response'"},
		{"arity", "(define-private (g (a uint)) a)\n(define-public (f) (ok (g)))", "expects 1 arguments"},
		{"unknown var", `(define-public (f) (ok (var-get nope)))`, "use of unresolved persisted variable 'nope'"},
		{"nested define", `(define-public (f) (begin (define-constant x u1) (ok x)))`, "only allowed at the top level"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := vm.Deploy(alice, "c"+string(rune('a'+i)), tt.src, DeployOptions{})
			var aerr *AnalysisError
			require.ErrorAs(t, err, &aerr)
			require.Contains(t, aerr.Message, tt.want)
		})
	}
}

func TestEarlyReturns(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	deploy(t, vm, alice, "flow", `
(define-private (check (n uint))
  (begin
    (asserts! (< n u10) (err u1))
    (ok n)))

(define-read-only (chained (n uint))
  (let ((checked (try! (check n))))
    (ok (+ checked u1))))

(define-read-only (first-or (xs (list 5 uint)) (fallback uint))
  (ok (unwrap! (element-at? xs u0) (err fallback))))

(define-read-only (classify (r (response uint uint)))
  (match r
    value (+ value u1)
    code (* code u10)))
`, clarity.Clarity2)
	id := alice.Contract("flow")

	call := func(name string, args ...clarity.Value) string {
		res, err := vm.CallReadOnly(bob, id, name, args)
		require.NoError(err)
		return res.Value.String()
	}
	require.Equal("(ok u4)", call("chained", clarity.NewUInt(3)))
	require.Equal("(err u1)", call("chained", clarity.NewUInt(30)))

	empty, err := clarity.NewList(nil)
	require.NoError(err)
	require.Equal("(err u7)", call("first-or", empty, clarity.NewUInt(7)))
	one, err := clarity.NewList([]clarity.Value{clarity.NewUInt(5)})
	require.NoError(err)
	require.Equal("(ok u5)", call("first-or", one, clarity.NewUInt(7)))

	require.Equal("u3", call("classify", clarity.Ok(clarity.NewUInt(2))))
	require.Equal("u20", call("classify", clarity.Err(clarity.NewUInt(2))))
}

func TestSequences(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)

	tests := map[string]string{
		"(map + (list 1 2 3) (list 10 20))":                                "(list 11 22)",
		"(fold + (list u1 u2 u3) u10)":                                     "u16",
		"(concat \"ab\" \"cd\")":                                           `"abcd"`,
		"(len 0x010203)":                                                   "u3",
		"(slice? (list 1 2 3 4) u1 u3)":                                    "(some (list 2 3))",
		"(replace-at? \"abc\" u1 \"x\")":                                   `(some "axc")`,
		"(index-of? (list u5 u6) u6)":                                      "(some u1)",
		"(as-max-len? (list u1 u2 u3) u2)":                                 "none",
		"(buff-to-uint-be 0x0100)":                                         "u256",
		"(int-to-ascii -12)":                                               `"-12"`,
		"(string-to-uint? \"42\")":                                         "(some u42)",
		"(get a (merge { a: 1, b: 2 } { a: 3 }))":                          "3",
		"(from-consensus-buff? int (unwrap-panic (to-consensus-buff? 7)))": "(some 7)",
	}
	for src, want := range tests {
		res, err := vm.ExecuteSnippet(alice, src)
		require.NoError(err, src)
		require.Equal(want, res.Value.String(), src)
	}
}

func TestHashes(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)

	res, err := vm.ExecuteSnippet(alice, "(sha256 0x00)")
	require.NoError(err)
	require.Equal("0x6e340b9cffb37a989ca544e6bb780a2c78901d3fb33738768511a30617afa01d", res.Value.String())

	res, err = vm.ExecuteSnippet(alice, "(keccak256 0x00)")
	require.NoError(err)
	require.Equal("0xbc36789e7a1e281436464229828f817d6612f7b477d66591ff96a9e064bcc98a", res.Value.String())

	res, err = vm.ExecuteSnippet(alice, "(len (sha512 u1))")
	require.NoError(err)
	require.Equal("u64", res.Value.String())
}

func TestAssets(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	_, err := vm.MintSTX(alice, clarity.NewUInt(1000))
	require.NoError(err)

	deploy(t, vm, alice, "token", `
(define-fungible-token gold u100)
(define-non-fungible-token badge uint)

(define-public (mint (amount uint) (to principal))
  (ft-mint? gold amount to))

(define-public (send (amount uint) (to principal))
  (ft-transfer? gold amount tx-sender to))

(define-public (award (id uint) (to principal))
  (nft-mint? badge id to))

(define-public (pay (amount uint) (to principal))
  (stx-transfer? amount tx-sender to))

(define-read-only (balance (who principal))
  (ft-get-balance gold who))
`, clarity.Clarity2)
	id := alice.Contract("token")
	call := func(sender clarity.Principal, name string, args ...clarity.Value) *Result {
		res, err := vm.CallPublic(sender, id, name, args, nil)
		require.NoError(err)
		return res
	}

	res := call(alice, "mint", clarity.NewUInt(60), alice)
	require.Equal("(ok true)", res.Value.String())
	require.Equal("ft_mint_event", res.Events[0].Name())

	_, err = vm.CallPublic(alice, id, "mint", []clarity.Value{clarity.NewUInt(50), alice}, nil)
	require.ErrorIs(err, ErrSupplyExceeded)

	require.Equal("(ok true)", call(alice, "send", clarity.NewUInt(10), bob).Value.String())
	require.Equal("(err u1)", call(bob, "send", clarity.NewUInt(11), alice).Value.String())
	require.Equal("(err u2)", call(alice, "send", clarity.NewUInt(1), alice).Value.String())
	require.Equal("(err u3)", call(alice, "send", clarity.NewUInt(0), bob).Value.String())

	require.Equal("(ok true)", call(alice, "award", clarity.NewUInt(1), bob).Value.String())
	require.Equal("(err u1)", call(alice, "award", clarity.NewUInt(1), bob).Value.String())

	res = call(alice, "pay", clarity.NewUInt(400), bob)
	require.Equal("(ok true)", res.Value.String())
	require.Equal("stx_transfer_event", res.Events[0].Name())
	require.Equal("(err u1)", call(bob, "pay", clarity.NewUInt(401), alice).Value.String())

	bal, err := vm.CallReadOnly(bob, id, "balance", []clarity.Value{bob})
	require.NoError(err)
	require.Equal("u10", bal.Value.String())
}

func TestContractCallRollsBackCallee(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	deploy(t, vm, alice, "callee", `
(define-data-var x uint u0)
(define-public (set-and-fail (v uint))
  (begin (var-set x v) (err u9)))
(define-public (set-ok (v uint))
  (begin (var-set x v) (ok contract-caller)))
(define-read-only (get-x) (var-get x))
`, clarity.Clarity2)
	callee := alice.Contract("callee")
	deploy(t, vm, bob, "caller2", `
(define-public (go)
  (contract-call? '`+callee.ID()+` set-ok u7))
(define-public (go-fail)
  (match (contract-call? '`+callee.ID()+` set-and-fail u5)
    ok-value (ok u0)
    err-value (ok err-value)))
`, clarity.Clarity2)
	caller := bob.Contract("caller2")

	res, err := vm.CallPublic(alice, caller, "go-fail", nil, nil)
	require.NoError(err)
	require.Equal("(ok u9)", res.Value.String())
	got, err := vm.CallReadOnly(alice, callee, "get-x", nil)
	require.NoError(err)
	require.Equal("u0", got.Value.String())

	res, err = vm.CallPublic(alice, caller, "go", nil, nil)
	require.NoError(err)
	require.Equal("(ok '"+caller.ID()+")", res.Value.String())
	require.Equal("contract_call_event", res.Events[0].Name())
	got, err = vm.CallReadOnly(alice, callee, "get-x", nil)
	require.NoError(err)
	require.Equal("u7", got.Value.String())
}

func TestTraits(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)
	deploy(t, vm, alice, "traits", `
(define-trait greeter
  ((greet (uint) (response uint uint))))
`, clarity.Clarity2)
	deploy(t, vm, alice, "impl", `
(impl-trait .traits.greeter)
(define-public (greet (n uint)) (ok (+ n u1)))
`, clarity.Clarity2)
	_, _, err := vm.Deploy(alice, "bad-impl", `
(impl-trait .traits.greeter)
(define-public (wave (n uint)) (ok n))
`, DeployOptions{Version: clarity.Clarity2})
	var aerr *AnalysisError
	require.ErrorAs(err, &aerr)
	require.Contains(aerr.Message, "missing function 'greet'")

	deploy(t, vm, alice, "user", `
(use-trait greeter-trait .traits.greeter)
(define-public (call-greet (g <greeter-trait>) (n uint))
  (contract-call? g greet n))
(define-read-only (which (g <greeter-trait>))
  (contract-of g))
`, clarity.Clarity2)

	impl := alice.Contract("impl")
	res, err := vm.CallPublic(bob, alice.Contract("user"), "call-greet", []clarity.Value{impl, clarity.NewUInt(1)}, nil)
	require.NoError(err)
	require.Equal("(ok u2)", res.Value.String())

	res, err = vm.CallReadOnly(bob, alice.Contract("user"), "which", []clarity.Value{impl})
	require.NoError(err)
	require.Equal(impl.String(), res.Value.String())

	_, err = vm.CallPublic(bob, alice.Contract("user"), "call-greet", []clarity.Value{alice.Contract("traits"), clarity.NewUInt(1)}, nil)
	require.Error(err)
}

func TestSnippets(t *testing.T) {
	require := require.New(t)
	vm, _ := newTestVM(t, clarity.Epoch25)

	res, err := vm.ExecuteSnippet(alice, "(+ 1 2)")
	require.NoError(err)
	require.Equal("3", res.Value.String())

	res, err = vm.ExecuteSnippet(alice, "tx-sender")
	require.NoError(err)
	require.Equal(alice.String(), res.Value.String())

	_, err = vm.ExecuteSnippet(alice, "(define-constant x u1)")
	var aerr *AnalysisError
	require.ErrorAs(err, &aerr)

	_, err = vm.ExecuteSnippet(alice, "(unwrap-panic none)")
	require.ErrorIs(err, ErrUnwrapFailed)

	_, err = vm.ExecuteSnippet(alice, "(+ u1 1)")
	require.Error(err)
}

func TestCostLimit(t *testing.T) {
	require := require.New(t)
	limits := cost.DefaultLimits
	limits.Runtime = 1000
	vm := New(ledger.NewStore(nil), &testChain{epoch: clarity.Epoch25, stacks: 1}, Config{Costs: cost.NewTracker(limits)})

	_, err := vm.ExecuteSnippet(alice, "(fold + (list u1 u2 u3 u4 u5 u6 u7 u8) u0)")
	var lerr *cost.LimitError
	require.ErrorAs(err, &lerr)
	require.Equal("runtime", lerr.Dimension)
}

func TestStackingLocksSTX(t *testing.T) {
	require := require.New(t)
	vm, chain := newTestVM(t, clarity.Epoch25)
	_, err := vm.MintSTX(alice, clarity.NewUInt(1000))
	require.NoError(err)

	deploy(t, vm, vm.BootAddress(), PoxContract, `
(define-public (stack-stx (amount uint) (lock-period uint))
  (ok { stacker: tx-sender, lock-amount: amount, unlock-burn-height: (+ burn-block-height (* lock-period u10)) }))
`, clarity.Clarity2)

	res, err := vm.CallPublic(alice, vm.BootAddress().Contract(PoxContract), "stack-stx",
		[]clarity.Value{clarity.NewUInt(600), clarity.NewUInt(1)}, nil)
	require.NoError(err)
	require.True(res.Value.(clarity.Response).Ok)
	require.Equal("stx_lock_event", res.Events[len(res.Events)-1].Name())

	res, err = vm.ExecuteSnippet(alice, "(stx-account tx-sender)")
	require.NoError(err)
	require.Equal("{ locked: u600, unlock-height: u12, unlocked: u400 }", res.Value.String())

	res, err = vm.ExecuteSnippet(alice, "(stx-transfer? u500 tx-sender '"+bob.ID()+")")
	require.NoError(err)
	require.Equal("(err u1)", res.Value.String())

	chain.burn = 12
	res, err = vm.ExecuteSnippet(alice, "(stx-get-balance tx-sender)")
	require.NoError(err)
	require.Equal("u1000", res.Value.String())
}
