// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/simnet/clarity"
)

const testManifest = `
[project]
name = "counter-project"
requirements = [{ contract_id = "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.nft-trait" }]

[repl]
epoch = "2.4"
costs = false

[contracts.counter]
path = "contracts/counter.clar"
clarity_version = 2
epoch = 2.4

[contracts.alpha]
path = "contracts/alpha.clar"
clarity_version = 1
`

const testDevnet = `
[accounts.deployer]
stx_address = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
balance = 1000

[accounts.wallet_1]
stx_address = "ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5"
`

func writeProject(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	require := require.New(t)
	dir := writeProject(t, map[string]string{
		manifestFile: testManifest,
		devnetFile:   testDevnet,
	})

	cfg, err := LoadConfig(dir)
	require.NoError(err)
	require.Equal("counter-project", cfg.Name)
	require.Equal("2.4", cfg.Epoch)
	require.False(cfg.Costs)
	require.True(cfg.Coverage)
	require.Equal([]string{"SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.nft-trait"}, cfg.Requirements)

	require.Len(cfg.Contracts, 2)
	require.Equal("alpha", cfg.Contracts[0].Name)
	require.Equal(clarity.Clarity2, cfg.Contracts[1].ClarityVersion)
	require.Equal("contracts/counter.clar", cfg.Contracts[1].Path)

	require.Len(cfg.Accounts, 2)
	deployer, ok := cfg.Account(DeployerName)
	require.True(ok)
	require.Equal(uint64(1000), deployer.Balance)
	w1, ok := cfg.Account("wallet_1")
	require.True(ok)
	require.Equal(DefaultBalance, w1.Balance)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	require := require.New(t)
	dir := writeProject(t, map[string]string{
		manifestFile: testManifest,
		".env":       "SIMNET_EPOCH=3.0\n",
	})
	t.Cleanup(func() { os.Unsetenv("SIMNET_EPOCH") })

	cfg, err := LoadConfig(dir)
	require.NoError(err)
	require.Equal("3.0", cfg.Epoch)
	require.Len(cfg.Accounts, len(defaultAccounts))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)

	dir := writeProject(t, map[string]string{
		manifestFile: "[contracts.broken]\nclarity_version = 2\n",
	})
	_, err = LoadConfig(dir)
	require.ErrorIs(t, err, errNoContractPath)

	cfg := DefaultConfig()
	cfg.Accounts = cfg.Accounts[1:]
	require.ErrorIs(t, cfg.Validate(), errNoDeployer)
}
