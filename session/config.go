// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ava-labs/simnet/clarity"
)

const (
	manifestFile = "Clarinet.toml"
	devnetFile   = "settings/Devnet.toml"

	// DefaultBalance is the STX each default account starts with.
	DefaultBalance uint64 = 100_000_000_000_000

	DeployerName = "deployer"
)

var (
	errNoDeployer     = errors.New("no deployer account configured")
	errBadAccount     = errors.New("invalid account")
	errNoContractPath = errors.New("contract has no path")
)

// Config describes one simulated chain: its accounts, contracts and toggles.
type Config struct {
	Name string
	Dir  string

	// Epoch is the starting epoch name; empty selects the latest epoch.
	Epoch   string
	Mainnet bool

	Accounts     []AccountConfig
	Contracts    []ContractConfig
	Requirements []string

	Coverage bool
	Costs    bool

	CacheDir       string
	DeploymentPlan string

	Remote RemoteConfig
}

type AccountConfig struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Balance uint64 `json:"balance" yaml:"balance"`
}

type ContractConfig struct {
	Name           string          `json:"name"`
	Path           string          `json:"path"`
	ClarityVersion clarity.Version `json:"clarity_version"`
	Epoch          string          `json:"epoch"`
	Deployer       string          `json:"deployer"`
}

// RemoteConfig enables fetching missing contracts from a live network.
type RemoteConfig struct {
	Enabled       bool   `json:"enabled"`
	APIURL        string `json:"api_url"`
	InitialHeight uint32 `json:"initial_height"`
}

var defaultAccounts = []AccountConfig{
	{Name: "deployer", Address: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"},
	{Name: "wallet_1", Address: "ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5"},
	{Name: "wallet_2", Address: "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"},
	{Name: "wallet_3", Address: "ST2JHG361ZXG51QTKY2NQCVBPPRRE2KZB1HR05NNC"},
	{Name: "wallet_4", Address: "ST2NEB84ASENDXKYGJPQW86YXQCEFEX2ZQPG87ND"},
	{Name: "wallet_5", Address: "ST2REHHS5J3CERCRBEPMGH7921Q6PYKAADT7JP2VB"},
	{Name: "wallet_6", Address: "ST3AM1A56AK2C1XAFJ4115ZSV26EB49BVQ10MGCS0"},
	{Name: "wallet_7", Address: "ST3PF13W7Z0RRM42A8VZRVFQ75SV1K26RXEP8YGKJ"},
	{Name: "wallet_8", Address: "ST3NBRSFKX28FQ2ZJ1MAKX58HKHSDGNV5N7R21XCP"},
	{Name: "faucet", Address: "STNHKEPYEPJ8ET55ZZ0M5A34J0R3N5FM2CMMMAZ6"},
}

// DefaultConfig is a project without contracts, funded with the standard
// devnet wallets.
func DefaultConfig() *Config {
	cfg := &Config{Name: "simnet", Coverage: true, Costs: true}
	for _, a := range defaultAccounts {
		a.Balance = DefaultBalance
		cfg.Accounts = append(cfg.Accounts, a)
	}
	return cfg
}

// LoadConfig reads the Clarinet.toml manifest of the project in dir and the
// accounts of settings/Devnet.toml. A .env file in dir is loaded first, and
// SIMNET_* variables override the manifest.
func LoadConfig(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, manifestFile))
	v.SetConfigType("toml")
	for key, env := range map[string]string{
		"repl.epoch":                      "SIMNET_EPOCH",
		"repl.costs":                      "SIMNET_COSTS",
		"repl.coverage":                   "SIMNET_COVERAGE",
		"repl.remote_data.enabled":        "SIMNET_REMOTE_DATA",
		"repl.remote_data.api_url":        "SIMNET_API_URL",
		"repl.remote_data.initial_height": "SIMNET_INITIAL_HEIGHT",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	v.SetDefault("repl.costs", true)
	v.SetDefault("repl.coverage", true)
	v.SetDefault("project.cache_dir", ".cache")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", manifestFile, err)
	}

	cfg := &Config{
		Name:           v.GetString("project.name"),
		Dir:            dir,
		Epoch:          v.GetString("repl.epoch"),
		Coverage:       v.GetBool("repl.coverage"),
		Costs:          v.GetBool("repl.costs"),
		CacheDir:       resolve(dir, v.GetString("project.cache_dir")),
		DeploymentPlan: filepath.Join(dir, "deployments", "default.simnet-plan.yaml"),
		Remote: RemoteConfig{
			Enabled:       v.GetBool("repl.remote_data.enabled"),
			APIURL:        v.GetString("repl.remote_data.api_url"),
			InitialHeight: v.GetUint32("repl.remote_data.initial_height"),
		},
	}

	var reqs []struct {
		ContractID string `mapstructure:"contract_id"`
	}
	if err := v.UnmarshalKey("project.requirements", &reqs); err != nil {
		return nil, fmt.Errorf("invalid project.requirements: %w", err)
	}
	for _, r := range reqs {
		cfg.Requirements = append(cfg.Requirements, r.ContractID)
	}

	for name := range v.GetStringMap("contracts") {
		sub := v.Sub("contracts." + name)
		if sub == nil || sub.GetString("path") == "" {
			return nil, fmt.Errorf("%w: %s", errNoContractPath, name)
		}
		c := ContractConfig{
			Name:           name,
			Path:           sub.GetString("path"),
			ClarityVersion: clarity.Version(sub.GetInt("clarity_version")),
			Epoch:          sub.GetString("epoch"),
			Deployer:       sub.GetString("deployer"),
		}
		cfg.Contracts = append(cfg.Contracts, c)
	}
	sort.Slice(cfg.Contracts, func(i, j int) bool { return cfg.Contracts[i].Name < cfg.Contracts[j].Name })

	accounts, err := loadAccounts(filepath.Join(dir, devnetFile))
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts
	return cfg, cfg.Validate()
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// loadAccounts reads [accounts.*] from a devnet settings file. Projects
// without one get the default wallets.
func loadAccounts(path string) ([]AccountConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig().Accounts, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", devnetFile, err)
	}

	var accounts []AccountConfig
	for name := range v.GetStringMap("accounts") {
		sub := v.Sub("accounts." + name)
		if sub == nil {
			continue
		}
		sub.SetDefault("balance", DefaultBalance)
		accounts = append(accounts, AccountConfig{
			Name:    name,
			Address: sub.GetString("stx_address"),
			Balance: sub.GetUint64("balance"),
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Validate checks that every account parses and a deployer exists.
func (c *Config) Validate() error {
	hasDeployer := false
	for _, a := range c.Accounts {
		p, err := clarity.ParsePrincipal(a.Address)
		if err != nil {
			return fmt.Errorf("%w %s: %v", errBadAccount, a.Name, err)
		}
		if p.IsContract() {
			return fmt.Errorf("%w %s: %s is a contract", errBadAccount, a.Name, a.Address)
		}
		if a.Name == DeployerName {
			hasDeployer = true
		}
	}
	if !hasDeployer {
		return errNoDeployer
	}
	return nil
}

// Account returns the configured account called name.
func (c *Config) Account(name string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return AccountConfig{}, false
}
