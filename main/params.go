// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey     = "version"
	httpHostKey    = "http-host"
	httpPortKey    = "http-port"
	logLevelKey    = "log-level"
	projectKey     = "project"
	epochKey       = "epoch"
	readTimeoutKey = "read-timeout"

	envPrefix = "SIMNET"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("simnet", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(httpHostKey, "127.0.0.1", "Address the JSON-RPC server listens on")
	fs.Uint(httpPortKey, 9650, "Port the JSON-RPC server listens on")
	fs.String(logLevelKey, "info", "Log level (debug, info, warn, error, crit)")
	fs.String(projectKey, "", "Clarinet project to open as a session at startup")
	fs.String(epochKey, "", "Epoch of the startup session")
	fs.Duration(readTimeoutKey, 30*time.Second, "Maximum duration for reading a request")

	return fs
}

// getViper returns the viper environment for the server binary. Every flag
// can also be set as SIMNET_<FLAG>.
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}
