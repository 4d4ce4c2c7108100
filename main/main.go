// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/simnet/service"
	"github.com/ava-labs/simnet/session"
)

// Version of the simnet server.
const Version = "v0.1.0"

// Endpoints the JSON-RPC handlers are mounted on.
const (
	Endpoint       = "/ext/simnet"
	StaticEndpoint = "/ext/simnet/static"
)

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", service.Name, Version)
		os.Exit(0)
	}

	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		fmt.Printf("invalid log level: %s\n", err)
		os.Exit(1)
	}
	logger := log.New("module", "simnet")
	logger.SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	mgr := service.NewManager(logger)
	defer mgr.Shutdown()

	if dir := v.GetString(projectKey); dir != "" {
		cfg, err := session.LoadConfig(dir)
		if err != nil {
			logger.Crit("couldn't load project", "dir", dir, "error", err)
			os.Exit(1)
		}
		if epoch := v.GetString(epochKey); epoch != "" {
			cfg.Epoch = epoch
		}
		s, _, err := mgr.Create(context.Background(), cfg)
		if err != nil {
			logger.Crit("couldn't open project", "dir", dir, "error", err)
			os.Exit(1)
		}
		logger.Info("project session ready", "session", s.ID(), "dir", dir)
	}

	handler, err := service.NewHandler(service.New(mgr))
	if err != nil {
		logger.Crit("couldn't create handler", "error", err)
		os.Exit(1)
	}
	static, err := service.NewStaticHandler()
	if err != nil {
		logger.Crit("couldn't create static handler", "error", err)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle(Endpoint, handler)
	mux.Handle(StaticEndpoint, static)

	addr := net.JoinHostPort(v.GetString(httpHostKey), strconv.FormatUint(uint64(v.GetUint(httpPortKey)), 10))
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: v.GetDuration(readTimeoutKey),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	}()

	logger.Info("serving", "addr", addr, "endpoint", Endpoint, "version", Version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve returned an error", "error", err)
	}
}
