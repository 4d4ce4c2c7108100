// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/simnet/deployment"
	"github.com/ava-labs/simnet/remote"
	"github.com/ava-labs/simnet/session"
)

// DefaultAPIURL is queried for requirements when remote data is disabled.
const DefaultAPIURL = "https://api.hiro.so"

var ErrUnknownSession = errors.New("unknown session")

// managed is a session and the resources that die with it. Its mutex
// serializes every call on the session.
type managed struct {
	mu      sync.Mutex
	s       *session.Session
	closers []io.Closer
}

// Manager owns the live sessions of a server.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managed
	log      log.Logger
}

func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}
	return &Manager{sessions: make(map[string]*managed), log: logger}
}

// Create starts a session for cfg. Projects with contracts or requirements
// get their deployment plan synced to disk and replayed; a session whose
// plan fails is discarded.
func (m *Manager) Create(ctx context.Context, cfg *session.Config) (*session.Session, []deployment.BatchResult, error) {
	entry := &managed{}
	opts := []session.Option{session.WithLogger(m.log)}

	var fetcher deployment.Fetcher
	if cfg.Remote.Enabled || len(cfg.Requirements) > 0 {
		apiURL := cfg.Remote.APIURL
		if apiURL == "" {
			apiURL = DefaultAPIURL
		}
		src, err := remote.NewSource(remote.Config{
			APIURL:        apiURL,
			InitialHeight: cfg.Remote.InitialHeight,
			CacheDir:      filepath.Join(cacheDir(cfg), "remote"),
		}, m.log)
		if err != nil {
			return nil, nil, err
		}
		entry.closers = append(entry.closers, src)
		fetcher = src
		if cfg.Remote.Enabled {
			opts = append(opts, session.WithRemote(src))
		}
	}

	var (
		s       *session.Session
		results []deployment.BatchResult
		err     error
	)
	if len(cfg.Contracts) == 0 && len(cfg.Requirements) == 0 {
		s, err = session.New(cfg, opts...)
	} else {
		var plan *deployment.Plan
		plan, err = deployment.Generate(ctx, cfg, fetcher)
		if err == nil && cfg.DeploymentPlan != "" {
			plan, err = deployment.Sync(cfg.DeploymentPlan, plan)
		}
		if err == nil {
			s, results, err = deployment.NewSession(cfg, plan, opts...)
		}
	}
	if err != nil {
		entry.close()
		return nil, nil, err
	}
	entry.s = s

	m.mu.Lock()
	m.sessions[s.ID()] = entry
	m.mu.Unlock()
	m.log.Info("session created", "session", s.ID(), "contracts", len(cfg.Contracts))
	return s, results, nil
}

func cacheDir(cfg *session.Config) string {
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return filepath.Join(cfg.Dir, ".cache")
}

// With runs fn on the session id, excluding every other call on it.
func (m *Manager) With(id string, fn func(*session.Session) error) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.s)
}

// Terminate ends the session id and releases its resources.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.s.Terminate()
	entry.close()
	return nil
}

// Shutdown terminates every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Terminate(id)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (e *managed) close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
}
