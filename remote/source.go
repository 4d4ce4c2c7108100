// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/ledger"
)

// APIKeyEnv names the variable holding the API key sent with every request.
const APIKeyEnv = "HIRO_API_KEY"

var (
	_ ledger.RemoteSource = (*Source)(nil)

	// ErrNotFound is returned for contracts and blocks the network does not
	// know. It matches ledger.ErrNotFound.
	ErrNotFound = ledger.ErrNotFound

	ErrFetch               = errors.New("remote fetch failed")
	ErrUnavailableAtHeight = errors.New("metadata not available at this height")
	errNoAPIURL            = errors.New("remote data requires an api url")
)

// Config selects the network and fork point of a Source.
type Config struct {
	APIURL string
	// InitialHeight is the network height the simnet forks from. Zero follows
	// the network tip.
	InitialHeight uint32
	APIKey        string
	CacheDir      string
	Timeout       time.Duration
}

// Source serves contracts and their storage from a live network, as of
// the configured fork height. Every answer is cached on disk.
type Source struct {
	cfg    Config
	client *Client
	cache  *Cache
	log    log.Logger
}

// NewSource opens the cache in cfg.CacheDir. Without an explicit key, the
// API key is read from the environment or a .env file.
func NewSource(cfg Config, logger log.Logger) (*Source, error) {
	if cfg.APIURL == "" {
		return nil, errNoAPIURL
	}
	if cfg.APIKey == "" {
		_ = godotenv.Load()
		cfg.APIKey = os.Getenv(APIKeyEnv)
	}
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}
	cache, err := OpenCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	return &Source{
		cfg:    cfg,
		client: NewClient(cfg.APIURL, cfg.APIKey, cfg.Timeout),
		cache:  cache,
		log:    logger.New("module", "remote", "api", cfg.APIURL),
	}, nil
}

func (s *Source) Close() error { return s.cache.Close() }

func (s *Source) ForkHeight() uint32 { return s.cfg.InitialHeight }

// height maps a requested height to the network height that is queried.
// Nothing past the fork point exists remotely.
func (s *Source) height(h uint32) uint32 {
	if h == 0 || (s.cfg.InitialHeight != 0 && h > s.cfg.InitialHeight) {
		return s.cfg.InitialHeight
	}
	return h
}

// cached returns the value stored under (contract, kind, query), calling
// fetch and storing its result on a miss.
func (s *Source) cached(contract, kind, query string, fetch func() ([]byte, error)) ([]byte, error) {
	key := Key(contract, kind, query)
	b, ok, err := s.cache.Get(key)
	if err != nil {
		return nil, err
	}
	if ok {
		return b, nil
	}
	s.log.Debug("fetching", "contract", contract, "kind", kind, "query", query)
	b, err = fetch()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(key, contract, kind, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Source) info(ctx context.Context, id clarity.Principal) (*ContractInfo, error) {
	b, err := s.cached(id.ID(), kindContract, "", func() ([]byte, error) {
		info, err := s.client.Contract(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(info)
	})
	if err != nil {
		return nil, err
	}
	info := &ContractInfo{}
	if err := json.Unmarshal(b, info); err != nil {
		return nil, err
	}
	return info, nil
}

// tip resolves the block the state of id is read at, rejecting heights
// before the contract existed.
func (s *Source) tip(ctx context.Context, id clarity.Principal, requested uint32) (string, error) {
	info, err := s.info(ctx, id)
	if err != nil {
		return "", err
	}
	h := s.height(requested)
	if h == 0 {
		return "", nil
	}
	if h < info.Height {
		return "", fmt.Errorf("%w: %s deployed at %d, requested %d", ErrUnavailableAtHeight, id.ID(), info.Height, h)
	}
	b, err := s.cached("", kindBlock, strconv.FormatUint(uint64(h), 10), func() ([]byte, error) {
		hash, err := s.client.IndexBlockHash(ctx, h)
		return []byte(hash), err
	})
	return string(b), err
}

// FetchContract returns the source of id as deployed on the network.
func (s *Source) FetchContract(ctx context.Context, id clarity.Principal) (*ledger.ContractRecord, error) {
	info, err := s.info(ctx, id)
	if err != nil {
		return nil, err
	}
	if h := s.height(0); h != 0 && h < info.Height {
		return nil, fmt.Errorf("%w: %s deployed at %d, forked at %d", ErrUnavailableAtHeight, id.ID(), info.Height, h)
	}
	version := info.ClarityVersion
	if version < clarity.Clarity1 || version > clarity.LatestVersion {
		version = clarity.Clarity1
	}
	return &ledger.ContractRecord{
		ID:      id.ID(),
		Source:  []byte(info.Source),
		Epoch:   epochOf(version),
		Version: version,
		Height:  info.Height,
		Remote:  true,
	}, nil
}

// FetchDataVar reads a data-var at height.
func (s *Source) FetchDataVar(ctx context.Context, id clarity.Principal, name string, height uint32) (clarity.Value, error) {
	tip, err := s.tip(ctx, id, height)
	if err != nil {
		return nil, err
	}
	b, err := s.cached(id.ID(), kindDataVar, name+"@"+tip, func() ([]byte, error) {
		data, err := s.client.DataVar(ctx, id, name, tip)
		if err != nil {
			return nil, err
		}
		return []byte(data), nil
	})
	if err != nil {
		return nil, err
	}
	return clarity.DeserializeHex(string(b))
}

// FetchMapEntry reads a map entry at height.
func (s *Source) FetchMapEntry(ctx context.Context, id clarity.Principal, name string, key clarity.Value, height uint32) (clarity.Optional, error) {
	tip, err := s.tip(ctx, id, height)
	if err != nil {
		return clarity.None, err
	}
	keyHex, err := clarity.SerializeHex(key)
	if err != nil {
		return clarity.None, err
	}
	b, err := s.cached(id.ID(), kindMapEntry, name+"|"+keyHex+"@"+tip, func() ([]byte, error) {
		data, err := s.client.MapEntry(ctx, id, name, keyHex, tip)
		if err != nil {
			return nil, err
		}
		return []byte(data), nil
	})
	if err != nil {
		return clarity.None, err
	}
	v, err := clarity.DeserializeHex(string(b))
	if err != nil {
		return clarity.None, err
	}
	opt, ok := v.(clarity.Optional)
	if !ok {
		return clarity.None, fmt.Errorf("%w: map entry is %s, not an optional", ErrFetch, clarity.KindName(v))
	}
	return opt, nil
}

// epochOf is the first epoch a contract of version v can be deployed in.
func epochOf(v clarity.Version) clarity.Epoch {
	for _, e := range clarity.Epochs() {
		if e.SupportsVersion(v) {
			return e
		}
	}
	return clarity.LatestEpoch
}
