// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remote

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

const (
	cacheFile = "remote-data.sqlite"
	lruSize   = 2048

	schema = `
CREATE TABLE IF NOT EXISTS remote_data (
	key      TEXT PRIMARY KEY,
	contract TEXT NOT NULL,
	kind     TEXT NOT NULL,
	value    BLOB NOT NULL
);`
)

// Kinds of cached entries.
const (
	kindContract = "contract"
	kindBlock    = "block"
	kindDataVar  = "data_var"
	kindMapEntry = "map_entry"
)

// Cache is a content-addressed store of fetched remote data. Entries never
// change once written, so concurrent writers of the same key are harmless.
type Cache struct {
	db  *sql.DB
	mem *lru.Cache[string, []byte]
}

// OpenCache opens (or creates) the cache database below dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}
	mem, err := lru.New[string, []byte](lruSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db, mem: mem}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key is the cache key of one query about contract.
func Key(contract, kind, query string) string {
	h := hashing.ComputeHash256Array([]byte(contract + "|" + kind + "|" + query))
	return ids.ID(h).String()
}

// Get returns the cached value of key.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	if v, ok := c.mem.Get(key); ok {
		return v, true, nil
	}
	var v []byte
	err := c.db.QueryRow("SELECT value FROM remote_data WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.mem.Add(key, v)
	return v, true, nil
}

// Put stores value under key. An existing entry is kept.
func (c *Cache) Put(key, contract, kind string, value []byte) error {
	res, err := c.db.Exec(
		"INSERT OR IGNORE INTO remote_data (key, contract, kind, value) VALUES (?, ?, ?, ?)",
		key, contract, kind, value,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		c.mem.Remove(key)
		return nil
	}
	c.mem.Add(key, value)
	return nil
}

// Len counts the persisted entries.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM remote_data").Scan(&n)
	return n, err
}
