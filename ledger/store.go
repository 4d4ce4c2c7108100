// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger is the versioned chain state of a simnet session.
//
// Every key is stored once per block height that wrote it, so a read at height
// h finds the newest write at or below h. Uncommitted writes live in a stack of
// versiondb layers: one per block, one per transaction and one per nested
// contract call.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"math"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/simnet/clarity"
)

// Latest reads the newest version of a key.
const Latest = math.MaxUint32

const (
	tombstone byte = 0
	present   byte = 1

	// maxPackSize bounds every key and record the ledger packs. Map keys are
	// serialized values, so it must admit the largest value.
	maxPackSize = 2 * clarity.MaxValueSize
)

var (
	// These are prefixes for db keys.
	contractsPrefix = []byte("contracts")
	dataPrefix      = []byte("data")
	stxPrefix       = []byte("stx")
	ftPrefix        = []byte("ft")
	nftPrefix       = []byte("nft")
	blocksPrefix    = []byte("blocks")
	metaPrefix      = []byte("meta")

	ErrNotFound    = errors.New("not found")
	ErrNoOpenLayer = errors.New("no open layer")
)

// Meter observes every read and write with its length in bytes. Returning an
// error aborts the access.
type Meter interface {
	OnRead(length int) error
	OnWrite(length int) error
}

// Store is the chain state of one session. It is not safe for concurrent use.
type Store struct {
	base   database.Database
	layers []*versiondb.Database

	writeHeight uint32
	readHeight  uint32

	blocks *blockState
	meta   *Meta
	meter  Meter
	remote RemoteSource
	// remoteBase is the local height the remote was installed at.
	remoteBase uint32
	ctx        context.Context

	log log.Logger
}

// NewStore returns an empty in-memory store.
func NewStore(logger log.Logger) *Store {
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}
	base := memdb.New()
	s := &Store{
		base:       base,
		readHeight: Latest,
		ctx:        context.Background(),
		log:        logger,
	}
	s.blocks = newBlockState(prefixdb.New(blocksPrefix, base))
	s.meta = newMeta(prefixdb.New(metaPrefix, base))
	return s
}

// SetMeter installs the cost observer; nil disables metering.
func (s *Store) SetMeter(m Meter) { s.meter = m }

// SetRemote installs the fallback consulted on contract misses. The current
// write height becomes the local fork block.
func (s *Store) SetRemote(r RemoteSource) {
	s.remote = r
	s.remoteBase = s.writeHeight
}

// SetContext sets the context passed to remote fetches.
func (s *Store) SetContext(ctx context.Context) { s.ctx = ctx }

// Meta returns the singleton state.
func (s *Store) Meta() *Meta { return s.meta }

// top is the database writes currently go to.
func (s *Store) top() database.Database {
	if len(s.layers) == 0 {
		return s.base
	}
	return s.layers[len(s.layers)-1]
}

// Begin opens a nested layer.
func (s *Store) Begin() {
	s.layers = append(s.layers, versiondb.New(s.top()))
}

// Commit merges the innermost layer into its parent.
func (s *Store) Commit() error {
	if len(s.layers) == 0 {
		return ErrNoOpenLayer
	}
	top := s.layers[len(s.layers)-1]
	s.layers = s.layers[:len(s.layers)-1]
	return top.Commit()
}

// Abort discards the innermost layer.
func (s *Store) Abort() {
	if len(s.layers) == 0 {
		return
	}
	top := s.layers[len(s.layers)-1]
	s.layers = s.layers[:len(s.layers)-1]
	top.Abort()
}

// Depth is the number of open layers.
func (s *Store) Depth() int { return len(s.layers) }

// WriteHeight is the height new writes are recorded at.
func (s *Store) WriteHeight() uint32 { return s.writeHeight }

// SetWriteHeight moves the height new writes are recorded at.
func (s *Store) SetWriteHeight(h uint32) { s.writeHeight = h }

// ReadHeight is the height reads observe; Latest unless inside at-block.
func (s *Store) ReadHeight() uint32 { return s.readHeight }

// AtHeight makes reads observe state as of the end of block h until the
// returned function is called.
func (s *Store) AtHeight(h uint32) (restore func()) {
	prev := s.readHeight
	s.readHeight = h
	return func() { s.readHeight = prev }
}

func newPacker(size int) *wrappers.Packer {
	return &wrappers.Packer{MaxSize: maxPackSize, Bytes: make([]byte, 0, size)}
}

// keyPrefix and versionedKey panic on keys over maxPackSize; callers only
// pass names and serialized values, which are bounded well below it.
func keyPrefix(key []byte) []byte {
	p := newPacker(wrappers.IntLen + len(key))
	p.PackInt(uint32(len(key)))
	p.PackFixedBytes(key)
	if p.Errored() {
		panic(p.Err)
	}
	return p.Bytes
}

func versionedKey(key []byte, height uint32) []byte {
	p := newPacker(2*wrappers.IntLen + len(key))
	p.PackInt(uint32(len(key)))
	p.PackFixedBytes(key)
	p.PackInt(^height)
	if p.Errored() {
		panic(p.Err)
	}
	return p.Bytes
}

// splitVersionedKey recovers the user key and height.
func splitVersionedKey(vk []byte) ([]byte, uint32, bool) {
	p := wrappers.Packer{Bytes: vk}
	n := p.UnpackInt()
	key := p.UnpackFixedBytes(int(n))
	h := p.UnpackInt()
	if p.Errored() {
		return nil, 0, false
	}
	return key, ^h, true
}

func (s *Store) space(prefix []byte) database.Database {
	return prefixdb.New(prefix, s.top())
}

func (s *Store) get(prefix, key []byte) ([]byte, error) {
	db := s.space(prefix)
	it := db.NewIteratorWithStartAndPrefix(versionedKey(key, s.readHeight), keyPrefix(key))
	defer it.Release()

	if !it.Next() {
		if err := it.Error(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	val := it.Value()
	if s.meter != nil {
		if err := s.meter.OnRead(len(key) + len(val)); err != nil {
			return nil, err
		}
	}
	if len(val) == 0 || val[0] == tombstone {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val)-1)
	copy(out, val[1:])
	return out, nil
}

func (s *Store) has(prefix, key []byte) (bool, error) {
	_, err := s.get(prefix, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

func (s *Store) put(prefix, key, val []byte) error {
	if s.meter != nil {
		if err := s.meter.OnWrite(len(key) + len(val)); err != nil {
			return err
		}
	}
	stored := make([]byte, 1+len(val))
	stored[0] = present
	copy(stored[1:], val)
	return s.space(prefix).Put(versionedKey(key, s.writeHeight), stored)
}

func (s *Store) delete(prefix, key []byte) error {
	if s.meter != nil {
		if err := s.meter.OnWrite(len(key)); err != nil {
			return err
		}
	}
	return s.space(prefix).Put(versionedKey(key, s.writeHeight), []byte{tombstone})
}

// scan calls fn with the newest live version at the read height of every key
// starting with match.
func (s *Store) scan(prefix, match []byte, fn func(key, val []byte) error) error {
	db := s.space(prefix)
	it := db.NewIterator()
	defer it.Release()

	var last []byte
	seen := false
	for it.Next() {
		key, h, ok := splitVersionedKey(it.Key())
		if !ok || h > s.readHeight {
			continue
		}
		if seen && bytes.Equal(key, last) {
			continue
		}
		last = append(last[:0], key...)
		seen = true
		if !bytes.HasPrefix(key, match) {
			continue
		}
		val := it.Value()
		if len(val) == 0 || val[0] == tombstone {
			continue
		}
		if err := fn(key, val[1:]); err != nil {
			return err
		}
	}
	return it.Error()
}
