// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	blockCacheSize = 8192

	heightKeyPrefix byte = 'h'
	idKeyPrefix     byte = 'i'
	burnKeyPrefix   byte = 'u'
)

var errBlockWrongVersion = errors.New("wrong version")

// BlockInfo is the metadata of one closed block. ID is the index block hash
// (id-header-hash); HeaderHash is the stacks header hash.
type BlockInfo struct {
	Height       uint32 `serialize:"true" json:"height"`
	BurnHeight   uint32 `serialize:"true" json:"burnHeight"`
	TenureHeight uint32 `serialize:"true" json:"tenureHeight"`
	Timestamp    uint64 `serialize:"true" json:"timestamp"`
	BurnTime     uint64 `serialize:"true" json:"burnTimestamp"`
	ID           ids.ID `serialize:"true" json:"id"`
	HeaderHash   ids.ID `serialize:"true" json:"headerHash"`
	BurnHash     ids.ID `serialize:"true" json:"burnHeaderHash"`
	ParentID     ids.ID `serialize:"true" json:"parentID"`
	VRFSeed      ids.ID `serialize:"true" json:"vrfSeed"`
	Miner        string `serialize:"true" json:"miner"`
	Epoch        uint8  `serialize:"true" json:"epoch"`
	TxCount      uint32 `serialize:"true" json:"txCount"`
}

// ComputeHashes derives the block hashes from its content.
func (b *BlockInfo) ComputeHashes() {
	p := newPacker(128)
	p.PackFixedBytes(b.ParentID[:])
	p.PackInt(b.Height)
	p.PackInt(b.BurnHeight)
	p.PackLong(b.Timestamp)
	p.PackInt(b.TxCount)
	b.HeaderHash = hashing.ComputeHash256Array(p.Bytes)

	p.PackFixedBytes(b.HeaderHash[:])
	b.ID = hashing.ComputeHash256Array(p.Bytes)

	burn := newPacker(16)
	burn.PackStr("burn")
	burn.PackInt(b.BurnHeight)
	b.BurnHash = hashing.ComputeHash256Array(burn.Bytes)
	b.VRFSeed = hashing.ComputeHash256Array(append(b.BurnHash[:], b.ID[:]...))
}

type blockState struct {
	blkCache *lru.Cache[uint32, *BlockInfo]
	blockDB  database.Database
}

func newBlockState(db database.Database) *blockState {
	cache, err := lru.New[uint32, *BlockInfo](blockCacheSize)
	if err != nil {
		panic(err)
	}
	return &blockState{
		blkCache: cache,
		blockDB:  db,
	}
}

func heightKey(h uint32) []byte {
	p := newPacker(1 + wrappers.IntLen)
	p.PackByte(heightKeyPrefix)
	p.PackInt(h)
	return p.Bytes
}

func idKey(id ids.ID) []byte {
	return append([]byte{idKeyPrefix}, id[:]...)
}

func burnKey(h uint32) []byte {
	p := newPacker(1 + wrappers.IntLen)
	p.PackByte(burnKeyPrefix)
	p.PackInt(h)
	return p.Bytes
}

func (s *blockState) GetBlock(h uint32) (*BlockInfo, error) {
	if blk, ok := s.blkCache.Get(h); ok {
		return blk, nil
	}
	blkBytes, err := s.blockDB.Get(heightKey(h))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	blk := &BlockInfo{}
	parsedVersion, err := Codec.Unmarshal(blkBytes, blk)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errBlockWrongVersion
	}

	s.blkCache.Add(h, blk)
	return blk, nil
}

func (s *blockState) GetBlockByID(id ids.ID) (*BlockInfo, error) {
	return s.getIndexed(idKey(id))
}

// GetBlockByBurnHeight returns the first block anchored to burn height h.
func (s *blockState) GetBlockByBurnHeight(h uint32) (*BlockInfo, error) {
	return s.getIndexed(burnKey(h))
}

func (s *blockState) getIndexed(key []byte) (*BlockInfo, error) {
	b, err := s.blockDB.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := wrappers.Packer{Bytes: b}
	h := p.UnpackInt()
	if p.Errored() {
		return nil, p.Err
	}
	return s.GetBlock(h)
}

func (s *blockState) PutBlock(blk *BlockInfo) error {
	bytes, err := Codec.Marshal(CodecVersion, blk)
	if err != nil {
		return err
	}
	s.blkCache.Add(blk.Height, blk)

	p := newPacker(wrappers.IntLen)
	p.PackInt(blk.Height)
	if p.Errored() {
		return p.Err
	}
	if err := s.blockDB.Put(idKey(blk.ID), p.Bytes); err != nil {
		return err
	}
	hasBurn, err := s.blockDB.Has(burnKey(blk.BurnHeight))
	if err != nil {
		return err
	}
	if !hasBurn {
		if err := s.blockDB.Put(burnKey(blk.BurnHeight), p.Bytes); err != nil {
			return err
		}
	}
	return s.blockDB.Put(heightKey(blk.Height), bytes)
}

func (s *blockState) ClearCache() {
	s.blkCache.Purge()
}

// PutBlock records a closed block.
func (s *Store) PutBlock(blk *BlockInfo) error {
	if err := s.blocks.PutBlock(blk); err != nil {
		return fmt.Errorf("failed to store block %d: %w", blk.Height, err)
	}
	return s.meta.SetLastHeight(blk.Height)
}

// Block returns the closed block at height h.
func (s *Store) Block(h uint32) (*BlockInfo, error) {
	return s.blocks.GetBlock(h)
}

// BlockByID returns the closed block with index hash id.
func (s *Store) BlockByID(id ids.ID) (*BlockInfo, error) {
	return s.blocks.GetBlockByID(id)
}

// BlockByBurnHeight returns the first closed block of burn height h.
func (s *Store) BlockByBurnHeight(h uint32) (*BlockInfo, error) {
	return s.blocks.GetBlockByBurnHeight(h)
}
