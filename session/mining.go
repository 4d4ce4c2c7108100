// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"fmt"

	"github.com/ava-labs/simnet/ledger"
)

// openBlock starts collecting writes for the block at the current height.
func (s *Session) openBlock() {
	s.store.SetWriteHeight(s.stacks)
	s.store.Begin()
}

// closeBlock commits the open block, records its metadata and moves to the
// next stacks block.
func (s *Session) closeBlock(txCount int) error {
	if err := s.store.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", s.stacks, err)
	}
	blk := &ledger.BlockInfo{
		Height:       s.stacks,
		BurnHeight:   s.burn,
		TenureHeight: s.tenure,
		Timestamp:    uint64(s.clock.Unix()),
		BurnTime:     uint64(s.burnTime.Unix()),
		ParentID:     s.parent,
		Miner:        s.deployer.ID(),
		Epoch:        uint8(s.epoch),
		TxCount:      uint32(txCount),
	}
	blk.ComputeHashes()
	if err := s.store.PutBlock(blk); err != nil {
		return err
	}
	s.parent = blk.ID

	s.stacks++
	s.store.SetWriteHeight(s.stacks)
	if s.epoch.DecoupledBlocks() {
		s.clock.Set(s.clock.Time().Add(stacksBlockInterval))
		return nil
	}
	return s.newTenure()
}

// newTenure anchors the open block to the next burn block and releases the
// stacking locks that expire there.
func (s *Session) newTenure() error {
	s.burn++
	s.tenure++
	next := s.burnTime.Add(burnBlockInterval)
	if !next.After(s.clock.Time()) {
		next = s.clock.Time().Add(stacksBlockInterval)
	}
	s.clock.Set(next)
	s.burnTime = next
	released, err := s.vm.ReleaseLocks()
	if err != nil {
		return fmt.Errorf("failed to release locks at burn height %d: %w", s.burn, err)
	}
	if released > 0 {
		s.log.Debug("stx unlocked", "count", released, "burnHeight", s.burn)
	}
	return nil
}

// MineBlock applies txs in order as one new block and returns one receipt per
// transaction. Failed transactions still land in the block.
func (s *Session) MineBlock(txs ...*Tx) ([]*Receipt, error) {
	if err := s.use(); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := s.mempool.Add(tx); err != nil {
			s.mempool.Clear()
			return nil, err
		}
	}

	s.openBlock()
	receipts := make([]*Receipt, 0, s.mempool.Len())
	for s.mempool.Len() > 0 {
		tx, err := s.mempool.Next()
		if err != nil {
			s.store.Abort()
			return nil, err
		}
		receipts = append(receipts, s.execute(tx))
	}
	height := s.stacks
	if err := s.closeBlock(len(receipts)); err != nil {
		return nil, err
	}
	s.log.Debug("block mined", "height", height, "txs", len(receipts))
	return receipts, nil
}

func (s *Session) mineEmpty(n int, burn bool) (uint32, error) {
	if err := s.use(); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", errInvalidBlockNumber, n)
	}
	for i := 0; i < n; i++ {
		if burn && s.epoch.DecoupledBlocks() {
			if err := s.newTenure(); err != nil {
				return 0, err
			}
		}
		s.openBlock()
		if err := s.closeBlock(0); err != nil {
			return 0, err
		}
	}
	return s.stacks, nil
}

// MineEmptyBlocks advances the chain by n blocks without transactions. From
// epoch 3.0 these are stacks blocks of the current tenure.
func (s *Session) MineEmptyBlocks(n int) (uint32, error) {
	return s.mineEmpty(n, false)
}

// MineEmptyBurnBlocks advances the burn chain by n blocks. From epoch 3.0
// each burn block starts a tenure and mines its tenure-change stacks block.
func (s *Session) MineEmptyBurnBlocks(n int) (uint32, error) {
	return s.mineEmpty(n, true)
}

// MineEmptyStacksBlocks advances the stacks chain by n blocks within the
// current tenure. It requires decoupled blocks.
func (s *Session) MineEmptyStacksBlocks(n int) (uint32, error) {
	if !s.epoch.DecoupledBlocks() {
		return 0, ErrStacksBlockPre30
	}
	return s.mineEmpty(n, false)
}
