// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"errors"
	"fmt"
)

var (
	errEmptyMempool = errors.New("empty mempool")
	mempoolSize     = 4096
)

// mempool holds the transactions of the block being assembled, in the order
// they were submitted.
type mempool struct {
	txs []*Tx
}

func newMempool() *mempool {
	return &mempool{}
}

func (m *mempool) Add(tx *Tx) error {
	if len(m.txs) >= mempoolSize {
		return fmt.Errorf("failed to add %s transaction to mempool due to full at size (%d)", tx.Kind, mempoolSize)
	}
	m.txs = append(m.txs, tx)
	return nil
}

func (m *mempool) Next() (*Tx, error) {
	if len(m.txs) == 0 {
		return nil, errEmptyMempool
	}
	tx := m.txs[0]
	m.txs[0] = nil
	m.txs = m.txs[1:]
	return tx, nil
}

func (m *mempool) Len() int {
	return len(m.txs)
}

func (m *mempool) Clear() {
	m.txs = nil
}
