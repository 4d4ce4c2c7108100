// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	isInitializedKey byte = iota
	lastHeightKey
)

// Meta holds the unversioned singletons of a store.
type Meta struct {
	singletonDB database.Database
}

func newMeta(db database.Database) *Meta {
	return &Meta{singletonDB: db}
}

func (m *Meta) IsInitialized() (bool, error) {
	return m.singletonDB.Has([]byte{isInitializedKey})
}

func (m *Meta) SetInitialized() error {
	return m.singletonDB.Put([]byte{isInitializedKey}, nil)
}

// LastHeight is the height of the newest closed block.
func (m *Meta) LastHeight() (uint32, bool, error) {
	b, err := m.singletonDB.Get([]byte{lastHeightKey})
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	p := wrappers.Packer{Bytes: b}
	h := p.UnpackInt()
	return h, true, p.Err
}

func (m *Meta) SetLastHeight(h uint32) error {
	p := newPacker(wrappers.IntLen)
	p.PackInt(h)
	if p.Errored() {
		return p.Err
	}
	return m.singletonDB.Put([]byte{lastHeightKey}, p.Bytes)
}
