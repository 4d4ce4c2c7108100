// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/database/prefixdb"

	"github.com/ava-labs/simnet/clarity"
)

// ContractRecord is what the ledger keeps for a deployed contract.
type ContractRecord struct {
	ID      string          `serialize:"true" json:"contract_id"`
	Source  []byte          `serialize:"true" json:"source"`
	Epoch   clarity.Epoch   `serialize:"true" json:"epoch"`
	Version clarity.Version `serialize:"true" json:"clarity_version"`
	Height  uint32          `serialize:"true" json:"block_height"`
	Remote  bool            `serialize:"true" json:"remote"`

	// Constants holds the consensus encoding of every define-constant value,
	// evaluated once at deployment.
	Constants []ConstantValue `serialize:"true" json:"constants,omitempty"`
}

type ConstantValue struct {
	Name  string `serialize:"true" json:"name"`
	Value []byte `serialize:"true" json:"value"`
}

// Principal parses the record identifier.
func (c *ContractRecord) Principal() (clarity.Principal, error) {
	return clarity.ParsePrincipal(c.ID)
}

func contractKey(id clarity.Principal) []byte {
	return []byte(id.ID())
}

// PutContract registers a contract at the current write height.
func (s *Store) PutContract(rec *ContractRecord) error {
	b, err := Codec.Marshal(CodecVersion, rec)
	if err != nil {
		return err
	}
	id, err := rec.Principal()
	if err != nil {
		return err
	}
	return s.put(contractsPrefix, contractKey(id), b)
}

func decodeContract(b []byte) (*ContractRecord, error) {
	rec := &ContractRecord{}
	if _, err := Codec.Unmarshal(b, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Contract returns the record of id, consulting the remote source on a local
// miss. Unknown contracts yield ErrNotFound.
func (s *Store) Contract(id clarity.Principal) (*ContractRecord, error) {
	b, err := s.get(contractsPrefix, contractKey(id))
	if err == nil {
		return decodeContract(b)
	}
	if !errors.Is(err, ErrNotFound) || s.remote == nil {
		return nil, err
	}

	rec, err := s.remote.FetchContract(s.ctx, id)
	if err != nil {
		s.log.Debug("remote contract lookup failed", "contract", id.ID(), "err", err)
		return nil, err
	}
	rec.Remote = true
	if err := s.cacheRemoteContract(id, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// cacheRemoteContract writes a fetched contract below every open layer so it
// survives aborted transactions.
func (s *Store) cacheRemoteContract(id clarity.Principal, rec *ContractRecord) error {
	b, err := Codec.Marshal(CodecVersion, rec)
	if err != nil {
		return err
	}
	stored := append([]byte{present}, b...)
	return prefixdb.New(contractsPrefix, s.base).Put(versionedKey(contractKey(id), 0), stored)
}

// HasContract reports whether id is deployed locally.
func (s *Store) HasContract(id clarity.Principal) (bool, error) {
	return s.has(contractsPrefix, contractKey(id))
}

// Contracts lists every contract visible at the read height, ordered by
// deployment height then identifier.
func (s *Store) Contracts() ([]*ContractRecord, error) {
	var recs []*ContractRecord
	err := s.scan(contractsPrefix, nil, func(_, val []byte) error {
		rec, err := decodeContract(val)
		if err != nil {
			return fmt.Errorf("corrupt contract record: %w", err)
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Height != recs[j].Height {
			return recs[i].Height < recs[j].Height
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}
