// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"

	"github.com/ava-labs/simnet/clarity"
)

const (
	varKind byte = 'v'
	mapKind byte = 'm'
)

func varKey(contract clarity.Principal, name string) []byte {
	k := append([]byte{varKind}, contract.ID()...)
	k = append(k, 0)
	return append(k, name...)
}

func mapKey(contract clarity.Principal, name string, key clarity.Value) ([]byte, error) {
	b, err := clarity.Serialize(key)
	if err != nil {
		return nil, err
	}
	k := append([]byte{mapKind}, contract.ID()...)
	k = append(k, 0)
	k = append(k, name...)
	k = append(k, 0)
	return append(k, b...), nil
}

// DataVar returns the value of a data-var. Remote contracts fall back to the
// remote source when the variable has not been written locally.
func (s *Store) DataVar(contract clarity.Principal, name string) (clarity.Value, error) {
	b, err := s.get(dataPrefix, varKey(contract, name))
	if err == nil {
		return clarity.Deserialize(b)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	remote, rerr := s.isRemote(contract)
	if rerr != nil {
		return nil, rerr
	}
	if !remote {
		return nil, err
	}
	return s.remote.FetchDataVar(s.ctx, contract, name, s.remoteHeight())
}

func (s *Store) SetDataVar(contract clarity.Principal, name string, v clarity.Value) error {
	b, err := clarity.Serialize(v)
	if err != nil {
		return err
	}
	return s.put(dataPrefix, varKey(contract, name), b)
}

// MapEntry returns the entry under key, or none when absent.
func (s *Store) MapEntry(contract clarity.Principal, name string, key clarity.Value) (clarity.Optional, error) {
	k, err := mapKey(contract, name, key)
	if err != nil {
		return clarity.None, err
	}
	b, err := s.get(dataPrefix, k)
	if err == nil {
		v, err := clarity.Deserialize(b)
		if err != nil {
			return clarity.None, err
		}
		return clarity.Some(v), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return clarity.None, err
	}
	remote, err := s.isRemote(contract)
	if err != nil || !remote {
		return clarity.None, err
	}
	return s.remote.FetchMapEntry(s.ctx, contract, name, key, s.remoteHeight())
}

// SetMapEntry stores or, when v is nil, deletes a map entry.
func (s *Store) SetMapEntry(contract clarity.Principal, name string, key, v clarity.Value) error {
	k, err := mapKey(contract, name, key)
	if err != nil {
		return err
	}
	if v == nil {
		return s.delete(dataPrefix, k)
	}
	b, err := clarity.Serialize(v)
	if err != nil {
		return err
	}
	return s.put(dataPrefix, k, b)
}

func (s *Store) isRemote(contract clarity.Principal) (bool, error) {
	if s.remote == nil {
		return false, nil
	}
	rec, err := s.Contract(contract)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Remote, nil
}
