// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ava-labs/simnet/clarity"
)

const (
	ftBalanceKind byte = 'b'
	ftSupplyKind  byte = 's'
	nftOwnerKind  byte = 'o'

	// STXAsset is the asset key of STX in an AssetsMap.
	STXAsset = "STX"
)

// AssetsMap maps an asset identifier (STX or "contract-id::token") to the
// balance of every holder. NFT balances count owned tokens.
type AssetsMap map[string]map[string]*uint256.Int

// AssetID is the identifier used for a contract-defined asset.
func AssetID(contract clarity.Principal, token string) string {
	return contract.ID() + "::" + token
}

func assetKey(kind byte, contract clarity.Principal, token string) []byte {
	k := append([]byte{kind}, contract.ID()...)
	k = append(k, 0)
	k = append(k, token...)
	return append(k, 0)
}

// FTBalance returns the balance of owner in a fungible token.
func (s *Store) FTBalance(contract clarity.Principal, token string, owner clarity.Principal) (clarity.UInt, error) {
	key := append(assetKey(ftBalanceKind, contract, token), owner.ID()...)
	b, err := s.get(ftPrefix, key)
	if errors.Is(err, ErrNotFound) {
		return clarity.NewUInt(0), nil
	}
	if err != nil {
		return clarity.UInt{}, err
	}
	return clarity.UIntFromBytes(b), nil
}

func (s *Store) SetFTBalance(contract clarity.Principal, token string, owner clarity.Principal, amount clarity.UInt) error {
	key := append(assetKey(ftBalanceKind, contract, token), owner.ID()...)
	b := amount.Bytes16()
	return s.put(ftPrefix, key, b[:])
}

// FTSupply returns the minted supply of a fungible token.
func (s *Store) FTSupply(contract clarity.Principal, token string) (clarity.UInt, error) {
	b, err := s.get(ftPrefix, assetKey(ftSupplyKind, contract, token))
	if errors.Is(err, ErrNotFound) {
		return clarity.NewUInt(0), nil
	}
	if err != nil {
		return clarity.UInt{}, err
	}
	return clarity.UIntFromBytes(b), nil
}

func (s *Store) SetFTSupply(contract clarity.Principal, token string, amount clarity.UInt) error {
	b := amount.Bytes16()
	return s.put(ftPrefix, assetKey(ftSupplyKind, contract, token), b[:])
}

func nftKey(contract clarity.Principal, token string, id clarity.Value) ([]byte, error) {
	b, err := clarity.Serialize(id)
	if err != nil {
		return nil, err
	}
	return append(assetKey(nftOwnerKind, contract, token), b...), nil
}

// NFTOwner returns the owner of an NFT, or ErrNotFound.
func (s *Store) NFTOwner(contract clarity.Principal, token string, id clarity.Value) (clarity.Principal, error) {
	key, err := nftKey(contract, token, id)
	if err != nil {
		return clarity.Principal{}, err
	}
	b, err := s.get(nftPrefix, key)
	if err != nil {
		return clarity.Principal{}, err
	}
	return decodePrincipal(b)
}

// SetNFTOwner assigns an NFT; a nil owner burns it.
func (s *Store) SetNFTOwner(contract clarity.Principal, token string, id clarity.Value, owner *clarity.Principal) error {
	key, err := nftKey(contract, token, id)
	if err != nil {
		return err
	}
	if owner == nil {
		return s.delete(nftPrefix, key)
	}
	b, err := clarity.Serialize(*owner)
	if err != nil {
		return err
	}
	return s.put(nftPrefix, key, b)
}

func decodePrincipal(b []byte) (clarity.Principal, error) {
	v, err := clarity.Deserialize(b)
	if err != nil {
		return clarity.Principal{}, err
	}
	p, ok := v.(clarity.Principal)
	if !ok {
		return clarity.Principal{}, fmt.Errorf("%w: stored owner is %s", clarity.ErrDeserialization, clarity.KindName(v))
	}
	return p, nil
}

// AssetsMap enumerates the STX, fungible and non-fungible holdings of every
// principal at the read height.
func (s *Store) AssetsMap() (AssetsMap, error) {
	assets := make(AssetsMap)
	add := func(asset, holder string, amount *uint256.Int) {
		holders, ok := assets[asset]
		if !ok {
			holders = make(map[string]*uint256.Int)
			assets[asset] = holders
		}
		if prev, ok := holders[holder]; ok {
			amount = new(uint256.Int).Add(prev, amount)
		}
		holders[holder] = amount
	}

	err := s.scan(stxPrefix, []byte{balanceKind}, func(key, val []byte) error {
		add(STXAsset, string(key[1:]), clarity.UIntFromBytes(val).Big())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.scan(ftPrefix, []byte{ftBalanceKind}, func(key, val []byte) error {
		parts := bytes.SplitN(key[1:], []byte{0}, 3)
		if len(parts) != 3 {
			return fmt.Errorf("corrupt fungible token key %x", key)
		}
		add(string(parts[0])+"::"+string(parts[1]), string(parts[2]), clarity.UIntFromBytes(val).Big())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.scan(nftPrefix, []byte{nftOwnerKind}, func(key, val []byte) error {
		parts := bytes.SplitN(key[1:], []byte{0}, 3)
		if len(parts) != 3 {
			return fmt.Errorf("corrupt non-fungible token key %x", key)
		}
		owner, err := decodePrincipal(val)
		if err != nil {
			return err
		}
		add(string(parts[0])+"::"+string(parts[1]), owner.ID(), uint256.NewInt(1))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}
