// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/utils/hashing"
)

const (
	VersionMainnetSingleSig byte = 22
	VersionMainnetMultiSig  byte = 20
	VersionTestnetSingleSig byte = 26
	VersionTestnetMultiSig  byte = 21

	MaxContractNameLen = 40
)

// BootAddress is the testnet issuer of the boot contracts.
var BootAddress = Principal{Version: VersionTestnetSingleSig}

// Principal is a standard principal (Name empty) or a contract principal
// issued by the standard principal {Version, Hash}.
type Principal struct {
	Version byte
	Hash    [20]byte
	Name    string
}

// StandardPrincipal derives the principal for a public key.
func StandardPrincipal(version byte, pubKey []byte) Principal {
	p := Principal{Version: version}
	copy(p.Hash[:], hashing.ComputeHash160(hashing.ComputeHash256(pubKey)))
	return p
}

// ParsePrincipal accepts "SP...", "SP....name" with or without the leading
// quote.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimPrefix(s, "'")
	addr, name, hasName := strings.Cut(s, ".")
	version, hash, err := C32AddressDecode(addr)
	if err != nil {
		return Principal{}, err
	}
	p := Principal{Version: version, Hash: hash}
	if hasName {
		if err := ValidateContractName(name); err != nil {
			return Principal{}, err
		}
		p.Name = name
	}
	return p, nil
}

// MustPrincipal is ParsePrincipal for constants.
func MustPrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidateContractName checks the contract name grammar.
func ValidateContractName(name string) error {
	if len(name) == 0 || len(name) > MaxContractNameLen {
		return fmt.Errorf("%w: contract name %q has bad length", ErrInvalidPrincipal, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !letter {
			return fmt.Errorf("%w: contract name %q must start with a letter", ErrInvalidPrincipal, name)
		}
		if !letter && !(c >= '0' && c <= '9') && c != '-' && c != '_' {
			return fmt.Errorf("%w: contract name %q contains %q", ErrInvalidPrincipal, name, c)
		}
	}
	return nil
}

func (p Principal) IsContract() bool { return p.Name != "" }

// Standard returns the issuing standard principal.
func (p Principal) Standard() Principal {
	return Principal{Version: p.Version, Hash: p.Hash}
}

// Contract returns the contract principal called name issued by p.
func (p Principal) Contract(name string) Principal {
	return Principal{Version: p.Version, Hash: p.Hash, Name: name}
}

// Address is the c32 address of the issuing standard principal.
func (p Principal) Address() string {
	return C32Address(p.Version, p.Hash)
}

// ID renders the principal without the literal quote.
func (p Principal) ID() string {
	if p.Name == "" {
		return p.Address()
	}
	return p.Address() + "." + p.Name
}

func (p Principal) String() string { return "'" + p.ID() }

func (p Principal) Type() TypeSignature { return PrincipalType }

// IsTestnet reports whether the version byte belongs to testnet.
func (p Principal) IsTestnet() bool {
	return p.Version == VersionTestnetSingleSig || p.Version == VersionTestnetMultiSig
}

// IsMainnet reports whether the version byte belongs to mainnet.
func (p Principal) IsMainnet() bool {
	return p.Version == VersionMainnetSingleSig || p.Version == VersionMainnetMultiSig
}
