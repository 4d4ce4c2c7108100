// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/holiman/uint256"
)

const (
	c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

	checksumLen = 4
	// hash160 plus checksum
	addressPayloadLen = 24
	maxC32Chars       = 40
)

// c32Encode renders data as a big-endian base-32 number, with one '0' per
// leading zero byte.
func c32Encode(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	n := new(uint256.Int).SetBytes(data)
	var digits []byte
	for !n.IsZero() {
		digits = append(digits, c32Alphabet[n.Uint64()&31])
		n.Rsh(n, 5)
	}

	var b strings.Builder
	b.Grow(zeros + len(digits))
	for i := 0; i < zeros; i++ {
		b.WriteByte('0')
	}
	for i := len(digits) - 1; i >= 0; i-- {
		b.WriteByte(digits[i])
	}
	return b.String()
}

func c32Digit(c byte) (uint64, bool) {
	switch c {
	case 'O', 'o':
		c = '0'
	case 'L', 'l', 'I', 'i':
		c = '1'
	}
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	i := strings.IndexByte(c32Alphabet, c)
	return uint64(i), i >= 0
}

// c32Decode is the inverse of c32Encode. The result is left padded with zero
// bytes up to size.
func c32Decode(s string, size int) ([]byte, error) {
	if len(s) == 0 || len(s) > maxC32Chars {
		return nil, fmt.Errorf("%w: bad c32 length %d", ErrInvalidPrincipal, len(s))
	}
	n := new(uint256.Int)
	for i := 0; i < len(s); i++ {
		d, ok := c32Digit(s[i])
		if !ok {
			return nil, fmt.Errorf("%w: invalid c32 character %q", ErrInvalidPrincipal, s[i])
		}
		n.Lsh(n, 5)
		n.Or(n, uint256.NewInt(d))
	}
	if n.BitLen() > size*8 {
		return nil, fmt.Errorf("%w: c32 payload too long", ErrInvalidPrincipal)
	}
	out := n.Bytes32()
	return out[32-size:], nil
}

func c32Checksum(version byte, hash []byte) []byte {
	buf := make([]byte, 0, 1+len(hash))
	buf = append(buf, version)
	buf = append(buf, hash...)
	sum := hashing.ComputeHash256(hashing.ComputeHash256(buf))
	return sum[:checksumLen]
}

// C32Address encodes a version and hash160 as a Stacks address.
func C32Address(version byte, hash [20]byte) string {
	payload := make([]byte, 0, addressPayloadLen)
	payload = append(payload, hash[:]...)
	payload = append(payload, c32Checksum(version, hash[:])...)
	return "S" + string(c32Alphabet[version&31]) + c32Encode(payload)
}

// C32AddressDecode parses a Stacks address into its version and hash160.
func C32AddressDecode(addr string) (byte, [20]byte, error) {
	var hash [20]byte
	if len(addr) < 3 || addr[0] != 'S' {
		return 0, hash, fmt.Errorf("%w: %q", ErrInvalidPrincipal, addr)
	}
	v, ok := c32Digit(addr[1])
	if !ok {
		return 0, hash, fmt.Errorf("%w: bad version in %q", ErrInvalidPrincipal, addr)
	}
	version := byte(v)
	payload, err := c32Decode(addr[2:], addressPayloadLen)
	if err != nil {
		return 0, hash, err
	}
	copy(hash[:], payload[:20])
	want := c32Checksum(version, hash[:])
	for i := 0; i < checksumLen; i++ {
		if payload[20+i] != want[i] {
			return 0, hash, fmt.Errorf("%w: %q", ErrBadChecksum, addr)
		}
	}
	return version, hash, nil
}
