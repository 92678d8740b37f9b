// Package common holds the primitive types shared by every layer of the
// executor: addresses, hashes, and the small helpers built on top of them.
package common

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// AddressLength is the expected length of an account address.
	AddressLength = 20
	// HashLength is the expected length of a keccak-256 digest.
	HashLength = 32
)

// Address represents the 20-byte account identifier.
type Address [AddressLength]byte

// BytesToAddress returns Address with value b.
// If b is larger than AddressLength, b will be cropped from the left.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress returns Address with byte values of s.
func HexToAddress(s string) Address { return BytesToAddress(FromHex(s)) }

// SetBytes sets the address to the value of b, left padded if short.
func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Bytes returns the raw bytes of the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns an EIP55-uncompliant hex string of the address (0x-prefixed).
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Hash represents a 32-byte keccak-256 digest.
type Hash [HashLength]byte

// BytesToHash returns Hash with value b, left padded if short, cropped from
// the left if long.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash returns Hash with byte values of s.
func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

// BigToHash sets the hash to the big-endian byte representation of b.
func BigToHash(b *big.Int) Hash { return BytesToHash(b.Bytes()) }

func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the raw bytes of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Big returns the hash as a big-endian unsigned integer.
func (h Hash) Big() *big.Int { return new(big.Int).SetBytes(h[:]) }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// FromHex decodes a (possibly 0x-prefixed) hex string into bytes, ignoring
// decode errors for convenience in constructors used by tests and genesis
// loading.
func FromHex(s string) []byte {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

// Bytes2Hex returns the 0x-less hex encoding of b.
func Bytes2Hex(b []byte) string { return hex.EncodeToString(b) }

// CopyBytes returns an independent copy of b.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}

// Big0 and Big1 are pre-allocated convenience constants, mirroring the
// teacher's common/big.go helpers used throughout gas accounting.
var (
	Big0 = big.NewInt(0)
	Big1 = big.NewInt(1)
)

// PrettyDuration-less String helper for addresses used in error messages.
func (a Address) GoString() string { return fmt.Sprintf("common.HexToAddress(%q)", a.Hex()) }
