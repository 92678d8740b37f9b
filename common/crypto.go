package common

import (
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash computes the keccak-256 digest of the concatenation of data
// and returns it as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	return BytesToHash(Keccak256(data...))
}

// emptyCodeHash is the keccak-256 digest of the empty byte string; it is the
// codeHash of every account that has no deployed code.
var emptyCodeHash = Keccak256Hash(nil)

// EmptyCodeHash returns the hash of the empty code, used as the codeHash of
// externally-owned accounts and freshly created contracts before CREATE runs.
func EmptyCodeHash() Hash { return emptyCodeHash }

// emptyRootHash is the keccak-256 digest of RLP-encoded nil, the known root
// of an empty trie. Accounts without storage carry this as their storageRoot.
var emptyRootHash = HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// EmptyRootHash returns the root hash of the empty storage trie.
func EmptyRootHash() Hash { return emptyRootHash }
