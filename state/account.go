// Package state implements the content-addressed account model: an
// append-only ChangeLog for savepoint/rollback, a write-back AccountCache
// with negative caching, and the State facade tying them to the
// transaction-shaped storage, balance, nonce, and code operations the
// executive package drives.
//
// Account holds the persisted 4-tuple; accountObject is its cached,
// possibly-dirty in-memory counterpart. Every mutation pushes a typed
// changeEntry (balanceChange, storageChange, nonceChange, newCodeChange,
// createChange, touchChange) onto the ChangeLog so a savepoint can later
// be rolled back by replaying inverses in reverse order.
package state

import (
	"math/big"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/internal/logger"
	"github.com/entropyio/go-evmcore/internal/rlp"
)

var log = logger.NewLogger("[state]")

// accountStartNonce is the nonce assigned to accounts that don't yet exist.
const accountStartNonce uint64 = 0

// Account is the persisted 4-tuple serialized into the account trie:
// rlp([nonce, balance, storageRoot, codeHash]).
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// emptyAccount returns the zero-value account used for freshly created
// accounts before any field is set.
func emptyAccount() Account {
	return Account{
		Nonce:       accountStartNonce,
		Balance:     new(big.Int),
		StorageRoot: common.EmptyRootHash(),
		CodeHash:    common.EmptyCodeHash(),
	}
}

// isEmpty reports whether a is empty: nonce == 0 && balance == 0 &&
// codeHash == hash-of-empty.
func (a Account) isEmpty() bool {
	return a.Nonce == accountStartNonce && a.Balance.Sign() == 0 && a.CodeHash == common.EmptyCodeHash()
}

// EncodeAccount RLP-encodes the account 4-tuple for storage in the trie.
func EncodeAccount(a Account) []byte {
	return rlp.EncodeList(
		rlp.EncodeUint64(a.Nonce),
		rlp.EncodeBig(a.Balance),
		rlp.EncodeBytes(a.StorageRoot.Bytes()),
		rlp.EncodeBytes(a.CodeHash.Bytes()),
	)
}

// DecodeAccount parses an RLP-encoded account 4-tuple.
func DecodeAccount(data []byte) (Account, error) {
	_, content, _, err := rlp.Split(data)
	if err != nil {
		return Account{}, err
	}
	items, err := rlp.SplitAll(content)
	if err != nil {
		return Account{}, err
	}
	if len(items) != 4 {
		return Account{}, rlp.ErrMalformed
	}
	nonce := decodeRLPUint64(items[0])
	balance := new(big.Int).SetBytes(items[1])
	storageRoot := common.EmptyRootHash()
	if len(items[2]) > 0 {
		storageRoot = common.BytesToHash(items[2])
	}
	codeHash := common.EmptyCodeHash()
	if len(items[3]) > 0 {
		codeHash = common.BytesToHash(items[3])
	}
	return Account{
		Nonce:       nonce,
		Balance:     balance,
		StorageRoot: storageRoot,
		CodeHash:    codeHash,
	}, nil
}

func decodeRLPUint64(b []byte) uint64 {
	var x uint64
	for _, c := range b {
		x = x<<8 | uint64(c)
	}
	return x
}
