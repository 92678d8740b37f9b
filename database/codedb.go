package database

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/entropyio/go-evmcore/common"
)

// codeSizeCache is a process-wide LRU of code sizes keyed by code hash: code
// blobs are deduplicated by hash, and insertion at commit is idempotent
// under hash equality. It keeps no reference counts; an entry leaves only by
// LRU eviction. It is shared by every CodeDB instance in the process rather
// than kept per-instance.
var codeSizeCache, _ = lru.New(100000)

// CodeDB stores deployed contract bytecode keyed by its keccak-256 hash.
type CodeDB struct {
	kv KeyValueStore
}

// NewCodeDB wraps kv as a code store.
func NewCodeDB(kv KeyValueStore) *CodeDB {
	return &CodeDB{kv: kv}
}

func codeKey(hash common.Hash) []byte {
	return append([]byte("c"), hash.Bytes()...)
}

// ReadCode retrieves the code for the given hash, or nil if absent.
func (c *CodeDB) ReadCode(hash common.Hash) []byte {
	if hash == common.EmptyCodeHash() {
		return nil
	}
	data, err := c.kv.Get(codeKey(hash))
	if err != nil {
		return nil
	}
	return data
}

// HasCode reports whether code for hash is present, consulting the
// code-size cache before the underlying store.
func (c *CodeDB) HasCode(hash common.Hash) bool {
	if hash == common.EmptyCodeHash() {
		return true
	}
	if _, ok := codeSizeCache.Get(hash); ok {
		return true
	}
	ok, _ := c.kv.Has(codeKey(hash))
	return ok
}

// WriteCode stores code under its keccak-256 hash and records its size in
// the process-wide cache. Insertion is idempotent: writing the same hash
// twice is a no-op on the second call.
func (c *CodeDB) WriteCode(hash common.Hash, code []byte) error {
	if _, ok := codeSizeCache.Get(hash); ok {
		return nil
	}
	if err := c.kv.Put(codeKey(hash), code); err != nil {
		return err
	}
	codeSizeCache.Add(hash, len(code))
	return nil
}

// CodeSize returns the cached size of the code stored under hash, loading
// and caching it from the store on a miss.
func (c *CodeDB) CodeSize(hash common.Hash) int {
	if v, ok := codeSizeCache.Get(hash); ok {
		return v.(int)
	}
	code := c.ReadCode(hash)
	codeSizeCache.Add(hash, len(code))
	return len(code)
}
