// Package database implements the external trie database collaborator: a
// key/value store plus a content-addressed trie view built on top of it.
// This package treats the wire format of stored values as given (callers
// RLP-encode before Put, decode after Get) and only owns storage, caching,
// and the trie abstraction itself.
package database

import (
	"sync"

	"github.com/allegro/bigcache"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"

	"github.com/entropyio/go-evmcore/internal/logger"
)

var log = logger.NewLogger("[database]")

// IdealBatchSize is the amount of data callers should try to accumulate in a
// Batch before calling Write.
const IdealBatchSize = 100 * 1024

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = leveldb.ErrNotFound

// KeyValueStore wraps all database operations the trie and code store need.
// All methods are safe for concurrent use.
type KeyValueStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	Close() error
}

// Batch is a write-only database that commits changes to its host database
// when Write is called. A Batch is not safe for concurrent use.
type Batch interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	ValueSize() int
	Write() error
	Reset()
}

// MemoryDB is an in-memory KeyValueStore, used by tests and by the CLI's
// ephemeral "run a single transaction" mode.
type MemoryDB struct {
	mu sync.RWMutex
	kv map[string][]byte
}

// NewMemoryDB returns an empty in-memory store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{kv: make(map[string][]byte)}
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.kv[string(key)]
	return ok, nil
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.kv[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := make([]byte, len(v))
	copy(cpy, v)
	return cpy, nil
}

func (db *MemoryDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cpy := make([]byte, len(value))
	copy(cpy, value)
	db.kv[string(key)] = cpy
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.kv, string(key))
	return nil
}

func (db *MemoryDB) Close() error { return nil }

func (db *MemoryDB) NewBatch() Batch { return &memoryBatch{db: db} }

type keyValue struct {
	key    []byte
	value  []byte
	delete bool
}

type memoryBatch struct {
	db   *MemoryDB
	ops  []keyValue
	size int
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, keyValue{key, value, false})
	b.size += len(value)
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, keyValue{key, nil, true})
	b.size++
	return nil
}

func (b *memoryBatch) ValueSize() int { return b.size }

func (b *memoryBatch) Write() error {
	for _, op := range b.ops {
		if op.delete {
			if err := b.db.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := b.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBatch) Reset() { b.ops = b.ops[:0]; b.size = 0 }

// LevelDB is the production KeyValueStore, fronted by a bigcache read-through
// cache so repeat reads of hot trie nodes and account blobs (the common case
// while replaying a block of transactions against the same State) don't
// round-trip to disk.
type LevelDB struct {
	db    *leveldb.DB
	cache *bigcache.BigCache
}

// OpenLevelDB opens (or creates) a LevelDB-backed store at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	cache, err := bigcache.NewBigCache(bigcache.DefaultConfig(10 * 60 /* seconds */))
	if err != nil {
		log.Warning("bigcache init failed, continuing without a read cache", "err", err)
	}
	return &LevelDB{db: db, cache: cache}, nil
}

func (ldb *LevelDB) Has(key []byte) (bool, error) {
	if ldb.cache != nil {
		if _, err := ldb.cache.Get(string(key)); err == nil {
			return true, nil
		}
	}
	return ldb.db.Has(key, nil)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	if ldb.cache != nil {
		if v, err := ldb.cache.Get(string(key)); err == nil {
			return v, nil
		}
	}
	v, err := ldb.db.Get(key, nil)
	if err != nil {
		return nil, err
	}
	if ldb.cache != nil {
		_ = ldb.cache.Set(string(key), v)
	}
	return v, nil
}

func (ldb *LevelDB) Put(key, value []byte) error {
	if ldb.cache != nil {
		_ = ldb.cache.Set(string(key), value)
	}
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Delete(key []byte) error {
	if ldb.cache != nil {
		_ = ldb.cache.Delete(string(key))
	}
	return ldb.db.Delete(key, nil)
}

func (ldb *LevelDB) Close() error { return ldb.db.Close() }

func (ldb *LevelDB) NewBatch() Batch { return &levelBatch{db: ldb, b: new(leveldb.Batch)} }

type levelBatch struct {
	db   *LevelDB
	b    *leveldb.Batch
	size int
}

func (b *levelBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size++
	return nil
}

func (b *levelBatch) ValueSize() int { return b.size }

func (b *levelBatch) Write() error { return b.db.db.Write(b.b, nil) }

func (b *levelBatch) Reset() { b.b.Reset() }
