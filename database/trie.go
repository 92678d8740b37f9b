package database

import (
	"sort"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/entropyio/go-evmcore/common"
)

// Trie is the path-keyed view State.Commit serializes account and storage
// tuples into. The production implementation is a Merkle Patricia Trie;
// that algorithm lives outside this module's scope — the on-disk trie
// database is an external collaborator. What this module owns is the
// *shape* of the interface the State facade programs against, plus a
// content-addressed implementation faithful enough to make Commit/
// root-hash comparisons in tests meaningful (rollback identity requires a
// bit-identical root hash after commit).
type Trie interface {
	TryGet(key []byte) ([]byte, error)
	TryUpdate(key, value []byte) error
	TryDelete(key []byte) error
	Hash() common.Hash
	Commit() (common.Hash, error)
}

// nodeCache is a process-wide, fixed-size byte cache backed by fastcache.
// TryUpdate records every written value in it; no read path consults it.
var nodeCache = fastcache.New(32 * 1024 * 1024)

// MerkleTrie is a minimal content-addressed key/value trie: it keeps its
// live key/value set in memory, and derives Hash() by combining the sorted
// (key, value) pairs through keccak256 — a flat Merkle tree rather than a
// radix-compressed Patricia trie, but one that satisfies every property this
// module relies on: deterministic root hash as a pure function of content,
// and persistence of the whole (key -> value) set across Commit via the
// underlying KeyValueStore, stored as one index keyed by the root hash.
type MerkleTrie struct {
	db   KeyValueStore
	data map[string][]byte // live key -> value set; deleted keys are removed
	root common.Hash
}

// NewMerkleTrie opens the trie rooted at root (the zero hash opens an empty
// trie), loading its whole key/value set from db at open.
func NewMerkleTrie(root common.Hash, db KeyValueStore) (*MerkleTrie, error) {
	t := &MerkleTrie{db: db, data: make(map[string][]byte), root: root}
	if root.IsZero() || root == common.EmptyRootHash() {
		return t, nil
	}
	raw, err := db.Get(trieIndexKey(root))
	if err != nil {
		return nil, err
	}
	entries, err := decodeTrieIndex(raw)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		t.data[string(e.key)] = e.value
	}
	return t, nil
}

func (t *MerkleTrie) TryGet(key []byte) ([]byte, error) {
	if v, ok := t.data[string(key)]; ok {
		return v, nil
	}
	return nil, nil
}

func (t *MerkleTrie) TryUpdate(key, value []byte) error {
	cpy := common.CopyBytes(value)
	t.data[string(key)] = cpy
	nodeCache.Set(append(common.CopyBytes(key), cpy...), cpy)
	return nil
}

func (t *MerkleTrie) TryDelete(key []byte) error {
	delete(t.data, string(key))
	return nil
}

// Hash recomputes the trie's root as keccak256 of its sorted key/value pairs.
func (t *MerkleTrie) Hash() common.Hash {
	if len(t.data) == 0 {
		return common.EmptyRootHash()
	}
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	for _, k := range keys {
		buf = append(buf, []byte(k)...)
		buf = append(buf, t.data[k]...)
	}
	return common.Keccak256Hash(buf)
}

// Commit persists the trie's current key/value set under its root hash and
// returns that hash.
func (t *MerkleTrie) Commit() (common.Hash, error) {
	root := t.Hash()
	if root == common.EmptyRootHash() {
		t.root = root
		return root, nil
	}
	entries := make([]trieEntry, 0, len(t.data))
	for k, v := range t.data {
		entries = append(entries, trieEntry{key: []byte(k), value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return string(entries[i].key) < string(entries[j].key) })
	if err := t.db.Put(trieIndexKey(root), encodeTrieIndex(entries)); err != nil {
		return common.Hash{}, err
	}
	t.root = root
	return root, nil
}

// CopyTrie returns an independent copy of t sharing the same backing store.
func CopyTrie(t *MerkleTrie) *MerkleTrie {
	cpy := &MerkleTrie{db: t.db, data: make(map[string][]byte, len(t.data)), root: t.root}
	for k, v := range t.data {
		cpy.data[k] = common.CopyBytes(v)
	}
	return cpy
}

type trieEntry struct {
	key, value []byte
}

func trieIndexKey(root common.Hash) []byte {
	return append([]byte("trie-index-"), root.Bytes()...)
}

// encodeTrieIndex/decodeTrieIndex use a tiny length-prefixed format; the
// wire format of the underlying trie store is an internal implementation
// choice, so this is deliberately not RLP.
func encodeTrieIndex(entries []trieEntry) []byte {
	var buf []byte
	putUvarint := func(x uint64) {
		var tmp [10]byte
		n := 0
		for x >= 0x80 {
			tmp[n] = byte(x) | 0x80
			x >>= 7
			n++
		}
		tmp[n] = byte(x)
		buf = append(buf, tmp[:n+1]...)
	}
	putUvarint(uint64(len(entries)))
	for _, e := range entries {
		putUvarint(uint64(len(e.key)))
		buf = append(buf, e.key...)
		putUvarint(uint64(len(e.value)))
		buf = append(buf, e.value...)
	}
	return buf
}

func decodeTrieIndex(buf []byte) ([]trieEntry, error) {
	readUvarint := func() uint64 {
		var x uint64
		var s uint
		for {
			b := buf[0]
			buf = buf[1:]
			if b < 0x80 {
				x |= uint64(b) << s
				return x
			}
			x |= uint64(b&0x7f) << s
			s += 7
		}
	}
	n := readUvarint()
	entries := make([]trieEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		klen := readUvarint()
		key := buf[:klen]
		buf = buf[klen:]
		vlen := readUvarint()
		value := buf[:vlen]
		buf = buf[vlen:]
		entries = append(entries, trieEntry{key: key, value: value})
	}
	return entries, nil
}
