package state

import (
	"github.com/mohae/deepcopy"

	mapset "github.com/deckarep/golang-set"
	lru "github.com/hashicorp/golang-lru"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/database"
)

// accountCacheSoftCap bounds how many clean, untouched accountObjects
// AccountCache keeps before clearIfLarge starts evicting.
const accountCacheSoftCap = 4096

// accountObject is a cached, possibly-mutated account: the live
// counterpart of the persisted Account tuple, carrying the overlay,
// lazily-loaded code, and dirty/alive/hasNewCode flags.
//
// Storage reads miss through an overlay-over-trie model: an uncommitted
// write lands in the overlay map, and a miss there falls through to a
// per-account trie, then to zero.
type accountObject struct {
	addr    common.Address
	account Account

	storageTrie database.Trie     // opened lazily on first storage access
	overlay     map[common.Hash]common.Hash // uncommitted slot writes

	code []byte // present once loaded or freshly deployed

	dirty      bool // mutated since last commit
	alive      bool // exists in the world (false once killed, pending purge)
	hasNewCode bool // code pending insertion into the code DB at commit
}

func newAccountObject(addr common.Address) *accountObject {
	return &accountObject{
		addr:    addr,
		account: emptyAccount(),
		overlay: make(map[common.Hash]common.Hash),
		alive:   true,
	}
}

func (o *accountObject) clone() *accountObject {
	cpy := &accountObject{
		addr:       o.addr,
		account:    o.account,
		overlay:    make(map[common.Hash]common.Hash, len(o.overlay)),
		code:       o.code,
		dirty:      o.dirty,
		alive:      o.alive,
		hasNewCode: o.hasNewCode,
	}
	cpy.account = deepcopy.Copy(o.account).(Account)
	for k, v := range o.overlay {
		cpy.overlay[k] = v
	}
	return cpy
}

func (o *accountObject) empty() bool { return o.account.isEmpty() }

func (o *accountObject) setStorage(key, value common.Hash) {
	o.overlay[key] = value
	o.dirty = true
}

// AccountCache is the lazy, write-back cache over the account trie: tracks
// dirty, touched, and negative ("non-existing") entries, evicting clean/
// untouched entries once the soft cap is exceeded.
type AccountCache struct {
	trie    database.Trie
	codeDB  *database.CodeDB
	objects map[common.Address]*accountObject

	nonExisting map[common.Address]struct{}
	touched     mapset.Set

	// clean tracks recently-read clean (unmutated) addresses in LRU order so
	// clearIfLarge can evict the coldest ones first without scanning the
	// whole map; it stores no values, only recency.
	clean *lru.Cache
}

// NewAccountCache wraps trie/codeDB in a fresh, empty cache.
func NewAccountCache(trie database.Trie, codeDB *database.CodeDB) *AccountCache {
	clean, _ := lru.New(accountCacheSoftCap * 4)
	return &AccountCache{
		trie:        trie,
		codeDB:      codeDB,
		objects:     make(map[common.Address]*accountObject),
		nonExisting: make(map[common.Address]struct{}),
		touched:     mapset.NewThreadUnsafeSet(),
		clean:       clean,
	}
}

// get returns the cached or trie-loaded account object for addr, or nil if
// the account does not exist. A negative trie lookup is cached in
// nonExisting so later calls skip the trie entirely until createAccount
// clears the entry.
func (c *AccountCache) get(addr common.Address) *accountObject {
	if obj, ok := c.objects[addr]; ok {
		if !obj.dirty {
			c.clean.Add(addr, struct{}{})
		}
		return obj
	}
	if _, negative := c.nonExisting[addr]; negative {
		return nil
	}
	enc, err := c.trie.TryGet(addr.Bytes())
	if err != nil {
		log.Error("account trie lookup failed", "addr", addr, "err", err)
		return nil
	}
	if len(enc) == 0 {
		c.nonExisting[addr] = struct{}{}
		return nil
	}
	acc, err := DecodeAccount(enc)
	if err != nil {
		log.Error("account decode failed", "addr", addr, "err", err)
		return nil
	}
	obj := &accountObject{addr: addr, account: acc, overlay: make(map[common.Hash]common.Hash), alive: true}
	c.objects[addr] = obj
	c.clean.Add(addr, struct{}{})
	return obj
}

// mustGet returns the object for addr, creating one if absent. Unlike get,
// a negative nonExisting entry does not stop it: it creates the object and
// clears the entry, since callers only reach mustGet after a mutation helper
// has already established the account should exist.
func (c *AccountCache) mustGet(addr common.Address) *accountObject {
	if obj, ok := c.objects[addr]; ok {
		return obj
	}
	obj := c.get(addr)
	if obj == nil {
		obj = newAccountObject(addr)
		delete(c.nonExisting, addr)
		c.objects[addr] = obj
	}
	return obj
}

// create installs a brand-new object at addr, returning it along with
// whatever object previously occupied that slot (nil if none).
func (c *AccountCache) create(addr common.Address) (obj, prev *accountObject) {
	prev = c.objects[addr]
	if prev == nil {
		if loaded := c.get(addr); loaded != nil {
			prev = loaded
		}
	}
	delete(c.nonExisting, addr)
	obj = newAccountObject(addr)
	obj.dirty = true
	c.objects[addr] = obj
	return obj, prev
}

// remove purges addr entirely and marks it negative, used to undo a
// createChange on rollback.
func (c *AccountCache) remove(addr common.Address) {
	delete(c.objects, addr)
	c.nonExisting[addr] = struct{}{}
}

// touch inserts addr into the touched set if not already present.
func (c *AccountCache) touch(addr common.Address) bool {
	if c.touched.Contains(addr) {
		return false
	}
	c.touched.Add(addr)
	return true
}

// clearIfLarge evicts clean, untouched accountObjects once the cache
// exceeds its soft cap.
func (c *AccountCache) clearIfLarge() {
	if len(c.objects) <= accountCacheSoftCap {
		return
	}
	for _, addr := range c.clean.Keys() {
		if len(c.objects) <= accountCacheSoftCap {
			return
		}
		a := addr.(common.Address)
		obj, ok := c.objects[a]
		if !ok || obj.dirty || c.touched.Contains(a) {
			continue
		}
		delete(c.objects, a)
		c.clean.Remove(a)
	}
}
