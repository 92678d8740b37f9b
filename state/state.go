package state

import (
	"errors"
	"math/big"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/database"
)

// ErrNotEnoughCash is returned by SubBalance/TransferBalance when the
// debited account's balance is insufficient.
var ErrNotEnoughCash = errors.New("state: not enough cash")

// ErrAddressInUse is returned by CreateContract when the target address
// already holds a nonce or code.
var ErrAddressInUse = errors.New("state: address already in use")

// CommitBehavior selects whether Commit purges empty, touched accounts.
type CommitBehavior int

const (
	// KeepEmptyAccounts is the pre-EIP-158 commit behavior: touched empty
	// accounts remain in the trie.
	KeepEmptyAccounts CommitBehavior = iota
	// RemoveEmptyAccounts purges touched accounts that are empty
	// (nonce=0, balance=0, no code) at commit time, per EIP-158.
	RemoveEmptyAccounts
)

// State is the facade coordinating the ChangeLog and AccountCache and the
// per-account storage sub-tries. It exclusively owns its cache, changelog,
// and database handle; a HostInterface borrows it for the lifetime of a
// single VM invocation.
type State struct {
	db        database.KeyValueStore
	codeDB    *database.CodeDB
	trie      database.Trie
	cache     *AccountCache
	changelog *ChangeLog

	originalRoot common.Hash
}

// New opens the account trie rooted at root against db and returns a State
// ready to serve reads and mutations.
func New(root common.Hash, db database.KeyValueStore) (*State, error) {
	trie, err := database.NewMerkleTrie(root, db)
	if err != nil {
		return nil, err
	}
	codeDB := database.NewCodeDB(db)
	return &State{
		db:           db,
		codeDB:       codeDB,
		trie:         trie,
		cache:        NewAccountCache(trie, codeDB),
		changelog:    NewChangeLog(),
		originalRoot: root,
	}, nil
}

// Balance returns addr's balance, or zero if the account does not exist.
func (s *State) Balance(addr common.Address) *big.Int {
	if obj := s.cache.get(addr); obj != nil {
		return new(big.Int).Set(obj.account.Balance)
	}
	return new(big.Int)
}

// GetNonce returns addr's nonce, or accountStartNonce if absent.
func (s *State) GetNonce(addr common.Address) uint64 {
	if obj := s.cache.get(addr); obj != nil {
		return obj.account.Nonce
	}
	return accountStartNonce
}

// AddBalance credits v to addr, creating the account if absent. A zero v
// only touches the account, and only when it is empty, matching the EIP-158
// "is it worth touching" check: only empty touched accounts are candidates
// for empty-account cleanup at commit.
func (s *State) AddBalance(addr common.Address, v *big.Int) {
	obj := s.cache.mustGet(addr)
	if v.Sign() == 0 {
		if obj.empty() {
			s.Touch(addr)
		}
		return
	}
	s.changelog.push(balanceChange{addr: addr, delta: new(big.Int).Set(v)})
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, v)
	obj.dirty = true
}

// SubBalance debits v from addr, failing with ErrNotEnoughCash if the
// balance is insufficient.
func (s *State) SubBalance(addr common.Address, v *big.Int) error {
	if v.Sign() == 0 {
		return nil
	}
	obj := s.cache.get(addr)
	if obj == nil || obj.account.Balance.Cmp(v) < 0 {
		return ErrNotEnoughCash
	}
	s.changelog.push(balanceChange{addr: addr, delta: new(big.Int).Neg(v)})
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, v)
	obj.dirty = true
	return nil
}

// TransferBalance moves v from from to to atomically: either both legs are
// logged, or (on insufficient funds) neither is. A zero-value transfer
// still goes through AddBalance, which touches an empty recipient.
func (s *State) TransferBalance(from, to common.Address, v *big.Int) error {
	if v.Sign() == 0 {
		s.AddBalance(to, new(big.Int))
		return nil
	}
	if err := s.SubBalance(from, v); err != nil {
		return err
	}
	s.AddBalance(to, v)
	return nil
}

// IncNonce creates the account if absent and increments its nonce.
func (s *State) IncNonce(addr common.Address) {
	obj := s.cache.mustGet(addr)
	s.changelog.push(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce++
	obj.dirty = true
}

// Storage returns the value at key in addr's storage: overlay, then the
// per-account trie, then zero.
func (s *State) Storage(addr common.Address, key common.Hash) common.Hash {
	obj := s.cache.get(addr)
	if obj == nil {
		return common.Hash{}
	}
	return s.readStorage(obj, key)
}

func (s *State) readStorage(obj *accountObject, key common.Hash) common.Hash {
	if v, ok := obj.overlay[key]; ok {
		return v
	}
	tr := s.openStorageTrie(obj)
	enc, err := tr.TryGet(key.Bytes())
	if err != nil || len(enc) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(enc)
}

func (s *State) openStorageTrie(obj *accountObject) database.Trie {
	if obj.storageTrie == nil {
		tr, err := database.NewMerkleTrie(obj.account.StorageRoot, s.db)
		if err != nil {
			log.Error("failed to open storage trie", "addr", obj.addr, "err", err)
			tr, _ = database.NewMerkleTrie(common.Hash{}, s.db)
		}
		obj.storageTrie = tr
	}
	return obj.storageTrie
}

// SetStorage writes value at key in addr's storage overlay, logging the
// previous value so rollback can restore it exactly, including the case
// where the previous value was the absence of the key.
func (s *State) SetStorage(addr common.Address, key, value common.Hash) {
	obj := s.cache.mustGet(addr)
	prev := s.readStorage(obj, key)
	if prev == value {
		return
	}
	s.changelog.push(storageChange{addr: addr, key: key, prev: prev})
	obj.setStorage(key, value)
}

// AddressHasCode reports whether addr exists and has non-empty code.
func (s *State) AddressHasCode(addr common.Address) bool {
	obj := s.cache.get(addr)
	return obj != nil && obj.account.CodeHash != common.EmptyCodeHash()
}

// AddressExists reports whether addr has a cached or trie-backed account at
// all.
func (s *State) AddressExists(addr common.Address) bool {
	return s.cache.get(addr) != nil
}

// AddressInUse reports whether addr already carries a nonce or code,
// the precondition CreateContract enforces.
func (s *State) AddressInUse(addr common.Address) bool {
	obj := s.cache.get(addr)
	return obj != nil && (obj.account.Nonce != 0 || obj.account.CodeHash != common.EmptyCodeHash())
}

// Code returns addr's code, loading it from the code DB by codeHash on
// first access and caching the result.
func (s *State) Code(addr common.Address) []byte {
	obj := s.cache.get(addr)
	if obj == nil {
		return nil
	}
	if obj.code != nil {
		return obj.code
	}
	if obj.account.CodeHash == common.EmptyCodeHash() {
		return nil
	}
	obj.code = s.codeDB.ReadCode(obj.account.CodeHash)
	return obj.code
}

// CodeHash returns addr's codeHash, or the hash-of-empty when no code or no
// account exists.
func (s *State) CodeHash(addr common.Address) common.Hash {
	if obj := s.cache.get(addr); obj != nil {
		return obj.account.CodeHash
	}
	return common.EmptyCodeHash()
}

// CreateContract installs a fresh, alive, zeroed account at addr, requiring
// that no nonce or code is already present. Any pre-existing balance at
// addr (e.g. from a prior transfer to the predicted address) is carried
// over so ether never silently disappears.
func (s *State) CreateContract(addr common.Address) error {
	if s.AddressInUse(addr) {
		return ErrAddressInUse
	}
	obj, prev := s.cache.create(addr)
	if prev != nil {
		obj.account.Balance = new(big.Int).Set(prev.account.Balance)
		s.changelog.push(resetCreateChange{addr: addr, prev: prev})
	} else {
		s.changelog.push(createChange{addr: addr})
	}
	return nil
}

// SetNewCode installs code at addr, updating its codeHash and marking the
// account for code insertion at commit.
func (s *State) SetNewCode(addr common.Address, code []byte) {
	obj := s.cache.mustGet(addr)
	s.changelog.push(newCodeChange{addr: addr, prevCodeHash: obj.account.CodeHash, prevCode: obj.code})
	obj.code = code
	obj.account.CodeHash = common.Keccak256Hash(code)
	obj.hasNewCode = true
	obj.dirty = true
}

// Touch marks addr as touched this transaction, a candidate for
// empty-account purge at commit.
func (s *State) Touch(addr common.Address) {
	obj := s.cache.mustGet(addr)
	if s.cache.touch(addr) {
		s.changelog.push(touchChange{addr: addr})
	}
	_ = obj
}

// Kill marks addr as non-alive; it is purged from the trie at commit.
// There is no dedicated undo entry for this: callers only invoke Kill once
// a transaction has already succeeded and can no longer be rolled back.
func (s *State) Kill(addr common.Address) {
	obj := s.cache.get(addr)
	if obj == nil {
		return
	}
	obj.alive = false
	obj.dirty = true
}

// Savepoint returns an index into the ChangeLog that Rollback can later
// restore to.
func (s *State) Savepoint() int {
	return s.changelog.savepoint()
}

// Rollback undoes every change logged since sp.
func (s *State) Rollback(sp int) {
	s.changelog.rollback(s, sp)
}

// Copy returns an independent, deep copy of s sharing the same underlying
// database handle — used by speculative or read-only callers that must not
// observe mutations made through the original State.
func (s *State) Copy() *State {
	trieCopy := s.trie
	if mt, ok := s.trie.(*database.MerkleTrie); ok {
		trieCopy = database.CopyTrie(mt)
	}
	cpy := &State{
		db:           s.db,
		codeDB:       s.codeDB,
		trie:         trieCopy,
		cache:        NewAccountCache(trieCopy, s.codeDB),
		changelog:    NewChangeLog(),
		originalRoot: s.originalRoot,
	}
	for addr, obj := range s.cache.objects {
		cpy.cache.objects[addr] = obj.clone()
	}
	for addr := range s.cache.nonExisting {
		cpy.cache.nonExisting[addr] = struct{}{}
	}
	return cpy
}

// Commit flushes every dirty account to the trie. With RemoveEmptyAccounts,
// touched accounts that are empty are purged first. The ChangeLog and
// touched set are cleared on return.
func (s *State) Commit(behavior CommitBehavior) (common.Hash, error) {
	if behavior == RemoveEmptyAccounts {
		s.cache.touched.Each(func(v interface{}) bool {
			addr := v.(common.Address)
			if obj, ok := s.cache.objects[addr]; ok && obj.alive && obj.empty() {
				obj.alive = false
				obj.dirty = true
			}
			return false
		})
	}

	for addr, obj := range s.cache.objects {
		if !obj.dirty {
			continue
		}
		if !obj.alive {
			if err := s.trie.TryDelete(addr.Bytes()); err != nil {
				return common.Hash{}, err
			}
			delete(s.cache.objects, addr)
			continue
		}
		if err := s.commitAccount(obj); err != nil {
			return common.Hash{}, err
		}
	}

	root, err := s.trie.Commit()
	if err != nil {
		return common.Hash{}, err
	}
	s.originalRoot = root
	s.changelog.reset()
	s.cache.touched.Clear()
	s.cache.clearIfLarge()
	return root, nil
}

func (s *State) commitAccount(obj *accountObject) error {
	tr := s.openStorageTrie(obj)
	for key, value := range obj.overlay {
		if value == (common.Hash{}) {
			if err := tr.TryDelete(key.Bytes()); err != nil {
				return err
			}
			continue
		}
		if err := tr.TryUpdate(key.Bytes(), common.CopyBytes(value.Bytes())); err != nil {
			return err
		}
	}
	root, err := tr.Commit()
	if err != nil {
		return err
	}
	obj.account.StorageRoot = root
	obj.overlay = make(map[common.Hash]common.Hash)

	if obj.hasNewCode {
		if err := s.codeDB.WriteCode(obj.account.CodeHash, obj.code); err != nil {
			return err
		}
		obj.hasNewCode = false
	}
	obj.dirty = false

	return s.trie.TryUpdate(obj.addr.Bytes(), EncodeAccount(obj.account))
}
