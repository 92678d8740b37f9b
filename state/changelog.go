package state

import (
	"math/big"

	"github.com/entropyio/go-evmcore/common"
)

// changeEntry is a single reversible account mutation. Each entry carries
// enough information to undo itself; it never reaches back into the
// database, only into the in-memory AccountCache, which is why revert takes
// *State rather than a trie handle.
type changeEntry interface {
	revert(s *State)
	// dirtied returns the address this entry affects, or the zero address
	// for entries with no single affected address (none exist today, but the
	// shape stays consistent for callers that build a dirty-address set from
	// the log).
	dirtied() common.Address
}

// ChangeLog is the append-only stack of changeEntry values backing
// savepoint/rollback.
type ChangeLog struct {
	entries []changeEntry
	dirties map[common.Address]int // address -> number of dirtying entries
}

// NewChangeLog returns an empty log.
func NewChangeLog() *ChangeLog {
	return &ChangeLog{dirties: make(map[common.Address]int)}
}

// push appends entry to the log.
func (cl *ChangeLog) push(entry changeEntry) {
	cl.entries = append(cl.entries, entry)
	if addr := entry.dirtied(); addr != (common.Address{}) {
		cl.dirties[addr]++
	}
}

// savepoint returns the current log length, an index that rollback can
// later be called with.
func (cl *ChangeLog) savepoint() int {
	return len(cl.entries)
}

// length reports how many entries are currently on the log.
func (cl *ChangeLog) length() int {
	return len(cl.entries)
}

// rollback pops entries above sp, applying each entry's inverse to s's
// AccountCache in reverse order.
func (cl *ChangeLog) rollback(s *State, sp int) {
	for i := len(cl.entries) - 1; i >= sp; i-- {
		entry := cl.entries[i]
		entry.revert(s)
		if addr := entry.dirtied(); addr != (common.Address{}) {
			if cl.dirties[addr]--; cl.dirties[addr] == 0 {
				delete(cl.dirties, addr)
			}
		}
	}
	cl.entries = cl.entries[:sp]
}

// reset clears the log entirely, called after State.commit.
func (cl *ChangeLog) reset() {
	cl.entries = nil
	cl.dirties = make(map[common.Address]int)
}

// --- concrete entry kinds ---------------------------------------------------

type balanceChange struct {
	addr  common.Address
	delta *big.Int // signed: what was added to the balance, to be subtracted on revert
}

func (c balanceChange) revert(s *State) {
	obj := s.cache.mustGet(c.addr)
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, c.delta)
}
func (c balanceChange) dirtied() common.Address { return c.addr }

type storageChange struct {
	addr common.Address
	key  common.Hash
	prev common.Hash
}

func (c storageChange) revert(s *State) {
	obj := s.cache.mustGet(c.addr)
	obj.setStorage(c.key, c.prev)
}
func (c storageChange) dirtied() common.Address { return c.addr }

type nonceChange struct {
	addr common.Address
	prev uint64
}

func (c nonceChange) revert(s *State) {
	obj := s.cache.mustGet(c.addr)
	obj.account.Nonce = c.prev
}
func (c nonceChange) dirtied() common.Address { return c.addr }

// createChange undoes CreateContract at an address with no prior account: on
// revert, the address is purged from the cache and marked non-existing again.
type createChange struct {
	addr common.Address
}

func (c createChange) revert(s *State) {
	s.cache.remove(c.addr)
}
func (c createChange) dirtied() common.Address { return c.addr }

// resetCreateChange undoes createContract when it overwrote a pre-existing
// account (the CREATE-into-collision path): the previous object is restored
// verbatim.
type resetCreateChange struct {
	addr common.Address
	prev *accountObject
}

func (c resetCreateChange) revert(s *State) {
	s.cache.objects[c.addr] = c.prev
}
func (c resetCreateChange) dirtied() common.Address { return c.addr }

type newCodeChange struct {
	addr         common.Address
	prevCodeHash common.Hash
	prevCode     []byte
}

func (c newCodeChange) revert(s *State) {
	obj := s.cache.mustGet(c.addr)
	obj.account.CodeHash = c.prevCodeHash
	obj.code = c.prevCode
	obj.hasNewCode = false
}
func (c newCodeChange) dirtied() common.Address { return c.addr }

type touchChange struct {
	addr common.Address
}

func (c touchChange) revert(s *State) {
	s.cache.touched.Remove(c.addr)
}
func (c touchChange) dirtied() common.Address { return c.addr }
