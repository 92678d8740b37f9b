package evmhost

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/entropyio/go-evmcore/common"
)

// LogEntry is a single emitted log record.
type LogEntry struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// SubState is the per-frame accumulator of suicides, logs, refunds, and
// touched addresses. It merges wholesale into the parent frame's SubState
// on success, and is discarded wholesale on failure — unlike State's
// ChangeLog, it needs no per-entry undo bookkeeping, since failure simply
// means "do not merge".
type SubState struct {
	Suicides mapset.Set
	Logs     []LogEntry
	Refunds  uint64
	Touched  mapset.Set
}

// NewSubState returns an empty accumulator.
func NewSubState() *SubState {
	return &SubState{
		Suicides: mapset.NewThreadUnsafeSet(),
		Touched:  mapset.NewThreadUnsafeSet(),
	}
}

// AddSuicide marks addr for deletion at transaction finalize.
func (s *SubState) AddSuicide(addr common.Address) {
	s.Suicides.Add(addr)
}

// HasSuicided reports whether addr has already self-destructed this
// transaction (SELFDESTRUCT is idempotent w.r.t. the refund it grants).
func (s *SubState) HasSuicided(addr common.Address) bool {
	return s.Suicides.Contains(addr)
}

// AddLog appends entry, preserving emission order.
func (s *SubState) AddLog(entry LogEntry) {
	s.Logs = append(s.Logs, entry)
}

// AddRefund increases the pending SSTORE/SELFDESTRUCT refund counter.
func (s *SubState) AddRefund(gas uint64) {
	s.Refunds += gas
}

// SubRefund decreases the pending refund counter; it never underflows below
// zero. The legacy SSTORE pricing in sstoreGas only adds refunds and never
// calls it.
func (s *SubState) SubRefund(gas uint64) {
	if gas > s.Refunds {
		s.Refunds = 0
		return
	}
	s.Refunds -= gas
}

// Touch marks addr as touched this frame.
func (s *SubState) Touch(addr common.Address) {
	s.Touched.Add(addr)
}

// Merge folds child into s, the successful-return path for a sub-call: its
// suicides, touches, logs and refunds all become the parent frame's own.
func (s *SubState) Merge(child *SubState) {
	if child == nil {
		return
	}
	child.Suicides.Each(func(v interface{}) bool {
		s.Suicides.Add(v)
		return false
	})
	child.Touched.Each(func(v interface{}) bool {
		s.Touched.Add(v)
		return false
	})
	s.Logs = append(s.Logs, child.Logs...)
	s.Refunds += child.Refunds
}
