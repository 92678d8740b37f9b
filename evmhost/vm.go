package evmhost

import (
	"errors"

	"github.com/entropyio/go-evmcore/config"
)

// OnOpFunc is the per-step callback a tracer installs to observe every
// opcode a running frame executes, threaded down through Exec the same way
// a debugger hooks a VM's fetch-decode-execute loop.
type OnOpFunc func(steps uint64, pc uint64, op byte, gasCost uint64, gasLeft uint64, memSize int, depth int)

// VM is the narrow interpreter-or-JIT boundary: a single exec call plus a
// host callback table. A tagged variant over interpreter and JIT
// implementations can satisfy this interface without the rest of the
// module caring which one is installed. Exec mutates *gas in place and
// returns the frame's output bytes, or a VMError identifying which
// TransactionException the Executive should map the failure to.
type VM interface {
	Exec(gas *uint64, host *ExtVM, schedule config.Schedule, onOp OnOpFunc) ([]byte, error)
}

// VMError carries the VM-level exception taxonomy for in-frame failures (as
// opposed to pre-execution TransactionExceptions, which the executive
// package owns). Reverted additionally carries the frame's return data,
// since REVERT (unlike other exceptions) returns data.
type VMError struct {
	Kind     string
	Reverted bool
	Data     []byte
}

func (e *VMError) Error() string { return "evmhost: vm exception: " + e.Kind }

// Exception kinds covering the in-frame subset of the transaction
// exception taxonomy.
const (
	ExcOutOfGas             = "OutOfGas"
	ExcBadJumpDestination   = "BadJumpDestination"
	ExcBadInstruction        = "BadInstruction"
	ExcStackUnderflow        = "StackUnderflow"
	ExcOutOfStack            = "OutOfStack"
	ExcRevert                = "Revert"
	ExcStaticModeViolation   = "StaticModeViolation"
)

// ErrStaticModeViolation is a convenience sentinel for hosts refusing a
// state-mutating opcode inside a STATICCALL frame. Nothing in this module
// returns it: the reference interpreter has no STATICCALL, and neither
// ExtVM nor Schedule tracks a static mode.
var ErrStaticModeViolation = errors.New("evmhost: state mutation attempted in a static call frame")
