package evmhost

import (
	"math/big"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/internal/logger"
	"github.com/entropyio/go-evmcore/state"
)

var log = logger.NewLogger("[evmhost]")

// CallParameters bundles the arguments of a CALL/CREATE re-entry.
type CallParameters struct {
	Caller         common.Address
	CodeAddress    common.Address
	ReceiveAddress common.Address
	Value          *big.Int
	ApparentValue  *big.Int
	Gas            uint64
	Data           []byte
}

// CallFunc and CreateFunc are supplied by the Executive when it constructs
// an ExtVM for a frame: re-entry must go through the transaction state
// machine (savepoints, nonce bumps, precompile dispatch), not directly
// through the host, so the host holds these as borrowed callbacks rather
// than depending on the executive package directly (which would make an
// import cycle, since executive already depends on evmhost).
type CallFunc func(p CallParameters) ([]byte, error)
type CreateFunc func(p CallParameters) (common.Address, []byte, error)

// ExtVM is the VM-facing host adapter constructed per call frame. It plays
// the role an EVM/Contract split plays for StateDB access, bundling an
// explicit frame-parameter list with a SubState accumulator for side
// effects that only take hold once the whole transaction succeeds.
type ExtVM struct {
	State *state.State
	Env   *EnvInfo
	Chain ChainOracle

	CodeAddress   common.Address
	Caller        common.Address
	Origin        common.Address
	ApparentValue *big.Int
	GasPrice      *big.Int
	Input         []byte
	Code          []byte
	CodeHash      common.Hash
	Depth         int

	Sub *SubState

	call   CallFunc
	create CreateFunc
}

// NewExtVM constructs a host adapter for one frame. call/create are bound
// by the Executive to its own re-entry logic.
func NewExtVM(s *state.State, env *EnvInfo, chain ChainOracle, call CallFunc, create CreateFunc) *ExtVM {
	return &ExtVM{
		State:  s,
		Env:    env,
		Chain:  chain,
		Sub:    NewSubState(),
		call:   call,
		create: create,
	}
}

// GetStorage implements SLOAD against the frame's own account.
func (e *ExtVM) GetStorage(key common.Hash) common.Hash {
	return e.State.Storage(e.CodeAddress, key)
}

// SetStorage implements SSTORE against the frame's own account.
func (e *ExtVM) SetStorage(key, value common.Hash) {
	e.State.SetStorage(e.CodeAddress, key, value)
}

// GetBalance implements BALANCE.
func (e *ExtVM) GetBalance(addr common.Address) *big.Int {
	return e.State.Balance(addr)
}

// GetCodeSize implements EXTCODESIZE.
func (e *ExtVM) GetCodeSize(addr common.Address) int {
	return len(e.State.Code(addr))
}

// GetCode implements EXTCODECOPY's source.
func (e *ExtVM) GetCode(addr common.Address) []byte {
	return e.State.Code(addr)
}

// GetCodeHash implements EXTCODEHASH.
func (e *ExtVM) GetCodeHash(addr common.Address) common.Hash {
	return e.State.CodeHash(addr)
}

// BlockHash implements BLOCKHASH.
func (e *ExtVM) BlockHash(number uint64) common.Hash {
	return e.Env.BlockHash(number)
}

// Log implements LOG0..LOG4, recording into the frame's SubState.
func (e *ExtVM) Log(topics []common.Hash, data []byte) {
	e.Sub.AddLog(LogEntry{
		Address: e.CodeAddress,
		Topics:  topics,
		Data:    common.CopyBytes(data),
	})
}

// SelfDestruct implements SELFDESTRUCT: transfers the account's entire
// balance to beneficiary and schedules the account for deletion at
// finalize time. No refund is granted here: Executive.Finalize adds the
// SELFDESTRUCT refund once per address in the SubState's suicide set, so
// repeated SELFDESTRUCTs on one account count once.
func (e *ExtVM) SelfDestruct(beneficiary common.Address) {
	balance := e.State.Balance(e.CodeAddress)
	if balance.Sign() != 0 {
		_ = e.State.TransferBalance(e.CodeAddress, beneficiary, balance)
	} else {
		e.State.Touch(beneficiary)
	}
	e.Sub.AddSuicide(e.CodeAddress)
}

// Call re-enters the Executive's CALL dispatch for a sub-message.
func (e *ExtVM) Call(p CallParameters) ([]byte, error) {
	if e.call == nil {
		return nil, ErrNoReentry
	}
	return e.call(p)
}

// Create re-enters the Executive's CREATE dispatch for a sub-contract.
func (e *ExtVM) Create(p CallParameters) (common.Address, []byte, error) {
	if e.create == nil {
		return common.Address{}, nil, ErrNoReentry
	}
	return e.create(p)
}

// ErrNoReentry is returned by Call/Create when the host was built without
// re-entry callbacks, e.g. by a unit test exercising opcodes in isolation.
var ErrNoReentry = errNoReentry{}

type errNoReentry struct{}

func (errNoReentry) Error() string { return "evmhost: no call/create reentry configured" }
