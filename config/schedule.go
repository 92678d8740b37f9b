package config

import "math/big"

// GasTable is the per-opcode gas cost table consulted by the VM; it is kept
// separate from Schedule (below) so a VM implementation can select opcode
// costs without caring about the rest of the Schedule.
type GasTable struct {
	ExtcodeSize uint64
	ExtcodeCopy uint64
	Balance     uint64
	SLoad       uint64
	Calls       uint64
	Suicide     uint64
	ExpByte     uint64

	// CreateBySuicide is paid when SELFDESTRUCT sends value to a
	// previously non-existent account (post-EIP-150 account-creation cost).
	CreateBySuicide uint64
}

// GasTableHomestead is the original Frontier/Homestead opcode cost table.
var GasTableHomestead = GasTable{
	ExtcodeSize: 20,
	ExtcodeCopy: 20,
	Balance:     20,
	SLoad:       50,
	Calls:       40,
	Suicide:     0,
	ExpByte:     10,
}

// GasTableEIP150 is the repriced table introduced by the Tangerine Whistle
// (EIP-150) fork, raising the cost of state-touching opcodes.
var GasTableEIP150 = GasTable{
	ExtcodeSize:     700,
	ExtcodeCopy:     700,
	Balance:         400,
	SLoad:           200,
	Calls:           700,
	Suicide:         5000,
	ExpByte:         10,
	CreateBySuicide: 25000,
}

// GasTableEIP158 carries EIP-150's opcode costs forward but bumps ExpByte per
// EIP-158.
var GasTableEIP158 = GasTable{
	ExtcodeSize:     700,
	ExtcodeCopy:     700,
	Balance:         400,
	SLoad:           200,
	Calls:           700,
	Suicide:         5000,
	ExpByte:         50,
	CreateBySuicide: 25000,
}

// Fixed protocol gas constants.
const (
	TxGas                 uint64 = 21000 // per-transaction base cost, no contract creation
	TxGasContractCreation uint64 = 53000 // per-transaction base cost, contract creation
	TxDataZeroGas         uint64 = 4     // per zero byte of tx data
	TxDataNonZeroGas      uint64 = 68    // per non-zero byte of tx data

	SstoreSetGas   uint64 = 20000 // writing a zero slot to a non-zero value
	SstoreResetGas uint64 = 5000  // writing a non-zero slot to a different non-zero value, or to zero
	SstoreClearGas uint64 = 5000  // the gas charged for clearing a slot (in addition to the refund)

	SstoreRefundGas uint64 = 15000 // refund for clearing a storage slot back to zero
	SuicideRefundGas uint64 = 24000 // refund for a SELFDESTRUCT

	MaxCodeSize    uint64 = 24576 // EIP-170 deploy-size cap
	CreateDataGas  uint64 = 200   // per byte of deployed code
	CallValueTransferGas uint64 = 9000
	CallStipend          uint64 = 2300
	CallNewAccountGas    uint64 = 25000

	// MemoryGas and QuadCoeffDiv drive the quadratic memory-expansion cost
	// formula.
	MemoryGas     uint64 = 3
	QuadCoeffDiv  uint64 = 512
)

// Schedule is the per-fork capability bundle the Executive consults before
// and after VM execution. It wraps GasTable with the handful of flags/
// numbers that the Executive's dispatch and finalize logic depend on
// directly rather than merely passing through to the interpreter.
type Schedule struct {
	GasTable GasTable

	MaxCodeSize   uint64
	CreateDataGas uint64

	// ExceptionalFailedCodeDeposit: when true (Homestead+), failing to pay the
	// code-deposit gas at CREATE time raises OutOfGas for the whole frame
	// instead of silently leaving the contract without code.
	ExceptionalFailedCodeDeposit bool

	// RevertReturnsRemainingGas: when true (Byzantium+), an explicit REVERT
	// returns the frame's remaining gas to the caller instead of consuming it
	// all.
	RevertReturnsRemainingGas bool

	SuicideRefundGas uint64

	// EIP158 gates two fork-conditional behaviors: the precompile out-of-gas
	// touch (preserving a historical bug) and the new account's immediate
	// post-create nonce bump. It also selects RemoveEmptyAccounts at commit.
	EIP158 bool
}

// ScheduleFor selects the Schedule active at blockNumber under cc.
func ScheduleFor(cc *ChainConfig, blockNumber *big.Int) Schedule {
	gt := GasTableHomestead
	switch {
	case cc.IsEIP158(blockNumber):
		gt = GasTableEIP158
	case cc.IsEIP150(blockNumber):
		gt = GasTableEIP150
	}
	return Schedule{
		GasTable:                     gt,
		MaxCodeSize:                  MaxCodeSize,
		CreateDataGas:                CreateDataGas,
		ExceptionalFailedCodeDeposit: cc.IsHomestead(blockNumber),
		RevertReturnsRemainingGas:    cc.IsByzantium(blockNumber),
		SuicideRefundGas:             SuicideRefundGas,
		EIP158:                       cc.IsEIP158(blockNumber),
	}
}
