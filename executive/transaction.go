// Package executive implements the transaction/message driver: Transaction,
// the Executive state machine, the TransactionException taxonomy, and the
// Receipt it produces, built around an explicit Fresh -> Initialized ->
// Executing -> Finalized|Reverted state machine rather than a single-pass
// apply-and-done entry point.
package executive

import (
	"errors"
	"math/big"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/config"
)

var errGasUintOverflow = errors.New("executive: gas uint64 overflow")

// Transaction is the decoded transaction input (signature recovery and RLP
// decoding are treated as given — From is already the recovered sender).
type Transaction struct {
	From     common.Address
	To       *common.Address // nil means contract creation
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	Value    *big.Int
	Data     []byte
}

// IsContractCreation reports whether this transaction has no recipient
// (To is nil).
func (tx *Transaction) IsContractCreation() bool { return tx.To == nil }

// intrinsicGas computes baseGas: fixed cost plus per-byte data cost, plus
// the higher fixed cost for contract creation.
func (tx *Transaction) intrinsicGas() (uint64, error) {
	gas := config.TxGas
	if tx.IsContractCreation() {
		gas = config.TxGasContractCreation
	}
	if len(tx.Data) == 0 {
		return gas, nil
	}
	var nonZero uint64
	for _, b := range tx.Data {
		if b != 0 {
			nonZero++
		}
	}
	zero := uint64(len(tx.Data)) - nonZero
	zeroCost := zero * config.TxDataZeroGas
	if zero != 0 && (gas+zeroCost)/config.TxDataZeroGas < zero {
		return 0, errGasUintOverflow
	}
	gas += zeroCost
	nonZeroCost := nonZero * config.TxDataNonZeroGas
	if nonZero != 0 && (gas+nonZeroCost)/config.TxDataNonZeroGas < nonZero {
		return 0, errGasUintOverflow
	}
	gas += nonZeroCost
	return gas, nil
}

// LogEntry mirrors evmhost.LogEntry in the shape a Receipt publishes it in:
// {address, topics, data}.
type LogEntry struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is the per-transaction execution outcome.
type Receipt struct {
	Status            bool
	CumulativeGasUsed uint64
	GasUsed           uint64
	Logs              []LogEntry
	ContractAddress   common.Address // zero unless this was a successful CREATE
	Output            []byte         // CALL frame return data; unset for CREATE
	Exception         error          // non-nil TransactionException on failure
}
