// Package evmhost bridges a virtual machine to state.State: the per-block
// environment (EnvInfo), the per-frame host adapter (HostInterface/ExtVM
// plus SubState), a narrow VM interface, and a minimal reference
// interpreter exercising that interface.
//
// The opcode gas accounting is adapted rather than carried whole from a
// production interpreter, since only a handful of opcodes are needed to
// drive the executive package's tests.
package evmhost

import (
	"math/big"

	"github.com/entropyio/go-evmcore/common"
)

// EnvInfo is the immutable per-block bundle the Executive and every VM
// frame consult, generalized from a concrete header/block pairing to a
// plain value bundle independent of any particular chain type.
type EnvInfo struct {
	Number     *big.Int
	Author     common.Address
	Timestamp  uint64
	GasLimit   uint64
	Difficulty *big.Int

	// GasUsed is the cumulative gas already spent by earlier transactions in
	// this block, consulted by Executive.Initialize's block-gas-limit check.
	GasUsed uint64

	// GetHash maps a block number to its hash for the 256 most recent
	// ancestors, and the zero hash otherwise.
	GetHash func(number uint64) common.Hash
}

// BlockHash is the BLOCKHASH opcode's host-side implementation.
func (e *EnvInfo) BlockHash(number uint64) common.Hash {
	if e.GetHash == nil {
		return common.Hash{}
	}
	return e.GetHash(number)
}
