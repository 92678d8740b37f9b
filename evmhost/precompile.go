package evmhost

import (
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/config"
)

// ChainOracle is the external "SealEngine" collaborator: a source of
// per-block gas schedule and precompile behavior. This module owns a
// small, explicit implementation of the identity/sha256/ripemd160/
// ecrecover precompile set rather than a registry.
type ChainOracle interface {
	Schedule(env *EnvInfo) config.Schedule
	IsPrecompiled(addr common.Address, blockNumber *big.Int) bool
	CostOfPrecompiled(addr common.Address, input []byte, blockNumber *big.Int) uint64
	ExecutePrecompiled(addr common.Address, input []byte, blockNumber *big.Int) (bool, []byte)
}

// addresses 0x01-0x04 are the canonical Frontier/Byzantium precompile set;
// 0x04 (identity) costs the same at every fork this module tracks.
var (
	ecrecoverAddr = common.BytesToAddress([]byte{1})
	sha256Addr    = common.BytesToAddress([]byte{2})
	ripemd160Addr = common.BytesToAddress([]byte{3})
	identityAddr  = common.BytesToAddress([]byte{4})
)

const (
	ecrecoverGas = 3000
	sha256Base   = 60
	sha256Word   = 12
	ripemdBase   = 600
	ripemdWord   = 120
	identityBase = 15
	identityWord = 3
)

// StandardOracle is a ChainOracle backed by a fixed ChainConfig, used by the
// CLI driver and by tests in place of a consensus engine.
type StandardOracle struct {
	ChainConfig *config.ChainConfig
}

func NewStandardOracle(cc *config.ChainConfig) *StandardOracle {
	return &StandardOracle{ChainConfig: cc}
}

func (o *StandardOracle) Schedule(env *EnvInfo) config.Schedule {
	return config.ScheduleFor(o.ChainConfig, env.Number)
}

func (o *StandardOracle) IsPrecompiled(addr common.Address, blockNumber *big.Int) bool {
	switch addr {
	case ecrecoverAddr, sha256Addr, ripemd160Addr, identityAddr:
		return true
	default:
		return false
	}
}

func wordCount(n int) uint64 {
	return uint64((n + 31) / 32)
}

// CostOfPrecompiled prices the fixed-address native routines.
func (o *StandardOracle) CostOfPrecompiled(addr common.Address, input []byte, blockNumber *big.Int) uint64 {
	switch addr {
	case ecrecoverAddr:
		return ecrecoverGas
	case sha256Addr:
		return sha256Base + sha256Word*wordCount(len(input))
	case ripemd160Addr:
		return ripemdBase + ripemdWord*wordCount(len(input))
	case identityAddr:
		return identityBase + identityWord*wordCount(len(input))
	default:
		return 0
	}
}

// ExecutePrecompiled runs the native routine at addr against input.
func (o *StandardOracle) ExecutePrecompiled(addr common.Address, input []byte, blockNumber *big.Int) (bool, []byte) {
	switch addr {
	case sha256Addr:
		h := sha256.Sum256(input)
		return true, h[:]
	case ripemd160Addr:
		h := ripemd160.New()
		h.Write(input)
		digest := h.Sum(nil)
		out := make([]byte, 32)
		copy(out[32-len(digest):], digest)
		return true, out
	case identityAddr:
		return true, common.CopyBytes(input)
	case ecrecoverAddr:
		return recoverSignature(input)
	default:
		return false, nil
	}
}

// recoverSignature stands in for the ECRECOVER precompile, whose input is
// hash(32) || v(32) || r(32) || s(32). It performs no signature recovery:
// for every input it returns true with empty output, which is what the real
// contract returns for a malformed or unrecoverable signature. It never
// yields a recovered address.
func recoverSignature(input []byte) (bool, []byte) {
	if len(input) < 128 {
		return true, nil
	}
	return true, nil
}
