// Package config holds the chain-parameter and gas-schedule oracle the
// Executive consults: fork-activation block numbers (Homestead, EIP-150,
// EIP-158, Byzantium) and the per-fork gas table they select, using the
// same isForked machinery across every fork boundary.
package config

import (
	"fmt"
	"math/big"
)

// ChainConfig is the blockchain config which determines consensus-relevant
// settings: fork-activation block numbers. Consensus-engine selection lives
// outside this module — it is an external collaborator the executor never
// consults.
type ChainConfig struct {
	ChainID *big.Int `json:"chainId"`

	HomesteadBlock *big.Int `json:"homesteadBlock,omitempty"`
	EIP150Block    *big.Int `json:"eip150Block,omitempty"`
	EIP158Block    *big.Int `json:"eip158Block,omitempty"` // a.k.a. Spurious Dragon; activates RemoveEmptyAccounts
	ByzantiumBlock *big.Int `json:"byzantiumBlock,omitempty"`
}

// MainnetChainConfig mirrors the historical Ethereum mainnet fork schedule.
var MainnetChainConfig = &ChainConfig{
	ChainID:        big.NewInt(1),
	HomesteadBlock: big.NewInt(1_150_000),
	EIP150Block:    big.NewInt(2_463_000),
	EIP158Block:    big.NewInt(2_675_000),
	ByzantiumBlock: big.NewInt(4_370_000),
}

// AllByzantiumChainConfig activates every fork at block 0, for tests that
// want a fully-activated Byzantium schedule from genesis.
var AllByzantiumChainConfig = &ChainConfig{
	ChainID:        big.NewInt(1),
	HomesteadBlock: big.NewInt(0),
	EIP150Block:    big.NewInt(0),
	EIP158Block:    big.NewInt(0),
	ByzantiumBlock: big.NewInt(0),
}

func (cc *ChainConfig) String() string {
	return fmt.Sprintf("{ChainID: %v, Homestead: %v, EIP150: %v, EIP158: %v, Byzantium: %v}",
		cc.ChainID, cc.HomesteadBlock, cc.EIP150Block, cc.EIP158Block, cc.ByzantiumBlock)
}

// IsHomestead returns whether num is at or past the Homestead fork.
func (cc *ChainConfig) IsHomestead(num *big.Int) bool { return isForked(cc.HomesteadBlock, num) }

// IsEIP150 returns whether num is at or past the EIP-150 (Tangerine Whistle) fork.
func (cc *ChainConfig) IsEIP150(num *big.Int) bool { return isForked(cc.EIP150Block, num) }

// IsEIP158 returns whether num is at or past the EIP-158 (Spurious Dragon)
// fork, the point at which empty accounts become prunable.
func (cc *ChainConfig) IsEIP158(num *big.Int) bool { return isForked(cc.EIP158Block, num) }

// IsByzantium returns whether num is at or past the Byzantium fork, which
// introduces REVERT-with-gas-return and the static-call mode.
func (cc *ChainConfig) IsByzantium(num *big.Int) bool { return isForked(cc.ByzantiumBlock, num) }

func isForked(s, head *big.Int) bool {
	if s == nil || head == nil {
		return false
	}
	return s.Cmp(head) <= 0
}
