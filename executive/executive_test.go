package executive

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/config"
	"github.com/entropyio/go-evmcore/database"
	"github.com/entropyio/go-evmcore/evmhost"
	"github.com/entropyio/go-evmcore/state"
)

// newTestExecutive builds an Executive against a fresh, empty state on the
// Byzantium schedule.
func newTestExecutive(t *testing.T) (*Executive, *state.State) {
	t.Helper()
	s, err := state.New(common.Hash{}, database.NewMemoryDB())
	require.NoError(t, err)
	env := &evmhost.EnvInfo{
		Number:     big.NewInt(1),
		Author:     common.HexToAddress("0xc0ffee0000000000000000000000000000c0ffee"),
		Timestamp:  1000,
		GasLimit:   8_000_000,
		Difficulty: big.NewInt(1),
	}
	chain := evmhost.NewStandardOracle(config.AllByzantiumChainConfig)
	e := New(s, env, chain, evmhost.StackMachine{}, nil)
	return e, s
}

func push1(vals ...byte) []byte {
	out := make([]byte, 0, len(vals)*2)
	for _, v := range vals {
		out = append(out, 0x60, v)
	}
	return out
}

// TestS1PureTransfer: sufficient funds, no code at the recipient.
func TestS1PureTransfer(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	b := common.HexToAddress("0x0000000000000000000000000000000000000b2")
	s.AddBalance(a, big.NewInt(1_000_000))

	tx := &Transaction{
		From: a, To: &b, Nonce: 0,
		GasPrice: big.NewInt(1), Gas: 21000, Value: big.NewInt(1000),
	}
	receipt, err := e.Run(tx)
	require.NoError(t, err)

	assert.True(t, receipt.Status)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	assert.Equal(t, uint64(1), s.GetNonce(a))
	assert.Equal(t, big.NewInt(1_000_000-1000-21000), s.Balance(a))
	assert.Equal(t, uint64(0), s.GetNonce(b))
	assert.Equal(t, big.NewInt(1000), s.Balance(b))
	assert.Equal(t, big.NewInt(21000), s.Balance(e.Env.Author))
}

// TestS2OutOfGasBase: gas below the intrinsic cost aborts before any state
// change, including the gas debit.
func TestS2OutOfGasBase(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	b := common.HexToAddress("0x0000000000000000000000000000000000000b2")
	s.AddBalance(a, big.NewInt(1_000_000))

	tx := &Transaction{
		From: a, To: &b, Nonce: 0,
		GasPrice: big.NewInt(1), Gas: 20999, Value: big.NewInt(1000),
	}
	receipt, err := e.Run(tx)
	require.NoError(t, err)

	assert.False(t, receipt.Status)
	assert.ErrorIs(t, receipt.Exception, ErrOutOfGasBase)
	assert.Equal(t, big.NewInt(1_000_000), s.Balance(a), "no gas debit on a pre-execution failure")
	assert.Equal(t, uint64(0), s.GetNonce(a))
}

// TestS3InvalidNonce: a nonce mismatch is terminal with no state change.
func TestS3InvalidNonce(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	b := common.HexToAddress("0x0000000000000000000000000000000000000b2")
	s.AddBalance(a, big.NewInt(1_000_000))
	for i := 0; i < 5; i++ {
		s.IncNonce(a)
	}

	tx := &Transaction{
		From: a, To: &b, Nonce: 4,
		GasPrice: big.NewInt(1), Gas: 21000, Value: big.NewInt(1000),
	}
	receipt, err := e.Run(tx)
	require.NoError(t, err)

	assert.False(t, receipt.Status)
	assert.ErrorIs(t, receipt.Exception, ErrInvalidNonce)
	assert.Equal(t, big.NewInt(1_000_000), s.Balance(a))
}

// TestS4CreateEmptyInitCode: CREATE with empty init code derives the address
// deterministically, bumps the sender's nonce, and (post-EIP-158) bumps the
// new account's nonce to guard against collisions, depositing no code.
func TestS4CreateEmptyInitCode(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	s.AddBalance(a, big.NewInt(1_000_000))

	tx := &Transaction{
		From: a, To: nil, Nonce: 0,
		GasPrice: big.NewInt(1), Gas: 53000, Value: big.NewInt(0),
	}
	receipt, err := e.Run(tx)
	require.NoError(t, err)

	assert.True(t, receipt.Status)
	assert.Equal(t, uint64(53000), receipt.GasUsed)
	assert.Equal(t, uint64(1), s.GetNonce(a))
	assert.NotEqual(t, common.Address{}, receipt.ContractAddress)
	assert.Equal(t, uint64(1), s.GetNonce(receipt.ContractAddress), "post-EIP-158 collision guard")
	assert.Equal(t, big.NewInt(0), s.Balance(receipt.ContractAddress))
	assert.False(t, s.AddressHasCode(receipt.ContractAddress))
}

// TestDeriveCreateAddressIsDeterministic verifies that for a fixed
// (sender, nonce) pair, CREATE addresses are a pure function.
func TestDeriveCreateAddressIsDeterministic(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	addr1 := deriveCreateAddress(a, 3)
	addr2 := deriveCreateAddress(a, 3)
	addr3 := deriveCreateAddress(a, 4)
	assert.Equal(t, addr1, addr2)
	assert.NotEqual(t, addr1, addr3)
}

// TestCallFrameRevertDiscardsStorageAndCreditsGas exercises a single-frame
// CALL that SSTOREs then REVERTs: it must leave the target's storage
// untouched, while the non-revertible up-front gas debit and the final fee
// accounting still happen.
func TestCallFrameRevertDiscardsStorageAndCreditsGas(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	d := common.HexToAddress("0x00000000000000000000000000000000000d42")
	s.AddBalance(a, big.NewInt(1_000_000))
	require.NoError(t, s.CreateContract(d))
	// PUSH1 42 PUSH1 7 SSTORE PUSH1 0 PUSH1 0 REVERT
	s.SetNewCode(d, append(push1(42, 7), 0x55, 0x60, 0x00, 0x60, 0x00, 0xfd))

	tx := &Transaction{
		From: a, To: &d, Nonce: 0,
		GasPrice: big.NewInt(1), Gas: 100000, Value: big.NewInt(0),
	}
	receipt, err := e.Run(tx)
	require.NoError(t, err)

	assert.False(t, receipt.Status)
	assert.ErrorIs(t, receipt.Exception, ErrRevert)
	assert.Equal(t, common.Hash{}, s.Storage(d, common.HexToHash("0x07")), "reverted SSTORE must not persist")
	assert.True(t, receipt.GasUsed > 0 && receipt.GasUsed < tx.Gas, "byzantium revert returns the remaining gas to the caller")
}

// TestNestedCallRevertDoesNotPoisonParentFrame drives the Go-level nested
// dispatch mechanics a CALL opcode would trigger via ExtVM.Call: D's frame
// logs, SSTOREs, then reverts; C's own prior SSTORE and log survive and merge
// into the transaction's SubState.
func TestNestedCallRevertDoesNotPoisonParentFrame(t *testing.T) {
	e, s := newTestExecutive(t)
	c := common.HexToAddress("0x00000000000000000000000000000000000c11")
	d := common.HexToAddress("0x00000000000000000000000000000000000d22")
	require.NoError(t, s.CreateContract(c))
	require.NoError(t, s.CreateContract(d))
	// PUSH1 0 PUSH1 0 LOG0 PUSH1 42 PUSH1 7 SSTORE PUSH1 0 PUSH1 0 REVERT
	s.SetNewCode(d, []byte{0x60, 0x00, 0x60, 0x00, 0xa0, 0x60, 0x2a, 0x60, 0x07, 0x55, 0x60, 0x00, 0x60, 0x00, 0xfd})

	key5 := common.HexToHash("0x05")
	key7 := common.HexToHash("0x07")

	txSub := evmhost.NewSubState()
	cSub := evmhost.NewSubState()

	// C's own prior SSTORE and log, performed directly (standing in for the
	// part of C's frame that runs before it issues a CALL).
	s.SetStorage(c, key5, common.HexToHash("0x63")) // 99
	cSub.AddLog(evmhost.LogEntry{Address: c, Data: []byte("c-log")})

	// The nested CALL into D: exactly the path ExtVM.Call takes.
	_, _, derr := e.callDispatchReentrant(evmhost.CallParameters{
		Caller: c, CodeAddress: d, ReceiveAddress: d,
		Value: big.NewInt(0), ApparentValue: big.NewInt(0), Gas: 50000,
	}, cSub)
	assert.ErrorIs(t, derr, ErrRevert)

	txSub.Merge(cSub)

	assert.Equal(t, common.HexToHash("0x63"), s.Storage(c, key5), "C's own prior SSTORE survives D's revert")
	assert.Equal(t, common.Hash{}, s.Storage(d, key7), "D's SSTORE does not survive its own revert")
	require.Len(t, txSub.Logs, 1, "D's discarded log must not appear; only C's own log merges up")
	assert.Equal(t, c, txSub.Logs[0].Address)
}

// TestFinalizeSelfDestructRefundCap covers a 100000-gas budget, 40000 gas
// consumed before SELFDESTRUCT, refund capped at half of gas used.
func TestFinalizeSelfDestructRefundCap(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	victim := common.HexToAddress("0x00000000000000000000000000000000000bad")
	s.AddBalance(a, big.NewInt(0))
	s.AddBalance(victim, big.NewInt(5))

	tx := &Transaction{From: a, Gas: 100000, GasPrice: big.NewInt(1)}
	sub := evmhost.NewSubState()
	sub.AddSuicide(victim)

	receipt := e.Finalize(tx, sub, 60000, common.Address{}, nil)

	assert.True(t, receipt.Status)
	assert.Equal(t, uint64(20000), receipt.GasUsed, "refund cap: min((100000-60000)/2, 24000) = 20000")
	assert.Equal(t, big.NewInt(80000), s.Balance(a))
	assert.Equal(t, big.NewInt(20000), s.Balance(e.Env.Author))

	_, err := s.Commit(state.RemoveEmptyAccounts)
	require.NoError(t, err)
	assert.False(t, s.AddressExists(victim), "killed account is purged at commit")
}

// TestFinalizeGasOnlyStillPaysMinerOnFailure verifies that even a reverted
// transaction pays the sender's unspent gas back and the miner's share from
// the non-revertible up-front debit.
func TestFinalizeGasOnlyStillPaysMinerOnFailure(t *testing.T) {
	e, s := newTestExecutive(t)
	a := common.HexToAddress("0x0000000000000000000000000000000000000a1")

	tx := &Transaction{From: a, Gas: 100000, GasPrice: big.NewInt(2)}
	receipt := e.Finalize(tx, evmhost.NewSubState(), 30000, common.Address{}, ErrRevert)

	assert.False(t, receipt.Status)
	assert.ErrorIs(t, receipt.Exception, ErrRevert)
	assert.Equal(t, uint64(70000), receipt.GasUsed)
	assert.Equal(t, big.NewInt(60000), s.Balance(a))
	assert.Equal(t, big.NewInt(140000), s.Balance(e.Env.Author))
}

// TestPrecompileOutOfGasStillTouchesAddress preserves the historical
// RIPEMD-style bug codified into consensus: insufficient gas for a
// precompile call still touches the address post-EIP-158, so empty-account
// cleanup can purge it.
func TestPrecompileOutOfGasStillTouchesAddress(t *testing.T) {
	e, s := newTestExecutive(t)
	caller := common.HexToAddress("0x0000000000000000000000000000000000000a1")
	ripemd := common.BytesToAddress([]byte{3})
	sub := evmhost.NewSubState()

	_, _, err := e.callDispatch(evmhost.CallParameters{
		Caller: caller, CodeAddress: ripemd, ReceiveAddress: ripemd,
		Value: big.NewInt(0), ApparentValue: big.NewInt(0), Gas: 1,
	}, true, sub)

	assert.ErrorIs(t, err, ErrOutOfGasBase)
	assert.True(t, s.AddressExists(ripemd), "touch-on-OOG must still register the account")
}
