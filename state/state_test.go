package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/database"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New(common.Hash{}, database.NewMemoryDB())
	require.NoError(t, err)
	return s
}

func TestBalanceAddSub(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")

	s.AddBalance(addr, big.NewInt(100))
	assert.Equal(t, big.NewInt(100), s.Balance(addr))

	require.NoError(t, s.SubBalance(addr, big.NewInt(40)))
	assert.Equal(t, big.NewInt(60), s.Balance(addr))

	err := s.SubBalance(addr, big.NewInt(1000))
	assert.ErrorIs(t, err, ErrNotEnoughCash)
	assert.Equal(t, big.NewInt(60), s.Balance(addr), "failed subBalance must not mutate state")
}

func TestTransferBalanceAtomicity(t *testing.T) {
	s := newTestState(t)
	from := common.HexToAddress("0x0000000000000000000000000000000000000001")
	to := common.HexToAddress("0x0000000000000000000000000000000000000002")
	s.AddBalance(from, big.NewInt(50))

	err := s.TransferBalance(from, to, big.NewInt(100))
	assert.ErrorIs(t, err, ErrNotEnoughCash)
	assert.Equal(t, big.NewInt(50), s.Balance(from))
	assert.Equal(t, big.NewInt(0), s.Balance(to))

	require.NoError(t, s.TransferBalance(from, to, big.NewInt(50)))
	assert.Equal(t, big.NewInt(0), s.Balance(from))
	assert.Equal(t, big.NewInt(50), s.Balance(to))
}

// TestRollbackIdentity is the savepoint/rollback round-trip property: taking
// a savepoint, mutating arbitrarily, then rolling back, must leave the
// account set observably identical.
func TestRollbackIdentity(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000042")
	key := common.HexToHash("0x01")

	s.AddBalance(addr, big.NewInt(1000))
	s.IncNonce(addr)
	s.SetStorage(addr, key, common.HexToHash("0xaa"))

	rootBefore, err := s.Commit(KeepEmptyAccounts)
	require.NoError(t, err)
	balBefore := s.Balance(addr)
	nonceBefore := s.GetNonce(addr)
	storageBefore := s.Storage(addr, key)

	sp := s.Savepoint()
	s.AddBalance(addr, big.NewInt(500))
	s.IncNonce(addr)
	s.SetStorage(addr, key, common.HexToHash("0xbb"))
	other := common.HexToAddress("0x0000000000000000000000000000000000000099")
	require.NoError(t, s.CreateContract(other))
	s.SetNewCode(other, []byte{0x60, 0x00})

	s.Rollback(sp)

	assert.Equal(t, balBefore, s.Balance(addr))
	assert.Equal(t, nonceBefore, s.GetNonce(addr))
	assert.Equal(t, storageBefore, s.Storage(addr, key))
	assert.False(t, s.AddressExists(other), "created account must vanish on rollback")

	rootAfter, err := s.Commit(KeepEmptyAccounts)
	require.NoError(t, err)
	assert.Equal(t, rootBefore, rootAfter, "rollback must restore a bit-identical root hash")
}

func TestCreateContractRejectsCollision(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000007")

	require.NoError(t, s.CreateContract(addr))
	s.SetNewCode(addr, []byte{0x01})

	err := s.CreateContract(addr)
	assert.ErrorIs(t, err, ErrAddressInUse)
}

func TestCreateContractIntoCollisionRollback(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000008")
	s.AddBalance(addr, big.NewInt(77))
	_, err := s.Commit(KeepEmptyAccounts)
	require.NoError(t, err)

	sp := s.Savepoint()
	require.NoError(t, s.CreateContract(addr))
	s.SetNewCode(addr, []byte{0x01, 0x02})
	s.Rollback(sp)

	assert.Equal(t, big.NewInt(77), s.Balance(addr))
	assert.False(t, s.AddressHasCode(addr))
}

func TestStorageOverlayDeleteOnCommit(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000000009")
	key := common.HexToHash("0x05")

	s.AddBalance(addr, big.NewInt(1))
	s.SetStorage(addr, key, common.HexToHash("0x01"))
	_, err := s.Commit(KeepEmptyAccounts)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x01"), s.Storage(addr, key))

	s.SetStorage(addr, key, common.Hash{})
	_, err = s.Commit(KeepEmptyAccounts)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, s.Storage(addr, key))
}

func TestCommitRemoveEmptyAccounts(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x000000000000000000000000000000000000aa")

	s.AddBalance(addr, new(big.Int)) // zero-value touch, per EIP-158
	assert.True(t, s.AddressExists(addr))

	_, err := s.Commit(RemoveEmptyAccounts)
	require.NoError(t, err)
	assert.False(t, s.AddressExists(addr), "touched empty account must be purged under RemoveEmptyAccounts")
}

func TestCodeRoundTrip(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x000000000000000000000000000000000000bb")
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01}

	require.NoError(t, s.CreateContract(addr))
	s.SetNewCode(addr, code)
	assert.Equal(t, code, s.Code(addr))
	assert.Equal(t, common.Keccak256Hash(code), s.CodeHash(addr))
	assert.True(t, s.AddressHasCode(addr))

	_, err := s.Commit(KeepEmptyAccounts)
	require.NoError(t, err)
	assert.Equal(t, code, s.Code(addr), "code must survive a commit that flushes the cache")
}
