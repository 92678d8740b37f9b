package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/database"
)

func newTestCache(t *testing.T) *AccountCache {
	t.Helper()
	trie, err := database.NewMerkleTrie(common.Hash{}, database.NewMemoryDB())
	require.NoError(t, err)
	return NewAccountCache(trie, database.NewCodeDB(database.NewMemoryDB()))
}

func TestAccountCacheNegativeLookupIsCached(t *testing.T) {
	c := newTestCache(t)
	addr := common.HexToAddress("0x01")

	assert.Nil(t, c.get(addr))
	_, negative := c.nonExisting[addr]
	assert.True(t, negative)

	obj, prev := c.create(addr)
	assert.Nil(t, prev)
	assert.NotNil(t, obj)
	_, negative = c.nonExisting[addr]
	assert.False(t, negative, "create must clear the negative cache entry")
}

func TestAccountCacheCloneIsIndependent(t *testing.T) {
	c := newTestCache(t)
	addr := common.HexToAddress("0x02")
	obj := c.mustGet(addr)
	obj.account.Nonce = 5
	obj.overlay[common.HexToHash("0x01")] = common.HexToHash("0xff")

	cpy := obj.clone()
	cpy.account.Nonce = 9
	cpy.overlay[common.HexToHash("0x01")] = common.HexToHash("0x00")

	assert.Equal(t, uint64(5), obj.account.Nonce)
	assert.Equal(t, common.HexToHash("0xff"), obj.overlay[common.HexToHash("0x01")])
}

func TestAccountCacheTouchIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	addr := common.HexToAddress("0x03")

	assert.True(t, c.touch(addr))
	assert.False(t, c.touch(addr), "touching twice must report no change the second time")
	assert.True(t, c.touched.Contains(addr))
}

func TestAccountCacheClearIfLargeKeepsDirtyAndTouched(t *testing.T) {
	c := newTestCache(t)

	dirtyAddr := common.HexToAddress("0xd1")
	touchedAddr := common.HexToAddress("0xd2")
	c.mustGet(dirtyAddr).dirty = true
	c.touch(touchedAddr)
	c.mustGet(touchedAddr)

	for i := 0; i < accountCacheSoftCap+10; i++ {
		h := common.BigToHash(big.NewInt(int64(i) + 1000))
		addr := common.BytesToAddress(h.Bytes())
		c.mustGet(addr)
	}

	c.clearIfLarge()
	assert.Contains(t, c.objects, dirtyAddr)
	assert.Contains(t, c.objects, touchedAddr)
}
