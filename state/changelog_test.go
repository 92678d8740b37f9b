package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entropyio/go-evmcore/common"
)

func TestChangeLogSavepointRollback(t *testing.T) {
	s := newTestState(t)
	cl := s.changelog
	addr := common.HexToAddress("0x01")
	s.cache.mustGet(addr)

	assert.Equal(t, 0, cl.savepoint())
	cl.push(nonceChange{addr: addr, prev: 0})
	cl.push(touchChange{addr: addr})
	assert.Equal(t, 2, cl.length())

	sp := cl.savepoint()
	cl.push(nonceChange{addr: addr, prev: 1})
	assert.Equal(t, 3, cl.length())

	cl.rollback(s, sp)
	assert.Equal(t, sp, cl.length())
}

func TestChangeLogDirtiesTracking(t *testing.T) {
	cl := NewChangeLog()
	a1 := common.HexToAddress("0x01")
	a2 := common.HexToAddress("0x02")

	cl.push(touchChange{addr: a1})
	cl.push(touchChange{addr: a2})
	cl.push(touchChange{addr: a1})
	assert.Equal(t, 2, cl.dirties[a1])
	assert.Equal(t, 1, cl.dirties[a2])

	cl.reset()
	assert.Equal(t, 0, cl.length())
	assert.Empty(t, cl.dirties)
}
