package tracer

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardTracerRecordsOneStepPerOpcode(t *testing.T) {
	tr := NewStandardTracer()
	tr.OnOp(0, 0, 0x60, 3, 99997, 0, 0) // PUSH1
	tr.OnOp(1, 2, 0x01, 3, 99994, 0, 0) // ADD

	require.Len(t, tr.Logs, 2)
	assert.Equal(t, "PUSH1", tr.Logs[0].Op)
	assert.Equal(t, uint64(99997), tr.Logs[0].GasLeft)
	assert.Equal(t, "ADD", tr.Logs[1].Op)
}

func TestStandardTracerResetClearsSteps(t *testing.T) {
	tr := NewStandardTracer()
	tr.OnOp(0, 0, 0x00, 0, 100, 0, 0)
	require.Len(t, tr.Logs, 1)

	tr.Reset()
	assert.Empty(t, tr.Logs)

	tr.OnOp(0, 0, 0x00, 0, 100, 0, 3)
	assert.Len(t, tr.Logs, 1, "a depth jump right after Reset must not be flagged against stale state")
}

func TestJSONLoggerEncodesOneLinePerOpcode(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)
	l.OnOp(0, 0, 0xf3, 0, 5000, 32, 1) // RETURN

	var decoded StepLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "RETURN", decoded.Op)
	assert.Equal(t, uint64(5000), decoded.GasLeft)
	assert.Equal(t, 32, decoded.MemSize)
}

func TestNewTracersGetDistinctRunIDs(t *testing.T) {
	a := NewStandardTracer()
	b := NewStandardTracer()
	assert.NotEqual(t, uuid.Nil, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)

	var buf bytes.Buffer
	l := NewJSONLogger(&buf)
	assert.NotEqual(t, uuid.Nil, l.RunID)
}

func TestOpcodeNameFallsBackToHex(t *testing.T) {
	assert.Equal(t, "PUSH1", opcodeName(0x60))
	assert.Equal(t, "PUSH32", opcodeName(0x7f))
	assert.Equal(t, "DUP1", opcodeName(0x80))
	assert.Equal(t, "SWAP16", opcodeName(0x9f))
	assert.Equal(t, "0x0c", opcodeName(0x0c))
}
