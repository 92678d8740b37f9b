// Package tracer implements a pluggable per-step callback: a sequence of
// structured events, one per opcode, that a debugger or JSON-RPC trace
// endpoint can consume. An OnOpFunc is threaded down into the VM's exec
// call so each step can be captured as it happens, mirroring the shape of
// a CaptureState(env, pc, op, gas, cost, memory, stack, contract, depth,
// err) callback.
package tracer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/entropyio/go-evmcore/internal/logger"
)

var log = logger.NewLogger("[tracer]")

// StepLog is one record of the structured event stream: opcode mnemonic,
// PC, remaining gas, and step cost. The OnOpFunc callback carries no stack,
// memory, or storage snapshot, so nothing in this package fills in the
// Stack and Memory fields; they are always empty and omitted from JSON
// output.
type StepLog struct {
	Steps   uint64   `json:"steps"`
	PC      uint64   `json:"pc"`
	Op      string   `json:"op"`
	GasCost uint64   `json:"gasCost"`
	GasLeft uint64   `json:"gas"`
	MemSize int      `json:"memSize"`
	Depth   int      `json:"depth"`
	Stack   []string `json:"stack,omitempty"`
	Memory  []string `json:"memory,omitempty"`
}

// Tracer is the narrow interface the executive package depends on
// (executive.Tracer), kept identical in shape so any implementation here
// can be passed straight into executive.New.
type Tracer interface {
	OnOp(steps uint64, pc uint64, op byte, gasCost uint64, gasLeft uint64, memSize int, depth int)
}

// StandardTracer accumulates one StepLog per opcode and flags depth
// transitions that jump by more than one level versus the previous step —
// a trace-layer warning, not a consensus fault.
type StandardTracer struct {
	// RunID identifies one Executive.Run invocation, so steps from
	// concurrently traced transactions can be told apart once collected into
	// a shared sink (a log aggregator, a JSON-RPC trace store).
	RunID uuid.UUID

	Logs []StepLog

	lastDepth int
	haveLast  bool
}

// NewStandardTracer returns an empty StandardTracer stamped with a fresh
// run identifier.
func NewStandardTracer() *StandardTracer {
	return &StandardTracer{RunID: uuid.New()}
}

// OnOp implements Tracer and executive.Tracer.
func (t *StandardTracer) OnOp(steps uint64, pc uint64, op byte, gasCost uint64, gasLeft uint64, memSize int, depth int) {
	if t.haveLast {
		if delta := depth - t.lastDepth; delta > 1 || delta < -1 {
			log.Warning("trace depth jump exceeds ±1", "from", t.lastDepth, "to", depth, "steps", steps)
		}
	}
	t.lastDepth = depth
	t.haveLast = true

	t.Logs = append(t.Logs, StepLog{
		Steps:   steps,
		PC:      pc,
		Op:      opcodeName(op),
		GasCost: gasCost,
		GasLeft: gasLeft,
		MemSize: memSize,
		Depth:   depth,
	})
}

// Reset discards every recorded step, for reuse across transactions within
// one block without reallocating the backing slice.
func (t *StandardTracer) Reset() {
	t.Logs = t.Logs[:0]
	t.haveLast = false
}

// JSONLogger streams one JSON object per opcode to an io.Writer, driven by
// a single OnOpFunc callback rather than a multi-method logging interface.
type JSONLogger struct {
	RunID   uuid.UUID
	encoder *json.Encoder
}

// NewJSONLogger returns a JSONLogger writing newline-delimited JSON to w,
// stamped with a fresh run identifier.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{RunID: uuid.New(), encoder: json.NewEncoder(w)}
}

// OnOp implements Tracer and executive.Tracer.
func (l *JSONLogger) OnOp(steps uint64, pc uint64, op byte, gasCost uint64, gasLeft uint64, memSize int, depth int) {
	entry := StepLog{
		Steps: steps, PC: pc, Op: opcodeName(op),
		GasCost: gasCost, GasLeft: gasLeft, MemSize: memSize, Depth: depth,
	}
	if err := l.encoder.Encode(entry); err != nil {
		log.Error("failed to encode trace step", "err", err, "runID", l.RunID)
	}
}

// opcodeNames covers the subset of opcodes evmhost.StackMachine
// understands; anything else prints as a 0x-prefixed hex byte, matching the
// teacher's fallback for not-yet-assigned or unknown opcodes.
var opcodeNames = map[byte]string{
	0x00: "STOP", 0x01: "ADD", 0x02: "MUL", 0x03: "SUB", 0x04: "DIV",
	0x10: "LT", 0x11: "GT", 0x14: "EQ", 0x15: "ISZERO", 0x16: "AND", 0x17: "OR", 0x19: "NOT",
	0x20: "SHA3",
	0x30: "ADDRESS", 0x31: "BALANCE", 0x33: "CALLER", 0x34: "CALLVALUE",
	0x35: "CALLDATALOAD", 0x36: "CALLDATASIZE", 0x38: "CODESIZE", 0x3a: "GASPRICE", 0x3b: "EXTCODESIZE",
	0x40: "BLOCKHASH",
	0x50: "POP", 0x51: "MLOAD", 0x52: "MSTORE", 0x54: "SLOAD", 0x55: "SSTORE",
	0x56: "JUMP", 0x57: "JUMPI", 0x58: "PC", 0x59: "MSIZE", 0x5a: "GAS", 0x5b: "JUMPDEST",
	0xa0: "LOG0", 0xa1: "LOG1", 0xa2: "LOG2", 0xa3: "LOG3", 0xa4: "LOG4",
	0xf3: "RETURN", 0xfd: "REVERT", 0xff: "SELFDESTRUCT",
}

func opcodeName(op byte) string {
	if op >= 0x60 && op <= 0x7f {
		return fmt.Sprintf("PUSH%d", op-0x60+1)
	}
	if op >= 0x80 && op <= 0x8f {
		return fmt.Sprintf("DUP%d", op-0x80+1)
	}
	if op >= 0x90 && op <= 0x9f {
		return fmt.Sprintf("SWAP%d", op-0x90+1)
	}
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", op)
}
