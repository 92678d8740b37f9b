package evmhost

import (
	"math/big"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/config"
)

// StackMachine is a minimal, deliberately non-production interpreter: just
// enough of the EVM opcode set to drive the Executive's state machine and
// its tests. A production interpreter (or a JIT) is out of this module's
// scope — this exists as the VM interface's reference implementation and
// test double, not a consensus-grade EVM.
//
// Memory expansion follows the standard quadratic formula, and SSTORE
// follows the legacy (pre-net-gas-metering) three-case pricing rule.
type StackMachine struct{}

// base per-opcode costs for the "step" classes this interpreter implements,
// named after the familiar GasQuickStep/GasFastestStep/... tiers.
const (
	gasQuickStep   uint64 = 2
	gasFastestStep uint64 = 3
	gasFastStep    uint64 = 5
	gasMidStep     uint64 = 8
	gasSlowStep    uint64 = 10
	gasExtStep     uint64 = 20
)

// Opcodes implemented by StackMachine.
const (
	opStop         = 0x00
	opAdd          = 0x01
	opMul          = 0x02
	opSub          = 0x03
	opDiv          = 0x04
	opLt           = 0x10
	opGt           = 0x11
	opEq           = 0x14
	opIsZero       = 0x15
	opAnd          = 0x16
	opOr           = 0x17
	opNot          = 0x19
	opSha3         = 0x20
	opAddress      = 0x30
	opBalance      = 0x31
	opCaller       = 0x33
	opCallValue    = 0x34
	opCallDataLoad = 0x35
	opCallDataSize = 0x36
	opCodeSize     = 0x38
	opGasPrice     = 0x3a
	opExtCodeSize  = 0x3b
	opBlockHash    = 0x40
	opPop          = 0x50
	opMLoad        = 0x51
	opMStore       = 0x52
	opSLoad        = 0x54
	opSStore       = 0x55
	opJump         = 0x56
	opJumpI        = 0x57
	opPC           = 0x58
	opMSize        = 0x59
	opGas          = 0x5a
	opJumpDest     = 0x5b
	opPush1        = 0x60
	opPush32       = 0x7f
	opDup1         = 0x80
	opDup16        = 0x8f
	opSwap1        = 0x90
	opSwap16       = 0x9f
	opLog0         = 0xa0
	opLog4         = 0xa4
	opReturn       = 0xf3
	opRevert       = 0xfd
	opSelfDestruct = 0xff
)

func wordSize(size uint64) uint64 {
	return (size + 31) / 32
}

// memoryExpansionCost computes the marginal quadratic cost of growing mem to
// at least newSize bytes.
func memoryExpansionCost(memLen, newSize uint64) uint64 {
	if newSize <= memLen {
		return 0
	}
	words := wordSize(newSize)
	oldWords := wordSize(memLen)
	cost := func(w uint64) uint64 { return w*config.MemoryGas + (w*w)/config.QuadCoeffDiv }
	return cost(words) - cost(oldWords)
}

// sstoreGas implements the legacy (pre-EIP-1283) three-case SSTORE pricing
// rule.
func sstoreGas(gt config.GasTable, host *ExtVM, key, newValue common.Hash) uint64 {
	current := host.GetStorage(key)
	switch {
	case current == (common.Hash{}) && newValue != (common.Hash{}):
		return config.SstoreSetGas
	case current != (common.Hash{}) && newValue == (common.Hash{}):
		host.Sub.AddRefund(config.SstoreRefundGas)
		return config.SstoreClearGas
	default:
		return config.SstoreResetGas
	}
}

type machineState struct {
	stack  []*big.Int
	mem    []byte
	pc     uint64
	steps  uint64
	halted bool
	output []byte
}

func (m *machineState) push(v *big.Int) { m.stack = append(m.stack, v) }

func (m *machineState) pop() (*big.Int, error) {
	if len(m.stack) == 0 {
		return nil, &VMError{Kind: ExcStackUnderflow}
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *machineState) peek(n int) (*big.Int, error) {
	if len(m.stack) <= n {
		return nil, &VMError{Kind: ExcStackUnderflow}
	}
	return m.stack[len(m.stack)-1-n], nil
}

func (m *machineState) ensure(size uint64) {
	if uint64(len(m.mem)) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, m.mem)
	m.mem = grown
}

func toU256(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func toHash(v *big.Int) common.Hash {
	return common.BigToHash(v)
}

// Exec drives the interpreter loop against code in host.Code, returning
// output bytes on STOP/RETURN, or a *VMError (possibly Reverted) otherwise.
func (StackMachine) Exec(gas *uint64, host *ExtVM, schedule config.Schedule, onOp OnOpFunc) ([]byte, error) {
	code := host.Code
	m := &machineState{}
	charge := func(cost uint64) error {
		if *gas < cost {
			*gas = 0
			return &VMError{Kind: ExcOutOfGas}
		}
		*gas -= cost
		return nil
	}

	for int(m.pc) < len(code) && !m.halted {
		op := code[m.pc]
		var cost uint64 = gasFastestStep
		startGas := *gas
		startPC := m.pc

		switch {
		case op == opStop:
			if onOp != nil {
				onOp(m.steps, m.pc, op, 0, *gas, len(m.mem), host.Depth)
			}
			return nil, nil
		case op >= opPush1 && op <= opPush32:
			n := int(op-opPush1) + 1
			end := int(m.pc) + 1 + n
			if end > len(code) {
				end = len(code)
			}
			data := make([]byte, n)
			copy(data, code[m.pc+1:end])
			m.push(toU256(data))
			m.pc += uint64(n)
			cost = gasFastestStep
		case op == opDup1 || (op > opDup1 && op <= opDup16):
			n := int(op - opDup1)
			v, err := m.peek(n)
			if err != nil {
				return nil, err
			}
			m.push(new(big.Int).Set(v))
			cost = gasFastestStep
		case op == opSwap1 || (op > opSwap1 && op <= opSwap16):
			n := int(op-opSwap1) + 1
			if len(m.stack) <= n {
				return nil, &VMError{Kind: ExcStackUnderflow}
			}
			i, j := len(m.stack)-1, len(m.stack)-1-n
			m.stack[i], m.stack[j] = m.stack[j], m.stack[i]
			cost = gasFastestStep
		case op == opPop:
			if _, err := m.pop(); err != nil {
				return nil, err
			}
			cost = gasQuickStep
		case op == opAdd, op == opSub, op == opMul, op == opDiv:
			b, err := m.pop()
			if err != nil {
				return nil, err
			}
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			r := new(big.Int)
			switch op {
			case opAdd:
				r.Add(a, b)
			case opSub:
				r.Sub(a, b)
			case opMul:
				r.Mul(a, b)
				cost = gasFastStep
			case opDiv:
				if b.Sign() == 0 {
					r.SetInt64(0)
				} else {
					r.Div(a, b)
				}
				cost = gasFastStep
			}
			m.push(mod256(r))
		case op == opLt, op == opGt, op == opEq:
			b, err := m.pop()
			if err != nil {
				return nil, err
			}
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			var res int64
			c := a.Cmp(b)
			if (op == opLt && c < 0) || (op == opGt && c > 0) || (op == opEq && c == 0) {
				res = 1
			}
			m.push(big.NewInt(res))
		case op == opIsZero:
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			var res int64
			if a.Sign() == 0 {
				res = 1
			}
			m.push(big.NewInt(res))
		case op == opAnd || op == opOr:
			b, err := m.pop()
			if err != nil {
				return nil, err
			}
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			r := new(big.Int)
			if op == opAnd {
				r.And(a, b)
			} else {
				r.Or(a, b)
			}
			m.push(r)
		case op == opNot:
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(mod256(new(big.Int).Not(a)))
		case op == opJumpDest:
			cost = 1
		case op == opPC:
			m.push(new(big.Int).SetUint64(m.pc))
			cost = gasQuickStep
		case op == opMSize:
			m.push(new(big.Int).SetUint64(uint64(len(m.mem))))
			cost = gasQuickStep
		case op == opGas:
			m.push(new(big.Int).SetUint64(*gas))
			cost = gasQuickStep
		case op == opJump:
			dest, err := m.pop()
			if err != nil {
				return nil, err
			}
			if err := validJumpDest(code, dest); err != nil {
				return nil, err
			}
			m.pc = dest.Uint64()
			cost = gasMidStep
			if err := charge(cost); err != nil {
				return nil, err
			}
			if onOp != nil {
				onOp(m.steps, startPC, op, cost, *gas, len(m.mem), host.Depth)
			}
			m.steps++
			continue
		case op == opJumpI:
			dest, err := m.pop()
			if err != nil {
				return nil, err
			}
			cond, err := m.pop()
			if err != nil {
				return nil, err
			}
			cost = gasSlowStep
			if err := charge(cost); err != nil {
				return nil, err
			}
			if cond.Sign() != 0 {
				if err := validJumpDest(code, dest); err != nil {
					return nil, err
				}
				m.pc = dest.Uint64()
			} else {
				m.pc++
			}
			if onOp != nil {
				onOp(m.steps, startPC, op, cost, *gas, len(m.mem), host.Depth)
			}
			m.steps++
			continue
		case op == opMLoad:
			offset, err := m.pop()
			if err != nil {
				return nil, err
			}
			off := offset.Uint64()
			mc := memoryExpansionCost(uint64(len(m.mem)), off+32)
			if err := charge(mc); err != nil {
				return nil, err
			}
			m.ensure(off + 32)
			m.push(toU256(m.mem[off : off+32]))
			cost = gasFastestStep
		case op == opMStore:
			offset, err := m.pop()
			if err != nil {
				return nil, err
			}
			value, err := m.pop()
			if err != nil {
				return nil, err
			}
			off := offset.Uint64()
			mc := memoryExpansionCost(uint64(len(m.mem)), off+32)
			if err := charge(mc); err != nil {
				return nil, err
			}
			m.ensure(off + 32)
			copy(m.mem[off:off+32], toHash(value).Bytes())
			cost = gasFastestStep
		case op == opSLoad:
			key, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(host.GetStorage(toHash(key)).Big())
			cost = schedule.GasTable.SLoad
		case op == opSStore:
			key, err := m.pop()
			if err != nil {
				return nil, err
			}
			value, err := m.pop()
			if err != nil {
				return nil, err
			}
			cost = sstoreGas(schedule.GasTable, host, toHash(key), toHash(value))
			if err := charge(cost); err != nil {
				return nil, err
			}
			host.SetStorage(toHash(key), toHash(value))
			m.pc++
			if onOp != nil {
				onOp(m.steps, startPC, op, cost, *gas, len(m.mem), host.Depth)
			}
			m.steps++
			continue
		case op == opAddress:
			m.push(new(big.Int).SetBytes(host.CodeAddress.Bytes()))
			cost = gasQuickStep
		case op == opCaller:
			m.push(new(big.Int).SetBytes(host.Caller.Bytes()))
			cost = gasQuickStep
		case op == opCallValue:
			m.push(new(big.Int).Set(host.ApparentValue))
			cost = gasQuickStep
		case op == opGasPrice:
			m.push(new(big.Int).Set(host.GasPrice))
			cost = gasQuickStep
		case op == opBalance:
			addr, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(host.GetBalance(common.BytesToAddress(addr.Bytes())))
			cost = schedule.GasTable.Balance
		case op == opExtCodeSize:
			addr, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(new(big.Int).SetInt64(int64(host.GetCodeSize(common.BytesToAddress(addr.Bytes())))))
			cost = schedule.GasTable.ExtcodeSize
		case op == opCodeSize:
			m.push(new(big.Int).SetInt64(int64(len(code))))
			cost = gasQuickStep
		case op == opCallDataSize:
			m.push(new(big.Int).SetInt64(int64(len(host.Input))))
			cost = gasQuickStep
		case op == opCallDataLoad:
			offset, err := m.pop()
			if err != nil {
				return nil, err
			}
			off := offset.Uint64()
			buf := make([]byte, 32)
			if off < uint64(len(host.Input)) {
				end := off + 32
				if end > uint64(len(host.Input)) {
					end = uint64(len(host.Input))
				}
				copy(buf, host.Input[off:end])
			}
			m.push(toU256(buf))
			cost = gasFastestStep
		case op == opBlockHash:
			num, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(new(big.Int).SetBytes(host.BlockHash(num.Uint64()).Bytes()))
			cost = gasExtStep
		case op >= opLog0 && op <= opLog4:
			n := int(op - opLog0)
			offset, err := m.pop()
			if err != nil {
				return nil, err
			}
			size, err := m.pop()
			if err != nil {
				return nil, err
			}
			topics := make([]common.Hash, n)
			for i := 0; i < n; i++ {
				t, err := m.pop()
				if err != nil {
					return nil, err
				}
				topics[i] = toHash(t)
			}
			off, sz := offset.Uint64(), size.Uint64()
			mc := memoryExpansionCost(uint64(len(m.mem)), off+sz)
			if err := charge(mc); err != nil {
				return nil, err
			}
			m.ensure(off + sz)
			host.Log(topics, m.mem[off:off+sz])
			cost = uint64(375 + 375*n)
		case op == opReturn || op == opRevert:
			offset, err := m.pop()
			if err != nil {
				return nil, err
			}
			size, err := m.pop()
			if err != nil {
				return nil, err
			}
			off, sz := offset.Uint64(), size.Uint64()
			mc := memoryExpansionCost(uint64(len(m.mem)), off+sz)
			if err := charge(mc); err != nil {
				return nil, err
			}
			m.ensure(off + sz)
			out := common.CopyBytes(m.mem[off : off+sz])
			if onOp != nil {
				onOp(m.steps, m.pc, op, mc, *gas, len(m.mem), host.Depth)
			}
			if op == opReturn {
				return out, nil
			}
			return nil, &VMError{Kind: ExcRevert, Reverted: true, Data: out}
		case op == opSelfDestruct:
			addr, err := m.pop()
			if err != nil {
				return nil, err
			}
			host.SelfDestruct(common.BytesToAddress(addr.Bytes()))
			cost = schedule.GasTable.Suicide
			if err := charge(cost); err != nil {
				return nil, err
			}
			return nil, nil
		case op == opSha3:
			offset, err := m.pop()
			if err != nil {
				return nil, err
			}
			size, err := m.pop()
			if err != nil {
				return nil, err
			}
			off, sz := offset.Uint64(), size.Uint64()
			mc := memoryExpansionCost(uint64(len(m.mem)), off+sz)
			if err := charge(mc); err != nil {
				return nil, err
			}
			m.ensure(off + sz)
			m.push(new(big.Int).SetBytes(common.Keccak256(m.mem[off : off+sz])))
			cost = 30 + 6*wordSize(sz)
		default:
			return nil, &VMError{Kind: ExcBadInstruction}
		}

		if err := charge(cost); err != nil {
			return nil, err
		}
		if onOp != nil {
			onOp(m.steps, m.pc, op, startGas-*gas, *gas, len(m.mem), host.Depth)
		}
		m.steps++
		m.pc++
	}
	return nil, nil
}

var mod256Bound = new(big.Int).Lsh(big.NewInt(1), 256)

func mod256(v *big.Int) *big.Int {
	r := new(big.Int).Mod(v, mod256Bound)
	if r.Sign() < 0 {
		r.Add(r, mod256Bound)
	}
	return r
}

func validJumpDest(code []byte, dest *big.Int) error {
	if !dest.IsUint64() {
		return &VMError{Kind: ExcBadJumpDestination}
	}
	d := dest.Uint64()
	if d >= uint64(len(code)) || code[d] != opJumpDest {
		return &VMError{Kind: ExcBadJumpDestination}
	}
	return nil
}
