package executive

import (
	"math/big"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/config"
	"github.com/entropyio/go-evmcore/evmhost"
	"github.com/entropyio/go-evmcore/internal/logger"
	"github.com/entropyio/go-evmcore/internal/rlp"
	"github.com/entropyio/go-evmcore/state"
)

var log = logger.NewLogger("[executive]")

// maxCallDepth bounds CALL/CREATE re-entry, independent of any gas-based
// limit.
const maxCallDepth = 1024

// Executive drives one transaction through the Fresh -> Initialized ->
// Executing -> Finalized|Reverted state machine: it validates the
// transaction against the current block and sender balance, dispatches to
// CALL or CREATE with an explicit savepoint/rollback per frame, and settles
// gas accounting, self-destructs, and logs once the top-level frame
// returns.
type Executive struct {
	State    *state.State
	Env      *evmhost.EnvInfo
	Chain    evmhost.ChainOracle
	VM       evmhost.VM
	OnOp     evmhost.OnOpFunc
	Tracer   Tracer

	schedule config.Schedule
	depth    int

	baseGas  uint64
	gasCost  *big.Int
	gasPrice *big.Int
	origin   common.Address
	output   []byte
}

// Tracer is the narrow interface the executive package depends on, kept
// separate from the tracer package's richer StandardTracer so this package
// never imports tracer (avoiding a cycle, since tracer's JSON adapters may
// want to observe executive.Receipt shapes in a future extension).
type Tracer interface {
	OnOp(steps uint64, pc uint64, op byte, gasCost uint64, gasLeft uint64, memSize int, depth int)
}

// New constructs an Executive for a single block's worth of transactions,
// rebuilding the fork schedule from env.Number once.
func New(s *state.State, env *evmhost.EnvInfo, chain evmhost.ChainOracle, vm evmhost.VM, tracer Tracer) *Executive {
	e := &Executive{State: s, Env: env, Chain: chain, VM: vm, Tracer: tracer}
	e.schedule = chain.Schedule(env)
	if tracer != nil {
		e.OnOp = tracer.OnOp
	}
	return e
}

// Run carries tx through Initialize, Execute, and Finalize/Revert in one
// call, while keeping each phase a separate, individually testable method.
// An ErrInternal from Execute is returned as Run's error, with no receipt.
func (e *Executive) Run(tx *Transaction) (*Receipt, error) {
	if err := e.Initialize(tx); err != nil {
		return &Receipt{Status: false, Exception: err}, nil
	}
	sub, remainingGas, newAddress, runErr := e.Execute(tx)
	if runErr == ErrInternal {
		return nil, runErr
	}
	return e.Finalize(tx, sub, remainingGas, newAddress, runErr), nil
}

// Initialize validates tx against state and env, in a fixed order: block
// gas limit, intrinsic gas, nonce, then balance. The first failing check is
// terminal.
func (e *Executive) Initialize(tx *Transaction) error {
	if e.Env.GasUsed+tx.Gas > e.Env.GasLimit {
		return ErrBlockGasLimitReached
	}
	baseGas, err := tx.intrinsicGas()
	if err != nil || baseGas > tx.Gas {
		return ErrOutOfGasBase
	}
	senderNonce := e.State.GetNonce(tx.From)
	if tx.Nonce != senderNonce {
		return ErrInvalidNonce
	}
	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas), tx.GasPrice)
	totalCost := new(big.Int).Add(gasCost, tx.Value)
	if e.State.Balance(tx.From).Cmp(totalCost) < 0 {
		return ErrNotEnoughCash
	}
	e.baseGas = baseGas
	e.gasCost = gasCost
	e.gasPrice = tx.GasPrice
	e.origin = tx.From
	return nil
}

// Execute debits the non-revertible up-front gas cost and dispatches to
// CREATE or CALL.
func (e *Executive) Execute(tx *Transaction) (sub *evmhost.SubState, remainingGas uint64, newAddress common.Address, err error) {
	// This debit is paid for inclusion regardless of outcome; it is issued
	// outside any savepoint so no rollback below can undo it.
	if serr := e.State.SubBalance(tx.From, e.gasCost); serr != nil {
		return nil, 0, common.Address{}, ErrNotEnoughCash
	}

	sub = evmhost.NewSubState()
	gas := tx.Gas - e.baseGas

	if tx.IsContractCreation() {
		addr, output, gasLeft, cerr := e.createDispatch(tx.From, evmhost.CallParameters{
			Caller: tx.From, Value: new(big.Int).Set(tx.Value), ApparentValue: new(big.Int).Set(tx.Value),
			Gas: gas, Data: tx.Data,
		}, tx.Data, true, sub)
		_ = output
		return sub, gasLeft, addr, cerr
	}

	output, gasLeft, cerr := e.callDispatch(evmhost.CallParameters{
		Caller: tx.From, CodeAddress: *tx.To, ReceiveAddress: *tx.To,
		Value: new(big.Int).Set(tx.Value), ApparentValue: new(big.Int).Set(tx.Value),
		Gas: gas, Data: tx.Data,
	}, true, sub)
	e.output = output
	return sub, gasLeft, common.Address{}, cerr
}

// Finalize settles gas accounting and side effects after the top-level
// frame returns, on both the success and revert paths. It is the only
// place suicides are actually killed and logs published, since both
// require the top-level frame to have returned without error — a failing
// top-level frame instead takes the revert path, which leaves the
// sub-state's suicides and logs discarded (they were never merged up out of
// the failed frame in the first place).
func (e *Executive) Finalize(tx *Transaction, sub *evmhost.SubState, remainingGas uint64, newAddress common.Address, runErr error) *Receipt {
	if runErr != nil {
		return e.finalizeGasOnly(tx, remainingGas, runErr)
	}

	// Step 1: accumulate self-destruct refunds.
	sub.AddRefund(e.schedule.SuicideRefundGas * uint64(sub.Suicides.Cardinality()))

	// Step 2: cap the SSTORE+SELFDESTRUCT refund at half of gas actually
	// used, then add it to the unspent gas. This ordering (cap first, then
	// add) is consensus-observable and must not change.
	gasUsed := tx.Gas - remainingGas
	refund := gasUsed / 2
	if sub.Refunds < refund {
		refund = sub.Refunds
	}
	remainingGas += refund
	gasUsed = tx.Gas - remainingGas

	// Steps 3-4: return unspent gas to the sender, pay the miner for the rest.
	e.State.AddBalance(tx.From, new(big.Int).Mul(new(big.Int).SetUint64(remainingGas), tx.GasPrice))
	e.State.AddBalance(e.Env.Author, new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), tx.GasPrice))

	// Step 5: delete every self-destructed address.
	sub.Suicides.Each(func(v interface{}) bool {
		e.State.Kill(v.(common.Address))
		return false
	})

	// Step 6: publish the transaction's logs.
	logs := make([]LogEntry, 0, len(sub.Logs))
	for _, l := range sub.Logs {
		logs = append(logs, LogEntry{Address: l.Address, Topics: l.Topics, Data: l.Data})
	}

	e.Env.GasUsed += gasUsed
	return &Receipt{
		Status:            true,
		CumulativeGasUsed: e.Env.GasUsed,
		GasUsed:           gasUsed,
		Logs:              logs,
		ContractAddress:   newAddress,
		Output:            e.output,
	}
}

// finalizeGasOnly handles the failing-transaction path: the frame's
// SubState is already discarded (never merged out of the failing frame),
// state is already rolled back to the frame's savepoint by the failing
// dispatch call, and only the non-revertible up-front gas-cost debit
// survives. The executor still pays the sender's unspent gas and the
// miner's share — that accounting happens even on VM failure.
func (e *Executive) finalizeGasOnly(tx *Transaction, remainingGas uint64, runErr error) *Receipt {
	gasUsed := tx.Gas - remainingGas
	e.State.AddBalance(tx.From, new(big.Int).Mul(new(big.Int).SetUint64(remainingGas), tx.GasPrice))
	e.State.AddBalance(e.Env.Author, new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), tx.GasPrice))
	e.Env.GasUsed += gasUsed
	return &Receipt{
		Status:            false,
		CumulativeGasUsed: e.Env.GasUsed,
		GasUsed:           gasUsed,
		Exception:         runErr,
	}
}

// newExtVM builds a per-frame host adapter bound to this Executive's own
// call/create dispatch methods, so VM re-entry (CALL/CREATE opcodes) flows
// back through Initialize-free dispatch rather than bypassing savepoints.
func (e *Executive) newExtVM(params evmhost.CallParameters, sub *evmhost.SubState) *evmhost.ExtVM {
	host := evmhost.NewExtVM(e.State, e.Env, e.Chain,
		func(p evmhost.CallParameters) ([]byte, error) {
			out, _, err := e.callDispatchReentrant(p, sub)
			return out, err
		},
		func(p evmhost.CallParameters) (common.Address, []byte, error) {
			addr, out, _, err := e.createDispatchReentrant(p.Caller, p, p.Data, sub)
			return addr, out, err
		},
	)
	host.Sub = sub
	host.CodeAddress = params.CodeAddress
	host.Caller = params.Caller
	host.Origin = e.origin
	host.GasPrice = e.gasPrice
	host.ApparentValue = params.ApparentValue
	host.Input = params.Data
	host.Depth = e.depth
	return host
}

// callDispatchReentrant is callDispatch's CALL-opcode re-entry path,
// refusing with ErrOutOfStack once maxCallDepth is reached. It returns
// callDispatch's three results unchanged; the CallFunc closure built in
// newExtVM drops the gas-left value.
func (e *Executive) callDispatchReentrant(params evmhost.CallParameters, sub *evmhost.SubState) ([]byte, uint64, error) {
	if e.depth >= maxCallDepth {
		return nil, 0, ErrOutOfStack
	}
	return e.callDispatch(params, false, sub)
}

// createDispatchReentrant is createDispatch's CREATE-opcode re-entry path,
// guarded by the same maxCallDepth bound callDispatchReentrant enforces for
// CALL re-entry.
func (e *Executive) createDispatchReentrant(sender common.Address, params evmhost.CallParameters, initCode []byte, sub *evmhost.SubState) (common.Address, []byte, uint64, error) {
	if e.depth >= maxCallDepth {
		return common.Address{}, nil, 0, ErrOutOfStack
	}
	return e.createDispatch(sender, params, initCode, false, sub)
}

// callDispatch implements CALL dispatch: balance transfer, precompile or
// code execution, and savepoint rollback on failure. sub is the *caller's*
// SubState; a successful frame's own accumulator merges into it.
func (e *Executive) callDispatch(params evmhost.CallParameters, topLevel bool, sub *evmhost.SubState) ([]byte, uint64, error) {
	if topLevel {
		e.State.IncNonce(params.Caller)
	}
	sp := e.State.Savepoint()

	var (
		runCode bool
		code    []byte
		output  []byte
		gasLeft uint64
		precompileErr error
	)

	if e.Chain.IsPrecompiled(params.CodeAddress, e.Env.Number) {
		g := e.Chain.CostOfPrecompiled(params.CodeAddress, params.Data, e.Env.Number)
		if params.Gas < g {
			if e.schedule.EIP158 {
				e.State.Touch(params.CodeAddress)
			}
			return nil, 0, ErrOutOfGasBase
		}
		ok, out := e.Chain.ExecutePrecompiled(params.CodeAddress, params.Data, e.Env.Number)
		gasLeft = params.Gas - g
		if !ok {
			gasLeft = 0
			precompileErr = ErrOutOfGas
		} else {
			output = out
		}
	} else {
		code = e.State.Code(params.CodeAddress)
		if len(code) > 0 {
			runCode = true
		}
		gasLeft = params.Gas
	}

	if terr := e.State.TransferBalance(params.Caller, params.ReceiveAddress, params.Value); terr != nil {
		e.State.Rollback(sp)
		return nil, 0, ErrNotEnoughCash
	}

	if precompileErr != nil {
		e.State.Rollback(sp)
		return nil, 0, precompileErr
	}

	if !runCode {
		return output, gasLeft, nil
	}

	gas := gasLeft
	host := e.newExtVM(params, evmhost.NewSubState())
	host.Code = code
	e.depth++
	out, verr := e.VM.Exec(&gas, host, e.schedule, e.OnOp)
	e.depth--
	if verr != nil {
		ve, _ := verr.(*evmhost.VMError)
		e.State.Rollback(sp)
		if ve != nil && ve.Reverted && e.schedule.RevertReturnsRemainingGas {
			return ve.Data, gas, ErrRevert
		}
		return nil, 0, vmExceptionKind(vmErrorKind(ve))
	}
	sub.Merge(host.Sub)
	return out, gas, nil
}

// createDispatch implements CREATE dispatch: address derivation, collision
// handling, balance transfer, init-code execution, and code-deposit
// accounting. sub is the enclosing frame's (or top-level transaction's)
// SubState.
func (e *Executive) createDispatch(sender common.Address, params evmhost.CallParameters, initCode []byte, topLevel bool, sub *evmhost.SubState) (common.Address, []byte, uint64, error) {
	nonce := e.State.GetNonce(sender)
	e.State.IncNonce(sender)
	sp := e.State.Savepoint()

	newAddress := deriveCreateAddress(sender, nonce)
	collision := e.State.AddressInUse(newAddress)
	if !collision {
		if cerr := e.State.CreateContract(newAddress); cerr != nil {
			log.Error("createContract failed despite !addressInUse", "addr", newAddress, "err", cerr)
			e.State.Rollback(sp)
			return newAddress, nil, 0, ErrInternal
		}
	}

	if terr := e.State.TransferBalance(sender, newAddress, params.Value); terr != nil {
		e.State.Rollback(sp)
		return newAddress, nil, 0, ErrNotEnoughCash
	}

	if e.schedule.EIP158 {
		e.State.IncNonce(newAddress)
	}

	if len(initCode) == 0 {
		if collision {
			// CREATE with empty init code into a colliding address overwrites
			// the code but preserves the account's balance and nonce, exactly
			// as transferred/bumped above.
			e.State.SetNewCode(newAddress, nil)
		}
		return newAddress, nil, params.Gas, nil
	}

	gas := params.Gas
	host := e.newExtVM(evmhost.CallParameters{
		Caller: sender, CodeAddress: newAddress, ReceiveAddress: newAddress,
		Value: params.Value, ApparentValue: params.ApparentValue, Data: params.Data,
	}, evmhost.NewSubState())
	host.Code = initCode
	e.depth++
	out, verr := e.VM.Exec(&gas, host, e.schedule, e.OnOp)
	e.depth--
	if verr != nil {
		ve, _ := verr.(*evmhost.VMError)
		e.State.Rollback(sp)
		if ve != nil && ve.Reverted && e.schedule.RevertReturnsRemainingGas {
			return common.Address{}, ve.Data, gas, ErrRevert
		}
		return common.Address{}, nil, 0, vmExceptionKind(vmErrorKind(ve))
	}

	// handle the deploy outcome for a CREATE frame's return: oversized
	// runtime code fails outright, and an insufficient code-deposit gas
	// payment either fails (post-Homestead) or deploys empty code.
	if uint64(len(out)) > e.schedule.MaxCodeSize {
		e.State.Rollback(sp)
		return common.Address{}, nil, 0, ErrOutOfGas
	}
	deposit := uint64(len(out)) * e.schedule.CreateDataGas
	if gas < deposit {
		if e.schedule.ExceptionalFailedCodeDeposit {
			e.State.Rollback(sp)
			return common.Address{}, nil, 0, ErrOutOfGas
		}
		sub.Merge(host.Sub)
		return newAddress, nil, gas, nil
	}
	gas -= deposit
	e.State.SetNewCode(newAddress, out)
	sub.Merge(host.Sub)
	return newAddress, nil, gas, nil
}

func vmErrorKind(ve *evmhost.VMError) string {
	if ve == nil {
		return "Internal"
	}
	return ve.Kind
}

// deriveCreateAddress computes the low 160 bits of keccak256(rlp([sender,
// nonce])), the address a CREATE frame deploys to.
func deriveCreateAddress(sender common.Address, nonce uint64) common.Address {
	digest := common.Keccak256(rlp.EncodeList(rlp.EncodeBytes(sender.Bytes()), rlp.EncodeUint64(nonce)))
	return common.BytesToAddress(digest[12:])
}
