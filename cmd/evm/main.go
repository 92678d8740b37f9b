// Command evm is the CLI driver wiring a Transaction through EnvInfo into
// the Executive and out to a Tracer, end to end. It is deliberately small:
// a full disassembler, state-test fixture loader, or t8n harness is out of
// scope; this runs a single transaction against an in-memory State.
package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/entropyio/go-evmcore/common"
	"github.com/entropyio/go-evmcore/config"
	"github.com/entropyio/go-evmcore/database"
	"github.com/entropyio/go-evmcore/evmhost"
	"github.com/entropyio/go-evmcore/executive"
	"github.com/entropyio/go-evmcore/internal/logger"
	"github.com/entropyio/go-evmcore/state"
	"github.com/entropyio/go-evmcore/tracer"
)

var log = logger.NewLogger("[cmd/evm]")

var (
	codeFlag     = cli.StringFlag{Name: "code", Usage: "contract init code or runtime code, as hex"}
	inputFlag    = cli.StringFlag{Name: "input", Usage: "call data, as hex"}
	senderFlag   = cli.StringFlag{Name: "sender", Value: "0x00000000000000000000000000000000000a11", Usage: "sending address"}
	receiverFlag = cli.StringFlag{Name: "receiver", Usage: "message-call target; omit for contract creation"}
	valueFlag    = cli.Uint64Flag{Name: "value", Usage: "wei sent with the transaction"}
	gasFlag      = cli.Uint64Flag{Name: "gas", Value: 1_000_000, Usage: "gas supplied to the transaction"}
	priceFlag    = cli.Uint64Flag{Name: "price", Value: 1, Usage: "gas price in wei"}
	balanceFlag  = cli.Uint64Flag{Name: "balance", Value: 1_000_000_000_000, Usage: "sender's opening balance"}
	jsonFlag     = cli.BoolFlag{Name: "json", Usage: "stream one JSON object per opcode to stderr"}
)

func main() {
	app := cli.NewApp()
	app.Name = "evm"
	app.Usage = "run a single transaction through the Executive"
	app.Commands = []cli.Command{runCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = cli.Command{
	Action:    runAction,
	Name:      "run",
	Usage:     "apply a synthetic transaction to a fresh in-memory state and print its receipt",
	ArgsUsage: " ",
	Flags:     []cli.Flag{codeFlag, inputFlag, senderFlag, receiverFlag, valueFlag, gasFlag, priceFlag, balanceFlag, jsonFlag},
}

func runAction(ctx *cli.Context) error {
	code, err := decodeHex(ctx.String(codeFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid --code: %w", err)
	}
	input, err := decodeHex(ctx.String(inputFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid --input: %w", err)
	}
	sender := common.HexToAddress(ctx.String(senderFlag.Name))

	s, err := state.New(common.Hash{}, database.NewMemoryDB())
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}
	s.AddBalance(sender, new(big.Int).SetUint64(ctx.Uint64(balanceFlag.Name)))

	tx := &executive.Transaction{
		From:     sender,
		Nonce:    s.GetNonce(sender),
		GasPrice: new(big.Int).SetUint64(ctx.Uint64(priceFlag.Name)),
		Gas:      ctx.Uint64(gasFlag.Name),
		Value:    new(big.Int).SetUint64(ctx.Uint64(valueFlag.Name)),
	}
	if r := ctx.String(receiverFlag.Name); r != "" {
		to := common.HexToAddress(r)
		tx.To = &to
		tx.Data = input
		if len(code) > 0 {
			// deploy runtime code at the receiver up front, so a message call
			// exercises a contract without going through CREATE first.
			if err := s.CreateContract(to); err != nil {
				return fmt.Errorf("installing --code at --receiver: %w", err)
			}
			s.SetNewCode(to, code)
		}
	} else {
		tx.Data = code
	}

	env := &evmhost.EnvInfo{
		Number:     big.NewInt(1),
		Author:     common.HexToAddress("0x0000000000000000000000000000000000c0ffee"),
		Timestamp:  0,
		GasLimit:   ctx.Uint64(gasFlag.Name) * 2,
		Difficulty: big.NewInt(1),
	}
	chain := evmhost.NewStandardOracle(config.AllByzantiumChainConfig)

	var trc executive.Tracer
	if ctx.Bool(jsonFlag.Name) {
		trc = tracer.NewJSONLogger(os.Stderr)
	}

	exec := executive.New(s, env, chain, evmhost.StackMachine{}, trc)
	receipt, err := exec.Run(tx)
	if err != nil {
		log.Critical("executive run returned a fatal error", "err", err)
		return err
	}

	behavior := state.KeepEmptyAccounts
	if chain.Schedule(env).EIP158 {
		behavior = state.RemoveEmptyAccounts
	}
	root, err := s.Commit(behavior)
	if err != nil {
		return fmt.Errorf("committing state: %w", err)
	}

	printReceipt(receipt, root)
	return nil
}

func printReceipt(r *executive.Receipt, root common.Hash) {
	fmt.Printf("status:          %v\n", r.Status)
	fmt.Printf("gasUsed:         %d\n", r.GasUsed)
	fmt.Printf("root:            %s\n", root.Hex())
	if r.ContractAddress != (common.Address{}) {
		fmt.Printf("contractAddress: %s\n", r.ContractAddress.Hex())
	}
	if len(r.Output) > 0 {
		fmt.Printf("output:          0x%x\n", r.Output)
	}
	if r.Exception != nil {
		fmt.Printf("exception:       %v\n", r.Exception)
	}
	for _, l := range r.Logs {
		fmt.Printf("log: address=%s topics=%v data=0x%x\n", l.Address.Hex(), l.Topics, l.Data)
	}
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
