package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

var escrowRPCCall = callRPC

func runEscrowCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}

	switch args[0] {
	case "initiate":
		return runEscrowInitiate(args[1:], stdout, stderr)
	case "deposit":
		return runEscrowDeposit(args[1:], stdout, stderr)
	case "complete":
		return runEscrowComplete(args[1:], stdout, stderr)
	case "cancel":
		return runEscrowCancel(args[1:], stdout, stderr)
	case "get":
		return runEscrowGet(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
}

func escrowUsage() string {
	return `Usage: escrow-cli escrow <subcommand>

Subcommands:
  initiate --buyer <addr> --seller <addr> --amount <n>
  deposit  --id <n> --from <addr> --value <n>
  complete --id <n> --caller <addr>
  cancel   --id <n> --caller <addr>
  get      --id <n>`
}

func newEscrowFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printEscrowError(stderr io.Writer, message string) int {
	fmt.Fprintf(stderr, "Error: %s\n", message)
	return 1
}

func runEscrowInitiate(args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet("escrow initiate", stderr)
	var buyer, seller, amount string
	fs.StringVar(&buyer, "buyer", "", "buyer bech32 address")
	fs.StringVar(&seller, "seller", "", "seller bech32 address")
	fs.StringVar(&amount, "amount", "", "agreed escrow amount")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if buyer == "" {
		return printEscrowError(stderr, "--buyer is required")
	}
	if seller == "" {
		return printEscrowError(stderr, "--seller is required")
	}
	if amount == "" {
		return printEscrowError(stderr, "--amount is required")
	}
	return dispatchEscrowRPC(stdout, stderr, "escrow_initiate", map[string]interface{}{
		"buyer":  buyer,
		"seller": seller,
		"amount": amount,
	})
}

func runEscrowDeposit(args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet("escrow deposit", stderr)
	var from, value string
	id := fs.Uint64("id", 0, "escrow identifier")
	idSet := false
	fs.StringVar(&from, "from", "", "buyer bech32 address")
	fs.StringVar(&value, "value", "", "attached value (must equal the agreed amount)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "id" {
			idSet = true
		}
	})
	if !idSet {
		return printEscrowError(stderr, "--id is required")
	}
	if from == "" {
		return printEscrowError(stderr, "--from is required")
	}
	if value == "" {
		return printEscrowError(stderr, "--value is required")
	}
	return dispatchEscrowRPC(stdout, stderr, "escrow_deposit", map[string]interface{}{
		"id":    *id,
		"from":  from,
		"value": value,
	})
}

func runEscrowComplete(args []string, stdout, stderr io.Writer) int {
	return runEscrowActorCommand("escrow complete", "escrow_complete", args, stdout, stderr)
}

func runEscrowCancel(args []string, stdout, stderr io.Writer) int {
	return runEscrowActorCommand("escrow cancel", "escrow_cancel", args, stdout, stderr)
}

func runEscrowActorCommand(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet(name, stderr)
	var caller string
	id := fs.Uint64("id", 0, "escrow identifier")
	idSet := false
	fs.StringVar(&caller, "caller", "", "caller bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "id" {
			idSet = true
		}
	})
	if !idSet {
		return printEscrowError(stderr, "--id is required")
	}
	if caller == "" {
		return printEscrowError(stderr, "--caller is required")
	}
	return dispatchEscrowRPC(stdout, stderr, method, map[string]interface{}{
		"id":     *id,
		"caller": caller,
	})
}

func runEscrowGet(args []string, stdout, stderr io.Writer) int {
	fs := newEscrowFlagSet("escrow get", stderr)
	id := fs.Uint64("id", 0, "escrow identifier")
	idSet := false
	if err := fs.Parse(args); err != nil {
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "id" {
			idSet = true
		}
	})
	if !idSet {
		return printEscrowError(stderr, "--id is required")
	}
	return dispatchEscrowRPC(stdout, stderr, "escrow_get", map[string]interface{}{"id": *id})
}

func dispatchEscrowRPC(stdout, stderr io.Writer, method string, params map[string]interface{}) int {
	result, rpcErr, err := escrowRPCCall(method, []interface{}{params})
	if err != nil {
		return printEscrowError(stderr, err.Error())
	}
	if rpcErr != nil {
		detail := rpcErr.Message
		if len(rpcErr.Data) > 0 {
			detail = fmt.Sprintf("%s: %s", rpcErr.Message, string(rpcErr.Data))
		}
		return printEscrowError(stderr, detail)
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Fprintln(stdout, string(result))
		return 0
	}
	encoded, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Fprintln(stdout, string(encoded))
	return 0
}
