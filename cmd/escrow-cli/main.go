package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"escrowd/cmd/internal/passphrase"
	"escrowd/crypto"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("ESCROWD_RPC_TOKEN")

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("RPC_URL")); url != "" {
		return url
	}
	return "http://127.0.0.1:8645"
}

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "generate-key":
		path := "escrow.key"
		if len(args) > 1 {
			path = args[1]
		}
		generateKey(path)
	case "address":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a keystore file.")
			printUsage()
			return
		}
		showAddress(args[1])
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		getBalance(args[1])
	case "escrow":
		os.Exit(runEscrowCommand(args[1:], os.Stdout, os.Stderr))
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
	}
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := args[:0]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL argument")
			}
			i++
			rpcEndpoint = args[i]
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func printUsage() {
	fmt.Println(`Usage: escrow-cli [--rpc <url>] <command>

Commands:
  generate-key [file]   Generate a new party key into an encrypted keystore
  address <file>        Print the party address stored in a keystore file
  balance <address>     Query an account balance
  escrow <subcommand>   Manage escrow agreements (see "escrow-cli escrow")

The keystore passphrase is read from ESCROWD_KEY_PASSPHRASE or prompted for.`)
}

func keyPassphrase() string {
	pass, err := passphrase.NewSource("ESCROWD_KEY_PASSPHRASE").Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return pass
}

func generateKey(path string) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}
	if err := crypto.SaveToKeystore(path, key, keyPassphrase()); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing keystore: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("New key saved to %s\n", path)
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
}

func showAddress(path string) {
	key, err := crypto.LoadFromKeystore(path, keyPassphrase())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading keystore: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
}

func getBalance(address string) {
	result, rpcErr, err := callRPC("ledger_getBalance", []interface{}{map[string]string{"address": address}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if rpcErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", rpcErr.Message)
		os.Exit(1)
	}
	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(pretty))
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func callRPC(method string, params []interface{}) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	return envelope.Result, envelope.Error, nil
}
