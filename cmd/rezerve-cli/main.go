package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultRPC = "http://127.0.0.1:8645/rpc"

func main() {
	rpcURL := flag.String("rpc", defaultRPC, "JSON-RPC endpoint")
	token := flag.String("token", os.Getenv("REZERVE_RPC_TOKEN"), "Bearer token for privileged methods")
	limit := flag.Int("limit", 10, "Maximum history entries to fetch")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	var (
		method string
		params []any
	)
	switch flag.Arg(0) {
	case "ratio":
		method = "rebase_currentBackingRatio"
	case "rate":
		method = "rebase_projectedRate"
	case "last":
		method = "rebase_lastEpochTime"
	case "length":
		method = "rebase_epochLength"
	case "history":
		method = "rebase_history"
		params = []any{map[string]int{"limit": *limit}}
	case "execute":
		method = "rebase_executeEpoch"
	default:
		usage()
		os.Exit(2)
	}

	result, rpcErr, err := call(*rpcURL, *token, method, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rpc call failed: %v\n", err)
		os.Exit(1)
	}
	if rpcErr != nil {
		fmt.Fprintf(os.Stderr, "error %d: %s\n", rpcErr.Code, rpcErr.Message)
		os.Exit(1)
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rezerve-cli [flags] <ratio|rate|last|length|history|execute>")
	flag.PrintDefaults()
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func call(url, token, method string, params []any) (json.RawMessage, *rpcError, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if trimmed := strings.TrimSpace(token); trimmed != "" {
		req.Header.Set("Authorization", "Bearer "+trimmed)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Result, decoded.Error, nil
}
