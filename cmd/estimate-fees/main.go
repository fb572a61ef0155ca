package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/utils"
)

// estimate-fees probes the gas price oracle of each configured EVM chain.
// Useful for sanity-checking RPC endpoints before a deploy.
func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "per-chain probe timeout")
	flag.Parse()

	registry := utils.NewChainRegistry()
	rpc := clients.NewEVMRPCClient(registry)
	defer rpc.Close()

	failed := 0
	for _, info := range registry.AllChains() {
		if info.Kind != utils.ChainKindEVM {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		price, err := rpc.SuggestGasPrice(ctx, info.Label)
		cancel()
		if err != nil {
			fmt.Printf("%-10s error: %v\n", info.Label, err)
			failed++
			continue
		}

		gwei := new(big.Rat).SetFrac(price, big.NewInt(1_000_000_000))
		fmt.Printf("%-10s %s gwei\n", info.Label, gwei.FloatString(2))
	}

	if failed > 0 {
		os.Exit(1)
	}
}
