package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"web3-rpcpool-go/internal/config"
	"web3-rpcpool-go/internal/rpcpool"
)

const usage = `usage: rpcpool [flags] <command> [args]

commands:
  check                          verify every endpoint and print diagnostics
  serve                          run verifier, stats recorder and diagnostics server
  block-number                   print the latest block number
  balance <address>              print the wei balance of address
  token-balance <token> <holder> print an ERC20 balance (token may be a symbol)
  bench [calls] [workers]        issue eth_blockNumber in parallel and report throughput
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	envFile := flag.String("env", "", "Load environment from this file instead of .env")
	flag.Parse()

	if *envFile != "" {
		if err := loadEnvFile(*envFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	cfg := config.Load()
	rpcpool.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		rpcpool.Logger.Error("command_failed", "error", err.Error())
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
