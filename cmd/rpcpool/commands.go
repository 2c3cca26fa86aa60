package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"web3-rpcpool-go/internal/config"
	"web3-rpcpool-go/internal/database"
	"web3-rpcpool-go/internal/recorder"
	"web3-rpcpool-go/internal/rpcpool"
	"web3-rpcpool-go/internal/web"
)

var errUsage = errors.New(usage)

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer, opts ...rpcpool.Option) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "check", "serve", "block-number":
		if len(rest) != 0 {
			return errUsage
		}
	case "balance":
		if len(rest) != 1 {
			return errUsage
		}
	case "token-balance":
		if len(rest) != 2 {
			return errUsage
		}
	case "bench":
		if len(rest) > 2 {
			return errUsage
		}
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	pool, err := rpcpool.New(ctx, cfg.ChainID, cfg.EndpointParams(), append(cfg.PoolOptions(), opts...)...)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch cmd {
	case "check":
		return runCheck(ctx, pool, out)
	case "serve":
		return runServe(ctx, cfg, pool)
	case "block-number":
		n, err := pool.BlockNumber(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, n)
		return err
	case "bench":
		calls, workers, err := benchArgs(rest)
		if err != nil {
			return err
		}
		return runBench(ctx, pool, calls, workers, out)
	case "balance":
		account, err := parseAddress(rest[0])
		if err != nil {
			return err
		}
		bal, err := pool.Balance(ctx, account, nil)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, bal.String())
		return err
	default: // token-balance
		token, err := parseAddress(config.TokenAddress(cfg.ChainID, rest[0]))
		if err != nil {
			return err
		}
		holder, err := parseAddress(rest[1])
		if err != nil {
			return err
		}
		bal, err := pool.TokenBalance(ctx, token, holder, nil)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, bal.String())
		return err
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// runCheck 强制校验所有节点并输出诊断信息
func runCheck(ctx context.Context, pool *rpcpool.Pool, out io.Writer) error {
	pool.VerifyAll(ctx, true)
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"pool":      pool.PoolInfo(),
		"endpoints": pool.EndpointsInfo(),
	})
}

func runServe(ctx context.Context, cfg *config.Config, pool *rpcpool.Pool) error {
	var history web.HistoryStore
	var store recorder.Store
	if cfg.DatabaseURL != "" {
		repo, err := database.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := database.InitSchema(ctx, repo.DB()); err != nil {
			return err
		}
		history, store = repo, repo
	} else {
		rpcpool.Logger.Info("stats_persistence_disabled", "reason", "DATABASE_URL not set")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := web.NewHub()
	hub.OnConnect = func() interface{} {
		return web.WSEvent{Type: web.EventEndpoints, Data: pool.EndpointsInfo()}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		pool.RunQuotaReset(ctx)
	}()

	pool.StartVerifier(ctx, cfg.RPCVerifyInterval/4)
	recorder.New(pool, store, hub, cfg.StatsInterval, cfg.StatsRetention).Start(ctx)

	err := web.NewServer(pool, hub, history).ListenAndServe(ctx, cfg.ListenAddr)
	cancel()
	wg.Wait()
	rpcpool.Logger.Info("Shutdown complete.")
	return err
}
