package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"web3-rpcpool-go/internal/rpcpool"
)

const (
	defaultBenchCalls   = 100
	defaultBenchWorkers = 8
)

func benchArgs(rest []string) (calls, workers int, err error) {
	calls, workers = defaultBenchCalls, defaultBenchWorkers
	if len(rest) > 0 {
		if calls, err = strconv.Atoi(rest[0]); err != nil || calls <= 0 {
			return 0, 0, fmt.Errorf("calls must be a positive integer, got %q", rest[0])
		}
	}
	if len(rest) > 1 {
		if workers, err = strconv.Atoi(rest[1]); err != nil || workers <= 0 {
			return 0, 0, fmt.Errorf("workers must be a positive integer, got %q", rest[1])
		}
	}
	return calls, workers, nil
}

type benchReport struct {
	Calls     int64                  `json:"calls"`
	Failed    int64                  `json:"failed"`
	Elapsed   string                 `json:"elapsed"`
	CallsPerS float64                `json:"callsPerSecond"`
	Pool      rpcpool.PoolInfo       `json:"pool"`
	Endpoints []rpcpool.EndpointInfo `json:"endpoints"`
}

// runBench 并发压测连接池，输出吞吐与各节点统计
func runBench(ctx context.Context, pool *rpcpool.Pool, calls, workers int, out io.Writer) error {
	var done, failed atomic.Int64
	jobs := make(chan struct{})
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				if _, err := pool.BlockNumber(ctx); err != nil {
					failed.Add(1)
				}
				done.Add(1)
			}
		}()
	}

feed:
	for i := 0; i < calls; i++ {
		select {
		case jobs <- struct{}{}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	report := benchReport{
		Calls:     done.Load(),
		Failed:    failed.Load(),
		Elapsed:   elapsed.Truncate(time.Millisecond).String(),
		CallsPerS: float64(done.Load()) / elapsed.Seconds(),
		Pool:      pool.PoolInfo(),
		Endpoints: pool.EndpointsInfo(),
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
