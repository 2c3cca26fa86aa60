package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"web3-rpcpool-go/internal/rpcpool"
)

type Config struct {
	RPCURLs  []string // 支持多个RPC URL，逗号分隔
	RPCNames []string
	ChainID  int64

	RPCMaxTimeout     time.Duration
	RPCBackupLevels   []int
	RPCMinInterval    time.Duration
	RPCMaxHeadBehind  time.Duration
	RPCVerifyInterval time.Duration
	RPCSkipValidation bool
	RPCMaxAttempts    int
	RPCRetryBackoff   time.Duration
	RPCDailyQuota     int64 // 0 表示不限
	RPCMaxRPS         float64

	LogLevel  string
	LogFormat string

	DatabaseURL    string // 为空时不落库
	ListenAddr     string
	StatsInterval  time.Duration
	StatsRetention time.Duration
}

// Load reads the process environment, after merging an optional .env file.
func Load() *Config {
	_ = godotenv.Load() // .env文件是可选的
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() *Config {
	return &Config{
		RPCURLs:  splitList(getEnv("RPC_URLS", "https://eth.llamarpc.com")),
		RPCNames: splitList(getEnv("RPC_NAMES", "")),
		ChainID:  getEnvAsInt64("CHAIN_ID", 1),

		RPCMaxTimeout:     time.Duration(getEnvAsInt64("RPC_MAX_TIMEOUT_MS", 5000)) * time.Millisecond,
		RPCBackupLevels:   getEnvAsIntList("RPC_BACKUP_LEVELS"),
		RPCMinInterval:    time.Duration(getEnvAsInt64("RPC_MIN_INTERVAL_MS", 0)) * time.Millisecond,
		RPCMaxHeadBehind:  time.Duration(getEnvAsInt64("RPC_MAX_HEAD_BEHIND_SECONDS", 120)) * time.Second,
		RPCVerifyInterval: time.Duration(getEnvAsInt64("RPC_VERIFY_INTERVAL_SECONDS", 120)) * time.Second,
		RPCSkipValidation: getEnvAsBool("RPC_SKIP_VALIDATION", false),
		RPCMaxAttempts:    int(getEnvAsInt64("RPC_MAX_ATTEMPTS", int64(rpcpool.DefaultMaxAttempts))),
		RPCRetryBackoff:   time.Duration(getEnvAsInt64("RPC_RETRY_BACKOFF_MS", rpcpool.DefaultRetryBackoff.Milliseconds())) * time.Millisecond,
		RPCDailyQuota:     getEnvAsInt64("RPC_DAILY_QUOTA", 0),
		RPCMaxRPS:         getEnvAsFloat("RPC_MAX_RPS", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		StatsInterval:  time.Duration(getEnvAsInt64("STATS_INTERVAL_SECONDS", 30)) * time.Second,
		StatsRetention: time.Duration(getEnvAsInt64("STATS_RETENTION_HOURS", 24)) * time.Hour,
	}
}

// Validate 检查启动所需的最小配置
func (c *Config) Validate() error {
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("RPC_URLS is empty")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}
	if c.RPCDailyQuota < 0 {
		return fmt.Errorf("RPC_DAILY_QUOTA must not be negative, got %d", c.RPCDailyQuota)
	}
	if c.RPCMaxRPS < 0 {
		return fmt.Errorf("RPC_MAX_RPS must not be negative, got %g", c.RPCMaxRPS)
	}
	if len(c.RPCNames) > 0 && len(c.RPCNames) != len(c.RPCURLs) {
		return fmt.Errorf("RPC_NAMES has %d entries, RPC_URLS has %d", len(c.RPCNames), len(c.RPCURLs))
	}
	if len(c.RPCBackupLevels) > 0 && len(c.RPCBackupLevels) != len(c.RPCURLs) {
		return fmt.Errorf("RPC_BACKUP_LEVELS has %d entries, RPC_URLS has %d", len(c.RPCBackupLevels), len(c.RPCURLs))
	}
	return nil
}

// EndpointParams builds one parameter set per configured URL. Names and
// backup levels are matched by position.
func (c *Config) EndpointParams() []rpcpool.EndpointParams {
	out := make([]rpcpool.EndpointParams, 0, len(c.RPCURLs))
	for i, u := range c.RPCURLs {
		p := rpcpool.EndpointParams{
			URL:            u,
			MaxTimeout:     c.RPCMaxTimeout,
			SkipValidation: c.RPCSkipValidation,
			VerifyInterval: c.RPCVerifyInterval,
			MinInterval:    c.RPCMinInterval,
			MaxHeadBehind:  c.RPCMaxHeadBehind,
		}
		if i < len(c.RPCNames) {
			p.Name = c.RPCNames[i]
		}
		if i < len(c.RPCBackupLevels) {
			p.BackupLevel = c.RPCBackupLevels[i]
		}
		out = append(out, p)
	}
	return out
}

// PoolOptions translates the retry, quota and rate settings. Call Validate first.
func (c *Config) PoolOptions() []rpcpool.Option {
	quota := uint64(0)
	if c.RPCDailyQuota > 0 {
		quota = uint64(c.RPCDailyQuota)
	}
	return []rpcpool.Option{
		rpcpool.WithMaxAttempts(c.RPCMaxAttempts),
		rpcpool.WithRetryBackoff(c.RPCRetryBackoff),
		rpcpool.WithDailyQuota(quota),
		rpcpool.WithMaxRPS(c.RPCMaxRPS),
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		slog.Warn("invalid_env_value", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("invalid_env_value", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid_env_value", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsIntList 解析逗号分隔的整数列表，非法项按 0 处理
func getEnvAsIntList(key string) []int {
	items := splitList(getEnv(key, ""))
	if len(items) == 0 {
		return nil
	}
	out := make([]int, len(items))
	for i, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil {
			slog.Warn("invalid_env_value", "key", key, "value", item, "default", 0)
			continue
		}
		out[i] = v
	}
	return out
}
