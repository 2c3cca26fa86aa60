package rpcpool

import (
	"context"
	"log/slog"
	"os"
)

// Logger 全局结构化日志器
var Logger = slog.Default()

// InitLogger 初始化结构化日志
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "text" {
		// 文本格式，便于开发调试
		Logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	} else {
		// JSON 格式，便于日志收集系统处理
		Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	slog.SetDefault(Logger)
}

// LogRPCRetry 记录 RPC 重试日志
func LogRPCRetry(method string, attempt int, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	Logger.Warn("rpc_retry",
		slog.String("method", method),
		slog.Int("attempt", attempt),
		slog.String("error", msg),
	)
}

// LogRPCAttemptFailed 记录单次尝试失败
func LogRPCAttemptFailed(endpoint, method string, result VerifyResult, streak int) {
	Logger.Warn("rpc_attempt_failed",
		slog.String("endpoint", endpoint),
		slog.String("method", method),
		slog.String("result", result.Kind.String()),
		slog.String("message", result.Message),
		slog.Int("consecutive_errors", streak),
	)
}

// LogEndpointRecovered 记录节点恢复
func LogEndpointRecovered(endpoint, method string) {
	Logger.Info("✅ RPC_ENDPOINT_RECOVERED",
		slog.String("endpoint", endpoint),
		slog.String("method", method),
	)
}

// LogVerifyFinished 记录节点校验结果
func LogVerifyFinished(endpoint string, result VerifyResult, score float64) {
	level := slog.LevelInfo
	if !result.OK() {
		level = slog.LevelWarn
	}
	Logger.Log(context.Background(), level, "rpc_verify_finished",
		slog.String("endpoint", endpoint),
		slog.String("result", result.Kind.String()),
		slog.String("message", result.Message),
		slog.Int64("head_seconds_behind", result.HeadSecondsBehind),
		slog.Int64("check_ms", result.CheckTime.Milliseconds()),
		slog.Float64("score", score),
	)
}
