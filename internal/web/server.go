package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"web3-rpcpool-go/internal/models"
	"web3-rpcpool-go/internal/rpcpool"
)

// PoolView is the read side of the pool used by the HTTP handlers.
type PoolView interface {
	EndpointsInfo() []rpcpool.EndpointInfo
	EndpointInfo(index int) (rpcpool.EndpointInfo, bool)
	PoolInfo() rpcpool.PoolInfo
}

// HistoryStore 读取持久化的节点快照
type HistoryStore interface {
	EndpointHistory(ctx context.Context, chainID int64, name string, limit int) ([]models.EndpointStat, error)
}

// Server 包装诊断 HTTP 服务
type Server struct {
	pool    PoolView
	hub     *Hub
	history HistoryStore // nil when DATABASE_URL is not set
	logger  *slog.Logger
}

func NewServer(pool PoolView, hub *Hub, history HistoryStore) *Server {
	return &Server{pool: pool, hub: hub, history: history, logger: rpcpool.Logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/endpoints", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"endpoints": s.pool.EndpointsInfo()})
	})
	mux.HandleFunc("GET /api/endpoints/{index}", s.handleEndpoint)
	mux.HandleFunc("GET /api/endpoints/{name}/history", s.handleHistory)
	mux.HandleFunc("GET /api/pool", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.pool.PoolInfo())
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", s.handleReady)

	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}

	// Prometheus 指标
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	info, ok := s.pool.EndpointInfo(idx)
	if !ok {
		writeError(w, http.StatusNotFound, "no such endpoint")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "stats persistence disabled")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	rows, err := s.history.EndpointHistory(r.Context(), s.pool.PoolInfo().ChainID, r.PathValue("name"), limit)
	if err != nil {
		s.logger.Error("history_query_failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to retrieve history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": rows})
}

// readyz 在没有健康节点时返回 503
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	info := s.pool.PoolInfo()
	status := http.StatusOK
	state := "ready"
	if info.HealthyEndpoints == 0 {
		status = http.StatusServiceUnavailable
		state = "no_healthy_endpoint"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":  state,
		"healthy": info.HealthyEndpoints,
		"total":   info.TotalEndpoints,
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server_stopped", "addr", addr)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
