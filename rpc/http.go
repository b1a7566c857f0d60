package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"rezerve/core/rebase"
	"rezerve/storage"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotReady       = -32030
	codeRateLimited    = -32020
)

// Server exposes the scheduler over JSON-RPC plus health and metrics routes.
type Server struct {
	scheduler *rebase.Scheduler
	history   *storage.Store
	authToken string

	executeLimit rate.Limit
	executeBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer constructs an RPC server. The auth token guards the mutating
// execute method; executeLimitPerMinute throttles it per client address.
func NewServer(scheduler *rebase.Scheduler, history *storage.Store, authToken string, executeLimitPerMinute int) *Server {
	perSecond := float64(executeLimitPerMinute) / 60.0
	if perSecond <= 0 {
		perSecond = 1.0 / 60.0
	}
	burst := executeLimitPerMinute
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		scheduler:    scheduler,
		history:      history,
		authToken:    strings.TrimSpace(authToken),
		executeLimit: rate.Limit(perSecond),
		executeBurst: burst,
		limiters:     make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

// Serve runs the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      any               `json:"id"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id any, code int, message string) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &rpcError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id any, result any) {
	resp := rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version")
		return
	}

	switch req.Method {
	case "rebase_currentBackingRatio":
		writeResult(w, req.ID, map[string]string{"ratio": s.scheduler.CurrentBackingRatio().String()})
	case "rebase_projectedRate":
		s.handleProjectedRate(w, req)
	case "rebase_lastEpochTime":
		writeResult(w, req.ID, map[string]int64{"lastEpochTime": s.scheduler.LastEpochTime()})
	case "rebase_epochLength":
		writeResult(w, req.ID, map[string]int64{"epochSeconds": int64(s.scheduler.EpochLength() / time.Second)})
	case "rebase_history":
		s.handleHistory(w, r, req)
	case "rebase_executeEpoch":
		s.handleExecute(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found")
	}
}

func (s *Server) handleProjectedRate(w http.ResponseWriter, req rpcRequest) {
	result, err := s.scheduler.ProjectedRate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, projectionPayload(result))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "history store not configured")
		return
	}
	limit := 0
	if len(req.Params) > 0 {
		var params struct {
			Limit int `json:"limit"`
		}
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid history params")
			return
		}
		limit = params.Limit
	}
	records, err := s.history.ListRebases(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	payload := make([]map[string]any, 0, len(records))
	for _, record := range records {
		payload = append(payload, recordPayload(record))
	}
	writeResult(w, req.ID, payload)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized")
		return
	}
	if !s.allowExecute(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "execute rate limit exceeded")
		return
	}
	record, err := s.scheduler.ExecuteEpoch()
	if err != nil {
		if errors.Is(err, rebase.ErrNotReady) {
			writeError(w, http.StatusOK, req.ID, codeNotReady, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, recordPayload(record))
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

func (s *Server) allowExecute(client string) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(s.executeLimit, s.executeBurst)
		s.limiters[client] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func projectionPayload(result rebase.Result) map[string]any {
	return map[string]any{
		"apr":        result.APR,
		"ratio":      result.Ratio.String(),
		"epochMint":  result.EpochMint.String(),
		"toStakers":  result.ToStakers.String(),
		"toOps":      result.ToOps.String(),
		"toBurner":   result.ToBurner.String(),
		"floorValue": result.FloorValue.String(),
	}
}

func recordPayload(record rebase.Record) map[string]any {
	return map[string]any{
		"epoch":        record.Epoch,
		"executedAt":   record.ExecutedAt,
		"apr":          record.APR,
		"ratio":        record.Ratio.String(),
		"epochMint":    record.EpochMint.String(),
		"toStakers":    record.ToStakers.String(),
		"toOps":        record.ToOps.String(),
		"toBurner":     record.ToBurner.String(),
		"reserveGuard": record.ReserveGuard,
	}
}
