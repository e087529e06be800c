// Package http exposes the allocation ledger as a JSON API. Rendering
// is left to external clients; this layer only translates requests into
// service calls and domain errors into status codes.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"contas/internal/cache"
	"contas/internal/core"
	"contas/internal/services"
)

type Server struct {
	http.Server
	svc *services.AllocationService

	// reconciler waits for a committed allocation to become visible to
	// readers before the response goes out, so a client that reads its
	// own write immediately after POST sees it. Optional.
	reconciler *services.Reconciler

	// Read-side caches. Balance and limit reads dominate traffic in a
	// household session; both are invalidated when an allocation
	// commits through this server.
	balanceCache *cache.LRUCache[core.Balance]
	limitsCache  *cache.LRUCache[core.Limits]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.AllocationService, reconciler *services.Reconciler) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:              svc,
		reconciler:       reconciler,
		balanceCache:     cache.NewLRUCache[core.Balance](200, 1*time.Minute),
		limitsCache:      cache.NewLRUCache[core.Limits](200, 1*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /accounts/{id}/balance", s.withRequestLog(s.handleAccountBalance))
	mux.HandleFunc("GET /accounts/{id}/cards/{cardID}/allocated", s.withRequestLog(s.handleCardAllocated))
	mux.HandleFunc("GET /cards/{id}/limits", s.withRequestLog(s.handleCardLimits))
	mux.HandleFunc("GET /cards/{id}/invoice", s.withRequestLog(s.handleCardInvoice))
	mux.HandleFunc("POST /allocations", s.withRequestLog(s.handleCreateAllocation))

	return s
}

// startCacheCleanup runs periodic cleanup for both caches
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			balanceCleaned := s.balanceCache.CleanExpired()
			limitsCleaned := s.limitsCache.CleanExpired()
			if balanceCleaned > 0 || limitsCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"balance_entries_removed", balanceCleaned,
					"limits_entries_removed", limitsCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withRequestLog adds request logging and a request ID to handlers.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
