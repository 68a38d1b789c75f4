// Package diag exposes a small read-only HTTP surface for operators
// embedding this driver: per-pool stats, health status, and Prometheus
// metrics. It carries no tenant CRUD — pools are configured through
// internal/config and internal/pool.Manager, not through this API.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oracleco/go-ttcdriver/internal/health"
	"github.com/oracleco/go-ttcdriver/internal/metrics"
	"github.com/oracleco/go-ttcdriver/internal/pool"
)

// Config configures the diagnostics server's bind address and
// optional bearer-token auth.
type Config struct {
	Addr   string
	APIKey string
}

// Server is the read-only diagnostics REST + metrics server.
type Server struct {
	poolMgr     *pool.Manager
	healthCheck *health.Checker
	metrics     *metrics.Collector
	httpServer  *http.Server
	startTime   time.Time
	cfg         Config
}

// NewServer creates a new diagnostics server.
func NewServer(pm *pool.Manager, hc *health.Checker, m *metrics.Collector, cfg Config) *Server {
	return &Server{
		poolMgr:     pm,
		healthCheck: hc,
		metrics:     m,
		startTime:   time.Now(),
		cfg:         cfg,
	}
}

// Start starts the HTTP diagnostics server.
func (s *Server) Start() error {
	r := mux.NewRouter()

	r.HandleFunc("/pools", s.listPools).Methods("GET")
	r.HandleFunc("/pools/{name}", s.getPool).Methods("GET")
	r.HandleFunc("/pools/{name}/stats", s.poolStats).Methods("GET")
	r.HandleFunc("/pools/{name}/drain", s.drainPool).Methods("POST")

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	r.HandleFunc("/ready", s.readyHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	addr := s.cfg.Addr
	if addr == "" {
		addr = "0.0.0.0:8090"
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.authMiddleware(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("[diag] server error: %v\n", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the diagnostics server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// authExemptPaths lists endpoints that must stay reachable without a
// bearer token so load balancer / orchestrator probes never 401.
var authExemptPaths = map[string]bool{
	"/healthz": true,
	"/ready":   true,
	"/metrics": true,
}

// authMiddleware requires "Authorization: Bearer <APIKey>" on every
// request except the exempt probe paths, when an APIKey is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" || authExemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type poolResponse struct {
	Name   string            `json:"name"`
	Stats  pool.Stats        `json:"stats"`
	Health health.PoolHealth `json:"health"`
}

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	var result []poolResponse
	for name, stats := range s.poolMgr.AllStats() {
		result = append(result, poolResponse{
			Name:   name,
			Stats:  stats,
			Health: s.healthCheck.GetStatus(name),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, ok := s.poolMgr.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "pool not found")
		return
	}

	writeJSON(w, http.StatusOK, poolResponse{
		Name:   name,
		Stats:  p.Stats(),
		Health: s.healthCheck.GetStatus(name),
	})
}

func (s *Server) poolStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, ok := s.poolMgr.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "pool not found")
		return
	}

	writeJSON(w, http.StatusOK, p.Stats())
}

func (s *Server) drainPool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !s.poolMgr.DrainPool(name) {
		writeError(w, http.StatusNotFound, "pool not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "drained", "pool": name})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	statuses := s.healthCheck.GetAllStatuses()
	allHealthy := s.healthCheck.OverallHealthy()

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status": boolToStatus(allHealthy),
		"pools":  statuses,
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	names := s.poolMgr.Names()
	if len(names) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	for _, name := range names {
		if s.healthCheck.IsHealthy(name) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
	}

	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(s.startTime).Seconds()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(uptime),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"num_pools":      len(s.poolMgr.Names()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func boolToStatus(b bool) string {
	if b {
		return "healthy"
	}
	return "unhealthy"
}
