// Package server exposes the watch-mode status surface: last cycle
// report, health, and Prometheus metrics. One-shot cron cycles never
// start it.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/hostbeat/internal/cycle"
	"github.com/loykin/hostbeat/internal/metrics"
)

// Router serves the watch-mode endpoints:
//
//	GET /healthz  liveness of the watcher itself
//	GET /status   last cycle report as JSON (503 until the first cycle)
//	GET /metrics  Prometheus metrics
type Router struct {
	mu   sync.RWMutex
	last *cycle.Report
}

func NewRouter() *Router { return &Router{} }

// SetReport stores the most recent cycle report.
func (r *Router) SetReport(rep cycle.Report) {
	r.mu.Lock()
	r.last = &rep
	r.mu.Unlock()
}

// Handler returns a gin-powered http.Handler that can be mounted in any mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr for this router.
func NewServer(addr string, r *Router) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleStatus(c *gin.Context) {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()
	if last == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no cycle completed yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}
