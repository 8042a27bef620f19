// Package httpapi exposes the Store's query and tab surface over HTTP, as
// a read-only sibling of internal/socketrpc for clients that would rather
// speak HTTP than JSON-RPC over a Unix socket.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedtriage/triage/internal/query"
	"github.com/feedtriage/triage/internal/store"
	"github.com/feedtriage/triage/internal/tab"
)

// Server provides an HTTP API over a Store.
type Server struct {
	addr   string
	store  *store.Store
	engine *query.Engine
	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	mainTab   *tab.Tab
}

// NewServer creates a new HTTP API server over s, running queries through
// engine. mainTab is the process-wide main tab shared across requests;
// the HTTP surface does not support opening its own freeze/correlate
// tabs — that is reserved for the socket RPC and TUI clients.
func NewServer(addr string, s *store.Store, engine *query.Engine, mainTab *tab.Tab) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		store:   s,
		engine:  engine,
		mainTab: mainTab,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.POST("/api/query", s.handleQuery)
	r.GET("/api/tabs", s.handleTabs)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"log_count": s.store.Len(),
		"capacity":  s.store.Capacity(),
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		Tab   string `json:"tab"`
		Text  string `json:"text" binding:"required"`
		Greed *int   `json:"greed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing text field"})
		return
	}

	filter := s.mainTab.Filter()
	results, err := s.engine.Query(req.Text, req.Greed, filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	type wireResult struct {
		Seq       uint64    `json:"seq"`
		Timestamp time.Time `json:"timestamp"`
		Level     string    `json:"level"`
		Producer  string    `json:"producer"`
		Message   string    `json:"message"`
		Score     float64   `json:"score"`
	}
	out := make([]wireResult, 0, len(results))
	for _, r := range results {
		e, ok := s.store.Get(r.Seq)
		if !ok {
			continue
		}
		out = append(out, wireResult{
			Seq:       e.Seq,
			Timestamp: e.Timestamp,
			Level:     e.Level.String(),
			Producer:  e.Producer,
			Message:   e.Message,
			Score:     r.Score,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    out,
		"match_count": len(out),
	})
}

func (s *Server) handleTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"producers": s.store.Producers(),
	})
}
