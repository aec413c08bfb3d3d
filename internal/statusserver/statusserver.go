// Package statusserver is an optional, read-only gin HTTP endpoint exposing
// a device's FSM state, introspection, and last error for field debugging.
package statusserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Snapshot is the read-only status the device reports on each request.
type Snapshot struct {
	State         string `json:"state"`
	Introspection string `json:"introspection"`
	LastError     string `json:"last_error,omitempty"`
	Connected     bool   `json:"connected"`
}

// SnapshotFunc is called on every GET /status request; implementations must
// be safe to call concurrently and must not block.
type SnapshotFunc func() Snapshot

// Server is a minimal read-only debug HTTP server. The zero value is not
// usable; build one with New.
type Server struct {
	addr     string
	logger   *zap.Logger
	snapshot SnapshotFunc

	mu     sync.Mutex
	http   *http.Server
	stopCh chan struct{}
}

// New builds a Server listening on addr. If addr is empty, the server is
// disabled and Start is a no-op, matching the optional-ness of the debug
// endpoint in the external-interfaces contract.
func New(addr string, snapshot SnapshotFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:     addr,
		logger:   logger.With(zap.String("component", "status_server")),
		snapshot: snapshot,
		stopCh:   make(chan struct{}),
	}
}

func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggingMiddleware(s.logger))
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.snapshot())
	})
	return router
}

// Start blocks serving HTTP until ctx is cancelled or Stop is called. A
// disabled server (empty addr) returns immediately with a nil error.
func (s *Server) Start(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}
	router := s.setupRouter()
	httpServer := &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = httpServer
	s.mu.Unlock()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("status server: %w", err)
		}
	case <-ctx.Done():
	case <-s.stopCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Stop requests a graceful shutdown of a running server.
func (s *Server) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}
