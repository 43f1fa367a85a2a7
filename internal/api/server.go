// Package api provides the HTTP server exposing the OpenAI-compatible
// surface. It owns routing, CORS, client API key authentication and
// graceful shutdown; request handling lives in the handlers subpackage.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/keenturbo/antigravity2api/internal/api/handlers"
	"github.com/keenturbo/antigravity2api/internal/config"
	"github.com/keenturbo/antigravity2api/internal/logging"
	"github.com/keenturbo/antigravity2api/internal/runtime/executor"
)

// Server wraps the Gin engine and the HTTP listener.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	mu  sync.RWMutex
	cfg *config.Config
}

// NewServer builds the HTTP server with routing and middleware in place.
func NewServer(cfg *config.Config, exec *executor.AntigravityExecutor) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		logging.GinLogrusLogger(),
		logging.GinLogrusRecovery(),
		corsMiddleware(),
	)

	s := &Server{
		engine: engine,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           engine,
			ReadHeaderTimeout: 30 * time.Second,
		},
	}

	h := handlers.NewOpenAIHandler(exec)

	engine.GET("/health", func(c *gin.Context) {
		logging.SkipRequestLog(c)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1", s.apiKeyAuth())
	v1.POST("/chat/completions", h.ChatCompletions)
	v1.GET("/models", h.Models)
	v1.GET("/logs", s.recentLogs)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// UpdateConfig swaps in a reloaded configuration. Only hot-swappable
// settings (API keys, request logging) take effect; address changes
// require a restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// apiKeyAuth validates the client key against the configured list. An empty
// list disables authentication.
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.currentConfig()
		if len(cfg.APIKeys) == 0 {
			c.Next()
			return
		}

		key := extractClientKey(c)
		for _, allowed := range cfg.APIKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(allowed)) == 1 {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{
				"message": "Incorrect API key provided.",
				"type":    "invalid_request_error",
				"code":    "invalid_api_key",
			},
		})
	}
}

// extractClientKey pulls the client credential from the places OpenAI
// clients put it.
func extractClientKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if key := c.GetHeader("X-Api-Key"); key != "" {
		return key
	}
	return c.Query("key")
}

// recentLogs serves the in-memory request log when enabled.
func (s *Server) recentLogs(c *gin.Context) {
	if !s.currentConfig().RequestLog {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"message": "request logging is disabled", "type": "invalid_request_error"},
		})
		return
	}
	entries := logging.GetRecentGlobalEntries(200)
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
