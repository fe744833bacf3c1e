// Package api exposes the read-only query surface over the order store and
// the rule reload endpoint. It serves operators and the rule-editor UI; the
// poll pipeline never depends on it.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bidflow/config"
	"bidflow/internal/rules"
	"bidflow/internal/store"
	"bidflow/logger"
)

// Server hosts the Gin-powered query API.
type Server struct {
	cfg        config.APIConfig
	store      *store.Store
	engine     *rules.Engine
	httpServer *http.Server
	log        *logger.Log
}

// NewServer constructs the API server when the feature is enabled. When
// disabled the returned server is nil and safe to Run.
func NewServer(cfg config.APIConfig, st *store.Store, engine *rules.Engine) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	return &Server{
		cfg:    cfg,
		store:  st,
		engine: engine,
		log:    logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.buildRouter(),
	}

	s.log.WithComponent("api").WithFields(logger.Fields{
		"address": s.cfg.Address,
	}).Info("starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/health", s.handleHealth)
	router.GET("/api/orders", s.handleListOrders)
	router.GET("/api/orders/recent", s.handleRecentOrders)
	router.GET("/api/orders/count", s.handleCountOrders)
	router.GET("/api/rules", s.handleRules)
	router.POST("/api/rules/reload", s.handleReloadRules)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"rules":  s.engine.RuleCount(),
	})
}

func (s *Server) handleListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := s.store.ListOrders(store.Filter{
		Platform: c.Query("platform"),
		City:     c.Query("city"),
		Cinema:   c.Query("cinema"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.log.WithComponent("api").WithError(err).Error("order query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": records, "count": len(records)})
}

func (s *Server) handleRecentOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := s.store.RecentOrders(limit)
	if err != nil {
		s.log.WithComponent("api").WithError(err).Error("recent order query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": records, "count": len(records)})
}

func (s *Server) handleCountOrders(c *gin.Context) {
	count, err := s.store.CountOrders()
	if err != nil {
		s.log.WithComponent("api").WithError(err).Error("order count failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rules":     s.engine.RuleCount(),
		"loaded_at": s.engine.LoadedAt().Format(time.RFC3339Nano),
	})
}

// handleReloadRules re-reads the rule file. The next poll cycle sees the
// new snapshot.
func (s *Server) handleReloadRules(c *gin.Context) {
	if err := s.engine.Reload(); err != nil {
		s.log.WithComponent("api").WithError(err).Error("rule reload failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rules":     s.engine.RuleCount(),
		"loaded_at": s.engine.LoadedAt().Format(time.RFC3339Nano),
	})
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
