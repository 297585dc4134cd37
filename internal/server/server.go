// Package server exposes the webhook intake and the read-only dashboard API.
package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skrlabs/skrswap/internal/account"
	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/domain"
	"github.com/skrlabs/skrswap/internal/ingest"
	"github.com/skrlabs/skrswap/internal/router"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/pkg/logger"
)

// maxBodyBytes caps webhook payloads; signals are tiny.
const maxBodyBytes = 1 << 20

// serviceVersion is reported by /healthz.
const serviceVersion = "1.0.0"

type Server struct {
	cfg        config.ServerConfig
	normalizer *ingest.Normalizer
	router     *router.Router
	manager    *account.Manager
	store      *store.Store
}

func New(cfg config.ServerConfig, n *ingest.Normalizer, r *router.Router, m *account.Manager, st *store.Store) *Server {
	return &Server{cfg: cfg, normalizer: n, router: r, manager: m, store: st}
}

// Handler builds the HTTP surface. Webhook intake plus a small read-only API
// the dashboard polls.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealthz)
	r.POST("/webhook", s.handleWebhook)

	api := r.Group("/api")
	api.GET("/swaps", s.handleSwapsList)
	api.GET("/signals", s.handleSignalsList)
	api.GET("/accounts", s.handleAccountsList)
	api.GET("/balances/:accountID", s.handleAccountBalances)

	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "skrswapd", "version": serviceVersion})
}

// handleWebhook is the hot path: parse, route, report. Parse failures are the
// sender's problem (4xx); gate rejections are normal outcomes inside a 200.
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	sig, err := s.normalizer.Normalize(body, c.GetHeader("Content-Type"))
	if err != nil {
		var perr *domain.ParseError
		if errors.As(err, &perr) {
			logger.Infof("webhook rejected: %s", perr)
			c.JSON(http.StatusBadRequest, gin.H{"code": perr.Code, "error": perr.Detail})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.router.Route(c.Request.Context(), sig)
	if err != nil {
		logger.Errorf("route signal %s: %v", sig.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, res)
}
