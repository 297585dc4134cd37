package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skrlabs/skrswap/internal/domain"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/pkg/logger"
)

// queryLimit parses ?limit= with a sane cap; the store applies its own
// default when zero.
func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	if n > 500 {
		return 500
	}
	return n
}

func (s *Server) handleSwapsList(c *gin.Context) {
	f := store.SwapFilter{
		AccountID: c.Query("account_id"),
		Status:    domain.SwapStatus(c.Query("status")),
		Limit:     queryLimit(c),
	}
	recs, err := s.store.ListSwaps(c.Request.Context(), f)
	if err != nil {
		logger.Errorf("list swaps: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]swapView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSwapView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"swaps": out})
}

func (s *Server) handleSignalsList(c *gin.Context) {
	sigs, err := s.store.ListSignals(c.Request.Context(), queryLimit(c))
	if err != nil {
		logger.Errorf("list signals: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if sigs == nil {
		sigs = []store.StoredSignal{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": sigs})
}

func (s *Server) handleAccountsList(c *gin.Context) {
	accts := s.manager.Accounts()
	out := make([]accountView, 0, len(accts))
	for _, a := range accts {
		out = append(out, toAccountView(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) handleAccountBalances(c *gin.Context) {
	id := c.Param("accountID")
	if s.manager.ByID(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account " + id})
		return
	}
	balances, err := s.store.GetWalletBalances(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("load balances for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if balances == nil {
		balances = []store.WalletBalance{}
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "balances": balances})
}
