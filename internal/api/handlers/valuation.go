package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/inventory-valuator/internal/services"
)

type ProfileResolver interface {
	Resolve(ctx context.Context, profile string) (string, error)
}

type RevaluationQueue interface {
	QueueRefresh(steamID string) (int, error)
	GetStatus() services.RevaluationStatus
}

type ValuationHandler struct {
	valuer   services.AccountValuer
	resolver ProfileResolver
	worker   RevaluationQueue
}

func NewValuationHandler(valuer services.AccountValuer, resolver ProfileResolver, worker RevaluationQueue) *ValuationHandler {
	return &ValuationHandler{
		valuer:   valuer,
		resolver: resolver,
		worker:   worker,
	}
}

// ValueProfile values an account given either ?steamId64= or ?profileUrl=
func (h *ValuationHandler) ValueProfile(c *gin.Context) {
	steamID := strings.TrimSpace(c.Query("steamId64"))
	profileURL := strings.TrimSpace(c.Query("profileUrl"))

	if steamID == "" && profileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Steam profile URL."})
		return
	}

	if steamID == "" {
		resolved, err := h.resolver.Resolve(c.Request.Context(), profileURL)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		steamID = resolved
	}

	result, err := h.valuer.ValueAccount(c.Request.Context(), steamID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefreshValuation queues an account for background revaluation
func (h *ValuationHandler) RefreshValuation(c *gin.Context) {
	position, err := h.worker.QueueRefresh(c.Param("steamId64"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queued":   true,
		"position": position,
	})
}

// GetStatus returns the revaluation worker status
func (h *ValuationHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.GetStatus())
}
