package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/inventory-valuator/internal/models"
)

type InventoryLookup interface {
	FetchInventoryFor(ctx context.Context, steamID string, appID int, contextID string) (*models.SteamInventoryResponse, error)
}

type InventoryHandler struct {
	inventory InventoryLookup
}

func NewInventoryHandler(inventory InventoryLookup) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// GetInventory returns the raw Steam inventory of an account
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	steamID := c.Param("steamId64")
	if !models.IsValidSteamID64(steamID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidSteamID})
		return
	}

	// Zero values fall back to the configured app and context
	appID := 0
	if raw := c.Query("appId"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "appId must be a positive integer"})
			return
		}
		appID = parsed
	}
	contextID := c.Query("contextId")

	inventory, err := h.inventory.FetchInventoryFor(c.Request.Context(), steamID, appID, contextID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if inventory == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNotAccessible})
		return
	}

	c.JSON(http.StatusOK, inventory)
}
