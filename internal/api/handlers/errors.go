package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/inventory-valuator/internal/services"
)

const (
	msgInvalidSteamID  = "Invalid SteamID64."
	msgNotAccessible   = "Inventory not accessible."
	msgThrottled       = "Steam is rate limiting requests, try again later."
	msgValuationFailed = "Failed to save valuation."
)

// writeServiceError maps service errors onto HTTP responses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAccountID):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidSteamID})
	case errors.Is(err, services.ErrInventoryInaccessible):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNotAccessible})
	case errors.Is(err, services.ErrUpstreamThrottled):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msgThrottled})
	case errors.Is(err, services.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgValuationFailed})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "valuation timed out"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send
		c.AbortWithStatus(499)
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
