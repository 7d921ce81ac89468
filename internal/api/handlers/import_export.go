package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/inventory-valuator/internal/models"
	"github.com/codyseavey/inventory-valuator/internal/services"
)

type ValuationArchive interface {
	ExportAll(ctx context.Context) ([]models.Valuation, error)
	Get(ctx context.Context, steamID string) (*models.Valuation, error)
	ImportBatch(ctx context.Context, records []models.Valuation) (int, error)
	ResetAll(ctx context.Context) (int64, error)
}

type ImportExportHandler struct {
	store ValuationArchive
}

func NewImportExportHandler(store ValuationArchive) *ImportExportHandler {
	return &ImportExportHandler{store: store}
}

func (h *ImportExportHandler) format(c *gin.Context) (services.ExportFormat, bool) {
	format, err := services.ParseExportFormat(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ImportExportResponse{Error: err.Error()})
		return "", false
	}
	return format, true
}

// ExportAll encodes every stored valuation
func (h *ImportExportHandler) ExportAll(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}

	valuations, err := h.store.ExportAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ImportExportResponse{Error: err.Error()})
		return
	}

	h.writeExport(c, format, valuations)
}

// ExportOne encodes the valuation of a single account
func (h *ImportExportHandler) ExportOne(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}

	steamID := c.Param("steamId64")
	if !models.IsValidSteamID64(steamID) {
		c.JSON(http.StatusBadRequest, models.ImportExportResponse{Error: msgInvalidSteamID})
		return
	}

	valuation, err := h.store.Get(c.Request.Context(), steamID)
	if errors.Is(err, services.ErrValuationNotFound) {
		c.JSON(http.StatusNotFound, models.ImportExportResponse{Error: "No valuations found for this Steam ID"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ImportExportResponse{Error: err.Error()})
		return
	}

	h.writeExport(c, format, []models.Valuation{*valuation})
}

func (h *ImportExportHandler) writeExport(c *gin.Context, format services.ExportFormat, valuations []models.Valuation) {
	data, err := services.EncodeValuations(format, valuations)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ImportExportResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ImportExportResponse{
		Success: true,
		Data:    data,
		Count:   len(valuations),
	})
}

// Import decodes a document from {"data": "..."} and upserts its records
func (h *ImportExportHandler) Import(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	label := strings.ToUpper(string(format))

	var req models.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Data) == "" {
		c.JSON(http.StatusBadRequest, models.ImportExportResponse{Error: label + " data is required"})
		return
	}

	records, err := services.DecodeValuations(format, req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ImportExportResponse{Error: err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusBadRequest, models.ImportExportResponse{Error: "No valid data found in " + label})
		return
	}

	imported, err := h.store.ImportBatch(c.Request.Context(), records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ImportExportResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ImportExportResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully imported %d valuations", imported),
		Count:   imported,
	})
}

// Reset deletes every stored valuation
func (h *ImportExportHandler) Reset(c *gin.Context) {
	deleted, err := h.store.ResetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	message := fmt.Sprintf("Successfully deleted %d valuations", deleted)
	if deleted == 0 {
		message = "Database is already empty"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      message,
		"deletedCount": deleted,
	})
}
