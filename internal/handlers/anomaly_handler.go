package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/services"
)

type AnomalyHandler struct {
	anomalyService *services.AnomalyService
}

func NewAnomalyHandler(anomalyService *services.AnomalyService) *AnomalyHandler {
	return &AnomalyHandler{anomalyService: anomalyService}
}

// Index lists open anomalies; status=all includes resolved ones
func (h *AnomalyHandler) Index(c *gin.Context) {
	unresolvedOnly := c.DefaultQuery("status", "open") != "all"

	anomalies, err := h.anomalyService.List(c.Request.Context(), unresolvedOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": anomalies})
}

type ResolveAnomalyRequest struct {
	Note string `json:"note" binding:"required"`
}

func (h *AnomalyHandler) Resolve(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("anomaly_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid anomaly ID"})
		return
	}

	var req ResolveAnomalyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A resolution note is required"})
		return
	}

	anomaly, err := h.anomalyService.Resolve(c.Request.Context(), uint(id), req.Note, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anomaly)
}
