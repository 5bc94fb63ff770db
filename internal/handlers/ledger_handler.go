package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/internal/services"
)

type LedgerHandler struct {
	ledgerService    *services.LedgerService
	reportingService *services.ReportingService
}

func NewLedgerHandler(ledgerService *services.LedgerService, reportingService *services.ReportingService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, reportingService: reportingService}
}

// CreateManualEntry books an operator-entered income or expense
func (h *LedgerHandler) CreateManualEntry(c *gin.Context) {
	var req services.ManualLedgerEntry
	if err := BindNestedOrFlat(c, "entry", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.ledgerService.CreateManualEntry(c.Request.Context(), req, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondAppend(c, result)
}

// DeleteManualEntry removes a manual entry; system entries answer 409
func (h *LedgerHandler) DeleteManualEntry(c *gin.Context) {
	entry, err := h.ledgerService.DeleteManualEntry(c.Request.Context(), c.Param("entry_id"), middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": entry})
}

// ListTransactions pages through the ledger, newest first
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	filter := repository.LedgerFilter{
		ListQuery:     repository.NewListQuery(),
		Type:          c.Query("type"),
		DriverID:      c.Query("driver_id"),
		Category:      c.Query("category"),
		ReservationID: c.Query("reservation_id"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "50"))
	filter.Normalize()

	var err error
	if filter.From, err = parseTimeParam(c.Query("from")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.To, err = parseTimeParam(c.Query("to")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, total, err := h.reportingService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": entries,
		"pagination": gin.H{
			"page":        filter.Page,
			"per_page":    filter.PerPage,
			"total":       total,
			"total_pages": (total + int64(filter.PerPage) - 1) / int64(filter.PerPage),
		},
	})
}
