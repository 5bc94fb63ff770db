package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/services"
)

// EventHandler receives booking lifecycle events
type EventHandler struct {
	ledgerService *services.LedgerService
}

func NewEventHandler(ledgerService *services.LedgerService) *EventHandler {
	return &EventHandler{ledgerService: ledgerService}
}

// ReservationCompleted books a finished trip. Producers may send the event
// flat or wrapped as {"event": {...}}. A replayed event answers 200 with
// duplicate=true.
func (h *EventHandler) ReservationCompleted(c *gin.Context) {
	var event models.ReservationCompletedEvent
	if err := BindNestedOrFlat(c, "event", &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event payload: " + err.Error()})
		return
	}

	result, err := h.ledgerService.RecordReservationCompleted(c.Request.Context(), &event)
	if err != nil {
		respondError(c, err)
		return
	}
	respondAppend(c, result)
}

type ReverseReservationRequest struct {
	Note string `json:"note" binding:"required"`
}

// Reverse books the compensating entry for a completed reservation
func (h *EventHandler) Reverse(c *gin.Context) {
	var req ReverseReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reversal note is required"})
		return
	}

	result, err := h.ledgerService.ReverseReservation(c.Request.Context(), c.Param("reservation_id"), req.Note, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondAppend(c, result)
}

// History lists the entries booked for a reservation and whether it can still be reversed
func (h *EventHandler) History(c *gin.Context) {
	history, err := h.ledgerService.ReservationHistory(c.Request.Context(), c.Param("reservation_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
