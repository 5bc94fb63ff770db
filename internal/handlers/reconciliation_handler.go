package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/services"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
}

func NewReconciliationHandler(reconciliationService *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

// Run reconciles cached balances against the ledger immediately
func (h *ReconciliationHandler) Run(c *gin.Context) {
	report, err := h.reconciliationService.Reconcile(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
