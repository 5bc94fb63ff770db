package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
	"github.com/sjperalta/transfer-ledger/internal/services"
)

type DriverHandler struct {
	driverService    *services.DriverBalanceService
	reportingService *services.ReportingService
	exportService    *services.ExportService
}

func NewDriverHandler(driverService *services.DriverBalanceService, reportingService *services.ReportingService, exportService *services.ExportService) *DriverHandler {
	return &DriverHandler{
		driverService:    driverService,
		reportingService: reportingService,
		exportService:    exportService,
	}
}

// RecordTransaction books a payment to or a collection from a manual driver
func (h *DriverHandler) RecordTransaction(c *gin.Context) {
	var req services.DriverAdjustment
	if err := BindNestedOrFlat(c, "transaction", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.driverService.RecordDriverTransaction(c.Request.Context(), c.Param("driver_id"), req, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondAppend(c, result)
}

// ListManual returns every manual driver with the cached balance
func (h *DriverHandler) ListManual(c *gin.Context) {
	drivers, err := h.driverService.ListManualDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	owing := 0
	for _, d := range drivers {
		if d.Owes() {
			owing++
		}
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers, "owing_count": owing})
}

func (h *DriverHandler) ShowManual(c *gin.Context) {
	driver, err := h.driverService.GetManualDriver(c.Request.Context(), c.Param("driver_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

// Statement returns the driver's time-ordered history with running balance
func (h *DriverHandler) Statement(c *gin.Context) {
	statement, err := h.reportingService.DriverStatement(c.Request.Context(), c.Param("driver_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

func (h *DriverHandler) StatementPDF(c *gin.Context) {
	statement, err := h.reportingService.DriverStatement(c.Request.Context(), c.Param("driver_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	data, filename, err := h.exportService.StatementPDF(statement)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, filename, "application/pdf", data)
}

// UpsertSystem stores the terms pushed by the driver profile service
func (h *DriverHandler) UpsertSystem(c *gin.Context) {
	var req services.SystemDriverInput
	if err := BindNestedOrFlat(c, "driver", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	driver, err := h.driverService.UpsertSystemDriver(c.Request.Context(), c.Param("driver_id"), req, middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}
