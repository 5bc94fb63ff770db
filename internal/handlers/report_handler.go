package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/services"
)

type ReportHandler struct {
	reportingService *services.ReportingService
	exportService    *services.ExportService
}

func NewReportHandler(reportingService *services.ReportingService, exportService *services.ExportService) *ReportHandler {
	return &ReportHandler{reportingService: reportingService, exportService: exportService}
}

func (h *ReportHandler) periods(c *gin.Context) (string, []services.PeriodSummary, bool) {
	granularity := c.DefaultQuery("granularity", services.GranularityMonth)
	periods, err := h.reportingService.GroupByPeriod(c.Request.Context(), granularity)
	if err != nil {
		respondError(c, err)
		return "", nil, false
	}
	return granularity, periods, true
}

// Periods returns revenue/expense/net per month or year, most recent first
func (h *ReportHandler) Periods(c *gin.Context) {
	granularity, periods, ok := h.periods(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"granularity": granularity, "periods": periods})
}

func (h *ReportHandler) PeriodsXLSX(c *gin.Context) {
	granularity, periods, ok := h.periods(c)
	if !ok {
		return
	}
	data, filename, err := h.exportService.PeriodsXLSX(granularity, periods)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ReportHandler) PeriodsCSV(c *gin.Context) {
	granularity, periods, ok := h.periods(c)
	if !ok {
		return
	}
	data, filename, err := h.exportService.PeriodsCSV(granularity, periods)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, filename, "text/csv", data)
}

// Company returns the aggregate account with its breakdowns
func (h *ReportHandler) Company(c *gin.Context) {
	snapshot, err := h.reportingService.CompanySnapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
