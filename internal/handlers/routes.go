package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/transfer-ledger/internal/middleware"
)

// RegisterRoutes mounts the /api/v1 surface on router
func RegisterRoutes(router *gin.Engine, h *Handlers, jwtSecret string) {
	v1 := router.Group("/api/v1")

	// Health check (public)
	v1.GET("/health", h.Health.Index)

	protected := v1.Group("")
	protected.Use(middleware.Auth(jwtSecret))

	// Event producers
	producers := protected.Group("")
	producers.Use(middleware.RequireRole(middleware.RoleService, middleware.RoleAdmin))
	{
		producers.POST("/events/reservation-completed", h.Event.ReservationCompleted)
		producers.PUT("/drivers/system/:driver_id", h.Driver.UpsertSystem)
	}

	// Read-only views
	readers := protected.Group("")
	readers.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleViewer))
	{
		readers.GET("/drivers/manual", h.Driver.ListManual)
		readers.GET("/drivers/manual/:driver_id", h.Driver.ShowManual)
		readers.GET("/drivers/:driver_id/statement", h.Driver.Statement)
		readers.GET("/drivers/:driver_id/statement.pdf", h.Driver.StatementPDF)

		readers.GET("/ledger/transactions", h.Ledger.ListTransactions)
		readers.GET("/reservations/:reservation_id/ledger", h.Event.History)

		readers.GET("/reports/periods", h.Report.Periods)
		readers.GET("/reports/periods.xlsx", h.Report.PeriodsXLSX)
		readers.GET("/reports/periods.csv", h.Report.PeriodsCSV)
		readers.GET("/reports/company", h.Report.Company)
	}

	// Admin-only routes
	admin := protected.Group("")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/reservations/:reservation_id/reverse", h.Event.Reverse)
		admin.POST("/drivers/manual/:driver_id/transactions", h.Driver.RecordTransaction)

		admin.POST("/ledger/manual-entries", h.Ledger.CreateManualEntry)
		admin.DELETE("/ledger/manual-entries/:entry_id", h.Ledger.DeleteManualEntry)

		admin.GET("/anomalies", h.Anomaly.Index)
		admin.POST("/anomalies/:anomaly_id/resolve", h.Anomaly.Resolve)

		admin.POST("/reconciliation/run", h.Reconciliation.Run)
		admin.GET("/jobs/status", h.Job.Status)
		admin.POST("/jobs/reconciliation", h.Job.TriggerReconciliation)
		admin.GET("/audits", h.Audit.Index)
	}
}
