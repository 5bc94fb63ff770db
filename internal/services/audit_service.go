package services

import (
	"context"
	"fmt"

	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry outside any ledger transaction
func (s *AuditService) Log(ctx context.Context, actorID *uint, action, entity, entityID, details string) error {
	return s.repo.Create(ctx, newAuditLog(actorID, action, entity, entityID, details))
}

// List retrieves audit logs, newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func newAuditLog(actorID *uint, action, entity, entityID, details string) *models.AuditLog {
	return &models.AuditLog{
		UserID:   actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  details,
	}
}

func describeAmount(label string, entry *models.LedgerTransaction) string {
	return fmt.Sprintf("%s type=%s revenue=%s expense=%s net=%s",
		label, entry.Type, entry.RevenueAmount.StringFixed(2), entry.ExpenseAmount.StringFixed(2), entry.NetAmount.StringFixed(2))
}
