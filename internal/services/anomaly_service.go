package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"gorm.io/gorm"
)

// AnomalyService is the review queue for entries booked under a fallback rule
type AnomalyService struct {
	repo repository.AnomalyRepository
	uow  repository.UnitOfWork
}

func NewAnomalyService(repo repository.AnomalyRepository, uow repository.UnitOfWork) *AnomalyService {
	return &AnomalyService{repo: repo, uow: uow}
}

func (s *AnomalyService) List(ctx context.Context, unresolvedOnly bool) ([]models.LedgerAnomaly, error) {
	return s.repo.List(ctx, unresolvedOnly)
}

// Resolve closes an anomaly after review. Any money correction is a separate
// manual entry; the flagged ledger entry itself stays untouched.
func (s *AnomalyService) Resolve(ctx context.Context, id uint, note string, actorID *uint) (*models.LedgerAnomaly, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, validationError("resolution note is required")
	}

	var resolved *models.LedgerAnomaly
	err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
		anomaly, err := repos.Anomaly.FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: anomaly %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if anomaly.IsResolved() {
			return fmt.Errorf("%w: anomaly %d is already resolved", ErrInvalidState, id)
		}

		now := time.Now()
		anomaly.ResolvedAt = &now
		anomaly.ResolvedByUserID = actorID
		anomaly.ResolutionNote = note
		if err := repos.Anomaly.Update(ctx, anomaly); err != nil {
			return err
		}
		if err := repos.Audit.Create(ctx, newAuditLog(actorID, models.AuditActionResolveAnomaly, "ledger_anomaly",
			fmt.Sprintf("%d", id), note)); err != nil {
			return err
		}
		resolved = anomaly
		return nil
	})
	return resolved, err
}
