package repository

import (
	"context"

	"github.com/sjperalta/transfer-ledger/internal/models"

	"gorm.io/gorm"
)

// AnomalyRepository stores entries flagged for manual review
type AnomalyRepository interface {
	Create(ctx context.Context, anomaly *models.LedgerAnomaly) error
	FindByID(ctx context.Context, id uint) (*models.LedgerAnomaly, error)
	List(ctx context.Context, unresolvedOnly bool) ([]models.LedgerAnomaly, error)
	Update(ctx context.Context, anomaly *models.LedgerAnomaly) error
}

type anomalyRepository struct {
	db *gorm.DB
}

// NewAnomalyRepository creates a new anomaly repository
func NewAnomalyRepository(db *gorm.DB) AnomalyRepository {
	return &anomalyRepository{db: db}
}

func (r *anomalyRepository) Create(ctx context.Context, anomaly *models.LedgerAnomaly) error {
	return r.db.WithContext(ctx).Create(anomaly).Error
}

func (r *anomalyRepository) FindByID(ctx context.Context, id uint) (*models.LedgerAnomaly, error) {
	var anomaly models.LedgerAnomaly
	if err := r.db.WithContext(ctx).First(&anomaly, id).Error; err != nil {
		return nil, err
	}
	return &anomaly, nil
}

func (r *anomalyRepository) List(ctx context.Context, unresolvedOnly bool) ([]models.LedgerAnomaly, error) {
	var anomalies []models.LedgerAnomaly
	db := r.db.WithContext(ctx)
	if unresolvedOnly {
		db = db.Where("resolved_at IS NULL")
	}
	err := db.Order("created_at DESC").Find(&anomalies).Error
	return anomalies, err
}

func (r *anomalyRepository) Update(ctx context.Context, anomaly *models.LedgerAnomaly) error {
	return r.db.WithContext(ctx).Save(anomaly).Error
}
