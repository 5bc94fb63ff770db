package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/models"

	"gorm.io/gorm"
)

// LedgerFilter narrows ledger queries
type LedgerFilter struct {
	ListQuery
	From          *time.Time
	To            *time.Time
	Type          string
	DriverID      string
	Category      string
	ReservationID string
}

// LedgerRepository defines the interface for ledger transaction data access
type LedgerRepository interface {
	Create(ctx context.Context, entry *models.LedgerTransaction) error
	FindByID(ctx context.Context, id string) (*models.LedgerTransaction, error)
	FindByDedupKey(ctx context.Context, key string) (*models.LedgerTransaction, error)
	FindByDriverID(ctx context.Context, driverID string) ([]models.LedgerTransaction, error)
	FindByReservationID(ctx context.Context, reservationID string) ([]models.LedgerTransaction, error)
	List(ctx context.Context, filter LedgerFilter) ([]models.LedgerTransaction, int64, error)
	Delete(ctx context.Context, id string) error
	EachBatch(ctx context.Context, batchSize int, fn func(batch []models.LedgerTransaction) error) error
}

// ledgerRepository handles database operations for ledger transactions
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Create appends a ledger entry
func (r *ledgerRepository) Create(ctx context.Context, entry *models.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) FindByID(ctx context.Context, id string) (*models.LedgerTransaction, error) {
	var entry models.LedgerTransaction
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByDedupKey returns nil, nil when no entry carries the key
func (r *ledgerRepository) FindByDedupKey(ctx context.Context, key string) (*models.LedgerTransaction, error) {
	var entry models.LedgerTransaction
	err := r.db.WithContext(ctx).Where("dedup_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByDriverID retrieves a driver's history in ledger order
func (r *ledgerRepository) FindByDriverID(ctx context.Context, driverID string) ([]models.LedgerTransaction, error) {
	var entries []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("date ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepository) FindByReservationID(ctx context.Context, reservationID string) ([]models.LedgerTransaction, error) {
	var entries []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("date ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

// List returns a filtered page of entries, newest first, and the total match count
func (r *ledgerRepository) List(ctx context.Context, filter LedgerFilter) ([]models.LedgerTransaction, int64, error) {
	filter.Normalize()

	db := r.db.WithContext(ctx).Model(&models.LedgerTransaction{})
	if filter.From != nil {
		db = db.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("date < ?", *filter.To)
	}
	if filter.Type != "" {
		db = db.Where("type = ?", filter.Type)
	}
	if filter.DriverID != "" {
		db = db.Where("driver_id = ?", filter.DriverID)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.ReservationID != "" {
		db = db.Where("reservation_id = ?", filter.ReservationID)
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerTransaction
	err := db.Order("date DESC, created_at DESC").
		Limit(filter.PerPage).
		Offset(filter.Offset()).
		Find(&entries).Error
	return entries, total, err
}

// Delete removes an entry; gorm.ErrRecordNotFound when nothing matched
func (r *ledgerRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.LedgerTransaction{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// EachBatch walks the whole ledger in primary-key batches
func (r *ledgerRepository) EachBatch(ctx context.Context, batchSize int, fn func(batch []models.LedgerTransaction) error) error {
	var batch []models.LedgerTransaction
	result := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return result.Error
}
