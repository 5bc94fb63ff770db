package repository

import (
	"context"
	"errors"

	"github.com/sjperalta/transfer-ledger/internal/models"

	"gorm.io/gorm"
)

// ReservationRepository stores the ledger lifecycle of bookings
type ReservationRepository interface {
	FindByID(ctx context.Context, id string) (*models.ReservationRecord, error)
	Save(ctx context.Context, reservation *models.ReservationRecord) error
}

type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

// FindByID returns nil, nil for reservations the ledger has never seen
func (r *reservationRepository) FindByID(ctx context.Context, id string) (*models.ReservationRecord, error) {
	var reservation models.ReservationRecord
	err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) Save(ctx context.Context, reservation *models.ReservationRecord) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}
