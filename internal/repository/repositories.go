package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrConflict is returned when an optimistic version check fails.
// Callers retry the whole unit of work.
var ErrConflict = errors.New("concurrent update conflict")

// Repositories holds all repository instances bound to one connection or transaction
type Repositories struct {
	Ledger      LedgerRepository
	Account     CompanyAccountRepository
	Driver      DriverRepository
	Reservation ReservationRepository
	Anomaly     AnomalyRepository
	Audit       AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Ledger:      NewLedgerRepository(db),
		Account:     NewCompanyAccountRepository(db),
		Driver:      NewDriverRepository(db),
		Reservation: NewReservationRepository(db),
		Anomaly:     NewAnomalyRepository(db),
		Audit:       NewAuditRepository(db),
	}
}

// UnitOfWork runs fn against repositories sharing a single database transaction.
// Returning an error from fn rolls everything back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos *Repositories) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a transactional unit of work over db
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(repos *Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// IsRetryable reports whether err is a write race the caller should retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// ListQuery represents common pagination parameters
type ListQuery struct {
	Page    int
	PerPage int
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() ListQuery {
	return ListQuery{
		Page:    1,
		PerPage: 50,
	}
}

// Normalize clamps the pagination values
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 50
	}
	if q.PerPage > 500 {
		q.PerPage = 500
	}
}

// Offset returns the row offset for the current page
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}
