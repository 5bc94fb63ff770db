package services

import (
	"context"

	"github.com/sjperalta/transfer-ledger/internal/models"
	"github.com/sjperalta/transfer-ledger/internal/repository"
)

// scanHookLedger runs onBatch before each EachBatch callback
type scanHookLedger struct {
	repository.LedgerRepository
	onBatch func()
}

func (m *scanHookLedger) EachBatch(ctx context.Context, batchSize int, fn func(batch []models.LedgerTransaction) error) error {
	return m.LedgerRepository.EachBatch(ctx, batchSize, func(batch []models.LedgerTransaction) error {
		m.onBatch()
		return fn(batch)
	})
}
