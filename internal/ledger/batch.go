package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"
)

// BatchCoordinator wraps repeated trade upserts in a single transaction for
// bulk import: a batch commits every row or none of them.
type BatchCoordinator struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBatchCoordinator creates a coordinator on the shared pool.
func NewBatchCoordinator(db *gorm.DB, _ *database.Schema, logger *zap.Logger) *BatchCoordinator {
	return &BatchCoordinator{db: db, logger: logger}
}

// BatchResult reports what a committed batch wrote.
type BatchResult struct {
	UpdatedCount int      `json:"updatedCount"`
	UpdatedIDs   []string `json:"updatedIds"`
}

// BatchUpsert applies the single-trade upsert semantics to every trade in one
// transaction. Validation runs up front, before anything is written; a
// constraint failure on any row rolls back the whole batch.
func (c *BatchCoordinator) BatchUpsert(ctx context.Context, trades []*models.Trade, refreshTags bool) (BatchResult, error) {
	if len(trades) == 0 {
		return BatchResult{}, &ValidationError{Field: "trades", Reason: "at least one trade is required"}
	}
	for _, trade := range trades {
		if err := validateTrade(trade); err != nil {
			return BatchResult{}, err
		}
	}

	ids := make([]string, 0, len(trades))
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, trade := range trades {
			normalizeTrade(trade, refreshTags)
			if err := upsertTx(tx, trade, decimal.Zero); err != nil {
				return fmt.Errorf("trade %s: %w", trade.ID, err)
			}
			ids = append(ids, trade.ID)
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, classifyStorageErr(err)
	}

	c.logger.Info("batch upsert committed", zap.Int("count", len(ids)))
	return BatchResult{UpdatedCount: len(ids), UpdatedIDs: ids}, nil
}
