package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"
)

// BalanceReconciler moves trades between the active and trashed states while
// keeping the owning account's balance consistent with the PnL those trades
// have applied. All cross-row safety comes from the transaction and the row
// lock taken in it; there are no in-process locks, so the reconciler is safe
// to run behind multiple server processes sharing one database.
type BalanceReconciler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBalanceReconciler creates a reconciler on the shared pool.
func NewBalanceReconciler(db *gorm.DB, _ *database.Schema, logger *zap.Logger) *BalanceReconciler {
	return &BalanceReconciler{db: db, logger: logger}
}

// Trash soft-deletes the given trades and reverses their net applied PnL from
// the owning account's balance. Trades that are already trashed are silently
// skipped, so repeated calls with overlapping id sets are idempotent per row.
// Returns the post-state of every row actually affected.
func (r *BalanceReconciler) Trash(ctx context.Context, ids []string) ([]models.Trade, error) {
	return r.flip(ctx, ids, true)
}

// Restore undeletes the given trades and reapplies their net PnL to the
// owning account's balance. The mirror of Trash in every respect.
func (r *BalanceReconciler) Restore(ctx context.Context, ids []string) ([]models.Trade, error) {
	return r.flip(ctx, ids, false)
}

func (r *BalanceReconciler) flip(ctx context.Context, ids []string, trash bool) ([]models.Trade, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "ids", Reason: "at least one trade id is required"}
	}

	affected := []models.Trade{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock and select only the rows still in the opposite state; rows
		// already in the target state drop out here rather than erroring.
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rows []models.Trade
		if err := q.Where("id IN ?", ids).Where("is_deleted = ?", !trash).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		// Exactly one account per batch.
		accounts := map[string]bool{}
		for _, row := range rows {
			accounts[row.AccountID] = true
		}
		if len(accounts) > 1 {
			names := make([]string, 0, len(accounts))
			for id := range accounts {
				names = append(names, id)
			}
			sort.Strings(names)
			return &CrossAccountError{Accounts: names}
		}
		accountID := rows[0].AccountID

		// Only trades whose PnL actually reached the balance contribute.
		net := decimal.Zero
		rowIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			rowIDs = append(rowIDs, row.ID)
			if row.IsBalanceUpdated && !row.PnL.IsZero() {
				net = net.Add(row.PnL)
			}
		}
		if !net.IsZero() {
			delta := net
			if trash {
				delta = net.Neg()
			}
			if err := adjustBalanceTx(tx, accountID, delta); err != nil {
				return err
			}
		}

		// Flip the soft-delete state. IsBalanceUpdated stays as it is: it
		// records that this trade's PnL was applied at some point and must be
		// reapplied on restore.
		updates := map[string]interface{}{
			"is_deleted": trash,
			"deleted_at": nil,
		}
		if trash {
			now := time.Now().UTC()
			updates["deleted_at"] = now
		}
		if err := tx.Model(&models.Trade{}).Where("id IN ?", rowIDs).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Where("id IN ?", rowIDs).Order("id").Find(&affected).Error; err != nil {
			return err
		}

		op := "restored"
		if trash {
			op = "trashed"
		}
		r.logger.Info("trades "+op,
			zap.Int("count", len(rowIDs)),
			zap.String("account_id", accountID),
			zap.String("net_pnl", net.String()))
		return nil
	})
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return affected, nil
}
