package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"
)

// TradeStore persists trades idempotently and applies explicit balance deltas
// in the same transaction as the trade write.
type TradeStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTradeStore creates a trade store on the shared pool. The schema handle
// from database.EnsureSchema is required so a store cannot be built against
// an unmigrated database.
func NewTradeStore(db *gorm.DB, _ *database.Schema, logger *zap.Logger) *TradeStore {
	return &TradeStore{db: db, logger: logger}
}

// Upsert writes a trade, keyed by its caller-assigned id: a second call with
// the same id overwrites every column except the identity, so retries after a
// transient failure are safe. When balanceDelta is non-zero it is applied to
// the owning account inside the same transaction as the trade write. With
// refreshTags set, the behavioral tags are recomputed from the price levels
// before persisting.
//
// The returned trade is re-read from the row that now exists for that id, so
// a caller always sees its own write even under concurrent writers.
func (s *TradeStore) Upsert(ctx context.Context, trade *models.Trade, balanceDelta decimal.Decimal, refreshTags bool) (*models.Trade, error) {
	if err := validateTrade(trade); err != nil {
		return nil, err
	}
	normalizeTrade(trade, refreshTags)

	var stored models.Trade
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertTx(tx, trade, balanceDelta); err != nil {
			return err
		}
		return tx.First(&stored, "id = ?", trade.ID).Error
	})
	if err != nil {
		return nil, classifyStorageErr(err)
	}

	s.logger.Debug("trade upserted",
		zap.String("trade_id", stored.ID),
		zap.String("account_id", stored.AccountID),
		zap.String("balance_delta", balanceDelta.String()))
	return &stored, nil
}

// Get returns exactly the row stored under id. Missing rows surface as
// gorm.ErrRecordNotFound.
func (s *TradeStore) Get(ctx context.Context, id string) (*models.Trade, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}
	var trade models.Trade
	if err := s.db.WithContext(ctx).First(&trade, "id = ?", id).Error; err != nil {
		return nil, classifyStorageErr(err)
	}
	return &trade, nil
}

// HardDelete removes a trade row permanently. By contract it must only be
// called on trades that were trashed first; hard-deleting an active trade
// forfeits balance correctness, and no automatic correction is attempted.
func (s *TradeStore) HardDelete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	res := s.db.WithContext(ctx).Delete(&models.Trade{}, "id = ?", id)
	if res.Error != nil {
		return classifyStorageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	s.logger.Info("trade hard-deleted", zap.String("trade_id", id))
	return nil
}

// AdjustBalance applies a single atomic increment to an account's balance,
// for explicit deposits and withdrawals.
func (s *TradeStore) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	if strings.TrimSpace(accountID) == "" {
		return &ValidationError{Field: "accountId", Reason: "required"}
	}
	if err := adjustBalanceTx(s.db.WithContext(ctx), accountID, delta); err != nil {
		return classifyStorageErr(err)
	}
	s.logger.Info("account balance adjusted",
		zap.String("account_id", accountID),
		zap.String("delta", delta.String()))
	return nil
}

// CreateAccount upserts an account row so trades have a referential target.
func (s *TradeStore) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account == nil || strings.TrimSpace(account.ID) == "" {
		return nil, &ValidationError{Field: "account.id", Reason: "required"}
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(account).Error
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return account, nil
}

// GetAccount returns the account stored under id.
func (s *TradeStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, classifyStorageErr(err)
	}
	return &account, nil
}

// upsertTx is the single-row upsert shared by TradeStore and
// BatchCoordinator. It runs inside the caller's transaction.
func upsertTx(tx *gorm.DB, trade *models.Trade, balanceDelta decimal.Decimal) error {
	var count int64
	if err := tx.Model(&models.Account{}).Where("id = ?", trade.AccountID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return &ConstraintError{
			Reason: fmt.Sprintf("trade %s references unknown account %s", trade.ID, trade.AccountID),
		}
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(trade).Error; err != nil {
		return err
	}

	if !balanceDelta.IsZero() {
		return adjustBalanceTx(tx, trade.AccountID, balanceDelta)
	}
	return nil
}

// adjustBalanceTx increments an account balance in place. A zero RowsAffected
// means the account does not exist.
func adjustBalanceTx(tx *gorm.DB, accountID string, delta decimal.Decimal) error {
	res := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConstraintError{Reason: fmt.Sprintf("account %s does not exist", accountID)}
	}
	return nil
}

func validateTrade(trade *models.Trade) error {
	if trade == nil {
		return &ValidationError{Field: "trade", Reason: "required"}
	}
	if strings.TrimSpace(trade.ID) == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if strings.TrimSpace(trade.AccountID) == "" {
		return &ValidationError{Field: "accountId", Reason: "required"}
	}
	if trade.Type != "" && trade.Type != models.TypeLong && trade.Type != models.TypeShort {
		return &ValidationError{Field: "type", Reason: "must be LONG or SHORT"}
	}
	if trade.EntryPrice.IsZero() {
		return &ValidationError{Field: "entryPrice", Reason: "required"}
	}
	if trade.Quantity.IsZero() {
		return &ValidationError{Field: "quantity", Reason: "required"}
	}
	return nil
}

// normalizeTrade fills derived and defaulted fields before persistence. Fees
// and PnL are plain decimals whose zero value is already the documented
// default of 0.
func normalizeTrade(trade *models.Trade, refreshTags bool) {
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}
	if !trade.IsDeleted {
		trade.DeletedAt = nil
	}
	trade.EntryTime, trade.EntrySession = sessionFields(trade.EntryDate)
	trade.ExitTime, trade.ExitSession = sessionFields(trade.ExitDate)

	if refreshTags {
		trade.Tags = Classify(trade.Tags, trade.Type, trade.EntryPrice,
			trade.ExitPrice, trade.TakeProfit, trade.StopLoss, trade.Partials)
	}
}

// sessionFields derives the display time and trading-session label for a
// timestamp. Sessions are bucketed by UTC hour.
func sessionFields(ts *time.Time) (string, string) {
	if ts == nil {
		return "", ""
	}
	u := ts.UTC()
	return u.Format("15:04"), sessionName(u.Hour())
}

func sessionName(hour int) string {
	switch {
	case hour < 7:
		return "Asia"
	case hour < 12:
		return "London"
	case hour < 16:
		return "New York AM"
	case hour < 21:
		return "New York PM"
	default:
		return "Sydney"
	}
}
