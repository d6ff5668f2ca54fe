package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trade-journal-go/internal/config"
	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"
)

// newTestDB opens a fresh SQLite database under the test's temp dir and
// migrates it, returning the pool and the readiness handle the constructors
// need.
func newTestDB(t *testing.T) (*gorm.DB, *database.Schema) {
	t.Helper()
	db, err := database.Open(&config.Database{
		DSN:          filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	schema, err := database.EnsureSchema(db)
	require.NoError(t, err)
	return db, schema
}

func newTestComponents(t *testing.T) (*TradeStore, *BalanceReconciler, *BatchCoordinator) {
	t.Helper()
	db, schema := newTestDB(t)
	log := zap.NewNop()
	return NewTradeStore(db, schema, log),
		NewBalanceReconciler(db, schema, log),
		NewBatchCoordinator(db, schema, log)
}

func seedAccount(t *testing.T, store *TradeStore, id, balance string) {
	t.Helper()
	_, err := store.CreateAccount(context.Background(), &models.Account{
		ID:       id,
		UserID:   "user-1",
		Name:     id,
		Currency: "USD",
		Balance:  dec(balance),
	})
	require.NoError(t, err)
}

// closedTrade builds a closed trade whose PnL has been applied to the account
// balance, the shape the reconciler cares about.
func closedTrade(id, accountID, pnl string) *models.Trade {
	entry := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	return &models.Trade{
		ID:               id,
		AccountID:        accountID,
		Symbol:           "EURUSD",
		Type:             models.TypeLong,
		Status:           models.StatusWin,
		Outcome:          models.OutcomeClosed,
		EntryPrice:       dec("1.0850"),
		Quantity:         dec("10000"),
		PnL:              dec(pnl),
		EntryDate:        &entry,
		IsBalanceUpdated: true,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func accountBalance(t *testing.T, store *TradeStore, id string) decimal.Decimal {
	t.Helper()
	account, err := store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func requireBalance(t *testing.T, store *TradeStore, id, want string) {
	t.Helper()
	got := accountBalance(t, store, id)
	require.True(t, got.Equal(dec(want)), "account %s balance: want %s, got %s", id, want, got)
}
