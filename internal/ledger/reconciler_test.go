package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrashRestoreRoundTripConservesBalance(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	ctx := context.Background()
	seedAccount(t, store, "acct-1", "1000")

	_, err := store.Upsert(ctx, closedTrade("t-1", "acct-1", "150.25"), decimal.Zero, false)
	require.NoError(t, err)

	for cycle := 0; cycle < 3; cycle++ {
		trashed, err := reconciler.Trash(ctx, []string{"t-1"})
		require.NoError(t, err)
		require.Len(t, trashed, 1)
		assert.True(t, trashed[0].IsDeleted)
		assert.NotNil(t, trashed[0].DeletedAt)
		// The flag still records that this PnL was applied at some point.
		assert.True(t, trashed[0].IsBalanceUpdated)
		requireBalance(t, store, "acct-1", "849.75")

		restored, err := reconciler.Restore(ctx, []string{"t-1"})
		require.NoError(t, err)
		require.Len(t, restored, 1)
		assert.False(t, restored[0].IsDeleted)
		assert.Nil(t, restored[0].DeletedAt)
		assert.True(t, restored[0].IsBalanceUpdated)
		requireBalance(t, store, "acct-1", "1000")
	}
}

func TestTrashAlreadyTrashedIsNoOp(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	ctx := context.Background()
	seedAccount(t, store, "acct-1", "1000")

	_, err := store.Upsert(ctx, closedTrade("t-1", "acct-1", "200"), decimal.Zero, false)
	require.NoError(t, err)

	first, err := reconciler.Trash(ctx, []string{"t-1"})
	require.NoError(t, err)
	require.Len(t, first, 1)
	requireBalance(t, store, "acct-1", "800")

	second, err := reconciler.Trash(ctx, []string{"t-1"})
	require.NoError(t, err)
	assert.Empty(t, second)
	requireBalance(t, store, "acct-1", "800")
}

func TestTrashSkipsRowsAlreadyInTargetState(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	ctx := context.Background()
	seedAccount(t, store, "acct-1", "1000")

	_, err := store.Upsert(ctx, closedTrade("t-1", "acct-1", "100"), decimal.Zero, false)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, closedTrade("t-2", "acct-1", "40"), decimal.Zero, false)
	require.NoError(t, err)

	_, err = reconciler.Trash(ctx, []string{"t-2"})
	require.NoError(t, err)
	requireBalance(t, store, "acct-1", "960")

	// t-2 is already trashed: only t-1 is affected and only its PnL reverses.
	affected, err := reconciler.Trash(ctx, []string{"t-1", "t-2"})
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, "t-1", affected[0].ID)
	requireBalance(t, store, "acct-1", "860")
}

func TestTrashIgnoresUnappliedAndZeroPnL(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	ctx := context.Background()
	seedAccount(t, store, "acct-1", "1000")

	unapplied := closedTrade("t-unapplied", "acct-1", "500")
	unapplied.IsBalanceUpdated = false
	_, err := store.Upsert(ctx, unapplied, decimal.Zero, false)
	require.NoError(t, err)

	zero := closedTrade("t-zero", "acct-1", "0")
	_, err = store.Upsert(ctx, zero, decimal.Zero, false)
	require.NoError(t, err)

	affected, err := reconciler.Trash(ctx, []string{"t-unapplied", "t-zero"})
	require.NoError(t, err)
	assert.Len(t, affected, 2)
	for _, row := range affected {
		assert.True(t, row.IsDeleted)
	}
	// Neither trade ever reached the balance, so trashing must not either.
	requireBalance(t, store, "acct-1", "1000")
}

func TestCrossAccountBatchIsRejected(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	ctx := context.Background()
	seedAccount(t, store, "acct-a", "1000")
	seedAccount(t, store, "acct-b", "2000")

	_, err := store.Upsert(ctx, closedTrade("t-a", "acct-a", "100"), decimal.Zero, false)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, closedTrade("t-b", "acct-b", "50"), decimal.Zero, false)
	require.NoError(t, err)

	_, err = reconciler.Trash(ctx, []string{"t-a", "t-b"})
	var crossErr *CrossAccountError
	require.ErrorAs(t, err, &crossErr)
	assert.Equal(t, []string{"acct-a", "acct-b"}, crossErr.Accounts)

	// Nothing moved: neither trade state nor either balance.
	for _, id := range []string{"t-a", "t-b"} {
		trade, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, trade.IsDeleted)
	}
	requireBalance(t, store, "acct-a", "1000")
	requireBalance(t, store, "acct-b", "2000")
}

func TestTrashRejectsEmptyIDSet(t *testing.T) {
	_, reconciler, _ := newTestComponents(t)

	_, err := reconciler.Trash(context.Background(), nil)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = reconciler.Restore(context.Background(), []string{})
	require.ErrorAs(t, err, &validationErr)
}

func TestTrashUnknownIDsReturnsEmpty(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	seedAccount(t, store, "acct-1", "1000")

	affected, err := reconciler.Trash(context.Background(), []string{"no-such-trade"})
	require.NoError(t, err)
	assert.Empty(t, affected)
	requireBalance(t, store, "acct-1", "1000")
}

func TestRestoreMultipleTradesNetsPnL(t *testing.T) {
	store, reconciler, _ := newTestComponents(t)
	ctx := context.Background()
	seedAccount(t, store, "acct-1", "1000")

	_, err := store.Upsert(ctx, closedTrade("t-win", "acct-1", "250"), decimal.Zero, false)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, closedTrade("t-loss", "acct-1", "-80"), decimal.Zero, false)
	require.NoError(t, err)

	_, err = reconciler.Trash(ctx, []string{"t-win", "t-loss"})
	require.NoError(t, err)
	requireBalance(t, store, "acct-1", "830")

	restored, err := reconciler.Restore(ctx, []string{"t-win", "t-loss"})
	require.NoError(t, err)
	assert.Len(t, restored, 2)
	requireBalance(t, store, "acct-1", "1000")
}
