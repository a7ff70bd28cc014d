package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karat/ledger-engine/ledger"
	"github.com/karat/ledger-engine/store/memory"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSaveLedger_VersionConflictMatchesSqliteSemantics(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	id, err := store.CreateCustomer(ctx, ledger.CustomerFields{Name: "Asha", Phone: "555-0101"})
	require.NoError(t, err)

	require.NoError(t, store.SaveLedger(ctx, id, nil, d("10"), decimal.Zero, 1))

	err = store.SaveLedger(ctx, id, nil, d("20"), decimal.Zero, 1)
	assert.True(t, ledger.IsConflict(err))

	err = store.SaveLedger(ctx, "missing", nil, decimal.Zero, decimal.Zero, 1)
	assert.True(t, ledger.IsNotFound(err))

	got, err := store.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.TotalDue.Equal(d("10")))
	assert.Equal(t, int64(2), got.Version)
}

func TestGetCustomer_ReturnsIsolatedCopy(t *testing.T) {
	// Mutating a returned customer must not leak into the store.

	store := memory.New()
	ctx := context.Background()

	id, err := store.CreateCustomer(ctx, ledger.CustomerFields{Name: "Asha", Phone: "555-0101"})
	require.NoError(t, err)

	rec, err := ledger.NewPurchase("Ring", "", d("100"), d("0"),
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.SaveLedger(ctx, id, []ledger.Record{rec}, d("100"), decimal.Zero, 1))

	first, err := store.GetCustomer(ctx, id)
	require.NoError(t, err)
	first.Records[0].Balance = d("1")
	first.Name = "Changed"

	second, err := store.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Asha", second.Name)
	assert.True(t, second.Records[0].Balance.Equal(d("100")))
}
