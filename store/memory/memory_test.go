/*
memory_test.go - Rollback semantics of the in-memory store

The snapshot/restore transaction support is what the domain services
lean on; everything else is covered through the service tests.
*/
package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewater/fueleu-engine/fueleu"
)

func TestWithTx_RollsBackAllTables(t *testing.T) {
	// GIVEN: A transaction touching ledger, log, pools and routes
	// WHEN: It fails at the end
	// THEN: Every table is restored to its pre-transaction state

	store := New()
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, store.SetCB(ctx, "A", 2025, decimal.NewFromInt(100)))

	err := store.WithTx(ctx, func(tx fueleu.Store) error {
		if err := tx.SetCB(ctx, "A", 2025, decimal.NewFromInt(999)); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, fueleu.BankEntry{
			ID: "bank_x", ShipID: "A", Year: 2025,
			Amount: decimal.NewFromInt(50), CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := tx.CreatePool(ctx, fueleu.Pool{ID: "pool_x", Year: 2025, CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	cb, err := store.GetCB(ctx, "A", 2025)
	require.NoError(t, err)
	assert.True(t, cb.Equal(decimal.NewFromInt(100)))

	entries, err := store.EntriesByShip(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, entries)

	pool, err := store.GetPool(ctx, "pool_x")
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	// GIVEN: A nested WithTx inside a failing outer transaction
	// WHEN: The outer transaction rolls back
	// THEN: The nested write rolls back with it

	store := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx fueleu.Store) error {
		if err := tx.WithTx(ctx, func(inner fueleu.Store) error {
			return inner.SetCB(ctx, "A", 2025, decimal.NewFromInt(7))
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	cb, err := store.GetCB(ctx, "A", 2025)
	require.NoError(t, err)
	assert.True(t, cb.IsZero())
}
