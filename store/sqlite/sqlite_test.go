/*
sqlite_test.go - Storage contract tests against an in-memory database

Tests for:
- Exact decimal round-trips through TEXT columns
- Banking log ordering and totals
- Baseline exclusivity
- Transaction rollback on failure
*/
package sqlite

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

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(id, shipID string, year int, amount string, at time.Time) fueleu.BankEntry {
	return fueleu.BankEntry{
		ID:        id,
		ShipID:    fueleu.ShipID(shipID),
		Year:      year,
		Amount:    dec(amount),
		CreatedAt: at,
	}
}

// =============================================================================
// COMPLIANCE LEDGER
// =============================================================================

func TestCompliance_UpsertAndExactRoundTrip(t *testing.T) {
	// GIVEN: A balance with many decimal places
	// WHEN: Writing, overwriting and reading it back
	// THEN: Values round-trip exactly; missing keys read as zero

	store := newTestStore(t)
	ctx := context.Background()

	cb, err := store.GetCB(ctx, "SHIP-001", 2025)
	require.NoError(t, err)
	assert.True(t, cb.IsZero())

	exact := dec("38280880.123456789123456789")
	require.NoError(t, store.SetCB(ctx, "SHIP-001", 2025, exact))

	cb, err = store.GetCB(ctx, "SHIP-001", 2025)
	require.NoError(t, err)
	assert.True(t, cb.Equal(exact), "got %s", cb)

	require.NoError(t, store.SetCB(ctx, "SHIP-001", 2025, dec("-1")))
	cb, err = store.GetCB(ctx, "SHIP-001", 2025)
	require.NoError(t, err)
	assert.True(t, cb.Equal(dec("-1")))
}

func TestCompliance_ListByYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetCB(ctx, "B", 2025, dec("2")))
	require.NoError(t, store.SetCB(ctx, "A", 2025, dec("1")))
	require.NoError(t, store.SetCB(ctx, "A", 2024, dec("9")))

	records, err := store.ListCompliance(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, fueleu.ShipID("A"), records[0].ShipID)
	assert.Equal(t, fueleu.ShipID("B"), records[1].ShipID)
}

// =============================================================================
// BANKING LOG
// =============================================================================

func TestBankEntries_NewestFirstAndTotal(t *testing.T) {
	// GIVEN: Three entries over two years, the last one negative
	// WHEN: Querying entries and the total
	// THEN: Newest first; year filter applies; total sums in Go exactly

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendEntry(ctx, entry("bank_1", "SHIP-001", 2024, "100.5", base)))
	require.NoError(t, store.AppendEntry(ctx, entry("bank_2", "SHIP-001", 2025, "200", base.Add(time.Second))))
	require.NoError(t, store.AppendEntry(ctx, entry("apply_1", "SHIP-001", 2025, "-50.5", base.Add(2*time.Second))))

	all, err := store.EntriesByShip(ctx, "SHIP-001")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "apply_1", all[0].ID)
	assert.Equal(t, "bank_2", all[1].ID)
	assert.Equal(t, "bank_1", all[2].ID)

	byYear, err := store.EntriesByShipYear(ctx, "SHIP-001", 2025)
	require.NoError(t, err)
	require.Len(t, byYear, 2)
	assert.Equal(t, "apply_1", byYear[0].ID)

	total, err := store.TotalBanked(ctx, "SHIP-001")
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("250")), "got %s", total)
}

func TestBankEntries_CorruptTimestampIsReported(t *testing.T) {
	// GIVEN: A row whose created_at is not a parseable timestamp
	// WHEN: Querying entries
	// THEN: The read fails instead of yielding a zero time

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		"INSERT INTO bank_entries (id, ship_id, year, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		"bank_bad", "SHIP-001", 2024, "100", "yesterday-ish")
	require.NoError(t, err)

	_, err = store.EntriesByShip(ctx, "SHIP-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

// =============================================================================
// POOLS
// =============================================================================

func TestPools_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := fueleu.Pool{ID: "pool_1", Year: 2025, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreatePool(ctx, pool))
	require.NoError(t, store.AddMember(ctx, fueleu.PoolMember{
		PoolID: "pool_1", ShipID: "A", CBBefore: dec("800"), CBAfter: dec("250"),
	}))
	require.NoError(t, store.AddMember(ctx, fueleu.PoolMember{
		PoolID: "pool_1", ShipID: "B", CBBefore: dec("-300"), CBAfter: dec("250"),
	}))

	got, err := store.GetPool(ctx, "pool_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year)

	missing, err := store.GetPool(ctx, "pool_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	members, err := store.GetMembers(ctx, "pool_1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.True(t, m.CBAfter.Equal(dec("250")))
	}
}

// =============================================================================
// ROUTES
// =============================================================================

func TestRoutes_BaselineExclusivity(t *testing.T) {
	// GIVEN: Two stored routes
	// WHEN: Setting the baseline twice
	// THEN: Only the latest target carries the flag; unknown ids fail
	//       without clearing the current baseline

	store := newTestStore(t)
	ctx := context.Background()

	r1 := fueleu.Route{RouteID: "R001", VesselType: "Container", FuelType: "HFO",
		Year: 2024, GHGIntensity: dec("91"), FuelConsumption: dec("5000"),
		Distance: dec("12000"), TotalEmissions: dec("4500")}
	r2 := r1
	r2.RouteID = "R002"

	require.NoError(t, store.CreateRoute(ctx, r1))
	require.NoError(t, store.CreateRoute(ctx, r2))

	require.NoError(t, store.SetBaseline(ctx, "R001"))
	require.NoError(t, store.SetBaseline(ctx, "R002"))

	routes, err := store.ListRoutes(ctx)
	require.NoError(t, err)
	var flagged []string
	for _, r := range routes {
		if r.IsBaseline {
			flagged = append(flagged, r.RouteID)
		}
	}
	assert.Equal(t, []string{"R002"}, flagged)

	err = store.SetBaseline(ctx, "R999")
	assert.ErrorIs(t, err, fueleu.ErrRouteNotFound)

	current, err := store.GetRoute(ctx, "R002")
	require.NoError(t, err)
	assert.True(t, current.IsBaseline, "failed SetBaseline must not clear the baseline")
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes then fails
	// WHEN: WithTx returns the error
	// THEN: None of the writes are visible

	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx fueleu.Store) error {
		if err := tx.SetCB(ctx, "SHIP-001", 2025, dec("500")); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, entry("bank_x", "SHIP-001", 2025, "500", time.Now())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	cb, err := store.GetCB(ctx, "SHIP-001", 2025)
	require.NoError(t, err)
	assert.True(t, cb.IsZero())

	entries, err := store.EntriesByShip(ctx, "SHIP-001")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx fueleu.Store) error {
		return tx.SetCB(ctx, "SHIP-001", 2025, dec("42"))
	})
	require.NoError(t, err)

	cb, err := store.GetCB(ctx, "SHIP-001", 2025)
	require.NoError(t, err)
	assert.True(t, cb.Equal(dec("42")))
}
