/*
pooling_test.go - Unit tests for compliance pooling

CORE DESIGN:
- A pool is admitted only when the members' combined balance is >= 0
- The total is split equally; the division remainder goes to the last
  member, so the combined balance is conserved exactly
- A rejected pool leaves no pool record and no ledger change
*/
package fueleu_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewater/fueleu-engine/fueleu"
	"github.com/tidewater/fueleu-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestPooling(t *testing.T) (*fueleu.PoolingService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return fueleu.NewPoolingService(store, fueleu.NewKeyLocks()), store
}

func ships(ids ...string) []fueleu.ShipID {
	out := make([]fueleu.ShipID, len(ids))
	for i, id := range ids {
		out[i] = fueleu.ShipID(id)
	}
	return out
}

// =============================================================================
// POOL ADMISSION TESTS
// =============================================================================

func TestCreatePool_SurplusCoversDeficit(t *testing.T) {
	// GIVEN: Ship A at +800, ship B at -300
	// WHEN: Pooling them for 2025
	// THEN: Total 500 splits to 250 each; both ledger balances updated

	svc, store := newTestPooling(t)
	ctx := context.Background()
	setCB(t, store, "A", 2025, "800")
	setCB(t, store, "B", 2025, "-300")

	pool, err := svc.CreatePool(ctx, 2025, ships("A", "B"))
	require.NoError(t, err)
	require.NotEmpty(t, pool.ID)
	assert.Equal(t, 2025, pool.Year)

	members, err := svc.Members(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	for _, m := range members {
		assert.True(t, m.CBAfter.Equal(dec("250")), "member %s got %s", m.ShipID, m.CBAfter)
	}

	assert.True(t, currentCB(t, store, "A", 2025).Equal(dec("250")))
	assert.True(t, currentCB(t, store, "B", 2025).Equal(dec("250")))
}

func TestCreatePool_NegativeSumRejected(t *testing.T) {
	// GIVEN: Ship A at +200, ship C at -300
	// WHEN: Pooling them
	// THEN: Rejected (sum -100); no pool recorded, ledgers untouched

	svc, store := newTestPooling(t)
	ctx := context.Background()
	setCB(t, store, "A", 2025, "200")
	setCB(t, store, "C", 2025, "-300")

	_, err := svc.CreatePool(ctx, 2025, ships("A", "C"))
	require.ErrorIs(t, err, fueleu.ErrInvalidOperation)
	assert.Contains(t, err.Error(), "-100")

	assert.True(t, currentCB(t, store, "A", 2025).Equal(dec("200")))
	assert.True(t, currentCB(t, store, "C", 2025).Equal(dec("-300")))
}

func TestCreatePool_ZeroSumAdmitted(t *testing.T) {
	// GIVEN: Balances summing to exactly zero
	// WHEN: Pooling
	// THEN: Admitted; everyone lands on zero

	svc, store := newTestPooling(t)
	ctx := context.Background()
	setCB(t, store, "A", 2025, "300")
	setCB(t, store, "B", 2025, "-300")

	pool, err := svc.CreatePool(ctx, 2025, ships("A", "B"))
	require.NoError(t, err)

	members, err := svc.Members(context.Background(), pool.ID)
	require.NoError(t, err)
	for _, m := range members {
		assert.True(t, m.CBAfter.IsZero())
	}
}

func TestCreatePool_UnknownShipDefaultsToZero(t *testing.T) {
	// GIVEN: One ship with a surplus and one with no ledger record at all
	// WHEN: Pooling them
	// THEN: The missing record counts as zero, pool is admitted

	svc, store := newTestPooling(t)
	setCB(t, store, "A", 2025, "100")

	pool, err := svc.CreatePool(context.Background(), 2025, ships("A", "GHOST"))
	require.NoError(t, err)

	members, err := svc.Members(context.Background(), pool.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.True(t, m.CBAfter.Equal(dec("50")))
	}
}

// =============================================================================
// CONSERVATION TESTS
// =============================================================================

func TestCreatePool_ConservesTotal_NonDivisible(t *testing.T) {
	// GIVEN: Three ships whose total (100) does not divide evenly by 3
	// WHEN: Pooling them
	// THEN: Sum of after-balances equals the sum of before-balances exactly

	svc, store := newTestPooling(t)
	ctx := context.Background()
	setCB(t, store, "A", 2025, "70")
	setCB(t, store, "B", 2025, "40")
	setCB(t, store, "C", 2025, "-10")

	pool, err := svc.CreatePool(ctx, 2025, ships("A", "B", "C"))
	require.NoError(t, err)

	members, err := svc.Members(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)

	sumBefore := decimal.Zero
	sumAfter := decimal.Zero
	for _, m := range members {
		sumBefore = sumBefore.Add(m.CBBefore)
		sumAfter = sumAfter.Add(m.CBAfter)
	}
	assert.True(t, sumAfter.Equal(sumBefore),
		"conservation violated: before %s, after %s", sumBefore, sumAfter)
	assert.True(t, sumAfter.Equal(dec("100")))
}

func TestCreatePool_FairnessProperties(t *testing.T) {
	// GIVEN: A mixed pool of surplus and deficit ships
	// WHEN: Pooling succeeds
	// THEN: No deficit ship exits worse, no surplus ship exits negative

	svc, store := newTestPooling(t)
	ctx := context.Background()
	setCB(t, store, "A", 2025, "900")
	setCB(t, store, "B", 2025, "-200")
	setCB(t, store, "C", 2025, "-100")

	pool, err := svc.CreatePool(ctx, 2025, ships("A", "B", "C"))
	require.NoError(t, err)

	members, err := svc.Members(ctx, pool.ID)
	require.NoError(t, err)
	for _, m := range members {
		if m.CBBefore.IsNegative() {
			assert.True(t, m.CBAfter.GreaterThanOrEqual(m.CBBefore),
				"deficit ship %s exited worse: %s -> %s", m.ShipID, m.CBBefore, m.CBAfter)
		}
		if m.CBBefore.IsPositive() {
			assert.False(t, m.CBAfter.IsNegative(),
				"surplus ship %s exited negative: %s", m.ShipID, m.CBAfter)
		}
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestCreatePool_Validation(t *testing.T) {
	// GIVEN: Malformed pool proposals
	// WHEN: Creating
	// THEN: Each fails validation before touching the ledger

	svc, store := newTestPooling(t)
	ctx := context.Background()
	setCB(t, store, "A", 2025, "100")

	_, err := svc.CreatePool(ctx, 0, ships("A", "B"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)

	_, err = svc.CreatePool(ctx, 2025, ships("A"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)

	_, err = svc.CreatePool(ctx, 2025, ships("A", "A"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)

	_, err = svc.CreatePool(ctx, 2025, ships("A", ""))
	assert.ErrorIs(t, err, fueleu.ErrValidation)
}

func TestPoolMembers_UnknownPool(t *testing.T) {
	// GIVEN: No such pool
	// WHEN: Listing members
	// THEN: ErrPoolNotFound

	svc, _ := newTestPooling(t)

	_, err := svc.Members(context.Background(), "pool_missing")
	assert.ErrorIs(t, err, fueleu.ErrPoolNotFound)
}
