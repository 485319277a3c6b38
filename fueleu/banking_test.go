/*
banking_test.go - Unit tests for the surplus banking rule-set

CORE DESIGN:
- Banking moves surplus out of the ledger into an append-only entry log
- Applying draws on the cross-year total and only ever shrinks a deficit
- Rejected operations must leave neither an entry nor a ledger change
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

func newTestBanking(t *testing.T) (*fueleu.BankingService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return fueleu.NewBankingService(store, fueleu.NewKeyLocks()), store
}

func setCB(t *testing.T, store *memory.Store, shipID string, year int, cb string) {
	t.Helper()
	require.NoError(t, store.SetCB(context.Background(), fueleu.ShipID(shipID), year, dec(cb)))
}

func currentCB(t *testing.T, store *memory.Store, shipID string, year int) decimal.Decimal {
	t.Helper()
	cb, err := store.GetCB(context.Background(), fueleu.ShipID(shipID), year)
	require.NoError(t, err)
	return cb
}

// =============================================================================
// BANK SURPLUS TESTS
// =============================================================================

func TestBankSurplus_DeductsAndRecords(t *testing.T) {
	// GIVEN: A ship with a 1000 surplus in 2025
	// WHEN: Banking 400
	// THEN: CB drops to 600 and a positive entry is recorded

	svc, store := newTestBanking(t)
	ctx := context.Background()
	setCB(t, store, "SHIP-001", 2025, "1000")

	entry, err := svc.BankSurplus(ctx, "SHIP-001", 2025, dec("400"))
	require.NoError(t, err)

	assert.Equal(t, fueleu.ShipID("SHIP-001"), entry.ShipID)
	assert.Equal(t, 2025, entry.Year)
	assert.True(t, entry.Amount.Equal(dec("400")))
	assert.NotEmpty(t, entry.ID)

	assert.True(t, currentCB(t, store, "SHIP-001", 2025).Equal(dec("600")))

	total, err := svc.TotalBanked(ctx, "SHIP-001")
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("400")))
}

func TestBankSurplus_FullBalanceAllowed(t *testing.T) {
	// GIVEN: A ship with a 1000 surplus
	// WHEN: Banking exactly 1000
	// THEN: The operation succeeds and CB goes to zero

	svc, store := newTestBanking(t)
	setCB(t, store, "SHIP-001", 2025, "1000")

	_, err := svc.BankSurplus(context.Background(), "SHIP-001", 2025, dec("1000"))
	require.NoError(t, err)

	assert.True(t, currentCB(t, store, "SHIP-001", 2025).IsZero())
}

func TestBankSurplus_RejectedWhenNotPositive(t *testing.T) {
	// GIVEN: Ships at zero and in deficit
	// WHEN: Trying to bank
	// THEN: Both are rejected and nothing is written

	svc, store := newTestBanking(t)
	ctx := context.Background()
	setCB(t, store, "ZERO", 2025, "0")
	setCB(t, store, "DEFICIT", 2025, "-500")

	_, err := svc.BankSurplus(ctx, "ZERO", 2025, dec("10"))
	assert.ErrorIs(t, err, fueleu.ErrInvalidOperation)

	_, err = svc.BankSurplus(ctx, "DEFICIT", 2025, dec("10"))
	assert.ErrorIs(t, err, fueleu.ErrInvalidOperation)

	assert.True(t, currentCB(t, store, "DEFICIT", 2025).Equal(dec("-500")))
	records, err := svc.Records(ctx, "DEFICIT", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBankSurplus_RejectedWhenOverdrawn(t *testing.T) {
	// GIVEN: A ship with a 100 surplus
	// WHEN: Banking 100.01
	// THEN: Rejected, CB untouched

	svc, store := newTestBanking(t)
	setCB(t, store, "SHIP-001", 2025, "100")

	_, err := svc.BankSurplus(context.Background(), "SHIP-001", 2025, dec("100.01"))
	assert.ErrorIs(t, err, fueleu.ErrInvalidOperation)
	assert.True(t, currentCB(t, store, "SHIP-001", 2025).Equal(dec("100")))
}

func TestBankSurplus_InputValidation(t *testing.T) {
	// GIVEN: Malformed inputs
	// WHEN: Banking
	// THEN: Each fails validation before touching the store

	svc, _ := newTestBanking(t)
	ctx := context.Background()

	_, err := svc.BankSurplus(ctx, "", 2025, dec("10"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)

	_, err = svc.BankSurplus(ctx, "SHIP-001", 0, dec("10"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)

	_, err = svc.BankSurplus(ctx, "SHIP-001", 2025, dec("0"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)

	_, err = svc.BankSurplus(ctx, "SHIP-001", 2025, dec("-5"))
	assert.ErrorIs(t, err, fueleu.ErrValidation)
}

// =============================================================================
// APPLY BANKED TESTS
// =============================================================================

func TestApplyBanked_OffsetsDeficit(t *testing.T) {
	// GIVEN: A ship that banked 400 in 2025 and runs a -300 deficit in 2026
	// WHEN: Applying 300
	// THEN: The 2026 deficit clears and a negative entry is recorded

	svc, store := newTestBanking(t)
	ctx := context.Background()
	setCB(t, store, "SHIP-001", 2025, "1000")
	setCB(t, store, "SHIP-001", 2026, "-300")

	_, err := svc.BankSurplus(ctx, "SHIP-001", 2025, dec("400"))
	require.NoError(t, err)

	require.NoError(t, svc.ApplyBanked(ctx, "SHIP-001", 2026, dec("300")))

	assert.True(t, currentCB(t, store, "SHIP-001", 2026).IsZero())

	// Total banked drops to 100: +400 entry and -300 entry.
	total, err := svc.TotalBanked(ctx, "SHIP-001")
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("100")))
}

func TestApplyBanked_InsufficientFunds(t *testing.T) {
	// GIVEN: A ship with 50 banked and a deficit
	// WHEN: Applying 80
	// THEN: InsufficientFundsError carrying the available total

	svc, store := newTestBanking(t)
	ctx := context.Background()
	setCB(t, store, "SHIP-001", 2025, "100")
	setCB(t, store, "SHIP-001", 2026, "-200")

	_, err := svc.BankSurplus(ctx, "SHIP-001", 2025, dec("50"))
	require.NoError(t, err)

	err = svc.ApplyBanked(ctx, "SHIP-001", 2026, dec("80"))
	require.ErrorIs(t, err, fueleu.ErrInsufficientFunds)

	var insufficient *fueleu.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(dec("50")))
	assert.True(t, insufficient.Requested.Equal(dec("80")))

	// Deficit untouched, no apply entry written.
	assert.True(t, currentCB(t, store, "SHIP-001", 2026).Equal(dec("-200")))
	records, err := svc.Records(ctx, "SHIP-001", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Amount.Equal(dec("50")))
}

func TestApplyBanked_RejectedOnNonNegativeCB(t *testing.T) {
	// GIVEN: A ship with banked surplus but no current deficit
	// WHEN: Applying
	// THEN: Rejected; banked surplus only offsets deficits

	svc, store := newTestBanking(t)
	ctx := context.Background()
	setCB(t, store, "SHIP-001", 2025, "500")

	_, err := svc.BankSurplus(ctx, "SHIP-001", 2025, dec("200"))
	require.NoError(t, err)

	// CB for 2025 is now 300, still positive.
	err = svc.ApplyBanked(ctx, "SHIP-001", 2025, dec("100"))
	assert.ErrorIs(t, err, fueleu.ErrInvalidOperation)

	setCB(t, store, "SHIP-001", 2026, "0")
	err = svc.ApplyBanked(ctx, "SHIP-001", 2026, dec("100"))
	assert.ErrorIs(t, err, fueleu.ErrInvalidOperation)
}

// =============================================================================
// RECORDS TESTS
// =============================================================================

func TestRecords_NewestFirstAndYearFilter(t *testing.T) {
	// GIVEN: Several banking operations across two years
	// WHEN: Listing records with and without the year filter
	// THEN: Records come back newest first; the filter narrows by year

	svc, store := newTestBanking(t)
	ctx := context.Background()
	setCB(t, store, "SHIP-001", 2025, "1000")
	setCB(t, store, "SHIP-001", 2026, "1000")

	first, err := svc.BankSurplus(ctx, "SHIP-001", 2025, dec("100"))
	require.NoError(t, err)
	second, err := svc.BankSurplus(ctx, "SHIP-001", 2026, dec("200"))
	require.NoError(t, err)
	third, err := svc.BankSurplus(ctx, "SHIP-001", 2025, dec("300"))
	require.NoError(t, err)

	all, err := svc.Records(ctx, "SHIP-001", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, first.ID, all[2].ID)

	year := 2025
	filtered, err := svc.Records(ctx, "SHIP-001", &year)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, third.ID, filtered[0].ID)
	assert.Equal(t, first.ID, filtered[1].ID)
}

func TestTotalBanked_UnknownShipIsZero(t *testing.T) {
	// GIVEN: A ship with no history
	// WHEN: Reading the banked total
	// THEN: Zero, not an error

	svc, _ := newTestBanking(t)

	total, err := svc.TotalBanked(context.Background(), "GHOST")
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
