/*
calculator_test.go - Unit tests for the pure balance calculation

CORE DESIGN:
- CB = (target - actual) * fuel * LCV, no rounding anywhere
- Compliance verdict allows a 2% tolerance above target
- Per-year target overrides via TargetByYear
*/
package fueleu_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewater/fueleu-engine/fueleu"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// BALANCE CALCULATION TESTS
// =============================================================================

func TestCalculator_Surplus_ExactArithmetic(t *testing.T) {
	// GIVEN: A ship running well under target (80 gCO2e/MJ) burning 100 t
	// WHEN: Computing the balance against the 89.3368 target
	// THEN: Energy and CB come out exact, with no float drift

	calc := fueleu.NewCalculator(fueleu.DefaultParams())

	result := calc.Balance(dec("89.3368"), dec("80"), dec("100"))

	assert.True(t, result.EnergyInScopeMJ.Equal(dec("4100000")),
		"energy = 100 t * 41000 MJ/t, got %s", result.EnergyInScopeMJ)
	assert.True(t, result.CB.Equal(dec("38280880")),
		"cb = 9.3368 * 4100000, got %s", result.CB)
	assert.True(t, result.IsCompliant)
}

func TestCalculator_Deficit_ExactArithmetic(t *testing.T) {
	// GIVEN: A ship running over target (100 gCO2e/MJ) burning 100 t
	// WHEN: Computing the balance
	// THEN: CB is negative and exact

	calc := fueleu.NewCalculator(fueleu.DefaultParams())

	result := calc.Balance(dec("89.3368"), dec("100"), dec("100"))

	assert.True(t, result.CB.Equal(dec("-43719120")),
		"cb = -10.6632 * 4100000, got %s", result.CB)
	assert.False(t, result.IsCompliant)
}

func TestCalculator_ZeroFuel_ZeroBalance(t *testing.T) {
	// GIVEN: No fuel burned in scope
	// WHEN: Computing the balance
	// THEN: Energy and CB are zero regardless of intensity

	calc := fueleu.NewCalculator(fueleu.DefaultParams())

	result := calc.Balance(dec("89.3368"), dec("120"), decimal.Zero)

	assert.True(t, result.EnergyInScopeMJ.IsZero())
	assert.True(t, result.CB.IsZero())
}

// =============================================================================
// COMPLIANCE THRESHOLD TESTS
// =============================================================================

func TestCalculator_ThresholdEdge(t *testing.T) {
	// GIVEN: The 2% tolerance band above the 89.3368 target
	// WHEN: Checking ships exactly at, just under, and just over the band
	// THEN: The verdict flips exactly at target * 1.02

	calc := fueleu.NewCalculator(fueleu.DefaultParams())
	limit := dec("89.3368").Mul(dec("1.02")) // 91.123536

	atLimit := calc.Balance(dec("89.3368"), limit, dec("100"))
	assert.True(t, atLimit.IsCompliant, "actual == target*1.02 is still compliant")
	assert.True(t, atLimit.CB.IsNegative(), "compliant within tolerance, but CB still negative")

	over := calc.Balance(dec("89.3368"), limit.Add(dec("0.000001")), dec("100"))
	assert.False(t, over.IsCompliant)
}

// =============================================================================
// PER-YEAR TARGET TESTS
// =============================================================================

func TestCalculator_TargetByYearOverride(t *testing.T) {
	// GIVEN: Params with a stricter 2030 target
	// WHEN: Computing balances for 2025 and 2030
	// THEN: Each year resolves its own target

	params := fueleu.DefaultParams()
	params.TargetByYear = map[int]decimal.Decimal{2030: dec("85.6869")}
	calc := fueleu.NewCalculator(params)

	require.True(t, params.TargetFor(2025).Equal(dec("89.3368")))
	require.True(t, params.TargetFor(2030).Equal(dec("85.6869")))

	r2025 := calc.BalanceForYear(2025, dec("87"), dec("10"))
	r2030 := calc.BalanceForYear(2030, dec("87"), dec("10"))

	assert.True(t, r2025.CB.IsPositive(), "87 beats the 2025 target")
	assert.True(t, r2030.CB.IsNegative(), "87 misses the 2030 target")
}
