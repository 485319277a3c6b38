/*
calculator.go - Pure compliance balance computation

PURPOSE:
  Turns measured ship performance (actual GHG intensity, fuel consumed)
  into an energy-in-scope figure and a signed compliance balance, plus a
  compliance verdict against the regulatory threshold.

FORMULAS:
  energyInScopeMJ = fuelConsumedTonnes * LCV          (LCV = 41000 MJ/t)
  cb              = (target - actual) * energyInScopeMJ
  isCompliant     = actual <= target * (1 + threshold)  (threshold = 2%)

  Positive CB means the ship performed better than target. A ship within
  the 2% threshold is still compliant even with a slightly negative CB.

PRECISION:
  No rounding is applied anywhere; callers truncate for display only.

CONFIGURATION:
  All regulatory constants are explicit Params rather than package-level
  state, so per-year target changes need no code edits. TargetByYear
  overrides the flat target for specific reporting years.
*/
package fueleu

import "github.com/shopspring/decimal"

// =============================================================================
// REGULATORY PARAMETERS
// =============================================================================

// Params holds the regulatory constants the calculator and the route
// comparison operate on.
type Params struct {
	// TargetIntensity is the GHG intensity target in gCO2e/MJ.
	TargetIntensity decimal.Decimal

	// TargetByYear optionally overrides TargetIntensity per reporting year.
	TargetByYear map[int]decimal.Decimal

	// LCV is the lower calorific value used to convert fuel tonnes to MJ.
	LCV decimal.Decimal

	// ComplianceThreshold is the fractional tolerance above target within
	// which a ship still counts as compliant.
	ComplianceThreshold decimal.Decimal

	// DefaultBaselineIntensity is used by route comparison when no route is
	// marked as baseline.
	DefaultBaselineIntensity decimal.Decimal
}

// DefaultParams returns the 2025 regulatory constants.
func DefaultParams() Params {
	return Params{
		TargetIntensity:          decimal.RequireFromString("89.3368"),
		LCV:                      decimal.NewFromInt(41000),
		ComplianceThreshold:      decimal.RequireFromString("0.02"),
		DefaultBaselineIntensity: decimal.RequireFromString("91.16"),
	}
}

// TargetFor returns the intensity target for a reporting year.
func (p Params) TargetFor(year int) decimal.Decimal {
	if t, ok := p.TargetByYear[year]; ok {
		return t
	}
	return p.TargetIntensity
}

// =============================================================================
// CALCULATOR
// =============================================================================

// CalcResult is the outcome of one balance calculation.
type CalcResult struct {
	TargetIntensity decimal.Decimal
	ActualIntensity decimal.Decimal
	EnergyInScopeMJ decimal.Decimal
	CB              decimal.Decimal
	IsCompliant     bool
}

// Calculator is pure and side-effect free; it requires no locking.
type Calculator struct {
	params Params
}

func NewCalculator(params Params) Calculator {
	return Calculator{params: params}
}

func (c Calculator) Params() Params { return c.params }

// Balance computes energy in scope, the signed CB and the compliance
// verdict for one (target, actual, fuel) triple.
func (c Calculator) Balance(target, actual, fuelTonnes decimal.Decimal) CalcResult {
	energy := fuelTonnes.Mul(c.params.LCV)
	cb := target.Sub(actual).Mul(energy)

	maxAllowed := target.Mul(decimal.NewFromInt(1).Add(c.params.ComplianceThreshold))

	return CalcResult{
		TargetIntensity: target,
		ActualIntensity: actual,
		EnergyInScopeMJ: energy,
		CB:              cb,
		IsCompliant:     actual.LessThanOrEqual(maxAllowed),
	}
}

// BalanceForYear resolves the year's target and computes the balance.
func (c Calculator) BalanceForYear(year int, actual, fuelTonnes decimal.Decimal) CalcResult {
	return c.Balance(c.params.TargetFor(year), actual, fuelTonnes)
}
