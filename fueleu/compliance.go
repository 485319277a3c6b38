/*
compliance.go - Compliance service: calculate and persist balances

PURPOSE:
  Wraps the pure Calculator with ledger persistence. CalculateCB computes
  the balance for measured performance and OVERWRITES the ledger record
  for (ship, year).

OVERWRITE SEMANTICS:
  Recalculating for a ship/year that was already adjusted by banking or
  pooling discards those adjustments. This mirrors the regulation
  workflow where a recalculation restates the reported figures; it is a
  destructive recompute, not an accumulation.
*/
package fueleu

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ComplianceResult is the outcome of a persisted balance calculation.
type ComplianceResult struct {
	ShipID          ShipID
	Year            int
	TargetIntensity decimal.Decimal
	ActualIntensity decimal.Decimal
	EnergyInScopeMJ decimal.Decimal
	CB              decimal.Decimal
	IsCompliant     bool
}

// ComplianceService computes and stores compliance balances.
type ComplianceService struct {
	store Store
	calc  Calculator
	locks *KeyLocks
}

func NewComplianceService(store Store, calc Calculator, locks *KeyLocks) *ComplianceService {
	return &ComplianceService{store: store, calc: calc, locks: locks}
}

// CalculateCB computes the balance for a ship's reported performance and
// overwrites the ledger record for (shipID, year).
func (s *ComplianceService) CalculateCB(ctx context.Context, shipID ShipID, year int, actualIntensity, fuelTonnes decimal.Decimal) (*ComplianceResult, error) {
	if shipID == "" {
		return nil, &ValidationError{Field: "shipId", Message: "must not be empty"}
	}
	if year <= 0 {
		return nil, &ValidationError{Field: "year", Message: "must be a positive year"}
	}
	if actualIntensity.IsNegative() || actualIntensity.IsZero() {
		return nil, &ValidationError{Field: "actualIntensity", Message: "must be > 0"}
	}
	if fuelTonnes.IsNegative() {
		return nil, &ValidationError{Field: "fuelConsumption", Message: "must be >= 0"}
	}

	r := s.calc.BalanceForYear(year, actualIntensity, fuelTonnes)

	unlock := s.locks.Lock(shipID, year)
	defer unlock()

	if err := s.store.SetCB(ctx, shipID, year, r.CB); err != nil {
		return nil, fmt.Errorf("persist compliance balance: %w", err)
	}

	return &ComplianceResult{
		ShipID:          shipID,
		Year:            year,
		TargetIntensity: r.TargetIntensity,
		ActualIntensity: r.ActualIntensity,
		EnergyInScopeMJ: r.EnergyInScopeMJ,
		CB:              r.CB,
		IsCompliant:     r.IsCompliant,
	}, nil
}

// CurrentCB returns the ledger balance for (shipID, year), zero if absent.
func (s *ComplianceService) CurrentCB(ctx context.Context, shipID ShipID, year int) (decimal.Decimal, error) {
	return s.store.GetCB(ctx, shipID, year)
}

// FleetCompliance returns every ledger record for a year.
func (s *ComplianceService) FleetCompliance(ctx context.Context, year int) ([]ShipCompliance, error) {
	return s.store.ListCompliance(ctx, year)
}
