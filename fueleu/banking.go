/*
banking.go - Surplus banking and withdrawal rules

PURPOSE:
  A ship with a positive compliance balance may set part of it aside
  (bank it) for later use. A ship with a deficit may apply previously
  banked surplus against that deficit. Every action appends one immutable
  BankEntry; the ship's "total banked" is the running sum of all its
  entries across all years.

RULES:
  BankSurplus:
    - current CB must be strictly > 0
    - amount must not exceed current CB
    - effect: CB -= amount, positive entry appended

  ApplyBanked:
    - total banked (all years) must cover the amount
    - current CB must be strictly < 0 (can only offset a deficit)
    - effect: CB += amount, negative entry appended
    - the new CB must never be below the old one (checked defensively)

CONCURRENCY:
  Each operation locks its (ship, year) ledger key and runs inside one
  storage transaction, so a failure after the entry append rolls the
  ledger write back too.
*/
package fueleu

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BankingService enforces the banking rule-set on top of the ledger.
type BankingService struct {
	store Store
	locks *KeyLocks
	now   func() time.Time
}

func NewBankingService(store Store, locks *KeyLocks) *BankingService {
	return &BankingService{store: store, locks: locks, now: time.Now}
}

// BankSurplus sets amount aside from the ship's current surplus.
// Returns the created entry.
func (s *BankingService) BankSurplus(ctx context.Context, shipID ShipID, year int, amount decimal.Decimal) (*BankEntry, error) {
	if err := validateBankingInput(shipID, year, amount); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(shipID, year)
	defer unlock()

	entry := BankEntry{
		ID:        NewID("bank"),
		ShipID:    shipID,
		Year:      year,
		Amount:    amount,
		CreatedAt: s.now().UTC(),
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		cb, err := tx.GetCB(ctx, shipID, year)
		if err != nil {
			return fmt.Errorf("read compliance balance: %w", err)
		}

		if !cb.IsPositive() {
			return &InvalidOperationError{Rule: "cannot bank negative or zero CB", ShipID: shipID}
		}
		if amount.GreaterThan(cb) {
			return &InvalidOperationError{
				Rule:   fmt.Sprintf("cannot bank more than available CB (%s)", cb),
				ShipID: shipID,
			}
		}

		if err := tx.AppendEntry(ctx, entry); err != nil {
			return fmt.Errorf("append bank entry: %w", err)
		}
		if err := tx.SetCB(ctx, shipID, year, cb.Sub(amount)); err != nil {
			return fmt.Errorf("update compliance balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// ApplyBanked consumes banked surplus to offset the ship's deficit for year.
func (s *BankingService) ApplyBanked(ctx context.Context, shipID ShipID, year int, amount decimal.Decimal) error {
	if err := validateBankingInput(shipID, year, amount); err != nil {
		return err
	}

	unlock := s.locks.Lock(shipID, year)
	defer unlock()

	return s.store.WithTx(ctx, func(tx Store) error {
		total, err := tx.TotalBanked(ctx, shipID)
		if err != nil {
			return fmt.Errorf("read banked total: %w", err)
		}
		if total.LessThan(amount) {
			return &InsufficientFundsError{ShipID: shipID, Available: total, Requested: amount}
		}

		cb, err := tx.GetCB(ctx, shipID, year)
		if err != nil {
			return fmt.Errorf("read compliance balance: %w", err)
		}
		if !cb.IsNegative() {
			return &InvalidOperationError{Rule: "cannot apply banked surplus to positive CB", ShipID: shipID}
		}

		newCB := cb.Add(amount)
		// Monotonic improvement invariant. Amount is validated positive so
		// this cannot trip, but a violation here means corrupted state.
		if newCB.LessThan(cb) {
			return &InvalidOperationError{Rule: "application would make deficit worse", ShipID: shipID}
		}

		entry := BankEntry{
			ID:        NewID("apply"),
			ShipID:    shipID,
			Year:      year,
			Amount:    amount.Neg(),
			CreatedAt: s.now().UTC(),
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return fmt.Errorf("append bank entry: %w", err)
		}
		if err := tx.SetCB(ctx, shipID, year, newCB); err != nil {
			return fmt.Errorf("update compliance balance: %w", err)
		}
		return nil
	})
}

// TotalBanked returns the ship's banked balance across all years.
func (s *BankingService) TotalBanked(ctx context.Context, shipID ShipID) (decimal.Decimal, error) {
	if shipID == "" {
		return decimal.Zero, &ValidationError{Field: "shipId", Message: "must not be empty"}
	}
	return s.store.TotalBanked(ctx, shipID)
}

// Records returns the ship's banking history, newest first. A non-nil year
// filters to that year's entries.
func (s *BankingService) Records(ctx context.Context, shipID ShipID, year *int) ([]BankEntry, error) {
	if shipID == "" {
		return nil, &ValidationError{Field: "shipId", Message: "must not be empty"}
	}
	if year != nil {
		return s.store.EntriesByShipYear(ctx, shipID, *year)
	}
	return s.store.EntriesByShip(ctx, shipID)
}

func validateBankingInput(shipID ShipID, year int, amount decimal.Decimal) error {
	if shipID == "" {
		return &ValidationError{Field: "shipId", Message: "must not be empty"}
	}
	if year <= 0 {
		return &ValidationError{Field: "year", Message: "must be a positive year"}
	}
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be > 0"}
	}
	return nil
}
