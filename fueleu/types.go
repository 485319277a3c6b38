/*
Package fueleu implements the compliance balance accounting engine for a
FuelEU-Maritime-style regulatory scheme.

PURPOSE:
  This package contains the domain types and the three interacting
  rule-sets governing a ship's compliance balance (CB): calculation from
  measured fuel performance, banking of surpluses for later use, and
  pooling of balances across a fleet subject to conservation and fairness
  constraints.

KEY CONCEPTS IN THIS FILE (types.go):
  - ShipCompliance: current CB for one (ship, year) pair
  - BankEntry: one immutable banking or withdrawal record
  - Pool / PoolMember: a compliance-sharing agreement and its snapshots
  - Route: voyage reference data with a single baseline flag

DESIGN PRINCIPLES:
  1. Precision: CB values use decimal.Decimal, never float64
  2. Immutability: bank entries and pool records are never edited
  3. The ledger (current CB per ship/year) is the single source of truth
     shared by banking and pooling

SEE ALSO:
  - calculator.go: CB computation from intensity and consumption
  - banking.go:    surplus banking and withdrawal rules
  - pooling.go:    multi-ship redistribution rules
  - store.go:      persistence contracts
*/
package fueleu

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ShipID string

// =============================================================================
// SHIP COMPLIANCE - Current balance for one ship and reporting year
// =============================================================================

// ShipCompliance is the current regulatory balance of one ship for one
// reporting year. CB is signed gCO2e: positive = surplus, negative = deficit.
// There is exactly one mutable record per (ShipID, Year); it is created on
// first calculation or first bank/pool reference and never deleted.
type ShipCompliance struct {
	ShipID ShipID
	Year   int
	CB     decimal.Decimal
}

// =============================================================================
// BANK ENTRY - Immutable record of one banking or withdrawal action
// =============================================================================

// BankEntry records one banking action. Amount is signed: positive means
// surplus was banked, negative means banked surplus was applied to a deficit.
// The sum of all amounts for a ship (across all years) is its total banked
// balance. Entries are append-only.
type BankEntry struct {
	ID        string
	ShipID    ShipID
	Year      int
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// =============================================================================
// POOL - Compliance-sharing agreement among >= 2 ships for one year
// =============================================================================

// Pool is created atomically with its members and is immutable thereafter.
type Pool struct {
	ID        string
	Year      int
	CreatedAt time.Time
}

// PoolMember is one ship's participation record. CBBefore is frozen at
// pool-creation time and never recalculated; CBAfter is the balance assigned
// by the redistribution.
type PoolMember struct {
	PoolID   string
	ShipID   ShipID
	CBBefore decimal.Decimal
	CBAfter  decimal.Decimal
}

// =============================================================================
// ROUTE - Voyage reference data
// =============================================================================

// Route holds one voyage's operating data. At most one route in the whole
// collection may have IsBaseline set; setting a new baseline clears the
// previous one in the same storage transaction.
type Route struct {
	RouteID         string
	VesselType      string
	FuelType        string
	Year            int
	GHGIntensity    decimal.Decimal // gCO2e/MJ
	FuelConsumption decimal.Decimal // tonnes
	Distance        decimal.Decimal // km
	TotalEmissions  decimal.Decimal // tonnes
	IsBaseline      bool
}

// =============================================================================
// ID GENERATION
// =============================================================================

// NewID returns a prefixed unique identifier, e.g. "bank_6f1c...".
// The prefix keeps ids self-describing in logs and stored rows.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// Dec builds a decimal from a float literal. Intended for tests and seeds;
// request parsing goes through the same conversion at the API boundary.
func Dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
