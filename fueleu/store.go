/*
store.go - Persistence contracts for the accounting engine

PURPOSE:
  Defines the interface between the domain logic and storage. Any engine
  satisfying these contracts is acceptable; the repository ships three:

  - store/memory:   in-memory with snapshot/rollback transactions
  - store/sqlite:   SQLite (WAL), decimals stored as text
  - store/postgres: PostgreSQL via pgx

CONTRACT NOTES:
  - GetCB returns zero (not an error) for an absent (ship, year) record;
    a ledger row is created lazily by the first SetCB.
  - Bank entries are APPEND-ONLY: no update or delete methods exist.
    Consumption of banked surplus is recorded as a negative entry.
  - EntriesByShip / EntriesByShipYear return newest-first.
  - SetBaseline clears every baseline flag and sets the target's in one
    storage transaction; it returns ErrRouteNotFound (and changes nothing)
    for an unknown id.

TRANSACTIONS:
  WithTx executes fn against a transactional view of the store. If fn
  returns an error, every write made through the view is rolled back.
  Banking and pooling run their read-validate-write cycles inside WithTx
  so a mid-operation failure cannot leave partial state.
*/
package fueleu

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Current CB per (ship, year)
// =============================================================================

// ComplianceStore owns the current compliance balance per (ship, year).
type ComplianceStore interface {
	// GetCB returns the current CB, or zero if no record exists.
	GetCB(ctx context.Context, shipID ShipID, year int) (decimal.Decimal, error)

	// SetCB overwrites the CB for (shipID, year), creating the record if
	// absent. This is an absolute set, not a delta.
	SetCB(ctx context.Context, shipID ShipID, year int, cb decimal.Decimal) error

	// ListCompliance returns all ledger records for a year.
	ListCompliance(ctx context.Context, year int) ([]ShipCompliance, error)
}

// =============================================================================
// BANKING LOG
// =============================================================================

// BankStore persists the append-only banking log.
type BankStore interface {
	// AppendEntry adds one entry. This is the only write operation.
	AppendEntry(ctx context.Context, entry BankEntry) error

	// EntriesByShip returns all entries for a ship, newest first.
	EntriesByShip(ctx context.Context, shipID ShipID) ([]BankEntry, error)

	// EntriesByShipYear returns the ship's entries for one year, newest first.
	EntriesByShipYear(ctx context.Context, shipID ShipID, year int) ([]BankEntry, error)

	// TotalBanked sums all entry amounts for a ship across all years.
	TotalBanked(ctx context.Context, shipID ShipID) (decimal.Decimal, error)
}

// =============================================================================
// POOL STORE
// =============================================================================

// PoolStore persists pools and their member snapshots.
type PoolStore interface {
	CreatePool(ctx context.Context, pool Pool) error
	AddMember(ctx context.Context, member PoolMember) error

	// GetPool returns nil (no error) for an unknown id.
	GetPool(ctx context.Context, id string) (*Pool, error)

	GetMembers(ctx context.Context, poolID string) ([]PoolMember, error)
}

// =============================================================================
// ROUTE STORE
// =============================================================================

// RouteStore persists voyage reference data and the baseline flag.
type RouteStore interface {
	ListRoutes(ctx context.Context) ([]Route, error)

	// GetRoute returns nil (no error) for an unknown id.
	GetRoute(ctx context.Context, id string) (*Route, error)

	CreateRoute(ctx context.Context, route Route) error

	// SetBaseline clears all baseline flags then sets the target's, as one
	// atomic step. Returns ErrRouteNotFound for an unknown id without
	// clearing the existing baseline.
	SetBaseline(ctx context.Context, id string) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence contract the engine requires.
type Store interface {
	ComplianceStore
	BankStore
	PoolStore
	RouteStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
