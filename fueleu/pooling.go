/*
pooling.go - Multi-ship compliance pooling

PURPOSE:
  A pool combines the balances of two or more ships for one year. The net
  balance must be non-negative, and it is redistributed equally among the
  members. Member snapshots (cbBefore/cbAfter) are frozen at creation.

INVARIANTS:
  Conservation: sum(cbAfter) == sum(cbBefore). The equal split leaves a
  remainder for totals not divisible by the member count; the remainder is
  assigned to the final member so the sum is conserved exactly.

  Fairness, per member, validated before anything is persisted:
    - deficit ship  (cbBefore < 0): cbAfter >= cbBefore
    - surplus ship  (cbBefore > 0): cbAfter >= 0
    - zero ships have no constraint beyond the global sum check

ATOMICITY:
  The balance reads, the sum check, the fairness checks and the batch
  write of Pool + members + ledger overwrites all happen inside one
  storage transaction under locks on every member key. A failed check
  never leaves an orphaned pool or a partially updated ledger.
*/
package fueleu

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PoolingService enforces the pooling rule-set on top of the ledger.
type PoolingService struct {
	store Store
	locks *KeyLocks
	now   func() time.Time
}

func NewPoolingService(store Store, locks *KeyLocks) *PoolingService {
	return &PoolingService{store: store, locks: locks, now: time.Now}
}

// CreatePool validates and persists a pool over the given ships for year,
// writing each member's redistributed balance back to the ledger.
// The returned Pool carries no members; fetch them with Members.
func (s *PoolingService) CreatePool(ctx context.Context, year int, shipIDs []ShipID) (*Pool, error) {
	if year <= 0 {
		return nil, &ValidationError{Field: "year", Message: "must be a positive year"}
	}

	seen := make(map[ShipID]bool, len(shipIDs))
	for _, id := range shipIDs {
		if id == "" {
			return nil, &ValidationError{Field: "shipIds", Message: "ship id must not be empty"}
		}
		if seen[id] {
			return nil, &ValidationError{Field: "shipIds", Message: fmt.Sprintf("duplicate ship id %s", id)}
		}
		seen[id] = true
	}
	if len(shipIDs) < 2 {
		return nil, &ValidationError{Field: "shipIds", Message: "pool must have at least 2 members"}
	}

	unlock := s.locks.LockAll(shipIDs, year)
	defer unlock()

	pool := Pool{
		ID:        NewID("pool"),
		Year:      year,
		CreatedAt: s.now().UTC(),
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		// Snapshot every member's current balance.
		befores := make([]decimal.Decimal, len(shipIDs))
		total := decimal.Zero
		for i, id := range shipIDs {
			cb, err := tx.GetCB(ctx, id, year)
			if err != nil {
				return fmt.Errorf("read compliance balance for %s: %w", id, err)
			}
			befores[i] = cb
			total = total.Add(cb)
		}

		// The sum check comes strictly before any fairness check or write:
		// a negative-sum pool is rejected outright.
		if total.IsNegative() {
			return &InvalidOperationError{
				Rule: fmt.Sprintf("pool sum must be >= 0, current sum: %s", total),
			}
		}

		members := redistribute(pool.ID, shipIDs, befores, total)

		for _, m := range members {
			if m.CBBefore.IsNegative() && m.CBAfter.LessThan(m.CBBefore) {
				return &InvalidOperationError{Rule: "deficit ship would exit pool worse", ShipID: m.ShipID}
			}
			if m.CBBefore.IsPositive() && m.CBAfter.IsNegative() {
				return &InvalidOperationError{Rule: "surplus ship would exit pool negative", ShipID: m.ShipID}
			}
		}

		if err := tx.CreatePool(ctx, pool); err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		for _, m := range members {
			if err := tx.AddMember(ctx, m); err != nil {
				return fmt.Errorf("add pool member %s: %w", m.ShipID, err)
			}
			if err := tx.SetCB(ctx, m.ShipID, year, m.CBAfter); err != nil {
				return fmt.Errorf("update compliance balance for %s: %w", m.ShipID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &pool, nil
}

// redistribute splits the pool total equally. The division remainder goes
// to the last member so the conservation invariant holds exactly.
func redistribute(poolID string, shipIDs []ShipID, befores []decimal.Decimal, total decimal.Decimal) []PoolMember {
	n := decimal.NewFromInt(int64(len(shipIDs)))
	share := total.Div(n)

	members := make([]PoolMember, len(shipIDs))
	assigned := decimal.Zero
	for i, id := range shipIDs {
		after := share
		if i == len(shipIDs)-1 {
			after = total.Sub(assigned)
		}
		assigned = assigned.Add(after)
		members[i] = PoolMember{
			PoolID:   poolID,
			ShipID:   id,
			CBBefore: befores[i],
			CBAfter:  after,
		}
	}
	return members
}

// Members returns all member records of a pool.
func (s *PoolingService) Members(ctx context.Context, poolID string) ([]PoolMember, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("read pool: %w", err)
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return s.store.GetMembers(ctx, poolID)
}
