// Package memory provides an in-memory fueleu.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tidewater/fueleu-engine/fueleu"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type ledgerKey struct {
	ShipID fueleu.ShipID
	Year   int
}

type Store struct {
	mu       sync.RWMutex
	balances map[ledgerKey]decimal.Decimal
	entries  []fueleu.BankEntry // in append order
	pools    map[string]fueleu.Pool
	members  map[string][]fueleu.PoolMember
	routes   map[string]fueleu.Route
	routeIDs []string // preserves insertion order for listings
}

func New() *Store {
	return &Store{
		balances: make(map[ledgerKey]decimal.Decimal),
		pools:    make(map[string]fueleu.Pool),
		members:  make(map[string][]fueleu.PoolMember),
		routes:   make(map[string]fueleu.Route),
	}
}

// =============================================================================
// COMPLIANCE LEDGER
// =============================================================================

func (m *Store) GetCB(_ context.Context, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCBLocked(shipID, year), nil
}

func (m *Store) getCBLocked(shipID fueleu.ShipID, year int) decimal.Decimal {
	if cb, ok := m.balances[ledgerKey{ShipID: shipID, Year: year}]; ok {
		return cb
	}
	return decimal.Zero
}

func (m *Store) SetCB(_ context.Context, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCBLocked(shipID, year, cb)
	return nil
}

func (m *Store) setCBLocked(shipID fueleu.ShipID, year int, cb decimal.Decimal) {
	m.balances[ledgerKey{ShipID: shipID, Year: year}] = cb
}

func (m *Store) ListCompliance(_ context.Context, year int) ([]fueleu.ShipCompliance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listComplianceLocked(year), nil
}

func (m *Store) listComplianceLocked(year int) []fueleu.ShipCompliance {
	var out []fueleu.ShipCompliance
	for k, cb := range m.balances {
		if k.Year == year {
			out = append(out, fueleu.ShipCompliance{ShipID: k.ShipID, Year: k.Year, CB: cb})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShipID < out[j].ShipID })
	return out
}

// =============================================================================
// BANKING LOG
// =============================================================================

func (m *Store) AppendEntry(_ context.Context, entry fueleu.BankEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Store) EntriesByShip(_ context.Context, shipID fueleu.ShipID) ([]fueleu.BankEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(shipID, nil), nil
}

func (m *Store) EntriesByShipYear(_ context.Context, shipID fueleu.ShipID, year int) ([]fueleu.BankEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(shipID, &year), nil
}

// entriesLocked returns matching entries newest first. Append order is the
// authoritative tiebreak for entries created within the same instant.
func (m *Store) entriesLocked(shipID fueleu.ShipID, year *int) []fueleu.BankEntry {
	var out []fueleu.BankEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.ShipID != shipID {
			continue
		}
		if year != nil && e.Year != *year {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m *Store) TotalBanked(_ context.Context, shipID fueleu.ShipID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalBankedLocked(shipID), nil
}

func (m *Store) totalBankedLocked(shipID fueleu.ShipID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.entries {
		if e.ShipID == shipID {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// =============================================================================
// POOL STORE
// =============================================================================

func (m *Store) CreatePool(_ context.Context, pool fueleu.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[pool.ID] = pool
	return nil
}

func (m *Store) AddMember(_ context.Context, member fueleu.PoolMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.PoolID] = append(m.members[member.PoolID], member)
	return nil
}

func (m *Store) GetPool(_ context.Context, id string) (*fueleu.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pool, ok := m.pools[id]; ok {
		return &pool, nil
	}
	return nil, nil
}

func (m *Store) GetMembers(_ context.Context, poolID string) ([]fueleu.PoolMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fueleu.PoolMember, len(m.members[poolID]))
	copy(out, m.members[poolID])
	return out, nil
}

// =============================================================================
// ROUTE STORE
// =============================================================================

func (m *Store) ListRoutes(_ context.Context) ([]fueleu.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fueleu.Route, 0, len(m.routeIDs))
	for _, id := range m.routeIDs {
		out = append(out, m.routes[id])
	}
	return out, nil
}

func (m *Store) GetRoute(_ context.Context, id string) (*fueleu.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.routes[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *Store) CreateRoute(_ context.Context, route fueleu.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createRouteLocked(route)
	return nil
}

// createRouteLocked upserts the route. Re-creating an existing id keeps its
// baseline flag, matching the SQL backends' upsert.
func (m *Store) createRouteLocked(route fueleu.Route) {
	if existing, ok := m.routes[route.RouteID]; ok {
		route.IsBaseline = existing.IsBaseline
	} else {
		m.routeIDs = append(m.routeIDs, route.RouteID)
	}
	m.routes[route.RouteID] = route
}

func (m *Store) SetBaseline(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.routes[id]
	if !ok {
		return fueleu.ErrRouteNotFound
	}

	for rid, r := range m.routes {
		if r.IsBaseline {
			r.IsBaseline = false
			m.routes[rid] = r
		}
	}
	target.IsBaseline = true
	m.routes[id] = target
	return nil
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore on rollback
// =============================================================================

// WithTx simulates a transaction with a full snapshot + rollback on error.
// The view passed to fn uses the already-held write lock.
func (m *Store) WithTx(ctx context.Context, fn func(fueleu.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	balances map[ledgerKey]decimal.Decimal
	entries  []fueleu.BankEntry
	pools    map[string]fueleu.Pool
	members  map[string][]fueleu.PoolMember
	routes   map[string]fueleu.Route
	routeIDs []string
}

func (m *Store) snapshot() snapshot {
	s := snapshot{
		balances: make(map[ledgerKey]decimal.Decimal, len(m.balances)),
		entries:  append([]fueleu.BankEntry{}, m.entries...),
		pools:    make(map[string]fueleu.Pool, len(m.pools)),
		members:  make(map[string][]fueleu.PoolMember, len(m.members)),
		routes:   make(map[string]fueleu.Route, len(m.routes)),
		routeIDs: append([]string{}, m.routeIDs...),
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.pools {
		s.pools[k] = v
	}
	for k, v := range m.members {
		s.members[k] = append([]fueleu.PoolMember{}, v...)
	}
	for k, v := range m.routes {
		s.routes[k] = v
	}
	return s
}

func (m *Store) restore(s snapshot) {
	m.balances = s.balances
	m.entries = s.entries
	m.pools = s.pools
	m.members = s.members
	m.routes = s.routes
	m.routeIDs = s.routeIDs
}

// txView exposes the parent's state without re-locking.
type txView struct {
	parent *Store
}

func (tv *txView) GetCB(_ context.Context, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	return tv.parent.getCBLocked(shipID, year), nil
}

func (tv *txView) SetCB(_ context.Context, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	tv.parent.setCBLocked(shipID, year, cb)
	return nil
}

func (tv *txView) ListCompliance(_ context.Context, year int) ([]fueleu.ShipCompliance, error) {
	return tv.parent.listComplianceLocked(year), nil
}

func (tv *txView) AppendEntry(_ context.Context, entry fueleu.BankEntry) error {
	tv.parent.entries = append(tv.parent.entries, entry)
	return nil
}

func (tv *txView) EntriesByShip(_ context.Context, shipID fueleu.ShipID) ([]fueleu.BankEntry, error) {
	return tv.parent.entriesLocked(shipID, nil), nil
}

func (tv *txView) EntriesByShipYear(_ context.Context, shipID fueleu.ShipID, year int) ([]fueleu.BankEntry, error) {
	return tv.parent.entriesLocked(shipID, &year), nil
}

func (tv *txView) TotalBanked(_ context.Context, shipID fueleu.ShipID) (decimal.Decimal, error) {
	return tv.parent.totalBankedLocked(shipID), nil
}

func (tv *txView) CreatePool(_ context.Context, pool fueleu.Pool) error {
	tv.parent.pools[pool.ID] = pool
	return nil
}

func (tv *txView) AddMember(_ context.Context, member fueleu.PoolMember) error {
	tv.parent.members[member.PoolID] = append(tv.parent.members[member.PoolID], member)
	return nil
}

func (tv *txView) GetPool(_ context.Context, id string) (*fueleu.Pool, error) {
	if pool, ok := tv.parent.pools[id]; ok {
		return &pool, nil
	}
	return nil, nil
}

func (tv *txView) GetMembers(_ context.Context, poolID string) ([]fueleu.PoolMember, error) {
	return append([]fueleu.PoolMember{}, tv.parent.members[poolID]...), nil
}

func (tv *txView) ListRoutes(_ context.Context) ([]fueleu.Route, error) {
	out := make([]fueleu.Route, 0, len(tv.parent.routeIDs))
	for _, id := range tv.parent.routeIDs {
		out = append(out, tv.parent.routes[id])
	}
	return out, nil
}

func (tv *txView) GetRoute(_ context.Context, id string) (*fueleu.Route, error) {
	if r, ok := tv.parent.routes[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (tv *txView) CreateRoute(_ context.Context, route fueleu.Route) error {
	tv.parent.createRouteLocked(route)
	return nil
}

func (tv *txView) SetBaseline(_ context.Context, id string) error {
	target, ok := tv.parent.routes[id]
	if !ok {
		return fueleu.ErrRouteNotFound
	}
	for rid, r := range tv.parent.routes {
		if r.IsBaseline {
			r.IsBaseline = false
			tv.parent.routes[rid] = r
		}
	}
	target.IsBaseline = true
	tv.parent.routes[id] = target
	return nil
}

func (tv *txView) WithTx(ctx context.Context, fn func(fueleu.Store) error) error {
	// Nested transactions join the outer one.
	return fn(tv)
}
