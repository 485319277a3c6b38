/*
Package sqlite provides a SQLite-backed implementation of fueleu.Store.

PURPOSE:
  Single-file relational backend for the compliance engine. The same
  SQL shapes apply to PostgreSQL (see store/postgres) with only dialect
  differences.

KEY TABLES:
  ship_compliance: Current CB per (ship_id, year), upserted on SetCB
  bank_entries:    Append-only banking log (no UPDATE or DELETE)
  pools:           Compliance pools
  pool_members:    Member before/after snapshots
  routes:          Voyage reference data with is_baseline flag

PRECISION:
  Decimal values are stored as TEXT (decimal.String()), never as REAL,
  so balance arithmetic round-trips exactly.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/fueleu.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool instead.

SEE ALSO:
  - fueleu/store.go: Interface definitions
  - store/memory:    In-memory implementation for testing
  - store/postgres:  PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/tidewater/fueleu-engine/fueleu"
)

// sqliteTimeLayout is RFC 3339 with fixed-width nanoseconds, so stored
// TEXT timestamps sort in time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements fueleu.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and a ":memory:"
	// database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Current compliance balance per ship and reporting year
	CREATE TABLE IF NOT EXISTS ship_compliance (
		ship_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		cb_value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (ship_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_ship_compliance_year
		ON ship_compliance(year);

	-- Banking log (append-only)
	CREATE TABLE IF NOT EXISTS bank_entries (
		id TEXT PRIMARY KEY,
		ship_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_entries_ship
		ON bank_entries(ship_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_bank_entries_ship_year
		ON bank_entries(ship_id, year);

	-- Pools
	CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pool_members (
		pool_id TEXT NOT NULL REFERENCES pools(id),
		ship_id TEXT NOT NULL,
		cb_before TEXT NOT NULL,
		cb_after TEXT NOT NULL,
		PRIMARY KEY (pool_id, ship_id)
	);

	-- Routes
	CREATE TABLE IF NOT EXISTS routes (
		route_id TEXT PRIMARY KEY,
		vessel_type TEXT NOT NULL,
		fuel_type TEXT NOT NULL,
		year INTEGER NOT NULL,
		ghg_intensity TEXT NOT NULL,
		fuel_consumption TEXT NOT NULL,
		distance TEXT NOT NULL,
		total_emissions TEXT NOT NULL,
		is_baseline INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// COMPLIANCE LEDGER (fueleu.ComplianceStore)
// =============================================================================

func (s *Store) GetCB(ctx context.Context, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCB(ctx, s.db, shipID, year)
}

func getCB(ctx context.Context, db dbtx, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	var value string
	err := db.QueryRowContext(ctx,
		"SELECT cb_value FROM ship_compliance WHERE ship_id = ? AND year = ?",
		string(shipID), year,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read compliance balance: %w", err)
	}
	return parseDecimal(value)
}

func (s *Store) SetCB(ctx context.Context, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setCB(ctx, s.db, shipID, year, cb)
}

func setCB(ctx context.Context, db dbtx, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	query := `
		INSERT INTO ship_compliance (ship_id, year, cb_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ship_id, year) DO UPDATE SET
			cb_value = excluded.cb_value,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		string(shipID), year, cb.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set compliance balance: %w", err)
	}
	return nil
}

func (s *Store) ListCompliance(ctx context.Context, year int) ([]fueleu.ShipCompliance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCompliance(ctx, s.db, year)
}

func listCompliance(ctx context.Context, db dbtx, year int) ([]fueleu.ShipCompliance, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT ship_id, year, cb_value FROM ship_compliance WHERE year = ? ORDER BY ship_id",
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query compliance records: %w", err)
	}
	defer rows.Close()

	var records []fueleu.ShipCompliance
	for rows.Next() {
		var (
			rec   fueleu.ShipCompliance
			value string
		)
		if err := rows.Scan(&rec.ShipID, &rec.Year, &value); err != nil {
			return nil, fmt.Errorf("failed to scan compliance record: %w", err)
		}
		if rec.CB, err = parseDecimal(value); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// BANKING LOG (fueleu.BankStore)
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, entry fueleu.BankEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, entry)
}

func appendEntry(ctx context.Context, db dbtx, entry fueleu.BankEntry) error {
	// Fixed-width timestamps keep TEXT ordering consistent with time order.
	_, err := db.ExecContext(ctx,
		"INSERT INTO bank_entries (id, ship_id, year, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, string(entry.ShipID), entry.Year,
		entry.Amount.String(), entry.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to append bank entry: %w", err)
	}
	return nil
}

func (s *Store) EntriesByShip(ctx context.Context, shipID fueleu.ShipID) ([]fueleu.BankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = ? ORDER BY created_at DESC, rowid DESC`,
		string(shipID))
}

func (s *Store) EntriesByShipYear(ctx context.Context, shipID fueleu.ShipID, year int) ([]fueleu.BankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = ? AND year = ? ORDER BY created_at DESC, rowid DESC`,
		string(shipID), year)
}

func queryEntries(ctx context.Context, db dbtx, query string, args ...any) ([]fueleu.BankEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank entries: %w", err)
	}
	defer rows.Close()

	var entries []fueleu.BankEntry
	for rows.Next() {
		var (
			e         fueleu.BankEntry
			amount    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ShipID, &e.Year, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bank entry: %w", err)
		}
		if e.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) TotalBanked(ctx context.Context, shipID fueleu.ShipID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalBanked(ctx, s.db, shipID)
}

// totalBanked sums amounts in Go rather than SQL: the amounts are stored as
// decimal text, which SQLite would coerce to float in SUM().
func totalBanked(ctx context.Context, db dbtx, shipID fueleu.ShipID) (decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT amount FROM bank_entries WHERE ship_id = ?", string(shipID))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query banked total: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan bank amount: %w", err)
		}
		d, err := parseDecimal(amount)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// =============================================================================
// POOL STORE (fueleu.PoolStore)
// =============================================================================

func (s *Store) CreatePool(ctx context.Context, pool fueleu.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPool(ctx, s.db, pool)
}

func createPool(ctx context.Context, db dbtx, pool fueleu.Pool) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO pools (id, year, created_at) VALUES (?, ?, ?)",
		pool.ID, pool.Year, pool.CreatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, member fueleu.PoolMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addMember(ctx, s.db, member)
}

func addMember(ctx context.Context, db dbtx, member fueleu.PoolMember) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO pool_members (pool_id, ship_id, cb_before, cb_after) VALUES (?, ?, ?, ?)",
		member.PoolID, string(member.ShipID), member.CBBefore.String(), member.CBAfter.String())
	if err != nil {
		return fmt.Errorf("failed to add pool member: %w", err)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, id string) (*fueleu.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPool(ctx, s.db, id)
}

func getPool(ctx context.Context, db dbtx, id string) (*fueleu.Pool, error) {
	var (
		pool      fueleu.Pool
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, year, created_at FROM pools WHERE id = ?", id,
	).Scan(&pool.ID, &pool.Year, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pool: %w", err)
	}
	if pool.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Store) GetMembers(ctx context.Context, poolID string) ([]fueleu.PoolMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMembers(ctx, s.db, poolID)
}

func getMembers(ctx context.Context, db dbtx, poolID string) ([]fueleu.PoolMember, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT pool_id, ship_id, cb_before, cb_after FROM pool_members WHERE pool_id = ?",
		poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool members: %w", err)
	}
	defer rows.Close()

	var members []fueleu.PoolMember
	for rows.Next() {
		var (
			m      fueleu.PoolMember
			before string
			after  string
		)
		if err := rows.Scan(&m.PoolID, &m.ShipID, &before, &after); err != nil {
			return nil, fmt.Errorf("failed to scan pool member: %w", err)
		}
		if m.CBBefore, err = parseDecimal(before); err != nil {
			return nil, err
		}
		if m.CBAfter, err = parseDecimal(after); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// =============================================================================
// ROUTE STORE (fueleu.RouteStore)
// =============================================================================

const routeColumns = `route_id, vessel_type, fuel_type, year, ghg_intensity,
	fuel_consumption, distance, total_emissions, is_baseline`

func (s *Store) ListRoutes(ctx context.Context) ([]fueleu.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRoutes(ctx, s.db)
}

func listRoutes(ctx context.Context, db dbtx) ([]fueleu.Route, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+routeColumns+" FROM routes ORDER BY year DESC, route_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []fueleu.Route
	for rows.Next() {
		route, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (s *Store) GetRoute(ctx context.Context, id string) (*fueleu.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRoute(ctx, s.db, id)
}

func getRoute(ctx context.Context, db dbtx, id string) (*fueleu.Route, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+routeColumns+" FROM routes WHERE route_id = ?", id)

	route, err := scanRoute(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func scanRoute(scan func(...any) error) (fueleu.Route, error) {
	var (
		r         fueleu.Route
		intensity string
		fuel      string
		distance  string
		emissions string
	)
	err := scan(&r.RouteID, &r.VesselType, &r.FuelType, &r.Year,
		&intensity, &fuel, &distance, &emissions, &r.IsBaseline)
	if err == sql.ErrNoRows {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("failed to scan route: %w", err)
	}

	if r.GHGIntensity, err = parseDecimal(intensity); err != nil {
		return r, err
	}
	if r.FuelConsumption, err = parseDecimal(fuel); err != nil {
		return r, err
	}
	if r.Distance, err = parseDecimal(distance); err != nil {
		return r, err
	}
	if r.TotalEmissions, err = parseDecimal(emissions); err != nil {
		return r, err
	}
	return r, nil
}

func (s *Store) CreateRoute(ctx context.Context, route fueleu.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createRoute(ctx, s.db, route)
}

func createRoute(ctx context.Context, db dbtx, route fueleu.Route) error {
	query := `
		INSERT INTO routes (` + routeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(route_id) DO UPDATE SET
			vessel_type = excluded.vessel_type,
			fuel_type = excluded.fuel_type,
			year = excluded.year,
			ghg_intensity = excluded.ghg_intensity,
			fuel_consumption = excluded.fuel_consumption,
			distance = excluded.distance,
			total_emissions = excluded.total_emissions
	`
	_, err := db.ExecContext(ctx, query,
		route.RouteID, route.VesselType, route.FuelType, route.Year,
		route.GHGIntensity.String(), route.FuelConsumption.String(),
		route.Distance.String(), route.TotalEmissions.String(), route.IsBaseline)
	if err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	return nil
}

func (s *Store) SetBaseline(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := setBaseline(ctx, sqlTx, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// setBaseline performs the clear-then-set. The caller owns the surrounding
// transaction, so an unknown id rolls back the clear too.
func setBaseline(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE routes SET is_baseline = 1 WHERE route_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to set baseline: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fueleu.ErrRouteNotFound
	}

	_, err = db.ExecContext(ctx,
		"UPDATE routes SET is_baseline = 0 WHERE route_id != ?", id)
	if err != nil {
		return fmt.Errorf("failed to clear baseline: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (fueleu.Store WithTx)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(fueleu.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetCB(ctx context.Context, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	return getCB(ctx, ts.tx, shipID, year)
}

func (ts *txStore) SetCB(ctx context.Context, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	return setCB(ctx, ts.tx, shipID, year, cb)
}

func (ts *txStore) ListCompliance(ctx context.Context, year int) ([]fueleu.ShipCompliance, error) {
	return listCompliance(ctx, ts.tx, year)
}

func (ts *txStore) AppendEntry(ctx context.Context, entry fueleu.BankEntry) error {
	return appendEntry(ctx, ts.tx, entry)
}

func (ts *txStore) EntriesByShip(ctx context.Context, shipID fueleu.ShipID) ([]fueleu.BankEntry, error) {
	return queryEntries(ctx, ts.tx,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = ? ORDER BY created_at DESC, rowid DESC`,
		string(shipID))
}

func (ts *txStore) EntriesByShipYear(ctx context.Context, shipID fueleu.ShipID, year int) ([]fueleu.BankEntry, error) {
	return queryEntries(ctx, ts.tx,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = ? AND year = ? ORDER BY created_at DESC, rowid DESC`,
		string(shipID), year)
}

func (ts *txStore) TotalBanked(ctx context.Context, shipID fueleu.ShipID) (decimal.Decimal, error) {
	return totalBanked(ctx, ts.tx, shipID)
}

func (ts *txStore) CreatePool(ctx context.Context, pool fueleu.Pool) error {
	return createPool(ctx, ts.tx, pool)
}

func (ts *txStore) AddMember(ctx context.Context, member fueleu.PoolMember) error {
	return addMember(ctx, ts.tx, member)
}

func (ts *txStore) GetPool(ctx context.Context, id string) (*fueleu.Pool, error) {
	return getPool(ctx, ts.tx, id)
}

func (ts *txStore) GetMembers(ctx context.Context, poolID string) ([]fueleu.PoolMember, error) {
	return getMembers(ctx, ts.tx, poolID)
}

func (ts *txStore) ListRoutes(ctx context.Context) ([]fueleu.Route, error) {
	return listRoutes(ctx, ts.tx)
}

func (ts *txStore) GetRoute(ctx context.Context, id string) (*fueleu.Route, error) {
	return getRoute(ctx, ts.tx, id)
}

func (ts *txStore) CreateRoute(ctx context.Context, route fueleu.Route) error {
	return createRoute(ctx, ts.tx, route)
}

func (ts *txStore) SetBaseline(ctx context.Context, id string) error {
	return setBaseline(ctx, ts.tx, id)
}

func (ts *txStore) WithTx(ctx context.Context, fn func(fueleu.Store) error) error {
	// Nested transactions join the outer one.
	return fn(ts)
}

// Helper functions

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored decimal %q: %w", s, err)
	}
	return d, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
