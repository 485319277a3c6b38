/*
Package postgres implements fueleu.Store using PostgreSQL via pgx.

PURPOSE:
  Production relational backend. Same schema shape as store/sqlite with
  PostgreSQL types: balances and amounts are NUMERIC (decimal.Decimal
  implements sql.Scanner/driver.Valuer, so values round-trip exactly).

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is applied on New(). For production, use a versioned migration
  tool instead.
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tidewater/fueleu-engine/fueleu"
)

const schema = `
CREATE TABLE IF NOT EXISTS ship_compliance (
	ship_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	cb_value NUMERIC NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (ship_id, year)
);

CREATE INDEX IF NOT EXISTS idx_ship_compliance_year ON ship_compliance(year);

CREATE TABLE IF NOT EXISTS bank_entries (
	id TEXT PRIMARY KEY,
	ship_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	amount NUMERIC NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bank_entries_ship ON bank_entries(ship_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bank_entries_ship_year ON bank_entries(ship_id, year);

CREATE TABLE IF NOT EXISTS pools (
	id TEXT PRIMARY KEY,
	year INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_members (
	pool_id TEXT NOT NULL REFERENCES pools(id),
	ship_id TEXT NOT NULL,
	cb_before NUMERIC NOT NULL,
	cb_after NUMERIC NOT NULL,
	PRIMARY KEY (pool_id, ship_id)
);

CREATE TABLE IF NOT EXISTS routes (
	route_id TEXT PRIMARY KEY,
	vessel_type TEXT NOT NULL,
	fuel_type TEXT NOT NULL,
	year INTEGER NOT NULL,
	ghg_intensity NUMERIC NOT NULL,
	fuel_consumption NUMERIC NOT NULL,
	distance NUMERIC NOT NULL,
	total_emissions NUMERIC NOT NULL,
	is_baseline BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Store implements fueleu.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the
// statement helpers below serve plain calls and transactions alike.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// COMPLIANCE LEDGER
// =============================================================================

func (s *Store) GetCB(ctx context.Context, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	return getCB(ctx, s.pool, shipID, year)
}

func getCB(ctx context.Context, q querier, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	var cb decimal.Decimal
	err := q.QueryRow(ctx,
		"SELECT cb_value FROM ship_compliance WHERE ship_id = $1 AND year = $2",
		string(shipID), year,
	).Scan(&cb)

	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: read compliance balance: %w", err)
	}
	return cb, nil
}

func (s *Store) SetCB(ctx context.Context, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	return setCB(ctx, s.pool, shipID, year, cb)
}

func setCB(ctx context.Context, q querier, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	_, err := q.Exec(ctx, `
		INSERT INTO ship_compliance (ship_id, year, cb_value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (ship_id, year) DO UPDATE SET
			cb_value = EXCLUDED.cb_value,
			updated_at = EXCLUDED.updated_at`,
		string(shipID), year, cb)
	if err != nil {
		return fmt.Errorf("postgres: set compliance balance: %w", err)
	}
	return nil
}

func (s *Store) ListCompliance(ctx context.Context, year int) ([]fueleu.ShipCompliance, error) {
	return listCompliance(ctx, s.pool, year)
}

func listCompliance(ctx context.Context, q querier, year int) ([]fueleu.ShipCompliance, error) {
	rows, err := q.Query(ctx,
		"SELECT ship_id, year, cb_value FROM ship_compliance WHERE year = $1 ORDER BY ship_id",
		year)
	if err != nil {
		return nil, fmt.Errorf("postgres: query compliance records: %w", err)
	}
	defer rows.Close()

	var records []fueleu.ShipCompliance
	for rows.Next() {
		var rec fueleu.ShipCompliance
		if err := rows.Scan(&rec.ShipID, &rec.Year, &rec.CB); err != nil {
			return nil, fmt.Errorf("postgres: scan compliance record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// BANKING LOG
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, entry fueleu.BankEntry) error {
	return appendEntry(ctx, s.pool, entry)
}

func appendEntry(ctx context.Context, q querier, entry fueleu.BankEntry) error {
	_, err := q.Exec(ctx,
		"INSERT INTO bank_entries (id, ship_id, year, amount, created_at) VALUES ($1, $2, $3, $4, $5)",
		entry.ID, string(entry.ShipID), entry.Year, entry.Amount, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres: append bank entry: %w", err)
	}
	return nil
}

func (s *Store) EntriesByShip(ctx context.Context, shipID fueleu.ShipID) ([]fueleu.BankEntry, error) {
	return queryEntries(ctx, s.pool,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = $1 ORDER BY created_at DESC, id DESC`,
		string(shipID))
}

func (s *Store) EntriesByShipYear(ctx context.Context, shipID fueleu.ShipID, year int) ([]fueleu.BankEntry, error) {
	return queryEntries(ctx, s.pool,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = $1 AND year = $2 ORDER BY created_at DESC, id DESC`,
		string(shipID), year)
}

func queryEntries(ctx context.Context, q querier, sql string, args ...any) ([]fueleu.BankEntry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query bank entries: %w", err)
	}
	defer rows.Close()

	var entries []fueleu.BankEntry
	for rows.Next() {
		var (
			e         fueleu.BankEntry
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.ShipID, &e.Year, &e.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bank entry: %w", err)
		}
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) TotalBanked(ctx context.Context, shipID fueleu.ShipID) (decimal.Decimal, error) {
	return totalBanked(ctx, s.pool, shipID)
}

func totalBanked(ctx context.Context, q querier, shipID fueleu.ShipID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM bank_entries WHERE ship_id = $1",
		string(shipID),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: read banked total: %w", err)
	}
	return total, nil
}

// =============================================================================
// POOL STORE
// =============================================================================

func (s *Store) CreatePool(ctx context.Context, pool fueleu.Pool) error {
	return createPool(ctx, s.pool, pool)
}

func createPool(ctx context.Context, q querier, pool fueleu.Pool) error {
	_, err := q.Exec(ctx,
		"INSERT INTO pools (id, year, created_at) VALUES ($1, $2, $3)",
		pool.ID, pool.Year, pool.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres: create pool: %w", err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, member fueleu.PoolMember) error {
	return addMember(ctx, s.pool, member)
}

func addMember(ctx context.Context, q querier, member fueleu.PoolMember) error {
	_, err := q.Exec(ctx,
		"INSERT INTO pool_members (pool_id, ship_id, cb_before, cb_after) VALUES ($1, $2, $3, $4)",
		member.PoolID, string(member.ShipID), member.CBBefore, member.CBAfter)
	if err != nil {
		return fmt.Errorf("postgres: add pool member: %w", err)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, id string) (*fueleu.Pool, error) {
	return getPool(ctx, s.pool, id)
}

func getPool(ctx context.Context, q querier, id string) (*fueleu.Pool, error) {
	var pool fueleu.Pool
	err := q.QueryRow(ctx,
		"SELECT id, year, created_at FROM pools WHERE id = $1", id,
	).Scan(&pool.ID, &pool.Year, &pool.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: read pool: %w", err)
	}
	return &pool, nil
}

func (s *Store) GetMembers(ctx context.Context, poolID string) ([]fueleu.PoolMember, error) {
	return getMembers(ctx, s.pool, poolID)
}

func getMembers(ctx context.Context, q querier, poolID string) ([]fueleu.PoolMember, error) {
	rows, err := q.Query(ctx,
		"SELECT pool_id, ship_id, cb_before, cb_after FROM pool_members WHERE pool_id = $1",
		poolID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query pool members: %w", err)
	}
	defer rows.Close()

	var members []fueleu.PoolMember
	for rows.Next() {
		var m fueleu.PoolMember
		if err := rows.Scan(&m.PoolID, &m.ShipID, &m.CBBefore, &m.CBAfter); err != nil {
			return nil, fmt.Errorf("postgres: scan pool member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// =============================================================================
// ROUTE STORE
// =============================================================================

const routeColumns = `route_id, vessel_type, fuel_type, year, ghg_intensity,
	fuel_consumption, distance, total_emissions, is_baseline`

func (s *Store) ListRoutes(ctx context.Context) ([]fueleu.Route, error) {
	return listRoutes(ctx, s.pool)
}

func listRoutes(ctx context.Context, q querier) ([]fueleu.Route, error) {
	rows, err := q.Query(ctx,
		"SELECT "+routeColumns+" FROM routes ORDER BY year DESC, route_id")
	if err != nil {
		return nil, fmt.Errorf("postgres: query routes: %w", err)
	}
	defer rows.Close()

	var routes []fueleu.Route
	for rows.Next() {
		var r fueleu.Route
		if err := rows.Scan(&r.RouteID, &r.VesselType, &r.FuelType, &r.Year,
			&r.GHGIntensity, &r.FuelConsumption, &r.Distance, &r.TotalEmissions,
			&r.IsBaseline); err != nil {
			return nil, fmt.Errorf("postgres: scan route: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (s *Store) GetRoute(ctx context.Context, id string) (*fueleu.Route, error) {
	return getRoute(ctx, s.pool, id)
}

func getRoute(ctx context.Context, q querier, id string) (*fueleu.Route, error) {
	var r fueleu.Route
	err := q.QueryRow(ctx,
		"SELECT "+routeColumns+" FROM routes WHERE route_id = $1", id,
	).Scan(&r.RouteID, &r.VesselType, &r.FuelType, &r.Year,
		&r.GHGIntensity, &r.FuelConsumption, &r.Distance, &r.TotalEmissions,
		&r.IsBaseline)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: read route: %w", err)
	}
	return &r, nil
}

func (s *Store) CreateRoute(ctx context.Context, route fueleu.Route) error {
	return createRoute(ctx, s.pool, route)
}

func createRoute(ctx context.Context, q querier, route fueleu.Route) error {
	_, err := q.Exec(ctx, `
		INSERT INTO routes (`+routeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (route_id) DO UPDATE SET
			vessel_type = EXCLUDED.vessel_type,
			fuel_type = EXCLUDED.fuel_type,
			year = EXCLUDED.year,
			ghg_intensity = EXCLUDED.ghg_intensity,
			fuel_consumption = EXCLUDED.fuel_consumption,
			distance = EXCLUDED.distance,
			total_emissions = EXCLUDED.total_emissions`,
		route.RouteID, route.VesselType, route.FuelType, route.Year,
		route.GHGIntensity, route.FuelConsumption, route.Distance,
		route.TotalEmissions, route.IsBaseline)
	if err != nil {
		return fmt.Errorf("postgres: create route: %w", err)
	}
	return nil
}

func (s *Store) SetBaseline(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return setBaseline(ctx, tx, id)
	})
}

func setBaseline(ctx context.Context, q querier, id string) error {
	tag, err := q.Exec(ctx,
		"UPDATE routes SET is_baseline = TRUE WHERE route_id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: set baseline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fueleu.ErrRouteNotFound
	}

	_, err = q.Exec(ctx,
		"UPDATE routes SET is_baseline = FALSE WHERE route_id != $1", id)
	if err != nil {
		return fmt.Errorf("postgres: clear baseline: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(fueleu.Store) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&txStore{q: tx})
	})
}

type txStore struct {
	q querier
}

func (ts *txStore) GetCB(ctx context.Context, shipID fueleu.ShipID, year int) (decimal.Decimal, error) {
	return getCB(ctx, ts.q, shipID, year)
}

func (ts *txStore) SetCB(ctx context.Context, shipID fueleu.ShipID, year int, cb decimal.Decimal) error {
	return setCB(ctx, ts.q, shipID, year, cb)
}

func (ts *txStore) ListCompliance(ctx context.Context, year int) ([]fueleu.ShipCompliance, error) {
	return listCompliance(ctx, ts.q, year)
}

func (ts *txStore) AppendEntry(ctx context.Context, entry fueleu.BankEntry) error {
	return appendEntry(ctx, ts.q, entry)
}

func (ts *txStore) EntriesByShip(ctx context.Context, shipID fueleu.ShipID) ([]fueleu.BankEntry, error) {
	return queryEntries(ctx, ts.q,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = $1 ORDER BY created_at DESC, id DESC`,
		string(shipID))
}

func (ts *txStore) EntriesByShipYear(ctx context.Context, shipID fueleu.ShipID, year int) ([]fueleu.BankEntry, error) {
	return queryEntries(ctx, ts.q,
		`SELECT id, ship_id, year, amount, created_at FROM bank_entries
		 WHERE ship_id = $1 AND year = $2 ORDER BY created_at DESC, id DESC`,
		string(shipID), year)
}

func (ts *txStore) TotalBanked(ctx context.Context, shipID fueleu.ShipID) (decimal.Decimal, error) {
	return totalBanked(ctx, ts.q, shipID)
}

func (ts *txStore) CreatePool(ctx context.Context, pool fueleu.Pool) error {
	return createPool(ctx, ts.q, pool)
}

func (ts *txStore) AddMember(ctx context.Context, member fueleu.PoolMember) error {
	return addMember(ctx, ts.q, member)
}

func (ts *txStore) GetPool(ctx context.Context, id string) (*fueleu.Pool, error) {
	return getPool(ctx, ts.q, id)
}

func (ts *txStore) GetMembers(ctx context.Context, poolID string) ([]fueleu.PoolMember, error) {
	return getMembers(ctx, ts.q, poolID)
}

func (ts *txStore) ListRoutes(ctx context.Context) ([]fueleu.Route, error) {
	return listRoutes(ctx, ts.q)
}

func (ts *txStore) GetRoute(ctx context.Context, id string) (*fueleu.Route, error) {
	return getRoute(ctx, ts.q, id)
}

func (ts *txStore) CreateRoute(ctx context.Context, route fueleu.Route) error {
	return createRoute(ctx, ts.q, route)
}

func (ts *txStore) SetBaseline(ctx context.Context, id string) error {
	return setBaseline(ctx, ts.q, id)
}

func (ts *txStore) WithTx(ctx context.Context, fn func(fueleu.Store) error) error {
	// Nested transactions join the outer one.
	return fn(ts)
}
