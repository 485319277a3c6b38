/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

  JSON fields are camelCase, matching what the frontend consumes.

NUMBERS:
  The domain works in decimal.Decimal; DTOs expose float64. The loss of
  precision is acceptable at the API boundary (values are gCO2eq at
  route scale), while the ledger itself stays exact.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup and middleware
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidewater/fueleu-engine/fueleu"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RouteDTO represents a voyage record in API responses.
type RouteDTO struct {
	RouteID         string  `json:"routeId"`
	VesselType      string  `json:"vesselType"`
	FuelType        string  `json:"fuelType"`
	Year            int     `json:"year"`
	GHGIntensity    float64 `json:"ghgIntensity"`
	FuelConsumption float64 `json:"fuelConsumption"`
	Distance        float64 `json:"distance"`
	TotalEmissions  float64 `json:"totalEmissions"`
	IsBaseline      bool    `json:"isBaseline"`
}

// CreateRouteRequest is the request to register a route.
type CreateRouteRequest struct {
	RouteID         string  `json:"routeId"`
	VesselType      string  `json:"vesselType"`
	FuelType        string  `json:"fuelType"`
	Year            int     `json:"year"`
	GHGIntensity    float64 `json:"ghgIntensity"`
	FuelConsumption float64 `json:"fuelConsumption"`
	Distance        float64 `json:"distance"`
	TotalEmissions  float64 `json:"totalEmissions"`
}

// RouteComparisonDTO is one route's deviation from the baseline.
type RouteComparisonDTO struct {
	RouteDTO
	BaselineIntensity float64 `json:"baselineIntensity"`
	PercentDiff       float64 `json:"percentDiff"`
	Compliant         bool    `json:"compliant"`
}

// ComparisonReportDTO is the fleet-wide baseline comparison.
type ComparisonReportDTO struct {
	BaselineRouteID   string               `json:"baselineRouteId"`
	BaselineVessel    string               `json:"baselineVessel"`
	BaselineIntensity float64              `json:"baselineIntensity"`
	TargetIntensity   float64              `json:"targetIntensity"`
	Routes            []RouteComparisonDTO `json:"routes"`
}

// CalculateCBRequest is the body for a balance calculation.
type CalculateCBRequest struct {
	ActualIntensity float64 `json:"actualIntensity"`
	FuelConsumption float64 `json:"fuelConsumption"`
}

// ComplianceResultDTO is a persisted balance calculation.
type ComplianceResultDTO struct {
	ShipID            string  `json:"shipId"`
	Year              int     `json:"year"`
	TargetIntensity   float64 `json:"targetIntensity"`
	ActualIntensity   float64 `json:"actualIntensity"`
	EnergyInScope     float64 `json:"energyInScope"`
	ComplianceBalance float64 `json:"complianceBalance"`
	IsCompliant       bool    `json:"isCompliant"`
}

// ShipComplianceDTO is one ship's current ledger balance.
type ShipComplianceDTO struct {
	ShipID string  `json:"shipId"`
	Year   int     `json:"year"`
	CB     float64 `json:"cb"`
}

// AdjustedCBDTO is one ship's entry in the fleet adjusted-balance listing.
// The display name is derived from the ship id; the ledger carries no names.
type AdjustedCBDTO struct {
	ShipID     string  `json:"shipId"`
	Name       string  `json:"name"`
	AdjustedCB float64 `json:"adjustedCB"`
}

// CBSummaryDTO is the before/applied/after view of one ledger balance.
// Field names are snake_case; this endpoint predates the camelCase contract
// and the frontend still reads it as-is.
type CBSummaryDTO struct {
	CBBefore float64 `json:"cb_before"`
	Applied  float64 `json:"applied"`
	CBAfter  float64 `json:"cb_after"`
	Year     int     `json:"year"`
}

// BankRequest is the body for banking or applying surplus.
type BankRequest struct {
	ShipID string  `json:"shipId"`
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

// BankEntryDTO represents one banking ledger record.
type BankEntryDTO struct {
	ID        string  `json:"id"`
	ShipID    string  `json:"shipId"`
	Year      int     `json:"year"`
	Amount    float64 `json:"amountGco2eq"`
	CreatedAt string  `json:"createdAt"`
}

// TotalBankedDTO is a ship's banked surplus total.
type TotalBankedDTO struct {
	ShipID      string  `json:"shipId"`
	TotalBanked float64 `json:"totalBanked"`
}

// CreatePoolRequest is the body for pool creation.
type CreatePoolRequest struct {
	Year    int      `json:"year"`
	ShipIDs []string `json:"shipIds"`
}

// PoolDTO represents a created pool.
type PoolDTO struct {
	ID        string `json:"id"`
	Year      int    `json:"year"`
	CreatedAt string `json:"createdAt"`
}

// PoolMemberDTO is one member's allocation within a pool.
type PoolMemberDTO struct {
	PoolID   string  `json:"poolId"`
	ShipID   string  `json:"shipId"`
	CBBefore float64 `json:"cbBefore"`
	CBAfter  float64 `json:"cbAfter"`
}

// MessageResponse is a simple success acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func f(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func toRouteDTO(r fueleu.Route) RouteDTO {
	return RouteDTO{
		RouteID:         r.RouteID,
		VesselType:      r.VesselType,
		FuelType:        r.FuelType,
		Year:            r.Year,
		GHGIntensity:    f(r.GHGIntensity),
		FuelConsumption: f(r.FuelConsumption),
		Distance:        f(r.Distance),
		TotalEmissions:  f(r.TotalEmissions),
		IsBaseline:      r.IsBaseline,
	}
}

func toBankEntryDTO(e fueleu.BankEntry) BankEntryDTO {
	return BankEntryDTO{
		ID:        e.ID,
		ShipID:    string(e.ShipID),
		Year:      e.Year,
		Amount:    f(e.Amount),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func toPoolMemberDTO(m fueleu.PoolMember) PoolMemberDTO {
	return PoolMemberDTO{
		PoolID:   m.PoolID,
		ShipID:   string(m.ShipID),
		CBBefore: f(m.CBBefore),
		CBAfter:  f(m.CBAfter),
	}
}
