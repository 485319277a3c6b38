/*
routes.go - Route reference data and baseline comparison

PURPOSE:
  Routes are supporting reference records: one voyage's operating data
  plus a single baseline flag. Exactly one route (at most) is the
  baseline; percentage deviations are computed against it. The compliant
  flag is judged against the fixed regulatory target, not the baseline.
*/
package fueleu

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RouteFilter narrows ListRoutes results. Zero values match everything.
// VesselType and FuelType are case-insensitive substring matches.
type RouteFilter struct {
	VesselType string
	FuelType   string
	Year       int
}

// RouteComparison is one route's deviation from the current baseline.
type RouteComparison struct {
	Route
	BaselineIntensity decimal.Decimal
	PercentDiff       decimal.Decimal
	Compliant         bool
}

// ComparisonReport is the full fleet comparison against the baseline route.
type ComparisonReport struct {
	BaselineRouteID   string
	BaselineVessel    string
	BaselineIntensity decimal.Decimal
	TargetIntensity   decimal.Decimal
	Routes            []RouteComparison
}

// RouteService manages route records and the baseline comparison.
type RouteService struct {
	store  Store
	params Params
}

func NewRouteService(store Store, params Params) *RouteService {
	return &RouteService{store: store, params: params}
}

// ListRoutes returns routes matching the filter.
func (s *RouteService) ListRoutes(ctx context.Context, filter RouteFilter) ([]Route, error) {
	routes, err := s.store.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	out := routes[:0:0]
	for _, r := range routes {
		if filter.VesselType != "" && !containsFold(r.VesselType, filter.VesselType) {
			continue
		}
		if filter.FuelType != "" && !containsFold(r.FuelType, filter.FuelType) {
			continue
		}
		if filter.Year != 0 && r.Year != filter.Year {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRoute returns one route or ErrRouteNotFound.
func (s *RouteService) GetRoute(ctx context.Context, id string) (*Route, error) {
	route, err := s.store.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, ErrRouteNotFound
	}
	return route, nil
}

// CreateRoute validates and stores a new route record. The baseline flag is
// never taken from the input: only SetBaseline moves it, so the store can
// keep the single-baseline guarantee.
func (s *RouteService) CreateRoute(ctx context.Context, route Route) error {
	if route.RouteID == "" {
		return &ValidationError{Field: "routeId", Message: "must not be empty"}
	}
	if route.Year <= 0 {
		return &ValidationError{Field: "year", Message: "must be a positive year"}
	}
	if !route.GHGIntensity.IsPositive() {
		return &ValidationError{Field: "ghgIntensity", Message: "must be > 0"}
	}
	if route.FuelConsumption.IsNegative() {
		return &ValidationError{Field: "fuelConsumption", Message: "must be >= 0"}
	}
	route.IsBaseline = false
	return s.store.CreateRoute(ctx, route)
}

// SetBaseline marks the route as the single baseline. The store clears the
// previous flag and sets the new one in one atomic step.
func (s *RouteService) SetBaseline(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "routeId", Message: "must not be empty"}
	}
	return s.store.SetBaseline(ctx, id)
}

// Compare computes every route's percentage deviation from the baseline
// route's intensity (or the default baseline intensity when none is set)
// and its compliance against the fixed target.
func (s *RouteService) Compare(ctx context.Context) (*ComparisonReport, error) {
	routes, err := s.store.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	report := &ComparisonReport{
		BaselineRouteID:   "DEFAULT",
		BaselineVessel:    "N/A",
		BaselineIntensity: s.params.DefaultBaselineIntensity,
		TargetIntensity:   s.params.TargetIntensity,
	}
	for _, r := range routes {
		if r.IsBaseline {
			report.BaselineRouteID = r.RouteID
			report.BaselineVessel = r.VesselType
			report.BaselineIntensity = r.GHGIntensity
			break
		}
	}

	hundred := decimal.NewFromInt(100)
	one := decimal.NewFromInt(1)
	for _, r := range routes {
		if !report.BaselineIntensity.IsPositive() {
			return nil, fmt.Errorf("baseline intensity is not positive: %s", report.BaselineIntensity)
		}
		pct := r.GHGIntensity.Div(report.BaselineIntensity).Sub(one).Mul(hundred)
		report.Routes = append(report.Routes, RouteComparison{
			Route:             r,
			BaselineIntensity: report.BaselineIntensity,
			PercentDiff:       pct,
			Compliant:         r.GHGIntensity.LessThanOrEqual(report.TargetIntensity),
		})
	}
	return report, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
