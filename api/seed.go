/*
seed.go - Demo fleet loader

PURPOSE:
  Loads a small demonstration fleet so the API is explorable without any
  external data: five routes across 2024/2025 plus matching ship
  compliance balances derived with the standard calculation.

  Seeding is idempotent at the route level (upsert) and overwrites the
  compliance ledger for the demo ships. The baseline defaults to R001 on a
  fresh store and is left alone on re-seed.

USAGE:
  POST /api/admin/seed, or SEED_DEMO_DATA=true at startup.
*/
package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tidewater/fueleu-engine/fueleu"
)

// demoRoute pairs a seeded route with the ship it stands in for.
type demoRoute struct {
	shipID fueleu.ShipID
	route  fueleu.Route
}

func demoFleet() []demoRoute {
	mk := func(shipID, routeID, vessel, fuel string, year int, intensity, fuelTonnes, distance, emissions float64) demoRoute {
		return demoRoute{
			shipID: fueleu.ShipID(shipID),
			route: fueleu.Route{
				RouteID:         routeID,
				VesselType:      vessel,
				FuelType:        fuel,
				Year:            year,
				GHGIntensity:    decimal.NewFromFloat(intensity),
				FuelConsumption: decimal.NewFromFloat(fuelTonnes),
				Distance:        decimal.NewFromFloat(distance),
				TotalEmissions:  decimal.NewFromFloat(emissions),
			},
		}
	}

	return []demoRoute{
		mk("SHIP-001", "R001", "Container", "HFO", 2024, 91.0, 5000, 12000, 4500),
		mk("SHIP-002", "R002", "Bulk Carrier", "LNG", 2024, 88.0, 4800, 11500, 4200),
		mk("SHIP-003", "R003", "Tanker", "MGO", 2024, 93.5, 5100, 12500, 4700),
		mk("SHIP-004", "R004", "RoRo", "HFO", 2025, 89.2, 4900, 11800, 4300),
		mk("SHIP-005", "R005", "Container", "LNG", 2025, 90.5, 4950, 11900, 4400),
	}
}

// demoBaselineRoute is the baseline on a fresh store. Re-seeding never moves
// a baseline an operator has since chosen.
const demoBaselineRoute = "R001"

// Seed loads the demo fleet into the store.
func (h *Handler) Seed(ctx context.Context) error {
	for _, d := range demoFleet() {
		if err := h.Routes.CreateRoute(ctx, d.route); err != nil {
			return err
		}
		// Each demo route stands in for one ship's reported year.
		_, err := h.Compliance.CalculateCB(ctx, d.shipID, d.route.Year,
			d.route.GHGIntensity, d.route.FuelConsumption)
		if err != nil {
			return err
		}
	}

	routes, err := h.Routes.ListRoutes(ctx, fueleu.RouteFilter{})
	if err != nil {
		return err
	}
	for _, r := range routes {
		if r.IsBaseline {
			return nil
		}
	}
	return h.Routes.SetBaseline(ctx, demoBaselineRoute)
}

// SeedDemoData loads the demo fleet.
// POST /api/admin/seed
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	if err := h.Seed(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Demo fleet seeded successfully"})
}
