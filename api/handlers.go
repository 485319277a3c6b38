/*
handlers.go - HTTP API handlers for the compliance engine

PURPOSE:
  Exposes the compliance balance engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Routes:
    GET    /api/routes                       List routes (filterable)
    POST   /api/routes                       Register route
    GET    /api/routes/comparison            Fleet vs baseline comparison
    GET    /api/routes/{id}                  Get route
    POST   /api/routes/{id}/baseline         Set baseline route

  Compliance:
    GET    /api/compliance/cb                Before/applied/after summary
    GET    /api/compliance/adjusted-cb       Fleet balances for a year
    GET    /api/compliance/cb/{shipId}/{year}  Current balance
    POST   /api/compliance/cb/{shipId}/{year}  Calculate and persist balance

  Banking:
    POST   /api/banking/bank                 Bank surplus
    POST   /api/banking/apply                Apply banked surplus
    GET    /api/banking/total/{shipId}       Banked total
    GET    /api/banking/records              Banking history

  Pooling:
    POST   /api/pools                        Create pool
    GET    /api/pools/{poolId}/members       Pool allocations

  Admin:
    POST   /api/admin/seed                   Load demo fleet

ERROR HANDLING:
  Domain errors map to HTTP status via errors.Is:
  - 400: validation, invalid operation, insufficient banked surplus
  - 404: route / pool not found
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/tidewater/fueleu-engine/fueleu"
	"github.com/tidewater/fueleu-engine/obs"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Compliance *fueleu.ComplianceService
	Banking    *fueleu.BankingService
	Pooling    *fueleu.PoolingService
	Routes     *fueleu.RouteService

	Logger  *zap.Logger
	Metrics *obs.Metrics
}

// NewHandler creates a handler over one shared store.
func NewHandler(store fueleu.Store, params fueleu.Params, logger *zap.Logger, metrics *obs.Metrics) *Handler {
	locks := fueleu.NewKeyLocks()
	calc := fueleu.NewCalculator(params)

	return &Handler{
		Compliance: fueleu.NewComplianceService(store, calc, locks),
		Banking:    fueleu.NewBankingService(store, locks),
		Pooling:    fueleu.NewPoolingService(store, locks),
		Routes:     fueleu.NewRouteService(store, params),
		Logger:     logger,
		Metrics:    metrics,
	}
}

// =============================================================================
// ROUTE HANDLERS
// =============================================================================

// ListRoutes returns routes, optionally filtered by vesselType, fuelType, year.
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	filter := fueleu.RouteFilter{
		VesselType: r.URL.Query().Get("vesselType"),
		FuelType:   r.URL.Query().Get("fuelType"),
	}
	if y := r.URL.Query().Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year filter", err)
			return
		}
		filter.Year = year
	}

	routes, err := h.Routes.ListRoutes(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list routes", err)
		return
	}

	dtos := make([]RouteDTO, len(routes))
	for i, rt := range routes {
		dtos[i] = toRouteDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRoute returns a single route.
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	route, err := h.Routes.GetRoute(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get route", err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteDTO(*route))
}

// CreateRoute registers a new route.
func (h *Handler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req CreateRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	route := fueleu.Route{
		RouteID:         req.RouteID,
		VesselType:      req.VesselType,
		FuelType:        req.FuelType,
		Year:            req.Year,
		GHGIntensity:    decimal.NewFromFloat(req.GHGIntensity),
		FuelConsumption: decimal.NewFromFloat(req.FuelConsumption),
		Distance:        decimal.NewFromFloat(req.Distance),
		TotalEmissions:  decimal.NewFromFloat(req.TotalEmissions),
	}

	if err := h.Routes.CreateRoute(r.Context(), route); err != nil {
		h.writeDomainError(w, "Failed to create route", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteDTO(route))
}

// SetBaseline marks a route as the fleet baseline.
func (h *Handler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Routes.SetBaseline(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to set baseline", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Baseline set successfully"})
}

// CompareRoutes returns every route's deviation from the baseline.
func (h *Handler) CompareRoutes(w http.ResponseWriter, r *http.Request) {
	report, err := h.Routes.Compare(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to compare routes", err)
		return
	}

	dto := ComparisonReportDTO{
		BaselineRouteID:   report.BaselineRouteID,
		BaselineVessel:    report.BaselineVessel,
		BaselineIntensity: f(report.BaselineIntensity),
		TargetIntensity:   f(report.TargetIntensity),
		Routes:            make([]RouteComparisonDTO, len(report.Routes)),
	}
	for i, rc := range report.Routes {
		dto.Routes[i] = RouteComparisonDTO{
			RouteDTO:          toRouteDTO(rc.Route),
			BaselineIntensity: f(rc.BaselineIntensity),
			PercentDiff:       f(rc.PercentDiff),
			Compliant:         rc.Compliant,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// COMPLIANCE HANDLERS
// =============================================================================

// CalculateCB computes and persists the balance for a ship-year.
func (h *Handler) CalculateCB(w http.ResponseWriter, r *http.Request) {
	shipID := fueleu.ShipID(chi.URLParam(r, "shipId"))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	var req CalculateCBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Compliance.CalculateCB(r.Context(), shipID, year,
		decimal.NewFromFloat(req.ActualIntensity),
		decimal.NewFromFloat(req.FuelConsumption))
	if err != nil {
		h.writeDomainError(w, "Failed to calculate CB", err)
		return
	}
	h.Metrics.IncrCalculation()

	writeJSON(w, http.StatusOK, ComplianceResultDTO{
		ShipID:            string(result.ShipID),
		Year:              result.Year,
		TargetIntensity:   f(result.TargetIntensity),
		ActualIntensity:   f(result.ActualIntensity),
		EnergyInScope:     f(result.EnergyInScopeMJ),
		ComplianceBalance: f(result.CB),
		IsCompliant:       result.IsCompliant,
	})
}

// GetCB returns the current ledger balance for a ship-year.
// Ships with no record report zero.
func (h *Handler) GetCB(w http.ResponseWriter, r *http.Request) {
	shipID := fueleu.ShipID(chi.URLParam(r, "shipId"))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	cb, err := h.Compliance.CurrentCB(r.Context(), shipID, year)
	if err != nil {
		h.writeDomainError(w, "Failed to get CB", err)
		return
	}
	writeJSON(w, http.StatusOK, ShipComplianceDTO{
		ShipID: string(shipID),
		Year:   year,
		CB:     f(cb),
	})
}

// FleetCompliance returns every ship's adjusted balance for a year.
func (h *Handler) FleetCompliance(w http.ResponseWriter, r *http.Request) {
	year, ok := yearOrCurrent(w, r)
	if !ok {
		return
	}

	records, err := h.Compliance.FleetCompliance(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, "Failed to get fleet compliance", err)
		return
	}

	dtos := make([]AdjustedCBDTO, len(records))
	for i, rec := range records {
		dtos[i] = AdjustedCBDTO{
			ShipID:     string(rec.ShipID),
			Name:       "Ship " + string(rec.ShipID),
			AdjustedCB: f(rec.CB),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CBSummary returns the before/applied/after view of one balance. With no
// shipId it falls back to the first ship in the fleet listing; with no
// matching record every figure is zero.
func (h *Handler) CBSummary(w http.ResponseWriter, r *http.Request) {
	year, ok := yearOrCurrent(w, r)
	if !ok {
		return
	}

	summary := CBSummaryDTO{Year: year}

	if shipID := r.URL.Query().Get("shipId"); shipID != "" {
		cb, err := h.Compliance.CurrentCB(r.Context(), fueleu.ShipID(shipID), year)
		if err != nil {
			h.writeDomainError(w, "Failed to get CB summary", err)
			return
		}
		summary.CBBefore = f(cb)
		summary.CBAfter = f(cb)
	} else {
		records, err := h.Compliance.FleetCompliance(r.Context(), year)
		if err != nil {
			h.writeDomainError(w, "Failed to get CB summary", err)
			return
		}
		if len(records) > 0 {
			summary.CBBefore = f(records[0].CB)
			summary.CBAfter = f(records[0].CB)
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// yearOrCurrent parses the optional year query parameter, defaulting to the
// current year. Reports false after writing a 400 on a malformed value.
func yearOrCurrent(w http.ResponseWriter, r *http.Request) (int, bool) {
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return 0, false
		}
		year = parsed
	}
	return year, true
}

// =============================================================================
// BANKING HANDLERS
// =============================================================================

// BankSurplus moves part of a positive balance into the bank.
func (h *Handler) BankSurplus(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Banking.BankSurplus(r.Context(),
		fueleu.ShipID(req.ShipID), req.Year, decimal.NewFromFloat(req.Amount))
	if err != nil {
		h.Metrics.IncrLedgerOp("bank", "rejected")
		h.writeDomainError(w, "Failed to bank surplus", err)
		return
	}
	h.Metrics.IncrLedgerOp("bank", "ok")

	writeJSON(w, http.StatusOK, toBankEntryDTO(*entry))
}

// ApplyBanked draws banked surplus against a deficit.
func (h *Handler) ApplyBanked(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Banking.ApplyBanked(r.Context(),
		fueleu.ShipID(req.ShipID), req.Year, decimal.NewFromFloat(req.Amount))
	if err != nil {
		h.Metrics.IncrLedgerOp("apply", "rejected")
		h.writeDomainError(w, "Failed to apply banked surplus", err)
		return
	}
	h.Metrics.IncrLedgerOp("apply", "ok")

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Banked surplus applied successfully"})
}

// TotalBanked returns the sum of a ship's banking ledger.
func (h *Handler) TotalBanked(w http.ResponseWriter, r *http.Request) {
	shipID := fueleu.ShipID(chi.URLParam(r, "shipId"))

	total, err := h.Banking.TotalBanked(r.Context(), shipID)
	if err != nil {
		h.writeDomainError(w, "Failed to get banked total", err)
		return
	}
	writeJSON(w, http.StatusOK, TotalBankedDTO{
		ShipID:      string(shipID),
		TotalBanked: f(total),
	})
}

// BankingRecords returns a ship's banking history, newest first.
func (h *Handler) BankingRecords(w http.ResponseWriter, r *http.Request) {
	shipID := r.URL.Query().Get("shipId")
	if shipID == "" {
		writeError(w, http.StatusBadRequest, "shipId query parameter is required", nil)
		return
	}

	var year *int
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = &parsed
	}

	entries, err := h.Banking.Records(r.Context(), fueleu.ShipID(shipID), year)
	if err != nil {
		h.writeDomainError(w, "Failed to get banking records", err)
		return
	}

	dtos := make([]BankEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toBankEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POOLING HANDLERS
// =============================================================================

// CreatePool verifies and creates a compliance pool.
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	shipIDs := make([]fueleu.ShipID, len(req.ShipIDs))
	for i, id := range req.ShipIDs {
		shipIDs[i] = fueleu.ShipID(id)
	}

	pool, err := h.Pooling.CreatePool(r.Context(), req.Year, shipIDs)
	if err != nil {
		h.Metrics.IncrPoolRejected(rejectionReason(err))
		h.writeDomainError(w, "Failed to create pool", err)
		return
	}
	h.Metrics.IncrPoolCreated()

	writeJSON(w, http.StatusOK, PoolDTO{
		ID:        pool.ID,
		Year:      pool.Year,
		CreatedAt: pool.CreatedAt.Format(time.RFC3339),
	})
}

// PoolMembers returns the recorded allocations of a pool.
func (h *Handler) PoolMembers(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolId")

	members, err := h.Pooling.Members(r.Context(), poolID)
	if err != nil {
		h.writeDomainError(w, "Failed to get pool members", err)
		return
	}

	dtos := make([]PoolMemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toPoolMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case fueleu.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case fueleu.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		// Infrastructure failures are logged in full but reported generically.
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

// rejectionReason labels a pool rejection for metrics.
func rejectionReason(err error) string {
	switch {
	case fueleu.IsNotFound(err):
		return "not_found"
	case fueleu.IsClientError(err):
		return "rejected"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
