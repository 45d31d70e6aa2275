/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes pricing, surge scheduling, the task catalog and geo verification
  via REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the domain packages.

ENDPOINTS:
  Pricing:
    POST   /api/quotes                 Price estimate for a prospective booking
    POST   /api/overtime               Overtime for a scheduled end / sign-out pair
    POST   /api/final-charge           Base + overtime + HST for a completed shift

  Tasks:
    GET    /api/tasks                  Active catalog (defaults if the store is empty)
    POST   /api/tasks                  Create task
    GET    /api/tasks/category?ids=    Service category for a selection
    GET    /api/tasks/{id}             Get task
    PUT    /api/tasks/{id}             Update task
    DELETE /api/tasks/{id}             Deactivate task

  Policy:
    GET    /api/policy                 Effective pricing policy
    PUT    /api/policy                 Merge a partial override
    DELETE /api/policy                 Drop the override

  Surge:
    GET    /api/surge/rules            List rules
    PUT    /api/surge/rules            Replace rule list
    POST   /api/surge/rules            Create or update one rule
    DELETE /api/surge/rules/{id}       Delete rule
    GET    /api/surge/active?date=&time=  Active multiplier (now, or for a slot)

  Geo:
    GET    /api/geo/postal/{code}      Approximate coordinates
    POST   /api/geo/service-area       Service radius check
    POST   /api/geo/check-in           Check-in proximity check

ARCHITECTURE:
  Handler holds the long-lived domain services, built once from a Store:
  - Catalog: task repository with its own TTL cache
  - Surge: schedule engine over the stored rule list
  - Calculator: price engine reading catalog, policy override and surge
  - Verifier: postal-code approximation and proximity checks

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Task, rule or postal code not found
  - 409: Store does not accept writes
  - 422: No location reading, check-in blocked
  - 500: Internal errors
  Business outcomes (outside the service radius, too far to check in,
  minimum fee applied) are 200 responses with a message.

SECURITY NOTE:
  No authentication or authorization here. Admin routes are expected to sit
  behind the gateway's auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/factory"
	"github.com/carepoint/booking-engine/generic"
	"github.com/carepoint/booking-engine/geo"
	"github.com/carepoint/booking-engine/pricing"
	"github.com/carepoint/booking-engine/surge"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the handler is built on: the task catalog plus
// the settings blobs. Both store/sqlite and store/postgres implement it.
type Store interface {
	catalog.TaskSource
	catalog.TaskWriter
	generic.KeyValueStore
	SeedTasks(ctx context.Context, tasks []catalog.Task) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Catalog    *catalog.Catalog
	Policies   *factory.PolicyRepository
	SurgeRules *factory.SurgeRuleRepository
	Surge      *surge.Engine
	Calculator *pricing.Calculator
	Verifier   *geo.Verifier

	logger zerolog.Logger
	now    func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

type handlerConfig struct {
	catalogTTL  time.Duration
	shared      catalog.SharedCache
	location    *time.Location
	now         func() time.Time
	radiusKm    float64
	logger      zerolog.Logger
	hasLogger   bool
	locateLimit time.Duration
}

// HandlerOption configures NewHandler.
type HandlerOption func(*handlerConfig)

func WithCatalogTTL(ttl time.Duration) HandlerOption {
	return func(c *handlerConfig) { c.catalogTTL = ttl }
}

// WithSharedCache adds a cross-process catalog cache tier.
func WithSharedCache(s catalog.SharedCache) HandlerOption {
	return func(c *handlerConfig) { c.shared = s }
}

// WithLocation sets the zone surge rules are evaluated in.
func WithLocation(loc *time.Location) HandlerOption {
	return func(c *handlerConfig) { c.location = loc }
}

func WithClock(now func() time.Time) HandlerOption {
	return func(c *handlerConfig) { c.now = now }
}

func WithServiceRadius(km float64) HandlerOption {
	return func(c *handlerConfig) { c.radiusKm = km }
}

func WithLocateTimeout(d time.Duration) HandlerOption {
	return func(c *handlerConfig) { c.locateLimit = d }
}

func WithLogger(l zerolog.Logger) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = l
		c.hasLogger = true
	}
}

// NewHandler wires the domain services over store.
func NewHandler(store Store, opts ...HandlerOption) *Handler {
	cfg := handlerConfig{
		catalogTTL: catalog.DefaultTTL,
		location:   time.Local,
		now:        time.Now,
		radiusKm:   geo.DefaultServiceRadiusKm,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.hasLogger {
		cfg.logger = log.Logger
	}

	catalogOpts := []catalog.Option{
		catalog.WithTTL(cfg.catalogTTL),
		catalog.WithClock(cfg.now),
		catalog.WithLogger(cfg.logger),
	}
	if cfg.shared != nil {
		catalogOpts = append(catalogOpts, catalog.WithSharedCache(cfg.shared))
	}
	tasks := catalog.New(store, catalogOpts...)

	policies := factory.NewPolicyRepository(store).WithLogger(cfg.logger)
	rules := factory.NewSurgeRuleRepository(store).WithLogger(cfg.logger)
	engine := surge.NewEngine(rules,
		surge.WithClock(cfg.now),
		surge.WithLocation(cfg.location),
		surge.WithLogger(cfg.logger),
	)

	verifierOpts := []geo.VerifierOption{
		geo.WithServiceRadius(cfg.radiusKm),
		geo.WithLogger(cfg.logger),
	}
	if cfg.locateLimit > 0 {
		verifierOpts = append(verifierOpts, geo.WithLocateTimeout(cfg.locateLimit))
	}

	return &Handler{
		Store:      store,
		Catalog:    tasks,
		Policies:   policies,
		SurgeRules: rules,
		Surge:      engine,
		Calculator: pricing.NewCalculator(tasks, policies, engine, pricing.WithLogger(cfg.logger)),
		Verifier:   geo.NewVerifier(verifierOpts...),
		logger:     cfg.logger,
		now:        cfg.now,
	}
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// CreateQuote prices a prospective booking.
// POST /api/quotes
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if len(req.TaskIDs) == 0 {
		writeServiceError(w, generic.NewValidationError("task_ids", "at least one task is required"))
		return
	}

	result, err := h.Calculator.CalculateMultiServicePrice(r.Context(), req.toQuote())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPriceResultDTO(result))
}

// CalculateOvertime bills a sign-out against the scheduled end.
// POST /api/overtime
func (h *Handler) CalculateOvertime(w http.ResponseWriter, r *http.Request) {
	var req OvertimeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.HourlyRate <= 0 {
		writeServiceError(w, generic.NewValidationError("hourly_rate", "must be positive"))
		return
	}

	result, err := h.Calculator.Overtime(r.Context()).
		CalculateOvertimeCharges(req.ScheduledEnd, req.ActualSignOut, generic.NewMoney(req.HourlyRate))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOvertimeDTO(result))
}

// CalculateFinalCharge bills a completed shift.
// POST /api/final-charge
func (h *Handler) CalculateFinalCharge(w http.ResponseWriter, r *http.Request) {
	var req FinalChargeRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.BaseTotal < 0 {
		writeServiceError(w, generic.NewValidationError("base_total", "must not be negative"))
		return
	}

	charge, err := h.Calculator.CalculateFinalCharge(r.Context(), req.toRequest())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinalChargeDTO(charge))
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns the active catalog.
// GET /api/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.Catalog.GetTasks(r.Context())

	dtos := make([]factory.TaskJSON, len(tasks))
	for i, t := range tasks {
		dtos[i] = factory.TaskToJSON(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTask returns one task.
// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Catalog.GetTaskByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.TaskToJSON(t))
}

// CreateTask adds a task to the catalog.
// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := factory.ParseTask(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	created, err := h.Catalog.AddTask(r.Context(), t)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Str("task_id", created.ID).Str("name", created.Name).Msg("task created")
	writeJSON(w, http.StatusCreated, factory.TaskToJSON(created))
}

// UpdateTask replaces a task definition. The path id wins over the body.
// PUT /api/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := factory.ParseTask(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	t.ID = chi.URLParam(r, "id")

	updated, err := h.Catalog.UpdateTask(r.Context(), t)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.TaskToJSON(updated))
}

// DeleteTask removes a task from the active catalog.
// DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Catalog.DeleteTask(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Str("task_id", id).Msg("task deleted")
	w.WriteHeader(http.StatusNoContent)
}

// GetTaskCategory reports the highest-priority category of a selection.
// GET /api/tasks/category?ids=a,b,c
func (h *Handler) GetTaskCategory(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	writeJSON(w, http.StatusOK, TaskCategoryDTO{
		ServiceCategory:         string(h.Catalog.GetServiceCategoryForTasks(r.Context(), ids)),
		RequiresDischargeUpload: h.Catalog.RequiresDischargeUpload(r.Context(), ids),
	})
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// GetPolicy returns the effective pricing policy.
// GET /api/policy
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.PolicyToJSON(h.Calculator.Policy(r.Context())))
}

// UpdatePolicy merges a partial override into the stored one.
// PUT /api/policy
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	override, err := factory.ParsePolicyOverride(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Policies.SavePolicy(r.Context(), override); err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Msg("pricing policy override updated")
	writeJSON(w, http.StatusOK, factory.PolicyToJSON(h.Calculator.Policy(r.Context())))
}

// ResetPolicy drops the stored override.
// DELETE /api/policy
func (h *Handler) ResetPolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.Policies.ResetPolicy(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.PolicyToJSON(h.Calculator.Policy(r.Context())))
}

// =============================================================================
// SURGE HANDLERS
// =============================================================================

// ListSurgeRules returns every configured rule, enabled or not.
// GET /api/surge/rules
func (h *Handler) ListSurgeRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Surge.Rules(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSurgeRuleJSONs(rules))
}

// ReplaceSurgeRules replaces the whole rule list.
// PUT /api/surge/rules
func (h *Handler) ReplaceSurgeRules(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rules, err := factory.ParseSurgeRules(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := h.Surge.ReplaceRules(r.Context(), rules)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Info().Int("count", len(saved)).Msg("surge rules replaced")
	writeJSON(w, http.StatusOK, toSurgeRuleJSONs(saved))
}

// SaveSurgeRule creates a rule, or updates it when the id exists.
// POST /api/surge/rules
func (h *Handler) SaveSurgeRule(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rule, err := factory.ParseSurgeRule(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := h.Surge.SaveRule(r.Context(), rule)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.SurgeRuleToJSON(saved))
}

// DeleteSurgeRule removes a rule.
// DELETE /api/surge/rules/{id}
func (h *Handler) DeleteSurgeRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Surge.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetActiveSurge reports the multiplier now, or for a booking slot when date
// or time is given.
// GET /api/surge/active?date=YYYY-MM-DD&time=HH:MM
func (h *Handler) GetActiveSurge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.Surge.CalculateActiveSurgeMultiplier(r.Context(), q.Get("date"), q.Get("time"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSurgeResultDTO(result))
}

func toSurgeRuleJSONs(rules []surge.Rule) []factory.SurgeRuleJSON {
	out := make([]factory.SurgeRuleJSON, len(rules))
	for i, rule := range rules {
		out[i] = factory.SurgeRuleToJSON(rule)
	}
	return out
}

// =============================================================================
// GEO HANDLERS
// =============================================================================

// GetPostalCode approximates a postal code's coordinates.
// GET /api/geo/postal/{code}
func (h *Handler) GetPostalCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	c, err := h.Verifier.Geocoder().CoordinatesFromPostalCode(code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PostalCodeDTO{
		PostalCode: geo.NormalizePostalCode(code),
		FSA:        geo.FSA(code),
		Lat:        c.Lat,
		Lng:        c.Lng,
	})
}

// CheckServiceArea verifies an address is within the service radius.
// POST /api/geo/service-area
func (h *Handler) CheckServiceArea(w http.ResponseWriter, r *http.Request) {
	var req ServiceAreaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.PostalCode) == "" {
		writeServiceError(w, generic.NewValidationError("postal_code", "required"))
		return
	}
	writeJSON(w, http.StatusOK, toServiceAreaDTO(h.Verifier.IsPostalCodeWithinServiceRadius(req.PostalCode, req.RadiusKm)))
}

// CheckIn verifies the worker's reading against the visit location. Without a
// reading the check-in is blocked (422), never approved.
// POST /api/geo/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	target, err := h.checkInTarget(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var reading *geo.Coordinate
	if req.PSWLocation != nil {
		c := req.PSWLocation.toCoordinate()
		reading = &c
	}
	loc := geo.StaticLocator{Reading: reading}

	var result geo.CheckInResult
	if req.ThresholdMeters > 0 {
		psw, lerr := geo.Locate(r.Context(), loc, 0)
		if lerr != nil {
			writeServiceError(w, lerr)
			return
		}
		result = h.Verifier.IsWithinCheckInProximity(psw.Lat, psw.Lng, target.Lat, target.Lng, req.ThresholdMeters)
	} else {
		result, err = h.Verifier.CheckIn(r.Context(), loc, target, req.Transport)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toCheckInDTO(result))
}

func (h *Handler) checkInTarget(req CheckInRequest) (geo.Coordinate, error) {
	switch {
	case req.Target != nil:
		return req.Target.toCoordinate(), nil
	case strings.TrimSpace(req.PostalCode) != "":
		return h.Verifier.Geocoder().CoordinatesFromPostalCode(req.PostalCode)
	default:
		return geo.Coordinate{}, generic.NewValidationError("target", "target coordinates or postal_code required")
	}
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store is reachable. Pricing keeps working on
// defaults when it isn't, so an unreachable store is "degraded", not down.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("health check: store unreachable")
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Code:    "validation_error",
			Details: map[string]string{"field": verr.Field, "reason": verr.Reason},
		})
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "Not found", err)
	case errors.Is(err, generic.ErrLocationUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "location_unavailable",
			"Unable to get your location. Please enable location services or contact the office.", err)
	case errors.Is(err, generic.ErrReadOnlySource):
		writeError(w, http.StatusConflict, "read_only", "The configured store does not accept changes", err)
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal error", err)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, generic.NewValidationError("body", fmt.Sprintf("failed to read body: %v", err))
	}
	return body, nil
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return generic.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
