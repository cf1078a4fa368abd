package tables

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	MaxBodyBytes = 1 << 20
	// CustomerHeader identifies the customer on self service routes.
	CustomerHeader = "X-Customer-Email"
	internalError  = "Internal error"
)

type HandlerDeps struct {
	Repos     Repos
	Guard     SlotGuard
	Publisher events.Publisher
}

type Handler struct {
	branches     *BranchService
	reservations *ReservationService
	logger       aqm.Logger
	config       *aqm.Config
	tlm          *telemetry.HTTP
	redact       bool
}

func NewHandler(deps HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	cfg := ReservationServiceConfig{
		Scope:        ParseConflictScope(pkg.ConfigString(config, "reservations.conflict.scope", string(ScopeTable))),
		CodeAttempts: pkg.ConfigInt(config, "reservations.code.max_attempts", DefaultCodeAttempt),
	}

	return &Handler{
		branches:     NewBranchService(deps.Repos.BranchRepo, logger),
		reservations: NewReservationService(deps.Repos, deps.Guard, deps.Publisher, cfg, logger),
		logger:       logger,
		config:       config,
		tlm:          telemetry.NewHTTP(),
		redact:       pkg.ConfigString(config, "app.env", "development") == "production",
	}
}

// Reservations exposes the reservation service to the seeding hooks.
func (h *Handler) Reservations() *ReservationService {
	return h.reservations
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/branches", func(r chi.Router) {
		r.Get("/", h.ListBranches)
		r.Post("/", h.CreateBranch)
		r.Get("/city/{city}", h.ListBranchesByCity)
		r.Get("/{id}", h.GetBranch)
		r.Put("/{id}", h.UpdateBranch)
		r.Delete("/{id}", h.DeleteBranch)
		r.Post("/{id}/check-availability", h.CheckBranchAvailability)
		r.Patch("/{id}/tables", h.ReplaceBranchTables)
		r.Patch("/{id}/status", h.SetBranchStatus)
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", h.CreateReservation)
		r.Get("/", h.ListReservations)
		r.Post("/availability", h.CheckAvailability)
		r.Get("/verify/{code}", h.VerifyReservation)

		r.Get("/mine", h.ListMyReservations)
		r.Get("/mine/{id}", h.GetMyReservation)
		r.Put("/mine/{id}", h.UpdateMyReservation)
		r.Delete("/mine/{id}", h.CancelMyReservation)

		r.Get("/dashboard/stats", h.ReservationStats)
		r.Get("/dashboard/upcoming", h.UpcomingReservations)
		r.Get("/branch/{branchID}", h.ListBranchReservations)

		r.Get("/{id}", h.GetReservation)
		r.Put("/{id}", h.UpdateReservation)
		r.Delete("/{id}", h.DeleteReservation)
		r.Patch("/{id}/status", h.UpdateReservationStatus)
	})
}

// Branch handlers

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBranches")
	defer finish()

	log := h.log(r)
	filter := BranchFilter{
		City:       r.URL.Query().Get("city"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}

	branches, err := h.branches.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, branches, "branches")
}

func (h *Handler) ListBranchesByCity(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBranchesByCity")
	defer finish()

	log := h.log(r)
	branches, err := h.branches.ListByCity(r.Context(), chi.URLParam(r, "city"))
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, branches, "branches")
}

func (h *Handler) GetBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBranch")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	branch, err := h.branches.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, branch, aqm.RESTfulLinksFor(branch)...)
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateBranch")
	defer finish()

	log := h.log(r)
	var req BranchCreateRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	branch, err := h.branches.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	log.Info("branch created", "branch_id", branch.ID.String())
	aqm.Respond(w, http.StatusCreated, branch, nil)
}

func (h *Handler) UpdateBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateBranch")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req BranchUpdateRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	branch, err := h.branches.Update(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, branch, aqm.RESTfulLinksFor(branch)...)
}

func (h *Handler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteBranch")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	if err := h.branches.Delete(r.Context(), id); err != nil {
		h.respondErr(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReplaceBranchTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReplaceBranchTables")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req BranchTablesRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	branch, err := h.branches.ReplaceTables(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, branch, aqm.RESTfulLinksFor(branch)...)
}

func (h *Handler) SetBranchStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetBranchStatus")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req BranchStatusRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if req.IsActive == nil {
		aqm.RespondError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	branch, err := h.branches.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, branch, aqm.RESTfulLinksFor(branch)...)
}

func (h *Handler) CheckBranchAvailability(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CheckBranchAvailability")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req AvailabilityRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	req.BranchID = id

	availability, ok := h.checkAvailability(w, r, log, req)
	if !ok {
		return
	}

	aqm.Respond(w, http.StatusOK, availability, nil)
}

// Reservation handlers

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CheckAvailability")
	defer finish()

	log := h.log(r)
	var req AvailabilityRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	availability, ok := h.checkAvailability(w, r, log, req)
	if !ok {
		return
	}

	aqm.Respond(w, http.StatusOK, availability.Summaries(), nil)
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request, log aqm.Logger, req AvailabilityRequest) (*Availability, bool) {
	if errs := ValidateAvailability(r.Context(), req); len(errs) > 0 {
		log.Debug("validation failed", "errors", errs)
		aqm.RespondError(w, http.StatusBadRequest, strings.Join(errs, "; "))
		return nil, false
	}

	availability, err := h.reservations.Checker().Check(r.Context(), req.Query())
	if err != nil {
		h.respondErr(w, log, err)
		return nil, false
	}

	return availability, true
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateReservation")
	defer finish()

	log := h.log(r)
	var req ReservationCreateRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	reservation, err := h.reservations.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	log.Info("reservation created", "reservation_id", reservation.ID.String(), "code", reservation.ReservationCode)
	aqm.Respond(w, http.StatusCreated, reservation, nil)
}

func (h *Handler) VerifyReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.VerifyReservation")
	defer finish()

	log := h.log(r)
	reservation, err := h.reservations.Verify(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMyReservations")
	defer finish()

	log := h.log(r)
	email, ok := h.customerEmail(w, r)
	if !ok {
		return
	}

	list, err := h.reservations.ListMine(r.Context(), email)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, list, "reservations")
}

func (h *Handler) GetMyReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetMyReservation")
	defer finish()

	log := h.log(r)
	email, ok := h.customerEmail(w, r)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	reservation, err := h.reservations.GetMine(r.Context(), id, email)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) UpdateMyReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateMyReservation")
	defer finish()

	log := h.log(r)
	email, ok := h.customerEmail(w, r)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req ReservationSelfUpdateRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	reservation, err := h.reservations.UpdateMine(r.Context(), id, email, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) CancelMyReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelMyReservation")
	defer finish()

	log := h.log(r)
	email, ok := h.customerEmail(w, r)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	reservation, err := h.reservations.CancelMine(r.Context(), id, email)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListReservations")
	defer finish()

	log := h.log(r)
	q := r.URL.Query()

	filter := ReservationFilter{Status: q.Get("status")}
	if v := q.Get("branch"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			aqm.RespondError(w, http.StatusBadRequest, "Invalid branch parameter")
			return
		}
		filter.BranchID = id
	}
	date, ok := h.parseDateQuery(w, r)
	if !ok {
		return
	}
	filter.Date = date

	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	result, err := h.reservations.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, result, nil)
}

func (h *Handler) ListBranchReservations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBranchReservations")
	defer finish()

	log := h.log(r)
	branchID, ok := h.parseIDParam(w, r, log, "branchID")
	if !ok {
		return
	}
	date, ok := h.parseDateQuery(w, r)
	if !ok {
		return
	}

	list, err := h.reservations.ListByBranch(r.Context(), branchID, date, r.URL.Query().Get("status"))
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, list, "reservations")
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetReservation")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	reservation, err := h.reservations.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateReservation")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req ReservationUpdateRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	reservation, err := h.reservations.Update(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateReservationStatus")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	var req ReservationStatusRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	reservation, err := h.reservations.TransitionStatus(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, reservation, aqm.RESTfulLinksFor(reservation)...)
}

func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteReservation")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log, "id")
	if !ok {
		return
	}

	if err := h.reservations.Delete(r.Context(), id); err != nil {
		h.respondErr(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReservationStats(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReservationStats")
	defer finish()

	log := h.log(r)
	stats, err := h.reservations.Stats(r.Context())
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, stats, nil)
}

func (h *Handler) UpcomingReservations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpcomingReservations")
	defer finish()

	log := h.log(r)
	list, err := h.reservations.Upcoming(r.Context())
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, list, "reservations")
}

// Helpers

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func (h *Handler) respondErr(w http.ResponseWriter, log aqm.Logger, err error) {
	status := fault.Status(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "error", err)
	}
	aqm.RespondError(w, status, fault.Message(err, h.redact, internalError))
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log aqm.Logger, name string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, name)
	if idStr == "" {
		log.Debug("missing id parameter", "param", name)
		aqm.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr, "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) parseDateQuery(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return nil, true
	}
	date, err := ParseDate(v)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "date must use YYYY-MM-DD format")
		return nil, false
	}
	return &date, true
}

func (h *Handler) customerEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := normalizeEmail(r.Header.Get(CustomerHeader))
	if email == "" {
		aqm.RespondError(w, http.StatusUnauthorized, "Missing customer identity")
		return "", false
	}
	return email, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log aqm.Logger, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("error reading request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		aqm.RespondError(w, http.StatusBadRequest, "Request body is empty")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		log.Debug("error decoding JSON", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}

	return true
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
