package order

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	MaxBodyBytes  = 1 << 20
	internalError = "Internal server error."
)

type HandlerDeps struct {
	Repos     Repos
	Publisher events.Publisher
}

type Handler struct {
	dispatcher *Dispatcher
	agents     *AgentService
	logger     aqm.Logger
	config     *aqm.Config
	tlm        *telemetry.HTTP
	redact     bool
}

// StatusChangeResult reports a settled order with its agent.
type StatusChangeResult struct {
	Message     string `json:"message"`
	Order       *Order `json:"order"`
	DeliveryBoy *Agent `json:"deliveryBoy"`
}

func NewHandler(deps HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	cfg := DispatcherConfig{
		AgentCapacity: pkg.ConfigInt(config, "dispatch.agent.capacity", DefaultAgentCapacity),
		MenuTTL:       pkg.ConfigDuration(config, "dispatch.menu.ttl", DefaultMenuTTL),
	}

	return &Handler{
		dispatcher: NewDispatcher(deps.Repos, deps.Publisher, cfg, logger),
		agents:     NewAgentService(deps.Repos.AgentRepo, logger),
		logger:     logger,
		config:     config,
		tlm:        telemetry.NewHTTP(),
		redact:     pkg.ConfigString(config, "app.env", "development") == "production",
	}
}

// Dispatcher exposes the dispatcher to the startup hooks.
func (h *Handler) Dispatcher() *Dispatcher {
	return h.dispatcher
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Get("/", h.ListOrders)
		r.Get("/pending", h.ListPendingOrders)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/status", h.ChangeOrderStatus)
	})

	r.Get("/customers/{customerID}/orders", h.ListCustomerOrders)

	r.Route("/agents", func(r chi.Router) {
		r.Post("/", h.CreateAgent)
		r.Get("/", h.ListAgents)
		r.Get("/{id}", h.GetAgent)
		r.Patch("/{id}/status", h.UpdateAgentStatus)
	})

	r.Get("/menu-items", h.ListMenuItems)
}

// Order handlers

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PlaceOrder")
	defer finish()

	log := h.log(r)
	var req PlaceOrderRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	result, err := h.dispatcher.PlaceOrder(r.Context(), req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	log.Info("order placed", "order_id", result.OrderID.String(), "agent_id", result.DeliveryBoy.String(), "total", result.TotalAmount)
	aqm.Respond(w, http.StatusCreated, result, nil)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.dispatcher.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, order, aqm.RESTfulLinksFor(order)...)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)
	orders, err := h.dispatcher.List(r.Context())
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, orders, "orders")
}

func (h *Handler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListPendingOrders")
	defer finish()

	log := h.log(r)
	orders, err := h.dispatcher.ListPending(r.Context())
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, orders, "orders")
}

func (h *Handler) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListCustomerOrders")
	defer finish()

	log := h.log(r)
	customerID := chi.URLParam(r, "customerID")
	if strings.TrimSpace(customerID) == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Missing customer identifier")
		return
	}

	orders, err := h.dispatcher.ListByCustomer(r.Context(), customerID)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, orders, "orders")
}

func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ChangeOrderStatus")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	order, agent, err := h.dispatcher.ChangeStatus(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	log.Info("order status changed", "order_id", order.ID.String(), "status", order.Status)
	aqm.RespondSuccess(w, StatusChangeResult{
		Message:     fmt.Sprintf("Order status updated to %s", order.Status),
		Order:       order,
		DeliveryBoy: agent,
	})
}

// Agent handlers

func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateAgent")
	defer finish()

	log := h.log(r)
	var req AgentCreateRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	agent, err := h.agents.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	log.Info("delivery agent created", "agent_id", agent.ID.String())
	aqm.Respond(w, http.StatusCreated, agent, nil)
}

func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetAgent")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	agent, err := h.agents.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, agent, aqm.RESTfulLinksFor(agent)...)
}

func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListAgents")
	defer finish()

	log := h.log(r)
	agents, err := h.agents.List(r.Context())
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, agents, "agents")
}

func (h *Handler) UpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateAgentStatus")
	defer finish()

	log := h.log(r)
	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	var req AgentStatusRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	agent, err := h.agents.SetStatus(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondSuccess(w, agent, aqm.RESTfulLinksFor(agent)...)
}

func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMenuItems")
	defer finish()

	log := h.log(r)
	items, err := h.dispatcher.MenuItems(r.Context())
	if err != nil {
		h.respondErr(w, log, err)
		return
	}

	aqm.RespondCollection(w, items, "menu-items")
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log aqm.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
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

func (h *Handler) respondErr(w http.ResponseWriter, log aqm.Logger, err error) {
	status := fault.Status(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "error", err)
	}
	aqm.RespondError(w, status, fault.Message(err, h.redact, internalError))
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}
