package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockpulse/stockpulse/internal/event"
	"github.com/stockpulse/stockpulse/internal/platform/httpx"
)

// Handler wires the JSON API for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)

	r.Get("/products", h.handleListProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Get("/products/low-stock", h.handleLowStock)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Patch("/products/{id}", h.handleUpdateProduct)

	r.Get("/activities", h.handleListActivities)
	r.Post("/activities", h.handleCreateActivity)

	r.Get("/orders", h.handleListOrders)
	r.Post("/orders", h.handleCreateOrder)
	r.Patch("/orders/{id}/status", h.handleOrderStatus)

	r.Get("/poll", h.handlePoll)
	r.Post("/message", h.handleMessage)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("build dashboard", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.store.Products())
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	low := h.service.store.LowStockProducts()
	if low == nil {
		low = []Product{}
	}
	httpx.JSON(w, http.StatusOK, low)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.store.Product(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch ProductPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if limit == 0 {
		limit = h.service.log.Len()
	}
	acts := h.service.Activities(limit)
	if acts == nil {
		acts = []event.Event{}
	}
	httpx.JSON(w, http.StatusOK, acts)
}

func (h *Handler) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var in NoticeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	ev, err := h.service.RecordNotice(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ev)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.store.Orders())
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in OrderInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	o, err := h.service.PlaceOrder(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	o, err := h.service.UpdateOrderStatus(r.Context(), id, body.Status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

// pollResponse is the replay-channel wire shape. An empty messages array
// is a valid response.
type pollResponse struct {
	Messages []event.Event `json:"messages"`
}

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	cursor := uint64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "since must be a non-negative integer")
			return
		}
		cursor = n
	}
	msgs := h.service.EventsSince(cursor)
	if msgs == nil {
		msgs = []event.Event{}
	}
	httpx.JSON(w, http.StatusOK, pollResponse{Messages: msgs})
}

// handleMessage is the outbound command path shared by both transports.
// The server is agnostic to the payload beyond the envelope frame.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env event.Envelope
	if err := httpx.DecodeJSON(r, &env); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if env.Type == event.TypePing {
		pong, _ := event.NewEnvelope(event.TypePong, nil)
		httpx.JSON(w, http.StatusOK, pong)
		return
	}
	h.logger.Info("client message received", slog.String("type", env.Type))
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
