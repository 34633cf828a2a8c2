package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/httpx"
)

// Handler exposes the invoice API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	created  prometheus.Counter
}

// NewHandler builds Handler. created counts issued invoices and may be nil.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, created prometheus.Counter) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, created: created}
}

// Routes returns the invoice router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/status", h.SetStatus)
	return r
}

type itemRequest struct {
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	QuantitySold    int     `json:"quantity_sold" validate:"required,gt=0"`
	FreeQuantity    int     `json:"free_quantity" validate:"gte=0"`
	RatePerUnit     float64 `json:"rate_per_unit" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
}

type createRequest struct {
	CustomerID  int64         `json:"customer_id" validate:"required,gt=0"`
	InvoiceDate string        `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentType string        `json:"payment_type" validate:"required,oneof=Cash Credit"`
	Notes       string        `json:"notes"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := CreateInput{
		CustomerID:  req.CustomerID,
		Items:       toItemInputs(req.Items),
		PaymentType: customers.PaymentType(req.PaymentType),
		Notes:       req.Notes,
	}
	if req.InvoiceDate != "" {
		t, _ := time.Parse("2006-01-02", req.InvoiceDate)
		input.InvoiceDate = t
	}

	inv, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create invoice failed", "error", err, "customer_id", req.CustomerID)
		httpx.RespondError(w, err)
		return
	}
	if h.created != nil {
		h.created.Inc()
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

type updateRequest struct {
	CustomerID  int64         `json:"customer_id" validate:"omitempty,gt=0"`
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentType string        `json:"payment_type" validate:"omitempty,oneof=Cash Credit"`
	Notes       *string       `json:"notes"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	inv, err := h.service.Update(r.Context(), id, UpdateInput{
		CustomerID:  req.CustomerID,
		Items:       toItemInputs(req.Items),
		PaymentType: customers.PaymentType(req.PaymentType),
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.Error("update invoice failed", "error", err, "invoice_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=Printed Cancelled"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	inv, err := h.service.SetStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		h.logger.Error("invoice status change failed", "error", err, "invoice_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	f.CustomerID, _ = strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	f.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	f.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	invoices, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list invoices failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func toItemInputs(reqs []itemRequest) []ItemInput {
	items := make([]ItemInput, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, ItemInput{
			ProductID:       it.ProductID,
			QuantitySold:    it.QuantitySold,
			FreeQuantity:    it.FreeQuantity,
			RatePerUnit:     it.RatePerUnit,
			DiscountPercent: it.DiscountPercent,
		})
	}
	return items
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
