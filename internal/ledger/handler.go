package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/httpx"
)

// Handler exposes the manual entry API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// Routes returns the manual entry router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/payments", h.RecordPayment)
	r.Delete("/{id}", h.Delete)
	return r
}

type createRequest struct {
	CustomerID  int64   `json:"customer_id" validate:"required,gt=0"`
	EntryType   string  `json:"entry_type" validate:"required,oneof=opening_balance manual_bill payment_adjustment credit_adjustment"`
	PaymentType string  `json:"payment_type" validate:"omitempty,oneof=Cash Credit"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	EntryDate   string  `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Description string  `json:"description"`
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
		EntryType:   EntryType(req.EntryType),
		PaymentType: customers.PaymentType(req.PaymentType),
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.EntryDate != "" {
		t, _ := time.Parse("2006-01-02", req.EntryDate)
		input.EntryDate = t
	}

	entry, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create manual entry failed", "error", err, "customer_id", req.CustomerID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type recordPaymentRequest struct {
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate     string  `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	Method          string  `json:"method"`
	ReferenceNumber string  `json:"reference_number"`
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := RecordPaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.ReferenceNumber,
	}
	if req.PaymentDate != "" {
		t, _ := time.Parse("2006-01-02", req.PaymentDate)
		input.PaymentDate = t
	}

	parent, child, err := h.service.RecordPayment(r.Context(), id, input)
	if err != nil {
		h.logger.Error("entry payment failed", "error", err, "entry_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entry": parent, "payment_entry": child})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete manual entry failed", "error", err, "entry_id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.List(r.Context(), customerID, limit, offset)
	if err != nil {
		h.logger.Error("list manual entries failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
