package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/httpx"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Handler exposes the payment API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
	recorded    prometheus.Counter
}

// NewHandler builds Handler. idempotency and recorded may be nil.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, idempotency *shared.IdempotencyStore, recorded prometheus.Counter) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, idempotency: idempotency, recorded: recorded}
}

// Routes returns the payment router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	return r
}

type createRequest struct {
	InvoiceID       int64   `json:"invoice_id" validate:"required,gt=0"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate     string  `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	Method          string  `json:"method" validate:"required,oneof=Cash UPI Cheque BankTransfer"`
	ReferenceNumber string  `json:"reference_number"`
	Notes           string  `json:"notes"`
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

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "payments"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	input := CreateInput{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Method:    Method(req.Method),
		Reference: req.ReferenceNumber,
		Notes:     req.Notes,
	}
	if req.PaymentDate != "" {
		t, _ := time.Parse("2006-01-02", req.PaymentDate)
		input.PaymentDate = t
	}

	payment, err := h.service.Create(r.Context(), input)
	if err != nil {
		if key != "" && h.idempotency != nil {
			// the request did not apply, so a retry with the same key must
			// be allowed through
			if derr := h.idempotency.Delete(r.Context(), key); derr != nil {
				h.logger.Warn("idempotency key rollback failed", "key", key, "error", derr)
			}
		}
		h.logger.Error("create payment failed", "error", err, "invoice_id", req.InvoiceID)
		httpx.RespondError(w, err)
		return
	}
	if h.recorded != nil {
		h.recorded.Inc()
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payment id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete payment failed", "error", err, "payment_id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payment id")
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	invoiceID, _ := strconv.ParseInt(r.URL.Query().Get("invoice_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	out, err := h.service.List(r.Context(), invoiceID, limit, offset)
	if err != nil {
		h.logger.Error("list payments failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": out})
}
