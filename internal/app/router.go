package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/invoicing"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/ledger"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/observability"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/payments"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	ProductHandler   *catalog.Handler
	CustomerHandler  *customers.Handler
	InvoiceHandler   *invoicing.Handler
	PaymentHandler   *payments.Handler
	LedgerHandler    *ledger.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with billing defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/products", params.ProductHandler.Routes())
		r.Mount("/customers", params.CustomerHandler.Routes())
		r.Mount("/invoices", params.InvoiceHandler.Routes())
		r.Mount("/payments", params.PaymentHandler.Routes())
		r.Mount("/entries", params.LedgerHandler.Routes())
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
