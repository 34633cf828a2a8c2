package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/subhankar-das-phantom/Billing-Software-sub001/internal/jobs"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/money"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BalanceReconcileJob recomputes each customer's purchase and outstanding
// totals from the invoice, payment and manual-entry ledgers and compares them
// with the incrementally maintained columns on the customers table. The job is
// strictly read-only: drift is reported, never corrected.
//
// Outstanding drift is expected in two legitimate cases: balances floored at
// zero during a decrement, and invoice edits, which by design move
// total_purchases without moving outstanding_amount. The report exists so an
// operator can tell those apart from genuine corruption.
type BalanceReconcileJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	// Drift receives the summed absolute drift of the run, in rupees.
	// Satisfied by a prometheus.Gauge.
	Drift interface{ Set(float64) }
	clock func() time.Time
}

// NewBalanceReconcileJob initialises the reconciliation handler.
func NewBalanceReconcileJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics, drift interface{ Set(float64) }) *BalanceReconcileJob {
	return &BalanceReconcileJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		Drift:   drift,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one reconciliation run.
func (j *BalanceReconcileJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("balance reconcile: handler not configured")
	}
	var payload BalanceReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ToleranceRupees < 0 {
		payload.ToleranceRupees = 0
	}

	start := j.now()
	tracker := j.metrics().Track(TaskBalanceReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Float64("tolerance_rupees", payload.ToleranceRupees))
	logger.Info("starting balance reconciliation")

	stored, ledgers, err := j.load(ctx)
	if err != nil {
		resultErr = err
		logger.Error("reconciliation load failed", slog.Any("error", err))
		return resultErr
	}

	var totalDrift float64
	mismatches := 0
	for _, c := range stored {
		report := compareBalances(c, ledgers[c.ID])
		drift := report.PurchasesDrift + report.OutstandingDrift
		totalDrift += drift
		if drift <= payload.ToleranceRupees {
			continue
		}
		mismatches++
		logger.Warn("customer balance drift",
			slog.Int64("customer_id", c.ID),
			slog.String("customer", c.Name),
			slog.Float64("stored_purchases", c.Purchases),
			slog.Float64("expected_purchases", report.ExpectedPurchases),
			slog.Float64("stored_outstanding", c.Outstanding),
			slog.Float64("expected_outstanding", report.ExpectedOutstanding),
		)
	}
	if j.Drift != nil {
		j.Drift.Set(money.Round(totalDrift))
	}

	logger.Info("completed balance reconciliation",
		slog.Int("customers", len(stored)),
		slog.Int("mismatches", mismatches),
		slog.Float64("total_drift_rupees", money.Round(totalDrift)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// storedBalance is a customer row as the incremental ledger left it.
type storedBalance struct {
	ID          int64
	Name        string
	Purchases   float64
	Outstanding float64
}

// ledgerTotals aggregates a customer's rows across the three ledgers.
type ledgerTotals struct {
	// InvoiceNet is the sum of net_total across all invoices, cancelled
	// included since cancellation does not reverse financials.
	InvoiceNet float64
	// InvoiceCreditOpen is net_total minus paid_amount summed over credit
	// invoices only.
	InvoiceCreditOpen float64
	// EntryBearing is the amount summed over balance-bearing manual entries.
	EntryBearing float64
	// EntryCreditOpen is amount minus paid_amount over credit balance-bearing
	// entries.
	EntryCreditOpen float64
	// EntryAdjustments is the amount summed over adjustment entries, which
	// only ever reduce outstanding.
	EntryAdjustments float64
}

type driftReport struct {
	ExpectedPurchases   float64
	ExpectedOutstanding float64
	PurchasesDrift      float64
	OutstandingDrift    float64
}

func compareBalances(c storedBalance, lt ledgerTotals) driftReport {
	expectedPurchases := money.Round(lt.InvoiceNet + lt.EntryBearing)
	expectedOutstanding := money.Round(lt.InvoiceCreditOpen + lt.EntryCreditOpen - lt.EntryAdjustments)
	if expectedOutstanding < 0 {
		expectedOutstanding = 0
	}
	return driftReport{
		ExpectedPurchases:   expectedPurchases,
		ExpectedOutstanding: expectedOutstanding,
		PurchasesDrift:      money.Round(math.Abs(c.Purchases - expectedPurchases)),
		OutstandingDrift:    money.Round(math.Abs(c.Outstanding - expectedOutstanding)),
	}
}

func (j *BalanceReconcileJob) load(ctx context.Context) ([]storedBalance, map[int64]ledgerTotals, error) {
	if j.Pool == nil {
		return nil, nil, errors.New("balance reconcile: pool not configured")
	}

	var stored []storedBalance
	ledgers := make(map[int64]ledgerTotals)
	var invoiceAgg, entryAgg map[int64]ledgerTotals

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := j.Pool.Query(ctx, `SELECT id, name, total_purchases::double precision, outstanding_balance::double precision FROM customers ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c storedBalance
			if err := rows.Scan(&c.ID, &c.Name, &c.Purchases, &c.Outstanding); err != nil {
				return err
			}
			stored = append(stored, c)
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := j.Pool.Query(ctx, `
			SELECT customer_id,
			       COALESCE(SUM(net_total), 0)::double precision,
			       COALESCE(SUM(CASE WHEN payment_type = 'Credit' THEN net_total - paid_amount ELSE 0 END), 0)::double precision
			FROM invoices
			GROUP BY customer_id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		invoiceAgg = make(map[int64]ledgerTotals)
		for rows.Next() {
			var id int64
			var lt ledgerTotals
			if err := rows.Scan(&id, &lt.InvoiceNet, &lt.InvoiceCreditOpen); err != nil {
				return err
			}
			invoiceAgg[id] = lt
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := j.Pool.Query(ctx, `
			SELECT customer_id,
			       COALESCE(SUM(CASE WHEN entry_type IN ('opening_balance', 'manual_bill') THEN amount ELSE 0 END), 0)::double precision,
			       COALESCE(SUM(CASE WHEN entry_type IN ('opening_balance', 'manual_bill') AND payment_type = 'Credit' THEN amount - paid_amount ELSE 0 END), 0)::double precision,
			       COALESCE(SUM(CASE WHEN entry_type NOT IN ('opening_balance', 'manual_bill') THEN amount ELSE 0 END), 0)::double precision
			FROM manual_entries
			GROUP BY customer_id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		entryAgg = make(map[int64]ledgerTotals)
		for rows.Next() {
			var id int64
			var lt ledgerTotals
			if err := rows.Scan(&id, &lt.EntryBearing, &lt.EntryCreditOpen, &lt.EntryAdjustments); err != nil {
				return err
			}
			entryAgg[id] = lt
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for id, inv := range invoiceAgg {
		lt := ledgers[id]
		lt.InvoiceNet = inv.InvoiceNet
		lt.InvoiceCreditOpen = inv.InvoiceCreditOpen
		ledgers[id] = lt
	}
	for id, ent := range entryAgg {
		lt := ledgers[id]
		lt.EntryBearing = ent.EntryBearing
		lt.EntryCreditOpen = ent.EntryCreditOpen
		lt.EntryAdjustments = ent.EntryAdjustments
		ledgers[id] = lt
	}
	return stored, ledgers, nil
}

func (j *BalanceReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBalanceReconcile))
	}
	return slog.Default().With(slog.String("job", TaskBalanceReconcile))
}

func (j *BalanceReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *BalanceReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
