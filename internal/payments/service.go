package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/invoicing"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/money"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Payment, error)
	List(ctx context.Context, invoiceID int64, limit, offset int) ([]Payment, error)
}

// AuditPort records ledger events after commit.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BalanceInvalidator drops cached customer balances after a committed
// financial change.
type BalanceInvalidator interface {
	Bump(ctx context.Context) error
}

// Service reconciles payments against invoices. Creating a payment moves
// the invoice paid amount, the derived payment status and the customer's
// outstanding balance in one transaction; deleting a payment walks the
// same three back.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	balances BalanceInvalidator
	clamps   interface{ Inc() }
	now      func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, balances BalanceInvalidator, clamps interface{ Inc() }) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		audit:    audit,
		balances: balances,
		clamps:   clamps,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes a new payment. PaymentDate zero means today;
// Reference empty means a generated one.
type CreateInput struct {
	InvoiceID   int64
	Amount      float64
	PaymentDate time.Time
	Method      Method
	Reference   string
	Notes       string
}

// Create records a payment against an invoice. The amount must be positive
// and must not exceed the invoice's remaining balance; cancelled invoices
// accept no payments.
func (s *Service) Create(ctx context.Context, input CreateInput) (Payment, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return Payment{}, fmt.Errorf("payments: missing actor attribution: %w", shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return Payment{}, fmt.Errorf("payments: amount must be positive: %w", shared.ErrInvalidAmount)
	}
	if !input.Method.Valid() {
		return Payment{}, fmt.Errorf("payments: method %q: %w", input.Method, shared.ErrValidation)
	}
	amount := money.Round(input.Amount)
	date := input.PaymentDate
	if date.IsZero() {
		date = s.now()
	}
	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoicing.StatusCancelled {
			return fmt.Errorf("payments: invoice %s is cancelled: %w", inv.Number, shared.ErrInvalidState)
		}
		remaining := money.Round(inv.Remaining())
		if amount > remaining {
			return fmt.Errorf("payments: amount %.2f exceeds remaining %.2f: %w",
				amount, remaining, shared.ErrInvalidAmount)
		}

		newPaid := money.Round(inv.PaidAmount + amount)
		status := invoicing.DerivePaymentStatus(newPaid, inv.Totals.NetTotal)
		if err := tx.UpdatePaymentProgress(ctx, inv.ID, newPaid, status); err != nil {
			return err
		}

		cust, err := tx.GetCustomerForUpdate(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		s.applyChange(ctx, &cust, customers.PaymentEffect(amount, +1))
		if err := tx.UpdateCustomerFinancials(ctx, cust); err != nil {
			return err
		}

		payment = Payment{
			InvoiceID:       inv.ID,
			CustomerID:      inv.CustomerID,
			Amount:          amount,
			PaymentDate:     date,
			Method:          input.Method,
			Reference:       reference,
			Notes:           input.Notes,
			InvoiceNumber:   inv.Number,
			InvoiceNetTotal: inv.Totals.NetTotal,
			CreatedBy:       actor,
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		return Payment{}, err
	}

	s.afterCommit(ctx, actor, "payment.create", payment.ID, map[string]any{
		"invoice": payment.InvoiceNumber, "amount": payment.Amount,
	})
	return payment, nil
}

// Delete reverses a payment: the invoice paid amount drops by the payment
// amount floored at zero, the payment status is re-derived, and the full
// amount returns to the customer's outstanding balance uncapped.
func (s *Service) Delete(ctx context.Context, id int64) error {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return fmt.Errorf("payments: missing actor attribution: %w", shared.ErrValidation)
	}

	var deleted Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		deleted, err = tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		inv, err := tx.GetInvoiceForUpdate(ctx, deleted.InvoiceID)
		if err != nil {
			return err
		}

		newPaid := money.Round(inv.PaidAmount - deleted.Amount)
		if newPaid < 0 {
			newPaid = 0
		}
		status := invoicing.DerivePaymentStatus(newPaid, inv.Totals.NetTotal)
		if err := tx.UpdatePaymentProgress(ctx, inv.ID, newPaid, status); err != nil {
			return err
		}

		cust, err := tx.GetCustomerForUpdate(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		s.applyChange(ctx, &cust, customers.PaymentEffect(deleted.Amount, -1))
		if err := tx.UpdateCustomerFinancials(ctx, cust); err != nil {
			return err
		}
		return tx.DeletePayment(ctx, id)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, actor, "payment.delete", id, map[string]any{
		"invoice": deleted.InvoiceNumber, "amount": deleted.Amount,
	})
	return nil
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	if id <= 0 {
		return Payment{}, fmt.Errorf("payments: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns payments, optionally for one invoice.
func (s *Service) List(ctx context.Context, invoiceID int64, limit, offset int) ([]Payment, error) {
	return s.repo.List(ctx, invoiceID, limit, offset)
}

func (s *Service) applyChange(ctx context.Context, c *customers.Customer, ch customers.BalanceChange) {
	if customers.ApplyChange(c, ch) {
		if s.clamps != nil {
			s.clamps.Inc()
		}
		s.logger.WarnContext(ctx, "outstanding balance clamped at zero",
			"customer_id", c.ID, "outstanding_delta", ch.OutstandingDelta)
	}
}

func (s *Service) afterCommit(ctx context.Context, actor shared.Attribution, action string, paymentID int64, meta map[string]any) {
	if s.balances != nil {
		if err := s.balances.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "balance cache bump failed", "error", err)
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   action,
			Entity:   "payment",
			EntityID: strconv.FormatInt(paymentID, 10),
			Meta:     meta,
			At:       s.now(),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "audit record failed", "action", action, "error", err)
		}
	}
}
