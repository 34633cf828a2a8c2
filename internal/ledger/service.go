package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/money"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (ManualEntry, error)
	List(ctx context.Context, customerID int64, limit, offset int) ([]ManualEntry, error)
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

// Service manages manual ledger entries. Every mutation applies the entry
// and its financial effect in one transaction.
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

// CreateInput describes a new manual entry.
type CreateInput struct {
	CustomerID  int64
	EntryType   EntryType
	PaymentType customers.PaymentType
	Amount      float64
	EntryDate   time.Time
	Description string
}

// Create records a manual entry and applies its financial effect.
func (s *Service) Create(ctx context.Context, input CreateInput) (ManualEntry, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return ManualEntry{}, fmt.Errorf("ledger: missing actor attribution: %w", shared.ErrValidation)
	}
	if !input.EntryType.Valid() {
		return ManualEntry{}, fmt.Errorf("ledger: entry type %q: %w", input.EntryType, shared.ErrValidation)
	}
	if input.EntryType.BearsBalance() && !input.PaymentType.Valid() {
		return ManualEntry{}, fmt.Errorf("ledger: payment type %q: %w", input.PaymentType, shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return ManualEntry{}, fmt.Errorf("ledger: amount must be positive: %w", shared.ErrInvalidAmount)
	}
	amount := money.Round(input.Amount)
	date := input.EntryDate
	if date.IsZero() {
		date = s.now()
	}

	entry := ManualEntry{
		CustomerID:  input.CustomerID,
		EntryType:   input.EntryType,
		PaymentType: input.PaymentType,
		Amount:      amount,
		EntryDate:   date,
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   actor,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cust, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		entry.Customer = cust.Snapshot()
		if err := tx.InsertEntry(ctx, &entry); err != nil {
			return err
		}
		s.applyChange(ctx, &cust, EntryEffect(entry.EntryType, entry.PaymentType, entry.Amount))
		return tx.UpdateCustomerFinancials(ctx, cust)
	})
	if err != nil {
		return ManualEntry{}, err
	}

	s.afterCommit(ctx, actor, "entry.create", entry.ID, map[string]any{
		"entry_type": string(entry.EntryType), "amount": entry.Amount,
	})
	return entry, nil
}

// RecordPaymentInput describes a payment against a balance-bearing entry.
type RecordPaymentInput struct {
	Amount      float64
	PaymentDate time.Time
	Method      string
	Reference   string
}

// RecordPayment collects money against a Credit opening balance or manual
// bill. The parent's paid amount moves up and a linked payment_adjustment
// child entry is written alongside, both in one transaction.
func (s *Service) RecordPayment(ctx context.Context, entryID int64, input RecordPaymentInput) (parent ManualEntry, child ManualEntry, err error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return ManualEntry{}, ManualEntry{}, fmt.Errorf("ledger: missing actor attribution: %w", shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return ManualEntry{}, ManualEntry{}, fmt.Errorf("ledger: payment amount must be positive: %w", shared.ErrInvalidAmount)
	}
	amount := money.Round(input.Amount)
	date := input.PaymentDate
	if date.IsZero() {
		date = s.now()
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		parent, err = tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !parent.EntryType.BearsBalance() || parent.PaymentType != customers.PaymentCredit {
			return fmt.Errorf("ledger: entry %d does not carry a payable balance: %w",
				entryID, shared.ErrInvalidState)
		}
		if parent.PaidAmount >= parent.Amount {
			return fmt.Errorf("ledger: entry %d is fully paid: %w", entryID, shared.ErrInvalidState)
		}
		remaining := money.Round(parent.Remaining())
		if amount > remaining {
			return fmt.Errorf("ledger: amount %.2f exceeds remaining %.2f: %w",
				amount, remaining, shared.ErrInvalidAmount)
		}

		parent.PaidAmount = money.Round(parent.PaidAmount + amount)
		if err := tx.UpdateEntryPaidAmount(ctx, parent.ID, parent.PaidAmount); err != nil {
			return err
		}

		cust, err := tx.GetCustomerForUpdate(ctx, parent.CustomerID)
		if err != nil {
			return err
		}
		child = ManualEntry{
			CustomerID:    parent.CustomerID,
			Customer:      cust.Snapshot(),
			EntryType:     EntryPaymentAdjustment,
			PaymentType:   parent.PaymentType,
			Amount:        amount,
			EntryDate:     date,
			Description:   paymentDescription(parent.ID, input.Method, input.Reference),
			ParentEntryID: &parent.ID,
			CreatedBy:     actor,
		}
		if err := tx.InsertEntry(ctx, &child); err != nil {
			return err
		}

		s.applyChange(ctx, &cust, customers.PaymentEffect(amount, +1))
		return tx.UpdateCustomerFinancials(ctx, cust)
	})
	if err != nil {
		return ManualEntry{}, ManualEntry{}, err
	}

	s.afterCommit(ctx, actor, "entry.payment", parent.ID, map[string]any{
		"amount": amount, "child_entry_id": child.ID,
	})
	return parent, child, nil
}

// Delete removes an entry and reverses its financial effect using the
// entry's stored type, payment type and amounts.
func (s *Service) Delete(ctx context.Context, id int64) error {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return fmt.Errorf("ledger: missing actor attribution: %w", shared.ErrValidation)
	}

	var deleted ManualEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		deleted, err = tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		cust, err := tx.GetCustomerForUpdate(ctx, deleted.CustomerID)
		if err != nil {
			return err
		}
		s.applyChange(ctx, &cust, ReversalEffect(deleted))
		if err := tx.UpdateCustomerFinancials(ctx, cust); err != nil {
			return err
		}
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, actor, "entry.delete", id, map[string]any{
		"entry_type": string(deleted.EntryType), "amount": deleted.Amount,
	})
	return nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id int64) (ManualEntry, error) {
	if id <= 0 {
		return ManualEntry{}, fmt.Errorf("ledger: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns entries, optionally for one customer.
func (s *Service) List(ctx context.Context, customerID int64, limit, offset int) ([]ManualEntry, error) {
	return s.repo.List(ctx, customerID, limit, offset)
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

func (s *Service) afterCommit(ctx context.Context, actor shared.Attribution, action string, entryID int64, meta map[string]any) {
	if s.balances != nil {
		if err := s.balances.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "balance cache bump failed", "error", err)
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   action,
			Entity:   "manual_entry",
			EntityID: strconv.FormatInt(entryID, 10),
			Meta:     meta,
			At:       s.now(),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "audit record failed", "action", action, "error", err)
		}
	}
}

func paymentDescription(parentID int64, method, reference string) string {
	desc := fmt.Sprintf("Payment against entry #%d", parentID)
	if method != "" {
		desc += " via " + method
	}
	if reference != "" {
		desc += " (ref " + reference + ")"
	}
	return desc
}
