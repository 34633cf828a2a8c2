package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/money"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, f ListFilter) ([]Invoice, error)
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

// Service orchestrates the invoice lifecycle. Create, edit and status
// changes each run as one transaction spanning the invoice, the stock
// ledger and the customer financials.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	balances BalanceInvalidator
	seller   SellerSnapshot
	clamps   interface{ Inc() }
	now      func() time.Time
}

// NewService builds Service. clamps counts outstanding-balance floor hits
// and may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, balances BalanceInvalidator, seller SellerSnapshot, clamps interface{ Inc() }) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		audit:    audit,
		balances: balances,
		seller:   seller,
		clamps:   clamps,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput describes one requested invoice line. RatePerUnit of zero
// means the product's current unit rate.
type ItemInput struct {
	ProductID       int64
	QuantitySold    int
	FreeQuantity    int
	RatePerUnit     float64
	DiscountPercent float64
}

// CreateInput describes a new invoice.
type CreateInput struct {
	CustomerID  int64
	InvoiceDate time.Time
	Items       []ItemInput
	PaymentType customers.PaymentType
	Notes       string
}

// Create issues an invoice: assigns the next sequential number, snapshots
// the customer, seller and every product, deducts stock for sold plus free
// units, and applies the financial effect to the customer. Everything
// commits atomically or not at all.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return Invoice{}, fmt.Errorf("invoicing: missing actor attribution: %w", shared.ErrValidation)
	}
	if err := validateItems(input.Items); err != nil {
		return Invoice{}, err
	}
	if !input.PaymentType.Valid() {
		return Invoice{}, fmt.Errorf("invoicing: payment type %q: %w", input.PaymentType, shared.ErrValidation)
	}
	date := input.InvoiceDate
	if date.IsZero() {
		date = s.now()
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cust, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}

		seq, err := tx.NextSeq(ctx, date.Year())
		if err != nil {
			return err
		}
		number := FormatNumber(date.Year(), seq)

		items, err := s.buildItems(ctx, tx, input.Items, catalog.MovementInvoice, number)
		if err != nil {
			return err
		}
		totals := ComputeTotals(items)
		words, err := money.ToWords(totals.NetTotal)
		if err != nil {
			return err
		}

		inv = Invoice{
			Number:        number,
			InvoiceDate:   date,
			CustomerID:    cust.ID,
			Customer:      cust.Snapshot(),
			Seller:        s.seller,
			Items:         items,
			Totals:        totals,
			PaymentType:   input.PaymentType,
			PaidAmount:    0,
			PaymentStatus: DerivePaymentStatus(0, totals.NetTotal),
			Status:        StatusCreated,
			Notes:         input.Notes,
			AmountInWords: words,
			CreatedBy:     actor,
		}
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, inv.ID, inv.Items); err != nil {
			return err
		}

		s.applyChange(ctx, &cust, customers.InvoiceEffect(totals.NetTotal, input.PaymentType, +1))
		cust.InvoiceCount++
		cust.LastInvoiceDate = date
		return tx.UpdateCustomerFinancials(ctx, cust)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterCommit(ctx, actor, "invoice.create", inv.ID, map[string]any{
		"number": inv.Number, "net_total": inv.Totals.NetTotal,
	})
	return inv, nil
}

// UpdateInput describes an invoice edit. The item set always replaces the
// old one wholesale. CustomerID of zero keeps the current customer;
// PaymentType empty keeps the current type.
type UpdateInput struct {
	CustomerID  int64
	Items       []ItemInput
	PaymentType customers.PaymentType
	Notes       *string
}

// Update edits an invoice through full reversal: the old lines' stock is
// restored with opposite-signed movements, the old net total is subtracted
// from the customer's purchases, and the new line set is applied as if the
// invoice were being issued fresh against the post-reversal stock. The
// outstanding balance is deliberately left alone on both legs; payments
// are its only driver.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Invoice, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return Invoice{}, fmt.Errorf("invoicing: missing actor attribution: %w", shared.ErrValidation)
	}
	if err := validateItems(input.Items); err != nil {
		return Invoice{}, err
	}
	if input.PaymentType != "" && !input.PaymentType.Valid() {
		return Invoice{}, fmt.Errorf("invoicing: payment type %q: %w", input.PaymentType, shared.ErrValidation)
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return fmt.Errorf("invoicing: invoice %s is cancelled: %w", inv.Number, shared.ErrInvalidState)
		}

		for _, it := range inv.Items {
			if err := s.moveStock(ctx, tx, it.ProductID, catalog.MovementInvoiceEditReversal, it.StockNeed(), inv.Number); err != nil {
				return err
			}
		}

		oldCust, err := tx.GetCustomerForUpdate(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		s.applyChange(ctx, &oldCust, customers.BalanceChange{PurchasesDelta: -inv.Totals.NetTotal})

		newCust := oldCust
		reassigned := input.CustomerID != 0 && input.CustomerID != inv.CustomerID
		if reassigned {
			oldCust.InvoiceCount--
			if err := tx.UpdateCustomerFinancials(ctx, oldCust); err != nil {
				return err
			}
			newCust, err = tx.GetCustomerForUpdate(ctx, input.CustomerID)
			if err != nil {
				return err
			}
			newCust.InvoiceCount++
			newCust.LastInvoiceDate = inv.InvoiceDate
			inv.CustomerID = newCust.ID
			inv.Customer = newCust.Snapshot()
		}

		items, err := s.buildItems(ctx, tx, input.Items, catalog.MovementInvoiceEdit, inv.Number)
		if err != nil {
			return err
		}
		totals := ComputeTotals(items)
		if totals.NetTotal < inv.PaidAmount {
			return fmt.Errorf("invoicing: new total %.2f below paid amount %.2f: %w",
				totals.NetTotal, inv.PaidAmount, shared.ErrInvalidAmount)
		}
		words, err := money.ToWords(totals.NetTotal)
		if err != nil {
			return err
		}

		s.applyChange(ctx, &newCust, customers.BalanceChange{PurchasesDelta: totals.NetTotal})
		if err := tx.UpdateCustomerFinancials(ctx, newCust); err != nil {
			return err
		}

		inv.Items = items
		inv.Totals = totals
		inv.AmountInWords = words
		inv.PaymentStatus = DerivePaymentStatus(inv.PaidAmount, totals.NetTotal)
		if input.PaymentType != "" {
			inv.PaymentType = input.PaymentType
		}
		if input.Notes != nil {
			inv.Notes = *input.Notes
		}

		if err := tx.DeleteItems(ctx, inv.ID); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, inv.ID, inv.Items); err != nil {
			return err
		}
		return tx.UpdateInvoice(ctx, &inv)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterCommit(ctx, actor, "invoice.update", inv.ID, map[string]any{
		"number": inv.Number, "net_total": inv.Totals.NetTotal,
	})
	return inv, nil
}

// SetStatus applies a lifecycle transition. Cancellation is a terminal
// flag; it does not restore stock or reverse financials.
func (s *Service) SetStatus(ctx context.Context, id int64, to Status) (Invoice, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return Invoice{}, fmt.Errorf("invoicing: missing actor attribution: %w", shared.ErrValidation)
	}
	if !to.Valid() {
		return Invoice{}, fmt.Errorf("invoicing: status %q: %w", to, shared.ErrValidation)
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(inv.Status, to) {
			return fmt.Errorf("invoicing: %s -> %s: %w", inv.Status, to, shared.ErrInvalidState)
		}
		inv.Status = to
		return tx.UpdateStatus(ctx, id, to)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterCommit(ctx, actor, "invoice.status", inv.ID, map[string]any{
		"number": inv.Number, "status": string(to),
	})
	return inv, nil
}

// Get returns one invoice with items.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, fmt.Errorf("invoicing: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns invoice headers.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Invoice, error) {
	return s.repo.List(ctx, f)
}

// buildItems validates stock, deducts it with movements of the given type
// and returns fully priced line items with product snapshots.
func (s *Service) buildItems(ctx context.Context, tx TxRepository, inputs []ItemInput, typ catalog.MovementType, reference string) ([]InvoiceItem, error) {
	items := make([]InvoiceItem, 0, len(inputs))
	for _, in := range inputs {
		p, err := tx.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		need := in.QuantitySold + in.FreeQuantity
		if err := catalog.CheckStock(p, need); err != nil {
			return nil, err
		}
		m, err := catalog.ApplyMovement(&p, typ, -need, reference)
		if err != nil {
			return nil, err
		}
		if err := tx.InsertStockMovement(ctx, m); err != nil {
			return nil, err
		}
		if err := tx.UpdateProductStock(ctx, p.ID, p.CurrentStockQty); err != nil {
			return nil, err
		}

		rate := in.RatePerUnit
		if rate == 0 {
			rate = p.UnitRate
		}
		items = append(items, InvoiceItem{
			ProductID:       p.ID,
			ProductName:     p.Name,
			Batch:           p.Batch,
			ExpiryDate:      p.ExpiryDate,
			TaxRate:         p.TaxRate,
			QuantitySold:    in.QuantitySold,
			FreeQuantity:    in.FreeQuantity,
			RatePerUnit:     rate,
			DiscountPercent: in.DiscountPercent,
			LineAmounts:     ComputeLineAmounts(in.QuantitySold, rate, p.TaxRate, in.DiscountPercent),
		})
	}
	return items, nil
}

// moveStock applies one signed movement to a product inside the
// transaction.
func (s *Service) moveStock(ctx context.Context, tx TxRepository, productID int64, typ catalog.MovementType, change int, reference string) error {
	p, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	m, err := catalog.ApplyMovement(&p, typ, change, reference)
	if err != nil {
		return err
	}
	if err := tx.InsertStockMovement(ctx, m); err != nil {
		return err
	}
	return tx.UpdateProductStock(ctx, p.ID, p.CurrentStockQty)
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

func (s *Service) afterCommit(ctx context.Context, actor shared.Attribution, action string, invoiceID int64, meta map[string]any) {
	if s.balances != nil {
		if err := s.balances.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "balance cache bump failed", "error", err)
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   action,
			Entity:   "invoice",
			EntityID: strconv.FormatInt(invoiceID, 10),
			Meta:     meta,
			At:       s.now(),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "audit record failed", "action", action, "error", err)
		}
	}
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("invoicing: at least one item required: %w", shared.ErrValidation)
	}
	for i, it := range items {
		switch {
		case it.ProductID <= 0:
			return fmt.Errorf("invoicing: item %d: product required: %w", i, shared.ErrValidation)
		case it.QuantitySold <= 0:
			return fmt.Errorf("invoicing: item %d: quantity must be positive: %w", i, shared.ErrValidation)
		case it.FreeQuantity < 0:
			return fmt.Errorf("invoicing: item %d: free quantity cannot be negative: %w", i, shared.ErrValidation)
		case it.RatePerUnit < 0:
			return fmt.Errorf("invoicing: item %d: rate cannot be negative: %w", i, shared.ErrInvalidAmount)
		case it.DiscountPercent < 0 || it.DiscountPercent > 100:
			return fmt.Errorf("invoicing: item %d: discount must be within 0-100: %w", i, shared.ErrValidation)
		}
	}
	return nil
}
