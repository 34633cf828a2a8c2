package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/invoicing"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/db"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence for payments. Payment
// creation and deletion run through WithTx so the payment row, the invoice
// progress and the customer financials commit together.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes every table the payment engine touches inside one
// transaction.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (invoicing.Invoice, error)
	UpdatePaymentProgress(ctx context.Context, invoiceID int64, paid float64, status invoicing.PaymentStatus) error
	GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error)
	UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error
	InsertPayment(ctx context.Context, p *Payment) error
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	DeletePayment(ctx context.Context, id int64) error
}

// WithTx executes the callback inside a serializable transaction, retrying
// transient conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const paymentColumns = `id, invoice_id, customer_id, amount, payment_date, method, reference, notes,
	invoice_number, invoice_net_total, created_by_role, created_by_id, created_at`

// Get retrieves one payment.
func (r *Repository) Get(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// List returns payments newest first, optionally narrowed to one invoice.
func (r *Repository) List(ctx context.Context, invoiceID int64, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE ($1 = 0 OR invoice_id = $1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, invoiceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (invoicing.Invoice, error) {
	return invoicing.GetInvoiceForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdatePaymentProgress(ctx context.Context, invoiceID int64, paid float64, status invoicing.PaymentStatus) error {
	return invoicing.UpdatePaymentProgressTx(ctx, t.tx, invoiceID, paid, status)
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error) {
	return customers.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error {
	return customers.UpdateFinancialsTx(ctx, t.tx, c)
}

func (t *txRepo) InsertPayment(ctx context.Context, p *Payment) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, customer_id, amount, payment_date, method, reference, notes,
			invoice_number, invoice_net_total, created_by_role, created_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id, created_at`,
		p.InvoiceID, p.CustomerID, p.Amount, p.PaymentDate, string(p.Method), p.Reference, p.Notes,
		p.InvoiceNumber, p.InvoiceNetTotal, string(p.CreatedBy.Role), p.CreatedBy.UserID,
	).Scan(&p.ID, &p.CreatedAt)
}

func (t *txRepo) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) DeletePayment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	var method, role string
	err := row.Scan(&p.ID, &p.InvoiceID, &p.CustomerID, &p.Amount, &p.PaymentDate, &method,
		&p.Reference, &p.Notes, &p.InvoiceNumber, &p.InvoiceNetTotal, &role, &p.CreatedBy.UserID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, fmt.Errorf("payments: payment: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Payment{}, err
	}
	p.Method = Method(method)
	p.CreatedBy.Role = shared.Role(role)
	return p, nil
}
