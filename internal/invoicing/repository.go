package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/db"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices. Every
// invoice mutation runs through WithTx so the document, the stock ledger
// and the customer financials commit or roll back together.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes every table the invoice engine touches inside one
// transaction: the invoice itself, its items, the invoice counter, product
// stock and the customer financials.
type TxRepository interface {
	NextSeq(ctx context.Context, year int) (int, error)
	GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error)
	UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error
	GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	UpdateProductStock(ctx context.Context, id int64, qty int) error
	InsertStockMovement(ctx context.Context, m catalog.StockMovement) error
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	DeleteItems(ctx context.Context, invoiceID int64) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// WithTx executes the callback inside a serializable transaction, retrying
// transient conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const invoiceColumns = `id, number, invoice_date, customer_id, customer_snapshot, seller_snapshot,
	base_total, discount_total, taxable_total, gst_total, cgst_total, sgst_total, net_total,
	payment_type, paid_amount, payment_status, status, notes, amount_in_words,
	created_by_role, created_by_id, created_at, updated_at`

// Get retrieves an invoice with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = loadItems(ctx, r.pool, id)
	return inv, err
}

// ListFilter narrows List.
type ListFilter struct {
	CustomerID int64
	Status     Status
	Limit      int
	Offset     int
}

// List returns invoice headers without items, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Invoice, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE ($1 = 0 OR customer_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`,
		f.CustomerID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

// NextSeq atomically advances the per-year invoice counter. Assigned
// numbers are never reused, even for invoices later cancelled.
func (t *txRepo) NextSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoice_counters (year, seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET seq = invoice_counters.seq + 1
		RETURNING seq`, year).Scan(&seq)
	return seq, err
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error) {
	return customers.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error {
	return customers.UpdateFinancialsTx(ctx, t.tx, c)
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	return catalog.GetProductForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateProductStock(ctx context.Context, id int64, qty int) error {
	return catalog.UpdateProductStockTx(ctx, t.tx, id, qty)
}

func (t *txRepo) InsertStockMovement(ctx context.Context, m catalog.StockMovement) error {
	return catalog.InsertMovementTx(ctx, t.tx, m)
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv *Invoice) error {
	custSnap, err := json.Marshal(inv.Customer)
	if err != nil {
		return err
	}
	sellerSnap, err := json.Marshal(inv.Seller)
	if err != nil {
		return err
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO invoices (number, invoice_date, customer_id, customer_snapshot, seller_snapshot,
			base_total, discount_total, taxable_total, gst_total, cgst_total, sgst_total, net_total,
			payment_type, paid_amount, payment_status, status, notes, amount_in_words,
			created_by_role, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		inv.Number, inv.InvoiceDate, inv.CustomerID, custSnap, sellerSnap,
		inv.Totals.BaseTotal, inv.Totals.DiscountTotal, inv.Totals.TaxableTotal,
		inv.Totals.GSTTotal, inv.Totals.CGSTTotal, inv.Totals.SGSTTotal, inv.Totals.NetTotal,
		string(inv.PaymentType), inv.PaidAmount, string(inv.PaymentStatus), string(inv.Status),
		inv.Notes, inv.AmountInWords, string(inv.CreatedBy.Role), inv.CreatedBy.UserID,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
}

func (t *txRepo) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for i := range items {
		it := &items[i]
		it.InvoiceID = invoiceID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, product_id, product_name, batch, expiry_date, tax_rate,
				quantity_sold, free_quantity, rate_per_unit, discount_percent,
				base_amount, discount_amount, taxable_amount, gst_amount, cgst_amount, sgst_amount, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING id`,
			invoiceID, it.ProductID, it.ProductName, it.Batch, it.ExpiryDate, int(it.TaxRate),
			it.QuantitySold, it.FreeQuantity, it.RatePerUnit, it.DiscountPercent,
			it.BaseAmount, it.DiscountAmount, it.TaxableAmount, it.GSTAmount,
			it.CGSTAmount, it.SGSTAmount, it.TotalAmount,
		).Scan(&it.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) DeleteItems(ctx context.Context, invoiceID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	return err
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return GetInvoiceForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	custSnap, err := json.Marshal(inv.Customer)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices
		SET invoice_date = $2, customer_id = $3, customer_snapshot = $4,
			base_total = $5, discount_total = $6, taxable_total = $7, gst_total = $8,
			cgst_total = $9, sgst_total = $10, net_total = $11,
			payment_type = $12, paid_amount = $13, payment_status = $14,
			notes = $15, amount_in_words = $16, updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.InvoiceDate, inv.CustomerID, custSnap,
		inv.Totals.BaseTotal, inv.Totals.DiscountTotal, inv.Totals.TaxableTotal,
		inv.Totals.GSTTotal, inv.Totals.CGSTTotal, inv.Totals.SGSTTotal, inv.Totals.NetTotal,
		string(inv.PaymentType), inv.PaidAmount, string(inv.PaymentStatus),
		inv.Notes, inv.AmountInWords)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoicing: invoice %d: %w", inv.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoicing: invoice %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// GetInvoiceForUpdateTx loads an invoice with its items inside an existing
// transaction, holding a row lock on the header. The payment engine shares
// this helper.
func GetInvoiceForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Invoice, error) {
	inv, err := scanInvoice(tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = loadItems(ctx, tx, id)
	return inv, err
}

// UpdatePaymentProgressTx persists the running paid amount and its derived
// status inside an existing transaction.
func UpdatePaymentProgressTx(ctx context.Context, tx pgx.Tx, id int64, paid float64, status PaymentStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE invoices SET paid_amount = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1`, id, paid, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoicing: invoice %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, product_id, product_name, batch, expiry_date, tax_rate,
			quantity_sold, free_quantity, rate_per_unit, discount_percent,
			base_amount, discount_amount, taxable_amount, gst_amount, cgst_amount, sgst_amount, total_amount
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		var taxRate int
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.Batch,
			&it.ExpiryDate, &taxRate, &it.QuantitySold, &it.FreeQuantity, &it.RatePerUnit,
			&it.DiscountPercent, &it.BaseAmount, &it.DiscountAmount, &it.TaxableAmount,
			&it.GSTAmount, &it.CGSTAmount, &it.SGSTAmount, &it.TotalAmount); err != nil {
			return nil, err
		}
		it.TaxRate = catalog.TaxRate(taxRate)
		items = append(items, it)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	var custSnap, sellerSnap []byte
	var paymentType, paymentStatus, status, role string
	err := row.Scan(&inv.ID, &inv.Number, &inv.InvoiceDate, &inv.CustomerID, &custSnap, &sellerSnap,
		&inv.Totals.BaseTotal, &inv.Totals.DiscountTotal, &inv.Totals.TaxableTotal,
		&inv.Totals.GSTTotal, &inv.Totals.CGSTTotal, &inv.Totals.SGSTTotal, &inv.Totals.NetTotal,
		&paymentType, &inv.PaidAmount, &paymentStatus, &status, &inv.Notes, &inv.AmountInWords,
		&role, &inv.CreatedBy.UserID, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("invoicing: invoice: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal(custSnap, &inv.Customer); err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal(sellerSnap, &inv.Seller); err != nil {
		return Invoice{}, err
	}
	inv.PaymentType = customers.PaymentType(paymentType)
	inv.PaymentStatus = PaymentStatus(paymentStatus)
	inv.Status = Status(status)
	inv.CreatedBy.Role = shared.Role(role)
	return inv, nil
}
