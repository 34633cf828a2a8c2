package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, phone, address, gstin, outstanding_balance, total_purchases, invoice_count, last_invoice_date, created_at, updated_at`

// Create inserts a customer.
func (r *Repository) Create(ctx context.Context, c Customer) (Customer, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, address, gstin, outstanding_balance, total_purchases, invoice_count, last_invoice_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, 0, 'epoch', NOW(), NOW())
		RETURNING id, outstanding_balance, total_purchases, invoice_count, last_invoice_date, created_at, updated_at`,
		c.Name, c.Phone, c.Address, c.GSTIN,
	).Scan(&c.ID, &c.OutstandingBalance, &c.TotalPurchases, &c.InvoiceCount, &c.LastInvoiceDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

// Get retrieves a customer by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

// List returns customers ordered by name.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateContact updates the identity fields only. Financials are out of
// reach here: they move through ledger transactions.
func (r *Repository) UpdateContact(ctx context.Context, id int64, name, phone, address, gstin string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers SET name = $2, phone = $3, address = $4, gstin = $5, updated_at = NOW()
		WHERE id = $1`, id, name, phone, address, gstin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customers: customer %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// GetForUpdateTx loads a customer inside an existing transaction with a row
// lock. The ledger packages share this helper so every engine mutates the
// financials the same way.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Customer, error) {
	return scanCustomer(tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
}

// UpdateFinancialsTx persists the financial columns inside an existing
// transaction.
func UpdateFinancialsTx(ctx context.Context, tx pgx.Tx, c Customer) error {
	tag, err := tx.Exec(ctx, `
		UPDATE customers
		SET outstanding_balance = $2, total_purchases = $3, invoice_count = $4, last_invoice_date = $5, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.OutstandingBalance, c.TotalPurchases, c.InvoiceCount, c.LastInvoiceDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customers: customer %d: %w", c.ID, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.GSTIN,
		&c.OutstandingBalance, &c.TotalPurchases, &c.InvoiceCount, &c.LastInvoiceDate,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("customers: customer: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}
