package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/db"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence for manual entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the tables the manual entry engine touches inside
// one transaction.
type TxRepository interface {
	GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error)
	UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error
	InsertEntry(ctx context.Context, e *ManualEntry) error
	GetEntryForUpdate(ctx context.Context, id int64) (ManualEntry, error)
	UpdateEntryPaidAmount(ctx context.Context, id int64, paid float64) error
	DeleteEntry(ctx context.Context, id int64) error
}

// WithTx executes the callback inside a serializable transaction, retrying
// transient conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const entryColumns = `id, customer_id, customer_snapshot, entry_type, payment_type, amount, paid_amount,
	entry_date, description, parent_entry_id, created_by_role, created_by_id, created_at`

// Get retrieves one entry.
func (r *Repository) Get(ctx context.Context, id int64) (ManualEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM manual_entries WHERE id = $1`, id))
}

// List returns entries newest first, optionally narrowed to one customer.
func (r *Repository) List(ctx context.Context, customerID int64, limit, offset int) ([]ManualEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM manual_entries
		WHERE ($1 = 0 OR customer_id = $1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ManualEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error) {
	return customers.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error {
	return customers.UpdateFinancialsTx(ctx, t.tx, c)
}

func (t *txRepo) InsertEntry(ctx context.Context, e *ManualEntry) error {
	custSnap, err := json.Marshal(e.Customer)
	if err != nil {
		return err
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO manual_entries (customer_id, customer_snapshot, entry_type, payment_type, amount, paid_amount,
			entry_date, description, parent_entry_id, created_by_role, created_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id, created_at`,
		e.CustomerID, custSnap, string(e.EntryType), string(e.PaymentType), e.Amount, e.PaidAmount,
		e.EntryDate, e.Description, e.ParentEntryID, string(e.CreatedBy.Role), e.CreatedBy.UserID,
	).Scan(&e.ID, &e.CreatedAt)
}

func (t *txRepo) GetEntryForUpdate(ctx context.Context, id int64) (ManualEntry, error) {
	return scanEntry(t.tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM manual_entries WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateEntryPaidAmount(ctx context.Context, id int64, paid float64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE manual_entries SET paid_amount = $2 WHERE id = $1`, id, paid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: entry %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM manual_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: entry %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (ManualEntry, error) {
	var e ManualEntry
	var custSnap []byte
	var entryType, paymentType, role string
	err := row.Scan(&e.ID, &e.CustomerID, &custSnap, &entryType, &paymentType, &e.Amount, &e.PaidAmount,
		&e.EntryDate, &e.Description, &e.ParentEntryID, &role, &e.CreatedBy.UserID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ManualEntry{}, fmt.Errorf("ledger: entry: %w", shared.ErrNotFound)
	}
	if err != nil {
		return ManualEntry{}, err
	}
	if err := json.Unmarshal(custSnap, &e.Customer); err != nil {
		return ManualEntry{}, err
	}
	e.EntryType = EntryType(entryType)
	e.PaymentType = customers.PaymentType(paymentType)
	e.CreatedBy.Role = shared.Role(role)
	return e, nil
}
