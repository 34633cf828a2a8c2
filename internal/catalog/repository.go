package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/db"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the catalog and
// stock ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the stock ledger operations that run inside the
// caller's transaction.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	UpdateProductStock(ctx context.Context, id int64, qty int) error
	InsertMovement(ctx context.Context, m StockMovement) error
}

// WithTx executes the callback inside a serializable transaction, retrying
// transient conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const productColumns = `id, name, batch, expiry_date, old_price, new_price, unit_rate, tax_rate, current_stock_qty, created_at, updated_at`

// Create inserts a product with its opening quantity; the opening movement
// is the caller's responsibility.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	query := `
		INSERT INTO products (name, batch, expiry_date, old_price, new_price, unit_rate, tax_rate, current_stock_qty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		p.Name, p.Batch, p.ExpiryDate, p.OldPrice, p.NewPrice, p.UnitRate, int(p.TaxRate), p.CurrentStockQty,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Get retrieves a product by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// List returns products ordered by name.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListMovements returns the movement log for a product, oldest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, movement_type, qty_change, previous_qty, new_qty, reference, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.QtyChange, &m.PreviousQty, &m.NewQty, &m.Reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return GetProductForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateProductStock(ctx context.Context, id int64, qty int) error {
	return UpdateProductStockTx(ctx, t.tx, id, qty)
}

func (t *txRepo) InsertMovement(ctx context.Context, m StockMovement) error {
	return InsertMovementTx(ctx, t.tx, m)
}

// GetProductForUpdateTx loads a product inside an existing transaction with
// a row lock. The invoice engine shares these helpers so every ledger event
// moves stock through the same statements.
func GetProductForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Product, error) {
	return scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
}

// UpdateProductStockTx persists the stock quantity inside an existing
// transaction.
func UpdateProductStockTx(ctx context.Context, tx pgx.Tx, id int64, qty int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE products SET current_stock_qty = $2, updated_at = NOW() WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// InsertMovementTx appends a movement record inside an existing transaction.
func InsertMovementTx(ctx context.Context, tx pgx.Tx, m StockMovement) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, movement_type, qty_change, previous_qty, new_qty, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ProductID, string(m.Type), m.QtyChange, m.PreviousQty, m.NewQty, m.Reference, m.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var taxRate int
	err := row.Scan(&p.ID, &p.Name, &p.Batch, &p.ExpiryDate, &p.OldPrice, &p.NewPrice,
		&p.UnitRate, &taxRate, &p.CurrentStockQty, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("catalog: product: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Product{}, err
	}
	p.TaxRate = TaxRate(taxRate)
	return p, nil
}
