package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, limit, offset int) ([]Product, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog and stock ledger operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateProductInput describes a new catalog item.
type CreateProductInput struct {
	Name       string
	Batch      string
	ExpiryDate time.Time
	OldPrice   float64
	NewPrice   float64
	UnitRate   float64
	TaxRate    TaxRate
	OpeningQty int
}

// CreateProduct inserts the product and records its opening stock movement.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return Product{}, fmt.Errorf("catalog: missing actor attribution: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return Product{}, fmt.Errorf("catalog: product name required: %w", shared.ErrValidation)
	}
	if !input.TaxRate.Valid() {
		return Product{}, fmt.Errorf("catalog: tax rate %d is not a GST slab: %w", input.TaxRate, shared.ErrValidation)
	}
	if input.OpeningQty < 0 {
		return Product{}, fmt.Errorf("catalog: opening quantity must be >= 0: %w", shared.ErrValidation)
	}
	if input.UnitRate < 0 {
		return Product{}, fmt.Errorf("catalog: unit rate must be >= 0: %w", shared.ErrValidation)
	}

	product, err := s.repo.Create(ctx, Product{
		Name:       strings.TrimSpace(input.Name),
		Batch:      input.Batch,
		ExpiryDate: input.ExpiryDate,
		OldPrice:   input.OldPrice,
		NewPrice:   input.NewPrice,
		UnitRate:   input.UnitRate,
		TaxRate:    input.TaxRate,
	})
	if err != nil {
		return Product{}, err
	}

	if input.OpeningQty > 0 {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			p, err := tx.GetProductForUpdate(ctx, product.ID)
			if err != nil {
				return err
			}
			movement, err := ApplyMovement(&p, MovementOpening, input.OpeningQty, "opening stock")
			if err != nil {
				return err
			}
			if err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			if err := tx.UpdateProductStock(ctx, p.ID, p.CurrentStockQty); err != nil {
				return err
			}
			product = p
			return nil
		})
		if err != nil {
			return Product{}, err
		}
	}

	s.recordAudit(ctx, actor, "product.create", product.ID, map[string]any{
		"name": product.Name, "opening_qty": input.OpeningQty,
	})
	return product, nil
}

// StockDirection names which way an adjustment moves the quantity.
type StockDirection string

const (
	StockIn  StockDirection = "in"
	StockOut StockDirection = "out"
)

// AdjustStockInput describes a manual stock correction.
type AdjustStockInput struct {
	ProductID int64
	Quantity  int
	Direction StockDirection
	Reason    string
}

// AdjustStock applies a manual in/out movement. Driving the quantity
// negative fails the whole operation.
func (s *Service) AdjustStock(ctx context.Context, input AdjustStockInput) (Product, error) {
	actor := shared.AttributionFromContext(ctx)
	if !actor.Valid() {
		return Product{}, fmt.Errorf("catalog: missing actor attribution: %w", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return Product{}, fmt.Errorf("catalog: adjustment quantity must be positive: %w", shared.ErrValidation)
	}
	if input.Direction != StockIn && input.Direction != StockOut {
		return Product{}, fmt.Errorf("catalog: direction must be in or out: %w", shared.ErrValidation)
	}

	change := input.Quantity
	if input.Direction == StockOut {
		change = -input.Quantity
	}
	reference := input.Reason
	if reference == "" {
		reference = "manual adjustment"
	}

	var product Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		movement, err := ApplyMovement(&p, MovementAdjustment, change, reference)
		if err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.UpdateProductStock(ctx, p.ID, p.CurrentStockQty); err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return Product{}, err
	}

	s.recordAudit(ctx, actor, "product.adjust_stock", product.ID, map[string]any{
		"qty": change, "reason": input.Reason,
	})
	return product, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("catalog: invalid product id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// ListProducts returns products for selection lists.
func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListMovements returns the audit trail for one product.
func (s *Service) ListMovements(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("catalog: invalid product id: %w", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Attribution, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
}
