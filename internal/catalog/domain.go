package catalog

import (
	"fmt"
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// TaxRate is a GST percentage. Only the enumerated slabs are legal.
type TaxRate int

const (
	TaxRateExempt TaxRate = 0
	TaxRate5      TaxRate = 5
	TaxRate12     TaxRate = 12
	TaxRate18     TaxRate = 18
	TaxRate28     TaxRate = 28
)

// Valid reports whether the rate is one of the GST slabs.
func (t TaxRate) Valid() bool {
	switch t {
	case TaxRateExempt, TaxRate5, TaxRate12, TaxRate18, TaxRate28:
		return true
	}
	return false
}

// MovementType enumerates stock ledger movements.
type MovementType string

const (
	MovementOpening             MovementType = "opening"
	MovementInvoice             MovementType = "invoice"
	MovementInvoiceEdit         MovementType = "invoice_edit"
	MovementInvoiceEditReversal MovementType = "invoice_edit_reversal"
	MovementAdjustment          MovementType = "adjustment"
)

// Product models a catalog item together with its current stock quantity.
// CurrentStockQty is mutated only through stock movements and never drops
// below zero.
type Product struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Batch           string    `json:"batch"`
	ExpiryDate      time.Time `json:"expiry_date"`
	OldPrice        float64   `json:"old_price"`
	NewPrice        float64   `json:"new_price"`
	UnitRate        float64   `json:"unit_rate"`
	TaxRate         TaxRate   `json:"tax_rate"`
	CurrentStockQty int       `json:"current_stock_qty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StockMovement is one append-only record of a signed quantity change.
type StockMovement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	Type        MovementType `json:"type"`
	QtyChange   int          `json:"qty_change"`
	PreviousQty int          `json:"previous_qty"`
	NewQty      int          `json:"new_qty"`
	Reference   string       `json:"reference"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CheckStock fails when the product cannot cover the requested quantity.
func CheckStock(p Product, need int) error {
	if p.CurrentStockQty < need {
		return fmt.Errorf("catalog: product %d has %d in stock, need %d: %w",
			p.ID, p.CurrentStockQty, need, shared.ErrInsufficientStock)
	}
	return nil
}

// ApplyMovement mutates the product quantity and returns the movement record
// capturing the before/after state. Restorations are opposite-signed
// movements, never overwrites, so the log stays a faithful audit trail.
func ApplyMovement(p *Product, typ MovementType, change int, reference string) (StockMovement, error) {
	newQty := p.CurrentStockQty + change
	if newQty < 0 {
		return StockMovement{}, fmt.Errorf("catalog: product %d movement %+d would leave %d: %w",
			p.ID, change, newQty, shared.ErrInsufficientStock)
	}
	m := StockMovement{
		ProductID:   p.ID,
		Type:        typ,
		QtyChange:   change,
		PreviousQty: p.CurrentStockQty,
		NewQty:      newQty,
		Reference:   reference,
		CreatedAt:   time.Now().UTC(),
	}
	p.CurrentStockQty = newQty
	return m, nil
}
