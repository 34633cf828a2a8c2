package invoicing

import (
	"fmt"
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusCreated   Status = "Created"
	StatusPrinted   Status = "Printed"
	StatusCancelled Status = "Cancelled"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusCreated || s == StatusPrinted || s == StatusCancelled
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another. Cancelled is terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusPrinted || to == StatusCancelled
	case StatusPrinted:
		return to == StatusCancelled
	}
	return false
}

// PaymentStatus is derived from paid amount versus net total. It is never
// set directly.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPartial PaymentStatus = "Partial"
	PaymentPaid    PaymentStatus = "Paid"
)

// DerivePaymentStatus computes the payment status from the running paid
// amount against the net total. An invoice with nothing owed is Paid, so
// a fully discounted zero-total document never reads as Unpaid.
func DerivePaymentStatus(paid, netTotal float64) PaymentStatus {
	switch {
	case paid >= netTotal:
		return PaymentPaid
	case paid > 0:
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

// SellerSnapshot is the issuing business identity frozen onto the invoice
// at creation time.
type SellerSnapshot struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	GSTIN   string `json:"gstin"`
	Phone   string `json:"phone"`
}

// LineAmounts are the derived monetary values of one invoice line. Each
// field is rounded independently when computed.
type LineAmounts struct {
	BaseAmount     float64 `json:"base_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxableAmount  float64 `json:"taxable_amount"`
	GSTAmount      float64 `json:"gst_amount"`
	CGSTAmount     float64 `json:"cgst_amount"`
	SGSTAmount     float64 `json:"sgst_amount"`
	TotalAmount    float64 `json:"total_amount"`
}

// InvoiceItem is a line on an invoice carrying a full product snapshot.
// The snapshot is frozen at invoice time; later product edits do not touch
// issued documents.
type InvoiceItem struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Batch           string          `json:"batch"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	TaxRate         catalog.TaxRate `json:"tax_rate"`
	QuantitySold    int             `json:"quantity_sold"`
	FreeQuantity    int             `json:"free_quantity"`
	RatePerUnit     float64         `json:"rate_per_unit"`
	DiscountPercent float64         `json:"discount_percent"`
	LineAmounts
}

// StockNeed is the stock an item consumes: sold plus free units.
func (it InvoiceItem) StockNeed() int {
	return it.QuantitySold + it.FreeQuantity
}

// Totals aggregates the line amounts of an invoice. Each field is the
// rounded sum of the corresponding line field, so NetTotal always equals
// the sum of line totals.
type Totals struct {
	BaseTotal     float64 `json:"base_total"`
	DiscountTotal float64 `json:"discount_total"`
	TaxableTotal  float64 `json:"taxable_total"`
	GSTTotal      float64 `json:"gst_total"`
	CGSTTotal     float64 `json:"cgst_total"`
	SGSTTotal     float64 `json:"sgst_total"`
	NetTotal      float64 `json:"net_total"`
}

// Invoice is the aggregate invoice document.
type Invoice struct {
	ID            int64                 `json:"id"`
	Number        string                `json:"number"`
	InvoiceDate   time.Time             `json:"invoice_date"`
	CustomerID    int64                 `json:"customer_id"`
	Customer      customers.Snapshot    `json:"customer"`
	Seller        SellerSnapshot        `json:"seller"`
	Items         []InvoiceItem         `json:"items"`
	Totals        Totals                `json:"totals"`
	PaymentType   customers.PaymentType `json:"payment_type"`
	PaidAmount    float64               `json:"paid_amount"`
	PaymentStatus PaymentStatus         `json:"payment_status"`
	Status        Status                `json:"status"`
	Notes         string                `json:"notes"`
	AmountInWords string                `json:"amount_in_words"`
	CreatedBy     shared.Attribution    `json:"created_by"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Remaining is the unpaid portion of the invoice.
func (inv Invoice) Remaining() float64 {
	return inv.Totals.NetTotal - inv.PaidAmount
}

// FormatNumber renders the sequential invoice number, e.g. INV-2026-0001.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("INV-%04d-%04d", year, seq)
}
