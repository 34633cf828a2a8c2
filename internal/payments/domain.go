package payments

import (
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// Method is how a payment was collected.
type Method string

const (
	MethodCash         Method = "Cash"
	MethodUPI          Method = "UPI"
	MethodCheque       Method = "Cheque"
	MethodBankTransfer Method = "BankTransfer"
)

// Valid reports whether the method is known.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodCheque, MethodBankTransfer:
		return true
	}
	return false
}

// Payment records money received against an invoice. InvoiceNumber and
// InvoiceNetTotal are snapshots taken at payment time so the record stays
// meaningful even as the invoice evolves.
type Payment struct {
	ID              int64              `json:"id"`
	InvoiceID       int64              `json:"invoice_id"`
	CustomerID      int64              `json:"customer_id"`
	Amount          float64            `json:"amount"`
	PaymentDate     time.Time          `json:"payment_date"`
	Method          Method             `json:"method"`
	Reference       string             `json:"reference"`
	Notes           string             `json:"notes"`
	InvoiceNumber   string             `json:"invoice_number"`
	InvoiceNetTotal float64            `json:"invoice_net_total"`
	CreatedBy       shared.Attribution `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
}
