package customers

import (
	"time"
)

// PaymentType distinguishes cash sales from credit exposure.
type PaymentType string

const (
	PaymentCash   PaymentType = "Cash"
	PaymentCredit PaymentType = "Credit"
)

// Valid reports whether the payment type is known.
func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCredit
}

// Customer models a buyer with their running financial position.
// OutstandingBalance and TotalPurchases move only through signed
// increments issued by ledger events, never by recomputation.
type Customer struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone"`
	Address            string    `json:"address"`
	GSTIN              string    `json:"gstin"`
	OutstandingBalance float64   `json:"outstanding_balance"`
	TotalPurchases     float64   `json:"total_purchases"`
	InvoiceCount       int       `json:"invoice_count"`
	LastInvoiceDate    time.Time `json:"last_invoice_date"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Snapshot is the customer identity embedded into invoices and manual
// entries at event time. It is deliberately never kept in sync with later
// edits to the customer record.
type Snapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	GSTIN   string `json:"gstin"`
}

// Snapshot captures the identity fields as of now.
func (c Customer) Snapshot() Snapshot {
	return Snapshot{Name: c.Name, Phone: c.Phone, Address: c.Address, GSTIN: c.GSTIN}
}

// BalanceChange is a signed increment against a customer's financials.
type BalanceChange struct {
	PurchasesDelta   float64
	OutstandingDelta float64
}

// InvoiceEffect returns the financial impact of an invoice. Credit invoices
// raise the outstanding balance alongside total purchases; cash invoices
// only count toward purchases. sign is +1 on create and -1 on reversal.
func InvoiceEffect(netTotal float64, paymentType PaymentType, sign int) BalanceChange {
	ch := BalanceChange{PurchasesDelta: float64(sign) * netTotal}
	if paymentType == PaymentCredit {
		ch.OutstandingDelta = float64(sign) * netTotal
	}
	return ch
}

// PaymentEffect returns the financial impact of a payment: the outstanding
// balance falls by the amount on apply (sign = +1) and rises on reversal.
func PaymentEffect(amount float64, sign int) BalanceChange {
	return BalanceChange{OutstandingDelta: -float64(sign) * amount}
}

// ApplyChange mutates the customer's financials by the given increments.
// The outstanding balance is floored at zero; the returned flag reports
// whether the floor actually cut anything off, which indicates a prior
// inconsistency and must be surfaced by the caller.
func ApplyChange(c *Customer, ch BalanceChange) (clamped bool) {
	c.TotalPurchases += ch.PurchasesDelta
	next := c.OutstandingBalance + ch.OutstandingDelta
	if next < 0 {
		next = 0
		clamped = true
	}
	c.OutstandingBalance = next
	return clamped
}
