package ledger

import (
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// EntryType classifies a manual ledger entry.
type EntryType string

const (
	EntryOpeningBalance    EntryType = "opening_balance"
	EntryManualBill        EntryType = "manual_bill"
	EntryPaymentAdjustment EntryType = "payment_adjustment"
	EntryCreditAdjustment  EntryType = "credit_adjustment"
)

// Valid reports whether the entry type is known.
func (t EntryType) Valid() bool {
	switch t {
	case EntryOpeningBalance, EntryManualBill, EntryPaymentAdjustment, EntryCreditAdjustment:
		return true
	}
	return false
}

// BearsBalance reports whether the type carries an unpaid balance that
// payments can be recorded against.
func (t EntryType) BearsBalance() bool {
	return t == EntryOpeningBalance || t == EntryManualBill
}

// ManualEntry is a ledger record outside the invoice flow: opening
// balances carried in from before the system, bills raised without an
// invoice, and corrective adjustments. Payment adjustments created by
// RecordPayment link back to their parent via ParentEntryID. Customer
// freezes the buyer's identity at entry time, like invoices do.
type ManualEntry struct {
	ID            int64                 `json:"id"`
	CustomerID    int64                 `json:"customer_id"`
	Customer      customers.Snapshot    `json:"customer"`
	EntryType     EntryType             `json:"entry_type"`
	PaymentType   customers.PaymentType `json:"payment_type"`
	Amount        float64               `json:"amount"`
	PaidAmount    float64               `json:"paid_amount"`
	EntryDate     time.Time             `json:"entry_date"`
	Description   string                `json:"description"`
	ParentEntryID *int64                `json:"parent_entry_id,omitempty"`
	CreatedBy     shared.Attribution    `json:"created_by"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Remaining is the unpaid portion of a balance-bearing entry.
func (e ManualEntry) Remaining() float64 {
	return e.Amount - e.PaidAmount
}

// EntryEffect maps an entry to its financial impact on creation.
// Balance-bearing types behave like invoices: Cash counts only toward
// purchases, Credit also raises the outstanding balance. Adjustment types
// only lower the outstanding balance.
func EntryEffect(entryType EntryType, paymentType customers.PaymentType, amount float64) customers.BalanceChange {
	if entryType.BearsBalance() {
		return customers.InvoiceEffect(amount, paymentType, +1)
	}
	return customers.BalanceChange{OutstandingDelta: -amount}
}

// ReversalEffect maps an entry to the change that undoes it on deletion,
// computed from the entry's stored fields. For Credit balance-bearing
// entries only the unpaid remainder is still reflected in the live
// outstanding balance, so that is the magnitude taken back out.
func ReversalEffect(e ManualEntry) customers.BalanceChange {
	if e.EntryType.BearsBalance() {
		ch := customers.BalanceChange{PurchasesDelta: -e.Amount}
		if e.PaymentType == customers.PaymentCredit {
			ch.OutstandingDelta = -e.Remaining()
		}
		return ch
	}
	return customers.BalanceChange{OutstandingDelta: e.Amount}
}
