package invoicing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
)

func TestComputeLineAmountsSplitsGSTEvenly(t *testing.T) {
	amounts := ComputeLineAmounts(10, 100, catalog.TaxRate18, 0)

	require.Equal(t, 1000.00, amounts.BaseAmount)
	require.Equal(t, 0.00, amounts.DiscountAmount)
	require.Equal(t, 1000.00, amounts.TaxableAmount)
	require.Equal(t, 180.00, amounts.GSTAmount)
	require.Equal(t, 90.00, amounts.CGSTAmount)
	require.Equal(t, 90.00, amounts.SGSTAmount)
	require.Equal(t, 1180.00, amounts.TotalAmount)
}

func TestComputeLineAmountsWithDiscount(t *testing.T) {
	amounts := ComputeLineAmounts(4, 250, catalog.TaxRate12, 10)

	require.Equal(t, 1000.00, amounts.BaseAmount)
	require.Equal(t, 100.00, amounts.DiscountAmount)
	require.Equal(t, 900.00, amounts.TaxableAmount)
	require.Equal(t, 108.00, amounts.GSTAmount)
	require.Equal(t, 54.00, amounts.CGSTAmount)
	require.Equal(t, 54.00, amounts.SGSTAmount)
	require.Equal(t, 1008.00, amounts.TotalAmount)
}

func TestComputeLineAmountsRoundsEachValue(t *testing.T) {
	amounts := ComputeLineAmounts(3, 9.99, catalog.TaxRate5, 0)

	require.Equal(t, 29.97, amounts.BaseAmount)
	require.Equal(t, 1.50, amounts.GSTAmount)
	require.Equal(t, 0.75, amounts.CGSTAmount)
	require.Equal(t, 0.75, amounts.SGSTAmount)
	require.Equal(t, 31.47, amounts.TotalAmount)
	require.InDelta(t, amounts.GSTAmount, amounts.CGSTAmount+amounts.SGSTAmount, 0.01)
}

func TestComputeLineAmountsExemptProduct(t *testing.T) {
	amounts := ComputeLineAmounts(5, 40, catalog.TaxRateExempt, 0)

	require.Equal(t, 200.00, amounts.BaseAmount)
	require.Zero(t, amounts.GSTAmount)
	require.Zero(t, amounts.CGSTAmount)
	require.Equal(t, 200.00, amounts.TotalAmount)
}

func TestComputeLineAmountsIgnoresFreeQuantity(t *testing.T) {
	// Free units never enter pricing; two items differing only in free
	// quantity must price identically.
	a := ComputeLineAmounts(10, 50, catalog.TaxRate18, 5)
	b := ComputeLineAmounts(10, 50, catalog.TaxRate18, 5)
	require.Equal(t, a, b)
}

func TestComputeTotalsSumsLineFields(t *testing.T) {
	items := []InvoiceItem{
		{LineAmounts: ComputeLineAmounts(10, 100, catalog.TaxRate18, 0)},
		{LineAmounts: ComputeLineAmounts(3, 9.99, catalog.TaxRate5, 0)},
	}
	totals := ComputeTotals(items)

	require.Equal(t, 1029.97, totals.BaseTotal)
	require.Equal(t, 181.50, totals.GSTTotal)
	require.Equal(t, 1211.47, totals.NetTotal)
	require.Equal(t, items[0].TotalAmount+items[1].TotalAmount, totals.NetTotal)
}

func TestDerivePaymentStatus(t *testing.T) {
	require.Equal(t, PaymentUnpaid, DerivePaymentStatus(0, 1180))
	require.Equal(t, PaymentPartial, DerivePaymentStatus(500, 1180))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(1180, 1180))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(1200, 1180))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(0, 0))
	// A fully discounted line owes nothing, so the invoice starts out Paid.
	require.Equal(t, PaymentPaid, DerivePaymentStatus(0, ComputeLineAmounts(10, 100, catalog.TaxRate18, 100).TotalAmount))
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusCreated, StatusPrinted))
	require.True(t, CanTransition(StatusCreated, StatusCancelled))
	require.True(t, CanTransition(StatusPrinted, StatusCancelled))
	require.False(t, CanTransition(StatusPrinted, StatusCreated))
	require.False(t, CanTransition(StatusCancelled, StatusPrinted))
	require.False(t, CanTransition(StatusCreated, StatusCreated))
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "INV-2026-0001", FormatNumber(2026, 1))
	require.Equal(t, "INV-2026-0042", FormatNumber(2026, 42))
}
