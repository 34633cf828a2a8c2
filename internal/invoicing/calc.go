package invoicing

import (
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/money"
)

// ComputeLineAmounts derives the monetary values of one invoice line.
// Every derived value is rounded to two decimals at the point it is
// computed, so re-running the calculation over a stored line reproduces
// the stored amounts exactly. GST splits into equal CGST and SGST halves.
// Free quantity never enters any monetary calculation.
func ComputeLineAmounts(qtySold int, ratePerUnit float64, taxRate catalog.TaxRate, discountPct float64) LineAmounts {
	base := money.Round(float64(qtySold) * ratePerUnit)
	discount := money.Percent(base, discountPct)
	taxable := money.Round(base - discount)
	gst := money.Percent(taxable, float64(taxRate))
	half := money.Round(gst / 2)
	return LineAmounts{
		BaseAmount:     base,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		GSTAmount:      gst,
		CGSTAmount:     half,
		SGSTAmount:     half,
		TotalAmount:    money.Round(taxable + gst),
	}
}

// ComputeTotals sums each line field independently and rounds the sums.
func ComputeTotals(items []InvoiceItem) Totals {
	var t Totals
	for _, it := range items {
		t.BaseTotal += it.BaseAmount
		t.DiscountTotal += it.DiscountAmount
		t.TaxableTotal += it.TaxableAmount
		t.GSTTotal += it.GSTAmount
		t.CGSTTotal += it.CGSTAmount
		t.SGSTTotal += it.SGSTAmount
		t.NetTotal += it.TotalAmount
	}
	t.BaseTotal = money.Round(t.BaseTotal)
	t.DiscountTotal = money.Round(t.DiscountTotal)
	t.TaxableTotal = money.Round(t.TaxableTotal)
	t.GSTTotal = money.Round(t.GSTTotal)
	t.CGSTTotal = money.Round(t.CGSTTotal)
	t.SGSTTotal = money.Round(t.SGSTTotal)
	t.NetTotal = money.Round(t.NetTotal)
	return t
}
