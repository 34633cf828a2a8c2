package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

func TestTaxRateValid(t *testing.T) {
	for _, rate := range []TaxRate{0, 5, 12, 18, 28} {
		require.True(t, rate.Valid(), "rate %d", rate)
	}
	for _, rate := range []TaxRate{-5, 1, 10, 15, 100} {
		require.False(t, rate.Valid(), "rate %d", rate)
	}
}

func TestCheckStock(t *testing.T) {
	p := Product{ID: 1, CurrentStockQty: 10}
	require.NoError(t, CheckStock(p, 10))
	err := CheckStock(p, 11)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestApplyMovementCapturesBeforeAfter(t *testing.T) {
	p := Product{ID: 7, CurrentStockQty: 40}

	m, err := ApplyMovement(&p, MovementInvoice, -15, "INV-2026-0001")
	require.NoError(t, err)
	require.Equal(t, 25, p.CurrentStockQty)
	require.Equal(t, int64(7), m.ProductID)
	require.Equal(t, MovementInvoice, m.Type)
	require.Equal(t, -15, m.QtyChange)
	require.Equal(t, 40, m.PreviousQty)
	require.Equal(t, 25, m.NewQty)
	require.Equal(t, "INV-2026-0001", m.Reference)

	m, err = ApplyMovement(&p, MovementInvoiceEditReversal, 15, "INV-2026-0001")
	require.NoError(t, err)
	require.Equal(t, 40, p.CurrentStockQty)
	require.Equal(t, 25, m.PreviousQty)
}

func TestApplyMovementRejectsNegativeStock(t *testing.T) {
	p := Product{ID: 7, CurrentStockQty: 5}
	_, err := ApplyMovement(&p, MovementAdjustment, -6, "shrinkage")
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 5, p.CurrentStockQty)
}
