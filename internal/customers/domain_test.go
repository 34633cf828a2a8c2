package customers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvoiceEffect(t *testing.T) {
	ch := InvoiceEffect(1180, PaymentCredit, 1)
	require.Equal(t, 1180.0, ch.PurchasesDelta)
	require.Equal(t, 1180.0, ch.OutstandingDelta)

	ch = InvoiceEffect(1180, PaymentCash, 1)
	require.Equal(t, 1180.0, ch.PurchasesDelta)
	require.Zero(t, ch.OutstandingDelta)

	ch = InvoiceEffect(1180, PaymentCredit, -1)
	require.Equal(t, -1180.0, ch.PurchasesDelta)
	require.Equal(t, -1180.0, ch.OutstandingDelta)
}

func TestPaymentEffect(t *testing.T) {
	ch := PaymentEffect(500, 1)
	require.Zero(t, ch.PurchasesDelta)
	require.Equal(t, -500.0, ch.OutstandingDelta)

	ch = PaymentEffect(500, -1)
	require.Equal(t, 500.0, ch.OutstandingDelta)
}

func TestApplyChange(t *testing.T) {
	c := Customer{TotalPurchases: 1000, OutstandingBalance: 400}

	clamped := ApplyChange(&c, BalanceChange{PurchasesDelta: 1180, OutstandingDelta: 1180})
	require.False(t, clamped)
	require.Equal(t, 2180.0, c.TotalPurchases)
	require.Equal(t, 1580.0, c.OutstandingBalance)

	clamped = ApplyChange(&c, BalanceChange{OutstandingDelta: -2000})
	require.True(t, clamped)
	require.Zero(t, c.OutstandingBalance)
	// Purchases are never clamped.
	require.Equal(t, 2180.0, c.TotalPurchases)
}

func TestSnapshotFreezesIdentity(t *testing.T) {
	c := Customer{Name: "Sharma Medical", Phone: "98123", Address: "Jaipur", GSTIN: "08AAACS1234F1Z5"}
	snap := c.Snapshot()
	c.Name = "Renamed"
	require.Equal(t, "Sharma Medical", snap.Name)
	require.Equal(t, "08AAACS1234F1Z5", snap.GSTIN)
}
