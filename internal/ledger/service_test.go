package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

type fakeRepo struct {
	customers map[int64]customers.Customer
	entries   map[int64]ManualEntry
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[int64]customers.Customer{},
		entries:   map[int64]ManualEntry{},
	}
}

func (r *fakeRepo) snapshot() *fakeRepo {
	cp := newFakeRepo()
	for k, v := range r.customers {
		cp.customers[k] = v
	}
	for k, v := range r.entries {
		cp.entries[k] = v
	}
	cp.nextID = r.nextID
	return cp
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	if err := fn(ctx, r); err != nil {
		*r = *before
		return err
	}
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (ManualEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return ManualEntry{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *fakeRepo) List(ctx context.Context, customerID int64, limit, offset int) ([]ManualEntry, error) {
	var out []ManualEntry
	for _, e := range r.entries {
		if customerID == 0 || e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return customers.Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) UpdateCustomerFinancials(ctx context.Context, c customers.Customer) error {
	r.customers[c.ID] = c
	return nil
}

func (r *fakeRepo) InsertEntry(ctx context.Context, e *ManualEntry) error {
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	r.entries[e.ID] = *e
	return nil
}

func (r *fakeRepo) GetEntryForUpdate(ctx context.Context, id int64) (ManualEntry, error) {
	return r.Get(ctx, id)
}

func (r *fakeRepo) UpdateEntryPaidAmount(ctx context.Context, id int64, paid float64) error {
	e, ok := r.entries[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.PaidAmount = paid
	r.entries[id] = e
	return nil
}

func (r *fakeRepo) DeleteEntry(ctx context.Context, id int64) error {
	if _, ok := r.entries[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

type fakeAudit struct{}

func (fakeAudit) Record(ctx context.Context, log shared.AuditLog) error { return nil }

type fakeBumper struct{}

func (fakeBumper) Bump(ctx context.Context) error { return nil }

type fakeCounter struct {
	n int
}

func (c *fakeCounter) Inc() { c.n++ }

func testContext() context.Context {
	return shared.ContextWithAttribution(context.Background(),
		shared.Attribution{Role: shared.RoleAdmin, UserID: 3})
}

func newTestService(repo *fakeRepo) (*Service, *fakeCounter) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clamps := &fakeCounter{}
	return NewService(logger, repo, fakeAudit{}, fakeBumper{}, clamps), clamps
}

func TestEntryEffectMapping(t *testing.T) {
	tests := []struct {
		name        string
		entryType   EntryType
		paymentType customers.PaymentType
		purchases   float64
		outstanding float64
	}{
		{"opening balance cash", EntryOpeningBalance, customers.PaymentCash, 2000, 0},
		{"opening balance credit", EntryOpeningBalance, customers.PaymentCredit, 2000, 2000},
		{"manual bill cash", EntryManualBill, customers.PaymentCash, 2000, 0},
		{"manual bill credit", EntryManualBill, customers.PaymentCredit, 2000, 2000},
		{"payment adjustment", EntryPaymentAdjustment, "", 0, -2000},
		{"credit adjustment", EntryCreditAdjustment, "", 0, -2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := EntryEffect(tt.entryType, tt.paymentType, 2000)
			require.Equal(t, tt.purchases, ch.PurchasesDelta)
			require.Equal(t, tt.outstanding, ch.OutstandingDelta)
		})
	}
}

func TestReversalEffectUsesUnpaidRemainder(t *testing.T) {
	ch := ReversalEffect(ManualEntry{
		EntryType:   EntryManualBill,
		PaymentType: customers.PaymentCredit,
		Amount:      2000,
		PaidAmount:  500,
	})
	require.Equal(t, -2000.00, ch.PurchasesDelta)
	require.Equal(t, -1500.00, ch.OutstandingDelta)

	ch = ReversalEffect(ManualEntry{
		EntryType:   EntryManualBill,
		PaymentType: customers.PaymentCash,
		Amount:      2000,
	})
	require.Equal(t, -2000.00, ch.PurchasesDelta)
	require.Zero(t, ch.OutstandingDelta)

	ch = ReversalEffect(ManualEntry{EntryType: EntryCreditAdjustment, Amount: 300})
	require.Equal(t, 300.00, ch.OutstandingDelta)
}

func TestCreateOpeningBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1, Name: "Sharma Stores"}
	svc, _ := newTestService(repo)

	entry, err := svc.Create(testContext(), CreateInput{
		CustomerID:  1,
		EntryType:   EntryOpeningBalance,
		PaymentType: customers.PaymentCredit,
		Amount:      2000,
		Description: "carried forward",
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Zero(t, entry.PaidAmount)

	cust := repo.customers[1]
	require.Equal(t, 2000.00, cust.TotalPurchases)
	require.Equal(t, 2000.00, cust.OutstandingBalance)
}

func TestCreateFreezesCustomerSnapshot(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{
		ID: 1, Name: "Sharma Stores", Phone: "98123", GSTIN: "08AAACS1234F1Z5",
	}
	svc, _ := newTestService(repo)
	ctx := testContext()

	entry, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		EntryType:   EntryOpeningBalance,
		PaymentType: customers.PaymentCredit,
		Amount:      2000,
	})
	require.NoError(t, err)
	require.Equal(t, "Sharma Stores", entry.Customer.Name)
	require.Equal(t, "08AAACS1234F1Z5", entry.Customer.GSTIN)

	// Renaming the customer afterwards must not touch the recorded entry.
	c := repo.customers[1]
	c.Name = "Sharma & Sons"
	repo.customers[1] = c

	stored, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "Sharma Stores", stored.Customer.Name)

	// The payment child carries the identity as of payment time.
	_, child, err := svc.RecordPayment(ctx, entry.ID, RecordPaymentInput{Amount: 500})
	require.NoError(t, err)
	require.Equal(t, "Sharma & Sons", child.Customer.Name)
}

func TestCreateAdjustmentClampsAtZero(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1, OutstandingBalance: 100}
	svc, clamps := newTestService(repo)

	_, err := svc.Create(testContext(), CreateInput{
		CustomerID: 1,
		EntryType:  EntryCreditAdjustment,
		Amount:     250,
	})
	require.NoError(t, err)

	require.Zero(t, repo.customers[1].OutstandingBalance)
	require.Equal(t, 1, clamps.n)
}

func TestCreateRejectsBadInput(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1}
	svc, _ := newTestService(repo)
	ctx := testContext()

	_, err := svc.Create(ctx, CreateInput{CustomerID: 1, EntryType: "bogus", Amount: 10})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{CustomerID: 1, EntryType: EntryManualBill, Amount: 10})
	require.ErrorIs(t, err, shared.ErrValidation) // missing payment type

	_, err = svc.Create(ctx, CreateInput{
		CustomerID: 1, EntryType: EntryManualBill,
		PaymentType: customers.PaymentCash, Amount: 0,
	})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = svc.Create(ctx, CreateInput{
		CustomerID: 99, EntryType: EntryCreditAdjustment, Amount: 10,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordPaymentAgainstEntry(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1, OutstandingBalance: 2000, TotalPurchases: 2000}
	svc, _ := newTestService(repo)
	ctx := testContext()

	parent, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		EntryType:   EntryOpeningBalance,
		PaymentType: customers.PaymentCredit,
		Amount:      2000,
	})
	require.NoError(t, err)
	require.Equal(t, 4000.00, repo.customers[1].OutstandingBalance)

	updated, child, err := svc.RecordPayment(ctx, parent.ID, RecordPaymentInput{
		Amount: 500, Method: "UPI", Reference: "TXN123",
	})
	require.NoError(t, err)

	require.Equal(t, 500.00, updated.PaidAmount)
	require.Equal(t, 1500.00, updated.Remaining())
	require.Equal(t, EntryPaymentAdjustment, child.EntryType)
	require.Equal(t, 500.00, child.Amount)
	require.NotNil(t, child.ParentEntryID)
	require.Equal(t, parent.ID, *child.ParentEntryID)
	require.Contains(t, child.Description, "UPI")

	require.Equal(t, 3500.00, repo.customers[1].OutstandingBalance)
	// two ledger writes: parent increment and child entry
	require.Len(t, repo.entries, 2)
}

func TestRecordPaymentRejectsWrongEntryKind(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1, OutstandingBalance: 1000}
	svc, _ := newTestService(repo)
	ctx := testContext()

	cashBill, err := svc.Create(ctx, CreateInput{
		CustomerID: 1, EntryType: EntryManualBill,
		PaymentType: customers.PaymentCash, Amount: 700,
	})
	require.NoError(t, err)
	_, _, err = svc.RecordPayment(ctx, cashBill.ID, RecordPaymentInput{Amount: 100})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	adj, err := svc.Create(ctx, CreateInput{
		CustomerID: 1, EntryType: EntryCreditAdjustment, Amount: 50,
	})
	require.NoError(t, err)
	_, _, err = svc.RecordPayment(ctx, adj.ID, RecordPaymentInput{Amount: 10})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecordPaymentRejectsOverpaymentAndFullyPaid(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1}
	svc, _ := newTestService(repo)
	ctx := testContext()

	parent, err := svc.Create(ctx, CreateInput{
		CustomerID: 1, EntryType: EntryManualBill,
		PaymentType: customers.PaymentCredit, Amount: 1000,
	})
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, parent.ID, RecordPaymentInput{Amount: 1200})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, _, err = svc.RecordPayment(ctx, parent.ID, RecordPaymentInput{Amount: 1000})
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, parent.ID, RecordPaymentInput{Amount: 1})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeleteEntryReversesStoredEffect(t *testing.T) {
	repo := newFakeRepo()
	repo.customers[1] = customers.Customer{ID: 1}
	svc, _ := newTestService(repo)
	ctx := testContext()

	parent, err := svc.Create(ctx, CreateInput{
		CustomerID: 1, EntryType: EntryManualBill,
		PaymentType: customers.PaymentCredit, Amount: 2000,
	})
	require.NoError(t, err)
	_, _, err = svc.RecordPayment(ctx, parent.ID, RecordPaymentInput{Amount: 500})
	require.NoError(t, err)
	require.Equal(t, 1500.00, repo.customers[1].OutstandingBalance)

	// only the unpaid remainder is still in the live balance
	require.NoError(t, svc.Delete(ctx, parent.ID))

	cust := repo.customers[1]
	require.Zero(t, cust.TotalPurchases)
	require.Zero(t, cust.OutstandingBalance)
}

func TestDeleteEntryNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	require.ErrorIs(t, svc.Delete(testContext(), 9), shared.ErrNotFound)
}
