package invoicing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

type fakeRepo struct {
	customers map[int64]customers.Customer
	products  map[int64]catalog.Product
	invoices  map[int64]Invoice
	movements []catalog.StockMovement
	seq       map[int]int
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[int64]customers.Customer{},
		products:  map[int64]catalog.Product{},
		invoices:  map[int64]Invoice{},
		seq:       map[int]int{},
	}
}

func (r *fakeRepo) snapshot() *fakeRepo {
	cp := newFakeRepo()
	for k, v := range r.customers {
		cp.customers[k] = v
	}
	for k, v := range r.products {
		cp.products[k] = v
	}
	for k, v := range r.invoices {
		v.Items = append([]InvoiceItem(nil), v.Items...)
		cp.invoices[k] = v
	}
	for k, v := range r.seq {
		cp.seq[k] = v
	}
	cp.movements = append([]catalog.StockMovement(nil), r.movements...)
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

func (r *fakeRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (r *fakeRepo) List(ctx context.Context, f ListFilter) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (r *fakeRepo) NextSeq(ctx context.Context, year int) (int, error) {
	r.seq[year]++
	return r.seq[year], nil
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

func (r *fakeRepo) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) UpdateProductStock(ctx context.Context, id int64, qty int) error {
	p := r.products[id]
	p.CurrentStockQty = qty
	r.products[id] = p
	return nil
}

func (r *fakeRepo) InsertStockMovement(ctx context.Context, m catalog.StockMovement) error {
	r.movements = append(r.movements, m)
	return nil
}

func (r *fakeRepo) InsertInvoice(ctx context.Context, inv *Invoice) error {
	r.nextID++
	inv.ID = r.nextID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *fakeRepo) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	inv := r.invoices[invoiceID]
	inv.Items = append([]InvoiceItem(nil), items...)
	r.invoices[invoiceID] = inv
	return nil
}

func (r *fakeRepo) DeleteItems(ctx context.Context, invoiceID int64) error {
	inv := r.invoices[invoiceID]
	inv.Items = nil
	r.invoices[invoiceID] = inv
	return nil
}

func (r *fakeRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return r.Get(ctx, id)
}

func (r *fakeRepo) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	if _, ok := r.invoices[inv.ID]; !ok {
		return shared.ErrNotFound
	}
	inv.UpdatedAt = time.Now()
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	inv := r.invoices[id]
	inv.Status = status
	r.invoices[id] = inv
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (a *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type fakeBumper struct {
	bumps int
}

func (b *fakeBumper) Bump(ctx context.Context) error {
	b.bumps++
	return nil
}

type fakeCounter struct {
	n int
}

func (c *fakeCounter) Inc() { c.n++ }

func testContext() context.Context {
	return shared.ContextWithAttribution(context.Background(),
		shared.Attribution{Role: shared.RoleAdmin, UserID: 1})
}

func newTestService(repo *fakeRepo) (*Service, *fakeAudit, *fakeBumper, *fakeCounter) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := &fakeAudit{}
	bumper := &fakeBumper{}
	clamps := &fakeCounter{}
	seller := SellerSnapshot{Name: "Evergreen Distributors", GSTIN: "27AABCE1234F1Z5"}
	return NewService(logger, repo, audit, bumper, seller, clamps), audit, bumper, clamps
}

func seedRepo(repo *fakeRepo) {
	repo.customers[1] = customers.Customer{ID: 1, Name: "Sharma Stores"}
	repo.customers[2] = customers.Customer{ID: 2, Name: "Gupta Traders"}
	repo.products[10] = catalog.Product{
		ID: 10, Name: "Paracetamol 500mg", Batch: "B42", UnitRate: 100,
		TaxRate: catalog.TaxRate18, CurrentStockQty: 100,
	}
	repo.products[11] = catalog.Product{
		ID: 11, Name: "Cough Syrup", Batch: "C7", UnitRate: 80,
		TaxRate: catalog.TaxRate12, CurrentStockQty: 20,
	}
}

func TestCreateInvoice(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, audit, bumper, _ := newTestService(repo)

	inv, err := svc.Create(testContext(), CreateInput{
		CustomerID:  1,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Items: []ItemInput{
			{ProductID: 10, QuantitySold: 30, FreeQuantity: 5},
		},
		PaymentType: customers.PaymentCredit,
	})
	require.NoError(t, err)

	require.Equal(t, "INV-2026-0001", inv.Number)
	require.Equal(t, StatusCreated, inv.Status)
	require.Equal(t, PaymentUnpaid, inv.PaymentStatus)
	require.Equal(t, 3540.00, inv.Totals.NetTotal)
	require.Equal(t, "Paracetamol 500mg", inv.Items[0].ProductName)
	require.Equal(t, "B42", inv.Items[0].Batch)
	require.Contains(t, inv.AmountInWords, "Rupees")

	// stock drops by sold plus free units
	require.Equal(t, 65, repo.products[10].CurrentStockQty)
	require.Len(t, repo.movements, 1)
	require.Equal(t, catalog.MovementInvoice, repo.movements[0].Type)
	require.Equal(t, -35, repo.movements[0].QtyChange)
	require.Equal(t, inv.Number, repo.movements[0].Reference)

	// credit invoice raises both purchases and outstanding
	cust := repo.customers[1]
	require.Equal(t, 3540.00, cust.TotalPurchases)
	require.Equal(t, 3540.00, cust.OutstandingBalance)
	require.Equal(t, 1, cust.InvoiceCount)
	require.Equal(t, inv.InvoiceDate, cust.LastInvoiceDate)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "invoice.create", audit.logs[0].Action)
	require.Equal(t, 1, bumper.bumps)
}

func TestCreateCashInvoiceLeavesOutstandingAlone(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)

	_, err := svc.Create(testContext(), CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 10}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)

	cust := repo.customers[1]
	require.Equal(t, 1180.00, cust.TotalPurchases)
	require.Zero(t, cust.OutstandingBalance)
}

func TestCreateInvoiceNumbersIncreaseWithinYear(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)

	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.Create(testContext(), CreateInput{
		CustomerID: 1, InvoiceDate: date,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 1}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)
	second, err := svc.Create(testContext(), CreateInput{
		CustomerID: 1, InvoiceDate: date,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 1}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)

	require.Equal(t, "INV-2026-0001", first.Number)
	require.Equal(t, "INV-2026-0002", second.Number)
}

func TestCreateInvoiceInsufficientStockRollsBack(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, bumper, _ := newTestService(repo)

	_, err := svc.Create(testContext(), CreateInput{
		CustomerID: 1,
		Items: []ItemInput{
			{ProductID: 10, QuantitySold: 10},
			{ProductID: 11, QuantitySold: 25}, // only 20 in stock
		},
		PaymentType: customers.PaymentCredit,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// nothing committed: first line's deduction is rolled back too
	require.Equal(t, 100, repo.products[10].CurrentStockQty)
	require.Equal(t, 20, repo.products[11].CurrentStockQty)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.invoices)
	require.Zero(t, repo.customers[1].TotalPurchases)
	require.Zero(t, bumper.bumps)
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)

	_, err := svc.Create(testContext(), CreateInput{
		CustomerID:  99,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 1}},
		PaymentType: customers.PaymentCash,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateInvoiceRequiresAttribution(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 1}},
		PaymentType: customers.PaymentCash,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateInvoiceReversesAndReapplies(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 30, FreeQuantity: 5}},
		PaymentType: customers.PaymentCredit,
	})
	require.NoError(t, err)
	require.Equal(t, 65, repo.products[10].CurrentStockQty)
	oldNet := inv.Totals.NetTotal

	updated, err := svc.Update(ctx, inv.ID, UpdateInput{
		Items: []ItemInput{{ProductID: 10, QuantitySold: 10}},
	})
	require.NoError(t, err)

	// 65 after create, +35 reversal, -10 edit
	require.Equal(t, 90, repo.products[10].CurrentStockQty)
	require.Len(t, repo.movements, 3)
	require.Equal(t, catalog.MovementInvoiceEditReversal, repo.movements[1].Type)
	require.Equal(t, 35, repo.movements[1].QtyChange)
	require.Equal(t, catalog.MovementInvoiceEdit, repo.movements[2].Type)
	require.Equal(t, -10, repo.movements[2].QtyChange)

	require.Equal(t, 1180.00, updated.Totals.NetTotal)
	require.Equal(t, inv.Number, updated.Number)
	require.Len(t, updated.Items, 1)
	require.Equal(t, 10, updated.Items[0].QuantitySold)

	// purchases track the new total; the outstanding balance keeps the
	// original increment because edits never move it
	cust := repo.customers[1]
	require.Equal(t, 1180.00, cust.TotalPurchases)
	require.Equal(t, oldNet, cust.OutstandingBalance)
}

func TestUpdateInvoiceValidatesAgainstPostReversalStock(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 11, QuantitySold: 15}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)
	require.Equal(t, 5, repo.products[11].CurrentStockQty)

	// 5 on hand is not enough for 18, but the edit first restores the
	// original 15, so 18 fits
	updated, err := svc.Update(ctx, inv.ID, UpdateInput{
		Items: []ItemInput{{ProductID: 11, QuantitySold: 18}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, repo.products[11].CurrentStockQty)
	require.Equal(t, 18, updated.Items[0].QuantitySold)

	// 25 does not fit even post-reversal and everything rolls back
	_, err = svc.Update(ctx, inv.ID, UpdateInput{
		Items: []ItemInput{{ProductID: 11, QuantitySold: 25}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 2, repo.products[11].CurrentStockQty)
}

func TestUpdateInvoiceIdempotentWhenUnchanged(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 10, DiscountPercent: 5}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)
	stockAfterCreate := repo.products[10].CurrentStockQty
	purchasesAfterCreate := repo.customers[1].TotalPurchases

	updated, err := svc.Update(ctx, inv.ID, UpdateInput{
		Items: []ItemInput{{ProductID: 10, QuantitySold: 10, DiscountPercent: 5}},
	})
	require.NoError(t, err)

	require.Equal(t, inv.Totals, updated.Totals)
	require.Equal(t, stockAfterCreate, repo.products[10].CurrentStockQty)
	require.Equal(t, purchasesAfterCreate, repo.customers[1].TotalPurchases)
}

func TestUpdateInvoiceReassignsCustomer(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 10}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, inv.ID, UpdateInput{
		CustomerID: 2,
		Items:      []ItemInput{{ProductID: 10, QuantitySold: 10}},
	})
	require.NoError(t, err)

	require.Equal(t, int64(2), updated.CustomerID)
	require.Equal(t, "Gupta Traders", updated.Customer.Name)
	require.Zero(t, repo.customers[1].TotalPurchases)
	require.Zero(t, repo.customers[1].InvoiceCount)
	require.Equal(t, 1180.00, repo.customers[2].TotalPurchases)
	require.Equal(t, 1, repo.customers[2].InvoiceCount)
}

func TestUpdateCancelledInvoiceRejected(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 5}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, inv.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.Update(ctx, inv.ID, UpdateInput{
		Items: []ItemInput{{ProductID: 10, QuantitySold: 1}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestUpdateInvoiceBelowPaidAmountRejected(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 10}},
		PaymentType: customers.PaymentCredit,
	})
	require.NoError(t, err)

	stored := repo.invoices[inv.ID]
	stored.PaidAmount = 1000
	stored.PaymentStatus = PaymentPartial
	repo.invoices[inv.ID] = stored

	_, err = svc.Update(ctx, inv.ID, UpdateInput{
		Items: []ItemInput{{ProductID: 10, QuantitySold: 1}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestSetStatusLifecycle(t *testing.T) {
	repo := newFakeRepo()
	seedRepo(repo)
	svc, _, _, _ := newTestService(repo)
	ctx := testContext()

	inv, err := svc.Create(ctx, CreateInput{
		CustomerID:  1,
		Items:       []ItemInput{{ProductID: 10, QuantitySold: 5}},
		PaymentType: customers.PaymentCash,
	})
	require.NoError(t, err)
	stockAfterCreate := repo.products[10].CurrentStockQty

	printed, err := svc.SetStatus(ctx, inv.ID, StatusPrinted)
	require.NoError(t, err)
	require.Equal(t, StatusPrinted, printed.Status)

	cancelled, err := svc.SetStatus(ctx, inv.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// cancellation is a flag; stock and financials stay as issued
	require.Equal(t, stockAfterCreate, repo.products[10].CurrentStockQty)
	require.Equal(t, inv.Totals.NetTotal, repo.customers[1].TotalPurchases)

	_, err = svc.SetStatus(ctx, inv.ID, StatusPrinted)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
