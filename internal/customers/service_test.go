package customers

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
	_ "github.com/subhankar-das-phantom/Billing-Software-sub001/testing"
)

type mockRepo struct {
	customers map[int64]Customer
	getCalls  int
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{customers: make(map[int64]Customer), nextID: 1}
}

func (m *mockRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.customers[c.ID] = c
	return c, nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (Customer, error) {
	m.getCalls++
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("customers: customer %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]Customer, error) {
	var out []Customer
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockRepo) UpdateContact(ctx context.Context, id int64, name, phone, address, gstin string) error {
	c, ok := m.customers[id]
	if !ok {
		return fmt.Errorf("customers: customer %d: %w", id, shared.ErrNotFound)
	}
	c.Name, c.Phone, c.Address, c.GSTIN = name, phone, address, gstin
	m.customers[id] = c
	return nil
}

func newTestService(t *testing.T, repo *mockRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewBalanceCache(client, time.Minute))
}

func TestCreateValidatesName(t *testing.T) {
	svc := newTestService(t, newMockRepo())
	_, err := svc.Create(context.Background(), CreateCustomerInput{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateContactLeavesFinancialsAlone(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateCustomerInput{Name: "Gupta Pharmacy", Phone: "98123"})
	require.NoError(t, err)

	c := repo.customers[created.ID]
	c.TotalPurchases = 5000
	c.OutstandingBalance = 1200
	repo.customers[created.ID] = c

	updated, err := svc.UpdateContact(ctx, created.ID, CreateCustomerInput{Name: "Gupta Pharmacy & Co", Phone: "98124"})
	require.NoError(t, err)
	require.Equal(t, "Gupta Pharmacy & Co", updated.Name)
	require.Equal(t, 5000.0, updated.TotalPurchases)
	require.Equal(t, 1200.0, updated.OutstandingBalance)
}

func TestGetBalanceSummaryCachesUntilBump(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateCustomerInput{Name: "Sharma Medical"})
	require.NoError(t, err)
	c := repo.customers[created.ID]
	c.OutstandingBalance = 1180
	c.TotalPurchases = 3540
	c.InvoiceCount = 3
	repo.customers[created.ID] = c

	summary, err := svc.GetBalanceSummary(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1180.0, summary.OutstandingBalance)
	require.Equal(t, 3540.0, summary.TotalPurchases)
	require.Equal(t, 1, repo.getCalls)

	// Second read is served from cache.
	_, err = svc.GetBalanceSummary(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.getCalls)

	// A committed ledger event bumps the version; the next read reloads.
	c.OutstandingBalance = 680
	repo.customers[created.ID] = c
	require.NoError(t, svc.cache.Bump(ctx))

	summary, err = svc.GetBalanceSummary(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 680.0, summary.OutstandingBalance)
	require.Equal(t, 2, repo.getCalls)
}

func TestGetBalanceSummaryUnknownCustomer(t *testing.T) {
	svc := newTestService(t, newMockRepo())
	_, err := svc.GetBalanceSummary(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
