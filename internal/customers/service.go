package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, c Customer) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, limit, offset int) ([]Customer, error)
	UpdateContact(ctx context.Context, id int64, name, phone, address, gstin string) error
}

// Service handles customer master data and balance reads.
type Service struct {
	repo  RepositoryPort
	cache *BalanceCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *BalanceCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// CreateCustomerInput describes a new customer.
type CreateCustomerInput struct {
	Name    string
	Phone   string
	Address string
	GSTIN   string
}

// Create inserts a customer with zeroed financials.
func (s *Service) Create(ctx context.Context, input CreateCustomerInput) (Customer, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Customer{}, fmt.Errorf("customers: name required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, Customer{
		Name:    strings.TrimSpace(input.Name),
		Phone:   input.Phone,
		Address: input.Address,
		GSTIN:   input.GSTIN,
	})
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("customers: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns customers.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Customer, error) {
	return s.repo.List(ctx, limit, offset)
}

// UpdateContact updates identity fields; financials stay untouched.
func (s *Service) UpdateContact(ctx context.Context, id int64, input CreateCustomerInput) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("customers: invalid id: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return Customer{}, fmt.Errorf("customers: name required: %w", shared.ErrValidation)
	}
	if err := s.repo.UpdateContact(ctx, id, strings.TrimSpace(input.Name), input.Phone, input.Address, input.GSTIN); err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
}

// BalanceSummary is the cached read model of a customer's position.
type BalanceSummary struct {
	CustomerID         int64     `json:"customer_id"`
	Name               string    `json:"name"`
	OutstandingBalance float64   `json:"outstanding_balance"`
	TotalPurchases     float64   `json:"total_purchases"`
	InvoiceCount       int       `json:"invoice_count"`
	LastInvoiceDate    time.Time `json:"last_invoice_date"`
}

// GetBalanceSummary serves the incremental ledger balance through the
// versioned cache.
func (s *Service) GetBalanceSummary(ctx context.Context, id int64) (BalanceSummary, error) {
	if id <= 0 {
		return BalanceSummary{}, fmt.Errorf("customers: invalid id: %w", shared.ErrValidation)
	}
	key, err := s.cache.Key(ctx, id)
	if err != nil {
		return BalanceSummary{}, err
	}
	var summary BalanceSummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return BalanceSummary{
			CustomerID:         c.ID,
			Name:               c.Name,
			OutstandingBalance: c.OutstandingBalance,
			TotalPurchases:     c.TotalPurchases,
			InvoiceCount:       c.InvoiceCount,
			LastInvoiceDate:    c.LastInvoiceDate,
		}, nil
	})
	return summary, err
}
