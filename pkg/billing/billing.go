package billing

import (
	"context"
	"errors"
	"math"
	"strings"

	"ivisionary/pkg/domain"
)

const (
	IntervalMonth = "month"
	IntervalYear  = "year"
	Currency      = "eur"
)

var (
	// ErrNotConfigured is returned when no secret key is set.
	ErrNotConfigured = errors.New("payment processor not configured")
	ErrInvalidInput  = errors.New("invalid product input")
)

// Gateway is the payment-processor surface the admin console uses.
type Gateway interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Sync(ctx context.Context) (SyncResult, error)
}

// SyncResult is a full snapshot of products and prices.
type SyncResult struct {
	Products []domain.Product `json:"products"`
	Prices   []domain.Price   `json:"prices"`
}

// ValidateProductInput checks a create or update request.
func ValidateProductInput(in domain.ProductInput, requirePrices bool) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Join(ErrInvalidInput, errors.New("name is required"))
	}
	if in.MonthlyPrice < 0 || in.YearlyPrice < 0 {
		return errors.Join(ErrInvalidInput, errors.New("prices must not be negative"))
	}
	if requirePrices && (in.MonthlyPrice <= 0 || in.YearlyPrice <= 0) {
		return errors.Join(ErrInvalidInput, errors.New("monthly and yearly prices are required"))
	}
	return nil
}

// ToCents converts a EUR amount to minor units.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts minor units to a EUR amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// attachPrices files each active recurring price under its product.
func attachPrices(products []domain.Product, prices []domain.Price) []domain.Product {
	index := make(map[string]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}
	for _, price := range prices {
		i, ok := index[price.ProductID]
		if !ok || !price.Active {
			continue
		}
		pr := price
		switch price.Interval {
		case IntervalMonth:
			if products[i].Monthly == nil {
				products[i].Monthly = &pr
			}
		case IntervalYear:
			if products[i].Yearly == nil {
				products[i].Yearly = &pr
			}
		}
	}
	return products
}
