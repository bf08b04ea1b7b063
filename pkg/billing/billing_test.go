package billing

import (
	"context"
	"errors"
	"testing"

	"ivisionary/pkg/domain"
)

var _ Gateway = (*StripeGateway)(nil)
var _ Gateway = (*MemoryGateway)(nil)

func TestToCentsRounds(t *testing.T) {
	if got := ToCents(29.99); got != 2999 {
		t.Fatalf("ToCents(29.99) = %d", got)
	}
	if got := FromCents(5000); got != 50 {
		t.Fatalf("FromCents(5000) = %v", got)
	}
}

func TestValidateProductInput(t *testing.T) {
	if err := ValidateProductInput(domain.ProductInput{Name: " "}, false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank name, got %v", err)
	}
	if err := ValidateProductInput(domain.ProductInput{Name: "Pro", MonthlyPrice: 50}, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected yearly price to be required")
	}
	if err := ValidateProductInput(domain.ProductInput{Name: "Pro", MonthlyPrice: -1}, false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected negative price to fail")
	}
}

func TestMemoryGatewayLifecycle(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	p, err := g.CreateProduct(ctx, domain.ProductInput{Name: "Pro 10", MonthlyPrice: 50, YearlyPrice: 500})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Monthly == nil || p.Monthly.Amount != 50 || p.Yearly == nil || p.Yearly.Interval != IntervalYear {
		t.Fatalf("unexpected prices: %+v", p)
	}

	updated, err := g.UpdateProduct(ctx, p.ID, domain.ProductInput{Name: "Pro 10+", MonthlyPrice: 55, MonthlyID: p.Monthly.ID})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Monthly.ID == p.Monthly.ID || updated.Monthly.Amount != 55 {
		t.Fatalf("changed amount must create a new price: %+v", updated.Monthly)
	}

	snap, _ := g.Sync(ctx)
	if len(snap.Products) != 1 || snap.Products[0].Name != "Pro 10+" {
		t.Fatalf("unexpected products: %+v", snap.Products)
	}
	if len(snap.Prices) != 3 {
		t.Fatalf("expected archived + 2 active prices, got %d", len(snap.Prices))
	}
	if snap.Products[0].Monthly == nil || snap.Products[0].Monthly.ID != updated.Monthly.ID {
		t.Fatalf("listing must expose the active monthly price")
	}

	if err := g.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if list, _ := g.ListProducts(ctx); len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}
