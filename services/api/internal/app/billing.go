package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ivisionary/pkg/billing"
	"ivisionary/pkg/domain"
)

func defaultBillingConfig(publishableKey string) domain.BillingConfig {
	return domain.BillingConfig{
		PublishableKey: strings.TrimSpace(publishableKey),
		Products: domain.BillingPlans{
			Basic: domain.Plan{
				ID: "prod_basic", PriceID: "price_basic_monthly", Name: "Plan Básico",
				Prices: domain.PlanPrices{Monthly: 30, Yearly: 300},
			},
			Pro: domain.Plan{
				ID: "prod_pro", PriceID: "price_pro_monthly", Name: "Pro 10",
				Prices: domain.PlanPrices{Monthly: 50, Yearly: 500},
			},
			ProUltra: domain.Plan{
				ID: "prod_ultra", PriceID: "price_ultra_monthly", Name: "Pro Ultra",
				Prices: domain.PlanPrices{Monthly: 100, Yearly: 1000},
			},
		},
	}
}

// BillingConfig returns what the browser needs to start a checkout.
func (a *App) BillingConfig() domain.BillingConfig {
	a.billingMu.RLock()
	defer a.billingMu.RUnlock()
	return a.billingConfig
}

// UpdateBillingConfig replaces the plan catalogue. An empty publishable key keeps the current one.
func (a *App) UpdateBillingConfig(cfg domain.BillingConfig) (domain.BillingConfig, error) {
	verr := &ValidationError{}
	plans := []struct {
		field string
		plan  domain.Plan
	}{
		{"products.basic", cfg.Products.Basic},
		{"products.pro", cfg.Products.Pro},
		{"products.proUltra", cfg.Products.ProUltra},
	}
	for _, p := range plans {
		if strings.TrimSpace(p.plan.ID) == "" || strings.TrimSpace(p.plan.Name) == "" {
			verr.add(p.field, "Plan id and name are required")
		}
		if p.plan.Prices.Monthly < 0 || p.plan.Prices.Yearly < 0 {
			verr.add(p.field, "Prices must not be negative")
		}
	}
	if err := verr.err(); err != nil {
		return domain.BillingConfig{}, err
	}

	a.billingMu.Lock()
	defer a.billingMu.Unlock()
	if strings.TrimSpace(cfg.PublishableKey) == "" {
		cfg.PublishableKey = a.billingConfig.PublishableKey
	}
	a.billingConfig = cfg
	return cfg, nil
}

func (a *App) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := a.billing.ListProducts(ctx)
	if err != nil {
		return nil, billingError("list products", err)
	}
	return products, nil
}

func (a *App) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	p, err := a.billing.CreateProduct(ctx, in)
	if err != nil {
		return domain.Product{}, billingError("create product", err)
	}
	return p, nil
}

func (a *App) UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (domain.Product, error) {
	p, err := a.billing.UpdateProduct(ctx, strings.TrimSpace(id), in)
	if err != nil {
		return domain.Product{}, billingError("update product", err)
	}
	return p, nil
}

func (a *App) DeleteProduct(ctx context.Context, id string) error {
	if err := a.billing.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return billingError("delete product", err)
	}
	return nil
}

// SyncProducts pulls the product and price catalogue from the payment processor.
func (a *App) SyncProducts(ctx context.Context) (billing.SyncResult, error) {
	res, err := a.billing.Sync(ctx)
	if err != nil {
		return billing.SyncResult{}, billingError("sync products", err)
	}
	return res, nil
}

func billingError(op string, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidInput):
		verr := &ValidationError{}
		verr.add("product", err.Error())
		return verr
	case errors.Is(err, billing.ErrNotConfigured):
		return ErrUnavailable
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
