package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"golang.org/x/sync/errgroup"
	"ivisionary/pkg/domain"
)

// StripeGateway implements Gateway over the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a gateway for a secret key.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}, nil
}

// ListProducts returns products with their active monthly and yearly prices.
func (g *StripeGateway) ListProducts(ctx context.Context) ([]domain.Product, error) {
	snap, err := g.Sync(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Products, nil
}

// Sync fetches all products and prices concurrently.
func (g *StripeGateway) Sync(ctx context.Context) (SyncResult, error) {
	var products []domain.Product
	var prices []domain.Price
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		params := &stripe.ProductListParams{}
		params.Context = gctx
		iter := g.api.Products.List(params)
		for iter.Next() {
			products = append(products, productFromStripe(iter.Product()))
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		params := &stripe.PriceListParams{}
		params.Context = gctx
		iter := g.api.Prices.List(params)
		for iter.Next() {
			prices = append(prices, priceFromStripe(iter.Price()))
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("list prices: %w", err)
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Products: attachPrices(products, prices), Prices: prices}, nil
}

// CreateProduct creates a product with monthly and yearly EUR prices.
func (g *StripeGateway) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	if err := ValidateProductInput(in, true); err != nil {
		return domain.Product{}, err
	}
	params := productParams(in)
	params.Context = ctx
	p, err := g.api.Products.New(params)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	out := productFromStripe(p)
	monthly, err := g.newPrice(ctx, p.ID, in.MonthlyPrice, IntervalMonth)
	if err != nil {
		return domain.Product{}, err
	}
	yearly, err := g.newPrice(ctx, p.ID, in.YearlyPrice, IntervalYear)
	if err != nil {
		return domain.Product{}, err
	}
	out.Monthly, out.Yearly = &monthly, &yearly
	return out, nil
}

// UpdateProduct renames the product and replaces changed prices. Stripe
// prices are immutable, so a changed amount archives the old price and
// creates a new one.
func (g *StripeGateway) UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (domain.Product, error) {
	if err := ValidateProductInput(in, false); err != nil {
		return domain.Product{}, err
	}
	params := productParams(in)
	params.Context = ctx
	p, err := g.api.Products.Update(id, params)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	out := productFromStripe(p)
	if in.MonthlyPrice > 0 {
		price, err := g.replacePrice(ctx, id, in.MonthlyID, in.MonthlyPrice, IntervalMonth)
		if err != nil {
			return domain.Product{}, err
		}
		out.Monthly = &price
	}
	if in.YearlyPrice > 0 {
		price, err := g.replacePrice(ctx, id, in.YearlyID, in.YearlyPrice, IntervalYear)
		if err != nil {
			return domain.Product{}, err
		}
		out.Yearly = &price
	}
	return out, nil
}

func (g *StripeGateway) DeleteProduct(ctx context.Context, id string) error {
	params := &stripe.ProductParams{}
	params.Context = ctx
	if _, err := g.api.Products.Del(id, params); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (g *StripeGateway) replacePrice(ctx context.Context, productID, priceID string, amount float64, interval string) (domain.Price, error) {
	if priceID != "" {
		getParams := &stripe.PriceParams{}
		getParams.Context = ctx
		current, err := g.api.Prices.Get(priceID, getParams)
		if err != nil {
			return domain.Price{}, fmt.Errorf("get price: %w", err)
		}
		if current.UnitAmount == ToCents(amount) {
			return priceFromStripe(current), nil
		}
		archive := &stripe.PriceParams{Active: stripe.Bool(false)}
		archive.Context = ctx
		if _, err := g.api.Prices.Update(priceID, archive); err != nil {
			return domain.Price{}, fmt.Errorf("archive price: %w", err)
		}
	}
	return g.newPrice(ctx, productID, amount, interval)
}

func (g *StripeGateway) newPrice(ctx context.Context, productID string, amount float64, interval string) (domain.Price, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(ToCents(amount)),
		Currency:   stripe.String(Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(interval),
		},
	}
	params.Context = ctx
	price, err := g.api.Prices.New(params)
	if err != nil {
		return domain.Price{}, fmt.Errorf("create %sly price: %w", interval, err)
	}
	return priceFromStripe(price), nil
}

func productParams(in domain.ProductInput) *stripe.ProductParams {
	params := &stripe.ProductParams{Name: stripe.String(strings.TrimSpace(in.Name))}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if len(in.Features) > 0 {
		params.AddMetadata("features", strings.Join(in.Features, "\n"))
	}
	return params
}

func productFromStripe(p *stripe.Product) domain.Product {
	out := domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		Metadata:    p.Metadata,
	}
	if raw := p.Metadata["features"]; raw != "" {
		out.Features = strings.Split(raw, "\n")
	}
	return out
}

func priceFromStripe(p *stripe.Price) domain.Price {
	out := domain.Price{
		ID:       p.ID,
		Amount:   FromCents(p.UnitAmount),
		Currency: string(p.Currency),
		Active:   p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}
