package billing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ivisionary/internal/util"
	"ivisionary/pkg/domain"
)

// MemoryGateway is an in-process Gateway for development and tests.
type MemoryGateway struct {
	mu       sync.Mutex
	products map[string]domain.Product
	prices   map[string]domain.Price
	seq      []string
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		products: make(map[string]domain.Product),
		prices:   make(map[string]domain.Price),
	}
}

func (g *MemoryGateway) ListProducts(ctx context.Context) ([]domain.Product, error) {
	snap, err := g.Sync(ctx)
	return snap.Products, err
}

func (g *MemoryGateway) Sync(_ context.Context) (SyncResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	products := make([]domain.Product, 0, len(g.seq))
	for _, id := range g.seq {
		p := g.products[id]
		p.Monthly, p.Yearly = nil, nil
		products = append(products, p)
	}
	prices := make([]domain.Price, 0, len(g.prices))
	for _, p := range g.prices {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].ID < prices[j].ID })
	return SyncResult{Products: attachPrices(products, prices), Prices: prices}, nil
}

func (g *MemoryGateway) CreateProduct(_ context.Context, in domain.ProductInput) (domain.Product, error) {
	if err := ValidateProductInput(in, true); err != nil {
		return domain.Product{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p := domain.Product{ID: "prod_" + util.NewID()[:14], Name: in.Name, Description: in.Description, Features: in.Features, Active: true}
	g.products[p.ID] = p
	g.seq = append(g.seq, p.ID)
	monthly := g.newPriceLocked(p.ID, in.MonthlyPrice, IntervalMonth)
	yearly := g.newPriceLocked(p.ID, in.YearlyPrice, IntervalYear)
	p.Monthly, p.Yearly = &monthly, &yearly
	return p, nil
}

func (g *MemoryGateway) UpdateProduct(_ context.Context, id string, in domain.ProductInput) (domain.Product, error) {
	if err := ValidateProductInput(in, false); err != nil {
		return domain.Product{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("update product: no such product: %s", id)
	}
	p.Name, p.Description, p.Features = in.Name, in.Description, in.Features
	g.products[id] = p
	if in.MonthlyPrice > 0 {
		price := g.replacePriceLocked(id, in.MonthlyID, in.MonthlyPrice, IntervalMonth)
		p.Monthly = &price
	}
	if in.YearlyPrice > 0 {
		price := g.replacePriceLocked(id, in.YearlyID, in.YearlyPrice, IntervalYear)
		p.Yearly = &price
	}
	return p, nil
}

func (g *MemoryGateway) DeleteProduct(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.products[id]; !ok {
		return fmt.Errorf("delete product: no such product: %s", id)
	}
	delete(g.products, id)
	for i, item := range g.seq {
		if item == id {
			g.seq = append(g.seq[:i], g.seq[i+1:]...)
			break
		}
	}
	for pid, price := range g.prices {
		if price.ProductID == id {
			delete(g.prices, pid)
		}
	}
	return nil
}

func (g *MemoryGateway) replacePriceLocked(productID, priceID string, amount float64, interval string) domain.Price {
	if current, ok := g.prices[priceID]; ok {
		if ToCents(current.Amount) == ToCents(amount) {
			return current
		}
		current.Active = false
		g.prices[priceID] = current
	}
	return g.newPriceLocked(productID, amount, interval)
}

func (g *MemoryGateway) newPriceLocked(productID string, amount float64, interval string) domain.Price {
	p := domain.Price{
		ID:        "price_" + util.NewID()[:14],
		ProductID: productID,
		Amount:    FromCents(ToCents(amount)),
		Currency:  Currency,
		Interval:  interval,
		Active:    true,
	}
	g.prices[p.ID] = p
	return p
}
