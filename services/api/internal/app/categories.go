package app

import (
	"context"
	"fmt"
	"strings"

	"ivisionary/internal/util"
	"ivisionary/pkg/auth"
	"ivisionary/pkg/domain"
	"ivisionary/pkg/store"
)

// CategoryInput names a category and its subcategories.
type CategoryInput struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

// ListCategories returns categories sorted by order.
func (a *App) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := a.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	store.SortCategories(cats)
	return cats, nil
}

// AddCategory appends a category after the current last one.
func (a *App) AddCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	in, err := cleanCategoryInput(in)
	if err != nil {
		return domain.Category{}, err
	}
	a.categoryMu.Lock()
	defer a.categoryMu.Unlock()

	cats, err := a.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	maxOrder := 0
	for _, c := range cats {
		maxOrder = max(maxOrder, c.Order)
	}
	cat := domain.Category{
		ID:            util.NewUUID(),
		Name:          in.Name,
		Subcategories: in.Subcategories,
		Order:         maxOrder + 1,
	}
	if err := a.store.SaveCategories(ctx, cat); err != nil {
		return domain.Category{}, fmt.Errorf("save category: %w", err)
	}
	return cat, nil
}

// UpdateCategory replaces name and subcategories, keeping the order.
func (a *App) UpdateCategory(ctx context.Context, id string, in CategoryInput) (domain.Category, error) {
	in, err := cleanCategoryInput(in)
	if err != nil {
		return domain.Category{}, err
	}
	a.categoryMu.Lock()
	defer a.categoryMu.Unlock()

	cats, err := a.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	idx := indexCategory(cats, id)
	if idx < 0 {
		return domain.Category{}, ErrNotFound
	}
	cat := cats[idx]
	cat.Name = in.Name
	cat.Subcategories = in.Subcategories
	if err := a.store.SaveCategories(ctx, cat); err != nil {
		return domain.Category{}, fmt.Errorf("save category: %w", err)
	}
	return cat, nil
}

// DeleteCategory removes a category and renumbers the rest to 1..N.
func (a *App) DeleteCategory(ctx context.Context, id string) error {
	a.categoryMu.Lock()
	defer a.categoryMu.Unlock()

	cats, err := a.ListCategories(ctx)
	if err != nil {
		return err
	}
	idx := indexCategory(cats, id)
	if idx < 0 {
		return ErrNotFound
	}
	if _, err := a.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	rest := append(cats[:idx:idx], cats[idx+1:]...)
	changed := make([]domain.Category, 0, len(rest))
	for i := range rest {
		if rest[i].Order != i+1 {
			rest[i].Order = i + 1
			changed = append(changed, rest[i])
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if err := a.store.SaveCategories(ctx, changed...); err != nil {
		return fmt.Errorf("renumber categories: %w", err)
	}
	return nil
}

// MoveCategory swaps a category's order with its neighbour in direction.
// Moving the first category up or the last one down is a no-op.
func (a *App) MoveCategory(ctx context.Context, id string, dir domain.MoveDirection) ([]domain.Category, error) {
	if dir != domain.MoveUp && dir != domain.MoveDown {
		verr := &ValidationError{}
		verr.add("direction", "Direction must be up or down")
		return nil, verr
	}
	a.categoryMu.Lock()
	defer a.categoryMu.Unlock()

	cats, err := a.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexCategory(cats, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	other := idx - 1
	if dir == domain.MoveDown {
		other = idx + 1
	}
	if other < 0 || other >= len(cats) {
		return cats, nil
	}
	cats[idx].Order, cats[other].Order = cats[other].Order, cats[idx].Order
	if err := a.store.SaveCategories(ctx, cats[idx], cats[other]); err != nil {
		return nil, fmt.Errorf("move category: %w", err)
	}
	store.SortCategories(cats)
	return cats, nil
}

func indexCategory(cats []domain.Category, id string) int {
	id = strings.TrimSpace(id)
	for i, c := range cats {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func cleanCategoryInput(in CategoryInput) (CategoryInput, error) {
	verr := &ValidationError{}
	in.Name = auth.SanitizeText(in.Name)
	if in.Name == "" {
		verr.add("name", "Name is required")
	}
	seen := make(map[string]struct{}, len(in.Subcategories))
	subs := make([]string, 0, len(in.Subcategories))
	for _, raw := range in.Subcategories {
		sub := auth.SanitizeText(raw)
		if sub == "" {
			continue
		}
		key := strings.ToLower(sub)
		if _, dup := seen[key]; dup {
			verr.add("subcategories", fmt.Sprintf("Duplicate subcategory %q", sub))
			continue
		}
		seen[key] = struct{}{}
		subs = append(subs, sub)
	}
	in.Subcategories = subs
	return in, verr.err()
}
