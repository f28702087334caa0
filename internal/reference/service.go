package reference

import (
	"context"
	"fmt"

	"labops/internal/store"
)

// Service is the admin surface over reference data. Every mutation
// invalidates the category so the next cached read re-fetches.
type Service struct {
	store store.Store
	cache *Cache
	usage UsageRegistry
}

func NewService(st store.Store, opts ...CacheOption) *Service {
	s := &Service{store: st, usage: DefaultUsage}
	s.cache = NewCache(s.fetchCategory, opts...)
	return s
}

// Cache exposes the read-side cache for components resolving coded values.
func (s *Service) Cache() *Cache { return s.cache }

func (s *Service) fetchCategory(ctx context.Context, category string, includeInactive bool) ([]Item, error) {
	filters := []store.Filter{store.Eq("category", category)}
	if !includeInactive {
		filters = append(filters, store.Eq("is_active", true))
	}
	recs, err := s.store.Select(ctx, store.Query{
		Entity:  EntityFQN,
		Filters: filters,
		Order: []store.Order{
			{Field: "sort_order"},
			{Field: "display_name"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch reference %q: %w", category, err)
	}
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, itemFromRecord(rec))
	}
	return items, nil
}

// List serves reads through the cache.
func (s *Service) List(ctx context.Context, category string, includeInactive bool) ([]Item, error) {
	return s.cache.Get(ctx, category, includeInactive)
}

func (s *Service) find(ctx context.Context, category, code string) (*store.Record, error) {
	recs, err := s.store.Select(ctx, store.Query{
		Entity:  EntityFQN,
		Filters: []store.Filter{store.Eq("category", category), store.Eq("code", code)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return recs[0], nil
}

func (s *Service) Create(ctx context.Context, it Item) (Item, error) {
	if it.Category == "" {
		return Item{}, store.Invalid(store.ErrRequired, "category", "category is required")
	}
	if it.DisplayName == "" {
		return Item{}, store.Invalid(store.ErrRequired, "display_name", "display_name is required")
	}
	if it.Code == "" {
		it.Code = it.DisplayName
	}
	it.Code = NormalizeCode(it.Code)
	if it.Code == "" {
		return Item{}, store.Invalid(store.ErrRequired, "code", "code is required")
	}
	it.Active = true
	it.System = false

	if _, err := s.find(ctx, it.Category, it.Code); err == nil {
		return Item{}, store.Invalid(store.ErrUniqueViolation, "code",
			fmt.Sprintf("code %q already exists in %q", it.Code, it.Category))
	} else if err != store.ErrNotFound {
		return Item{}, err
	}

	rec, err := s.store.Insert(ctx, EntityFQN, it.data())
	if err != nil {
		return Item{}, err
	}
	s.cache.Invalidate(it.Category)
	return itemFromRecord(rec), nil
}

// Update edits the presentational fields. Category and code are identity
// and stay fixed; use Migrate to move dependents between codes.
func (s *Service) Update(ctx context.Context, id string, patch map[string]any) (Item, error) {
	for _, locked := range []string{"category", "code", "is_system"} {
		if _, ok := patch[locked]; ok {
			return Item{}, store.Invalid(store.ErrReadOnly, locked, locked+" cannot be changed")
		}
	}
	rec, err := s.store.Patch(ctx, EntityFQN, id, store.NoVersionCheck, patch)
	if err != nil {
		return Item{}, err
	}
	it := itemFromRecord(rec)
	s.cache.Invalidate(it.Category)
	return it, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (Item, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) Reactivate(ctx context.Context, id string) (Item, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (Item, error) {
	rec, err := s.store.Patch(ctx, EntityFQN, id, store.NoVersionCheck, map[string]any{"is_active": active})
	if err != nil {
		return Item{}, err
	}
	it := itemFromRecord(rec)
	s.cache.Invalidate(it.Category)
	return it, nil
}

// UsageCount sums dependent rows carrying this code across every mapped
// table/column pair.
func (s *Service) UsageCount(ctx context.Context, category, code string) (int, error) {
	total := 0
	for _, d := range s.usage[category] {
		n, err := s.store.Count(ctx, d.Entity, store.Eq(d.Field, code))
		if err != nil {
			return 0, fmt.Errorf("usage count %s.%s: %w", d.Entity, d.Field, err)
		}
		total += n
	}
	return total, nil
}

// Delete removes an item. System items are immutable to deletion; items
// still referenced anywhere must be deactivated instead.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, EntityFQN, id)
	if err != nil {
		return err
	}
	it := itemFromRecord(rec)
	if it.System {
		return store.Invalid(store.ErrSystemProtected, "is_system", "system items cannot be deleted")
	}
	used, err := s.UsageCount(ctx, it.Category, it.Code)
	if err != nil {
		return err
	}
	if used > 0 {
		return store.Invalid(store.ErrInUse, "code",
			fmt.Sprintf("%q is referenced by %d rows; deactivate it instead", it.Code, used))
	}
	if err := s.store.Delete(ctx, EntityFQN, id); err != nil {
		return err
	}
	s.cache.Invalidate(it.Category)
	return nil
}

// Migrate re-points every dependent row from one code to another within a
// category. The target code must exist.
func (s *Service) Migrate(ctx context.Context, category, fromCode, toCode string) (int, error) {
	if fromCode == toCode {
		return 0, store.Invalid(store.ErrBadState, "to_code", "source and target codes are identical")
	}
	if _, err := s.find(ctx, category, toCode); err == store.ErrNotFound {
		return 0, store.Invalid(store.ErrRefNotFound, "to_code",
			fmt.Sprintf("target code %q does not exist in %q", toCode, category))
	} else if err != nil {
		return 0, err
	}

	updated := 0
	for _, d := range s.usage[category] {
		recs, err := s.store.Select(ctx, store.Query{
			Entity:  d.Entity,
			Filters: []store.Filter{store.Eq(d.Field, fromCode)},
		})
		if err != nil {
			return updated, err
		}
		for _, rec := range recs {
			if _, err := s.store.Patch(ctx, d.Entity, rec.ID, store.NoVersionCheck,
				map[string]any{d.Field: toCode}); err != nil {
				return updated, err
			}
			updated++
		}
	}
	s.cache.Invalidate(category)
	return updated, nil
}
