// Package catalog fetches and holds the per content type catalog of the logged in provider.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/filter"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"
)

// ErrSuperseded is returned by a sync whose results were discarded because the catalog was reset while it ran
var ErrSuperseded = errors.New("catalog sync superseded")

type section struct {
	items      []domain.ContentItem
	categories []domain.Category
	loaded     bool
	syncedAt   time.Time
}

// Synchronizer loads categories and items per content type and replaces them wholesale on each successful sync
type Synchronizer struct {
	gateway   domain.Gateway
	favorites FavoriteLookup
	group     singleflight.Group

	mu         sync.RWMutex
	sections   map[domain.ContentType]*section
	generation uint64
}

func NewSynchronizer(gateway domain.Gateway, favorites FavoriteLookup) *Synchronizer {
	return &Synchronizer{
		gateway:   gateway,
		favorites: favorites,
		sections:  make(map[domain.ContentType]*section),
	}
}

// Sync fetches categories and items of t concurrently.  Both calls must succeed; the first failure cancels the other and
// leaves the stored catalog untouched.  Concurrent calls for the same type share a single in-flight sync.
func (s *Synchronizer) Sync(ctx context.Context, creds domain.Credentials, t domain.ContentType) ([]domain.ContentItem, error) {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	// Keyed by generation so a sync started after a reset never joins one that is about to be discarded
	key := fmt.Sprintf("%s#%d", t, gen)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// Joined callers should not lose the sync because the first caller went away
		return s.sync(context.WithoutCancel(ctx), creds, t, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("Joined in-flight catalog sync", "type", t)
		}
		return append([]domain.ContentItem(nil), res.Val.([]domain.ContentItem)...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Synchronizer) sync(ctx context.Context, creds domain.Credentials, t domain.ContentType, gen uint64) ([]domain.ContentItem, error) {
	start := time.Now()
	log.Info("Syncing catalog", "type", t, "identity", creds.Identity().String())

	var categoriesData, itemsData []byte
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		data, err := s.gateway.Call(ctx, creds, t.CategoriesAction(), nil)
		if err != nil {
			return fmt.Errorf("loading %s categories: %w", t, err)
		}
		categoriesData = data
		return nil
	})
	p.Go(func(ctx context.Context) error {
		data, err := s.gateway.Call(ctx, creds, t.ItemsAction(), nil)
		if err != nil {
			return fmt.Errorf("loading %s items: %w", t, err)
		}
		itemsData = data
		return nil
	})
	if err := p.Wait(); err != nil {
		log.Warn("Catalog sync failed", "type", t, "error", err)
		return nil, err
	}

	categories := NormalizeCategories(t, categoriesData)
	items := NormalizeItems(t, itemsData, categories, s.favorites)
	filter.SortCategories(categories)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		log.Info("Discarding catalog sync that finished after a reset", "type", t)
		return nil, ErrSuperseded
	}
	s.sections[t] = &section{items: items, categories: categories, loaded: true, syncedAt: time.Now()}

	log.Info("Catalog synced", "type", t, "items", len(items), "categories", len(categories), "duration", time.Since(start))
	return items, nil
}

// Items returns a copy of the stored items of t
func (s *Synchronizer) Items(t domain.ContentType) []domain.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sec, ok := s.sections[t]; ok {
		return append([]domain.ContentItem(nil), sec.items...)
	}
	return nil
}

// Categories returns the categories of t sorted by name
func (s *Synchronizer) Categories(t domain.ContentType) []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sec, ok := s.sections[t]; ok {
		return append([]domain.Category(nil), sec.categories...)
	}
	return nil
}

// Loaded reports whether t has completed at least one sync since the last reset
func (s *Synchronizer) Loaded(t domain.ContentType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sections[t]
	return ok && sec.loaded
}

// Lookup finds a stored item by id
func (s *Synchronizer) Lookup(t domain.ContentType, id string) (domain.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sec, ok := s.sections[t]; ok {
		for _, item := range sec.items {
			if item.ID == id {
				return item, true
			}
		}
	}
	return domain.ContentItem{}, false
}

// SetFavorite keeps IsFavorite in the stored items consistent with the favorites store
func (s *Synchronizer) SetFavorite(t domain.ContentType, id string, favorite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[t]
	if !ok {
		return
	}
	for i := range sec.items {
		if sec.items[i].ID == id {
			sec.items[i].IsFavorite = favorite
		}
	}
}

// Reset drops every stored section.  Syncs still running when Reset is called will not write their results.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.sections = make(map[domain.ContentType]*section)
}
