// Package favorites keeps the per content type favorite lists and persists them on every change.
package favorites

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
)

// ChangeFunc is notified after membership of an item changes
type ChangeFunc func(t domain.ContentType, id string, favorite bool)

// Store holds favorites in memory and mirrors each type's list to the key-value store
type Store struct {
	kv domain.KeyValueStore

	// writeMu orders mutations with their persistence
	writeMu sync.Mutex

	mu        sync.RWMutex
	favs      domain.Favorites
	listeners []ChangeFunc
}

func New(kv domain.KeyValueStore) *Store {
	return &Store{kv: kv, favs: domain.Favorites{}}
}

// OnChange registers a listener.  Listeners are called outside the store's lock.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load replaces the in-memory lists with what is persisted.  A list that is not a JSON array of strings or numbers is
// removed from the store and treated as empty.
func (s *Store) Load(ctx context.Context) {
	loaded := domain.Favorites{}

	for _, t := range domain.ContentTypes {
		ids, err := s.loadType(ctx, t)
		if err != nil {
			log.Warn("Discarding invalid favorites list", "type", t, "error", err)
			if delErr := s.kv.Delete(ctx, t.FavoritesKey()); delErr != nil {
				log.Error("Failed to clear invalid favorites", "error", &domain.StorageError{Op: "delete", Key: t.FavoritesKey(), Err: delErr})
			}
			ids = nil
		}
		loaded[t] = ids
	}

	s.mu.Lock()
	s.favs = loaded
	s.mu.Unlock()

	log.Debug("Favorites loaded",
		"live", len(loaded[domain.ContentLive]),
		"vod", len(loaded[domain.ContentVOD]),
		"series", len(loaded[domain.ContentSeries]))
}

func (s *Store) loadType(ctx context.Context, t domain.ContentType) ([]string, error) {
	data, found, err := s.kv.Get(ctx, t.FavoritesKey())
	if err != nil {
		// A read failure is not proof the data is bad, so keep it and start empty
		log.Error("Failed to read favorites", "error", &domain.StorageError{Op: "get", Key: t.FavoritesKey(), Err: err})
		return nil, nil
	}
	if !found {
		return nil, nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &domain.ParseError{Context: "favorites list is null"}
	}

	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		switch v.(type) {
		case string, float64:
		default:
			return nil, &domain.ParseError{Context: "favorites list holds a non id value"}
		}
		id := domain.IDString(v)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Toggle flips membership of item and returns the new state.  The change is persisted immediately; a persistence
// failure is logged and the in-memory state stays authoritative.
func (s *Store) Toggle(ctx context.Context, item domain.ContentItem) bool {
	return s.update(ctx, item.Type, item.ID, func(current bool) bool { return !current })
}

// Set makes membership of id equal favorite.  Setting the current value is a no-op that neither persists nor notifies.
func (s *Store) Set(ctx context.Context, t domain.ContentType, id string, favorite bool) bool {
	return s.update(ctx, t, id, func(bool) bool { return favorite })
}

// update computes the new membership from the current one under the write lock
func (s *Store) update(ctx context.Context, t domain.ContentType, id string, next func(current bool) bool) bool {
	if id == "" {
		return false
	}

	s.writeMu.Lock()
	s.mu.Lock()
	current := s.favs.Contains(t, id)
	favorite := next(current)
	if current == favorite {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return current
	}

	if favorite {
		s.favs[t] = append(s.favs[t], id)
	} else {
		kept := make([]string, 0, len(s.favs[t]))
		for _, fav := range s.favs[t] {
			if fav != id {
				kept = append(kept, fav)
			}
		}
		s.favs[t] = kept
	}
	snapshot := append([]string{}, s.favs[t]...)
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	s.persist(ctx, t, snapshot)
	s.writeMu.Unlock()

	log.Info("Favorite toggled", "type", t, "id", id, "favorite", favorite)
	for _, fn := range listeners {
		fn(t, id, favorite)
	}
	return favorite
}

func (s *Store) persist(ctx context.Context, t domain.ContentType, ids []string) {
	data, err := json.Marshal(ids)
	if err == nil {
		err = s.kv.Set(ctx, t.FavoritesKey(), data)
	}
	if err != nil {
		log.Error("Failed to persist favorites", "error", &domain.StorageError{Op: "set", Key: t.FavoritesKey(), Err: err})
	}
}

// Contains reports membership by string id
func (s *Store) Contains(t domain.ContentType, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favs.Contains(t, id)
}

// IDs returns the ordered favorites of one type
func (s *Store) IDs(t domain.ContentType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.favs[t]...)
}

// Snapshot returns a copy of every list
func (s *Store) Snapshot() domain.Favorites {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favs.Clone()
}

// Clear forgets all favorites in memory.  Persisted lists are left to the caller, normally session logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.favs = domain.Favorites{}
	s.mu.Unlock()
}
