package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movie(id string) domain.ContentItem {
	return domain.ContentItem{Type: domain.ContentVOD, ID: id, Name: "Movie " + id}
}

func TestToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv)

	var events []bool
	s.OnChange(func(ct domain.ContentType, id string, fav bool) {
		assert.Equal(t, domain.ContentVOD, ct)
		assert.Equal(t, "7", id)
		events = append(events, fav)
	})

	assert.True(t, s.Toggle(ctx, movie("7")))
	assert.True(t, s.Contains(domain.ContentVOD, "7"))
	data, found, _ := kv.Get(ctx, "iptvFavorites_xtreme_vod")
	require.True(t, found)
	assert.JSONEq(t, `["7"]`, string(data))

	assert.False(t, s.Toggle(ctx, movie("7")))
	assert.False(t, s.Contains(domain.ContentVOD, "7"))
	data, _, _ = kv.Get(ctx, "iptvFavorites_xtreme_vod")
	assert.JSONEq(t, `[]`, string(data))

	assert.Equal(t, []bool{true, false}, events)
}

func TestConcurrentToggles(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv)

	toggle := func(n int) {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Toggle(ctx, movie("7"))
			}()
		}
		wg.Wait()
	}

	toggle(50)
	assert.False(t, s.Contains(domain.ContentVOD, "7"))
	data, _, _ := kv.Get(ctx, "iptvFavorites_xtreme_vod")
	assert.JSONEq(t, `[]`, string(data))

	toggle(51)
	assert.True(t, s.Contains(domain.ContentVOD, "7"))
	data, _, _ = kv.Get(ctx, "iptvFavorites_xtreme_vod")
	assert.JSONEq(t, `["7"]`, string(data))
}

func TestSetWithoutChangeIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv)

	calls := 0
	s.OnChange(func(domain.ContentType, string, bool) { calls++ })

	assert.False(t, s.Set(ctx, domain.ContentLive, "1", false))
	_, found, _ := kv.Get(ctx, "iptvFavorites_xtreme_live")
	assert.False(t, found, "no-op must not persist")
	assert.Equal(t, 0, calls)

	s.Set(ctx, domain.ContentLive, "1", true)
	s.Set(ctx, domain.ContentLive, "1", true)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"1"}, s.IDs(domain.ContentLive))
}

func TestOrderIsPreserved(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())
	for _, id := range []string{"3", "1", "2"} {
		s.Toggle(ctx, movie(id))
	}
	s.Toggle(ctx, movie("1"))
	assert.Equal(t, []string{"3", "2"}, s.IDs(domain.ContentVOD))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, "iptvFavorites_xtreme_live", []byte(`[1, "2", 2, "0"]`)))
	require.NoError(t, kv.Set(ctx, "iptvFavorites_xtreme_vod", []byte(`{"not":"a list"}`)))
	require.NoError(t, kv.Set(ctx, "iptvFavorites_xtreme_series", []byte(`[{"id":1}]`)))

	s := New(kv)
	s.Load(ctx)

	// Numbers and strings normalize to the same id
	assert.Equal(t, []string{"1", "2"}, s.IDs(domain.ContentLive))
	assert.Empty(t, s.IDs(domain.ContentVOD))
	assert.Empty(t, s.IDs(domain.ContentSeries))

	_, found, _ := kv.Get(ctx, "iptvFavorites_xtreme_vod")
	assert.False(t, found, "invalid list should be cleared")
	_, found, _ = kv.Get(ctx, "iptvFavorites_xtreme_series")
	assert.False(t, found)
}

func TestClearAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())
	s.Toggle(ctx, movie("1"))

	snap := s.Snapshot()
	snap[domain.ContentVOD] = nil
	assert.True(t, s.Contains(domain.ContentVOD, "1"))

	s.Clear()
	assert.False(t, s.Contains(domain.ContentVOD, "1"))
}

type brokenStore struct{ *store.Memory }

func (brokenStore) Set(context.Context, string, []byte) error { return errors.New("quota exceeded") }

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	s := New(brokenStore{store.NewMemory()})
	assert.True(t, s.Toggle(context.Background(), movie("9")))
	assert.True(t, s.Contains(domain.ContentVOD, "9"))
}
