// Package service holds the application context: the single owner of session, catalog, favorites, filter, series and
// playback state that the presentation layer drives.
package service

import (
	"context"
	"sync"

	"github.com/PizzaHomicide/kiri/internal/catalog"
	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/favorites"
	"github.com/PizzaHomicide/kiri/internal/filter"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/series"
	"github.com/PizzaHomicide/kiri/internal/session"
)

// DefaultSection is the section shown after login
const DefaultSection = domain.ContentVOD

// App wires the core components together.  Its own state, the active section and filter, is guarded by mu; each
// component guards its own.
type App struct {
	sessions  *session.Manager
	favorites *favorites.Store
	catalog   *catalog.Synchronizer
	navigator *series.Navigator
	player    *playback.Controller

	mu      sync.Mutex
	section domain.ContentType
	filter  *filter.State
}

// View is what the browse screen renders for the active section
type View struct {
	Section    domain.ContentType
	Filter     filter.Filter
	Loaded     bool
	Items      []domain.ContentItem
	Categories []domain.Category
}

func NewApp(gateway domain.Gateway, kv domain.KeyValueStore, player *playback.Controller) *App {
	a := &App{
		sessions:  session.NewManager(gateway, kv),
		favorites: favorites.New(kv),
		player:    player,
		section:   DefaultSection,
		filter:    filter.NewState(),
	}
	a.catalog = catalog.NewSynchronizer(gateway, a.favorites)
	a.navigator = series.NewNavigator(gateway, episodePlayer{a})

	a.favorites.OnChange(a.catalog.SetFavorite)
	a.sessions.OnLogout(a.teardown)
	return a
}

// episodePlayer lets the series navigator start episodes with the logged in credentials
type episodePlayer struct {
	app *App
}

func (p episodePlayer) PlayEpisode(ctx context.Context, seriesItem domain.ContentItem, episode domain.Episode) error {
	creds, err := p.app.credentials()
	if err != nil {
		return err
	}
	return p.app.player.PlayEpisode(ctx, creds, seriesItem, episode)
}

func (p episodePlayer) PlayingEpisodeID() string {
	return p.app.player.PlayingEpisodeID()
}

// Login validates creds against the provider and loads the favorites of the new session
func (a *App) Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	identity, err := a.sessions.Validate(ctx, creds)
	if err != nil {
		return domain.Identity{}, err
	}
	a.afterLogin(ctx)
	return identity, nil
}

// AutoLogin restores a remembered session.  found is false when nothing usable was remembered.
func (a *App) AutoLogin(ctx context.Context) (identity domain.Identity, found bool, err error) {
	identity, found, err = a.sessions.AutoLogin(ctx)
	if err != nil || !found {
		return identity, found, err
	}
	a.afterLogin(ctx)
	return identity, true, nil
}

// Remembered returns the saved credentials used to prefill the login form
func (a *App) Remembered(ctx context.Context) (domain.Credentials, bool) {
	return a.sessions.Remembered(ctx)
}

func (a *App) afterLogin(ctx context.Context) {
	a.favorites.Load(ctx)

	a.mu.Lock()
	a.section = DefaultSection
	a.filter.Reset()
	a.mu.Unlock()
}

// Logout tears down everything tied to the session and forgets what was persisted
func (a *App) Logout(ctx context.Context) {
	a.sessions.Logout(ctx)
}

func (a *App) teardown() {
	a.player.Close()
	a.navigator.Close()
	a.favorites.Clear()
	a.catalog.Reset()

	a.mu.Lock()
	a.section = DefaultSection
	a.filter.Reset()
	a.mu.Unlock()
	log.Debug("Session state cleared")
}

// Identity returns who is logged in, zero when nobody is
func (a *App) Identity() domain.Identity {
	return a.sessions.Identity()
}

func (a *App) credentials() (domain.Credentials, error) {
	creds, ok := a.sessions.Credentials()
	if !ok {
		return domain.Credentials{}, &domain.ValidationError{Message: "Not logged in."}
	}
	return creds, nil
}

// Section returns the active content type
func (a *App) Section() domain.ContentType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.section
}

// SwitchSection makes t active with a fresh filter and loads its catalog if it has not been loaded yet.  On failure
// the returned command retries the load.
func (a *App) SwitchSection(ctx context.Context, t domain.ContentType) (*RetryCommand, error) {
	a.mu.Lock()
	changed := a.section != t
	a.section = t
	if changed {
		a.filter.Reset()
	}
	a.mu.Unlock()

	if changed {
		a.navigator.Close()
	}
	if a.catalog.Loaded(t) {
		return nil, nil
	}
	return a.Sync(ctx, t)
}

// Sync reloads the catalog of t.  On failure the returned command repeats it; the core never retries on its own.
func (a *App) Sync(ctx context.Context, t domain.ContentType) (*RetryCommand, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}

	if _, err := a.catalog.Sync(ctx, creds, t); err != nil {
		log.Warn("Catalog sync failed", "type", t, "error", err)
		return &RetryCommand{
			Label: "Retry loading " + t.Label(),
			Err:   err,
			run: func(ctx context.Context) (*RetryCommand, error) {
				return a.Sync(ctx, t)
			},
		}, err
	}
	return nil, nil
}

// View renders the active section through the active filter
func (a *App) View() View {
	a.mu.Lock()
	t, f := a.section, a.filter.Current()
	a.mu.Unlock()

	return View{
		Section:    t,
		Filter:     f,
		Loaded:     a.catalog.Loaded(t),
		Items:      filter.View(a.catalog.Items(t), a.favorites.Snapshot(), f),
		Categories: a.catalog.Categories(t),
	}
}

// SetSearch feeds the search box and reports whether the filter changed
func (a *App) SetSearch(query string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter.ApplySearch(query)
}

// SelectCategory filters by category id, filter.CategoryAll for everything
func (a *App) SelectCategory(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter.SelectCategory(id)
}

// CycleCategory steps through "All" followed by the section's categories, wrapping around, and returns the new
// category id
func (a *App) CycleCategory(delta int) string {
	a.mu.Lock()
	t, current := a.section, a.filter.Current()
	a.mu.Unlock()

	ids := []string{filter.CategoryAll}
	for _, c := range a.catalog.Categories(t) {
		ids = append(ids, c.ID)
	}

	idx := 0
	if current.Mode == filter.ModeCategory {
		for i, id := range ids {
			if id == current.CategoryID {
				idx = i
				break
			}
		}
		idx = ((idx+delta)%len(ids) + len(ids)) % len(ids)
	}

	a.SelectCategory(ids[idx])
	return ids[idx]
}

// ToggleFavoritesView flips favorites only mode and reports whether it is now on
func (a *App) ToggleFavoritesView() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter.ToggleFavorites()
}

// ToggleFavorite flips membership of item and returns the new state
func (a *App) ToggleFavorite(ctx context.Context, item domain.ContentItem) bool {
	return a.favorites.Toggle(ctx, item)
}

// Open acts on a selected item: series open in the navigator, anything else starts playing
func (a *App) Open(ctx context.Context, item domain.ContentItem) ([]series.Season, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}

	if item.Type == domain.ContentSeries {
		return a.navigator.Open(ctx, creds, item)
	}
	return nil, a.player.Start(ctx, creds, item, nil)
}

// Navigator exposes the series navigator for the episode picker
func (a *App) Navigator() *series.Navigator {
	return a.navigator
}

// SelectEpisode plays an episode of the open series
func (a *App) SelectEpisode(ctx context.Context, episode domain.Episode) error {
	return a.navigator.Select(ctx, episode)
}

// CloseSeries leaves the episode picker
func (a *App) CloseSeries() {
	a.navigator.Close()
}

// Playback returns a snapshot of the playback session
func (a *App) Playback() playback.Session {
	return a.player.Session()
}

// OnPlaybackChange registers an observer for playback transitions
func (a *App) OnPlaybackChange(fn playback.ChangeFunc) {
	a.player.OnChange(fn)
}

// ClosePlayer stops playback
func (a *App) ClosePlayer() {
	a.player.Close()
}

// SelectSubtitle picks a subtitle track, playback.SubtitleOff to hide subtitles
func (a *App) SelectSubtitle(id int) error {
	return a.player.SelectSubtitle(id)
}

// CycleSubtitle advances through off followed by each track and returns the selected id
func (a *App) CycleSubtitle() (int, error) {
	s := a.player.Session()
	if len(s.SubtitleTracks) == 0 {
		return playback.SubtitleOff, &domain.ValidationError{Field: "subtitle", Message: "No subtitles available."}
	}

	ids := []int{playback.SubtitleOff}
	for _, t := range s.SubtitleTracks {
		ids = append(ids, t.ID)
	}

	current := playback.SubtitleOff
	if s.ActiveSubtitleID != nil {
		current = *s.ActiveSubtitleID
	}
	next := ids[0]
	for i, id := range ids {
		if id == current {
			next = ids[(i+1)%len(ids)]
			break
		}
	}
	return next, a.player.SelectSubtitle(next)
}

// Shutdown stops playback and background listeners
func (a *App) Shutdown() {
	a.player.Shutdown()
}
