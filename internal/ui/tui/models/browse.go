package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/filter"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/series"
	"github.com/PizzaHomicide/kiri/internal/service"
	kb "github.com/PizzaHomicide/kiri/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	syncTimeout = 2 * time.Minute
	openTimeout = 30 * time.Second
	// browseChrome is the number of rows around the item list: header, tabs, filter line, box border, status, player
	// and footer
	browseChrome = 12
)

// BrowseModel lists the items of the active section through the active filter
type BrowseModel struct {
	app           *service.App
	width, height int

	view           service.View
	cursor         int
	viewportOffset int

	loading        bool
	loadingSection domain.ContentType
	loadErr        error
	retry          *service.RetryCommand
	spinner        spinner.Model

	searchMode  bool
	searchInput textinput.Model

	status      string
	statusError bool
	playback    playback.Session
}

func NewBrowseModel(app *service.App) *BrowseModel {
	input := textinput.New()
	input.Placeholder = "Search names and categories..."
	input.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Accent)

	return &BrowseModel{
		app:         app,
		searchInput: input,
		spinner:     s,
	}
}

func (m *BrowseModel) ViewType() View {
	return ViewBrowse
}

// Init loads the active section, fetching it if this is the first visit
func (m *BrowseModel) Init() tea.Cmd {
	m.playback = m.app.Playback()
	return m.switchSection(m.app.Section())
}

// Reset forgets everything shown, used after a logout
func (m *BrowseModel) Reset() {
	m.view = service.View{}
	m.cursor, m.viewportOffset = 0, 0
	m.loading, m.loadErr, m.retry = false, nil, nil
	m.searchMode = false
	m.searchInput.SetValue("")
	m.searchInput.Blur()
	m.status, m.statusError = "", false
	m.playback = playback.Session{}
}

// SetPlayback records the latest playback snapshot for the status line
func (m *BrowseModel) SetPlayback(s playback.Session) {
	m.playback = s
}

// SetStatus shows a transient line above the player status
func (m *BrowseModel) SetStatus(text string, isError bool) {
	m.status, m.statusError = text, isError
}

// Selected returns the item under the cursor
func (m *BrowseModel) Selected() (domain.ContentItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Items) {
		return domain.ContentItem{}, false
	}
	return m.view.Items[m.cursor], true
}

func (m *BrowseModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SectionLoadedMsg:
		if msg.Section != m.app.Section() {
			log.Debug("Ignoring load result for inactive section", "section", msg.Section)
			return m, nil
		}
		m.loading = false
		m.loadErr, m.retry = msg.Err, msg.Retry
		m.refresh()
		return m, nil

	case StatusMsg:
		m.SetStatus(msg.Text, msg.Error)
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m, m.handleSearchModeKeyMsg(msg)
		}
		return m, m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m *BrowseModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch action := kb.GetActionByKey(msg, kb.ContextBrowse); action {
	case kb.ActionOpen:
		if item, ok := m.Selected(); ok {
			return m.open(item)
		}
	case kb.ActionSectionLive:
		return m.switchSection(domain.ContentLive)
	case kb.ActionSectionVOD:
		return m.switchSection(domain.ContentVOD)
	case kb.ActionSectionSeries:
		return m.switchSection(domain.ContentSeries)
	case kb.ActionNextCategory, kb.ActionPrevCategory:
		delta := 1
		if action == kb.ActionPrevCategory {
			delta = -1
		}
		id := m.app.CycleCategory(delta)
		m.searchInput.SetValue("")
		m.refresh()
		m.SetStatus("Category: "+m.categoryName(id), false)
	case kb.ActionToggleFavorites:
		on := m.app.ToggleFavoritesView()
		m.searchInput.SetValue("")
		m.refresh()
		if on {
			m.SetStatus("Showing favorites", false)
		} else {
			m.SetStatus("Showing all items", false)
		}
	case kb.ActionToggleFavorite:
		if item, ok := m.Selected(); ok {
			on := m.app.ToggleFavorite(context.Background(), item)
			m.refresh()
			if on {
				m.SetStatus("Added "+item.Name+" to favorites", false)
			} else {
				m.SetStatus("Removed "+item.Name+" from favorites", false)
			}
		}
	case kb.ActionEnableSearch:
		m.searchMode = true
		return m.searchInput.Focus()
	case kb.ActionRefresh:
		return m.reload()
	case kb.ActionCycleSubtitles:
		return cycleSubtitles(m.app)
	case kb.ActionStopPlayback:
		return stopPlayback(m.app)
	case kb.ActionMoveUp:
		m.moveCursor(-1)
	case kb.ActionMoveDown:
		m.moveCursor(1)
	case kb.ActionPageUp:
		m.moveCursor(-m.listHeight())
	case kb.ActionPageDown:
		m.moveCursor(m.listHeight())
	case kb.ActionMoveTop:
		m.moveCursor(-len(m.view.Items))
	case kb.ActionMoveBottom:
		m.moveCursor(len(m.view.Items))
	}
	return nil
}

func (m *BrowseModel) handleSearchModeKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch kb.GetActionByKey(msg, kb.ContextSearchMode) {
	case kb.ActionBack:
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.app.SetSearch("")
		m.refresh()
		return nil
	case kb.ActionSearchComplete:
		m.searchMode = false
		m.searchInput.Blur()
		return nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.app.SetSearch(m.searchInput.Value()) {
		m.cursor, m.viewportOffset = 0, 0
		m.refresh()
	}
	return cmd
}

// switchSection activates t and loads it in the background when it has never been fetched
func (m *BrowseModel) switchSection(t domain.ContentType) tea.Cmd {
	if t != m.app.Section() {
		m.searchMode = false
		m.searchInput.SetValue("")
		m.cursor, m.viewportOffset = 0, 0
	}
	m.status = ""
	m.loading, m.loadingSection = true, t
	m.loadErr, m.retry = nil, nil

	app := m.app
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		retry, err := app.SwitchSection(ctx, t)
		return SectionLoadedMsg{Section: t, Retry: retry, Err: err}
	}
	return tea.Batch(m.spinner.Tick, load)
}

// reload runs the pending retry after a failure, or refetches the section
func (m *BrowseModel) reload() tea.Cmd {
	t := m.app.Section()
	retry := m.retry
	m.loading, m.loadingSection = true, t
	m.loadErr, m.retry = nil, nil
	m.status = ""

	app := m.app
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		var (
			next *service.RetryCommand
			err  error
		)
		if retry != nil {
			log.Info("Retrying", "label", retry.Label)
			next, err = retry.Run(ctx)
		} else {
			next, err = app.Sync(ctx, t)
		}
		return SectionLoadedMsg{Section: t, Retry: next, Err: err}
	}
	return tea.Batch(m.spinner.Tick, load)
}

// open plays an item, or fetches the seasons of a series for the episode picker
func (m *BrowseModel) open(item domain.ContentItem) tea.Cmd {
	m.SetStatus("Opening "+item.Name+"...", false)

	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		seasons, err := app.Open(ctx, item)
		if item.Type == domain.ContentSeries {
			return SeriesOpenedMsg{Series: item, Seasons: seasons, Err: err}
		}
		return PlayResultMsg{Title: item.Name, Err: err}
	}
}

func cycleSubtitles(app *service.App) tea.Cmd {
	return func() tea.Msg {
		id, err := app.CycleSubtitle()
		if err != nil {
			return StatusMsg{Text: domain.UserMessage(err), Error: true}
		}
		if id == playback.SubtitleOff {
			return StatusMsg{Text: "Subtitles off"}
		}
		s := app.Playback()
		if track, ok := s.ActiveSubtitle(); ok {
			return StatusMsg{Text: "Subtitles: " + track.Label()}
		}
		return StatusMsg{Text: fmt.Sprintf("Subtitles: track %d", id)}
	}
}

func stopPlayback(app *service.App) tea.Cmd {
	return func() tea.Msg {
		app.ClosePlayer()
		return StatusMsg{Text: "Playback stopped"}
	}
}

// refresh re-derives the visible list from the application state
func (m *BrowseModel) refresh() {
	m.view = m.app.View()
	m.ensureCursorVisible()
}

func (m *BrowseModel) moveCursor(delta int) {
	m.cursor += delta
	m.ensureCursorVisible()
}

func (m *BrowseModel) listHeight() int {
	return max(1, m.height-browseChrome)
}

func (m *BrowseModel) ensureCursorVisible() {
	n := len(m.view.Items)
	if n == 0 {
		m.cursor, m.viewportOffset = 0, 0
		return
	}
	m.cursor = max(0, min(m.cursor, n-1))

	visible := m.listHeight()
	if m.cursor < m.viewportOffset {
		m.viewportOffset = m.cursor
	}
	if m.cursor >= m.viewportOffset+visible {
		m.viewportOffset = m.cursor - visible + 1
	}
	m.viewportOffset = max(0, min(m.viewportOffset, n-visible))
}

func (m *BrowseModel) categoryName(id string) string {
	if id == filter.CategoryAll || id == "" {
		return "All"
	}
	for _, c := range m.view.Categories {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

func (m *BrowseModel) Resize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = max(10, width/3)
	m.ensureCursorVisible()
}

// isStale reports errors that only mean a newer request replaced this one
func isStale(err error) bool {
	return errors.Is(err, series.ErrStale)
}

// describeFilter renders the active filter for the status line
func (m *BrowseModel) describeFilter() string {
	f := m.view.Filter
	switch f.Mode {
	case filter.ModeSearch:
		return fmt.Sprintf("Search: %q", strings.TrimSpace(f.Query))
	case filter.ModeFavorites:
		return "Favorites"
	default:
		return "Category: " + m.categoryName(f.CategoryID)
	}
}
