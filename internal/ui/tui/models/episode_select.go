package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/series"
	"github.com/PizzaHomicide/kiri/internal/service"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/components"
	kb "github.com/PizzaHomicide/kiri/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/util"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// EpisodeSelectModel is the episode picker modal of an open series
type EpisodeSelectModel struct {
	app            *service.App
	width, height  int
	seriesName     string
	season         series.Season
	seasonCount    int
	filtered       []domain.Episode
	cursor         int
	searchInput    textinput.Model
	searchMode     bool
	viewportOffset int
	playback       playback.Session
}

func NewEpisodeSelectModel(app *service.App) *EpisodeSelectModel {
	input := textinput.New()
	input.Placeholder = "Filter episodes..."
	input.Width = 30

	return &EpisodeSelectModel{app: app, searchInput: input}
}

func (m *EpisodeSelectModel) ViewType() View {
	return ViewEpisodeSelect
}

func (m *EpisodeSelectModel) Init() tea.Cmd {
	return nil
}

// Load shows the series just opened in the navigator, starting at its first season
func (m *EpisodeSelectModel) Load(item domain.ContentItem, seasons []series.Season) {
	m.seriesName = item.Name
	m.seasonCount = len(seasons)
	m.searchMode = false
	m.searchInput.SetValue("")
	m.searchInput.Blur()
	m.season = series.Season{}
	if season, ok := m.app.Navigator().SelectedSeason(); ok {
		m.season = season
	}
	m.cursor, m.viewportOffset = 0, 0
	m.applyFilter()
}

// SetPlayback records the latest playback snapshot for the status line
func (m *EpisodeSelectModel) SetPlayback(s playback.Session) {
	m.playback = s
}

// GetSelectedEpisode returns the episode under the cursor
func (m *EpisodeSelectModel) GetSelectedEpisode() (domain.Episode, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return domain.Episode{}, false
	}
	return m.filtered[m.cursor], true
}

func (m *EpisodeSelectModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searchMode {
		return m, m.handleSearchModeKeyMsg(keyMsg)
	}
	return m, m.handleKeyMsg(keyMsg)
}

func (m *EpisodeSelectModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch kb.GetActionByKey(msg, kb.ContextEpisodeSelection) {
	case kb.ActionSelectEpisode:
		ep, ok := m.GetSelectedEpisode()
		if !ok {
			log.Debug("No episode under the cursor")
			return nil
		}
		return m.play(ep)
	case kb.ActionNextSeason:
		m.cycleSeason(1)
	case kb.ActionPrevSeason:
		m.cycleSeason(-1)
	case kb.ActionEnableSearch:
		m.searchMode = true
		return m.searchInput.Focus()
	case kb.ActionCycleSubtitles:
		return cycleSubtitles(m.app)
	case kb.ActionStopPlayback:
		return stopPlayback(m.app)
	case kb.ActionMoveDown:
		m.moveCursor(1)
	case kb.ActionMoveUp:
		m.moveCursor(-1)
	case kb.ActionPageDown:
		m.moveCursor(m.listHeight())
	case kb.ActionPageUp:
		m.moveCursor(-m.listHeight())
	case kb.ActionMoveTop:
		m.moveCursor(-len(m.filtered))
	case kb.ActionMoveBottom:
		m.moveCursor(len(m.filtered))
	}
	return nil
}

func (m *EpisodeSelectModel) handleSearchModeKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch kb.GetActionByKey(msg, kb.ContextSearchMode) {
	case kb.ActionBack:
		// Cancels search, clearing the filter
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.applyFilter()
		return nil
	case kb.ActionSearchComplete:
		m.searchMode = false
		m.searchInput.Blur()
		m.applyFilter()
		return nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return cmd
}

func (m *EpisodeSelectModel) play(ep domain.Episode) tea.Cmd {
	app := m.app
	title := m.seriesName + " " + ep.DisplayTitle()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		return PlayResultMsg{Title: title, Err: app.SelectEpisode(ctx, ep)}
	}
}

func (m *EpisodeSelectModel) cycleSeason(delta int) {
	season, ok := m.app.Navigator().CycleSeason(delta)
	if !ok {
		return
	}
	m.season = season
	m.cursor, m.viewportOffset = 0, 0
	m.applyFilter()
}

// applyFilter narrows the season to episodes matching the search input
func (m *EpisodeSelectModel) applyFilter() {
	m.filtered = series.Filter(m.season.Episodes, m.searchInput.Value())
	m.ensureCursorVisible()
}

func (m *EpisodeSelectModel) moveCursor(delta int) {
	m.cursor += delta
	m.ensureCursorVisible()
}

func (m *EpisodeSelectModel) listHeight() int {
	// header, season line, box border, column header, separator, player status and footer
	return max(1, m.height-11)
}

// ensureCursorVisible adjusts the viewport offset to keep the cursor visible
func (m *EpisodeSelectModel) ensureCursorVisible() {
	n := len(m.filtered)
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

func (m *EpisodeSelectModel) Resize(width, height int) {
	m.width = width
	m.height = height
	m.ensureCursorVisible()
}

func (m *EpisodeSelectModel) View() string {
	header := styles.Header(m.width, "Episodes - "+m.seriesName)

	seasonLine := styles.FilterStatus.Render(fmt.Sprintf("%s (%d of %d)  •  %d episodes",
		m.season.Label(), m.seasonIndex()+1, m.seasonCount, len(m.season.Episodes)))
	if m.app.Navigator().PlayingInSelectedSeason() {
		seasonLine += styles.Success.Render("▶ playing")
	}
	if m.searchMode || m.searchInput.Value() != "" {
		seasonLine = lipgloss.JoinHorizontal(lipgloss.Top, seasonLine, styles.Title.Render("Search:")+" "+m.searchInput.View())
	}

	episodes := kb.ContextBindings[kb.ContextEpisodeSelection]
	footer := components.KeyBindingsBar(m.width, []components.KeyBinding{
		{Key: kb.GetActionKey(kb.ActionSelectEpisode, episodes), Desc: "Play"},
		{Key: "[ ]", Desc: "Season"},
		{Key: kb.GetActionKey(kb.ActionEnableSearch, episodes), Desc: "Search"},
		{Key: kb.GetActionKey(kb.ActionCycleSubtitles, episodes), Desc: "Subtitles"},
		{Key: kb.GetActionKey(kb.ActionBack, kb.ContextBindings[kb.ContextGlobal]), Desc: "Back"},
	})

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		seasonLine,
		m.renderEpisodeList(),
		components.PlayerStatus(m.width, m.playback),
		footer,
	)
}

func (m *EpisodeSelectModel) seasonIndex() int {
	for i, s := range m.app.Navigator().Seasons() {
		if s.Key == m.season.Key {
			return i
		}
	}
	return 0
}

// renderEpisodeList renders the visible slice of the filtered episodes
func (m *EpisodeSelectModel) renderEpisodeList() string {
	if len(m.filtered) == 0 {
		if m.searchInput.Value() != "" {
			return styles.ContentBox(m.width-2, styles.CenteredText(m.width-4, "No episodes match your filter"), 0)
		}
		return styles.ContentBox(m.width-2, styles.CenteredText(m.width-4, "No episodes found"), 0)
	}

	width := max(20, m.width-6)
	titleWidth := max(10, width-2-6-14-10-4)

	var b strings.Builder
	b.WriteString(styles.ListHeader.Render(fmt.Sprintf("  %-5s %s %-13s %s",
		"Ep #", util.PadRight("Title", titleWidth), "Aired", "Duration")))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", width))

	end := min(len(m.filtered), m.viewportOffset+m.listHeight())
	for i := m.viewportOffset; i < end; i++ {
		b.WriteString("\n")
		b.WriteString(m.formatEpisodeListItem(i, titleWidth))
	}

	if len(m.filtered) > m.listHeight() {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(fmt.Sprintf("Showing %d-%d of %d", m.viewportOffset+1, end, len(m.filtered))))
	}

	return styles.ContentBox(m.width-2, b.String(), 0)
}

// formatEpisodeListItem renders one row, marking the episode that is playing
func (m *EpisodeSelectModel) formatEpisodeListItem(i, titleWidth int) string {
	ep := m.filtered[i]

	marker := "  "
	if m.app.Navigator().IsPlaying(ep) {
		marker = "▶ "
	}

	title := ep.Title
	if title == "" {
		title = "Untitled Episode"
	}
	row := fmt.Sprintf("%s%-5d %s %-13s %s",
		marker,
		ep.EpisodeNumber,
		util.PadRight(util.TruncateString(title, titleWidth), titleWidth),
		util.TruncateString(ep.AirDate, 13),
		ep.DurationLabel,
	)

	if i == m.cursor {
		return styles.ListSelected.Render(row)
	}
	if marker != "  " {
		return styles.ListItem.Render(styles.Success.Render(row))
	}
	return styles.ListItem.Render(row)
}
