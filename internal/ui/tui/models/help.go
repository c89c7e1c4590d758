package models

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/PizzaHomicide/kiri/internal/ui/tui/components"
	kb "github.com/PizzaHomicide/kiri/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/util"
)

// helpTopic is the help page of one view
type helpTopic struct {
	title       string
	bindings    kb.ContextName
	description string
	search      bool
}

var helpTopics = map[View]helpTopic{
	ViewLogin: {
		title:    "Login",
		bindings: kb.ContextLogin,
		description: "Sign in to an Xtream-codes provider.\n\n" +
			"Enter the server as host or host:port without the scheme and pick http or https with the protocol toggle. " +
			"With remember me on, the login is stored locally and restored on the next start.",
	},
	ViewBrowse: {
		title:    "Browse",
		bindings: kb.ContextBrowse,
		search:   true,
		description: "Browse the live, movie and series sections of the provider.\n\n" +
			"Each section is fetched the first time it is opened and kept until you refresh it or log out. " +
			"Opening a channel or movie starts the player; opening a series shows its episodes. " +
			"Favorites are marked with ★ and saved per account.",
	},
	ViewEpisodeSelect: {
		title:    "Episode Selection",
		bindings: kb.ContextEpisodeSelection,
		search:   true,
		description: "Pick an episode of the open series.\n\n" +
			"Switch seasons with [ and ], filter episodes by number or title, and press Enter to play. " +
			"The episode currently playing is marked with ▶.",
	},
}

var generalTopic = helpTopic{
	title:       "General",
	description: "Kiri is a terminal client for Xtream-codes IPTV providers.",
}

const filterHelp = "Exactly one filter is active at a time:\n\n" +
	"• Category : cycle with c and C, starting from All\n" +
	"• Search   : matches item names and category names, needs at least two characters\n" +
	"• Favorites: only items marked with ★\n\n" +
	"Starting a search replaces the category filter.  Clearing it returns to All.\n" +
	"Switching section resets the filter.\n"

var (
	helpHeading = lipgloss.NewStyle().Bold(true).Foreground(styles.Accent)
	helpBold    = lipgloss.NewStyle().Bold(true)
)

// HelpModel is the scrollable help modal for the view underneath it
type HelpModel struct {
	width, height int
	context       View
	viewport      viewport.Model
}

func NewHelpModel(context View) *HelpModel {
	return &HelpModel{
		context:  context,
		viewport: viewport.New(0, 0),
	}
}

func (m *HelpModel) ViewType() View {
	return ViewHelp
}

func (m *HelpModel) Init() tea.Cmd {
	if m.width > 0 && m.height > 0 {
		m.refresh()
	}
	return nil
}

func (m *HelpModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
	case tea.KeyMsg:
		switch kb.GetActionByKey(msg, kb.ContextHelp) {
		case kb.ActionMoveUp, kb.ActionMoveDown, kb.ActionPageUp, kb.ActionPageDown:
			m.viewport, cmd = m.viewport.Update(msg)
		case kb.ActionMoveTop:
			m.viewport.GotoTop()
		case kb.ActionMoveBottom:
			m.viewport.GotoBottom()
		}
	}
	return m, cmd
}

// Resize leaves room for the box border, header and footer
func (m *HelpModel) Resize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = max(width-4, 1)
	m.viewport.Height = max(height-10, 1)
	m.refresh()
}

func (m *HelpModel) refresh() {
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

func (m *HelpModel) View() string {
	footer := components.KeyBindingsBar(m.width, []components.KeyBinding{
		{Key: "↑/↓", Desc: "Scroll"},
		{Key: "PgUp/PgDn", Desc: "Page"},
		{Key: "Home/End", Desc: "Top/bottom"},
		{Key: "Esc", Desc: "Return"},
	})

	return lipgloss.JoinVertical(
		lipgloss.Left,
		styles.Header(m.width, "Help: "+m.topic().title),
		"",
		styles.ContentBox(m.width-2, m.viewport.View(), 1),
		"",
		footer,
	)
}

func (m *HelpModel) topic() helpTopic {
	if t, ok := helpTopics[m.context]; ok {
		return t
	}
	return generalTopic
}

// SetContext switches the help content to another view
func (m *HelpModel) SetContext(context View) {
	if m.context == context {
		return
	}
	m.context = context
	m.refresh()
}

func keyText(k kb.KeyMap) string {
	if k.Secondary == "" {
		return k.Primary
	}
	return k.Primary + " or " + k.Secondary
}

// bindingSection lists bindings with their descriptions aligned, leaving out skipped actions
func bindingSection(title string, bindings []kb.Binding, skip map[kb.Action]bool) string {
	var shown []kb.Binding
	width := 0
	for _, binding := range bindings {
		if skip[binding.Action] {
			continue
		}
		shown = append(shown, binding)
		width = max(width, runewidth.StringWidth(keyText(binding.KeyMap)))
	}
	if len(shown) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(helpBold.Render(title) + "\n\n")
	for _, binding := range shown {
		b.WriteString("• " + helpBold.Render(util.PadRight(keyText(binding.KeyMap), width)) + " : " + binding.KeyMap.Help + "\n")
	}
	return b.String()
}

func (m *HelpModel) content() string {
	topic := m.topic()

	var b strings.Builder
	b.WriteString(helpHeading.Render(topic.title) + "\n\n")
	b.WriteString(topic.description + "\n\n")
	b.WriteString(helpHeading.Render("Keybindings") + "\n\n")

	global := kb.ContextBindings[kb.ContextGlobal]
	b.WriteString(bindingSection("Global commands:", global, nil))

	if topic.bindings != "" {
		listed := make(map[kb.Action]bool, len(global))
		for _, binding := range global {
			listed[binding.Action] = true
		}
		b.WriteString("\n")
		b.WriteString(bindingSection(topic.title+" commands:", kb.ContextBindings[topic.bindings], listed))
	}

	if m.context == ViewBrowse {
		b.WriteString("\n" + helpHeading.Render("Filters") + "\n\n" + filterHelp)
	}
	if topic.search {
		b.WriteString("\n")
		b.WriteString(bindingSection("When in search mode:", kb.ContextBindings[kb.ContextSearchMode], nil))
	}
	return b.String()
}
