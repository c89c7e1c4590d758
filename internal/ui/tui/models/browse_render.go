package models

import (
	"fmt"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/filter"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/components"
	kb "github.com/PizzaHomicide/kiri/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/util"
	"github.com/charmbracelet/lipgloss"
)

func (m *BrowseModel) View() string {
	title := "Kiri"
	if identity := m.app.Identity(); !identity.IsZero() {
		title += " · " + identity.String()
	}

	sections := []string{
		styles.Header(m.width, title),
		m.renderTabs(),
		m.renderFilterLine(),
		styles.ContentBox(m.width-2, m.renderList(), 0),
		m.renderStatus(),
		components.PlayerStatus(m.width, m.playback),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *BrowseModel) renderTabs() string {
	active := m.app.Section()
	if m.loading {
		active = m.loadingSection
	}

	tabs := make([]string, 0, len(domain.ContentTypes))
	for i, t := range domain.ContentTypes {
		label := fmt.Sprintf("%d %s", i+1, t.Label())
		if t == active {
			tabs = append(tabs, styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, styles.TabInactive.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *BrowseModel) renderFilterLine() string {
	if m.searchMode {
		return styles.FilterStatus.Render("Search: " + m.searchInput.View())
	}
	line := m.describeFilter()
	if m.view.Loaded {
		line += fmt.Sprintf("  •  %d items", len(m.view.Items))
	}
	return styles.FilterStatus.Render(line)
}

func (m *BrowseModel) renderList() string {
	height := m.listHeight()
	width := max(10, m.width-6)

	switch {
	case m.loading && !m.view.Loaded:
		return m.padList(m.spinner.View()+" Loading "+m.loadingSection.Label()+"...", height)
	case m.loadErr != nil:
		msg := styles.Error.Render(domain.UserMessage(m.loadErr))
		if m.retry != nil {
			msg += "\n" + styles.Muted.Render(fmt.Sprintf("Press %s to %s",
				kb.GetActionKey(kb.ActionRefresh, kb.ContextBindings[kb.ContextBrowse]), strings.ToLower(m.retry.Label)))
		}
		return m.padList(msg, height)
	case len(m.view.Items) == 0:
		return m.padList(styles.Muted.Render(m.emptyMessage()), height)
	}

	categoryWidth := min(24, width/3)
	nameWidth := width - categoryWidth - 4

	end := min(len(m.view.Items), m.viewportOffset+height)
	rows := make([]string, 0, height)
	for i := m.viewportOffset; i < end; i++ {
		item := m.view.Items[i]
		marker := "  "
		if item.IsFavorite {
			marker = "★ "
		}
		row := marker +
			util.PadRight(util.TruncateString(item.Name, nameWidth), nameWidth) + "  " +
			util.TruncateString(item.CategoryName, categoryWidth)

		switch {
		case i == m.cursor:
			rows = append(rows, styles.ListSelected.Render(row))
		case item.IsFavorite:
			rows = append(rows, styles.ListItem.Render(styles.Favorite.Render(marker)+row[len(marker):]))
		default:
			rows = append(rows, styles.ListItem.Render(row))
		}
	}
	return m.padList(strings.Join(rows, "\n"), height)
}

// padList keeps the list box a fixed height so the footer does not jump
func (m *BrowseModel) padList(content string, height int) string {
	lines := strings.Count(content, "\n") + 1
	if lines < height {
		content += strings.Repeat("\n", height-lines)
	}
	return content
}

func (m *BrowseModel) emptyMessage() string {
	switch m.view.Filter.Mode {
	case filter.ModeFavorites:
		return "No favorites in " + m.view.Section.Label() + " yet"
	case filter.ModeSearch:
		return "Nothing matches your search"
	}
	if !m.view.Loaded {
		return "Not loaded"
	}
	return "This category is empty"
}

func (m *BrowseModel) renderStatus() string {
	if m.status == "" {
		return ""
	}
	text := util.TruncateString(m.status, max(1, m.width-2))
	if m.statusError {
		return styles.Error.Render(text)
	}
	return styles.Info.Render(text)
}

func (m *BrowseModel) renderFooter() string {
	browse := kb.ContextBindings[kb.ContextBrowse]
	global := kb.ContextBindings[kb.ContextGlobal]
	return components.KeyBindingsBar(m.width, []components.KeyBinding{
		{Key: kb.GetActionKey(kb.ActionOpen, browse), Desc: "Open"},
		{Key: "1-3", Desc: "Section"},
		{Key: kb.GetActionKey(kb.ActionNextCategory, browse), Desc: "Category"},
		{Key: kb.GetActionKey(kb.ActionEnableSearch, browse), Desc: "Search"},
		{Key: kb.GetActionKey(kb.ActionToggleFavorite, browse), Desc: "Favorite"},
		{Key: kb.GetActionKey(kb.ActionToggleFavorites, browse), Desc: "Favorites"},
		{Key: kb.GetActionKey(kb.ActionToggleHelp, global), Desc: "Help"},
	})
}
