package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// slowAfter is how long a load runs before the elapsed time is shown
const slowAfter = 3 * time.Second

// LoadingModel displays a spinner while the session is being checked or a login is in flight
type LoadingModel struct {
	width, height int
	title         string
	message       string
	contextInfo   string
	spinner       spinner.Model
	startTime     time.Time
}

// NewLoadingModel creates a new loading model with the required message
func NewLoadingModel(message string) *LoadingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Accent)

	return &LoadingModel{
		message:   message,
		spinner:   s,
		startTime: time.Now(),
	}
}

// WithTitle adds an optional title to the loading box
func (m *LoadingModel) WithTitle(title string) *LoadingModel {
	m.title = title
	return m
}

// WithContextInfo adds a line below the spinner, typically the server being contacted
func (m *LoadingModel) WithContextInfo(info string) *LoadingModel {
	m.contextInfo = info
	return m
}

func (m *LoadingModel) ViewType() View {
	return ViewLoading
}

func (m *LoadingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *LoadingModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	log.Debug("Loading model ignoring message", "type", fmt.Sprintf("%T", msg))
	return m, nil
}

func (m *LoadingModel) View() string {
	contentWidth := min(m.width-20, 70)
	if contentWidth < 40 {
		contentWidth = min(m.width-4, 40)
	}

	spinnerStyle := lipgloss.NewStyle().Foreground(styles.Accent).Bold(true).PaddingRight(1)
	messageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	centerStyle := lipgloss.NewStyle().Width(contentWidth - 6).Align(lipgloss.Center)

	var b strings.Builder
	b.WriteString(centerStyle.Render(spinnerStyle.Render(m.spinner.View()) + " " + messageStyle.Render(m.message)))

	info := m.contextInfo
	if elapsed := m.Elapsed(); elapsed >= slowAfter {
		if info != "" {
			info += "\n"
		}
		info += fmt.Sprintf("Waiting for %ds", int(elapsed.Seconds()))
	}
	if info != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Italic(true).Width(contentWidth - 6).Align(lipgloss.Center).Render(info))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Accent).
		Padding(2, 3).
		Width(contentWidth).
		Render(b.String())

	if m.title != "" {
		header := styles.Title.Width(contentWidth).Align(lipgloss.Center).Render(m.title)
		box = lipgloss.JoinVertical(lipgloss.Center, header, box)
	}
	return styles.CenteredView(m.width, m.height, box)
}

func (m *LoadingModel) Resize(width, height int) {
	m.width = width
	m.height = height
}

// Elapsed returns the time since loading started
func (m *LoadingModel) Elapsed() time.Duration {
	return time.Since(m.startTime)
}
