package models

import tea "github.com/charmbracelet/bubbletea"

// View represents a specific UI view in the application
type View string

// Available views in the application
const (
	ViewLogin         View = "login"
	ViewBrowse        View = "browse"
	ViewLoading       View = "loading"
	ViewEpisodeSelect View = "episode_select"
	ViewHelp          View = "help"
)

// Modal represents a UI intended to be temporarily shown to the user before returning to the original view
type Modal string

// Available modals in the application
const (
	ModalNone          Modal = "none"
	ModalHelp          Modal = "help"
	ModalEpisodeSelect Modal = "episode_select"
)

// Model is implemented by every child model the AppModel routes to
type Model interface {
	ViewType() View
	Init() tea.Cmd
	Update(msg tea.Msg) (Model, tea.Cmd)
	View() string
	Resize(width, height int)
}
