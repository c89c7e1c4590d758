package models

import (
	"context"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/service"
	kb "github.com/PizzaHomicide/kiri/internal/ui/tui/keybindings"
	tea "github.com/charmbracelet/bubbletea"
)

// autoLoginTimeout bounds the remembered session check at startup
const autoLoginTimeout = 30 * time.Second

// AppModel is the main application model that coordinates all child models.  It is the high level wrapper.
type AppModel struct {
	app           *service.App
	activeView    View  // Track the current active 'main view'
	activeModal   Modal // Track the current active 'modal overlay' if any
	width, height int

	loadingModel       *LoadingModel
	loginModel         *LoginModel
	browseModel        *BrowseModel
	helpModel          *HelpModel
	episodeSelectModel *EpisodeSelectModel
}

// NewAppModel creates a new instance of the main application model
func NewAppModel(app *service.App) AppModel {
	return AppModel{
		app:                app,
		activeView:         ViewLoading,
		activeModal:        ModalNone,
		loadingModel:       NewLoadingModel("Checking saved login...").WithTitle("Kiri"),
		loginModel:         NewLoginModel(app),
		browseModel:        NewBrowseModel(app),
		helpModel:          NewHelpModel(ViewLogin),
		episodeSelectModel: NewEpisodeSelectModel(app),
	}
}

// Init restores a remembered session, if any, before showing the first screen
func (m AppModel) Init() tea.Cmd {
	log.Info("Initialising Kiri TUI")

	app := m.app
	autoLogin := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), autoLoginTimeout)
		defer cancel()
		identity, found, err := app.AutoLogin(ctx)
		return AutoLoginResultMsg{Identity: identity, Found: found, Err: err}
	}
	return tea.Batch(m.loadingModel.Init(), autoLogin)
}

// Update handles messages and updates the models as appropriate
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if model, cmd, handled := m.handleGlobalKey(msg); handled {
			return model, cmd
		}

	case tea.WindowSizeMsg:
		log.Debug("Window size changed", "old_width", m.width, "new_width", msg.Width, "old_height", m.height, "new_height", msg.Height)
		m.width = msg.Width
		m.height = msg.Height

		m.loadingModel.Resize(msg.Width, msg.Height)
		m.loginModel.Resize(msg.Width, msg.Height)
		m.browseModel.Resize(msg.Width, msg.Height)
		m.helpModel.Resize(msg.Width, msg.Height)
		m.episodeSelectModel.Resize(msg.Width, msg.Height)
		return m, nil

	case AutoLoginResultMsg:
		if msg.Found && msg.Err == nil {
			log.Info("Restored remembered session", "identity", msg.Identity.String())
			return m.showBrowse()
		}
		m.activeView = ViewLogin
		if creds, ok := m.app.Remembered(context.Background()); ok {
			m.loginModel.Prefill(creds)
		}
		if msg.Err != nil {
			log.Warn("Remembered session could not be restored", "error", msg.Err)
			m.loginModel.SetError(msg.Err)
		}
		return m, m.loginModel.Init()

	case LoginResultMsg:
		if msg.Err != nil {
			log.Warn("Login failed", "error", msg.Err)
			m.loginModel.SetError(msg.Err)
			return m, nil
		}
		log.Info("Logged in", "identity", msg.Identity.String())
		m.loginModel.Reset()
		return m.showBrowse()

	case SeriesOpenedMsg:
		switch {
		case isStale(msg.Err):
			return m, nil
		case msg.Err != nil:
			log.Warn("Could not open series", "series_id", msg.Series.ID, "error", msg.Err)
			m.browseModel.SetStatus(domain.UserMessage(msg.Err), true)
			return m, nil
		}
		m.browseModel.SetStatus("", false)
		m.episodeSelectModel.Load(msg.Series, msg.Seasons)
		m.activeModal = ModalEpisodeSelect
		return m, nil

	case PlayResultMsg:
		if msg.Err != nil {
			log.Warn("Playback did not start", "title", msg.Title, "error", msg.Err)
			m.browseModel.SetStatus(domain.UserMessage(msg.Err), true)
			return m, nil
		}
		m.browseModel.SetStatus("", false)
		return m, nil

	case PlaybackChangedMsg:
		m.browseModel.SetPlayback(msg.Session)
		m.episodeSelectModel.SetPlayback(msg.Session)
		return m, nil

	case StatusMsg:
		m.browseModel.SetStatus(msg.Text, msg.Error)
		return m, nil

	case SectionLoadedMsg:
		// Loads finish in the background, possibly while a modal is open
		return m.updateBrowseView(msg)
	}

	// Prioritise delegating messages to a modal if one is active
	switch m.activeModal {
	case ModalEpisodeSelect:
		return m.updateEpisodeSelectModal(msg)
	case ModalHelp:
		model, cmd := m.helpModel.Update(msg)
		m.helpModel = model.(*HelpModel)
		return m, cmd
	}

	// Delegate message processing to the active view
	switch m.activeView {
	case ViewLoading:
		model, cmd := m.loadingModel.Update(msg)
		m.loadingModel = model.(*LoadingModel)
		return m, cmd
	case ViewLogin:
		model, cmd := m.loginModel.Update(msg)
		m.loginModel = model.(*LoginModel)
		return m, cmd
	case ViewBrowse:
		return m.updateBrowseView(msg)
	}

	return m, nil
}

// handleGlobalKey processes keys that work regardless of the active view
func (m AppModel) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch kb.GetActionByKey(msg, kb.ContextGlobal) {
	case kb.ActionQuit:
		log.Info("Quit command received.  Shutting down...")
		return m, tea.Quit, true

	case kb.ActionLogout:
		if m.activeView != ViewBrowse {
			return m, nil, false
		}
		log.Info("Logging out", "identity", m.app.Identity().String())
		m.app.Logout(context.Background())
		m.loginModel.Reset()
		m.browseModel.Reset()
		m.activeModal = ModalNone
		m.activeView = ViewLogin
		return m, m.loginModel.Init(), true

	case kb.ActionToggleHelp:
		log.Debug("Help requested", "active_view", m.activeView, "active_modal", m.activeModal)
		if m.activeModal == ModalHelp {
			m.activeModal = ModalNone
			return m, nil, true
		}
		helpContext := m.activeView
		if m.activeModal == ModalEpisodeSelect {
			helpContext = ViewEpisodeSelect
		}
		m.helpModel.SetContext(helpContext)
		m.activeModal = ModalHelp
		return m, m.helpModel.Init(), true

	case kb.ActionBack:
		switch m.activeModal {
		case ModalHelp:
			m.activeModal = ModalNone
			return m, nil, true
		case ModalEpisodeSelect:
			if m.episodeSelectModel.searchMode {
				return m, nil, false
			}
			m.app.CloseSeries()
			m.activeModal = ModalNone
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m AppModel) showBrowse() (tea.Model, tea.Cmd) {
	m.activeView = ViewBrowse
	m.activeModal = ModalNone
	m.browseModel.Reset()
	return m, m.browseModel.Init()
}

func (m AppModel) View() string {
	// If there is an active modal it takes precedence
	switch m.activeModal {
	case ModalHelp:
		return m.helpModel.View()
	case ModalEpisodeSelect:
		return m.episodeSelectModel.View()
	}

	switch m.activeView {
	case ViewLoading:
		return m.loadingModel.View()
	case ViewLogin:
		return m.loginModel.View()
	case ViewBrowse:
		return m.browseModel.View()
	default:
		return "Unknown view\nPress ctrl+c to quit."
	}
}

func (m AppModel) updateBrowseView(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.browseModel.Update(msg)
	m.browseModel = model.(*BrowseModel)
	return m, cmd
}

func (m AppModel) updateEpisodeSelectModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.episodeSelectModel.Update(msg)
	m.episodeSelectModel = model.(*EpisodeSelectModel)
	return m, cmd
}
