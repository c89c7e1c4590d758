package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/service"
	"github.com/PizzaHomicide/kiri/internal/session"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/components"
	kb "github.com/PizzaHomicide/kiri/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// loginTimeout bounds a single login attempt
const loginTimeout = 30 * time.Second

const (
	fieldServer = iota
	fieldUsername
	fieldPassword
	fieldCount
)

var protocols = []string{"http://", "https://"}

// LoginModel is the credentials form
type LoginModel struct {
	app           *service.App
	width, height int

	inputs     []textinput.Model
	focus      int
	protocol   int
	remember   bool
	submitting bool
	err        string
}

func NewLoginModel(app *service.App) *LoginModel {
	inputs := make([]textinput.Model, fieldCount)

	inputs[fieldServer] = textinput.New()
	inputs[fieldServer].Placeholder = "provider.example.com:8080"
	inputs[fieldServer].Prompt = "Server:   "

	inputs[fieldUsername] = textinput.New()
	inputs[fieldUsername].Placeholder = "username"
	inputs[fieldUsername].Prompt = "Username: "

	inputs[fieldPassword] = textinput.New()
	inputs[fieldPassword].Placeholder = "password"
	inputs[fieldPassword].Prompt = "Password: "
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	for i := range inputs {
		inputs[i].Width = 40
		inputs[i].CharLimit = 256
	}

	m := &LoginModel{app: app, inputs: inputs, remember: true}
	m.setFocus(fieldServer)
	return m
}

func (m *LoginModel) ViewType() View {
	return ViewLogin
}

func (m *LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

// Prefill fills the form from remembered credentials.  The password is never shown but is kept so enter logs straight in.
func (m *LoginModel) Prefill(creds domain.Credentials) {
	server := creds.ServerURL
	m.protocol = 0
	for i, p := range protocols {
		if strings.HasPrefix(server, p) {
			m.protocol = i
			server = strings.TrimPrefix(server, p)
		}
	}
	m.inputs[fieldServer].SetValue(server)
	m.inputs[fieldUsername].SetValue(creds.Username)
	m.inputs[fieldPassword].SetValue(creds.Password)
	m.remember = true
}

// Reset clears the form after a logout
func (m *LoginModel) Reset() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.err = ""
	m.submitting = false
	m.setFocus(fieldServer)
}

// SetError shows err below the form and re-enables it
func (m *LoginModel) SetError(err error) {
	m.submitting = false
	m.err = domain.UserMessage(err)
}

func (m *LoginModel) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	if m.submitting {
		return m, nil
	}

	switch kb.GetActionByKey(keyMsg, kb.ContextLogin) {
	case kb.ActionLogin:
		return m, m.submit()
	case kb.ActionNextField:
		m.setFocus((m.focus + 1) % fieldCount)
		return m, nil
	case kb.ActionPrevField:
		m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case kb.ActionToggleRemember:
		m.remember = !m.remember
		return m, nil
	case kb.ActionToggleProtocol:
		m.protocol = (m.protocol + 1) % len(protocols)
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(keyMsg)
	return m, cmd
}

// submit validates the form locally and, when it passes, logs in off the UI goroutine
func (m *LoginModel) submit() tea.Cmd {
	creds, err := session.BuildCredentials(
		protocols[m.protocol],
		m.inputs[fieldServer].Value(),
		m.inputs[fieldUsername].Value(),
		m.inputs[fieldPassword].Value(),
		m.remember,
	)
	if err != nil {
		m.err = domain.UserMessage(err)
		return nil
	}

	m.err = ""
	m.submitting = true
	log.Info("Logging in", "identity", creds.Identity().String(), "remember", creds.Remember)

	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		identity, err := app.Login(ctx, creds)
		return LoginResultMsg{Identity: identity, Err: err}
	}
}

func (m *LoginModel) setFocus(field int) {
	m.focus = field
	for i := range m.inputs {
		if i == field {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *LoginModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Kiri"))
	b.WriteString("\n\n")
	b.WriteString(styles.Info.Render("Sign in to your IPTV provider"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Protocol: %s\n", styles.TabActive.Render(protocols[m.protocol])))
	for i := range m.inputs {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}

	check := "[ ]"
	if m.remember {
		check = "[x]"
	}
	b.WriteString("\n" + check + " Remember me\n")

	switch {
	case m.submitting:
		b.WriteString("\n" + styles.Muted.Render("Signing in..."))
	case m.err != "":
		b.WriteString("\n" + styles.Error.Render(m.err))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Accent).
		Padding(1, 3).
		Render(b.String())

	footer := components.KeyBindingsBar(m.width, []components.KeyBinding{
		{Key: kb.GetActionKey(kb.ActionLogin, kb.ContextBindings[kb.ContextLogin]), Desc: "Login"},
		{Key: kb.GetActionKey(kb.ActionNextField, kb.ContextBindings[kb.ContextLogin]), Desc: "Next field"},
		{Key: kb.GetActionKey(kb.ActionToggleProtocol, kb.ContextBindings[kb.ContextLogin]), Desc: "Protocol"},
		{Key: kb.GetActionKey(kb.ActionToggleRemember, kb.ContextBindings[kb.ContextLogin]), Desc: "Remember"},
		{Key: kb.GetActionKey(kb.ActionQuit, kb.ContextBindings[kb.ContextGlobal]), Desc: "Quit"},
	})

	return lipgloss.JoinVertical(lipgloss.Center,
		styles.CenteredView(m.width, m.height-2, box),
		footer,
	)
}

func (m *LoginModel) Resize(width, height int) {
	m.width = width
	m.height = height
}
