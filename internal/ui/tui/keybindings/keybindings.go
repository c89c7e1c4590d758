package keybindings

import tea "github.com/charmbracelet/bubbletea"

// Action represents a specific action that can be triggered by a key
type Action string

// Define all possible actions
const (
	// Global actions
	ActionQuit       Action = "quit"
	ActionToggleHelp Action = "toggle_help"
	ActionLogout     Action = "logout"
	ActionBack       Action = "back" // General purpose "go back" or "cancel"

	// Navigation actions
	ActionMoveUp     Action = "move_up"
	ActionMoveDown   Action = "move_down"
	ActionPageUp     Action = "page_up"
	ActionPageDown   Action = "page_down"
	ActionMoveTop    Action = "move_top"
	ActionMoveBottom Action = "move_bottom"

	// Login view actions
	ActionLogin          Action = "login"
	ActionNextField      Action = "next_field"
	ActionPrevField      Action = "prev_field"
	ActionToggleRemember Action = "toggle_remember"
	ActionToggleProtocol Action = "toggle_protocol"

	// Browse actions
	ActionOpen            Action = "open"
	ActionSectionLive     Action = "section_live"
	ActionSectionVOD      Action = "section_vod"
	ActionSectionSeries   Action = "section_series"
	ActionNextCategory    Action = "next_category"
	ActionPrevCategory    Action = "prev_category"
	ActionToggleFavorites Action = "toggle_favorites_view"
	ActionToggleFavorite  Action = "toggle_favorite"
	ActionRefresh         Action = "refresh"
	ActionCycleSubtitles  Action = "cycle_subtitles"
	ActionStopPlayback    Action = "stop_playback"
	ActionSelectEpisode   Action = "select_episode"
	ActionNextSeason      Action = "next_season"
	ActionPrevSeason      Action = "prev_season"

	// Search mode actions
	ActionEnableSearch   Action = "enable_search"
	ActionSearchComplete Action = "search_complete"
)

// ContextName represents a specific UI context in the application that has its own keybinds
type ContextName string

const (
	ContextGlobal           ContextName = "global"
	ContextLogin            ContextName = "login"
	ContextBrowse           ContextName = "browse"
	ContextEpisodeSelection ContextName = "episode_selection"
	ContextSearchMode       ContextName = "search_mode"
	ContextHelp             ContextName = "help"
)

var ContextBindings = map[ContextName][]Binding{
	ContextGlobal:           globalBindings,
	ContextLogin:            loginBindings,
	ContextBrowse:           browseBindings,
	ContextEpisodeSelection: episodeSelectBindings,
	ContextSearchMode:       searchModeBindings,
	ContextHelp:             helpBindings,
}

// KeyMap stores the mappings from actions to key sequences for each context
type KeyMap struct {
	Primary   string
	Secondary string // Optional alternative key
	Help      string // Description for help screen
}

// Binding maps an action to its keys and help text
type Binding struct {
	Action Action
	KeyMap KeyMap
}

// navigationBindings contains general navigation bindings for consistent navigation across the app
var navigationBindings = []Binding{
	{
		Action: ActionMoveUp,
		KeyMap: KeyMap{
			Primary:   "up",
			Secondary: "k",
			Help:      "Move cursor up",
		},
	},
	{
		Action: ActionMoveDown,
		KeyMap: KeyMap{
			Primary:   "down",
			Secondary: "j",
			Help:      "Move cursor down",
		},
	},
	{
		Action: ActionPageUp,
		KeyMap: KeyMap{
			Primary: "pgup",
			Help:    "Move up one page",
		},
	},
	{
		Action: ActionPageDown,
		KeyMap: KeyMap{
			Primary: "pgdown",
			Help:    "Move down one page",
		},
	},
	{
		Action: ActionMoveTop,
		KeyMap: KeyMap{
			Primary: "home",
			Help:    "Move top of view",
		},
	},
	{
		Action: ActionMoveBottom,
		KeyMap: KeyMap{
			Primary: "end",
			Help:    "Move bottom of view",
		},
	},
}

// globalBindings contains key bindings that work across all views
var globalBindings = []Binding{
	{
		Action: ActionQuit,
		KeyMap: KeyMap{
			Primary: "ctrl+c",
			Help:    "Quit application",
		},
	},
	{
		Action: ActionToggleHelp,
		KeyMap: KeyMap{
			Primary: "ctrl+h",
			Help:    "Toggle help screen",
		},
	},
	{
		Action: ActionLogout,
		KeyMap: KeyMap{
			Primary: "ctrl+l",
			Help:    "Logout and forget saved credentials and favorites",
		},
	},
	{
		Action: ActionBack,
		KeyMap: KeyMap{
			Primary: "esc",
			Help:    "Go back/cancel current action",
		},
	},
}

// loginBindings avoid printable keys, which belong to the form fields
var loginBindings = []Binding{
	{
		Action: ActionLogin,
		KeyMap: KeyMap{
			Primary: "enter",
			Help:    "Log in",
		},
	},
	{
		Action: ActionNextField,
		KeyMap: KeyMap{
			Primary:   "tab",
			Secondary: "down",
			Help:      "Next field",
		},
	},
	{
		Action: ActionPrevField,
		KeyMap: KeyMap{
			Primary:   "shift+tab",
			Secondary: "up",
			Help:      "Previous field",
		},
	},
	{
		Action: ActionToggleRemember,
		KeyMap: KeyMap{
			Primary: "ctrl+r",
			Help:    "Toggle remember me",
		},
	},
	{
		Action: ActionToggleProtocol,
		KeyMap: KeyMap{
			Primary: "ctrl+t",
			Help:    "Switch between http and https",
		},
	},
}

// helpBindings contains key bindings specific to the help view
var helpBindings = withNavigation([]Binding{})

// browseBindings contains key bindings specific to the catalog browser
var browseBindings = withNavigation([]Binding{
	{
		Action: ActionOpen,
		KeyMap: KeyMap{
			Primary:   "enter",
			Secondary: "p",
			Help:      "Play channel or movie, open series",
		},
	},
	{
		Action: ActionSectionLive,
		KeyMap: KeyMap{
			Primary: "1",
			Help:    "Show live TV",
		},
	},
	{
		Action: ActionSectionVOD,
		KeyMap: KeyMap{
			Primary: "2",
			Help:    "Show movies",
		},
	},
	{
		Action: ActionSectionSeries,
		KeyMap: KeyMap{
			Primary: "3",
			Help:    "Show series",
		},
	},
	{
		Action: ActionNextCategory,
		KeyMap: KeyMap{
			Primary: "c",
			Help:    "Next category",
		},
	},
	{
		Action: ActionPrevCategory,
		KeyMap: KeyMap{
			Primary: "C",
			Help:    "Previous category",
		},
	},
	{
		Action: ActionToggleFavorites,
		KeyMap: KeyMap{
			Primary: "f",
			Help:    "Toggle favorites only",
		},
	},
	{
		Action: ActionToggleFavorite,
		KeyMap: KeyMap{
			Primary: "s",
			Help:    "Add or remove from favorites",
		},
	},
	{
		Action: ActionEnableSearch,
		KeyMap: KeyMap{
			Primary:   "/",
			Secondary: "ctrl+f",
			Help:      "Search by title or category",
		},
	},
	{
		Action: ActionRefresh,
		KeyMap: KeyMap{
			Primary: "r",
			Help:    "Reload section, or retry a failed load",
		},
	},
	{
		Action: ActionCycleSubtitles,
		KeyMap: KeyMap{
			Primary: "t",
			Help:    "Cycle subtitle tracks",
		},
	},
	{
		Action: ActionStopPlayback,
		KeyMap: KeyMap{
			Primary: "x",
			Help:    "Stop playback",
		},
	},
})

// episodeSelectBindings contains key bindings specific to the episode selection view
var episodeSelectBindings = withNavigation([]Binding{
	{
		Action: ActionSelectEpisode,
		KeyMap: KeyMap{
			Primary: "enter",
			Help:    "Play episode",
		},
	},
	{
		Action: ActionNextSeason,
		KeyMap: KeyMap{
			Primary:   "]",
			Secondary: "tab",
			Help:      "Next season",
		},
	},
	{
		Action: ActionPrevSeason,
		KeyMap: KeyMap{
			Primary:   "[",
			Secondary: "shift+tab",
			Help:      "Previous season",
		},
	},
	{
		Action: ActionEnableSearch,
		KeyMap: KeyMap{
			Primary:   "/",
			Secondary: "ctrl+f",
			Help:      "Search episodes",
		},
	},
	{
		Action: ActionCycleSubtitles,
		KeyMap: KeyMap{
			Primary: "t",
			Help:    "Cycle subtitle tracks",
		},
	},
	{
		Action: ActionStopPlayback,
		KeyMap: KeyMap{
			Primary: "x",
			Help:    "Stop playback",
		},
	},
})

// searchModeBindings contains key bindings specific for when search mode is active
var searchModeBindings = []Binding{
	{
		Action: ActionBack,
		KeyMap: KeyMap{
			Primary:   "esc",
			Secondary: "ctrl+f",
			Help:      "Exit search mode and remove the filter",
		},
	},
	{
		Action: ActionSearchComplete,
		KeyMap: KeyMap{
			Primary: "enter",
			Help:    "Apply the search filter and return control to the original view",
		},
	},
}

// GetActionKey returns the primary key for an action
func GetActionKey(action Action, bindings []Binding) string {
	for _, binding := range bindings {
		if binding.Action == action {
			return binding.KeyMap.Primary
		}
	}
	return ""
}

// GetActionByKey returns just the action for a given key, or an empty Action if not found
func GetActionByKey(keyMsg tea.KeyMsg, name ContextName) Action {
	if bindings, exists := ContextBindings[name]; exists {
		key := keyMsg.String()
		for _, binding := range bindings {
			if binding.KeyMap.Primary == key || binding.KeyMap.Secondary == key {
				return binding.Action
			}
		}
	}
	return ""
}

// FormatKeyHelp formats a key binding for display in help text
func FormatKeyHelp(binding Binding) string {
	if binding.KeyMap.Secondary != "" {
		return binding.KeyMap.Primary + "/" + binding.KeyMap.Secondary + ": " + binding.KeyMap.Help
	}
	return binding.KeyMap.Primary + ": " + binding.KeyMap.Help
}

// withNavigation is a helper function to include navigation bindings in other binding sets
func withNavigation(bindings []Binding) []Binding {
	return append(append([]Binding{}, navigationBindings...), bindings...)
}
