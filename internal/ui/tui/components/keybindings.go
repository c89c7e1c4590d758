package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
)

// KeyBinding is one entry of a footer bar
type KeyBinding struct {
	Key  string
	Desc string
}

var keyStyle = lipgloss.NewStyle().Foreground(styles.Accent).Bold(true)

const keySeparator = " • "

// KeyBindingsBar renders bindings as a centered footer.  Entries without a key are left out.
func KeyBindingsBar(width int, bindings []KeyBinding) string {
	var b strings.Builder
	for _, binding := range bindings {
		if binding.Key == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(keySeparator)
		}
		b.WriteString(keyStyle.Render(binding.Key) + ": " + binding.Desc)
	}
	return styles.CenteredText(width, styles.Info.Render(b.String()))
}
