package player

import (
	"strings"
	"unicode"
)

// ParseArgs splits the configured extra mpv arguments on whitespace.  Single or double quotes group words, and a
// quote of the other kind inside them is kept literally.
func ParseArgs(argsString string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inWord  bool
	)

	for _, r := range argsString {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote, inWord = r, true
		case quote == 0 && unicode.IsSpace(r):
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if inWord {
		args = append(args, current.String())
	}
	return args
}
