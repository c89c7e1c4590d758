package gateway

import (
	"net/url"
	"slices"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
)

const redacted = "***"

// rawRedactMinLength is the shortest password also replaced outside URL segments
const rawRedactMinLength = 6

// Redact removes the password of creds from s.  It is replaced where it appears as a password= query value or as
// the path segment after the username in a media URL, in raw and escaped forms.  Passwords of at least
// rawRedactMinLength bytes are also replaced anywhere else.  The username stays visible as it is part of the
// displayed identity.
func Redact(s string, creds domain.Credentials) string {
	if creds.Password == "" {
		return s
	}
	for _, form := range uniq(url.QueryEscape(creds.Password), creds.Password) {
		s = strings.ReplaceAll(s, "password="+form, "password="+redacted)
	}
	for _, user := range uniq(url.PathEscape(creds.Username), creds.Username) {
		for _, form := range uniq(url.PathEscape(creds.Password), creds.Password) {
			s = strings.ReplaceAll(s, "/"+user+"/"+form+"/", "/"+user+"/"+redacted+"/")
		}
	}
	if len(creds.Password) >= rawRedactMinLength {
		for _, form := range uniq(url.QueryEscape(creds.Password), url.PathEscape(creds.Password), creds.Password) {
			s = strings.ReplaceAll(s, form, redacted)
		}
	}
	return s
}

func uniq(forms ...string) []string {
	out := forms[:0]
	for _, f := range forms {
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// truncate shortens upstream bodies before they are logged or echoed back
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
