package domain

import (
	"encoding/json"
	"net/url"
	"strings"
)

// CredentialsKey is the persistent store key holding remembered credentials
const CredentialsKey = "xtreme_player_credentials"

// Credentials identify an account on an Xtream-codes provider.  They are forwarded on every gateway call and must
// never be logged; use Identity for anything user or log facing.
type Credentials struct {
	ServerURL string `json:"serverUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Remember  bool   `json:"-"`
}

// Validate checks that every field is present and the server URL is absolute http(s)
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return &ValidationError{Field: "server", Message: "server URL is required"}
	}
	if strings.TrimSpace(c.Username) == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "server", Message: "server URL must start with http:// or https://"}
	}
	return nil
}

// BaseURL is the server URL without trailing slashes
func (c Credentials) BaseURL() string {
	return strings.TrimRight(c.ServerURL, "/")
}

// Identity is the displayable, credential free form of a session
func (c Credentials) Identity() Identity {
	host := c.ServerURL
	if u, err := url.Parse(c.ServerURL); err == nil && u.Host != "" {
		host = u.Host
	} else {
		host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	}
	return Identity{Username: c.Username, Host: strings.TrimRight(host, "/")}
}

// String deliberately hides the password so credentials can never leak through %v
func (c Credentials) String() string {
	return c.Identity().String()
}

// MarshalRemembered renders the persisted remember-me blob
func (c Credentials) MarshalRemembered() ([]byte, error) {
	return json.Marshal(c)
}

// Identity is what the user sees once logged in
type Identity struct {
	Username string
	Host     string
}

func (i Identity) String() string {
	if i.Username == "" {
		return ""
	}
	return i.Username + "@" + i.Host
}

// IsZero reports whether no one is logged in
func (i Identity) IsZero() bool {
	return i.Username == "" && i.Host == ""
}
