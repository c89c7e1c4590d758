// Package session validates provider credentials and owns the logged in identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
)

// Protocols offered by the login form
var Protocols = []string{"http://", "https://"}

// Manager establishes and tears down the single active session
type Manager struct {
	gateway domain.Gateway
	store   domain.KeyValueStore

	mu       sync.RWMutex
	creds    *domain.Credentials
	teardown []func()
}

func NewManager(gateway domain.Gateway, store domain.KeyValueStore) *Manager {
	return &Manager{gateway: gateway, store: store}
}

// OnLogout registers a hook run by Logout before persisted state is removed.  Hooks run in registration order.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardown = append(m.teardown, fn)
}

// BuildCredentials assembles credentials from the login form.  The server field holds host[:port] only; the scheme
// comes from the protocol selector.
func BuildCredentials(protocol, server, username, password string, remember bool) (domain.Credentials, error) {
	server = strings.TrimSpace(server)
	username = strings.TrimSpace(username)

	if server == "" || username == "" || password == "" {
		return domain.Credentials{}, &domain.ValidationError{Message: "Please fill in all fields."}
	}
	if strings.Contains(server, "://") {
		return domain.Credentials{}, &domain.ValidationError{
			Field:   "server",
			Message: "Server field should not contain http:// or https://. Select protocol from dropdown.",
		}
	}
	if protocol != "http://" && protocol != "https://" {
		protocol = "http://"
	}

	creds := domain.Credentials{
		ServerURL: protocol + strings.TrimRight(server, "/"),
		Username:  username,
		Password:  password,
		Remember:  remember,
	}
	return creds, creds.Validate()
}

// Validate checks creds against the provider.  On success the identity is stored and the remember-me blob is written or
// removed according to creds.Remember.  On failure any previous identity is cleared.
func (m *Manager) Validate(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	if err := creds.Validate(); err != nil {
		m.clear()
		return domain.Identity{}, err
	}

	log.Info("Validating credentials", "identity", creds.Identity().String())

	data, err := m.gateway.Call(ctx, creds, domain.ActionUserInfo, nil)
	if err != nil {
		m.clear()
		var upstreamErr *domain.UpstreamError
		if errors.As(err, &upstreamErr) && (upstreamErr.Status == 401 || upstreamErr.Status == 403) {
			return domain.Identity{}, &domain.AuthenticationError{Message: upstreamErr.Message}
		}
		return domain.Identity{}, err
	}

	if err := checkUserInfo(data); err != nil {
		m.clear()
		log.Warn("Provider rejected credentials", "identity", creds.Identity().String(), "error", err)
		return domain.Identity{}, err
	}

	m.mu.Lock()
	stored := creds
	m.creds = &stored
	m.mu.Unlock()

	m.persist(ctx, creds)

	log.Info("Login successful", "identity", creds.Identity().String(), "remember", creds.Remember)
	return creds.Identity(), nil
}

// AutoLogin validates remembered credentials.  found is false when nothing usable was stored.  Invalid blobs and
// credentials the provider rejects are removed from the store.
func (m *Manager) AutoLogin(ctx context.Context) (identity domain.Identity, found bool, err error) {
	creds, ok := m.loadRemembered(ctx)
	if !ok {
		return domain.Identity{}, false, nil
	}

	identity, err = m.Validate(ctx, creds)
	if err != nil {
		var authErr *domain.AuthenticationError
		if errors.As(err, &authErr) {
			log.Info("Removing remembered credentials after failed auto-login", "identity", creds.Identity().String())
			m.deleteKey(ctx, domain.CredentialsKey)
		}
		return domain.Identity{}, true, err
	}
	return identity, true, nil
}

// Remembered returns the stored credentials without validating them, for pre-filling the login form
func (m *Manager) Remembered(ctx context.Context) (domain.Credentials, bool) {
	return m.loadRemembered(ctx)
}

// Logout runs teardown hooks, forgets the identity and removes every persisted key
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	hooks := append([]func(){}, m.teardown...)
	identity := ""
	if m.creds != nil {
		identity = m.creds.Identity().String()
	}
	m.mu.RUnlock()

	for _, hook := range hooks {
		hook()
	}

	for _, key := range domain.PersistentKeys() {
		m.deleteKey(ctx, key)
	}

	m.clear()
	log.Info("Logged out", "identity", identity)
}

// Credentials returns the active credentials
func (m *Manager) Credentials() (domain.Credentials, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return domain.Credentials{}, false
	}
	return *m.creds, true
}

// Identity returns the displayable identity, zero when logged out
func (m *Manager) Identity() domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return domain.Identity{}
	}
	return m.creds.Identity()
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.creds = nil
	m.mu.Unlock()
}

func (m *Manager) persist(ctx context.Context, creds domain.Credentials) {
	if !creds.Remember {
		m.deleteKey(ctx, domain.CredentialsKey)
		return
	}

	data, err := creds.MarshalRemembered()
	if err == nil {
		err = m.store.Set(ctx, domain.CredentialsKey, data)
	}
	if err != nil {
		log.Error("Failed to remember credentials", "error", &domain.StorageError{Op: "set", Key: domain.CredentialsKey, Err: err})
	}
}

func (m *Manager) deleteKey(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		log.Error("Failed to delete stored key", "error", &domain.StorageError{Op: "delete", Key: key, Err: err})
	}
}

// loadRemembered reads and strictly validates the remember-me blob.  A blob of the wrong shape is deleted.
func (m *Manager) loadRemembered(ctx context.Context) (domain.Credentials, bool) {
	data, found, err := m.store.Get(ctx, domain.CredentialsKey)
	if err != nil {
		log.Error("Failed to read remembered credentials", "error", &domain.StorageError{Op: "get", Key: domain.CredentialsKey, Err: err})
		return domain.Credentials{}, false
	}
	if !found {
		return domain.Credentials{}, false
	}

	var blob struct {
		ServerURL *string `json:"serverUrl"`
		Username  *string `json:"username"`
		Password  *string `json:"password"`
	}
	if err := json.Unmarshal(data, &blob); err != nil ||
		blob.ServerURL == nil || *blob.ServerURL == "" ||
		blob.Username == nil || *blob.Username == "" ||
		blob.Password == nil {
		log.Warn("Discarding invalid remembered credentials")
		m.deleteKey(ctx, domain.CredentialsKey)
		return domain.Credentials{}, false
	}

	return domain.Credentials{
		ServerURL: *blob.ServerURL,
		Username:  *blob.Username,
		Password:  *blob.Password,
		Remember:  true,
	}, true
}

// checkUserInfo accepts only user_info.auth as the JSON number 1
func checkUserInfo(data json.RawMessage) error {
	var resp struct {
		UserInfo *struct {
			Auth    interface{} `json:"auth"`
			Message string      `json:"message"`
		} `json:"user_info"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		// Arrays and scalars are not a user_info response, which for login purposes is a rejection
		return &domain.AuthenticationError{Message: "Authentication failed. Check server URL and credentials."}
	}

	if resp.UserInfo != nil && isAuthOne(resp.UserInfo.Auth) {
		return nil
	}

	message := resp.Message
	if resp.UserInfo != nil && resp.UserInfo.Message != "" {
		message = resp.UserInfo.Message
	}
	if message == "" {
		message = "Authentication failed. Check server URL and credentials."
	}
	return &domain.AuthenticationError{Message: message}
}

func isAuthOne(v interface{}) bool {
	n, ok := v.(float64)
	return ok && n == 1
}
