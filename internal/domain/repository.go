package domain

import (
	"context"
	"encoding/json"
)

// Action names a player_api.php operation
type Action string

const (
	ActionUserInfo         Action = "get_user_info"
	ActionLiveCategories   Action = "get_live_categories"
	ActionVODCategories    Action = "get_vod_categories"
	ActionSeriesCategories Action = "get_series_categories"
	ActionLiveStreams      Action = "get_live_streams"
	ActionVODStreams       Action = "get_vod_streams"
	ActionSeries           Action = "get_series"
	ActionSeriesInfo       Action = "get_series_info"
)

// Params are the extra query parameters of an action, for example series_id
type Params map[string]string

// Gateway forwards a provider action with the caller's credentials and returns the provider's JSON payload untouched.
// Failures are reported as one of the typed errors in errors.go.
type Gateway interface {
	Call(ctx context.Context, creds Credentials, action Action, params Params) (json.RawMessage, error)
}

// GatewayFunc adapts a function to the Gateway interface
type GatewayFunc func(ctx context.Context, creds Credentials, action Action, params Params) (json.RawMessage, error)

func (f GatewayFunc) Call(ctx context.Context, creds Credentials, action Action, params Params) (json.RawMessage, error) {
	return f(ctx, creds, action, params)
}

// KeyValueStore is the raw persistent store for credentials and favorites.  Values are JSON documents.
type KeyValueStore interface {
	// Get returns the stored value, with found=false when the key is absent
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// PersistentKeys lists every key Kiri writes, so logout can clear them all
func PersistentKeys() []string {
	keys := []string{CredentialsKey}
	for _, t := range ContentTypes {
		keys = append(keys, t.FavoritesKey())
	}
	return keys
}
