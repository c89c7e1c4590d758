package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDString(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "123", "123"},
		{"padded string", " 42 ", "42"},
		{"zero string", "0", ""},
		{"float", float64(1001), "1001"},
		{"zero float", float64(0), ""},
		{"json number", json.Number("77"), "77"},
		{"bool", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IDString(tt.in))
		})
	}
}

func TestIntValue(t *testing.T) {
	n, ok := IntValue("12abc")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = IntValue(float64(3))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = IntValue("abc")
	assert.False(t, ok)

	_, ok = IntValue(nil)
	assert.False(t, ok)
}

func TestContentTypeKeysAndActions(t *testing.T) {
	assert.Equal(t, "iptvFavorites_xtreme_live", ContentLive.FavoritesKey())
	assert.Equal(t, "iptvFavorites_xtreme_vod", ContentVOD.FavoritesKey())
	assert.Equal(t, "iptvFavorites_xtreme_series", ContentSeries.FavoritesKey())

	assert.Equal(t, ActionLiveCategories, ContentLive.CategoriesAction())
	assert.Equal(t, ActionVODCategories, ContentVOD.CategoriesAction())
	assert.Equal(t, ActionSeriesCategories, ContentSeries.CategoriesAction())
	assert.Equal(t, ActionLiveStreams, ContentLive.ItemsAction())
	assert.Equal(t, ActionVODStreams, ContentVOD.ItemsAction())
	assert.Equal(t, ActionSeries, ContentSeries.ItemsAction())

	assert.Equal(t, "movie", ContentVOD.MediaPath())

	assert.ElementsMatch(t, []string{
		"xtreme_player_credentials",
		"iptvFavorites_xtreme_live",
		"iptvFavorites_xtreme_vod",
		"iptvFavorites_xtreme_series",
	}, PersistentKeys())
}

func TestParseContentType(t *testing.T) {
	ct, err := ParseContentType("Movies")
	require.NoError(t, err)
	assert.Equal(t, ContentVOD, ct)

	_, err = ParseContentType("radio")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestCredentialsValidate(t *testing.T) {
	valid := Credentials{ServerURL: "http://example.com:8080", Username: "alice", Password: "secret"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		creds Credentials
		field string
	}{
		{"missing server", Credentials{Username: "a", Password: "b"}, "server"},
		{"missing username", Credentials{ServerURL: "http://x", Password: "b"}, "username"},
		{"missing password", Credentials{ServerURL: "http://x", Username: "a"}, "password"},
		{"bad scheme", Credentials{ServerURL: "ftp://x", Username: "a", Password: "b"}, "server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestCredentialsNeverPrintPassword(t *testing.T) {
	creds := Credentials{ServerURL: "https://iptv.example.com:8080/", Username: "alice", Password: "hunter2"}

	assert.Equal(t, "alice@iptv.example.com:8080", creds.Identity().String())
	assert.NotContains(t, fmt.Sprintf("%v", creds), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%s", creds), "hunter2")
	assert.Equal(t, "https://iptv.example.com:8080", creds.BaseURL())
}

func TestRememberedBlobShape(t *testing.T) {
	creds := Credentials{ServerURL: "http://x", Username: "a", Password: "b", Remember: true}
	data, err := creds.MarshalRemembered()
	require.NoError(t, err)
	assert.JSONEq(t, `{"serverUrl":"http://x","username":"a","password":"b"}`, string(data))
}

func TestFavorites(t *testing.T) {
	favs := Favorites{ContentVOD: {"1", "2"}}
	assert.True(t, favs.Contains(ContentVOD, "2"))
	assert.False(t, favs.Contains(ContentLive, "2"))

	clone := favs.Clone()
	clone[ContentVOD][0] = "changed"
	assert.Equal(t, "1", favs[ContentVOD][0])
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Account expired", UserMessage(&AuthenticationError{Message: "Account expired"}))
	assert.Equal(t, "The server took too long to respond.", UserMessage(fmt.Errorf("sync: %w", &TimeoutError{Op: "get_series"})))
	assert.Equal(t, "The server returned an error (503).", UserMessage(&UpstreamError{Status: 503}))
	assert.Equal(t, "boom", UserMessage(&PlaybackError{Kind: PlaybackMedia, Message: "boom"}))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("favorites: %w", &StorageError{Op: "set", Key: "k", Err: cause})
	assert.ErrorIs(t, err, cause)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "set", storageErr.Op)
}
