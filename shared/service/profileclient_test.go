package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/models"
)

func TestGetProfileAcceptsOpaqueIDs(t *testing.T) {
	// Profile IDs come from external identity providers and are not
	// necessarily UUIDs; the client must pass them through untouched.
	const profileID = "auth0|user-abc"

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		api.WriteJSON(w, http.StatusOK, models.Profile{
			ID:       profileID,
			Username: "mc_flow",
			Coins:    750,
		})
	}))
	defer server.Close()

	client := NewProfileClient(server.URL)
	profile, err := client.GetProfile(context.Background(), profileID)
	require.NoError(t, err)

	assert.Equal(t, "/profiles/"+profileID, gotPath)
	assert.Equal(t, profileID, profile.ID)
	assert.Equal(t, "mc_flow", profile.Username)
	assert.Equal(t, int64(750), profile.Coins)
}

func TestGetProfileMapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, "Profile missing not found")
	}))
	defer server.Close()

	client := NewProfileClient(server.URL)
	_, err := client.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestDebitCoinsMapsConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/profiles/broke/coins/debit", r.URL.Path)
		api.WriteConflict(w, "Insufficient coins")
	}))
	defer server.Close()

	client := NewProfileClient(server.URL)
	err := client.DebitCoins(context.Background(), "broke", 500, "battle publish")
	assert.ErrorIs(t, err, api.ErrConflict)
}
