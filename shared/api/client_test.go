package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDecodesSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/things/42", r.URL.Path)
		WriteJSON(w, http.StatusOK, map[string]string{"name": "widget"})
	}))
	defer server.Close()

	client := NewClient(server.URL, NewDefaultHTTPClient())

	var result struct {
		Name string `json:"name"`
	}
	err := client.Get(context.Background(), "/things/42", &result)
	require.NoError(t, err)
	assert.Equal(t, "widget", result.Name)
}

func TestClientMapsStatusCodesToSentinels(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusNotFound, want: ErrNotFound},
		{status: http.StatusConflict, want: ErrConflict},
		{status: http.StatusBadRequest, want: ErrBadRequest},
		{status: http.StatusUnauthorized, want: ErrUnauthorized},
		{status: http.StatusForbidden, want: ErrForbidden},
		{status: http.StatusInternalServerError, want: ErrInternalError},
		{status: http.StatusServiceUnavailable, want: ErrInternalError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, tt.status, "nope")
			}))
			defer server.Close()

			client := NewClient(server.URL, NewDefaultHTTPClient())
			err := client.Get(context.Background(), "/things/42", nil)
			require.Error(t, err)

			// Both checks must hold on the same error value.
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsHTTPError(err, tt.status))

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, "nope", httpErr.Message)
		})
	}
}

func TestClientUnmappedStatusKeepsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusTeapot, "short and stout")
	}))
	defer server.Close()

	client := NewClient(server.URL, NewDefaultHTTPClient())
	err := client.Get(context.Background(), "/brew", nil)
	require.Error(t, err)

	assert.True(t, IsHTTPError(err, http.StatusTeapot))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInternalError))
}

func TestIsHTTPErrorZeroStatusMatchesAny(t *testing.T) {
	err := createHTTPError(http.StatusConflict, "dup", "http://x/y", http.MethodPost)
	assert.True(t, IsHTTPError(err, 0))
	assert.True(t, IsHTTPError(err, http.StatusConflict))
	assert.False(t, IsHTTPError(err, http.StatusNotFound))

	assert.False(t, IsHTTPError(errors.New("plain"), 0))
}
