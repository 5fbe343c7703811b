package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

func TestDoRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/echo", r.URL.Path)
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["value"]})
	}))
	defer srv.Close()

	c := NewClient("pricing", Options{BaseURL: srv.URL + "/", Token: "s3cret"})
	var out map[string]string
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/v1/echo", map[string]string{"value": "hi"}, &out))
	assert.Equal(t, "hi", out["echo"])
}

func TestDoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("identity", Options{BaseURL: srv.URL})
	err := c.Do(context.Background(), http.MethodGet, "/v1/users/u1", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsRetryable(err))
}

func TestDoServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("inventory", Options{BaseURL: srv.URL})
	err := c.Do(context.Background(), http.MethodGet, "/v1/resources", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)
	assert.Equal(t, "inventory service unavailable", appErr.Message)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "inventory", se.Service)
}

func TestDoClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "card declined", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewClient("pricing", Options{BaseURL: srv.URL})
	err := c.Do(context.Background(), http.MethodPost, "/v1/refunds", map[string]string{}, nil)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrExternalService)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusPaymentRequired, se.StatusCode)
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient("organization", Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := c.Do(context.Background(), http.MethodGet, "/v1/organizations/o1", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, UniqueIDs([]string{"a", "", "b", "a"}))
	assert.Empty(t, UniqueIDs(nil))
}
