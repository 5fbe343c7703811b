package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/collab"
)

func newTestClient(t *testing.T, users map[string]User) Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/users/"):]
		u, ok := users[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	}))
	t.Cleanup(srv.Close)
	return NewClient(collab.NewClient("identity", collab.Options{BaseURL: srv.URL}))
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, map[string]User{
		"u1": {ID: "u1", Email: "a@example.com", IsActive: true},
	})

	u, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = c.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequireActive(t *testing.T) {
	c := newTestClient(t, map[string]User{
		"active":   {ID: "active", IsActive: true},
		"disabled": {ID: "disabled", IsActive: false},
	})

	assert.NoError(t, RequireActive(context.Background(), c, "active"))
	assert.ErrorIs(t, RequireActive(context.Background(), c, "disabled"), ErrInactiveUser)
	assert.ErrorIs(t, RequireActive(context.Background(), c, "nobody"), ErrUserNotFound)
}
