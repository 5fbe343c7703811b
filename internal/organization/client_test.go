package organization

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

func newDirectory(t *testing.T) Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/organizations/o1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Organization{ID: "o1", Name: "Harbour Inn", IsActive: true})
	})
	mux.HandleFunc("POST /v1/organizations/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var items []Organization
		for _, id := range req.IDs {
			if id == "o1" || id == "o2" {
				items = append(items, Organization{ID: id, Name: "org " + id})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})
	mux.HandleFunc("GET /v1/organizations/o1/members/{user}", func(w http.ResponseWriter, r *http.Request) {
		roles := map[string]string{"boss": RoleOwner, "staff": RoleAdmin, "guest": RoleMember}
		role, ok := roles[r.PathValue("user")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Member{UserID: r.PathValue("user"), Role: role})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(collab.NewClient("organization", collab.Options{BaseURL: srv.URL}))
}

func TestGetOrganization(t *testing.T) {
	c := newDirectory(t)

	org, err := c.GetOrganization(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "Harbour Inn", org.Name)

	_, err = c.GetOrganization(context.Background(), "o9")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestGetOrganizations(t *testing.T) {
	c := newDirectory(t)

	got, err := c.GetOrganizations(context.Background(), []string{"o1", "o2", "o3", "o1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "org o2", got["o2"].Name)
}

func TestIsManager(t *testing.T) {
	c := newDirectory(t)
	ctx := context.Background()

	cases := map[string]bool{"boss": true, "staff": true, "guest": false, "stranger": false}
	for user, want := range cases {
		got, err := c.IsManager(ctx, "o1", user)
		require.NoError(t, err, user)
		assert.Equal(t, want, got, user)
	}
}
