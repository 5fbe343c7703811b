package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/collab"
)

func TestGetResourcesBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/resources/batch", r.URL.Path)
		var req batchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"r1", "r2"}, req.IDs)

		_ = json.NewEncoder(w).Encode(batchResponse{Items: []Resource{
			{ID: "r1", Name: "Room 1", BasePrice: decimal.NewFromInt(100)},
		}})
	}))
	defer srv.Close()

	c := NewClient(collab.NewClient("inventory", collab.Options{BaseURL: srv.URL}))
	got, err := c.GetResources(context.Background(), []string{"r1", "r2", "r1", ""})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.Contains(t, got, "r1")
	assert.NotContains(t, got, "r2")
	assert.True(t, got["r1"].BasePrice.Equal(decimal.NewFromInt(100)))
}

func TestGetResourcesEmptySkipsCall(t *testing.T) {
	c := NewClient(collab.NewClient("inventory", collab.Options{BaseURL: "http://127.0.0.1:1"}))
	got, err := c.GetResources(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotifyChange(t *testing.T) {
	received := make(chan ChangeEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev ChangeEvent
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(collab.NewClient("inventory", collab.Options{BaseURL: srv.URL}))
	err := c.NotifyChange(context.Background(), ChangeEvent{
		Action:        ActionCreated,
		ReservationID: "res-1",
		ResourceIDs:   []string{"r1"},
		OccurredAt:    time.Now(),
	})
	require.NoError(t, err)

	ev := <-received
	assert.Equal(t, ActionCreated, ev.Action)
	assert.Equal(t, []string{"r1"}, ev.ResourceIDs)
}
