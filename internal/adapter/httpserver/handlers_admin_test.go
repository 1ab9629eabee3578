package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRequest(t *testing.T, srv *Server, method, target, body string) *http.Request {
	t.Helper()
	req := jsonRequest(method, target, body)
	req.Header.Set("Authorization", bearerToken(t, srv, testAdminID))
	return req
}

// --- handleUpdateItem tests ---

func TestHandleUpdateItem(t *testing.T) {
	var gotID int64
	var gotUpdate domain.ItemUpdate
	catalog := &mockCatalog{
		updateItemFn: func(_ context.Context, itemID int64, update domain.ItemUpdate) (*domain.Item, error) {
			gotID, gotUpdate = itemID, update
			return &domain.Item{ID: itemID, Name: "Riot Helmet", IsSold: true}, nil
		},
	}
	srv := newTestServer(t, withCatalog(catalog))

	rec := serve(srv, adminRequest(t, srv, http.MethodPut, "/api/admin/items/42", `{"myPrice":"","isSold":true,"likes":5}`))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, int64(42), gotID)
	assert.True(t, gotUpdate.MyPrice.Set)
	assert.Nil(t, gotUpdate.MyPrice.Value, "an empty price clears the field")
	require.NotNil(t, gotUpdate.IsSold)
	assert.True(t, *gotUpdate.IsSold)
	require.NotNil(t, gotUpdate.Likes)
	assert.Equal(t, 5, *gotUpdate.Likes)
	assert.False(t, gotUpdate.MyDescription.Set)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["item"].(map[string]any)["isSold"])
}

func TestHandleUpdateItem_QueryIDFallback(t *testing.T) {
	var gotID int64
	catalog := &mockCatalog{
		updateItemFn: func(_ context.Context, itemID int64, _ domain.ItemUpdate) (*domain.Item, error) {
			gotID = itemID
			return &domain.Item{ID: itemID}, nil
		},
	}
	srv := newTestServer(t, withCatalog(catalog))

	rec := serve(srv, adminRequest(t, srv, http.MethodPut, "/api/admin/items?id=7", `{"myDescription":"Mint"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), gotID)
}

func TestHandleUpdateItem_Validation(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		body    string
		message string
	}{
		{"missing id", "/api/admin/items", `{"isSold":true}`, "Item ID is required"},
		{"bad id", "/api/admin/items/zero", `{"isSold":true}`, "Invalid item ID"},
		{"negative price", "/api/admin/items/1", `{"myPrice":-1}`, "myPrice must be a non-negative number"},
		{"non boolean sold", "/api/admin/items/1", `{"isSold":"yes"}`, "isSold must be a boolean"},
		{"not json", "/api/admin/items/1", `myPrice=1`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			rec := serve(srv, adminRequest(t, srv, http.MethodPut, tt.target, tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestHandleUpdateItem_NotFound(t *testing.T) {
	catalog := &mockCatalog{
		updateItemFn: func(context.Context, int64, domain.ItemUpdate) (*domain.Item, error) {
			return nil, fmt.Errorf("failed to update item: %w", domain.ErrItemNotFound)
		},
	}
	srv := newTestServer(t, withCatalog(catalog))

	rec := serve(srv, adminRequest(t, srv, http.MethodPut, "/api/admin/items/404", `{"isSold":false}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Item not found")
}

func TestHandleUpdateItem_RequiresAdmin(t *testing.T) {
	called := false
	catalog := &mockCatalog{
		updateItemFn: func(context.Context, int64, domain.ItemUpdate) (*domain.Item, error) {
			called = true
			return &domain.Item{}, nil
		},
	}
	srv := newTestServer(t, withCatalog(catalog))

	rec := serve(srv, jsonRequest(http.MethodPut, "/api/admin/items/1", `{"isSold":true}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

// --- handleDeleteItem tests ---

func TestHandleDeleteItem(t *testing.T) {
	catalog := &mockCatalog{
		deleteItemFn: func(_ context.Context, itemID int64) (*domain.Item, error) {
			return &domain.Item{ID: itemID, IsDeleted: true}, nil
		},
	}
	srv := newTestServer(t, withCatalog(catalog))

	for _, target := range []string{"/api/admin/items/9", "/api/admin/items?id=9"} {
		rec := serve(srv, adminRequest(t, srv, http.MethodDelete, target, ""))
		require.Equal(t, http.StatusOK, rec.Code, target)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		item := resp["item"].(map[string]any)
		assert.InDelta(t, 9, item["id"], 0)
		assert.Equal(t, true, item["isDeleted"])
	}
}

// --- handleSync tests ---

func TestHandleSync(t *testing.T) {
	var gotKey string
	runner := &mockSyncRunner{
		runFn: func(_ context.Context, apiKey string) (*domain.SyncResult, error) {
			gotKey = apiKey
			return &domain.SyncResult{Created: 1, Updated: 1, Removed: 2, Total: 3, Errors: []string{"Failed to fetch details for UID 5: timeout"}}, nil
		},
	}
	srv := newTestServer(t, withSync(runner))

	rec := serve(srv, adminRequest(t, srv, http.MethodPost, "/api/admin/sync?key=torn-key", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "torn-key", gotKey)
	assert.JSONEq(t, `{
		"success":true,"created":1,"updated":1,"removed":2,"total":3,
		"errors":["Failed to fetch details for UID 5: timeout"]
	}`, rec.Body.String())
}

func TestHandleSync_NoErrorsOmitted(t *testing.T) {
	runner := &mockSyncRunner{
		runFn: func(context.Context, string) (*domain.SyncResult, error) {
			return &domain.SyncResult{Updated: 2, Total: 2}, nil
		},
	}
	srv := newTestServer(t, withSync(runner))

	rec := serve(srv, adminRequest(t, srv, http.MethodGet, "/api/admin/sync?key=k", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "errors")
}

func TestHandleSync_SurvivesClientCancel(t *testing.T) {
	runner := &mockSyncRunner{
		runFn: func(ctx context.Context, _ string) (*domain.SyncResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &domain.SyncResult{}, nil
		},
	}
	srv := newTestServer(t, withSync(runner))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := adminRequest(t, srv, http.MethodPost, "/api/admin/sync?key=k", "").WithContext(ctx)
	assert.Equal(t, http.StatusOK, serve(srv, req).Code)
}

func TestHandleSync_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"missing key", domain.NewValidationError("key", "API key is required"), http.StatusBadRequest, "API key is required"},
		{"already running", domain.ErrSyncInProgress, http.StatusConflict, "Sync already in progress"},
		{
			"upstream api error",
			fmt.Errorf("failed to fetch display items: %w", &domain.UpstreamError{Op: "display", Message: "Incorrect key"}),
			http.StatusBadGateway,
			"Incorrect key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockSyncRunner{
				runFn: func(context.Context, string) (*domain.SyncResult, error) { return nil, tt.err },
			}
			srv := newTestServer(t, withSync(runner))

			rec := serve(srv, adminRequest(t, srv, http.MethodPost, "/api/admin/sync", ""))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}
