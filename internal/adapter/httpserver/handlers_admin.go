package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gilrm92/trading-spot/internal/app"
	"github.com/gilrm92/trading-spot/internal/domain"
	apperrors "github.com/gilrm92/trading-spot/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerAdminRoutes() {
	admin := s.echo.Group("/api/admin", s.requireAdmin)

	// The id may come from the path or, for older clients, from ?id=.
	admin.PUT("/items/:id", s.handleUpdateItem)
	admin.PUT("/items", s.handleUpdateItem)
	admin.DELETE("/items/:id", s.handleDeleteItem)
	admin.DELETE("/items", s.handleDeleteItem)

	admin.POST("/sync", s.handleSync)
	admin.GET("/sync", s.handleSync)
}

type itemResponse struct {
	Success bool         `json:"success"`
	Item    *domain.Item `json:"item"`
}

type syncResponse struct {
	Success bool `json:"success"`
	*domain.SyncResult
}

func itemIDFromRequest(c echo.Context) (int64, error) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.QueryParam("id")
	}
	if raw == "" {
		return 0, apperrors.ValidationError("Item ID is required")
	}
	return parseItemID(raw)
}

func (s *Server) handleUpdateItem(c echo.Context) error {
	itemID, err := itemIDFromRequest(c)
	if err != nil {
		return err
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}

	update, err := app.ParseItemUpdate(body)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	item, err := s.catalog.UpdateItem(ctx, itemID, update)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Item updated", "item_id", itemID, "profile_id", c.Get("userID"))
	if err := c.JSON(http.StatusOK, itemResponse{Success: true, Item: item}); err != nil {
		return fmt.Errorf("failed to write item response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteItem(c echo.Context) error {
	itemID, err := itemIDFromRequest(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	item, err := s.catalog.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Item deleted", "item_id", itemID, "profile_id", c.Get("userID"))
	if err := c.JSON(http.StatusOK, itemResponse{Success: true, Item: item}); err != nil {
		return fmt.Errorf("failed to write item response: %w", err)
	}
	return nil
}

// handleSync runs detached from the request so a closed browser tab does not
// abort a half-written sync. The lease TTL bounds the run.
func (s *Server) handleSync(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.config.SyncLockTTL)
	defer cancel()

	result, err := s.sync.Run(ctx, c.QueryParam("key"))
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, syncResponse{Success: true, SyncResult: result}); err != nil {
		return fmt.Errorf("failed to write sync response: %w", err)
	}
	return nil
}
