package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gilrm92/trading-spot/internal/domain"
	apperrors "github.com/gilrm92/trading-spot/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerItemRoutes(rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/api/items", s.handleListItems)
	s.echo.POST("/api/items/:id/reactions", s.handleItemReaction, rateLimiter)
	s.echo.POST("/api/reactions", s.handleReaction, rateLimiter)
	s.echo.POST("/api/reactions/lookup", s.handleLookupReactions)
}

func (s *Server) handleListItems(c echo.Context) error {
	items, err := s.catalog.ListItems(c.Request().Context())
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, items); err != nil {
		return fmt.Errorf("failed to write items response: %w", err)
	}
	return nil
}

type reactionRequest struct {
	ItemID   int64  `json:"itemId"`
	UserID   string `json:"userId"`
	Reaction string `json:"reaction"`
}

type reactionResponse struct {
	Success bool `json:"success"`
	domain.ReactionResult
}

// handleItemReaction takes the item id from the path.
func (s *Server) handleItemReaction(c echo.Context) error {
	itemID, err := parseItemID(c.Param("id"))
	if err != nil {
		return err
	}

	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	req.ItemID = itemID
	return s.applyReaction(c, req)
}

// handleReaction takes the item id from the body.
func (s *Server) handleReaction(c echo.Context) error {
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	return s.applyReaction(c, req)
}

func (s *Server) applyReaction(c echo.Context, req reactionRequest) error {
	result, err := s.catalog.ApplyReaction(c.Request().Context(), req.ItemID, req.UserID, req.Reaction)
	if err != nil {
		return err
	}

	resp := reactionResponse{Success: true, ReactionResult: *result}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write reaction response: %w", err)
	}
	return nil
}

type lookupRequest struct {
	UserID  string  `json:"userId"`
	ItemIDs []int64 `json:"itemIds"`
}

func (s *Server) handleLookupReactions(c echo.Context) error {
	var req lookupRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}

	reactions, err := s.catalog.LookupReactions(c.Request().Context(), req.UserID, req.ItemIDs)
	if err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, reactions); err != nil {
		return fmt.Errorf("failed to write reactions response: %w", err)
	}
	return nil
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("Invalid item ID")
	}
	return id, nil
}
