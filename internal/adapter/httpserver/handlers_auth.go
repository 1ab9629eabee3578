package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gilrm92/trading-spot/internal/app"
	"github.com/gilrm92/trading-spot/internal/domain"
	apperrors "github.com/gilrm92/trading-spot/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerAuthRoutes() {
	s.echo.POST("/api/auth/login", s.handleLogin)
	s.echo.POST("/api/auth/logout", s.handleLogout)
}

type loginRequest struct {
	APIKey string `json:"apiKey"`
}

type loginResponse struct {
	Success bool           `json:"success"`
	Token   string         `json:"token"`
	User    domain.Profile `json:"user"`
}

type rateLimitedResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	WaitTime int    `json:"waitTime"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}

	ctx := c.Request().Context()
	profile, err := s.auth.Login(ctx, strings.TrimSpace(req.APIKey), c.RealIP())
	if err != nil {
		var rateLimited *app.RateLimitedError
		if errors.As(err, &rateLimited) {
			return writeLoginRateLimited(c, rateLimited.Decision)
		}
		return err
	}

	token, err := s.tokens.Issue(profile.ID)
	if err != nil {
		return apperrors.InternalError("failed to issue token", err)
	}

	session, err := s.sessionStore.New(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(ctx, "Discarding unreadable session cookie", "error", err)
	}
	// Nothing from before login survives into the admin session.
	session.Values = map[any]any{sessionKeyProfileID: profile.ID}
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	resp := loginResponse{Success: true, Token: token, User: *profile}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write login response: %w", err)
	}
	return nil
}

func writeLoginRateLimited(c echo.Context, decision domain.LoginDecision) error {
	wait := waitSeconds(decision)
	c.Response().Header().Set("Retry-After", strconv.Itoa(wait))

	resp := rateLimitedResponse{
		Error:    "Too many attempts",
		Message:  fmt.Sprintf("Please wait %d seconds before trying again", wait),
		WaitTime: wait,
	}
	if err := c.JSON(http.StatusTooManyRequests, resp); err != nil {
		return fmt.Errorf("failed to write rate limit response: %w", err)
	}
	return nil
}

// waitSeconds rounds the remaining window up to whole seconds, never below one.
func waitSeconds(decision domain.LoginDecision) int {
	wait := int(math.Ceil(decision.RetryAfter.Seconds()))
	return max(wait, 1)
}

func (s *Server) handleLogout(c echo.Context) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.InternalError("failed to create new session during logout", err)
		}
	}
	profileID, _ := session.Values[sessionKeyProfileID].(int64)
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save logout session", err)
	}

	if profileID != 0 {
		slog.InfoContext(c.Request().Context(), "Admin logged out", "profile_id", profileID)
	}

	if err := c.JSON(http.StatusOK, map[string]bool{"success": true}); err != nil {
		return fmt.Errorf("failed to write logout response: %w", err)
	}
	return nil
}

// requireAdmin accepts a bearer token or the session cookie, and rechecks the
// permitted set on every request so removing an id takes effect immediately.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		profileID, ok := s.authenticatedProfile(c)
		if !ok || !s.auth.IsAllowed(profileID) {
			return apperrors.UnauthorizedError("Unauthorized")
		}
		c.Set("userID", profileID)
		return next(c)
	}
}

func (s *Server) authenticatedProfile(c echo.Context) (int64, bool) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return 0, false
		}
		profileID, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			return 0, false
		}
		return profileID, true
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return 0, false
	}
	profileID, ok := session.Values[sessionKeyProfileID].(int64)
	return profileID, ok && profileID != 0
}
