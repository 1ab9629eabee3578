package httpserver

import (
	"log/slog"

	apperrors "github.com/gilrm92/trading-spot/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// handleWebSocket upgrades the connection and hands it to the hub, then reads
// until the client goes away. Clients never send anything meaningful; reading
// drives pong handling and close detection.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if !s.wsLimiter.Acquire(ip) {
		return apperrors.RateLimitedError("Too many live connections")
	}
	defer s.wsLimiter.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.DebugContext(c.Request().Context(), "Websocket upgrade failed", "error", err)
		return nil
	}

	id, err := s.hub.Register(conn)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Websocket client rejected", "error", err)
		return nil
	}
	defer s.hub.Unregister(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
