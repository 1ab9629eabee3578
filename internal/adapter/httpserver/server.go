package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	wsadapter "github.com/gilrm92/trading-spot/internal/adapter/websocket"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/gilrm92/trading-spot/internal/platform/config"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

type catalogService interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	ApplyReaction(ctx context.Context, itemID int64, userID, reaction string) (*domain.ReactionResult, error)
	LookupReactions(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.UserReaction, error)
	UpdateItem(ctx context.Context, itemID int64, update domain.ItemUpdate) (*domain.Item, error)
	DeleteItem(ctx context.Context, itemID int64) (*domain.Item, error)
}

type syncRunner interface {
	Run(ctx context.Context, apiKey string) (*domain.SyncResult, error)
}

type authenticator interface {
	Login(ctx context.Context, apiKey, clientKey string) (*domain.Profile, error)
	IsAllowed(profileID int64) bool
}

type liveHub interface {
	Register(conn *websocket.Conn) (uuid.UUID, error)
	Unregister(id uuid.UUID)
}

// Deps are the collaborators the HTTP layer calls into. Metrics, MetricsHandler
// and HealthChecks are optional.
type Deps struct {
	Catalog        catalogService
	Sync           syncRunner
	Auth           authenticator
	Hub            liveHub
	Metrics        *metrics.HTTPMetrics
	MetricsHandler http.Handler
	HealthChecks   []HealthCheck
	Clock          clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	catalog catalogService
	sync    syncRunner
	auth    authenticator
	hub     liveHub

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler

	sessionStore *sessions.CookieStore
	tokens       *tokenIssuer
	upgrader     websocket.Upgrader
	wsLimiter    *ipConnectionLimiter
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:           e,
		config:         cfg,
		catalog:        deps.Catalog,
		sync:           deps.Sync,
		auth:           deps.Auth,
		hub:            deps.Hub,
		httpMetrics:    deps.Metrics,
		metricsHandler: deps.MetricsHandler,
		sessionStore:   setupSessionStore(cfg),
		tokens:         newTokenIssuer(cfg.SessionSecret, cfg.TokenTTL, clock),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     wsadapter.NewCheckOrigin(cfg.AppURL, cfg.AppEnv == "development"),
		},
		wsLimiter:    newIPConnectionLimiter(maxWebSocketsPerIP),
		healthChecks: deps.HealthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Session keys
const (
	sessionName         = "tradingspot-session"
	sessionKeyProfileID = "profile_id"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
