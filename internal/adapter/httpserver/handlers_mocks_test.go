package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/gilrm92/trading-spot/internal/platform/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockCatalog struct {
	listItemsFn       func(ctx context.Context) ([]domain.Item, error)
	applyReactionFn   func(ctx context.Context, itemID int64, userID, reaction string) (*domain.ReactionResult, error)
	lookupReactionsFn func(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.UserReaction, error)
	updateItemFn      func(ctx context.Context, itemID int64, update domain.ItemUpdate) (*domain.Item, error)
	deleteItemFn      func(ctx context.Context, itemID int64) (*domain.Item, error)
}

func (m *mockCatalog) ListItems(ctx context.Context) ([]domain.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx)
	}
	return []domain.Item{}, nil
}

func (m *mockCatalog) ApplyReaction(ctx context.Context, itemID int64, userID, reaction string) (*domain.ReactionResult, error) {
	if m.applyReactionFn != nil {
		return m.applyReactionFn(ctx, itemID, userID, reaction)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCatalog) LookupReactions(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.UserReaction, error) {
	if m.lookupReactionsFn != nil {
		return m.lookupReactionsFn(ctx, userID, itemIDs)
	}
	return map[int64]domain.UserReaction{}, nil
}

func (m *mockCatalog) UpdateItem(ctx context.Context, itemID int64, update domain.ItemUpdate) (*domain.Item, error) {
	if m.updateItemFn != nil {
		return m.updateItemFn(ctx, itemID, update)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCatalog) DeleteItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, itemID)
	}
	return nil, errors.New("not implemented")
}

type mockSyncRunner struct {
	runFn func(ctx context.Context, apiKey string) (*domain.SyncResult, error)
}

func (m *mockSyncRunner) Run(ctx context.Context, apiKey string) (*domain.SyncResult, error) {
	if m.runFn != nil {
		return m.runFn(ctx, apiKey)
	}
	return &domain.SyncResult{}, nil
}

type mockAuthenticator struct {
	loginFn func(ctx context.Context, apiKey, clientKey string) (*domain.Profile, error)
	allowed map[int64]bool
}

func (m *mockAuthenticator) Login(ctx context.Context, apiKey, clientKey string) (*domain.Profile, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, apiKey, clientKey)
	}
	return nil, domain.ErrInvalidCredential
}

func (m *mockAuthenticator) IsAllowed(profileID int64) bool {
	return m.allowed[profileID]
}

type mockHub struct {
	registerFn   func(conn *websocket.Conn) (uuid.UUID, error)
	unregistered chan uuid.UUID
}

func (m *mockHub) Register(conn *websocket.Conn) (uuid.UUID, error) {
	if m.registerFn != nil {
		return m.registerFn(conn)
	}
	return uuid.New(), nil
}

func (m *mockHub) Unregister(id uuid.UUID) {
	if m.unregistered != nil {
		m.unregistered <- id
	}
}

// --- Test helpers ---

const testAdminID int64 = 3165209

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		Port:                  "0",
		AppURL:                "https://trading-spot.example.com",
		SessionSecret:         "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:         time.Hour,
		TokenTTL:              time.Hour,
		ReactionRatePerSecond: 100,
		ReactionBurst:         100,
		SyncLockTTL:           time.Minute,
	}
}

type testServerOpts struct {
	deps Deps
	cfg  *config.Config
}

func withCatalog(c catalogService) func(*testServerOpts) {
	return func(o *testServerOpts) { o.deps.Catalog = c }
}

func withSync(r syncRunner) func(*testServerOpts) {
	return func(o *testServerOpts) { o.deps.Sync = r }
}

func withAuth(a authenticator) func(*testServerOpts) {
	return func(o *testServerOpts) { o.deps.Auth = a }
}

func withHub(h liveHub) func(*testServerOpts) {
	return func(o *testServerOpts) { o.deps.Hub = h }
}

func withHealthChecks(checks ...HealthCheck) func(*testServerOpts) {
	return func(o *testServerOpts) { o.deps.HealthChecks = checks }
}

func withClock(clock clockwork.Clock) func(*testServerOpts) {
	return func(o *testServerOpts) { o.deps.Clock = clock }
}

func withConfig(mutate func(*config.Config)) func(*testServerOpts) {
	return func(o *testServerOpts) { mutate(o.cfg) }
}

func newTestServer(t *testing.T, opts ...func(*testServerOpts)) *Server {
	t.Helper()

	o := &testServerOpts{
		deps: Deps{
			Catalog: &mockCatalog{},
			Sync:    &mockSyncRunner{},
			Auth:    &mockAuthenticator{allowed: map[int64]bool{testAdminID: true}},
			Hub:     &mockHub{},
		},
		cfg: testConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return NewServer(o.cfg, o.deps)
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware(nil)(handler)(c)
}

// serve runs req through the full router and middleware chain.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func bearerToken(t *testing.T, srv *Server, profileID int64) string {
	t.Helper()
	token, err := srv.tokens.Issue(profileID)
	require.NoError(t, err)
	return "Bearer " + token
}
