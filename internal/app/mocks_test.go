package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gilrm92/trading-spot/internal/domain"
)

// --- Mock implementations ---

type mockItemRepo struct {
	getByIDFn          func(ctx context.Context, id int64) (*domain.Item, error)
	getByUIDFn         func(ctx context.Context, uid int64) (*domain.Item, error)
	listActiveFn       func(ctx context.Context) ([]domain.Item, error)
	updateFn           func(ctx context.Context, id int64, update domain.ItemUpdate) (*domain.Item, error)
	softDeleteFn       func(ctx context.Context, id int64) (*domain.Item, error)
	upsertByUIDFn      func(ctx context.Context, item domain.SyncedItem) (bool, error)
	deleteExceptUIDsFn func(ctx context.Context, keep []int64) (int, error)
}

func (m *mockItemRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrItemNotFound
}

func (m *mockItemRepo) GetByUID(ctx context.Context, uid int64) (*domain.Item, error) {
	if m.getByUIDFn != nil {
		return m.getByUIDFn(ctx, uid)
	}
	return nil, domain.ErrItemNotFound
}

func (m *mockItemRepo) ListActive(ctx context.Context) ([]domain.Item, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockItemRepo) Update(ctx context.Context, id int64, update domain.ItemUpdate) (*domain.Item, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, update)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockItemRepo) SoftDelete(ctx context.Context, id int64) (*domain.Item, error) {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockItemRepo) UpsertByUID(ctx context.Context, item domain.SyncedItem) (bool, error) {
	if m.upsertByUIDFn != nil {
		return m.upsertByUIDFn(ctx, item)
	}
	return true, nil
}

func (m *mockItemRepo) DeleteExceptUIDs(ctx context.Context, keep []int64) (int, error) {
	if m.deleteExceptUIDsFn != nil {
		return m.deleteExceptUIDsFn(ctx, keep)
	}
	return 0, nil
}

// memReactionRepo applies ReactionFuncs against in-memory state, the way the
// postgres repository does inside its transaction.
type memReactionRepo struct {
	mu        sync.Mutex
	items     map[int64]*domain.Item
	reactions map[string]*domain.Reaction
	nextID    int64
	listFn    func(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.ReactionState, error)
}

func newMemReactionRepo(items ...domain.Item) *memReactionRepo {
	r := &memReactionRepo{
		items:     make(map[int64]*domain.Item),
		reactions: make(map[string]*domain.Reaction),
	}
	for i := range items {
		item := items[i]
		r.items[item.ID] = &item
	}
	return r
}

func reactionKey(itemID int64, userID string) string {
	return fmt.Sprintf("%d/%s", itemID, userID)
}

func (r *memReactionRepo) ApplyReaction(_ context.Context, itemID int64, userID string, fn domain.ReactionFunc) (*domain.ReactionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	existing := r.reactions[reactionKey(itemID, userID)]
	var snapshot *domain.Reaction
	if existing != nil {
		cp := *existing
		snapshot = &cp
	}

	state, delta, err := fn(snapshot)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		r.nextID++
		existing = &domain.Reaction{ID: r.nextID, ItemID: itemID, UserID: userID}
		r.reactions[reactionKey(itemID, userID)] = existing
	}
	existing.ReactionState = state

	item.Likes = max(item.Likes+delta.Likes, 0)
	item.Dislikes = max(item.Dislikes+delta.Dislikes, 0)
	item.HeatUps = max(item.HeatUps+delta.HeatUps, 0)

	return &domain.ReactionResult{Item: *item, Reaction: state.View()}, nil
}

func (r *memReactionRepo) ListByUser(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.ReactionState, error) {
	if r.listFn != nil {
		return r.listFn(ctx, userID, itemIDs)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]domain.ReactionState)
	for _, reaction := range r.reactions {
		if reaction.UserID == userID {
			out[reaction.ItemID] = reaction.ReactionState
		}
	}
	return out, nil
}

func (r *memReactionRepo) item(id int64) domain.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[id]
}

type mockCache struct {
	mu          sync.Mutex
	items       []domain.Item
	hit         bool
	gen         int64
	sets        int
	staleSets   int
	invalidated int
	genErr      error
	invalidErr  error
}

func (m *mockCache) Get(context.Context) ([]domain.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items, m.hit
}

func (m *mockCache) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, m.genErr
}

func (m *mockCache) Set(_ context.Context, gen int64, items []domain.Item) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		m.staleSets++
		return false
	}
	m.sets++
	m.items = items
	m.hit = true
	return true
}

func (m *mockCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	m.gen++
	m.hit = false
	m.items = nil
	return m.invalidErr
}

type mockPublisher struct {
	mu       sync.Mutex
	counters []domain.ItemCountersChanged
	catalog  []domain.CatalogChanged
	err      error
}

func (m *mockPublisher) PublishItemCounters(_ context.Context, event domain.ItemCountersChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, event)
	return m.err
}

func (m *mockPublisher) PublishCatalogChanged(_ context.Context, event domain.CatalogChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = append(m.catalog, event)
	return m.err
}

type mockItemSource struct {
	displayItemsFn func(ctx context.Context, apiKey string) ([]domain.DisplayItem, error)
	itemDetailsFn  func(ctx context.Context, apiKey string, uid int64) (*domain.ItemDetails, error)
	itemImageFn    func(ctx context.Context, apiKey string, tornID, uid int64) (*string, error)
}

func (m *mockItemSource) DisplayItems(ctx context.Context, apiKey string) ([]domain.DisplayItem, error) {
	if m.displayItemsFn != nil {
		return m.displayItemsFn(ctx, apiKey)
	}
	return nil, nil
}

func (m *mockItemSource) ItemDetails(ctx context.Context, apiKey string, uid int64) (*domain.ItemDetails, error) {
	if m.itemDetailsFn != nil {
		return m.itemDetailsFn(ctx, apiKey, uid)
	}
	return &domain.ItemDetails{}, nil
}

func (m *mockItemSource) ItemImage(ctx context.Context, apiKey string, tornID, uid int64) (*string, error) {
	if m.itemImageFn != nil {
		return m.itemImageFn(ctx, apiKey, tornID, uid)
	}
	return nil, nil
}

type mockSyncLock struct {
	err      error
	acquired int
	released int
}

func (m *mockSyncLock) TryAcquire(context.Context, time.Duration) (func(context.Context), error) {
	if m.err != nil {
		return nil, m.err
	}
	m.acquired++
	return func(context.Context) { m.released++ }, nil
}

type mockVerifier struct {
	verifyKeyFn func(ctx context.Context, apiKey string) (*domain.Profile, error)
	calls       int
}

func (m *mockVerifier) VerifyKey(ctx context.Context, apiKey string) (*domain.Profile, error) {
	m.calls++
	if m.verifyKeyFn != nil {
		return m.verifyKeyFn(ctx, apiKey)
	}
	return nil, domain.ErrInvalidCredential
}

type mockLimiter struct {
	attemptFn func(ctx context.Context, clientKey string) (domain.LoginDecision, error)
}

func (m *mockLimiter) Attempt(ctx context.Context, clientKey string) (domain.LoginDecision, error) {
	if m.attemptFn != nil {
		return m.attemptFn(ctx, clientKey)
	}
	return domain.LoginDecision{Allowed: true, Remaining: 2}, nil
}
