package app

import (
	"context"
	"errors"
	"time"

	"github.com/gilrm92/trading-spot/internal/domain"
)

const maxUserIDLength = 128

// ApplyReaction records a like, dislike or heat-up from userID on itemID and
// returns the item with its new counters plus the user's resulting reaction.
func (s *Service) ApplyReaction(ctx context.Context, itemID int64, userID, reaction string) (*domain.ReactionResult, error) {
	if itemID <= 0 || userID == "" || reaction == "" {
		return nil, domain.NewValidationError("", "itemId, reaction, and userId are required")
	}
	if len(userID) > maxUserIDLength {
		return nil, domain.NewValidationError("userId", "userId must be at most 128 characters")
	}
	kind, err := domain.ParseReactionKind(reaction)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now()
	result, err := s.reactions.ApplyReaction(ctx, itemID, userID, func(existing *domain.Reaction) (domain.ReactionState, domain.CounterDelta, error) {
		return decideReaction(existing, kind)
	})
	s.observeReaction(kind, start, err)
	if err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	s.publishCounters(ctx, &result.Item)
	return result, nil
}

// LookupReactions returns the user's reactions keyed by item id. Empty itemIDs means every item.
func (s *Service) LookupReactions(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.UserReaction, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "userId is required")
	}

	states, err := s.reactions.ListByUser(ctx, userID, itemIDs)
	if err != nil {
		return nil, err
	}

	views := make(map[int64]domain.UserReaction, len(states))
	for itemID, state := range states {
		views[itemID] = state.View()
	}
	return views, nil
}

// decideReaction is the reaction state machine. Likes and dislikes are one-directional
// until switched, so a repeated like or dislike is rejected. Heat-ups toggle.
func decideReaction(existing *domain.Reaction, kind domain.ReactionKind) (domain.ReactionState, domain.CounterDelta, error) {
	if existing == nil {
		switch kind {
		case domain.ReactionLike:
			return domain.ReactionState{Liked: boolPtr(true)}, domain.CounterDelta{Likes: 1}, nil
		case domain.ReactionDislike:
			return domain.ReactionState{Disliked: boolPtr(true)}, domain.CounterDelta{Dislikes: 1}, nil
		case domain.ReactionHeat:
			return domain.ReactionState{HeatedUp: true}, domain.CounterDelta{HeatUps: 1}, nil
		}
		return domain.ReactionState{}, domain.CounterDelta{}, domain.NewValidationError("reaction", "Invalid reaction type")
	}

	state := existing.ReactionState
	var delta domain.CounterDelta

	switch kind {
	case domain.ReactionHeat:
		state.HeatedUp = !state.HeatedUp
		if state.HeatedUp {
			delta.HeatUps = 1
		} else {
			delta.HeatUps = -1
		}

	case domain.ReactionLike:
		if state.IsLiked() {
			return existing.ReactionState, domain.CounterDelta{}, domain.ErrAlreadyLiked
		}
		if state.IsDisliked() {
			state.Disliked = boolPtr(false)
			delta.Dislikes = -1
		}
		state.Liked = boolPtr(true)
		delta.Likes = 1

	case domain.ReactionDislike:
		if state.IsDisliked() {
			return existing.ReactionState, domain.CounterDelta{}, domain.ErrAlreadyDisliked
		}
		if state.IsLiked() {
			state.Liked = boolPtr(false)
			delta.Likes = -1
		}
		state.Disliked = boolPtr(true)
		delta.Dislikes = 1

	default:
		return existing.ReactionState, domain.CounterDelta{}, domain.NewValidationError("reaction", "Invalid reaction type")
	}

	return state, delta, nil
}

func (s *Service) observeReaction(kind domain.ReactionKind, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Duration.Observe(s.clock.Since(start).Seconds())
	s.metrics.Applied.WithLabelValues(string(kind), reactionResult(err)).Inc()
}

func reactionResult(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, domain.ErrAlreadyLiked), errors.Is(err, domain.ErrAlreadyDisliked):
		return "conflict"
	case errors.Is(err, domain.ErrItemNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func boolPtr(b bool) *bool { return &b }
