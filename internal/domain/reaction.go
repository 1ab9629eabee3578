package domain

import "context"

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
	ReactionHeat    ReactionKind = "heat"
)

func ParseReactionKind(s string) (ReactionKind, error) {
	switch k := ReactionKind(s); k {
	case ReactionLike, ReactionDislike, ReactionHeat:
		return k, nil
	default:
		return "", NewValidationError("reaction", "Invalid reaction type")
	}
}

// ReactionState is the per-user state on one item. Liked and Disliked are
// tri-state: nil means the user never touched that direction.
type ReactionState struct {
	Liked    *bool
	Disliked *bool
	HeatedUp bool
}

func (s ReactionState) IsLiked() bool    { return s.Liked != nil && *s.Liked }
func (s ReactionState) IsDisliked() bool { return s.Disliked != nil && *s.Disliked }

// View renders the state for clients, with unset shown as false.
func (s ReactionState) View() UserReaction {
	return UserReaction{
		Liked:    s.IsLiked(),
		Disliked: s.IsDisliked(),
		HeatedUp: s.HeatedUp,
	}
}

// Reaction is the stored row for one (item, user) pair.
type Reaction struct {
	ID     int64
	ItemID int64
	UserID string
	ReactionState
}

type UserReaction struct {
	Liked    bool `json:"liked"`
	Disliked bool `json:"disliked"`
	HeatedUp bool `json:"heatedUp"`
}

// CounterDelta is the change to apply to an item's aggregate counters.
type CounterDelta struct {
	Likes    int
	Dislikes int
	HeatUps  int
}

func (d CounterDelta) IsZero() bool {
	return d.Likes == 0 && d.Dislikes == 0 && d.HeatUps == 0
}

// ReactionFunc decides the next state from the current one (nil when the user
// has not reacted yet). Returning an error aborts without writing anything.
type ReactionFunc func(existing *Reaction) (ReactionState, CounterDelta, error)

// ReactionResult is returned by a successful ApplyReaction.
type ReactionResult struct {
	Item     Item         `json:"item"`
	Reaction UserReaction `json:"userReaction"`
}

type ReactionRepository interface {
	// ApplyReaction loads the item and the user's reaction under a row lock,
	// calls fn, then writes the reaction row and counter delta in the same transaction.
	ApplyReaction(ctx context.Context, itemID int64, userID string, fn ReactionFunc) (*ReactionResult, error)
	// ListByUser returns the user's reactions keyed by item id. An empty itemIDs means all.
	ListByUser(ctx context.Context, userID string, itemIDs []int64) (map[int64]ReactionState, error)
}
