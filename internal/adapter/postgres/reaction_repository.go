package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReactionRepo struct {
	pool *pgxpool.Pool
}

func NewReactionRepo(pool *pgxpool.Pool) *ReactionRepo {
	return &ReactionRepo{pool: pool}
}

// ApplyReaction locks the item row for the whole read-modify-write, so concurrent
// reactions on the same item (and therefore the same item/user pair) are serialised.
func (r *ReactionRepo) ApplyReaction(ctx context.Context, itemID int64, userID string, fn domain.ReactionFunc) (*domain.ReactionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, itemID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}

	existing, err := getReaction(ctx, tx, itemID, userID)
	if err != nil {
		return nil, err
	}

	state, delta, err := fn(existing)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO reactions (item_id, user_id, liked, disliked, heated_up)
			VALUES ($1, $2, $3, $4, $5)`,
			itemID, userID, state.Liked, state.Disliked, state.HeatedUp)
		if err != nil {
			return nil, fmt.Errorf("failed to insert reaction: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE reactions SET liked = $1, disliked = $2, heated_up = $3, updated_at = now()
			WHERE id = $4`,
			state.Liked, state.Disliked, state.HeatedUp, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update reaction: %w", err)
		}
	}

	// GREATEST keeps counters non-negative when an admin override left them
	// below the number of reaction rows.
	item, err := scanItem(tx.QueryRow(ctx, `
		UPDATE items SET
			likes = GREATEST(likes + $2, 0),
			dislikes = GREATEST(dislikes + $3, 0),
			heat_ups = GREATEST(heat_ups + $4, 0),
			updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		itemID, delta.Likes, delta.Dislikes, delta.HeatUps))
	if err != nil {
		return nil, fmt.Errorf("failed to update item counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reaction: %w", err)
	}

	return &domain.ReactionResult{Item: *item, Reaction: state.View()}, nil
}

func getReaction(ctx context.Context, tx pgx.Tx, itemID int64, userID string) (*domain.Reaction, error) {
	var reaction domain.Reaction
	err := tx.QueryRow(ctx, `
		SELECT id, item_id, user_id, liked, disliked, heated_up
		FROM reactions WHERE item_id = $1 AND user_id = $2`,
		itemID, userID,
	).Scan(&reaction.ID, &reaction.ItemID, &reaction.UserID, &reaction.Liked, &reaction.Disliked, &reaction.HeatedUp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reaction: %w", err)
	}
	return &reaction, nil
}

func (r *ReactionRepo) ListByUser(ctx context.Context, userID string, itemIDs []int64) (map[int64]domain.ReactionState, error) {
	query := `SELECT item_id, liked, disliked, heated_up FROM reactions WHERE user_id = $1`
	args := []any{userID}
	if len(itemIDs) > 0 {
		query += ` AND item_id = ANY($2)`
		args = append(args, itemIDs)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]domain.ReactionState)
	for rows.Next() {
		var (
			itemID int64
			state  domain.ReactionState
		)
		if err := rows.Scan(&itemID, &state.Liked, &state.Disliked, &state.HeatedUp); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		states[itemID] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	return states, nil
}
