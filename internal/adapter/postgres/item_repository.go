package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `id, uid, torn_id, name, type, sub_type, quantity, circulation, market_price,
	damage, accuracy, armor, quality, bonuses, rarity, image, my_description, my_price,
	likes, dislikes, heat_ups, is_deleted, is_sold, created_at, updated_at`

type ItemRepo struct {
	pool *pgxpool.Pool
}

func NewItemRepo(pool *pgxpool.Pool) *ItemRepo {
	return &ItemRepo{pool: pool}
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		item    domain.Item
		bonuses []byte
	)
	err := row.Scan(
		&item.ID, &item.UID, &item.TornID, &item.Name, &item.Type, &item.SubType,
		&item.Quantity, &item.Circulation, &item.MarketPrice,
		&item.Damage, &item.Accuracy, &item.Armor, &item.Quality,
		&bonuses, &item.Rarity, &item.Image, &item.MyDescription, &item.MyPrice,
		&item.Likes, &item.Dislikes, &item.HeatUps, &item.IsDeleted, &item.IsSold,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(bonuses) > 0 {
		item.Bonuses = json.RawMessage(bonuses)
	}
	return &item, nil
}

func (r *ItemRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by ID: %w", err)
	}
	return item, nil
}

func (r *ItemRepo) GetByUID(ctx context.Context, uid int64) (*domain.Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by UID: %w", err)
	}
	return item, nil
}

func (r *ItemRepo) ListActive(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items
		WHERE NOT is_deleted
		ORDER BY is_sold ASC, name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Item, error) {
		item, err := scanItem(row)
		if err != nil {
			return domain.Item{}, err
		}
		return *item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	return items, nil
}

// Update writes only the fields present in the update.
func (r *ItemRepo) Update(ctx context.Context, id int64, update domain.ItemUpdate) (*domain.Item, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.MyDescription.Set {
		set("my_description", update.MyDescription.Value)
	}
	if update.MyPrice.Set {
		set("my_price", update.MyPrice.Value)
	}
	if update.Likes != nil {
		set("likes", *update.Likes)
	}
	if update.Dislikes != nil {
		set("dislikes", *update.Dislikes)
	}
	if update.HeatUps != nil {
		set("heat_ups", *update.HeatUps)
	}
	if update.IsSold != nil {
		set("is_sold", *update.IsSold)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE items SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), itemColumns)
	item, err := scanItem(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

func (r *ItemRepo) SoftDelete(ctx context.Context, id int64) (*domain.Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE items SET is_deleted = true, updated_at = now() WHERE id = $1 RETURNING `+itemColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to soft-delete item: %w", err)
	}
	return item, nil
}

// UpsertByUID refreshes the externally sourced columns only; owner edits,
// counters and flags survive a sync.
func (r *ItemRepo) UpsertByUID(ctx context.Context, item domain.SyncedItem) (bool, error) {
	var bonuses []byte
	if len(item.Bonuses) > 0 {
		bonuses = item.Bonuses
	}

	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO items (uid, torn_id, name, type, sub_type, quantity, circulation, market_price,
			damage, accuracy, armor, quality, bonuses, rarity, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (uid) DO UPDATE SET
			torn_id = EXCLUDED.torn_id,
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			sub_type = EXCLUDED.sub_type,
			quantity = EXCLUDED.quantity,
			circulation = EXCLUDED.circulation,
			market_price = EXCLUDED.market_price,
			damage = EXCLUDED.damage,
			accuracy = EXCLUDED.accuracy,
			armor = EXCLUDED.armor,
			quality = EXCLUDED.quality,
			bonuses = EXCLUDED.bonuses,
			rarity = EXCLUDED.rarity,
			image = EXCLUDED.image,
			updated_at = now()
		RETURNING (xmax = 0)`,
		item.UID, item.TornID, item.Name, item.Type, item.SubType,
		item.Quantity, item.Circulation, item.MarketPrice,
		item.Damage, item.Accuracy, item.Armor, item.Quality,
		bonuses, item.Rarity, item.Image,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert item %d: %w", item.UID, err)
	}
	return inserted, nil
}

// DeleteExceptUIDs hard-deletes every item whose uid is not in keep. Reactions cascade.
func (r *ItemRepo) DeleteExceptUIDs(ctx context.Context, keep []int64) (int, error) {
	if keep == nil {
		keep = []int64{}
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE NOT (uid = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
