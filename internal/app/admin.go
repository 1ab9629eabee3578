package app

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/gilrm92/trading-spot/internal/domain"
)

var jsonNull = []byte("null")

// ParseItemUpdate turns a raw admin edit body into an ItemUpdate, keeping the
// difference between an absent field, an explicit null and a value. Unknown keys are ignored.
func ParseItemUpdate(body map[string]json.RawMessage) (domain.ItemUpdate, error) {
	var update domain.ItemUpdate

	if raw, ok := body["myDescription"]; ok {
		desc, err := parseDescription(raw)
		if err != nil {
			return update, err
		}
		update.MyDescription = desc
	}

	if raw, ok := body["myPrice"]; ok {
		price, err := parsePrice(raw)
		if err != nil {
			return update, err
		}
		update.MyPrice = price
	}

	counters := []struct {
		field string
		dst   **int
	}{
		{"likes", &update.Likes},
		{"dislikes", &update.Dislikes},
		{"heatUps", &update.HeatUps},
	}
	for _, c := range counters {
		raw, ok := body[c.field]
		if !ok {
			continue
		}
		n, err := parseCounter(c.field, raw)
		if err != nil {
			return update, err
		}
		*c.dst = &n
	}

	if raw, ok := body["isSold"]; ok {
		var sold bool
		if bytes.Equal(bytes.TrimSpace(raw), jsonNull) || json.Unmarshal(raw, &sold) != nil {
			return update, domain.NewValidationError("isSold", "isSold must be a boolean")
		}
		update.IsSold = &sold
	}

	return update, nil
}

// An empty description clears the field.
func parseDescription(raw json.RawMessage) (domain.Nullable[string], error) {
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return domain.Null[string](), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Nullable[string]{}, domain.NewValidationError("myDescription", "myDescription must be a string")
	}
	if s == "" {
		return domain.Null[string](), nil
	}
	return domain.Value(s), nil
}

// myPrice accepts a non-negative number or a numeric string; null and "" clear it.
func parsePrice(raw json.RawMessage) (domain.Nullable[float64], error) {
	invalid := domain.NewValidationError("myPrice", "myPrice must be a non-negative number")

	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return domain.Null[float64](), nil
	}

	var price float64
	if err := json.Unmarshal(raw, &price); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return domain.Nullable[float64]{}, invalid
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return domain.Null[float64](), nil
		}
		price, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Nullable[float64]{}, invalid
		}
	}

	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return domain.Nullable[float64]{}, invalid
	}
	return domain.Value(price), nil
}

func parseCounter(field string, raw json.RawMessage) (int, error) {
	invalid := domain.NewValidationError(field, field+" must be a non-negative integer")

	var n float64
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) || json.Unmarshal(raw, &n) != nil {
		return 0, invalid
	}
	if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, invalid
	}
	return int(n), nil
}

// UpdateItem applies a sparse admin edit. Counter overrides bypass the reaction engine.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, update domain.ItemUpdate) (*domain.Item, error) {
	if itemID <= 0 {
		return nil, domain.NewValidationError("id", "Invalid item ID")
	}
	if update.IsEmpty() {
		return nil, domain.NewValidationError("", "At least one field must be provided")
	}

	item, err := s.items.Update(ctx, itemID, update)
	if err != nil {
		return nil, err
	}

	s.catalogChanged(ctx, "item_updated")
	if update.TouchesCounters() {
		s.publishCounters(ctx, item)
	}
	return item, nil
}

// DeleteItem soft-deletes an item so it disappears from the catalog.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	if itemID <= 0 {
		return nil, domain.NewValidationError("id", "Invalid item ID")
	}

	item, err := s.items.SoftDelete(ctx, itemID)
	if err != nil {
		return nil, err
	}

	s.catalogChanged(ctx, "item_deleted")
	return item, nil
}
