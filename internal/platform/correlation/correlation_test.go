package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestFromHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		keep  bool
	}{
		{"empty generates", "", false},
		{"simple id kept", "req-42_a", true},
		{"spaces rejected", "req 42", false},
		{"newline rejected", "abc\nlevel=ERROR", false},
		{"too long rejected", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromHeader(tt.value)
			if tt.keep {
				assert.Equal(t, tt.value, got)
				return
			}
			assert.NotEqual(t, tt.value, got)
			assert.Len(t, got, 8)
		})
	}
}

func TestID(t *testing.T) {
	id, ok := ID(WithID(context.Background(), "abc12345"))
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)

	_, ok = ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewHandler(inner))
}

func TestHandler_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.InfoContext(WithID(context.Background(), "test1234"), "Item reacted", "item_id", 7)

	output := buf.String()
	assert.Contains(t, output, "correlation_id=test1234")
	assert.Contains(t, output, "item_id=7")
}

func TestHandler_NoCorrelationIDWhenMissing(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).InfoContext(context.Background(), "no correlation")
	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("component", "sync").WithGroup("torn")

	logger.InfoContext(WithID(context.Background(), "attr1234"), "fetched", "count", 3)

	output := buf.String()
	assert.Contains(t, output, "component=sync")
	assert.Contains(t, output, "torn.count=3")
	assert.Contains(t, output, "correlation_id=attr1234")
}
