package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "aion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	duration := int64(135)
	captured := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	id, err := s.InsertUsage(ctx, types.UsageRecord{
		SessionID:   "term-1",
		Agent:       types.DefaultAgent,
		CostUSD:     1.23,
		TokensIn:    4000,
		TokensOut:   500,
		TokensTotal: 4500,
		DurationS:   &duration,
		CapturedAt:  captured,
		RawOutput:   "Total cost: $1.23",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = s.InsertUsage(ctx, types.UsageRecord{
		SessionID:   "term-1",
		Agent:       types.DefaultAgent,
		CostUSD:     0.5,
		TokensIn:    10,
		TokensOut:   20,
		TokensTotal: 30,
	})
	require.NoError(t, err)

	_, err = s.InsertUsage(ctx, types.UsageRecord{SessionID: "term-2", Agent: "other"})
	require.NoError(t, err)

	records, err := s.ListBySession(ctx, "term-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, id, first.ID)
	assert.Equal(t, 1.23, first.CostUSD)
	assert.Equal(t, int64(4000), first.TokensIn)
	assert.Equal(t, int64(500), first.TokensOut)
	assert.Equal(t, int64(4500), first.TokensTotal)
	require.NotNil(t, first.DurationS)
	assert.Equal(t, int64(135), *first.DurationS)
	assert.True(t, captured.Equal(first.CapturedAt))
	assert.Equal(t, "Total cost: $1.23", first.RawOutput)

	second := records[1]
	assert.Nil(t, second.DurationS)
	assert.False(t, second.CapturedAt.IsZero())
}

func TestListUnknownSession(t *testing.T) {
	s := openTestStore(t)

	records, err := s.ListBySession(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aion.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.InsertUsage(ctx, types.UsageRecord{SessionID: "term-1", Agent: types.DefaultAgent})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.ListBySession(ctx, "term-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInsertCancelledContext(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.InsertUsage(ctx, types.UsageRecord{SessionID: "term-1", Agent: types.DefaultAgent})
	assert.Error(t, err)
}
