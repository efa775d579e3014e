package storage

import (
	"context"
	"testing"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr())
	t.Cleanup(func() { _ = s.Redis.Close() })
	return s, mr
}

func TestRedisStoreAppendLoad(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	_, err := s.Load(ctx, "fintech_news", "news")
	assert.ErrorIs(t, err, ErrNoTable)

	require.NoError(t, s.Append(ctx, "fintech_news", "news", []collector.Record{
		{"title": "a", "link": "https://example.com/a"},
		{"title": "b", "link": "https://example.com/b"},
	}))
	assert.True(t, mr.Exists("finnews:fintech_news:news"))

	got, err := s.Load(ctx, "fintech_news", "news")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1]["title"])
}

func TestRedisStorePersistIfNew(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)
	rows := []collector.Record{{"date": "2026-10-18", "통화": "USD"}}

	first, err := PersistIfNew(ctx, s, "ex_rate", "ex_rate", "date", "2026-10-18", rows, CheckErrorFail)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Appended)

	second, err := PersistIfNew(ctx, s, "ex_rate", "ex_rate", "date", "2026-10-18", rows, CheckErrorFail)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	keys, err := s.DistinctValues(ctx, "ex_rate", "ex_rate", "date")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestRedisStoreCheckErrorWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)
	mr.Close()

	_, err := PersistIfNew(ctx, s, "ex_rate", "ex_rate", "date", "2026-10-18",
		[]collector.Record{{"date": "2026-10-18"}}, CheckErrorFail)
	assert.Error(t, err)
}
