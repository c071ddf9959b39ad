package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryCacheInvalidateSubject(t *testing.T) {
	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()

	cache.Set(SummaryKey("subject-1"), "summary")
	cache.Set(TrendKey("subject-1", 3), "trend")
	cache.Set(RunsKey("subject-1", 10), "runs")
	cache.Set(SummaryKey("subject-10"), "other")

	cache.InvalidateSubject("subject-1")

	_, ok := cache.Get(SummaryKey("subject-1"))
	assert.False(t, ok)
	_, ok = cache.Get(RunsKey("subject-1", 10))
	assert.False(t, ok)

	value, ok := cache.Get(SummaryKey("subject-10"))
	require.True(t, ok)
	assert.Equal(t, "other", value)
}

func TestSummaryCacheExpiry(t *testing.T) {
	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()

	cache.SetWithTTL(SummaryKey("s"), 1, -time.Second)
	_, ok := cache.Get(SummaryKey("s"))
	assert.False(t, ok)
}

func TestFetchComputesOnce(t *testing.T) {
	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()

	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(cache, RunsKey("s", 3), compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()

	_, err := Fetch(cache, SummaryKey("s"), func() (string, error) { return "", errors.New("db down") })
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Size())
}

func TestFetchSkipsStoreAcrossInvalidation(t *testing.T) {
	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()

	v, err := Fetch(cache, SummaryKey("s"), func() (string, error) {
		cache.InvalidateSubject("s")
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v)
	assert.Equal(t, 0, cache.Size())

	v, err = Fetch(cache, SummaryKey("s"), func() (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, cache.Size())
}

func TestRemoveExpiredForgetsEmptySubjects(t *testing.T) {
	cache := NewSummaryCache(time.Minute)
	defer cache.Stop()

	cache.SetWithTTL(SummaryKey("old"), 1, time.Millisecond)
	cache.Set(SummaryKey("new"), 2)

	cache.removeExpired(time.Now().Add(time.Second))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 1, stats.Subjects)
}
