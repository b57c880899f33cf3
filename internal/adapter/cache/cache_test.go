package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/couchcryptid/water-forecast-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingForecaster struct {
	calls int
	err   error
}

func (m *countingForecaster) Forecast(_ context.Context, table domain.RawTable) (domain.Result, error) {
	m.calls++
	if m.err != nil {
		return domain.Result{}, m.err
	}
	return domain.Result{Series: domain.UnifiedSeries{{Year: len(table.Rows)}}}, nil
}

func tableWith(rows ...string) domain.RawTable {
	t := domain.RawTable{Header: []string{"year", "population", "total_consumption"}}
	for _, y := range rows {
		t.Rows = append(t.Rows, []string{y, "10", "100"})
	}
	return t
}

// --- CachedForecaster tests ---

func TestCachedForecaster_Hit(t *testing.T) {
	inner := &countingForecaster{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedForecaster(inner, 10, 0, nil, metrics)

	r1, err := cached.Forecast(context.Background(), tableWith("2000", "2001"))
	require.NoError(t, err)
	// Incidental whitespace does not change the fingerprint.
	r2, err := cached.Forecast(context.Background(), tableWith("2000 ", "2001"))
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 0)
}

func TestCachedForecaster_DifferentTablesMiss(t *testing.T) {
	inner := &countingForecaster{}
	cached := NewCachedForecaster(inner, 10, 0, nil, observability.NewMetricsForTesting())

	_, _ = cached.Forecast(context.Background(), tableWith("2000"))
	_, _ = cached.Forecast(context.Background(), tableWith("2001"))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedForecaster_ErrorsAreNotCached(t *testing.T) {
	inner := &countingForecaster{err: &domain.EmptyTableError{}}
	cached := NewCachedForecaster(inner, 10, 0, nil, observability.NewMetricsForTesting())

	for range 2 {
		_, err := cached.Forecast(context.Background(), tableWith())
		var empty *domain.EmptyTableError
		require.ErrorAs(t, err, &empty)
	}
	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedForecaster_TTL(t *testing.T) {
	fc := clockwork.NewFakeClock()
	inner := &countingForecaster{}
	cached := NewCachedForecaster(inner, 10, time.Minute, fc, observability.NewMetricsForTesting())

	_, _ = cached.Forecast(context.Background(), tableWith("2000"))
	fc.Advance(59 * time.Second)
	_, _ = cached.Forecast(context.Background(), tableWith("2000"))
	assert.Equal(t, 1, inner.calls)

	fc.Advance(time.Second)
	_, _ = cached.Forecast(context.Background(), tableWith("2000"))
	assert.Equal(t, 2, inner.calls, "expired entry is recomputed")
}

func TestCachedForecaster_Disabled(t *testing.T) {
	inner := &countingForecaster{}
	cached := NewCachedForecaster(inner, 0, 0, nil, observability.NewMetricsForTesting())

	_, _ = cached.Forecast(context.Background(), tableWith("2000"))
	_, _ = cached.Forecast(context.Background(), tableWith("2000"))
	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedForecaster_PassesUnexpectedErrors(t *testing.T) {
	boom := errors.New("boom")
	cached := NewCachedForecaster(&countingForecaster{err: boom}, 1, 0, nil, observability.NewMetricsForTesting())
	_, err := cached.Forecast(context.Background(), tableWith("2000"))
	assert.ErrorIs(t, err, boom)
}

// --- LRU cache unit tests ---

func result(year int) domain.Result {
	return domain.Result{Series: domain.UnifiedSeries{{Year: year}}}
}

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3, 0, clockwork.NewFakeClock())

	c.put("a", result(1))
	c.put("b", result(2))

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v.Series[0].Year)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2, 0, clockwork.NewFakeClock())

	c.put("a", result(1))
	c.put("b", result(2))
	c.get("a") // a becomes most recent
	c.put("c", result(3))

	_, ok := c.get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2, 0, clockwork.NewFakeClock())

	c.put("a", result(1))
	c.put("a", result(9))

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 9, v.Series[0].Year)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_SingleEntry(t *testing.T) {
	c := newLRUCache(1, 0, clockwork.NewFakeClock())

	c.put("a", result(1))
	c.put("b", result(2))

	_, ok := c.get("a")
	assert.False(t, ok)
	v, ok := c.get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v.Series[0].Year)
}
