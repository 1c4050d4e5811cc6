package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/pkg/config"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type stubCounter struct {
	count int
	calls int
}

func (m *stubCounter) CountActive(ctx context.Context) (int, error) {
	m.calls++
	return m.count, nil
}

type stubDashboardCache struct {
	entries map[string]models.DashboardSummary
	deleted []string
}

func (m *stubDashboardCache) Get(ctx context.Context, key string, dest interface{}) error {
	cached, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.DashboardSummary) = cached
	return nil
}

func (m *stubDashboardCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]models.DashboardSummary)
	}
	m.entries[key] = *value.(*models.DashboardSummary)
	return nil
}

func (m *stubDashboardCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	m.entries = nil
	return nil
}

func newDashboardFixture(cache dashboardCache) (*DashboardService, []*stubCounter) {
	counters := []*stubCounter{{count: 12}, {count: 3}, {count: 20}, {count: 5}}
	svc := NewDashboardService(counters[0], counters[1], counters[2], counters[3], cache,
		config.DashboardConfig{Enabled: true, CacheTTL: time.Minute}, nil)
	return svc, counters
}

func TestDashboardSummaryCacheMissPopulates(t *testing.T) {
	cache := &stubDashboardCache{}
	svc, counters := newDashboardFixture(cache)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, summary.ActiveStudents)
	assert.Equal(t, 3, summary.ActiveTeachers)
	assert.Equal(t, 20, summary.ActiveParents)
	assert.Equal(t, 5, summary.ActiveClasses)
	assert.Contains(t, cache.entries, "dashboard:summary")
	for _, c := range counters {
		assert.Equal(t, 1, c.calls)
	}
}

func TestDashboardSummaryCacheHitSkipsCounters(t *testing.T) {
	cache := &stubDashboardCache{entries: map[string]models.DashboardSummary{
		"dashboard:summary": {ActiveStudents: 99},
	}}
	svc, counters := newDashboardFixture(cache)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, summary.ActiveStudents)
	for _, c := range counters {
		assert.Zero(t, c.calls)
	}
}

func TestDashboardInvalidateDropsCachedSummary(t *testing.T) {
	cache := &stubDashboardCache{entries: map[string]models.DashboardSummary{
		"dashboard:summary": {ActiveStudents: 99},
	}}
	svc, counters := newDashboardFixture(cache)

	svc.Invalidate(context.Background())
	assert.Equal(t, []string{"dashboard:*"}, cache.deleted)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, summary.ActiveStudents)
	assert.Equal(t, 1, counters[0].calls)
}

func TestDashboardSummaryWithoutCache(t *testing.T) {
	svc, _ := newDashboardFixture(nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, summary.ActiveStudents)
}

func TestDashboardDisabled(t *testing.T) {
	svc := NewDashboardService(&stubCounter{}, &stubCounter{}, &stubCounter{}, &stubCounter{}, nil,
		config.DashboardConfig{Enabled: false}, nil)

	_, err := svc.Summary(context.Background())
	require.Error(t, err)
}
