package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/coem-edu/sga-api/internal/models"
	"github.com/coem-edu/sga-api/pkg/config"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type activeCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService assembles the admin landing-page counters. The summary is
// cached briefly in Redis; authorization decisions never touch this cache.
type DashboardService struct {
	students activeCounter
	teachers activeCounter
	parents  activeCounter
	classes  activeCounter
	cache    dashboardCache
	cfg      config.DashboardConfig
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(students, teachers, parents, classes activeCounter, cache dashboardCache, cfg config.DashboardConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students: students,
		teachers: teachers,
		parents:  parents,
		classes:  classes,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// Summary returns the active-entity counts, serving from cache when fresh.
// A cache failure degrades to a direct query instead of an error.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "dashboard is disabled")
	}

	if s.cache != nil {
		var cached models.DashboardSummary
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary := &models.DashboardSummary{}
	var err error
	if summary.ActiveStudents, err = s.students.CountActive(ctx); err != nil {
		return nil, storeError(err, "failed to count students")
	}
	if summary.ActiveTeachers, err = s.teachers.CountActive(ctx); err != nil {
		return nil, storeError(err, "failed to count teachers")
	}
	if summary.ActiveParents, err = s.parents.CountActive(ctx); err != nil {
		return nil, storeError(err, "failed to count parents")
	}
	if summary.ActiveClasses, err = s.classes.CountActive(ctx); err != nil {
		return nil, storeError(err, "failed to count classes")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary. Called after any mutation that changes
// an active count, so toggles show up on the next dashboard load.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
