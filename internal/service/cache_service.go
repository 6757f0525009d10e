package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

const appealCachePrefix = "appeals:record:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	SetVersioned(ctx context.Context, key string, value interface{}, version int64, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// CacheService keeps a copy of appeal records. Entries are versioned: a store only lands
// when nothing newer is cached, so a read that loaded before a concurrent write cannot
// replace the record that write put there. Writes never read from it.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// GetAppeal returns the cached record, or nil on a miss or cache failure.
func (s *CacheService) GetAppeal(ctx context.Context, key string) *models.Appeal {
	if !s.Enabled() {
		return nil
	}
	start := time.Now()
	var appeal models.Appeal
	err := s.repo.Get(ctx, appealCachePrefix+key, &appeal)
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	}
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	return &appeal
}

// PutAppeal stores the record unless an equal or newer version is cached. A failed store
// drops the cached value so an older copy is not served; the version marker stays.
func (s *CacheService) PutAppeal(ctx context.Context, appeal *models.Appeal) {
	if !s.Enabled() || appeal == nil {
		return
	}
	written, err := s.repo.SetVersioned(ctx, appealCachePrefix+appeal.Key, appeal, appeal.Version, s.defaultTTL)
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", appeal.Key), zap.Error(err))
		s.InvalidateAppeal(ctx, appeal.Key)
		return
	}
	if !written {
		s.logger.Debug("cache already holds a newer appeal", zap.String("key", appeal.Key), zap.Int64("version", appeal.Version))
	}
}

// InvalidateAppeal drops the cached value.
func (s *CacheService) InvalidateAppeal(ctx context.Context, key string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, appealCachePrefix+key); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}
