package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sjperalta/cashflow-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepository caches computed dashboard payloads in the admin store.
// The figures themselves are computed from the loan store by the service,
// which keeps them identical across SQL and MongoDB backends.
type AnalyticsRepository interface {
	GetCache(ctx context.Context, key string, now time.Time) (*models.AnalyticsCache, error)
	SetCache(ctx context.Context, key string, data interface{}, expiresAt time.Time) error
	InvalidateAll(ctx context.Context) error
	CleanExpiredCache(ctx context.Context, now time.Time) (int64, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) GetCache(ctx context.Context, key string, now time.Time) (*models.AnalyticsCache, error) {
	var cache models.AnalyticsCache
	err := r.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, now).
		First(&cache).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cache, nil
}

func (r *analyticsRepository) SetCache(ctx context.Context, key string, data interface{}, expiresAt time.Time) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	cache := models.AnalyticsCache{
		CacheKey:  key,
		Data:      jsonData,
		ExpiresAt: expiresAt,
	}

	// Upsert on the unique cache key
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&cache).Error
}

func (r *analyticsRepository) InvalidateAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.AnalyticsCache{}).Error
}

func (r *analyticsRepository) CleanExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.AnalyticsCache{})
	return result.RowsAffected, result.Error
}
