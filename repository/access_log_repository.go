// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// AccessLogRepositoryImpl implements AccessLogRepository interface
type AccessLogRepositoryImpl struct {
	base *BaseRepository[models.AccessLog, models.AccessLogFilter]
}

// NewAccessLogRepository creates a new access log repository
func NewAccessLogRepository(db *gorm.DB) AccessLogRepository {
	return &AccessLogRepositoryImpl{
		base: NewBaseRepository[models.AccessLog, models.AccessLogFilter](db),
	}
}

func (r *AccessLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.AccessLogFilter) *gorm.DB {
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != nil {
		db = db.Where("action = ?", *filter.Action)
	}
	if filter.ResourceType != nil {
		db = db.Where("resource_type = ?", *filter.ResourceType)
	}
	if filter.ResourceID != nil {
		db = db.Where("resource_id = ?", *filter.ResourceID)
	}
	if filter.SessionID != nil {
		db = db.Where("session_id = ?", *filter.SessionID)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := "%" + strings.ToLower(*filter.Search) + "%"
		db = db.Where("(LOWER(COALESCE(user_email, '')) LIKE ? OR LOWER(COALESCE(resource_name, '')) LIKE ? OR LOWER(action) LIKE ?)", like, like, like)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByID retrieves one access log
func (r *AccessLogRepositoryImpl) ByID(ctx context.Context, id uint) (*models.AccessLog, error) {
	return r.base.ByID(ctx, id)
}

// Save appends one access log
func (r *AccessLogRepositoryImpl) Save(ctx context.Context, entry *models.AccessLog) error {
	return r.base.Save(ctx, entry)
}

// SaveBatch appends several access logs
func (r *AccessLogRepositoryImpl) SaveBatch(ctx context.Context, entries []*models.AccessLog) error {
	return r.base.SaveBatch(ctx, entries)
}

func (r *AccessLogRepositoryImpl) ByFilter(ctx context.Context, filter models.AccessLogFilter, orderBy string, limit, offset int) ([]*models.AccessLog, error) {
	var logs []*models.AccessLog
	if err := page(r.applyFilter(r.base.getDB(ctx), filter), orderBy, limit, offset).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to find access logs by filter: %w", err)
	}
	return logs, nil
}

func (r *AccessLogRepositoryImpl) Count(ctx context.Context, filter models.AccessLogFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.base.getDB(ctx).Model(&models.AccessLog{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return count, nil
}

// ListRecent returns at most limit logs, newest first
func (r *AccessLogRepositoryImpl) ListRecent(ctx context.Context, filter models.AccessLogFilter, limit int) ([]*models.AccessLog, error) {
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, 0)
}
