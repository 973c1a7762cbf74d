package repository

import (
	"context"

	"github.com/sjperalta/cashflow-api/internal/models"
	"gorm.io/gorm"
)

// AuditRepository defines the interface for audit log access
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if entity := query.Filters["entity"]; entity != "" {
		db = db.Where("entity = ?", entity)
	}
	if entityID := query.Filters["entity_id"]; entityID != "" {
		db = db.Where("entity_id = ?", entityID)
	}
	if action := query.Filters["action"]; action != "" {
		db = db.Where("action = ?", action)
	}
	if userID := query.Filters["user_id"]; userID != "" {
		db = db.Where("user_id = ?", userID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("created_at DESC, id DESC")
	if query.PerPage > 0 {
		db = db.Offset(query.Offset()).Limit(query.PerPage)
	}

	err := db.Find(&logs).Error
	return logs, total, err
}
