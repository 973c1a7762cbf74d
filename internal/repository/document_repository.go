package repository

import (
	"context"

	"github.com/sjperalta/cashflow-api/internal/models"
	"gorm.io/gorm"
)

// DocumentRepository defines the interface for uploaded document metadata
type DocumentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Document, error)
	ListByClient(ctx context.Context, clientID uint) ([]models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id uint) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) FindByID(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *documentRepository) ListByClient(ctx context.Context, clientID uint) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC, id DESC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
