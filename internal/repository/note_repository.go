package repository

import (
	"context"

	"github.com/sjperalta/cashflow-api/internal/models"
	"gorm.io/gorm"
)

// NoteRepository defines the interface for client note data access
type NoteRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Note, error)
	ListByClient(ctx context.Context, clientID uint) ([]models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id uint) error
}

type noteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) FindByID(ctx context.Context, id uint) (*models.Note, error) {
	var note models.Note
	if err := r.db.WithContext(ctx).First(&note, id).Error; err != nil {
		return nil, translate(err)
	}
	return &note, nil
}

func (r *noteRepository) ListByClient(ctx context.Context, clientID uint) ([]models.Note, error) {
	var notes []models.Note
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC, id DESC").
		Find(&notes).Error
	return notes, err
}

func (r *noteRepository) Create(ctx context.Context, note *models.Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *noteRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Note{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
