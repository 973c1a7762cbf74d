package repository

import (
	"context"
	"time"

	"github.com/sjperalta/cashflow-api/internal/models"
	"gorm.io/gorm"
)

// PaymentRepository defines the interface for payment data access.
// Payments are written through ClientRepository.RecordPayment.
type PaymentRepository interface {
	ListByClient(ctx context.Context, clientID uint) ([]models.Payment, error)
	Recent(ctx context.Context, limit int) ([]models.Payment, error)
	ListSince(ctx context.Context, since time.Time) ([]models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) ListByClient(ctx context.Context, clientID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("payment_date DESC, id DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) Recent(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Select("payments.*, clients.name AS client_name").
		Joins("JOIN clients ON clients.id = payments.client_id").
		Order("payments.payment_date DESC, payments.id DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) ListSince(ctx context.Context, since time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_date >= ?", since).
		Order("payment_date").
		Find(&payments).Error
	return payments, err
}
