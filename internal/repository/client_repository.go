package repository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/cashflow-api/internal/models"
	"gorm.io/gorm"
)

// ClientRepository defines the interface for client (loan) data access
type ClientRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Client, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	// Update writes the profile columns only. Balance and status columns
	// belong to RecordPayment and UpdateStatus.
	Update(ctx context.Context, client *models.Client) error
	// UpdateStatus writes status and amount due. It fails with ErrConflict
	// when the stored amount paid no longer equals client.AmountPaid.
	UpdateStatus(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.Client, int64, error)
	FindOpen(ctx context.Context) ([]models.Client, error)
	FindAll(ctx context.Context, includeArchived bool) ([]models.Client, error)
	// RecordPayment stores payment and the client's new totals in one atomic
	// write. It fails with ErrConflict when the stored amount paid no longer
	// equals previousPaid.
	RecordPayment(ctx context.Context, client *models.Client, payment *models.Payment, previousPaid decimal.Decimal) error
}

// Sortable client columns
var clientSortColumns = map[string]string{
	"name":             "name",
	"created_at":       "created_at",
	"application_date": "application_date",
	"loan_amount":      "loan_amount",
	"amount_paid":      "amount_paid",
	"amount_due":       "amount_due",
	"due_date":         "due_date",
	"status":           "status",
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new gorm-backed client repository
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) FindByID(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func (r *clientRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date DESC, id DESC") }).
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		First(&client, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	return translate(r.db.WithContext(ctx).Omit("Payments", "Notes", "Documents").Create(client).Error)
}

// clientProfileColumns are the columns a profile edit may write
var clientProfileColumns = []string{
	"name", "email", "phone", "id_number", "address", "employer", "monthly_income",
	"loan_type", "due_date", "collateral_description", "archived", "updated_at",
}

func (r *clientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("id = ?", client.ID).
		Select(clientProfileColumns).
		Updates(client)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clientRepository) UpdateStatus(ctx context.Context, client *models.Client) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.Client{}).
		Where("id = ? AND amount_paid = ?", client.ID, client.AmountPaid).
		Updates(map[string]interface{}{
			"status":             client.Status,
			"amount_due":         client.AmountDue,
			"last_status_update": client.LastStatusUpdate,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Client{}).Where("id = ?", client.ID).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *clientRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.Payment{}, &models.Note{}, &models.Document{}} {
			if err := tx.Where("client_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&models.Client{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *clientRepository) List(ctx context.Context, query *ListQuery) ([]models.Client, int64, error) {
	var clients []models.Client
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Client{})

	// Apply search
	if query.Search != "" {
		search := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR id_number LIKE ?",
			search, search, search, search)
	}

	// Apply status filter
	if status := query.Filters["status"]; status != "" {
		db = db.Where("status IN ?", strings.Split(status, ","))
	}

	// Apply loan type filter
	if loanType := query.Filters["loan_type"]; loanType != "" {
		db = db.Where("loan_type = ?", loanType)
	}

	// Archived clients are hidden unless asked for
	switch query.Filters["archived"] {
	case "all":
	case "true":
		db = db.Where("archived = ?", true)
	default:
		db = db.Where("archived = ?", false)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order(query.OrderBy(clientSortColumns, "created_at DESC"))

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset(query.Offset()).Limit(query.PerPage)
	}

	err := db.Find(&clients).Error
	return clients, total, err
}

func (r *clientRepository) FindOpen(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).
		Where("archived = ? AND status <> ?", false, models.ClientStatusPaid).
		Order("id").
		Find(&clients).Error
	return clients, err
}

func (r *clientRepository) FindAll(ctx context.Context, includeArchived bool) ([]models.Client, error) {
	var clients []models.Client
	db := r.db.WithContext(ctx)
	if !includeArchived {
		db = db.Where("archived = ?", false)
	}
	err := db.Order("id").Find(&clients).Error
	return clients, err
}

func (r *clientRepository) RecordPayment(ctx context.Context, client *models.Client, payment *models.Payment, previousPaid decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Client{}).
			Where("id = ? AND amount_paid = ?", client.ID, previousPaid).
			Updates(map[string]interface{}{
				"amount_paid":        client.AmountPaid,
				"amount_due":         client.AmountDue,
				"last_payment_date":  client.LastPaymentDate,
				"status":             client.Status,
				"last_status_update": client.LastStatusUpdate,
				"updated_at":         time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		payment.ClientID = client.ID
		return tx.Create(payment).Error
	})
}
