package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is an immutable repayment applied to a client's loan
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ClientID        uint            `gorm:"not null;index" json:"client_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	RequestedAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"requested_amount"`
	PaymentDate     time.Time       `gorm:"not null;index" json:"payment_date"`
	Method          string          `gorm:"not null;default:cash" json:"method"`
	Reference       *string         `json:"reference"`
	Notes           *string         `gorm:"type:text" json:"notes"`
	ProcessedBy     string          `json:"processed_by"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`

	// Filled by cross-client listings
	ClientName string `gorm:"->;-:migration" json:"client_name,omitempty"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// Payment method constants
const (
	PaymentMethodCash        = "cash"
	PaymentMethodEFT         = "eft"
	PaymentMethodCard        = "card"
	PaymentMethodDebitOrder  = "debit-order"
	PaymentMethodBankDeposit = "bank-deposit"
)

// PaymentMethods lists the accepted payment methods.
var PaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodEFT,
	PaymentMethodCard,
	PaymentMethodDebitOrder,
	PaymentMethodBankDeposit,
}

// IsValidPaymentMethod reports whether m is an accepted payment method
func IsValidPaymentMethod(m string) bool {
	for _, method := range PaymentMethods {
		if method == m {
			return true
		}
	}
	return false
}

// BeforeCreate hook for setting defaults
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.Method == "" {
		p.Method = PaymentMethodCash
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	return nil
}

// WasCapped returns true when less than the requested amount was applied
func (p *Payment) WasCapped() bool {
	return p.Amount.LessThan(p.RequestedAmount)
}

// PaymentResponse is the JSON response format for payments
type PaymentResponse struct {
	ID              uint      `json:"id"`
	ClientID        uint      `json:"client_id"`
	ClientName      string    `json:"client_name,omitempty"`
	Amount          float64   `json:"amount"`
	RequestedAmount float64   `json:"requested_amount"`
	Capped          bool      `json:"capped"`
	PaymentDate     time.Time `json:"payment_date"`
	Method          string    `json:"method"`
	Reference       *string   `json:"reference"`
	Notes           *string   `json:"notes"`
	ProcessedBy     string    `json:"processed_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// ToResponse converts Payment to PaymentResponse
func (p *Payment) ToResponse() PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		ClientID:        p.ClientID,
		ClientName:      p.ClientName,
		Amount:          p.Amount.InexactFloat64(),
		RequestedAmount: p.RequestedAmount.InexactFloat64(),
		Capped:          p.WasCapped(),
		PaymentDate:     p.PaymentDate,
		Method:          p.Method,
		Reference:       p.Reference,
		Notes:           p.Notes,
		ProcessedBy:     p.ProcessedBy,
		CreatedAt:       p.CreatedAt,
	}
}
