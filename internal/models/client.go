package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Client is a borrower together with the single short-term loan issued to them.
type Client struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	Name                  string           `gorm:"not null;index" json:"name"`
	Email                 string           `gorm:"not null;index" json:"email"`
	Phone                 string           `gorm:"not null" json:"phone"`
	IDNumber              string           `gorm:"column:id_number;index" json:"id_number"`
	Address               *string          `json:"address"`
	Employer              *string          `json:"employer"`
	MonthlyIncome         *decimal.Decimal `gorm:"type:decimal(15,2)" json:"monthly_income"`
	LoanType              string           `gorm:"not null;index" json:"loan_type"`
	LoanAmount            decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"loan_amount"`
	AmountDue             decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0" json:"amount_due"`
	AmountPaid            decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0" json:"amount_paid"`
	StartDate             time.Time        `gorm:"not null" json:"start_date"`
	DueDate               time.Time        `gorm:"not null;index" json:"due_date"`
	LastPaymentDate       *time.Time       `json:"last_payment_date"`
	Status                string           `gorm:"not null;default:new-lead;index" json:"status"`
	ApplicationDate       time.Time        `json:"application_date"`
	LastStatusUpdate      time.Time        `json:"last_status_update"`
	Archived              bool             `gorm:"not null;default:false;index" json:"archived"`
	CollateralDescription *string          `gorm:"type:text" json:"collateral_description"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`

	// Associations
	Payments  []Payment  `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"payment_history,omitempty"`
	Notes     []Note     `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"notes,omitempty"`
	Documents []Document `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

// TableName specifies the table name for Client
func (Client) TableName() string {
	return "clients"
}

// Client status constants
const (
	ClientStatusNewLead      = "new-lead"
	ClientStatusActive       = "active"
	ClientStatusRepaymentDue = "repayment-due"
	ClientStatusOverdue      = "overdue"
	ClientStatusPaid         = "paid"
)

// ClientStatuses lists every valid client status in lifecycle order.
var ClientStatuses = []string{
	ClientStatusNewLead,
	ClientStatusActive,
	ClientStatusRepaymentDue,
	ClientStatusOverdue,
	ClientStatusPaid,
}

// Loan type constants
const (
	LoanTypeSecured   = "Secured Loan"
	LoanTypeUnsecured = "Unsecured Loan"
)

// LoanTypes lists the accepted loan types.
var LoanTypes = []string{LoanTypeSecured, LoanTypeUnsecured}

// IsValidClientStatus reports whether s is a known client status
func IsValidClientStatus(s string) bool {
	for _, status := range ClientStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// IsValidLoanType reports whether t is a known loan type
func IsValidLoanType(t string) bool {
	return t == LoanTypeSecured || t == LoanTypeUnsecured
}

// BeforeCreate hook for setting defaults
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = ClientStatusNewLead
	}
	if c.LoanType == "" {
		c.LoanType = LoanTypeUnsecured
	}
	now := time.Now()
	if c.ApplicationDate.IsZero() {
		c.ApplicationDate = now
	}
	if c.LastStatusUpdate.IsZero() {
		c.LastStatusUpdate = now
	}
	return nil
}

// IsPaid returns true if the loan is settled
func (c *Client) IsPaid() bool {
	return c.Status == ClientStatusPaid
}

// IsOpen returns true while the loan still carries a balance the business is chasing
func (c *Client) IsOpen() bool {
	switch c.Status {
	case ClientStatusActive, ClientStatusRepaymentDue, ClientStatusOverdue:
		return true
	}
	return false
}

// Outstanding returns the last computed amount due minus what has been paid, floored at zero
func (c *Client) Outstanding() decimal.Decimal {
	out := c.AmountDue.Sub(c.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// ClientResponse is the JSON response format for clients
type ClientResponse struct {
	ID                    uint       `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone"`
	IDNumber              string     `json:"id_number"`
	Address               *string    `json:"address"`
	Employer              *string    `json:"employer"`
	MonthlyIncome         *float64   `json:"monthly_income"`
	LoanType              string     `json:"loan_type"`
	LoanAmount            float64    `json:"loan_amount"`
	AmountDue             float64    `json:"amount_due"`
	AmountPaid            float64    `json:"amount_paid"`
	RemainingBalance      float64    `json:"remaining_balance"`
	StartDate             time.Time  `json:"start_date"`
	DueDate               time.Time  `json:"due_date"`
	LastPaymentDate       *time.Time `json:"last_payment_date"`
	Status                string     `json:"status"`
	ApplicationDate       time.Time  `json:"application_date"`
	LastStatusUpdate      time.Time  `json:"last_status_update"`
	Archived              bool       `json:"archived"`
	CollateralDescription *string    `json:"collateral_description,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`

	PaymentHistory []PaymentResponse  `json:"payment_history,omitempty"`
	Notes          []NoteResponse     `json:"notes,omitempty"`
	Documents      []DocumentResponse `json:"documents,omitempty"`
}

// ToResponse converts Client to ClientResponse
func (c *Client) ToResponse() ClientResponse {
	resp := ClientResponse{
		ID:                    c.ID,
		Name:                  c.Name,
		Email:                 c.Email,
		Phone:                 c.Phone,
		IDNumber:              c.IDNumber,
		Address:               c.Address,
		Employer:              c.Employer,
		LoanType:              c.LoanType,
		LoanAmount:            c.LoanAmount.InexactFloat64(),
		AmountDue:             c.AmountDue.InexactFloat64(),
		AmountPaid:            c.AmountPaid.InexactFloat64(),
		RemainingBalance:      c.Outstanding().InexactFloat64(),
		StartDate:             c.StartDate,
		DueDate:               c.DueDate,
		LastPaymentDate:       c.LastPaymentDate,
		Status:                c.Status,
		ApplicationDate:       c.ApplicationDate,
		LastStatusUpdate:      c.LastStatusUpdate,
		Archived:              c.Archived,
		CollateralDescription: c.CollateralDescription,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}

	if c.MonthlyIncome != nil {
		income := c.MonthlyIncome.InexactFloat64()
		resp.MonthlyIncome = &income
	}

	for i := range c.Payments {
		resp.PaymentHistory = append(resp.PaymentHistory, c.Payments[i].ToResponse())
	}
	for i := range c.Notes {
		resp.Notes = append(resp.Notes, c.Notes[i].ToResponse())
	}
	for i := range c.Documents {
		resp.Documents = append(resp.Documents, c.Documents[i].ToResponse())
	}

	return resp
}
