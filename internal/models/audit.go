package models

import (
	"time"
)

// AuditLog records who changed what in the back office
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"` // 0 for public intake and background jobs
	Action    string    `gorm:"size:50;not null;index" json:"action"`
	Entity    string    `gorm:"size:50;not null" json:"entity"`
	EntityID  uint      `gorm:"index" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit actions
const (
	AuditActionCreate       = "CREATE"
	AuditActionUpdate       = "UPDATE"
	AuditActionDelete       = "DELETE"
	AuditActionArchive      = "ARCHIVE"
	AuditActionUnarchive    = "UNARCHIVE"
	AuditActionStatusChange = "STATUS_CHANGE"
	AuditActionPayment      = "PAYMENT"
	AuditActionLogin        = "LOGIN"
	AuditActionApply        = "APPLY"
	AuditActionNotify       = "NOTIFY"
)

// Audited entities
const (
	AuditEntityClient   = "Client"
	AuditEntityPayment  = "Payment"
	AuditEntityNote     = "Note"
	AuditEntityDocument = "Document"
	AuditEntityUser     = "User"
	AuditEntityDigest   = "Digest"
)
