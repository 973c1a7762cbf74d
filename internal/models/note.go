package models

import (
	"time"

	"gorm.io/gorm"
)

// Note is a free-text remark attached to a client
type Note struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClientID  uint      `gorm:"not null;index" json:"client_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	NoteType  string    `gorm:"not null;default:general" json:"note_type"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Note
func (Note) TableName() string {
	return "notes"
}

// Note type constants
const (
	NoteTypeGeneral      = "general"
	NoteTypePayment      = "payment"
	NoteTypeStatusChange = "status_change"
)

// IsValidNoteType reports whether t is a known note type
func IsValidNoteType(t string) bool {
	switch t {
	case NoteTypeGeneral, NoteTypePayment, NoteTypeStatusChange:
		return true
	}
	return false
}

// BeforeCreate hook for setting defaults
func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.NoteType == "" {
		n.NoteType = NoteTypeGeneral
	}
	return nil
}

// NoteResponse is the JSON response format for notes
type NoteResponse struct {
	ID        uint      `json:"id"`
	ClientID  uint      `json:"client_id"`
	Content   string    `json:"content"`
	NoteType  string    `json:"note_type"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts Note to NoteResponse
func (n *Note) ToResponse() NoteResponse {
	return NoteResponse{
		ID:        n.ID,
		ClientID:  n.ClientID,
		Content:   n.Content,
		NoteType:  n.NoteType,
		CreatedBy: n.CreatedBy,
		CreatedAt: n.CreatedAt,
	}
}
