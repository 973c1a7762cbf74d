package models

import (
	"strings"
	"time"
)

// Document is a file uploaded against a client (payslip, ID, collateral photo...)
type Document struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ClientID      uint      `gorm:"not null;index" json:"client_id"`
	FileName      string    `gorm:"not null" json:"file_name"`
	OriginalName  string    `gorm:"not null" json:"original_name"`
	FileSize      int64     `gorm:"not null" json:"file_size"`
	FileType      string    `gorm:"not null" json:"file_type"`
	FilePath      string    `gorm:"not null" json:"-"`
	ThumbnailPath *string   `json:"-"`
	Category      string    `gorm:"not null;default:other" json:"category"`
	UploadedBy    string    `json:"uploaded_by"`
	Description   *string   `json:"description"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Document
func (Document) TableName() string {
	return "documents"
}

// Document category constants
const (
	DocumentCategoryPayslip       = "payslip"
	DocumentCategoryIDDocument    = "id_document"
	DocumentCategoryBankStatement = "bank_statement"
	DocumentCategoryCollateral    = "collateral"
	DocumentCategoryOther         = "other"
)

// IsValidDocumentCategory reports whether c is a known document category
func IsValidDocumentCategory(c string) bool {
	switch c {
	case DocumentCategoryPayslip, DocumentCategoryIDDocument, DocumentCategoryBankStatement,
		DocumentCategoryCollateral, DocumentCategoryOther:
		return true
	}
	return false
}

// IsImage returns true for jpg/jpeg/png uploads
func (d *Document) IsImage() bool {
	switch strings.ToLower(d.FileType) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// DocumentResponse is the JSON response format for documents
type DocumentResponse struct {
	ID           uint      `json:"id"`
	ClientID     uint      `json:"client_id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	FileType     string    `json:"file_type"`
	Category     string    `json:"category"`
	HasThumbnail bool      `json:"has_thumbnail"`
	UploadedBy   string    `json:"uploaded_by"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToResponse converts Document to DocumentResponse
func (d *Document) ToResponse() DocumentResponse {
	return DocumentResponse{
		ID:           d.ID,
		ClientID:     d.ClientID,
		FileName:     d.FileName,
		OriginalName: d.OriginalName,
		FileSize:     d.FileSize,
		FileType:     d.FileType,
		Category:     d.Category,
		HasThumbnail: d.ThumbnailPath != nil && *d.ThumbnailPath != "",
		UploadedBy:   d.UploadedBy,
		Description:  d.Description,
		CreatedAt:    d.CreatedAt,
	}
}
