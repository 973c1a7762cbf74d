package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a back-office account (admin, manager or read-only user)
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordDigest string     `gorm:"column:password_digest;not null" json:"-"`
	FullName       string     `json:"full_name"`
	Role           string     `gorm:"default:user" json:"role"`
	Status         string     `gorm:"default:active" json:"status"`
	LastLoginAt    *time.Time `json:"last_login_at"`

	RecoveryCode       *string    `json:"-"`
	RecoveryCodeSentAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook for setting defaults
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// IsAdmin returns true if user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if user status is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Role constants
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// IsValidRole reports whether r is a known role
func IsValidRole(r string) bool {
	return r == RoleAdmin || r == RoleManager || r == RoleUser
}

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// UserResponse is the JSON response format for users
type UserResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
