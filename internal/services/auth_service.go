package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	audit            *AuditService
	cfg              *config.Config
	now              func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repository.UserRepository, rtRepo repository.RefreshTokenRepository, audit *AuditService, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: rtRepo,
		audit:            audit,
		cfg:              cfg,
		now:              time.Now,
	}
}

// LoginResult represents the result of a login attempt
type LoginResult struct {
	Token        string              `json:"token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresAt    time.Time           `json:"expires_at"`
	User         models.UserResponse `json:"user"`
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, email, password string, actor Actor) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, ErrInactiveAccount
	}

	if !VerifyPassword(password, user.PasswordDigest) {
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.Warn("Failed to record last login", "user_id", user.ID, "error", err)
	} else {
		result.User.LastLoginAt = &now
	}

	actor.UserID, actor.Email, actor.Role = user.ID, user.Email, user.Role
	s.audit.Record(ctx, actor, models.AuditActionLogin, models.AuditEntityUser, user.ID, "User logged in")
	return result, nil
}

// RefreshToken validates a refresh token, revokes it and returns a new pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	rt, err := s.refreshTokenRepo.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !rt.IsUsable(s.now()) {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, rt.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive() {
		return nil, ErrInactiveAccount
	}

	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return s.issue(ctx, user)
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.refreshTokenRepo.Revoke(ctx, refreshToken)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// CleanExpiredTokens removes refresh tokens that expired before now
func (s *AuthService) CleanExpiredTokens(ctx context.Context) (int64, error) {
	return s.refreshTokenRepo.DeleteExpired(ctx, s.now())
}

// SeedAdmin creates the first admin account when there are no users yet
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	digest, err := HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		Email:          strings.ToLower(strings.TrimSpace(email)),
		PasswordDigest: digest,
		FullName:       "Administrator",
		Role:           models.RoleAdmin,
		Status:         models.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	logger.Info("Seeded admin account", "email", admin.Email)
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*LoginResult, error) {
	token, expiresAt, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refresh, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &LoginResult{
		Token:        token,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         user.ToResponse(),
	}, nil
}

// generateJWT creates a new JWT token for a user
func (s *AuthService) generateJWT(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(time.Duration(s.cfg.JWTExpirationHours) * time.Hour)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	return signed, expiresAt, err
}

// generateRefreshToken creates a new refresh token
func (s *AuthService) generateRefreshToken(ctx context.Context, userID uint) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	days := s.cfg.RefreshExpiryDays
	if days <= 0 {
		days = 30
	}
	rt := &models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: s.now().Add(time.Duration(days) * 24 * time.Hour),
	}
	if err := s.refreshTokenRepo.Create(ctx, rt); err != nil {
		return "", err
	}
	return token, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a password with a hash
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
