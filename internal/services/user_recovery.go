package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// RecoveryCodeTTL is how long an emailed recovery code stays valid
const RecoveryCodeTTL = 15 * time.Minute

// PasswordResetInput is the body of a reset-with-code request
type PasswordResetInput struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// PasswordChangeInput is the body of a change-password request
type PasswordChangeInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// GenerateRecoveryCode generates a 6-digit random code
func GenerateRecoveryCode() (string, error) {
	const digits = "0123456789"
	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}

// SendRecoveryCode emails a recovery code to an active user. Unknown
// addresses succeed silently.
func (s *UserService) SendRecoveryCode(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || !user.IsActive() {
		return nil
	}

	code, err := GenerateRecoveryCode()
	if err != nil {
		return fmt.Errorf("failed to generate recovery code: %w", err)
	}
	if err := s.repo.SetRecoveryCode(ctx, user.ID, code, s.now()); err != nil {
		return fmt.Errorf("failed to save recovery code: %w", err)
	}
	logger.Info("[Recovery] Code saved for user", "user_id", user.ID)

	if s.emailService != nil {
		recipient := *user
		runAsync(s.worker, "recovery-email", func(ctx context.Context) error {
			return s.emailService.SendRecoveryCode(ctx, &recipient, code, RecoveryCodeTTL)
		})
	}
	return nil
}

// VerifyRecoveryCode reports whether code is the user's current, unexpired code
func (s *UserService) VerifyRecoveryCode(ctx context.Context, email, code string) (bool, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, nil
	}
	return s.codeMatches(user, strings.TrimSpace(code)), nil
}

func (s *UserService) codeMatches(user *models.User, code string) bool {
	if user.RecoveryCode == nil || user.RecoveryCodeSentAt == nil {
		return false
	}
	if *user.RecoveryCode != code {
		logger.Info("[Recovery] Code mismatch", "user_id", user.ID)
		return false
	}
	if s.now().Sub(*user.RecoveryCodeSentAt) > RecoveryCodeTTL {
		logger.Info("[Recovery] Code expired", "user_id", user.ID)
		return false
	}
	return true
}

// ResetPassword sets a new password after checking the recovery code. The
// code is single use.
func (s *UserService) ResetPassword(ctx context.Context, input PasswordResetInput) error {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Code = strings.TrimSpace(input.Code)
	if err := validateStruct(input); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		return ErrInvalidRecoveryCode
	}
	if !s.codeMatches(user, input.Code) {
		return ErrInvalidRecoveryCode
	}

	digest, err := HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordDigest = digest
	user.RecoveryCode = nil
	user.RecoveryCodeSentAt = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.auditSvc.Record(ctx, Actor{UserID: user.ID, Email: user.Email}, models.AuditActionUpdate, models.AuditEntityUser, user.ID,
		"Password reset with recovery code")
	return nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *UserService) ChangePassword(ctx context.Context, input PasswordChangeInput, actor Actor) error {
	if err := validateStruct(input); err != nil {
		return err
	}
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		return fromRepo(err)
	}
	if !VerifyPassword(input.CurrentPassword, user.PasswordDigest) {
		return ErrInvalidCredentials
	}

	digest, err := HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordDigest = digest
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.auditSvc.Record(ctx, actor, models.AuditActionUpdate, models.AuditEntityUser, user.ID, "Password changed")
	return nil
}

// ToggleStatus activates or deactivates an account. Admins cannot deactivate
// themselves.
func (s *UserService) ToggleStatus(ctx context.Context, id uint, actor Actor) (*models.User, error) {
	if id == actor.UserID {
		return nil, ErrForbidden
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}

	if user.IsActive() {
		user.Status = models.UserStatusInactive
	} else {
		user.Status = models.UserStatusActive
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditSvc.Record(ctx, actor, models.AuditActionUpdate, models.AuditEntityUser, user.ID,
		fmt.Sprintf("User %s is now %s", user.Email, user.Status))
	return user, nil
}
