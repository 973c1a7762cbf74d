package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/cashflow-api/internal/jobs"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

// UserInput is the body of a create-user request
type UserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"omitempty,oneof=admin manager user"`
}

// UserService handles back-office accounts
type UserService struct {
	repo         repository.UserRepository
	worker       *jobs.Worker
	emailService *EmailService
	auditSvc     *AuditService
	now          func() time.Time
}

func NewUserService(repo repository.UserRepository, worker *jobs.Worker, emailService *EmailService, auditSvc *AuditService) *UserService {
	return &UserService{
		repo:         repo,
		worker:       worker,
		emailService: emailService,
		auditSvc:     auditSvc,
		now:          time.Now,
	}
}

func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	return s.repo.List(ctx, query)
}

func (s *UserService) Create(ctx context.Context, input UserInput, actor Actor) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	digest, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:          input.Email,
		PasswordDigest: digest,
		FullName:       strings.TrimSpace(input.FullName),
		Role:           input.Role,
		Status:         models.UserStatusActive,
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditSvc.Record(ctx, actor, models.AuditActionCreate, models.AuditEntityUser, user.ID,
		fmt.Sprintf("User created: %s (%s)", user.Email, user.Role))

	if s.emailService != nil {
		welcome := *user
		runAsync(s.worker, "welcome-email", func(ctx context.Context) error {
			return s.emailService.SendAccountCreated(ctx, &welcome)
		})
	}
	return user, nil
}

// UpdateRole changes a user's role. Admins cannot demote themselves.
func (s *UserService) UpdateRole(ctx context.Context, id uint, role string, actor Actor) (*models.User, error) {
	if !models.IsValidRole(role) {
		return nil, NewValidationError("Role must be one of: admin, manager, user")
	}
	if id == actor.UserID && role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	if user.Role == role {
		return user, nil
	}

	previous := user.Role
	user.Role = role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditSvc.Record(ctx, actor, models.AuditActionUpdate, models.AuditEntityUser, user.ID,
		fmt.Sprintf("Role changed from %s to %s for %s", previous, role, user.Email))
	return user, nil
}
