package services

import (
	"context"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// Actor identifies who triggered an operation. The zero value is the system
// (public forms, background jobs).
type Actor struct {
	UserID    uint
	Email     string
	Role      string
	IP        string
	UserAgent string
}

// SystemActor is used by scheduled jobs
var SystemActor = Actor{Email: "system"}

// Name is what gets written to processed_by, created_by and uploaded_by
func (a Actor) Name() string {
	if a.Email != "" {
		return a.Email
	}
	return "system"
}

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry
func (s *AuditService) Log(ctx context.Context, actor Actor, action, entity string, entityID uint, details string) error {
	entry := &models.AuditLog{
		UserID:    actor.UserID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	return s.repo.Create(ctx, entry)
}

// Record logs an audit entry and only reports failures to the log. Auditing
// never fails the operation being audited.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, entity string, entityID uint, details string) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, actor, action, entity, entityID, details); err != nil {
		logger.Error("[Audit] Failed to record entry", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}
