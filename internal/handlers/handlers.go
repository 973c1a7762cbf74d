package handlers

import (
	"context"

	"github.com/sjperalta/cashflow-api/internal/services"
)

// LoanStoreProbe reports which loan store backs the API and whether it answers
type LoanStoreProbe struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Client       *ClientHandler
	Payment      *PaymentHandler
	Note         *NoteHandler
	Document     *DocumentHandler
	Application  *ApplicationHandler
	Notification *NotificationHandler
	Report       *ReportHandler
	Audit        *AuditHandler
	Analytics    *AnalyticsHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, probe LoanStoreProbe) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(probe),
		Auth:         NewAuthHandler(svcs.Auth, svcs.User),
		User:         NewUserHandler(svcs.User),
		Client:       NewClientHandler(svcs.Client),
		Payment:      NewPaymentHandler(svcs.Payment),
		Note:         NewNoteHandler(svcs.Note),
		Document:     NewDocumentHandler(svcs.Document),
		Application:  NewApplicationHandler(svcs.Intake),
		Notification: NewNotificationHandler(svcs.Notification),
		Report:       NewReportHandler(svcs.Report),
		Audit:        NewAuditHandler(svcs.Audit),
		Analytics:    NewAnalyticsHandler(svcs.Analytics, svcs.Export),
		Job:          NewJobHandler(svcs.Job),
	}
}
