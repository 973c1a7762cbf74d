package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/middleware"
	"github.com/sjperalta/cashflow-api/internal/models"
)

// RegisterRoutes mounts the API under v1
func RegisterRoutes(v1 *gin.RouterGroup, h *Handlers, jwtSecret string) {
	// Public
	v1.GET("/health", h.Health.Index)

	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/recover", h.User.SendRecoveryCode)
		auth.POST("/recover/verify", h.User.VerifyRecoveryCode)
		auth.POST("/recover/reset", h.User.ResetPassword)
	}

	applications := v1.Group("/applications")
	{
		applications.POST("/unsecured", h.Application.Unsecured)
		applications.POST("/secured", h.Application.Secured)
	}

	protected := v1.Group("")
	protected.Use(middleware.Auth(jwtSecret))
	{
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.GET("/me", h.Auth.Me)
		protected.PUT("/me/password", h.User.ChangePassword)

		clients := protected.Group("/clients")
		{
			clients.GET("", h.Client.Index)
			clients.POST("", h.Client.Create)
			clients.GET("/:id", h.Client.Show)
			clients.PUT("/:id", h.Client.Update)
			clients.POST("/:id/archive", h.Client.Archive)
			clients.POST("/:id/unarchive", h.Client.Unarchive)
			clients.GET("/:id/calculate", h.Client.Calculate)
			clients.GET("/:id/statement", h.Report.Statement)

			clients.GET("/:id/payments", h.Payment.Index)
			clients.POST("/:id/payments", h.Payment.Create)
			clients.GET("/:id/notes", h.Note.Index)
			clients.POST("/:id/notes", h.Note.Create)
			clients.GET("/:id/documents", h.Document.Index)
			clients.POST("/:id/documents", h.Document.Upload)

			clients.PUT("/:id/status", middleware.RequireRole(models.RoleAdmin, models.RoleManager), h.Client.UpdateStatus)
			clients.DELETE("/:id", middleware.RequireAdmin(), h.Client.Delete)
		}

		protected.GET("/payments/recent", h.Payment.Recent)
		protected.DELETE("/notes/:id", h.Note.Delete)
		protected.GET("/documents/:id/download", h.Document.Download)
		protected.DELETE("/documents/:id", h.Document.Delete)

		analytics := protected.Group("/analytics")
		{
			analytics.GET("/summary", h.Analytics.Summary)
			analytics.GET("/status", h.Analytics.Status)
			analytics.GET("/loan-types", h.Analytics.LoanTypes)
			analytics.GET("/collections", h.Analytics.Collections)
			analytics.GET("/health", h.Analytics.Health)
			analytics.GET("/export", h.Analytics.Export)
		}

		protected.GET("/reports/overdue.csv", h.Report.OverdueCSV)

		// Static routes before :id
		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notification.Index)
			notifications.PUT("/read-all", h.Notification.MarkAllAsRead)
			notifications.PUT("/:id/read", h.Notification.MarkAsRead)
			notifications.POST("/payment-due", middleware.RequireAdmin(), h.Notification.PaymentDue)
		}

		admin := protected.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/users", h.User.Index)
			admin.POST("/users", h.User.Create)
			admin.GET("/users/:id", h.User.Show)
			admin.PUT("/users/:id/role", h.User.UpdateRole)
			admin.PUT("/users/:id/toggle-status", h.User.ToggleStatus)

			admin.GET("/audit", h.Audit.Index)
			admin.GET("/jobs/status", h.Job.Status)
		}
	}
}
