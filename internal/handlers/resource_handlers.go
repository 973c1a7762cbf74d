package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/middleware"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/services"
)

// NoteHandler handles client notes
type NoteHandler struct {
	noteService *services.NoteService
}

func NewNoteHandler(noteService *services.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

// @Summary List Notes
// @Tags Notes
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients/{id}/notes [get]
func (h *NoteHandler) Index(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	notes, err := h.noteService.ListByClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	responses := make([]models.NoteResponse, 0, len(notes))
	for i := range notes {
		responses = append(responses, notes[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"notes": responses})
}

// @Summary Add Note
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path int true "Client ID"
// @Param request body services.NoteInput true "Note"
// @Success 201 {object} models.NoteResponse
// @Security BearerAuth
// @Router /clients/{id}/notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.NoteInput
	if err := BindNestedOrFlat(c, "note", &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	note, err := h.noteService.Create(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note.ToResponse()})
}

// @Summary Delete Note
// @Tags Notes
// @Produce json
// @Param id path int true "Note ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.noteService.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}

// DocumentHandler handles uploaded client documents
type DocumentHandler struct {
	documentService *services.DocumentService
}

func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// @Summary List Documents
// @Tags Documents
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients/{id}/documents [get]
func (h *DocumentHandler) Index(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	docs, err := h.documentService.ListByClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	responses := make([]models.DocumentResponse, 0, len(docs))
	for i := range docs {
		responses = append(responses, docs[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"documents": responses})
}

// @Summary Upload Document
// @Description pdf, jpg, jpeg or png; images get a thumbnail
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Client ID"
// @Param file formData file true "Document"
// @Param category formData string false "payslip, id_document, bank_statement, collateral, other"
// @Param description formData string false "Description"
// @Success 201 {object} models.DocumentResponse
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	input := services.UploadInput{Category: formValue(c, "category")}
	if file, err := c.FormFile("file"); err == nil {
		input.File = file
	}
	if desc := formValue(c, "description"); desc != "" {
		input.Description = &desc
	}

	doc, err := h.documentService.Upload(c.Request.Context(), id, input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc.ToResponse()})
}

// @Summary Download Document
// @Tags Documents
// @Produce application/octet-stream
// @Param id path int true "Document ID"
// @Param thumbnail query bool false "Serve the thumbnail of an image"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	thumbnail := c.Query("thumbnail") == "true"
	file, err := h.documentService.Open(c.Request.Context(), id, thumbnail)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", file.ContentType)
	if thumbnail || c.Query("inline") == "true" {
		c.File(file.Path)
		return
	}
	c.FileAttachment(file.Path, file.Name)
}

// @Summary Delete Document
// @Tags Documents
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.documentService.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

// NotificationHandler serves in-app notifications and the payment-due digest
type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// @Summary List Notifications
// @Tags Notifications
// @Produce json
// @Param status query string false "read, unread"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) Index(c *gin.Context) {
	userID := middleware.GetUserID(c)
	query := listQuery(c)
	query.Filters["status"] = c.Query("status")

	notifications, total, err := h.notificationService.List(c.Request.Context(), userID, query)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notificationService.CountUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notifications[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": responses,
		"unread_count":  unread,
		"pagination":    pagination(query, total),
	})
}

// @Summary Mark Notification Read
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkAsRead(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// @Summary Mark All Notifications Read
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/read-all [put]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}

// @Summary Send Payment-Due Digest
// @Description Sends the month-end digest now. Without force it only sends when tomorrow is the last day of the month.
// @Tags Notifications
// @Produce json
// @Param force query bool false "Skip the month-end check"
// @Success 200 {object} services.DigestResult
// @Security BearerAuth
// @Router /notifications/payment-due [post]
func (h *NotificationHandler) PaymentDue(c *gin.Context) {
	force := strings.EqualFold(c.Query("force"), "true") || c.Query("force") == "1"
	result, err := h.notificationService.SendPaymentDueDigest(c.Request.Context(), force)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReportHandler serves generated reports
type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// @Summary Client Statement
// @Description PDF statement with the current balance and payment history
// @Tags Reports
// @Produce application/pdf
// @Param id path int true "Client ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /clients/{id}/statement [get]
func (h *ReportHandler) Statement(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if c.Query("format") == "html" {
		html, _, err := h.reportService.StatementHTML(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
		return
	}

	pdf, filename, err := h.reportService.GenerateStatementPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, pdf.Bytes(), filename, "application/pdf")
}

// @Summary Overdue Clients CSV
// @Tags Reports
// @Produce text/csv
// @Success 200 {file} file
// @Security BearerAuth
// @Router /reports/overdue.csv [get]
func (h *ReportHandler) OverdueCSV(c *gin.Context) {
	buf, err := h.reportService.GenerateOverdueCSV(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, buf.Bytes(), "overdue_clients.csv", "text/csv")
}

// AuditHandler lists audit entries
type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Tags Audit
// @Produce json
// @Param entity query string false "Client, Payment, Note, Document, User, Digest"
// @Param entity_id query int false "Entity ID"
// @Param action query string false "CREATE, UPDATE, PAYMENT, ..."
// @Param user_id query int false "User ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audit [get]
func (h *AuditHandler) Index(c *gin.Context) {
	query := listQuery(c)
	for _, key := range []string{"entity", "entity_id", "action", "user_id"} {
		query.Filters[key] = firstQuery(c, key, toCamel(key))
	}

	logs, total, err := h.auditService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs, "pagination": pagination(query, total)})
}
