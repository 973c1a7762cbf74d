package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/services"
)

type AnalyticsHandler struct {
	analyticsSvc *services.AnalyticsService
	exportSvc    *services.ExportService
}

func NewAnalyticsHandler(analyticsSvc *services.AnalyticsService, exportSvc *services.ExportService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsSvc: analyticsSvc,
		exportSvc:    exportSvc,
	}
}

// @Summary Portfolio Summary
// @Description Totals, counts and repayment rate across all loans
// @Tags Analytics
// @Produce json
// @Success 200 {object} models.AnalyticsSummary
// @Security BearerAuth
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.analyticsSvc.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Status Breakdown
// @Tags Analytics
// @Produce json
// @Success 200 {array} models.StatusCount
// @Security BearerAuth
// @Router /analytics/status [get]
func (h *AnalyticsHandler) Status(c *gin.Context) {
	counts, err := h.analyticsSvc.StatusBreakdown(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": counts})
}

// @Summary Loan Type Breakdown
// @Tags Analytics
// @Produce json
// @Success 200 {array} models.LoanTypeBreakdown
// @Security BearerAuth
// @Router /analytics/loan-types [get]
func (h *AnalyticsHandler) LoanTypes(c *gin.Context) {
	types, err := h.analyticsSvc.LoanTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan_types": types})
}

// @Summary Monthly Collections
// @Tags Analytics
// @Produce json
// @Param months query int false "How many months back" default(6)
// @Success 200 {array} models.CollectionPoint
// @Security BearerAuth
// @Router /analytics/collections [get]
func (h *AnalyticsHandler) Collections(c *gin.Context) {
	months, err := strconv.Atoi(c.DefaultQuery("months", "6"))
	if err != nil || months <= 0 {
		badRequest(c, "months must be a positive number")
		return
	}
	points, err := h.analyticsSvc.Collections(c.Request.Context(), months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": points})
}

// @Summary Loan Health
// @Description Health score for every open loan
// @Tags Analytics
// @Produce json
// @Success 200 {array} models.ClientHealth
// @Security BearerAuth
// @Router /analytics/health [get]
func (h *AnalyticsHandler) Health(c *gin.Context) {
	health, err := h.analyticsSvc.Health(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": health})
}

// @Summary Export Clients
// @Description Downloads every client with its current balance
// @Tags Analytics
// @Produce application/octet-stream
// @Param format query string false "csv, xlsx or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	file, err := h.exportSvc.ExportClients(c.Request.Context(), c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, file.Data, file.Filename, file.ContentType)
}
