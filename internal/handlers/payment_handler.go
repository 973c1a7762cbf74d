package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// @Summary List Client Payments
// @Tags Payments
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients/{id}/payments [get]
func (h *PaymentHandler) Index(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	payments, err := h.paymentService.ListByClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": toPaymentResponses(payments)})
}

// @Summary Record Payment
// @Description Applies a payment to the loan. Amounts above the balance are capped; a settled loan answers 409.
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path int true "Client ID"
// @Param request body services.PaymentInput true "Payment"
// @Success 201 {object} services.PaymentResult
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /clients/{id}/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.PaymentInput
	if err := BindNestedOrFlat(c, "payment", &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// @Summary Recent Payments
// @Description Latest payments across all clients
// @Tags Payments
// @Produce json
// @Param limit query int false "How many (max 100)" default(10)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /payments/recent [get]
func (h *PaymentHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	payments, err := h.paymentService.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": toPaymentResponses(payments)})
}

func toPaymentResponses(payments []models.Payment) []models.PaymentResponse {
	out := make([]models.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, payments[i].ToResponse())
	}
	return out
}
