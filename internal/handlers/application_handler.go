package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/services"
)

// ApplicationHandler accepts the public loan application forms
type ApplicationHandler struct {
	intakeService *services.IntakeService
}

func NewApplicationHandler(intakeService *services.IntakeService) *ApplicationHandler {
	return &ApplicationHandler{intakeService: intakeService}
}

// @Summary Unsecured Loan Application
// @Description Public form. Creates a new lead with its supporting documents.
// @Tags Applications
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "First name"
// @Param surname formData string false "Surname"
// @Param id_number formData string true "ID number"
// @Param phone formData string true "Phone"
// @Param email formData string true "Email"
// @Param amount formData number true "Requested amount"
// @Param terms formData bool true "Terms accepted"
// @Param payslip formData file false "Latest payslip"
// @Param id_document formData file false "Copy of ID"
// @Param bank_statement formData file false "Bank statement"
// @Success 201 {object} services.ApplicationResult
// @Failure 400 {object} map[string]interface{}
// @Router /applications/unsecured [post]
func (h *ApplicationHandler) Unsecured(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Expected a multipart form")
		return
	}

	result, err := h.intakeService.SubmitUnsecured(c.Request.Context(), services.UnsecuredApplication{
		ApplicationInput: applicationFields(c),
		Payslip:          formFile(form, "payslip"),
		IDDocument:       formFile(form, "id_document"),
		BankStatement:    formFile(form, "bank_statement"),
	}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// @Summary Secured Loan Application
// @Description Public form. Creates a new lead with photos of the collateral.
// @Tags Applications
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "First name"
// @Param id_number formData string true "ID number"
// @Param phone formData string true "Phone"
// @Param email formData string true "Email"
// @Param amount formData number true "Requested amount"
// @Param terms formData bool true "Terms accepted"
// @Param collateral_description formData string false "Collateral"
// @Param collateral_images formData file false "Collateral photos"
// @Success 201 {object} services.ApplicationResult
// @Failure 400 {object} map[string]interface{}
// @Router /applications/secured [post]
func (h *ApplicationHandler) Secured(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Expected a multipart form")
		return
	}

	result, err := h.intakeService.SubmitSecured(c.Request.Context(), services.SecuredApplication{
		ApplicationInput:      applicationFields(c),
		CollateralDescription: formValue(c, "collateral_description"),
		CollateralImages:      formFiles(form, "collateral_images"),
	}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func applicationFields(c *gin.Context) services.ApplicationInput {
	amountText := formValue(c, "amount")
	if amountText == "" {
		amountText = formValue(c, "loan_amount")
	}
	amount, _ := strconv.ParseFloat(strings.ReplaceAll(amountText, ",", ""), 64)

	return services.ApplicationInput{
		Name:       formValue(c, "name"),
		Surname:    formValue(c, "surname"),
		IDNumber:   formValue(c, "id_number"),
		Phone:      formValue(c, "phone"),
		Email:      formValue(c, "email"),
		LoanAmount: amount,
		Terms:      accepted(formValue(c, "terms")),
	}
}

// accepted reads an HTML checkbox value
func accepted(v string) bool {
	switch strings.ToLower(v) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
