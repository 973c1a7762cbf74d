package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/services"
)

type ClientHandler struct {
	clientService *services.ClientService
}

func NewClientHandler(clientService *services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// @Summary List Clients
// @Description Paginated loans with balances evaluated at request time
// @Tags Clients
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "Search by name, email, phone or ID number"
// @Param status query string false "Comma separated statuses"
// @Param loan_type query string false "Secured Loan or Unsecured Loan"
// @Param archived query string false "true, all (default hides archived)"
// @Param sort query string false "field-direction, e.g. due_date-asc"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients [get]
func (h *ClientHandler) Index(c *gin.Context) {
	query := listQuery(c)
	query.Filters["status"] = c.Query("status")
	query.Filters["loan_type"] = firstQuery(c, "loan_type", "loanType")
	query.Filters["archived"] = strings.ToLower(c.Query("archived"))

	clients, total, err := h.clientService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.ClientResponse, 0, len(clients))
	for i := range clients {
		responses = append(responses, clients[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"clients": responses, "pagination": pagination(query, total)})
}

// @Summary Get Client
// @Description A client with payment history, notes and documents
// @Tags Clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} models.ClientResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /clients/{id} [get]
func (h *ClientHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client.ToResponse()})
}

// @Summary Create Client
// @Description Registers a loan as a new lead; amount due starts at 1.5 times the principal
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body services.ClientInput true "Client Data"
// @Success 201 {object} models.ClientResponse
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req services.ClientInput
	if err := BindNestedOrFlat(c, "client", &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": client.ToResponse(), "message": "Client created successfully"})
}

// @Summary Update Client
// @Description Partial update; omitted fields are left unchanged
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path int true "Client ID"
// @Param request body services.ClientPatch true "Fields to change"
// @Success 200 {object} models.ClientResponse
// @Security BearerAuth
// @Router /clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ClientPatch
	if err := BindNestedOrFlat(c, "client", &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), id, req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client.ToResponse(), "message": "Client updated successfully"})
}

// @Summary Delete Client
// @Description Removes a client with its payments, notes and stored documents
// @Tags Clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /clients/{id} [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.clientService.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}

// @Summary Archive Client
// @Tags Clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} models.ClientResponse
// @Security BearerAuth
// @Router /clients/{id}/archive [post]
func (h *ClientHandler) Archive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.Archive(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client.ToResponse(), "message": "Client archived"})
}

// @Summary Unarchive Client
// @Tags Clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} models.ClientResponse
// @Security BearerAuth
// @Router /clients/{id}/unarchive [post]
func (h *ClientHandler) Unarchive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.Unarchive(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client.ToResponse(), "message": "Client restored"})
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// @Summary Override Client Status
// @Description Sets the status by hand; the change is kept as a note
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path int true "Client ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} models.ClientResponse
// @Failure 400 {object} map[string]interface{}
// @Security BearerAuth
// @Router /clients/{id}/status [put]
func (h *ClientHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := BindBody(c, &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	client, err := h.clientService.UpdateStatus(c.Request.Context(), id, strings.TrimSpace(req.Status), strings.TrimSpace(req.Reason), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client.ToResponse(), "message": "Status updated"})
}

// @Summary Calculate Balance
// @Description Runs the balance engine for one loan
// @Tags Clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} services.LoanSummary
// @Security BearerAuth
// @Router /clients/{id}/calculate [get]
func (h *ClientHandler) Calculate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	summary, err := h.clientService.Calculate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
