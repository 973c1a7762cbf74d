package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// @Summary List Users
// @Description Get a paginated list of back-office users
// @Tags Users
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "Search by name or email"
// @Param role query string false "Filter by role"
// @Param status query string false "Filter by status (active by default, all for every user)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) Index(c *gin.Context) {
	query := listQuery(c)
	query.Filters["role"] = c.Query("role")

	status := c.Query("status")
	if status == "" {
		status = models.UserStatusActive
	} else if status == "all" {
		status = ""
	}
	query.Filters["status"] = status

	users, total, err := h.userService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, users[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"users": responses, "pagination": pagination(query, total)})
}

// @Summary Get User
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse()})
}

// @Summary Create User
// @Description Create a back-office account; a welcome email is sent
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.UserInput true "User Data"
// @Success 201 {object} models.UserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req services.UserInput
	if err := BindNestedOrFlat(c, "user", &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.ToResponse(), "message": "User created successfully"})
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// @Summary Update User Role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} models.UserResponse
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := BindBody(c, &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), id, strings.ToLower(strings.TrimSpace(req.Role)), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse(), "message": "Role updated"})
}

// @Summary Toggle User Status
// @Description Activates or deactivates an account
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserResponse
// @Security BearerAuth
// @Router /users/{id}/toggle-status [put]
func (h *UserHandler) ToggleStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.ToggleStatus(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse(), "message": "User is now " + user.Status})
}

// @Summary Change Password
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.PasswordChangeInput true "Passwords"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req services.PasswordChangeInput
	if err := BindBody(c, &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.userService.ChangePassword(c.Request.Context(), req, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

type RecoveryRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// @Summary Send Recovery Code
// @Description Emails a 6-digit recovery code. Unknown addresses get the same answer.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RecoveryRequest true "Email"
// @Success 200 {object} map[string]string
// @Router /auth/recover [post]
func (h *UserHandler) SendRecoveryCode(c *gin.Context) {
	var req RecoveryRequest
	if err := BindBody(c, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(c, "Email is required")
		return
	}
	if err := h.userService.SendRecoveryCode(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the address is registered, a recovery code has been sent"})
}

// @Summary Verify Recovery Code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RecoveryRequest true "Email and code"
// @Success 200 {object} map[string]bool
// @Router /auth/recover/verify [post]
func (h *UserHandler) VerifyRecoveryCode(c *gin.Context) {
	var req RecoveryRequest
	if err := BindBody(c, &req); err != nil || req.Email == "" || req.Code == "" {
		badRequest(c, "Email and code are required")
		return
	}
	valid, err := h.userService.VerifyRecoveryCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// @Summary Reset Password With Code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body services.PasswordResetInput true "Email, code and new password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Router /auth/recover/reset [post]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req services.PasswordResetInput
	if err := BindBody(c, &req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.userService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated, you can now log in"})
}
