package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/cashflow-api/internal/middleware"
	"github.com/sjperalta/cashflow-api/internal/repository"
	"github.com/sjperalta/cashflow-api/internal/services"
)

const maxPerPage = 100

// respondError writes the JSON error for err with the matching status code
func respondError(c *gin.Context, err error) {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "errors": vErr.Messages})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
	if statusFor(err) >= http.StatusInternalServerError {
		_ = c.Error(err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrLoanSettled),
		errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrInactiveAccount):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidFile),
		errors.Is(err, services.ErrFileTooLarge),
		errors.Is(err, services.ErrInvalidRecoveryCode):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// badRequest reports a malformed body or parameter
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// actorFrom builds the audit actor for the authenticated request. Public
// routes get an actor with only the network details set.
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    middleware.GetUserID(c),
		Email:     middleware.GetUserEmail(c),
		Role:      middleware.GetUserRole(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// paramID parses a positive numeric path parameter, answering 400 when it is
// not one
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+strings.ReplaceAll(name, "_", " "))
		return 0, false
	}
	return uint(id), true
}

// listQuery reads page, per_page, search and sort=field-direction
func listQuery(c *gin.Context) *repository.ListQuery {
	query := repository.NewListQuery()
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		query.Page = page
	}
	if perPage, err := strconv.Atoi(firstQuery(c, "per_page", "perPage")); err == nil && perPage > 0 {
		query.PerPage = min(perPage, maxPerPage)
	}
	query.Search = strings.TrimSpace(firstQuery(c, "search", "search_term", "q"))

	if sort := c.Query("sort"); sort != "" {
		field, dir, _ := strings.Cut(sort, "-")
		query.SortBy = field
		query.SortDir = strings.ToLower(dir)
	}
	return query
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

func pagination(query *repository.ListQuery, total int64) gin.H {
	return gin.H{
		"page":        query.Page,
		"per_page":    query.PerPage,
		"total":       total,
		"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
	}
}

// sendFile streams generated bytes as a download
func sendFile(c *gin.Context, data []byte, filename, contentType string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
