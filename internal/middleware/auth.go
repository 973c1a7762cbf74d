package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sjperalta/cashflow-api/internal/models"
)

// Context keys set by Auth
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextUserRole  = "userRole"
	ContextClaims    = "claims"
)

var (
	errNoCredentials = errors.New("missing bearer token")
	errBadScheme     = errors.New("authorization must use the Bearer scheme")
	errTokenExpired  = errors.New("token has expired")
	errTokenInvalid  = errors.New("invalid token")
)

// Claims carried by access tokens
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Auth rejects requests without a valid access token signed with jwtSecret
// and stores the caller's identity on the context.
func Auth(jwtSecret string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	)
	key := func(*jwt.Token) (interface{}, error) { return []byte(jwtSecret), nil }

	return func(c *gin.Context) {
		raw, err := bearerToken(c.Request)
		if err == nil {
			var claims *Claims
			if claims, err = parseClaims(parser, raw, key); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextUserEmail, claims.Email)
				c.Set(ContextUserRole, claims.Role)
				c.Set(ContextClaims, claims)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	}
}

// bearerToken reads the token from the Authorization header. Statement and
// document links can't set headers, so a token query parameter is accepted
// when the header is absent.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
			return token, nil
		}
		return "", errNoCredentials
	}

	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", errBadScheme
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errNoCredentials
	}
	return token, nil
}

func parseClaims(parser *jwt.Parser, raw string, key jwt.Keyfunc) (*Claims, error) {
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, key); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}
	if claims.UserID == 0 {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// GetUserID returns the authenticated user's id, or 0
func GetUserID(c *gin.Context) uint {
	id, _ := c.Get(ContextUserID)
	userID, _ := id.(uint)
	return userID
}

func GetUserEmail(c *gin.Context) string {
	return c.GetString(ContextUserEmail)
}

func GetUserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}

// RequireAdmin allows admins only
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// RequireRole allows callers whose role is one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, GetUserRole(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "You do not have access to this section",
			})
			return
		}
		c.Next()
	}
}
