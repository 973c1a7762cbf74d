package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/cashflow-api/internal/config"
	"github.com/sjperalta/cashflow-api/internal/models"
	"github.com/sjperalta/cashflow-api/internal/repository"
)

func newAuthFixture(t *testing.T, users *mockUserRepo, tokens *mockRTRepo) (*AuthService, *mockAuditRepo) {
	t.Helper()
	audit := &mockAuditRepo{}
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 2}
	service := NewAuthService(users, tokens, NewAuditService(audit), cfg)
	service.now = fixedClock(time.Now().Truncate(time.Second))
	return service, audit
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	digest, err := HashPassword(password)
	require.NoError(t, err)
	return &models.User{ID: 3, Email: "clerk@example.com", PasswordDigest: digest, Role: models.RoleManager, Status: models.UserStatusActive}
}

func TestAuthService_Login(t *testing.T) {
	user := activeUser(t, "correct-horse")
	users := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			if email != user.Email {
				return nil, repository.ErrNotFound
			}
			u := *user
			return &u, nil
		},
	}
	tokens := &mockRTRepo{}
	service, audit := newAuthFixture(t, users, tokens)

	result, err := service.Login(context.Background(), "  Clerk@Example.com ", "correct-horse", Actor{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Len(t, result.RefreshToken, 64)
	assert.NotNil(t, result.User.LastLoginAt)
	require.Len(t, tokens.created, 1)
	assert.Equal(t, uint(3), tokens.created[0].UserID)
	assert.Equal(t, []string{models.AuditActionLogin}, audit.actions())

	parsed, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "clerk@example.com", claims["email"])
	assert.Equal(t, models.RoleManager, claims["role"])
	assert.Equal(t, float64(3), claims["user_id"])
}

func TestAuthService_Login_Failures(t *testing.T) {
	user := activeUser(t, "correct-horse")
	inactive := *user
	inactive.Email = "gone@example.com"
	inactive.Status = models.UserStatusInactive

	users := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			switch email {
			case user.Email:
				return user, nil
			case inactive.Email:
				return &inactive, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	service, audit := newAuthFixture(t, users, &mockRTRepo{})

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@example.com", "correct-horse", ErrInvalidCredentials},
		{"wrong password", user.Email, "battery-staple", ErrInvalidCredentials},
		{"inactive account", inactive.Email, "correct-horse", ErrInactiveAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Login(context.Background(), tt.email, tt.password, Actor{})
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, audit.actions())
}

func TestAuthService_RefreshToken_RotatesPair(t *testing.T) {
	user := activeUser(t, "correct-horse")
	var revoked []string
	tokens := &mockRTRepo{
		mockFindByToken: func(ctx context.Context, token string) (*models.RefreshToken, error) {
			return &models.RefreshToken{UserID: user.ID, Token: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		mockRevoke: func(ctx context.Context, token string) error {
			revoked = append(revoked, token)
			return nil
		},
	}
	users := &mockUserRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.User, error) { return user, nil },
	}
	service, _ := newAuthFixture(t, users, tokens)

	result, err := service.RefreshToken(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, []string{"old-token"}, revoked)
	assert.NotEqual(t, "old-token", result.RefreshToken)
	require.Len(t, tokens.created, 1)
}

func TestAuthService_RefreshToken_Rejected(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		token *models.RefreshToken
		user  *models.User
		want  error
	}{
		{"unknown token", nil, nil, ErrInvalidToken},
		{"revoked token", &models.RefreshToken{UserID: 1, Revoked: true, ExpiresAt: now.Add(time.Hour)}, nil, ErrInvalidToken},
		{"expired token", &models.RefreshToken{UserID: 1, ExpiresAt: now.Add(-time.Hour)}, nil, ErrInvalidToken},
		{"inactive user", &models.RefreshToken{UserID: 1, ExpiresAt: now.Add(time.Hour)}, &models.User{ID: 1, Status: models.UserStatusInactive}, ErrInactiveAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockRTRepo{
				mockFindByToken: func(ctx context.Context, token string) (*models.RefreshToken, error) {
					if tt.token == nil {
						return nil, repository.ErrNotFound
					}
					return tt.token, nil
				},
			}
			users := &mockUserRepo{
				mockFindByID: func(ctx context.Context, id uint) (*models.User, error) {
					if tt.user == nil {
						return nil, repository.ErrNotFound
					}
					return tt.user, nil
				},
			}
			service, _ := newAuthFixture(t, users, tokens)

			result, err := service.RefreshToken(context.Background(), "token")
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, tokens.created)
		})
	}
}

func TestAuthService_Logout_IgnoresUnknownToken(t *testing.T) {
	tokens := &mockRTRepo{
		mockRevoke: func(ctx context.Context, token string) error { return repository.ErrNotFound },
	}
	service, _ := newAuthFixture(t, &mockUserRepo{}, tokens)

	assert.NoError(t, service.Logout(context.Background(), "missing"))
	assert.NoError(t, service.Logout(context.Background(), ""))
}

func TestAuthService_SeedAdmin(t *testing.T) {
	var created []models.User
	count := int64(0)
	users := &mockUserRepo{
		mockCount: func(ctx context.Context) (int64, error) { return count, nil },
		mockCreate: func(ctx context.Context, user *models.User) error {
			created = append(created, *user)
			count++
			return nil
		},
	}
	service, _ := newAuthFixture(t, users, &mockRTRepo{})

	require.NoError(t, service.SeedAdmin(context.Background(), "Admin@Example.com", "s3cret-pass"))
	require.NoError(t, service.SeedAdmin(context.Background(), "other@example.com", "s3cret-pass"))

	require.Len(t, created, 1)
	assert.Equal(t, "admin@example.com", created[0].Email)
	assert.Equal(t, models.RoleAdmin, created[0].Role)
	assert.True(t, VerifyPassword("s3cret-pass", created[0].PasswordDigest))
}
