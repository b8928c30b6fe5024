package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/repository"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memUsers struct {
	byEmail map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*models.User)}
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	email := strings.ToLower(user.Email)
	if _, ok := m.byEmail[email]; ok {
		return repository.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	cp := *user
	m.byEmail[email] = &cp
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tokens := NewTokenManager("secret", time.Hour)
	user := &models.User{ID: primitive.NewObjectID(), Name: "Ravi", IsAdmin: true}

	signed, err := tokens.Issue(user)
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, "Ravi", claims.Name)
	assert.True(t, claims.IsAdmin)
}

func TestTokenManager_Rejects(t *testing.T) {
	tokens := NewTokenManager("secret", time.Hour)
	user := &models.User{ID: primitive.NewObjectID(), Name: "Ravi"}

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(user)
	require.NoError(t, err)

	foreign, err := NewTokenManager("other", time.Hour).Issue(user)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: user.ID.Hex()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      old,
		"wrong secret": foreign,
		"alg none":     none,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(newMemUsers(), NewTokenManager("secret", time.Hour), zap.NewNop())
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Meera", "Meera@Example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "meera@example.com", sess.User.Email)
	assert.False(t, sess.User.IsAdmin)
	assert.NotEqual(t, "hunter22", sess.User.PasswordHash)

	_, err = svc.Register(ctx, "Meera", "meera@example.com", "another1")
	require.ErrorIs(t, err, ErrEmailTaken)

	sess, err = svc.Login(ctx, "meera@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "Meera", sess.User.Name)

	_, err = svc.Login(ctx, "meera@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newMemUsers(), NewTokenManager("secret", time.Hour), zap.NewNop())

	tests := []struct {
		name, user, email, password string
	}{
		{name: "missing name", email: "a@b.co", password: "secret1"},
		{name: "bad email", user: "A", email: "not-an-email", password: "secret1"},
		{name: "short password", user: "A", email: "a@b.co", password: "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.user, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	users := newMemUsers()
	svc := NewService(users, NewTokenManager("secret", time.Hour), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "admin123"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "admin123"))
	assert.Len(t, users.byEmail, 1)

	sess, err := svc.Login(ctx, "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.True(t, sess.User.IsAdmin)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokenManager("secret", time.Hour)

	userToken, err := tokens.Issue(&models.User{ID: primitive.NewObjectID(), Name: "U"})
	require.NoError(t, err)
	adminToken, err := tokens.Issue(&models.User{ID: primitive.NewObjectID(), Name: "A", IsAdmin: true})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Required(tokens), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Name)
	})
	r.GET("/admin", Required(tokens), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "no header", path: "/me", want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Basic " + userToken, want: http.StatusUnauthorized},
		{name: "bad token", path: "/me", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "user", path: "/me", header: "Bearer " + userToken, want: http.StatusOK},
		{name: "user on admin route", path: "/admin", header: "Bearer " + userToken, want: http.StatusForbidden},
		{name: "admin", path: "/admin", header: "Bearer " + adminToken, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
