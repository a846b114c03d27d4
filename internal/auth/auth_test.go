package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizdesk/internal/rbac"
	"github.com/mind-engage/quizdesk/internal/users"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT("u1", "Ada", "user")
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Sub)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "user", c.Role)

	_, err = NewAuthService("other", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	a := NewAuthService("secret", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Sub: "u1", Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.Parse(s)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Sub: "u1", Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	s, err = foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.Parse(s)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	var seen struct{ sub, name, role string }
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.sub = SubjectFromContext(r.Context())
		seen.name = NameFromContext(r.Context())
		seen.role = rbac.RoleFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := a.IssueJWT("u1", "Ada", "admin")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seen.sub)
	assert.Equal(t, "Ada", seen.name)
	assert.Equal(t, "admin", seen.role)
}

type lookupFunc func(ctx context.Context, id string) (users.User, error)

func (f lookupFunc) GetByID(ctx context.Context, id string) (users.User, error) { return f(ctx, id) }

func TestAttachRoleFromStore(t *testing.T) {
	lookup := lookupFunc(func(_ context.Context, id string) (users.User, error) {
		switch id {
		case "u1":
			return users.User{ID: "u1", Name: "Ada L.", Role: "user"}, nil
		case "broken":
			return users.User{}, errors.New("db down")
		}
		return users.User{}, users.ErrNotFound
	})
	var role, name string
	h := AttachRoleFromStore(lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = rbac.RoleFromContext(r.Context())
		name = NameFromContext(r.Context())
	}))

	serve := func(sub string) int {
		ctx := rbac.WithRole(WithSubject(context.Background(), sub), "admin")
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// a demoted user loses the role still present in the token
	assert.Equal(t, http.StatusOK, serve("u1"))
	assert.Equal(t, "user", role)
	assert.Equal(t, "Ada L.", name)

	assert.Equal(t, http.StatusUnauthorized, serve("gone"))
	assert.Equal(t, http.StatusInternalServerError, serve("broken"))
}
