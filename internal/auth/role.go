package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mind-engage/quizdesk/internal/rbac"
	"github.com/mind-engage/quizdesk/internal/users"
)

// UserLookup is the part of the user store the role refresh needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (users.User, error)
}

// AttachRoleFromStore replaces the role carried in the token with the one
// currently stored for the subject, so role changes apply before the token
// expires. A token whose user no longer exists is rejected.
func AttachRoleFromStore(us UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := us.GetByID(ctx, SubjectFromContext(ctx))
			switch {
			case errors.Is(err, users.ErrNotFound):
				http.Error(w, "unknown user", http.StatusUnauthorized)
				return
			case err != nil:
				http.Error(w, "user lookup failed", http.StatusInternalServerError)
				return
			}
			ctx = rbac.WithRole(ctx, u.Role)
			ctx = WithName(ctx, u.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
