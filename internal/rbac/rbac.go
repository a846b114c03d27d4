package rbac

import (
	"context"
	"net/http"
	"strings"
)

// Policy maps a role to the permissions it holds. A permission ending in "*"
// grants every permission with that prefix.
type Policy map[string][]string

func (p Policy) Allows(role, perm string) bool {
	for _, granted := range p[role] {
		if granted == perm || granted == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(granted, "*"); ok && strings.HasPrefix(perm, prefix) {
			return true
		}
	}
	return false
}

var defaultPolicy = Policy(RolePermissions)

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// Can reports whether the role in ctx holds perm under the default policy.
func Can(ctx context.Context, perm string) bool {
	return defaultPolicy.Allows(RoleFromContext(ctx), perm)
}

// Require lets the request through when the caller's role holds any of perms.
func Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			for _, p := range perms {
				if role != "" && defaultPolicy.Allows(role, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
