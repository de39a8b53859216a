package auth

import (
	"context"
	"net/http"

	"github.com/mind-engage/mindengage-placement/internal/rbac"
)

// VerifiedChecker reports whether a student's identity is still verified.
type VerifiedChecker interface {
	IsVerified(ctx context.Context, studentID string) (bool, error)
}

// RequireVerifiedStudent re-checks the directory on every student request so
// that revoking verification takes effect before the token expires. Other
// roles pass through.
func RequireVerifiedStudent(dir VerifiedChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, _ := PrincipalFromContext(ctx)
			if p.Role != rbac.RoleStudent {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := dir.IsVerified(ctx, p.Subject)
			if err != nil {
				http.Error(w, "identity lookup failed", http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
