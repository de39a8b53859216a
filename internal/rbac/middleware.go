package rbac

import "net/http"

var defaultChecker = NewChecker(nil)

// Require lets the request through when its role holds perm under the
// default policy.
func Require(perm string) func(http.Handler) http.Handler {
	return RequireWith(defaultChecker, perm)
}

// RequireAny needs at least one of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return RequireWith(defaultChecker, perms...)
}

// RequireWith checks against c and accepts any one of perms.
func RequireWith(c *Checker, perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Any(role, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
