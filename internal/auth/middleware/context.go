package auth

import (
	"context"

	"github.com/mind-engage/mindengage-placement/internal/rbac"
)

// Principal is the caller a bearer token resolved to. For students Subject
// is the student id the engine keys attempts by.
type Principal struct {
	Subject string
	Role    string
}

type principalKey struct{}

// WithPrincipal stores p and mirrors its role for the rbac middleware.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	return rbac.WithRole(ctx, p.Role)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func SubjectFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Subject
}
