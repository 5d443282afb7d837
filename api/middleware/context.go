package middleware

import "context"

type principalKey struct{}

// Principal is the authenticated seller behind a request.
type Principal struct {
	UserID         string
	OrganisationID string
}

// WithPrincipal stores p on ctx, replacing any earlier principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the zero Principal for anonymous requests.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

func UserIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).UserID
}

func OrganisationIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).OrganisationID
}

func WithUserID(ctx context.Context, userID string) context.Context {
	p := PrincipalFromContext(ctx)
	p.UserID = userID
	return WithPrincipal(ctx, p)
}

func WithOrganisationID(ctx context.Context, organisationID string) context.Context {
	p := PrincipalFromContext(ctx)
	p.OrganisationID = organisationID
	return WithPrincipal(ctx, p)
}
