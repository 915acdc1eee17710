package httpserver

import "context"

type ctxKey string

const principalKey ctxKey = "kodeverk.principal"

// WithPrincipal stores the authenticated editor in context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromCtx fetches the editor from context.
func PrincipalFromCtx(ctx context.Context) (string, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return "", false
	}
	p, ok := v.(string)
	return p, ok && p != ""
}
