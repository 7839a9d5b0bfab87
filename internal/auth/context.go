package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyTenantID
)

var ErrNoIdentity = errors.New("auth: no identity in context")

// WithIdentity stores the verified identity on the request context.
func WithIdentity(ctx context.Context, userID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, userID)
	return context.WithValue(ctx, ctxKeyTenantID, tenantID)
}

func UserID(ctx context.Context) (string, error) {
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok && v != "" {
		return v, nil
	}
	return "", ErrNoIdentity
}

// TenantID returns the tenant the caller is scoped to. Every protected
// handler derives its tenant from here, never from request input.
func TenantID(ctx context.Context) (string, error) {
	if v, ok := ctx.Value(ctxKeyTenantID).(string); ok && v != "" {
		return v, nil
	}
	return "", ErrNoIdentity
}
