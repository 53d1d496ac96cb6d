package middleware

import "context"

type contextKey string

const (
	ctxAdminID  contextKey = "admin_id"
	ctxUsername contextKey = "username"
	ctxRole     contextKey = "admin_role"
)

func AdminIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxAdminID)
}

func UsernameFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxUsername)
}

func RoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRole)
}

// WithAdmin injects the authenticated admin into the context.
func WithAdmin(ctx context.Context, adminID, username, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAdminID, adminID)
	ctx = context.WithValue(ctx, ctxUsername, username)
	return context.WithValue(ctx, ctxRole, role)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
