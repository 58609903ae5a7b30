package utils

import "context"

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserPhoneKey contextKey = "phone"
)

// SetUserContext stores the verified session identity (called by middleware).
func SetUserContext(ctx context.Context, userID, phone string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserPhoneKey, phone)
	return ctx
}

// GetUserIDFromContext retrieves userID safely
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetUserPhoneFromContext(ctx context.Context) string {
	phone, _ := ctx.Value(UserPhoneKey).(string)
	return phone
}
