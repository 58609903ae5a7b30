package middleware

import (
	"context"
	"net/http"

	"vox-be/internal/auth"
	"vox-be/internal/logger"
	"vox-be/internal/utils"

	"go.uber.org/zap"
)

// Authenticator attaches the phone-verified session identity to the request
// context. Checkout may proceed without a session, so Optional never rejects.
type Authenticator struct {
	secret string
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, ok := a.authenticate(r); ok {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := a.authenticate(r)
		if !ok {
			utils.WriteJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "Unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (context.Context, bool) {
	tokenStr := auth.ExtractAccessToken(r)
	if tokenStr == "" {
		return nil, false
	}

	claims, err := auth.ParseToken(a.secret, tokenStr)
	if err != nil {
		logger.FromCtx(r.Context()).Debug("rejected access token", zap.Error(err))
		return nil, false
	}

	return utils.SetUserContext(r.Context(), claims.UserID, claims.Phone), true
}
