package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sitemap-backend/pkg/auth"
	"sitemap-backend/pkg/common"
	pkgerrors "sitemap-backend/pkg/errors"
)

// Authenticate validates the bearer token and puts the user on the context
func Authenticate(validator *auth.JWTValidator, errHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("missing authorization header"))
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("invalid authorization header format"))
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(err.Error()))
				return
			}

			ctx := common.WithUserID(r.Context(), claims.UserID)
			ctx = common.WithUserRoles(ctx, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit rejects requests once the caller's key is over the limit. The
// key is the authenticated user when there is one, otherwise the client IP.
// Limiter errors fail open.
func RateLimit(limiter auth.RateLimiter, limit int, window string, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	byIP := auth.NewIPRateLimiter(limiter)
	byUser := auth.NewUserRateLimiter(limiter)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyed, key := byIP, clientIP(r)
			if userID, ok := common.GetUserID(r.Context()); ok {
				keyed, key = byUser, userID
			}

			allowed, err := keyed.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable", zap.String("key", key), zap.Error(err))
				allowed = true
			}
			if !allowed {
				errHandler.Handle(w, r, pkgerrors.NewRateLimitError(limit, window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads the address chi's RealIP middleware leaves in RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
