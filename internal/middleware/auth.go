package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"dinehall-order-engine/internal/auth"
	"dinehall-order-engine/internal/authority"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	StaffID    int64
	LocationID string
	Tier       authority.Tier
	Name       string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth verifies the staff bearer token and places the resolved identity
// on the request context. Tier enforcement for specific operations (voids)
// happens in the engine, not here.
func StaffAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			staffID, err := claims.StaffIDInt()
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			authCtx := &AuthContext{
				StaffID:    staffID,
				LocationID: claims.LocationID,
				Tier:       claims.AuthorityTier(),
				Name:       claims.Name,
			}
			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTier gates a route on a minimum staff tier.
func RequireTier(minimum authority.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := GetAuthContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			if authCtx.Tier < minimum {
				writeAuthError(w, http.StatusForbidden, "Insufficient staff tier")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
