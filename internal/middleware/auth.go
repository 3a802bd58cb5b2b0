package middleware

import (
	"net/http"
	"strings"

	"github.com/waveform-labs/trackduel/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Auth is a middleware that requires a valid Bearer access token on every
// request. On success the artist id from the token's subject is stored in
// the request context; failures get a 401 with the standard error envelope.
func Auth(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, r, "Authorization header is required")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "Authorization header must be a Bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r, "Invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "Access token required")
				return
			}

			ctx := SetArtistID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), "auth_failed"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"auth_failed","message":"` + message + `"}}`))
}
