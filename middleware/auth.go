package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gorilla/websocket"

	"repcirAPI/internal/logger"
)

type contextKey string

const ClerkIDKey contextKey = "clerkID"

var errMissingSubject = errors.New("token has no subject")

// TokenVerifier checks a session token and returns the Clerk user id it was issued to.
type TokenVerifier func(ctx context.Context, token string) (string, error)

// VerifyClerkToken verifies a Clerk session JWT against the instance JWKS.
func VerifyClerkToken(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}

// ClerkAuthMiddleware rejects requests without a valid bearer token and puts
// the Clerk user id on the context. Websocket upgrades may pass the token in
// the token query parameter, since browsers cannot set headers on them.
func ClerkAuthMiddleware(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			clerkID, err := verify(r.Context(), token)
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Token verification failed")
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClerkIDKey, clerkID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		return token, found && token != ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}
	return "", false
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok && clerkID != ""
}

// WithClerkID returns ctx carrying clerkID, as the auth middleware would.
func WithClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, ClerkIDKey, clerkID)
}

// CronAuthMiddleware accepts only "Bearer <secret>". An empty secret rejects everything.
func CronAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if secret == "" || !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("Rejected cron request")
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
