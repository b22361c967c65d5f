package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	errors "github.com/awakery/payments-engine/internal"
)

// ServiceTokenAuth guards operator-facing routes (disbursement trigger,
// refunds) with an HS256 service token issued to internal schedulers
// and tooling. Webhook deliveries do not pass through here; they are
// authenticated by their gateway signature instead.
func ServiceTokenAuth(secret, issuer string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				writeAuthError(w, errors.ErrInvalidToken)
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("service token rejected", "error", err, "path", r.URL.Path)
				writeAuthError(w, errors.ErrInvalidToken)
				return
			}

			if issuer != "" && claims.Issuer != issuer {
				logger.Warn("service token issuer mismatch", "issuer", claims.Issuer, "path", r.URL.Path)
				writeAuthError(w, errors.ErrInvalidToken)
				return
			}

			// Subject carries the tenant the caller acts for.
			ctx := errors.ContextWithTenantID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

func writeAuthError(w http.ResponseWriter, appErr *errors.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
