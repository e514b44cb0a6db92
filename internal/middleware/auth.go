package middleware

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"smartbuy-api/pkg/apierror"
	"smartbuy-api/pkg/response"
)

// Header names read by the guards below.
const (
	CronSecretHeader  = "X-Cron-Secret"
	HouseholdIDHeader = "X-Household-ID"
)

// HouseholdIDKey is the context key for the caller's household.
const HouseholdIDKey contextKey = "household_id"

// NewJobSecret guards job trigger and internal routes with a shared secret.
// An unset secret rejects every request with CONFIGURATION_ERROR before the
// wrapped handler runs.
func NewJobSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				log.Printf("[Auth] Rejected %s %s: CRON_SECRET is not set", r.Method, r.URL.Path)
				response.Error(w, apierror.ConfigurationError("CRON_SECRET is not configured"))
				return
			}

			got := r.Header.Get(CronSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.Error(w, apierror.Unauthorized("Invalid or missing "+CronSecretHeader))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Household requires the household id set by the upstream auth gateway and
// stores it in the request context.
func Household(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HouseholdIDHeader))
		if id == "" {
			response.Error(w, apierror.Unauthorized(HouseholdIDHeader+" header is required"))
			return
		}

		ctx := context.WithValue(r.Context(), HouseholdIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetHouseholdID retrieves the household id from context.
func GetHouseholdID(ctx context.Context) string {
	if id, ok := ctx.Value(HouseholdIDKey).(string); ok {
		return id
	}
	return ""
}
