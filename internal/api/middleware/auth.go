package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/perkwise/perkdocs/internal/api"
	"github.com/perkwise/perkdocs/internal/domain"
)

type contextKey string

const CompanyIDKey contextKey = "company_id"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKeyValidator resolves API keys to company IDs from a fixed map,
// typically loaded from configuration at startup.
type StaticKeyValidator struct {
	keys map[string]string
}

func NewStaticKeyValidator(keys map[string]string) *StaticKeyValidator {
	return &StaticKeyValidator{keys: keys}
}

func (v *StaticKeyValidator) ValidateAPIKey(_ context.Context, token string) (string, error) {
	companyID, ok := v.keys[token]
	if !ok || companyID == "" {
		return "", domain.ErrInvalidAPIKey
	}
	return companyID, nil
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			companyID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set("X-Company-ID", companyID)
			ctx := context.WithValue(r.Context(), CompanyIDKey, companyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetCompanyID(ctx context.Context) string {
	companyID, _ := ctx.Value(CompanyIDKey).(string)
	return companyID
}
