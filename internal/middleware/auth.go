package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ledgerline/api/internal/auth"
	"github.com/ledgerline/api/internal/store"
)

type PrincipalSource interface {
	APIKeyPrincipalByTokenHash(ctx context.Context, tokenHash string) (store.APIKeyPrincipal, error)
}

type AuthMiddleware struct {
	Principals PrincipalSource
}

func (m AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "Bearer API key required", nil)
			return
		}

		principal, err := m.Principals.APIKeyPrincipalByTokenHash(r.Context(), auth.HashToken(strings.TrimSpace(token)))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "API key is invalid or revoked", nil)
				return
			}
			writeError(w, r, http.StatusInternalServerError, "internal_error", "Failed to verify API key", nil)
			return
		}

		ctx := WithActor(r.Context(), Actor{
			KeyID:      principal.KeyID,
			TenantID:   principal.TenantID,
			TenantSlug: principal.TenantSlug,
			TenantName: principal.TenantName,
			Role:       principal.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
