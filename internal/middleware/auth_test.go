package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/ledgerline/api/internal/auth"
	"github.com/ledgerline/api/internal/store"
)

type fakePrincipals struct {
	byHash map[string]store.APIKeyPrincipal
}

func (f fakePrincipals) APIKeyPrincipalByTokenHash(_ context.Context, hash string) (store.APIKeyPrincipal, error) {
	p, ok := f.byHash[hash]
	if !ok {
		return store.APIKeyPrincipal{}, store.ErrNotFound
	}
	return p, nil
}

func TestRequireAuthResolvesActor(t *testing.T) {
	token := "test-token"
	principal := store.APIKeyPrincipal{
		KeyID:      uuid.New(),
		TenantID:   uuid.New(),
		TenantSlug: "acme",
		Role:       "editor",
	}
	mw := AuthMiddleware{Principals: fakePrincipals{
		byHash: map[string]store.APIKeyPrincipal{auth.HashToken(token): principal},
	}}

	var got Actor
	var ok bool
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/imports/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !ok || got.TenantID != principal.TenantID || got.Role != "editor" {
		t.Fatalf("actor = %+v ok=%v", got, ok)
	}
}

func TestRequireAuthRejectsBadCredentials(t *testing.T) {
	mw := AuthMiddleware{Principals: fakePrincipals{}}
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer unknown-token", "Basic abc"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/imports/sales", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rr.Code)
		}
	}
}
