package secure

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

const tenantKeyEnvPrefix = "TENANT_DEK_"

// EnvKeyService resolves per-tenant data-encryption keys from environment
// variables of the form TENANT_DEK_<uuid-without-dashes>=<hex key>. Stands in
// for the platform key-management service in deployments that lack one.
type EnvKeyService struct {
	keys map[uuid.UUID][]byte
}

func NewEnvKeyService() (*EnvKeyService, error) {
	keys := make(map[uuid.UUID][]byte)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, tenantKeyEnvPrefix) {
			continue
		}
		tenantID, err := uuid.Parse(strings.ToLower(strings.TrimPrefix(name, tenantKeyEnvPrefix)))
		if err != nil {
			return nil, fmt.Errorf("parse tenant id in %s: %w", name, err)
		}
		key, err := hex.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("decode key in %s: %w", name, err)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key in %s must be %d bytes, got %d", name, chacha20poly1305.KeySize, len(key))
		}
		keys[tenantID] = key
	}
	return &EnvKeyService{keys: keys}, nil
}

func (s *EnvKeyService) TenantKey(_ context.Context, tenantID uuid.UUID) ([]byte, error) {
	key, ok := s.keys[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTenantKey, tenantID)
	}
	return key, nil
}
