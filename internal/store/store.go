package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// EntityRef is the slice of a persisted entity the import resolver needs.
type EntityRef struct {
	ID   uuid.UUID
	Code string
	Name string
}

type APIKeyPrincipal struct {
	KeyID      uuid.UUID
	TenantID   uuid.UUID
	TenantSlug string
	TenantName string
	Role       string
}

func (s *Store) APIKeyPrincipalByTokenHash(ctx context.Context, tokenHash string) (APIKeyPrincipal, error) {
	const q = `
		SELECT k.id, k.tenant_id, t.slug, t.name, k.role
		FROM api_keys k
		JOIN tenants t ON t.id = k.tenant_id
		WHERE k.token_hash = $1 AND k.revoked_at IS NULL`

	var p APIKeyPrincipal
	err := s.Pool.QueryRow(ctx, q, tokenHash).Scan(&p.KeyID, &p.TenantID, &p.TenantSlug, &p.TenantName, &p.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKeyPrincipal{}, ErrNotFound
	}
	if err != nil {
		return APIKeyPrincipal{}, fmt.Errorf("load api key principal: %w", err)
	}
	return p, nil
}

func (s *Store) TenantSlug(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var slug string
	err := s.Pool.QueryRow(ctx, `SELECT slug FROM tenants WHERE id = $1`, tenantID).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load tenant slug: %w", err)
	}
	return slug, nil
}

func (s *Store) ProductRefs(ctx context.Context, tenantID uuid.UUID) ([]EntityRef, error) {
	return s.entityRefs(ctx, `SELECT id, code, name FROM products WHERE tenant_id = $1`, tenantID)
}

func (s *Store) SupplierRefs(ctx context.Context, tenantID uuid.UUID) ([]EntityRef, error) {
	return s.entityRefs(ctx, `SELECT id, supplier_code, name FROM suppliers WHERE tenant_id = $1`, tenantID)
}

// ProductRefsByCodes reloads just-persisted placeholder products so pending
// references can be rewritten to their final identifiers.
func (s *Store) ProductRefsByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]EntityRef, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, code, name FROM products WHERE tenant_id = $1 AND code = ANY($2)`,
		tenantID, codes)
	if err != nil {
		return nil, fmt.Errorf("load products by code: %w", err)
	}
	defer rows.Close()
	return scanRefs(rows)
}

func (s *Store) entityRefs(ctx context.Context, q string, tenantID uuid.UUID) ([]EntityRef, error) {
	rows, err := s.Pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load entity refs: %w", err)
	}
	defer rows.Close()
	return scanRefs(rows)
}

func scanRefs(rows pgx.Rows) ([]EntityRef, error) {
	refs := make([]EntityRef, 0, 256)
	for rows.Next() {
		var ref EntityRef
		var code, name *string
		if err := rows.Scan(&ref.ID, &code, &name); err != nil {
			return nil, fmt.Errorf("scan entity ref: %w", err)
		}
		if code != nil {
			ref.Code = *code
		}
		if name != nil {
			ref.Name = *name
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity refs: %w", err)
	}
	return refs, nil
}
