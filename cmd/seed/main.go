package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ledgerline/api/internal/auth"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	tenantSlug := envOrDefault("SEED_TENANT_SLUG", "local-dev")
	tenantName := envOrDefault("SEED_TENANT_NAME", "Local Dev Tenant")
	keyRole := envOrDefault("SEED_API_KEY_ROLE", "admin")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	var tenantID uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO tenants (slug, name)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, tenantSlug, tenantName).Scan(&tenantID); err != nil {
		log.Fatalf("upsert tenant: %v", err)
	}

	token, err := auth.GenerateToken()
	if err != nil {
		log.Fatalf("generate api key: %v", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO api_keys (tenant_id, name, token_hash, role)
		VALUES ($1, $2, $3, $4)
	`, tenantID, "seed key", auth.HashToken(token), keyRole); err != nil {
		log.Fatalf("insert api key: %v", err)
	}

	products := []struct {
		code, name, category, unit string
		sellingPrice               string
	}{
		{"SKU-001", "House Blend Coffee 500g", "beverages", "pkt", "450.00"},
		{"SKU-002", "Green Tea 100 Bags", "beverages", "box", "320.00"},
		{"SKU-003", "Cane Sugar 1kg", "grocery", "kg", "60.00"},
	}
	for _, p := range products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (tenant_id, code, name, category, unit, selling_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tenant_id, code) DO UPDATE SET name = EXCLUDED.name
		`, tenantID, p.code, p.name, p.category, p.unit, p.sellingPrice); err != nil {
			log.Fatalf("insert product %s: %v", p.code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("commit tx: %v", err)
	}

	// The token is only recoverable here; the database stores its hash.
	fmt.Printf("Seed completed. Tenant=%s, api key=%s (role %s)\n", tenantSlug, token, keyRole)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
