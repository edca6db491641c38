package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type catalogEntry struct {
	columns   []string
	types     map[string]string
	fetchedAt time.Time
}

// Catalog caches the backing store's column metadata per table so a live
// schema change is picked up within one TTL window without a metadata query
// per row. Unknown tables yield empty results, never errors; callers treat an
// absent column as "do not write this field".
type Catalog struct {
	db  Querier
	ttl time.Duration
	log *slog.Logger

	mu     sync.RWMutex
	tables map[string]catalogEntry
}

func NewCatalog(db Querier, ttl time.Duration, log *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{db: db, ttl: ttl, log: log, tables: make(map[string]catalogEntry)}
}

// Columns returns the table's column names as a membership set.
func (c *Catalog) Columns(ctx context.Context, table string) map[string]struct{} {
	entry := c.entry(ctx, table)
	set := make(map[string]struct{}, len(entry.columns))
	for _, col := range entry.columns {
		set[col] = struct{}{}
	}
	return set
}

// ColumnTypes returns column name to declared data type.
func (c *Catalog) ColumnTypes(ctx context.Context, table string) map[string]string {
	entry := c.entry(ctx, table)
	types := make(map[string]string, len(entry.types))
	for col, typ := range entry.types {
		types[col] = typ
	}
	return types
}

func (c *Catalog) entry(ctx context.Context, table string) catalogEntry {
	c.mu.RLock()
	entry, ok := c.tables[table]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry
	}

	fresh, err := c.fetch(ctx, table)
	if err != nil {
		c.log.Warn("schema_catalog_fetch_failed", "table", table, "error", err)
		if ok {
			// Serve the stale entry rather than nothing while the store is unhappy.
			return entry
		}
		return catalogEntry{fetchedAt: time.Now()}
	}

	c.mu.Lock()
	c.tables[table] = fresh
	c.mu.Unlock()
	return fresh
}

func (c *Catalog) fetch(ctx context.Context, table string) (catalogEntry, error) {
	rows, err := c.db.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return catalogEntry{}, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	entry := catalogEntry{types: make(map[string]string), fetchedAt: time.Now()}
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return catalogEntry{}, fmt.Errorf("scan column metadata: %w", err)
		}
		entry.columns = append(entry.columns, name)
		entry.types[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return catalogEntry{}, fmt.Errorf("iterate column metadata: %w", err)
	}
	return entry, nil
}
