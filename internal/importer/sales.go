package importer

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/ledgerline/api/internal/notify"
)

var salesColumns = []string{
	"tenant_id", "receipt_number", "product_id", "customer_name",
	"quantity", "unit_price", "total", "tax_amount", "payment_method",
	"sale_date", "sold_at",
}

type saleRow struct {
	index      int
	values     map[string]string
	ref        string
	product    uuid.UUID
	claimed    *Placeholder
	unresolved bool
}

// ImportSales ingests point-of-sale transaction exports. Every row references
// a product by identifier, code, or free-text name; unresolved references
// follow the configured strategy, optionally minting placeholder products
// that are persisted in bulk before the sales themselves are written. After
// the write, the daily aggregate for every distinct sale date in the batch is
// recomputed.
func (im *Importer) ImportSales(ctx context.Context, tenantID uuid.UUID, rows []RawRow) (Result, error) {
	if _, err := im.authorize(ctx, KindSales, tenantID); err != nil {
		return Result{}, err
	}

	schema, err := im.schemaFor(ctx, "sales", salesColumns, []string{"tenant_id", "receipt_number"})
	if err != nil {
		return Result{}, err
	}

	refs, err := im.refs.ProductRefs(ctx, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("load product index: %w", err)
	}
	index := NewIndex(refs)

	rep := newReporter(len(rows))
	placeholders := NewPlaceholderSet()
	pending := make([]saleRow, 0, len(rows))
	var failures []RefFailure

	for i, raw := range rows {
		values := NormalizeValues(KindSales, raw)
		row := saleRow{index: i, values: values, ref: FirstMeaningful(values["product"])}

		switch {
		case row.ref == "":
			row.unresolved = true
			failures = append(failures, RefFailure{
				RowNumber: i + 1, RefLabel: "product", Reason: "reference is missing",
			})
		default:
			if id, ok := index.Resolve(row.ref); ok {
				row.product = id
			} else if im.opts.AutoCreatePlaceholders {
				row.claimed = placeholders.Claim(row.ref)
			} else {
				row.unresolved = true
				failures = append(failures, RefFailure{
					RowNumber: i + 1, RefValue: row.ref, RefLabel: "product", Reason: "does not exist",
				})
			}
		}
		pending = append(pending, row)
	}

	skipped, err := applyMissingRefStrategy(KindSales, im.opts.MissingRefStrategy, failures)
	if err != nil {
		return Result{}, err
	}
	if len(skipped) > 0 {
		im.exportFailures(ctx, tenantID, KindSales, skipped, rep)
		kept := pending[:0]
		for _, row := range pending {
			if row.unresolved {
				continue
			}
			kept = append(kept, row)
		}
		pending = kept
	}

	if placeholders.Len() > 0 {
		if err := im.persistPlaceholders(ctx, tenantID, placeholders, index); err != nil {
			return Result{}, err
		}
	}

	records := make([]map[string]any, 0, len(pending))
	dates := make(map[string]struct{})
	ambiguous := 0
	for _, row := range pending {
		if row.claimed != nil {
			id, ok := index.Resolve(row.claimed.Code)
			if !ok {
				rep.rowError(row.index+1, fmt.Sprintf("placeholder product %q was not persisted", row.claimed.Code))
				continue
			}
			row.product = id
		}

		values := row.values
		receipt := FirstMeaningful(values["receipt_number"])
		if receipt == "" {
			receipt = generatedKey("SAL", row.ref, values["sale_date"], values["total"], strconv.Itoa(row.index))
		}
		if AmbiguousDayFirst(values["sale_date"]) {
			ambiguous++
		}
		saleDate, soldAt := ParseDateTime(values["sale_date"], values["sale_time"])
		dates[saleDate.Format("2006-01-02")] = struct{}{}

		var product any
		if row.product != uuid.Nil {
			product = row.product
		}

		records = append(records, schema.record(
			map[string]any{
				"tenant_id":      tenantID,
				"receipt_number": receipt,
				"product_id":     product,
				"sale_date":      saleDate,
				"sold_at":        soldAt,
			},
			map[string]string{
				"customer_name":  values["customer"],
				"quantity":       values["quantity"],
				"unit_price":     values["unit_price"],
				"total":          values["total"],
				"tax_amount":     values["tax_amount"],
				"payment_method": values["payment_method"],
			},
		))
	}
	if ambiguous > 0 {
		rep.warning(fmt.Sprintf("%d rows carry ambiguous day-first dates; day/month/year order was assumed", ambiguous))
	}

	rep.upsert(im.exec.Upsert(ctx, "sales", records,
		[]string{"tenant_id", "receipt_number"}, []string{"receipt_number"}))

	steps := make([]notify.Step, 0, len(dates))
	for _, date := range sortedKeys(dates) {
		steps = append(steps, notify.Step{
			Name: "resync:" + date,
			Run: func(ctx context.Context) error {
				return im.aggregates.ResyncDaily(ctx, date, tenantID)
			},
		})
	}

	res := rep.result()
	im.finish(ctx, KindSales, tenantID, res, steps...)
	return res, nil
}

// persistPlaceholders writes the deduplicated stand-in products in one bulk
// upsert, then reloads them by code so pending references can be rewritten to
// the identifiers the store actually assigned.
func (im *Importer) persistPlaceholders(ctx context.Context, tenantID uuid.UUID, set *PlaceholderSet, index *Index) error {
	schema, err := im.schemaFor(ctx, "products",
		[]string{"tenant_id", "code", "name"}, []string{"tenant_id", "code"})
	if err != nil {
		return err
	}

	records := make([]map[string]any, 0, set.Len())
	codes := make([]string, 0, set.Len())
	for _, p := range set.All() {
		records = append(records, schema.record(map[string]any{
			"tenant_id": tenantID,
			"code":      p.Code,
			"name":      p.Name,
		}, nil))
		codes = append(codes, p.Code)
	}

	report := im.exec.Upsert(ctx, "products", records,
		[]string{"tenant_id", "code"}, []string{"code"})
	if report.Failed > 0 {
		im.log.Warn("placeholder_persist_partial", "tenant_id", tenantID, "failed", report.Failed)
	}

	created, err := im.refs.ProductRefsByCodes(ctx, tenantID, codes)
	if err != nil {
		return fmt.Errorf("reload placeholder products: %w", err)
	}
	for _, ref := range created {
		index.Add(ref)
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
