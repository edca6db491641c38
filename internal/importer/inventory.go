package importer

import (
	"context"

	"github.com/google/uuid"
)

var productColumns = []string{
	"tenant_id", "code", "name", "category", "unit",
	"quantity", "cost_price", "selling_price", "tax_rate", "reorder_level",
}

// ImportInventory ingests stock item exports. Products are the reference
// target of sales imports, so their natural key is chosen carefully: the
// source's own code when one survives the unit-token filter, otherwise a
// deterministic hash of the name so re-imports land on the same row.
func (im *Importer) ImportInventory(ctx context.Context, tenantID uuid.UUID, rows []RawRow) (Result, error) {
	if _, err := im.authorize(ctx, KindInventory, tenantID); err != nil {
		return Result{}, err
	}

	schema, err := im.schemaFor(ctx, "products", productColumns, []string{"tenant_id", "code"})
	if err != nil {
		return Result{}, err
	}

	rep := newReporter(len(rows))
	records := make([]map[string]any, 0, len(rows))
	for i, raw := range rows {
		values := NormalizeValues(KindInventory, raw)

		name := FirstMeaningful(values["name"], values["code"])
		if name == "" {
			name = FallbackName(KindInventory, i)
		}
		code := FirstMeaningful(values["code"])
		if code == "" {
			code = generatedKey("PRD", name)
		}

		records = append(records, schema.record(
			map[string]any{
				"tenant_id": tenantID,
				"code":      code,
				"name":      name,
			},
			map[string]string{
				"category":      values["category"],
				"unit":          values["unit"],
				"quantity":      values["quantity"],
				"cost_price":    values["cost_price"],
				"selling_price": values["selling_price"],
				"tax_rate":      values["tax_rate"],
				"reorder_level": values["reorder_level"],
			},
		))
	}

	rep.upsert(im.exec.Upsert(ctx, "products", records,
		[]string{"tenant_id", "code"}, []string{"code"}))

	res := rep.result()
	im.finish(ctx, KindInventory, tenantID, res)
	return res, nil
}
