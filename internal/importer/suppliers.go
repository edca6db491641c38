package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ledgerline/api/internal/secure"
)

var supplierColumns = []string{
	"tenant_id", "supplier_code", "name", "email", "phone", "address", "gst_number",
}

var supplierPIIColumns = []string{"name", "phone", "address"}

// ImportSuppliers mirrors the customer pipeline for vendor exports, with the
// same encrypt-or-warn handling of contact fields.
func (im *Importer) ImportSuppliers(ctx context.Context, tenantID uuid.UUID, rows []RawRow) (Result, error) {
	if _, err := im.authorize(ctx, KindSuppliers, tenantID); err != nil {
		return Result{}, err
	}

	schema, err := im.schemaFor(ctx, "suppliers", supplierColumns, []string{"tenant_id", "supplier_code"})
	if err != nil {
		return Result{}, err
	}

	key, err := im.keys.TenantKey(ctx, tenantID)
	encrypt := err == nil
	if err != nil && !errors.Is(err, secure.ErrNoTenantKey) {
		return Result{}, fmt.Errorf("tenant encryption key: %w", err)
	}

	rep := newReporter(len(rows))
	if !encrypt {
		im.log.Warn("tenant_key_missing", "tenant_id", tenantID, "entity", KindSuppliers)
		rep.warning("no tenant encryption key provisioned; contact fields stored unencrypted")
	}

	records := make([]map[string]any, 0, len(rows))
	for i, raw := range rows {
		values := NormalizeValues(KindSuppliers, raw)

		name := FirstMeaningful(values["name"])
		if name == "" {
			name = FallbackName(KindSuppliers, i)
		}
		code := FirstMeaningful(values["supplier_code"])
		if code == "" {
			code = generatedKey("SUP", name, values["gst_number"])
		}

		records = append(records, schema.record(
			map[string]any{
				"tenant_id":     tenantID,
				"supplier_code": code,
				"name":          name,
			},
			map[string]string{
				"email":      values["email"],
				"phone":      values["phone"],
				"address":    values["address"],
				"gst_number": values["gst_number"],
			},
		))
	}

	if encrypt {
		errs := im.encryptRecords("suppliers", records, supplierPIIColumns, key)
		records = dropFailedEncryption(records, errs, rep)
	}

	rep.upsert(im.exec.Upsert(ctx, "suppliers", records,
		[]string{"tenant_id", "supplier_code"}, []string{"supplier_code"}))

	res := rep.result()
	im.finish(ctx, KindSuppliers, tenantID, res)
	return res, nil
}
