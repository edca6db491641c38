package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ledgerline/api/internal/secure"
)

var customerColumns = []string{
	"tenant_id", "customer_code", "name", "email", "phone", "address", "opening_balance",
}

var customerPIIColumns = []string{"name", "phone", "address"}

// ImportCustomers ingests customer/party exports. Contact fields are personal
// data: they are encrypted under the tenant's data-encryption key before the
// write path sees them. A tenant without a provisioned key imports in plain
// text with a recorded warning rather than losing the batch.
func (im *Importer) ImportCustomers(ctx context.Context, tenantID uuid.UUID, rows []RawRow) (Result, error) {
	if _, err := im.authorize(ctx, KindCustomers, tenantID); err != nil {
		return Result{}, err
	}

	schema, err := im.schemaFor(ctx, "customers", customerColumns, []string{"tenant_id", "customer_code"})
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
		im.log.Warn("tenant_key_missing", "tenant_id", tenantID, "entity", KindCustomers)
		rep.warning("no tenant encryption key provisioned; contact fields stored unencrypted")
	}

	records := make([]map[string]any, 0, len(rows))
	for i, raw := range rows {
		values := NormalizeValues(KindCustomers, raw)

		name := FirstMeaningful(values["name"])
		if name == "" {
			name = FallbackName(KindCustomers, i)
		}
		code := FirstMeaningful(values["customer_code"])
		if code == "" {
			code = generatedKey("CUS", name, values["email"])
		}
		// A missing phone gets a deterministic stand-in so the row still
		// imports and repeated runs agree on its value.
		phone := nonEmpty(values["phone"], generatedKey("PH", code))

		records = append(records, schema.record(
			map[string]any{
				"tenant_id":     tenantID,
				"customer_code": code,
				"name":          name,
				"phone":         phone,
			},
			map[string]string{
				"email":           values["email"],
				"address":         values["address"],
				"opening_balance": values["opening_balance"],
			},
		))
	}

	if encrypt {
		errs := im.encryptRecords("customers", records, customerPIIColumns, key)
		records = dropFailedEncryption(records, errs, rep)
	}

	rep.upsert(im.exec.Upsert(ctx, "customers", records,
		[]string{"tenant_id", "customer_code"}, []string{"customer_code"}))

	res := rep.result()
	im.finish(ctx, KindCustomers, tenantID, res)
	return res, nil
}
