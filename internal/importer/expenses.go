package importer

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

var expenseColumns = []string{
	"tenant_id", "expense_code", "category", "description",
	"amount", "tax_amount", "payment_method", "expense_date",
}

// ImportExpenses ingests expense/voucher exports. Expenses reference nothing,
// so the pipeline is normalize, coerce, upsert.
func (im *Importer) ImportExpenses(ctx context.Context, tenantID uuid.UUID, rows []RawRow) (Result, error) {
	if _, err := im.authorize(ctx, KindExpenses, tenantID); err != nil {
		return Result{}, err
	}

	schema, err := im.schemaFor(ctx, "expenses", expenseColumns, []string{"tenant_id", "expense_code"})
	if err != nil {
		return Result{}, err
	}

	rep := newReporter(len(rows))
	records := make([]map[string]any, 0, len(rows))
	for i, raw := range rows {
		values := NormalizeValues(KindExpenses, raw)

		code := FirstMeaningful(values["expense_code"])
		if code == "" {
			code = generatedKey("EXP", values["category"], values["expense_date"], values["amount"], strconv.Itoa(i))
		}
		expenseDate, _ := ParseDateTime(values["expense_date"], "")

		records = append(records, schema.record(
			map[string]any{
				"tenant_id":    tenantID,
				"expense_code": code,
				"expense_date": expenseDate,
			},
			map[string]string{
				"category":       nonEmpty(values["category"], "uncategorized"),
				"description":    values["description"],
				"amount":         values["amount"],
				"tax_amount":     values["tax_amount"],
				"payment_method": values["payment_method"],
			},
		))
	}

	rep.upsert(im.exec.Upsert(ctx, "expenses", records,
		[]string{"tenant_id", "expense_code"}, []string{"expense_code"}))

	res := rep.result()
	im.finish(ctx, KindExpenses, tenantID, res)
	return res, nil
}
