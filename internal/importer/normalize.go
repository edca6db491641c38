package importer

import (
	"fmt"
	"strings"
)

// EntityKind selects which import pipeline a batch flows through.
type EntityKind string

const (
	KindInventory EntityKind = "inventory"
	KindCustomers EntityKind = "customers"
	KindSuppliers EntityKind = "suppliers"
	KindSales     EntityKind = "sales"
	KindExpenses  EntityKind = "expenses"
)

func ParseEntityKind(raw string) (EntityKind, error) {
	switch EntityKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindInventory:
		return KindInventory, nil
	case KindCustomers:
		return KindCustomers, nil
	case KindSuppliers:
		return KindSuppliers, nil
	case KindSales:
		return KindSales, nil
	case KindExpenses:
		return KindExpenses, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", raw)
	}
}

// Header synonyms per logical field, in priority order. Lookup is over
// normalized header keys (lowercased, separators stripped), so "Item Name",
// "item_name" and "ItemName" all land on the same entry.
var fieldSynonyms = map[EntityKind]map[string][]string{
	KindInventory: {
		"name":          {"name", "product name", "item name", "stock item name", "item", "product", "description"},
		"code":          {"code", "sku", "item code", "product code", "barcode", "stock code"},
		"category":      {"category", "group", "item group", "product type"},
		"unit":          {"unit", "uom", "unit of measure", "units"},
		"quantity":      {"quantity", "qty", "stock", "stock qty", "closing stock", "on hand", "current stock"},
		"cost_price":    {"cost price", "purchase price", "cost", "buy price", "purchase rate", "unit cost"},
		"selling_price": {"selling price", "sale price", "price", "rate", "mrp", "sell price", "unit price"},
		"tax_rate":      {"tax rate", "gst rate", "tax", "gst", "vat", "tax percent"},
		"reorder_level": {"reorder level", "min stock", "reorder point", "minimum stock"},
	},
	KindCustomers: {
		"customer_code":   {"customer code", "code", "customer id", "cust id", "account number"},
		"name":            {"name", "customer name", "customer", "full name", "party name", "contact name"},
		"email":           {"email", "email address", "mail"},
		"phone":           {"phone", "mobile", "phone number", "mobile number", "contact", "contact number"},
		"address":         {"address", "billing address", "street address", "location"},
		"opening_balance": {"opening balance", "balance", "outstanding", "due amount"},
	},
	KindSuppliers: {
		"supplier_code": {"supplier code", "code", "supplier id", "vendor id", "account number"},
		"name":          {"name", "supplier name", "vendor name", "supplier", "vendor", "company name", "party name"},
		"email":         {"email", "email address", "mail"},
		"phone":         {"phone", "mobile", "phone number", "mobile number", "contact", "contact number"},
		"address":       {"address", "billing address", "street address", "location"},
		"gst_number":    {"gst number", "gstin", "tax id", "vat number"},
	},
	KindSales: {
		"receipt_number": {"receipt number", "receipt no", "invoice number", "invoice no", "bill number", "bill no", "voucher no", "transaction id"},
		"product":        {"product", "product name", "item", "item name", "stock item name", "product code", "sku", "particulars"},
		"quantity":       {"quantity", "qty", "sold qty", "units sold"},
		"unit_price":     {"unit price", "price", "rate", "selling price", "price per unit"},
		"total":          {"total", "amount", "total amount", "gross total", "net amount", "invoice value"},
		"tax_amount":     {"tax amount", "tax", "gst amount", "vat amount"},
		"payment_method": {"payment method", "payment mode", "mode of payment", "paid by", "payment type", "tender"},
		"sale_date":      {"sale date", "date", "invoice date", "bill date", "transaction date", "voucher date"},
		"sale_time":      {"sale time", "time", "invoice time", "transaction time"},
		"customer":       {"customer", "customer name", "party name", "buyer"},
	},
	KindExpenses: {
		"expense_code":   {"expense code", "code", "voucher no", "reference", "reference no", "transaction id"},
		"category":       {"category", "expense category", "head", "expense head", "account", "type"},
		"description":    {"description", "narration", "details", "particulars", "note", "remarks"},
		"amount":         {"amount", "total", "expense amount", "value", "debit"},
		"tax_amount":     {"tax amount", "tax", "gst amount", "vat amount"},
		"payment_method": {"payment method", "payment mode", "mode of payment", "paid by", "payment type"},
		"expense_date":   {"expense date", "date", "voucher date", "transaction date", "paid on"},
	},
}

// unitTokens are unit-of-measure strings that frequently leak into name-ish
// columns of point-of-sale exports. They are never acceptable as an entity
// name or code.
var unitTokens = map[string]struct{}{
	"pcs": {}, "pc": {}, "nos": {}, "no": {}, "kg": {}, "kgs": {}, "gm": {},
	"g": {}, "mg": {}, "ltr": {}, "lt": {}, "l": {}, "ml": {}, "box": {},
	"boxes": {}, "pkt": {}, "pack": {}, "bag": {}, "set": {}, "pair": {},
	"dozen": {}, "dz": {}, "unit": {}, "units": {}, "mtr": {}, "m": {},
	"cm": {}, "ft": {}, "roll": {}, "btl": {}, "can": {}, "tin": {},
}

// IsUnitToken reports whether the value is a bare unit-of-measure string.
func IsUnitToken(value string) bool {
	_, ok := unitTokens[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// FirstMeaningful returns the first candidate that is non-empty and not a
// unit token, or "" when none qualifies.
func FirstMeaningful(candidates ...string) string {
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" || IsUnitToken(trimmed) {
			continue
		}
		return trimmed
	}
	return ""
}

// FallbackName builds a deterministic stand-in name from the row position
// when no candidate survives FirstMeaningful.
func FallbackName(kind EntityKind, rowIndex int) string {
	return fmt.Sprintf("Imported %s %d", strings.TrimSuffix(string(kind), "s"), rowIndex+1)
}

// NormalizeValues maps one raw row onto the entity's logical fields, picking
// the first synonym present with a non-empty value.
func NormalizeValues(kind EntityKind, row RawRow) map[string]string {
	synonyms := fieldSynonyms[kind]
	flat := make(map[string]string, len(row))
	for key, value := range row {
		normalized := normalizeHeaderKey(key)
		if normalized == "" {
			continue
		}
		if _, exists := flat[normalized]; !exists || flat[normalized] == "" {
			flat[normalized] = valueString(value)
		}
	}

	values := make(map[string]string, len(synonyms))
	for field, headers := range synonyms {
		for _, header := range headers {
			if v := flat[normalizeHeaderKey(header)]; v != "" {
				values[field] = v
				break
			}
		}
	}
	return values
}

var headerKeyReplacer = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "/", "", "#", "")

func normalizeHeaderKey(raw string) string {
	return strings.ToLower(headerKeyReplacer.Replace(strings.TrimSpace(raw)))
}
