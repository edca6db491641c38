package importer

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	bareDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numberNoise     = strings.NewReplacer(
		",", "", " ", "", "\u00a0", "",
		"₹", "", "$", "", "€", "", "£", "", "¥", "",
	)
)

// Coerce converts a raw cell into the value a column of the given declared
// database type expects. It never panics and never returns an error: empty or
// unconvertible input degrades to nil and the row proceeds with that field
// unset. Unrecognized declared types pass the value through unchanged.
func Coerce(value any, dbType string) any {
	text := valueString(value)
	if text == "" {
		return nil
	}

	switch classifyType(dbType) {
	case kindIdentifier:
		if id, err := uuid.Parse(text); err == nil {
			return id
		}
		return nil

	case kindInteger:
		d, ok := parseDecimalText(text)
		if !ok {
			return nil
		}
		return d.Round(0).IntPart()

	case kindDecimal:
		d, ok := parseDecimalText(text)
		if !ok {
			return nil
		}
		return d

	case kindBoolean:
		switch strings.ToLower(text) {
		case "true", "1", "yes", "y":
			return true
		case "false", "0", "no", "n":
			return false
		}
		return nil

	case kindDate:
		if t, ok := coerceTemporal(text); ok {
			return t
		}
		return nil

	case kindTimestamp:
		if bareDatePattern.MatchString(text) {
			// Anchor date-only input at UTC midnight so a local-timezone
			// interpretation cannot shift it across a day boundary.
			if t, err := time.Parse("2006-01-02", text); err == nil {
				return t
			}
			return nil
		}
		if t, ok := coerceTemporal(text); ok {
			return t
		}
		return nil

	default:
		return value
	}
}

// ParseDecimal exposes the currency-tolerant number parsing used by numeric
// coercion: thousands separators and currency symbols are stripped, and a
// parenthesized amount is negative per accounting convention.
func ParseDecimal(text string) (decimal.Decimal, bool) {
	return parseDecimalText(strings.TrimSpace(text))
}

func parseDecimalText(text string) (decimal.Decimal, bool) {
	cleaned := numberNoise.Replace(text)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func coerceTemporal(text string) (time.Time, bool) {
	if bareDatePattern.MatchString(text) {
		t, err := time.Parse("2006-01-02", text)
		return t, err == nil
	}
	return ParseDate(text)
}

type typeKind int

const (
	kindOther typeKind = iota
	kindIdentifier
	kindInteger
	kindDecimal
	kindBoolean
	kindDate
	kindTimestamp
)

func classifyType(dbType string) typeKind {
	switch t := strings.ToLower(strings.TrimSpace(dbType)); {
	case t == "uuid":
		return kindIdentifier
	case t == "integer" || t == "bigint" || t == "smallint":
		return kindInteger
	case t == "numeric" || t == "decimal" || t == "real" || t == "double precision" || t == "money":
		return kindDecimal
	case t == "boolean":
		return kindBoolean
	case t == "date":
		return kindDate
	case strings.HasPrefix(t, "timestamp"):
		return kindTimestamp
	default:
		return kindOther
	}
}
