package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRow is one untyped input record: arbitrary source column names mapped to
// whatever the exporter put in the cell. It never travels past the field
// normalizer.
type RawRow map[string]any

// valueString flattens a cell to its trimmed textual form. Spreadsheet
// exporters deliver numbers and booleans as typed JSON values; everything
// downstream coerces from text.
func valueString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case bool:
		return strconv.FormatBool(value)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	}
}

// ReadCSVRows decodes a headered CSV stream into raw rows. Ragged records are
// tolerated; cells beyond the header width are dropped.
func ReadCSVRows(r io.Reader, maxRows int) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := normalizeHeaderRow(header)

	rows := make([]RawRow, 0, 1024)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, recordToRaw(headers, record))
		if maxRows > 0 && len(rows) > maxRows {
			return nil, fmt.Errorf("row limit of %d exceeded", maxRows)
		}
	}
	return rows, nil
}

// ReadXLSXRows decodes the first sheet of an XLSX workbook, first row as
// headers.
func ReadXLSXRows(r io.Reader, maxRows int) ([]RawRow, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file has no sheets")
	}
	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("xlsx sheet is empty")
	}

	headers := normalizeHeaderRow(records[0])
	rows := make([]RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, recordToRaw(headers, record))
		if maxRows > 0 && len(rows) > maxRows {
			return nil, fmt.Errorf("row limit of %d exceeded", maxRows)
		}
	}
	return rows, nil
}

func recordToRaw(headers []string, record []string) RawRow {
	row := make(RawRow, len(headers))
	for i, header := range headers {
		if header == "" {
			continue
		}
		if i < len(record) {
			row[header] = record[i]
		}
	}
	return row
}

func normalizeHeaderRow(header []string) []string {
	headers := make([]string, len(header))
	for i, col := range header {
		headers[i] = strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
	}
	return headers
}
