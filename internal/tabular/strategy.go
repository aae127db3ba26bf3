package tabular

import (
	"context"
	"path/filepath"
	"strings"

	"contact-ingestion-db/internal/model"
)

// ParsingStrategy turns raw uploaded bytes into contact rows in file order.
type ParsingStrategy interface {
	Parse(ctx context.Context, data []byte) ([]model.ContactRow, error)
}

// Canonical column names accepted in uploaded files. Header matching is
// case-insensitive with spaces folded to underscores.
const (
	ColumnEmail     = "email"
	ColumnFirstName = "first_name"
	ColumnLastName  = "last_name"
	ColumnCompany   = "company"
)

// ForFilename picks a parsing strategy from the uploaded file's extension.
// Anything that is not a spreadsheet is treated as delimited text.
func ForFilename(name string) ParsingStrategy {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return NewExcelParser()
	default:
		return NewCSVParser()
	}
}

// canonicalHeader folds a raw header cell to its canonical column name.
func canonicalHeader(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(name, " ", "_")
}

func rowFromRecord(rowNumber int, header []string, record []string) model.ContactRow {
	get := func(column string) string {
		for i, h := range header {
			if h == column && i < len(record) {
				return strings.TrimSpace(record[i])
			}
		}
		return ""
	}

	return model.ContactRow{
		RowNumber: rowNumber,
		Email:     get(ColumnEmail),
		FirstName: get(ColumnFirstName),
		LastName:  get(ColumnLastName),
		Company:   get(ColumnCompany),
	}
}
