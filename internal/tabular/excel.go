package tabular

import (
	"bytes"
	"context"
	"fmt"

	"contact-ingestion-db/internal/model"
	apperrors "contact-ingestion-db/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// ExcelParser reads contact rows from the first worksheet of an XLSX file.
type ExcelParser struct{}

func NewExcelParser() *ExcelParser {
	return &ExcelParser{}
}

func (p *ExcelParser) Parse(ctx context.Context, data []byte) ([]model.ContactRow, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.ErrInvalidFileFormat
	}

	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	if len(records) < 2 { // Header + at least one data row
		return nil, apperrors.ErrInvalidFileFormat
	}

	header := stripTrailingEmpty(records[0])
	for i, cell := range header {
		header[i] = canonicalHeader(cell)
	}
	if countNonEmpty(header) < 2 {
		return nil, apperrors.ErrInvalidFileFormat
	}

	var rows []model.ContactRow
	for _, record := range records[1:] {
		record = stripTrailingEmpty(record)
		if len(record) == 0 {
			continue
		}
		rows = append(rows, rowFromRecord(len(rows)+1, header, record))
	}

	if len(rows) == 0 {
		return nil, apperrors.ErrEmptyFile
	}
	return rows, nil
}
