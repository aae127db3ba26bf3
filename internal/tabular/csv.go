package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"unicode/utf8"

	"contact-ingestion-db/internal/model"
	apperrors "contact-ingestion-db/pkg/errors"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser detects the file's dialect (text encoding + field delimiter)
// by trying fixed, ordered candidate lists and accepting the first pair
// that produces a header with more than one non-empty column name and at
// least one data row of matching width.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

var errDialectMismatch = errors.New("dialect mismatch")

var delimiters = []rune{',', ';', '\t', '|'}

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// decoders are tried in order. Windows-1252 never fails to decode, so it
// goes last as the fallback.
var decoders = []struct {
	name   string
	decode func(data []byte) ([]byte, bool)
}{
	{"utf-8", decodeUTF8},
	{"utf-16", decodeUTF16},
	{"windows-1252", decodeWindows1252},
}

func (p *CSVParser) Parse(ctx context.Context, data []byte) ([]model.ContactRow, error) {
	for _, dec := range decoders {
		text, ok := dec.decode(data)
		if !ok {
			continue
		}
		for _, delimiter := range delimiters {
			rows, err := parseWithDelimiter(text, delimiter)
			if err == nil {
				return rows, nil
			}
		}
	}

	return nil, apperrors.ErrUnreadableFile
}

func decodeUTF8(data []byte) ([]byte, bool) {
	data = bytes.TrimPrefix(data, bomUTF8)
	if !utf8.Valid(data) {
		return nil, false
	}
	return data, true
}

func decodeUTF16(data []byte) ([]byte, bool) {
	// ExpectBOM makes the decoder reject input without a byte order mark,
	// so plain ASCII/UTF-8 files never match this branch.
	dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	decoded, _, err := transform.Bytes(dec, data)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func decodeWindows1252(data []byte) ([]byte, bool) {
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func parseWithDelimiter(text []byte, delimiter rune) ([]model.ContactRow, error) {
	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return nil, errDialectMismatch
	}

	header := stripTrailingEmpty(records[0])
	for i, cell := range header {
		header[i] = canonicalHeader(cell)
	}
	if countNonEmpty(header) < 2 {
		return nil, errDialectMismatch
	}

	var rows []model.ContactRow
	matched := false
	for _, record := range records[1:] {
		record = stripTrailingEmpty(record)
		if len(record) == 0 {
			continue
		}
		if len(record) == len(header) {
			matched = true
		}
		rows = append(rows, rowFromRecord(len(rows)+1, header, record))
	}

	if !matched || len(rows) == 0 {
		return nil, errDialectMismatch
	}
	return rows, nil
}

// stripTrailingEmpty drops fields produced by trailing delimiters.
func stripTrailingEmpty(record []string) []string {
	end := len(record)
	for end > 0 && record[end-1] == "" {
		end--
	}
	return record[:end]
}

func countNonEmpty(fields []string) int {
	count := 0
	for _, field := range fields {
		if field != "" {
			count++
		}
	}
	return count
}
