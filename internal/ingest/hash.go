package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"contact-ingestion-db/internal/model"
)

// RowHash fingerprints a row's identity within a job. The canonical form
// fixes field order and normalizes whitespace so the same logical row
// always hashes to the same digest across runs and processes.
func RowHash(jobID int64, rowNumber int, row model.ContactRow) string {
	canonical := fmt.Sprintf("%d|%d|%s|%s|%s|%s",
		jobID,
		rowNumber,
		NormalizeEmail(row.Email),
		strings.TrimSpace(row.FirstName),
		strings.TrimSpace(row.LastName),
		strings.TrimSpace(row.Company),
	)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
