package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"contact-ingestion-db/internal/model"
)

// Finding is one validation failure for one row. Key identifies the
// underlying cause so findings from different rows with the same cause
// collapse into a single shared issue.
type Finding struct {
	Kind   model.IssueKind
	Key    string
	Detail string
}

// Simplified RFC 5322 pattern, same as the contact store enforces.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var requiredFields = []struct {
	name string
	get  func(model.ContactRow) string
}{
	{"email", func(r model.ContactRow) string { return r.Email }},
	{"first_name", func(r model.ContactRow) string { return r.FirstName }},
	{"last_name", func(r model.ContactRow) string { return r.LastName }},
	{"company", func(r model.ContactRow) string { return r.Company }},
}

// ValidateRow runs the full rule chain over one row. Rules are not
// short-circuited: a row can carry several findings at once. duplicates
// holds normalized emails occurring more than once in the current batch;
// existing holds normalized emails already present among the user's
// contacts. Neither lookup touches storage here.
func ValidateRow(row model.ContactRow, duplicates, existing map[string]struct{}) []Finding {
	var findings []Finding

	email := strings.TrimSpace(row.Email)
	normalized := NormalizeEmail(email)

	emailKey := normalized
	if emailKey == "" {
		emailKey = rowKey(row.RowNumber)
	}

	for _, field := range requiredFields {
		if strings.TrimSpace(field.get(row)) == "" {
			findings = append(findings, Finding{
				Kind:   model.IssueKindMissingRequiredField,
				Key:    fmt.Sprintf("%s:%s", rowKey(row.RowNumber), field.name),
				Detail: fmt.Sprintf("Missing required field: %s", field.name),
			})
		}
	}

	// An absent email is covered by the missing-field rule; the format
	// rule's precondition is simply not met.
	if email != "" && !emailPattern.MatchString(email) {
		findings = append(findings, Finding{
			Kind:   model.IssueKindInvalidEmail,
			Key:    emailKey,
			Detail: fmt.Sprintf("Invalid email format: %s", email),
		})
	}

	if normalized != "" {
		if _, ok := duplicates[normalized]; ok {
			findings = append(findings, Finding{
				Kind:   model.IssueKindDuplicateEmail,
				Key:    normalized,
				Detail: fmt.Sprintf("Duplicate email in file: %s", email),
			})
		}
		if _, ok := existing[normalized]; ok {
			findings = append(findings, Finding{
				Kind:   model.IssueKindExistingEmail,
				Key:    normalized,
				Detail: fmt.Sprintf("Email already exists in contacts: %s", email),
			})
		}
	}

	return findings
}

// rowKey is the issue-key fallback for rows without a usable email. It is
// derived from the source row number, which is stable across the initial
// and reprocessing passes.
func rowKey(rowNumber int) string {
	return fmt.Sprintf("row_%d", rowNumber)
}
