package ingest

import (
	"testing"

	"contact-ingestion-db/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(emails ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		s[e] = struct{}{}
	}
	return s
}

func kinds(findings []Finding) []model.IssueKind {
	out := make([]model.IssueKind, len(findings))
	for i, f := range findings {
		out[i] = f.Kind
	}
	return out
}

func TestValidateRowCleanRow(t *testing.T) {
	row := model.ContactRow{RowNumber: 1, Email: "a@x.com", FirstName: "A", LastName: "B", Company: "Co"}
	assert.Empty(t, ValidateRow(row, nil, nil))
}

func TestValidateRowMissingFields(t *testing.T) {
	row := model.ContactRow{RowNumber: 4, Email: "a@x.com", FirstName: "  ", Company: "Co"}

	findings := ValidateRow(row, nil, nil)
	require.Len(t, findings, 2)
	assert.Equal(t, model.IssueKindMissingRequiredField, findings[0].Kind)
	assert.Equal(t, "row_4:first_name", findings[0].Key)
	assert.Equal(t, "row_4:last_name", findings[1].Key)
}

func TestValidateRowInvalidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@x.com", true},
		{"first.last+tag@sub.domain.io", true},
		{"no-at-sign", false},
		{"a@nodot", false},
		{"a@x.c", false},
		{"@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			row := model.ContactRow{RowNumber: 1, Email: tt.email, FirstName: "A", LastName: "B", Company: "Co"}
			findings := ValidateRow(row, nil, nil)
			if tt.valid {
				assert.Empty(t, findings)
			} else {
				require.Len(t, findings, 1)
				assert.Equal(t, model.IssueKindInvalidEmail, findings[0].Kind)
			}
		})
	}
}

func TestValidateRowAbsentEmailSkipsFormatRule(t *testing.T) {
	row := model.ContactRow{RowNumber: 2, Email: "  ", FirstName: "A", LastName: "B", Company: "Co"}

	findings := ValidateRow(row, nil, nil)
	require.Len(t, findings, 1, "missing-field only, no format finding")
	assert.Equal(t, model.IssueKindMissingRequiredField, findings[0].Kind)
	assert.Equal(t, "row_2:email", findings[0].Key)
}

func TestValidateRowAccumulatesAllFindings(t *testing.T) {
	// One row can be a duplicate, collide with an existing contact and
	// miss a field all at once.
	row := model.ContactRow{RowNumber: 7, Email: "Dup@X.com", FirstName: "A", LastName: "B"}

	findings := ValidateRow(row, set("dup@x.com"), set("dup@x.com"))
	assert.ElementsMatch(t, []model.IssueKind{
		model.IssueKindMissingRequiredField,
		model.IssueKindDuplicateEmail,
		model.IssueKindExistingEmail,
	}, kinds(findings))
}

func TestValidateRowEmailKeysAreNormalized(t *testing.T) {
	row := model.ContactRow{RowNumber: 1, Email: " Dup@X.com ", FirstName: "A", LastName: "B", Company: "Co"}

	findings := ValidateRow(row, set("dup@x.com"), nil)
	require.Len(t, findings, 1)
	assert.Equal(t, "dup@x.com", findings[0].Key)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.CoM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}
