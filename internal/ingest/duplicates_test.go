package ingest

import (
	"testing"

	"contact-ingestion-db/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDuplicateEmails(t *testing.T) {
	rows := []model.ContactRow{
		{Email: "a@x.com"},
		{Email: " A@X.COM "},
		{Email: "b@x.com"},
		{Email: ""},
		{Email: "   "},
	}

	duplicates := DuplicateEmails(rows)
	assert.Len(t, duplicates, 1)
	assert.Contains(t, duplicates, "a@x.com")
}

func TestDuplicateEmailsEmptyValuesNeverCollide(t *testing.T) {
	rows := []model.ContactRow{{Email: ""}, {Email: ""}, {Email: "  "}}
	assert.Empty(t, DuplicateEmails(rows))
}

func TestDuplicateStagingEmails(t *testing.T) {
	rows := []model.StagingRow{
		{Email: "a@x.com"},
		{Email: "A@x.com"},
		{Email: "b@x.com"},
	}

	duplicates := DuplicateStagingEmails(rows)
	assert.Len(t, duplicates, 1)
	assert.Contains(t, duplicates, "a@x.com")
}

func TestCollectRowEmailsDeduplicates(t *testing.T) {
	rows := []model.ContactRow{
		{Email: "a@x.com"},
		{Email: "A@X.com"},
		{Email: "b@x.com"},
		{Email: ""},
	}

	emails := collectRowEmails(rows)
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, emails)
}
