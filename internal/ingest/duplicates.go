package ingest

import "contact-ingestion-db/internal/model"

// DuplicateEmails returns the normalized emails that occur more than once
// in the parsed batch. Matching is case-insensitive with surrounding
// whitespace ignored.
func DuplicateEmails(rows []model.ContactRow) map[string]struct{} {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if email := NormalizeEmail(row.Email); email != "" {
			counts[email]++
		}
	}
	return repeated(counts)
}

// DuplicateStagingEmails is the staging-side variant used by
// reprocessing. Callers pass the working set only (discarded rows
// excluded), so the duplicate set reflects the current batch composition.
func DuplicateStagingEmails(rows []model.StagingRow) map[string]struct{} {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if email := NormalizeEmail(row.Email); email != "" {
			counts[email]++
		}
	}
	return repeated(counts)
}

func repeated(counts map[string]int) map[string]struct{} {
	duplicates := make(map[string]struct{})
	for email, count := range counts {
		if count > 1 {
			duplicates[email] = struct{}{}
		}
	}
	return duplicates
}

func batchEmails(counts map[string]struct{}) []string {
	emails := make([]string, 0, len(counts))
	for email := range counts {
		emails = append(emails, email)
	}
	return emails
}

func collectRowEmails(rows []model.ContactRow) []string {
	unique := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if email := NormalizeEmail(row.Email); email != "" {
			unique[email] = struct{}{}
		}
	}
	return batchEmails(unique)
}

func collectStagingEmails(rows []model.StagingRow) []string {
	unique := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if email := NormalizeEmail(row.Email); email != "" {
			unique[email] = struct{}{}
		}
	}
	return batchEmails(unique)
}
