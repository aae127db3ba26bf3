package ingest

import "contact-ingestion-db/internal/model"

// Mode is the processing path chosen for an incoming work item.
type Mode int

const (
	// ModeSkip leaves the job untouched (already COMPLETED).
	ModeSkip Mode = iota
	// ModeInitial parses the source file and stages its rows. Also used
	// to resume a partially staged job; the idempotency guard makes the
	// second walk over the file harmless.
	ModeInitial
	// ModeReprocess re-validates existing staging rows without touching
	// the source file.
	ModeReprocess
)

func (m Mode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModeInitial:
		return "initial"
	case ModeReprocess:
		return "reprocess"
	default:
		return "unknown"
	}
}

// Route selects the processing mode for a job. The branch order is part of
// the contract: COMPLETED always wins, a job interrupted mid-staging
// (PENDING/PROCESSING with staging present) resumes the initial flow, and
// any other job with staging rows is re-validated in place.
func Route(status model.JobStatus, hasStaging bool) Mode {
	switch {
	case status == model.JobStatusCompleted:
		return ModeSkip
	case !hasStaging:
		return ModeInitial
	case status == model.JobStatusPending || status == model.JobStatusProcessing:
		return ModeInitial
	default:
		return ModeReprocess
	}
}
