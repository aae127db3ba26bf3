package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"contact-ingestion-db/internal/model"
	apperrors "contact-ingestion-db/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory db.Repository used to exercise the
// orchestrators without MySQL. It enforces the same uniqueness contracts
// as the schema: (job, hash) on staging and (job, kind, key) on issues.
type fakeRepo struct {
	jobs     map[int64]*model.Job
	staging  map[int64]*model.StagingRow
	issues   map[int64]*model.Issue
	items    []model.IssueItem
	contacts []model.Contact

	nextJobID     int64
	nextStagingID int64
	nextIssueID   int64
	nextItemID    int64

	consolidateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		jobs:    make(map[int64]*model.Job),
		staging: make(map[int64]*model.StagingRow),
		issues:  make(map[int64]*model.Issue),
	}
}

func (f *fakeRepo) CreateJob(ctx context.Context, job *model.Job) (int64, error) {
	f.nextJobID++
	stored := *job
	stored.ID = f.nextJobID
	stored.CreatedAt = time.Now().UTC()
	f.jobs[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeRepo) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeRepo) UpdateJobStatus(ctx context.Context, jobID int64, status model.JobStatus, processStart, processEnd *time.Time) error {
	job := f.jobs[jobID]
	job.Status = status
	if processStart != nil {
		job.ProcessStart = processStart
	}
	if processEnd != nil {
		job.ProcessEnd = processEnd
	}
	return nil
}

func (f *fakeRepo) UpdateJobCounters(ctx context.Context, jobID int64, totalRows, processedRows, issueCount *int) error {
	job := f.jobs[jobID]
	if totalRows != nil {
		job.TotalRows = *totalRows
	}
	if processedRows != nil {
		job.ProcessedRows = *processedRows
	}
	if issueCount != nil {
		job.IssueCount = *issueCount
	}
	return nil
}

func (f *fakeRepo) HasStagingRows(ctx context.Context, jobID int64) (bool, error) {
	for _, row := range f.staging {
		if row.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) GetStagingRows(ctx context.Context, jobID int64) ([]model.StagingRow, error) {
	var rows []model.StagingRow
	for _, row := range f.staging {
		if row.JobID == jobID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowNumber < rows[j].RowNumber })
	return rows, nil
}

func (f *fakeRepo) GetStagingRow(ctx context.Context, stagingID int64) (*model.StagingRow, error) {
	row, ok := f.staging[stagingID]
	if !ok {
		return nil, errors.New("staging row not found")
	}
	copied := *row
	return &copied, nil
}

func (f *fakeRepo) GetStagingRowHashes(ctx context.Context, jobID int64) (map[string]struct{}, error) {
	hashes := make(map[string]struct{})
	for _, row := range f.staging {
		if row.JobID == jobID {
			hashes[row.RowHash] = struct{}{}
		}
	}
	return hashes, nil
}

func (f *fakeRepo) InsertStagingRow(ctx context.Context, row *model.StagingRow) (int64, bool, error) {
	for _, existing := range f.staging {
		if existing.JobID == row.JobID && existing.RowHash == row.RowHash {
			return 0, false, nil
		}
	}
	f.nextStagingID++
	stored := *row
	stored.ID = f.nextStagingID
	stored.CreatedAt = time.Now().UTC()
	f.staging[stored.ID] = &stored
	return stored.ID, true, nil
}

func (f *fakeRepo) UpdateStagingStatus(ctx context.Context, stagingID int64, status model.StagingStatus) error {
	f.staging[stagingID].Status = status
	return nil
}

func (f *fakeRepo) GetOrCreateIssue(ctx context.Context, jobID int64, kind model.IssueKind, key, description string) (*model.Issue, error) {
	for _, issue := range f.issues {
		if issue.JobID == jobID && issue.Kind == kind && issue.Key == key {
			copied := *issue
			return &copied, nil
		}
	}
	f.nextIssueID++
	issue := &model.Issue{
		ID:          f.nextIssueID,
		JobID:       jobID,
		Kind:        kind,
		Key:         key,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	f.issues[issue.ID] = issue
	copied := *issue
	return &copied, nil
}

func (f *fakeRepo) LinkIssueItem(ctx context.Context, issueID, stagingID int64) error {
	for _, item := range f.items {
		if item.IssueID == issueID && item.StagingID == stagingID {
			return nil
		}
	}
	f.nextItemID++
	f.items = append(f.items, model.IssueItem{ID: f.nextItemID, IssueID: issueID, StagingID: stagingID})
	return nil
}

func (f *fakeRepo) GetIssuesByJob(ctx context.Context, jobID int64) ([]model.Issue, error) {
	var issues []model.Issue
	for _, issue := range f.issues {
		if issue.JobID == jobID {
			issues = append(issues, *issue)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues, nil
}

func (f *fakeRepo) GetIssueItemsByJob(ctx context.Context, jobID int64) ([]model.IssueItem, error) {
	var items []model.IssueItem
	for _, item := range f.items {
		if issue, ok := f.issues[item.IssueID]; ok && issue.JobID == jobID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeRepo) SetIssueResolved(ctx context.Context, issueID int64, resolved bool, resolvedBy, comment *string) error {
	issue := f.issues[issueID]
	issue.Resolved = resolved
	if resolved {
		now := time.Now().UTC()
		issue.ResolvedAt = &now
		issue.ResolvedBy = resolvedBy
		issue.ResolutionComment = comment
	} else {
		issue.ResolvedAt = nil
		issue.ResolvedBy = nil
		issue.ResolutionComment = nil
	}
	return nil
}

func (f *fakeRepo) CountUnresolvedIssues(ctx context.Context, jobID int64) (int, error) {
	count := 0
	for _, issue := range f.issues {
		if issue.JobID == jobID && !issue.Resolved {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) GetExistingEmails(ctx context.Context, userID string, emails []string) (map[string]struct{}, error) {
	wanted := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		wanted[strings.ToLower(email)] = struct{}{}
	}

	existing := make(map[string]struct{})
	for _, contact := range f.contacts {
		normalized := strings.ToLower(contact.Email)
		if contact.UserID == userID {
			if _, ok := wanted[normalized]; ok {
				existing[normalized] = struct{}{}
			}
		}
	}
	return existing, nil
}

func (f *fakeRepo) ConsolidateJob(ctx context.Context, jobID int64, userID string) (int, error) {
	if f.consolidateErr != nil {
		// Atomic: a failed transaction leaves nothing behind.
		return 0, f.consolidateErr
	}

	created := 0
	for _, row := range f.staging {
		if row.JobID == jobID && row.Status == model.StagingStatusReady {
			f.contacts = append(f.contacts, model.Contact{
				StagingID: row.ID,
				UserID:    userID,
				Email:     row.Email,
				FirstName: row.FirstName,
				LastName:  row.LastName,
				Company:   row.Company,
			})
			row.Status = model.StagingStatusSuccess
			created++
		}
	}

	f.jobs[jobID].Status = model.JobStatusCompleted
	return created, nil
}

// fakeStorage keeps uploaded objects in memory.
type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Upload(ctx context.Context, key string, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = buf
	return nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

const sampleCSV = "email;first_name;last_name;company\n" +
	"a@x.com;A;A;Co\n" +
	"a@x.com;B;B;Co\n" +
	"bad-email;C;C;Co\n"

func seedJob(t *testing.T, repo *fakeRepo, store *fakeStorage, csv string) *model.Job {
	t.Helper()

	store.objects["uploads/u1/contacts.csv"] = []byte(csv)
	jobID, err := repo.CreateJob(context.Background(), &model.Job{
		UserID:           "u1",
		OriginalFilename: "contacts.csv",
		S3ObjectKey:      "uploads/u1/contacts.csv",
		Status:           model.JobStatusPending,
	})
	require.NoError(t, err)

	return repo.jobs[jobID]
}

func findIssue(repo *fakeRepo, kind model.IssueKind) *model.Issue {
	for _, issue := range repo.issues {
		if issue.Kind == kind {
			return issue
		}
	}
	return nil
}

func issueItemCount(repo *fakeRepo, issueID int64) int {
	count := 0
	for _, item := range repo.items {
		if item.IssueID == issueID {
			count++
		}
	}
	return count
}

func TestInitialProcessingStagesRowsAndSharesIssues(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, sampleCSV)

	p := NewProcessor(repo, store, 10)
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome)

	rows, err := repo.GetStagingRows(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.StagingStatusIssue, rows[0].Status)
	assert.Equal(t, model.StagingStatusIssue, rows[1].Status)
	assert.Equal(t, model.StagingStatusIssue, rows[2].Status)

	duplicate := findIssue(repo, model.IssueKindDuplicateEmail)
	require.NotNil(t, duplicate)
	assert.Equal(t, "a@x.com", duplicate.Key)
	assert.Equal(t, 2, issueItemCount(repo, duplicate.ID), "both rows share one duplicate-email issue")

	invalid := findIssue(repo, model.IssueKindInvalidEmail)
	require.NotNil(t, invalid)
	assert.Equal(t, 1, issueItemCount(repo, invalid.ID))

	assert.Len(t, repo.issues, 2)
	assert.Equal(t, 2, job.IssueCount)
	assert.Equal(t, model.JobStatusNeedsReview, job.Status)
	assert.Equal(t, 3, job.TotalRows)
	assert.Equal(t, 3, job.ProcessedRows)
	assert.Empty(t, repo.contacts)
}

func TestInitialProcessingIsIdempotentAfterCrash(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, sampleCSV)

	p := NewProcessor(repo, store, 10)
	_, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	// Simulate a crash-restart: the job is stuck PROCESSING with staging
	// present, so routing resumes the initial flow.
	job.Status = model.JobStatusProcessing
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome)

	rows, err := repo.GetStagingRows(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "no duplicate staging rows")
	assert.Len(t, repo.issues, 2, "no duplicate issues")
	assert.Equal(t, model.JobStatusNeedsReview, job.Status)
	assert.Equal(t, 3, job.ProcessedRows, "skipped rows still count as progress")
}

func TestReprocessingKeepsUnresolvedDuplicate(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, sampleCSV)

	p := NewProcessor(repo, store, 10)
	_, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	// User discards the bad-email row only; the duplicate pair stays.
	rows, _ := repo.GetStagingRows(context.Background(), job.ID)
	require.NoError(t, repo.UpdateStagingStatus(context.Background(), rows[2].ID, model.StagingStatusDiscard))

	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome)

	duplicate := findIssue(repo, model.IssueKindDuplicateEmail)
	assert.False(t, duplicate.Resolved, "duplicate condition unchanged")

	invalid := findIssue(repo, model.IssueKindInvalidEmail)
	assert.True(t, invalid.Resolved, "discarding its only row settles the issue")

	assert.Equal(t, 1, job.IssueCount)
	assert.Equal(t, model.JobStatusNeedsReview, job.Status)
	assert.Empty(t, repo.contacts)
}

func TestReprocessingResolvesAndConsolidates(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, sampleCSV)

	p := NewProcessor(repo, store, 10)
	_, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	rows, _ := repo.GetStagingRows(context.Background(), job.ID)
	require.NoError(t, repo.UpdateStagingStatus(context.Background(), rows[1].ID, model.StagingStatusDiscard))
	require.NoError(t, repo.UpdateStagingStatus(context.Background(), rows[2].ID, model.StagingStatusDiscard))

	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	duplicate := findIssue(repo, model.IssueKindDuplicateEmail)
	assert.True(t, duplicate.Resolved)
	assert.Equal(t, 0, job.IssueCount)
	assert.Equal(t, model.JobStatusCompleted, job.Status)

	require.Len(t, repo.contacts, 1, "exactly one contact from the surviving row")
	assert.Equal(t, "a@x.com", repo.contacts[0].Email)
	assert.Equal(t, "A", repo.contacts[0].FirstName)

	rows, _ = repo.GetStagingRows(context.Background(), job.ID)
	assert.Equal(t, model.StagingStatusSuccess, rows[0].Status)
	assert.Equal(t, model.StagingStatusDiscard, rows[1].Status)
}

func TestFailedConsolidationLeavesJobRetryable(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, "email,first_name,last_name,company\nok@x.com,A,B,Co\n")

	repo.consolidateErr = errors.New("connection reset")

	p := NewProcessor(repo, store, 10)
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	assert.Empty(t, repo.contacts, "no half-consolidated contacts")
	assert.NotEqual(t, model.JobStatusCompleted, job.Status)

	// Redelivery retries the whole pass and consolidates cleanly.
	repo.consolidateErr = nil
	outcome, err = p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Len(t, repo.contacts, 1)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestExistingEmailIsFlagged(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	repo.contacts = append(repo.contacts, model.Contact{UserID: "u1", Email: "taken@x.com"})
	job := seedJob(t, repo, store, "email,first_name,last_name,company\nTaken@X.com,A,B,Co\nnew@x.com,C,D,Co\n")

	p := NewProcessor(repo, store, 10)
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome)

	existing := findIssue(repo, model.IssueKindExistingEmail)
	require.NotNil(t, existing)
	assert.Equal(t, "taken@x.com", existing.Key)
	assert.Equal(t, 1, job.IssueCount)
}

func TestExistingEmailScopedPerUser(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	// Same email, different tenant: no collision.
	repo.contacts = append(repo.contacts, model.Contact{UserID: "other-user", Email: "taken@x.com"})
	job := seedJob(t, repo, store, "email,first_name,last_name,company\ntaken@x.com,A,B,Co\n")

	p := NewProcessor(repo, store, 10)
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Len(t, repo.contacts, 2)
}

func TestUnreadableFileFailsJob(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, "no delimiters here\n")

	p := NewProcessor(repo, store, 10)
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnreadableFile)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestJobNotFoundIsHandledQuietly(t *testing.T) {
	p := NewProcessor(newFakeRepo(), newFakeStorage(), 10)

	outcome, err := p.ProcessJob(context.Background(), 404)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestCompletedJobIsSkipped(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	job := seedJob(t, repo, store, sampleCSV)

	p := NewProcessor(repo, store, 10)
	_, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	job.Status = model.JobStatusCompleted
	outcome, err := p.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome, "COMPLETED wins even with staging rows present")
}
