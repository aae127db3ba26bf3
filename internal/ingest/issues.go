package ingest

import "contact-ingestion-db/internal/model"

// ComputeResolutions recomputes each issue's resolved flag from the
// issue/staging linkage after a re-validation pass. An issue is resolved
// when none of its linked rows is still in ISSUE status (READY, SUCCESS
// and DISCARD links all count as settled); an issue whose links went back
// to ISSUE is reopened. Issues with no links keep their current flag.
//
// Returns the issue IDs to mark resolved and the IDs to reopen.
func ComputeResolutions(
	issues []model.Issue,
	items []model.IssueItem,
	statuses map[int64]model.StagingStatus,
) (toResolve, toReopen []int64) {
	linkedRows := make(map[int64][]int64, len(issues))
	for _, item := range items {
		linkedRows[item.IssueID] = append(linkedRows[item.IssueID], item.StagingID)
	}

	for _, issue := range issues {
		rows, ok := linkedRows[issue.ID]
		if !ok {
			continue
		}

		open := 0
		for _, stagingID := range rows {
			if statuses[stagingID] == model.StagingStatusIssue {
				open++
			}
		}

		switch {
		case open == 0 && !issue.Resolved:
			toResolve = append(toResolve, issue.ID)
		case open > 0 && issue.Resolved:
			toReopen = append(toReopen, issue.ID)
		}
	}

	return toResolve, toReopen
}
