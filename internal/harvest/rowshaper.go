// Package harvest implements the harvest engine (spec §4.5, component C5)
// and the row shaper (spec §4.6, component C6).
package harvest

import (
	"fmt"
	"math"

	"github.com/scottluskcis/repo-stats-go/internal/model"
)

const (
	migrationRecordCountThreshold = 60_000
	migrationDiskSizeMBThreshold  = 1_500
)

// ShapeRow is the pure function from (snapshot, issue aggregates, PR
// aggregates, org name) to output row described by spec §4.6.
func ShapeRow(org string, snap model.RepoSnapshot, issues model.IssueAggregates, prs model.PullRequestAggregates) (model.OutputRow, error) {
	mb, err := diskSizeMB(snap.DiskSizeKB)
	if err != nil {
		return model.OutputRow{}, err
	}

	recordCount := recordCount(snap, issues, prs)

	return model.OutputRow{
		OrgName:    org,
		RepoName:   snap.Name,
		IsEmpty:    snap.IsEmpty,
		LastPush:   snap.PushedAt,
		LastUpdate: snap.UpdatedAt,
		IsFork:     snap.IsFork,
		IsArchived: snap.IsArchived,

		DiskSizeKB: snap.DiskSizeKB,
		RepoSizeMB: mb,

		RecordCount: recordCount,

		CollaboratorCount:    snap.CollaboratorCount,
		ProtectedBranchCount: snap.ProtectedBranchCount,
		PRReviewCount:        prs.ReviewCount,
		PRReviewCommentCount: prs.ReviewCommentCount,
		CommitCommentCount:   snap.CommitCommentCount + prs.CommitCommentCount,
		MilestoneCount:       snap.MilestoneCount,
		PRCount:              prs.PRCount,
		ProjectCount:         snap.ProjectCount,
		BranchCount:          snap.BranchCount,
		ReleaseCount:         snap.ReleaseCount,
		IssueCount:           issues.IssueCount,
		IssueEventCount:      issues.IssueEventCount + prs.IssueEventCount,
		IssueCommentCount:    issues.IssueCommentCount + prs.IssueCommentCount,
		TagCount:             snap.TagCount,
		DiscussionCount:      snap.DiscussionCount,

		HasWiki:        snap.HasWiki,
		FullURL:        snap.URL,
		MigrationIssue: recordCount >= migrationRecordCountThreshold || mb > migrationDiskSizeMBThreshold,
		Created:        snap.CreatedAt,
	}, nil
}

// diskSizeMB computes floor(kB/1024), per spec §4.6 and P9.
func diskSizeMB(kb int64) (int64, error) {
	f := float64(kb)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("disk size %v is not finite", kb)
	}
	return int64(math.Floor(f / 1024)), nil
}

// recordCount implements the §3 record-count law (P7): pull requests count
// twice, once as PR count and once as review count, per the source-of-truth
// contract.
func recordCount(snap model.RepoSnapshot, issues model.IssueAggregates, prs model.PullRequestAggregates) int64 {
	return int64(snap.CollaboratorCount) +
		int64(snap.ProtectedBranchCount) +
		2*int64(prs.PRCount) +
		int64(snap.MilestoneCount) +
		int64(issues.IssueCount) +
		int64(prs.ReviewCommentCount) +
		int64(snap.CommitCommentCount+prs.CommitCommentCount) +
		int64(issues.IssueCommentCount+prs.IssueCommentCount) +
		int64(issues.IssueEventCount+prs.IssueEventCount) +
		int64(snap.ReleaseCount) +
		int64(snap.ProjectCount)
}
