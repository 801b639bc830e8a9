package harvest

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/scottluskcis/repo-stats-go/internal/ghclient"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
)

// AggregateIssues folds a repository's issue totals per spec §4.5.2: seed
// from the snapshot's embedded first page, then continue via sub-pagination
// when hasNextPage holds, starting at the embedded cursor (I4).
func AggregateIssues(ctx context.Context, client *ghclient.Client, owner, repo string, snap model.RepoSnapshot, extraPageSize int, log logging.Logger) (model.IssueAggregates, error) {
	if snap.IssueTotalCount <= 0 {
		return model.IssueAggregates{}, nil
	}

	commentsSum := lo.SumBy(snap.Issues.Nodes, func(n model.IssueNode) int { return n.CommentCount })
	timelineSum := lo.SumBy(snap.Issues.Nodes, func(n model.IssueNode) int { return n.TimelineCount })

	agg := model.IssueAggregates{
		IssueCount:        snap.IssueTotalCount,
		IssueCommentCount: commentsSum,
		IssueEventCount:   timelineSum - commentsSum,
	}

	if !snap.Issues.HasNextPage || snap.Issues.EndCursor == "" {
		return agg, nil
	}

	it := client.IterateRepoIssues(ctx, owner, repo, extraPageSize, snap.Issues.EndCursor)
	defer it.Close()
	for {
		node, ok, err := it.Next()
		if err != nil {
			log.Error("harvest.issues.subpaginate.error", "owner", owner, "repo", repo, "hint", "consider reducing page size", "error", err)
			return model.IssueAggregates{}, fmt.Errorf("sub-paginating issues for %s/%s: %w", owner, repo, err)
		}
		if !ok {
			break
		}
		agg.IssueEventCount += node.TimelineCount - node.CommentCount
		agg.IssueCommentCount += node.CommentCount
	}

	return agg, nil
}

// AggregatePullRequests folds a repository's pull-request totals per spec
// §4.5.2, flagging (but never clamping — see SPEC_FULL.md §9) any PR whose
// redundant count exceeds its timeline count.
func AggregatePullRequests(ctx context.Context, client *ghclient.Client, owner, repo string, snap model.RepoSnapshot, extraPageSize int, log logging.Logger) (model.PullRequestAggregates, error) {
	if snap.PullRequestTotalCount <= 0 {
		return model.PullRequestAggregates{}, nil
	}

	agg := model.PullRequestAggregates{PRCount: snap.PullRequestTotalCount}

	for _, n := range snap.PullRequests.Nodes {
		foldPullRequest(&agg, n, owner, repo, log)
	}

	if !snap.PullRequests.HasNextPage || snap.PullRequests.EndCursor == "" {
		return agg, nil
	}

	it := client.IterateRepoPullRequests(ctx, owner, repo, extraPageSize, snap.PullRequests.EndCursor)
	defer it.Close()
	for {
		node, ok, err := it.Next()
		if err != nil {
			log.Error("harvest.pulls.subpaginate.error", "owner", owner, "repo", repo, "hint", "consider reducing page size", "error", err)
			return model.PullRequestAggregates{}, fmt.Errorf("sub-paginating pull requests for %s/%s: %w", owner, repo, err)
		}
		if !ok {
			break
		}
		foldPullRequest(&agg, node, owner, repo, log)
	}

	return agg, nil
}

const maxRedundantCommits = 250

// foldPullRequest accumulates one PR node into agg, per spec §4.5.2's
// redundant-events formula. A redundant count exceeding the timeline count
// is logged as a warning but subtracted verbatim — see the "negative event
// counts" design note: this is a known peculiarity, preserved literally.
func foldPullRequest(agg *model.PullRequestAggregates, n model.PullRequestNode, owner, repo string, log logging.Logger) {
	commits := n.CommitCount
	if commits > maxRedundantCommits {
		commits = maxRedundantCommits
	}
	redundant := n.CommentCount + commits

	if redundant > n.TimelineCount {
		log.Warn("harvest.pulls.redundant_exceeds_timeline",
			"owner", owner, "repo", repo, "pr", n.Number,
			"comments", n.CommentCount, "commits", n.CommitCount, "timeline", n.TimelineCount, "redundant", redundant)
	}

	agg.IssueEventCount += n.TimelineCount - redundant
	agg.IssueCommentCount += n.CommentCount
	agg.ReviewCount += n.ReviewCount
	agg.ReviewCommentCount += lo.SumBy(n.Reviews.Nodes, func(r model.Review) int { return r.CommentCount })
	agg.CommitCommentCount += n.CommitCount
}
