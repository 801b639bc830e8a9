package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
)

func TestAggregateIssuesZeroTotalShortCircuits(t *testing.T) {
	snap := model.RepoSnapshot{IssueTotalCount: 0}
	agg, err := AggregateIssues(context.Background(), nil, "octo-org", "widget-api", snap, 50, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, model.IssueAggregates{}, agg)
}

func TestAggregateIssuesFoldsFirstPageOnly(t *testing.T) {
	snap := model.RepoSnapshot{
		IssueTotalCount: 2,
		Issues: model.ConnectionPage[model.IssueNode]{
			Nodes: []model.IssueNode{
				{Number: 1, CommentCount: 2, TimelineCount: 5},
				{Number: 2, CommentCount: 1, TimelineCount: 3},
			},
			HasNextPage: false,
		},
	}

	agg, err := AggregateIssues(context.Background(), nil, "octo-org", "widget-api", snap, 50, logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, agg.IssueCount)
	assert.Equal(t, 3, agg.IssueCommentCount)     // 2 + 1
	assert.Equal(t, 5, agg.IssueEventCount)        // (5-2) + (3-1)
}

func TestAggregatePullRequestsZeroTotalShortCircuits(t *testing.T) {
	snap := model.RepoSnapshot{PullRequestTotalCount: 0}
	agg, err := AggregatePullRequests(context.Background(), nil, "octo-org", "widget-api", snap, 50, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, model.PullRequestAggregates{}, agg)
}

func TestFoldPullRequestAccumulatesReviewAndCommentCounts(t *testing.T) {
	agg := &model.PullRequestAggregates{}
	n := model.PullRequestNode{
		Number:        7,
		CommentCount:  2,
		CommitCount:   3,
		TimelineCount: 10,
		ReviewCount:   2,
		Reviews: model.ConnectionPage[model.Review]{
			Nodes: []model.Review{{CommentCount: 1}, {CommentCount: 4}},
		},
	}

	foldPullRequest(agg, n, "octo-org", "widget-api", logging.Nop())

	assert.Equal(t, 2, agg.ReviewCount)
	assert.Equal(t, 5, agg.ReviewCommentCount) // 1 + 4
	assert.Equal(t, 2, agg.IssueCommentCount)
	assert.Equal(t, 3, agg.CommitCommentCount)
	// redundant = comments(2) + commits(3) = 5; timeline(10) - redundant(5) = 5
	assert.Equal(t, 5, agg.IssueEventCount)
}

func TestFoldPullRequestCapsRedundantCommitsAtMax(t *testing.T) {
	agg := &model.PullRequestAggregates{}
	n := model.PullRequestNode{
		Number:        9,
		CommentCount:  0,
		CommitCount:   maxRedundantCommits + 100,
		TimelineCount: maxRedundantCommits + 1,
	}

	foldPullRequest(agg, n, "octo-org", "widget-api", logging.Nop())

	// redundant is capped at maxRedundantCommits, so event count is 1, not negative.
	assert.Equal(t, 1, agg.IssueEventCount)
}

func TestFoldPullRequestPreservesNegativeEventCountWhenRedundantExceedsTimeline(t *testing.T) {
	agg := &model.PullRequestAggregates{}
	n := model.PullRequestNode{
		Number:        3,
		CommentCount:  5,
		CommitCount:   5,
		TimelineCount: 4,
	}

	foldPullRequest(agg, n, "octo-org", "widget-api", logging.Nop())

	// redundant = 10, timeline = 4, so event count goes negative and is kept as-is.
	assert.Equal(t, -6, agg.IssueEventCount)
}
