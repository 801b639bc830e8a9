package ghclient

import (
	"context"

	"github.com/scottluskcis/repo-stats-go/internal/model"
)

const repoPullRequestsQuery = `
query($owner:String!, $name:String!, $pageSize:Int!, $after:String){
  repository(owner:$owner, name:$name){
    pullRequests(first:$pageSize, after:$after){
      pageInfo{hasNextPage endCursor}
      nodes{
        number
        comments{totalCount}
        commits{totalCount}
        timelineItems{totalCount}
        reviews{
          totalCount
          nodes{comments{totalCount}}
        }
      }
    }
  }
}`

// IterateRepoPullRequests sub-paginates a repository's pull requests beyond
// the snapshot's embedded first page, mirroring IterateRepoIssues.
func (c *Client) IterateRepoPullRequests(ctx context.Context, owner, repo string, pageSize int, startCursor string) *Iterator[model.PullRequestNode] {
	return newIterator(ctx, func(ctx context.Context, yield func(model.PullRequestNode) bool) error {
		cursor := startCursor
		for {
			vars := map[string]any{"owner": owner, "name": repo, "pageSize": pageSize}
			if cursor != "" {
				vars["after"] = cursor
			}

			var out struct {
				Repository struct {
					PullRequests prConnDTO `json:"pullRequests"`
				} `json:"repository"`
			}
			if err := c.graphQL(ctx, repoPullRequestsQuery, vars, &out); err != nil {
				return err
			}

			for _, n := range out.Repository.PullRequests.Nodes {
				reviews := make([]model.Review, 0, len(n.Reviews.Nodes))
				for _, rv := range n.Reviews.Nodes {
					reviews = append(reviews, model.Review{CommentCount: rv.Comments.TotalCount})
				}
				node := model.PullRequestNode{
					Number:        n.Number,
					CommentCount:  n.Comments.TotalCount,
					CommitCount:   n.Commits.TotalCount,
					TimelineCount: n.Timeline.TotalCount,
					ReviewCount:   n.Reviews.TotalCount,
					Reviews:       model.ConnectionPage[model.Review]{Nodes: reviews},
				}
				if !yield(node) {
					return nil
				}
			}
			if !out.Repository.PullRequests.PageInfo.HasNextPage {
				return nil
			}
			cursor = out.Repository.PullRequests.PageInfo.EndCursor
		}
	})
}
