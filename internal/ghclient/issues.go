package ghclient

import (
	"context"

	"github.com/scottluskcis/repo-stats-go/internal/model"
)

const repoIssuesQuery = `
query($owner:String!, $name:String!, $pageSize:Int!, $after:String){
  repository(owner:$owner, name:$name){
    issues(first:$pageSize, after:$after){
      pageInfo{hasNextPage endCursor}
      nodes{
        number
        comments{totalCount}
        timelineItems{totalCount}
      }
    }
  }
}`

// IterateRepoIssues sub-paginates a repository's issues beyond the snapshot's
// embedded first page, per spec §4.1 (used only when that first page's
// hasNextPage holds) and §4.5.2 (continuing from the embedded cursor, I4).
func (c *Client) IterateRepoIssues(ctx context.Context, owner, repo string, pageSize int, startCursor string) *Iterator[model.IssueNode] {
	return newIterator(ctx, func(ctx context.Context, yield func(model.IssueNode) bool) error {
		cursor := startCursor
		for {
			vars := map[string]any{"owner": owner, "name": repo, "pageSize": pageSize}
			if cursor != "" {
				vars["after"] = cursor
			}

			var out struct {
				Repository struct {
					Issues issuesConnDTO `json:"issues"`
				} `json:"repository"`
			}
			if err := c.graphQL(ctx, repoIssuesQuery, vars, &out); err != nil {
				return err
			}

			for _, n := range out.Repository.Issues.Nodes {
				node := model.IssueNode{Number: n.Number, CommentCount: n.Comments.TotalCount, TimelineCount: n.Timeline.TotalCount}
				if !yield(node) {
					return nil
				}
			}
			if !out.Repository.Issues.PageInfo.HasNextPage {
				return nil
			}
			cursor = out.Repository.Issues.PageInfo.EndCursor
		}
	})
}
