package ghclient

import (
	"context"

	"github.com/scottluskcis/repo-stats-go/internal/model"
)

// IterateOrgRepositories returns the lazy, ordered (ascending repository
// name) sequence of repository snapshots described by spec §4.1, resuming
// from resumeCursor when non-empty.
func (c *Client) IterateOrgRepositories(ctx context.Context, org string, pageSize, issuePageSize, prPageSize int, resumeCursor string) *Iterator[model.RepoSnapshot] {
	return newIterator(ctx, func(ctx context.Context, yield func(model.RepoSnapshot) bool) error {
		cursor := resumeCursor
		for {
			page, err := c.FetchOrgRepositoriesPage(ctx, org, pageSize, issuePageSize, prPageSize, cursor)
			if err != nil {
				return err
			}
			for _, snap := range page.Snapshots {
				if !yield(snap) {
					return nil
				}
			}
			if !page.HasNextPage {
				return nil
			}
			cursor = page.EndCursor
		}
	})
}
