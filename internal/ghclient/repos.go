package ghclient

import (
	"context"
	"time"

	"github.com/scottluskcis/repo-stats-go/internal/model"
)

const orgRepositoriesQuery = `
query($login:String!, $pageSize:Int!, $after:String, $issuePageSize:Int!, $prPageSize:Int!){
  organization(login:$login){
    repositories(first:$pageSize, after:$after, orderBy:{field:NAME, direction:ASC}){
      pageInfo{hasNextPage endCursor}
      nodes{
        name
        url
        isPrivate
        isEmpty
        isFork
        isArchived
        hasWikiEnabled
        diskUsage
        createdAt
        pushedAt
        updatedAt
        owner{login}
        refs(refPrefix:"refs/heads/"){totalCount}
        tagRefs: refs(refPrefix:"refs/tags/"){totalCount}
        branchProtectionRules{totalCount}
        collaborators{totalCount}
        commitComments{totalCount}
        discussions{totalCount}
        milestones{totalCount}
        releases{totalCount}
        projectsV2{totalCount}
        issues(first:$issuePageSize){
          totalCount
          pageInfo{hasNextPage endCursor}
          nodes{
            number
            comments{totalCount}
            timelineItems{totalCount}
          }
        }
        pullRequests(first:$prPageSize){
          totalCount
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
    }
  }
}`

type repoNodeDTO struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	IsEmpty        bool   `json:"isEmpty"`
	IsFork         bool   `json:"isFork"`
	IsArchived     bool   `json:"isArchived"`
	HasWikiEnabled bool   `json:"hasWikiEnabled"`
	DiskUsage      int64  `json:"diskUsage"`
	CreatedAt      time.Time `json:"createdAt"`
	PushedAt       time.Time `json:"pushedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Owner          struct {
		Login string `json:"login"`
	} `json:"owner"`
	Refs                  countField `json:"refs"`
	TagRefs               countField `json:"tagRefs"`
	BranchProtectionRules countField `json:"branchProtectionRules"`
	Collaborators         countField `json:"collaborators"`
	CommitComments        countField `json:"commitComments"`
	Discussions           countField `json:"discussions"`
	Milestones            countField `json:"milestones"`
	Releases              countField `json:"releases"`
	ProjectsV2            countField `json:"projectsV2"`
	Issues                issuesConnDTO `json:"issues"`
	PullRequests          prConnDTO     `json:"pullRequests"`
}

type countField struct {
	TotalCount int `json:"totalCount"`
}

type issueNodeDTO struct {
	Number    int        `json:"number"`
	Comments  countField `json:"comments"`
	Timeline  countField `json:"timelineItems"`
}

type issuesConnDTO struct {
	TotalCount int            `json:"totalCount"`
	PageInfo   pageInfo       `json:"pageInfo"`
	Nodes      []issueNodeDTO `json:"nodes"`
}

type reviewNodeDTO struct {
	Comments countField `json:"comments"`
}

type reviewsConnDTO struct {
	TotalCount int             `json:"totalCount"`
	Nodes      []reviewNodeDTO `json:"nodes"`
}

type prNodeDTO struct {
	Number   int            `json:"number"`
	Comments countField     `json:"comments"`
	Commits  countField     `json:"commits"`
	Timeline countField     `json:"timelineItems"`
	Reviews  reviewsConnDTO `json:"reviews"`
}

type prConnDTO struct {
	TotalCount int         `json:"totalCount"`
	PageInfo   pageInfo    `json:"pageInfo"`
	Nodes      []prNodeDTO `json:"nodes"`
}

func (n repoNodeDTO) toSnapshot(cursor string, hasNext bool) model.RepoSnapshot {
	issues := make([]model.IssueNode, 0, len(n.Issues.Nodes))
	for _, in := range n.Issues.Nodes {
		issues = append(issues, model.IssueNode{
			Number:        in.Number,
			CommentCount:  in.Comments.TotalCount,
			TimelineCount: in.Timeline.TotalCount,
		})
	}

	prs := make([]model.PullRequestNode, 0, len(n.PullRequests.Nodes))
	for _, pn := range n.PullRequests.Nodes {
		reviews := make([]model.Review, 0, len(pn.Reviews.Nodes))
		for _, rv := range pn.Reviews.Nodes {
			reviews = append(reviews, model.Review{CommentCount: rv.Comments.TotalCount})
		}
		prs = append(prs, model.PullRequestNode{
			Number:        pn.Number,
			CommentCount:  pn.Comments.TotalCount,
			CommitCount:   pn.Commits.TotalCount,
			TimelineCount: pn.Timeline.TotalCount,
			ReviewCount:   pn.Reviews.TotalCount,
			Reviews: model.ConnectionPage[model.Review]{
				Nodes: reviews,
			},
		})
	}

	return model.RepoSnapshot{
		Name:                  n.Name,
		Owner:                 n.Owner.Login,
		CreatedAt:             n.CreatedAt,
		PushedAt:              n.PushedAt,
		UpdatedAt:             n.UpdatedAt,
		DiskSizeKB:            n.DiskUsage,
		IsEmpty:               n.IsEmpty,
		IsFork:                n.IsFork,
		IsArchived:            n.IsArchived,
		HasWiki:               n.HasWikiEnabled,
		URL:                   n.URL,
		BranchCount:           n.Refs.TotalCount,
		TagCount:              n.TagRefs.TotalCount,
		ProtectedBranchCount:  n.BranchProtectionRules.TotalCount,
		CollaboratorCount:     n.Collaborators.TotalCount,
		CommitCommentCount:    n.CommitComments.TotalCount,
		DiscussionCount:       n.Discussions.TotalCount,
		MilestoneCount:        n.Milestones.TotalCount,
		ReleaseCount:          n.Releases.TotalCount,
		ProjectCount:          n.ProjectsV2.TotalCount,
		IssueTotalCount:       n.Issues.TotalCount,
		Issues: model.ConnectionPage[model.IssueNode]{
			Nodes:       issues,
			HasNextPage: n.Issues.PageInfo.HasNextPage,
			EndCursor:   n.Issues.PageInfo.EndCursor,
		},
		PullRequestTotalCount: n.PullRequests.TotalCount,
		PullRequests: model.ConnectionPage[model.PullRequestNode]{
			Nodes:       prs,
			HasNextPage: n.PullRequests.PageInfo.HasNextPage,
			EndCursor:   n.PullRequests.PageInfo.EndCursor,
		},
		Cursor:      cursor,
		HasNextPage: hasNext,
	}
}

// RepoPage is one page of the organization walk.
type RepoPage struct {
	Snapshots   []model.RepoSnapshot
	HasNextPage bool
	EndCursor   string
}

// FetchOrgRepositoriesPage fetches a single page of the organization walk
// starting at afterCursor (empty for the first page). It is the pull-based
// half of the "lazy sequence" contract described in spec §9: callers drive
// iteration by repeatedly calling this with the previous page's EndCursor.
func (c *Client) FetchOrgRepositoriesPage(ctx context.Context, org string, pageSize, issuePageSize, prPageSize int, afterCursor string) (RepoPage, error) {
	vars := map[string]any{
		"login":         org,
		"pageSize":      pageSize,
		"issuePageSize": issuePageSize,
		"prPageSize":    prPageSize,
	}
	if afterCursor != "" {
		vars["after"] = afterCursor
	}

	var out struct {
		Organization struct {
			Repositories struct {
				PageInfo pageInfo      `json:"pageInfo"`
				Nodes    []repoNodeDTO `json:"nodes"`
			} `json:"repositories"`
		} `json:"organization"`
	}

	if err := c.graphQL(ctx, orgRepositoriesQuery, vars, &out); err != nil {
		return RepoPage{}, err
	}

	repos := out.Organization.Repositories
	snapshots := make([]model.RepoSnapshot, 0, len(repos.Nodes))
	for _, n := range repos.Nodes {
		snapshots = append(snapshots, n.toSnapshot(repos.PageInfo.EndCursor, repos.PageInfo.HasNextPage))
	}

	return RepoPage{
		Snapshots:   snapshots,
		HasNextPage: repos.PageInfo.HasNextPage,
		EndCursor:   repos.PageInfo.EndCursor,
	}, nil
}
