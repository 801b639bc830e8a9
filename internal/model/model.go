// Package model holds the plain data types that flow between the harvest
// engine and its collaborators: the repository snapshot returned by the org
// walk, the per-repo aggregate counts folded from issue/PR sub-pagination,
// the flat output row, and the durable progress state.
package model

import "time"

// RepoSnapshot is a single page node from the organization walk. It carries
// the page cursor that advanced to it so cursor state can be recovered from
// any snapshot.
type RepoSnapshot struct {
	Name      string
	Owner     string
	CreatedAt time.Time
	PushedAt  time.Time
	UpdatedAt time.Time
	DiskSizeKB int64
	IsEmpty    bool
	IsFork     bool
	IsArchived bool
	HasWiki    bool
	URL        string

	BranchCount           int
	TagCount               int
	ProtectedBranchCount   int
	CollaboratorCount      int
	CommitCommentCount     int
	DiscussionCount        int
	MilestoneCount         int
	ReleaseCount           int
	ProjectCount           int

	IssueTotalCount int
	Issues          ConnectionPage[IssueNode]

	PullRequestTotalCount int
	PullRequests          ConnectionPage[PullRequestNode]

	// Cursor is the end cursor of the org page this snapshot belongs to.
	Cursor      string
	HasNextPage bool
}

// ConnectionPage models a GraphQL connection's first page: its embedded
// nodes plus the pageInfo needed to continue via sub-pagination.
type ConnectionPage[T any] struct {
	Nodes       []T
	HasNextPage bool
	EndCursor   string
}

// IssueNode is one issue as returned by the org-level or sub-paginated
// issues connection.
type IssueNode struct {
	Number        int
	CommentCount  int
	TimelineCount int
}

// Review is a single review embedded in a pull request's first-page review
// connection.
type Review struct {
	CommentCount int
}

// PullRequestNode is one pull request as returned by the org-level or
// sub-paginated pull-requests connection.
type PullRequestNode struct {
	Number        int
	CommentCount  int
	CommitCount   int
	TimelineCount int
	ReviewCount   int
	Reviews       ConnectionPage[Review]
}

// IssueAggregates is the folded total across an entire repo's issues,
// including any sub-paginated pages beyond the snapshot's first page.
type IssueAggregates struct {
	IssueCount       int
	IssueCommentCount int
	IssueEventCount   int
}

// PullRequestAggregates is the folded total across an entire repo's pull
// requests, including sub-paginated pages.
type PullRequestAggregates struct {
	PRCount               int
	ReviewCount           int
	ReviewCommentCount    int
	CommitCommentCount    int
	IssueEventCount       int
	IssueCommentCount     int
}

// OutputRow is the flat record emitted to the row sink, one per repository,
// in the fixed column order declared by the Columns slice in package sink.
type OutputRow struct {
	OrgName    string
	RepoName   string
	IsEmpty    bool
	LastPush   time.Time
	LastUpdate time.Time
	IsFork     bool
	IsArchived bool

	DiskSizeKB int64
	RepoSizeMB int64

	RecordCount int64

	CollaboratorCount    int
	ProtectedBranchCount int
	PRReviewCount        int
	PRReviewCommentCount int
	CommitCommentCount   int
	MilestoneCount       int
	PRCount              int
	ProjectCount         int
	BranchCount          int
	ReleaseCount         int
	IssueCount           int
	IssueEventCount      int
	IssueCommentCount    int
	TagCount             int
	DiscussionCount      int

	HasWiki        bool
	FullURL        string
	MigrationIssue bool
	Created        time.Time
}

// ProcessedState is the durable progress record read on start and written
// after each successfully emitted row (spec invariants I1-I3).
type ProcessedState struct {
	CurrentCursor        string    `json:"current_cursor"`
	LastSuccessfulCursor  string    `json:"last_successful_cursor"`
	LastProcessedRepo     string    `json:"last_processed_repo"`
	LastUpdated           time.Time `json:"last_updated"`
	CompletedSuccessfully bool      `json:"completed_successfully"`
	ProcessedRepos        []string  `json:"processed_repos"`
	OutputFileName        string    `json:"output_file_name"`

	processedSet map[string]struct{}
}

// NewProcessedState returns a fresh, empty state record.
func NewProcessedState() *ProcessedState {
	return &ProcessedState{processedSet: make(map[string]struct{})}
}

// EnsureIndex (re)builds the membership index used by HasProcessed/MarkProcessed.
// Call it after unmarshaling from JSON, since the index itself is not persisted.
func (s *ProcessedState) EnsureIndex() {
	s.processedSet = make(map[string]struct{}, len(s.ProcessedRepos))
	for _, name := range s.ProcessedRepos {
		s.processedSet[name] = struct{}{}
	}
}

// HasProcessed reports whether repo has already been emitted (I1).
func (s *ProcessedState) HasProcessed(repo string) bool {
	if s.processedSet == nil {
		s.EnsureIndex()
	}
	_, ok := s.processedSet[repo]
	return ok
}

// MarkProcessed appends repo to the processed set iff it is not already a
// member (uniqueness per I1).
func (s *ProcessedState) MarkProcessed(repo string) {
	if s.processedSet == nil {
		s.EnsureIndex()
	}
	if _, ok := s.processedSet[repo]; ok {
		return
	}
	s.processedSet[repo] = struct{}{}
	s.ProcessedRepos = append(s.ProcessedRepos, repo)
}

// RetryState tracks the retry envelope's running counters for the current
// wrapped action.
type RetryState struct {
	Attempt          int
	ConsecutiveOK    int
	LifetimeRetries  int
	LastErr          error
}

// RateLimitClass classifies a rate-limit probe result.
type RateLimitClass string

const (
	RateLimitInfo    RateLimitClass = "info"
	RateLimitWarning RateLimitClass = "warning"
	RateLimitError   RateLimitClass = "error"
)

// RateLimitProbe is the result of a single probe_rate_limits call.
type RateLimitProbe struct {
	RemainingGraphQL int64
	RemainingREST    int64
	Message          string
	Class            RateLimitClass
}

// RateLimitDisabledSentinel is returned in place of real quotas when the
// remote host reports rate limiting is disabled.
const RateLimitDisabledSentinel int64 = 10_000_000_000
