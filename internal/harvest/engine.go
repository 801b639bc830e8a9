package harvest

import (
	"context"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
	"github.com/scottluskcis/repo-stats-go/internal/ghclient"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
	"github.com/scottluskcis/repo-stats-go/internal/parallel"
	"github.com/scottluskcis/repo-stats-go/internal/ratelimit"
	"github.com/scottluskcis/repo-stats-go/internal/retry"
	"github.com/scottluskcis/repo-stats-go/internal/state"
)

// RowSink is the narrow interface the engine needs from a row destination
// (spec §4.6's consumer). Defined here, at the consumer, per the usual Go
// convention — package sink implements it, the engine never imports sink.
type RowSink interface {
	WriteRow(model.OutputRow) error
}

// Options configures one harvest run (spec §6's CLI surface, minus anything
// that belongs to auth/transport construction).
type Options struct {
	Organization string
	Resume       bool
	// OutputFileName is the sink path this run is writing to. The engine
	// binds it into durable state on first use (spec §3's
	// output_file_name) so a resumed run reopens the same file instead of
	// starting a new one.
	OutputFileName string
	// PageSize is the organization-walk page size (flag page-size, default 10).
	PageSize int
	// ExtraPageSize sizes the embedded issue/PR connections on each org page
	// and any sub-pagination beyond their first page (flag extra-page-size,
	// default 50).
	ExtraPageSize int
	// RateLimitCheckInterval is how many emitted rows pass between governor
	// checks (flag rate-limit-check-interval, default 60).
	RateLimitCheckInterval int
	Retry                  retry.Config
}

// Engine runs the state machine described by spec §4.5: walk an
// organization's repositories, fold each one's issue/PR totals, shape a row,
// write it, and persist progress — all under a retry envelope and a rate
// governor.
type Engine struct {
	client   *ghclient.Client
	governor *ratelimit.Governor
	store    *state.Store
	sink     RowSink
	log      logging.Logger
}

// New builds an Engine from its collaborators.
func New(client *ghclient.Client, governor *ratelimit.Governor, store *state.Store, sink RowSink, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{client: client, governor: governor, store: store, sink: sink, log: log}
}

// Result summarizes one completed Run call, for a caller to print or log.
type Result struct {
	RowsEmitted            int
	CompletedSuccessfully  bool
	AlreadyProcessedAtExit int
}

// Run is one run of the engine (spec §4.5: "One run of the engine is
// wrapped by the retry envelope so that any uncaught fault restarts the
// engine, which then resumes from the durable state"). The whole
// Loading→Walking→…→Finalizing|Failed pass is the retried action: on any
// uncaught fault, runPass has already reverted state.current_cursor to
// last_successful_cursor, so the next attempt re-enters Loading at a
// known-good position instead of re-running the process from scratch.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.RateLimitCheckInterval <= 0 {
		opts.RateLimitCheckInterval = 60
	}
	if opts.Retry == (retry.Config{}) {
		opts.Retry = retry.DefaultConfig()
	}

	// Resuming against a state file that already records a completed run
	// emits nothing (I3); the state must be cleared to harvest again.
	if opts.Resume {
		if prior, snapErr := e.store.Snapshot(); snapErr == nil && prior.CompletedSuccessfully {
			e.log.Info("harvest.already_completed", "org", opts.Organization)
			return Result{CompletedSuccessfully: true, AlreadyProcessedAtExit: len(prior.ProcessedRepos)}, nil
		}
	}

	st, resumed, err := e.store.Load(opts.Resume)
	if err != nil {
		return Result{}, err
	}

	if resumed {
		e.log.Info("harvest.resume", "org", opts.Organization, "cursor", st.CurrentCursor, "already_processed", len(st.ProcessedRepos))
	} else {
		e.log.Info("harvest.start", "org", opts.Organization)
	}

	if opts.OutputFileName != "" && st.OutputFileName != opts.OutputFileName {
		e.store.Apply(st, state.Update{OutputFileName: opts.OutputFileName})
	}

	counters := &retry.Counters{}
	rowsEmitted := 0

	_, err = retry.Do(ctx, opts.Retry, counters, e.log, func(attempt int, retryErr error) {
		e.log.Warn("harvest.run.retry", "org", opts.Organization, "attempt", attempt, "error", retryErr)
	}, func() (struct{}, error) {
		n, err := e.runPass(ctx, opts, st)
		rowsEmitted += n
		return struct{}{}, err
	})
	if err != nil {
		return Result{}, err
	}

	e.log.Info("harvest.done", "org", opts.Organization, "rows_emitted", rowsEmitted, "completed", st.CompletedSuccessfully)
	return Result{
		RowsEmitted:            rowsEmitted,
		CompletedSuccessfully:  st.CompletedSuccessfully,
		AlreadyProcessedAtExit: len(st.ProcessedRepos),
	}, nil
}

// runPass drives Walking→SubPaginating→Writing→Probing→…→Finalizing for a
// single attempt of the retry envelope (spec §4.5.1). It returns the number
// of rows it personally emitted (not the cumulative count across retries)
// and, on any failure, an error with state.current_cursor already reverted
// via fail.
func (e *Engine) runPass(ctx context.Context, opts Options, st *model.ProcessedState) (int, error) {
	resumeCursor := st.CurrentCursor
	if resumeCursor == "" {
		resumeCursor = st.LastSuccessfulCursor
	}

	it := e.client.IterateOrgRepositories(ctx, opts.Organization, opts.PageSize, opts.ExtraPageSize, opts.ExtraPageSize, resumeCursor)
	defer it.Close()

	rowIndex := 0

	for {
		snap, ok, err := it.Next()
		if err != nil {
			return rowIndex, e.fail(st, err)
		}
		if !ok {
			break
		}

		if st.HasProcessed(snap.Name) {
			e.log.Debug("harvest.skip.already_processed", "repo", snap.Name)
			continue
		}

		if err := e.governor.Wait(ctx); err != nil {
			return rowIndex, e.fail(st, err)
		}

		row, err := e.processRepo(ctx, opts, snap)
		if err != nil {
			return rowIndex, e.fail(st, err)
		}

		if err := e.sink.WriteRow(row); err != nil {
			return rowIndex, e.fail(st, &errs.SinkError{Err: err})
		}

		cursor := snap.Cursor
		e.store.Apply(st, state.Update{
			RepoName:             snap.Name,
			NewCursor:            &cursor,
			LastSuccessfulCursor: &cursor,
		})

		rowIndex++
		if rowIndex%opts.RateLimitCheckInterval == 0 {
			directive, err := e.governor.Check(ctx)
			if err != nil && directive == ratelimit.Fatal {
				return rowIndex, e.fail(st, err)
			}
			if directive == ratelimit.Pause {
				// Spec §4.5.1/§4.3: a pause directive is raised as an error
				// so the (outer) retry envelope sleeps and re-enters
				// Loading, rather than the engine sleeping in place.
				e.log.Warn("harvest.pause", "rows_emitted", rowIndex)
				return rowIndex, e.fail(st, &errs.RateLimitError{Message: "rate limit pause threshold reached"})
			}
		}
	}

	emptyCursor := ""
	e.store.Apply(st, state.Update{NewCursor: &emptyCursor})
	if len(st.ProcessedRepos) > 0 && st.CurrentCursor == "" {
		st.CompletedSuccessfully = true
		e.store.Apply(st, state.Update{})
	}
	return rowIndex, nil
}

// processRepo folds a snapshot's issue and pull-request totals (concurrently,
// per spec §4.5.2's two-fetch shape) and shapes the output row. It performs
// no I/O beyond the GraphQL sub-pagination calls and is safe to retry.
func (e *Engine) processRepo(ctx context.Context, opts Options, snap model.RepoSnapshot) (model.OutputRow, error) {
	var issues model.IssueAggregates
	var prs model.PullRequestAggregates

	err := parallel.RunTwo(
		func() error {
			var err error
			issues, err = AggregateIssues(ctx, e.client, snap.Owner, snap.Name, snap, opts.ExtraPageSize, e.log)
			return err
		},
		func() error {
			var err error
			prs, err = AggregatePullRequests(ctx, e.client, snap.Owner, snap.Name, snap, opts.ExtraPageSize, e.log)
			return err
		},
	)
	if err != nil {
		return model.OutputRow{}, err
	}

	return ShapeRow(opts.Organization, snap, issues, prs)
}

// fail reverts the in-flight cursor to the last successfully committed one
// (spec §4.5's failure contract: a failed repo must not advance progress)
// before persisting and returning err.
func (e *Engine) fail(st *model.ProcessedState, err error) error {
	reverted := st.LastSuccessfulCursor
	e.store.Apply(st, state.Update{NewCursor: &reverted})
	e.log.Error("harvest.failed", "error", err, "reverted_cursor", reverted)
	return err
}
