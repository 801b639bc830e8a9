package harvest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottluskcis/repo-stats-go/internal/ghclient"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
	"github.com/scottluskcis/repo-stats-go/internal/ratelimit"
	"github.com/scottluskcis/repo-stats-go/internal/retry"
	"github.com/scottluskcis/repo-stats-go/internal/state"
)

type fakeSink struct {
	rows []model.OutputRow
}

func (s *fakeSink) WriteRow(row model.OutputRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func twoRepoOrgServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"organization": map[string]any{
					"repositories": map[string]any{
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
						"nodes": []map[string]any{
							repoNode("alpha"),
							repoNode("beta"),
						},
					},
				},
			},
		})
	}))
}

func repoNode(name string) map[string]any {
	return map[string]any{
		"name": name, "url": "https://github.com/octo-org/" + name,
		"isEmpty": false, "isFork": false, "isArchived": false, "hasWikiEnabled": false,
		"diskUsage": 512, "createdAt": "2020-01-01T00:00:00Z",
		"pushedAt": "2024-01-01T00:00:00Z", "updatedAt": "2024-01-02T00:00:00Z",
		"owner":                 map[string]any{"login": "octo-org"},
		"refs":                  map[string]any{"totalCount": 1},
		"tagRefs":               map[string]any{"totalCount": 0},
		"branchProtectionRules": map[string]any{"totalCount": 0},
		"collaborators":         map[string]any{"totalCount": 1},
		"commitComments":        map[string]any{"totalCount": 0},
		"discussions":           map[string]any{"totalCount": 0},
		"milestones":            map[string]any{"totalCount": 0},
		"releases":              map[string]any{"totalCount": 0},
		"projectsV2":            map[string]any{"totalCount": 0},
		"issues": map[string]any{
			"totalCount": 0,
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"nodes":      []any{},
		},
		"pullRequests": map[string]any{
			"totalCount": 0,
			"pageInfo":   map[string]any{"hasNextPage": false, "endCursor": ""},
			"nodes":      []any{},
		},
	}
}

func newTestEngine(t *testing.T, srv *httptest.Server) (*Engine, *fakeSink, *state.Store) {
	t.Helper()
	client := ghclient.New(srv.Client(), srv.URL, nil, logging.Nop())
	governor := ratelimit.New(client, logging.Nop(), 3)
	store := state.New(filepath.Join(t.TempDir(), "last_known_state.json"), logging.Nop())
	sink := &fakeSink{}
	return New(client, governor, store, sink, logging.Nop()), sink, store
}

func TestRunWalksAllReposAndMarksCompletion(t *testing.T) {
	srv := twoRepoOrgServer()
	defer srv.Close()

	engine, sink, store := newTestEngine(t, srv)
	res, err := engine.Run(context.Background(), Options{
		Organization:           "octo-org",
		PageSize:               10,
		ExtraPageSize:          10,
		RateLimitCheckInterval: 60,
		Retry:                  retry.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.RowsEmitted)
	assert.True(t, res.CompletedSuccessfully)
	require.Len(t, sink.rows, 2)
	assert.Equal(t, "alpha", sink.rows[0].RepoName)
	assert.Equal(t, "beta", sink.rows[1].RepoName)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.CompletedSuccessfully)
	assert.Empty(t, snap.CurrentCursor)
}

func TestRunSkipsAlreadyProcessedRepos(t *testing.T) {
	srv := twoRepoOrgServer()
	defer srv.Close()

	engine, sink, _ := newTestEngine(t, srv)

	// Prime the store as if "alpha" was already processed by a prior run.
	prior := model.NewProcessedState()
	prior.MarkProcessed("alpha")
	// Force a resumable (incomplete) prior run by writing it through Apply.
	cursor := ""
	engine.store.Apply(prior, state.Update{NewCursor: &cursor})
	engine.store.Apply(prior, state.Update{RepoName: "alpha", NewCursor: &cursor, LastSuccessfulCursor: &cursor})

	res, err := engine.Run(context.Background(), Options{
		Organization:           "octo-org",
		Resume:                 true,
		PageSize:               10,
		ExtraPageSize:          10,
		RateLimitCheckInterval: 60,
		Retry:                  retry.DefaultConfig(),
	})
	require.NoError(t, err)

	require.Len(t, sink.rows, 1)
	assert.Equal(t, "beta", sink.rows[0].RepoName)
	assert.Equal(t, 1, res.RowsEmitted)
}

// TestRunRetriesTheWholeRunOnATransientOrgPageFailure exercises spec §4.5's
// "one run of the engine is wrapped by the retry envelope" contract: a
// transient 5xx on the org-page fetch (not inside processRepo) must not
// kill the run outright — the outer envelope retries runPass, which
// re-enters Loading at the reverted cursor and skips any repo already
// marked processed.
func TestRunRetriesTheWholeRunOnATransientOrgPageFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"organization": map[string]any{
					"repositories": map[string]any{
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
						"nodes":    []map[string]any{repoNode("alpha")},
					},
				},
			},
		})
	}))
	defer srv.Close()

	engine, sink, store := newTestEngine(t, srv)
	fastRetry := retry.Config{
		MaxAttempts:      3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		BackoffFactor:    2,
		SuccessThreshold: 5,
	}

	res, err := engine.Run(context.Background(), Options{
		Organization:           "octo-org",
		PageSize:               10,
		ExtraPageSize:          10,
		RateLimitCheckInterval: 60,
		Retry:                  fastRetry,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.RowsEmitted)
	assert.True(t, res.CompletedSuccessfully)
	require.Len(t, sink.rows, 1)
	assert.EqualValues(t, 2, calls.Load())

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.CompletedSuccessfully)
}

// TestRunExhaustsRetriesAndReturnsAggregateError confirms a persistently
// failing org-page fetch still surfaces the envelope's aggregate error
// after max_attempts, rather than retrying forever.
func TestRunExhaustsRetriesAndReturnsAggregateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	engine, sink, _ := newTestEngine(t, srv)
	fastRetry := retry.Config{
		MaxAttempts:      2,
		InitialDelay:     time.Millisecond,
		MaxDelay:         2 * time.Millisecond,
		BackoffFactor:    2,
		SuccessThreshold: 5,
	}

	_, err := engine.Run(context.Background(), Options{
		Organization:           "octo-org",
		PageSize:               10,
		ExtraPageSize:          10,
		RateLimitCheckInterval: 60,
		Retry:                  fastRetry,
	})
	require.Error(t, err)
	assert.Empty(t, sink.rows)
}

// TestRunBindsOutputFileNameIntoState covers spec §3's output_file_name:
// the run persists the sink path it was given into the state file, where a
// later resumed run can read it back.
func TestRunBindsOutputFileNameIntoState(t *testing.T) {
	srv := twoRepoOrgServer()
	defer srv.Close()

	engine, _, store := newTestEngine(t, srv)
	_, err := engine.Run(context.Background(), Options{
		Organization:           "octo-org",
		OutputFileName:         "octo-org-all_repos-202607301200.csv",
		PageSize:               10,
		ExtraPageSize:          10,
		RateLimitCheckInterval: 60,
		Retry:                  retry.DefaultConfig(),
	})
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "octo-org-all_repos-202607301200.csv", snap.OutputFileName)
}
