package ghclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
)

func probeServer(t *testing.T, graphqlRemaining, restRemaining int64, restNotFound bool) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"rateLimit": map[string]any{"remaining": graphqlRemaining}},
		})
	})
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		if restNotFound {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"resources": map[string]any{"core": map[string]any{"remaining": restRemaining}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.Client(), srv.URL, nil, logging.Nop())
}

func TestProbeRateLimitsHealthy(t *testing.T) {
	client := probeServer(t, 4000, 4000, false)
	probe, err := client.ProbeRateLimits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RateLimitInfo, probe.Class)
	assert.EqualValues(t, 4000, probe.RemainingGraphQL)
}

func TestProbeRateLimitsWarningBelowThreshold(t *testing.T) {
	client := probeServer(t, 400, 4000, false)
	probe, err := client.ProbeRateLimits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RateLimitWarning, probe.Class)
}

func TestProbeRateLimitsErrorWhenExhausted(t *testing.T) {
	client := probeServer(t, 0, 4000, false)
	probe, err := client.ProbeRateLimits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RateLimitError, probe.Class)
}

func TestProbeRateLimitsDisabledHostReturnsSentinel(t *testing.T) {
	client := probeServer(t, 1000, 0, true)
	probe, err := client.ProbeRateLimits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RateLimitDisabledSentinel, probe.RemainingGraphQL)
	assert.Equal(t, model.RateLimitDisabledSentinel, probe.RemainingREST)
	assert.Equal(t, model.RateLimitInfo, probe.Class)
}
