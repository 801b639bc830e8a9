package ghclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
	"github.com/scottluskcis/repo-stats-go/internal/model"
)

const rateLimitQuery = `
query{
  rateLimit{
    limit
    cost
    remaining
    resetAt
  }
}`

// ProbeRateLimits implements spec §4.1's probe_rate_limits with two
// requests, not one: a GraphQL query of the rateLimit field (for GraphQL
// points), then a GET of the REST /rate_limit endpoint (for REST call
// budget). When the REST endpoint reports rate limiting disabled (404), both
// quantities come back as the 10^10 sentinel with an informational message.
func (c *Client) ProbeRateLimits(ctx context.Context) (model.RateLimitProbe, error) {
	var gql struct {
		RateLimit struct {
			Remaining int64 `json:"remaining"`
		} `json:"rateLimit"`
	}
	if err := c.graphQL(ctx, rateLimitQuery, nil, &gql); err != nil {
		return model.RateLimitProbe{}, err
	}

	restRemaining, disabled, err := c.probeRESTRateLimit(ctx)
	if err != nil {
		return model.RateLimitProbe{}, err
	}

	if disabled {
		return model.RateLimitProbe{
			RemainingGraphQL: model.RateLimitDisabledSentinel,
			RemainingREST:    model.RateLimitDisabledSentinel,
			Message:          "rate limiting is disabled on this host",
			Class:            model.RateLimitInfo,
		}, nil
	}

	probe := model.RateLimitProbe{
		RemainingGraphQL: gql.RateLimit.Remaining,
		RemainingREST:    restRemaining,
	}
	switch {
	case gql.RateLimit.Remaining == 0 || restRemaining == 0:
		probe.Class = model.RateLimitError
		probe.Message = "rate limit exhausted"
	case gql.RateLimit.Remaining < 500 || restRemaining < 500:
		probe.Class = model.RateLimitWarning
		probe.Message = "rate limit running low"
	default:
		probe.Class = model.RateLimitInfo
		probe.Message = "rate limit healthy"
	}
	return probe, nil
}

func (c *Client) probeRESTRateLimit(ctx context.Context) (remaining int64, disabled bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rate_limit", nil)
	if err != nil {
		return 0, false, &errs.TransportError{Op: "build rate_limit request", Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, false, &errs.TransportError{Op: "GET /rate_limit", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Some GitHub Enterprise hosts disable rate limiting entirely and
		// 404 this endpoint.
		return 0, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, &errs.TransportError{Op: "GET /rate_limit", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out struct {
		Resources struct {
			Core struct {
				Remaining int64 `json:"remaining"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, false, &errs.TransportError{Op: "decode rate_limit body", Err: err}
	}
	return out.Resources.Core.Remaining, false, nil
}
