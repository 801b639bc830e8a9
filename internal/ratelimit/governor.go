// Package ratelimit implements the rate-limit governor (spec §4.3,
// component C3): a periodic quota probe that yields a continue/pause/fatal
// directive, plus a token-bucket pacer (golang.org/x/time/rate) smoothing
// request bursts between probes.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
	"github.com/scottluskcis/repo-stats-go/internal/ghclient"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/model"
)

// Directive is the governor's verdict for the harvest engine.
type Directive int

const (
	Continue Directive = iota
	Pause
	Fatal
)

// Governor owns the probe cadence, the pause-escalation cap, and the
// request pacer.
type Governor struct {
	client       *ghclient.Client
	log          logging.Logger
	pauseCount   int
	pauseCap     int
	limiter      *rate.Limiter
}

// New builds a Governor. pauseCap bounds how many consecutive error-class
// probes are tolerated before the directive is escalated to Fatal (spec
// §4.3).
func New(client *ghclient.Client, log logging.Logger, pauseCap int) *Governor {
	if pauseCap <= 0 {
		pauseCap = 3
	}
	return &Governor{
		client:   client,
		log:      log,
		pauseCap: pauseCap,
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
}

// Wait blocks until the pacer's token bucket allows the next request. It is
// a no-op until the first probe has sized the bucket.
func (g *Governor) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Check calls probe_rate_limits and returns a directive per spec §4.3: pause
// when either budget is exhausted (escalated to fatal past pauseCap
// consecutive error-class probes), continue otherwise — logging the
// remaining quotas either way.
func (g *Governor) Check(ctx context.Context) (Directive, error) {
	probe, err := g.client.ProbeRateLimits(ctx)
	if err != nil {
		return Fatal, err
	}

	g.resizeBucket(probe)

	switch {
	case probe.RemainingGraphQL <= 0 || probe.RemainingREST <= 0:
		g.log.Warn("ratelimit.governor.pause", "graphql_remaining", probe.RemainingGraphQL, "rest_remaining", probe.RemainingREST, "message", probe.Message)
		if probe.Class == model.RateLimitError {
			g.pauseCount++
			if g.pauseCount > g.pauseCap {
				return Fatal, &errs.RateLimitError{Message: probe.Message, Fatal: true}
			}
		}
		return Pause, nil
	case probe.Class == model.RateLimitError:
		g.pauseCount++
		if g.pauseCount > g.pauseCap {
			return Fatal, &errs.RateLimitError{Message: probe.Message, Fatal: true}
		}
		return Pause, nil
	default:
		g.pauseCount = 0
		g.log.Info("ratelimit.governor.continue", "graphql_remaining", probe.RemainingGraphQL, "rest_remaining", probe.RemainingREST)
		return Continue, nil
	}
}

// resizeBucket sizes the pacer so the remaining GraphQL budget is spread
// evenly over the hour GitHub's primary rate-limit window resets on — the
// same "spread remaining calls evenly" idiom the corpus's own REST client
// uses, generalized into a standing token bucket instead of an ad hoc sleep.
func (g *Governor) resizeBucket(probe model.RateLimitProbe) {
	if probe.RemainingGraphQL >= model.RateLimitDisabledSentinel {
		g.limiter.SetLimit(rate.Inf)
		return
	}
	const window = time.Hour
	perSecond := float64(probe.RemainingGraphQL) / window.Seconds()
	if perSecond <= 0 {
		perSecond = 0.01
	}
	g.limiter.SetLimit(rate.Limit(perSecond))
}
