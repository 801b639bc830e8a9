// Package ghclient is the remote client facade (spec §4.1, component C1):
// typed iterators over organization repositories and their issues/pull
// requests, a rate-limit probe, and auth-token minting. Grounded on the
// teacher's connectors/github client — a thin *http.Client wrapper posting
// hand-rolled GraphQL queries — generalized from PR/issue listing into the
// org-walk + sub-pagination shape the spec requires, and re-platformed onto
// an oauth2.TokenSource so the access-token and GitHub-App paths share one
// RoundTripper.
package ghclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
)

const (
	defaultBaseURL  = "https://api.github.com"
	graphQLSuffix   = "/graphql"
	rateSafetyMargin = 2 * time.Second
)

// Client is the facade described by spec §4.1.
type Client struct {
	http    *http.Client
	baseURL string
	log     logging.Logger
	tokens  oauth2.TokenSource
}

// New builds a Client. httpClient must already carry auth (see
// NewAuthenticatedClient); baseURL defaults to the public GitHub API. tokens,
// when non-nil, backs MintInstallationToken.
func New(httpClient *http.Client, baseURL string, tokens oauth2.TokenSource, log logging.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), log: log, tokens: tokens}
}

// MintInstallationToken forces a (cached or freshly minted) token fetch,
// useful when a row-sink collaborator needs to hand the same credential to a
// spawned child process (spec §4.1).
func (c *Client) MintInstallationToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", &errs.ConfigError{Reason: "client has no token source configured"}
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", &errs.AuthError{Reason: "minting token", Err: err}
	}
	return tok.AccessToken, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// graphQL posts a query/variables payload and decodes into out. It handles
// the server-advertised primary/secondary rate-limit signal itself (a
// transport-level retry distinct from the engine-level retry envelope), per
// spec §4.1's failure semantics.
func (c *Client) graphQL(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return &errs.RemoteQueryError{Message: err.Error()}
	}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphQLSuffix, bytes.NewReader(body))
		if err != nil {
			return &errs.TransportError{Op: "build graphql request", Err: err}
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return &errs.TransportError{Op: "graphql POST", Err: err}
		}

		if slept, retry := c.sleepIfPrimaryLimited(resp); retry {
			_ = slept
			continue
		}

		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &errs.TransportError{Op: "graphql POST", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return &errs.TransportError{Op: "read graphql body", Err: err}
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []graphQLError  `json:"errors"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return &errs.RemoteQueryError{Message: "decoding graphql envelope: " + err.Error()}
		}

		if len(envelope.Errors) > 0 {
			msgs := make([]string, 0, len(envelope.Errors))
			for _, e := range envelope.Errors {
				msgs = append(msgs, e.Message)
			}
			if c.isSecondaryRateLimited(msgs) {
				c.sleepSecondaryLimit(resp)
				continue
			}
			if isPageSizeComplaint(msgs) {
				return &errs.RemoteQueryError{Message: strings.Join(msgs, "; "), Hint: "consider reducing page size"}
			}
			return &errs.RemoteQueryError{Message: strings.Join(msgs, "; ")}
		}

		if out != nil {
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return &errs.RemoteQueryError{Message: "decoding graphql data: " + err.Error()}
			}
		}
		return nil
	}
}

// sleepIfPrimaryLimited handles the HTTP-level 403/429 primary rate limit
// signal: sleeps the advertised retry-after and tells the caller to retry.
func (c *Client) sleepIfPrimaryLimited(resp *http.Response) (slept bool, retry bool) {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false, false
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" && resp.Header.Get("Retry-After") == "" {
		return false, false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	wait := rateSafetyMargin
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			wait = time.Duration(secs)*time.Second + rateSafetyMargin
		}
	} else if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if sec, err := strconv.ParseInt(reset, 10, 64); err == nil {
			wait = time.Until(time.Unix(sec, 0)) + rateSafetyMargin
		}
	}
	if wait > 0 {
		c.log.Warn("ghclient.primary_rate_limit.sleep", "wait", wait)
		time.Sleep(wait)
	}
	return true, true
}

// isSecondaryRateLimited inspects GraphQL error messages for the secondary
// (abuse-detection) rate-limit phrasing GitHub returns inline with HTTP 200.
func (c *Client) isSecondaryRateLimited(messages []string) bool {
	for _, m := range messages {
		lm := strings.ToLower(m)
		if strings.Contains(lm, "secondary rate limit") || strings.Contains(lm, "abuse detection") {
			return true
		}
	}
	return false
}

func (c *Client) sleepSecondaryLimit(resp *http.Response) {
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	wait := 60 * time.Second
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			wait = time.Duration(secs)*time.Second + rateSafetyMargin
		}
	}
	c.log.Warn("ghclient.secondary_rate_limit.sleep", "wait", wait)
	time.Sleep(wait)
}

func isPageSizeComplaint(messages []string) bool {
	for _, m := range messages {
		lm := strings.ToLower(m)
		if strings.Contains(lm, "too many") || strings.Contains(lm, "page size") || strings.Contains(lm, "timeout") {
			return true
		}
	}
	return false
}
