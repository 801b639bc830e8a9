package ghclient

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
)

// AppCredentials configure the GitHub-App installation-token exchange path.
type AppCredentials struct {
	AppID          string
	InstallationID string
	PrivateKeyPEM  []byte
}

// installationTokenSource mints a fresh installation access token via the
// GitHub App JWT exchange whenever the cached token is within safety of
// expiry. It implements oauth2.TokenSource so it can drive the same
// *http.Client plumbing as a plain access-token run.
type installationTokenSource struct {
	ctx        context.Context
	baseURL    string
	httpClient *http.Client
	creds      AppCredentials
	key        *rsa.PrivateKey

	mu      sync.Mutex
	cached  *oauth2.Token
}

const installationTokenSafetyMargin = 2 * time.Minute

// newInstallationTokenSource parses the App's RSA private key once and
// returns a TokenSource that mints installation tokens on demand. The cache
// lives in the returned source, so it is shared by everything built from
// that source; there is no package-level cache.
func newInstallationTokenSource(ctx context.Context, httpClient *http.Client, baseURL string, creds AppCredentials) (oauth2.TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(creds.PrivateKeyPEM)
	if err != nil {
		return nil, &errs.AuthError{Reason: "parsing app private key", Err: err}
	}
	src := &installationTokenSource{ctx: ctx, baseURL: baseURL, httpClient: httpClient, creds: creds, key: key}
	return oauth2.ReuseTokenSource(nil, src), nil
}

// Token implements oauth2.TokenSource. It is safe for concurrent use: minting
// mutates this source's cached token, guarded by mu.
func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Until(s.cached.Expiry) > installationTokenSafetyMargin {
		return s.cached, nil
	}

	appJWT, err := s.signAppJWT()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", s.baseURL, s.creds.InstallationID)
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, &errs.AuthError{Reason: "building installation token request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &errs.AuthError{Reason: "exchanging app jwt for installation token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, &errs.AuthError{Reason: fmt.Sprintf("installation token endpoint returned %d", resp.StatusCode)}
	}

	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &errs.AuthError{Reason: "decoding installation token response", Err: err}
	}

	tok := &oauth2.Token{AccessToken: out.Token, TokenType: "Bearer", Expiry: out.ExpiresAt}
	s.cached = tok
	return tok, nil
}

// signAppJWT builds the short-lived RS256 JWT GitHub Apps authenticate with:
// iss is the app id, iat is backdated 30s and exp is 9 minutes out, a
// 9.5-minute window (GitHub caps it at 10).
func (s *installationTokenSource) signAppJWT() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Add(-30 * time.Second).Unix(),
		"exp": now.Add(9 * time.Minute).Unix(),
		"iss": s.creds.AppID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", &errs.AuthError{Reason: "signing app jwt", Err: err}
	}
	return signed, nil
}

// NewAuthenticatedClient builds the *http.Client used for every GraphQL and
// REST call the facade makes: either a static-token oauth2 client (PAT) or
// one backed by the installation-token source above. proxyURL, when set, is
// layered onto the underlying transport both paths share.
func NewAuthenticatedClient(ctx context.Context, baseURL, accessToken, proxyURL string, app *AppCredentials) (*http.Client, oauth2.TokenSource, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, nil, &errs.ConfigError{Reason: "invalid proxy-url: " + err.Error()}
		}
		transport.Proxy = http.ProxyURL(u)
	}
	base := &http.Client{Timeout: 30 * time.Second, Transport: transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	if accessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		return oauth2.NewClient(ctx, ts), ts, nil
	}

	if app != nil {
		ts, err := newInstallationTokenSource(ctx, base, baseURL, *app)
		if err != nil {
			return nil, nil, err
		}
		return oauth2.NewClient(ctx, ts), ts, nil
	}

	return nil, nil, &errs.ConfigError{Reason: "no access-token or app credentials supplied"}
}

// LoadPrivateKey reads a PEM-encoded RSA private key either from the literal
// string or, when empty, from the given file path.
func LoadPrivateKey(literal, filePath string) ([]byte, error) {
	if literal != "" {
		return []byte(literal), nil
	}
	if filePath != "" {
		b, err := os.ReadFile(filePath)
		if err != nil {
			return nil, &errs.ConfigError{Reason: fmt.Sprintf("reading private-key-file %q: %v", filePath, err)}
		}
		return b, nil
	}
	return nil, &errs.ConfigError{Reason: "app auth requires private-key or private-key-file"}
}
