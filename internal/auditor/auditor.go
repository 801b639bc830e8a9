// Package auditor implements the missing-repos command (spec §4.7, component
// C7): list every repository an organization currently has, via the REST
// API, and diff that list against the repo_name column of an existing
// harvest output file. This is a deliberately distinct transport from the
// GraphQL-based harvest core — grounded on the REST client shape in
// greg-hellings-devdashboard's repository package — so an auditor run never
// shares failure modes with an in-progress harvest.
package auditor

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Client lists an organization's repositories via REST.
type Client struct {
	gh *github.Client
}

// New builds a Client. baseURL, when non-empty, targets a GitHub Enterprise
// instance via WithEnterpriseURLs.
func New(ctx context.Context, token, baseURL string) (*Client, error) {
	var hc *github.Client
	if token != "" {
		tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		hc = github.NewClient(tc)
	} else {
		hc = github.NewClient(nil)
	}

	if baseURL != "" {
		var err error
		hc, err = hc.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("setting enterprise base url: %w", err)
		}
	}

	return &Client{gh: hc}, nil
}

// ListRepositoryNames pages through every repository in org via
// Repositories.ListByOrg, following Response.NextPage until exhausted.
func (c *Client) ListRepositoryNames(ctx context.Context, org string) ([]string, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var names []string
	for {
		repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories for %s: %w", org, err)
		}
		for _, r := range repos {
			names = append(names, r.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// Report is the result of diffing a live repository list against an output
// file's already-harvested repositories.
type Report struct {
	Organization string
	TotalLive    int
	TotalKnown   int
	Missing      []string
}

// Audit lists org's live repositories and returns those absent from the
// repo_name column of the CSV at outputPath.
func Audit(ctx context.Context, client *Client, org, outputPath string) (Report, error) {
	live, err := client.ListRepositoryNames(ctx, org)
	if err != nil {
		return Report{}, err
	}

	known, err := knownRepoNames(outputPath)
	if err != nil {
		return Report{}, err
	}

	var missing []string
	for _, name := range live {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}

	return Report{
		Organization: org,
		TotalLive:    len(live),
		TotalKnown:   len(known),
		Missing:      missing,
	}, nil
}

// knownRepoNames reads the repo_name column from an existing harvest output
// CSV. A missing file is treated as an empty set (spec §4.7: the auditor
// must run standalone before any harvest has completed).
func knownRepoNames(path string) (map[string]struct{}, error) {
	known := map[string]struct{}{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return known, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return known, nil
	}
	col := -1
	for i, h := range header {
		if h == "Repo_Name" {
			col = i
			break
		}
	}
	if col == -1 {
		return known, nil
	}

	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if col < len(record) {
			known[record[col]] = struct{}{}
		}
	}

	return known, nil
}
