// Command repo-stats harvests per-repository statistics for a GitHub
// organization and audits an organization's repository list against a
// previous harvest's output. Grounded on the teacher's command/*.Run(args
// []string) pattern, re-platformed onto spf13/cobra per SPEC_FULL.md §4.9.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scottluskcis/repo-stats-go/internal/auditor"
	"github.com/scottluskcis/repo-stats-go/internal/config"
	"github.com/scottluskcis/repo-stats-go/internal/ghclient"
	"github.com/scottluskcis/repo-stats-go/internal/harvest"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
	"github.com/scottluskcis/repo-stats-go/internal/ratelimit"
	"github.com/scottluskcis/repo-stats-go/internal/retry"
	"github.com/scottluskcis/repo-stats-go/internal/sink"
	"github.com/scottluskcis/repo-stats-go/internal/state"
	"github.com/scottluskcis/repo-stats-go/internal/status"
	"github.com/scottluskcis/repo-stats-go/internal/summary"
)

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo-stats",
		Short: "GitHub organization repository statistics harvester",
	}
	cmd.AddCommand(newRepoStatsCmd())
	cmd.AddCommand(newMissingReposCmd())
	return cmd
}

// authFlags is the auth/transport option set shared by both subcommands.
type authFlags struct {
	accessToken       string
	appID             string
	privateKey        string
	privateKeyFile    string
	appInstallationID string
	baseURL           string
	proxyURL          string
	verbose           bool
	pageSize          int
}

func (f *authFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.accessToken, "access-token", "", "GitHub personal access token")
	fs.StringVar(&f.appID, "app-id", "", "GitHub App ID")
	fs.StringVar(&f.privateKey, "private-key", "", "GitHub App private key (PEM, literal)")
	fs.StringVar(&f.privateKeyFile, "private-key-file", "", "GitHub App private key (PEM file path)")
	fs.StringVar(&f.appInstallationID, "app-installation-id", "", "GitHub App installation ID")
	fs.StringVar(&f.baseURL, "base-url", "https://api.github.com", "GitHub API base URL")
	fs.StringVar(&f.proxyURL, "proxy-url", "", "HTTP/HTTPS proxy URL")
	fs.BoolVar(&f.verbose, "verbose", false, "enable debug logging")
	fs.IntVar(&f.pageSize, "page-size", 10, "organization walk page size")
}

func buildClient(ctx context.Context, f authFlags, log logging.Logger) (*ghclient.Client, error) {
	var appCreds *ghclient.AppCredentials
	if f.appID != "" {
		keyBytes, err := ghclient.LoadPrivateKey(f.privateKey, f.privateKeyFile)
		if err != nil {
			return nil, err
		}
		appCreds = &ghclient.AppCredentials{
			AppID:          f.appID,
			InstallationID: f.appInstallationID,
			PrivateKeyPEM:  keyBytes,
		}
	}

	httpClient, tokens, err := ghclient.NewAuthenticatedClient(ctx, f.baseURL, f.accessToken, f.proxyURL, appCreds)
	if err != nil {
		return nil, err
	}

	return ghclient.New(httpClient, f.baseURL, tokens, log), nil
}

func newRepoStatsCmd() *cobra.Command {
	var auth authFlags
	var (
		orgName                string
		extraPageSize          int
		rateLimitCheckInterval int
		retryMaxAttempts       int
		retryInitialDelayMS    int
		retryMaxDelayMS        int
		retryBackoffFactor     float64
		retrySuccessThreshold  int
		resumeFromLastSave     bool
		statusAddr             string
		configPath             string
	)

	c := &cobra.Command{
		Use:   "repo-stats",
		Short: "Harvest per-repository statistics for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyEnvOverrides(cmd.Flags())
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}

			defaults, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if orgName == "" {
				orgName = defaults.OrgName
			}
			if _, inEnv := os.LookupEnv("BASE_URL"); defaults.BaseURL != "" && !inEnv && !cmd.Flags().Changed("base-url") {
				auth.baseURL = defaults.BaseURL
			}
			if orgName == "" {
				return fmt.Errorf("org-name is required")
			}

			log, closeLog, err := logging.New(auth.verbose, logging.LogFilePath(orgName))
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			client, err := buildClient(ctx, auth, log)
			if err != nil {
				return err
			}

			governor := ratelimit.New(client, log, 3)
			store := state.New(state.DefaultPath, log)

			// Peek the durable state for a bound output file (spec §3's
			// output_file_name) so a resumed run reopens the same sink
			// instead of starting a fresh, differently-named one.
			outPath := sink.FileName(orgName, time.Now())
			if peeked, resumedPeek, peekErr := store.Load(resumeFromLastSave); peekErr == nil && resumedPeek && peeked.OutputFileName != "" {
				outPath = peeked.OutputFileName
			}
			csvSink, err := sink.Open(outPath)
			if err != nil {
				return err
			}
			defer csvSink.Close()

			if statusAddr != "" {
				srv := status.New(store, func() string { return outPath })
				go func() {
					if err := srv.Start(statusAddr); err != nil {
						log.Warn("status.server.stopped", "error", err)
					}
				}()
			}

			engine := harvest.New(client, governor, store, csvSink, log)

			retryCfg := retry.Config{
				MaxAttempts:      firstPositive(retryMaxAttempts, defaults.RetryMaxAttempts, retry.DefaultConfig().MaxAttempts),
				InitialDelay:     firstPositiveDuration(retryInitialDelayMS, defaults.RetryInitialDelayMS, int(retry.DefaultConfig().InitialDelay/time.Millisecond)),
				MaxDelay:         firstPositiveDuration(retryMaxDelayMS, defaults.RetryMaxDelayMS, int(retry.DefaultConfig().MaxDelay/time.Millisecond)),
				BackoffFactor:    firstPositiveFloat(retryBackoffFactor, defaults.RetryBackoffFactor, retry.DefaultConfig().BackoffFactor),
				SuccessThreshold: firstPositive(retrySuccessThreshold, defaults.RetrySuccessThreshold, retry.DefaultConfig().SuccessThreshold),
			}

			res, err := engine.Run(ctx, harvest.Options{
				Organization:           orgName,
				Resume:                 resumeFromLastSave,
				OutputFileName:         outPath,
				PageSize:               auth.pageSize,
				ExtraPageSize:          firstPositive(extraPageSize, defaults.ExtraPageSize, 50),
				RateLimitCheckInterval: firstPositive(rateLimitCheckInterval, defaults.RateLimitCheckInterval, 60),
				Retry:                  retryCfg,
			})
			if err != nil {
				return err
			}

			summary.PrintRun(cmd.OutOrStdout(), orgName, outPath, res)
			return nil
		},
	}

	c.Flags().StringVar(&orgName, "org-name", "", "GitHub organization login (required)")
	auth.register(c.Flags())
	// Tuning flags default to 0 so that, when neither the flag nor its
	// environment variable is set, the YAML value and then the built-in
	// default are used (see the firstPositive calls in RunE).
	c.Flags().IntVar(&extraPageSize, "extra-page-size", 0, "embedded/sub-pagination page size (default 50)")
	c.Flags().IntVar(&rateLimitCheckInterval, "rate-limit-check-interval", 0, "rows between rate-limit probes (default 60)")
	c.Flags().IntVar(&retryMaxAttempts, "retry-max-attempts", 0, "max attempts for the whole harvest run (default 3)")
	c.Flags().IntVar(&retryInitialDelayMS, "retry-initial-delay", 0, "initial retry delay in ms (default 1000)")
	c.Flags().IntVar(&retryMaxDelayMS, "retry-max-delay", 0, "max retry delay in ms (default 30000)")
	c.Flags().Float64Var(&retryBackoffFactor, "retry-backoff-factor", 0, "exponential backoff factor (default 2)")
	c.Flags().IntVar(&retrySuccessThreshold, "retry-success-threshold", 0, "consecutive successes before retry budget resets (default 5)")
	c.Flags().BoolVar(&resumeFromLastSave, "resume-from-last-save", false, "resume from last_known_state.json")
	c.Flags().StringVar(&statusAddr, "status-addr", "", "optional host:port to serve read-only status on")
	c.Flags().StringVar(&configPath, "config", "", "optional YAML defaults file")

	return c
}

func newMissingReposCmd() *cobra.Command {
	var auth authFlags
	var (
		orgName        string
		outputFileName string
	)

	c := &cobra.Command{
		Use:   "missing-repos",
		Short: "Diff an organization's live repository list against a prior harvest output",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyEnvOverrides(cmd.Flags())
			if orgName == "" {
				return fmt.Errorf("org-name is required")
			}
			if outputFileName == "" {
				return fmt.Errorf("output-file-name is required")
			}

			log, closeLog, err := logging.New(auth.verbose, "")
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			client, err := auditor.New(ctx, auth.accessToken, auth.baseURL)
			if err != nil {
				return err
			}

			report, err := auditor.Audit(ctx, client, orgName, outputFileName)
			if err != nil {
				return err
			}

			log.Info("missing_repos.report", "org", report.Organization, "live", report.TotalLive, "known", report.TotalKnown, "missing", len(report.Missing))
			for _, name := range report.Missing {
				fmt.Println(name)
			}
			return nil
		},
	}

	c.Flags().StringVar(&orgName, "org-name", "", "GitHub organization login (required)")
	c.Flags().StringVar(&outputFileName, "output-file-name", "", "existing harvest output CSV to diff against (required)")
	auth.register(c.Flags())

	return c
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveDuration(msVals ...int) time.Duration {
	for _, ms := range msVals {
		if ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 0
}

// applyEnvOverrides lets every flag additionally be set by a matching
// upper-snake-cased environment variable, for any flag the user did not pass
// explicitly on the command line (spec §6: "every option additionally
// accepts a matching environment variable").
func applyEnvOverrides(fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		if fl.Changed {
			return
		}
		envName := strings.ToUpper(strings.ReplaceAll(fl.Name, "-", "_"))
		if v, ok := os.LookupEnv(envName); ok {
			_ = fl.Value.Set(v)
		}
	})
}
