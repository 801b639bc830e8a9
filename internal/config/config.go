// Package config supplies the optional YAML defaults file for the CLI
// (spec §4.9/§6's --config flag): org name, base URL, and retry/rate-limit
// tuning knobs, loaded before flag/env resolution so a flag or env var can
// still override it. Grounded on the teacher's connectors/config loader,
// narrowed to this tool's actual option surface.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults is the shape of an optional --config/CONFIG_PATH YAML file.
type Defaults struct {
	OrgName string `yaml:"org_name"`
	BaseURL string `yaml:"base_url"`

	PageSize               int     `yaml:"page_size"`
	ExtraPageSize          int     `yaml:"extra_page_size"`
	RateLimitCheckInterval int     `yaml:"rate_limit_check_interval"`
	RetryMaxAttempts       int     `yaml:"retry_max_attempts"`
	RetryInitialDelayMS    int     `yaml:"retry_initial_delay_ms"`
	RetryMaxDelayMS        int     `yaml:"retry_max_delay_ms"`
	RetryBackoffFactor     float64 `yaml:"retry_backoff_factor"`
	RetrySuccessThreshold  int     `yaml:"retry_success_threshold"`
}

// Load parses the YAML defaults file at path. A missing path is not an
// error — it simply yields zero-value Defaults, so every field falls
// through to its flag default.
func Load(path string) (Defaults, error) {
	if path == "" {
		return Defaults{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults{}, nil
		}
		return Defaults{}, err
	}

	var d Defaults
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Defaults{}, err
	}
	return d, nil
}
