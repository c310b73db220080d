package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BaseURLEnv overrides Config.BaseURL when set, so deployments can keep the
// spreadsheet endpoint out of the config file.
const BaseURLEnv = "ROSTER_API_BASE_URL"

// Supported values for Config.DateOrder.
const (
	DateOrderDMY = "dmy"
	DateOrderMDY = "mdy"
)

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Local"
	defaultTeamResource = "team"
	defaultPollSeconds  = 60
	defaultLocale       = "en-US"
	defaultLogLevel     = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the JSON API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the JSON API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for month boundaries and for
	// converting zoned timestamps to calendar dates. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// BaseURL is the spreadsheet API endpoint. It may be empty at startup;
	// every remote call then fails with a configuration error.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// TeamResource is the value of the "resource" query parameter selecting
	// the team roster sheet.
	TeamResource string `yaml:"team_resource" json:"team_resource"`

	// PollIntervalSeconds is the delay between a settled fetch and the next poll.
	PollIntervalSeconds int `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`

	// HTTPTimeoutSeconds bounds each remote call. Zero keeps the transport default.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" json:"http_timeout_seconds"`

	// DateOrder selects how slash-delimited dates are read:
	//   - "dmy" (default): 15/03/2024
	//   - "mdy": 03/15/2024
	DateOrder string `yaml:"date_order" json:"date_order"`

	// Locale is used for weekday names sent to the API and for name collation.
	Locale string `yaml:"locale" json:"locale"`

	// ReferenceMonth pins the displayed month ("2024-03"). Empty means the
	// calendar follows the month after the current one.
	ReferenceMonth string `yaml:"reference_month,omitempty" json:"reference_month,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		Timezone:            defaultTimezone,
		BaseURL:             "",
		TeamResource:        defaultTeamResource,
		PollIntervalSeconds: defaultPollSeconds,
		HTTPTimeoutSeconds:  0,
		DateOrder:           DateOrderDMY,
		Locale:              defaultLocale,
		LogLevel:            defaultLogLevel,
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.TeamResource == "" {
		c.TeamResource = defaultTeamResource
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = defaultPollSeconds
	}
	if c.HTTPTimeoutSeconds < 0 {
		c.HTTPTimeoutSeconds = 0
	}
	switch strings.ToLower(c.DateOrder) {
	case DateOrderDMY, DateOrderMDY:
		c.DateOrder = strings.ToLower(c.DateOrder)
	default:
		// Unknown or empty; keep the day-first reading the sheet was built with.
		c.DateOrder = DateOrderDMY
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// applyEnvOverrides lets the environment win over the file for values that
// differ per deployment.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		c.BaseURL = v
	}
}

// PollInterval returns the poll delay as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// HTTPTimeout returns the per-call timeout; zero means none.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == defaultTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// PinnedMonth parses ReferenceMonth. ok is false when no month is pinned.
func (c *Config) PinnedMonth(loc *time.Location) (t time.Time, ok bool, err error) {
	if c.ReferenceMonth == "" {
		return time.Time{}, false, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err = time.ParseInLocation("2006-01", c.ReferenceMonth, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// In both cases environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.applyEnvOverrides()
				return cfg, err
			}
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".rostercal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
