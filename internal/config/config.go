// Package config loads the server and CLI settings.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, then
// environment variables. A missing config file is not an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vibeteen/vibe-teen/internal/viewport"
)

// EnvConfigPath names the env var that points at the YAML file.
const EnvConfigPath = "VIBETEEN_CONFIG"

// Config is the full application configuration.
type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	// JWTSecret signs session tokens. Required by serve.
	JWTSecret   string   `yaml:"jwt_secret"`
	AdminEmails []string `yaml:"admin_emails"`

	Feed        FeedConfig        `yaml:"feed"`
	Viewport    viewport.Config   `yaml:"viewport"`
	Inspiration InspirationConfig `yaml:"inspiration"`
	Google      GoogleConfig      `yaml:"google"`
}

// FeedConfig controls the snapshot the mural is built from.
type FeedConfig struct {
	Limit        int    `yaml:"limit"`
	CellSize     int    `yaml:"cell_size"`
	PollInterval string `yaml:"poll_interval"`
}

// InspirationConfig selects where the mission of the day comes from. With
// neither an API key nor a feed URL, the fallback text is always shown.
type InspirationConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Prompt   string `yaml:"prompt"`
	FeedURL  string `yaml:"feed_url"`
	Fallback string `yaml:"fallback"`
	Timeout  string `yaml:"timeout"`
}

// GoogleConfig enables admin sign-in through Google when ClientID is set.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether Google sign-in routes should be mounted.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:     8080,
		DBPath:   "data/vibeteen.db",
		LogLevel: "info",
		Feed: FeedConfig{
			Limit:        200,
			CellSize:     160,
			PollInterval: "5s",
		},
		Viewport: viewport.DefaultConfig(),
		Inspiration: InspirationConfig{
			Timeout: "8s",
		},
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// env overrides. An empty path falls back to $VIBETEEN_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if cfg.Google.CallbackURL == "" {
		cfg.Google.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		c.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		c.AdminEmails = splitList(v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Inspiration.APIKey = v
	}
	if v := os.Getenv("INSPIRATION_FEED_URL"); v != "" {
		c.Inspiration.FeedURL = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_CALLBACK_URL"); v != "" {
		c.Google.CallbackURL = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks ranges. It does not require JWTSecret; serve checks that
// itself since the CLI client commands don't need one.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is empty"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Feed.Limit < 1 || c.Feed.Limit > 500 {
		errs = append(errs, fmt.Errorf("feed.limit %d must be in [1, 500]", c.Feed.Limit))
	}
	if c.Feed.CellSize < 1 {
		errs = append(errs, fmt.Errorf("feed.cell_size %d must be positive", c.Feed.CellSize))
	}
	if _, err := parsePositive("feed.poll_interval", c.Feed.PollInterval); err != nil {
		errs = append(errs, err)
	}
	if _, err := parsePositive("inspiration.timeout", c.Inspiration.Timeout); err != nil {
		errs = append(errs, err)
	}
	if err := c.Viewport.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// PollInterval is how often the hub re-reads the store. Invalid values fall
// back to 5s; Validate reports them.
func (c *Config) PollInterval() time.Duration {
	d, err := parsePositive("", c.Feed.PollInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// InspirationTimeout bounds one mission fetch.
func (c *Config) InspirationTimeout() time.Duration {
	d, err := parsePositive("", c.Inspiration.Timeout)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

func parsePositive(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, s)
	}
	return d, nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Logger builds the text logger for the configured level.
func (c *Config) Logger() *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
