package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/plaid"
)

// EnvPrefix prefixes every environment variable read through viper.
const EnvPrefix = "SPICEFLOW"

// DefaultDatabasePath is used when no database path is configured.
const DefaultDatabasePath = "$HOME/.local/share/spiceflow/spiceflow.db"

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr      string
	RateLimit float64 // requests per second
	Burst     int
}

// SyncConfig controls the sync coordinator.
type SyncConfig struct {
	Workers     int
	MaxRestarts int
}

// Config is the resolved application configuration.
type Config struct {
	Logging           LoggingConfig
	Server            ServerConfig
	Plaid             plaid.Config
	DatabasePath      string
	ExcludeCategories []string
	Sync              SyncConfig
}

// aliases maps config keys to the plain environment names they may also
// be read from, after the SPICEFLOW_ prefixed form.
var aliases = map[string][]string{
	"plaid.client_id":   {"PLAID_CLIENT_ID"},
	"plaid.secret":      {"PLAID_SECRET"},
	"plaid.environment": {"PLAID_ENV"},
	"database.url":      {"DATABASE_URL"},
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("plaid.environment", plaid.EnvSandbox)
	v.SetDefault("plaid.client_name", "Spiceflow")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.burst", 30)
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.max_restarts", 3)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
}

// LoadDotEnv loads environment variables from .env files. Missing files
// are ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(ExpandPath(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath: v.GetString("database.path"),
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Plaid: plaid.Config{
			ClientID:    v.GetString("plaid.client_id"),
			Secret:      v.GetString("plaid.secret"),
			Environment: strings.ToLower(v.GetString("plaid.environment")),
			ClientName:  v.GetString("plaid.client_name"),
		},
		Server: ServerConfig{
			Addr:      v.GetString("server.addr"),
			RateLimit: v.GetFloat64("server.rate_limit"),
			Burst:     v.GetInt("server.burst"),
		},
		Sync: SyncConfig{
			Workers:     v.GetInt("sync.workers"),
			MaxRestarts: v.GetInt("sync.max_restarts"),
		},
		ExcludeCategories: v.GetStringSlice("dashboard.exclude_categories"),
	}

	// A database URL only applies when no explicit path was configured.
	if url := v.GetString("database.url"); url != "" && cfg.DatabasePath == DefaultDatabasePath {
		path, err := DatabasePathFromURL(url)
		if err != nil {
			return nil, err
		}
		cfg.DatabasePath = path
	}
	cfg.DatabasePath = ExpandPath(cfg.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabasePathFromURL accepts a SQLite connection URL such as
// file:./dev.db or sqlite:///var/db/ledger.db and returns the file path.
func DatabasePathFromURL(url string) (string, error) {
	for _, prefix := range []string{"sqlite://", "sqlite:", "file://", "file:"} {
		if strings.HasPrefix(url, prefix) {
			url = strings.TrimPrefix(url, prefix)
			break
		}
	}
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	if strings.Contains(url, "://") || url == "" {
		return "", common.NewValidationError("database url", "must point to a SQLite file")
	}
	return url, nil
}

// Validate checks settings every command depends on. Plaid credentials
// are checked separately by RequirePlaid.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database path", common.ErrMissingConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("%w: sync workers must be at least 1", common.ErrInvalidConfig)
	}
	if c.Sync.MaxRestarts < 0 {
		return fmt.Errorf("%w: sync max restarts must not be negative", common.ErrInvalidConfig)
	}
	if c.Server.RateLimit <= 0 || c.Server.Burst < 1 {
		return fmt.Errorf("%w: server rate limit and burst must be positive", common.ErrInvalidConfig)
	}
	switch c.Plaid.Environment {
	case plaid.EnvSandbox, plaid.EnvDevelopment, plaid.EnvProduction:
	default:
		return fmt.Errorf("%w: plaid environment %q must be sandbox, development or production",
			common.ErrInvalidConfig, c.Plaid.Environment)
	}
	return nil
}

// RequirePlaid checks the Plaid credentials.
func (c *Config) RequirePlaid() error {
	if err := c.Plaid.Validate(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrMissingConfig, err)
	}
	return nil
}
