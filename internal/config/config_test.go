package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/plaid"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local/share/spiceflow/spiceflow.db"), cfg.DatabasePath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, plaid.EnvSandbox, cfg.Plaid.Environment)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 3, cfg.Sync.MaxRestarts)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestLoad_PlainEnvNames(t *testing.T) {
	t.Setenv("PLAID_CLIENT_ID", "client")
	t.Setenv("PLAID_SECRET", "secret")
	t.Setenv("PLAID_ENV", "Development")
	t.Setenv("DATABASE_URL", "file:./dev.db")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "client", cfg.Plaid.ClientID)
	assert.Equal(t, "secret", cfg.Plaid.Secret)
	assert.Equal(t, plaid.EnvDevelopment, cfg.Plaid.Environment)
	assert.Equal(t, "./dev.db", cfg.DatabasePath)
	require.NoError(t, cfg.RequirePlaid())
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("PLAID_SECRET", "plain")
	t.Setenv("SPICEFLOW_PLAID_SECRET", "prefixed")
	t.Setenv("SPICEFLOW_SYNC_WORKERS", "8")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Plaid.Secret)
	assert.Equal(t, 8, cfg.Sync.Workers)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/ledger.db
logging:
  level: debug
  format: json
dashboard:
  exclude_categories: [UNCATEGORIZED, Rent]
`), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ledger.db", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"UNCATEGORIZED", "Rent"}, cfg.ExcludeCategories)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "plaid environment", key: "plaid.environment", value: "staging"},
		{name: "log level", key: "logging.level", value: "loud"},
		{name: "log format", key: "logging.format", value: "xml"},
		{name: "workers", key: "sync.workers", value: 0},
		{name: "restarts", key: "sync.max_restarts", value: -1},
		{name: "database url", key: "database.url", value: "postgres://db/ledger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.Error(t, err)
		})
	}
}

func TestRequirePlaid(t *testing.T) {
	cfg := &Config{Plaid: plaid.Config{Environment: plaid.EnvSandbox}}
	err := cfg.RequirePlaid()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMissingConfig))
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestDatabasePathFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "file:./dev.db", want: "./dev.db"},
		{url: "file:./dev.db?connection_limit=1", want: "./dev.db"},
		{url: "sqlite:///var/lib/ledger.db", want: "/var/lib/ledger.db"},
		{url: "/abs/ledger.db", want: "/abs/ledger.db"},
		{url: "postgres://localhost/db", wantErr: true},
		{url: "file:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := DatabasePathFromURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SPICEFLOW_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SPICEFLOW_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("SPICEFLOW_TEST_DOTENV"))
}

func TestLoad_ExplicitPathBeatsURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:./dev.db")

	v := newViper()
	v.Set("database.path", "/data/ledger.db")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/ledger.db", cfg.DatabasePath)
}
