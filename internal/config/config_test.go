package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "")

	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.False(t, s.LLM.Enabled())
	assert.Equal(t, 300, s.LLM.MaxTokens)
	assert.Equal(t, 10*time.Second, s.LLM.Timeout)
	assert.Equal(t, 30, s.Router.GenerativeRatePerMinute)
	assert.Equal(t, 10*time.Minute, s.Cache.ResponseTTL)
	assert.Equal(t, 30*24*time.Hour, s.Unknown.Retention())
	assert.Equal(t, 3*time.Second, s.Perf.MaxLatency)
	assert.NotContains(t, s.Storage.Path, "~")
	assert.False(t, s.Plaid.Enabled)
	assert.False(t, s.SimpleFIN.Enabled)
	assert.False(t, s.Telemetry.Enabled)
	assert.Equal(t, 90*24*time.Hour, s.SimpleFIN.Lookback())
	assert.NotContains(t, s.SimpleFIN.StateFile, "~")
}

func TestLoadFromFile(t *testing.T) {
	s, err := Load(newViper(t, `
logging:
  level: debug
  format: json
llm:
  provider: Anthropic
  anthropic_api_key: sk-test
  model: claude-3-5-haiku-latest
  escalated_model: claude-3-5-sonnet-latest
  timeout: 5s
cache:
  response_ttl: 2m
unknown:
  retention_days: 7
snapshot:
  path: /tmp/snap.json
  ofx_files: ["/tmp/a.ofx", " ", "/tmp/b.qfx"]
`))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", s.LLM.Provider)
	assert.Equal(t, "sk-test", s.LLM.APIKey())
	assert.Equal(t, 5*time.Second, s.LLM.Timeout)

	std := s.LLM.StandardConfig()
	assert.Equal(t, "claude-3-5-haiku-latest", std.Model)
	assert.Equal(t, 300, std.MaxTokens)

	esc := s.LLM.EscalatedConfig()
	assert.Equal(t, "claude-3-5-sonnet-latest", esc.Model)
	assert.Equal(t, 400, esc.MaxTokens)
	assert.Equal(t, 20*time.Second, esc.Timeout)

	assert.Equal(t, 2*time.Minute, s.Cache.ResponseTTL)
	assert.Equal(t, 7*24*time.Hour, s.Unknown.Retention())
	assert.Equal(t, []string{"/tmp/a.ofx", "/tmp/b.qfx"}, s.Snapshot.OFXFiles)
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	v := newViper(t, "llm:\n  provider: openai\n")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", s.LLM.APIKey())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		yaml    string
	}{
		{name: "bad log level", yaml: "logging:\n  level: loud\n", wantErr: common.ErrInvalidConfig},
		{name: "bad log format", yaml: "logging:\n  format: xml\n", wantErr: common.ErrInvalidConfig},
		{name: "unknown provider", yaml: "llm:\n  provider: cohere\n", wantErr: common.ErrInvalidConfig},
		{name: "missing api key", yaml: "llm:\n  provider: openai\n", wantErr: common.ErrMissingConfig},
		{name: "temperature out of range", yaml: "llm:\n  provider: openai\n  openai_api_key: k\n  temperature: 3\n", wantErr: common.ErrInvalidConfig},
		{name: "zero rate", yaml: "router:\n  generative_rate_per_minute: 0\n", wantErr: common.ErrInvalidConfig},
		{name: "negative ttl", yaml: "cache:\n  response_ttl: -1s\n", wantErr: common.ErrInvalidConfig},
		{name: "plaid without credentials", yaml: "plaid:\n  enabled: true\n", wantErr: common.ErrMissingConfig},
		{name: "simplefin without credentials", yaml: "simplefin:\n  enabled: true\n", wantErr: common.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("FINCOACH_TEST_DIR", "/srv/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "db", "x.db"), ExpandPath("~/db/x.db"))
	assert.Equal(t, "/srv/data/x.db", ExpandPath("$FINCOACH_TEST_DIR/x.db"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
}

func TestLoadSheetsConfig(t *testing.T) {
	v := newViper(t, `
sheets:
  service_account_path: /keys/sa.json
  spreadsheet_id: abc123
`)
	cfg, err := LoadSheetsConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "abc123", cfg.SpreadsheetID)
	assert.Equal(t, "Unanswered Questions", cfg.SpreadsheetName)

	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "refresh")
	cfg, err = LoadSheetsConfig(newViperKeepEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)

	_, err = LoadSheetsConfig(newViper(t, ""))
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func newViperKeepEnv(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}
