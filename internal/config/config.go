package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/llm"
	"github.com/Veraticus/fincoach/internal/plaid"
	"github.com/spf13/viper"
)

// Settings is the typed view of the configuration file, environment and
// flags.
type Settings struct {
	Logging   LoggingSettings
	LLM       LLMSettings
	Storage   StorageSettings
	Snapshot  SnapshotSettings
	Plaid     PlaidSettings
	SimpleFIN SimpleFINSettings
	Cache     CacheSettings
	Unknown   UnknownSettings
	Perf      PerfSettings
	Router    RouterSettings
	Telemetry TelemetrySettings
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
}

// LLMSettings configures the standard and escalated generation tiers. An
// empty Provider disables generation; answers then come from the local
// executor's summaries.
type LLMSettings struct {
	Provider           string
	Model              string
	EscalatedModel     string
	OpenAIAPIKey       string
	AnthropicAPIKey    string
	BaseURL            string
	Temperature        float64
	MaxTokens          int
	EscalatedMaxTokens int
	Timeout            time.Duration
	EscalatedTimeout   time.Duration
}

// Enabled reports whether a generation provider is configured.
func (s LLMSettings) Enabled() bool {
	return s.Provider != "" && s.Provider != "none"
}

// APIKey returns the key for the configured provider.
func (s LLMSettings) APIKey() string {
	switch s.Provider {
	case "openai":
		return s.OpenAIAPIKey
	case "anthropic":
		return s.AnthropicAPIKey
	}
	return ""
}

// StandardConfig is the client config for the standard tier.
func (s LLMSettings) StandardConfig() llm.Config {
	return llm.Config{
		Provider:    s.Provider,
		APIKey:      s.APIKey(),
		Model:       s.Model,
		BaseURL:     s.BaseURL,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Timeout:     s.Timeout,
	}
}

// EscalatedConfig is the client config for the escalated tier. It falls back
// to the standard model when no escalated model is set.
func (s LLMSettings) EscalatedConfig() llm.Config {
	cfg := s.StandardConfig()
	if s.EscalatedModel != "" {
		cfg.Model = s.EscalatedModel
	}
	cfg.MaxTokens = s.EscalatedMaxTokens
	cfg.Timeout = s.EscalatedTimeout
	return cfg
}

// StorageSettings locates the SQLite database.
type StorageSettings struct {
	Path string
}

// SnapshotSettings lists local snapshot sources.
type SnapshotSettings struct {
	Path     string
	OFXFiles []string
}

// PlaidSettings configures the Plaid provider.
type PlaidSettings struct {
	ClientID     string
	Secret       string
	Environment  string
	AccessToken  string
	Enabled      bool
	LookbackDays int
}

// ClientConfig converts to the Plaid client configuration.
func (s PlaidSettings) ClientConfig() plaid.Config {
	return plaid.Config{
		ClientID:    s.ClientID,
		Secret:      s.Secret,
		Environment: s.Environment,
		AccessToken: s.AccessToken,
	}
}

// Lookback is the transaction window as a duration.
func (s PlaidSettings) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

// SimpleFINSettings configures the SimpleFIN Bridge provider. AccessURL wins
// over Token; a claimed token is cached in StateFile.
type SimpleFINSettings struct {
	Token        string
	AccessURL    string
	StateFile    string
	Enabled      bool
	LookbackDays int
}

// Lookback is the transaction window as a duration.
func (s SimpleFINSettings) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

// CacheSettings configures the answerability and response caches.
type CacheSettings struct {
	AnswerabilityTTL time.Duration
	ResponseTTL      time.Duration
	MaxEntries       int
}

// UnknownSettings configures the unknown-query log.
type UnknownSettings struct {
	MaxEntries     int
	RetentionDays  int
	RetentionFloor int
}

// Retention is the rolling window as a duration.
func (s UnknownSettings) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// PerfSettings are the per-request budgets.
type PerfSettings struct {
	MaxLatency time.Duration
	MaxTokens  int
}

// RouterSettings configures the generative routing pass.
type RouterSettings struct {
	GenerativeRatePerMinute int
}

// TelemetrySettings configures span export. Spans go to stderr when enabled.
type TelemetrySettings struct {
	Enabled bool
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.escalated_max_tokens", 400)
	v.SetDefault("llm.timeout", 10*time.Second)
	v.SetDefault("llm.escalated_timeout", 20*time.Second)

	v.SetDefault("router.generative_rate_per_minute", llm.DefaultIntentRatePerMinute)

	v.SetDefault("cache.answerability_ttl", 5*time.Minute)
	v.SetDefault("cache.response_ttl", 10*time.Minute)
	v.SetDefault("cache.max_entries", 1024)

	v.SetDefault("unknown.max_entries", 500)
	v.SetDefault("unknown.retention_days", 30)
	v.SetDefault("unknown.retention_floor", 5)

	v.SetDefault("perf.max_latency", 3*time.Second)
	v.SetDefault("perf.max_tokens", 1200)

	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("storage.path", "~/.local/share/fincoach/fincoach.db")

	v.SetDefault("plaid.environment", "sandbox")
	v.SetDefault("plaid.lookback_days", 90)

	v.SetDefault("simplefin.state_file", "~/.local/share/fincoach/simplefin_auth.json")
	v.SetDefault("simplefin.lookback_days", 90)
}

// Load reads settings from v. Defaults must already be registered. API keys
// fall back to OPENAI_API_KEY and ANTHROPIC_API_KEY.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		Logging: LoggingSettings{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		LLM: LLMSettings{
			Provider:           strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			Model:              v.GetString("llm.model"),
			EscalatedModel:     v.GetString("llm.escalated_model"),
			OpenAIAPIKey:       firstNonEmpty(v.GetString("llm.openai_api_key"), os.Getenv("OPENAI_API_KEY")),
			AnthropicAPIKey:    firstNonEmpty(v.GetString("llm.anthropic_api_key"), os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL:            v.GetString("llm.base_url"),
			Temperature:        v.GetFloat64("llm.temperature"),
			MaxTokens:          v.GetInt("llm.max_tokens"),
			EscalatedMaxTokens: v.GetInt("llm.escalated_max_tokens"),
			Timeout:            v.GetDuration("llm.timeout"),
			EscalatedTimeout:   v.GetDuration("llm.escalated_timeout"),
		},
		Router: RouterSettings{
			GenerativeRatePerMinute: v.GetInt("router.generative_rate_per_minute"),
		},
		Cache: CacheSettings{
			AnswerabilityTTL: v.GetDuration("cache.answerability_ttl"),
			ResponseTTL:      v.GetDuration("cache.response_ttl"),
			MaxEntries:       v.GetInt("cache.max_entries"),
		},
		Unknown: UnknownSettings{
			MaxEntries:     v.GetInt("unknown.max_entries"),
			RetentionDays:  v.GetInt("unknown.retention_days"),
			RetentionFloor: v.GetInt("unknown.retention_floor"),
		},
		Perf: PerfSettings{
			MaxLatency: v.GetDuration("perf.max_latency"),
			MaxTokens:  v.GetInt("perf.max_tokens"),
		},
		Telemetry: TelemetrySettings{
			Enabled: v.GetBool("telemetry.enabled"),
		},
		Storage: StorageSettings{
			Path: ExpandPath(v.GetString("storage.path")),
		},
		Snapshot: SnapshotSettings{
			Path:     ExpandPath(v.GetString("snapshot.path")),
			OFXFiles: ExpandPaths(v.GetStringSlice("snapshot.ofx_files")),
		},
		Plaid: PlaidSettings{
			Enabled:      v.GetBool("plaid.enabled"),
			ClientID:     v.GetString("plaid.client_id"),
			Secret:       v.GetString("plaid.secret"),
			Environment:  v.GetString("plaid.environment"),
			AccessToken:  v.GetString("plaid.access_token"),
			LookbackDays: v.GetInt("plaid.lookback_days"),
		},
		SimpleFIN: SimpleFINSettings{
			Enabled:      v.GetBool("simplefin.enabled"),
			Token:        v.GetString("simplefin.token"),
			AccessURL:    v.GetString("simplefin.access_url"),
			StateFile:    ExpandPath(v.GetString("simplefin.state_file")),
			LookbackDays: v.GetInt("simplefin.lookback_days"),
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings the pipeline cannot start with.
func (s Settings) Validate() error {
	if _, err := common.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	switch s.Logging.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, s.Logging.Format)
	}

	if s.LLM.Enabled() {
		switch s.LLM.Provider {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidConfig, s.LLM.Provider)
		}
		if s.LLM.APIKey() == "" {
			return fmt.Errorf("%w: %s API key (llm.%s_api_key)", common.ErrMissingConfig, s.LLM.Provider, s.LLM.Provider)
		}
		if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
			return fmt.Errorf("%w: llm.temperature must be between 0 and 2", common.ErrInvalidConfig)
		}
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"llm.max_tokens", int64(s.LLM.MaxTokens)},
		{"llm.escalated_max_tokens", int64(s.LLM.EscalatedMaxTokens)},
		{"llm.timeout", int64(s.LLM.Timeout)},
		{"llm.escalated_timeout", int64(s.LLM.EscalatedTimeout)},
		{"router.generative_rate_per_minute", int64(s.Router.GenerativeRatePerMinute)},
		{"cache.answerability_ttl", int64(s.Cache.AnswerabilityTTL)},
		{"cache.response_ttl", int64(s.Cache.ResponseTTL)},
		{"cache.max_entries", int64(s.Cache.MaxEntries)},
		{"unknown.max_entries", int64(s.Unknown.MaxEntries)},
		{"unknown.retention_days", int64(s.Unknown.RetentionDays)},
		{"unknown.retention_floor", int64(s.Unknown.RetentionFloor)},
		{"perf.max_latency", int64(s.Perf.MaxLatency)},
		{"perf.max_tokens", int64(s.Perf.MaxTokens)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, p.name)
		}
	}

	if s.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path", common.ErrMissingConfig)
	}

	if s.Plaid.Enabled {
		cfg := s.Plaid.ClientConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if s.SimpleFIN.Enabled && s.SimpleFIN.AccessURL == "" && s.SimpleFIN.Token == "" {
		return fmt.Errorf("%w: simplefin.access_url or simplefin.token", common.ErrMissingConfig)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
