package sheets

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestConfig_Validate(t *testing.T) {
	oauth := func(c *Config) {
		c.ClientID = "test-client"
		c.ClientSecret = "test-secret"
		c.RefreshToken = "test-token"
	}
	tests := []struct {
		mutate  func(*Config)
		wantErr error
		name    string
		errMsg  string
	}{
		{name: "valid oauth config", mutate: oauth},
		{name: "valid service account config", mutate: func(c *Config) { c.ServiceAccountPath = "/path/to/key.json" }},
		{name: "token file instead of refresh token", mutate: func(c *Config) {
			c.ClientID = "test-client"
			c.ClientSecret = "test-secret"
			c.TokenFile = "/tmp/token.json"
		}},
		{name: "missing auth", mutate: func(*Config) {},
			wantErr: common.ErrMissingConfig, errMsg: "no Google Sheets authentication method configured"},
		{name: "client id without token", mutate: func(c *Config) {
			c.ClientID = "test-client"
			c.ClientSecret = "test-secret"
		}, wantErr: common.ErrMissingConfig},
		{name: "multiple auth methods", mutate: func(c *Config) {
			oauth(c)
			c.ServiceAccountPath = "/path/to/key.json"
		}, wantErr: common.ErrInvalidConfig, errMsg: "multiple authentication methods configured"},
		{name: "invalid batch size", mutate: func(c *Config) {
			oauth(c)
			c.BatchSize = 0
		}, wantErr: common.ErrInvalidConfig, errMsg: "batch size must be positive"},
		{name: "negative retry attempts", mutate: func(c *Config) {
			oauth(c)
			c.RetryAttempts = -1
		}, wantErr: common.ErrInvalidConfig, errMsg: "retry attempts cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestUnknownRows(t *testing.T) {
	generated := time.Date(2024, 6, 30, 18, 5, 0, 0, time.UTC)
	records := []fallback.UnknownRecord{
		{
			ID:                    "u-1",
			Utterance:             "what's my credit score",
			Frequency:             4,
			FirstSeen:             time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:              time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
			SuggestedCapabilities: []string{"debt_overview", "financial_health"},
		},
		{
			ID:        "u-2",
			Utterance: "file my taxes",
			Frequency: 1,
			FirstSeen: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
			LastSeen:  time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
			Resolved:  true,
			Feedback:  "out of scope",
		},
	}

	rows := unknownRows(records, generated)
	require.Len(t, rows, 5)
	assert.Equal(t, "Generated Jun 30, 2024 18:05", rows[0][1])
	assert.Empty(t, rows[1])
	assert.Equal(t, "Question", rows[2][0])
	assert.Len(t, rows[2], 8)

	assert.Equal(t, []any{
		"what's my credit score", 4, "2024-06-01", "2024-06-28",
		"debt_overview, financial_health", "no", "", "u-1",
	}, rows[3])
	assert.Equal(t, "yes", rows[4][5])
	assert.Equal(t, "out of scope", rows[4][6])
}

func TestUnknownRowsEmpty(t *testing.T) {
	rows := unknownRows(nil, time.Now())
	assert.Len(t, rows, 3)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, saveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, loaded.Expiry.Equal(token.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
