package simplefin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

// AuthState is the saved result of claiming a setup token.
type AuthState struct {
	ClaimedAt  time.Time `json:"claimed_at"`
	AccessURL  string    `json:"access_url"`
	ClaimToken string    `json:"claim_token_hint"`
}

// LoadOrClaimAuth returns the access URL saved in stateFile, claiming token
// and saving the result when there is none.
func LoadOrClaimAuth(ctx context.Context, token, stateFile string, logger *slog.Logger) (string, error) {
	logger = common.LoggerOrDefault(logger)

	auth, err := loadAuthState(stateFile)
	if err == nil && auth.AccessURL != "" {
		logger.Debug("Using saved SimpleFIN access URL",
			"claimed_at", auth.ClaimedAt.Format("2006-01-02"),
			"state_file", stateFile)
		return auth.AccessURL, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Ignoring unreadable SimpleFIN state file", "state_file", stateFile, "error", err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: simplefin.token or simplefin.access_url", common.ErrMissingConfig)
	}

	logger.Info("No saved auth found, claiming new SimpleFIN token")
	accessURL, err := Claim(ctx, nil, token)
	if err != nil {
		return "", err
	}

	state := AuthState{
		AccessURL:  accessURL,
		ClaimedAt:  time.Now().UTC(),
		ClaimToken: tokenHint(token),
	}
	if err := saveAuthState(stateFile, state); err != nil {
		return "", fmt.Errorf("failed to save auth state: %w", err)
	}
	logger.Info("Claimed and saved SimpleFIN access URL", "state_file", stateFile)
	return accessURL, nil
}

func loadAuthState(path string) (AuthState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AuthState{}, err
	}
	var auth AuthState
	if err := json.Unmarshal(data, &auth); err != nil {
		return AuthState{}, err
	}
	return auth, nil
}

func saveAuthState(path string, auth AuthState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// tokenHint keeps enough of a token to recognize it later.
func tokenHint(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-8:]
	}
	return "short_token"
}
