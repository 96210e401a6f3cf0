package sheets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

const loginTimeout = 5 * time.Minute

// OAuth2Config identifies the OAuth client and where its token is kept.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
}

func (c OAuth2Config) oauth(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
}

// TokenSource returns a source backed by the saved token, running the
// browser login when there is none. Refreshed tokens are written back to
// TokenFile.
func TokenSource(ctx context.Context, config OAuth2Config) (oauth2.TokenSource, error) {
	token, err := LoadToken(config.TokenFile)
	if err != nil {
		slog.Info("No saved Google token, starting browser login", "file", config.TokenFile)
		if token, err = AuthenticateOAuth2Interactive(ctx, config); err != nil {
			return nil, err
		}
	}
	return &savingTokenSource{
		base: config.oauth("").TokenSource(ctx, token),
		path: config.TokenFile,
		last: token.AccessToken,
	}, nil
}

// AuthenticateOAuth2Interactive runs the loopback browser login and saves the
// resulting token.
func AuthenticateOAuth2Interactive(ctx context.Context, config OAuth2Config) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	oauthCfg := config.oauth(fmt.Sprintf("http://%s/callback", listener.Addr()))

	state, err := randomState()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, codes, errs))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer func() {
		if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Error shutting down callback server", "error", err)
		}
	}()

	slog.Info("Open this URL to let fincoach write to Google Sheets",
		"url", oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	var code string
	select {
	case code = <-codes:
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("google login not completed within %s: %w", loginTimeout, ctx.Err())
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if config.TokenFile != "" {
		if err := saveToken(config.TokenFile, token); err != nil {
			slog.Warn("Failed to save Google token", "error", err, "file", config.TokenFile)
		}
	}
	return token, nil
}

// callbackHandler accepts exactly one redirect carrying state.
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var err error
		switch {
		case q.Get("state") != state:
			err = errors.New("login callback has the wrong state")
		case q.Get("error") != "":
			err = fmt.Errorf("google login refused: %s", q.Get("error"))
		case q.Get("code") == "":
			err = errors.New("login callback has no authorization code")
		}

		if err != nil {
			http.Error(w, "Sign-in failed. Return to the terminal and try again.", http.StatusBadRequest)
			once.Do(func() { errs <- err })
			return
		}
		_, _ = fmt.Fprintln(w, "Signed in. You can close this tab and return to the terminal.")
		once.Do(func() { codes <- q.Get("code") })
	})
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate login state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// LoadToken reads a saved token.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	if tokenFile == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(tokenFile) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("failed to decode token %s: %w", tokenFile, err)
	}
	return token, nil
}

// saveToken writes token with owner-only permissions, replacing any old file.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return os.Rename(tmp, path)
}

// savingTokenSource persists each newly issued access token.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	last string
	mu   sync.Mutex
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh Google token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last && s.path != "" {
		if err := saveToken(s.path, token); err != nil {
			slog.Warn("Failed to save refreshed Google token", "error", err)
		} else {
			s.last = token.AccessToken
		}
	}
	return token, nil
}
