// Package simplefin reads accounts and transactions from a SimpleFIN Bridge
// access URL.
package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

const requestTimeout = 30 * time.Second

// accountSet is the /accounts response body.
type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type organization struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

type account struct {
	Org          organization  `json:"org"`
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Balance      string        `json:"balance"`
	Transactions []transaction `json:"transactions"`
	BalanceDate  int64         `json:"balance-date"`
}

type transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Memo        string `json:"memo"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// Client talks to one SimpleFIN access URL. Credentials travel in the URL's
// userinfo.
type Client struct {
	accessURL  *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  common.RetryOptions
}

// NewClient validates accessURL and returns a client for it.
func NewClient(accessURL string, logger *slog.Logger) (*Client, error) {
	u, err := parseHTTPURL(accessURL)
	if err != nil {
		return nil, fmt.Errorf("%w: simplefin access url: %v", common.ErrInvalidConfig, err)
	}
	return &Client{
		accessURL:  u,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     common.LoggerOrDefault(logger),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// fetchAccounts returns every account with transactions posted in
// [start, end].
func (c *Client) fetchAccounts(ctx context.Context, start, end time.Time) (accountSet, error) {
	u := *c.accessURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/accounts"
	q := u.Query()
	q.Set("start-date", strconv.FormatInt(start.Unix(), 10))
	// end-date is exclusive
	q.Set("end-date", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	u.RawQuery = q.Encode()

	c.logger.Debug("Requesting SimpleFIN accounts",
		"start_date", start.Format("2006-01-02"),
		"end_date", end.Format("2006-01-02"))

	var set accountSet
	err := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to fetch accounts: %w", err), Retryable: true}
		}
		defer func() { _ = resp.Body.Close() }()

		if err := statusError(resp); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to decode response: %w", err), Retryable: false}
		}
		return nil
	}, c.retryOpts)
	if err != nil {
		return accountSet{}, err
	}

	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported a problem", "message", msg)
	}
	return set, nil
}

// Claim exchanges a one-time setup token for an access URL.
func Claim(ctx context.Context, httpClient *http.Client, token string) (string, error) {
	claimURL, err := decodeToken(token)
	if err != nil {
		return "", err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim access URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return "", fmt.Errorf("failed to claim SimpleFIN access: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read access URL: %w", err)
	}
	accessURL := strings.TrimSpace(string(body))
	if _, err := parseHTTPURL(accessURL); err != nil {
		return "", fmt.Errorf("invalid access URL received: %w", err)
	}
	return accessURL, nil
}

// decodeToken turns a base64 setup token into its claim URL.
func decodeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("%w: failed to decode SimpleFIN token: %v", common.ErrInvalidConfig, err)
		}
	}
	claimURL := string(decoded)
	if _, err := parseHTTPURL(claimURL); err != nil {
		return "", fmt.Errorf("%w: decoded token is not a URL", common.ErrInvalidConfig)
	}
	return claimURL, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not an http(s) URL")
	}
	return u, nil
}

// statusError classifies non-200 responses. 429 and 5xx are retryable.
func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRateLimit, err), Retryable: true}
	case resp.StatusCode >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}
