package sheets

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  string
		status   int
	}{
		{name: "accepts code", query: "state=s1&code=abc", wantCode: "abc", status: http.StatusOK},
		{name: "wrong state", query: "state=other&code=abc", wantErr: "wrong state", status: http.StatusBadRequest},
		{name: "refused", query: "state=s1&error=access_denied", wantErr: "access_denied", status: http.StatusBadRequest},
		{name: "missing code", query: "state=s1", wantErr: "no authorization code", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			errs := make(chan error, 1)
			h := callbackHandler("s1", codes, errs)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)

			if tt.wantErr != "" {
				require.Len(t, errs, 1)
				assert.Contains(t, (<-errs).Error(), tt.wantErr)
				assert.Empty(t, codes)
				return
			}
			require.Len(t, codes, 1)
			assert.Equal(t, tt.wantCode, <-codes)
		})
	}
}

func TestCallbackHandlerDeliversOnce(t *testing.T) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	h := callbackHandler("s1", codes, errs)

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))
	}
	assert.Len(t, codes, 1)
	assert.Empty(t, errs)
}

type sequenceSource struct {
	tokens []string
	calls  int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{AccessToken: s.tokens[s.calls], RefreshToken: "refresh"}
	if s.calls < len(s.tokens)-1 {
		s.calls++
	}
	return tok, nil
}

func TestSavingTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	src := &savingTokenSource{
		base: &sequenceSource{tokens: []string{"first", "second"}},
		path: path,
		last: "first",
	}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)
	_, err = LoadToken(path)
	require.Error(t, err, "unchanged token is not rewritten")

	tok, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, "second", tok.AccessToken)

	saved, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "second", saved.AccessToken)
	assert.Equal(t, "refresh", saved.RefreshToken)
}

func TestRandomState(t *testing.T) {
	a, err := randomState()
	require.NoError(t, err)
	b, err := randomState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 22)
}
