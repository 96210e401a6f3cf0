package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/router"
)

var testOptions = []router.IntentOption{
	{ID: "budget_status", Description: "Status of one budget"},
	{ID: "net_worth", Description: "Assets minus debts"},
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantID    string
		wantConf  float64
		wantErrIs error
	}{
		{name: "plain json", text: `{"capability":"net_worth","confidence":0.7}`, wantID: "net_worth", wantConf: 0.7},
		{name: "fenced json", text: "```json\n{\"capability\":\"budget_status\",\"confidence\":0.9}\n```", wantID: "budget_status", wantConf: 0.9},
		{name: "none", text: `{"capability":"none","confidence":0.1}`, wantID: "", wantConf: 0.1},
		{name: "garbage", text: "I think it's the budget one", wantErrIs: common.ErrGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{gen: Generation{Text: tt.text}}
			classifier := NewIntentClassifier(client, 60, nil)

			guess, err := classifier.ClassifyIntent(context.Background(), "what am I worth", testOptions)
			if tt.wantErrIs != nil {
				require.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, guess.CapabilityID)
			assert.InDelta(t, tt.wantConf, guess.Confidence, 1e-9)
		})
	}
}

func TestClassifyIntentRateLimited(t *testing.T) {
	client := &mockClient{gen: Generation{Text: `{"capability":"net_worth","confidence":0.7}`}}
	classifier := NewIntentClassifier(client, 1, nil)

	_, err := classifier.ClassifyIntent(context.Background(), "net worth?", testOptions)
	require.NoError(t, err)

	_, err = classifier.ClassifyIntent(context.Background(), "net worth?", testOptions)
	require.ErrorIs(t, err, common.ErrRateLimit)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestBuildIntentPrompt(t *testing.T) {
	prompt := buildIntentPrompt("what am I worth", testOptions)
	assert.Contains(t, prompt, "- budget_status: Status of one budget")
	assert.Contains(t, prompt, `"what am I worth"`)
}
