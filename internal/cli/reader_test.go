package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQuestion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantEOF bool
	}{
		{name: "single line", input: "how's my grocery budget?\n", want: "how's my grocery budget?"},
		{name: "no trailing newline", input: "  net worth  ", want: "net worth"},
		{name: "wrapped lines joined", input: "how much did I\nspend on dining\n", want: "how much did I spend on dining"},
		{name: "stops at blank line", input: "first question\n\nsecond question\n", want: "first question"},
		{name: "leading blanks skipped", input: "\n\n  top merchants\n", want: "top merchants"},
		{name: "empty input", input: "", wantEOF: true},
		{name: "only blanks", input: "\n \n", wantEOF: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewQuestionReader(strings.NewReader(tt.input)).ReadQuestion(context.Background())
			if tt.wantEOF {
				assert.ErrorIs(t, err, io.EOF)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadQuestionSequence(t *testing.T) {
	r := NewQuestionReader(strings.NewReader("budget status\n\nrecent transactions"))
	ctx := context.Background()

	first, err := r.ReadQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "budget status", first)

	second, err := r.ReadQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "recent transactions", second)

	_, err = r.ReadQuestion(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineCancellation(t *testing.T) {
	t.Run("already canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewQuestionReader(strings.NewReader("ignored\n")).ReadLine(ctx)
		assert.ErrorIs(t, err, ErrInputCancelled)
	})

	t.Run("canceled while waiting, line kept for next read", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		r := NewQuestionReader(pr)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := r.ReadLine(ctx)
		require.ErrorIs(t, err, ErrInputCancelled)

		go func() {
			_, _ = pw.Write([]byte("savings goals\n"))
		}()
		line, err := r.ReadLine(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "savings goals", line)
		_ = pw.Close()
	})
}
