package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// QuestionReader reads questions from a stream such as stdin without
// ignoring cancellation. A read abandoned on cancel keeps running in the
// background; its line goes to the next caller.
type QuestionReader struct {
	src     *bufio.Reader
	pending chan lineResult
	mu      sync.Mutex
}

type lineResult struct {
	err  error
	line string
}

// NewQuestionReader wraps r.
func NewQuestionReader(r io.Reader) *QuestionReader {
	return &QuestionReader{src: bufio.NewReader(r)}
}

// ReadLine returns the next trimmed line. A last line without a newline is
// returned with a nil error; the call after it returns io.EOF.
func (q *QuestionReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}

	q.mu.Lock()
	ch := q.pending
	if ch == nil {
		ch = make(chan lineResult, 1)
		q.pending = ch
		go func() {
			line, err := q.src.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-ch:
		q.mu.Lock()
		q.pending = nil
		q.mu.Unlock()
		if errors.Is(res.err, io.EOF) && res.line != "" {
			return strings.TrimSpace(res.line), nil
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}

// ReadQuestion joins lines up to the first blank line or end of input into
// one question. Leading blank lines are skipped.
func (q *QuestionReader) ReadQuestion(ctx context.Context) (string, error) {
	var parts []string
	for {
		line, err := q.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if line == "" {
			if len(parts) == 0 {
				continue
			}
			break
		}
		parts = append(parts, line)
	}
	if len(parts) == 0 {
		return "", io.EOF
	}
	return strings.Join(parts, " "), nil
}
