package tui

import "github.com/Veraticus/fincoach/internal/orchestrator"

// answerMsg carries the pipeline result for the turn at index.
type answerMsg struct {
	err   error
	resp  orchestrator.Response
	index int
}
