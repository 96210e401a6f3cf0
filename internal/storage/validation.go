package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Argument errors returned before any SQL runs.
var (
	ErrNilContext  = errors.New("nil context")
	ErrEmptyString = errors.New("required value is blank")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString rejects blank values, naming the offending field.
func validateString(value, field string) error {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return fmt.Errorf("%s: %w", field, ErrEmptyString)
}
