package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/fallback"
)

// SaveUnknown inserts or replaces an unknown-query record. An update never
// lowers the stored frequency, so a stale write loses to a newer one.
// It implements fallback.UnknownPersister.
func (s *SQLiteStorage) SaveUnknown(ctx context.Context, record fallback.UnknownRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(record.ID, "id"); err != nil {
		return err
	}

	suggested, err := json.Marshal(record.SuggestedCapabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO unknown_queries (id, utterance, suggested_capabilities, frequency, first_seen, last_seen, feedback, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			utterance = excluded.utterance,
			suggested_capabilities = excluded.suggested_capabilities,
			frequency = excluded.frequency,
			last_seen = excluded.last_seen,
			feedback = excluded.feedback,
			resolved = excluded.resolved
		WHERE excluded.frequency >= unknown_queries.frequency`,
		record.ID, record.Utterance, string(suggested), record.Frequency,
		record.FirstSeen.UTC(), record.LastSeen.UTC(), record.Feedback, record.Resolved)
	if err != nil {
		return fmt.Errorf("failed to save unknown query: %w", err)
	}
	return nil
}

// DeleteUnknown removes a record. Deleting a missing record is not an error.
func (s *SQLiteStorage) DeleteUnknown(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM unknown_queries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete unknown query: %w", err)
	}
	return nil
}

// GetUnknown loads one record.
func (s *SQLiteStorage) GetUnknown(ctx context.Context, id string) (fallback.UnknownRecord, error) {
	if err := validateContext(ctx); err != nil {
		return fallback.UnknownRecord{}, err
	}
	row := s.db.QueryRowContext(ctx, selectUnknown+` WHERE id = ?`, id)
	record, err := scanUnknown(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback.UnknownRecord{}, fmt.Errorf("unknown query %s: %w", id, common.ErrNotFound)
	}
	return record, err
}

// ListUnknowns returns every stored record, most frequent first.
func (s *SQLiteStorage) ListUnknowns(ctx context.Context) ([]fallback.UnknownRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectUnknown+` ORDER BY frequency DESC, last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []fallback.UnknownRecord
	for rows.Next() {
		record, err := scanUnknown(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unknown queries: %w", err)
	}
	return records, nil
}

const selectUnknown = `SELECT id, utterance, suggested_capabilities, frequency, first_seen, last_seen, feedback, resolved FROM unknown_queries`

type scanner interface {
	Scan(dest ...any) error
}

func scanUnknown(row scanner) (fallback.UnknownRecord, error) {
	var (
		record    fallback.UnknownRecord
		suggested string
	)
	err := row.Scan(&record.ID, &record.Utterance, &suggested, &record.Frequency,
		&record.FirstSeen, &record.LastSeen, &record.Feedback, &record.Resolved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, err
		}
		return record, fmt.Errorf("failed to scan unknown query: %w", err)
	}
	if err := json.Unmarshal([]byte(suggested), &record.SuggestedCapabilities); err != nil {
		return record, fmt.Errorf("failed to parse suggestions for %s: %w", record.ID, err)
	}
	return record, nil
}
