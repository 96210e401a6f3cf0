package sheets

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/fincoach/internal/fallback"
)

// MockExporter records exports for tests.
type MockExporter struct {
	Err         error
	LastRecords []fallback.UnknownRecord
	LastTime    time.Time
	Calls       int
	mu          sync.Mutex
}

// ExportUnknowns implements Exporter.
func (m *MockExporter) ExportUnknowns(_ context.Context, records []fallback.UnknownRecord, generatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastRecords = records
	m.LastTime = generatedAt
	return m.Err
}

var _ Exporter = (*MockExporter)(nil)
