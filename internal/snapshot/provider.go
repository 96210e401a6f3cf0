// Package snapshot assembles a model.Snapshot from one or more partial
// sources such as a JSON file, OFX statements or a Plaid connection.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"golang.org/x/sync/errgroup"
)

// Provider loads part of a user's financial data. The returned snapshot is
// unvalidated; Build validates the merged result.
type Provider interface {
	Name() string
	Load(ctx context.Context) (model.Snapshot, error)
}

// FileProvider reads a snapshot from a JSON file.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider for the JSON file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file:" + p.path }

// Load implements Provider.
func (p *FileProvider) Load(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %v", common.ErrInvalidSnapshot, p.path, err)
	}
	return snap, nil
}

// Build loads every provider concurrently and merges the results in
// provider order. Any provider failure fails the build.
func Build(ctx context.Context, logger *slog.Logger, providers ...Provider) (*model.Snapshot, error) {
	logger = common.LoggerOrDefault(logger)
	parts := make([]model.Snapshot, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			part, err := p.Load(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}
			logger.Debug("snapshot source loaded",
				"source", p.Name(),
				"transactions", len(part.Transactions),
				"accounts", len(part.Accounts))
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(parts...)
}
