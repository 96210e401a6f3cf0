package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultLookback is how far back transactions are fetched.
const DefaultLookback = 90 * 24 * time.Hour

// Provider loads accounts, transactions and debts from Plaid as a snapshot
// source.
type Provider struct {
	fetcher  Fetcher
	logger   *slog.Logger
	now      func() time.Time
	lookback time.Duration
}

// NewProvider wraps fetcher. A zero lookback uses DefaultLookback.
func NewProvider(fetcher Fetcher, lookback time.Duration, logger *slog.Logger) *Provider {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Provider{
		fetcher:  fetcher,
		lookback: lookback,
		logger:   common.LoggerOrDefault(logger),
		now:      time.Now,
	}
}

// Name implements snapshot.Provider.
func (p *Provider) Name() string { return "plaid" }

// Load implements snapshot.Provider. The three calls run concurrently.
func (p *Provider) Load(ctx context.Context) (model.Snapshot, error) {
	end := p.now()
	start := end.Add(-p.lookback)

	var snap model.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txns, err := p.fetcher.GetTransactions(gctx, start, end)
		if err != nil {
			return fmt.Errorf("transactions: %w", err)
		}
		snap.Transactions = txns
		return nil
	})
	g.Go(func() error {
		accounts, err := p.fetcher.GetAccounts(gctx)
		if err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
		snap.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		debts, err := p.fetcher.GetDebts(gctx)
		if err != nil {
			// Liabilities is a separate product the item may lack.
			p.logger.Warn("plaid liabilities unavailable", "error", err)
			return nil
		}
		snap.Debts = debts
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}
	snap.AsOf = end
	return snap, nil
}
