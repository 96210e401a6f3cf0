package plaid

import (
	"context"
	"time"

	"github.com/Veraticus/fincoach/internal/model"
)

// Fetcher is the subset of the Plaid API the provider needs.
type Fetcher interface {
	GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context) ([]model.Account, error)
	GetDebts(ctx context.Context) ([]model.Debt, error)
}
