package plaid

import (
	"context"
	"sync"
	"time"

	"github.com/Veraticus/fincoach/internal/model"
)

// MockClient is a Fetcher for tests.
type MockClient struct {
	GetTransactionsFn func(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccountsFn     func(ctx context.Context) ([]model.Account, error)
	GetDebtsFn        func(ctx context.Context) ([]model.Debt, error)

	GetTransactionsCalls []GetTransactionsCall
	GetAccountsCalls     int
	GetDebtsCalls        int

	mu sync.Mutex
}

// GetTransactionsCall records the parameters of a GetTransactions call.
type GetTransactionsCall struct {
	StartDate time.Time
	EndDate   time.Time
}

// NewMockClient creates a new mock Plaid client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GetTransactions implements Fetcher.
func (m *MockClient) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	m.mu.Lock()
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, GetTransactionsCall{StartDate: startDate, EndDate: endDate})
	m.mu.Unlock()
	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, startDate, endDate)
	}
	return nil, nil
}

// GetAccounts implements Fetcher.
func (m *MockClient) GetAccounts(ctx context.Context) ([]model.Account, error) {
	m.mu.Lock()
	m.GetAccountsCalls++
	m.mu.Unlock()
	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx)
	}
	return nil, nil
}

// GetDebts implements Fetcher.
func (m *MockClient) GetDebts(ctx context.Context) ([]model.Debt, error) {
	m.mu.Lock()
	m.GetDebtsCalls++
	m.mu.Unlock()
	if m.GetDebtsFn != nil {
		return m.GetDebtsFn(ctx)
	}
	return nil, nil
}

var _ Fetcher = (*MockClient)(nil)
