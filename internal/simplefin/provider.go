package simplefin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
)

// DefaultLookback is how far back transactions are fetched.
const DefaultLookback = 90 * 24 * time.Hour

// Provider loads accounts and posted transactions as a snapshot source.
type Provider struct {
	client   *Client
	logger   *slog.Logger
	now      func() time.Time
	lookback time.Duration
}

// NewProvider wraps client. A zero lookback uses DefaultLookback.
func NewProvider(client *Client, lookback time.Duration, logger *slog.Logger) *Provider {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Provider{
		client:   client,
		lookback: lookback,
		logger:   common.LoggerOrDefault(logger),
		now:      time.Now,
	}
}

// Name implements snapshot.Provider.
func (p *Provider) Name() string { return "simplefin" }

// Load implements snapshot.Provider. Pending transactions are skipped.
func (p *Provider) Load(ctx context.Context) (model.Snapshot, error) {
	end := p.now()
	start := end.Add(-p.lookback)

	set, err := p.client.fetchAccounts(ctx, start, end)
	if err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{AsOf: end}
	for _, a := range set.Accounts {
		acct, err := convertAccount(a)
		if err != nil {
			return model.Snapshot{}, err
		}
		snap.Accounts = append(snap.Accounts, acct)

		for _, tx := range a.Transactions {
			if tx.Pending {
				continue
			}
			date := time.Unix(tx.Posted, 0).UTC()
			if date.Before(start) || date.After(end) {
				continue
			}
			converted, err := convertTransaction(a.ID, tx, date)
			if err != nil {
				return model.Snapshot{}, err
			}
			snap.Transactions = append(snap.Transactions, converted)
		}
	}

	p.logger.Debug("SimpleFIN snapshot loaded",
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions))
	return snap, nil
}

func convertAccount(a account) (model.Account, error) {
	balance, err := parseAmount(a.Balance)
	if err != nil {
		return model.Account{}, fmt.Errorf("account %s balance: %w", a.ID, err)
	}
	acctType := guessAccountType(a.Name)
	if acctType == model.AccountCredit || acctType == model.AccountLoan {
		// SimpleFIN reports owed balances as negative.
		if balance < 0 {
			balance = -balance
		}
	}
	return model.Account{
		ID:          a.ID,
		Name:        a.Name,
		Institution: a.Org.Name,
		Type:        acctType,
		Balance:     balance,
	}, nil
}

func convertTransaction(accountID string, tx transaction, date time.Time) (model.Transaction, error) {
	amount, err := parseAmount(tx.Amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s amount %q: %w", tx.ID, tx.Amount, err)
	}

	direction := model.DirectionExpense
	if amount > 0 {
		direction = model.DirectionIncome
	}
	if amount < 0 {
		amount = -amount
	}
	desc := strings.ToLower(tx.Description)
	if strings.Contains(desc, "transfer") || strings.Contains(desc, "payment thank you") {
		direction = model.DirectionTransfer
	}

	merchant := normalizeMerchant(tx.Payee)
	if merchant == "" {
		merchant = normalizeMerchant(tx.Description)
	}

	t := model.Transaction{
		ID:          accountID + "_" + tx.ID,
		Date:        date,
		Description: tx.Description,
		Merchant:    merchant,
		AccountID:   accountID,
		Direction:   direction,
		Amount:      amount,
	}
	t.Hash = t.GenerateHash()
	return t, nil
}

// parseAmount reads SimpleFIN's decimal strings ("-33.29").
func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// guessAccountType infers the account type from its display name; SimpleFIN
// does not report one.
func guessAccountType(name string) model.AccountType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "credit") || strings.Contains(n, "card") || strings.Contains(n, "visa") || strings.Contains(n, "amex"):
		return model.AccountCredit
	case strings.Contains(n, "mortgage") || strings.Contains(n, "loan"):
		return model.AccountLoan
	case strings.Contains(n, "saving"):
		return model.AccountSavings
	case strings.Contains(n, "checking"):
		return model.AccountChecking
	case strings.Contains(n, "brokerage") || hasWord(n, "ira") || hasWord(n, "401k"):
		return model.AccountInvestment
	default:
		return model.AccountOther
	}
}

func hasWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if f == word {
			return true
		}
	}
	return false
}

// normalizeMerchant trims corporate suffixes and title-cases the name.
func normalizeMerchant(raw string) string {
	merchant := strings.TrimSpace(raw)
	for _, suffix := range []string{" LLC", " INC", " CORP"} {
		merchant = strings.TrimSuffix(merchant, suffix)
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(strings.ToLower(merchant)), " "))
}
