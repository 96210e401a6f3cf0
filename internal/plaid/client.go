// Package plaid loads live account data from the Plaid API as a snapshot
// source.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	case c.Secret == "":
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	case c.AccessToken == "":
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	}
	switch c.Environment {
	case "sandbox", "production":
		return nil
	case "":
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	default:
		return fmt.Errorf("%w: plaid environment must be sandbox or production", common.ErrInvalidConfig)
	}
}

// Client implements Fetcher against the Plaid API.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   common.RetryOptions
	accessToken string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		logger:      common.LoggerOrDefault(logger).With("component", "plaid"),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// call runs op with retry, retrying only Plaid rate limits.
func (c *Client) call(ctx context.Context, what string, op func() error) error {
	return common.WithRetry(ctx, func() error {
		err := op()
		if err == nil {
			return nil
		}
		if plaidError := extractPlaidError(err); plaidError != nil {
			if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
				c.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
				return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrRateLimit, plaidError.ErrorMessage), Retryable: true}
			}
			return &common.RetryableError{
				Err:       fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage),
				Retryable: false,
			}
		}
		return fmt.Errorf("failed to fetch %s: %w", what, err)
	}, c.retryOpts)
}

// GetTransactions fetches transactions within the date range, following
// pagination.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Debug("Fetching transactions from Plaid",
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	var all []plaid.Transaction
	offset := int32(0)
	const pageSize = int32(500) // Plaid's max page size

	for {
		var page []plaid.Transaction
		err := c.call(ctx, "transactions", func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})
			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return err
			}
			page = resp.GetTransactions()
			return nil
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	c.logger.Debug("Fetched all transactions", "count", len(all))

	transactions := make([]model.Transaction, 0, len(all))
	for _, pt := range all {
		tx, ok := mapTransaction(pt)
		if !ok {
			c.logger.Warn("Skipping transaction with unparseable date", "id", pt.GetTransactionId(), "date", pt.GetDate())
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// GetAccounts fetches accounts with their current balances.
func (c *Client) GetAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []plaid.AccountBase
	var institution string
	err := c.call(ctx, "accounts", func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return err
		}
		accounts = resp.GetAccounts()
		item := resp.GetItem()
		institution = item.GetInstitutionId()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		account := mapAccount(a)
		account.Institution = institution
		out = append(out, account)
	}
	c.logger.Debug("Fetched accounts", "count", len(out))
	return out, nil
}

// GetDebts fetches credit card, student loan and mortgage liabilities.
func (c *Client) GetDebts(ctx context.Context) ([]model.Debt, error) {
	var resp plaid.LiabilitiesGetResponse
	err := c.call(ctx, "liabilities", func() error {
		request := plaid.NewLiabilitiesGetRequest(c.accessToken)
		r, _, err := c.client.PlaidApi.LiabilitiesGet(ctx).LiabilitiesGetRequest(*request).Execute()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapLiabilities(resp.GetAccounts(), resp.GetLiabilities()), nil
}

// mapTransaction converts a Plaid transaction. It reports false when the
// date cannot be parsed.
func mapTransaction(pt plaid.Transaction) (model.Transaction, bool) {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		return model.Transaction{}, false
	}

	merchant := pt.GetMerchantName()
	if merchant == "" {
		merchant = pt.GetName()
	}

	var category string
	if categories := pt.GetCategory(); len(categories) > 0 {
		category = categories[len(categories)-1]
	}

	// Plaid amounts are positive for money out.
	amount := pt.GetAmount()
	direction := model.DirectionExpense
	if amount < 0 {
		direction = model.DirectionIncome
		amount = -amount
	}
	if category == "Transfer" || strings.HasPrefix(category, "Credit Card") {
		direction = model.DirectionTransfer
	}

	tx := model.Transaction{
		Date:        date,
		ID:          pt.GetTransactionId(),
		Description: pt.GetName(),
		Merchant:    cleanMerchantName(merchant),
		Category:    category,
		AccountID:   pt.GetAccountId(),
		Amount:      amount,
		Direction:   direction,
	}
	tx.Hash = tx.GenerateHash()
	return tx, true
}

func mapAccount(a plaid.AccountBase) model.Account {
	balances := a.GetBalances()
	name := a.GetName()
	if name == "" {
		name = a.GetOfficialName()
	}
	return model.Account{
		ID:      a.GetAccountId(),
		Name:    name,
		Type:    accountType(a.GetType(), string(a.GetSubtype())),
		Balance: balances.GetCurrent(),
	}
}

func accountType(t plaid.AccountType, subtype string) model.AccountType {
	switch t {
	case plaid.ACCOUNTTYPE_DEPOSITORY:
		if subtype == "checking" {
			return model.AccountChecking
		}
		return model.AccountSavings
	case plaid.ACCOUNTTYPE_CREDIT:
		return model.AccountCredit
	case plaid.ACCOUNTTYPE_LOAN:
		return model.AccountLoan
	case plaid.ACCOUNTTYPE_INVESTMENT, plaid.ACCOUNTTYPE_BROKERAGE:
		return model.AccountInvestment
	default:
		return model.AccountOther
	}
}

func mapLiabilities(accounts []plaid.AccountBase, liabilities plaid.LiabilitiesObject) []model.Debt {
	byID := make(map[string]plaid.AccountBase, len(accounts))
	for _, a := range accounts {
		byID[a.GetAccountId()] = a
	}
	debt := func(accountID, kind string) model.Debt {
		a := byID[accountID]
		balances := a.GetBalances()
		name := a.GetName()
		if name == "" {
			name = kind
		}
		balance := balances.GetCurrent()
		if balance < 0 {
			balance = 0
		}
		return model.Debt{ID: accountID, Name: name, Kind: kind, Balance: balance}
	}

	var debts []model.Debt
	for _, cc := range liabilities.GetCredit() {
		d := debt(cc.GetAccountId(), "credit_card")
		for _, apr := range cc.GetAprs() {
			if apr.GetAprType() == "purchase_apr" {
				d.APR = apr.GetAprPercentage()
			}
		}
		d.MinimumPayment = cc.GetMinimumPaymentAmount()
		debts = append(debts, d)
	}
	for _, loan := range liabilities.GetStudent() {
		d := debt(loan.GetAccountId(), "student_loan")
		if n := loan.GetLoanName(); n != "" && d.Name == "student_loan" {
			d.Name = n
		}
		d.APR = loan.GetInterestRatePercentage()
		d.MinimumPayment = loan.GetMinimumPaymentAmount()
		debts = append(debts, d)
	}
	for _, m := range liabilities.GetMortgage() {
		d := debt(m.GetAccountId(), "mortgage")
		rate := m.GetInterestRate()
		d.APR = rate.GetPercentage()
		d.MinimumPayment = m.GetNextMonthlyPayment()
		debts = append(debts, d)
	}
	return debts
}

// cleanMerchantName title-cases a merchant name and drops trailing
// transaction numbers and corporate suffixes.
func cleanMerchantName(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, word := range words {
		runes := []rune(word)
		for j := range runes {
			if j == 0 || !isLetter(runes[j-1]) {
				runes[j] = toUpper(runes[j])
			}
		}
		words[i] = string(runes)
	}

	// "MERCHANT 123456789": a long digit run at the end is a transaction ID.
	if len(words) > 1 {
		last := words[len(words)-1]
		if len(last) > 5 && isAllDigits(last) {
			words = words[:len(words)-1]
		}
	}
	name = strings.Join(words, " ")

	suffixes := []string{" Llc", " Inc", " Corp", " Corporation", " Company", " Co", " Ltd", " Limited"}
	for changed := true; changed; {
		changed = false
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}
	return strings.TrimSpace(name)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 32
	}
	return r
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

var _ Fetcher = (*Client)(nil)
