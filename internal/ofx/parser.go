// Package ofx reads OFX/QFX statement files into snapshot data.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tag at end of line with no closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser converts OFX statements into accounts and transactions.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: common.LoggerOrDefault(logger)}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads one OFX/QFX document and returns the accounts and
// transactions it contains. Budgets, goals and the rest are left empty.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	institution := string(resp.Signon.Org)

	var snap model.Snapshot
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		accountID := string(stmt.BankAcctFrom.AcctID)
		balance, _ := stmt.BalAmt.Float64()
		snap.Accounts = append(snap.Accounts, model.Account{
			ID:          accountID,
			Name:        accountName(stmt.BankAcctFrom.AcctType.String(), accountID),
			Institution: institution,
			Type:        bankAccountType(stmt.BankAcctFrom.AcctType.String()),
			Balance:     balance,
		})
		snap.Transactions = append(snap.Transactions, p.convertList(stmt.BankTranList, accountID)...)
		snap.AsOf = latest(snap.AsOf, stmt.DtAsOf.Time)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		accountID := string(stmt.CCAcctFrom.AcctID)
		balance, _ := stmt.BalAmt.Float64()
		// Card statements report the amount owed as a negative balance.
		if balance < 0 {
			balance = -balance
		}
		snap.Accounts = append(snap.Accounts, model.Account{
			ID:          accountID,
			Name:        accountName("Credit card", accountID),
			Institution: institution,
			Type:        model.AccountCredit,
			Balance:     balance,
		})
		snap.Transactions = append(snap.Transactions, p.convertList(stmt.BankTranList, accountID)...)
		snap.AsOf = latest(snap.AsOf, stmt.DtAsOf.Time)
	}

	p.logger.Debug("parsed OFX file",
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions))
	return snap, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID string) []model.Transaction {
	if list == nil {
		return nil
	}
	out := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		out = append(out, p.convertTransaction(ofxTx, accountID))
	}
	return out
}

// convertTransaction converts an OFX transaction to our model.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) model.Transaction {
	// OFX uses negative amounts for debits.
	amount, _ := ofxTx.TrnAmt.Float64()
	direction := model.DirectionExpense
	if amount > 0 {
		direction = model.DirectionIncome
	}
	if amount < 0 {
		amount = -amount
	}
	trnType := ofxTx.TrnType.String()
	if trnType == "XFER" {
		direction = model.DirectionTransfer
	}

	tx := model.Transaction{
		ID:          string(ofxTx.FiTID),
		Date:        ofxTx.DtPosted.Time,
		Description: string(ofxTx.Name),
		Merchant:    p.extractMerchantName(ofxTx),
		Amount:      amount,
		AccountID:   accountID,
		Direction:   direction,
	}

	// OFX carries no categories; a few transaction types imply one.
	switch trnType {
	case "INT", "DIV":
		tx.Category = "Interest"
	case "FEE", "SRVCHG":
		tx.Category = "Bank Fees"
	case "ATM":
		tx.Category = "Cash & ATM"
	}

	tx.Hash = tx.GenerateHash()
	return tx
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

func bankAccountType(acctType string) model.AccountType {
	switch acctType {
	case "CHECKING":
		return model.AccountChecking
	case "SAVINGS", "MONEYMRKT", "CD":
		return model.AccountSavings
	case "CREDITLINE":
		return model.AccountCredit
	default:
		return model.AccountOther
	}
}

func accountName(kind, accountID string) string {
	suffix := accountID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "Account"
	}
	if kind == strings.ToUpper(kind) {
		kind = strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:])
	}
	return fmt.Sprintf("%s ...%s", kind, suffix)
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Provider loads a set of OFX/QFX files as a snapshot source.
type Provider struct {
	parser *Parser
	paths  []string
}

// NewProvider creates a provider over the given files.
func NewProvider(paths []string, logger *slog.Logger) *Provider {
	return &Provider{parser: NewParser(logger), paths: paths}
}

// Name implements snapshot.Provider.
func (p *Provider) Name() string { return "ofx" }

// Load implements snapshot.Provider. Files are read in order.
func (p *Provider) Load(ctx context.Context) (model.Snapshot, error) {
	var out model.Snapshot
	for _, path := range p.paths {
		part, err := p.loadFile(ctx, path)
		if err != nil {
			return model.Snapshot{}, err
		}
		out.Accounts = append(out.Accounts, part.Accounts...)
		out.Transactions = append(out.Transactions, part.Transactions...)
		out.AsOf = latest(out.AsOf, part.AsOf)
	}
	return out, nil
}

func (p *Provider) loadFile(ctx context.Context, path string) (model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	snap, err := p.parser.Parse(ctx, f)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}
