package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Direction indicates which way money moved in a transaction.
type Direction string

const (
	// DirectionExpense is money leaving the user's accounts.
	DirectionExpense Direction = "expense"
	// DirectionIncome is money arriving in the user's accounts.
	DirectionIncome Direction = "income"
	// DirectionTransfer is money moving between the user's own accounts.
	DirectionTransfer Direction = "transfer"
)

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date        time.Time `json:"date"`
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Merchant    string    `json:"merchant,omitempty"`
	Category    string    `json:"category,omitempty"`
	AccountID   string    `json:"account_id,omitempty"`
	Direction   Direction `json:"direction,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	Amount      float64   `json:"amount"` // Always non-negative; Direction carries the sign.
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Merchant,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsExpense reports whether the transaction counts toward spending.
// Transactions without a direction are treated as expenses.
func (t Transaction) IsExpense() bool {
	return t.Direction == DirectionExpense || t.Direction == ""
}
