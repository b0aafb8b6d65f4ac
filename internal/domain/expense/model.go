// Package expense holds the persisted financial record, the mapper that
// builds it from parsed transactions, and its document-store repository.
package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection is the document-store collection expenses live in.
const Collection = "expenses"

// SplitType selects how an expense divides between the two household
// members.
type SplitType string

const (
	SplitFiftyFifty SplitType = "50/50"
	SplitCustom     SplitType = "custom"
)

// SplitDetails is the two-way division of an expense. The amounts always
// reconstruct the expense total within one cent and the percentages sum
// to 100.
type SplitDetails struct {
	User1Amount     decimal.Decimal `json:"user1_amount"`
	User2Amount     decimal.Decimal `json:"user2_amount"`
	User1Percentage float64         `json:"user1_percentage"`
	User2Percentage float64         `json:"user2_percentage"`
}

// ImportMetadata is present only on imported expenses; rollback finds a
// session's records through it. Raw source payloads are deliberately not
// carried here to respect record-size limits.
type ImportMetadata struct {
	SessionID    string    `json:"session_id"`
	BatchIndex   int       `json:"batch_index"`
	ImportedAt   time.Time `json:"imported_at"`
	SourceRowRef string    `json:"source_row_ref"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Expense is the user-visible financial record.
type Expense struct {
	ID          string          `json:"id"`
	CoupleID    string          `json:"couple_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CategoryKey string          `json:"category_key"`
	PaidBy      string          `json:"paid_by"`
	Date        time.Time       `json:"date"`

	Split SplitDetails `json:"split"`

	Currency              string          `json:"currency"`
	PrimaryCurrency       string          `json:"primary_currency"`
	PrimaryCurrencyAmount decimal.Decimal `json:"primary_currency_amount"`
	ExchangeRate          decimal.Decimal `json:"exchange_rate"`
	ExchangeRateSource    string          `json:"exchange_rate_source"`

	Import *ImportMetadata `json:"import,omitempty"`

	// SettledAt freezes the expense for edits once set; deletes stay
	// allowed but are flagged.
	SettledAt *time.Time `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Settled reports whether the expense is frozen for edit purposes.
func (e *Expense) Settled() bool {
	return e.SettledAt != nil
}
