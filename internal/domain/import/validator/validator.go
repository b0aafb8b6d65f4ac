// Package validator gates parsed transactions before they reach
// categorization and import. It is a pure partition with no side effects.
package validator

import (
	"strings"
	"time"

	"github.com/casaledger/casaledger/internal/domain/import/parser"
)

// InvalidTransaction pairs a rejected transaction with its reasons.
type InvalidTransaction struct {
	Transaction parser.ParsedTransaction
	Reasons     []string
}

// Result partitions a parsed batch into valid and invalid records.
type Result struct {
	Valid   []parser.ParsedTransaction
	Invalid []InvalidTransaction
	Passed  bool // true when nothing was rejected
}

// Validator checks parsed transactions against the field rules. Now is
// injectable so future-date checks are deterministic in tests.
type Validator struct {
	now func() time.Time
}

func New() *Validator {
	return &Validator{now: time.Now}
}

func NewWithClock(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate partitions transactions: date present, valid and not in the
// future; amount positive; description non-empty after trimming. Invalid
// records are excluded downstream but reported for user visibility.
//
// Statement dates are calendar dates at midnight UTC. A user ahead of UTC
// can legitimately hold a transaction dated UTC-tomorrow, so the future
// check allows one day of slack.
func (v *Validator) Validate(txs []parser.ParsedTransaction) Result {
	result := Result{Passed: true}
	today := v.now().UTC().Truncate(24 * time.Hour)

	for _, tx := range txs {
		var reasons []string

		switch {
		case tx.Date.IsZero():
			reasons = append(reasons, "missing date")
		case tx.Date.After(today.Add(24 * time.Hour)):
			reasons = append(reasons, "date is in the future")
		}
		if !tx.Amount.IsPositive() {
			reasons = append(reasons, "amount must be positive")
		}
		if strings.TrimSpace(tx.Description) == "" {
			reasons = append(reasons, "missing description")
		}

		if len(reasons) > 0 {
			result.Invalid = append(result.Invalid, InvalidTransaction{Transaction: tx, Reasons: reasons})
			result.Passed = false
			continue
		}
		result.Valid = append(result.Valid, tx)
	}
	return result
}
