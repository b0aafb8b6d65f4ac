package expense

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/casaledger/casaledger/internal/domain/categorization"
	"github.com/casaledger/casaledger/internal/domain/import/parser"
	"github.com/casaledger/casaledger/pkg/money"
)

// Exchange rate provenance values.
const (
	RateSourceNone      = "none"
	RateSourceMigration = "migration"
	RateSourceConfig    = "config"
)

// minSuggestionConfidence is the floor below which an auto-suggestion is
// ignored in favor of the configured default category.
const minSuggestionConfidence = 0.3

// MapperConfig carries the per-import mapping settings.
type MapperConfig struct {
	CoupleID        string
	PaidBy          string
	DefaultCategory string

	SplitType       SplitType
	User1Percentage *float64 // only for SplitCustom

	PrimaryCurrency string
	ExchangeRate    decimal.Decimal // target units per source unit
	RateSource      string

	SessionID  string
	BatchIndex int
}

// MapTransaction converts a validated transaction plus its category
// suggestion into a persistable expense. Bad split configuration never
// hard-fails a mapping: it falls back to 50/50 with a warning attached to
// the import metadata.
func MapTransaction(tx parser.ParsedTransaction, suggestion *categorization.Suggestion, override string, cfg MapperConfig) (Expense, error) {
	category := resolveCategory(suggestion, override, cfg.DefaultCategory)

	currency := tx.Currency
	if currency == "" {
		currency = cfg.PrimaryCurrency
	}

	amount := money.NewFromDecimal(tx.Amount, currency)
	split, warnings := computeSplit(amount, cfg)

	e := Expense{
		ID:          uuid.NewString(),
		CoupleID:    cfg.CoupleID,
		Amount:      tx.Amount,
		Description: tx.Description,
		CategoryKey: category,
		PaidBy:      cfg.PaidBy,
		Date:        tx.Date,
		Split:       split,
		Currency:    currency,
		CreatedAt:   time.Now().UTC(),
		Import: &ImportMetadata{
			SessionID:    cfg.SessionID,
			BatchIndex:   cfg.BatchIndex,
			ImportedAt:   time.Now().UTC(),
			SourceRowRef: tx.SourceRef,
			Warnings:     warnings,
		},
	}

	if err := applyCurrency(&e, cfg); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func resolveCategory(suggestion *categorization.Suggestion, override, defaultCategory string) string {
	if override != "" {
		return override
	}
	if suggestion != nil && suggestion.Confidence > minSuggestionConfidence {
		return suggestion.CategoryKey
	}
	if defaultCategory != "" {
		return defaultCategory
	}
	return categorization.DefaultCategoryKey
}

// computeSplit divides the amount per the configured split, falling back to
// 50/50 on any bad configuration, and verifies the parts reconstruct the
// total within one cent before accepting them.
func computeSplit(amount *money.Money, cfg MapperConfig) (SplitDetails, []string) {
	var warnings []string

	percentage := 50.0
	switch cfg.SplitType {
	case SplitFiftyFifty, "":
		// default
	case SplitCustom:
		if cfg.User1Percentage == nil || *cfg.User1Percentage < 0 || *cfg.User1Percentage > 100 {
			warnings = append(warnings, "custom split percentage missing or out of range; using 50/50")
		} else {
			percentage = *cfg.User1Percentage
		}
	default:
		warnings = append(warnings,
			fmt.Sprintf("unrecognized split type %q; using 50/50", cfg.SplitType))
	}

	split, ok := trySplit(amount, percentage)
	if !ok {
		// Safety net: the computed parts did not reconstruct the total.
		warnings = append(warnings, "split amounts failed reconstruction; recomputed as 50/50")
		split, _ = trySplit(amount, 50)
	}
	return split, warnings
}

func trySplit(amount *money.Money, percentage float64) (SplitDetails, bool) {
	user1, user2, err := amount.SplitByPercentage(percentage)
	if err != nil {
		return SplitDetails{}, false
	}

	split := SplitDetails{
		User1Amount:     user1.ToDecimal(),
		User2Amount:     user2.ToDecimal(),
		User1Percentage: percentage,
		User2Percentage: 100 - percentage,
	}

	sum := split.User1Amount.Add(split.User2Amount)
	tolerance := decimal.RequireFromString("0.01")
	if sum.Sub(amount.ToDecimal()).Abs().GreaterThan(tolerance) {
		return split, false
	}
	return split, true
}

// applyCurrency attaches the multi-currency fields. Same-currency imports
// carry rate 1.0 with source "none".
func applyCurrency(e *Expense, cfg MapperConfig) error {
	e.PrimaryCurrency = cfg.PrimaryCurrency

	if e.Currency == cfg.PrimaryCurrency || cfg.PrimaryCurrency == "" {
		e.PrimaryCurrencyAmount = e.Amount
		e.ExchangeRate = decimal.NewFromInt(1)
		e.ExchangeRateSource = RateSourceNone
		if cfg.RateSource == RateSourceMigration {
			e.ExchangeRateSource = RateSourceMigration
		}
		return nil
	}

	if cfg.ExchangeRate.IsZero() {
		return fmt.Errorf("expense in %s needs an exchange rate to %s", e.Currency, cfg.PrimaryCurrency)
	}

	converted := money.NewFromDecimal(e.Amount, e.Currency).Convert(cfg.PrimaryCurrency, cfg.ExchangeRate)
	e.PrimaryCurrencyAmount = converted.ToDecimal()
	e.ExchangeRate = cfg.ExchangeRate
	e.ExchangeRateSource = cfg.RateSource
	if e.ExchangeRateSource == "" {
		e.ExchangeRateSource = RateSourceConfig
	}
	return nil
}
