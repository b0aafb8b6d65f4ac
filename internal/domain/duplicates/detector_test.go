package duplicates

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casaledger/casaledger/internal/domain/import/parser"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(date time.Time, desc, amount string) parser.ParsedTransaction {
	return parser.ParsedTransaction{
		Date:        date,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Type:        parser.TypeDebit,
	}
}

func record(id string, date time.Time, desc, amount string) ExistingRecord {
	return ExistingRecord{
		ID:          id,
		Date:        date,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestCompare_StarbucksScenario(t *testing.T) {
	d := NewDetector(Options{})

	m := d.Compare(
		tx(day(2024, 1, 15), "STARBUCKS #1234", "5.50"),
		record("e1", day(2024, 1, 15), "STARBUCKS COFFEE", "5.50"),
	)

	assert.True(t, m.Duplicate)
	assert.GreaterOrEqual(t, m.Confidence, 0.7, "date+amount exact, description moderately similar")
}

func TestCompare_DateGate(t *testing.T) {
	d := NewDetector(Options{})

	// 5 days apart: outside the default 2-day tolerance. Identical
	// description and amount must not accrue any score.
	m := d.Compare(
		tx(day(2024, 1, 20), "STARBUCKS #1234", "5.50"),
		record("e1", day(2024, 1, 15), "STARBUCKS #1234", "5.50"),
	)
	assert.Equal(t, 0.0, m.Confidence)
	assert.False(t, m.Duplicate)
	assert.Empty(t, m.Reasons)
}

func TestCompare_AmountGate(t *testing.T) {
	d := NewDetector(Options{})

	// 10% apart: outside the default 1% tolerance.
	m := d.Compare(
		tx(day(2024, 1, 15), "STARBUCKS #1234", "6.05"),
		record("e1", day(2024, 1, 15), "STARBUCKS #1234", "5.50"),
	)
	assert.Equal(t, 0.0, m.Confidence)
	assert.False(t, m.Duplicate)
}

func TestCompare_AmountWithinOnePercent(t *testing.T) {
	d := NewDetector(Options{})

	m := d.Compare(
		tx(day(2024, 1, 15), "STARBUCKS #1234", "100.50"),
		record("e1", day(2024, 1, 15), "STARBUCKS #1234", "100.00"),
	)
	assert.True(t, m.Duplicate)
	assert.InDelta(t, 1.0, m.Confidence, 0.001)
}

func TestCompare_StrictDate(t *testing.T) {
	d := NewDetector(Options{StrictDate: true})

	m := d.Compare(
		tx(day(2024, 1, 16), "STARBUCKS", "5.50"),
		record("e1", day(2024, 1, 15), "STARBUCKS", "5.50"),
	)
	assert.Equal(t, 0.0, m.Confidence)

	same := d.Compare(
		tx(day(2024, 1, 15), "STARBUCKS", "5.50"),
		record("e1", day(2024, 1, 15), "STARBUCKS", "5.50"),
	)
	assert.True(t, same.Duplicate)
}

func TestCompare_SameDayExactAmountCarveOut(t *testing.T) {
	// Partially similar descriptions, same day, identical amount.
	newTx := tx(day(2024, 1, 15), "STARBUCKS STORE 1111", "5.50")
	existing := record("e1", day(2024, 1, 15), "STARBUCKS STAND 9999", "5.50")

	on := NewDetector(Options{})
	m := on.Compare(newTx, existing)
	assert.True(t, m.Duplicate, "carve-out marks same-day exact-amount repeats")
	assert.InDelta(t, 0.85, m.Confidence, 0.001)

	off := NewDetector(Options{DisableSameDayExactAmount: true})
	m2 := off.Compare(newTx, existing)
	assert.False(t, m2.Duplicate)
	assert.Equal(t, m.Confidence, m2.Confidence, "carve-out changes the flag, not the score")
}

func TestFindDuplicates_SortedByConfidence(t *testing.T) {
	d := NewDetector(Options{})
	newTx := tx(day(2024, 1, 15), "STARBUCKS #1234", "5.50")

	result := d.FindDuplicates(newTx, []ExistingRecord{
		record("partial", day(2024, 1, 16), "STARBUCKS COFFEE HOUSE DOWNTOWN", "5.50"),
		record("exact", day(2024, 1, 15), "STARBUCKS #1234", "5.50"),
		record("unrelated", day(2024, 1, 15), "RENT PAYMENT", "1200.00"),
	})

	require.NotEmpty(t, result.Matches)
	assert.Equal(t, "exact", result.Matches[0].Record.ID)
	assert.True(t, result.HasDuplicates)
	require.NotNil(t, result.HighConfidenceDuplicate)
	assert.Equal(t, "exact", result.HighConfidenceDuplicate.Record.ID)

	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].Confidence, result.Matches[i].Confidence)
	}
}

func TestDetectForTransactions_LookbackWindow(t *testing.T) {
	d := NewDetector(Options{})
	now := day(2024, 6, 1)

	old := record("old", day(2023, 6, 1), "STARBUCKS #1234", "5.50")
	recent := record("recent", day(2024, 5, 30), "STARBUCKS #1234", "5.50")

	results := d.DetectForTransactions(
		[]parser.ParsedTransaction{tx(day(2024, 5, 30), "STARBUCKS #1234", "5.50")},
		[]ExistingRecord{old, recent},
		now,
	)

	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 1, "year-old record is outside the 90-day window")
	assert.Equal(t, "recent", results[0].Matches[0].Record.ID)
}

func TestShouldAutoSkipAndNeedsReview(t *testing.T) {
	d := NewDetector(Options{})

	exact := Result{HighConfidenceDuplicate: &Match{Confidence: 1.0}}
	assert.True(t, d.ShouldAutoSkip(exact))
	assert.False(t, d.NeedsReview(exact))

	reviewable := Result{HighConfidenceDuplicate: &Match{Confidence: 0.85}}
	assert.False(t, d.ShouldAutoSkip(reviewable))
	assert.True(t, d.NeedsReview(reviewable))

	assert.False(t, d.ShouldAutoSkip(Result{}))
	assert.False(t, d.NeedsReview(Result{}))
}

func TestAmountWithinTolerance(t *testing.T) {
	one := decimal.NewFromInt(100)

	assert.True(t, amountWithinTolerance(decimal.RequireFromString("100.99"), one, 1))
	assert.True(t, amountWithinTolerance(decimal.RequireFromString("99.01"), one, 1))
	assert.False(t, amountWithinTolerance(decimal.RequireFromString("101.01"), one, 1))
	assert.True(t, amountWithinTolerance(decimal.Zero, decimal.Zero, 1))
	assert.False(t, amountWithinTolerance(one, decimal.Zero, 1))
}
