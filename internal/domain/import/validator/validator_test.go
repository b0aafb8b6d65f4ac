package validator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casaledger/casaledger/internal/domain/import/parser"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func tx(date time.Time, desc, amount string) parser.ParsedTransaction {
	return parser.ParsedTransaction{
		Date:        date,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Type:        parser.TypeDebit,
	}
}

func TestValidate_AllValid(t *testing.T) {
	v := NewWithClock(fixedClock)

	result := v.Validate([]parser.ParsedTransaction{
		tx(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "COFFEE", "5.50"),
		tx(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "LUNCH", "12.00"),
	})

	assert.True(t, result.Passed)
	assert.Len(t, result.Valid, 2)
	assert.Empty(t, result.Invalid)
}

func TestValidate_FutureDateRejected(t *testing.T) {
	v := NewWithClock(fixedClock)

	result := v.Validate([]parser.ParsedTransaction{
		tx(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "TIME TRAVEL", "5.50"),
	})

	assert.False(t, result.Passed)
	assert.Empty(t, result.Valid)
	require.Len(t, result.Invalid, 1)
	assert.Contains(t, result.Invalid[0].Reasons, "date is in the future")
}

func TestValidate_TodayIsNotFuture(t *testing.T) {
	v := NewWithClock(fixedClock)

	result := v.Validate([]parser.ParsedTransaction{
		tx(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "TODAY", "5.50"),
	})
	assert.True(t, result.Passed)
}

func TestValidate_TimezoneSlack(t *testing.T) {
	v := NewWithClock(fixedClock)

	// A statement produced ahead of UTC can carry UTC-tomorrow; one day of
	// slack keeps it, two days out is rejected.
	result := v.Validate([]parser.ParsedTransaction{
		tx(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), "AHEAD OF UTC", "5.50"),
	})
	assert.True(t, result.Passed)

	result = v.Validate([]parser.ParsedTransaction{
		tx(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), "TOO FAR", "5.50"),
	})
	assert.False(t, result.Passed)
	require.Len(t, result.Invalid, 1)
	assert.Contains(t, result.Invalid[0].Reasons, "date is in the future")
}

func TestValidate_CollectsAllReasons(t *testing.T) {
	v := NewWithClock(fixedClock)

	bad := parser.ParsedTransaction{
		Description: "   ",
		Amount:      decimal.Zero,
	}
	result := v.Validate([]parser.ParsedTransaction{bad})

	require.Len(t, result.Invalid, 1)
	reasons := result.Invalid[0].Reasons
	assert.Contains(t, reasons, "missing date")
	assert.Contains(t, reasons, "amount must be positive")
	assert.Contains(t, reasons, "missing description")
}

func TestValidate_PartitionKeepsBoth(t *testing.T) {
	v := NewWithClock(fixedClock)

	result := v.Validate([]parser.ParsedTransaction{
		tx(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "GOOD", "5.50"),
		tx(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "", "5.50"),
	})

	assert.False(t, result.Passed)
	assert.Len(t, result.Valid, 1)
	assert.Len(t, result.Invalid, 1)
}

func TestValidate_EmptyInput(t *testing.T) {
	v := New()
	result := v.Validate(nil)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Valid)
}
