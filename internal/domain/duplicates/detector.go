// Package duplicates cross-references newly parsed transactions against a
// recent window of existing records and scores how likely each pair is the
// same purchase.
package duplicates

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/casaledger/casaledger/internal/domain/import/parser"
	"github.com/casaledger/casaledger/pkg/fuzzy"
)

// Signal weights. Date and amount are gates: failing either ends the
// comparison at confidence 0 before description similarity is computed.
const (
	dateWeight          = 0.3
	amountWeight        = 0.4
	descriptionWeight   = 0.3
	partialDescription  = 0.15
	reviewThreshold     = 0.5
	highConfidenceFloor = 0.8
)

// Options tunes the detector. Zero values take the documented defaults.
type Options struct {
	DateToleranceDays     int     // default 2
	StrictDate            bool    // require exact same-day match
	AmountTolerancePct    float64 // default 1 (percent of the existing amount)
	DescriptionSimilarity float64 // default 0.8
	LookbackDays          int     // default 90
	AutoSkipConfidence    float64 // default 0.95

	// DisableSameDayExactAmount turns off the carve-out that marks a pair
	// duplicate on an exact-date, bit-identical-amount match even when
	// descriptions only partially agree. Enabled by default; it is a
	// tunable policy for same-day repeats with garbled text.
	DisableSameDayExactAmount bool
}

// DefaultOptions mirror product policy.
func DefaultOptions() Options {
	return Options{
		DateToleranceDays:     2,
		AmountTolerancePct:    1,
		DescriptionSimilarity: 0.8,
		LookbackDays:          90,
		AutoSkipConfidence:    0.95,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DateToleranceDays == 0 {
		o.DateToleranceDays = d.DateToleranceDays
	}
	if o.AmountTolerancePct == 0 {
		o.AmountTolerancePct = d.AmountTolerancePct
	}
	if o.DescriptionSimilarity == 0 {
		o.DescriptionSimilarity = d.DescriptionSimilarity
	}
	if o.LookbackDays == 0 {
		o.LookbackDays = d.LookbackDays
	}
	if o.AutoSkipConfidence == 0 {
		o.AutoSkipConfidence = d.AutoSkipConfidence
	}
	return o
}

// ExistingRecord is a stored expense as the detector sees it.
type ExistingRecord struct {
	ID          string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Match is one candidate pairing with its evidence.
type Match struct {
	Record     ExistingRecord
	Confidence float64
	Reasons    []string
	Duplicate  bool
}

// Result is the per-transaction assessment.
type Result struct {
	Matches                 []Match // sorted by confidence descending
	HasDuplicates           bool
	HighConfidenceDuplicate *Match // top match when its confidence >= 0.8
}

// Detector scores transactions against existing records.
type Detector struct {
	opts Options
}

func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// Compare evaluates one transaction/record pair. Gates first: the dates
// must be within tolerance and the amounts within the percentage band, or
// the result is confidence 0 with no further comparison.
func (d *Detector) Compare(tx parser.ParsedTransaction, existing ExistingRecord) Match {
	m := Match{Record: existing}

	dayDiff := daysApart(tx.Date, existing.Date)
	if d.opts.StrictDate && dayDiff != 0 {
		return m
	}
	if dayDiff > d.opts.DateToleranceDays {
		return m
	}

	if !amountWithinTolerance(tx.Amount, existing.Amount, d.opts.AmountTolerancePct) {
		return m
	}

	m.Confidence = dateWeight + amountWeight
	m.Reasons = append(m.Reasons, "date within tolerance", "amount within tolerance")

	similarity := fuzzy.SimilarityScore(
		fuzzy.Normalize(tx.Description),
		fuzzy.Normalize(existing.Description),
	)
	switch {
	case similarity >= d.opts.DescriptionSimilarity:
		m.Confidence += descriptionWeight
		m.Reasons = append(m.Reasons, "description matches")
		m.Duplicate = true
	case similarity >= 0.5:
		m.Confidence += partialDescription
		m.Reasons = append(m.Reasons, "description partially matches")
		if !d.opts.DisableSameDayExactAmount && dayDiff == 0 && tx.Amount.Equal(existing.Amount) {
			m.Reasons = append(m.Reasons, "same-day exact-amount repeat")
			m.Duplicate = true
		}
	}
	return m
}

// FindDuplicates scores a transaction against every candidate and keeps
// those marked duplicate or scoring above the review threshold.
func (d *Detector) FindDuplicates(tx parser.ParsedTransaction, existing []ExistingRecord) Result {
	var result Result
	for _, record := range existing {
		m := d.Compare(tx, record)
		if m.Duplicate || m.Confidence > reviewThreshold {
			result.Matches = append(result.Matches, m)
		}
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Confidence > result.Matches[j].Confidence
	})

	for _, m := range result.Matches {
		if m.Duplicate {
			result.HasDuplicates = true
			break
		}
	}
	if len(result.Matches) > 0 && result.Matches[0].Confidence >= highConfidenceFloor {
		top := result.Matches[0]
		result.HighConfidenceDuplicate = &top
	}
	return result
}

// DetectForTransactions restricts candidates to the lookback window (dated
// within the last LookbackDays of now) and evaluates every transaction.
func (d *Detector) DetectForTransactions(txs []parser.ParsedTransaction, existing []ExistingRecord, now time.Time) []Result {
	cutoff := now.AddDate(0, 0, -d.opts.LookbackDays)
	var window []ExistingRecord
	for _, record := range existing {
		if !record.Date.Before(cutoff) {
			window = append(window, record)
		}
	}

	results := make([]Result, len(txs))
	for i, tx := range txs {
		results[i] = d.FindDuplicates(tx, window)
	}
	return results
}

// ShouldAutoSkip reports whether the assessment crosses the auto-skip band.
func (d *Detector) ShouldAutoSkip(r Result) bool {
	return r.HighConfidenceDuplicate != nil &&
		r.HighConfidenceDuplicate.Confidence >= d.opts.AutoSkipConfidence
}

// NeedsReview reports whether the match is confident enough to flag but not
// enough to skip automatically.
func (d *Detector) NeedsReview(r Result) bool {
	return r.HighConfidenceDuplicate != nil && !d.ShouldAutoSkip(r)
}

func daysApart(a, b time.Time) int {
	au := a.UTC().Truncate(24 * time.Hour)
	bu := b.UTC().Truncate(24 * time.Hour)
	diff := int(au.Sub(bu).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

func amountWithinTolerance(a, b decimal.Decimal, tolerancePct float64) bool {
	if b.IsZero() {
		return a.IsZero()
	}
	diff := a.Sub(b).Abs()
	allowed := b.Abs().Mul(decimal.NewFromFloat(tolerancePct / 100))
	return diff.LessThanOrEqual(allowed)
}
