package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
	"github.com/casaledger/casaledger/internal/domain/import/sniffer"
)

var ErrPDFNoTransactions = errors.New(
	"no transactions found in PDF; if this is a scanned statement, export it from your bank as CSV instead")

// minTableRecords is the bar the table-heuristic pass must clear to win over
// the regex fallback.
const minTableRecords = 5

// PDFParser extracts transactions from text-based PDF statements.
type PDFParser struct {
	hint normalizer.DateHint
}

func NewPDFParser(hint normalizer.DateHint) *PDFParser {
	return &PDFParser{hint: hint}
}

// Parse runs two extraction passes over the PDF text: a table heuristic
// keyed on header/summary lines, then a regex fallback over every line.
// The table pass wins when it yields at least minTableRecords records.
func (p *PDFParser) Parse(data []byte) (*ParseResult, error) {
	lines, err := extractLines(data)
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}

	result := &ParseResult{
		Metadata: Metadata{
			FileType: sniffer.FileTypePDF,
			ParsedAt: time.Now().UTC(),
		},
	}

	txs := p.tableHeuristic(lines, result)
	if len(txs) < minTableRecords {
		if fallback := p.regexFallback(lines); len(fallback) > len(txs) {
			txs = fallback
			result.Metadata.Warnings = append(result.Metadata.Warnings,
				"table structure not detected; used line-pattern extraction")
		}
	}

	txs = dedupeTransactions(txs)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	if len(txs) == 0 {
		return nil, ErrPDFNoTransactions
	}

	result.Transactions = txs
	result.TotalRows = len(lines)
	result.ParsedRows = len(txs)
	return result, nil
}

// extractLines reconstructs text lines from the PDF, preserving wide gaps
// between row fragments as double spaces so column splitting still works.
func extractLines(data []byte) (lines []string, err error) {
	defer func() {
		// The pdf library panics on some malformed files.
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var b strings.Builder
			var prev *pdf.Text
			for _, text := range row.Content {
				if prev != nil {
					gap := text.X - (prev.X + prev.W)
					switch {
					case gap > prev.FontSize*1.5:
						b.WriteString("  ")
					case gap > 0.5:
						b.WriteString(" ")
					}
				}
				b.WriteString(text.S)
				t := text
				prev = &t
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

var (
	sectionStartDateWords = []string{"date", "fecha"}
	sectionStartDescWords = []string{"description", "details", "concepto", "detalle", "transaction"}
	sectionEndWords       = []string{
		"total", "summary", "end of statement", "closing balance", "saldo final", "resumen",
	}

	columnSplitRe = regexp.MustCompile(`\s{2,}|\t+`)
)

// tableHeuristic scans for a header-delimited transaction section and parses
// each line inside it as date / description / amount columns.
func (p *PDFParser) tableHeuristic(lines []string, result *ParseResult) []ParsedTransaction {
	var txs []ParsedTransaction
	inSection := false

	for i, line := range lines {
		lower := strings.ToLower(line)
		if !inSection {
			if containsAny(lower, sectionStartDateWords) && containsAny(lower, sectionStartDescWords) {
				inSection = true
			}
			continue
		}
		if containsAny(lower, sectionEndWords) {
			inSection = false
			continue
		}

		tx, perr := p.parseTableLine(line, i+1)
		if perr != nil {
			result.Errors = append(result.Errors, *perr)
			continue
		}
		if tx != nil {
			txs = append(txs, *tx)
		}
	}
	return txs
}

// parseTableLine splits a section line on column gaps. The first token must
// be a date; the first later token that parses as a nonzero amount marks the
// boundary, with everything between forming the description.
func (p *PDFParser) parseTableLine(line string, lineNum int) (*ParsedTransaction, *ParseError) {
	tokens := columnSplitRe.Split(line, -1)
	if len(tokens) < 2 {
		return nil, nil
	}

	date, err := normalizer.ParseFlexibleDate(tokens[0], p.hint)
	if err != nil {
		return nil, nil // continuation or decoration line, not an error
	}

	for i := 1; i < len(tokens); i++ {
		amount, currency, aerr := normalizer.ParseAmount(tokens[i])
		if aerr != nil || amount.IsZero() {
			continue
		}
		description := normalizer.CleanDescription(strings.Join(tokens[1:i], " "))
		if description == "" {
			return nil, &ParseError{Row: lineNum, Column: "description", Message: "missing description", RawData: line}
		}

		txType := TypeDebit
		if amount.IsNegative() {
			txType = TypeCredit
			amount = amount.Abs()
		}
		if i+1 < len(tokens) && strings.EqualFold(strings.TrimSpace(tokens[i+1]), "CR") {
			txType = TypeCredit
		}

		return &ParsedTransaction{
			Date:        date,
			Description: description,
			Amount:      amount,
			Type:        txType,
			Currency:    currency,
			SourceRef:   fmt.Sprintf("line:%d", lineNum),
		}, nil
	}
	return nil, nil
}

// Line patterns for statements without a recognizable table layout:
// <date> <description> <amount> [DR|CR].
var linePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(.+?)\s+(-?\(?[$€£¥]?[\d.,]+\)?)\s*(DR|CR)?$`),
	regexp.MustCompile(`^(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})\s+(.+?)\s+(-?\(?[$€£¥]?[\d.,]+\)?)\s*(DR|CR)?$`),
	regexp.MustCompile(`^(\d{1,2} [A-Za-z]{3,9} \d{4})\s+(.+?)\s+(-?\(?[$€£¥]?[\d.,]+\)?)\s*(DR|CR)?$`),
}

func (p *PDFParser) regexFallback(lines []string) []ParsedTransaction {
	var txs []ParsedTransaction
	seen := make(map[string]bool)

	for i, line := range lines {
		for _, pattern := range linePatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			date, err := normalizer.ParseFlexibleDate(m[1], p.hint)
			if err != nil {
				continue
			}
			amount, currency, err := normalizer.ParseAmount(m[3])
			if err != nil || amount.IsZero() {
				continue
			}
			description := normalizer.CleanDescription(m[2])
			if description == "" {
				continue
			}

			txType := TypeDebit
			if amount.IsNegative() {
				txType = TypeCredit
				amount = amount.Abs()
			}
			if strings.EqualFold(m[4], "CR") {
				txType = TypeCredit
			}

			tx := ParsedTransaction{
				Date:        date,
				Description: description,
				Amount:      amount,
				Type:        txType,
				Currency:    currency,
				SourceRef:   fmt.Sprintf("line:%d", i+1),
			}
			if key := compositeKey(tx); !seen[key] {
				seen[key] = true
				txs = append(txs, tx)
			}
			break
		}
	}
	return txs
}

// compositeKey dedupes overlapping pattern matches: date, amount and the
// first 20 characters of the description.
func compositeKey(tx ParsedTransaction) string {
	desc := tx.Description
	if len(desc) > 20 {
		desc = desc[:20]
	}
	return tx.Date.Format("2006-01-02") + "|" + tx.Amount.String() + "|" + desc
}

func dedupeTransactions(txs []ParsedTransaction) []ParsedTransaction {
	seen := make(map[string]bool, len(txs))
	out := txs[:0]
	for _, tx := range txs {
		key := compositeKey(tx)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tx)
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
