package sniffer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
)

// FileType is the routing decision for an upload.
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypePDF  FileType = "pdf"
	FileTypeXLSX FileType = "xlsx"
)

var pdfMagic = []byte("%PDF")

// DetectFileType routes by extension first, content second. Unknown content
// is assumed to be delimited text.
func DetectFileType(filename string, data []byte) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return FileTypeCSV
	case ".pdf":
		return FileTypePDF
	case ".xlsx":
		return FileTypeXLSX
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return FileTypePDF
	}
	// XLSX is a zip container.
	if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
		return FileTypeXLSX
	}
	return FileTypeCSV
}

// HeaderConfidence grades how sure header detection is.
type HeaderConfidence string

const (
	HeaderHigh      HeaderConfidence = "high"
	HeaderMedium    HeaderConfidence = "medium"
	HeaderLow       HeaderConfidence = "low"
	HeaderUncertain HeaderConfidence = "uncertain"
)

var (
	ErrNoHeader       = errors.New("no header row detected")
	ErrAccountSummary = errors.New("file looks like an account summary, not a transaction list")
	ErrEmptyFile      = errors.New("file contains no rows")
)

// Column-name vocabulary, English and Spanish, normalized form.
var (
	dateNames = []string{
		"date", "transaction date", "trans date", "posting date", "post date",
		"value date", "fecha", "fecha de operacion", "fecha operacion", "fecha valor",
	}
	descriptionNames = []string{
		"description", "details", "memo", "narrative", "payee", "merchant",
		"transaction", "concepto", "descripcion", "detalle", "movimiento",
	}
	amountNames = []string{
		"amount", "value", "transaction amount", "importe", "monto", "cantidad", "valor",
	}
	debitNames   = []string{"debit", "withdrawal", "money out", "paid out", "cargo", "debito", "retiro"}
	creditNames  = []string{"credit", "deposit", "money in", "paid in", "abono", "credito", "deposito"}
	balanceNames = []string{"balance", "running balance", "saldo"}

	accountSummaryHints = []string{"account", "number", "name", "cuenta", "titular"}
)

// HeaderInfo is the outcome of header detection over a tokenized file.
type HeaderInfo struct {
	RowIndex   int
	Confidence HeaderConfidence
	Matches    int
	Warning    string
}

// Dialect describes the detected CSV shape.
type Dialect struct {
	Delimiter rune
	Encoding  Encoding
	Header    HeaderInfo
}

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// TokenizeRows splits decoded text into rows of cells, auto-detecting the
// delimiter: the default comma is retried with alternates when it produces a
// single-column parse.
func TokenizeRows(text string) ([][]string, rune, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ',', ErrEmptyFile
	}

	var best [][]string
	bestDelim := ','
	bestCols := 0
	for _, delim := range candidateDelimiters {
		r := csv.NewReader(strings.NewReader(text))
		r.Comma = delim
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		rows, err := r.ReadAll()
		if err != nil || len(rows) == 0 {
			continue
		}
		// Score on the first row: data rows can contain the delimiter inside
		// values (decimal commas), the header line cannot.
		cols := len(rows[0])
		if cols > bestCols {
			best = rows
			bestDelim = delim
			bestCols = cols
		}
		// A multi-column default parse is good enough; don't second-guess it.
		if delim == ',' && cols > 1 {
			break
		}
	}
	if best == nil {
		return nil, ',', fmt.Errorf("tokenizing rows: %w", ErrEmptyFile)
	}
	return best, bestDelim, nil
}

const headerScanRows = 5

// DetectHeader scans the first rows for a header. A row qualifies only with
// at least one date-name match and one amount-family match (amount, debit or
// credit). With no qualifying row, a numeric first row is a hard ErrNoHeader
// (ambiguous data-only file); otherwise row 0 is used with a warning.
func DetectHeader(rows [][]string) (HeaderInfo, error) {
	if len(rows) == 0 {
		return HeaderInfo{}, ErrEmptyFile
	}

	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}

	for i := 0; i < limit; i++ {
		dates, amounts, total := countHeaderMatches(rows[i])
		if dates == 0 || amounts == 0 {
			continue
		}
		info := HeaderInfo{RowIndex: i, Matches: total}
		switch {
		case total >= 3:
			info.Confidence = HeaderHigh
		case total == 2:
			info.Confidence = HeaderMedium
		default:
			info.Confidence = HeaderLow
		}
		return info, nil
	}

	if rowHasNumber(rows[0]) {
		return HeaderInfo{}, fmt.Errorf("%w: first row contains data values", ErrNoHeader)
	}
	return HeaderInfo{
		RowIndex:   0,
		Confidence: HeaderUncertain,
		Warning:    "could not confirm a header row; assuming the first row",
	}, nil
}

// ColumnRole is the semantic role a header cell advertises.
type ColumnRole string

const (
	RoleNone        ColumnRole = ""
	RoleDate        ColumnRole = "date"
	RoleDescription ColumnRole = "description"
	RoleAmount      ColumnRole = "amount"
	RoleDebit       ColumnRole = "debit"
	RoleCredit      ColumnRole = "credit"
	RoleBalance     ColumnRole = "balance"
)

// ClassifyHeaderCell maps a header cell to its column role using the
// English/Spanish vocabulary. Shared by header detection and column binding.
func ClassifyHeaderCell(cell string) ColumnRole {
	name := normalizeHeaderCell(cell)
	if name == "" {
		return RoleNone
	}
	switch {
	case matchesAny(name, dateNames):
		return RoleDate
	case matchesAny(name, amountNames):
		return RoleAmount
	case matchesAny(name, debitNames):
		return RoleDebit
	case matchesAny(name, creditNames):
		return RoleCredit
	case matchesAny(name, descriptionNames):
		return RoleDescription
	case matchesAny(name, balanceNames):
		return RoleBalance
	}
	return RoleNone
}

func countHeaderMatches(row []string) (dates, amounts, total int) {
	for _, cell := range row {
		switch ClassifyHeaderCell(cell) {
		case RoleDate:
			dates++
			total++
		case RoleAmount, RoleDebit, RoleCredit:
			amounts++
			total++
		case RoleDescription, RoleBalance:
			total++
		}
	}
	return dates, amounts, total
}

func normalizeHeaderCell(cell string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(cell))), " ")
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	return false
}

func rowHasNumber(row []string) bool {
	for _, cell := range row {
		if normalizer.LooksLikeAmount(cell) || normalizer.LooksLikeDate(cell) {
			return true
		}
	}
	return false
}

// LooksLikeAccountSummary reports whether header cells read like account
// metadata rather than transaction columns. Drives a specialized error
// message when column binding fails.
func LooksLikeAccountSummary(row []string) bool {
	hits := 0
	for _, cell := range row {
		name := normalizeHeaderCell(cell)
		for _, hint := range accountSummaryHints {
			if strings.Contains(name, hint) {
				hits++
				break
			}
		}
	}
	return hits >= 2
}

// TrimFooter walks backward dropping blank rows and trailing rows without a
// date-like cell, stopping at the last row that contains one. Catches the
// "TOTAL ..." and closing-balance lines banks append to exports.
func TrimFooter(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 {
		row := rows[end-1]
		if rowIsBlank(row) || !rowHasDate(row) {
			end--
			continue
		}
		break
	}
	return rows[:end]
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rowHasDate(row []string) bool {
	for _, cell := range row {
		if normalizer.LooksLikeDate(cell) {
			return true
		}
	}
	return false
}
