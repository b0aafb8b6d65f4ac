package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
	"github.com/casaledger/casaledger/internal/domain/import/sniffer"
)

var (
	ErrNoTransactions = errors.New("no transactions could be parsed")
	ErrMissingColumns = errors.New("required columns not found")
)

// statementRow is the gocsv fast path: struct-based unmarshaling matched by
// header name (lowercased), covering common English and Spanish exports.
type statementRow struct {
	Date  string `csv:"date"`
	Fecha string `csv:"fecha"`

	Description string `csv:"description"`
	Details     string `csv:"details"`
	Memo        string `csv:"memo"`
	Payee       string `csv:"payee"`
	Merchant    string `csv:"merchant"`
	Concepto    string `csv:"concepto"`
	Descripcion string `csv:"descripcion"`

	Amount  string `csv:"amount"`
	Value   string `csv:"value"`
	Importe string `csv:"importe"`
	Monto   string `csv:"monto"`

	Debit  string `csv:"debit"`
	Cargo  string `csv:"cargo"`
	Credit string `csv:"credit"`
	Abono  string `csv:"abono"`

	Balance string `csv:"balance"`
	Saldo   string `csv:"saldo"`
}

// Header normalization is process-wide and set exactly once; per-parse
// reader state stays local to parseFast.
func init() {
	gocsv.SetHeaderNormalizer(strings.ToLower)
}

// CSVParser parses delimited statement text.
type CSVParser struct {
	hint normalizer.DateHint
}

func NewCSVParser(hint normalizer.DateHint) *CSVParser {
	return &CSVParser{hint: hint}
}

// Parse runs the full CSV pipeline: tokenize with delimiter detection,
// detect the header row, trim footer rows, bind column roles, parse each
// row, sort ascending by date. Fails only when zero transactions survive.
func (p *CSVParser) Parse(text string) (*ParseResult, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	rows, delim, err := sniffer.TokenizeRows(text)
	if err != nil {
		return nil, err
	}

	header, err := sniffer.DetectHeader(rows)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Metadata: Metadata{
			FileType:         sniffer.FileTypeCSV,
			Delimiter:        delim,
			HeaderConfidence: header.Confidence,
			ParsedAt:         time.Now().UTC(),
		},
	}
	if header.Warning != "" {
		result.Metadata.Warnings = append(result.Metadata.Warnings, header.Warning)
	}

	if header.Confidence == sniffer.HeaderHigh && header.RowIndex == 0 {
		if ok := p.parseFast(text, delim, result); ok {
			return p.finish(result)
		}
	}

	headerRow := rows[header.RowIndex]
	binding, err := bindColumns(headerRow)
	if err != nil {
		return nil, err
	}

	dataRows := sniffer.TrimFooter(rows[header.RowIndex+1:])
	result.TotalRows = len(dataRows)

	for i, row := range dataRows {
		rowNum := header.RowIndex + i + 2 // 1-indexed, after the header
		tx, perr := p.parseRow(row, binding, rowNum)
		if perr != nil {
			result.Errors = append(result.Errors, *perr)
			continue
		}
		if tx == nil {
			result.SkippedRows++
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
		result.ParsedRows++
	}

	return p.finish(result)
}

// parseFast unmarshals via gocsv struct tags. Returns false when the tagged
// columns don't line up, sending the caller to the positional path.
func (p *CSVParser) parseFast(text string, delim rune, result *ParseResult) bool {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	var rows []statementRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil || len(rows) == 0 {
		return false
	}

	// Footer rows carry no parseable date; walk them off the end.
	end := len(rows)
	for end > 0 && !normalizer.LooksLikeDate(coalesce(rows[end-1].Date, rows[end-1].Fecha)) {
		end--
	}
	rows = rows[:end]
	if len(rows) == 0 {
		// Tagged columns didn't line up with this header; let the
		// positional path try.
		return false
	}

	result.TotalRows = len(rows)
	for i, row := range rows {
		rowNum := i + 2
		tx, perr := p.parseFastRow(row, rowNum)
		if perr != nil {
			result.Errors = append(result.Errors, *perr)
			continue
		}
		if tx == nil {
			result.SkippedRows++
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
		result.ParsedRows++
	}
	return true
}

func (p *CSVParser) parseFastRow(row statementRow, rowNum int) (*ParsedTransaction, *ParseError) {
	dateStr := coalesce(row.Date, row.Fecha)
	descStr := coalesce(row.Description, row.Details, row.Memo, row.Payee, row.Merchant, row.Concepto, row.Descripcion)
	amountStr := coalesce(row.Amount, row.Value, row.Importe, row.Monto)
	debitStr := coalesce(row.Debit, row.Cargo)
	creditStr := coalesce(row.Credit, row.Abono)

	if dateStr == "" && descStr == "" && amountStr == "" && debitStr == "" && creditStr == "" {
		return nil, nil // blank row
	}
	return p.buildTransaction(dateStr, descStr, amountStr, debitStr, creditStr, rowNum)
}

// columnBinding holds resolved column indexes; -1 means absent.
type columnBinding struct {
	date        int
	description int
	amount      int
	debit       int
	credit      int
	balance     int
}

// bindColumns locates column roles in the header row. Date is required, and
// so is either a single amount column or a debit/credit pair.
func bindColumns(header []string) (columnBinding, error) {
	b := columnBinding{date: -1, description: -1, amount: -1, debit: -1, credit: -1, balance: -1}
	for i, cell := range header {
		switch sniffer.ClassifyHeaderCell(cell) {
		case sniffer.RoleDate:
			if b.date == -1 {
				b.date = i
			}
		case sniffer.RoleDescription:
			if b.description == -1 {
				b.description = i
			}
		case sniffer.RoleAmount:
			if b.amount == -1 {
				b.amount = i
			}
		case sniffer.RoleDebit:
			if b.debit == -1 {
				b.debit = i
			}
		case sniffer.RoleCredit:
			if b.credit == -1 {
				b.credit = i
			}
		case sniffer.RoleBalance:
			if b.balance == -1 {
				b.balance = i
			}
		}
	}

	if b.date != -1 && (b.amount != -1 || b.debit != -1 || b.credit != -1) {
		return b, nil
	}
	if sniffer.LooksLikeAccountSummary(header) {
		return b, fmt.Errorf("%w: %v", sniffer.ErrAccountSummary, header)
	}
	return b, fmt.Errorf("%w: need a date column and an amount (or debit/credit) column, found headers %v",
		ErrMissingColumns, header)
}

func (p *CSVParser) parseRow(row []string, b columnBinding, rowNum int) (*ParsedTransaction, *ParseError) {
	dateStr := cellAt(row, b.date)
	descStr := cellAt(row, b.description)
	amountStr := cellAt(row, b.amount)
	debitStr := cellAt(row, b.debit)
	creditStr := cellAt(row, b.credit)

	if dateStr == "" && descStr == "" && amountStr == "" && debitStr == "" && creditStr == "" {
		return nil, nil
	}
	return p.buildTransaction(dateStr, descStr, amountStr, debitStr, creditStr, rowNum)
}

// buildTransaction applies the shared field rules: a negative single-column
// amount means credit and the magnitude is stored unsigned; with separate
// debit/credit columns, whichever is positive determines the type.
func (p *CSVParser) buildTransaction(dateStr, descStr, amountStr, debitStr, creditStr string, rowNum int) (*ParsedTransaction, *ParseError) {
	date, err := normalizer.ParseFlexibleDate(dateStr, p.hint)
	if err != nil {
		return nil, &ParseError{Row: rowNum, Column: "date", Message: err.Error(), RawData: dateStr}
	}

	description := normalizer.CleanDescription(descStr)
	if description == "" {
		return nil, &ParseError{Row: rowNum, Column: "description", Message: "missing description"}
	}

	var (
		amount   decimal.Decimal
		txType   TransactionType
		currency string
	)

	switch {
	case strings.TrimSpace(amountStr) != "":
		amount, currency, err = normalizer.ParseAmount(amountStr)
		if err != nil {
			return nil, &ParseError{Row: rowNum, Column: "amount", Message: err.Error(), RawData: amountStr}
		}
		txType = TypeDebit
		if amount.IsNegative() {
			txType = TypeCredit
			amount = amount.Abs()
		}
	default:
		var perr *ParseError
		amount, txType, currency, perr = parseDebitCredit(debitStr, creditStr, rowNum)
		if perr != nil {
			return nil, perr
		}
	}

	if amount.IsZero() {
		return nil, &ParseError{Row: rowNum, Column: "amount", Message: "zero amount", RawData: amountStr}
	}

	return &ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        txType,
		Currency:    currency,
		SourceRef:   fmt.Sprintf("row:%d", rowNum),
	}, nil
}

func parseDebitCredit(debitStr, creditStr string, rowNum int) (decimal.Decimal, TransactionType, string, *ParseError) {
	if v := strings.TrimSpace(debitStr); v != "" {
		amount, currency, err := normalizer.ParseAmount(v)
		if err == nil && !amount.IsZero() {
			return amount.Abs(), TypeDebit, currency, nil
		}
	}
	if v := strings.TrimSpace(creditStr); v != "" {
		amount, currency, err := normalizer.ParseAmount(v)
		if err == nil && !amount.IsZero() {
			return amount.Abs(), TypeCredit, currency, nil
		}
	}
	return decimal.Zero, "", "", &ParseError{
		Row:     rowNum,
		Column:  "amount",
		Message: "neither debit nor credit column holds a nonzero amount",
	}
}

// finish sorts ascending by date and enforces the zero-survivor failure.
func (p *CSVParser) finish(result *ParseResult) (*ParseResult, error) {
	if len(result.Transactions) == 0 {
		return nil, fmt.Errorf("%w: %d rows examined, %d row errors",
			ErrNoTransactions, result.TotalRows, len(result.Errors))
	}
	sort.SliceStable(result.Transactions, func(i, j int) bool {
		return result.Transactions[i].Date.Before(result.Transactions[j].Date)
	})
	return result, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func coalesce(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
