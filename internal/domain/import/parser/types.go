// Package parser turns decoded statement content (CSV rows, PDF text, XLSX
// sheets) into normalized transactions. Row-level problems are collected as
// errors alongside the rows that did parse; a parse fails outright only when
// nothing survives.
package parser

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/casaledger/casaledger/internal/domain/import/sniffer"
)

// TransactionType distinguishes money out from money in.
type TransactionType string

const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// ParsedTransaction is one normalized line item from a source file. Amount
// is always a non-negative magnitude; Type carries the sign.
type ParsedTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Type        TransactionType
	Currency    string // ISO code detected from symbols, "" when absent
	SourceRef   string // row/position reference for error reporting
}

// ParseError is a row-level problem that did not abort the parse.
type ParseError struct {
	Row     int
	Column  string
	Message string
	RawData string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// Metadata describes the file-level outcome of a parse.
type Metadata struct {
	FileName         string
	FileType         sniffer.FileType
	Encoding         sniffer.Encoding
	Delimiter        rune
	HeaderConfidence sniffer.HeaderConfidence
	Warnings         []string
	ParsedAt         time.Time
}

// ParseResult is the outcome of parsing one file.
type ParseResult struct {
	Transactions []ParsedTransaction
	Errors       []ParseError
	Metadata     Metadata
	TotalRows    int
	ParsedRows   int
	SkippedRows  int
}
