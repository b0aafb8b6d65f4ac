package parser

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
	"github.com/casaledger/casaledger/internal/domain/import/sniffer"
)

// XLSXParser reads the first sheet of a workbook and feeds its rows through
// the same header-detection and column-binding pipeline as CSV.
type XLSXParser struct {
	hint normalizer.DateHint
}

func NewXLSXParser(hint normalizer.DateHint) *XLSXParser {
	return &XLSXParser{hint: hint}
}

func (p *XLSXParser) Parse(data []byte) (*ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, sniffer.ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, sniffer.ErrEmptyFile
	}

	header, err := sniffer.DetectHeader(rows)
	if err != nil {
		return nil, err
	}
	binding, err := bindColumns(rows[header.RowIndex])
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Metadata: Metadata{
			FileType:         sniffer.FileTypeXLSX,
			HeaderConfidence: header.Confidence,
			ParsedAt:         time.Now().UTC(),
		},
	}
	if header.Warning != "" {
		result.Metadata.Warnings = append(result.Metadata.Warnings, header.Warning)
	}

	csvParser := &CSVParser{hint: p.hint}
	dataRows := sniffer.TrimFooter(rows[header.RowIndex+1:])
	result.TotalRows = len(dataRows)

	for i, row := range dataRows {
		rowNum := header.RowIndex + i + 2
		tx, perr := csvParser.parseRow(row, binding, rowNum)
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

	return csvParser.finish(result)
}
