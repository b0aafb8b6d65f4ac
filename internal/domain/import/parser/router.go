package parser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
	"github.com/casaledger/casaledger/internal/domain/import/sniffer"
)

// Router detects the file type of an upload and dispatches to the matching
// parser, merging file-level metadata into the result.
type Router struct {
	csv    *CSVParser
	pdf    *PDFParser
	xlsx   *XLSXParser
	logger *slog.Logger
}

func NewRouter(hint normalizer.DateHint, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		csv:    NewCSVParser(hint),
		pdf:    NewPDFParser(hint),
		xlsx:   NewXLSXParser(hint),
		logger: logger,
	}
}

// ParseFile routes by extension/content and parses. CSV content goes through
// encoding detection first and binary files are rejected there.
func (r *Router) ParseFile(filename string, data []byte) (*ParseResult, error) {
	fileType := sniffer.DetectFileType(filename, data)
	r.logger.Info("parsing upload",
		slog.String("file", filename),
		slog.String("type", string(fileType)),
		slog.Int("bytes", len(data)))

	var (
		result *ParseResult
		err    error
	)
	switch fileType {
	case sniffer.FileTypePDF:
		result, err = r.pdf.Parse(data)
	case sniffer.FileTypeXLSX:
		result, err = r.xlsx.Parse(data)
	default:
		var text string
		var enc sniffer.Encoding
		text, enc, err = sniffer.DecodeAuto(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filename, err)
		}
		result, err = r.csv.Parse(text)
		if result != nil {
			result.Metadata.Encoding = enc
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	result.Metadata.FileName = filename
	result.Metadata.FileType = fileType
	result.Metadata.ParsedAt = time.Now().UTC()

	if len(result.Errors) > 0 {
		r.logger.Warn("parse completed with row errors",
			slog.String("file", filename),
			slog.Int("parsed", result.ParsedRows),
			slog.Int("errors", len(result.Errors)))
	}
	return result, nil
}
