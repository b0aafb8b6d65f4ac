package sniffer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncoding(t *testing.T) {
	t.Run("BOMs are authoritative", func(t *testing.T) {
		assert.Equal(t, EncodingUTF8, DetectEncoding([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'}))
		assert.Equal(t, EncodingUTF16LE, DetectEncoding([]byte{0xFF, 0xFE, 'h', 0, 'i', 0}))
		assert.Equal(t, EncodingUTF16BE, DetectEncoding([]byte{0xFE, 0xFF, 0, 'h', 0, 'i'}))
	})

	t.Run("plain ascii is utf-8", func(t *testing.T) {
		assert.Equal(t, EncodingUTF8, DetectEncoding([]byte("Date,Amount\n2024-01-01,5.50\n")))
	})

	t.Run("valid multibyte utf-8", func(t *testing.T) {
		assert.Equal(t, EncodingUTF8, DetectEncoding([]byte("café crème €")))
	})

	t.Run("0x80-0x9F range means windows-1252", func(t *testing.T) {
		// 0x93/0x94 are curly quotes in windows-1252, invalid UTF-8 here.
		data := []byte{'s', 'a', 'i', 'd', ' ', 0x93, 'h', 'i', 0x94}
		assert.Equal(t, EncodingWin1252, DetectEncoding(data))
	})

	t.Run("high bytes without mid controls means latin-1", func(t *testing.T) {
		// 0xE9 is é in iso-8859-1 and not a valid UTF-8 sequence alone.
		data := []byte{'c', 'a', 'f', 0xE9, ' ', 'o', 'l', 0xE9}
		assert.Equal(t, EncodingLatin1, DetectEncoding(data))
	})

	t.Run("control density flags binary", func(t *testing.T) {
		data := make([]byte, 100)
		copy(data, "text")
		assert.Equal(t, EncodingBinary, DetectEncoding(data))
	})
}

func TestDecode(t *testing.T) {
	t.Run("utf-8 strips BOM", func(t *testing.T) {
		out, err := Decode([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, EncodingUTF8)
		require.NoError(t, err)
		assert.Equal(t, "hi", out)
	})

	t.Run("utf-16le", func(t *testing.T) {
		out, err := Decode([]byte{0xFF, 0xFE, 'h', 0, 'i', 0}, EncodingUTF16LE)
		require.NoError(t, err)
		assert.Equal(t, "hi", out)
	})

	t.Run("windows-1252 curly quotes", func(t *testing.T) {
		out, err := Decode([]byte{0x93, 'o', 'k', 0x94}, EncodingWin1252)
		require.NoError(t, err)
		assert.Equal(t, "“ok”", out)
	})

	t.Run("latin-1 accents", func(t *testing.T) {
		out, err := Decode([]byte{'c', 'a', 'f', 0xE9}, EncodingLatin1)
		require.NoError(t, err)
		assert.Equal(t, "café", out)
	})

	t.Run("binary refuses to decode", func(t *testing.T) {
		_, err := Decode([]byte{0, 1, 2}, EncodingBinary)
		assert.ErrorIs(t, err, ErrBinaryFile)
	})
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, FileTypeCSV, DetectFileType("statement.csv", nil))
	assert.Equal(t, FileTypeCSV, DetectFileType("statement.TXT", nil))
	assert.Equal(t, FileTypePDF, DetectFileType("statement.pdf", nil))
	assert.Equal(t, FileTypeXLSX, DetectFileType("statement.xlsx", nil))

	// No useful extension: content decides.
	assert.Equal(t, FileTypePDF, DetectFileType("upload", []byte("%PDF-1.7 ...")))
	assert.Equal(t, FileTypeXLSX, DetectFileType("upload", []byte{0x50, 0x4B, 0x03, 0x04, 0}))
	assert.Equal(t, FileTypeCSV, DetectFileType("upload", []byte("Date,Amount\n")))
}

func TestTokenizeRows(t *testing.T) {
	t.Run("comma", func(t *testing.T) {
		rows, delim, err := TokenizeRows("a,b,c\n1,2,3\n")
		require.NoError(t, err)
		assert.Equal(t, ',', delim)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	})

	t.Run("semicolon fallback", func(t *testing.T) {
		rows, delim, err := TokenizeRows("Fecha;Concepto;Importe\n01/02/2024;CAFE;5,50\n")
		require.NoError(t, err)
		assert.Equal(t, ';', delim)
		assert.Len(t, rows[0], 3)
	})

	t.Run("tab and pipe", func(t *testing.T) {
		_, delim, err := TokenizeRows("a\tb\tc\n1\t2\t3\n")
		require.NoError(t, err)
		assert.Equal(t, '\t', delim)

		_, delim, err = TokenizeRows("a|b|c\n1|2|3\n")
		require.NoError(t, err)
		assert.Equal(t, '|', delim)
	})

	t.Run("quoted field with embedded newline and comma", func(t *testing.T) {
		rows, _, err := TokenizeRows("Date,Description,Amount\n2024-01-15,\"COFFEE,\nDOWNTOWN\",5.50\n")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "COFFEE,\nDOWNTOWN", rows[1][1])
	})

	t.Run("empty input", func(t *testing.T) {
		_, _, err := TokenizeRows("   \n  ")
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestDetectHeader(t *testing.T) {
	t.Run("english header high confidence", func(t *testing.T) {
		info, err := DetectHeader([][]string{
			{"Date", "Description", "Amount"},
			{"2024-01-15", "COFFEE", "5.50"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, info.RowIndex)
		assert.Equal(t, HeaderHigh, info.Confidence)
	})

	t.Run("spanish header", func(t *testing.T) {
		info, err := DetectHeader([][]string{
			{"Fecha", "Concepto", "Importe"},
			{"15/01/2024", "CAFE", "5,50"},
		})
		require.NoError(t, err)
		assert.Equal(t, HeaderHigh, info.Confidence)
	})

	t.Run("header after preamble rows", func(t *testing.T) {
		info, err := DetectHeader([][]string{
			{"My Bank Statement"},
			{""},
			{"Date", "Debit", "Credit"},
			{"2024-01-15", "5.50", ""},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, info.RowIndex)
	})

	t.Run("medium confidence with two matches", func(t *testing.T) {
		info, err := DetectHeader([][]string{
			{"Date", "Stuff", "Amount"},
		})
		require.NoError(t, err)
		assert.Equal(t, HeaderMedium, info.Confidence)
	})

	t.Run("data-only file is a hard error", func(t *testing.T) {
		_, err := DetectHeader([][]string{
			{"2024-01-15", "COFFEE", "5.50"},
			{"2024-01-16", "LUNCH", "12.00"},
		})
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("unrecognized text header falls back with warning", func(t *testing.T) {
		info, err := DetectHeader([][]string{
			{"When", "What", "How Much"},
			{"2024-01-15", "COFFEE", "5.50"},
		})
		require.NoError(t, err)
		assert.Equal(t, HeaderUncertain, info.Confidence)
		assert.NotEmpty(t, info.Warning)
	})
}

func TestLooksLikeAccountSummary(t *testing.T) {
	assert.True(t, LooksLikeAccountSummary([]string{"Account Number", "Account Name", "Currency"}))
	assert.False(t, LooksLikeAccountSummary([]string{"Date", "Description", "Amount"}))
}

func TestTrimFooter(t *testing.T) {
	rows := [][]string{
		{"Date", "Description", "Amount"},
		{"2024-01-15", "COFFEE", "5.50"},
		{"2024-01-16", "LUNCH", "12.00"},
		{"", "", ""},
		{"TOTAL", "", "17.50"},
		{"End of statement", "", ""},
	}

	trimmed := TrimFooter(rows)
	require.Len(t, trimmed, 3)
	assert.Equal(t, "2024-01-16", trimmed[2][0])

	t.Run("no footer leaves rows untouched", func(t *testing.T) {
		data := [][]string{{"2024-01-15", "COFFEE", "5.50"}}
		assert.Len(t, TrimFooter(data), 1)
	})

	t.Run("all footer trims to nothing", func(t *testing.T) {
		data := [][]string{{"TOTAL", "17.50"}}
		assert.Empty(t, TrimFooter(data))
	})
}

func TestDecodeAuto_EndToEnd(t *testing.T) {
	// windows-1252 statement with curly quotes decodes and tokenizes.
	raw := []byte("Date,Description,Amount\n2024-01-15,")
	raw = append(raw, 0x93)
	raw = append(raw, []byte("CAFE")...)
	raw = append(raw, 0x94)
	raw = append(raw, []byte(",5.50\n")...)

	text, enc, err := DecodeAuto(raw)
	require.NoError(t, err)
	assert.Equal(t, EncodingWin1252, enc)
	assert.True(t, strings.Contains(text, "“CAFE”"))
}
