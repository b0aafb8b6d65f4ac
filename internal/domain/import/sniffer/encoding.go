// Package sniffer inspects raw uploads before parsing: text encoding,
// file type, CSV delimiter and header layout.
package sniffer

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is a detected text encoding.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
	EncodingWin1252 Encoding = "windows-1252"
	EncodingLatin1  Encoding = "iso-8859-1"
	EncodingBinary  Encoding = "binary"
)

var ErrBinaryFile = errors.New("file appears to be binary, not text")

const (
	sampleSize = 8 * 1024
	// Control characters above this fraction of the sample mean binary data.
	maxControlDensity = 0.05
)

// DetectEncoding classifies the byte content. BOMs are authoritative when
// present. Otherwise the sample is scanned for control-character density
// (binary check) and UTF-8 validity; invalid UTF-8 with bytes in the
// 0x80-0x9F range reads as windows-1252, which uses that range for printable
// characters where iso-8859-1 does not.
func DetectEncoding(data []byte) Encoding {
	if len(data) == 0 {
		return EncodingUTF8
	}

	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return EncodingUTF8
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncodingUTF16BE
	}

	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	var controls, highBytes, midControls int
	for _, b := range sample {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			controls++
		}
		if b > 0x7F {
			highBytes++
		}
		if b >= 0x80 && b <= 0x9F {
			midControls++
		}
	}

	if float64(controls)/float64(len(sample)) > maxControlDensity {
		return EncodingBinary
	}
	if highBytes == 0 {
		return EncodingUTF8
	}
	if utf8.Valid(sample) {
		return EncodingUTF8
	}
	if midControls > 0 {
		return EncodingWin1252
	}
	return EncodingLatin1
}

// Decode converts raw bytes to a UTF-8 string according to the detected
// encoding. Any leading BOM is stripped from the result.
func Decode(data []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingBinary:
		return "", ErrBinaryFile
	case EncodingUTF8:
		data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
		return string(data), nil
	case EncodingUTF16LE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding utf-16le: %w", err)
		}
		return string(out), nil
	case EncodingUTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding utf-16be: %w", err)
		}
		return string(out), nil
	case EncodingWin1252:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding windows-1252: %w", err)
		}
		return string(out), nil
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decoding iso-8859-1: %w", err)
		}
		return string(out), nil
	}
	return "", fmt.Errorf("unsupported encoding %q", enc)
}

// DecodeAuto detects and decodes in one step.
func DecodeAuto(data []byte) (string, Encoding, error) {
	enc := DetectEncoding(data)
	text, err := Decode(data, enc)
	return text, enc, err
}
