package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/casaledger/casaledger/pkg/money"
)

var ErrInvalidAmount = errors.New("unparseable amount")

// Symbol prefixes mapped to ISO-4217 codes. Longer prefixes are listed first
// so "MX$" and "R$" win over a bare "$".
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"MX$", money.MXN},
	{"R$", money.BRL},
	{"S/.", money.PEN},
	{"S/", money.PEN},
	{"US$", money.USD},
	{"$", money.USD},
	{"€", money.EUR},
	{"£", money.GBP},
	{"¥", money.JPY},
}

// ParseAmount parses a statement amount cell into a decimal value plus the
// currency implied by any symbol in the cell ("" when none was present).
//
// Handles surrounding currency symbols and ISO codes, thousands separators,
// European decimal commas, parenthesized negatives and trailing minus signs.
func ParseAmount(raw string) (decimal.Decimal, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, "", fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "-"))
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	s, currency := stripCurrency(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))

	s, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, nil
}

// stripCurrency removes a leading/trailing currency symbol or ISO code and
// reports which currency it implied.
func stripCurrency(s string) (string, string) {
	for _, cs := range currencySymbols {
		if strings.HasPrefix(s, cs.symbol) {
			return strings.TrimSpace(strings.TrimPrefix(s, cs.symbol)), cs.code
		}
		if strings.HasSuffix(s, cs.symbol) {
			return strings.TrimSpace(strings.TrimSuffix(s, cs.symbol)), cs.code
		}
	}

	upper := strings.ToUpper(s)
	for _, code := range []string{money.USD, money.EUR, money.GBP, money.BRL, money.MXN, money.PEN, money.JPY} {
		if strings.HasPrefix(upper, code+" ") || upper == code {
			return strings.TrimSpace(s[len(code):]), code
		}
		if strings.HasSuffix(upper, " "+code) {
			return strings.TrimSpace(s[:len(s)-len(code)]), code
		}
	}
	return s, ""
}

// normalizeSeparators rewrites "1.234,56" / "1,234.56" / "123,45" into a
// plain decimal string with '.' as the decimal mark.
func normalizeSeparators(s string) (string, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "", errors.New("empty")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: whichever comes last is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// Single comma with 1-2 trailing digits reads as a decimal comma;
		// otherwise commas are thousands separators.
		digitsAfter := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && (digitsAfter == 1 || digitsAfter == 2) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s, nil
}

// LooksLikeAmount reports whether the cell plausibly holds a monetary amount.
func LooksLikeAmount(s string) bool {
	_, _, err := ParseAmount(s)
	return err == nil
}
