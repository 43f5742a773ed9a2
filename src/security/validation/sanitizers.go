package validation

import (
	"strings"
	"unicode"
)

func isFormulaLead(c byte) bool {
	return c == '=' || c == '+' || c == '-' || c == '@' || c == '\t' || c == '\r'
}

// needsQuote reports whether s starts with a formula character, possibly behind
// quotes that a previous sanitizing pass added.
func needsQuote(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 {
		return false
	}
	if isFormulaLead(trimmed[0]) {
		return true
	}
	return trimmed[0] == '\'' && needsQuote(trimmed[1:])
}

// SanitizeForFormulaInjection prepends a single quote if the string starts with a formula character.
// This makes most spreadsheet software treat it as text.
func SanitizeForFormulaInjection(s string) string {
	if needsQuote(s) {
		return "'" + s
	}
	return s
}

// EscapeQuotePrefix quotes only values that UnsanitizeFormula would otherwise
// strip, such as a literal "'=x". Unsanitized exports use it so that they read
// back unchanged.
func EscapeQuotePrefix(s string) string {
	if strings.HasPrefix(s, "'") && needsQuote(s[1:]) {
		return "'" + s
	}
	return s
}

// UnsanitizeFormula reverses SanitizeForFormulaInjection and EscapeQuotePrefix.
func UnsanitizeFormula(s string) string {
	if strings.HasPrefix(s, "'") && needsQuote(s[1:]) {
		return s[1:]
	}
	return s
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
