// Package validate holds the field-level constraints applied before
// persistence. Validators are total: they return either a canonical value or
// a rejection, and the orchestrator turns rejections into warning counts.
package validate

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gorgen-health/migrator/pkg/normalize"
)

// NationalID validates a CPF-shaped identifier: exactly 11 digits, not all
// identical. The canonical form carries the fixed XXX.XXX.XXX-XX punctuation.
func NationalID(raw string) (string, bool) {
	digits := normalize.NationalID(raw)
	if len(digits) != 11 {
		return "", false
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return "", false
	}

	return fmt.Sprintf("%s.%s.%s-%s", digits[:3], digits[3:6], digits[6:9], digits[9:]), true
}

// BirthDate accepts any parseable date inside [min, max] inclusive.
func BirthDate(raw string, min, max time.Time) (time.Time, bool) {
	date, ok := normalize.Date(raw)
	if !ok {
		return time.Time{}, false
	}
	if date.Before(min) || date.After(max) {
		return time.Time{}, false
	}
	return date, true
}

// Email lowercases and trims, then checks the local@domain.tld shape: one
// "@", at least one "." after it, no whitespace.
func Email(raw string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" || strings.ContainsFunc(cleaned, unicode.IsSpace) {
		return "", false
	}

	at := strings.Index(cleaned, "@")
	if at <= 0 || at != strings.LastIndex(cleaned, "@") {
		return "", false
	}

	domain := cleaned[at+1:]
	dot := strings.Index(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return "", false
	}

	return cleaned, true
}

// PostalCode formats an 8-digit CEP as 5+3; anything else passes through
// trimmed. Postal codes are advisory, so there is no rejection path.
func PostalCode(raw string) string {
	digits := normalize.NationalID(raw)
	if len(digits) == 8 {
		return digits[:5] + "-" + digits[5:]
	}
	return strings.TrimSpace(raw)
}
