package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money parses Brazilian-formatted monetary text ("R$ 1.234,56") into a
// decimal fixed at two fractional places. A lone "-" or empty value means
// zero; malformed numeric text yields absent.
func Money(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	value = strings.ReplaceAll(value, "R$", "")
	value = strings.ReplaceAll(value, " ", "")

	if value == "" || value == "-" {
		return decimal.Zero.Round(2), true
	}

	// 1.234,56 -> 1234.56
	value = strings.ReplaceAll(value, ".", "")
	value = strings.ReplaceAll(value, ",", ".")

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}

	return parsed.Round(2), true
}
