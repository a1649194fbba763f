package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Portuguese three-letter month abbreviations as they appear in the legacy
// exports ("06/jan./2025").
var monthAbbrev = map[string]time.Month{
	"jan": time.January,
	"fev": time.February,
	"mar": time.March,
	"abr": time.April,
	"mai": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"set": time.September,
	"out": time.October,
	"nov": time.November,
	"dez": time.December,
}

var (
	isoDatePattern    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	slashDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	abbrevDatePattern = regexp.MustCompile(`^(\d{1,2})/(\p{L}{3})\./(\d{4})$`)
)

// Date parses the three calendar formats seen in the exports: an ISO
// YYYY-MM-DD prefix (timestamps included), DD/MM/YYYY, and the localized
// DD/mon./YYYY abbreviation form. Unparseable input yields absent.
func Date(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	if m := isoDatePattern.FindStringSubmatch(value); m != nil {
		return buildDate(m[3], m[2], m[1])
	}

	if m := abbrevDatePattern.FindStringSubmatch(value); m != nil {
		month, ok := monthAbbrev[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		return buildDate(m[1], strconv.Itoa(int(month)), m[3])
	}

	if m := slashDatePattern.FindStringSubmatch(value); m != nil {
		return buildDate(m[1], m[2], m[3])
	}

	return time.Time{}, false
}

func buildDate(dayStr, monthStr, yearStr string) (time.Time, bool) {
	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	year, _ := strconv.Atoi(yearStr)

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject such input.
	if date.Day() != day || date.Month() != time.Month(month) || date.Year() != year {
		return time.Time{}, false
	}

	return date, true
}
