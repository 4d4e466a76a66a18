package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

var (
	reISODate  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reUKDate   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
	reLongDate = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]+)\s+(\d{4})$`)

	// reDateToken finds date-shaped substrings in running text.
	reDateToken = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}(?:st|nd|rd|th)?\s+[A-Za-z]+\s+\d{4})\b`)
)

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// ParseDateComponents parses the date spellings that show up on UK job
// sheets: ISO (2024-01-15), day-first numeric (15/01/2024, 15/1/24), and
// long form (15 January 2024). Two-digit years are taken as 2000s. Month
// and day are bounds-checked; anything else is rejected.
func ParseDateComponents(raw string) (entity.DateComponents, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return entity.DateComponents{}, false
	}

	if m := reISODate.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}
	if m := reUKDate.FindStringSubmatch(s); m != nil {
		year := m[3]
		if len(year) == 2 {
			n, _ := strconv.Atoi(year)
			year = strconv.Itoa(2000 + n)
		}
		return makeDate(year, m[2], m[1])
	}
	if m := reLongDate.FindStringSubmatch(s); m != nil {
		month, ok := monthNames[strings.ToLower(m[2])]
		if !ok {
			return entity.DateComponents{}, false
		}
		return makeDate(m[3], strconv.Itoa(month), m[1])
	}
	return entity.DateComponents{}, false
}

// FindDateToken returns the first date-shaped substring in s.
func FindDateToken(s string) (string, bool) {
	token := reDateToken.FindString(s)
	return token, token != ""
}

func makeDate(year, month, day string) (entity.DateComponents, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return entity.DateComponents{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return entity.DateComponents{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return entity.DateComponents{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return entity.DateComponents{}, false
	}
	return entity.DateComponents{Year: y, Month: m, Day: d}, true
}
