package extract

import (
	"regexp"
	"strings"

	"github.com/oakmoor/jobsheet-audit/constants"
)

var (
	reNumberShape   = regexp.MustCompile(`^-?\d{1,3}(,\d{3})*(\.\d+)?$|^-?\d+(\.\d+)?$`)
	reCurrencyShape = regexp.MustCompile(`^[$£€]\s?\d[\d,]*(\.\d{1,2})?$|^\d[\d,]*\.\d{2}$`)
	reDigit         = regexp.MustCompile(`\d`)

	// reCurrencyToken finds currency-shaped substrings in running text.
	reCurrencyToken = regexp.MustCompile(`[$£€]\s?\d[\d,]*(?:\.\d{2})?|\b\d[\d,]*\.\d{2}\b`)
)

var boolKeywords = map[string]bool{
	"yes": true, "no": true,
	"true": true, "false": true,
	"checked": true, "unchecked": true,
	"signed": true, "unsigned": true,
	"[x]": true, "[ ]": true,
}

// scoreValue rates a raw extracted value against its declared field type.
// The base is 0.7 for any keyword-anchored hit; longer values earn 0.1 and
// a type-appropriate shape earns up to 0.2 more, capped at 1.0.
func scoreValue(value string, fieldType constants.FieldType) float64 {
	score := 0.7
	if len(value) > 5 {
		score += 0.1
	}
	switch fieldType {
	case constants.FieldNumber:
		if reNumberShape.MatchString(strings.TrimSpace(value)) {
			score += 0.2
		}
	case constants.FieldCurrency:
		if reCurrencyShape.MatchString(strings.TrimSpace(value)) {
			score += 0.2
		}
	case constants.FieldDate:
		if reDigit.MatchString(value) {
			score += 0.2
		}
	case constants.FieldBoolean:
		if boolKeywords[strings.ToLower(strings.TrimSpace(value))] {
			score += 0.2
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
