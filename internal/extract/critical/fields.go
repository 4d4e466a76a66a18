package critical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oakmoor/jobsheet-audit/internal/extract"
)

// The six critical fields every job sheet must carry. Each entry pairs
// keyword-anchored patterns with validators and a normalizer; the selection
// logic in extractor.go is field-agnostic.
const (
	FieldJobReference        = "jobReference"
	FieldAssetID             = "assetId"
	FieldDate                = "date"
	FieldExpiryDate          = "expiryDate"
	FieldEngineerSignOff     = "engineerSignOff"
	FieldComplianceTickboxes = "complianceTickboxes"
)

const dateAlt = `\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}(?:st|nd|rd|th)?\s+[A-Za-z]+\s+\d{4}`

type fieldSpec struct {
	id              string
	patterns        []*regexp.Regexp // anchored; value in capture group 1
	contextPatterns []*regexp.Regexp // looser forms, lower trust anchoring
	validators      []func(string) bool
	normalize       func(string) string
	scan            func(string) (string, bool) // optional whole-text scanner
	minConfidence   float64
}

var criticalFields = []fieldSpec{
	{
		id: FieldJobReference,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bjob\s*(?:ref(?:erence)?|no|number)\.?\s*[:#\-]?\s*([A-Za-z0-9][A-Za-z0-9/\-]{1,19})`),
			regexp.MustCompile(`(?i)\bworks\s+order\s*(?:no|number)?\.?\s*[:#\-]?\s*([A-Za-z0-9][A-Za-z0-9/\-]{1,19})`),
		},
		contextPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:job|wo)\s*[:#]\s*([A-Za-z]{1,4}[-/]?\d{3,8})\b`),
		},
		validators:    []func(string) bool{minLen(3), hasDigit},
		normalize:     upperTrim,
		minConfidence: 0.6,
	},
	{
		id: FieldAssetID,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:asset|appliance|equipment)\s*(?:id|no|number|ref)?\.?\s*[:#\-]?\s*([A-Za-z0-9][A-Za-z0-9/\-]{2,24})`),
			regexp.MustCompile(`(?i)\bserial\s*(?:no|number)?\.?\s*[:#\-]?\s*([A-Za-z0-9][A-Za-z0-9/\-]{2,24})`),
		},
		contextPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bs/?n\s*[:#]\s*([A-Za-z0-9\-]{4,25})\b`),
		},
		validators:    []func(string) bool{minLen(3), hasDigit},
		normalize:     upperTrim,
		minConfidence: 0.6,
	},
	{
		id: FieldDate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:date\s+of\s+(?:visit|service|inspection)|service\s+date|visit\s+date|inspection\s+date)\s*[:\-]?\s*(` + dateAlt + `)`),
			regexp.MustCompile(`(?i)\bdate\s*[:\-]\s*(` + dateAlt + `)`),
		},
		contextPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bcompleted\s+on\s+(` + dateAlt + `)`),
		},
		validators:    []func(string) bool{validDate},
		normalize:     isoDate,
		minConfidence: 0.6,
	},
	{
		id: FieldExpiryDate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:expiry|expiry\s+date|expires?(?:\s+on)?|valid\s+until)\s*[:\-]?\s*(` + dateAlt + `)`),
			regexp.MustCompile(`(?i)\b(?:next\s+(?:service|inspection|test)\s+(?:due|date)|due\s+date|re-?test\s+by)\s*[:\-]?\s*(` + dateAlt + `)`),
		},
		validators:    []func(string) bool{validDate},
		normalize:     isoDate,
		minConfidence: 0.6,
	},
	{
		id: FieldEngineerSignOff,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bengineer(?:'s)?\s+(?:signature|sign[\s\-]?off|name)\s*[:\-]?\s*([A-Za-z][A-Za-z.' \t]{1,40})`),
			regexp.MustCompile(`(?i)\bsigned(?:\s+by)?\s*[:\-]\s*([A-Za-z][A-Za-z.' \t]{1,40})`),
		},
		contextPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(signed)\b`),
		},
		validators:    []func(string) bool{minLen(2), noDigits, notStopword},
		normalize:     nameTrim,
		minConfidence: 0.6,
	},
	{
		id: FieldComplianceTickboxes,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:all\s+)?(?:compliance\s+)?checks?\s+(?:completed|passed)\s*[:\-]?\s*(\[x\]|\[ \]|yes|no)`),
			regexp.MustCompile(`(?i)\bdeclaration\s*[:\-]?\s*(\[x\]|\[ \])`),
		},
		validators:    []func(string) bool{tickValue},
		normalize:     tickNorm,
		scan:          scanTickboxes,
		minConfidence: 0.6,
	},
}

// FieldIDs returns the critical field names in extraction order.
func FieldIDs() []string {
	ids := make([]string, len(criticalFields))
	for i, spec := range criticalFields {
		ids[i] = spec.id
	}
	return ids
}

func minLen(n int) func(string) bool {
	return func(s string) bool { return len(s) >= n }
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func noDigits(s string) bool { return !hasDigit(s) }

var signOffStopwords = map[string]bool{
	"date": true, "n/a": true, "none": true, "x": true, "-": true,
	"print": true, "name": true,
}

func notStopword(s string) bool {
	return !signOffStopwords[strings.ToLower(strings.TrimSpace(s))]
}

func validDate(s string) bool {
	_, ok := extract.ParseDateComponents(s)
	return ok
}

var reTickRatio = regexp.MustCompile(`^(\d+)/(\d+)$`)

// tickValue runs against normalized values: yes, no, or a ratio.
func tickValue(s string) bool {
	switch s {
	case "yes", "no":
		return true
	}
	m := reTickRatio.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	ticked, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	return total > 0 && ticked <= total
}

var reTrailingPunct = regexp.MustCompile(`[.,;:\-]+$`)

func upperTrim(s string) string {
	s = strings.TrimSpace(s)
	s = reTrailingPunct.ReplaceAllString(s, "")
	return strings.ToUpper(s)
}

func isoDate(s string) string {
	if components, ok := extract.ParseDateComponents(s); ok {
		return components.ISO()
	}
	return strings.TrimSpace(s)
}

// nameTrim collapses whitespace and drops trailing form words that the
// anchored capture tends to swallow ("A. Smith  Date" on preprinted rows).
func nameTrim(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 {
		last := strings.ToLower(reTrailingPunct.ReplaceAllString(words[len(words)-1], ""))
		if last == "date" || last == "signature" || last == "print" {
			words = words[:len(words)-1]
			continue
		}
		break
	}
	out := strings.Join(words, " ")
	return reTrailingPunct.ReplaceAllString(out, "")
}

func tickNorm(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "[x]", "yes":
		return "yes"
	case "[ ]", "no":
		return "no"
	}
	return strings.TrimSpace(s)
}

// scanTickboxes counts ticked boxes across the whole text and reports the
// ratio, e.g. "4/5". Used when no anchored declaration line matches.
func scanTickboxes(text string) (string, bool) {
	ticked := strings.Count(text, "[x]")
	empty := strings.Count(text, "[ ]")
	total := ticked + empty
	if total == 0 {
		return "", false
	}
	return fmt.Sprintf("%d/%d", ticked, total), true
}
