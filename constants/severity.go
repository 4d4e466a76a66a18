package constants

import "strings"

// Severity ranks a validation rule's impact on the overall decision.
// Critical and major failures fail the document; minor and info do not.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityMajor:    1,
	SeverityMinor:    2,
	SeverityInfo:     3,
}

// SeverityRank returns the sort rank for a severity, most severe first.
// Unknown severities sort last.
func SeverityRank(s Severity) int {
	if rank, ok := severityRank[s]; ok {
		return rank
	}
	return len(severityRank)
}

// Blocking reports whether a failed rule of this severity fails the document.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityMajor
}

// CanonicalizeSeverity maps free-form severity strings onto the canonical
// set, defaulting to minor.
func CanonicalizeSeverity(input string) (Severity, bool) {
	normalized := Severity(strings.ToLower(strings.TrimSpace(input)))
	if _, ok := severityRank[normalized]; ok {
		return normalized, true
	}
	return SeverityMinor, false
}

// RuleType identifies how a validation rule evaluates its field.
type RuleType string

const (
	RuleRequired RuleType = "required"
	RuleFormat   RuleType = "format"
	RuleRange    RuleType = "range"
	RulePattern  RuleType = "pattern"
	RuleCustom   RuleType = "custom"
)

// RuleTypes holds the allowed rule types for spec pack validation.
var RuleTypes = []string{
	string(RuleRequired),
	string(RuleFormat),
	string(RuleRange),
	string(RulePattern),
	string(RuleCustom),
}

// FieldType identifies the declared shape of a spec field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldBoolean  FieldType = "boolean"
	FieldCurrency FieldType = "currency"
	FieldList     FieldType = "list"
)

// FieldTypes holds the allowed field types for spec pack validation.
var FieldTypes = []string{
	string(FieldString),
	string(FieldNumber),
	string(FieldDate),
	string(FieldBoolean),
	string(FieldCurrency),
	string(FieldList),
}
