package extract

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/specs"
)

// fallbackConfidence is assigned to values found by bare type patterns,
// with no keyword anchoring them to the field.
const fallbackConfidence = 0.6

// Options carries per-run extraction settings.
type Options struct {
	// MinConfidence is the floor below which an extracted field is
	// reported as both missing and low-confidence.
	MinConfidence float64
}

// Result is the outcome of one spec-driven extraction pass.
type Result struct {
	Fields              []entity.ExtractedField `json:"fields"`
	MissingFields       []string                `json:"missing_fields"`
	LowConfidenceFields []string                `json:"low_confidence_fields"`
}

// Extractor pulls spec-declared fields out of page text using keyword
// anchors. It holds no per-document state and is safe for concurrent use.
type Extractor struct {
	logger   *slog.Logger
	patterns sync.Map // keyword -> keywordPatterns
}

type keywordPatterns struct {
	colon  *regexp.Regexp
	spaced *regexp.Regexp
}

// NewExtractor creates a generic field extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractFields runs every field definition in the resolved spec against
// the document pages. Page text is passed through NormalizeText before any
// matching. Fields are processed in sorted name order and the output lists
// inherit that order, so identical inputs produce identical results.
func (e *Extractor) ExtractFields(spec *specs.ResolvedSpec, pages []entity.PageText, opts Options) *Result {
	normalized := make([]entity.PageText, len(pages))
	for i, page := range pages {
		normalized[i] = entity.PageText{PageNumber: page.PageNumber, Text: NormalizeText(page.Text)}
	}

	result := &Result{
		Fields:              make([]entity.ExtractedField, 0, len(spec.Fields)),
		MissingFields:       []string{},
		LowConfidenceFields: []string{},
	}

	for _, name := range spec.FieldOrder() {
		def := spec.Fields[name]
		field, found := e.extractField(def, normalized)
		if !found {
			result.MissingFields = append(result.MissingFields, name)
			if !def.DefaultValue.IsNone() {
				// defaults are surfaced with zero confidence; the field
				// still counts as missing from the document itself
				result.Fields = append(result.Fields, entity.ExtractedField{
					Field:           name,
					Value:           def.DefaultValue,
					Confidence:      0,
					ConfidenceLevel: constants.ConfidenceNone,
					Method:          "default",
				})
			}
			continue
		}
		if field.Confidence < opts.MinConfidence {
			result.MissingFields = append(result.MissingFields, name)
			result.LowConfidenceFields = append(result.LowConfidenceFields, name)
		}
		result.Fields = append(result.Fields, field)
	}

	e.logger.Info("extract.ok",
		"fields", len(result.Fields),
		"missing", len(result.MissingFields),
		"low_confidence", len(result.LowConfidenceFields))
	return result
}

// extractField tries keyword anchors in priority order (hints, then label,
// then aliases) across pages, then falls back to bare type patterns.
func (e *Extractor) extractField(def specs.FieldDefinition, pages []entity.PageText) (entity.ExtractedField, bool) {
	ordered := orderPages(pages, def.PageHint)

	keywords := make([]keywordRef, 0, len(def.ExtractionHints)+1+len(def.Aliases))
	for _, hint := range def.ExtractionHints {
		keywords = append(keywords, keywordRef{hint, "keyword:hint"})
	}
	if def.Label != "" {
		keywords = append(keywords, keywordRef{def.Label, "keyword:label"})
	}
	for _, alias := range def.Aliases {
		keywords = append(keywords, keywordRef{alias, "keyword:alias"})
	}

	for _, kw := range keywords {
		if kw.text == "" {
			continue
		}
		for _, page := range ordered {
			raw, ok := e.matchKeyword(kw.text, page.Text)
			if !ok {
				continue
			}
			return e.buildField(def, raw, page.PageNumber, kw.method, scoreValue(raw, def.Type)), true
		}
	}

	// no keyword matched anywhere; try a bare type pattern
	if pattern, method := fallbackPattern(def.Type); pattern != nil {
		for _, page := range ordered {
			if raw := pattern.FindString(page.Text); raw != "" {
				return e.buildField(def, raw, page.PageNumber, method, fallbackConfidence), true
			}
		}
	}

	return entity.ExtractedField{}, false
}

type keywordRef struct {
	text   string
	method string
}

// matchKeyword applies the two anchored forms for a keyword: a delimited
// form ("Job Ref: JS-1042") and a plain spaced form ("Job Ref JS-1042").
// The delimited form is tried first because it binds tighter.
func (e *Extractor) matchKeyword(keyword, text string) (string, bool) {
	patterns := e.patternsFor(keyword)
	if m := patterns.colon.FindStringSubmatch(text); m != nil {
		if value := strings.TrimSpace(m[1]); value != "" {
			return value, true
		}
	}
	if m := patterns.spaced.FindStringSubmatch(text); m != nil {
		if value := strings.TrimSpace(m[1]); value != "" {
			return value, true
		}
	}
	return "", false
}

func (e *Extractor) patternsFor(keyword string) keywordPatterns {
	if cached, ok := e.patterns.Load(keyword); ok {
		return cached.(keywordPatterns)
	}
	quoted := regexp.QuoteMeta(keyword)
	compiled := keywordPatterns{
		colon:  regexp.MustCompile(`(?i)` + quoted + `\s*[:\-]\s*([^\n\r]{1,120})`),
		spaced: regexp.MustCompile(`(?i)\b` + quoted + `\s+([^\s:][^\n\r]{0,80})`),
	}
	e.patterns.Store(keyword, compiled)
	return compiled
}

func (e *Extractor) buildField(def specs.FieldDefinition, raw string, page int, method string, confidence float64) entity.ExtractedField {
	value, normalized := normalizeValue(raw, def.Type)
	return entity.ExtractedField{
		Field:           def.Field,
		Value:           value,
		RawValue:        raw,
		Confidence:      confidence,
		ConfidenceLevel: constants.ConfidenceLevelFor(confidence),
		PageNumber:      page,
		Method:          method,
		Normalized:      normalized,
	}
}

// orderPages puts the hinted page first, then the rest in reading order.
func orderPages(pages []entity.PageText, hint *int) []entity.PageText {
	if hint == nil {
		return pages
	}
	ordered := make([]entity.PageText, 0, len(pages))
	rest := make([]entity.PageText, 0, len(pages))
	for _, page := range pages {
		if page.PageNumber == *hint {
			ordered = append(ordered, page)
		} else {
			rest = append(rest, page)
		}
	}
	return append(ordered, rest...)
}

func fallbackPattern(fieldType constants.FieldType) (*regexp.Regexp, string) {
	switch fieldType {
	case constants.FieldDate:
		return reDateToken, "fallback:date"
	case constants.FieldCurrency:
		return reCurrencyToken, "fallback:currency"
	default:
		return nil, ""
	}
}

// normalizeValue coerces a raw string into the declared type. The second
// return reports whether the coercion succeeded; on failure the raw string
// is carried through untouched.
func normalizeValue(raw string, fieldType constants.FieldType) (entity.FieldValue, bool) {
	trimmed := strings.TrimSpace(raw)
	switch fieldType {
	case constants.FieldNumber, constants.FieldCurrency:
		s := strings.TrimLeft(trimmed, "$£€ ")
		s = strings.ReplaceAll(s, ",", "")
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return entity.NumberValue(n), true
		}
	case constants.FieldDate:
		token := trimmed
		if found, ok := FindDateToken(trimmed); ok {
			token = found
		}
		if components, ok := ParseDateComponents(token); ok {
			return entity.StringValue(components.ISO()), true
		}
	case constants.FieldBoolean:
		if b, ok := entity.StringValue(trimmed).AsBool(); ok {
			return entity.BoolValue(b), true
		}
		switch trimmed {
		case "[x]":
			return entity.BoolValue(true), true
		case "[ ]":
			return entity.BoolValue(false), true
		}
	case constants.FieldList:
		parts := splitList(trimmed)
		if len(parts) > 1 {
			return entity.StringValue(strings.Join(parts, ", ")), true
		}
		return entity.StringValue(trimmed), true
	default:
		return entity.StringValue(trimmed), true
	}
	return entity.StringValue(trimmed), false
}

func splitList(s string) []string {
	raw := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	parts := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			parts = append(parts, item)
		}
	}
	return parts
}
