package critical

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/extract"
)

// Candidate confidences are fixed by where the match came from, not by the
// match itself: a hit inside the field's ROI is trusted more than the same
// pattern firing somewhere on the page.
const (
	roiConfidence  = 0.9
	pageConfidence = 0.7

	// defaultConflictGap is the margin below which two distinct candidate
	// values are treated as a genuine conflict.
	defaultConflictGap = 0.1
)

// Config carries run-level overrides for the critical extractor.
type Config struct {
	// ConflictGap overrides the conflict margin when > 0.
	ConflictGap float64
	// MinConfidence overrides every field's acceptance floor when > 0.
	MinConfidence float64
}

// Result is the outcome of one critical extraction pass.
type Result struct {
	Fields              []entity.FieldExtractionResult `json:"fields"`
	AggregateConfidence float64                        `json:"aggregate_confidence"`
}

// Extractor pulls the fixed critical field set out of raw page text and
// optional per-field ROI text. It needs no spec: the fields it hunts are
// the ones every compliant job sheet must carry.
type Extractor struct {
	logger *slog.Logger
	cfg    Config
}

// NewExtractor creates a critical field extractor.
func NewExtractor(logger *slog.Logger, cfg Config) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConflictGap <= 0 {
		cfg.ConflictGap = defaultConflictGap
	}
	return &Extractor{logger: logger, cfg: cfg}
}

// Extract runs every critical field against the document. roiText maps a
// field ID to text cropped from that field's region, when the caller has
// one. Results come back sorted by field ID and the aggregate confidence is
// the geometric mean over extracted fields, zero when nothing extracted.
func (e *Extractor) Extract(pages []entity.PageText, roiText map[string]string) *Result {
	normalized := make([]entity.PageText, len(pages))
	for i, page := range pages {
		normalized[i] = entity.PageText{PageNumber: page.PageNumber, Text: extract.NormalizeText(page.Text)}
	}

	results := make([]entity.FieldExtractionResult, 0, len(criticalFields))
	for _, spec := range criticalFields {
		roi := ""
		if roiText != nil {
			roi = roiText[spec.id]
		}
		results = append(results, e.extractField(spec, normalized, roi))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].FieldID < results[j].FieldID })

	extracted := 0
	product := 1.0
	for _, r := range results {
		if r.Extracted {
			extracted++
			product *= r.Confidence
		}
	}
	aggregate := 0.0
	if extracted > 0 {
		aggregate = math.Pow(product, 1/float64(extracted))
	}

	e.logger.Info("critical.extract.ok",
		"extracted", extracted,
		"total", len(results),
		"aggregate_confidence", aggregate)
	return &Result{Fields: results, AggregateConfidence: aggregate}
}

// extractField gathers candidates for one field and selects among them.
func (e *Extractor) extractField(spec fieldSpec, pages []entity.PageText, roiText string) entity.FieldExtractionResult {
	candidates := e.gatherCandidates(spec, pages, roiText)

	minConfidence := spec.minConfidence
	if e.cfg.MinConfidence > 0 {
		minConfidence = e.cfg.MinConfidence
	}

	result := entity.FieldExtractionResult{
		FieldID:           spec.id,
		Candidates:        candidates,
		SelectedCandidate: -1,
	}

	if len(candidates) == 0 {
		result.ReasonCode = constants.ReasonMissingField
		result.ValidationNotes = []string{"no candidates found"}
		return result
	}

	top := candidates[0]
	if top.Confidence < minConfidence {
		result.ReasonCode = constants.ReasonLowConfidence
		result.Confidence = top.Confidence
		result.SelectedCandidate = 0
		result.ValidationNotes = []string{fmt.Sprintf(
			"best candidate %q at %.2f below minimum %.2f", top.Value, top.Confidence, minConfidence)}
		return result
	}

	// look for a second distinct value that also clears the floor
	for _, other := range candidates[1:] {
		if other.Confidence < minConfidence {
			break
		}
		if other.Value == top.Value {
			continue
		}
		gap := top.Confidence - other.Confidence
		if gap < e.cfg.ConflictGap {
			result.ReasonCode = constants.ReasonConflict
			result.Confidence = top.Confidence
			result.SelectedCandidate = -1
			result.ValidationNotes = []string{fmt.Sprintf(
				"conflicting values %q (%.2f) and %q (%.2f)", top.Value, top.Confidence, other.Value, other.Confidence)}
			return result
		}
		result.ValidationNotes = append(result.ValidationNotes, fmt.Sprintf(
			"runner-up %q (%.2f) outmargined by %.2f", other.Value, other.Confidence, gap))
		break
	}

	result.Extracted = true
	result.Value = top.Value
	result.Confidence = top.Confidence
	result.SelectedCandidate = 0
	result.ReasonCode = constants.ReasonValid
	if spec.id == FieldDate || spec.id == FieldExpiryDate {
		if components, ok := extract.ParseDateComponents(top.Value); ok {
			result.Components = &components
		}
	}
	return result
}

// gatherCandidates scans ROI text first, then full pages. A value the ROI
// already produced is not duplicated by the page scan. Candidates come back
// sorted by confidence descending, value ascending.
func (e *Extractor) gatherCandidates(spec fieldSpec, pages []entity.PageText, roiText string) []entity.ExtractionCandidate {
	candidates := make([]entity.ExtractionCandidate, 0, 4)
	seenROI := make(map[string]bool)
	seenPage := make(map[string]bool)

	if roiText != "" {
		roi := extract.NormalizeText(roiText)
		for _, pattern := range spec.patterns {
			for _, value := range matchAll(pattern, roi) {
				e.addCandidate(&candidates, spec, seenROI, value, roiConfidence, constants.SourceROI, 0, pattern)
			}
		}
		for _, pattern := range spec.contextPatterns {
			for _, value := range matchAll(pattern, roi) {
				e.addCandidate(&candidates, spec, seenROI, value, roiConfidence, constants.SourceROI, 0, pattern)
			}
		}
		if spec.scan != nil && len(candidates) == 0 {
			if value, ok := spec.scan(roi); ok {
				e.addCandidate(&candidates, spec, seenROI, value, roiConfidence, constants.SourceROI, 0, nil)
			}
		}
	}

	for _, page := range pages {
		for _, pattern := range spec.patterns {
			for _, value := range matchAll(pattern, page.Text) {
				if normalized := spec.normalize(value); seenROI[normalized] {
					continue
				}
				e.addCandidate(&candidates, spec, seenPage, value, pageConfidence, constants.SourcePattern, page.PageNumber, pattern)
			}
		}
		for _, pattern := range spec.contextPatterns {
			for _, value := range matchAll(pattern, page.Text) {
				if normalized := spec.normalize(value); seenROI[normalized] {
					continue
				}
				e.addCandidate(&candidates, spec, seenPage, value, pageConfidence, constants.SourceContext, page.PageNumber, pattern)
			}
		}
	}
	if spec.scan != nil && len(candidates) == 0 {
		var all strings.Builder
		for _, page := range pages {
			all.WriteString(page.Text)
			all.WriteString("\n")
		}
		if value, ok := spec.scan(all.String()); ok {
			e.addCandidate(&candidates, spec, seenPage, value, pageConfidence, constants.SourcePattern, 0, nil)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Value < candidates[j].Value
	})
	return candidates
}

// addCandidate normalizes, validates, and dedupes one raw match.
func (e *Extractor) addCandidate(candidates *[]entity.ExtractionCandidate, spec fieldSpec, seen map[string]bool,
	raw string, confidence float64, source constants.CandidateSource, page int, pattern *regexp.Regexp) {

	value := spec.normalize(raw)
	if value == "" || seen[value] {
		return
	}
	for _, valid := range spec.validators {
		if !valid(value) {
			return
		}
	}
	seen[value] = true

	candidate := entity.ExtractionCandidate{
		Value:      value,
		Confidence: confidence,
		Source:     source,
		PageNumber: page,
	}
	if pattern != nil {
		candidate.MatchedPattern = pattern.String()
	}
	*candidates = append(*candidates, candidate)
}

func matchAll(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 && m[1] != "" {
			values = append(values, m[1])
		}
	}
	return values
}
