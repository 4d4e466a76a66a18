package validation

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/specs"
)

// Engine evaluates extracted fields against a resolved rule set. It holds
// no per-document state; one engine serves any number of runs.
type Engine struct {
	logger     *slog.Logger
	validators map[string]ValidatorFactory
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator registers or replaces a custom validator factory under the
// given name. Rules reference it as "name" or "name:param".
func WithValidator(name string, factory ValidatorFactory) Option {
	return func(e *Engine) {
		e.validators[name] = factory
	}
}

func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:     logger,
		validators: builtinValidators(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input carries everything one validation run needs. Fields is keyed by
// field name; rules referencing fields not in the map see them as absent.
type Input struct {
	DocumentID  uuid.UUID
	PackID      string
	PackVersion string
	PackChain   []string
	Rules       []specs.ValidationRule
	Fields      map[string]entity.ExtractedField
}

// ValidateFields evaluates every rule in order and returns the validation
// artifact plus the per-rule trace. Every rule yields exactly one validated
// field, so len(artifact.ValidatedFields) always equals len(in.Rules).
// Broken rules (bad regex, unknown validator) get status error rather than
// aborting the run; LintRules exposes the same problems as fatal errors for
// preflight checks.
func (e *Engine) ValidateFields(in Input) (*entity.ValidationArtifact, *entity.ValidationTrace) {
	validated := make([]entity.ValidatedField, 0, len(in.Rules))
	findings := make([]entity.Finding, 0)
	entries := make([]entity.TraceEntry, 0, len(in.Rules))
	summary := entity.ValidationSummary{TotalRules: len(in.Rules)}

	for _, rule := range in.Rules {
		var field *entity.ExtractedField
		if extracted, ok := in.Fields[rule.Field]; ok {
			field = &extracted
		}

		result := e.validateRule(rule, field)
		validated = append(validated, result)

		switch result.Status {
		case constants.StatusPassed:
			summary.Passed++
		case constants.StatusFailed:
			summary.Failed++
			switch rule.Severity {
			case constants.SeverityCritical:
				summary.CriticalFailures++
			case constants.SeverityMajor:
				summary.MajorFailures++
			case constants.SeverityMinor:
				summary.MinorFailures++
			case constants.SeverityInfo:
				summary.InfoFailures++
			}
			findings = append(findings, entity.Finding{
				RuleID:     rule.RuleID,
				Field:      rule.Field,
				Severity:   rule.Severity,
				ReasonCode: findingReason(rule.Type),
				Message:    result.Message,
				Value:      result.Value,
			})
		case constants.StatusSkipped:
			summary.Skipped++
		case constants.StatusError:
			summary.Errors++
		}

		entries = append(entries, entity.TraceEntry{
			RuleID:   rule.RuleID,
			Field:    rule.Field,
			RuleType: rule.Type,
			Status:   result.Status,
			Value:    result.Value.String(),
			Note:     result.Message,
		})
	}

	summary.OverallPassed = summary.CriticalFailures == 0 && summary.MajorFailures == 0

	artifact := &entity.ValidationArtifact{
		SchemaVersion:   constants.ValidationSchemaVersion,
		EngineVersion:   constants.EngineVersion,
		DocumentID:      in.DocumentID,
		PackID:          in.PackID,
		PackVersion:     in.PackVersion,
		ValidatedFields: validated,
		Findings:        findings,
		Summary:         summary,
	}
	trace := &entity.ValidationTrace{
		SchemaVersion: constants.TraceSchemaVersion,
		DocumentID:    in.DocumentID,
		PackChain:     append([]string(nil), in.PackChain...),
		Entries:       entries,
	}

	e.logger.Info("validate.ok",
		"document_id", in.DocumentID,
		"pack_id", in.PackID,
		"rules", summary.TotalRules,
		"failed", summary.Failed,
		"errors", summary.Errors,
		"overall_passed", summary.OverallPassed)
	return artifact, trace
}

// validateRule evaluates one rule against one field. field is nil when the
// extractor produced nothing for the rule's field name.
func (e *Engine) validateRule(rule specs.ValidationRule, field *entity.ExtractedField) entity.ValidatedField {
	result := entity.ValidatedField{
		RuleID:   rule.RuleID,
		Field:    rule.Field,
		Status:   constants.StatusPassed,
		Severity: rule.Severity,
		Value:    entity.NoValue(),
	}
	if field != nil {
		result.Value = field.Value
		result.Confidence = field.Confidence
	}

	if !rule.Enabled {
		result.Status = constants.StatusSkipped
		result.Message = "rule disabled"
		return result
	}

	if field == nil || field.Value.IsNone() {
		if rule.Type == constants.RuleRequired {
			result.Status = constants.StatusFailed
			result.Message = "required field is missing"
		} else {
			result.Status = constants.StatusSkipped
			result.Message = "field not extracted"
		}
		return result
	}

	switch rule.Type {
	case constants.RuleRequired:
		if field.Value.IsBlank() {
			result.Status = constants.StatusFailed
			result.Message = "required field is blank"
		}
	case constants.RuleFormat, constants.RulePattern:
		e.validatePattern(rule, field, &result)
	case constants.RuleRange:
		validateRange(rule, field, &result)
	case constants.RuleCustom:
		e.validateCustom(rule, field, &result)
	default:
		result.Status = constants.StatusError
		result.Message = fmt.Sprintf("unsupported rule type %q", rule.Type)
	}
	return result
}

var patternCache sync.Map // pattern string -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func (e *Engine) validatePattern(rule specs.ValidationRule, field *entity.ExtractedField, result *entity.ValidatedField) {
	if rule.Pattern == "" {
		result.Status = constants.StatusError
		result.Message = "pattern rule has no pattern"
		return
	}
	re, err := compilePattern(rule.Pattern)
	if err != nil {
		result.Status = constants.StatusError
		result.Message = fmt.Sprintf("invalid pattern %q: %v", rule.Pattern, err)
		return
	}
	text := field.Value.String()
	if !re.MatchString(text) {
		result.Status = constants.StatusFailed
		result.Message = fmt.Sprintf("value %q does not match pattern %q", text, rule.Pattern)
	}
}

func validateRange(rule specs.ValidationRule, field *entity.ExtractedField, result *entity.ValidatedField) {
	bounds := rule.Range
	if bounds == nil || (bounds.Min == nil && bounds.Max == nil) {
		result.Status = constants.StatusError
		result.Message = "range rule has no bounds"
		return
	}
	number, ok := field.Value.AsNumber()
	if !ok || math.IsNaN(number) {
		result.Status = constants.StatusFailed
		result.Message = fmt.Sprintf("value %q is not numeric", field.Value.String())
		return
	}
	if bounds.Min != nil && number < *bounds.Min {
		result.Status = constants.StatusFailed
		result.Message = fmt.Sprintf("value %s is below minimum value %s", formatNumber(number), formatNumber(*bounds.Min))
		return
	}
	if bounds.Max != nil && number > *bounds.Max {
		result.Status = constants.StatusFailed
		result.Message = fmt.Sprintf("value %s exceeds maximum value %s", formatNumber(number), formatNumber(*bounds.Max))
	}
}

func (e *Engine) validateCustom(rule specs.ValidationRule, field *entity.ExtractedField, result *entity.ValidatedField) {
	name, param := splitValidatorRef(rule.CustomValidator)
	if name == "" {
		result.Status = constants.StatusError
		result.Message = "custom rule has no validator reference"
		return
	}
	factory, ok := e.validators[name]
	if !ok {
		result.Status = constants.StatusError
		result.Message = fmt.Sprintf("unknown custom validator %q", name)
		return
	}
	predicate, err := factory(param)
	if err != nil {
		result.Status = constants.StatusError
		result.Message = fmt.Sprintf("validator %q: %v", name, err)
		return
	}
	if passed, detail := predicate(field.Value); !passed {
		result.Status = constants.StatusFailed
		result.Message = detail
	}
}

// splitValidatorRef splits "name:param" into its parts. References without
// a colon have an empty param.
func splitValidatorRef(ref string) (string, string) {
	name, param, _ := strings.Cut(strings.TrimSpace(ref), ":")
	return strings.TrimSpace(name), strings.TrimSpace(param)
}

// findingReason maps a failed rule type onto the reason-code vocabulary.
func findingReason(ruleType constants.RuleType) constants.ReasonCode {
	switch ruleType {
	case constants.RuleRequired:
		return constants.ReasonMissingField
	case constants.RuleFormat, constants.RulePattern:
		return constants.ReasonInvalidFormat
	default:
		return constants.ReasonOutOfPolicy
	}
}

// LintRules checks a rule set for authoring mistakes: broken regexes,
// unknown or misparameterized custom validators, bounds-free range rules.
// The first problem found is returned; nil means the set is clean. Callers
// treat a lint failure as fatal configuration, unlike ValidateFields which
// degrades the same problems into per-rule error status.
func (e *Engine) LintRules(rules []specs.ValidationRule) error {
	for _, rule := range rules {
		switch rule.Type {
		case constants.RuleFormat, constants.RulePattern:
			if rule.Pattern == "" {
				return common.NewAppError("INVALID_RULE",
					fmt.Sprintf("rule %s: pattern rule has no pattern", rule.RuleID), common.ErrInvalidPattern)
			}
			if _, err := compilePattern(rule.Pattern); err != nil {
				return common.NewAppError("INVALID_RULE",
					fmt.Sprintf("rule %s: invalid pattern %q: %v", rule.RuleID, rule.Pattern, err), common.ErrInvalidPattern)
			}
		case constants.RuleRange:
			bounds := rule.Range
			if bounds == nil || (bounds.Min == nil && bounds.Max == nil) {
				return common.NewAppError("INVALID_RULE",
					fmt.Sprintf("rule %s: range rule has no bounds", rule.RuleID), common.ErrInvalidInput)
			}
			if bounds.Min != nil && bounds.Max != nil && *bounds.Min > *bounds.Max {
				return common.NewAppError("INVALID_RULE",
					fmt.Sprintf("rule %s: range minimum %s exceeds maximum %s",
						rule.RuleID, formatNumber(*bounds.Min), formatNumber(*bounds.Max)), common.ErrInvalidInput)
			}
		case constants.RuleCustom:
			name, param := splitValidatorRef(rule.CustomValidator)
			if name == "" {
				return common.NewAppError("INVALID_RULE",
					fmt.Sprintf("rule %s: custom rule has no validator reference", rule.RuleID), common.ErrUnknownValidator)
			}
			factory, ok := e.validators[name]
			if !ok {
				return common.NewAppError("UNKNOWN_VALIDATOR",
					fmt.Sprintf("rule %s: unknown custom validator %q", rule.RuleID, name), common.ErrUnknownValidator)
			}
			if _, err := factory(param); err != nil {
				return common.NewAppError("INVALID_RULE",
					fmt.Sprintf("rule %s: validator %q: %v", rule.RuleID, name, err), common.ErrInvalidInput)
			}
		}
	}
	return nil
}
