package specs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

// FieldDefinition declares one extractable field: what it is called on the
// form, where to look for it, and what shape the value should have.
type FieldDefinition struct {
	Field           string              `json:"field"`
	Label           string              `json:"label,omitempty"`
	Type            constants.FieldType `json:"type"`
	Required        bool                `json:"required"`
	ExtractionHints []string            `json:"extractionHints,omitempty"`
	Aliases         []string            `json:"aliases,omitempty"`
	DefaultValue    entity.FieldValue   `json:"defaultValue,omitempty"`
	PageHint        *int                `json:"pageHint,omitempty"`
}

// RuleRange bounds a numeric rule. Either side may be open.
type RuleRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// ValidationRule declares one check against one field. Rules are identified
// by RuleID across the pack chain: an overlay pack redefines a rule by
// reusing its ID.
type ValidationRule struct {
	RuleID          string             `json:"ruleId"`
	Field           string             `json:"field"`
	Type            constants.RuleType `json:"type"`
	Severity        constants.Severity `json:"severity"`
	Pattern         string             `json:"pattern,omitempty"`
	Range           *RuleRange         `json:"range,omitempty"`
	CustomValidator string             `json:"customValidator,omitempty"`
	Enabled         bool               `json:"enabled"`
	Tags            []string           `json:"tags,omitempty"`
}

// UnmarshalJSON defaults enabled to true when the pack author omits it.
func (r *ValidationRule) UnmarshalJSON(data []byte) error {
	type alias ValidationRule
	aux := struct {
		Enabled *bool `json:"enabled"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Enabled == nil {
		r.Enabled = true
	} else {
		r.Enabled = *aux.Enabled
	}
	return nil
}

// SpecPack is one layer of field definitions and validation rules. Packs
// form single-inheritance chains through Extends.
type SpecPack struct {
	ID              string            `json:"id"`
	Version         string            `json:"version"`
	Name            string            `json:"name,omitempty"`
	Extends         string            `json:"extends,omitempty"`
	Fields          []FieldDefinition `json:"fields"`
	ValidationRules []ValidationRule  `json:"validationRules"`
}

// ResolveOptions controls how a pack chain is flattened.
type ResolveOptions struct {
	// Strict makes a missing ancestor an error instead of truncating the
	// chain at the last pack that exists.
	Strict bool
	// ExcludeDisabled drops rules with enabled=false from the output.
	ExcludeDisabled bool
	// FilterTags, when non-empty, keeps only rules carrying at least one
	// of these tags.
	FilterTags []string
}

// ResolvedSpec is a flattened pack chain: one merged field set and one
// sorted rule list, ready for extraction and validation.
type ResolvedSpec struct {
	ID              string                     `json:"id"`
	Version         string                     `json:"version"`
	PackChain       []string                   `json:"packChain"` // base pack first
	Fields          map[string]FieldDefinition `json:"fields"`
	ValidationRules []ValidationRule           `json:"validationRules"`
	ResolvedAt      time.Time                  `json:"resolvedAt"`
}

// FieldOrder returns the field names in sorted order. Callers iterate this
// instead of ranging over Fields so output ordering never depends on map
// iteration.
func (s *ResolvedSpec) FieldOrder() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint hashes the resolved content, excluding ResolvedAt, so two
// resolutions of the same chain fingerprint identically.
func (s *ResolvedSpec) Fingerprint() string {
	shadow := struct {
		ID              string                     `json:"id"`
		Version         string                     `json:"version"`
		PackChain       []string                   `json:"packChain"`
		Fields          map[string]FieldDefinition `json:"fields"`
		ValidationRules []ValidationRule           `json:"validationRules"`
	}{s.ID, s.Version, s.PackChain, s.Fields, s.ValidationRules}

	payload, err := json.Marshal(shadow)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
