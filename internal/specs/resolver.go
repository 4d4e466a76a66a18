package specs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/common"
)

// Resolver holds registered spec packs and flattens inheritance chains on
// demand. Registration happens at startup; Resolve is safe for concurrent
// use and hands out copies, so callers can never mutate a registered pack.
type Resolver struct {
	mu     sync.RWMutex
	logger *slog.Logger
	packs  map[string]*SpecPack
}

// NewResolver creates an empty resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		logger: logger,
		packs:  make(map[string]*SpecPack),
	}
}

// Register validates and stores a pack. Re-registering an ID replaces the
// previous pack. A cycle through already-registered packs is rejected here,
// before the pack is stored.
func (r *Resolver) Register(pack *SpecPack) error {
	if pack == nil {
		return common.NewAppError("SPEC_INVALID", "pack is nil", common.ErrInvalidInput)
	}
	if pack.ID == "" || pack.Version == "" {
		return common.NewAppError("SPEC_INVALID", "pack id and version are required", common.ErrInvalidInput)
	}
	for _, field := range pack.Fields {
		if field.Field == "" {
			return common.NewAppError("SPEC_INVALID",
				fmt.Sprintf("pack %q has a field definition without a name", pack.ID), common.ErrInvalidInput)
		}
	}
	for _, rule := range pack.ValidationRules {
		if rule.RuleID == "" || rule.Field == "" {
			return common.NewAppError("SPEC_INVALID",
				fmt.Sprintf("pack %q has a rule without id or field", pack.ID), common.ErrInvalidInput)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkCycleLocked(pack); err != nil {
		return err
	}

	stored := clonePack(pack)
	r.packs[pack.ID] = stored
	r.logger.Info("specs.register.ok",
		"pack_id", pack.ID,
		"version", pack.Version,
		"extends", pack.Extends,
		"fields", len(pack.Fields),
		"rules", len(pack.ValidationRules))
	return nil
}

// RegisterJSON validates raw pack bytes against the pack schema, then
// registers the decoded pack.
func (r *Resolver) RegisterJSON(data []byte) (*SpecPack, error) {
	if err := ValidatePackJSON(data); err != nil {
		return nil, common.NewAppError("SPEC_INVALID", err.Error(), common.ErrInvalidInput)
	}
	var pack SpecPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, common.NewAppError("SPEC_INVALID", "decode pack", err)
	}
	if err := r.Register(&pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// checkCycleLocked walks the extends chain the new pack would create.
// Unregistered ancestors end the walk; they are handled at resolve time.
func (r *Resolver) checkCycleLocked(pack *SpecPack) error {
	seen := map[string]bool{pack.ID: true}
	current := pack.Extends
	for current != "" {
		if seen[current] {
			return common.NewAppError("SPEC_CYCLE",
				fmt.Sprintf("pack %q would create a dependency cycle through %q", pack.ID, current),
				common.ErrCircularDependency)
		}
		seen[current] = true
		ancestor, ok := r.packs[current]
		if !ok {
			return nil
		}
		current = ancestor.Extends
	}
	return nil
}

// Get returns a copy of a registered pack.
func (r *Resolver) Get(packID string) (*SpecPack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pack, ok := r.packs[packID]
	if !ok {
		return nil, false
	}
	return clonePack(pack), true
}

// PackIDs returns registered pack IDs in sorted order.
func (r *Resolver) PackIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.packs))
	for id := range r.packs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve flattens the chain rooted at packID: ancestor fields and rules
// are merged base-to-leaf, later packs overriding earlier ones per field
// name and per rule ID. Rules come back sorted by rule ID with numeric runs
// compared by value, then filtered per opts with order preserved.
func (r *Resolver) Resolve(packID string, opts ResolveOptions) (*ResolvedSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	leaf, ok := r.packs[packID]
	if !ok {
		return nil, common.NewAppError("SPEC_NOT_FOUND",
			fmt.Sprintf("pack %q is not registered", packID), common.ErrPackNotFound)
	}

	// walk leaf to base
	chain := []*SpecPack{leaf}
	seen := map[string]bool{leaf.ID: true}
	current := leaf.Extends
	for current != "" {
		if seen[current] {
			return nil, common.NewAppError("SPEC_CYCLE",
				fmt.Sprintf("pack %q participates in a dependency cycle", current),
				common.ErrCircularDependency)
		}
		ancestor, ok := r.packs[current]
		if !ok {
			if opts.Strict {
				return nil, common.NewAppError("SPEC_MISSING_ANCESTOR",
					fmt.Sprintf("pack %q extends unregistered pack %q", chain[len(chain)-1].ID, current),
					common.ErrMissingAncestor)
			}
			break
		}
		seen[current] = true
		chain = append(chain, ancestor)
		current = ancestor.Extends
	}

	// merge base first so leaf definitions win
	packChain := make([]string, 0, len(chain))
	fields := make(map[string]FieldDefinition)
	ruleByID := make(map[string]ValidationRule)
	for i := len(chain) - 1; i >= 0; i-- {
		pack := chain[i]
		packChain = append(packChain, pack.ID)
		for _, field := range pack.Fields {
			fields[field.Field] = cloneField(field)
		}
		for _, rule := range pack.ValidationRules {
			ruleByID[rule.RuleID] = cloneRule(rule)
		}
	}

	rules := make([]ValidationRule, 0, len(ruleByID))
	for _, rule := range ruleByID {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return compareRuleIDs(rules[i].RuleID, rules[j].RuleID) < 0
	})

	rules = filterRules(rules, opts)

	resolved := &ResolvedSpec{
		ID:              leaf.ID,
		Version:         leaf.Version,
		PackChain:       packChain,
		Fields:          fields,
		ValidationRules: rules,
		ResolvedAt:      time.Now().UTC(),
	}
	r.logger.Info("specs.resolve.ok",
		"pack_id", packID,
		"chain", strings.Join(packChain, ","),
		"fields", len(fields),
		"rules", len(rules),
		"strict", opts.Strict)
	return resolved, nil
}

// filterRules applies post-merge filters without disturbing rule order.
func filterRules(rules []ValidationRule, opts ResolveOptions) []ValidationRule {
	if !opts.ExcludeDisabled && len(opts.FilterTags) == 0 {
		return rules
	}
	wanted := make(map[string]bool, len(opts.FilterTags))
	for _, tag := range opts.FilterTags {
		wanted[tag] = true
	}

	kept := rules[:0]
	for _, rule := range rules {
		if opts.ExcludeDisabled && !rule.Enabled {
			continue
		}
		if len(wanted) > 0 && !hasAnyTag(rule.Tags, wanted) {
			continue
		}
		kept = append(kept, rule)
	}
	return kept
}

func hasAnyTag(tags []string, wanted map[string]bool) bool {
	for _, tag := range tags {
		if wanted[tag] {
			return true
		}
	}
	return false
}

// compareRuleIDs orders rule IDs with numeric runs compared by value, so
// R002 sorts before R010 and R010 before R100. Non-digit runs compare
// bytewise. Padding differences fall back to a plain string compare to keep
// the order total.
func compareRuleIDs(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		da := isDigit(a[i])
		db := isDigit(b[j])
		switch {
		case da && db:
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				if len(na) < len(nb) {
					return -1
				}
				return 1
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
		case da != db:
			if a[i] < b[j] {
				return -1
			}
			return 1
		default:
			if a[i] != b[j] {
				if a[i] < b[j] {
					return -1
				}
				return 1
			}
			i++
			j++
		}
	}
	switch {
	case i < len(a):
		return 1
	case j < len(b):
		return -1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func clonePack(pack *SpecPack) *SpecPack {
	out := &SpecPack{
		ID:      pack.ID,
		Version: pack.Version,
		Name:    pack.Name,
		Extends: pack.Extends,
	}
	out.Fields = make([]FieldDefinition, len(pack.Fields))
	for i, field := range pack.Fields {
		out.Fields[i] = cloneField(field)
	}
	out.ValidationRules = make([]ValidationRule, len(pack.ValidationRules))
	for i, rule := range pack.ValidationRules {
		out.ValidationRules[i] = cloneRule(rule)
	}
	return out
}

func cloneField(field FieldDefinition) FieldDefinition {
	out := field
	out.ExtractionHints = append([]string(nil), field.ExtractionHints...)
	out.Aliases = append([]string(nil), field.Aliases...)
	if field.PageHint != nil {
		hint := *field.PageHint
		out.PageHint = &hint
	}
	return out
}

func cloneRule(rule ValidationRule) ValidationRule {
	out := rule
	out.Tags = append([]string(nil), rule.Tags...)
	if rule.Range != nil {
		rng := *rule.Range
		if rule.Range.Min != nil {
			min := *rule.Range.Min
			rng.Min = &min
		}
		if rule.Range.Max != nil {
			max := *rule.Range.Max
			rng.Max = &max
		}
		out.Range = &rng
	}
	return out
}
