// Package rules holds the declarative, versioned rule set shared by every
// classification pass: source schemas, non-finalized status vocabularies,
// transfer/noise predicates, lifecycle type markers and ordered category rules.
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rocjay1/spend-audit/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// SourceSchema describes how one source export maps onto a canonical transaction.
type SourceSchema struct {
	Label  string `yaml:"label"`
	Family string `yaml:"family"`

	DateColumn string `yaml:"date_column"`
	// DateLayouts are Go time layouts tried in order.
	DateLayouts []string `yaml:"date_layouts"`
	// AmountColumns are tried in order; the first column present in the row wins.
	AmountColumns []string `yaml:"amount_columns"`
	NameColumn    string   `yaml:"name_column"`
	TypeColumn    string   `yaml:"type_column"`
	StatusColumn  string   `yaml:"status_column"`
	IDColumn      string   `yaml:"id_column"`

	// Required sources are reported as degraded when missing. The run still continues.
	Required bool `yaml:"required"`
}

// TransferSpec is the YAML form of one transfer/noise predicate.
// Exactly one of the match fields must be set; Source and Family narrow the scope.
// Fields are lowercased before matching, so regexes must be written in lowercase.
type TransferSpec struct {
	NameContains string `yaml:"name_contains"`
	NameRegex    string `yaml:"name_regex"`
	TypeEquals   string `yaml:"type_equals"`
	TypeContains string `yaml:"type_contains"`
	Source       string `yaml:"source"`
	Family       string `yaml:"family"`
}

// CategorySpec is the YAML form of one category rule. Regexes run against the lowercased name.
type CategorySpec struct {
	Category string   `yaml:"category"`
	Contains []string `yaml:"contains"`
	Regex    []string `yaml:"regex"`
	Unless   []string `yaml:"unless"`
}

// LifecycleSpec lists the type substrings that mark authorization and settlement records.
type LifecycleSpec struct {
	Authorization []string `yaml:"authorization"`
	Settlement    []string `yaml:"settlement"`
}

type document struct {
	Version      string              `yaml:"version"`
	Sources      []SourceSchema      `yaml:"sources"`
	NonFinalized map[string][]string `yaml:"non_finalized"`
	Lifecycle    LifecycleSpec       `yaml:"lifecycle"`
	Transfers    []TransferSpec      `yaml:"transfers"`
	Categories   []CategorySpec      `yaml:"categories"`
}

// TransferRule is a compiled transfer/noise predicate.
type TransferRule struct {
	Spec  TransferSpec
	field func(t *models.Transaction) string
	pred  predicate
}

// Matches reports whether the rule applies to t.
func (r *TransferRule) Matches(t *models.Transaction, family string) bool {
	if r.Spec.Source != "" && !strings.EqualFold(r.Spec.Source, t.Source) {
		return false
	}
	if r.Spec.Family != "" && !strings.EqualFold(r.Spec.Family, family) {
		return false
	}
	return r.pred.match(strings.ToLower(strings.TrimSpace(r.field(t))))
}

// String describes the rule for logs.
func (r *TransferRule) String() string {
	scope := ""
	if r.Spec.Source != "" {
		scope = " source=" + r.Spec.Source
	}
	if r.Spec.Family != "" {
		scope += " family=" + r.Spec.Family
	}
	return r.pred.String() + scope
}

// CategoryRule is a compiled category rule. It matches when any match
// predicate hits and no unless predicate does.
type CategoryRule struct {
	Category models.Category
	match    []predicate
	unless   []predicate
}

// Matches reports whether the rule applies to a lowercased name.
func (r *CategoryRule) Matches(lowerName string) bool {
	return anyMatch(r.match, lowerName) && !anyMatch(r.unless, lowerName)
}

// RuleSet is the compiled, immutable rule set.
type RuleSet struct {
	Version    string
	Sources    []SourceSchema
	Transfers  []TransferRule
	Categories []CategoryRule

	nonFinalized  map[string]map[string]bool
	anyFinalized  map[string]bool
	authorization []predicate
	settlement    []predicate
	families      map[string]string
}

// Default returns the rule set embedded in the binary.
func Default() (*RuleSet, error) {
	return Load(bytes.NewReader(defaultRules))
}

// LoadFile reads a rule set from a YAML file.
func LoadFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()
	rs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file %s: %w", path, err)
	}
	return rs, nil
}

// Load parses and validates a rule set.
func Load(r io.Reader) (*RuleSet, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	return compile(doc)
}

func compile(doc document) (*RuleSet, error) {
	if strings.TrimSpace(doc.Version) == "" {
		return nil, fmt.Errorf("rule set version is required")
	}

	rs := &RuleSet{
		Version:      doc.Version,
		Sources:      doc.Sources,
		nonFinalized: make(map[string]map[string]bool),
		anyFinalized: make(map[string]bool),
		families:     make(map[string]string),
	}

	for i, s := range doc.Sources {
		if s.Label == "" {
			return nil, fmt.Errorf("source %d: label is required", i)
		}
		if _, dup := rs.families[strings.ToLower(s.Label)]; dup {
			return nil, fmt.Errorf("source %q declared twice", s.Label)
		}
		if s.DateColumn == "" || len(s.AmountColumns) == 0 || s.NameColumn == "" {
			return nil, fmt.Errorf("source %q: date_column, amount_columns and name_column are required", s.Label)
		}
		if len(s.DateLayouts) == 0 {
			return nil, fmt.Errorf("source %q: at least one date layout is required", s.Label)
		}
		rs.families[strings.ToLower(s.Label)] = strings.ToLower(s.Family)
	}

	for family, statuses := range doc.NonFinalized {
		set := make(map[string]bool, len(statuses))
		for _, st := range statuses {
			key := normalizeStatus(st)
			set[key] = true
			rs.anyFinalized[key] = true
		}
		rs.nonFinalized[strings.ToLower(family)] = set
	}

	var err error
	if rs.authorization, err = compileAll(doc.Lifecycle.Authorization, newContains); err != nil {
		return nil, fmt.Errorf("lifecycle authorization: %w", err)
	}
	if rs.settlement, err = compileAll(doc.Lifecycle.Settlement, newContains); err != nil {
		return nil, fmt.Errorf("lifecycle settlement: %w", err)
	}

	for i, spec := range doc.Transfers {
		rule, err := compileTransfer(spec)
		if err != nil {
			return nil, fmt.Errorf("transfer rule %d: %w", i, err)
		}
		rs.Transfers = append(rs.Transfers, rule)
	}

	seen := make(map[models.Category]bool)
	for i, spec := range doc.Categories {
		rule, err := compileCategory(spec)
		if err != nil {
			return nil, fmt.Errorf("category rule %d (%s): %w", i, spec.Category, err)
		}
		if seen[rule.Category] {
			return nil, fmt.Errorf("category %q declared twice; precedence would be ambiguous", rule.Category)
		}
		seen[rule.Category] = true
		rs.Categories = append(rs.Categories, rule)
	}

	return rs, nil
}

func compileTransfer(spec TransferSpec) (TransferRule, error) {
	rule := TransferRule{Spec: spec}
	set := 0
	var err error
	if spec.NameContains != "" {
		set++
		rule.field = nameOf
		rule.pred, err = newContains(spec.NameContains)
	}
	if spec.NameRegex != "" {
		set++
		rule.field = nameOf
		rule.pred, err = newRegex(spec.NameRegex)
	}
	if spec.TypeEquals != "" {
		set++
		rule.field = typeOf
		rule.pred, err = newEquals(spec.TypeEquals)
	}
	if spec.TypeContains != "" {
		set++
		rule.field = typeOf
		rule.pred, err = newContains(spec.TypeContains)
	}
	if err != nil {
		return rule, err
	}
	if set != 1 {
		return rule, fmt.Errorf("exactly one of name_contains, name_regex, type_equals, type_contains must be set")
	}
	return rule, nil
}

func compileCategory(spec CategorySpec) (CategoryRule, error) {
	c := models.Category(strings.TrimSpace(spec.Category))
	if c == "" {
		return CategoryRule{}, fmt.Errorf("category label is required")
	}
	if c.IsSentinel() {
		return CategoryRule{}, fmt.Errorf("%q is reserved", c)
	}
	contains, err := compileAll(spec.Contains, newContains)
	if err != nil {
		return CategoryRule{}, err
	}
	regexes, err := compileAll(spec.Regex, newRegex)
	if err != nil {
		return CategoryRule{}, err
	}
	unless, err := compileAll(spec.Unless, newContains)
	if err != nil {
		return CategoryRule{}, err
	}
	match := append(contains, regexes...)
	if len(match) == 0 {
		return CategoryRule{}, fmt.Errorf("at least one contains or regex pattern is required")
	}
	return CategoryRule{Category: c, match: match, unless: unless}, nil
}

func nameOf(t *models.Transaction) string { return t.Name }
func typeOf(t *models.Transaction) string { return t.Type }

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Source returns the schema registered under label.
func (rs *RuleSet) Source(label string) (SourceSchema, bool) {
	for _, s := range rs.Sources {
		if strings.EqualFold(s.Label, label) {
			return s, true
		}
	}
	return SourceSchema{}, false
}

// FamilyOf returns the status family of a source label, or "" when unknown.
func (rs *RuleSet) FamilyOf(label string) string {
	return rs.families[strings.ToLower(label)]
}

// IsNonFinalized reports whether status is a non-final lifecycle state for the family.
// An unknown family is checked against every declared vocabulary.
func (rs *RuleSet) IsNonFinalized(family, status string) bool {
	key := normalizeStatus(status)
	if key == "" {
		return false
	}
	if set, ok := rs.nonFinalized[strings.ToLower(family)]; ok {
		return set[key]
	}
	return rs.anyFinalized[key]
}

// MatchTransfer returns the first transfer rule that applies to t.
func (rs *RuleSet) MatchTransfer(t *models.Transaction) (*TransferRule, bool) {
	family := rs.FamilyOf(t.Source)
	for i := range rs.Transfers {
		if rs.Transfers[i].Matches(t, family) {
			return &rs.Transfers[i], true
		}
	}
	return nil, false
}

// Categorize returns the category of the first matching rule, or CategoryUncategorized.
func (rs *RuleSet) Categorize(name string) models.Category {
	lower := strings.ToLower(name)
	for i := range rs.Categories {
		if rs.Categories[i].Matches(lower) {
			return rs.Categories[i].Category
		}
	}
	return models.CategoryUncategorized
}

// IsAuthorization reports whether a transaction type marks a provisional hold.
func (rs *RuleSet) IsAuthorization(txType string) bool {
	return anyMatch(rs.authorization, strings.ToLower(txType))
}

// IsSettlement reports whether a transaction type marks a final charge.
func (rs *RuleSet) IsSettlement(txType string) bool {
	return anyMatch(rs.settlement, strings.ToLower(txType))
}

// Taxonomy returns the category labels in precedence order, followed by the sentinels.
func (rs *RuleSet) Taxonomy() []models.Category {
	out := make([]models.Category, 0, len(rs.Categories)+2)
	for _, r := range rs.Categories {
		out = append(out, r.Category)
	}
	return append(out, models.CategoryUncategorized, models.CategoryExcluded)
}
