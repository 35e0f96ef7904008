package registry

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Rule string

const (
	RuleForbidImport     Rule = "forbid_import"
	RuleRequireImport    Rule = "require_import"
	RuleAllowImport      Rule = "allow_import"
	RuleForbidCall       Rule = "forbid_call"
	RuleRequireCall      Rule = "require_call"
	RuleForbidPattern    Rule = "forbid_pattern"
	RuleRequirePattern   Rule = "require_pattern"
	RuleNamingPattern    Rule = "naming_pattern"
	RuleLocationPattern  Rule = "location_pattern"
	RuleMustExtend       Rule = "must_extend"
	RuleImplements       Rule = "implements"
	RuleRequireDecorator Rule = "require_decorator"
	RuleForbidDecorator  Rule = "forbid_decorator"
	RuleRequireExport    Rule = "require_export"
	RuleMaxFileLines     Rule = "max_file_lines"
	RuleMaxPublicMethods Rule = "max_public_methods"
	RuleImportableBy     Rule = "importable_by"
	RuleForbidCircular   Rule = "forbid_circular_deps"
	RuleRequireCoverage  Rule = "require_coverage"
	RuleMaxSimilarity    Rule = "max_similarity"
)

// Rules lists every rule kind in declaration order.
var Rules = []Rule{
	RuleForbidImport, RuleRequireImport, RuleAllowImport,
	RuleForbidCall, RuleRequireCall,
	RuleForbidPattern, RuleRequirePattern, RuleNamingPattern, RuleLocationPattern,
	RuleMustExtend, RuleImplements, RuleRequireDecorator, RuleForbidDecorator,
	RuleRequireExport, RuleMaxFileLines, RuleMaxPublicMethods,
	RuleImportableBy, RuleForbidCircular, RuleRequireCoverage, RuleMaxSimilarity,
}

func ParseRule(s string) (Rule, error) {
	for _, r := range Rules {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRule, s)
}

// ProjectLevel reports whether the rule needs the whole-project import graph
// or other files and therefore only runs in project passes.
func (r Rule) ProjectLevel() bool {
	switch r {
	case RuleImportableBy, RuleForbidCircular, RuleRequireCoverage, RuleMaxSimilarity:
		return true
	}
	return false
}

// perItem rules accept a list and expand into one constraint per entry so
// every entry has its own rule:value key.
func (r Rule) perItem() bool {
	switch r {
	case RuleForbidImport, RuleRequireImport, RuleAllowImport,
		RuleForbidCall, RuleRequireCall,
		RuleForbidPattern, RuleRequirePattern,
		RuleImplements, RuleRequireDecorator, RuleForbidDecorator, RuleRequireExport:
		return true
	}
	return false
}

// Value is the rule-specific payload of a constraint. The concrete type is
// fixed by the rule kind.
type Value interface {
	Key() string
	isValue()
}

type ModuleValue struct{ Module string }

type CallValue struct{ Pattern string }

type RegexValue struct {
	Pattern string
	Re      *regexp.Regexp
}

type GlobValue struct{ Pattern string }

type NameValue struct{ Name string }

type LimitValue struct{ Max int }

type ImportableByValue struct{ Patterns []string }

type CircularValue struct{}

type CoverageSource string

const (
	SourceExportNames    CoverageSource = "export_names"
	SourceStringLiterals CoverageSource = "string_literals"
	SourceFileNames      CoverageSource = "file_names"
)

type CoverageValue struct {
	SourceType    CoverageSource `yaml:"source_type"`
	InFiles       string         `yaml:"in_files"`
	SourcePattern string         `yaml:"source_pattern"`
	ExtractValues string         `yaml:"extract_values"`
	Transform     string         `yaml:"transform"`
	TargetPattern string         `yaml:"target_pattern"`
	InTargetFiles string         `yaml:"in_target_files"`

	SourceRe  *regexp.Regexp `yaml:"-"`
	ExtractRe *regexp.Regexp `yaml:"-"`
}

const DefaultSimilarityThreshold = 0.8

// SimilarityValue carries the threshold. Defaulted is set when the
// configured value was not a ratio in (0, 1] and the default was used.
type SimilarityValue struct {
	Threshold float64
	Defaulted bool
	Raw       string
}

func (v ModuleValue) Key() string       { return v.Module }
func (v CallValue) Key() string         { return v.Pattern }
func (v RegexValue) Key() string        { return v.Pattern }
func (v GlobValue) Key() string         { return v.Pattern }
func (v NameValue) Key() string         { return v.Name }
func (v LimitValue) Key() string        { return strconv.Itoa(v.Max) }
func (v ImportableByValue) Key() string { return strings.Join(v.Patterns, ",") }
func (v CircularValue) Key() string     { return "" }
func (v CoverageValue) Key() string     { return v.TargetPattern }
func (v SimilarityValue) Key() string   { return strconv.FormatFloat(v.Threshold, 'f', -1, 64) }

// Identity spans every field of the payload. Key stays the target pattern
// so overrides read naturally, but two constraints with the same target and
// different sources are still different checks.
func (v CoverageValue) Identity() string {
	return strings.Join([]string{
		string(v.SourceType), v.InFiles, v.SourcePattern, v.ExtractValues,
		v.Transform, v.TargetPattern, v.InTargetFiles,
	}, "\x00")
}

func (ModuleValue) isValue()       {}
func (CallValue) isValue()         {}
func (RegexValue) isValue()        {}
func (GlobValue) isValue()         {}
func (NameValue) isValue()         {}
func (LimitValue) isValue()        {}
func (ImportableByValue) isValue() {}
func (CircularValue) isValue()     {}
func (CoverageValue) isValue()     {}
func (SimilarityValue) isValue()   {}

// NewValue builds the payload for one list entry (or the whole scalar) of a
// rule. It is the single place where rule kind and value shape are tied.
func NewValue(rule Rule, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch rule {
	case RuleForbidImport, RuleRequireImport, RuleAllowImport:
		if raw == "" {
			return nil, fmt.Errorf("%w: empty module", ErrMalformedConstraint)
		}
		return ModuleValue{Module: raw}, nil
	case RuleForbidCall, RuleRequireCall:
		if raw == "" {
			return nil, fmt.Errorf("%w: empty call pattern", ErrMalformedConstraint)
		}
		return CallValue{Pattern: raw}, nil
	case RuleForbidPattern, RuleRequirePattern, RuleNamingPattern:
		re, err := regexp.Compile(raw)
		if err != nil || raw == "" {
			return nil, fmt.Errorf("%w: invalid regular expression %q", ErrMalformedConstraint, raw)
		}
		return RegexValue{Pattern: raw, Re: re}, nil
	case RuleLocationPattern:
		if raw == "" {
			return nil, fmt.Errorf("%w: empty location pattern", ErrMalformedConstraint)
		}
		return GlobValue{Pattern: raw}, nil
	case RuleMustExtend, RuleImplements, RuleRequireDecorator, RuleForbidDecorator, RuleRequireExport:
		if raw == "" {
			return nil, fmt.Errorf("%w: empty name", ErrMalformedConstraint)
		}
		return NameValue{Name: raw}, nil
	case RuleMaxFileLines, RuleMaxPublicMethods:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: expected a non-negative integer, got %q", ErrMalformedConstraint, raw)
		}
		return LimitValue{Max: n}, nil
	case RuleImportableBy:
		var patterns []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		if len(patterns) == 0 {
			return nil, fmt.Errorf("%w: importable_by needs at least one pattern", ErrMalformedConstraint)
		}
		return ImportableByValue{Patterns: patterns}, nil
	case RuleForbidCircular:
		if raw != "" && raw != "true" {
			return nil, fmt.Errorf("%w: forbid_circular_deps takes no value", ErrMalformedConstraint)
		}
		return CircularValue{}, nil
	case RuleMaxSimilarity:
		return parseSimilarity(raw), nil
	case RuleRequireCoverage:
		return nil, fmt.Errorf("%w: require_coverage needs a mapping value", ErrMalformedConstraint)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
}

// parseSimilarity keeps the historical fallback: anything that is not a
// ratio in (0, 1] becomes the default threshold.
// TODO: reject malformed thresholds at load once existing registries are migrated.
func parseSimilarity(raw string) SimilarityValue {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v <= 0 || v > 1 {
		log.Warn("max_similarity is not a ratio in (0, 1], using default", "value", raw, "default", DefaultSimilarityThreshold)
		return SimilarityValue{Threshold: DefaultSimilarityThreshold, Defaulted: true, Raw: raw}
	}
	return SimilarityValue{Threshold: v, Raw: raw}
}

var coverageTransforms = map[string]bool{
	"": true, "none": true, "PascalCase": true, "camelCase": true,
	"snake_case": true, "kebab-case": true, "UPPER_CASE": true, "lowercase": true,
}

func decodeCoverage(node *yaml.Node) (Value, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: require_coverage needs a mapping value", ErrMalformedConstraint)
	}
	var v CoverageValue
	if err := node.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConstraint, err)
	}

	switch v.SourceType {
	case SourceExportNames, SourceFileNames:
	case SourceStringLiterals:
		if v.ExtractValues == "" {
			return nil, fmt.Errorf("%w: string_literals coverage needs extract_values", ErrMalformedConstraint)
		}
	default:
		return nil, fmt.Errorf("%w: unknown coverage source_type %q", ErrMalformedConstraint, v.SourceType)
	}
	if v.InFiles == "" || v.InTargetFiles == "" || v.TargetPattern == "" {
		return nil, fmt.Errorf("%w: coverage needs in_files, in_target_files and target_pattern", ErrMalformedConstraint)
	}
	if !coverageTransforms[v.Transform] {
		return nil, fmt.Errorf("%w: unknown coverage transform %q", ErrMalformedConstraint, v.Transform)
	}

	var err error
	if v.SourcePattern != "" {
		if v.SourceRe, err = regexp.Compile(v.SourcePattern); err != nil {
			return nil, fmt.Errorf("%w: invalid source_pattern: %v", ErrMalformedConstraint, err)
		}
	}
	if v.ExtractValues != "" {
		if v.ExtractRe, err = regexp.Compile(v.ExtractValues); err != nil {
			return nil, fmt.Errorf("%w: invalid extract_values: %v", ErrMalformedConstraint, err)
		}
	}
	return v, nil
}

// decodeValues turns the YAML value node into payloads: one per list entry
// for per-item rules, exactly one otherwise.
func decodeValues(rule Rule, node *yaml.Node) ([]Value, error) {
	if rule == RuleRequireCoverage {
		if node == nil || node.Kind == 0 {
			return nil, fmt.Errorf("%w: require_coverage needs a mapping value", ErrMalformedConstraint)
		}
		v, err := decodeCoverage(node)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil
	}

	var items []string
	switch {
	case node == nil || node.Kind == 0:
	case node.Kind == yaml.ScalarNode:
		items = []string{node.Value}
	case node.Kind == yaml.SequenceNode:
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: list entries must be scalars", ErrMalformedConstraint)
			}
			items = append(items, child.Value)
		}
	default:
		return nil, fmt.Errorf("%w: %s expects a scalar or list value", ErrMalformedConstraint, rule)
	}

	if rule.perItem() {
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: %s needs a value", ErrMalformedConstraint, rule)
		}
		values := make([]Value, 0, len(items))
		for _, item := range items {
			v, err := NewValue(rule, item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	}

	if len(items) > 1 && rule != RuleImportableBy {
		return nil, fmt.Errorf("%w: %s takes a single value", ErrMalformedConstraint, rule)
	}
	if rule == RuleImportableBy {
		sorted := append([]string(nil), items...)
		sort.Strings(sorted)
		items = []string{strings.Join(sorted, ",")}
	}
	raw := ""
	if len(items) == 1 {
		raw = items[0]
	}
	v, err := NewValue(rule, raw)
	if err != nil {
		return nil, err
	}
	return []Value{v}, nil
}
