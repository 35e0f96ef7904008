package registry

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type InlineMode string

const (
	InlineAllowed   InlineMode = "allowed"
	InlineOnly      InlineMode = "only"
	InlineForbidden InlineMode = "forbidden"
)

// Predicate is the structural `when` gate. Every non-empty field must hold.
type Predicate struct {
	HasAnnotation    string `yaml:"has_annotation"`
	HasDecorator     string `yaml:"has_decorator"`
	HasImport        string `yaml:"has_import"`
	Extends          string `yaml:"extends"`
	Implements       string `yaml:"implements"`
	FilePath         string `yaml:"file_path"`
	NotHasAnnotation string `yaml:"not_has_annotation"`
	NotHasDecorator  string `yaml:"not_has_decorator"`
	NotHasImport     string `yaml:"not_has_import"`
	NotExtends       string `yaml:"not_extends"`
	NotImplements    string `yaml:"not_implements"`
	NotFilePath      string `yaml:"not_file_path"`
}

func (p *Predicate) empty() bool {
	return p == nil || *p == Predicate{}
}

type Constraint struct {
	Rule        Rule
	Value       Value
	Severity    Severity
	When        *Predicate
	AppliesWhen *regexp.Regexp
	Unless      []string
	Override    bool
	Why         string
	Alternative string

	// Source is the architecture id or "mixin:<id>" that declared it.
	Source string
}

// Key is the rule:value identity used by overrides and exclusions.
func (c Constraint) Key() string {
	return string(c.Rule) + ":" + c.Value.Key()
}

type Architecture struct {
	ID                 string
	Description        string
	Rationale          string
	Inherits           string
	Mixins             []string
	Constraints        []Constraint
	Hints              []string
	ExcludeConstraints []string
	Singleton          bool
	FilePattern        string
	DefaultPath        string
	Version            string
	Deprecated         bool
	DeprecatedReason   string
	ReplacedBy         string
}

type Mixin struct {
	ID          string
	Description string
	Constraints []Constraint
	Hints       []string
	Inline      InlineMode
}

type rawConstraint struct {
	Rule        string     `yaml:"rule"`
	Value       yaml.Node  `yaml:"value"`
	Severity    string     `yaml:"severity"`
	When        *Predicate `yaml:"when"`
	AppliesWhen string     `yaml:"applies_when"`
	Unless      []string   `yaml:"unless"`
	Override    bool       `yaml:"override"`
	Why         string     `yaml:"why"`
	Alternative string     `yaml:"alternative"`
}

type rawArchitecture struct {
	Description        string          `yaml:"description"`
	Rationale          string          `yaml:"rationale"`
	Inherits           string          `yaml:"inherits"`
	Mixins             []string        `yaml:"mixins"`
	Constraints        []rawConstraint `yaml:"constraints"`
	Hints              []string        `yaml:"hints"`
	ExcludeConstraints []string        `yaml:"exclude_constraints"`
	Singleton          bool            `yaml:"singleton"`
	FilePattern        string          `yaml:"file_pattern"`
	DefaultPath        string          `yaml:"default_path"`
	Version            string          `yaml:"version"`
	Deprecated         bool            `yaml:"deprecated"`
	DeprecatedReason   string          `yaml:"deprecated_reason"`
	ReplacedBy         string          `yaml:"replaced_by"`
}

type rawMixin struct {
	Description string          `yaml:"description"`
	Constraints []rawConstraint `yaml:"constraints"`
	Hints       []string        `yaml:"hints"`
	Inline      string          `yaml:"inline"`
}

func buildConstraints(owner, source string, raws []rawConstraint) ([]Constraint, error) {
	var out []Constraint
	for i, rc := range raws {
		cs, err := rc.build(source)
		if err != nil {
			return nil, &ConstraintError{Owner: owner, Index: i, Rule: rc.Rule, Err: err}
		}
		out = append(out, cs...)
	}
	return out, nil
}

func (rc rawConstraint) build(source string) ([]Constraint, error) {
	rule, err := ParseRule(strings.TrimSpace(rc.Rule))
	if err != nil {
		return nil, err
	}

	sev := SeverityError
	switch Severity(rc.Severity) {
	case "", SeverityError:
	case SeverityWarning:
		sev = SeverityWarning
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", ErrMalformedConstraint, rc.Severity)
	}

	var applies *regexp.Regexp
	if rc.AppliesWhen != "" {
		if applies, err = regexp.Compile(rc.AppliesWhen); err != nil {
			return nil, fmt.Errorf("%w: invalid applies_when: %v", ErrMalformedConstraint, err)
		}
	}

	when := rc.When
	if when.empty() {
		when = nil
	}

	values, err := decodeValues(rule, &rc.Value)
	if err != nil {
		return nil, err
	}

	// A list expands to one constraint per item. Only the first carries
	// Override so the later items do not clear their own siblings.
	out := make([]Constraint, 0, len(values))
	for i, v := range values {
		out = append(out, Constraint{
			Rule:        rule,
			Value:       v,
			Severity:    sev,
			When:        when,
			AppliesWhen: applies,
			Unless:      rc.Unless,
			Override:    rc.Override && i == 0,
			Why:         rc.Why,
			Alternative: rc.Alternative,
			Source:      source,
		})
	}
	return out, nil
}
