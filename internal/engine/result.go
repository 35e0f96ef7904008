package engine

import (
	"github.com/ArchCodexOrg/archcodex-sub000/internal/header"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Rule names for findings that do not come from a registry constraint.
const (
	RuleUntagged               = "untagged"
	RuleUnknownArchitecture    = "unknown_architecture"
	RuleConfiguration          = "configuration"
	RuleDeprecatedArchitecture = "deprecated_architecture"
	RuleOverrideExpiring       = "override_expiring"
	RuleOverrideExpired        = "override_expired"
	RuleOverrideInvalid        = "override_invalid"
	RuleSingleton              = "singleton_violation"
	RuleLayerBoundary          = "layer_boundary"
	RulePackageBoundary        = "package_boundary"
)

type Violation struct {
	Rule        string            `json:"rule"`
	Value       string            `json:"value,omitempty"`
	Severity    registry.Severity `json:"severity"`
	Message     string            `json:"message"`
	Line        int               `json:"line,omitempty"`
	Source      string            `json:"source,omitempty"`
	Why         string            `json:"why,omitempty"`
	Alternative string            `json:"alternative,omitempty"`
}

// Key is the rule:value an override must name to suppress the violation.
func (v Violation) Key() string {
	return v.Rule + ":" + v.Value
}

// Result is the outcome for one file. Results are values: Merge and the
// cache hand out copies instead of mutating a shared result.
type Result struct {
	Path             string            `json:"path"`
	ArchID           string            `json:"arch_id,omitempty"`
	Status           Status            `json:"status"`
	Violations       []Violation       `json:"violations"`
	Warnings         []Violation       `json:"warnings"`
	OverridesActive  []header.Override `json:"overrides_active,omitempty"`
	Overrides        []header.Override `json:"overrides,omitempty"`
	InheritanceChain []string          `json:"inheritance_chain,omitempty"`
	AppliedMixins    []string          `json:"applied_mixins,omitempty"`
}

func (r *Result) finalize() {
	if r.Violations == nil {
		r.Violations = []Violation{}
	}
	if r.Warnings == nil {
		r.Warnings = []Violation{}
	}
	switch {
	case len(r.Violations) > 0:
		r.Status = StatusFail
	case len(r.Warnings) > 0:
		r.Status = StatusWarn
	default:
		r.Status = StatusPass
	}
}

// record files a failing check. Errors yield to an in-force override for the
// same key; warnings are never suppressed.
func (r *Result) record(v Violation) {
	if v.Severity == registry.SeverityWarning {
		r.Warnings = append(r.Warnings, v)
		return
	}
	for _, o := range r.Overrides {
		if o.Suppresses() && o.Key() == v.Key() {
			for _, active := range r.OverridesActive {
				if active.Key() == o.Key() {
					return
				}
			}
			r.OverridesActive = append(r.OverridesActive, o)
			return
		}
	}
	r.Violations = append(r.Violations, v)
}

func (r *Result) Clone() *Result {
	c := *r
	c.Violations = append([]Violation(nil), r.Violations...)
	c.Warnings = append([]Violation(nil), r.Warnings...)
	c.OverridesActive = append([]header.Override(nil), r.OverridesActive...)
	c.Overrides = append([]header.Override(nil), r.Overrides...)
	c.InheritanceChain = append([]string(nil), r.InheritanceChain...)
	c.AppliedMixins = append([]string(nil), r.AppliedMixins...)
	return &c
}

// Merge returns a copy of r with project-level findings folded in. The
// file's overrides apply to them exactly as to single-file findings.
func Merge(r *Result, findings []Violation) *Result {
	out := r.Clone()
	for _, f := range findings {
		out.record(f)
	}
	out.finalize()
	return out
}
