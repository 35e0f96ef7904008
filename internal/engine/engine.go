// Package engine applies a resolved architecture to a file's semantic model
// and assembles the per-file result.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/header"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

var log = logger.ForComponent("engine")

type UntaggedPolicy string

const (
	UntaggedWarning UntaggedPolicy = "warning"
	UntaggedError   UntaggedPolicy = "error"
)

type Options struct {
	Untagged  UntaggedPolicy
	Overrides header.Policy
	Now       func() time.Time
}

type Engine struct {
	reg  *registry.Registry
	opts Options
}

func New(reg *registry.Registry, opts Options) *Engine {
	if opts.Untagged == "" {
		opts.Untagged = UntaggedWarning
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{reg: reg, opts: opts}
}

func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Check evaluates every file-level constraint of the file's architecture.
// Configuration problems tied to the header (unknown ids, inline mixin
// misuse) are reported as findings on the file.
func (e *Engine) Check(m *semantic.Model, hdr header.Header) *Result {
	res := &Result{Path: m.Path, ArchID: hdr.ArchID}
	res.Overrides = header.Evaluate(hdr.Overrides, e.opts.Overrides, e.opts.Now())

	if hdr.ArchID == "" {
		e.untagged(res, RuleUntagged, "file has no @arch tag")
		res.finalize()
		return res
	}

	resolved, err := e.reg.Resolve(hdr.ArchID, hdr.InlineMixins)
	if err != nil {
		var ue *registry.UnresolvedReferenceError
		if errors.As(err, &ue) && ue.Kind == "architecture" && ue.ID == hdr.ArchID {
			e.untagged(res, RuleUnknownArchitecture, fmt.Sprintf("unknown architecture %q", hdr.ArchID))
		} else {
			log.Warn("resolve failed", "path", m.Path, "arch", hdr.ArchID, "error", err)
			res.Violations = append(res.Violations, Violation{
				Rule:     RuleConfiguration,
				Value:    hdr.ArchID,
				Severity: registry.SeverityError,
				Message:  err.Error(),
				Line:     hdr.Line,
			})
		}
		res.finalize()
		return res
	}
	return e.Evaluate(m, resolved, res.Overrides)
}

// Evaluate runs an already resolved architecture against a model.
// overrides must already carry their status.
func (e *Engine) Evaluate(m *semantic.Model, resolved *registry.Resolved, overrides []header.Override) *Result {
	res := &Result{
		Path:             m.Path,
		ArchID:           resolved.ID,
		Overrides:        overrides,
		InheritanceChain: resolved.Chain,
		AppliedMixins:    resolved.AppliedMixins,
	}

	for _, o := range overrides {
		switch o.Status {
		case header.StatusExpiring:
			res.Warnings = append(res.Warnings, Violation{
				Rule: RuleOverrideExpiring, Value: o.Key(), Severity: registry.SeverityWarning, Line: o.Line,
				Message: fmt.Sprintf("override %s expires on %s", o.Key(), o.Expires),
			})
		case header.StatusExpired:
			res.Warnings = append(res.Warnings, Violation{
				Rule: RuleOverrideExpired, Value: o.Key(), Severity: registry.SeverityWarning, Line: o.Line,
				Message: fmt.Sprintf("override %s %s", o.Key(), o.Problem),
			})
		case header.StatusInvalid:
			res.Warnings = append(res.Warnings, Violation{
				Rule: RuleOverrideInvalid, Value: o.Key(), Severity: registry.SeverityWarning, Line: o.Line,
				Message: fmt.Sprintf("override %s is invalid: %s", o.Key(), o.Problem),
			})
		}
	}

	if arch := resolved.Architecture; arch != nil && arch.Deprecated {
		msg := fmt.Sprintf("architecture %q is deprecated", arch.ID)
		if arch.ReplacedBy != "" {
			msg += fmt.Sprintf(", use %q instead", arch.ReplacedBy)
		}
		if arch.DeprecatedReason != "" {
			msg += ": " + arch.DeprecatedReason
		}
		res.Warnings = append(res.Warnings, Violation{
			Rule: RuleDeprecatedArchitecture, Value: arch.ID, Severity: registry.SeverityWarning, Message: msg,
		})
	}

	cc := &checkContext{model: m}
	for _, c := range resolved.Constraints {
		if c.Rule == registry.RuleAllowImport && gate(c, m) {
			cc.allow = append(cc.allow, c.Value.(registry.ModuleValue).Module)
		}
	}

	for _, c := range resolved.Constraints {
		if c.Rule.ProjectLevel() || c.Rule == registry.RuleAllowImport {
			continue
		}
		if !capable(c.Rule, m.Capabilities) {
			log.Debug("rule skipped, capability missing", "path", m.Path, "rule", c.Rule, "language", m.Language)
			continue
		}
		if !gate(c, m) {
			continue
		}
		for _, f := range check(c, cc) {
			res.record(ViolationFor(c, f.message, f.line))
		}
	}

	res.finalize()
	return res
}

func (e *Engine) untagged(res *Result, rule, msg string) {
	v := Violation{Rule: rule, Value: res.ArchID, Message: msg}
	if e.opts.Untagged == UntaggedError {
		v.Severity = registry.SeverityError
		res.Violations = append(res.Violations, v)
		return
	}
	v.Severity = registry.SeverityWarning
	res.Warnings = append(res.Warnings, v)
}

// ViolationFor builds a project-level finding for constraint c.
func ViolationFor(c registry.Constraint, message string, line int) Violation {
	return Violation{
		Rule:        string(c.Rule),
		Value:       c.Value.Key(),
		Severity:    c.Severity,
		Message:     message,
		Line:        line,
		Source:      c.Source,
		Why:         c.Why,
		Alternative: c.Alternative,
	}
}
