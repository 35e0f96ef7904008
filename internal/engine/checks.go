package engine

import (
	"fmt"
	"path"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

type finding struct {
	message string
	line    int
}

// capable reports whether the model carries the facts a rule inspects.
func capable(rule registry.Rule, caps semantic.Capabilities) bool {
	switch rule {
	case registry.RuleMustExtend:
		return caps.Inheritance
	case registry.RuleImplements:
		return caps.Interfaces
	case registry.RuleRequireDecorator, registry.RuleForbidDecorator:
		return caps.Annotations
	case registry.RuleMaxPublicMethods:
		return caps.Visibility
	}
	return true
}

// checkContext carries what a single check may consult beyond the model.
type checkContext struct {
	model *semantic.Model
	allow []string
}

func (cc *checkContext) allowed(spec string) bool {
	for _, a := range cc.allow {
		if MatchModule(a, spec) {
			return true
		}
	}
	return false
}

// check runs the rule-specific test for one constraint. Rules that only run
// in project passes never reach here.
func check(c registry.Constraint, cc *checkContext) []finding {
	m := cc.model
	switch v := c.Value.(type) {
	case registry.ModuleValue:
		switch c.Rule {
		case registry.RuleForbidImport:
			var out []finding
			for _, imp := range m.Imports {
				if MatchModule(v.Module, imp.Specifier) && !cc.allowed(imp.Specifier) {
					out = append(out, finding{fmt.Sprintf("imports forbidden module %q", imp.Specifier), imp.Line})
				}
			}
			return out
		case registry.RuleRequireImport:
			if !hasImport(m, v.Module) {
				return []finding{{fmt.Sprintf("missing required import %q", v.Module), 0}}
			}
		}

	case registry.CallValue:
		var hits []semantic.Call
		for _, call := range m.Calls {
			if MatchCall(v.Pattern, call.Callee) {
				hits = append(hits, call)
			}
		}
		switch c.Rule {
		case registry.RuleForbidCall:
			out := make([]finding, 0, len(hits))
			for _, call := range hits {
				out = append(out, finding{fmt.Sprintf("calls forbidden function %q", call.Callee), call.Line})
			}
			return out
		case registry.RuleRequireCall:
			if len(hits) == 0 {
				return []finding{{fmt.Sprintf("missing required call matching %q", v.Pattern), 0}}
			}
		}

	case registry.RegexValue:
		switch c.Rule {
		case registry.RuleForbidPattern:
			var out []finding
			for _, loc := range v.Re.FindAllStringIndex(m.Text, -1) {
				out = append(out, finding{fmt.Sprintf("contains forbidden pattern %q", v.Pattern), lineAt(m.Text, loc[0])})
			}
			return out
		case registry.RuleRequirePattern:
			if !v.Re.MatchString(m.Text) {
				return []finding{{fmt.Sprintf("missing required pattern %q", v.Pattern), 0}}
			}
		case registry.RuleNamingPattern:
			base := path.Base(strings.ReplaceAll(m.Path, "\\", "/"))
			if !v.Re.MatchString(base) {
				return []finding{{fmt.Sprintf("file name %q does not match %q", base, v.Pattern), 0}}
			}
		}

	case registry.GlobValue:
		if !matchPath(v.Pattern, m.Path) {
			return []finding{{fmt.Sprintf("file %q is outside the allowed location %q", m.Path, v.Pattern), 0}}
		}

	case registry.NameValue:
		return checkName(c.Rule, v.Name, m)

	case registry.LimitValue:
		switch c.Rule {
		case registry.RuleMaxFileLines:
			if m.LineCount > v.Max {
				return []finding{{fmt.Sprintf("file has %d lines, maximum is %d", m.LineCount, v.Max), 0}}
			}
		case registry.RuleMaxPublicMethods:
			var out []finding
			for _, t := range m.Types {
				n := 0
				for _, meth := range t.Methods {
					if meth.Visibility == semantic.VisibilityPublic {
						n++
					}
				}
				if n > v.Max {
					out = append(out, finding{fmt.Sprintf("%s has %d public methods, maximum is %d", t.Name, n, v.Max), t.Line})
				}
			}
			return out
		}
	}
	return nil
}

func checkName(rule registry.Rule, name string, m *semantic.Model) []finding {
	switch rule {
	case registry.RuleMustExtend:
		if !m.Extends(name) {
			return []finding{{fmt.Sprintf("no class extends %s", name), 0}}
		}
	case registry.RuleImplements:
		if !m.Implements(name) {
			return []finding{{fmt.Sprintf("no type implements %s", name), 0}}
		}
	case registry.RuleRequireDecorator:
		if !m.HasAnnotation(name) {
			return []finding{{fmt.Sprintf("missing required decorator %s", name), 0}}
		}
	case registry.RuleForbidDecorator:
		want := semantic.NormalizeAnnotation(name)
		var out []finding
		for _, t := range m.Types {
			for _, a := range t.Annotations {
				if semantic.NormalizeAnnotation(a) == want {
					out = append(out, finding{fmt.Sprintf("%s uses forbidden decorator %s", t.Name, name), t.Line})
				}
			}
			for _, meth := range t.Methods {
				for _, a := range meth.Annotations {
					if semantic.NormalizeAnnotation(a) == want {
						out = append(out, finding{fmt.Sprintf("%s.%s uses forbidden decorator %s", t.Name, meth.Name, name), meth.Line})
					}
				}
			}
		}
		return out
	case registry.RuleRequireExport:
		for _, e := range m.Exports {
			if e.Name == name || matchPath(name, e.Name) {
				return nil
			}
		}
		return []finding{{fmt.Sprintf("missing required export %s", name), 0}}
	}
	return nil
}

func lineAt(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
