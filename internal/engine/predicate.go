package engine

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

// gate evaluates when, applies_when and unless in that order. A predicate
// that needs a capability the parser lacks makes the constraint not apply.
func gate(c registry.Constraint, m *semantic.Model) bool {
	if c.When != nil && !when(c.When, m) {
		return false
	}
	if c.AppliesWhen != nil && !c.AppliesWhen.MatchString(m.Text) {
		return false
	}
	for _, u := range c.Unless {
		if exempt(u, m) {
			return false
		}
	}
	return true
}

func when(p *registry.Predicate, m *semantic.Model) bool {
	caps := m.Capabilities
	type check struct {
		arg     string
		capable bool
		eval    func(string) bool
		negate  bool
	}
	checks := []check{
		{p.HasAnnotation, caps.Annotations, m.HasAnnotation, false},
		{p.HasDecorator, caps.Annotations, m.HasAnnotation, false},
		{p.HasImport, true, func(s string) bool { return hasImport(m, s) }, false},
		{p.Extends, caps.Inheritance, m.Extends, false},
		{p.Implements, caps.Interfaces, m.Implements, false},
		{p.FilePath, true, func(s string) bool { return matchPath(s, m.Path) }, false},
		{p.NotHasAnnotation, caps.Annotations, m.HasAnnotation, true},
		{p.NotHasDecorator, caps.Annotations, m.HasAnnotation, true},
		{p.NotHasImport, true, func(s string) bool { return hasImport(m, s) }, true},
		{p.NotExtends, caps.Inheritance, m.Extends, true},
		{p.NotImplements, caps.Interfaces, m.Implements, true},
		{p.NotFilePath, true, func(s string) bool { return matchPath(s, m.Path) }, true},
	}
	for _, c := range checks {
		if c.arg == "" {
			continue
		}
		if !c.capable {
			return false
		}
		if c.eval(c.arg) == c.negate {
			return false
		}
	}
	return true
}

// exempt reports whether one unless entry matches. Entries are "@Name" or
// "decorator:Name" for annotations, "import:spec" for imports and a path glob
// otherwise.
func exempt(entry string, m *semantic.Model) bool {
	entry = strings.TrimSpace(entry)
	switch {
	case entry == "":
		return false
	case strings.HasPrefix(entry, "@"):
		return m.Capabilities.Annotations && m.HasAnnotation(entry)
	case strings.HasPrefix(entry, "decorator:"):
		return m.Capabilities.Annotations && m.HasAnnotation(strings.TrimPrefix(entry, "decorator:"))
	case strings.HasPrefix(entry, "import:"):
		return hasImport(m, strings.TrimPrefix(entry, "import:"))
	}
	return matchPath(entry, m.Path)
}

func hasImport(m *semantic.Model, pattern string) bool {
	for _, imp := range m.Imports {
		if MatchModule(pattern, imp.Specifier) {
			return true
		}
	}
	return false
}

// MatchModule matches an import specifier against a module pattern: exact,
// a subpath of the module, or a doublestar glob.
func MatchModule(pattern, spec string) bool {
	if pattern == spec || strings.HasPrefix(spec, pattern+"/") {
		return true
	}
	if strings.ContainsAny(pattern, "*?[{") {
		ok, err := doublestar.Match(pattern, spec)
		return err == nil && ok
	}
	return false
}

// MatchCall matches a rendered callee such as "console.log" against a
// pattern. Globs treat '.' like a path separator so "log.*" matches
// "log.Info" but not "log.a.b".
func MatchCall(pattern, callee string) bool {
	if pattern == callee {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		return false
	}
	ok, err := doublestar.Match(strings.ReplaceAll(pattern, ".", "/"), strings.ReplaceAll(callee, ".", "/"))
	return err == nil && ok
}

func matchPath(pattern, p string) bool {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
	ok, err := doublestar.Match(pattern, p)
	return err == nil && ok
}

// Applies reports whether constraint c is in force for model m: the parser
// supports what the rule inspects and every gate passes.
func Applies(c registry.Constraint, m *semantic.Model) bool {
	return capable(c.Rule, m.Capabilities) && gate(c, m)
}
