package registry

import (
	"fmt"
	"strings"
)

type ConflictKind string

const (
	ConflictSeverity      ConflictKind = "severity"
	ConflictContradiction ConflictKind = "contradiction"
)

type Conflict struct {
	Kind    ConflictKind
	Key     string
	Sources []string
	Message string
}

// Resolved is the flattened rule set for one architecture id. It is built per
// query and never cached by the registry.
type Resolved struct {
	ID           string
	Architecture *Architecture
	// Chain runs from the architecture itself up to the root.
	Chain         []string
	AppliedMixins []string
	Constraints   []Constraint
	Hints         []string
	Conflicts     []Conflict
}

// Constraint returns the effective constraint for a rule:value key.
func (r *Resolved) Constraint(key string) (Constraint, bool) {
	for _, c := range r.Constraints {
		if c.Key() == key {
			return c, true
		}
	}
	return Constraint{}, false
}

type resolvedEntry struct {
	c     Constraint
	level int
}

type merger struct {
	entries   []resolvedEntry
	conflicts []Conflict
	hints     []string
	seenHint  map[string]bool
	mixins    []string
	seenMixin map[string]bool
}

func (m *merger) add(c Constraint, level int) {
	if c.Override {
		kept := m.entries[:0]
		for _, e := range m.entries {
			if e.c.Rule != c.Rule {
				kept = append(kept, e)
			}
		}
		m.entries = append(kept, resolvedEntry{c: c, level: level})
		return
	}

	key := c.Key()
	for i, e := range m.entries {
		if !sameEntry(e.c, c) {
			continue
		}
		if e.level == level && fromMixin(e.c) == fromMixin(c) && e.c.Severity != c.Severity {
			m.conflicts = append(m.conflicts, Conflict{
				Kind:    ConflictSeverity,
				Key:     key,
				Sources: []string{e.c.Source, c.Source},
				Message: fmt.Sprintf("%s declared as %s by %s and %s by %s", key, e.c.Severity, e.c.Source, c.Severity, c.Source),
			})
		}
		m.entries[i] = resolvedEntry{c: c, level: level}
		return
	}
	m.entries = append(m.entries, resolvedEntry{c: c, level: level})
}

// sameEntry reports whether b redeclares a. Coverage constraints share a key
// per target pattern, so their whole payload has to match as well.
func sameEntry(a, b Constraint) bool {
	if a.Key() != b.Key() {
		return false
	}
	av, aok := a.Value.(CoverageValue)
	bv, bok := b.Value.(CoverageValue)
	if aok && bok {
		return av.Identity() == bv.Identity()
	}
	return true
}

func fromMixin(c Constraint) bool {
	return strings.HasPrefix(c.Source, "mixin:")
}

func (m *merger) exclude(keys []string) {
	if len(keys) == 0 {
		return
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !excluded(e.c, keys) {
			kept = append(kept, e)
		}
	}
	m.entries = kept
}

func excluded(c Constraint, keys []string) bool {
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if strings.Contains(k, ":") {
			if c.Key() == k {
				return true
			}
		} else if string(c.Rule) == k {
			return true
		}
	}
	return false
}

func (m *merger) addHints(hints []string) {
	for _, h := range hints {
		if !m.seenHint[h] {
			m.seenHint[h] = true
			m.hints = append(m.hints, h)
		}
	}
}

func (m *merger) applyMixin(mx *Mixin, level int) {
	for _, c := range mx.Constraints {
		m.add(c, level)
	}
	m.addHints(mx.Hints)
	if !m.seenMixin[mx.ID] {
		m.seenMixin[mx.ID] = true
		m.mixins = append(m.mixins, mx.ID)
	}
}

// chain walks inherits links from id to the root.
func (r *Registry) chain(id string) ([]*Architecture, error) {
	var (
		out     []*Architecture
		path    []string
		visited = make(map[string]bool)
		from    string
	)
	for cur := id; cur != ""; {
		if visited[cur] {
			return nil, &CycleError{Chain: append(path, cur)}
		}
		arch, ok := r.architectures[cur]
		if !ok {
			return nil, &UnresolvedReferenceError{Kind: "architecture", ID: cur, From: from}
		}
		visited[cur] = true
		path = append(path, cur)
		out = append(out, arch)
		from = cur
		cur = arch.Inherits
	}
	return out, nil
}

// Resolve flattens id's inheritance chain and mixins, root first. inline
// lists mixins referenced from a file header and is applied last.
func (r *Registry) Resolve(id string, inline []string) (*Resolved, error) {
	archs, err := r.chain(id)
	if err != nil {
		return nil, err
	}

	m := &merger{seenHint: make(map[string]bool), seenMixin: make(map[string]bool)}
	for level := len(archs) - 1; level >= 0; level-- {
		arch := archs[level]
		depth := len(archs) - 1 - level
		for _, mixinID := range arch.Mixins {
			mx, ok := r.mixins[mixinID]
			if !ok {
				return nil, &UnresolvedReferenceError{Kind: "mixin", ID: mixinID, From: arch.ID}
			}
			if mx.Inline == InlineOnly {
				return nil, &InlineModeError{MixinID: mixinID, Mode: InlineOnly, From: arch.ID}
			}
			m.applyMixin(mx, depth)
		}
		m.exclude(arch.ExcludeConstraints)
		for _, c := range arch.Constraints {
			m.add(c, depth)
		}
		m.addHints(arch.Hints)
	}

	for _, mixinID := range inline {
		mx, ok := r.mixins[mixinID]
		if !ok {
			return nil, &UnresolvedReferenceError{Kind: "mixin", ID: mixinID, From: "@arch " + id}
		}
		if mx.Inline == InlineForbidden {
			return nil, &InlineModeError{MixinID: mixinID, Mode: InlineForbidden, From: "@arch " + id}
		}
		m.applyMixin(mx, len(archs))
	}

	res := &Resolved{
		ID:            id,
		Architecture:  archs[0],
		AppliedMixins: m.mixins,
		Hints:         m.hints,
		Conflicts:     m.conflicts,
	}
	for _, a := range archs {
		res.Chain = append(res.Chain, a.ID)
	}
	for _, e := range m.entries {
		res.Constraints = append(res.Constraints, e.c)
	}
	res.Conflicts = append(res.Conflicts, contradictions(res.Constraints)...)
	return res, nil
}

var opposites = map[Rule]Rule{
	RuleRequireImport:    RuleForbidImport,
	RuleRequireDecorator: RuleForbidDecorator,
	RuleRequireCall:      RuleForbidCall,
}

func contradictions(cs []Constraint) []Conflict {
	present := make(map[string]Constraint, len(cs))
	for _, c := range cs {
		present[c.Key()] = c
	}

	var out []Conflict
	for _, c := range cs {
		opp, ok := opposites[c.Rule]
		if !ok {
			continue
		}
		other, ok := present[string(opp)+":"+c.Value.Key()]
		if !ok {
			continue
		}
		out = append(out, Conflict{
			Kind:    ConflictContradiction,
			Key:     c.Key(),
			Sources: []string{c.Source, other.Source},
			Message: fmt.Sprintf("%s (from %s) contradicts %s (from %s)", c.Key(), c.Source, other.Key(), other.Source),
		})
	}
	return out
}
