// Package semantic defines the language-agnostic structural summary that
// parsers produce for a source file and the registry that selects a parser
// by file extension.
package semantic

import "strings"

// Capabilities describes which structural facts a parser can report. Rules
// that depend on a missing capability are skipped rather than failed.
type Capabilities struct {
	Inheritance bool `json:"inheritance"`
	Interfaces  bool `json:"interfaces"`
	Annotations bool `json:"annotations"`
	Visibility  bool `json:"visibility"`
}

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

type Import struct {
	Specifier string   `json:"specifier"`
	Names     []string `json:"names,omitempty"`
	Line      int      `json:"line"`
}

type Export struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
	Line int    `json:"line"`
}

type Method struct {
	Name        string     `json:"name"`
	Visibility  Visibility `json:"visibility"`
	Annotations []string   `json:"annotations,omitempty"`
	Line        int        `json:"line"`
}

// TypeDecl is a declared class, struct, interface or equivalent.
type TypeDecl struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Extends     string   `json:"extends,omitempty"`
	Implements  []string `json:"implements,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Methods     []Method `json:"methods,omitempty"`
	Line        int      `json:"line"`
}

// Call is a call expression rendered as "receiver.name" or "name".
type Call struct {
	Callee string `json:"callee"`
	Line   int    `json:"line"`
}

type Model struct {
	Path         string       `json:"path"`
	Language     string       `json:"language"`
	Capabilities Capabilities `json:"capabilities"`
	Imports      []Import     `json:"imports,omitempty"`
	Exports      []Export     `json:"exports,omitempty"`
	Types        []TypeDecl   `json:"types,omitempty"`
	Calls        []Call       `json:"calls,omitempty"`
	Text         string       `json:"-"`
	LineCount    int          `json:"line_count"`
}

// NormalizeAnnotation strips the leading '@' and any argument list so that
// "@Controller('x')" and "Controller" compare equal.
func NormalizeAnnotation(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "@"))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return name
}

// HasAnnotation reports whether any declared type or method carries the
// annotation.
func (m *Model) HasAnnotation(name string) bool {
	want := NormalizeAnnotation(name)
	for _, t := range m.Types {
		for _, a := range t.Annotations {
			if NormalizeAnnotation(a) == want {
				return true
			}
		}
		for _, meth := range t.Methods {
			for _, a := range meth.Annotations {
				if NormalizeAnnotation(a) == want {
					return true
				}
			}
		}
	}
	return false
}

func (m *Model) Extends(name string) bool {
	for _, t := range m.Types {
		if t.Extends == name {
			return true
		}
	}
	return false
}

func (m *Model) Implements(name string) bool {
	for _, t := range m.Types {
		for _, i := range t.Implements {
			if i == name {
				return true
			}
		}
	}
	return false
}

func (m *Model) ExportNames() []string {
	names := make([]string, 0, len(m.Exports))
	for _, e := range m.Exports {
		names = append(names, e.Name)
	}
	return names
}

// ImportSpecifiers returns import specifiers in source order.
func (m *Model) ImportSpecifiers() []string {
	specs := make([]string, 0, len(m.Imports))
	for _, imp := range m.Imports {
		specs = append(specs, imp.Specifier)
	}
	return specs
}

// CountLines counts lines the way editors do: a trailing newline does not
// start a new line.
func CountLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
