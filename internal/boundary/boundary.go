// Package boundary checks import direction between named groups of files:
// layers grouped by architecture id and packages grouped by path prefix.
package boundary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/graph"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
)

type Layer struct {
	Name string `yaml:"name" json:"name"`
	// Architectures are architecture id patterns, see registry.MatchID.
	Architectures []string `yaml:"architectures" json:"architectures"`
	CanImport     []string `yaml:"can_import" json:"can_import"`
}

type Package struct {
	Name      string   `yaml:"name" json:"name"`
	Path      string   `yaml:"path" json:"path"`
	CanImport []string `yaml:"can_import" json:"can_import"`
}

type Violation struct {
	SourceFile  string `json:"source_file"`
	SourceGroup string `json:"source_group"`
	TargetFile  string `json:"target_file"`
	TargetGroup string `json:"target_group"`
	ImportPath  string `json:"import_path"`
	Line        int    `json:"line"`
}

func (v Violation) Message() string {
	return fmt.Sprintf("%s (%s) may not import %s (%s)", v.SourceFile, v.SourceGroup, v.TargetFile, v.TargetGroup)
}

type Report struct {
	Violations []Violation `json:"violations"`
	Passed     bool        `json:"passed"`
}

// ValidateLayers checks every edge whose ends both belong to a layer. A file
// belongs to the first layer with a matching architecture pattern.
func ValidateLayers(g *graph.Graph, layers []Layer) Report {
	groupOf := func(path string) string {
		node, ok := g.Node(path)
		if !ok || node.ArchID == "" {
			return ""
		}
		for _, l := range layers {
			for _, p := range l.Architectures {
				if registry.MatchID(p, node.ArchID) {
					return l.Name
				}
			}
		}
		return ""
	}
	allow := make(map[string][]string, len(layers))
	for _, l := range layers {
		allow[l.Name] = l.CanImport
	}
	return validate(g, groupOf, allow)
}

// ValidatePackages checks edges between path-prefix groups. The longest
// matching prefix wins.
func ValidatePackages(g *graph.Graph, pkgs []Package) Report {
	sorted := append([]Package(nil), pkgs...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Path) > len(sorted[j].Path) })

	groupOf := func(path string) string {
		for _, p := range sorted {
			prefix := strings.TrimSuffix(p.Path, "/")
			if path == prefix || strings.HasPrefix(path, prefix+"/") || prefix == "" || prefix == "." {
				return p.Name
			}
		}
		return ""
	}
	allow := make(map[string][]string, len(pkgs))
	for _, p := range pkgs {
		allow[p.Name] = p.CanImport
	}
	return validate(g, groupOf, allow)
}

func validate(g *graph.Graph, groupOf func(string) string, allow map[string][]string) Report {
	report := Report{Violations: []Violation{}}
	for _, e := range g.Edges() {
		src := groupOf(e.From)
		dst := groupOf(e.To)
		if src == "" || dst == "" || src == dst {
			continue
		}
		if permitted(allow[src], dst) {
			continue
		}
		report.Violations = append(report.Violations, Violation{
			SourceFile:  e.From,
			SourceGroup: src,
			TargetFile:  e.To,
			TargetGroup: dst,
			ImportPath:  e.Specifier,
			Line:        e.Line,
		})
	}
	report.Passed = len(report.Violations) == 0
	return report
}

func permitted(allowed []string, group string) bool {
	for _, a := range allowed {
		if a == group || a == "*" {
			return true
		}
	}
	return false
}
