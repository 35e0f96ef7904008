// Package graph builds the project import graph and answers cycle and
// importer queries over it.
package graph

import (
	"sort"
	"time"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

var log = logger.ForComponent("graph")

// File is one graph input: a parsed file and its architecture id.
type File struct {
	Path   string
	ArchID string
	Model  *semantic.Model
}

type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Specifier string `json:"specifier"`
	Line      int    `json:"line"`
}

type Node struct {
	Path     string
	ArchID   string
	Edges    []Edge
	External []string
}

type Graph struct {
	nodes     map[string]*Node
	paths     []string
	importers map[string][]string
	buildTime time.Duration
}

type Stats struct {
	Files     int           `json:"files"`
	Edges     int           `json:"edges"`
	Cycles    int           `json:"cycles"`
	BuildTime time.Duration `json:"build_time_ns"`
}

// Build resolves every import of every file. Unresolvable specifiers are
// kept on the node as external and add no edge.
func Build(files []File, modulePath string) *Graph {
	start := time.Now()

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	resolver := NewResolver(paths, modulePath)

	g := &Graph{
		nodes:     make(map[string]*Node, len(files)),
		importers: make(map[string][]string),
	}
	for _, f := range files {
		node := &Node{Path: f.Path, ArchID: f.ArchID}
		g.nodes[f.Path] = node
		if f.Model == nil {
			continue
		}
		seen := make(map[string]bool)
		for _, imp := range f.Model.Imports {
			targets := resolver.Resolve(f.Path, f.Model.Language, imp.Specifier)
			if len(targets) == 0 {
				node.External = append(node.External, imp.Specifier)
				continue
			}
			for _, to := range targets {
				if seen[to] {
					continue
				}
				seen[to] = true
				node.Edges = append(node.Edges, Edge{From: f.Path, To: to, Specifier: imp.Specifier, Line: imp.Line})
			}
		}
	}

	for p, node := range g.nodes {
		g.paths = append(g.paths, p)
		for _, e := range node.Edges {
			g.importers[e.To] = append(g.importers[e.To], e.From)
		}
	}
	sort.Strings(g.paths)
	for to := range g.importers {
		sort.Strings(g.importers[to])
	}

	g.buildTime = time.Since(start)
	log.Debug("import graph built", "files", len(g.nodes), "duration", g.buildTime)
	return g
}

func (g *Graph) Node(path string) (*Node, bool) {
	n, ok := g.nodes[path]
	return n, ok
}

// Paths returns every file in the graph, sorted.
func (g *Graph) Paths() []string {
	return g.paths
}

// Edges returns all edges ordered by source file.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, p := range g.paths {
		out = append(out, g.nodes[p].Edges...)
	}
	return out
}

// Importers returns the files that import path directly.
func (g *Graph) Importers(path string) []string {
	return g.importers[path]
}

// TransitiveImporters returns every file that reaches path through one or
// more imports, excluding path itself.
func (g *Graph) TransitiveImporters(path string) []string {
	visited := map[string]bool{path: true}
	queue := []string{path}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, imp := range g.importers[cur] {
			if !visited[imp] {
				visited[imp] = true
				out = append(out, imp)
				queue = append(queue, imp)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) Stats() Stats {
	edges := 0
	for _, n := range g.nodes {
		edges += len(n.Edges)
	}
	return Stats{Files: len(g.nodes), Edges: edges, BuildTime: g.buildTime}
}
