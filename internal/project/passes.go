package project

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/boundary"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/coverage"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/graph"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/similarity"
)

// scanned is a parsed file together with the project-level constraints that
// are in force for it.
type scanned struct {
	*fileState
	constraints []registry.Constraint
}

// findings collects project-level violations by file path.
type findings map[string][]engine.Violation

func (f findings) add(path string, v engine.Violation) {
	f[path] = append(f[path], v)
}

// projectPasses runs every cross-file pass over the parsed files and fills
// the report sections. It is called after all per-file work has finished.
func (a *Analyzer) projectPasses(states []*fileState, report *Report, req Request) findings {
	files := a.collect(states)
	out := make(findings)

	inputs := make([]graph.File, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, graph.File{Path: f.path, ArchID: f.hdr.ArchID, Model: f.model})
	}
	g := graph.Build(inputs, a.opts.GoModule)

	cycles := g.Cycles()
	report.Cycles = cycles
	stats := g.Stats()
	stats.Cycles = len(cycles)
	report.Graph = &stats

	if !req.skips(string(registry.RuleImportableBy)) {
		importableBy(g, files, out)
	}
	if !req.skips(string(registry.RuleForbidCircular)) {
		circular(g, cycles, files, out)
	}
	if !req.skips(string(registry.RuleRequireCoverage)) {
		report.Coverage = coverageGaps(files, out)
	}
	if !req.skips(string(registry.RuleMaxSimilarity)) {
		report.Similarity = similar(files, out)
	}
	if !req.skips(engine.RuleSingleton) {
		a.singletons(files, out)
	}

	if len(a.opts.Layers) > 0 && !req.skips(engine.RuleLayerBoundary) {
		r := boundary.ValidateLayers(g, a.opts.Layers)
		report.Layers = &r
		for _, v := range r.Violations {
			out.add(v.SourceFile, boundaryViolation(engine.RuleLayerBoundary, v))
		}
	}
	if len(a.opts.Packages) > 0 && !req.skips(engine.RulePackageBoundary) {
		r := boundary.ValidatePackages(g, a.opts.Packages)
		report.Packages = &r
		for _, v := range r.Violations {
			out.add(v.SourceFile, boundaryViolation(engine.RulePackageBoundary, v))
		}
	}
	return out
}

// collect resolves each parsed file's architecture once per distinct header
// and keeps the project-level constraints whose gates pass. Resolution
// errors were already reported by the single-file check.
func (a *Analyzer) collect(states []*fileState) []scanned {
	type key struct{ id, inline string }
	resolved := make(map[key]*registry.Resolved)

	var out []scanned
	for _, st := range states {
		if st.model == nil {
			continue
		}
		s := scanned{fileState: st}
		if st.hdr.ArchID != "" {
			k := key{st.hdr.ArchID, strings.Join(st.hdr.InlineMixins, "+")}
			r, ok := resolved[k]
			if !ok {
				var err error
				r, err = a.engine.Registry().Resolve(st.hdr.ArchID, st.hdr.InlineMixins)
				if err != nil {
					r = nil
				}
				resolved[k] = r
			}
			if r != nil {
				for _, c := range r.Constraints {
					if c.Rule.ProjectLevel() && engine.Applies(c, st.model) {
						s.constraints = append(s.constraints, c)
					}
				}
			}
		}
		out = append(out, s)
	}
	return out
}

func (s scanned) constraintsFor(rule registry.Rule) []registry.Constraint {
	var out []registry.Constraint
	for _, c := range s.constraints {
		if c.Rule == rule {
			out = append(out, c)
		}
	}
	return out
}

// importableBy reports a violation on the imported file for each direct
// importer whose architecture matches none of the allowed patterns.
func importableBy(g *graph.Graph, files []scanned, out findings) {
	for _, f := range files {
		for _, c := range f.constraintsFor(registry.RuleImportableBy) {
			v, ok := c.Value.(registry.ImportableByValue)
			if !ok {
				continue
			}
			for _, imp := range g.Importers(f.path) {
				if imp == f.path {
					continue
				}
				archID := ""
				if n, ok := g.Node(imp); ok {
					archID = n.ArchID
				}
				if importerAllowed(v.Patterns, archID) {
					continue
				}
				who := archID
				if who == "" {
					who = "untagged"
				}
				msg := fmt.Sprintf("imported by %s (%s), which is not in importable_by [%s]",
					imp, who, strings.Join(v.Patterns, ", "))
				out.add(f.path, engine.ViolationFor(c, msg, 0))
			}
		}
	}
}

func importerAllowed(patterns []string, archID string) bool {
	if archID == "" {
		for _, p := range patterns {
			if p == "**" || p == "*" {
				return true
			}
		}
		return false
	}
	for _, p := range patterns {
		if registry.MatchID(p, archID) {
			return true
		}
	}
	return false
}

// circular reports each cycle a constrained file takes part in, on the line
// of the import that continues the loop.
func circular(g *graph.Graph, cycles []graph.Cycle, files []scanned, out findings) {
	if len(cycles) == 0 {
		return
	}
	members := graph.InCycle(cycles)
	for _, f := range files {
		cs := f.constraintsFor(registry.RuleForbidCircular)
		if len(cs) == 0 {
			continue
		}
		c := cs[0]
		for _, cycle := range members[f.path] {
			next := nextInLoop(cycle.Files, f.path)
			line := 0
			if n, ok := g.Node(f.path); ok {
				for _, e := range n.Edges {
					if e.To == next {
						line = e.Line
						break
					}
				}
			}
			out.add(f.path, engine.ViolationFor(c, "import cycle: "+loopString(cycle.Files), line))
		}
	}
}

func nextInLoop(loop []string, p string) string {
	for i, f := range loop {
		if f == p {
			return loop[(i+1)%len(loop)]
		}
	}
	return ""
}

func loopString(loop []string) string {
	if len(loop) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), loop...), loop[0]), " -> ")
}

// coverageGaps runs each distinct require_coverage payload once, however
// many files carry it. A gap is reported on the file the uncovered value was
// extracted from.
func coverageGaps(files []scanned, out findings) *coverage.Summary {
	type job struct {
		c  registry.Constraint
		cv registry.CoverageValue
		id string
	}
	var jobs []job
	seen := make(map[string]bool)
	for _, f := range files {
		for _, c := range f.constraintsFor(registry.RuleRequireCoverage) {
			cv, ok := c.Value.(registry.CoverageValue)
			if !ok {
				continue
			}
			id := cv.Identity()
			if seen[id] {
				continue
			}
			seen[id] = true
			jobs = append(jobs, job{c: c, cv: cv, id: id})
		}
	}
	if len(jobs) == 0 {
		return nil
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].id < jobs[j].id })

	inputs := make([]coverage.File, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, coverage.File{Path: f.path, Model: f.model})
	}

	results := make([]coverage.Result, 0, len(jobs))
	for _, j := range jobs {
		res := coverage.Validate(j.c.Key(), j.cv, inputs)
		results = append(results, res)
		for _, gap := range res.Gaps {
			msg := fmt.Sprintf("%q has no counterpart %q in %s", gap.Value, gap.ExpectedTarget, j.cv.InTargetFiles)
			out.add(gap.SourceFile, engine.ViolationFor(j.c, msg, gap.SourceLine))
		}
	}
	s := coverage.Summarize(results)
	return &s
}

// similar compares files within each architecture that sets max_similarity.
// Only files whose own constraint passed its gates take part, and the lowest
// threshold among them wins.
func similar(files []scanned, out findings) []similarity.Pair {
	thresholds := make(map[string]float64)
	byArch := make(map[string]registry.Constraint)
	gated := make(map[string]bool)
	for _, f := range files {
		for _, c := range f.constraintsFor(registry.RuleMaxSimilarity) {
			sv, ok := c.Value.(registry.SimilarityValue)
			if !ok {
				continue
			}
			gated[f.path] = true
			id := f.hdr.ArchID
			if cur, ok := thresholds[id]; !ok || sv.Threshold < cur {
				thresholds[id] = sv.Threshold
				byArch[id] = c
			}
		}
	}
	if len(thresholds) == 0 {
		return nil
	}

	inputs := make([]similarity.Input, 0, len(files))
	for _, f := range files {
		if gated[f.path] {
			inputs = append(inputs, similarity.Input{Path: f.path, ArchID: f.hdr.ArchID, Model: f.model})
		}
	}
	pairs := similarity.Analyze(similarity.ExtractAll(inputs), thresholds)
	for _, p := range pairs {
		c := byArch[p.ArchID]
		out.add(p.FileA, engine.ViolationFor(c, similarMessage(p, p.FileB), 0))
		out.add(p.FileB, engine.ViolationFor(c, similarMessage(p, p.FileA), 0))
	}
	return pairs
}

func similarMessage(p similarity.Pair, other string) string {
	return fmt.Sprintf("%.0f%% structurally similar to %s (threshold %.0f%%)", p.Score*100, other, p.Threshold*100)
}

// singletons flags every file beyond the first that uses a singleton
// architecture.
func (a *Analyzer) singletons(files []scanned, out findings) {
	users := make(map[string][]string)
	for _, f := range files {
		if f.hdr.ArchID != "" {
			users[f.hdr.ArchID] = append(users[f.hdr.ArchID], f.path)
		}
	}
	for id, paths := range users {
		if len(paths) < 2 {
			continue
		}
		arch, err := a.engine.Registry().Get(id)
		if err != nil || !arch.Singleton {
			continue
		}
		sort.Strings(paths)
		for _, p := range paths[1:] {
			out.add(p, engine.Violation{
				Rule:     engine.RuleSingleton,
				Value:    id,
				Severity: registry.SeverityError,
				Message:  fmt.Sprintf("architecture %s is a singleton and is already used by %s", id, paths[0]),
				Source:   id,
			})
		}
	}
}

func boundaryViolation(rule string, v boundary.Violation) engine.Violation {
	return engine.Violation{
		Rule:     rule,
		Value:    v.TargetGroup,
		Severity: registry.SeverityError,
		Message:  fmt.Sprintf("%s may not import %s (%s) via %q", v.SourceGroup, v.TargetFile, v.TargetGroup, v.ImportPath),
		Line:     v.Line,
	}
}

func (r Request) skips(rule string) bool {
	for _, s := range r.SkipRules {
		if s == rule {
			return true
		}
	}
	return false
}

// filterFindings applies the request's rule and severity filters.
func filterFindings(f findings, req Request) {
	if len(req.SkipRules) == 0 && len(req.Severities) == 0 {
		return
	}
	skip := make(map[string]bool, len(req.SkipRules))
	for _, r := range req.SkipRules {
		skip[r] = true
	}
	keep := make(map[registry.Severity]bool, len(req.Severities))
	for _, s := range req.Severities {
		keep[s] = true
	}

	for path, vs := range f {
		kept := vs[:0]
		for _, v := range vs {
			if skip[v.Rule] {
				continue
			}
			if len(keep) > 0 && !keep[v.Severity] {
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == 0 {
			delete(f, path)
			continue
		}
		f[path] = kept
	}
}
