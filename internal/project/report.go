package project

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/boundary"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/cache"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/coverage"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/graph"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/similarity"
)

// FileError is a file that could not be read or parsed. It is left out of
// the results and the run continues without it.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type Summary struct {
	Total           int `json:"total"`
	Passed          int `json:"passed"`
	Failed          int `json:"failed"`
	Warned          int `json:"warned"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	OverridesActive int `json:"overrides_active"`
}

type Report struct {
	RunID      string            `json:"run_id"`
	Root       string            `json:"root"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration_ns"`
	Summary    Summary           `json:"summary"`
	Results    []*engine.Result  `json:"results"`
	Errors     []FileError       `json:"errors"`
	Coverage   *coverage.Summary `json:"coverage,omitempty"`
	Similarity []similarity.Pair `json:"similarity,omitempty"`
	Layers     *boundary.Report  `json:"layers,omitempty"`
	Packages   *boundary.Report  `json:"packages,omitempty"`
	Cycles     []graph.Cycle     `json:"cycles,omitempty"`
	Graph      *graph.Stats      `json:"graph,omitempty"`
	Cache      *cache.Stats      `json:"cache,omitempty"`
}

// Failed reports whether any file ended with status fail.
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0
}

// Result returns the result for a project-relative path.
func (r *Report) Result(path string) (*engine.Result, bool) {
	path = normalize(path)
	for _, res := range r.Results {
		if res.Path == path {
			return res, true
		}
	}
	return nil, false
}

func Summarize(results []*engine.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case engine.StatusPass:
			s.Passed++
		case engine.StatusWarn:
			s.Warned++
		case engine.StatusFail:
			s.Failed++
		}
		s.Errors += len(r.Violations)
		s.Warnings += len(r.Warnings)
		s.OverridesActive += len(r.OverridesActive)
	}
	return s
}

func normalize(p string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	return strings.TrimPrefix(p, "./")
}
