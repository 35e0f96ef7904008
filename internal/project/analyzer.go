// Package project runs a validation pass over a whole project: per-file
// checks in parallel, then the cross-file passes over the import graph.
package project

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/boundary"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/cache"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/header"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/metrics"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/source"
)

var log = logger.ForComponent("project")

const DefaultWorkers = 4

type Options struct {
	Root        string
	Include     []string
	Exclude     []string
	Workers     int
	MaxFileSize int64
	// GoModule is the module path used to resolve Go imports to files.
	GoModule string
	Layers   []boundary.Layer
	Packages []boundary.Package
}

// Request selects what a run covers. An empty Files list means the whole
// project. SkipRules and Severities filter project-level findings only.
type Request struct {
	Files       []string
	SkipRules   []string
	Severities  []registry.Severity
	SkipProject bool
}

type Analyzer struct {
	opts    Options
	engine  *engine.Engine
	parsers *semantic.Registry
	cache   *cache.Manager
}

// New builds an analyzer. The cache may be nil.
func New(opts Options, eng *engine.Engine, parsers *semantic.Registry, c *cache.Manager) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Analyzer{opts: opts, engine: eng, parsers: parsers, cache: c}
}

func (a *Analyzer) Engine() *engine.Engine {
	return a.engine
}

func (a *Analyzer) Cache() *cache.Manager {
	return a.cache
}

// fileState is owned by exactly one worker until the barrier.
type fileState struct {
	path      string
	requested bool
	file      *source.File
	hdr       header.Header
	model     *semantic.Model
	result    *engine.Result
	cached    bool
	err       error
}

// Run validates the requested files. Parsing and single-file checks run in
// parallel; the project passes start once every file is done. On
// cancellation no further files are scheduled and the context error is
// returned.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	runLog := log.With("run_id", runID)

	discovered, err := source.Discover(ctx, a.opts.Root, source.DiscoverOptions{
		Include:    a.opts.Include,
		Exclude:    a.opts.Exclude,
		Extensions: a.extensions(),
	})
	if err != nil {
		return nil, err
	}

	states := a.plan(discovered, req)
	runLog.Info("validation started", "files", len(states), "workers", a.opts.Workers)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, st := range states {
		if gCtx.Err() != nil {
			break
		}
		st := st
		g.Go(func() error {
			a.processFile(st, !req.SkipProject)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		runLog.Warn("validation cancelled", "error", err)
		return nil, fmt.Errorf("validation cancelled: %w", err)
	}

	report := &Report{
		RunID:     runID,
		Root:      a.opts.Root,
		StartedAt: start,
		Results:   []*engine.Result{},
		Errors:    []FileError{},
	}
	for _, st := range states {
		if st.err != nil {
			report.Errors = append(report.Errors, FileError{Path: st.path, Error: st.err.Error()})
		}
	}

	var extra findings
	if !req.SkipProject {
		extra = a.projectPasses(states, report, req)
		filterFindings(extra, req)
	}

	for _, st := range states {
		if !st.requested || st.result == nil {
			continue
		}
		res := st.result
		if fs := extra[st.path]; len(fs) > 0 {
			res = engine.Merge(res, fs)
		}
		report.Results = append(report.Results, res)
	}
	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Path < report.Results[j].Path })

	if a.cache != nil {
		if len(req.Files) == 0 {
			live := make(map[string]bool, len(discovered))
			for _, p := range discovered {
				live[p] = true
			}
			if n := a.cache.Prune(live); n > 0 {
				runLog.Debug("pruned cache", "removed", n)
			}
		}
		stats := a.cache.Stats()
		report.Cache = &stats
	}

	report.Summary = Summarize(report.Results)
	report.Duration = time.Since(start)
	record(report)

	runLog.Info("validation finished",
		"files", report.Summary.Total,
		"failed", report.Summary.Failed,
		"errors", report.Summary.Errors,
		"warnings", report.Summary.Warnings,
		"duration", report.Duration)
	return report, nil
}

// Accepts reports whether a project-relative path would be picked up by a
// whole-project run.
func (a *Analyzer) Accepts(path string) bool {
	path = normalize(path)
	if !a.parsers.Supports(path) {
		return false
	}
	if len(a.opts.Include) > 0 && !source.Matches(a.opts.Include, path) {
		return false
	}
	return !source.Matches(a.opts.Exclude, path)
}

func (a *Analyzer) extensions() map[string]bool {
	exts := make(map[string]bool)
	for _, ext := range a.parsers.Extensions() {
		exts[ext] = true
	}
	return exts
}

// plan lists every file the run touches. Project passes need the whole
// project, so with a file subset the remaining discovered files are still
// parsed but get no result of their own.
func (a *Analyzer) plan(discovered []string, req Request) []*fileState {
	if len(req.Files) == 0 {
		states := make([]*fileState, 0, len(discovered))
		for _, p := range discovered {
			states = append(states, &fileState{path: p, requested: true})
		}
		return states
	}

	requested := make(map[string]bool, len(req.Files))
	var states []*fileState
	for _, p := range req.Files {
		p = normalize(p)
		if requested[p] {
			continue
		}
		requested[p] = true
		states = append(states, &fileState{path: p, requested: true})
	}
	if !req.SkipProject {
		for _, p := range discovered {
			if !requested[p] {
				states = append(states, &fileState{path: p})
			}
		}
	}
	return states
}

func (a *Analyzer) processFile(st *fileState, needModel bool) {
	f, err := source.Read(a.opts.Root, st.path, a.opts.MaxFileSize)
	if err != nil {
		if st.requested || !errors.Is(err, source.ErrTooLarge) {
			st.err = fmt.Errorf("read: %w", err)
		}
		return
	}
	st.file = f
	st.hdr = header.Parse(string(f.Content))

	if st.requested && a.cache != nil {
		if a.cache.IsValid(st.path, f.Checksum) {
			metrics.CacheHits.Inc()
			if entry, ok := a.cache.Get(st.path); ok {
				st.result = entry.Result
				st.cached = true
			}
		} else {
			metrics.CacheMisses.Inc()
		}
	}
	if st.cached && !needModel {
		return
	}

	m, err := a.parsers.Parse(st.path, f.Content)
	if err != nil {
		metrics.ParseFailures.Inc()
		log.Warn("semantic extraction failed", "path", st.path, "error", err)
		st.err = err
		return
	}
	st.model = m

	if !st.requested || st.cached {
		return
	}
	st.result = a.engine.Check(m, st.hdr)
	if a.cache != nil {
		a.cache.Set(cache.Entry{
			Path:     st.path,
			Checksum: f.Checksum,
			ArchID:   st.hdr.ArchID,
			Result:   st.result,
			CachedAt: time.Now(),
		})
	}
}

// record publishes run counters.
func record(r *Report) {
	metrics.RunDuration.Observe(r.Duration.Seconds())
	metrics.Cycles.Set(float64(len(r.Cycles)))
	for _, res := range r.Results {
		metrics.FilesChecked.WithLabelValues(string(res.Status)).Inc()
		for _, v := range res.Violations {
			metrics.Findings.WithLabelValues(v.Rule, string(v.Severity)).Inc()
		}
		for _, v := range res.Warnings {
			metrics.Findings.WithLabelValues(v.Rule, string(v.Severity)).Inc()
		}
	}
}
